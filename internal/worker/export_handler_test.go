package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"

	"ebookGen/internal/books"
	"ebookGen/internal/config"
	"ebookGen/internal/database"
	"ebookGen/internal/errcode"
	"ebookGen/internal/export"
	"ebookGen/internal/generator"
	"ebookGen/internal/storage"
	"ebookGen/internal/store"
	"ebookGen/internal/tasks"
)

type fakeObjects struct {
	uploaded map[string][]byte
	types    map[string]string
	objects  map[string][]byte
	deleted  []string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{uploaded: map[string][]byte{}, types: map[string]string{}, objects: map[string][]byte{}}
}

func (f *fakeObjects) UploadFile(_ context.Context, name string, r io.Reader, _ int64, contentType string) (*minio.UploadInfo, error) {
	b, _ := io.ReadAll(r)
	f.uploaded[name] = b
	f.types[name] = contentType
	return &minio.UploadInfo{Key: name, Size: int64(len(b))}, nil
}

func (f *fakeObjects) ReadObject(_ context.Context, key string, _ int64) ([]byte, error) {
	if b, ok := f.objects[key]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
}

func (f *fakeObjects) DeleteObject(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.uploaded, key)
	return nil
}

type published struct {
	channel string
	message ExportNotifyMessage
}

type fakePublisher struct {
	messages []published
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	var msg ExportNotifyMessage
	_ = json.Unmarshal(message.([]byte), &msg)
	p.messages = append(p.messages, published{channel: channel, message: msg})
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

type failingRenderer struct{}

func (failingRenderer) Render(context.Context, export.Format, database.Book, []export.PhotoAsset) ([]byte, error) {
	return nil, errors.New("renderer exploded")
}

// deletingRenderer 在渲染期间删除书籍，模拟导出过程中用户删书。
type deletingRenderer struct {
	inner  Renderer
	delete func()
}

func (r deletingRenderer) Render(ctx context.Context, format export.Format, book database.Book, photos []export.PhotoAsset) ([]byte, error) {
	r.delete()
	return r.inner.Render(ctx, format, book, photos)
}

type fixture struct {
	svc       *books.Service
	store     *store.MemoryStore
	objects   *fakeObjects
	publisher *fakePublisher
	handler   *ExportTaskHandler
	user      database.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemoryStore()
	svc := books.NewService(st, logger)
	objects := newFakeObjects()
	pub := &fakePublisher{}
	renderer := export.NewRenderer(config.ExportConfig{PDFEngine: config.PDFEngineNative}, logger)

	u := database.User{Email: "w@example.com", PasswordHash: "x", FirstName: "Wren"}
	if err := st.CreateUser(context.Background(), &u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &fixture{
		svc:       svc,
		store:     st,
		objects:   objects,
		publisher: pub,
		handler:   NewExportTaskHandler(svc, objects, renderer, pub, logger),
		user:      u,
	}
}

func (f *fixture) task(t *testing.T, bookID uint, format string) *asynq.Task {
	t.Helper()
	task, err := tasks.NewBookExportTask(bookID, f.user.ID, format, "corr-1")
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	return task
}

func TestProcessTaskExportsPDF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book, err := f.svc.Create(ctx, f.user.ID, books.CreateInput{Title: "Luna", Category: "Children's Stories", Prompt: "a lost puppy"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.handler.ProcessTask(ctx, f.task(t, book.ID, "pdf")); err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(f.objects.uploaded) != 1 {
		t.Fatalf("expected one upload, got %d", len(f.objects.uploaded))
	}
	var key string
	for k, data := range f.objects.uploaded {
		key = k
		if !bytes.HasPrefix(data, []byte("%PDF")) {
			t.Fatal("uploaded artifact is not a pdf")
		}
	}
	prefix := fmt.Sprintf("exports/%d/%d/", f.user.ID, book.ID)
	if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, ".pdf") {
		t.Fatalf("unexpected object key %q", key)
	}
	if f.objects.types[key] != "application/pdf" {
		t.Fatalf("unexpected content type %q", f.objects.types[key])
	}

	stored, _ := f.svc.Get(ctx, book.ID)
	if stored.FilePath != key || stored.FileType != "pdf" {
		t.Fatalf("export not recorded: %q %q", stored.FilePath, stored.FileType)
	}

	if len(f.publisher.messages) != 1 {
		t.Fatalf("expected one notification, got %d", len(f.publisher.messages))
	}
	msg := f.publisher.messages[0]
	if msg.channel != NotifyChannel(f.user.ID) {
		t.Fatalf("unexpected channel %q", msg.channel)
	}
	if msg.message.Status != "completed" || msg.message.ErrorCode != errcode.OK || msg.message.CorrelationID != "corr-1" {
		t.Fatalf("unexpected notification %+v", msg.message)
	}
	if msg.message.DownloadURL != fmt.Sprintf("/v1/books/%d/download?format=pdf", book.ID) {
		t.Fatalf("unexpected download url %q", msg.message.DownloadURL)
	}
}

func TestProcessTaskExportsEPUB(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book, _ := f.svc.Create(ctx, f.user.ID, books.CreateInput{Title: "Stars", Category: "Science Fiction", Prompt: "a colony ship"})

	if err := f.handler.ProcessTask(ctx, f.task(t, book.ID, "EPUB")); err != nil {
		t.Fatalf("process: %v", err)
	}
	stored, _ := f.svc.Get(ctx, book.ID)
	if stored.FileType != "epub" || !strings.HasSuffix(stored.FilePath, ".epub") {
		t.Fatalf("unexpected recorded export %q %q", stored.FilePath, stored.FileType)
	}
	if f.objects.types[stored.FilePath] != "application/epub+zip" {
		t.Fatalf("unexpected content type %q", f.objects.types[stored.FilePath])
	}
}

func TestProcessTaskReportsMissingPhotos(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book, err := f.svc.Create(ctx, f.user.ID, books.CreateInput{
		Title: "Album", Category: "Photo Book", Prompt: "summer",
		Images: []generator.ImageInput{
			{Filename: "gone.jpg", URL: "book-images/1/gone.jpg", Description: "lost"},
			{Filename: "remote.jpg", URL: "https://example.com/remote.jpg"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.handler.ProcessTask(ctx, f.task(t, book.ID, "pdf")); err != nil {
		t.Fatalf("process: %v", err)
	}
	msg := f.publisher.messages[0].message
	if msg.ErrorCode != errcode.ResourceMissing {
		t.Fatalf("expected resource missing code, got %d", msg.ErrorCode)
	}
	if len(msg.MissingKeys) != 1 || msg.MissingKeys[0] != "book-images/1/gone.jpg" {
		t.Fatalf("unexpected missing keys %v", msg.MissingKeys)
	}
}

func TestProcessTaskSkips(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.handler.ProcessTask(ctx, f.task(t, 404, "pdf")); err != nil {
		t.Fatalf("missing book should be skipped, got %v", err)
	}

	err := f.handler.ProcessTask(ctx, f.task(t, 1, "docx"))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected skip retry for bad format, got %v", err)
	}

	err = f.handler.ProcessTask(ctx, asynq.NewTask(tasks.TypeBookExport, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected skip retry for bad payload, got %v", err)
	}
	if len(f.objects.uploaded) != 0 || len(f.publisher.messages) != 0 {
		t.Fatal("skipped tasks must not upload or notify")
	}
}

func TestProcessTaskRenderFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book, _ := f.svc.Create(ctx, f.user.ID, books.CreateInput{Title: "T", Category: "Romance", Prompt: "p"})
	f.handler.renderer = failingRenderer{}

	err := f.handler.ProcessTask(ctx, f.task(t, book.ID, "pdf"))
	if err == nil {
		t.Fatal("expected render error")
	}
	if code := errcode.Of(err); code != errcode.RenderFailed {
		t.Fatalf("expected render failure code, got %d", code)
	}
	// 非最后一次重试（无 asynq 上下文），不发送错误通知
	if len(f.publisher.messages) != 0 {
		t.Fatalf("unexpected notification %+v", f.publisher.messages)
	}
}

func TestProcessTaskRemovesArtifactWhenBookDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book, err := f.svc.Create(ctx, f.user.ID, books.CreateInput{Title: "Gone", Category: "Mystery", Prompt: "a vanishing"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.handler.renderer = deletingRenderer{
		inner: f.handler.renderer,
		delete: func() {
			if err := f.svc.Delete(ctx, book.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
		},
	}

	if err := f.handler.ProcessTask(ctx, f.task(t, book.ID, "epub")); err != nil {
		t.Fatalf("deleted book should not fail the task, got %v", err)
	}
	if len(f.objects.deleted) != 1 || !strings.HasPrefix(f.objects.deleted[0], fmt.Sprintf("exports/%d/%d/", f.user.ID, book.ID)) {
		t.Fatalf("expected the uploaded artifact to be removed, got %v", f.objects.deleted)
	}
	if len(f.objects.uploaded) != 0 {
		t.Fatalf("orphaned artifacts left behind: %d", len(f.objects.uploaded))
	}
	if len(f.publisher.messages) != 0 {
		t.Fatalf("no notification expected for a deleted book, got %+v", f.publisher.messages)
	}
}
