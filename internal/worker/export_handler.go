package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"

	"ebookGen/internal/database"
	"ebookGen/internal/ebook"
	"ebookGen/internal/errcode"
	"ebookGen/internal/export"
	"ebookGen/internal/metrics"
	"ebookGen/internal/storage"
	"ebookGen/internal/tasks"
)

// maxPhotoBytes 嵌入 PDF 的单张图片上限。
const maxPhotoBytes = 20 << 20

// BookSource 提供导出所需的书籍读取与结果记录。
type BookSource interface {
	ExportSource(ctx context.Context, bookID uint) (database.Book, error)
	RecordExport(ctx context.Context, bookID uint, objectKey, fileType string) error
}

// ObjectStore is the part of the storage client used by the worker.
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	ReadObject(ctx context.Context, objectKey string, maxBytes int64) ([]byte, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// Renderer turns a book into artifact bytes.
type Renderer interface {
	Render(ctx context.Context, format export.Format, book database.Book, photos []export.PhotoAsset) ([]byte, error)
}

// ExportTaskHandler 负责消费书籍导出任务。
type ExportTaskHandler struct {
	books     BookSource
	storage   ObjectStore
	renderer  Renderer
	publisher Publisher
	logger    *slog.Logger
}

// NewExportTaskHandler 创建任务处理器。
func NewExportTaskHandler(books BookSource, storage ObjectStore, renderer Renderer, publisher Publisher, logger *slog.Logger) *ExportTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportTaskHandler{
		books:     books,
		storage:   storage,
		renderer:  renderer,
		publisher: publisher,
		logger:    logger,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *ExportTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	payload, err := tasks.ParseBookExportPayload(t.Payload())
	if err != nil {
		log.Error("invalid export payload", slog.Any("error", err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("book_id", uint64(payload.BookID)),
		slog.String("format", payload.Format),
	)

	format, ok := export.ParseFormat(payload.Format)
	if !ok {
		log.Error("unsupported export format")
		return fmt.Errorf("unsupported export format %q: %w", payload.Format, asynq.SkipRetry)
	}
	log.Info("starting book export task")

	book, err := h.books.ExportSource(ctx, payload.BookID)
	if err != nil {
		if errors.Is(err, ebook.ErrNotFound) {
			log.Warn("book not found, skipping task")
			return nil
		}
		log.Error("load book failed", slog.Any("error", err))
		return err
	}
	if payload.UserID != 0 && book.UserID != payload.UserID {
		log.Warn("book owner changed, skipping task", slog.Uint64("owner_id", uint64(book.UserID)))
		return nil
	}

	log = log.With(slog.Uint64("user_id", uint64(book.UserID)))

	defer func() {
		if retErr == nil {
			return
		}
		metrics.ExportFailed(string(format))
		if !isFinalAsynqAttempt(ctx) {
			return
		}
		notify := ExportNotifyMessage{
			Status:        "error",
			BookID:        book.ID,
			Format:        string(format),
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.Of(retErr),
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := publishExportNotify(ctx, h.publisher, book.UserID, notify); err != nil {
			log.Error("publish export error notification failed", slog.Any("error", err))
		}
	}()

	var photos []export.PhotoAsset
	var missingKeys []string
	if format == export.FormatPDF {
		photos, missingKeys = h.loadPhotos(ctx, log, book)
	}

	data, err := h.renderer.Render(ctx, format, book, photos)
	if err != nil {
		log.Error("render export failed", slog.Any("error", err))
		return errcode.Wrap(errcode.RenderFailed, err)
	}

	objectName := storage.ExportObjectKey(book.UserID, book.ID, string(format))
	if _, err := h.storage.UploadFile(ctx, objectName, bytes.NewReader(data), int64(len(data)), format.ContentType()); err != nil {
		log.Error("upload export to minio failed", slog.Any("error", err))
		return errcode.Wrap(errcode.StorageFailed, err)
	}

	if err := h.books.RecordExport(ctx, book.ID, objectName, string(format)); err != nil {
		if errors.Is(err, ebook.ErrNotFound) {
			log.Warn("book deleted during export, removing artifact")
			h.discardArtifact(ctx, log, objectName)
			return nil
		}
		log.Error("record export failed", slog.Any("error", err))
		// 重试会重新渲染并上传新 key，最后一次失败后该文件不会再被引用
		if isFinalAsynqAttempt(ctx) {
			h.discardArtifact(ctx, log, objectName)
		}
		return err
	}
	metrics.ExportSucceeded(string(format), len(data))

	notify := ExportNotifyMessage{
		Status:        "completed",
		BookID:        book.ID,
		Format:        string(format),
		CorrelationID: payload.CorrelationID,
		DownloadURL:   DownloadPath(book.ID, format),
		ErrorCode:     errcode.OK,
	}
	if len(missingKeys) > 0 {
		notify.ErrorCode = errcode.ResourceMissing
		notify.ErrorMessage = "some photos could not be loaded and were skipped"
		notify.MissingKeys = missingKeys
		log.Warn("export generated with missing photos",
			slog.Int("missing_count", len(missingKeys)),
			slog.Any("missing_keys", missingKeys),
		)
	}
	if err := publishExportNotify(ctx, h.publisher, book.UserID, notify); err != nil {
		// 文件已生成，通知失败不重试整个任务
		log.Error("publish redis notification failed", slog.Any("error", err))
	}

	log.Info("book export task completed", slog.String("object_key", objectName), slog.Int("size", len(data)))
	return nil
}

// discardArtifact 删除未被记录到书籍上的导出文件，失败只记录日志。
func (h *ExportTaskHandler) discardArtifact(ctx context.Context, log *slog.Logger, objectName string) {
	if err := h.storage.DeleteObject(ctx, objectName); err != nil {
		log.Warn("remove orphaned export failed", slog.String("object_key", objectName), slog.Any("error", err))
	}
}

// loadPhotos 读取已上传图片的字节；外部 URL 不下载，读取失败的 key 记为缺失。
func (h *ExportTaskHandler) loadPhotos(ctx context.Context, log *slog.Logger, book database.Book) ([]export.PhotoAsset, []string) {
	doc, err := ebook.ParseDocument(book.Content)
	if err != nil || len(doc.Photos) == 0 {
		return nil, nil
	}

	var photos []export.PhotoAsset
	var missing []string
	for _, p := range doc.Photos {
		key := strings.TrimSpace(p.URL)
		if key == "" || strings.Contains(key, "://") || strings.HasPrefix(key, "data:") {
			continue
		}
		data, err := h.storage.ReadObject(ctx, key, maxPhotoBytes)
		if err != nil {
			if !storage.IsNoSuchKey(err) {
				log.Warn("read photo failed", slog.String("object_key", key), slog.Any("error", err))
			}
			missing = append(missing, key)
			continue
		}
		photos = append(photos, export.PhotoAsset{Photo: p, Data: data})
	}
	return photos, missing
}

// DownloadPath is the API path that resolves the latest artifact to a presigned URL.
func DownloadPath(bookID uint, format export.Format) string {
	return fmt.Sprintf("/v1/books/%d/download?format=%s", bookID, format)
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
