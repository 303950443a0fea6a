// Package books 实现书籍的创建、读取、更新、删除与导出准备。
package books

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/datatypes"

	"ebookGen/internal/database"
	"ebookGen/internal/ebook"
	"ebookGen/internal/generator"
	"ebookGen/internal/metrics"
	"ebookGen/internal/store"
)

// DefaultAuthor is used when neither the request nor the user profile names one.
const DefaultAuthor = "Anonymous"

// ObjectRemover deletes stored objects; satisfied by *storage.Client.
type ObjectRemover interface {
	DeleteObject(ctx context.Context, objectKey string) error
}

// Service coordinates validation, generation and persistence of books.
type Service struct {
	store   store.Store
	objects ObjectRemover
	logger  *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithObjectRemover enables best-effort removal of exported artifacts and
// uploaded images when a book or image is deleted.
func WithObjectRemover(r ObjectRemover) Option {
	return func(s *Service) { s.objects = r }
}

// NewService 构造书籍服务。
func NewService(st store.Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: st, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput carries a generation request.
type CreateInput struct {
	Title    string
	Category string
	Prompt   string
	Author   string
	FormData map[string]any
	Chapters []generator.ChapterPrompt
	Images   []generator.ImageInput
}

// Create validates the request, generates content and persists the book.
// Chapter rows (custom books) and image rows (photo books) are inserted one by
// one after the book; a failure part way leaves the earlier rows in place.
func (s *Service) Create(ctx context.Context, userID uint, in CreateInput) (database.Book, error) {
	title := strings.TrimSpace(in.Title)
	prompt := strings.TrimSpace(in.Prompt)
	switch {
	case title == "":
		return database.Book{}, ebook.NewValidationError("title", "is required")
	case strings.TrimSpace(in.Category) == "":
		return database.Book{}, ebook.NewValidationError("category", "is required")
	case prompt == "":
		return database.Book{}, ebook.NewValidationError("prompt", "is required")
	}

	category, ok := ebook.ParseCategory(in.Category)
	if !ok {
		return database.Book{}, ebook.NewValidationError("category", fmt.Sprintf("unsupported category %q", in.Category))
	}

	if category == ebook.CategoryCustomBook {
		if err := validateChapterPrompts(in.Chapters); err != nil {
			return database.Book{}, err
		}
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return database.Book{}, err
	}
	author := strings.TrimSpace(in.Author)
	if author == "" {
		author = strings.TrimSpace(user.FullName())
	}
	if author == "" {
		author = DefaultAuthor
	}

	formData := stringifyFormData(in.FormData)
	formData[generator.PromptKey] = prompt

	doc := generator.Generate(generator.Input{
		Category: category,
		Title:    title,
		Author:   author,
		FormData: formData,
		Chapters: in.Chapters,
		Images:   in.Images,
	})
	content, err := doc.Marshal()
	if err != nil {
		return database.Book{}, err
	}
	rawForm, err := marshalFormData(in.FormData)
	if err != nil {
		return database.Book{}, ebook.NewValidationError("form_data", err.Error())
	}

	book := database.Book{
		UserID:   userID,
		Title:    title,
		Author:   author,
		Category: string(category),
		Prompt:   prompt,
		FormData: rawForm,
		Content:  datatypes.JSON(content),
		Status:   string(ebook.StatusCompleted),
	}
	if err := s.store.CreateBook(ctx, &book); err != nil {
		return database.Book{}, err
	}

	logger := s.logger.With(slog.Uint64("book_id", uint64(book.ID)), slog.String("category", book.Category))

	switch category {
	case ebook.CategoryCustomBook:
		for i, ch := range doc.Chapters {
			row := database.Chapter{BookID: book.ID, Title: ch.Title, Content: ch.Content, ChapterOrder: i + 1}
			if err := s.store.CreateChapter(ctx, &row); err != nil {
				logger.Error("insert chapter rows failed", slog.Int("inserted", i), slog.Any("error", err))
				return book, ebook.WrapStore("insert chapters", err)
			}
		}
	case ebook.CategoryPhotoBook:
		for i, img := range in.Images {
			order := img.Order
			if order == 0 {
				order = i + 1
			}
			row := database.Image{
				BookID:      book.ID,
				Filename:    img.Filename,
				URL:         img.URL,
				Caption:     img.Caption,
				Description: img.Description,
				ImageOrder:  order,
			}
			if err := s.store.CreateImage(ctx, &row); err != nil {
				logger.Error("insert image rows failed", slog.Int("inserted", i), slog.Any("error", err))
				return book, ebook.WrapStore("insert images", err)
			}
		}
	}

	metrics.BookGenerated(book.Category)
	logger.Info("book generated", slog.Int("chapters", len(doc.Chapters)))
	return book, nil
}

// Get returns the book or ebook.ErrNotFound.
func (s *Service) Get(ctx context.Context, bookID uint) (database.Book, error) {
	return s.store.GetBook(ctx, bookID)
}

// GetOwned 额外校验归属，不属于该用户时返回 ErrForbidden。
func (s *Service) GetOwned(ctx context.Context, userID, bookID uint) (database.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return database.Book{}, err
	}
	if book.UserID != userID {
		return database.Book{}, ebook.ErrForbidden
	}
	return book, nil
}

// List returns the user's books, newest first.
func (s *Service) List(ctx context.Context, userID uint) ([]database.Book, error) {
	return s.store.ListBooksByUser(ctx, userID)
}

// UpdateInput 中为 nil 或空白的字段保持原值。
type UpdateInput struct {
	Title   *string
	Author  *string
	Content json.RawMessage
	Status  *string
}

// Update applies a coalescing update. Concurrent updates are last-writer-wins.
func (s *Service) Update(ctx context.Context, bookID uint, in UpdateInput) (database.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return database.Book{}, err
	}

	if v, ok := nonBlank(in.Title); ok {
		book.Title = v
	}
	if v, ok := nonBlank(in.Author); ok {
		book.Author = v
	}
	if v, ok := nonBlank(in.Status); ok {
		status, known := ebook.ParseStatus(v)
		if !known {
			return database.Book{}, ebook.NewValidationError("status", fmt.Sprintf("unknown status %q", v))
		}
		book.Status = string(status)
	}
	if len(in.Content) > 0 && string(in.Content) != "null" {
		doc, err := parseContent(in.Content)
		if err != nil {
			return database.Book{}, ebook.NewValidationError("content", err.Error())
		}
		normalised, err := doc.Marshal()
		if err != nil {
			return database.Book{}, err
		}
		book.Content = datatypes.JSON(normalised)
	}

	if err := s.store.SaveBook(ctx, &book); err != nil {
		return database.Book{}, err
	}
	return book, nil
}

// Delete removes the book with its chapters and images, then drops the
// exported artifact and uploaded images from object storage best-effort.
func (s *Service) Delete(ctx context.Context, bookID uint) error {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	var imageKeys []string
	if images, err := s.store.ListImages(ctx, bookID); err == nil {
		for _, img := range images {
			if isObjectKey(img.URL) {
				imageKeys = append(imageKeys, img.URL)
			}
		}
	}

	if err := s.store.DeleteBook(ctx, bookID); err != nil {
		return err
	}
	if book.FilePath != "" {
		s.removeObjects(ctx, book.FilePath)
	}
	s.removeUnreferencedImages(ctx, imageKeys...)
	s.logger.Info("book deleted", slog.Uint64("book_id", uint64(bookID)))
	return nil
}

// RecordExport stores the latest exported artifact for the book.
func (s *Service) RecordExport(ctx context.Context, bookID uint, objectKey, fileType string) error {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	previous := book.FilePath
	book.FilePath = objectKey
	book.FileType = fileType
	if err := s.store.SaveBook(ctx, &book); err != nil {
		return err
	}
	if previous != "" && previous != objectKey {
		s.removeObjects(ctx, previous)
	}
	return nil
}

func (s *Service) removeObjects(ctx context.Context, keys ...string) {
	if s.objects == nil {
		return
	}
	for _, key := range keys {
		if err := s.objects.DeleteObject(ctx, key); err != nil {
			s.logger.Warn("remove object failed", slog.String("object_key", key), slog.Any("error", err))
		}
	}
}

// removeUnreferencedImages 只删除已无图片行引用的对象；同一上传 key 可被多本书引用。
// 调用方须先删除自身的图片行。
func (s *Service) removeUnreferencedImages(ctx context.Context, keys ...string) {
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		n, err := s.store.CountImagesByURL(ctx, key)
		if err != nil {
			s.logger.Warn("count image references failed, keeping object", slog.String("object_key", key), slog.Any("error", err))
			continue
		}
		if n > 0 {
			continue
		}
		s.removeObjects(ctx, key)
	}
}

// validateChapterPrompts 自定义书籍的每一章都必须带 prompt。
func validateChapterPrompts(in []generator.ChapterPrompt) error {
	if len(in) == 0 {
		return ebook.NewValidationError("chapters", "custom books need at least one chapter")
	}
	for i, c := range in {
		if strings.TrimSpace(c.Prompt) == "" {
			return ebook.NewValidationError(fmt.Sprintf("chapters[%d].prompt", i), "is required")
		}
	}
	return nil
}

func stringifyFormData(in map[string]any) map[string]string {
	out := make(map[string]string, len(in)+1)
	for k, v := range in {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = val
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

func marshalFormData(in map[string]any) (datatypes.JSON, error) {
	if in == nil {
		in = map[string]any{}
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// parseContent accepts either a document object or a JSON string holding one.
func parseContent(raw json.RawMessage) (ebook.Document, error) {
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}
	doc, err := ebook.ParseDocument(raw)
	if err != nil {
		return ebook.Document{}, err
	}
	if doc.Chapters == nil {
		return ebook.Document{}, errors.New("content must contain a chapters list")
	}
	return doc, nil
}

func nonBlank(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	trimmed := strings.TrimSpace(*v)
	return trimmed, trimmed != ""
}

// isObjectKey 区分对象存储 key 与外部 URL。
func isObjectKey(ref string) bool {
	if ref == "" {
		return false
	}
	lower := strings.ToLower(ref)
	return !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") && !strings.HasPrefix(lower, "data:")
}
