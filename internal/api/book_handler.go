package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"

	"ebookGen/internal/api/middleware"
	"ebookGen/internal/books"
	"ebookGen/internal/config"
	"ebookGen/internal/database"
	"ebookGen/internal/ebook"
	"ebookGen/internal/export"
	"ebookGen/internal/generator"
	"ebookGen/internal/tasks"
	"ebookGen/internal/worker"
)

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ObjectStorage is the part of *storage.Client used by the handlers.
type ObjectStorage interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration, filename string) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// BookHandler 负责书籍的生成、查询、修改、删除与导出。
type BookHandler struct {
	books   *books.Service
	queue   TaskEnqueuer
	storage ObjectStorage
	cfg     config.ExportConfig
	logger  *slog.Logger
}

// NewBookHandler 构造书籍处理器。
func NewBookHandler(svc *books.Service, queue TaskEnqueuer, storageClient ObjectStorage, cfg config.ExportConfig, logger *slog.Logger) *BookHandler {
	return &BookHandler{
		books:   svc,
		queue:   queue,
		storage: storageClient,
		cfg:     cfg,
		logger:  logger,
	}
}

// ListCategories 返回可选的书籍类型。
func (h *BookHandler) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": ebook.Categories()})
}

type createBookRequest struct {
	Title    string                    `json:"title"`
	Category string                    `json:"category"`
	Prompt   string                    `json:"prompt"`
	Author   string                    `json:"author"`
	FormData map[string]any            `json:"form_data"`
	Chapters []generator.ChapterPrompt `json:"chapters"`
	Images   []generator.ImageInput    `json:"images"`
}

// CreateBook 生成并保存一本书。
func (h *BookHandler) CreateBook(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req createBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}
	for _, img := range req.Images {
		if !validImageRef(userID, img.URL) {
			BadRequest(c, "invalid image reference")
			return
		}
	}

	book, err := h.books.Create(c.Request.Context(), userID, books.CreateInput{
		Title:    req.Title,
		Category: req.Category,
		Prompt:   req.Prompt,
		Author:   req.Author,
		FormData: req.FormData,
		Chapters: req.Chapters,
		Images:   req.Images,
	})
	if err != nil {
		respondError(c, err, "book")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"book": newBookResponse(book)})
}

// ListMyBooks 返回当前用户的书籍，最新的在前。
func (h *BookHandler) ListMyBooks(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	rows, err := h.books.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "book")
		return
	}
	items := make([]bookResponse, 0, len(rows))
	for _, b := range rows {
		items = append(items, newBookSummary(b))
	}
	c.JSON(http.StatusOK, gin.H{"books": items})
}

// GetBook 返回书籍详情以及章节、图片行。
func (h *BookHandler) GetBook(c *gin.Context) {
	book, ok := h.ownedBook(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	chapters, err := h.books.ListChapters(ctx, book.ID)
	if err != nil {
		respondError(c, err, "chapter")
		return
	}
	images, err := h.books.ListImages(ctx, book.ID)
	if err != nil {
		respondError(c, err, "image")
		return
	}

	resp := newBookResponse(book)
	resp.Chapters = newChapterResponses(chapters)
	resp.Images = make([]imageResponse, 0, len(images))
	for _, img := range images {
		resp.Images = append(resp.Images, withViewURL(ctx, h.storage, h.cfg.PresignTTL, img))
	}
	c.JSON(http.StatusOK, gin.H{"book": resp})
}

type updateBookRequest struct {
	Title   *string         `json:"title"`
	Author  *string         `json:"author"`
	Content json.RawMessage `json:"content"`
	Status  *string         `json:"status"`
}

// UpdateBook 合并式更新：缺省或空白字段保持原值。
func (h *BookHandler) UpdateBook(c *gin.Context) {
	book, ok := h.ownedBook(c)
	if !ok {
		return
	}

	var req updateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}

	updated, err := h.books.Update(c.Request.Context(), book.ID, books.UpdateInput{
		Title:   req.Title,
		Author:  req.Author,
		Content: req.Content,
		Status:  req.Status,
	})
	if err != nil {
		respondError(c, err, "book")
		return
	}
	c.JSON(http.StatusOK, gin.H{"book": newBookResponse(updated)})
}

// DeleteBook 删除书籍及其章节、图片和导出文件。
func (h *BookHandler) DeleteBook(c *gin.Context) {
	book, ok := h.ownedBook(c)
	if !ok {
		return
	}
	if err := h.books.Delete(c.Request.Context(), book.ID); err != nil {
		respondError(c, err, "book")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Book deleted successfully"})
}

// ExportBook 将导出任务放入队列，完成后通过 WebSocket 通知。
func (h *BookHandler) ExportBook(c *gin.Context) {
	format, ok := export.ParseFormat(c.Param("format"))
	if !ok {
		BadRequest(c, "unsupported export format")
		return
	}
	book, ok := h.ownedBook(c)
	if !ok {
		return
	}

	correlationID := middleware.GetCorrelationID(c)
	logger := middleware.LoggerFromContextOr(c, h.logger).With(
		slog.Uint64("book_id", uint64(book.ID)),
		slog.String("format", string(format)),
	)

	task, err := tasks.NewBookExportTask(book.ID, book.UserID, string(format), correlationID)
	if err != nil {
		logger.Error("create export task failed", slog.Any("error", err))
		Internal(c, "failed to create export task")
		return
	}

	opts := []asynq.Option{asynq.MaxRetry(h.cfg.MaxRetry)}
	if h.cfg.RenderTimeout > 0 {
		// 留出上传与通知的时间
		opts = append(opts, asynq.Timeout(2*h.cfg.RenderTimeout))
	}
	info, err := h.queue.EnqueueContext(c.Request.Context(), task, opts...)
	if err != nil {
		logger.Error("enqueue export task failed", slog.Any("error", err))
		Internal(c, "failed to enqueue export task")
		return
	}

	logger.Info("export task enqueued", slog.String("task_id", info.ID))
	c.JSON(http.StatusOK, gin.H{
		"message":     "Export started",
		"downloadUrl": worker.DownloadPath(book.ID, format),
		"task_id":     info.ID,
	})
}

// DownloadBook 返回最近一次导出文件的预签名下载链接。
func (h *BookHandler) DownloadBook(c *gin.Context) {
	book, ok := h.ownedBook(c)
	if !ok {
		return
	}

	if book.FilePath == "" {
		Conflict(c, "export not ready")
		return
	}
	stored, _ := export.ParseFormat(book.FileType)
	if raw := c.Query("format"); raw != "" {
		requested, ok := export.ParseFormat(raw)
		if !ok {
			BadRequest(c, "unsupported export format")
			return
		}
		if requested != stored {
			Conflict(c, "export not ready")
			return
		}
	}
	if stored == "" {
		stored = export.FormatPDF
	}

	filename := export.DownloadFilename(book.Title, stored)
	url, err := h.storage.GeneratePresignedURL(c.Request.Context(), book.FilePath, h.cfg.PresignTTL, filename)
	if err != nil {
		middleware.LoggerFromContextOr(c, h.logger).Error("generate presigned url failed",
			slog.Uint64("book_id", uint64(book.ID)),
			slog.Any("error", err),
		)
		Internal(c, "failed to generate download link")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url, "filename": filename, "format": stored})
}

// PreviewBook 返回导出前的结构化内容：PDF 为页面列表，EPUB 为章节文件列表。
func (h *BookHandler) PreviewBook(c *gin.Context) {
	format := export.FormatPDF
	if raw := c.Query("format"); raw != "" {
		parsed, ok := export.ParseFormat(raw)
		if !ok {
			BadRequest(c, "unsupported export format")
			return
		}
		format = parsed
	}
	book, ok := h.ownedBook(c)
	if !ok {
		return
	}

	source, err := h.books.ExportSource(c.Request.Context(), book.ID)
	if err != nil {
		respondError(c, err, "book")
		return
	}

	logger := middleware.LoggerFromContextOr(c, h.logger)
	var document any
	switch format {
	case export.FormatEPUB:
		document = export.ToEPUBDocument(source, logger)
	default:
		document = export.ToPDFDocument(source, logger)
	}
	c.JSON(http.StatusOK, gin.H{"format": format, "document": document})
}

// ownedBook 读取路径中的书籍并校验归属；失败时已写入响应。
func (h *BookHandler) ownedBook(c *gin.Context) (database.Book, bool) {
	return loadOwnedBook(c, h.books)
}

func loadOwnedBook(c *gin.Context, svc *books.Service) (database.Book, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return database.Book{}, false
	}
	bookID, ok := parseIDParam(c, "id", "book")
	if !ok {
		return database.Book{}, false
	}
	book, err := svc.GetOwned(c.Request.Context(), userID, bookID)
	if err != nil {
		respondError(c, err, "book")
		return database.Book{}, false
	}
	return book, true
}

// withViewURL 为存储在对象存储中的图片附加临时访问链接。
func withViewURL(ctx context.Context, storage ObjectStorage, ttl time.Duration, img database.Image) imageResponse {
	resp := newImageResponse(img)
	if storage == nil || img.URL == "" || isExternalImageRef(img.URL) {
		return resp
	}
	if url, err := storage.GeneratePresignedURL(ctx, img.URL, ttl, ""); err == nil {
		resp.ViewURL = url
	}
	return resp
}
