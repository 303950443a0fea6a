package api

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"ebookGen/internal/api/middleware"
	"ebookGen/internal/books"
	"ebookGen/internal/config"
	"ebookGen/internal/storage"
)

// ImageHandler 管理相册书籍的图片行与图片上传。
type ImageHandler struct {
	books   *books.Service
	storage ObjectStorage
	scanner VirusScanner
	upload  config.UploadConfig
	export  config.ExportConfig
	logger  *slog.Logger
}

// NewImageHandler 构造图片处理器；scanner 为 nil 时跳过病毒扫描。
func NewImageHandler(svc *books.Service, storageClient ObjectStorage, scanner VirusScanner, upload config.UploadConfig, exportCfg config.ExportConfig, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{
		books:   svc,
		storage: storageClient,
		scanner: scanner,
		upload:  upload,
		export:  exportCfg,
		logger:  logger,
	}
}

func (h *ImageHandler) ListImages(c *gin.Context) {
	book, ok := loadOwnedBook(c, h.books)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	rows, err := h.books.ListImages(ctx, book.ID)
	if err != nil {
		respondError(c, err, "image")
		return
	}
	items := make([]imageResponse, 0, len(rows))
	for _, img := range rows {
		items = append(items, withViewURL(ctx, h.storage, h.export.PresignTTL, img))
	}
	c.JSON(http.StatusOK, gin.H{"images": items})
}

type createImageRequest struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	Caption     string `json:"caption"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

// CreateImage 记录一张已上传或外部图片。
func (h *ImageHandler) CreateImage(c *gin.Context) {
	book, ok := loadOwnedBook(c, h.books)
	if !ok {
		return
	}
	var req createImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}
	if !validImageRef(book.UserID, req.URL) {
		BadRequest(c, "invalid image reference")
		return
	}

	img, err := h.books.CreateImage(c.Request.Context(), book.ID, books.ImageInput{
		Filename:    req.Filename,
		URL:         req.URL,
		Caption:     req.Caption,
		Description: req.Description,
		Order:       req.Order,
	})
	if err != nil {
		respondError(c, err, "image")
		return
	}
	c.JSON(http.StatusOK, gin.H{"image": withViewURL(c.Request.Context(), h.storage, h.export.PresignTTL, img)})
}

type updateImageRequest struct {
	ImageID     uint    `json:"image_id" binding:"required"`
	Caption     *string `json:"caption"`
	Description *string `json:"description"`
	Order       *int    `json:"order"`
}

// UpdateImage 图片 ID 从请求体读取。
func (h *ImageHandler) UpdateImage(c *gin.Context) {
	book, ok := loadOwnedBook(c, h.books)
	if !ok {
		return
	}
	var req updateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "image_id is required")
		return
	}

	img, err := h.books.UpdateImage(c.Request.Context(), book.ID, req.ImageID, books.ImageUpdate{
		Caption:     req.Caption,
		Description: req.Description,
		Order:       req.Order,
	})
	if err != nil {
		respondError(c, err, "image")
		return
	}
	c.JSON(http.StatusOK, gin.H{"image": withViewURL(c.Request.Context(), h.storage, h.export.PresignTTL, img)})
}

func (h *ImageHandler) DeleteImage(c *gin.Context) {
	book, ok := loadOwnedBook(c, h.books)
	if !ok {
		return
	}
	imageID, ok := parseIDParam(c, "imageId", "image")
	if !ok {
		return
	}
	if err := h.books.DeleteImage(c.Request.Context(), book.ID, imageID); err != nil {
		respondError(c, err, "image")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Image deleted successfully"})
}

// UploadImage 处理图片上传：校验类型与大小、扫描病毒、写入对象存储、记录图片行。
func (h *ImageHandler) UploadImage(c *gin.Context) {
	book, ok := loadOwnedBook(c, h.books)
	if !ok {
		return
	}
	logger := middleware.LoggerFromContextOr(c, h.logger).With(slog.Uint64("book_id", uint64(book.ID)))

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if h.upload.MaxBytes > 0 && file.Size > h.upload.MaxBytes {
		BadRequest(c, "file too large")
		return
	}
	ext, ok := imageExtension(file.Filename)
	if !ok {
		BadRequest(c, "unsupported image type")
		return
	}

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		Internal(c, "failed to read file")
		return
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		BadRequest(c, "file is not an image")
		return
	}

	if h.scanner != nil {
		if err := h.scanner.Scan(bytes.NewReader(data)); err != nil {
			if errors.Is(err, ErrMaliciousFile) {
				logger.Warn("malicious upload rejected", slog.String("filename", file.Filename), slog.Any("error", err))
				BadRequest(c, "malicious file detected")
				return
			}
			logger.Error("scan file failed", slog.Any("error", err))
			Internal(c, "failed to scan file")
			return
		}
	}

	ctx := c.Request.Context()
	objectKey := storage.ImageObjectKey(book.UserID, ext)
	if _, err := h.storage.UploadFile(ctx, objectKey, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		logger.Error("upload image failed", slog.Any("error", err))
		Internal(c, "failed to upload file")
		return
	}

	order, _ := strconv.Atoi(c.PostForm("order"))
	img, err := h.books.CreateImage(ctx, book.ID, books.ImageInput{
		Filename:    filepath.Base(file.Filename),
		URL:         objectKey,
		Caption:     c.PostForm("caption"),
		Description: c.PostForm("description"),
		Order:       order,
	})
	if err != nil {
		if delErr := h.storage.DeleteObject(ctx, objectKey); delErr != nil {
			logger.Warn("cleanup uploaded image failed", slog.String("object_key", objectKey), slog.Any("error", delErr))
		}
		respondError(c, err, "image")
		return
	}

	logger.Info("image uploaded", slog.String("object_key", objectKey), slog.Int("size", len(data)))
	c.JSON(http.StatusCreated, gin.H{"image": withViewURL(ctx, h.storage, h.export.PresignTTL, img)})
}
