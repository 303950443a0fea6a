package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ebookGen/internal/books"
)

// ChapterHandler 管理自定义书籍的章节行。
type ChapterHandler struct {
	books *books.Service
}

func NewChapterHandler(svc *books.Service) *ChapterHandler {
	return &ChapterHandler{books: svc}
}

func (h *ChapterHandler) ListChapters(c *gin.Context) {
	book, ok := loadOwnedBook(c, h.books)
	if !ok {
		return
	}
	rows, err := h.books.ListChapters(c.Request.Context(), book.ID)
	if err != nil {
		respondError(c, err, "chapter")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chapters": newChapterResponses(rows)})
}

type createChapterRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Order   *int   `json:"order"`
}

// CreateChapter 未指定 order 时追加到末尾。
func (h *ChapterHandler) CreateChapter(c *gin.Context) {
	book, ok := loadOwnedBook(c, h.books)
	if !ok {
		return
	}
	var req createChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}

	ch, err := h.books.CreateChapter(c.Request.Context(), book.ID, books.ChapterInput{
		Title:   req.Title,
		Content: req.Content,
		Order:   req.Order,
	})
	if err != nil {
		respondError(c, err, "chapter")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chapter": newChapterResponse(ch)})
}

type updateChapterRequest struct {
	ChapterID uint    `json:"chapter_id" binding:"required"`
	Title     *string `json:"title"`
	Content   *string `json:"content"`
	Order     *int    `json:"order"`
}

// UpdateChapter 章节 ID 从请求体读取。
func (h *ChapterHandler) UpdateChapter(c *gin.Context) {
	book, ok := loadOwnedBook(c, h.books)
	if !ok {
		return
	}
	var req updateChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "chapter_id is required")
		return
	}

	ch, err := h.books.UpdateChapter(c.Request.Context(), book.ID, req.ChapterID, books.ChapterUpdate{
		Title:   req.Title,
		Content: req.Content,
		Order:   req.Order,
	})
	if err != nil {
		respondError(c, err, "chapter")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chapter": newChapterResponse(ch)})
}

func (h *ChapterHandler) DeleteChapter(c *gin.Context) {
	book, ok := loadOwnedBook(c, h.books)
	if !ok {
		return
	}
	chapterID, ok := parseIDParam(c, "chapterId", "chapter")
	if !ok {
		return
	}
	if err := h.books.DeleteChapter(c.Request.Context(), book.ID, chapterID); err != nil {
		respondError(c, err, "chapter")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chapter deleted successfully"})
}
