package api

import (
	"encoding/json"
	"time"

	"ebookGen/internal/database"
)

type userResponse struct {
	ID                 uint      `json:"id"`
	Email              string    `json:"email"`
	FirstName          string    `json:"first_name"`
	LastName           string    `json:"last_name"`
	MustChangePassword bool      `json:"must_change_password"`
	CreatedAt          time.Time `json:"created_at"`
}

func newUserResponse(u database.User) userResponse {
	return userResponse{
		ID:                 u.ID,
		Email:              u.Email,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		MustChangePassword: u.MustChangePassword,
		CreatedAt:          u.CreatedAt,
	}
}

type bookResponse struct {
	ID        uint              `json:"id"`
	UserID    uint              `json:"user_id"`
	Title     string            `json:"title"`
	Author    string            `json:"author"`
	Category  string            `json:"category"`
	Prompt    string            `json:"prompt"`
	FormData  json.RawMessage   `json:"form_data,omitempty"`
	Content   json.RawMessage   `json:"content,omitempty"`
	Status    string            `json:"status"`
	FileType  string            `json:"file_type,omitempty"`
	HasExport bool              `json:"has_export"`
	Chapters  []chapterResponse `json:"chapters,omitempty"`
	Images    []imageResponse   `json:"images,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func newBookResponse(b database.Book) bookResponse {
	return bookResponse{
		ID:        b.ID,
		UserID:    b.UserID,
		Title:     b.Title,
		Author:    b.Author,
		Category:  b.Category,
		Prompt:    b.Prompt,
		FormData:  rawJSON(b.FormData),
		Content:   rawJSON(b.Content),
		Status:    b.Status,
		FileType:  b.FileType,
		HasExport: b.FilePath != "",
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

// bookSummary 列表接口不返回正文。
func newBookSummary(b database.Book) bookResponse {
	r := newBookResponse(b)
	r.Content = nil
	r.FormData = nil
	return r
}

type chapterResponse struct {
	ID        uint      `json:"id"`
	BookID    uint      `json:"book_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Order     int       `json:"chapter_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newChapterResponse(ch database.Chapter) chapterResponse {
	return chapterResponse{
		ID:        ch.ID,
		BookID:    ch.BookID,
		Title:     ch.Title,
		Content:   ch.Content,
		Order:     ch.ChapterOrder,
		CreatedAt: ch.CreatedAt,
		UpdatedAt: ch.UpdatedAt,
	}
}

func newChapterResponses(rows []database.Chapter) []chapterResponse {
	out := make([]chapterResponse, 0, len(rows))
	for _, ch := range rows {
		out = append(out, newChapterResponse(ch))
	}
	return out
}

type imageResponse struct {
	ID          uint      `json:"id"`
	BookID      uint      `json:"book_id"`
	Filename    string    `json:"filename"`
	URL         string    `json:"url"`
	ViewURL     string    `json:"view_url,omitempty"`
	Caption     string    `json:"caption"`
	Description string    `json:"description"`
	Order       int       `json:"image_order"`
	CreatedAt   time.Time `json:"created_at"`
}

func newImageResponse(img database.Image) imageResponse {
	return imageResponse{
		ID:          img.ID,
		BookID:      img.BookID,
		Filename:    img.Filename,
		URL:         img.URL,
		Caption:     img.Caption,
		Description: img.Description,
		Order:       img.ImageOrder,
		CreatedAt:   img.CreatedAt,
	}
}

func rawJSON(data []byte) json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	return json.RawMessage(data)
}
