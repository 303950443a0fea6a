package ebook

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Document 是存储在 Book.Content(JSON) 中的结构化书籍内容。
type Document struct {
	Title    string    `json:"title"`
	Author   string    `json:"author"`
	Category string    `json:"category,omitempty"`
	Chapters []Chapter `json:"chapters"`
	Photos   []Photo   `json:"photos,omitempty"`
}

// Chapter 表示文档中的一个章节。
type Chapter struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Photo 描述相册类书籍中的一张图片。
type Photo struct {
	Filename    string `json:"filename"`
	URL         string `json:"url,omitempty"`
	Caption     string `json:"caption,omitempty"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`
}

// Status 表示书籍生成状态。
type Status string

const (
	StatusDraft      Status = "draft"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// ParseStatus normalises a status value. Legacy spellings ("generated",
// "COMPLETED", "failed") are mapped onto the current enum.
func ParseStatus(raw string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "draft", "pending":
		return StatusDraft, true
	case "generating":
		return StatusGenerating, true
	case "completed", "generated":
		return StatusCompleted, true
	case "error", "failed":
		return StatusError, true
	default:
		return "", false
	}
}

// ParseDocument 解析存储的内容；空内容或非 JSON 对象返回 ErrMalformedContent。
func ParseDocument(raw []byte) (Document, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return Document{}, fmt.Errorf("%w: empty content", ErrMalformedContent)
	}

	var doc Document
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformedContent, err)
	}
	return doc, nil
}

// Marshal encodes the document for storage.
func (d Document) Marshal() ([]byte, error) {
	if d.Chapters == nil {
		d.Chapters = []Chapter{}
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return data, nil
}
