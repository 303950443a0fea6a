package books

import (
	"context"
	"strings"

	"ebookGen/internal/database"
	"ebookGen/internal/ebook"
)

// ChapterInput creates a chapter row. A nil Order appends after the last chapter.
type ChapterInput struct {
	Title   string
	Content string
	Order   *int
}

// ChapterUpdate 中 nil 字段保持原值。
type ChapterUpdate struct {
	Title   *string
	Content *string
	Order   *int
}

// ListChapters returns chapter rows in ascending order.
func (s *Service) ListChapters(ctx context.Context, bookID uint) ([]database.Chapter, error) {
	return s.store.ListChapters(ctx, bookID)
}

// CreateChapter appends a chapter row to the book.
func (s *Service) CreateChapter(ctx context.Context, bookID uint, in ChapterInput) (database.Chapter, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return database.Chapter{}, ebook.NewValidationError("title", "is required")
	}

	order := 0
	if in.Order != nil {
		order = *in.Order
	} else {
		existing, err := s.store.ListChapters(ctx, bookID)
		if err != nil {
			return database.Chapter{}, err
		}
		order = 1
		if n := len(existing); n > 0 {
			order = existing[n-1].ChapterOrder + 1
		}
	}

	ch := database.Chapter{BookID: bookID, Title: title, Content: in.Content, ChapterOrder: order}
	if err := s.store.CreateChapter(ctx, &ch); err != nil {
		return database.Chapter{}, err
	}
	return ch, nil
}

// UpdateChapter applies a coalescing update to a chapter of the given book.
func (s *Service) UpdateChapter(ctx context.Context, bookID, chapterID uint, in ChapterUpdate) (database.Chapter, error) {
	ch, err := s.chapterOfBook(ctx, bookID, chapterID)
	if err != nil {
		return database.Chapter{}, err
	}
	if v, ok := nonBlank(in.Title); ok {
		ch.Title = v
	}
	if in.Content != nil {
		ch.Content = *in.Content
	}
	if in.Order != nil {
		ch.ChapterOrder = *in.Order
	}
	if err := s.store.SaveChapter(ctx, &ch); err != nil {
		return database.Chapter{}, err
	}
	return ch, nil
}

// DeleteChapter removes a chapter row of the given book.
func (s *Service) DeleteChapter(ctx context.Context, bookID, chapterID uint) error {
	if _, err := s.chapterOfBook(ctx, bookID, chapterID); err != nil {
		return err
	}
	return s.store.DeleteChapter(ctx, chapterID)
}

// chapterOfBook 章节不属于该书时按不存在处理。
func (s *Service) chapterOfBook(ctx context.Context, bookID, chapterID uint) (database.Chapter, error) {
	ch, err := s.store.GetChapter(ctx, chapterID)
	if err != nil {
		return database.Chapter{}, err
	}
	if ch.BookID != bookID {
		return database.Chapter{}, ebook.ErrNotFound
	}
	return ch, nil
}
