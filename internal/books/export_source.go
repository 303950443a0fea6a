package books

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/datatypes"

	"ebookGen/internal/database"
	"ebookGen/internal/ebook"
)

// ExportSource loads a book ready for export. When the book has chapter rows
// they replace the chapters embedded in content, in ascending order; image rows
// replace the embedded photos likewise. The returned book is not persisted.
func (s *Service) ExportSource(ctx context.Context, bookID uint) (database.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return database.Book{}, err
	}

	chapters, err := s.store.ListChapters(ctx, bookID)
	if err != nil {
		return database.Book{}, err
	}
	images, err := s.store.ListImages(ctx, bookID)
	if err != nil {
		return database.Book{}, err
	}
	if len(chapters) == 0 && len(images) == 0 {
		return book, nil
	}

	doc, err := ebook.ParseDocument(book.Content)
	if err != nil {
		if !errors.Is(err, ebook.ErrMalformedContent) {
			return database.Book{}, err
		}
		s.logger.Warn("stored content malformed, rebuilding from rows",
			slog.Uint64("book_id", uint64(bookID)), slog.Any("error", err))
		doc = ebook.Document{Title: book.Title, Author: book.Author, Category: book.Category}
	}

	if len(chapters) > 0 {
		doc.Chapters = make([]ebook.Chapter, 0, len(chapters))
		for _, ch := range chapters {
			doc.Chapters = append(doc.Chapters, ebook.Chapter{Title: ch.Title, Content: ch.Content})
		}
	}
	if len(images) > 0 {
		doc.Photos = make([]ebook.Photo, 0, len(images))
		for _, img := range images {
			doc.Photos = append(doc.Photos, ebook.Photo{
				Filename:    img.Filename,
				URL:         img.URL,
				Caption:     img.Caption,
				Description: img.Description,
				Order:       img.ImageOrder,
			})
		}
	}

	content, err := doc.Marshal()
	if err != nil {
		return database.Book{}, err
	}
	book.Content = datatypes.JSON(content)
	return book, nil
}
