// Package store persists users, books, chapters and images.
//
// Not-found lookups return ebook.ErrNotFound, unique violations return
// ebook.ErrConflict and any other failure is an *ebook.StoreError.
package store

import (
	"context"
	"errors"

	"ebookGen/internal/database"
)

var (
	errUnknownUser = errors.New("foreign key: user does not exist")
	errUnknownBook = errors.New("foreign key: book does not exist")
)

var (
	_ Store = (*GormStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// Store defines persistence operations used by the book service and the API.
type Store interface {
	// users
	CreateUser(ctx context.Context, u *database.User) error
	GetUserByID(ctx context.Context, id uint) (database.User, error)
	GetUserByEmail(ctx context.Context, email string) (database.User, error)
	SaveUser(ctx context.Context, u *database.User) error

	// books
	CreateBook(ctx context.Context, b *database.Book) error
	GetBook(ctx context.Context, id uint) (database.Book, error)
	ListBooksByUser(ctx context.Context, userID uint) ([]database.Book, error)
	SaveBook(ctx context.Context, b *database.Book) error
	// DeleteBook removes the book together with its chapters and images.
	DeleteBook(ctx context.Context, id uint) error

	// chapters, ordered by chapter_order ascending
	ListChapters(ctx context.Context, bookID uint) ([]database.Chapter, error)
	GetChapter(ctx context.Context, id uint) (database.Chapter, error)
	CreateChapter(ctx context.Context, ch *database.Chapter) error
	SaveChapter(ctx context.Context, ch *database.Chapter) error
	DeleteChapter(ctx context.Context, id uint) error

	// images, ordered by image_order ascending
	ListImages(ctx context.Context, bookID uint) ([]database.Image, error)
	GetImage(ctx context.Context, id uint) (database.Image, error)
	CreateImage(ctx context.Context, img *database.Image) error
	SaveImage(ctx context.Context, img *database.Image) error
	DeleteImage(ctx context.Context, id uint) error
	// CountImagesByURL counts image rows, across all books, that reference url.
	CountImagesByURL(ctx context.Context, url string) (int64, error)
}
