package books

import (
	"context"
	"strings"

	"ebookGen/internal/database"
	"ebookGen/internal/ebook"
)

// ImageInput creates an image row. URL may be an object key or an external URL.
type ImageInput struct {
	Filename    string
	URL         string
	Caption     string
	Description string
	Order       int
}

// ImageUpdate 仅允许修改说明、描述与顺序。
type ImageUpdate struct {
	Caption     *string
	Description *string
	Order       *int
}

func (s *Service) ListImages(ctx context.Context, bookID uint) ([]database.Image, error) {
	return s.store.ListImages(ctx, bookID)
}

func (s *Service) CreateImage(ctx context.Context, bookID uint, in ImageInput) (database.Image, error) {
	filename := strings.TrimSpace(in.Filename)
	if filename == "" {
		return database.Image{}, ebook.NewValidationError("filename", "is required")
	}
	img := database.Image{
		BookID:      bookID,
		Filename:    filename,
		URL:         strings.TrimSpace(in.URL),
		Caption:     in.Caption,
		Description: in.Description,
		ImageOrder:  in.Order,
	}
	if err := s.store.CreateImage(ctx, &img); err != nil {
		return database.Image{}, err
	}
	return img, nil
}

func (s *Service) UpdateImage(ctx context.Context, bookID, imageID uint, in ImageUpdate) (database.Image, error) {
	img, err := s.imageOfBook(ctx, bookID, imageID)
	if err != nil {
		return database.Image{}, err
	}
	if in.Caption != nil {
		img.Caption = *in.Caption
	}
	if in.Description != nil {
		img.Description = *in.Description
	}
	if in.Order != nil {
		img.ImageOrder = *in.Order
	}
	if err := s.store.SaveImage(ctx, &img); err != nil {
		return database.Image{}, err
	}
	return img, nil
}

// DeleteImage removes the row and, for uploaded images, the stored object.
func (s *Service) DeleteImage(ctx context.Context, bookID, imageID uint) error {
	img, err := s.imageOfBook(ctx, bookID, imageID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteImage(ctx, imageID); err != nil {
		return err
	}
	if isObjectKey(img.URL) {
		s.removeUnreferencedImages(ctx, img.URL)
	}
	return nil
}

func (s *Service) imageOfBook(ctx context.Context, bookID, imageID uint) (database.Image, error) {
	img, err := s.store.GetImage(ctx, imageID)
	if err != nil {
		return database.Image{}, err
	}
	if img.BookID != bookID {
		return database.Image{}, ebook.ErrNotFound
	}
	return img, nil
}
