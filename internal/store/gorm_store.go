package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ebookGen/internal/database"
	"ebookGen/internal/ebook"
)

// GormStore implements Store on top of GORM (Postgres in production, SQLite in dev/tests).
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an initialised connection; migrations are run by the caller.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// translate maps gorm sentinels onto domain errors.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ebook.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ebook.ErrConflict
	default:
		return ebook.WrapStore(op, err)
	}
}

func (s *GormStore) CreateUser(ctx context.Context, u *database.User) error {
	u.Email = normalizeEmail(u.Email)
	return translate("create user", s.db.WithContext(ctx).Omit(clause.Associations).Create(u).Error)
}

func (s *GormStore) GetUserByID(ctx context.Context, id uint) (database.User, error) {
	var u database.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	return u, translate("get user", err)
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (database.User, error) {
	var u database.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error
	return u, translate("get user by email", err)
}

func (s *GormStore) SaveUser(ctx context.Context, u *database.User) error {
	return translate("save user", s.db.WithContext(ctx).Omit(clause.Associations).Save(u).Error)
}

func (s *GormStore) CreateBook(ctx context.Context, b *database.Book) error {
	return translate("create book", s.db.WithContext(ctx).Omit(clause.Associations).Create(b).Error)
}

func (s *GormStore) GetBook(ctx context.Context, id uint) (database.Book, error) {
	var b database.Book
	err := s.db.WithContext(ctx).First(&b, id).Error
	return b, translate("get book", err)
}

// ListBooksByUser returns the user's books, newest first.
func (s *GormStore) ListBooksByUser(ctx context.Context, userID uint) ([]database.Book, error) {
	var books []database.Book
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&books).Error
	if err != nil {
		return nil, translate("list books", err)
	}
	return books, nil
}

func (s *GormStore) SaveBook(ctx context.Context, b *database.Book) error {
	return translate("save book", s.db.WithContext(ctx).Omit(clause.Associations).Save(b).Error)
}

// DeleteBook 在事务中删除章节、图片与书籍本身，不依赖数据库外键级联。
func (s *GormStore) DeleteBook(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("book_id = ?", id).Delete(&database.Chapter{}).Error; err != nil {
			return err
		}
		if err := tx.Where("book_id = ?", id).Delete(&database.Image{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&database.Book{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return translate("delete book", err)
}

func (s *GormStore) ListChapters(ctx context.Context, bookID uint) ([]database.Chapter, error) {
	var chapters []database.Chapter
	err := s.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Order("chapter_order ASC").Order("id ASC").
		Find(&chapters).Error
	if err != nil {
		return nil, translate("list chapters", err)
	}
	return chapters, nil
}

func (s *GormStore) GetChapter(ctx context.Context, id uint) (database.Chapter, error) {
	var ch database.Chapter
	err := s.db.WithContext(ctx).First(&ch, id).Error
	return ch, translate("get chapter", err)
}

func (s *GormStore) CreateChapter(ctx context.Context, ch *database.Chapter) error {
	return translate("create chapter", s.db.WithContext(ctx).Create(ch).Error)
}

func (s *GormStore) SaveChapter(ctx context.Context, ch *database.Chapter) error {
	return translate("save chapter", s.db.WithContext(ctx).Save(ch).Error)
}

func (s *GormStore) DeleteChapter(ctx context.Context, id uint) error {
	return translate("delete chapter", deleteByID(s.db.WithContext(ctx), &database.Chapter{}, id))
}

func (s *GormStore) ListImages(ctx context.Context, bookID uint) ([]database.Image, error) {
	var images []database.Image
	err := s.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Order("image_order ASC").Order("id ASC").
		Find(&images).Error
	if err != nil {
		return nil, translate("list images", err)
	}
	return images, nil
}

func (s *GormStore) CountImagesByURL(ctx context.Context, url string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&database.Image{}).Where("url = ?", url).Count(&n).Error
	if err != nil {
		return 0, translate("count images", err)
	}
	return n, nil
}

func (s *GormStore) GetImage(ctx context.Context, id uint) (database.Image, error) {
	var img database.Image
	err := s.db.WithContext(ctx).First(&img, id).Error
	return img, translate("get image", err)
}

func (s *GormStore) CreateImage(ctx context.Context, img *database.Image) error {
	return translate("create image", s.db.WithContext(ctx).Create(img).Error)
}

func (s *GormStore) SaveImage(ctx context.Context, img *database.Image) error {
	return translate("save image", s.db.WithContext(ctx).Save(img).Error)
}

func (s *GormStore) DeleteImage(ctx context.Context, id uint) error {
	return translate("delete image", deleteByID(s.db.WithContext(ctx), &database.Image{}, id))
}

func deleteByID(db *gorm.DB, model any, id uint) error {
	res := db.Delete(model, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
