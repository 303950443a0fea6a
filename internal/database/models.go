package database

import (
	"time"

	"gorm.io/datatypes"
)

// User 表示系统中的账号信息。
type User struct {
	ID                 uint   `gorm:"primaryKey"`
	Email              string `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash       string `gorm:"size:255;not null"`
	FirstName          string `gorm:"size:100"`
	LastName           string `gorm:"size:100"`
	MustChangePassword bool   `gorm:"default:false"`
	Books              []Book `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// FullName joins first and last name, skipping blanks.
func (u User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.LastName
	}
}

// Book 表示用户生成的一本书。Content 保存结构化文档 JSON。
type Book struct {
	ID        uint           `gorm:"primaryKey"`
	UserID    uint           `gorm:"index;not null"`
	User      User           `gorm:"constraint:OnDelete:CASCADE"`
	Title     string         `gorm:"size:255;not null"`
	Author    string         `gorm:"size:255"`
	Category  string         `gorm:"size:100;not null"`
	Prompt    string         `gorm:"type:text"`
	FormData  datatypes.JSON `gorm:"type:jsonb"`
	Content   datatypes.JSON `gorm:"type:jsonb"`
	Status    string         `gorm:"size:32;default:draft"`
	FilePath  string         `gorm:"size:512"`
	FileType  string         `gorm:"size:16"`
	Chapters  []Chapter      `gorm:"constraint:OnDelete:CASCADE"`
	Images    []Image        `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chapter 是自定义书籍的章节行，(book_id, chapter_order) 唯一。
type Chapter struct {
	ID           uint   `gorm:"primaryKey"`
	BookID       uint   `gorm:"not null;uniqueIndex:idx_chapter_book_order"`
	Title        string `gorm:"size:255;not null"`
	Content      string `gorm:"type:text"`
	ChapterOrder int    `gorm:"column:chapter_order;not null;uniqueIndex:idx_chapter_book_order"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Image 是相册书籍中的图片行。
type Image struct {
	ID          uint   `gorm:"primaryKey"`
	BookID      uint   `gorm:"index;not null"`
	Filename    string `gorm:"size:255;not null"`
	URL         string `gorm:"size:1024"`
	Caption     string `gorm:"type:text"`
	Description string `gorm:"type:text"`
	ImageOrder  int    `gorm:"column:image_order"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AllModels lists every table for AutoMigrate.
func AllModels() []any {
	return []any{&User{}, &Book{}, &Chapter{}, &Image{}}
}
