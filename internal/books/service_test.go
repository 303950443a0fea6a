package books

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"ebookGen/internal/database"
	"ebookGen/internal/ebook"
	"ebookGen/internal/generator"
	"ebookGen/internal/store"
)

type recordingRemover struct {
	removed []string
}

func (r *recordingRemover) DeleteObject(_ context.Context, key string) error {
	r.removed = append(r.removed, key)
	return nil
}

func newTestService(t *testing.T) (*Service, *store.MemoryStore, *recordingRemover) {
	t.Helper()
	st := store.NewMemoryStore()
	remover := &recordingRemover{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(st, logger, WithObjectRemover(remover)), st, remover
}

func newUser(t *testing.T, st store.Store, email, first, last string) database.User {
	t.Helper()
	u := database.User{Email: email, PasswordHash: "x", FirstName: first, LastName: last}
	if err := st.CreateUser(context.Background(), &u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCreateValidation(t *testing.T) {
	svc, st, _ := newTestService(t)
	u := newUser(t, st, "v@example.com", "", "")
	ctx := context.Background()

	cases := []struct {
		name  string
		in    CreateInput
		field string
	}{
		{"missing title", CreateInput{Category: "Romance", Prompt: "p"}, "title"},
		{"missing category", CreateInput{Title: "T", Prompt: "p"}, "category"},
		{"missing prompt", CreateInput{Title: "T", Category: "Romance", Prompt: "  "}, "prompt"},
		{"unknown category", CreateInput{Title: "T", Category: "Poetry", Prompt: "p"}, "category"},
		{"custom without chapters", CreateInput{Title: "T", Category: "Custom Book", Prompt: "p"}, "chapters"},
		{"custom chapter without prompt", CreateInput{
			Title: "T", Category: "Custom Book", Prompt: "p",
			Chapters: []generator.ChapterPrompt{{Title: "Empty"}},
		}, "chapters[0].prompt"},
		{"custom middle chapter without prompt", CreateInput{
			Title: "T", Category: "Custom Book", Prompt: "p",
			Chapters: []generator.ChapterPrompt{
				{Title: "One", Prompt: "first"},
				{Title: "Two", Prompt: "   "},
				{Title: "Three", Prompt: "third"},
			},
		}, "chapters[1].prompt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, u.ID, tc.in)
			var verr *ebook.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, verr.Field)
			}
		})
	}
}

func TestCreateChildrensStory(t *testing.T) {
	svc, st, _ := newTestService(t)
	u := newUser(t, st, "luna@example.com", "Ada", "Lovelace")
	ctx := context.Background()

	book, err := svc.Create(ctx, u.ID, CreateInput{
		Title:    "Luna's Adventure",
		Category: "childrens_story",
		Prompt:   "a lost puppy",
		FormData: map[string]any{"mainCharacter": "Luna", "characterAge": 7},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if book.Status != string(ebook.StatusCompleted) {
		t.Fatalf("expected completed, got %q", book.Status)
	}
	if book.Category != string(ebook.CategoryChildrensStory) {
		t.Fatalf("expected canonical category, got %q", book.Category)
	}
	if book.Author != "Ada Lovelace" {
		t.Fatalf("expected author from profile, got %q", book.Author)
	}

	doc, err := ebook.ParseDocument(book.Content)
	if err != nil {
		t.Fatalf("parse content: %v", err)
	}
	if len(doc.Chapters) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(doc.Chapters))
	}
	if !strings.Contains(doc.Chapters[0].Content, "Luna") || !strings.Contains(doc.Chapters[0].Content, "7 years old") {
		t.Fatalf("form data not applied: %q", doc.Chapters[0].Content)
	}

	var form map[string]any
	if err := json.Unmarshal(book.FormData, &form); err != nil {
		t.Fatalf("form data not stored as json: %v", err)
	}
	if form["mainCharacter"] != "Luna" {
		t.Fatalf("unexpected stored form data %v", form)
	}
}

func TestCreateDefaultsAuthorToAnonymous(t *testing.T) {
	svc, st, _ := newTestService(t)
	u := newUser(t, st, "anon@example.com", "", "")
	book, err := svc.Create(context.Background(), u.ID, CreateInput{Title: "T", Category: "Mystery", Prompt: "a locked room"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if book.Author != DefaultAuthor {
		t.Fatalf("expected %q, got %q", DefaultAuthor, book.Author)
	}
}

func TestCreateCustomBookWritesChapterRows(t *testing.T) {
	svc, st, _ := newTestService(t)
	u := newUser(t, st, "custom@example.com", "C", "")
	ctx := context.Background()

	book, err := svc.Create(ctx, u.ID, CreateInput{
		Title:    "Mine",
		Category: "Custom Book",
		Prompt:   "a memoir",
		Chapters: []generator.ChapterPrompt{
			{Title: "Early Years", Prompt: "childhood"},
			{Prompt: "college"},
			{Title: "Work", Prompt: "first job"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	rows, err := svc.ListChapters(ctx, book.ID)
	if err != nil {
		t.Fatalf("list chapters: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 chapter rows, got %d", len(rows))
	}
	if rows[0].Title != "Early Years" || rows[0].ChapterOrder != 1 || rows[1].ChapterOrder != 2 || rows[2].ChapterOrder != 3 {
		t.Fatalf("unexpected rows %+v", rows)
	}
	if rows[1].Title != "Chapter 2" {
		t.Fatalf("expected positional title, got %q", rows[1].Title)
	}
}

func TestCreatePhotoBookWritesImageRows(t *testing.T) {
	svc, st, _ := newTestService(t)
	u := newUser(t, st, "photo@example.com", "P", "")
	ctx := context.Background()

	book, err := svc.Create(ctx, u.ID, CreateInput{
		Title:    "Summer",
		Category: "Photo Book",
		Prompt:   "our summer trip",
		Images: []generator.ImageInput{
			{Filename: "a.jpg", URL: "book-images/1/a.jpg", Description: "the lake"},
			{Filename: "b.jpg", URL: "https://cdn.example.com/b.jpg", Description: "the tent"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	images, _ := svc.ListImages(ctx, book.ID)
	if len(images) != 2 || images[0].ImageOrder != 1 || images[1].ImageOrder != 2 {
		t.Fatalf("unexpected image rows %+v", images)
	}
	doc, _ := ebook.ParseDocument(book.Content)
	if doc.Chapters[1].Content != "From the lake, to the tent." {
		t.Fatalf("unexpected gallery narrative %q", doc.Chapters[1].Content)
	}
}

func TestGetOwned(t *testing.T) {
	svc, st, _ := newTestService(t)
	owner := newUser(t, st, "owner@example.com", "O", "")
	other := newUser(t, st, "other@example.com", "X", "")
	ctx := context.Background()

	book, err := svc.Create(ctx, owner.ID, CreateInput{Title: "T", Category: "Fantasy", Prompt: "dragons"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.GetOwned(ctx, owner.ID, book.ID); err != nil {
		t.Fatalf("owner should read: %v", err)
	}
	if _, err := svc.GetOwned(ctx, other.ID, book.ID); !errors.Is(err, ebook.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.GetOwned(ctx, owner.ID, book.ID+100); !errors.Is(err, ebook.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateCoalesces(t *testing.T) {
	svc, st, _ := newTestService(t)
	u := newUser(t, st, "u@example.com", "U", "")
	ctx := context.Background()
	book, err := svc.Create(ctx, u.ID, CreateInput{Title: "Original", Category: "Romance", Prompt: "two strangers"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.Update(ctx, book.ID, UpdateInput{Title: strPtr("Renamed"), Author: strPtr("  ")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Renamed" {
		t.Fatalf("expected new title, got %q", updated.Title)
	}
	if updated.Author != book.Author || updated.Status != book.Status {
		t.Fatalf("expected untouched fields to be kept, got %+v", updated)
	}
	if string(updated.Content) != string(book.Content) {
		t.Fatal("expected content to be kept")
	}

	legacy, err := svc.Update(ctx, book.ID, UpdateInput{Status: strPtr("GENERATED")})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if legacy.Status != string(ebook.StatusCompleted) {
		t.Fatalf("expected normalised status, got %q", legacy.Status)
	}

	if _, err := svc.Update(ctx, book.ID, UpdateInput{Status: strPtr("archived")}); !ebook.IsValidation(err) {
		t.Fatalf("expected validation error for status, got %v", err)
	}
	if _, err := svc.Update(ctx, book.ID, UpdateInput{Content: json.RawMessage(`"not json"`)}); !ebook.IsValidation(err) {
		t.Fatalf("expected validation error for content, got %v", err)
	}

	content := json.RawMessage(`{"title":"Renamed","author":"U","chapters":[{"title":"Only","content":"one"}]}`)
	withContent, err := svc.Update(ctx, book.ID, UpdateInput{Content: content})
	if err != nil {
		t.Fatalf("update content: %v", err)
	}
	doc, _ := ebook.ParseDocument(withContent.Content)
	if len(doc.Chapters) != 1 || doc.Chapters[0].Title != "Only" {
		t.Fatalf("content not replaced: %+v", doc)
	}

	if _, err := svc.Update(ctx, 9999, UpdateInput{Title: strPtr("x")}); !errors.Is(err, ebook.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteRemovesRowsAndObjects(t *testing.T) {
	svc, st, remover := newTestService(t)
	u := newUser(t, st, "d@example.com", "D", "")
	ctx := context.Background()

	book, err := svc.Create(ctx, u.ID, CreateInput{
		Title: "Album", Category: "photo-book", Prompt: "trip",
		Images: []generator.ImageInput{
			{Filename: "a.jpg", URL: "book-images/1/a.jpg"},
			{Filename: "b.jpg", URL: "https://example.com/b.jpg"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.RecordExport(ctx, book.ID, "exports/1/1/x.pdf", "pdf"); err != nil {
		t.Fatalf("record export: %v", err)
	}

	if err := svc.Delete(ctx, book.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, book.ID); !errors.Is(err, ebook.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	images, _ := st.ListImages(ctx, book.ID)
	if len(images) != 0 {
		t.Fatalf("expected images cascaded, got %d", len(images))
	}
	want := map[string]bool{"exports/1/1/x.pdf": true, "book-images/1/a.jpg": true}
	if len(remover.removed) != len(want) {
		t.Fatalf("unexpected removals %v", remover.removed)
	}
	for _, key := range remover.removed {
		if !want[key] {
			t.Fatalf("unexpected removal %q", key)
		}
	}
}

func TestDeleteKeepsImagesSharedWithOtherBooks(t *testing.T) {
	svc, st, remover := newTestService(t)
	u := newUser(t, st, "share@example.com", "S", "")
	ctx := context.Background()

	const shared = "book-images/1/shared.jpg"
	create := func(title string, urls ...string) database.Book {
		t.Helper()
		var images []generator.ImageInput
		for _, url := range urls {
			images = append(images, generator.ImageInput{Filename: "p.jpg", URL: url})
		}
		book, err := svc.Create(ctx, u.ID, CreateInput{Title: title, Category: "Photo Book", Prompt: "trip", Images: images})
		if err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
		return book
	}
	first := create("First", shared, "book-images/1/only-first.jpg")
	second := create("Second", shared)

	if err := svc.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(remover.removed) != 1 || remover.removed[0] != "book-images/1/only-first.jpg" {
		t.Fatalf("only the unshared object should be removed, got %v", remover.removed)
	}

	// 同一本书内两行引用同一 key：删除一行时保留对象
	extra, err := svc.CreateImage(ctx, second.ID, ImageInput{Filename: "again.jpg", URL: shared})
	if err != nil {
		t.Fatalf("create image: %v", err)
	}
	if err := svc.DeleteImage(ctx, second.ID, extra.ID); err != nil {
		t.Fatalf("delete image: %v", err)
	}
	if len(remover.removed) != 1 {
		t.Fatalf("shared object removed while still referenced: %v", remover.removed)
	}

	if err := svc.Delete(ctx, second.ID); err != nil {
		t.Fatalf("delete second: %v", err)
	}
	if len(remover.removed) != 2 || remover.removed[1] != shared {
		t.Fatalf("last reference gone, expected %q removed, got %v", shared, remover.removed)
	}
}

func TestChapterCRUD(t *testing.T) {
	svc, st, _ := newTestService(t)
	u := newUser(t, st, "ch@example.com", "C", "")
	ctx := context.Background()
	book, _ := svc.Create(ctx, u.ID, CreateInput{Title: "T", Category: "Educational", Prompt: "rivers"})
	other, _ := svc.Create(ctx, u.ID, CreateInput{Title: "O", Category: "Educational", Prompt: "lakes"})

	first, err := svc.CreateChapter(ctx, book.ID, ChapterInput{Title: "One", Content: "a"})
	if err != nil {
		t.Fatalf("create chapter: %v", err)
	}
	second, err := svc.CreateChapter(ctx, book.ID, ChapterInput{Title: "Two", Content: "b"})
	if err != nil {
		t.Fatalf("create chapter: %v", err)
	}
	if first.ChapterOrder != 1 || second.ChapterOrder != 2 {
		t.Fatalf("expected appended order, got %d and %d", first.ChapterOrder, second.ChapterOrder)
	}
	if _, err := svc.CreateChapter(ctx, book.ID, ChapterInput{Title: "Dup", Order: intPtr(2)}); !errors.Is(err, ebook.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := svc.CreateChapter(ctx, book.ID, ChapterInput{Title: " "}); !ebook.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	updated, err := svc.UpdateChapter(ctx, book.ID, first.ID, ChapterUpdate{Content: strPtr("rewritten")})
	if err != nil {
		t.Fatalf("update chapter: %v", err)
	}
	if updated.Title != "One" || updated.Content != "rewritten" {
		t.Fatalf("unexpected update %+v", updated)
	}
	if _, err := svc.UpdateChapter(ctx, other.ID, first.ID, ChapterUpdate{}); !errors.Is(err, ebook.ErrNotFound) {
		t.Fatalf("expected not found across books, got %v", err)
	}

	if err := svc.DeleteChapter(ctx, book.ID, second.ID); err != nil {
		t.Fatalf("delete chapter: %v", err)
	}
	rows, _ := svc.ListChapters(ctx, book.ID)
	if len(rows) != 1 {
		t.Fatalf("expected 1 chapter left, got %d", len(rows))
	}
}

func TestImageUpdateAndDelete(t *testing.T) {
	svc, st, remover := newTestService(t)
	u := newUser(t, st, "img@example.com", "I", "")
	ctx := context.Background()
	book, _ := svc.Create(ctx, u.ID, CreateInput{Title: "T", Category: "Biography", Prompt: "a life"})

	if _, err := svc.CreateImage(ctx, book.ID, ImageInput{}); !ebook.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	img, err := svc.CreateImage(ctx, book.ID, ImageInput{Filename: "p.png", URL: "book-images/1/p.png", Caption: "old", Order: 4})
	if err != nil {
		t.Fatalf("create image: %v", err)
	}
	updated, err := svc.UpdateImage(ctx, book.ID, img.ID, ImageUpdate{Description: strPtr("portrait")})
	if err != nil {
		t.Fatalf("update image: %v", err)
	}
	if updated.Caption != "old" || updated.Description != "portrait" || updated.ImageOrder != 4 {
		t.Fatalf("unexpected update %+v", updated)
	}
	if err := svc.DeleteImage(ctx, book.ID, img.ID); err != nil {
		t.Fatalf("delete image: %v", err)
	}
	if len(remover.removed) != 1 || remover.removed[0] != "book-images/1/p.png" {
		t.Fatalf("expected uploaded object removed, got %v", remover.removed)
	}
}

func TestExportSourceOverlaysRows(t *testing.T) {
	svc, st, _ := newTestService(t)
	u := newUser(t, st, "x@example.com", "X", "")
	ctx := context.Background()
	book, err := svc.Create(ctx, u.ID, CreateInput{
		Title: "Custom", Category: "Custom Book", Prompt: "p",
		Chapters: []generator.ChapterPrompt{{Title: "A", Prompt: "first"}, {Title: "B", Prompt: "second"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	rows, _ := svc.ListChapters(ctx, book.ID)
	if _, err := svc.UpdateChapter(ctx, book.ID, rows[0].ID, ChapterUpdate{Order: intPtr(3), Content: strPtr("moved")}); err != nil {
		t.Fatalf("reorder: %v", err)
	}

	src, err := svc.ExportSource(ctx, book.ID)
	if err != nil {
		t.Fatalf("export source: %v", err)
	}
	doc, err := ebook.ParseDocument(src.Content)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(doc.Chapters) != 2 || doc.Chapters[0].Title != "B" || doc.Chapters[1].Content != "moved" {
		t.Fatalf("expected rows in ascending order, got %+v", doc.Chapters)
	}

	stored, _ := svc.Get(ctx, book.ID)
	if string(stored.Content) != string(book.Content) {
		t.Fatal("export source must not persist the overlay")
	}
}
