package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"ebookGen/internal/database"
	"ebookGen/internal/ebook"
)

// MemoryStore keeps records in-process. Used by tests and DATABASE_DRIVER=memory.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   uint
	users    map[uint]database.User
	email    map[string]uint // email -> user ID
	books    map[uint]database.Book
	chapters map[uint]database.Chapter
	images   map[uint]database.Image
	now      func() time.Time
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uint]database.User),
		email:    make(map[string]uint),
		books:    make(map[uint]database.Book),
		chapters: make(map[uint]database.Chapter),
		images:   make(map[uint]database.Image),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// id 在所有表之间共享一个自增序列，足够区分记录。
func (m *MemoryStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *MemoryStore) CreateUser(_ context.Context, u *database.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = normalizeEmail(u.Email)
	if _, taken := m.email[u.Email]; taken {
		return ebook.ErrConflict
	}
	u.ID = m.id()
	u.CreatedAt = m.now()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	stored.Books = nil
	m.users[u.ID] = stored
	m.email[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id uint) (database.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return database.User{}, ebook.ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (database.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[normalizeEmail(email)]
	if !ok {
		return database.User{}, ebook.ErrNotFound
	}
	return m.users[id], nil
}

func (m *MemoryStore) SaveUser(_ context.Context, u *database.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.users[u.ID]
	if !ok {
		return ebook.ErrNotFound
	}
	u.Email = normalizeEmail(u.Email)
	if u.Email != prev.Email {
		if _, taken := m.email[u.Email]; taken {
			return ebook.ErrConflict
		}
		delete(m.email, prev.Email)
		m.email[u.Email] = u.ID
	}
	u.UpdatedAt = m.now()
	stored := *u
	stored.Books = nil
	m.users[u.ID] = stored
	return nil
}

func (m *MemoryStore) CreateBook(_ context.Context, b *database.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[b.UserID]; !ok {
		return ebook.WrapStore("create book", errUnknownUser)
	}
	b.ID = m.id()
	b.CreatedAt = m.now()
	b.UpdatedAt = b.CreatedAt
	m.books[b.ID] = detachBook(*b)
	return nil
}

func (m *MemoryStore) GetBook(_ context.Context, id uint) (database.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	if !ok {
		return database.Book{}, ebook.ErrNotFound
	}
	return b, nil
}

func (m *MemoryStore) ListBooksByUser(_ context.Context, userID uint) ([]database.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Book, 0)
	for _, b := range m.books {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) SaveBook(_ context.Context, b *database.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[b.ID]; !ok {
		return ebook.ErrNotFound
	}
	b.UpdatedAt = m.now()
	m.books[b.ID] = detachBook(*b)
	return nil
}

func (m *MemoryStore) DeleteBook(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[id]; !ok {
		return ebook.ErrNotFound
	}
	for cid, ch := range m.chapters {
		if ch.BookID == id {
			delete(m.chapters, cid)
		}
	}
	for iid, img := range m.images {
		if img.BookID == id {
			delete(m.images, iid)
		}
	}
	delete(m.books, id)
	return nil
}

func (m *MemoryStore) ListChapters(_ context.Context, bookID uint) ([]database.Chapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Chapter, 0)
	for _, ch := range m.chapters {
		if ch.BookID == bookID {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChapterOrder != out[j].ChapterOrder {
			return out[i].ChapterOrder < out[j].ChapterOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) GetChapter(_ context.Context, id uint) (database.Chapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.chapters[id]
	if !ok {
		return database.Chapter{}, ebook.ErrNotFound
	}
	return ch, nil
}

func (m *MemoryStore) CreateChapter(_ context.Context, ch *database.Chapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[ch.BookID]; !ok {
		return ebook.WrapStore("create chapter", errUnknownBook)
	}
	if m.chapterOrderTaken(ch.BookID, ch.ChapterOrder, 0) {
		return ebook.ErrConflict
	}
	ch.ID = m.id()
	ch.CreatedAt = m.now()
	ch.UpdatedAt = ch.CreatedAt
	m.chapters[ch.ID] = *ch
	return nil
}

func (m *MemoryStore) SaveChapter(_ context.Context, ch *database.Chapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chapters[ch.ID]; !ok {
		return ebook.ErrNotFound
	}
	if m.chapterOrderTaken(ch.BookID, ch.ChapterOrder, ch.ID) {
		return ebook.ErrConflict
	}
	ch.UpdatedAt = m.now()
	m.chapters[ch.ID] = *ch
	return nil
}

func (m *MemoryStore) DeleteChapter(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chapters[id]; !ok {
		return ebook.ErrNotFound
	}
	delete(m.chapters, id)
	return nil
}

// chapterOrderTaken must be called with the lock held.
func (m *MemoryStore) chapterOrderTaken(bookID uint, order int, except uint) bool {
	for id, ch := range m.chapters {
		if id != except && ch.BookID == bookID && ch.ChapterOrder == order {
			return true
		}
	}
	return false
}

func (m *MemoryStore) ListImages(_ context.Context, bookID uint) ([]database.Image, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Image, 0)
	for _, img := range m.images {
		if img.BookID == bookID {
			out = append(out, img)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ImageOrder != out[j].ImageOrder {
			return out[i].ImageOrder < out[j].ImageOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) GetImage(_ context.Context, id uint) (database.Image, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	img, ok := m.images[id]
	if !ok {
		return database.Image{}, ebook.ErrNotFound
	}
	return img, nil
}

func (m *MemoryStore) CreateImage(_ context.Context, img *database.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[img.BookID]; !ok {
		return ebook.WrapStore("create image", errUnknownBook)
	}
	img.ID = m.id()
	img.CreatedAt = m.now()
	img.UpdatedAt = img.CreatedAt
	m.images[img.ID] = *img
	return nil
}

func (m *MemoryStore) SaveImage(_ context.Context, img *database.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.images[img.ID]; !ok {
		return ebook.ErrNotFound
	}
	img.UpdatedAt = m.now()
	m.images[img.ID] = *img
	return nil
}

func (m *MemoryStore) DeleteImage(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.images[id]; !ok {
		return ebook.ErrNotFound
	}
	delete(m.images, id)
	return nil
}

func (m *MemoryStore) CountImagesByURL(_ context.Context, url string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, img := range m.images {
		if img.URL == url {
			n++
		}
	}
	return n, nil
}

// detachBook drops association slices so callers never share them with the store.
func detachBook(b database.Book) database.Book {
	b.User = database.User{}
	b.Chapters = nil
	b.Images = nil
	return b
}
