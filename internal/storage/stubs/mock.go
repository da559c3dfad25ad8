package stubs

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"readingtracker/internal/models"
	"readingtracker/internal/storage"
)

// MockDB is an in-memory implementation of the Storage interface for testing
// and for running without ClickHouse
type MockDB struct {
	mu        sync.RWMutex
	books     map[string]models.Book
	sessions  map[string]models.ReadingSession
	notes     map[string]models.Note
	reminders map[string]models.Reminder

	failWrites int
	failErr    error
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		books:     make(map[string]models.Book),
		sessions:  make(map[string]models.ReadingSession),
		notes:     make(map[string]models.Note),
		reminders: make(map[string]models.Reminder),
	}
}

// FailWrites makes the next n write operations return err without changing state
func (m *MockDB) FailWrites(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = n
	m.failErr = err
}

// writeErr must be called with the write lock held
func (m *MockDB) writeErr() error {
	if m.failWrites > 0 {
		m.failWrites--
		return m.failErr
	}
	return nil
}

// Initialize does nothing; the mock needs no schema
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

// CreateBook stores a new book
func (m *MockDB) CreateBook(ctx context.Context, book *models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writeErr(); err != nil {
		return err
	}
	m.books[book.ID] = copyBook(*book)
	return nil
}

// GetBook returns a copy of the stored book
func (m *MockDB) GetBook(ctx context.Context, id string) (*models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	book, ok := m.books[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	b := copyBook(book)
	return &b, nil
}

// ListBooks returns books matching the query
func (m *MockDB) ListBooks(ctx context.Context, query storage.BookQuery) ([]models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	search := strings.ToLower(query.Search)
	var books []models.Book
	for _, book := range m.books {
		if query.Status != nil && book.Status != *query.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(book.Title), search) &&
			!strings.Contains(strings.ToLower(book.Author), search) {
			continue
		}
		books = append(books, copyBook(book))
	}

	switch query.Sort {
	case storage.SortTitleAsc:
		sort.Slice(books, func(i, j int) bool {
			if books[i].Title != books[j].Title {
				return books[i].Title < books[j].Title
			}
			return books[i].ID < books[j].ID
		})
	default:
		sort.Slice(books, func(i, j int) bool {
			if !books[i].AddedDate.Equal(books[j].AddedDate) {
				return books[i].AddedDate.After(books[j].AddedDate)
			}
			return books[i].ID > books[j].ID
		})
	}

	return books, nil
}

// UpdateBook replaces a stored book
func (m *MockDB) UpdateBook(ctx context.Context, book *models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.books[book.ID]; !ok {
		return storage.ErrNotFound
	}
	if err := m.writeErr(); err != nil {
		return err
	}
	m.books[book.ID] = copyBook(*book)
	return nil
}

// DeleteBook removes a book and everything it owns
func (m *MockDB) DeleteBook(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.books[id]; !ok {
		return storage.ErrNotFound
	}
	if err := m.writeErr(); err != nil {
		return err
	}

	delete(m.books, id)
	for sid, s := range m.sessions {
		if s.BookID == id {
			delete(m.sessions, sid)
		}
	}
	for nid, n := range m.notes {
		if n.BookID == id {
			delete(m.notes, nid)
		}
	}
	return nil
}

// AppendSession stores a session and the optional book update together
func (m *MockDB) AppendSession(ctx context.Context, session *models.ReadingSession, book *models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.books[session.BookID]; !ok {
		return storage.ErrNotFound
	}
	if err := m.writeErr(); err != nil {
		return err
	}

	m.sessions[session.ID] = *session
	if book != nil {
		m.books[book.ID] = copyBook(*book)
	}
	return nil
}

// ListSessions returns sessions ordered by date descending
func (m *MockDB) ListSessions(ctx context.Context, query storage.SessionQuery) ([]models.ReadingSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sessions []models.ReadingSession
	for _, s := range m.sessions {
		if query.BookID != "" && s.BookID != query.BookID {
			continue
		}
		if !query.Since.IsZero() && s.Date.Before(query.Since) {
			continue
		}
		sessions = append(sessions, s)
	}

	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].Date.Equal(sessions[j].Date) {
			return sessions[i].Date.After(sessions[j].Date)
		}
		return sessions[i].ID > sessions[j].ID
	})

	return sessions, nil
}

// CreateNote stores a note for an existing book
func (m *MockDB) CreateNote(ctx context.Context, note *models.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.books[note.BookID]; !ok {
		return storage.ErrNotFound
	}
	if err := m.writeErr(); err != nil {
		return err
	}
	m.notes[note.ID] = *note
	return nil
}

// DeleteNote removes a note
func (m *MockDB) DeleteNote(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.notes[id]; !ok {
		return storage.ErrNotFound
	}
	if err := m.writeErr(); err != nil {
		return err
	}
	delete(m.notes, id)
	return nil
}

// ListNotes returns the notes of a book ordered by page number
func (m *MockDB) ListNotes(ctx context.Context, bookID string) ([]models.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var notes []models.Note
	for _, n := range m.notes {
		if n.BookID == bookID {
			notes = append(notes, n)
		}
	}

	sort.Slice(notes, func(i, j int) bool {
		if notes[i].PageNumber != notes[j].PageNumber {
			return notes[i].PageNumber < notes[j].PageNumber
		}
		return notes[i].CreatedAt.Before(notes[j].CreatedAt)
	})

	return notes, nil
}

// CreateReminder stores a reminder
func (m *MockDB) CreateReminder(ctx context.Context, reminder *models.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writeErr(); err != nil {
		return err
	}
	m.reminders[reminder.ID] = copyReminder(*reminder)
	return nil
}

// GetReminder returns a copy of the stored reminder
func (m *MockDB) GetReminder(ctx context.Context, id string) (*models.Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reminders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := copyReminder(r)
	return &c, nil
}

// UpdateReminder replaces a stored reminder
func (m *MockDB) UpdateReminder(ctx context.Context, reminder *models.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reminders[reminder.ID]; !ok {
		return storage.ErrNotFound
	}
	if err := m.writeErr(); err != nil {
		return err
	}
	m.reminders[reminder.ID] = copyReminder(*reminder)
	return nil
}

// DeleteReminder removes a reminder
func (m *MockDB) DeleteReminder(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reminders[id]; !ok {
		return storage.ErrNotFound
	}
	if err := m.writeErr(); err != nil {
		return err
	}
	delete(m.reminders, id)
	return nil
}

// ListReminders returns reminders ordered by time of day
func (m *MockDB) ListReminders(ctx context.Context) ([]models.Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var reminders []models.Reminder
	for _, r := range m.reminders {
		reminders = append(reminders, copyReminder(r))
	}

	sort.Slice(reminders, func(i, j int) bool {
		if reminders[i].Time.Minutes() != reminders[j].Time.Minutes() {
			return reminders[i].Time.Minutes() < reminders[j].Time.Minutes()
		}
		return reminders[i].ID < reminders[j].ID
	})

	return reminders, nil
}

// Close does nothing for mock DB
func (m *MockDB) Close() error {
	return nil
}

func copyBook(b models.Book) models.Book {
	if b.StartDate != nil {
		t := *b.StartDate
		b.StartDate = &t
	}
	if b.FinishDate != nil {
		t := *b.FinishDate
		b.FinishDate = &t
	}
	return b
}

func copyReminder(r models.Reminder) models.Reminder {
	r.Weekdays = append([]time.Weekday(nil), r.Weekdays...)
	return r
}
