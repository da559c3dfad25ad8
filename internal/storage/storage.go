package storage

import (
	"context"
	"errors"
	"time"

	"readingtracker/internal/models"
)

// ErrNotFound is returned when the requested record does not exist
var ErrNotFound = errors.New("not found")

// BookSort selects the ordering of ListBooks results
type BookSort int

const (
	// SortAddedDesc orders books by added date, newest first
	SortAddedDesc BookSort = iota
	// SortTitleAsc orders books by title
	SortTitleAsc
)

// BookQuery filters and orders a book listing.
// A nil Status matches every status. Search is a case-insensitive substring
// matched against title and author; empty matches everything.
type BookQuery struct {
	Status *models.Status
	Search string
	Sort   BookSort
}

// SessionQuery filters a session listing.
// Empty BookID matches every book; zero Since matches every date.
type SessionQuery struct {
	BookID string
	Since  time.Time
}

// Storage defines the interface for data storage operations.
// Every method is a single logical write or read; implementations must make
// multi-record writes (cascade delete, session append) all-or-nothing.
type Storage interface {
	// Book operations
	CreateBook(ctx context.Context, book *models.Book) error
	GetBook(ctx context.Context, id string) (*models.Book, error)
	ListBooks(ctx context.Context, query BookQuery) ([]models.Book, error)
	UpdateBook(ctx context.Context, book *models.Book) error

	// DeleteBook removes the book together with its sessions and notes
	DeleteBook(ctx context.Context, id string) error

	// Session operations

	// AppendSession stores the session and, when book is non-nil, the updated
	// book in the same write
	AppendSession(ctx context.Context, session *models.ReadingSession, book *models.Book) error
	// ListSessions returns sessions ordered by date descending
	ListSessions(ctx context.Context, query SessionQuery) ([]models.ReadingSession, error)

	// Note operations
	CreateNote(ctx context.Context, note *models.Note) error
	DeleteNote(ctx context.Context, id string) error
	// ListNotes returns the notes of a book ordered by page number
	ListNotes(ctx context.Context, bookID string) ([]models.Note, error)

	// Reminder operations
	CreateReminder(ctx context.Context, reminder *models.Reminder) error
	GetReminder(ctx context.Context, id string) (*models.Reminder, error)
	UpdateReminder(ctx context.Context, reminder *models.Reminder) error
	DeleteReminder(ctx context.Context, id string) error
	// ListReminders returns reminders ordered by time of day
	ListReminders(ctx context.Context) ([]models.Reminder, error)

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}
