package tracker

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"readingtracker/internal/ids"
	"readingtracker/internal/models"
	"readingtracker/internal/storage"
)

// NewBook holds the user input for adding a book
type NewBook struct {
	Title      string
	Author     string
	TotalPages int
}

// BookFilter narrows a book listing
type BookFilter struct {
	Status *models.Status
	Search string
}

// AddBook catalogs a new unread book
func (t *Tracker) AddBook(ctx context.Context, in NewBook) (*models.Book, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title", "must not be empty")
	}
	if in.TotalPages <= 0 {
		return nil, invalid("total_pages", "must be positive, got %d", in.TotalPages)
	}

	book := &models.Book{
		ID:         ids.New(),
		Title:      title,
		Author:     strings.TrimSpace(in.Author),
		TotalPages: in.TotalPages,
		Status:     models.StatusUnread,
		AddedDate:  t.now(),
	}

	if err := t.persist(ctx, "create book", func(ctx context.Context) error {
		return t.db.CreateBook(ctx, book)
	}); err != nil {
		return nil, err
	}

	t.logger.Info("Book added",
		zap.String("book_id", book.ID),
		zap.String("title", book.Title),
		zap.Int("total_pages", book.TotalPages),
	)
	return book, nil
}

// GetBook returns a single book
func (t *Tracker) GetBook(ctx context.Context, id string) (*models.Book, error) {
	book, err := t.db.GetBook(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get book %s: %w", id, err)
	}
	return book, nil
}

// ListBooks returns books matching the filter.
// A text search without a status filter is ordered by title, everything
// else by added date with the newest first.
func (t *Tracker) ListBooks(ctx context.Context, filter BookFilter) ([]models.Book, error) {
	query := storage.BookQuery{
		Status: filter.Status,
		Search: strings.TrimSpace(filter.Search),
		Sort:   storage.SortAddedDesc,
	}
	if query.Search != "" && query.Status == nil {
		query.Sort = storage.SortTitleAsc
	}

	books, err := t.db.ListBooks(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

// DeleteBook removes a book together with its sessions and notes
func (t *Tracker) DeleteBook(ctx context.Context, id string) error {
	if err := t.persist(ctx, "delete book", func(ctx context.Context) error {
		return t.db.DeleteBook(ctx, id)
	}); err != nil {
		return err
	}

	t.logger.Info("Book deleted", zap.String("book_id", id))
	return nil
}

// AddNote attaches a note to a page of a book
func (t *Tracker) AddNote(ctx context.Context, bookID, content string, page int) (*models.Note, error) {
	book, err := t.db.GetBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to get book %s: %w", bookID, err)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("content", "must not be empty")
	}
	if page < 0 || page > book.TotalPages {
		return nil, invalid("page", "must be between 0 and %d, got %d", book.TotalPages, page)
	}

	note := &models.Note{
		ID:         ids.New(),
		BookID:     book.ID,
		Content:    content,
		PageNumber: page,
		CreatedAt:  t.now(),
	}

	if err := t.persist(ctx, "create note", func(ctx context.Context) error {
		return t.db.CreateNote(ctx, note)
	}); err != nil {
		return nil, err
	}

	t.logger.Info("Note added",
		zap.String("book_id", book.ID),
		zap.String("note_id", note.ID),
		zap.Int("page", note.PageNumber),
	)
	return note, nil
}

// DeleteNote removes a note
func (t *Tracker) DeleteNote(ctx context.Context, id string) error {
	if err := t.persist(ctx, "delete note", func(ctx context.Context) error {
		return t.db.DeleteNote(ctx, id)
	}); err != nil {
		return err
	}

	t.logger.Info("Note deleted", zap.String("note_id", id))
	return nil
}

// NotesForBook returns the notes of a book ordered by page
func (t *Tracker) NotesForBook(ctx context.Context, bookID string) ([]models.Note, error) {
	if _, err := t.db.GetBook(ctx, bookID); err != nil {
		return nil, fmt.Errorf("failed to get book %s: %w", bookID, err)
	}

	notes, err := t.db.ListNotes(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}
