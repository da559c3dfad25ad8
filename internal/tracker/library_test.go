package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readingtracker/internal/models"
	"readingtracker/internal/storage"
)

func TestAddBook(t *testing.T) {
	tr, _, clock := setupTracker(t)
	ctx := context.Background()

	book, err := tr.AddBook(ctx, NewBook{Title: "  The Hobbit ", Author: " J.R.R. Tolkien", TotalPages: 310})
	require.NoError(t, err)

	assert.NotEmpty(t, book.ID)
	assert.Equal(t, "The Hobbit", book.Title)
	assert.Equal(t, "J.R.R. Tolkien", book.Author)
	assert.Equal(t, 310, book.TotalPages)
	assert.Equal(t, 0, book.CurrentPage)
	assert.Equal(t, models.StatusUnread, book.Status)
	assert.Equal(t, clock.now, book.AddedDate)
	assert.Nil(t, book.StartDate)
	assert.Nil(t, book.FinishDate)

	_, err = tr.AddBook(ctx, NewBook{Title: "   ", TotalPages: 10})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = tr.AddBook(ctx, NewBook{Title: "Zero", TotalPages: 0})
	assert.ErrorIs(t, err, ErrValidation)

	books, err := tr.ListBooks(ctx, BookFilter{})
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestListBooks_FilterAndOrder(t *testing.T) {
	tr, _, clock := setupTracker(t)
	ctx := context.Background()

	add := func(title, author string) *models.Book {
		clock.Advance(time.Minute)
		b, err := tr.AddBook(ctx, NewBook{Title: title, Author: author, TotalPages: 100})
		require.NoError(t, err)
		return b
	}
	solaris := add("Solaris", "Stanislaw Lem")
	add("Neuromancer", "William Gibson")
	fiasco := add("Fiasco", "Stanislaw Lem")

	_, err := tr.SetCurrentPage(ctx, solaris.ID, 20)
	require.NoError(t, err)

	books, err := tr.ListBooks(ctx, BookFilter{})
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, fiasco.ID, books[0].ID, "newest first without a search")

	books, err = tr.ListBooks(ctx, BookFilter{Search: "lem"})
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Fiasco", books[0].Title, "search results are ordered by title")
	assert.Equal(t, "Solaris", books[1].Title)

	reading := models.StatusReading
	books, err = tr.ListBooks(ctx, BookFilter{Status: &reading, Search: "lem"})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, solaris.ID, books[0].ID)
}

func TestDeleteBook_Cascades(t *testing.T) {
	tr, _, _ := setupTracker(t)
	ctx := context.Background()
	book := addBook(t, tr, 100)
	keep := addBook(t, tr, 100)

	_, _, err := tr.AppendSession(ctx, book.ID, SessionInput{StartPage: 0, EndPage: 10, Duration: 5})
	require.NoError(t, err)
	_, err = tr.AddNote(ctx, book.ID, "first note", 5)
	require.NoError(t, err)
	_, _, err = tr.AppendSession(ctx, keep.ID, SessionInput{StartPage: 0, EndPage: 10, Duration: 5})
	require.NoError(t, err)

	require.NoError(t, tr.DeleteBook(ctx, book.ID))

	_, err = tr.GetBook(ctx, book.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	report, err := tr.Report(ctx)
	require.NoError(t, err)
	require.Len(t, report.PagesByMonth, 1)
	assert.Equal(t, 10, report.PagesByMonth[0].Pages, "sessions of the deleted book are gone")

	err = tr.DeleteBook(ctx, book.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNotes(t *testing.T) {
	tr, _, _ := setupTracker(t)
	ctx := context.Background()
	book := addBook(t, tr, 100)

	late, err := tr.AddNote(ctx, book.ID, "the twist", 90)
	require.NoError(t, err)
	early, err := tr.AddNote(ctx, book.ID, "  opening line  ", 0)
	require.NoError(t, err)
	assert.Equal(t, "opening line", early.Content)

	notes, err := tr.NotesForBook(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, early.ID, notes[0].ID)
	assert.Equal(t, late.ID, notes[1].ID)

	_, err = tr.AddNote(ctx, book.ID, "", 10)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = tr.AddNote(ctx, book.ID, "too far", 101)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = tr.AddNote(ctx, book.ID, "negative", -1)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = tr.AddNote(ctx, "missing", "orphan", 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, tr.DeleteNote(ctx, late.ID))
	notes, err = tr.NotesForBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	assert.ErrorIs(t, tr.DeleteNote(ctx, late.ID), storage.ErrNotFound)
}
