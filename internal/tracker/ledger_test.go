package tracker

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readingtracker/internal/models"
	"readingtracker/internal/storage"
)

func TestAppendSession_FinishesBook(t *testing.T) {
	tr, _, clock := setupTracker(t)
	ctx := context.Background()
	book := addBook(t, tr, 40)

	_, err := tr.SetCurrentPage(ctx, book.ID, 5)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	session, book, err := tr.AppendSession(ctx, book.ID, SessionInput{StartPage: 10, EndPage: 40, Duration: 30})
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, book.ID, session.BookID)
	assert.Equal(t, clock.now, session.Date)
	assert.Equal(t, 30, session.PagesRead())

	assert.Equal(t, 40, book.CurrentPage)
	assert.Equal(t, models.StatusFinished, book.Status)
	require.NotNil(t, book.FinishDate)
	assert.Equal(t, clock.now, *book.FinishDate)

	stored, err := tr.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, stored.Status)
}

func TestAppendSession_PromotesUnreadBook(t *testing.T) {
	tr, _, clock := setupTracker(t)
	ctx := context.Background()
	book := addBook(t, tr, 300)

	_, book, err := tr.AppendSession(ctx, book.ID, SessionInput{StartPage: 0, EndPage: 25, Duration: 20})
	require.NoError(t, err)

	assert.Equal(t, models.StatusReading, book.Status)
	assert.Equal(t, 25, book.CurrentPage)
	require.NotNil(t, book.StartDate)
	assert.Equal(t, clock.now, *book.StartDate)
}

func TestAppendSession_NeverMovesBookmarkBackward(t *testing.T) {
	tr, _, _ := setupTracker(t)
	ctx := context.Background()
	book := addBook(t, tr, 300)

	before, err := tr.SetCurrentPage(ctx, book.ID, 150)
	require.NoError(t, err)

	for _, in := range []SessionInput{
		{StartPage: 10, EndPage: 50, Duration: 15},
		{StartPage: 100, EndPage: 150, Duration: 15},
	} {
		session, after, err := tr.AppendSession(ctx, book.ID, in)
		require.NoError(t, err)
		assert.NotNil(t, session)
		assert.Equal(t, before.CurrentPage, after.CurrentPage)
		assert.Equal(t, before.Status, after.Status)
	}

	sessions, err := tr.SessionsForBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestAppendSession_Validation(t *testing.T) {
	testCases := []struct {
		name  string
		input SessionInput
		field string
	}{
		{"negative start", SessionInput{StartPage: -1, EndPage: 10, Duration: 5}, "start_page"},
		{"end equals start", SessionInput{StartPage: 10, EndPage: 10, Duration: 5}, "end_page"},
		{"end before start", SessionInput{StartPage: 20, EndPage: 10, Duration: 5}, "end_page"},
		{"end past last page", SessionInput{StartPage: 0, EndPage: 101, Duration: 5}, "end_page"},
		{"zero duration", SessionInput{StartPage: 0, EndPage: 10, Duration: 0}, "duration"},
		{"negative duration", SessionInput{StartPage: 0, EndPage: 10, Duration: -3}, "duration"},
		{"NaN duration", SessionInput{StartPage: 0, EndPage: 10, Duration: math.NaN()}, "duration"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr, _, _ := setupTracker(t)
			ctx := context.Background()
			book := addBook(t, tr, 100)

			_, _, err := tr.AppendSession(ctx, book.ID, tc.input)
			require.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)

			sessions, err := tr.SessionsForBook(ctx, book.ID)
			require.NoError(t, err)
			assert.Empty(t, sessions)

			stored, err := tr.GetBook(ctx, book.ID)
			require.NoError(t, err)
			assert.Equal(t, models.StatusUnread, stored.Status)
		})
	}
}

func TestAppendSession_FailedWriteLeavesNothingBehind(t *testing.T) {
	tr, db, _ := setupTracker(t)
	ctx := context.Background()
	book := addBook(t, tr, 100)

	db.FailWrites(10, errors.New("write failed"))
	_, _, err := tr.AppendSession(ctx, book.ID, SessionInput{StartPage: 0, EndPage: 100, Duration: 60})

	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "append reading session", perr.Op)

	db.FailWrites(0, nil)
	sessions, err := tr.SessionsForBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	stored, err := tr.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.CurrentPage)
	assert.Equal(t, models.StatusUnread, stored.Status)
}

func TestSessionsForBook_NewestFirst(t *testing.T) {
	tr, _, clock := setupTracker(t)
	ctx := context.Background()
	book := addBook(t, tr, 100)
	other := addBook(t, tr, 100)

	var ids []string
	for i := 0; i < 3; i++ {
		clock.Advance(time.Hour)
		s, _, err := tr.AppendSession(ctx, book.ID, SessionInput{StartPage: i * 10, EndPage: i*10 + 10, Duration: 12.5})
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}
	_, _, err := tr.AppendSession(ctx, other.ID, SessionInput{StartPage: 0, EndPage: 5, Duration: 5})
	require.NoError(t, err)

	sessions, err := tr.SessionsForBook(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, ids[2], sessions[0].ID)
	assert.Equal(t, ids[0], sessions[2].ID)

	assert.Equal(t, 37*time.Minute+30*time.Second, TotalReadingTime(sessions))

	_, err = tr.SessionsForBook(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
