package tracker

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readingtracker/internal/models"
	"readingtracker/internal/storage"
)

func TestProgress_ReadThroughAndReset(t *testing.T) {
	tr, _, clock := setupTracker(t)
	ctx := context.Background()
	book := addBook(t, tr, 200)

	// Starting to read promotes an unread book
	started := clock.now
	book, err := tr.SetCurrentPage(ctx, book.ID, 50)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReading, book.Status)
	assert.Equal(t, 50, book.CurrentPage)
	require.NotNil(t, book.StartDate)
	assert.Equal(t, started, *book.StartDate)
	assert.Nil(t, book.FinishDate)

	// Reaching the last page finishes it
	clock.Advance(48 * time.Hour)
	book, err = tr.SetCurrentPage(ctx, book.ID, 200)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, book.Status)
	assert.Equal(t, 200, book.CurrentPage)
	require.NotNil(t, book.FinishDate)
	assert.Equal(t, clock.now, *book.FinishDate)
	assert.Equal(t, started, *book.StartDate)

	// Marking it unread is a full reset
	book, err = tr.SetStatus(ctx, book.ID, models.StatusUnread)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnread, book.Status)
	assert.Equal(t, 0, book.CurrentPage)
	assert.Nil(t, book.StartDate)
	assert.Nil(t, book.FinishDate)

	// The stored copy matches what was returned
	stored, err := tr.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book, stored)
}

func TestSetStatus_SideEffects(t *testing.T) {
	tr, _, clock := setupTracker(t)
	ctx := context.Background()
	book := addBook(t, tr, 300)

	book, err := tr.SetStatus(ctx, book.ID, models.StatusReading)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReading, book.Status)
	assert.Equal(t, 0, book.CurrentPage, "page is untouched when starting to read")
	require.NotNil(t, book.StartDate)
	firstStart := *book.StartDate

	clock.Advance(time.Hour)
	book, err = tr.SetStatus(ctx, book.ID, models.StatusFinished)
	require.NoError(t, err)
	assert.Equal(t, 300, book.CurrentPage, "finishing forces the bookmark to the end")
	require.NotNil(t, book.FinishDate)
	assert.Equal(t, clock.now, *book.FinishDate)

	// Back to reading keeps the original start date
	clock.Advance(time.Hour)
	book, err = tr.SetStatus(ctx, book.ID, models.StatusReading)
	require.NoError(t, err)
	assert.Equal(t, firstStart, *book.StartDate)
	assert.Equal(t, 300, book.CurrentPage)
}

func TestSetStatus_SameStatusHasNoSideEffects(t *testing.T) {
	for _, status := range []models.Status{models.StatusUnread, models.StatusReading, models.StatusFinished} {
		t.Run(status.String(), func(t *testing.T) {
			tr, _, clock := setupTracker(t)
			ctx := context.Background()
			book := addBook(t, tr, 120)

			book, err := tr.SetStatus(ctx, book.ID, status)
			require.NoError(t, err)

			clock.Advance(24 * time.Hour)
			again, err := tr.SetStatus(ctx, book.ID, status)
			require.NoError(t, err)

			assert.Equal(t, book.StartDate, again.StartDate)
			assert.Equal(t, book.FinishDate, again.FinishDate)
			assert.Equal(t, book.CurrentPage, again.CurrentPage)
			assert.Equal(t, status, again.Status)
		})
	}
}

func TestSetStatus_UnknownStatus(t *testing.T) {
	tr, _, _ := setupTracker(t)
	book := addBook(t, tr, 100)

	_, err := tr.SetStatus(context.Background(), book.ID, models.Status(7))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSetCurrentPage_OutOfRange(t *testing.T) {
	tr, _, _ := setupTracker(t)
	ctx := context.Background()
	book := addBook(t, tr, 100)

	_, err := tr.SetCurrentPage(ctx, book.ID, 40)
	require.NoError(t, err)

	for _, page := range []int{-1, 101, 1000} {
		_, err := tr.SetCurrentPage(ctx, book.ID, page)
		assert.ErrorIs(t, err, ErrValidation, "page %d", page)

		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "page", verr.Field)
	}

	stored, err := tr.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, stored.CurrentPage)
	assert.Equal(t, models.StatusReading, stored.Status)
}

func TestSetCurrentPage_ZeroDoesNotChangeStatus(t *testing.T) {
	tr, _, _ := setupTracker(t)
	ctx := context.Background()

	unread := addBook(t, tr, 100)
	book, err := tr.SetCurrentPage(ctx, unread.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnread, book.Status)
	assert.Nil(t, book.StartDate)

	reading := addBook(t, tr, 100)
	_, err = tr.SetCurrentPage(ctx, reading.ID, 30)
	require.NoError(t, err)
	book, err = tr.SetCurrentPage(ctx, reading.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReading, book.Status)
	assert.Equal(t, 0, book.CurrentPage)
}

func TestSetCurrentPage_FinishDateStampedOnce(t *testing.T) {
	tr, _, clock := setupTracker(t)
	ctx := context.Background()
	book := addBook(t, tr, 100)

	book, err := tr.SetCurrentPage(ctx, book.ID, 100)
	require.NoError(t, err)
	finished := *book.FinishDate

	clock.Advance(72 * time.Hour)
	book, err = tr.SetCurrentPage(ctx, book.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, book.Status)
	assert.Equal(t, finished, *book.FinishDate)
}

func TestSetCurrentPage_MovingBackReopensFinishedBook(t *testing.T) {
	tr, _, _ := setupTracker(t)
	ctx := context.Background()
	book := addBook(t, tr, 100)

	_, err := tr.SetStatus(ctx, book.ID, models.StatusFinished)
	require.NoError(t, err)

	book, err = tr.SetCurrentPage(ctx, book.ID, 60)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReading, book.Status)
	assert.Equal(t, 60, book.CurrentPage)
	assert.Nil(t, book.FinishDate)
	assert.NotNil(t, book.StartDate)
}

func TestProgress_InvariantsHoldUnderRandomUpdates(t *testing.T) {
	tr, _, clock := setupTracker(t)
	ctx := context.Background()
	book := addBook(t, tr, 50)

	rng := rand.New(rand.NewSource(1))
	statuses := []models.Status{models.StatusUnread, models.StatusReading, models.StatusFinished}

	for i := 0; i < 500; i++ {
		clock.Advance(time.Minute)

		var err error
		switch rng.Intn(3) {
		case 0:
			book, err = tr.SetStatus(ctx, book.ID, statuses[rng.Intn(len(statuses))])
		case 1:
			book, err = tr.SetCurrentPage(ctx, book.ID, rng.Intn(51))
		case 2:
			start := rng.Intn(50)
			end := start + 1 + rng.Intn(50-start)
			_, book, err = tr.AppendSession(ctx, book.ID, SessionInput{StartPage: start, EndPage: end, Duration: 10})
		}
		require.NoError(t, err)

		require.GreaterOrEqual(t, book.CurrentPage, 0)
		require.LessOrEqual(t, book.CurrentPage, book.TotalPages)
		if book.Status == models.StatusFinished {
			require.Equal(t, book.TotalPages, book.CurrentPage)
			require.NotNil(t, book.FinishDate)
		}
		if book.Status == models.StatusUnread {
			require.Equal(t, 0, book.CurrentPage)
			require.Nil(t, book.StartDate)
			require.Nil(t, book.FinishDate)
		}
	}
}

func TestProgress_PersistenceFailure(t *testing.T) {
	tr, db, _ := setupTracker(t)
	ctx := context.Background()
	book := addBook(t, tr, 100)

	boom := errors.New("connection reset")
	db.FailWrites(10, boom)

	_, err := tr.SetCurrentPage(ctx, book.ID, 100)
	require.Error(t, err)

	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.ErrorIs(t, err, boom)

	db.FailWrites(0, nil)
	stored, err := tr.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.CurrentPage)
	assert.Equal(t, models.StatusUnread, stored.Status)
}

func TestProgress_TransientFailureIsRetried(t *testing.T) {
	tr, db, _ := setupTracker(t)
	ctx := context.Background()
	book := addBook(t, tr, 100)

	db.FailWrites(1, errors.New("timeout"))

	book, err := tr.SetCurrentPage(ctx, book.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReading, book.Status)
}

func TestProgress_UnknownBook(t *testing.T) {
	tr, _, _ := setupTracker(t)
	ctx := context.Background()

	_, err := tr.SetCurrentPage(ctx, "missing", 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = tr.SetStatus(ctx, "missing", models.StatusReading)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
