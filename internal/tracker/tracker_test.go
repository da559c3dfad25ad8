package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"readingtracker/internal/models"
	"readingtracker/internal/storage/stubs"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// setupTracker creates a tracker over an empty mock store with a fixed clock
func setupTracker(t *testing.T) (*Tracker, *stubs.MockDB, *fakeClock) {
	t.Helper()

	db := stubs.NewMockDB()
	require.NoError(t, db.Initialize(context.Background()))

	clock := &fakeClock{now: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)}
	tr := New(db, zap.NewNop(),
		WithClock(clock.Now),
		WithLocation(time.UTC),
		WithRetry(2, time.Millisecond),
	)
	return tr, db, clock
}

func addBook(t *testing.T, tr *Tracker, pages int) *models.Book {
	t.Helper()

	book, err := tr.AddBook(context.Background(), NewBook{Title: "Test Book", Author: "Author", TotalPages: pages})
	require.NoError(t, err)
	return book
}
