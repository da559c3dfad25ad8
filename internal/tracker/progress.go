package tracker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"readingtracker/internal/models"
)

// applyStatus performs an explicit status change.
// The status is always assigned; side effects only fire on an actual change.
func applyStatus(b *models.Book, to models.Status, now time.Time) {
	from := b.Status
	b.Status = to
	if from == to {
		return
	}

	switch to {
	case models.StatusReading:
		if b.StartDate == nil {
			b.StartDate = stamp(now)
		}
	case models.StatusFinished:
		b.FinishDate = stamp(now)
		b.CurrentPage = b.TotalPages
	case models.StatusUnread:
		b.StartDate = nil
		b.FinishDate = nil
		b.CurrentPage = 0
	}
}

// applyPage moves the bookmark and derives the status from it.
// page must already be within [0, TotalPages].
func applyPage(b *models.Book, page int, now time.Time) {
	b.CurrentPage = page

	switch {
	case page >= b.TotalPages:
		markFinished(b, now)
	case b.Status == models.StatusFinished:
		// Moved back from the last page: Finished requires the bookmark at the end
		b.Status = models.StatusReading
		b.FinishDate = nil
		if b.StartDate == nil {
			b.StartDate = stamp(now)
		}
	case page > 0 && b.Status == models.StatusUnread:
		b.Status = models.StatusReading
		if b.StartDate == nil {
			b.StartDate = stamp(now)
		}
	}
}

// markFinished stamps FinishDate only on the transition into Finished
func markFinished(b *models.Book, now time.Time) {
	if b.Status != models.StatusFinished || b.FinishDate == nil {
		b.FinishDate = stamp(now)
	}
	b.Status = models.StatusFinished
	b.CurrentPage = b.TotalPages
}

// SetStatus explicitly changes the status of a book
func (t *Tracker) SetStatus(ctx context.Context, bookID string, status models.Status) (*models.Book, error) {
	if !status.Valid() {
		return nil, invalid("status", "unknown status %d", int(status))
	}

	book, err := t.db.GetBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to get book %s: %w", bookID, err)
	}

	from := book.Status
	applyStatus(book, status, t.now())

	if err := t.persist(ctx, "update book status", func(ctx context.Context) error {
		return t.db.UpdateBook(ctx, book)
	}); err != nil {
		return nil, err
	}

	t.logger.Info("Book status set",
		zap.String("book_id", book.ID),
		zap.Stringer("from", from),
		zap.Stringer("to", book.Status),
		zap.Int("current_page", book.CurrentPage),
	)
	return book, nil
}

// SetCurrentPage moves the bookmark of a book, promoting its status as needed.
// Pages outside [0, TotalPages] are rejected without mutation.
func (t *Tracker) SetCurrentPage(ctx context.Context, bookID string, page int) (*models.Book, error) {
	book, err := t.db.GetBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to get book %s: %w", bookID, err)
	}

	if page < 0 || page > book.TotalPages {
		return nil, invalid("page", "must be between 0 and %d, got %d", book.TotalPages, page)
	}

	from := book.Status
	applyPage(book, page, t.now())

	if err := t.persist(ctx, "update reading progress", func(ctx context.Context) error {
		return t.db.UpdateBook(ctx, book)
	}); err != nil {
		return nil, err
	}

	t.logger.Info("Reading progress updated",
		zap.String("book_id", book.ID),
		zap.Int("current_page", book.CurrentPage),
		zap.Stringer("from", from),
		zap.Stringer("to", book.Status),
	)
	return book, nil
}
