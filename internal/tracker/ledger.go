package tracker

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"readingtracker/internal/ids"
	"readingtracker/internal/models"
	"readingtracker/internal/storage"
)

// SessionInput describes a reading interval to append to the ledger
type SessionInput struct {
	StartPage int
	EndPage   int
	Duration  float64 // minutes
}

func validateSession(in SessionInput, totalPages int) error {
	if in.StartPage < 0 {
		return invalid("start_page", "must not be negative, got %d", in.StartPage)
	}
	if in.EndPage <= in.StartPage {
		return invalid("end_page", "must be greater than start page %d, got %d", in.StartPage, in.EndPage)
	}
	if in.EndPage > totalPages {
		return invalid("end_page", "must not exceed %d pages, got %d", totalPages, in.EndPage)
	}
	if math.IsNaN(in.Duration) || math.IsInf(in.Duration, 0) || in.Duration <= 0 {
		return invalid("duration", "must be a positive number of minutes, got %v", in.Duration)
	}
	return nil
}

// advanceBookmark applies the session end page to the book.
// It reports false, leaving the book untouched, when the session does not
// move the bookmark forward.
func advanceBookmark(b *models.Book, endPage int, now time.Time) bool {
	if endPage <= b.CurrentPage {
		return false
	}
	applyPage(b, endPage, now)
	return true
}

// AppendSession records a reading session and advances the bookmark when the
// session ends past it. The session and the book update are written together.
func (t *Tracker) AppendSession(ctx context.Context, bookID string, in SessionInput) (*models.ReadingSession, *models.Book, error) {
	book, err := t.db.GetBook(ctx, bookID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get book %s: %w", bookID, err)
	}

	if err := validateSession(in, book.TotalPages); err != nil {
		return nil, nil, err
	}

	now := t.now()
	session := &models.ReadingSession{
		ID:        ids.New(),
		BookID:    book.ID,
		Date:      now,
		StartPage: in.StartPage,
		EndPage:   in.EndPage,
		Duration:  in.Duration,
	}

	var changed *models.Book
	if advanceBookmark(book, in.EndPage, now) {
		changed = book
	}

	if err := t.persist(ctx, "append reading session", func(ctx context.Context) error {
		return t.db.AppendSession(ctx, session, changed)
	}); err != nil {
		return nil, nil, err
	}

	t.logger.Info("Reading session recorded",
		zap.String("book_id", book.ID),
		zap.String("session_id", session.ID),
		zap.Int("start_page", session.StartPage),
		zap.Int("end_page", session.EndPage),
		zap.Float64("duration_minutes", session.Duration),
		zap.Bool("bookmark_advanced", changed != nil),
		zap.Stringer("status", book.Status),
	)
	return session, book, nil
}

// SessionsForBook returns all sessions of a book, newest first
func (t *Tracker) SessionsForBook(ctx context.Context, bookID string) ([]models.ReadingSession, error) {
	if _, err := t.db.GetBook(ctx, bookID); err != nil {
		return nil, fmt.Errorf("failed to get book %s: %w", bookID, err)
	}

	sessions, err := t.db.ListSessions(ctx, storage.SessionQuery{BookID: bookID})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// TotalReadingTime sums the durations of the given sessions
func TotalReadingTime(sessions []models.ReadingSession) time.Duration {
	var minutes float64
	for _, s := range sessions {
		minutes += s.Duration
	}
	return time.Duration(minutes * float64(time.Minute))
}
