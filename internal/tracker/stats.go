package tracker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"readingtracker/internal/models"
	"readingtracker/internal/storage"
)

// Report bundles everything the statistics screen shows
type Report struct {
	Totals          models.Totals         `json:"totals"`
	CompletionRate  float64               `json:"completion_rate"`
	OverallProgress float64               `json:"overall_progress"`
	FinishedByMonth []models.MonthlyCount `json:"finished_by_month"`
	PagesByMonth    []models.MonthlyPages `json:"pages_by_month"`
}

// windowStart is the beginning of the trailing twelve-month window
func windowStart(now time.Time) time.Time {
	return now.AddDate(-1, 0, 0)
}

// MonthStart returns the first instant of the calendar month containing t in loc
func MonthStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

// MonthlyFinishedCounts counts books finished per calendar month.
//
// Rules:
// 1. Only Finished books with a finish date in the trailing 12 months count
// 2. Books are bucketed by the first day of their finish month in loc
// 3. Months without finishes are absent from the result
// 4. Buckets are returned in ascending month order
func MonthlyFinishedCounts(books []models.Book, now time.Time, loc *time.Location) []models.MonthlyCount {
	since := windowStart(now)
	buckets := make(map[time.Time]int)

	for _, b := range books {
		if b.Status != models.StatusFinished || b.FinishDate == nil {
			continue
		}
		if b.FinishDate.Before(since) {
			continue
		}
		buckets[MonthStart(*b.FinishDate, loc)]++
	}

	result := make([]models.MonthlyCount, 0, len(buckets))
	for month, count := range buckets {
		result = append(result, models.MonthlyCount{Month: month, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Month.Before(result[j].Month)
	})
	return result
}

// MonthlyPagesRead sums pages read per calendar month over sessions in the
// trailing 12 months. Like MonthlyFinishedCounts the result is sparse and ascending.
func MonthlyPagesRead(sessions []models.ReadingSession, now time.Time, loc *time.Location) []models.MonthlyPages {
	since := windowStart(now)
	buckets := make(map[time.Time]int)

	for _, s := range sessions {
		if s.Date.Before(since) {
			continue
		}
		buckets[MonthStart(s.Date, loc)] += s.PagesRead()
	}

	result := make([]models.MonthlyPages, 0, len(buckets))
	for month, pages := range buckets {
		result = append(result, models.MonthlyPages{Month: month, Pages: pages})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Month.Before(result[j].Month)
	})
	return result
}

// ComputeTotals aggregates over every book with no time window.
// Read pages are capped at the page count of each book.
func ComputeTotals(books []models.Book) models.Totals {
	var t models.Totals
	for _, b := range books {
		t.TotalBooks++
		switch b.Status {
		case models.StatusFinished:
			t.TotalFinished++
		case models.StatusReading:
			t.TotalReading++
		}
		t.TotalPages += b.TotalPages
		t.TotalReadPages += min(b.CurrentPage, b.TotalPages)
	}
	return t
}

// MonthlyFinishedCounts loads finished books and buckets them by month
func (t *Tracker) MonthlyFinishedCounts(ctx context.Context) ([]models.MonthlyCount, error) {
	finished := models.StatusFinished
	books, err := t.db.ListBooks(ctx, storage.BookQuery{Status: &finished})
	if err != nil {
		return nil, fmt.Errorf("failed to list finished books: %w", err)
	}
	return MonthlyFinishedCounts(books, t.now(), t.loc), nil
}

// MonthlyPagesRead loads the sessions of the last year and buckets them by month
func (t *Tracker) MonthlyPagesRead(ctx context.Context) ([]models.MonthlyPages, error) {
	now := t.now()
	sessions, err := t.db.ListSessions(ctx, storage.SessionQuery{Since: windowStart(now)})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return MonthlyPagesRead(sessions, now, t.loc), nil
}

// Totals aggregates over the whole library
func (t *Tracker) Totals(ctx context.Context) (models.Totals, error) {
	books, err := t.db.ListBooks(ctx, storage.BookQuery{})
	if err != nil {
		return models.Totals{}, fmt.Errorf("failed to list books: %w", err)
	}
	return ComputeTotals(books), nil
}

// Report computes totals, ratios and both monthly series
func (t *Tracker) Report(ctx context.Context) (*Report, error) {
	now := t.now()

	books, err := t.db.ListBooks(ctx, storage.BookQuery{})
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	sessions, err := t.db.ListSessions(ctx, storage.SessionQuery{Since: windowStart(now)})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	totals := ComputeTotals(books)
	report := &Report{
		Totals:          totals,
		CompletionRate:  totals.CompletionRate(),
		OverallProgress: totals.OverallProgress(),
		FinishedByMonth: MonthlyFinishedCounts(books, now, t.loc),
		PagesByMonth:    MonthlyPagesRead(sessions, now, t.loc),
	}

	t.logger.Debug("Generated statistics report",
		zap.Int("total_books", totals.TotalBooks),
		zap.Int("finished_months", len(report.FinishedByMonth)),
		zap.Int("page_months", len(report.PagesByMonth)),
	)
	return report, nil
}
