package models

import (
	"fmt"
	"time"
)

// Status is the reading lifecycle state of a book
type Status int

const (
	StatusUnread Status = iota
	StatusReading
	StatusFinished
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	return s >= StatusUnread && s <= StatusFinished
}

func (s Status) String() string {
	switch s {
	case StatusUnread:
		return "unread"
	case StatusReading:
		return "reading"
	case StatusFinished:
		return "finished"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseStatus converts the lowercase name produced by String back into a Status
func ParseStatus(s string) (Status, error) {
	switch s {
	case "unread":
		return StatusUnread, nil
	case "reading":
		return StatusReading, nil
	case "finished":
		return StatusFinished, nil
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// Book represents a tracked volume
type Book struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Author      string     `json:"author,omitempty"`
	TotalPages  int        `json:"total_pages"`
	CurrentPage int        `json:"current_page"`
	Status      Status     `json:"status"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	FinishDate  *time.Time `json:"finish_date,omitempty"`
	AddedDate   time.Time  `json:"added_date"`
}

// Progress returns the read fraction of the book in the range [0, 1]
func (b *Book) Progress() float64 {
	if b.TotalPages <= 0 {
		return 0
	}
	p := float64(b.CurrentPage) / float64(b.TotalPages)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// ReadingSession is an immutable record of one reading interval
type ReadingSession struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	Date      time.Time `json:"date"`
	StartPage int       `json:"start_page"`
	EndPage   int       `json:"end_page"`
	Duration  float64   `json:"duration_minutes"`
}

// PagesRead returns the number of pages covered by the session
func (s ReadingSession) PagesRead() int {
	return s.EndPage - s.StartPage
}

// Note is a free-text annotation tied to a page of a book
type Note struct {
	ID         string    `json:"id"`
	BookID     string    `json:"book_id"`
	Content    string    `json:"content"`
	PageNumber int       `json:"page_number"`
	CreatedAt  time.Time `json:"created_at"`
}

// TimeOfDay is a wall-clock time in the configured location
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// ParseTimeOfDay parses "HH:MM"
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Valid reports whether the hour and minute are in range
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns minutes since midnight, used for ordering
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Reminder is a recurring reading notification configuration
type Reminder struct {
	ID        string         `json:"id"`
	Time      TimeOfDay      `json:"time"`
	Enabled   bool           `json:"enabled"`
	Weekdays  []time.Weekday `json:"weekdays"`
	CreatedAt time.Time      `json:"created_at"`
}

// MonthlyCount is the number of books finished in a calendar month
type MonthlyCount struct {
	Month time.Time `json:"month"`
	Count int       `json:"count"`
}

// MonthlyPages is the number of pages read in a calendar month
type MonthlyPages struct {
	Month time.Time `json:"month"`
	Pages int       `json:"pages"`
}

// Totals holds collection-wide reading statistics
type Totals struct {
	TotalBooks     int `json:"total_books"`
	TotalFinished  int `json:"total_finished"`
	TotalReading   int `json:"total_reading"`
	TotalPages     int `json:"total_pages"`
	TotalReadPages int `json:"total_read_pages"`
}

// CompletionRate returns finished books over all books, or 0 for an empty library
func (t Totals) CompletionRate() float64 {
	if t.TotalBooks == 0 {
		return 0
	}
	return float64(t.TotalFinished) / float64(t.TotalBooks)
}

// OverallProgress returns read pages over all pages, or 0 when there are no pages
func (t Totals) OverallProgress() float64 {
	if t.TotalPages == 0 {
		return 0
	}
	return float64(t.TotalReadPages) / float64(t.TotalPages)
}
