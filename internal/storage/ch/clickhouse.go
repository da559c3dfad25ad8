// Package ch implements storage.Storage on ClickHouse.
//
// Every table is a ReplacingMergeTree(version, is_deleted): updates insert a
// row with a higher version and deletes insert a tombstone. Reads use FINAL so
// only the newest live row of each id is visible.
package ch

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"readingtracker/internal/models"
	"readingtracker/internal/storage"
)

// Config holds ClickHouse connection settings
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	UseTLS   bool
}

func (c Config) options() *clickhouse.Options {
	options := &clickhouse.Options{
		Addr:     []string{fmt.Sprintf("%s:%d", c.Host, c.Port)},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: c.Database,
			Username: c.User,
			Password: c.Password,
		},
	}

	if c.UseTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}
	return options
}

// OpenSQL returns a database/sql handle for tooling such as goose
func OpenSQL(c Config) *sql.DB {
	return clickhouse.OpenDB(c.options())
}

type ClickHouseDB struct {
	conn clickhouse.Conn

	mu          sync.Mutex
	lastVersion uint64
}

var _ storage.Storage = (*ClickHouseDB)(nil)

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(c Config) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(c.options())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Initialize purges rows left behind by interrupted cascade deletes.
// Tables are managed via migrations (see migrations/ directory).
func (db *ClickHouseDB) Initialize(ctx context.Context) error {
	return db.purgeOrphans(ctx, "")
}

// nextVersion returns a strictly increasing row version
func (db *ClickHouseDB) nextVersion() uint64 {
	db.mu.Lock()
	defer db.mu.Unlock()

	v := uint64(time.Now().UnixNano())
	if v <= db.lastVersion {
		v = db.lastVersion + 1
	}
	db.lastVersion = v
	return v
}

const liveBooks = `SELECT id FROM books FINAL WHERE is_deleted = 0`

const bookColumns = `id, title, author, total_pages, current_page, status, start_date, finish_date, added_date`

func (db *ClickHouseDB) insertBook(ctx context.Context, b *models.Book, deleted bool) error {
	return db.conn.Exec(ctx, `INSERT INTO books (`+bookColumns+`, version, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Title, b.Author, int32(b.TotalPages), int32(b.CurrentPage), int8(b.Status),
		utcPtr(b.StartDate), utcPtr(b.FinishDate), b.AddedDate.UTC(),
		db.nextVersion(), boolToUInt8(deleted))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (models.Book, error) {
	var (
		b           models.Book
		totalPages  int32
		currentPage int32
		status      int8
	)
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &totalPages, &currentPage, &status,
		&b.StartDate, &b.FinishDate, &b.AddedDate); err != nil {
		return b, err
	}
	b.TotalPages = int(totalPages)
	b.CurrentPage = int(currentPage)
	b.Status = models.Status(status)
	return b, nil
}

// CreateBook stores a new book
func (db *ClickHouseDB) CreateBook(ctx context.Context, book *models.Book) error {
	if err := db.insertBook(ctx, book, false); err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

// GetBook returns a live book by ID
func (db *ClickHouseDB) GetBook(ctx context.Context, id string) (*models.Book, error) {
	row := db.conn.QueryRow(ctx, `SELECT `+bookColumns+` FROM books FINAL
		WHERE id = ? AND is_deleted = 0`, id)

	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return &book, nil
}

// ListBooks returns books matching the query
func (db *ClickHouseDB) ListBooks(ctx context.Context, query storage.BookQuery) ([]models.Book, error) {
	where := []string{"is_deleted = 0"}
	var args []any
	if query.Status != nil {
		where = append(where, "status = ?")
		args = append(args, int8(*query.Status))
	}
	if query.Search != "" {
		where = append(where, "(positionCaseInsensitiveUTF8(title, ?) > 0 OR positionCaseInsensitiveUTF8(author, ?) > 0)")
		args = append(args, query.Search, query.Search)
	}

	order := "added_date DESC, id DESC"
	if query.Sort == storage.SortTitleAsc {
		order = "title ASC, id ASC"
	}

	rows, err := db.conn.Query(ctx, `SELECT `+bookColumns+` FROM books FINAL
		WHERE `+strings.Join(where, " AND ")+` ORDER BY `+order, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	var books []models.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// UpdateBook writes a new version of an existing book
func (db *ClickHouseDB) UpdateBook(ctx context.Context, book *models.Book) error {
	if _, err := db.GetBook(ctx, book.ID); err != nil {
		return err
	}
	if err := db.insertBook(ctx, book, false); err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}
	return nil
}

// DeleteBook tombstones a book and then its sessions and notes.
// The book tombstone is the commit point: reads of sessions and notes only
// see rows whose book is live, so children vanish together with the book.
func (db *ClickHouseDB) DeleteBook(ctx context.Context, id string) error {
	book, err := db.GetBook(ctx, id)
	if err != nil {
		return err
	}
	if err := db.insertBook(ctx, book, true); err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}

	// Leftovers are unreachable and purged again by Initialize
	_ = db.purgeOrphans(ctx, id)
	return nil
}

// purgeOrphans tombstones sessions and notes of deleted books.
// An empty bookID purges children of every deleted book.
func (db *ClickHouseDB) purgeOrphans(ctx context.Context, bookID string) error {
	filter := `book_id NOT IN (` + liveBooks + `)`
	args := []any{db.nextVersion()}
	if bookID != "" {
		filter = `book_id = ?`
		args = append(args, bookID)
	}

	if err := db.conn.Exec(ctx, `INSERT INTO reading_sessions
		(id, book_id, date, start_page, end_page, duration, version, is_deleted)
		SELECT id, book_id, date, start_page, end_page, duration, ?, 1
		FROM reading_sessions FINAL WHERE is_deleted = 0 AND `+filter, args...); err != nil {
		return fmt.Errorf("failed to purge sessions: %w", err)
	}

	args[0] = db.nextVersion()
	if err := db.conn.Exec(ctx, `INSERT INTO notes
		(id, book_id, content, page_number, created_at, version, is_deleted)
		SELECT id, book_id, content, page_number, created_at, ?, 1
		FROM notes FINAL WHERE is_deleted = 0 AND `+filter, args...); err != nil {
		return fmt.Errorf("failed to purge notes: %w", err)
	}
	return nil
}

func (db *ClickHouseDB) insertSession(ctx context.Context, s *models.ReadingSession, deleted bool) error {
	return db.conn.Exec(ctx, `INSERT INTO reading_sessions
		(id, book_id, date, start_page, end_page, duration, version, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.BookID, s.Date.UTC(), int32(s.StartPage), int32(s.EndPage), s.Duration,
		db.nextVersion(), boolToUInt8(deleted))
}

// AppendSession stores a session and, when given, the updated book.
// If the book write fails the session is tombstoned again.
func (db *ClickHouseDB) AppendSession(ctx context.Context, session *models.ReadingSession, book *models.Book) error {
	if _, err := db.GetBook(ctx, session.BookID); err != nil {
		return err
	}

	if err := db.insertSession(ctx, session, false); err != nil {
		return fmt.Errorf("failed to append session: %w", err)
	}
	if book == nil {
		return nil
	}

	if err := db.insertBook(ctx, book, false); err != nil {
		if rbErr := db.insertSession(ctx, session, true); rbErr != nil {
			return fmt.Errorf("failed to update book: %w (rollback failed: %v)", err, rbErr)
		}
		return fmt.Errorf("failed to update book: %w", err)
	}
	return nil
}

// ListSessions returns sessions of live books ordered by date descending
func (db *ClickHouseDB) ListSessions(ctx context.Context, query storage.SessionQuery) ([]models.ReadingSession, error) {
	where := []string{"is_deleted = 0", "book_id IN (" + liveBooks + ")"}
	var args []any
	if query.BookID != "" {
		where = append(where, "book_id = ?")
		args = append(args, query.BookID)
	}
	if !query.Since.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, query.Since.UTC())
	}

	rows, err := db.conn.Query(ctx, `SELECT id, book_id, date, start_page, end_page, duration
		FROM reading_sessions FINAL
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY date DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.ReadingSession
	for rows.Next() {
		var (
			s          models.ReadingSession
			start, end int32
		)
		if err := rows.Scan(&s.ID, &s.BookID, &s.Date, &start, &end, &s.Duration); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.StartPage = int(start)
		s.EndPage = int(end)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (db *ClickHouseDB) insertNote(ctx context.Context, n *models.Note, deleted bool) error {
	return db.conn.Exec(ctx, `INSERT INTO notes
		(id, book_id, content, page_number, created_at, version, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.BookID, n.Content, int32(n.PageNumber), n.CreatedAt.UTC(),
		db.nextVersion(), boolToUInt8(deleted))
}

// CreateNote stores a note for an existing book
func (db *ClickHouseDB) CreateNote(ctx context.Context, note *models.Note) error {
	if _, err := db.GetBook(ctx, note.BookID); err != nil {
		return err
	}
	if err := db.insertNote(ctx, note, false); err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

// DeleteNote tombstones a note
func (db *ClickHouseDB) DeleteNote(ctx context.Context, id string) error {
	row := db.conn.QueryRow(ctx, `SELECT id, book_id, content, page_number, created_at
		FROM notes FINAL WHERE id = ? AND is_deleted = 0`, id)

	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get note: %w", err)
	}

	if err := db.insertNote(ctx, &note, true); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

func scanNote(row rowScanner) (models.Note, error) {
	var (
		n    models.Note
		page int32
	)
	if err := row.Scan(&n.ID, &n.BookID, &n.Content, &page, &n.CreatedAt); err != nil {
		return n, err
	}
	n.PageNumber = int(page)
	return n, nil
}

// ListNotes returns the notes of a live book ordered by page number
func (db *ClickHouseDB) ListNotes(ctx context.Context, bookID string) ([]models.Note, error) {
	rows, err := db.conn.Query(ctx, `SELECT id, book_id, content, page_number, created_at
		FROM notes FINAL
		WHERE is_deleted = 0 AND book_id = ? AND book_id IN (`+liveBooks+`)
		ORDER BY page_number ASC, created_at ASC`, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []models.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

const reminderColumns = `id, hour, minute, enabled, weekdays, created_at`

func (db *ClickHouseDB) insertReminder(ctx context.Context, r *models.Reminder, deleted bool) error {
	days := make([]int8, len(r.Weekdays))
	for i, d := range r.Weekdays {
		days[i] = int8(d)
	}
	return db.conn.Exec(ctx, `INSERT INTO reminders (`+reminderColumns+`, version, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, uint8(r.Time.Hour), uint8(r.Time.Minute), r.Enabled, days, r.CreatedAt.UTC(),
		db.nextVersion(), boolToUInt8(deleted))
}

func scanReminder(row rowScanner) (models.Reminder, error) {
	var (
		r            models.Reminder
		hour, minute uint8
		days         []int8
	)
	if err := row.Scan(&r.ID, &hour, &minute, &r.Enabled, &days, &r.CreatedAt); err != nil {
		return r, err
	}
	r.Time = models.TimeOfDay{Hour: int(hour), Minute: int(minute)}
	r.Weekdays = make([]time.Weekday, len(days))
	for i, d := range days {
		r.Weekdays[i] = time.Weekday(d)
	}
	return r, nil
}

// CreateReminder stores a reminder
func (db *ClickHouseDB) CreateReminder(ctx context.Context, reminder *models.Reminder) error {
	if err := db.insertReminder(ctx, reminder, false); err != nil {
		return fmt.Errorf("failed to create reminder: %w", err)
	}
	return nil
}

// GetReminder returns a live reminder by ID
func (db *ClickHouseDB) GetReminder(ctx context.Context, id string) (*models.Reminder, error) {
	row := db.conn.QueryRow(ctx, `SELECT `+reminderColumns+` FROM reminders FINAL
		WHERE id = ? AND is_deleted = 0`, id)

	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return &r, nil
}

// UpdateReminder writes a new version of an existing reminder
func (db *ClickHouseDB) UpdateReminder(ctx context.Context, reminder *models.Reminder) error {
	if _, err := db.GetReminder(ctx, reminder.ID); err != nil {
		return err
	}
	if err := db.insertReminder(ctx, reminder, false); err != nil {
		return fmt.Errorf("failed to update reminder: %w", err)
	}
	return nil
}

// DeleteReminder tombstones a reminder
func (db *ClickHouseDB) DeleteReminder(ctx context.Context, id string) error {
	r, err := db.GetReminder(ctx, id)
	if err != nil {
		return err
	}
	if err := db.insertReminder(ctx, r, true); err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	return nil
}

// ListReminders returns reminders ordered by time of day
func (db *ClickHouseDB) ListReminders(ctx context.Context) ([]models.Reminder, error) {
	rows, err := db.conn.Query(ctx, `SELECT `+reminderColumns+` FROM reminders FINAL
		WHERE is_deleted = 0 ORDER BY hour, minute, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	var reminders []models.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
