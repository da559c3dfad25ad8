package bot

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"readingtracker/internal/models"
	"readingtracker/internal/reminder"
	"readingtracker/internal/storage"
	"readingtracker/internal/tracker"
)

func TestParseSessionInput(t *testing.T) {
	testCases := []struct {
		input   string
		want    tracker.SessionInput
		wantErr bool
	}{
		{"12 40 25", tracker.SessionInput{StartPage: 12, EndPage: 40, Duration: 25}, false},
		{"12-40 25", tracker.SessionInput{StartPage: 12, EndPage: 40, Duration: 25}, false},
		{"0, 10, 7.5m", tracker.SessionInput{StartPage: 0, EndPage: 10, Duration: 7.5}, false},
		{"12 40", tracker.SessionInput{}, true},
		{"a 40 25", tracker.SessionInput{}, true},
		{"12 b 25", tracker.SessionInput{}, true},
		{"12 40 long", tracker.SessionInput{}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := parseSessionInput(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseNoteInput(t *testing.T) {
	page, content, ok := parseNoteInput("42 A line worth remembering")
	assert.True(t, ok)
	assert.Equal(t, 42, page)
	assert.Equal(t, "A line worth remembering", content)

	page, content, ok = parseNoteInput("p7 Chapter two starts")
	assert.True(t, ok)
	assert.Equal(t, 7, page)
	assert.Equal(t, "Chapter two starts", content)

	// A lone number is the note itself
	_, content, ok = parseNoteInput("1984")
	assert.False(t, ok)
	assert.Equal(t, "1984", content)

	_, content, ok = parseNoteInput("  just a thought ")
	assert.False(t, ok)
	assert.Equal(t, "just a thought", content)
}

func TestParseBookFilter(t *testing.T) {
	assert.Equal(t, tracker.BookFilter{}, parseBookFilter("  "))

	filter := parseBookFilter("Finished")
	require.NotNil(t, filter.Status)
	assert.Equal(t, models.StatusFinished, *filter.Status)
	assert.Empty(t, filter.Search)

	filter = parseBookFilter("dune")
	assert.Nil(t, filter.Status)
	assert.Equal(t, "dune", filter.Search)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "░░░░░░░░░░", progressBar(0))
	assert.Equal(t, "▓▓▓▓▓░░░░░", progressBar(0.5))
	assert.Equal(t, "▓▓▓▓▓▓▓▓▓▓", progressBar(1.7))

	assert.Equal(t, "0m", formatMinutes(0))
	assert.Equal(t, "25m", formatMinutes(25.4))
	assert.Equal(t, "1h 05m", formatMinutes(65))

	assert.Equal(t, "33%", percent(1.0/3))

	r := &models.Reminder{
		Time:     models.TimeOfDay{Hour: 21, Minute: 30},
		Weekdays: []time.Weekday{time.Saturday, time.Sunday},
		Enabled:  false,
	}
	assert.Equal(t, "🔕 21:30 Weekends", formatReminder(r))
}

func TestFormatBookLine(t *testing.T) {
	book := models.Book{Title: "Dune", TotalPages: 200, CurrentPage: 50, Status: models.StatusReading}
	assert.Equal(t, "📖 Dune (25%)", formatBookLine(book))

	book.Status = models.StatusUnread
	assert.Equal(t, "📕 Dune", formatBookLine(book))
}

func TestFormatReportEmpty(t *testing.T) {
	text := formatReport(&tracker.Report{})
	assert.Contains(t, text, "Books: 0")
	assert.NotContains(t, text, "per month")
}

func TestReminderText(t *testing.T) {
	assert.NotContains(t, reminderText(nil), "In progress")

	text := reminderText([]models.Book{
		{Title: "Dune", TotalPages: 100, CurrentPage: 10, Status: models.StatusReading},
	})
	assert.Contains(t, text, "📖 Dune (10%)")
}

func TestUserMessage(t *testing.T) {
	verr := &tracker.ValidationError{Field: "page", Message: "must be between 0 and 10, got 11"}
	assert.Equal(t, "invalid page: must be between 0 and 10, got 11", userMessage(fmt.Errorf("wrap: %w", verr)))

	assert.Contains(t, userMessage(fmt.Errorf("bad: %w", reminder.ErrInvalid)), "bad")
	assert.Equal(t, "Not found. It may have been deleted.", userMessage(fmt.Errorf("get: %w", storage.ErrNotFound)))
	assert.Equal(t, "Could not save the change. Please try again.",
		userMessage(&tracker.PersistenceError{Op: "save book", Err: errors.New("connection refused")}))
	assert.Equal(t, "Something went wrong. Please try again.", userMessage(errors.New("boom")))
}

// signInitData builds init data the way Telegram signs it
func signInitData(token string, values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+values.Get(k))
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(token))
	h := hmac.New(sha256.New, secret.Sum(nil))
	h.Write([]byte(strings.Join(pairs, "\n")))

	values.Set("hash", hex.EncodeToString(h.Sum(nil)))
	return values.Encode()
}

func TestValidateInitData(t *testing.T) {
	const token = "123:abc"
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	valid := signInitData(token, url.Values{
		"auth_date": {fmt.Sprint(now.Add(-time.Hour).Unix())},
		"user":      {`{"id":123,"first_name":"Ann"}`},
	})

	userID, err := ValidateInitData(token, valid, now)
	require.NoError(t, err)
	assert.Equal(t, int64(123), userID)

	_, err = ValidateInitData("other:token", valid, now)
	assert.Error(t, err)

	_, err = ValidateInitData(token, valid, now.Add(48*time.Hour))
	assert.Error(t, err)

	_, err = ValidateInitData(token, "", now)
	assert.Error(t, err)

	_, err = ValidateInitData(token, "user=%7B%7D", now)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	bot := newBot(nil, nil, Options{AllowedUserIDs: []int64{123}}, zap.NewNop())
	bot.token = "123:abc"

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	serve := func(enforce bool, header string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		bot.AuthMiddleware(enforce)(ok).ServeHTTP(rec, req)
		return rec.Code
	}

	initData := func(userID int64) string {
		return signInitData(bot.token, url.Values{
			"auth_date": {fmt.Sprint(time.Now().Unix())},
			"user":      {fmt.Sprintf(`{"id":%d}`, userID)},
		})
	}

	assert.Equal(t, http.StatusNoContent, serve(false, ""))
	assert.Equal(t, http.StatusUnauthorized, serve(true, ""))
	assert.Equal(t, http.StatusUnauthorized, serve(true, "tma "+initData(999)))
	assert.Equal(t, http.StatusNoContent, serve(true, "tma "+initData(123)))
}
