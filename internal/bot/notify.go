package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"readingtracker/internal/models"
	"readingtracker/internal/reminder"
	"readingtracker/internal/tracker"
)

var _ reminder.Notifier = (*Bot)(nil)

// recipients returns the chats that receive reminders
func (b *Bot) recipients() []int64 {
	if b.notificationChatID != 0 {
		return []int64{b.notificationChatID}
	}

	// Private chat IDs equal user IDs
	chats := make([]int64, 0, len(b.allowedUsers))
	for id := range b.allowedUsers {
		chats = append(chats, id)
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i] < chats[j] })
	return chats
}

// reminderText builds the reminder message, listing books in progress
func reminderText(reading []models.Book) string {
	var text strings.Builder
	text.WriteString("📚 Time to read!\n\nKeep the habit going with a little reading today.")
	if len(reading) > 0 {
		text.WriteString("\n\nIn progress:")
		for _, b := range reading {
			text.WriteString(fmt.Sprintf("\n%s %s (%s)", statusIcon(b.Status), b.Title, percent(b.Progress())))
		}
	}
	return text.String()
}

// Notify delivers a fired reminder to every recipient
func (b *Bot) Notify(ctx context.Context, key string) {
	reading := models.StatusReading
	books, err := b.tracker.ListBooks(ctx, tracker.BookFilter{Status: &reading})
	if err != nil {
		// The reminder is still worth sending without the book list
		b.logger.Warn("Failed to list books for reminder", zap.Error(err))
		books = nil
	}

	text := reminderText(books)
	for _, chatID := range b.recipients() {
		b.reply(chatID, text)
	}

	b.logger.Info("Reminder delivered",
		zap.String("key", key),
		zap.String("reminder_id", reminder.ReminderID(key)),
		zap.Int("recipients", len(b.recipients())),
	)
}
