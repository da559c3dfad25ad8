package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"readingtracker/internal/models"
	"readingtracker/internal/reminder"
)

// handleStatusCallback processes "status:<bookID>:<status>" buttons
func (b *Bot) handleStatusCallback(ctx context.Context, chatID int64, payload string) {
	bookID, raw, ok := strings.Cut(payload, ":")
	if !ok {
		return
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return
	}

	book, err := b.tracker.SetStatus(ctx, bookID, models.Status(n))
	if err != nil {
		b.logger.Error("Failed to set status in callback",
			zap.Error(err),
			zap.String("book_id", bookID),
			zap.Int("status", n),
		)
		b.replyError(chatID, err)
		return
	}

	text := fmt.Sprintf("Status changed to %s\n\n%s", statusLabel(book.Status), formatBookCard(book, nil, b.tracker.Location()))
	b.replyWithKeyboard(chatID, text, bookKeyboard(book))
}

// startBookConversation asks for input about a book selected from its card
func (b *Bot) startBookConversation(userID, chatID int64, command, bookID string) {
	b.states[userID] = &ConversationState{
		Command: command,
		Step:    1,
		Data:    map[string]interface{}{"book_id": bookID},
	}

	switch command {
	case "page":
		b.reply(chatID, "📄 Which page are you on?")
	case "session":
		b.reply(chatID, "⏱ Send start page, end page and minutes read\n\nExample: 12 40 25")
	case "note":
		b.reply(chatID, "📝 Send the note, optionally starting with the page number\n\nExample: 42 A line worth remembering")
	}
}

// showNotes lists the notes of a book with delete buttons
func (b *Bot) showNotes(ctx context.Context, chatID int64, bookID string) {
	notes, err := b.tracker.NotesForBook(ctx, bookID)
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	if len(notes) == 0 {
		b.reply(chatID, "No notes for this book yet.")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, n := range notes {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🗑 Delete note %d", i+1), "rm_note:"+n.ID),
		))
	}

	b.replyWithKeyboard(chatID, formatNotes(notes), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// showSessions lists the sessions of a book, newest first
func (b *Bot) showSessions(ctx context.Context, chatID int64, bookID string) {
	sessions, err := b.tracker.SessionsForBook(ctx, bookID)
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	if len(sessions) == 0 {
		b.reply(chatID, "No reading sessions for this book yet.")
		return
	}

	b.reply(chatID, formatSessions(sessions, b.tracker.Location()))
}

// handleDeleteNoteCallback removes a note
func (b *Bot) handleDeleteNoteCallback(ctx context.Context, chatID int64, noteID string) {
	if err := b.tracker.DeleteNote(ctx, noteID); err != nil {
		b.replyError(chatID, err)
		return
	}
	b.reply(chatID, "🗑 Note deleted")
}

// handleDeleteBookCallback asks for confirmation before deleting a book
func (b *Bot) handleDeleteBookCallback(ctx context.Context, chatID int64, bookID string) {
	book, err := b.tracker.GetBook(ctx, bookID)
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Yes, delete", "confirm_delete:"+book.ID),
			tgbotapi.NewInlineKeyboardButtonData("↩️ Keep", "book:"+book.ID),
		),
	)
	text := fmt.Sprintf("Delete \"%s\" together with its sessions and notes?", book.Title)
	b.replyWithKeyboard(chatID, text, keyboard)
}

// handleConfirmDeleteCallback deletes a book after confirmation
func (b *Bot) handleConfirmDeleteCallback(ctx context.Context, chatID int64, bookID string) {
	if err := b.tracker.DeleteBook(ctx, bookID); err != nil {
		b.logger.Error("Failed to delete book", zap.Error(err), zap.String("book_id", bookID))
		b.replyError(chatID, err)
		return
	}
	b.reply(chatID, "🗑 Book deleted")
}

// handleToggleReminderCallback turns a reminder on or off
func (b *Bot) handleToggleReminderCallback(ctx context.Context, chatID int64, reminderID string) {
	r, err := b.reminders.Toggle(ctx, reminderID)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	b.reply(chatID, formatReminder(r))
}

// handleDeleteReminderCallback removes a reminder
func (b *Bot) handleDeleteReminderCallback(ctx context.Context, chatID int64, reminderID string) {
	if err := b.reminders.Delete(ctx, reminderID); err != nil {
		b.replyError(chatID, err)
		return
	}
	b.reply(chatID, "🗑 Reminder deleted")
}

// handleEditReminderCallback starts a conversation replacing time and weekdays
func (b *Bot) handleEditReminderCallback(ctx context.Context, userID, chatID int64, reminderID string) {
	r, err := b.reminders.Get(ctx, reminderID)
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	b.states[userID] = &ConversationState{
		Command: "edit_reminder",
		Step:    1,
		Data: map[string]interface{}{
			"reminder_id": r.ID,
			"enabled":     r.Enabled,
		},
	}

	b.reply(chatID, fmt.Sprintf("✏️ Editing %s\n\nAt what time? Use HH:MM", formatReminder(r)))
}

// handleDaysCallback processes weekday presets of a reminder conversation
func (b *Bot) handleDaysCallback(ctx context.Context, chatID int64, preset string, state *ConversationState) {
	if (state.Command != "remind" && state.Command != "edit_reminder") || state.Step != 2 {
		return
	}

	days, err := reminder.ParseWeekdays(preset)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	b.saveReminder(ctx, chatID, state, days)
}
