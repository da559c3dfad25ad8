package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"readingtracker/internal/models"
	"readingtracker/internal/tracker"
)

// maxListedBooks caps the inline keyboard of /books
const maxListedBooks = 50

// handleStart shows welcome message and available commands
func (b *Bot) handleStart(message *tgbotapi.Message) {
	text := `Welcome to the Reading Tracker! 📚

Available commands:
/new_book - Add a book to your library
/books [status|search] - List books (status: unread, reading, finished)
/book <id> - Show a book with its actions
/stats - View reading statistics
/remind - Create a reading reminder
/reminders - Manage reminders`

	b.reply(message.Chat.ID, text)
}

// handleNewBookStart initiates the new book conversation
func (b *Bot) handleNewBookStart(message *tgbotapi.Message) {
	userID := message.From.ID
	b.states[userID] = &ConversationState{
		Command: "new_book",
		Step:    1,
		Data:    make(map[string]interface{}),
	}

	b.reply(message.Chat.ID, "Please enter the book title:")
}

// parseBookFilter reads "/books" arguments: a status name or a search term
func parseBookFilter(args string) tracker.BookFilter {
	args = strings.TrimSpace(args)
	if args == "" {
		return tracker.BookFilter{}
	}
	if status, err := models.ParseStatus(strings.ToLower(args)); err == nil {
		return tracker.BookFilter{Status: &status}
	}
	return tracker.BookFilter{Search: args}
}

// handleBooks lists books as buttons opening the book card
func (b *Bot) handleBooks(ctx context.Context, message *tgbotapi.Message) {
	filter := parseBookFilter(message.CommandArguments())

	books, err := b.tracker.ListBooks(ctx, filter)
	if err != nil {
		b.logger.Error("Failed to list books", zap.Error(err))
		b.replyError(message.Chat.ID, err)
		return
	}

	if len(books) == 0 {
		b.reply(message.Chat.ID, "No books found. Add one with /new_book")
		return
	}

	text := fmt.Sprintf("📚 Books (%d):", len(books))
	if len(books) > maxListedBooks {
		text = fmt.Sprintf("📚 Books (showing %d of %d, narrow with /books <search>):", maxListedBooks, len(books))
		books = books[:maxListedBooks]
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, book := range books {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(formatBookLine(book), "book:"+book.ID),
		))
	}

	b.replyWithKeyboard(message.Chat.ID, text, tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// handleBook shows a single book by ID
func (b *Bot) handleBook(ctx context.Context, message *tgbotapi.Message) {
	id := strings.TrimSpace(message.CommandArguments())
	if id == "" {
		b.reply(message.Chat.ID, "Usage: /book <id>\n\nOr pick a book from /books")
		return
	}
	b.showBook(ctx, message.Chat.ID, id)
}

// showBook sends the book card with its action keyboard
func (b *Bot) showBook(ctx context.Context, chatID int64, id string) {
	book, err := b.tracker.GetBook(ctx, id)
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	sessions, err := b.tracker.SessionsForBook(ctx, id)
	if err != nil {
		b.logger.Error("Failed to list sessions", zap.Error(err), zap.String("book_id", id))
		b.replyError(chatID, err)
		return
	}

	b.replyWithKeyboard(chatID, formatBookCard(book, sessions, b.tracker.Location()), bookKeyboard(book))
}

// bookKeyboard builds the action buttons of a book card
func bookKeyboard(book *models.Book) tgbotapi.InlineKeyboardMarkup {
	var statusRow []tgbotapi.InlineKeyboardButton
	for _, s := range []models.Status{models.StatusUnread, models.StatusReading, models.StatusFinished} {
		if s == book.Status {
			continue
		}
		statusRow = append(statusRow, tgbotapi.NewInlineKeyboardButtonData(
			statusLabel(s),
			fmt.Sprintf("status:%s:%d", book.ID, int(s)),
		))
	}

	return tgbotapi.NewInlineKeyboardMarkup(
		statusRow,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📄 Set page", "page:"+book.ID),
			tgbotapi.NewInlineKeyboardButtonData("⏱ Log session", "session:"+book.ID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📝 Add note", "note:"+book.ID),
			tgbotapi.NewInlineKeyboardButtonData("🗒 Notes", "notes:"+book.ID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📜 Sessions", "sessions:"+book.ID),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", "delete:"+book.ID),
		),
	)
}

// handleStats sends the statistics report
func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message) {
	report, err := b.tracker.Report(ctx)
	if err != nil {
		b.logger.Error("Failed to build stats report", zap.Error(err))
		b.replyError(message.Chat.ID, err)
		return
	}

	b.logger.Info("Generated stats report",
		zap.Int("total_books", report.Totals.TotalBooks),
		zap.Int64("chat_id", message.Chat.ID),
	)
	b.reply(message.Chat.ID, formatReport(report))
}

// handleRemindStart initiates the reminder conversation
func (b *Bot) handleRemindStart(message *tgbotapi.Message) {
	userID := message.From.ID
	b.states[userID] = &ConversationState{
		Command: "remind",
		Step:    1,
		Data:    make(map[string]interface{}),
	}

	b.reply(message.Chat.ID, "⏰ At what time? Use HH:MM\n\nExample: 21:30")
}

// handleReminders lists reminders with toggle, edit and delete buttons
func (b *Bot) handleReminders(ctx context.Context, message *tgbotapi.Message) {
	reminders, err := b.reminders.List(ctx)
	if err != nil {
		b.logger.Error("Failed to list reminders", zap.Error(err))
		b.replyError(message.Chat.ID, err)
		return
	}

	if len(reminders) == 0 {
		b.reply(message.Chat.ID, "No reminders yet. Create one with /remind")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for i := range reminders {
		r := &reminders[i]
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(formatReminder(r), "toggle:"+r.ID),
			tgbotapi.NewInlineKeyboardButtonData("✏️", "edit_reminder:"+r.ID),
			tgbotapi.NewInlineKeyboardButtonData("🗑", "rm_reminder:"+r.ID),
		))
	}

	b.replyWithKeyboard(message.Chat.ID, "⏰ Reminders (tap to turn on or off):", tgbotapi.NewInlineKeyboardMarkup(rows...))
}
