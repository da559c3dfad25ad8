package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"readingtracker/internal/models"
	"readingtracker/internal/reminder"
	"readingtracker/internal/tracker"
)

// handleConversation processes multi-step conversations
func (b *Bot) handleConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	userID := message.From.ID

	switch state.Command {
	case "new_book":
		b.handleNewBookConversation(ctx, message, state)
	case "page":
		b.handlePageConversation(ctx, message, state)
	case "session":
		b.handleSessionConversation(ctx, message, state)
	case "note":
		b.handleNoteConversation(ctx, message, state)
	case "remind", "edit_reminder":
		b.handleReminderConversation(ctx, message, state)
	}

	// Clean up completed conversations
	if state.Step == -1 {
		delete(b.states, userID)
	}
}

// handleNewBookConversation handles the new book multi-step process
func (b *Bot) handleNewBookConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	switch state.Step {
	case 1: // Waiting for title
		if text == "" {
			b.reply(chatID, "The title cannot be empty. Please enter the book title:")
			return
		}
		state.Data["title"] = text
		state.Step = 2
		b.reply(chatID, "✍️ Who is the author? Send - to skip")

	case 2: // Waiting for author
		if text == "-" {
			text = ""
		}
		state.Data["author"] = text
		state.Step = 3
		b.reply(chatID, "📄 How many pages does it have?")

	case 3: // Waiting for page count
		pages, err := strconv.Atoi(text)
		if err != nil || pages <= 0 {
			b.reply(chatID, "❌ Please enter a positive number of pages:")
			return
		}

		book, err := b.tracker.AddBook(ctx, tracker.NewBook{
			Title:      state.Data["title"].(string),
			Author:     state.Data["author"].(string),
			TotalPages: pages,
		})
		if err != nil {
			b.logger.Error("Failed to add book", zap.Error(err))
			b.replyError(chatID, err)
		} else {
			b.replyWithKeyboard(chatID, fmt.Sprintf("✅ Book added!\n\n%s", formatBookCard(book, nil, b.tracker.Location())), bookKeyboard(book))
		}

		state.Step = -1 // Mark conversation as complete
	}
}

// handlePageConversation moves the bookmark of the selected book
func (b *Bot) handlePageConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	chatID := message.Chat.ID
	bookID := state.Data["book_id"].(string)

	page, err := strconv.Atoi(strings.TrimSpace(message.Text))
	if err != nil {
		b.reply(chatID, "❌ Please enter a page number:")
		return
	}

	book, err := b.tracker.SetCurrentPage(ctx, bookID, page)
	if errors.Is(err, tracker.ErrValidation) {
		// Stay in the conversation and let the user correct the input
		b.replyError(chatID, err)
		return
	}
	if err != nil {
		b.replyError(chatID, err)
		state.Step = -1
		return
	}

	b.replyWithKeyboard(chatID, fmt.Sprintf("📄 Bookmark updated!\n\n%s", formatBookCard(book, nil, b.tracker.Location())), bookKeyboard(book))
	state.Step = -1
}

// parseSessionInput reads "start end minutes", e.g. "12 40 25" or "12-40 25"
func parseSessionInput(text string) (tracker.SessionInput, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '-' || r == ','
	})
	if len(fields) != 3 {
		return tracker.SessionInput{}, fmt.Errorf("expected start page, end page and minutes")
	}

	start, err := strconv.Atoi(fields[0])
	if err != nil {
		return tracker.SessionInput{}, fmt.Errorf("invalid start page %q", fields[0])
	}
	end, err := strconv.Atoi(fields[1])
	if err != nil {
		return tracker.SessionInput{}, fmt.Errorf("invalid end page %q", fields[1])
	}
	minutes, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], "m"), 64)
	if err != nil {
		return tracker.SessionInput{}, fmt.Errorf("invalid duration %q", fields[2])
	}

	return tracker.SessionInput{StartPage: start, EndPage: end, Duration: minutes}, nil
}

// handleSessionConversation logs a reading session for the selected book
func (b *Bot) handleSessionConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	chatID := message.Chat.ID
	bookID := state.Data["book_id"].(string)

	in, err := parseSessionInput(message.Text)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("❌ %v\n\nExample: 12 40 25", err))
		return
	}

	session, book, err := b.tracker.AppendSession(ctx, bookID, in)
	if errors.Is(err, tracker.ErrValidation) {
		b.replyError(chatID, err)
		return
	}
	if err != nil {
		b.replyError(chatID, err)
		state.Step = -1
		return
	}

	text := fmt.Sprintf("⏱ Session logged: %d pages in %s\n\n%s",
		session.PagesRead(), formatMinutes(session.Duration), formatBookCard(book, nil, b.tracker.Location()))
	b.replyWithKeyboard(chatID, text, bookKeyboard(book))
	state.Step = -1
}

// parseNoteInput reads "page text"; without a leading number the page is unset
func parseNoteInput(text string) (page int, content string, hasPage bool) {
	text = strings.TrimSpace(text)
	first, rest, found := strings.Cut(text, " ")
	if n, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(first), "p")); err == nil && found {
		return n, strings.TrimSpace(rest), true
	}
	return 0, text, false
}

// handleNoteConversation adds a note to the selected book
func (b *Bot) handleNoteConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	chatID := message.Chat.ID
	bookID := state.Data["book_id"].(string)

	page, content, hasPage := parseNoteInput(message.Text)
	if !hasPage {
		book, err := b.tracker.GetBook(ctx, bookID)
		if err != nil {
			b.replyError(chatID, err)
			state.Step = -1
			return
		}
		page = book.CurrentPage
	}

	note, err := b.tracker.AddNote(ctx, bookID, content, page)
	if errors.Is(err, tracker.ErrValidation) {
		b.replyError(chatID, err)
		return
	}
	if err != nil {
		b.replyError(chatID, err)
		state.Step = -1
		return
	}

	b.reply(chatID, fmt.Sprintf("📝 Note saved on page %d", note.PageNumber))
	state.Step = -1
}

// handleReminderConversation creates or edits a reminder: time first, then weekdays
func (b *Bot) handleReminderConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	switch state.Step {
	case 1: // Waiting for time
		at, err := models.ParseTimeOfDay(text)
		if err != nil {
			b.reply(chatID, "❌ Invalid time. Please use HH:MM\n\nExample: 21:30")
			return
		}
		state.Data["time"] = at
		state.Step = 2
		b.replyWithKeyboard(chatID,
			"📅 On which days? Pick a preset or type days like: mon, wed, fri",
			daysKeyboard(),
		)

	case 2: // Waiting for weekdays
		days, err := reminder.ParseWeekdays(text)
		if err != nil {
			b.replyError(chatID, err)
			return
		}
		b.saveReminder(ctx, chatID, state, days)
	}
}

// daysKeyboard offers weekday presets
func daysKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Every day", "days:daily"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Weekdays", "days:weekdays"),
			tgbotapi.NewInlineKeyboardButtonData("Weekends", "days:weekends"),
		),
	)
}

// saveReminder finishes a reminder conversation
func (b *Bot) saveReminder(ctx context.Context, chatID int64, state *ConversationState, days []time.Weekday) {
	at := state.Data["time"].(models.TimeOfDay)

	var (
		r   *models.Reminder
		err error
	)
	if id, ok := state.Data["reminder_id"].(string); ok {
		r, err = b.reminders.Update(ctx, id, at, days, state.Data["enabled"].(bool))
	} else {
		r, err = b.reminders.Add(ctx, at, days)
	}
	if err != nil {
		b.logger.Error("Failed to save reminder", zap.Error(err))
		b.replyError(chatID, err)
		state.Step = -1
		return
	}

	b.reply(chatID, fmt.Sprintf("✅ Reminder saved: %s", formatReminder(r)))
	state.Step = -1
}
