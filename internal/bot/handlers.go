package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// handleMessage processes a single message
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleMessage", zap.Any("panic", r))
			b.reply(message.Chat.ID, "An error occurred while processing your request. Please try again.")
		}
	}()

	userID := message.From.ID
	ctx := context.Background()

	// Check if user is in a conversation
	if state, ok := b.states[userID]; ok {
		// If conversation is already complete (Step == -1), clean it up and process as new command
		if state.Step == -1 {
			delete(b.states, userID)
		} else if message.IsCommand() {
			// Allow any command to interrupt/cancel an ongoing conversation
			delete(b.states, userID)
		} else {
			// Not a command, continue the conversation
			b.handleConversation(ctx, message, state)
			return
		}
	}

	// Handle commands
	if message.IsCommand() {
		switch message.Command() {
		case "start", "help":
			b.handleStart(message)
		case "new_book":
			b.handleNewBookStart(message)
		case "books":
			b.handleBooks(ctx, message)
		case "book":
			b.handleBook(ctx, message)
		case "stats":
			b.handleStats(ctx, message)
		case "remind":
			b.handleRemindStart(message)
		case "reminders":
			b.handleReminders(ctx, message)
		default:
			b.reply(message.Chat.ID, "Unknown command. Use /start to see available commands.")
		}
	}
}

// handleCallbackQuery processes inline keyboard button clicks.
// Callback data has the form "action:payload".
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	// Recover from panics
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleCallbackQuery", zap.Any("panic", r))
		}
	}()

	if query.Message == nil {
		return
	}

	userID := query.From.ID
	chatID := query.Message.Chat.ID
	ctx := context.Background()

	// Answer the callback query to remove loading state
	b.answerCallback(query)

	action, payload, _ := strings.Cut(query.Data, ":")
	switch action {
	case "book":
		b.showBook(ctx, chatID, payload)
	case "status":
		b.handleStatusCallback(ctx, chatID, payload)
	case "page":
		b.startBookConversation(userID, chatID, "page", payload)
	case "session":
		b.startBookConversation(userID, chatID, "session", payload)
	case "note":
		b.startBookConversation(userID, chatID, "note", payload)
	case "notes":
		b.showNotes(ctx, chatID, payload)
	case "sessions":
		b.showSessions(ctx, chatID, payload)
	case "rm_note":
		b.handleDeleteNoteCallback(ctx, chatID, payload)
	case "delete":
		b.handleDeleteBookCallback(ctx, chatID, payload)
	case "confirm_delete":
		b.handleConfirmDeleteCallback(ctx, chatID, payload)
	case "toggle":
		b.handleToggleReminderCallback(ctx, chatID, payload)
	case "rm_reminder":
		b.handleDeleteReminderCallback(ctx, chatID, payload)
	case "edit_reminder":
		b.handleEditReminderCallback(ctx, userID, chatID, payload)
	case "days":
		// Weekday presets only make sense inside a reminder conversation
		if state, ok := b.states[userID]; ok {
			b.handleDaysCallback(ctx, chatID, payload, state)
			if state.Step == -1 {
				delete(b.states, userID)
			}
		}
	default:
		b.logger.Warn("Unknown callback data", zap.String("callback_data", query.Data))
	}
}
