package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"readingtracker/internal/reminder"
	"readingtracker/internal/tracker"
)

// Options configures a Bot
type Options struct {
	AllowedUserIDs []int64
	// NotificationChatID receives reminders; 0 sends them to every allowed user
	NotificationChatID int64
}

// NewBot creates a new Telegram bot
func NewBot(token string, tr *tracker.Tracker, reminders *reminder.Service, opts Options, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))

	b := newBot(tr, reminders, opts, logger)
	b.api = api
	b.token = token
	b.sender = api
	return b, nil
}

func newBot(tr *tracker.Tracker, reminders *reminder.Service, opts Options, logger *zap.Logger) *Bot {
	allowedUsers := make(map[int64]bool)
	for _, id := range opts.AllowedUserIDs {
		allowedUsers[id] = true
	}

	return &Bot{
		tracker:            tr,
		reminders:          reminders,
		allowedUsers:       allowedUsers,
		notificationChatID: opts.NotificationChatID,
		states:             make(map[int64]*ConversationState),
		logger:             logger,
	}
}

// GetAPI returns the bot API for testing
func (b *Bot) GetAPI() *tgbotapi.BotAPI {
	return b.api
}
