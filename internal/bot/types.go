package bot

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"readingtracker/internal/reminder"
	"readingtracker/internal/tracker"
)

// Sender delivers outgoing Telegram messages
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot represents the Telegram bot wrapper
type Bot struct {
	api       *tgbotapi.BotAPI
	token     string
	sender    Sender
	tracker   *tracker.Tracker
	reminders *reminder.Service

	allowedUsers       map[int64]bool
	notificationChatID int64

	// mu serializes update handling so polling and webhook deliveries
	// are processed one at a time
	mu     sync.Mutex
	states map[int64]*ConversationState
	logger *zap.Logger
}

// ConversationState tracks the state of multi-step commands
type ConversationState struct {
	Command string
	Step    int
	Data    map[string]interface{}
}
