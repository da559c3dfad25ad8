package reminder

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"readingtracker/internal/models"
)

// Notifier delivers a fired reminder
type Notifier interface {
	Notify(ctx context.Context, key string)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, key string)

// Notify calls f
func (f NotifierFunc) Notify(ctx context.Context, key string) { f(ctx, key) }

// CronScheduler is a Scheduler backed by an in-process cron runner
type CronScheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	mu       sync.Mutex
	notifier Notifier
	entries  map[string]cron.EntryID
}

// NewCronScheduler creates a scheduler evaluating times in loc
func NewCronScheduler(loc *time.Location, logger *zap.Logger) *CronScheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronScheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

// SetNotifier sets the receiver of fired reminders
func (s *CronScheduler) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// Start runs the scheduler in its own goroutine
func (s *CronScheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler. The returned context is done once running jobs complete.
func (s *CronScheduler) Stop() context.Context {
	return s.cron.Stop()
}

// cronSpec builds a standard five-field cron expression firing weekly
func cronSpec(at models.TimeOfDay, weekday time.Weekday) string {
	return fmt.Sprintf("%d %d * * %d", at.Minute, at.Hour, int(weekday))
}

// Schedule registers or replaces the alert stored under key
func (s *CronScheduler) Schedule(key string, at models.TimeOfDay, weekday time.Weekday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[key]; ok {
		s.cron.Remove(id)
		delete(s.entries, key)
	}

	id, err := s.cron.AddFunc(cronSpec(at, weekday), func() { s.fire(key) })
	if err != nil {
		return fmt.Errorf("failed to add cron entry: %w", err)
	}
	s.entries[key] = id

	s.logger.Debug("Reminder scheduled",
		zap.String("key", key),
		zap.Stringer("time", at),
		zap.Stringer("weekday", weekday),
	)
	return nil
}

// CancelAll removes the given keys
func (s *CronScheduler) CancelAll(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		id, ok := s.entries[key]
		if !ok {
			continue
		}
		s.cron.Remove(id)
		delete(s.entries, key)
		s.logger.Debug("Reminder cancelled", zap.String("key", key))
	}
}

// Keys returns the currently registered keys in sorted order
func (s *CronScheduler) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s *CronScheduler) fire(key string) {
	s.mu.Lock()
	notifier := s.notifier
	s.mu.Unlock()

	if notifier == nil {
		s.logger.Warn("Reminder fired without a notifier", zap.String("key", key))
		return
	}

	s.logger.Info("Reminder fired", zap.String("key", key))
	notifier.Notify(context.Background(), key)
}
