// Package reminder keeps recurring reading reminders and an external scheduler
// in sync.
//
// Each enabled reminder owns one scheduler registration per weekday, keyed
// "{reminderID}_{n}" with n = 1 for Sunday through 7 for Saturday. Every edit
// cancels all keys derived from the previous state before scheduling again, so
// shrinking the weekday set never leaves a stale registration behind.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"readingtracker/internal/ids"
	"readingtracker/internal/models"
	"readingtracker/internal/storage"
)

// ErrInvalid is returned for reminders with an invalid time or weekday set
var ErrInvalid = errors.New("invalid reminder")

// Scheduler registers recurring weekly alerts
type Scheduler interface {
	// Schedule registers or replaces the alert stored under key
	Schedule(key string, at models.TimeOfDay, weekday time.Weekday) error
	// CancelAll removes the given keys; unknown keys are ignored
	CancelAll(keys []string)
}

// Service manages reminders
type Service struct {
	db        storage.Storage
	scheduler Scheduler
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a reminder service
func NewService(db storage.Storage, scheduler Scheduler, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:        db,
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
	}
}

// Key returns the scheduler key of a reminder on a weekday
func Key(reminderID string, weekday time.Weekday) string {
	return fmt.Sprintf("%s_%d", reminderID, int(weekday)+1)
}

// Keys returns every scheduler key derived from the reminder's weekday set
func Keys(r *models.Reminder) []string {
	keys := make([]string, 0, len(r.Weekdays))
	for _, wd := range r.Weekdays {
		keys = append(keys, Key(r.ID, wd))
	}
	return keys
}

// ReminderID extracts the reminder ID from a scheduler key
func ReminderID(key string) string {
	if i := strings.LastIndexByte(key, '_'); i >= 0 {
		return key[:i]
	}
	return key
}

func validate(at models.TimeOfDay, weekdays []time.Weekday) ([]time.Weekday, error) {
	if !at.Valid() {
		return nil, fmt.Errorf("%w: time %02d:%02d out of range", ErrInvalid, at.Hour, at.Minute)
	}
	days, err := NormalizeWeekdays(weekdays)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("%w: at least one weekday is required", ErrInvalid)
	}
	return days, nil
}

// schedule registers every weekday of an enabled reminder
func (s *Service) schedule(r *models.Reminder) error {
	if !r.Enabled {
		return nil
	}
	for _, wd := range r.Weekdays {
		if err := s.scheduler.Schedule(Key(r.ID, wd), r.Time, wd); err != nil {
			s.logger.Error("Failed to schedule reminder",
				zap.Error(err),
				zap.String("reminder_id", r.ID),
				zap.Stringer("weekday", wd),
			)
			return fmt.Errorf("failed to schedule reminder %s: %w", r.ID, err)
		}
	}
	return nil
}

// Add creates an enabled reminder and schedules it
func (s *Service) Add(ctx context.Context, at models.TimeOfDay, weekdays []time.Weekday) (*models.Reminder, error) {
	days, err := validate(at, weekdays)
	if err != nil {
		return nil, err
	}

	r := &models.Reminder{
		ID:        ids.New(),
		Time:      at,
		Enabled:   true,
		Weekdays:  days,
		CreatedAt: s.now(),
	}
	if err := s.db.CreateReminder(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}

	if err := s.schedule(r); err != nil {
		return r, err
	}

	s.logger.Info("Reminder added",
		zap.String("reminder_id", r.ID),
		zap.Stringer("time", r.Time),
		zap.String("days", Describe(r.Weekdays)),
	)
	return r, nil
}

// Update replaces time, weekdays and enabled flag of a reminder.
// All keys of the previous weekday set are cancelled before rescheduling.
func (s *Service) Update(ctx context.Context, id string, at models.TimeOfDay, weekdays []time.Weekday, enabled bool) (*models.Reminder, error) {
	days, err := validate(at, weekdays)
	if err != nil {
		return nil, err
	}

	r, err := s.db.GetReminder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder %s: %w", id, err)
	}
	previous := Keys(r)

	r.Time = at
	r.Weekdays = days
	r.Enabled = enabled
	if err := s.db.UpdateReminder(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to update reminder: %w", err)
	}

	s.scheduler.CancelAll(previous)
	if err := s.schedule(r); err != nil {
		return r, err
	}

	s.logger.Info("Reminder updated",
		zap.String("reminder_id", r.ID),
		zap.Stringer("time", r.Time),
		zap.String("days", Describe(r.Weekdays)),
		zap.Bool("enabled", r.Enabled),
	)
	return r, nil
}

// Toggle flips the enabled flag of a reminder
func (s *Service) Toggle(ctx context.Context, id string) (*models.Reminder, error) {
	r, err := s.db.GetReminder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder %s: %w", id, err)
	}

	r.Enabled = !r.Enabled
	if err := s.db.UpdateReminder(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to update reminder: %w", err)
	}

	s.scheduler.CancelAll(Keys(r))
	if err := s.schedule(r); err != nil {
		return r, err
	}

	s.logger.Info("Reminder toggled",
		zap.String("reminder_id", r.ID),
		zap.Bool("enabled", r.Enabled),
	)
	return r, nil
}

// Delete cancels and removes a reminder
func (s *Service) Delete(ctx context.Context, id string) error {
	r, err := s.db.GetReminder(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get reminder %s: %w", id, err)
	}

	if err := s.db.DeleteReminder(ctx, id); err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	s.scheduler.CancelAll(Keys(r))

	s.logger.Info("Reminder deleted", zap.String("reminder_id", id))
	return nil
}

// Get returns a single reminder
func (s *Service) Get(ctx context.Context, id string) (*models.Reminder, error) {
	r, err := s.db.GetReminder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder %s: %w", id, err)
	}
	return r, nil
}

// List returns all reminders ordered by time of day
func (s *Service) List(ctx context.Context) ([]models.Reminder, error) {
	reminders, err := s.db.ListReminders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, nil
}

// Resync registers every enabled stored reminder with the scheduler.
// It is run once at startup because scheduler registrations are not durable.
func (s *Service) Resync(ctx context.Context) error {
	reminders, err := s.List(ctx)
	if err != nil {
		return err
	}

	scheduled := 0
	for i := range reminders {
		r := &reminders[i]
		s.scheduler.CancelAll(Keys(r))
		if err := s.schedule(r); err != nil {
			return err
		}
		if r.Enabled {
			scheduled++
		}
	}

	s.logger.Info("Reminders synchronized",
		zap.Int("total", len(reminders)),
		zap.Int("enabled", scheduled),
	)
	return nil
}
