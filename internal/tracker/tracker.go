// Package tracker implements the reading lifecycle: the book status machine,
// the session ledger, library operations and the statistics aggregator.
//
// Every operation loads the records it needs from the injected storage.Storage,
// applies the rules to a private copy and writes the result back in a single
// store call. A failed write leaves the stored state untouched.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"readingtracker/internal/storage"
)

const (
	defaultMaxRetries    = 3
	defaultRetryInterval = 100 * time.Millisecond
)

// Tracker is the entry point for all reading-tracker operations
type Tracker struct {
	db     storage.Storage
	logger *zap.Logger
	now    func() time.Time
	loc    *time.Location

	maxRetries    uint64
	retryInterval time.Duration
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithLocation sets the location used for calendar-month buckets
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) {
		if loc != nil {
			t.loc = loc
		}
	}
}

// WithRetry configures how store writes are retried
func WithRetry(maxRetries uint64, initialInterval time.Duration) Option {
	return func(t *Tracker) {
		t.maxRetries = maxRetries
		t.retryInterval = initialInterval
	}
}

// New creates a Tracker over the given store
func New(db storage.Storage, logger *zap.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		db:            db,
		logger:        logger,
		now:           time.Now,
		loc:           time.Local,
		maxRetries:    defaultMaxRetries,
		retryInterval: defaultRetryInterval,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Location returns the location used for month buckets
func (t *Tracker) Location() *time.Location {
	return t.loc
}

// persist runs a store write with exponential backoff.
// Not-found is permanent and returned wrapped; anything else that survives
// the retries becomes a PersistenceError.
func (t *Tracker) persist(ctx context.Context, op string, write func(context.Context) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = t.retryInterval

	err := backoff.RetryNotify(
		func() error {
			err := write(ctx)
			if errors.Is(err, storage.ErrNotFound) {
				return backoff.Permanent(err)
			}
			return err
		},
		backoff.WithContext(backoff.WithMaxRetries(policy, t.maxRetries), ctx),
		func(err error, wait time.Duration) {
			t.logger.Warn("Store write failed, retrying",
				zap.String("op", op),
				zap.Error(err),
				zap.Duration("retry_in", wait),
			)
		},
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	t.logger.Error("Store write failed", zap.String("op", op), zap.Error(err))
	return &PersistenceError{Op: op, Err: err}
}

func stamp(now time.Time) *time.Time {
	return &now
}
