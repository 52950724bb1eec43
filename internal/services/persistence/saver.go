// Package persistence writes session state snapshots to the session-state
// store, coalescing bursts of changes into a single write
package persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/KirkDiggler/rpg-sheet/internal/entities/sheet"
	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	sessionstate "github.com/KirkDiggler/rpg-sheet/internal/repositories/session_state"
	"github.com/KirkDiggler/rpg-sheet/internal/services/snapshot"
)

// Saver schedules durable writes of the session state
type Saver interface {
	// Schedule records state as the latest snapshot. With a zero delay it is
	// written before Schedule returns; otherwise once the delay passes without
	// another Schedule call. Failures are logged, never returned.
	Schedule(ctx context.Context, state *sheet.SessionState)

	// Flush writes any pending snapshot now
	Flush(ctx context.Context) error

	// Close flushes and stops accepting new snapshots
	Close(ctx context.Context) error
}

// Config configures the saver
type Config struct {
	Repository sessionstate.Repository
	Key        string
	// Delay is the quiet period before a scheduled snapshot is written (optional, 0 writes synchronously)
	Delay time.Duration
}

// Validate validates the Config
func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.InvalidArgument("config is required")
	}

	vb := errors.NewValidationBuilder()
	if cfg.Repository == nil {
		vb.RequiredField("repository")
	}
	errors.ValidateRequired("key", cfg.Key, vb)
	if cfg.Delay < 0 {
		vb.InvalidField("delay", "must not be negative")
	}
	return vb.Build()
}

type saver struct {
	repo  sessionstate.Repository
	key   string
	delay time.Duration

	// writeMu serializes writes so an older snapshot never lands after a newer one
	writeMu sync.Mutex

	mu      sync.Mutex
	pending *sheet.SessionState
	timer   *time.Timer
	closed  bool
}

// NewSaver creates a saver for the given store key
func NewSaver(cfg *Config) (Saver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &saver{
		repo:  cfg.Repository,
		key:   cfg.Key,
		delay: cfg.Delay,
	}, nil
}

func (s *saver) Schedule(ctx context.Context, state *sheet.SessionState) {
	if state == nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		slog.WarnContext(ctx, "Dropping session state snapshot after close", "key", s.key)
		return
	}
	s.pending = state.Clone()

	if s.delay == 0 {
		s.mu.Unlock()
		_ = s.writePending(ctx)
		return
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	timerCtx := context.WithoutCancel(ctx)
	s.timer = time.AfterFunc(s.delay, func() {
		_ = s.writePending(timerCtx)
	})
	s.mu.Unlock()
}

func (s *saver) Flush(ctx context.Context) error {
	return s.writePending(ctx)
}

func (s *saver) Close(ctx context.Context) error {
	err := s.writePending(ctx)

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	return err
}

func (s *saver) writePending(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	state := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if state == nil {
		return nil
	}

	data, err := snapshot.Encode(state)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to encode session state", "key", s.key, "error", err)
		return err
	}

	_, err = s.repo.Put(ctx, &sessionstate.PutInput{
		Key:   s.key,
		Value: data,
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to persist session state",
			"key", s.key,
			"last_updated", state.LastUpdated,
			"error", err)
		return err
	}

	slog.DebugContext(ctx, "Persisted session state",
		"key", s.key,
		"last_updated", state.LastUpdated,
		"bytes", len(data))
	return nil
}
