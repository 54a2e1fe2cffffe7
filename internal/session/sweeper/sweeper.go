// Package sweeper runs the periodic expiry pass. The host process owns the
// schedule; the lifecycle service owns the transition semantics.
package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// Expirer is the slice of the session service the sweeper drives.
type Expirer interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// Sweeper ticks on a fixed interval and forces expired-but-still-active
// sessions into their terminal state, so session status converges with
// wall-clock time within one interval even if nobody ever reads it.
type Sweeper struct {
	sessions Expirer
	interval time.Duration
	logger   *slog.Logger
}

// New constructs a sweeper. Intervals at or below zero fall back to 30s.
func New(sessions Expirer, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{sessions: sessions, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled, sweeping once per interval. Sweep
// failures are logged and the loop keeps going; one bad pass must not stop
// expiry enforcement.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if _, err := s.sessions.SweepExpired(ctx, now); err != nil {
				s.logger.ErrorContext(ctx, "expiry sweep failed", "error", err)
			}
		}
	}
}
