package verification

import (
	"context"
	"log/slog"
	"time"

	"github.com/signalix/smsverify/internal/repo"
)

// Sweeper periodically deletes attempts that no longer block admission.
// It never touches a live attempt, so admission decisions are unaffected.
type Sweeper struct {
	store    repo.AttemptRepo
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewSweeper creates a Sweeper. An interval <= 0 disables Run.
func NewSweeper(store repo.AttemptRepo, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Warn("attempt sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce deletes expired and send_failed attempts and returns how many were removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired attempts swept", "count", n)
	}
	return n, nil
}
