// Package maintenance holds background housekeeping jobs. Currently that is
// the retention sweeper, which purges monitor points, events and delivery
// records older than the configured retention window.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/homewatch/homewatch/internal/store"
)

// sweepInterval is how often the sweeper runs after the initial pass.
const sweepInterval = 24 * time.Hour

// Sweeper deletes rows that fell out of the retention window.
type Sweeper struct {
	store *store.Store
	days  int

	now func() time.Time
}

// NewSweeper builds a Sweeper keeping days worth of history. days <= 0
// disables sweeping entirely; st may be nil, which also disables it.
func NewSweeper(st *store.Store, days int) *Sweeper {
	return &Sweeper{store: st, days: days, now: time.Now}
}

// Run sweeps once immediately and then every 24 hours until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.store == nil || s.days <= 0 {
		slog.Info("maintenance: retention sweeper disabled")
		return
	}
	slog.Info("maintenance: retention sweeper started", "days", s.days)

	s.sweep(ctx)

	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("maintenance: retention sweeper stopped")
			return
		case <-t.C:
			s.sweep(ctx)
		}
	}
}

// Sweep runs one purge pass. Exposed for tests and ops tooling.
func (s *Sweeper) Sweep(ctx context.Context) (store.PurgeResult, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.days)
	return s.store.PurgeBefore(ctx, cutoff)
}

func (s *Sweeper) sweep(ctx context.Context) {
	res, err := s.Sweep(ctx)
	if err != nil {
		slog.Error("maintenance: retention sweep failed", "err", err)
		return
	}
	if res.Points+res.Events+res.Deliveries > 0 {
		slog.Info("maintenance: retention sweep complete",
			"points", res.Points, "events", res.Events, "deliveries", res.Deliveries)
	}
}
