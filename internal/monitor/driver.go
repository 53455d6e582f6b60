package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/homewatch/homewatch/internal/metrics"
	"github.com/homewatch/homewatch/internal/store"
)

// Driver owns the monitoring loop: every interval it evaluates all enabled
// monitors, persists their points, and turns detected transitions into
// events — all inside one database transaction per cycle.
//
// The driver is the sole reader and writer of the Tracker. Monitors are
// processed sequentially within a cycle; parallelizing them would require
// per-key locking on the tracker.
type Driver struct {
	store   *store.Store
	eval    *Evaluator
	tracker Tracker

	mu       sync.Mutex
	interval time.Duration

	now func() time.Time // injectable for deterministic tests
}

// NewDriver builds a Driver. store may be nil, in which case every cycle is
// a no-op — the daemon degrades instead of crashing when persistence is
// unavailable at startup.
func NewDriver(st *store.Store, eval *Evaluator, tracker Tracker, interval time.Duration) *Driver {
	return &Driver{
		store:    st,
		eval:     eval,
		tracker:  tracker,
		interval: interval,
		now:      time.Now,
	}
}

// Tracker exposes the transition map for inspection endpoints.
func (d *Driver) Tracker() Tracker { return d.tracker }

// Interval returns the current cycle interval.
func (d *Driver) Interval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interval
}

// SetInterval retunes the loop; the new interval takes effect after the
// cycle currently being waited on.
func (d *Driver) SetInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	d.mu.Lock()
	d.interval = interval
	d.mu.Unlock()
}

// Run executes cycles until ctx is cancelled. Cycle errors are logged and
// never stop the loop; the next tick starts from scratch.
func (d *Driver) Run(ctx context.Context) {
	slog.Info("monitor: loop started", "interval", d.Interval())
	timer := time.NewTimer(d.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("monitor: loop stopped")
			return
		case <-timer.C:
			if err := d.RunCycle(ctx); err != nil {
				slog.Error("monitor: cycle failed", "err", err)
			}
			timer.Reset(d.Interval())
		}
	}
}

// RunCycle performs one monitoring pass over all enabled monitors. It can
// also be called ad hoc (ops tooling, tests) next to the running loop.
//
// The whole pass runs in one transaction: a persistence failure part-way
// rolls back every point and event from this cycle. The tracker is updated
// only after the transaction commits, so a rolled-back cycle also leaves
// transition state untouched.
func (d *Driver) RunCycle(ctx context.Context) error {
	if d.store == nil {
		return nil
	}

	start := d.now()
	observed := make(map[string]string)

	err := d.store.Transaction(ctx, func(tx *store.Store) error {
		monitors, err := tx.EnabledMonitors(ctx)
		if err != nil {
			return err
		}

		for i := range monitors {
			m := &monitors[i]
			status := d.eval.Evaluate(ctx, m)

			if err := tx.AddPoint(ctx, &store.MonitorPoint{
				MonitorID: m.ID,
				Timestamp: d.now(),
				Value:     status,
			}); err != nil {
				return err
			}
			metrics.PointRecorded()

			if old, ok := d.tracker.Last(m.ID); ok && old != status {
				if tr := Classify(status, old); tr != TransitionNone {
					if ev := BuildEvent(m, tr, status, old, d.now()); ev != nil {
						if err := tx.CreateEvent(ctx, ev); err != nil {
							return err
						}
						metrics.EventCreated(string(tr))
						slog.Warn("monitor: event created",
							"monitor", m.ID,
							"name", m.Name,
							"kind", tr,
							"old", old,
							"new", status,
							"severity", ev.Severity,
						)
					}
				}
			}

			observed[m.ID] = status
		}
		return nil
	})

	if err != nil {
		metrics.ObserveCycle(d.now().Sub(start), metrics.OutcomeError)
		return err
	}

	for id, status := range observed {
		d.tracker.Observe(id, status)
	}

	metrics.ObserveCycle(d.now().Sub(start), metrics.OutcomeSuccess)
	slog.Debug("monitor: cycle complete", "monitors", len(observed))
	return nil
}
