package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/homewatch/homewatch/internal/metrics"
	"github.com/homewatch/homewatch/internal/store"
)

// MatchChannels resolves the fan-out for one severity: the union of channels
// reachable through at least one enabled rule whose inclusive range covers
// the severity, filtered to enabled channels and deduplicated by channel id.
// Output order follows the channels slice, so fan-out is deterministic.
func MatchChannels(severity int, channels []store.Channel, rules []store.Rule) []store.Channel {
	matched := make(map[uint]struct{})
	for i := range rules {
		r := &rules[i]
		if !r.Enabled || !r.Matches(severity) {
			continue
		}
		matched[r.ChannelID] = struct{}{}
	}

	out := make([]store.Channel, 0, len(matched))
	for _, c := range channels {
		if !c.Enabled {
			continue
		}
		if _, ok := matched[c.ID]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Dispatcher is the delivery half of the pipeline: it scans for events that
// have not yet been delivered and sends each to its matching channels,
// recording every attempt durably.
type Dispatcher struct {
	store    *store.Store
	registry *Registry
	batch    int

	mu       sync.Mutex
	interval time.Duration

	now func() time.Time
}

// NewDispatcher builds a Dispatcher. store may be nil, degrading every scan
// to a no-op.
func NewDispatcher(st *store.Store, registry *Registry, batch int, interval time.Duration) *Dispatcher {
	if batch <= 0 {
		batch = 50
	}
	return &Dispatcher{
		store:    st,
		registry: registry,
		batch:    batch,
		interval: interval,
		now:      time.Now,
	}
}

// Interval returns the current scan interval.
func (d *Dispatcher) Interval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interval
}

// SetInterval retunes the loop; takes effect after the current wait.
func (d *Dispatcher) SetInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	d.mu.Lock()
	d.interval = interval
	d.mu.Unlock()
}

// Run scans until ctx is cancelled. A scan in progress finishes its batch
// before the stop signal is observed; individual attempts are never
// cancelled mid-flight.
func (d *Dispatcher) Run(ctx context.Context) {
	slog.Info("notify: delivery loop started", "interval", d.Interval())
	timer := time.NewTimer(d.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("notify: delivery loop stopped")
			return
		case <-timer.C:
			if _, err := d.ProcessPending(ctx); err != nil {
				slog.Error("notify: delivery scan failed", "err", err)
			}
			timer.Reset(d.Interval())
		}
	}
}

// ProcessPending walks unacknowledged events (oldest first, bounded batch)
// and attempts delivery to every matching channel that has no delivery
// record yet. Each attempt's record commits on its own, immediately, so the
// existence check keeps repeated scans idempotent: at most one EventDelivery
// row ever exists per (event, channel) pair.
//
// Returns the number of attempts made. Failed sends are recorded and not
// retried; events with no matching channel are skipped silently.
func (d *Dispatcher) ProcessPending(ctx context.Context) (int, error) {
	if d.store == nil {
		return 0, nil
	}

	events, err := d.store.PendingEvents(ctx, d.batch)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	channels, err := d.store.Channels(ctx)
	if err != nil {
		return 0, err
	}
	rules, err := d.store.Rules(ctx)
	if err != nil {
		return 0, err
	}

	attempts := 0
	for i := range events {
		ev := &events[i]

		for _, ch := range MatchChannels(ev.Severity, channels, rules) {
			exists, err := d.store.HasDelivery(ctx, ev.ID, ch.ID)
			if err != nil {
				return attempts, err
			}
			if exists {
				continue
			}

			res := d.send(ctx, &ch, ev)

			now := d.now()
			status := store.DeliveryDelivered
			if !res.Success {
				status = store.DeliveryFailed
			}
			rec := &store.EventDelivery{
				EventID:     ev.ID,
				ChannelID:   ch.ID,
				Status:      status,
				LastAttempt: &now,
				Error:       res.Error,
			}
			if err := d.store.RecordDelivery(ctx, rec); err != nil {
				return attempts, err
			}
			attempts++
			metrics.DeliveryRecorded(ch.Type, res.Success)

			if res.Success {
				slog.Info("notify: delivered",
					"event", ev.ID, "channel", ch.Name, "type", ch.Type)
			} else {
				slog.Warn("notify: delivery failed",
					"event", ev.ID, "channel", ch.Name, "type", ch.Type,
					"err", res.Error)
			}
		}
	}
	return attempts, nil
}

// send routes one event to the channel's sender.
func (d *Dispatcher) send(ctx context.Context, ch *store.Channel, ev *store.Event) Result {
	sender, ok := d.registry.Sender(ch.Type)
	if !ok {
		return failure("unknown channel type: %s", ch.Type)
	}
	return sender.Send(ctx, ch.ParseConfig(), ev)
}
