package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = gorm.ErrRecordNotFound

// Store wraps the database handle and owns all persistence for monitors,
// points, events, deliveries, channels and rules.
type Store struct {
	db *gorm.DB
}

// Open creates (if needed) and migrates the SQLite database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}

	if err := db.AutoMigrate(
		&Monitor{}, &MonitorPoint{},
		&Event{}, &EventDelivery{},
		&Channel{}, &Rule{},
	); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// New wraps an existing gorm handle. Used by Transaction and by tests.
func New(db *gorm.DB) *Store { return &Store{db: db} }

// Transaction runs fn inside a single database transaction. An error from fn
// rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

// --- monitors ---------------------------------------------------------------

// Monitors returns every monitor configuration.
func (s *Store) Monitors(ctx context.Context) ([]Monitor, error) {
	var out []Monitor
	err := s.db.WithContext(ctx).Order("created_at").Find(&out).Error
	return out, err
}

// EnabledMonitors returns the monitors the cycle driver should evaluate.
// Queried fresh each cycle so a mid-run disable is picked up on the next tick.
func (s *Store) EnabledMonitors(ctx context.Context) ([]Monitor, error) {
	var out []Monitor
	err := s.db.WithContext(ctx).Where("enabled = ?", true).Order("created_at").Find(&out).Error
	return out, err
}

// MonitorByID fetches one monitor. Returns ErrNotFound if absent.
func (s *Store) MonitorByID(ctx context.Context, id string) (*Monitor, error) {
	var m Monitor
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// MonitorByTarget fetches the monitor bound to the given object, if any.
func (s *Store) MonitorByTarget(ctx context.Context, objectType, objectID string) (*Monitor, error) {
	col := "container_id"
	if objectType == ObjectVM {
		col = "vm_id"
	}
	var m Monitor
	if err := s.db.WithContext(ctx).First(&m, col+" = ?", objectID).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// EnsureMonitor creates or updates the monitor for a target. A monitor is
// created on the first enable request and never auto-deleted afterwards;
// subsequent calls only flip the enabled flag (and refresh the name when one
// is supplied).
func (s *Store) EnsureMonitor(ctx context.Context, objectType, objectID, name string, enabled bool) (*Monitor, error) {
	m, err := s.MonitorByTarget(ctx, objectType, objectID)
	if errors.Is(err, ErrNotFound) {
		m = &Monitor{
			ID:      uuid.NewString(),
			Name:    name,
			Kind:    KindLiveness,
			Enabled: enabled,
		}
		if objectType == ObjectVM {
			m.VMID = objectID
		} else {
			m.ContainerID = objectID
		}
		if m.Name == "" {
			m.Name = objectID
		}
		if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
			return nil, err
		}
		return m, nil
	}
	if err != nil {
		return nil, err
	}

	m.Enabled = enabled
	if name != "" {
		m.Name = name
	}
	if err := s.db.WithContext(ctx).Save(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// SaveMonitor persists changes to an existing monitor.
func (s *Store) SaveMonitor(ctx context.Context, m *Monitor) error {
	return s.db.WithContext(ctx).Save(m).Error
}

// --- points -----------------------------------------------------------------

// AddPoint appends one observed status sample.
func (s *Store) AddPoint(ctx context.Context, p *MonitorPoint) error {
	return s.db.WithContext(ctx).Create(p).Error
}

// RecentPoints returns the newest samples for a monitor, newest first.
func (s *Store) RecentPoints(ctx context.Context, monitorID string, limit int) ([]MonitorPoint, error) {
	var out []MonitorPoint
	err := s.db.WithContext(ctx).
		Where("monitor_id = ?", monitorID).
		Order("timestamp desc").Limit(limit).
		Find(&out).Error
	return out, err
}

// --- events -----------------------------------------------------------------

// CreateEvent inserts a new event row.
func (s *Store) CreateEvent(ctx context.Context, e *Event) error {
	return s.db.WithContext(ctx).Create(e).Error
}

// EventByID fetches one event. Returns ErrNotFound if absent.
func (s *Store) EventByID(ctx context.Context, id uint) (*Event, error) {
	var e Event
	if err := s.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// PendingEvents returns unacknowledged events oldest first, capped at limit.
// Oldest-first keeps delivery fair and bounds per-scan work.
func (s *Store) PendingEvents(ctx context.Context, limit int) ([]Event, error) {
	var out []Event
	err := s.db.WithContext(ctx).
		Where("acknowledged = ?", false).
		Order("timestamp asc").Limit(limit).
		Find(&out).Error
	return out, err
}

// EventFilter narrows ListEvents.
type EventFilter struct {
	Acknowledged *bool
	Limit        int
	Offset       int
}

// ListEvents returns events newest first plus the total count matching the
// filter (ignoring limit/offset).
func (s *Store) ListEvents(ctx context.Context, f EventFilter) ([]Event, int64, error) {
	q := s.db.WithContext(ctx).Model(&Event{})
	if f.Acknowledged != nil {
		q = q.Where("acknowledged = ?", *f.Acknowledged)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []Event
	err := q.Order("timestamp desc").Offset(f.Offset).Limit(f.Limit).Find(&out).Error
	return out, total, err
}

// EventsForObject returns the newest events referencing one object.
func (s *Store) EventsForObject(ctx context.Context, objectType, objectID string, limit int) ([]Event, error) {
	var out []Event
	err := s.db.WithContext(ctx).
		Where("object_type = ? AND object_id = ?", objectType, objectID).
		Order("timestamp desc").Limit(limit).
		Find(&out).Error
	return out, err
}

// UnreadCount returns the number of unacknowledged events.
func (s *Store) UnreadCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Event{}).
		Where("acknowledged = ?", false).Count(&n).Error
	return n, err
}

// Acknowledge marks one event as acknowledged at now.
// Returns ErrNotFound if the event does not exist.
func (s *Store) Acknowledge(ctx context.Context, id uint, now time.Time) error {
	res := s.db.WithContext(ctx).Model(&Event{}).
		Where("id = ?", id).
		Updates(map[string]any{"acknowledged": true, "acknowledged_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AcknowledgeAll marks every unacknowledged event as acknowledged at now and
// returns how many rows changed.
func (s *Store) AcknowledgeAll(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Event{}).
		Where("acknowledged = ?", false).
		Updates(map[string]any{"acknowledged": true, "acknowledged_at": now})
	return res.RowsAffected, res.Error
}

// DeleteEvent removes an event together with its delivery records, keeping
// the no-orphan-deliveries invariant. Returns false if the event was absent.
func (s *Store) DeleteEvent(ctx context.Context, id uint) (bool, error) {
	deleted := false
	err := s.Transaction(ctx, func(tx *Store) error {
		if err := tx.db.Delete(&EventDelivery{}, "event_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.db.Delete(&Event{}, id)
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

// DeleteAllEvents removes every event and every delivery record.
func (s *Store) DeleteAllEvents(ctx context.Context) (int64, error) {
	var count int64
	err := s.Transaction(ctx, func(tx *Store) error {
		if err := tx.db.Where("1 = 1").Delete(&EventDelivery{}).Error; err != nil {
			return err
		}
		res := tx.db.Where("1 = 1").Delete(&Event{})
		count = res.RowsAffected
		return res.Error
	})
	return count, err
}

// --- deliveries -------------------------------------------------------------

// HasDelivery reports whether a delivery row already exists for the
// (event, channel) pair. This check is what guarantees at-most-once delivery.
func (s *Store) HasDelivery(ctx context.Context, eventID, channelID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&EventDelivery{}).
		Where("event_id = ? AND channel_id = ?", eventID, channelID).
		Count(&n).Error
	return n > 0, err
}

// RecordDelivery inserts one delivery record. The insert commits on its own
// so a crash mid-scan loses at most the attempt in flight.
func (s *Store) RecordDelivery(ctx context.Context, d *EventDelivery) error {
	return s.db.WithContext(ctx).Create(d).Error
}

// DeliveriesForEvent returns all delivery records for one event.
func (s *Store) DeliveriesForEvent(ctx context.Context, eventID uint) ([]EventDelivery, error) {
	var out []EventDelivery
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Find(&out).Error
	return out, err
}

// --- channels ---------------------------------------------------------------

// Channels returns every configured channel.
func (s *Store) Channels(ctx context.Context) ([]Channel, error) {
	var out []Channel
	err := s.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, err
}

// EnabledChannels returns the channels eligible for delivery.
func (s *Store) EnabledChannels(ctx context.Context) ([]Channel, error) {
	var out []Channel
	err := s.db.WithContext(ctx).Where("enabled = ?", true).Order("id").Find(&out).Error
	return out, err
}

// ChannelByID fetches one channel. Returns ErrNotFound if absent.
func (s *Store) ChannelByID(ctx context.Context, id uint) (*Channel, error) {
	var c Channel
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateChannel inserts a new channel.
func (s *Store) CreateChannel(ctx context.Context, c *Channel) error {
	return s.db.WithContext(ctx).Create(c).Error
}

// SaveChannel persists changes to an existing channel.
func (s *Store) SaveChannel(ctx context.Context, c *Channel) error {
	return s.db.WithContext(ctx).Save(c).Error
}

// DeleteChannel removes a channel and the rules pointing at it.
// Returns false if the channel was absent.
func (s *Store) DeleteChannel(ctx context.Context, id uint) (bool, error) {
	deleted := false
	err := s.Transaction(ctx, func(tx *Store) error {
		if err := tx.db.Delete(&Rule{}, "channel_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.db.Delete(&Channel{}, id)
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

// --- rules ------------------------------------------------------------------

// Rules returns every configured rule.
func (s *Store) Rules(ctx context.Context) ([]Rule, error) {
	var out []Rule
	err := s.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, err
}

// EnabledRules returns the rules considered during fan-out.
func (s *Store) EnabledRules(ctx context.Context) ([]Rule, error) {
	var out []Rule
	err := s.db.WithContext(ctx).Where("enabled = ?", true).Order("id").Find(&out).Error
	return out, err
}

// RuleByID fetches one rule. Returns ErrNotFound if absent.
func (s *Store) RuleByID(ctx context.Context, id uint) (*Rule, error) {
	var r Rule
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRule inserts a new rule.
func (s *Store) CreateRule(ctx context.Context, r *Rule) error {
	return s.db.WithContext(ctx).Create(r).Error
}

// SaveRule persists changes to an existing rule.
func (s *Store) SaveRule(ctx context.Context, r *Rule) error {
	return s.db.WithContext(ctx).Save(r).Error
}

// DeleteRule removes one rule. Returns false if it was absent.
func (s *Store) DeleteRule(ctx context.Context, id uint) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&Rule{}, id)
	return res.RowsAffected > 0, res.Error
}

// --- maintenance ------------------------------------------------------------

// PurgeResult counts the rows removed by one retention sweep.
type PurgeResult struct {
	Points     int64
	Events     int64
	Deliveries int64
}

// PurgeBefore deletes monitor points, events and delivery records older than
// cutoff. Deliveries whose parent event is purged go with it; the remaining
// deliveries are aged out by their own last-attempt timestamp.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (PurgeResult, error) {
	var out PurgeResult
	err := s.Transaction(ctx, func(tx *Store) error {
		res := tx.db.Where("timestamp < ?", cutoff).Delete(&MonitorPoint{})
		if res.Error != nil {
			return res.Error
		}
		out.Points = res.RowsAffected

		res = tx.db.Where("event_id IN (?)",
			tx.db.Model(&Event{}).Select("id").Where("timestamp < ?", cutoff),
		).Delete(&EventDelivery{})
		if res.Error != nil {
			return res.Error
		}
		out.Deliveries = res.RowsAffected

		res = tx.db.Where("timestamp < ?", cutoff).Delete(&Event{})
		if res.Error != nil {
			return res.Error
		}
		out.Events = res.RowsAffected

		res = tx.db.Where("last_attempt < ?", cutoff).Delete(&EventDelivery{})
		if res.Error != nil {
			return res.Error
		}
		out.Deliveries += res.RowsAffected
		return nil
	})
	return out, err
}
