package store

import (
	"encoding/json"
	"time"
)

// Monitor kinds. Only liveness checks exist today.
const KindLiveness = "liveness"

// Event sources.
const (
	SourceMonitor = "monitor"
	SourceManual  = "manual"
)

// Object types a monitor or event can reference.
const (
	ObjectContainer = "container"
	ObjectVM        = "vm"
)

// Delivery statuses.
const (
	DeliveryPending   = "pending"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

// Channel types. Adding a type means implementing notify.Sender and
// registering it under the new tag.
const (
	ChannelEmail       = "email"
	ChannelWebhook     = "webhook"
	ChannelChatWebhook = "chat-webhook"
)

// Monitor is one configured liveness check bound to a container or VM.
// Exactly one of ContainerID / VMID is set.
type Monitor struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Name        string `json:"name"`
	ContainerID string `gorm:"index" json:"container_id,omitempty"`
	VMID        string `gorm:"index" json:"vm_id,omitempty"`
	Kind        string `json:"kind"`
	Enabled     bool   `json:"enabled"`

	// SeveritySettings is a JSON object mapping transition kind
	// ("offline" | "online" | "unreachable") to {"enabled": bool,
	// "severity": int}. Absent kinds default to enabled with severity 2.
	SeveritySettings string `gorm:"type:text" json:"severity_settings,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Monitor) TableName() string { return "monitors" }

// TargetRef returns the stable reference handed to the liveness probe.
func (m *Monitor) TargetRef() string {
	if m.ContainerID != "" {
		return m.ContainerID
	}
	return m.VMID
}

// ObjectType returns "container" or "vm" depending on the bound target.
func (m *Monitor) ObjectType() string {
	if m.ContainerID != "" {
		return ObjectContainer
	}
	return ObjectVM
}

// SeveritySetting is the per-transition-kind event gate.
type SeveritySetting struct {
	Enabled  bool `json:"enabled"`
	Severity int  `json:"severity"`
}

// SeverityFor resolves the setting for one transition kind. Missing keys,
// missing fields and malformed JSON all fall back to the defaults
// (enabled, severity 2).
func (m *Monitor) SeverityFor(kind string) SeveritySetting {
	out := SeveritySetting{Enabled: true, Severity: 2}
	if m.SeveritySettings == "" {
		return out
	}

	var settings map[string]json.RawMessage
	if err := json.Unmarshal([]byte(m.SeveritySettings), &settings); err != nil {
		return out
	}
	raw, ok := settings[kind]
	if !ok {
		return out
	}

	var cfg struct {
		Enabled  *bool `json:"enabled"`
		Severity *int  `json:"severity"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return out
	}
	if cfg.Enabled != nil {
		out.Enabled = *cfg.Enabled
	}
	if cfg.Severity != nil {
		out.Severity = *cfg.Severity
	}
	return out
}

// MonitorPoint is one observed status sample. Append-only; rows are removed
// only by the retention sweep.
type MonitorPoint struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MonitorID string    `gorm:"index" json:"monitor_id"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
	Value     string    `json:"value"`
}

func (MonitorPoint) TableName() string { return "monitor_points" }

// Event is a notable occurrence produced by the monitor pipeline or injected
// manually. The delivery pipeline never mutates events; only acknowledge
// operations do.
type Event struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
	Severity  int       `json:"severity"`
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	Message   string    `gorm:"type:text" json:"message"`

	// Optional back-reference to the object the event is about.
	ObjectType string `json:"object_type,omitempty"`
	ObjectID   string `gorm:"index" json:"object_id,omitempty"`

	// Fingerprint is informational only. It is never used as a uniqueness
	// key; duplicate fingerprints are possible and fine.
	Fingerprint string `json:"fingerprint,omitempty"`

	Acknowledged   bool       `gorm:"index" json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

func (Event) TableName() string { return "events" }

// EventDelivery records one attempt to send one event to one channel.
// At most one row exists per (event, channel) pair; rows are never updated
// after creation. A failed attempt is not retried.
type EventDelivery struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	EventID     uint       `gorm:"index:idx_event_channel" json:"event_id"`
	ChannelID   uint       `gorm:"index:idx_event_channel" json:"channel_id"`
	Status      string     `json:"status"`
	LastAttempt *time.Time `json:"last_attempt,omitempty"`
	Error       string     `gorm:"type:text" json:"error,omitempty"`
}

func (EventDelivery) TableName() string { return "event_deliveries" }

// Channel is a configured delivery endpoint.
type Channel struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Enabled bool   `gorm:"default:true" json:"enabled"`

	// Config is an opaque JSON object of type-specific connection settings
	// (SMTP host and credentials, webhook URL and headers, ...).
	Config string `gorm:"type:text" json:"config,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Channel) TableName() string { return "notification_channels" }

// ParseConfig decodes the channel config into a map. Malformed or empty
// config yields an empty map; the sender reports the missing keys.
func (c *Channel) ParseConfig() map[string]any {
	out := map[string]any{}
	if c.Config == "" {
		return out
	}
	if err := json.Unmarshal([]byte(c.Config), &out); err != nil {
		return map[string]any{}
	}
	return out
}

// Rule maps an inclusive severity range to a channel. Ranges may overlap
// across rules; an event fans out to the union of all matches.
type Rule struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	ChannelID   uint `gorm:"index" json:"channel_id"`
	MinSeverity int  `json:"min_severity"`

	// MaxSeverity nil means the range is open-ended upward.
	MaxSeverity *int `json:"max_severity,omitempty"`

	Enabled bool `gorm:"default:true" json:"enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Rule) TableName() string { return "notification_rules" }

// Matches reports whether severity falls inside the rule's range.
// It does not consider the enabled flag.
func (r *Rule) Matches(severity int) bool {
	if severity < r.MinSeverity {
		return false
	}
	return r.MaxSeverity == nil || severity <= *r.MaxSeverity
}
