package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/homewatch/homewatch/internal/store"
)

const defaultSendTimeout = 10 * time.Second

// Result is the outcome of one send attempt. Senders never panic or leak
// errors past their boundary; transport and auth failures are captured here.
type Result struct {
	Success bool
	Error   string
}

func success() Result { return Result{Success: true} }

func failure(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// Sender delivers one event through one channel type. cfg is the channel's
// opaque type-specific configuration. A structurally invalid config (e.g.
// missing endpoint) must return a deterministic failure without touching the
// network.
type Sender interface {
	Send(ctx context.Context, cfg map[string]any, ev *store.Event) Result
}

// Registry maps channel type tags to their senders. Adding a channel type is
// a one-place change: implement Sender and register it under the new tag.
type Registry struct {
	senders map[string]Sender
}

// NewRegistry builds a registry with the built-in email, webhook and
// chat-webhook senders, each bounded by timeout (zero means 10s).
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	client := &http.Client{Timeout: timeout}

	r := &Registry{senders: make(map[string]Sender)}
	r.Register(store.ChannelEmail, &EmailSender{Timeout: timeout})
	r.Register(store.ChannelWebhook, &WebhookSender{client: client})
	r.Register(store.ChannelChatWebhook, &ChatWebhookSender{client: client})
	return r
}

// Register binds a sender to a channel type tag, replacing any previous one.
func (r *Registry) Register(channelType string, s Sender) {
	r.senders[channelType] = s
}

// Sender returns the sender for a channel type.
func (r *Registry) Sender(channelType string) (Sender, bool) {
	s, ok := r.senders[channelType]
	return s, ok
}

// --- shared config and formatting helpers -----------------------------------

// cfgString reads a string key from a channel config.
func cfgString(cfg map[string]any, key, fallback string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// cfgInt reads an integer key. JSON numbers decode as float64.
func cfgInt(cfg map[string]any, key string, fallback int) int {
	switch v := cfg[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

// cfgBool reads a boolean key.
func cfgBool(cfg map[string]any, key string, fallback bool) bool {
	if v, ok := cfg[key].(bool); ok {
		return v
	}
	return fallback
}

// severityLabel names a severity level for humans. The scale is open-ended;
// levels past the named ones fall back to "Level N".
func severityLabel(severity int) string {
	switch severity {
	case 1:
		return "Info"
	case 2:
		return "Warning"
	case 3:
		return "Critical"
	case 4:
		return "Emergency"
	default:
		return fmt.Sprintf("Level %d", severity)
	}
}

// severityColor returns the accent color for a severity as a 24-bit RGB int.
func severityColor(severity int) int {
	switch severity {
	case 1:
		return 0x3B82F6 // blue
	case 2:
		return 0xF59E0B // amber
	case 3:
		return 0xEF4444 // red
	case 4:
		return 0x8B5CF6 // purple
	default:
		return 0xEC4899 // pink
	}
}
