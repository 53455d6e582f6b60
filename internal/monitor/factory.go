package monitor

import (
	"fmt"
	"time"

	"github.com/homewatch/homewatch/internal/store"
)

// BuildEvent synthesizes the event for a fired transition, or returns nil
// when the monitor's severity settings suppress it (kind disabled, or
// severity zero/negative). Suppression is per transition kind: muting
// "online" leaves "offline" untouched.
//
// The fingerprint is informational; nothing enforces its uniqueness.
func BuildEvent(m *store.Monitor, tr Transition, newStatus, oldStatus string, now time.Time) *store.Event {
	setting := m.SeverityFor(string(tr))
	if !setting.Enabled || setting.Severity <= 0 {
		return nil
	}

	name := m.Name
	if name == "" {
		name = m.TargetRef()
	}

	var title, message string
	switch tr {
	case TransitionOffline:
		title = fmt.Sprintf("%s went offline", name)
		message = fmt.Sprintf("Container/VM '%s' transitioned from %s to %s", name, oldStatus, newStatus)
	case TransitionOnline:
		title = fmt.Sprintf("%s came online", name)
		message = fmt.Sprintf("Container/VM '%s' is now running (was %s)", name, oldStatus)
	case TransitionUnreachable:
		title = fmt.Sprintf("%s is unreachable", name)
		message = fmt.Sprintf("Container/VM '%s' state is %s (was %s)", name, newStatus, oldStatus)
	default:
		return nil
	}

	return &store.Event{
		Timestamp:   now,
		Severity:    setting.Severity,
		Source:      store.SourceMonitor,
		Title:       title,
		Message:     message,
		ObjectType:  m.ObjectType(),
		ObjectID:    m.TargetRef(),
		Fingerprint: fmt.Sprintf("monitor:%s:%s:%s", m.ID, tr, newStatus),
	}
}
