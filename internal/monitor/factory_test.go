package monitor

import (
	"strings"
	"testing"
	"time"

	"github.com/homewatch/homewatch/internal/store"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func testMonitor() *store.Monitor {
	return &store.Monitor{
		ID:          "mon-1",
		Name:        "plex",
		ContainerID: "abc123",
		Kind:        store.KindLiveness,
		Enabled:     true,
	}
}

func TestBuildEventOffline(t *testing.T) {
	ev := BuildEvent(testMonitor(), TransitionOffline, "exited", "running", testNow)
	if ev == nil {
		t.Fatal("expected event")
	}
	if ev.Title != "plex went offline" {
		t.Errorf("title = %q", ev.Title)
	}
	if ev.Message != "Container/VM 'plex' transitioned from running to exited" {
		t.Errorf("message = %q", ev.Message)
	}
	if ev.Severity != 2 {
		t.Errorf("default severity = %d, want 2", ev.Severity)
	}
	if ev.Source != store.SourceMonitor {
		t.Errorf("source = %q", ev.Source)
	}
	if ev.ObjectType != store.ObjectContainer || ev.ObjectID != "abc123" {
		t.Errorf("object ref = %q/%q", ev.ObjectType, ev.ObjectID)
	}
	if ev.Fingerprint != "monitor:mon-1:offline:exited" {
		t.Errorf("fingerprint = %q", ev.Fingerprint)
	}
	if !ev.Timestamp.Equal(testNow) {
		t.Errorf("timestamp = %v", ev.Timestamp)
	}
}

func TestBuildEventOnline(t *testing.T) {
	ev := BuildEvent(testMonitor(), TransitionOnline, "running", "exited", testNow)
	if ev == nil {
		t.Fatal("expected event")
	}
	if ev.Title != "plex came online" {
		t.Errorf("title = %q", ev.Title)
	}
	if ev.Message != "Container/VM 'plex' is now running (was exited)" {
		t.Errorf("message = %q", ev.Message)
	}
}

func TestBuildEventUnreachable(t *testing.T) {
	ev := BuildEvent(testMonitor(), TransitionUnreachable, "paused", "running", testNow)
	if ev == nil {
		t.Fatal("expected event")
	}
	if ev.Title != "plex is unreachable" {
		t.Errorf("title = %q", ev.Title)
	}
	if !strings.Contains(ev.Message, "state is paused (was running)") {
		t.Errorf("message = %q", ev.Message)
	}
}

func TestBuildEventSeveritySettings(t *testing.T) {
	tests := []struct {
		name     string
		settings string
		tr       Transition
		wantNil  bool
		wantSev  int
	}{
		{"no settings default", "", TransitionOffline, false, 2},
		{"custom severity", `{"offline":{"enabled":true,"severity":3}}`, TransitionOffline, false, 3},
		{"kind disabled", `{"offline":{"enabled":false,"severity":3}}`, TransitionOffline, true, 0},
		{"zero severity suppresses", `{"offline":{"enabled":true,"severity":0}}`, TransitionOffline, true, 0},
		{"negative severity suppresses", `{"offline":{"enabled":true,"severity":-1}}`, TransitionOffline, true, 0},

		// Suppression is per kind: muting offline leaves online alone.
		{"other kind unaffected", `{"offline":{"enabled":false}}`, TransitionOnline, false, 2},

		{"malformed json falls back", `{not json`, TransitionOffline, false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testMonitor()
			m.SeveritySettings = tt.settings
			ev := BuildEvent(m, tt.tr, "x", "y", testNow)
			if tt.wantNil {
				if ev != nil {
					t.Fatalf("expected suppression, got event %+v", ev)
				}
				return
			}
			if ev == nil {
				t.Fatal("expected event, got nil")
			}
			if ev.Severity != tt.wantSev {
				t.Errorf("severity = %d, want %d", ev.Severity, tt.wantSev)
			}
		})
	}
}

func TestBuildEventNameFallsBackToTarget(t *testing.T) {
	m := testMonitor()
	m.Name = ""
	ev := BuildEvent(m, TransitionOffline, "exited", "running", testNow)
	if ev == nil {
		t.Fatal("expected event")
	}
	if ev.Title != "abc123 went offline" {
		t.Errorf("title = %q", ev.Title)
	}
}

func TestBuildEventNoTransition(t *testing.T) {
	if ev := BuildEvent(testMonitor(), TransitionNone, "exited", "running", testNow); ev != nil {
		t.Fatalf("TransitionNone should build nothing, got %+v", ev)
	}
}
