package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/homewatch/homewatch/internal/store"
)

func testEvent() *store.Event {
	return &store.Event{
		ID:        42,
		Timestamp: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		Severity:  2,
		Source:    store.SourceMonitor,
		Title:     "plex went offline",
		Message:   "Container/VM 'plex' transitioned from running to exited",
	}
}

func TestWebhookSend(t *testing.T) {
	var gotBody webhookPayload
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Token")
		json.NewDecoder(r.Body).Decode(&gotBody) //nolint:errcheck
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := &WebhookSender{client: srv.Client()}
	res := s.Send(context.Background(), map[string]any{
		"url":     srv.URL,
		"headers": map[string]any{"X-Token": "secret"},
	}, testEvent())

	if !res.Success {
		t.Fatalf("send failed: %s", res.Error)
	}
	if gotHeader != "secret" {
		t.Errorf("custom header not forwarded, got %q", gotHeader)
	}
	if gotBody.EventID != 42 || gotBody.Severity != 2 {
		t.Errorf("unexpected payload: %+v", gotBody)
	}
	if gotBody.Timestamp != "2026-03-14T12:00:00Z" {
		t.Errorf("timestamp = %q", gotBody.Timestamp)
	}
}

func TestWebhookNon2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := &WebhookSender{client: srv.Client()}
	res := s.Send(context.Background(), map[string]any{"url": srv.URL}, testEvent())
	if res.Success {
		t.Fatal("expected failure on 502")
	}
	if !strings.Contains(res.Error, "502") {
		t.Errorf("error = %q, want status in message", res.Error)
	}
}

func TestWebhookMissingURLFailsWithoutNetwork(t *testing.T) {
	s := &WebhookSender{client: &http.Client{Timeout: time.Second}}
	res := s.Send(context.Background(), map[string]any{}, testEvent())
	if res.Success || res.Error == "" {
		t.Fatalf("expected deterministic failure, got %+v", res)
	}
}

func TestChatWebhookSend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got) //nolint:errcheck
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := &ChatWebhookSender{client: srv.Client()}
	res := s.Send(context.Background(), map[string]any{"webhook_url": srv.URL}, testEvent())
	if !res.Success {
		t.Fatalf("send failed: %s", res.Error)
	}

	embeds, ok := got["embeds"].([]any)
	if !ok || len(embeds) != 1 {
		t.Fatalf("payload missing embeds: %v", got)
	}
	embed := embeds[0].(map[string]any)
	if embed["title"] != "plex went offline" {
		t.Errorf("embed title = %v", embed["title"])
	}
	if int(embed["color"].(float64)) != 0xF59E0B {
		t.Errorf("embed color = %v, want amber for severity 2", embed["color"])
	}
}

func TestChatWebhookMissingURL(t *testing.T) {
	s := &ChatWebhookSender{client: &http.Client{Timeout: time.Second}}
	if res := s.Send(context.Background(), map[string]any{}, testEvent()); res.Success {
		t.Fatal("expected failure without webhook_url")
	}
}

func TestEmailMissingRecipient(t *testing.T) {
	s := &EmailSender{Timeout: time.Second}
	res := s.Send(context.Background(), map[string]any{
		"smtp_server": "localhost",
		"username":    "u@example.com",
		"password":    "pw",
	}, testEvent())
	if res.Success {
		t.Fatal("expected failure without to_email")
	}
	if !strings.Contains(res.Error, "recipient") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestSeverityLabel(t *testing.T) {
	tests := []struct {
		severity int
		want     string
	}{
		{1, "Info"},
		{2, "Warning"},
		{3, "Critical"},
		{4, "Emergency"},
		{7, "Level 7"},
	}
	for _, tt := range tests {
		if got := severityLabel(tt.severity); got != tt.want {
			t.Errorf("severityLabel(%d) = %q, want %q", tt.severity, got, tt.want)
		}
	}
}

func TestRegistryDefaults(t *testing.T) {
	reg := NewRegistry(0)
	for _, typ := range []string{store.ChannelEmail, store.ChannelWebhook, store.ChannelChatWebhook} {
		if _, ok := reg.Sender(typ); !ok {
			t.Errorf("built-in sender %q missing", typ)
		}
	}
	if _, ok := reg.Sender("pager"); ok {
		t.Error("unexpected sender for unregistered type")
	}
}
