package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/homewatch/homewatch/internal/store"
)

// WebhookSender POSTs a flat JSON payload to a user-supplied endpoint.
//
// Config keys: url (required), method (default POST), headers (object of
// string values, merged into the request).
type WebhookSender struct {
	client *http.Client
}

// webhookPayload is the generic event representation sent to webhooks.
type webhookPayload struct {
	EventID   uint   `json:"event_id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Severity  int    `json:"severity"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (s *WebhookSender) Send(ctx context.Context, cfg map[string]any, ev *store.Event) Result {
	url := cfgString(cfg, "url", "")
	if url == "" {
		return failure("no webhook URL configured")
	}
	method := strings.ToUpper(cfgString(cfg, "method", http.MethodPost))

	payload := webhookPayload{
		EventID:  ev.ID,
		Title:    ev.Title,
		Message:  ev.Message,
		Severity: ev.Severity,
		Source:   ev.Source,
	}
	if !ev.Timestamp.IsZero() {
		payload.Timestamp = ev.Timestamp.UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failure("encode payload: %s", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return failure("build request: %s", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if headers, ok := cfg["headers"].(map[string]any); ok {
		for k, v := range headers {
			if vs, ok := v.(string); ok {
				req.Header.Set(k, vs)
			}
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return failure("http %s: %s", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return failure("webhook returned status %d", resp.StatusCode)
	}
	return success()
}
