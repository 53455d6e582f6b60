package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/homewatch/homewatch/internal/store"
)

// ChatWebhookSender posts rich embed messages to chat webhooks
// (Discord-compatible payload shape).
//
// Config keys: webhook_url (required).
type ChatWebhookSender struct {
	client *http.Client
}

type chatEmbed struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Color       int         `json:"color"`
	Fields      []chatField `json:"fields"`
	Timestamp   string      `json:"timestamp,omitempty"`
	Footer      chatFooter  `json:"footer"`
}

type chatField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type chatFooter struct {
	Text string `json:"text"`
}

func (s *ChatWebhookSender) Send(ctx context.Context, cfg map[string]any, ev *store.Event) Result {
	url := cfgString(cfg, "webhook_url", "")
	if url == "" {
		return failure("no webhook URL configured")
	}

	embed := chatEmbed{
		Title:       ev.Title,
		Description: ev.Message,
		Color:       severityColor(ev.Severity),
		Fields: []chatField{
			{Name: "Severity", Value: severityLabel(ev.Severity), Inline: true},
			{Name: "Source", Value: ev.Source, Inline: true},
		},
		Footer: chatFooter{Text: "homewatch"},
	}
	if !ev.Timestamp.IsZero() {
		embed.Timestamp = ev.Timestamp.UTC().Format(time.RFC3339)
		embed.Footer.Text = fmt.Sprintf("homewatch • %s", humanize.Time(ev.Timestamp))
	}

	body, err := json.Marshal(map[string]any{"embeds": []chatEmbed{embed}})
	if err != nil {
		return failure("encode payload: %s", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return failure("build request: %s", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return failure("http post: %s", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return failure("chat webhook returned status %d", resp.StatusCode)
	}
	return success()
}
