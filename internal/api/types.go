package api

import "encoding/json"

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status       string `json:"status"` // "ok" | "degraded"
	UnreadEvents int64  `json:"unread_events"`
	Tracked      int    `json:"tracked_monitors"`
}

// monitorStateRequest is the body for POST /api/v1/monitors/{type}/{id}.
type monitorStateRequest struct {
	Enabled *bool  `json:"enabled"`
	Name    string `json:"name,omitempty"`
}

// eventListResponse is the payload for GET /api/v1/events.
type eventListResponse struct {
	Events any   `json:"events"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// testEventRequest is the body for POST /api/v1/events/test.
type testEventRequest struct {
	Severity int    `json:"severity"`
	Source   string `json:"source"`
	Title    string `json:"title"`
	Message  string `json:"message"`
}

// channelRequest is the body for channel create/update.
type channelRequest struct {
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Enabled *bool           `json:"enabled"`
	Config  json.RawMessage `json:"config"`
}

// ruleRequest is the body for rule create/update.
type ruleRequest struct {
	ChannelID   uint  `json:"channel_id"`
	MinSeverity int   `json:"min_severity"`
	MaxSeverity *int  `json:"max_severity"`
	Enabled     *bool `json:"enabled"`
}

// countResponse reports how many rows an operation touched.
type countResponse struct {
	Message string `json:"message"`
	Count   int64  `json:"count"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
