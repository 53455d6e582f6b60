// Package api exposes the administrative HTTP surface: monitor enablement,
// event listing and acknowledgement, channel and rule CRUD, and a couple of
// ops endpoints (manual cycle trigger, transition-map inspection).
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/homewatch/homewatch/internal/monitor"
	"github.com/homewatch/homewatch/internal/store"
)

// Handler serves all /api/v1/* routes.
type Handler struct {
	store  *store.Store
	driver *monitor.Driver
	router *mux.Router
}

// New wires the routes. st may be nil when the database failed to open; the
// health endpoint then reports "degraded" and everything else returns 503.
func New(st *store.Store, driver *monitor.Driver) *Handler {
	h := &Handler{store: st, driver: driver, router: mux.NewRouter()}

	r := h.router.PathPrefix("/api/v1").Subrouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)

	r.HandleFunc("/monitors", h.listMonitors).Methods(http.MethodGet)
	// objectType is constrained so /monitors/{id}/points stays reachable.
	r.HandleFunc("/monitors/{objectType:container|vm}/{objectID}", h.getMonitor).Methods(http.MethodGet)
	r.HandleFunc("/monitors/{objectType:container|vm}/{objectID}", h.setMonitor).Methods(http.MethodPost)
	r.HandleFunc("/monitors/{id}/severity", h.setMonitorSeverity).Methods(http.MethodPut)
	r.HandleFunc("/monitors/{id}/points", h.monitorPoints).Methods(http.MethodGet)
	// Unknown object types fall through here and get a 400 from objectVars.
	r.HandleFunc("/monitors/{objectType}/{objectID}", h.getMonitor).Methods(http.MethodGet)
	r.HandleFunc("/monitors/{objectType}/{objectID}", h.setMonitor).Methods(http.MethodPost)

	r.HandleFunc("/events", h.listEvents).Methods(http.MethodGet)
	r.HandleFunc("/events", h.deleteAllEvents).Methods(http.MethodDelete)
	r.HandleFunc("/events/unread_count", h.unreadCount).Methods(http.MethodGet)
	r.HandleFunc("/events/acknowledge_all", h.acknowledgeAll).Methods(http.MethodPost)
	r.HandleFunc("/events/test", h.createTestEvent).Methods(http.MethodPost)
	r.HandleFunc("/events/{id:[0-9]+}", h.deleteEvent).Methods(http.MethodDelete)
	r.HandleFunc("/events/{id:[0-9]+}/acknowledge", h.acknowledgeEvent).Methods(http.MethodPost)
	r.HandleFunc("/events/{id:[0-9]+}/deliveries", h.eventDeliveries).Methods(http.MethodGet)
	r.HandleFunc("/objects/{objectType}/{objectID}/events", h.objectEvents).Methods(http.MethodGet)

	r.HandleFunc("/channels", h.listChannels).Methods(http.MethodGet)
	r.HandleFunc("/channels", h.createChannel).Methods(http.MethodPost)
	r.HandleFunc("/channels/{id:[0-9]+}", h.updateChannel).Methods(http.MethodPut)
	r.HandleFunc("/channels/{id:[0-9]+}", h.deleteChannel).Methods(http.MethodDelete)

	r.HandleFunc("/rules", h.listRules).Methods(http.MethodGet)
	r.HandleFunc("/rules", h.createRule).Methods(http.MethodPost)
	r.HandleFunc("/rules/{id:[0-9]+}", h.updateRule).Methods(http.MethodPut)
	r.HandleFunc("/rules/{id:[0-9]+}", h.deleteRule).Methods(http.MethodDelete)

	r.HandleFunc("/ops/cycle", h.runCycle).Methods(http.MethodPost)
	r.HandleFunc("/ops/tracker", h.trackerSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/ops/tracker", h.trackerClear).Methods(http.MethodDelete)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// ready guards handlers that need storage.
func (h *Handler) ready(w http.ResponseWriter) bool {
	if h.store == nil {
		jsonErr(w, http.StatusServiceUnavailable, "storage unavailable")
		return false
	}
	return true
}

// --- health -----------------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.driver != nil {
		resp.Tracked = len(h.driver.Tracker().Snapshot())
	}
	if h.store == nil {
		resp.Status = "degraded"
		jsonResp(w, http.StatusOK, resp)
		return
	}
	if n, err := h.store.UnreadCount(r.Context()); err == nil {
		resp.UnreadEvents = n
	}
	jsonResp(w, http.StatusOK, resp)
}

// --- monitors ---------------------------------------------------------------

func (h *Handler) listMonitors(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	monitors, err := h.store.Monitors(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, monitors)
}

// getMonitor returns the monitor bound to a target. A target that was never
// monitored is not an error: the response is simply enabled=false so the UI
// can treat it as "not monitored".
func (h *Handler) getMonitor(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	objectType, objectID, ok := objectVars(w, r)
	if !ok {
		return
	}

	m, err := h.store.MonitorByTarget(r.Context(), objectType, objectID)
	if errors.Is(err, store.ErrNotFound) {
		jsonResp(w, http.StatusOK, map[string]any{
			"object_type": objectType,
			"object_id":   objectID,
			"enabled":     false,
		})
		return
	}
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, m)
}

func (h *Handler) setMonitor(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	objectType, objectID, ok := objectVars(w, r)
	if !ok {
		return
	}

	var req monitorStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		jsonErr(w, http.StatusBadRequest, "missing enabled")
		return
	}

	m, err := h.store.EnsureMonitor(r.Context(), objectType, objectID, req.Name, *req.Enabled)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, m)
}

func (h *Handler) setMonitorSeverity(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id := mux.Vars(r)["id"]

	var settings map[string]store.SeveritySetting
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid severity settings")
		return
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid severity settings")
		return
	}

	m, err := h.store.MonitorByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		jsonErr(w, http.StatusNotFound, "monitor not found")
		return
	}
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	m.SeveritySettings = string(raw)
	if err := h.store.SaveMonitor(r.Context(), m); err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, m)
}

func (h *Handler) monitorPoints(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id := mux.Vars(r)["id"]
	limit := queryInt(r, "limit", 100)

	points, err := h.store.RecentPoints(r.Context(), id, limit)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, points)
}

// --- events -----------------------------------------------------------------

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	filter := store.EventFilter{
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	if v := r.URL.Query().Get("acknowledged"); v != "" {
		ack := v == "true" || v == "1" || v == "yes"
		filter.Acknowledged = &ack
	}

	events, total, err := h.store.ListEvents(r.Context(), filter)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, eventListResponse{
		Events: events,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	n, err := h.store.UnreadCount(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, map[string]int64{"count": n})
}

func (h *Handler) acknowledgeEvent(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := idVar(w, r)
	if !ok {
		return
	}

	err := h.store.Acknowledge(r.Context(), id, time.Now().UTC())
	if errors.Is(err, store.ErrNotFound) {
		jsonErr(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, map[string]string{"message": "event acknowledged"})
}

func (h *Handler) acknowledgeAll(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	n, err := h.store.AcknowledgeAll(r.Context(), time.Now().UTC())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, countResponse{Message: "all events acknowledged", Count: n})
}

func (h *Handler) deleteEvent(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := idVar(w, r)
	if !ok {
		return
	}

	deleted, err := h.store.DeleteEvent(r.Context(), id)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		jsonErr(w, http.StatusNotFound, "event not found")
		return
	}
	jsonResp(w, http.StatusOK, map[string]string{"message": "event deleted"})
}

func (h *Handler) deleteAllEvents(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	n, err := h.store.DeleteAllEvents(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, countResponse{Message: "events deleted", Count: n})
}

func (h *Handler) eventDeliveries(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := idVar(w, r)
	if !ok {
		return
	}
	deliveries, err := h.store.DeliveriesForEvent(r.Context(), id)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, deliveries)
}

func (h *Handler) objectEvents(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	objectType, objectID, ok := objectVars(w, r)
	if !ok {
		return
	}
	events, err := h.store.EventsForObject(r.Context(), objectType, objectID, queryInt(r, "limit", 10))
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, events)
}

func (h *Handler) createTestEvent(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	req := testEventRequest{
		Severity: 2,
		Source:   "test",
		Title:    "Test Notification",
		Message:  "This is a test notification message.",
	}
	if r.Body != nil {
		// A missing or empty body keeps the defaults.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Severity < 1 {
		jsonErr(w, http.StatusBadRequest, "severity must be a positive integer")
		return
	}

	now := time.Now().UTC()
	ev := &store.Event{
		Timestamp:   now,
		Severity:    req.Severity,
		Source:      req.Source,
		Title:       req.Title,
		Message:     req.Message,
		Fingerprint: req.Source + ":" + req.Title + ":" + now.Format("20060102150405.000000"),
	}
	if err := h.store.CreateEvent(r.Context(), ev); err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusCreated, map[string]any{"message": "test event created", "event": ev})
}

// --- channels ---------------------------------------------------------------

func (h *Handler) listChannels(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	channels, err := h.store.Channels(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, map[string]any{"channels": channels})
}

func (h *Handler) createChannel(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid or missing JSON body")
		return
	}
	if req.Name == "" || req.Type == "" {
		jsonErr(w, http.StatusBadRequest, "name and type are required")
		return
	}
	if !validChannelType(req.Type) {
		jsonErr(w, http.StatusBadRequest, "invalid type: want email|webhook|chat-webhook")
		return
	}

	c := &store.Channel{
		Name:    req.Name,
		Type:    req.Type,
		Enabled: req.Enabled == nil || *req.Enabled,
		Config:  string(req.Config),
	}
	if err := h.store.CreateChannel(r.Context(), c); err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusCreated, c)
}

func (h *Handler) updateChannel(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := idVar(w, r)
	if !ok {
		return
	}
	c, err := h.store.ChannelByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		jsonErr(w, http.StatusNotFound, "channel not found")
		return
	}
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid or missing JSON body")
		return
	}
	if req.Type != "" && !validChannelType(req.Type) {
		jsonErr(w, http.StatusBadRequest, "invalid type: want email|webhook|chat-webhook")
		return
	}

	if req.Name != "" {
		c.Name = req.Name
	}
	if req.Type != "" {
		c.Type = req.Type
	}
	if req.Enabled != nil {
		c.Enabled = *req.Enabled
	}
	if len(req.Config) > 0 {
		c.Config = string(req.Config)
	}
	if err := h.store.SaveChannel(r.Context(), c); err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, c)
}

func (h *Handler) deleteChannel(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := idVar(w, r)
	if !ok {
		return
	}
	deleted, err := h.store.DeleteChannel(r.Context(), id)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		jsonErr(w, http.StatusNotFound, "channel not found")
		return
	}
	jsonResp(w, http.StatusOK, map[string]string{"message": "channel deleted"})
}

// --- rules ------------------------------------------------------------------

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	rules, err := h.store.Rules(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, map[string]any{"rules": rules})
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid or missing JSON body")
		return
	}
	if req.ChannelID == 0 {
		jsonErr(w, http.StatusBadRequest, "channel_id is required")
		return
	}
	if req.MinSeverity < 1 {
		req.MinSeverity = 1
	}
	if req.MaxSeverity != nil && *req.MaxSeverity < req.MinSeverity {
		jsonErr(w, http.StatusBadRequest, "max_severity must be >= min_severity")
		return
	}
	if _, err := h.store.ChannelByID(r.Context(), req.ChannelID); errors.Is(err, store.ErrNotFound) {
		jsonErr(w, http.StatusBadRequest, "channel does not exist")
		return
	}

	rule := &store.Rule{
		ChannelID:   req.ChannelID,
		MinSeverity: req.MinSeverity,
		MaxSeverity: req.MaxSeverity,
		Enabled:     req.Enabled == nil || *req.Enabled,
	}
	if err := h.store.CreateRule(r.Context(), rule); err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusCreated, rule)
}

func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := idVar(w, r)
	if !ok {
		return
	}
	rule, err := h.store.RuleByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		jsonErr(w, http.StatusNotFound, "rule not found")
		return
	}
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid or missing JSON body")
		return
	}
	if req.ChannelID != 0 {
		rule.ChannelID = req.ChannelID
	}
	if req.MinSeverity > 0 {
		rule.MinSeverity = req.MinSeverity
	}
	rule.MaxSeverity = req.MaxSeverity
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if err := h.store.SaveRule(r.Context(), rule); err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, rule)
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := idVar(w, r)
	if !ok {
		return
	}
	deleted, err := h.store.DeleteRule(r.Context(), id)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		jsonErr(w, http.StatusNotFound, "rule not found")
		return
	}
	jsonResp(w, http.StatusOK, map[string]string{"message": "rule deleted"})
}

// --- ops --------------------------------------------------------------------

// runCycle triggers one monitoring pass immediately. For tests and ops
// tooling; the background loop is unaffected.
func (h *Handler) runCycle(w http.ResponseWriter, r *http.Request) {
	if h.driver == nil {
		jsonErr(w, http.StatusServiceUnavailable, "monitor driver unavailable")
		return
	}
	if err := h.driver.RunCycle(r.Context()); err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, map[string]string{"message": "cycle complete"})
}

func (h *Handler) trackerSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.driver == nil {
		jsonErr(w, http.StatusServiceUnavailable, "monitor driver unavailable")
		return
	}
	jsonResp(w, http.StatusOK, map[string]any{
		"previous_states": h.driver.Tracker().Snapshot(),
	})
}

func (h *Handler) trackerClear(w http.ResponseWriter, r *http.Request) {
	if h.driver == nil {
		jsonErr(w, http.StatusServiceUnavailable, "monitor driver unavailable")
		return
	}
	h.driver.Tracker().Clear()
	jsonResp(w, http.StatusOK, map[string]string{"message": "tracker cleared"})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// objectVars extracts and validates the {objectType}/{objectID} route pair.
func objectVars(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	vars := mux.Vars(r)
	objectType, objectID := vars["objectType"], vars["objectID"]
	if objectType != store.ObjectContainer && objectType != store.ObjectVM {
		jsonErr(w, http.StatusBadRequest, "object type must be container or vm")
		return "", "", false
	}
	return objectType, objectID, true
}

// idVar extracts the numeric {id} route variable.
func idVar(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return uint(id), true
}

// queryInt reads an integer query parameter with a fallback.
func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func validChannelType(t string) bool {
	switch t {
	case store.ChannelEmail, store.ChannelWebhook, store.ChannelChatWebhook:
		return true
	default:
		return false
	}
}
