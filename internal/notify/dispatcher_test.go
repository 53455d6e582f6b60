package notify

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/homewatch/homewatch/internal/store"
)

// fakeSender records every send and answers from a script.
type fakeSender struct {
	mu      sync.Mutex
	sent    []uint // event ids, in order
	results map[uint]Result
}

func (f *fakeSender) Send(_ context.Context, _ map[string]any, ev *store.Event) Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, ev.ID)
	if r, ok := f.results[ev.ID]; ok {
		return r
	}
	return success()
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return st
}

func testSetup(t *testing.T) (*store.Store, *Dispatcher, *fakeSender) {
	t.Helper()
	st := openTestStore(t)
	fake := &fakeSender{results: map[uint]Result{}}
	reg := NewRegistry(time.Second)
	reg.Register("fake", fake)
	return st, NewDispatcher(st, reg, 50, time.Second), fake
}

func addChannel(t *testing.T, st *store.Store, name string, minSev int) *store.Channel {
	t.Helper()
	ctx := context.Background()
	ch := &store.Channel{Name: name, Type: "fake", Enabled: true}
	if err := st.CreateChannel(ctx, ch); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateRule(ctx, &store.Rule{ChannelID: ch.ID, MinSeverity: minSev, Enabled: true}); err != nil {
		t.Fatal(err)
	}
	return ch
}

func addEvent(t *testing.T, st *store.Store, severity int) *store.Event {
	t.Helper()
	ev := &store.Event{Timestamp: time.Now().UTC(), Severity: severity, Source: "test", Title: "t"}
	if err := st.CreateEvent(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestProcessPendingDelivers(t *testing.T) {
	ctx := context.Background()
	st, d, fake := testSetup(t)
	ch := addChannel(t, st, "primary", 1)
	ev := addEvent(t, st, 2)

	n, err := d.ProcessPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || fake.count() != 1 {
		t.Fatalf("attempts = %d, sends = %d; want 1, 1", n, fake.count())
	}

	deliveries, err := st.DeliveriesForEvent(ctx, ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(deliveries) != 1 {
		t.Fatalf("got %d delivery rows, want 1", len(deliveries))
	}
	rec := deliveries[0]
	if rec.ChannelID != ch.ID || rec.Status != store.DeliveryDelivered {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.LastAttempt == nil {
		t.Error("LastAttempt not set")
	}
}

// An event matched by two overlapping rules pointing at the same channel
// produces exactly one delivery.
func TestOverlappingRulesSingleDelivery(t *testing.T) {
	ctx := context.Background()
	st, d, fake := testSetup(t)
	ch := addChannel(t, st, "primary", 1)
	if err := st.CreateRule(ctx, &store.Rule{ChannelID: ch.ID, MinSeverity: 2, Enabled: true}); err != nil {
		t.Fatal(err)
	}
	ev := addEvent(t, st, 3)

	if _, err := d.ProcessPending(ctx); err != nil {
		t.Fatal(err)
	}
	if fake.count() != 1 {
		t.Fatalf("sends = %d, want 1", fake.count())
	}
	deliveries, _ := st.DeliveriesForEvent(ctx, ev.ID)
	if len(deliveries) != 1 {
		t.Fatalf("got %d delivery rows, want 1", len(deliveries))
	}
}

// A failed send is recorded with its error and never attempted again.
func TestFailedSendRecordedNotRetried(t *testing.T) {
	ctx := context.Background()
	st, d, fake := testSetup(t)
	addChannel(t, st, "primary", 1)
	ev := addEvent(t, st, 2)
	fake.results[ev.ID] = failure("smtp: connection refused")

	if _, err := d.ProcessPending(ctx); err != nil {
		t.Fatal(err)
	}

	deliveries, _ := st.DeliveriesForEvent(ctx, ev.ID)
	if len(deliveries) != 1 {
		t.Fatalf("got %d delivery rows, want 1", len(deliveries))
	}
	if deliveries[0].Status != store.DeliveryFailed {
		t.Errorf("status = %q, want failed", deliveries[0].Status)
	}
	if deliveries[0].Error != "smtp: connection refused" {
		t.Errorf("error = %q", deliveries[0].Error)
	}

	// Later scans see the existing record and skip the pair.
	for i := 0; i < 3; i++ {
		if _, err := d.ProcessPending(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if fake.count() != 1 {
		t.Fatalf("sends = %d after rescans, want 1", fake.count())
	}
	deliveries, _ = st.DeliveriesForEvent(ctx, ev.ID)
	if len(deliveries) != 1 {
		t.Fatalf("rescans added rows: %d", len(deliveries))
	}
}

// Repeated scans over an undelivered backlog stay idempotent per pair.
func TestRepeatedScansIdempotent(t *testing.T) {
	ctx := context.Background()
	st, d, fake := testSetup(t)
	addChannel(t, st, "a", 1)
	addChannel(t, st, "b", 1)
	addEvent(t, st, 2)
	addEvent(t, st, 3)

	for i := 0; i < 3; i++ {
		if _, err := d.ProcessPending(ctx); err != nil {
			t.Fatal(err)
		}
	}
	// 2 events x 2 channels, once each.
	if fake.count() != 4 {
		t.Fatalf("sends = %d, want 4", fake.count())
	}
}

// Events below every rule's threshold are skipped without a delivery row.
func TestNoMatchingChannelSkips(t *testing.T) {
	ctx := context.Background()
	st, d, fake := testSetup(t)
	addChannel(t, st, "critical-only", 3)
	ev := addEvent(t, st, 1)

	n, err := d.ProcessPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 || fake.count() != 0 {
		t.Fatalf("attempts = %d, sends = %d; want 0, 0", n, fake.count())
	}
	deliveries, _ := st.DeliveriesForEvent(ctx, ev.ID)
	if len(deliveries) != 0 {
		t.Fatalf("unmatched event got %d delivery rows", len(deliveries))
	}
}

// Acknowledged events never enter the delivery scan.
func TestAcknowledgedEventsSkipped(t *testing.T) {
	ctx := context.Background()
	st, d, fake := testSetup(t)
	addChannel(t, st, "primary", 1)
	ev := addEvent(t, st, 2)
	if err := st.Acknowledge(ctx, ev.ID, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	if _, err := d.ProcessPending(ctx); err != nil {
		t.Fatal(err)
	}
	if fake.count() != 0 {
		t.Fatalf("acknowledged event was sent %d times", fake.count())
	}
}

// An unknown channel type is recorded as a failed attempt, not an error.
func TestUnknownChannelTypeFails(t *testing.T) {
	ctx := context.Background()
	st, d, _ := testSetup(t)
	ch := &store.Channel{Name: "mystery", Type: "pager", Enabled: true}
	if err := st.CreateChannel(ctx, ch); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateRule(ctx, &store.Rule{ChannelID: ch.ID, MinSeverity: 1, Enabled: true}); err != nil {
		t.Fatal(err)
	}
	ev := addEvent(t, st, 2)

	if _, err := d.ProcessPending(ctx); err != nil {
		t.Fatal(err)
	}
	deliveries, _ := st.DeliveriesForEvent(ctx, ev.ID)
	if len(deliveries) != 1 || deliveries[0].Status != store.DeliveryFailed {
		t.Fatalf("unexpected deliveries: %+v", deliveries)
	}
}

func TestNilStoreNoOp(t *testing.T) {
	d := NewDispatcher(nil, NewRegistry(time.Second), 50, time.Second)
	n, err := d.ProcessPending(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("nil-store scan: n=%d err=%v", n, err)
	}
}

func TestMatchChannels(t *testing.T) {
	three := 3
	channels := []store.Channel{
		{ID: 1, Name: "a", Enabled: true},
		{ID: 2, Name: "b", Enabled: true},
		{ID: 3, Name: "disabled", Enabled: false},
	}
	rules := []store.Rule{
		{ChannelID: 1, MinSeverity: 1, MaxSeverity: &three, Enabled: true},
		{ChannelID: 2, MinSeverity: 3, Enabled: true},
		{ChannelID: 3, MinSeverity: 1, Enabled: true},
		{ChannelID: 2, MinSeverity: 1, Enabled: false}, // disabled rule
	}

	tests := []struct {
		severity int
		wantIDs  []uint
	}{
		{1, []uint{1}},
		{3, []uint{1, 2}},
		{4, []uint{2}},
		{0, nil},
	}
	for _, tt := range tests {
		got := MatchChannels(tt.severity, channels, rules)
		var ids []uint
		for _, c := range got {
			ids = append(ids, c.ID)
		}
		if len(ids) != len(tt.wantIDs) {
			t.Errorf("severity %d: got %v, want %v", tt.severity, ids, tt.wantIDs)
			continue
		}
		for i := range ids {
			if ids[i] != tt.wantIDs[i] {
				t.Errorf("severity %d: got %v, want %v", tt.severity, ids, tt.wantIDs)
				break
			}
		}
	}
}
