package maintenance

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/homewatch/homewatch/internal/store"
)

func TestSweepPurgesOldRows(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}

	old := time.Now().UTC().AddDate(0, 0, -45)
	fresh := time.Now().UTC()

	if err := st.CreateEvent(ctx, &store.Event{Timestamp: old, Severity: 2, Title: "old"}); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateEvent(ctx, &store.Event{Timestamp: fresh, Severity: 2, Title: "fresh"}); err != nil {
		t.Fatal(err)
	}

	s := NewSweeper(st, 30)
	res, err := s.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Events != 1 {
		t.Fatalf("purged %d events, want 1", res.Events)
	}

	_, total, err := st.ListEvents(ctx, store.EventFilter{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Fatalf("remaining events = %d, want 1", total)
	}
}

func TestSweeperDisabled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Run must return promptly when sweeping is disabled or storage is gone.
	done := make(chan struct{})
	go func() {
		NewSweeper(nil, 30).Run(ctx)
		NewSweeper(&store.Store{}, 0).Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled sweeper did not return")
	}
}
