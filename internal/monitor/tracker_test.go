package monitor

import "testing"

func TestMemoryTracker(t *testing.T) {
	tr := NewMemoryTracker()

	if _, ok := tr.Last("m1"); ok {
		t.Fatal("fresh tracker should have no observations")
	}

	tr.Observe("m1", "running")
	tr.Observe("m2", "exited")

	if got, ok := tr.Last("m1"); !ok || got != "running" {
		t.Fatalf("Last(m1) = %q, %v; want running, true", got, ok)
	}

	tr.Observe("m1", "exited")
	if got, _ := tr.Last("m1"); got != "exited" {
		t.Fatalf("Last(m1) after update = %q, want exited", got)
	}

	snap := tr.Snapshot()
	if len(snap) != 2 || snap["m1"] != "exited" || snap["m2"] != "exited" {
		t.Fatalf("unexpected snapshot: %v", snap)
	}

	// Snapshot must be a copy, not a view.
	snap["m1"] = "mutated"
	if got, _ := tr.Last("m1"); got != "exited" {
		t.Fatal("mutating snapshot leaked into tracker")
	}

	tr.Clear()
	if _, ok := tr.Last("m1"); ok {
		t.Fatal("Clear should drop all observations")
	}
	if len(tr.Snapshot()) != 0 {
		t.Fatal("snapshot after Clear should be empty")
	}
}
