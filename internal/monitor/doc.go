// Package monitor implements the liveness monitoring half of the pipeline.
//
// transitions.go holds the status-bucket state machine: statuses are bucketed
// into online/offline/unreachable equivalence classes, and Classify maps a
// (new, old) status pair to the transition kind that fires, if any.
// Same-bucket changes never fire, which absorbs stopped→dead style flapping.
//
// tracker.go keeps the last observed status per monitor in memory. The map is
// best-effort: a restart suppresses transition detection for one cycle.
//
// evaluator.go resolves a monitor's current status through the liveness
// probe, degrading every failure to the "unknown" sentinel.
//
// factory.go turns a fired transition into an Event, gated by the monitor's
// per-kind severity settings.
//
// driver.go is the timer loop tying it together: one transaction per cycle,
// points always recorded, events only on real transitions, tracker updated
// after commit.
package monitor
