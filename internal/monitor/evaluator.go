package monitor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/homewatch/homewatch/internal/probe"
	"github.com/homewatch/homewatch/internal/store"
)

// Evaluator resolves a monitor's current status via the liveness probe.
// It is a pure query: persisting the resulting point is the driver's job.
type Evaluator struct {
	probe probe.Probe
}

// NewEvaluator wraps a probe.
func NewEvaluator(p probe.Probe) *Evaluator {
	return &Evaluator{probe: p}
}

// Evaluate returns the observed status for one monitor, lowercased. Probe
// failures and unresolvable targets degrade to the "unknown" sentinel —
// Evaluate never returns an error.
func (e *Evaluator) Evaluate(ctx context.Context, m *store.Monitor) string {
	ref := m.TargetRef()
	if ref == "" {
		return probe.StatusUnknown
	}

	status, err := e.probe.Status(ctx, ref)
	if err != nil {
		slog.Debug("monitor: probe failed",
			"monitor", m.ID, "target", ref, "err", err)
		return probe.StatusUnknown
	}
	if status == "" {
		return probe.StatusUnknown
	}
	return strings.ToLower(status)
}
