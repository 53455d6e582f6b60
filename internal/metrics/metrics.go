// Package metrics exposes the daemon's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels cycles and deliveries that completed.
	OutcomeSuccess = "success"
	// OutcomeError labels cycles that rolled back and deliveries that failed.
	OutcomeError = "error"
)

var (
	monitorCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homewatch",
			Name:      "monitor_cycles_total",
			Help:      "Monitoring cycles run, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	monitorCycleSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "homewatch",
			Name:      "monitor_cycle_seconds",
			Help:      "Duration of one monitoring cycle in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	pointsRecordedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "homewatch",
			Name:      "points_recorded_total",
			Help:      "Status samples persisted by the monitor pipeline.",
		},
	)

	eventsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homewatch",
			Name:      "events_created_total",
			Help:      "Events created by the monitor pipeline, by transition kind.",
		},
		[]string{"kind"},
	)

	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homewatch",
			Name:      "deliveries_total",
			Help:      "Delivery attempts recorded, by channel type and outcome.",
		},
		[]string{"channel_type", "outcome"},
	)
)

// Register attaches all homewatch collectors to reg. Double registration is
// tolerated so tests can call it freely.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		monitorCyclesTotal,
		monitorCycleSeconds,
		pointsRecordedTotal,
		eventsCreatedTotal,
		deliveriesTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveCycle records one monitoring cycle's duration and outcome.
func ObserveCycle(duration time.Duration, outcome string) {
	if outcome != OutcomeError {
		outcome = OutcomeSuccess
	}
	monitorCyclesTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	monitorCycleSeconds.Observe(duration.Seconds())
}

// PointRecorded counts one persisted status sample.
func PointRecorded() {
	pointsRecordedTotal.Inc()
}

// EventCreated counts one synthesized event.
func EventCreated(kind string) {
	eventsCreatedTotal.WithLabelValues(kind).Inc()
}

// DeliveryRecorded counts one delivery attempt.
func DeliveryRecorded(channelType string, success bool) {
	outcome := OutcomeSuccess
	if !success {
		outcome = OutcomeError
	}
	deliveriesTotal.WithLabelValues(channelType, outcome).Inc()
}
