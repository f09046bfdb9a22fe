// Package telemetry exposes the collector's own prometheus counters.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Drop reasons used as label values on SamplesDropped.
const (
	ReasonMalformed  = "malformed"
	ReasonNegligible = "negligible"
	ReasonStale      = "stale"
)

var (
	// LinesReceived counts ingested lines per endpoint, accepted or not.
	LinesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_lines_received_total",
			Help: "Ingestion lines read, by endpoint.",
		},
		[]string{"endpoint"})

	// SamplesDropped counts silently skipped energy samples by reason.
	SamplesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_samples_dropped_total",
			Help: "Energy samples dropped before persistence, by reason.",
		},
		[]string{"reason"})

	// DuplicateSamples counts unique-constraint conflicts treated as
	// benign duplicates.
	DuplicateSamples = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "collector_duplicate_samples_total",
			Help: "Energy inserts discarded as already-seen (time, circuit).",
		})
)

func init() {
	prometheus.MustRegister(LinesReceived, SamplesDropped, DuplicateSamples)
}
