// Package metrics exposes Prometheus collectors for sweep runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SweepMetrics holds the collectors updated by the discovery and
// reconciliation passes. A nil *SweepMetrics is valid and records nothing.
type SweepMetrics struct {
	// FilesScanned counts files read from the file source during discovery.
	FilesScanned prometheus.Counter

	// FilesRecorded counts ledger rows appended by discovery.
	FilesRecorded prometheus.Counter

	// FilesTrashed counts files moved to the provider's trash.
	FilesTrashed prometheus.Counter

	// TrashFailures counts per-file trash failures left for the next run.
	TrashFailures prometheus.Counter

	// Runs counts finished runs by phase and status.
	Runs *prometheus.CounterVec

	// RunDuration observes run wall time by phase.
	RunDuration *prometheus.HistogramVec

	// LiveRows is the number of ledger rows without a removal timestamp,
	// sampled at the start of each reconciliation.
	LiveRows prometheus.Gauge
}

// New creates the sweep collectors and registers them with reg. Passing nil
// registers with the default registry.
func New(reg prometheus.Registerer) *SweepMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &SweepMetrics{
		FilesScanned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "drive_cleaner",
			Subsystem: "discovery",
			Name:      "files_scanned_total",
			Help:      "Files read from the file source during discovery.",
		}),
		FilesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "drive_cleaner",
			Subsystem: "discovery",
			Name:      "files_recorded_total",
			Help:      "Matching files appended to the ledger.",
		}),
		FilesTrashed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "drive_cleaner",
			Subsystem: "reconcile",
			Name:      "files_trashed_total",
			Help:      "Ledgered files moved to the provider trash.",
		}),
		TrashFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "drive_cleaner",
			Subsystem: "reconcile",
			Name:      "trash_failures_total",
			Help:      "Per-file trash failures left for a later run.",
		}),
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drive_cleaner",
			Name:      "runs_total",
			Help:      "Finished sweep runs by phase and status.",
		}, []string{"phase", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "drive_cleaner",
			Name:      "run_duration_seconds",
			Help:      "Sweep run wall time by phase.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"phase"}),
		LiveRows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "drive_cleaner",
			Subsystem: "ledger",
			Name:      "live_rows",
			Help:      "Ledger rows without a removal timestamp.",
		}),
	}
}

func (m *SweepMetrics) AddScanned(n int) {
	if m == nil || n == 0 {
		return
	}
	m.FilesScanned.Add(float64(n))
}

func (m *SweepMetrics) AddRecorded(n int) {
	if m == nil || n == 0 {
		return
	}
	m.FilesRecorded.Add(float64(n))
}

func (m *SweepMetrics) IncTrashed() {
	if m == nil {
		return
	}
	m.FilesTrashed.Inc()
}

func (m *SweepMetrics) IncTrashFailure() {
	if m == nil {
		return
	}
	m.TrashFailures.Inc()
}

func (m *SweepMetrics) SetLiveRows(n int) {
	if m == nil {
		return
	}
	m.LiveRows.Set(float64(n))
}

func (m *SweepMetrics) ObserveRun(phase string, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(phase, status).Inc()
	m.RunDuration.WithLabelValues(phase).Observe(elapsed.Seconds())
}
