// Package metrics exposes prometheus collectors for simulated acquisitions.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels runs that reached their end time.
	OutcomeSuccess = "success"
	// OutcomeError labels runs aborted by an error.
	OutcomeError = "error"
)

var (
	scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mssim",
			Name:      "scans_total",
			Help:      "Total number of simulated scans, partitioned by ms level.",
		},
		[]string{"ms_level"},
	)

	tasksEnqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mssim",
			Name:      "tasks_enqueued_total",
			Help:      "Total number of scan requests queued by controllers.",
		},
	)

	scanDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mssim",
			Name:      "scan_duration_seconds",
			Help:      "Sampled scan durations in simulated seconds.",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.75, 1, 2},
		},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mssim",
			Name:      "runs_total",
			Help:      "Total number of simulated runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register attaches mssim collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		scansTotal,
		tasksEnqueuedTotal,
		scanDurationSeconds,
		runsTotal,
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

// ObserveScan records one produced scan and its sampled duration.
func ObserveScan(msLevel int, duration float64) {
	scansTotal.WithLabelValues(strconv.Itoa(msLevel)).Inc()
	if duration < 0 {
		duration = 0
	}
	scanDurationSeconds.Observe(duration)
}

// ObserveTasks records scan requests added to the engine queue.
func ObserveTasks(n int) {
	if n <= 0 {
		return
	}
	tasksEnqueuedTotal.Add(float64(n))
}

// ObserveRun records a finished run.
func ObserveRun(err error) {
	label := OutcomeSuccess
	if err != nil {
		label = OutcomeError
	}
	runsTotal.WithLabelValues(label).Inc()
}
