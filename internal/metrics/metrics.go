package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PollCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callboard_poll_cycles_total",
		Help: "Status poll cycles executed",
	})

	PollQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callboard_poll_queries_total",
		Help: "Task status queries by outcome",
	}, []string{"outcome"})

	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "callboard_poll_cycle_duration_seconds",
		Help:    "Wall time of one poll cycle",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	})

	PollingActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "callboard_polling_active",
		Help: "1 while a status poll loop is running",
	})

	PendingJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "callboard_pending_jobs",
		Help: "Rows waiting on a processing job",
	})

	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callboard_status_transitions_total",
		Help: "Applied status transitions by target status",
	}, []string{"status"})

	FetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callboard_list_fetch_failures_total",
		Help: "Call list fetches that failed",
	})

	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callboard_uploads_total",
		Help: "Finished uploads by outcome",
	}, []string{"outcome"})

	UploadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callboard_upload_bytes_total",
		Help: "Audio bytes handed to the transport",
	})

	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "callboard_stream_clients",
		Help: "Connected snapshot stream clients",
	})
)

// Outcome label values.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeTransport = "transport"
	OutcomeUnknown   = "unknown_status"
)
