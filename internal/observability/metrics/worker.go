package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	runTotal        *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	runInFlight     prometheus.Gauge
	chunksPersisted *prometheus.HistogramVec
	stageFailures   *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	runTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hre",
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Total finished ingestion runs by variant and status.",
		},
		[]string{"service", "variant", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hre",
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Ingestion run duration in seconds by status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	runInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hre",
			Subsystem: "ingest",
			Name:      "runs_in_flight",
			Help:      "Number of ingestion runs currently executing.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chunksPersisted := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hre",
			Subsystem: "ingest",
			Name:      "chunks_persisted",
			Help:      "Distribution of chunks written per successful run.",
			Buckets:   []float64{10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"service", "variant"},
	)
	stageFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hre",
			Subsystem: "ingest",
			Name:      "stage_failures_total",
			Help:      "Total ingestion failures by pipeline stage.",
		},
		[]string{"service", "stage"},
	)

	registry.MustRegister(runTotal, runDuration, runInFlight, chunksPersisted, stageFailures)

	return &WorkerMetrics{
		registry:        registry,
		runTotal:        runTotal,
		runDuration:     runDuration,
		runInFlight:     runInFlight,
		chunksPersisted: chunksPersisted,
		stageFailures:   stageFailures,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartRun() {
	m.runInFlight.Inc()
}

func (m *WorkerMetrics) FinishRun(service, variant string, duration time.Duration, err error) {
	m.runInFlight.Dec()

	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	if variant == "" {
		variant = "unknown"
	}

	m.runTotal.WithLabelValues(service, variant, status).Inc()
	m.runDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveChunksPersisted(service, variant string, count int) {
	if count <= 0 {
		return
	}
	if variant == "" {
		variant = "unknown"
	}
	m.chunksPersisted.WithLabelValues(service, variant).Observe(float64(count))
}

func (m *WorkerMetrics) RecordStageFailure(service, stage string) {
	if stage == "" {
		stage = "unknown"
	}
	m.stageFailures.WithLabelValues(service, stage).Inc()
}
