package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hockeytools/rules-engine/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	retrievalTotal         *prometheus.CounterVec
	retrievalDegradedTotal *prometheus.CounterVec
	channelFailuresTotal   *prometheus.CounterVec
	rerankFallbackTotal    *prometheus.CounterVec
	contextPassages        *prometheus.HistogramVec
	retrievalDuration      *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hre",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hre",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hre",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	retrievalTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hre",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total completed retrieval requests by routed variant.",
		},
		[]string{"service", "variant"},
	)
	retrievalDegradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hre",
			Subsystem: "retrieval",
			Name:      "degraded_total",
			Help:      "Total retrieval requests served from a single channel.",
		},
		[]string{"service", "variant"},
	)
	channelFailuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hre",
			Subsystem: "retrieval",
			Name:      "channel_failures_total",
			Help:      "Total search channel failures by channel name.",
		},
		[]string{"service", "channel"},
	)
	rerankFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hre",
			Subsystem: "retrieval",
			Name:      "rerank_fallback_total",
			Help:      "Total requests answered from fused order after a reranker failure.",
		},
		[]string{"service", "variant"},
	)
	contextPassages := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hre",
			Subsystem: "retrieval",
			Name:      "context_passages",
			Help:      "Distribution of passages returned per retrieval request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 15, 20},
		},
		[]string{"service", "variant"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hre",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "End-to-end retrieval duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "variant"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		retrievalTotal,
		retrievalDegradedTotal,
		channelFailuresTotal,
		rerankFallbackTotal,
		contextPassages,
		retrievalDuration,
	)

	return &HTTPServerMetrics{
		registry:               registry,
		requestTotal:           requestTotal,
		requestDuration:        requestDuration,
		requestInFlight:        requestInFlight,
		retrievalTotal:         retrievalTotal,
		retrievalDegradedTotal: retrievalDegradedTotal,
		channelFailuresTotal:   channelFailuresTotal,
		rerankFallbackTotal:    rerankFallbackTotal,
		contextPassages:        contextPassages,
		retrievalDuration:      retrievalDuration,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/runs/"):
		return "/v1/runs/{run_id}"
	default:
		return path
	}
}

// RecordRetrieval folds one finished retrieval into the counters. The variant
// label is the routed variant, not the one the client asked for.
func (m *HTTPServerMetrics) RecordRetrieval(service string, result domain.RetrievalContext, duration time.Duration) {
	variant := result.Scope.Variant
	if variant == "" {
		variant = "unknown"
	}

	m.retrievalTotal.WithLabelValues(service, variant).Inc()
	m.contextPassages.WithLabelValues(service, variant).Observe(float64(len(result.Passages)))
	m.retrievalDuration.WithLabelValues(service, variant).Observe(duration.Seconds())

	if result.Degraded {
		m.retrievalDegradedTotal.WithLabelValues(service, variant).Inc()
	}
	for _, channel := range result.FailedChannels {
		m.channelFailuresTotal.WithLabelValues(service, string(channel)).Inc()
	}
	if len(result.Passages) > 0 && !result.RerankApplied {
		m.rerankFallbackTotal.WithLabelValues(service, variant).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
