// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	SessionsOpened         prometheus.Counter
	SessionsClosed         prometheus.Counter
	SendFailures           prometheus.Counter
	InboundEvents          *prometheus.CounterVec
	EmoteFetchFailures     *prometheus.CounterVec
	CatalogRebuilds        prometheus.Counter
	RecencyPersistFailures prometheus.Counter

	// Histograms (seconds)
	EmoteFetchDuration prometheus.Observer

	// Gauges
	ConnectionStateGauge prometheus.Gauge // 0=disconnected 1=connecting 2=connected
	CatalogSizeGauge     prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		SessionsOpened = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_sessions_opened_total", Help: "Number of chat sessions opened"})
		SessionsClosed = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_sessions_closed_total", Help: "Number of chat sessions closed"})
		SendFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_send_failures_total", Help: "Number of outbound sends rejected or failed"})
		InboundEvents = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chat_inbound_events_total", Help: "Inbound transport events dispatched, by kind"}, []string{"kind"})
		EmoteFetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{Name: "emote_fetch_failures_total", Help: "Remote emote tier fetches that fell back, by tier"}, []string{"tier"})
		CatalogRebuilds = promauto.NewCounter(prometheus.CounterOpts{Name: "emote_catalog_rebuilds_total", Help: "Number of emote code-index rebuilds"})
		RecencyPersistFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "emote_recency_persist_failures_total", Help: "Recency list persistence failures"})
		EmoteFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "emote_fetch_duration_seconds", Help: "Remote emote tier fetch duration seconds", Buckets: prometheus.DefBuckets})
		ConnectionStateGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_connection_state", Help: "Session state: 0=disconnected 1=connecting 2=connected"})
		CatalogSizeGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "emote_catalog_size", Help: "Number of entries in the merged emote code index"})
	})
}

// SetConnectionState records the session state as a numeric gauge.
func SetConnectionState(state int) {
	if ConnectionStateGauge != nil {
		ConnectionStateGauge.Set(float64(state))
	}
}

// SetCatalogSize records the merged index entry count after a rebuild.
func SetCatalogSize(n int) {
	if CatalogSizeGauge != nil {
		CatalogSizeGauge.Set(float64(n))
	}
}

// CountInboundEvent increments the per-kind inbound event counter.
func CountInboundEvent(kind string) {
	if InboundEvents != nil {
		InboundEvents.WithLabelValues(kind).Inc()
	}
}

// CountFetchFailure increments the per-tier fallback counter.
func CountFetchFailure(tier string) {
	if EmoteFetchFailures != nil {
		EmoteFetchFailures.WithLabelValues(tier).Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns the default logger annotated with the correlation id.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
