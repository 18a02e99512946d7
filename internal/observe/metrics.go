// Package observe provides application-wide observability primitives for
// novella: OpenTelemetry metrics, tracing, and HTTP middleware that ties
// them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all novella metrics.
const meterName = "github.com/sversen/novella"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// SynthesisDuration tracks speech synthesis latency per provider.
	SynthesisDuration metric.Float64Histogram

	// CacheLookups counts audio cache lookups. Use with attribute:
	//   attribute.String("strategy", ...) — "exact", "position", "beat-id", "miss"
	CacheLookups metric.Int64Counter

	// LinesPlayed counts lines that started playback. Use with attribute:
	//   attribute.String("source", ...) — "cache" or "fresh"
	LinesPlayed metric.Int64Counter

	// ProviderErrors counts failed synthesis calls by provider.
	ProviderErrors metric.Int64Counter

	// ActiveSessions tracks the number of live playback sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HighlightDrift tracks how far the wall-clock highlight estimate had
	// strayed from the audio position each time the fused clock snapped
	// back to it.
	HighlightDrift metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for synthesis round-trip latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SynthesisDuration, err = m.Float64Histogram("novella.synthesis.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("novella.cache.lookups",
		metric.WithDescription("Total audio cache lookups by ladder strategy."),
	); err != nil {
		return nil, err
	}
	if met.LinesPlayed, err = m.Int64Counter("novella.playback.lines",
		metric.WithDescription("Total lines that started playback, by audio source."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("novella.provider.errors",
		metric.WithDescription("Total failed synthesis calls by provider."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("novella.sessions.active",
		metric.WithDescription("Number of live playback sessions."),
	); err != nil {
		return nil, err
	}
	if met.HighlightDrift, err = m.Float64Histogram("novella.highlight.drift",
		metric.WithDescription("Clock drift absorbed at each highlight recalibration."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.15, 0.25, 0.5, 1, 2.5),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("novella.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordCacheLookup records one cache lookup with its ladder strategy.
func (m *Metrics) RecordCacheLookup(ctx context.Context, strategy string) {
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("strategy", strategy)))
}

// RecordLinePlayed records one line starting playback from the given source.
func (m *Metrics) RecordLinePlayed(ctx context.Context, source string) {
	m.LinesPlayed.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordHighlightDrift records the drift absorbed by one clock recalibration.
func (m *Metrics) RecordHighlightDrift(ctx context.Context, drift time.Duration) {
	m.HighlightDrift.Record(ctx, drift.Seconds())
}

// RecordProviderError records one failed synthesis call.
func (m *Metrics) RecordProviderError(ctx context.Context, provider string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}
