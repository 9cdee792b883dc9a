// Package observe provides the observability primitives for prosodia:
// OpenTelemetry metrics, tracing helpers, run-scoped structured logging and
// HTTP middleware for the optional metrics/health server.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed for
// scraping through the Prometheus exporter installed by [InitProvider]. A
// package-level default [Metrics] instance ([DefaultMetrics]) is provided for
// convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all prosodia metrics.
const meterName = "github.com/MrWong99/prosodia"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// SynthesisDuration tracks synthesis backend latency. Use with attribute:
	//   attribute.String("provider", ...)
	SynthesisDuration metric.Float64Histogram

	// EffectsDuration tracks effects chain processing time.
	EffectsDuration metric.Float64Histogram

	// AnalysisDuration tracks acoustic analysis time per file.
	AnalysisDuration metric.Float64Histogram

	// GenerationDuration tracks one test-sample generation, including the
	// subprocess start-up.
	GenerationDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts synthesis backend calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts synthesis backend failures. Use with attribute:
	//   attribute.String("provider", ...)
	ProviderErrors metric.Int64Counter

	// SamplesGenerated counts generated test samples. Use with attribute:
	//   attribute.String("status", "ok"|"failed")
	SamplesGenerated metric.Int64Counter

	// ValidationChecks counts evaluated target checks. Use with attributes:
	//   attribute.String("metric", ...), attribute.Bool("pass", ...)
	ValidationChecks metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks metrics/health request time. Use with attributes:
	//   attribute.String("route", ...), attribute.String("code", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// offline synthesis and analysis, which run from tens of milliseconds up to
// the one-minute subprocess timeout.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SynthesisDuration, err = m.Float64Histogram("prosodia.synthesis.duration",
		metric.WithDescription("Latency of the synthesis backend."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EffectsDuration, err = m.Float64Histogram("prosodia.effects.duration",
		metric.WithDescription("Processing time of the audio effects chain."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnalysisDuration, err = m.Float64Histogram("prosodia.analysis.duration",
		metric.WithDescription("Acoustic analysis time per file."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GenerationDuration, err = m.Float64Histogram("prosodia.generation.duration",
		metric.WithDescription("Wall time to generate one test sample."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("prosodia.provider.requests",
		metric.WithDescription("Total synthesis backend requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("prosodia.provider.errors",
		metric.WithDescription("Total synthesis backend errors by provider."),
	); err != nil {
		return nil, err
	}
	if met.SamplesGenerated, err = m.Int64Counter("prosodia.samples.generated",
		metric.WithDescription("Total generated test samples by status."),
	); err != nil {
		return nil, err
	}
	if met.ValidationChecks, err = m.Int64Counter("prosodia.validation.checks",
		metric.WithDescription("Total evaluated validation checks by metric and outcome."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("prosodia.http.request.duration",
		metric.WithDescription("Metrics and health endpoint latency by route and status code."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Since records the seconds elapsed since start on h.
func Since(ctx context.Context, h metric.Float64Histogram, start time.Time, attrs ...attribute.KeyValue) {
	h.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
}

// RecordProviderRequest records a synthesis request with its outcome. A
// non-"ok" status also increments [Metrics.ProviderErrors].
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
	if status != "ok" {
		m.ProviderErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("provider", provider)),
		)
	}
}

// RecordSample records the outcome of one test-sample generation.
func (m *Metrics) RecordSample(ctx context.Context, ok bool) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.SamplesGenerated.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordCheck records one evaluated validation check.
func (m *Metrics) RecordCheck(ctx context.Context, name string, pass bool) {
	m.ValidationChecks.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("metric", name),
			attribute.Bool("pass", pass),
		),
	)
}
