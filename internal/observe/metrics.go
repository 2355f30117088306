// Package observe provides application-wide observability primitives for
// Spindle: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// installs a Prometheus exporter bridge, which registers the metrics with the
// Prometheus client's default registry; this module does not itself serve a
// /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Spindle metrics.
const meterName = "github.com/spindle-coref/spindle"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// CorrelateDuration tracks how long a single graph update's
	// co-reference extraction and store.Create sequence takes.
	CorrelateDuration metric.Float64Histogram

	// StripDuration tracks how long reducing a graph to its cache
	// predicates takes.
	StripDuration metric.Float64Histogram

	// QueryDuration tracks query API latency (lookup, refs, fetch item).
	QueryDuration metric.Float64Histogram

	// --- Counters ---

	// ProxiesCreated counts newly minted proxy entities.
	ProxiesCreated metric.Int64Counter

	// ProxiesMigrated counts proxy-to-proxy merges (spec.md §4.3.2).
	ProxiesMigrated metric.Int64Counter

	// DBRetries counts serialization-failure retries of a transaction.
	DBRetries metric.Int64Counter

	// --- Error counters ---

	// CorrelateErrors counts failed graph correlations.
	CorrelateErrors metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries in seconds.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CorrelateDuration, err = m.Float64Histogram("spindle.correlate.duration",
		metric.WithDescription("Latency of extracting and storing co-references for one graph update."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StripDuration, err = m.Float64Histogram("spindle.strip.duration",
		metric.WithDescription("Latency of reducing a graph to its cache predicates."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.QueryDuration, err = m.Float64Histogram("spindle.query.duration",
		metric.WithDescription("Latency of query API calls (lookup, refs, fetch item)."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProxiesCreated, err = m.Int64Counter("spindle.proxy.created_total",
		metric.WithDescription("Total proxy entities minted."),
	); err != nil {
		return nil, err
	}
	if met.ProxiesMigrated, err = m.Int64Counter("spindle.proxy.migrated_total",
		metric.WithDescription("Total proxy-to-proxy migrations (merges)."),
	); err != nil {
		return nil, err
	}
	if met.DBRetries, err = m.Int64Counter("spindle.db.retries_total",
		metric.WithDescription("Total transaction retries after a serialization failure."),
	); err != nil {
		return nil, err
	}

	if met.CorrelateErrors, err = m.Int64Counter("spindle.correlate.errors_total",
		metric.WithDescription("Total failed graph correlations."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("spindle.http.request.duration",
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

// RecordProxyCreated is a convenience method recording a newly minted proxy.
func (m *Metrics) RecordProxyCreated(ctx context.Context) {
	m.ProxiesCreated.Add(ctx, 1)
}

// RecordProxyMigrated is a convenience method recording a proxy merge.
func (m *Metrics) RecordProxyMigrated(ctx context.Context) {
	m.ProxiesMigrated.Add(ctx, 1)
}

// RecordDBRetry is a convenience method recording a transaction retry.
func (m *Metrics) RecordDBRetry(ctx context.Context) {
	m.DBRetries.Add(ctx, 1)
}

// RecordCorrelateError is a convenience method recording a correlation failure.
func (m *Metrics) RecordCorrelateError(ctx context.Context) {
	m.CorrelateErrors.Add(ctx, 1)
}
