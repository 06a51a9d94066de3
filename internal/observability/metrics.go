// Package observability wires the trace pipeline's metrics into an
// OpenTelemetry meter exported for Prometheus scraping.
package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig gates metric collection; when disabled every recording
// method is a no-op.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Metrics tracks the health of the event pipeline: how many records became
// events, how many were dropped at decode, how many events the reducer
// ignored, and how long applies take.
type Metrics struct {
	registry *prometheus.Registry

	eventsApplied   metric.Int64Counter
	eventsDropped   metric.Int64Counter
	reducerNoops    metric.Int64Counter
	transportErrors metric.Int64Counter
	applyLatency    metric.Float64Histogram
	streamClients   metric.Int64UpDownCounter
}

// NewMetrics creates the metric set. A disabled config returns an inert
// collector so callers never nil-check.
func NewMetrics(config MetricsConfig) (*Metrics, error) {
	if !config.Enabled {
		return &Metrics{}, nil
	}

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("rlmtrace")

	m := &Metrics{registry: registry}

	if m.eventsApplied, err = meter.Int64Counter(
		"rlmtrace.events.applied.total",
		metric.WithDescription("Events applied to the trace"),
		metric.WithUnit("{event}"),
	); err != nil {
		return nil, fmt.Errorf("create events_applied counter: %w", err)
	}

	if m.eventsDropped, err = meter.Int64Counter(
		"rlmtrace.records.dropped.total",
		metric.WithDescription("Wire records dropped at decode"),
		metric.WithUnit("{record}"),
	); err != nil {
		return nil, fmt.Errorf("create records_dropped counter: %w", err)
	}

	if m.reducerNoops, err = meter.Int64Counter(
		"rlmtrace.reducer.noops.total",
		metric.WithDescription("Events the reducer ignored (unknown id or terminal status)"),
		metric.WithUnit("{event}"),
	); err != nil {
		return nil, fmt.Errorf("create reducer_noops counter: %w", err)
	}

	if m.transportErrors, err = meter.Int64Counter(
		"rlmtrace.transport.errors.total",
		metric.WithDescription("Stream transport failures"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, fmt.Errorf("create transport_errors counter: %w", err)
	}

	if m.applyLatency, err = meter.Float64Histogram(
		"rlmtrace.reducer.apply.duration",
		metric.WithDescription("Reducer apply latency in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create apply_latency histogram: %w", err)
	}

	if m.streamClients, err = meter.Int64UpDownCounter(
		"rlmtrace.rebroadcast.clients",
		metric.WithDescription("Connected SSE rebroadcast clients"),
		metric.WithUnit("{client}"),
	); err != nil {
		return nil, fmt.Errorf("create stream_clients counter: %w", err)
	}

	return m, nil
}

// Handler exposes the Prometheus scrape endpoint, or a 404 when disabled.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) EventApplied(ctx context.Context, eventType string) {
	if m == nil || m.eventsApplied == nil {
		return
	}
	m.eventsApplied.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

func (m *Metrics) RecordDropped(ctx context.Context) {
	if m == nil || m.eventsDropped == nil {
		return
	}
	m.eventsDropped.Add(ctx, 1)
}

func (m *Metrics) ReducerNoop(ctx context.Context, eventType string) {
	if m == nil || m.reducerNoops == nil {
		return
	}
	m.reducerNoops.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

func (m *Metrics) TransportError(ctx context.Context) {
	if m == nil || m.transportErrors == nil {
		return
	}
	m.transportErrors.Add(ctx, 1)
}

func (m *Metrics) ObserveApply(ctx context.Context, seconds float64, eventType string) {
	if m == nil || m.applyLatency == nil {
		return
	}
	m.applyLatency.Record(ctx, seconds, metric.WithAttributes(attribute.String("event_type", eventType)))
}

func (m *Metrics) ClientConnected(ctx context.Context) {
	if m == nil || m.streamClients == nil {
		return
	}
	m.streamClients.Add(ctx, 1)
}

func (m *Metrics) ClientDisconnected(ctx context.Context) {
	if m == nil || m.streamClients == nil {
		return
	}
	m.streamClients.Add(ctx, -1)
}
