package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider bridges OpenTelemetry instruments to a Prometheus
// registry, exposing matching-engine throughput and book-state metrics.
type MetricsProvider struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	registry      *prometheus.Registry

	ordersSubmitted   metric.Int64Counter
	ordersFilled      metric.Int64Counter
	ordersCancelled   metric.Int64Counter
	ordersRejected    metric.Int64Counter
	crossDuration     metric.Float64Histogram
	restingQuantity   metric.Float64Gauge
	bestPrice         metric.Float64Gauge
	httpRequestsTotal metric.Int64Counter
	httpRequestDur    metric.Float64Histogram
}

// MetricsConfig contains metrics configuration.
type MetricsConfig struct {
	ServiceName    string
	ServiceVersion string
	Namespace      string
	Port           int
	Enabled        bool
}

// NewMetricsProvider creates a new metrics provider. If cfg.Enabled is
// false, the returned provider is a safe no-op: every Record* method
// checks its underlying instrument for nil before use.
func NewMetricsProvider(cfg MetricsConfig) (*MetricsProvider, error) {
	if !cfg.Enabled {
		return &MetricsProvider{}, nil
	}

	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithNamespace(cfg.Namespace),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(cfg.ServiceName)

	mp := &MetricsProvider{
		meterProvider: meterProvider,
		meter:         meter,
		registry:      registry,
	}

	if err := mp.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return mp, nil
}

func (mp *MetricsProvider) initializeMetrics() error {
	var err error

	mp.ordersSubmitted, err = mp.meter.Int64Counter(
		"orders_submitted_total",
		metric.WithDescription("Total number of orders submitted to the matching kernel"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create orders_submitted_total counter: %w", err)
	}

	mp.ordersFilled, err = mp.meter.Int64Counter(
		"orders_filled_total",
		metric.WithDescription("Total number of order commands that filled a non-zero quantity"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create orders_filled_total counter: %w", err)
	}

	mp.ordersCancelled, err = mp.meter.Int64Counter(
		"orders_cancelled_total",
		metric.WithDescription("Total number of successful order cancellations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create orders_cancelled_total counter: %w", err)
	}

	mp.ordersRejected, err = mp.meter.Int64Counter(
		"orders_rejected_total",
		metric.WithDescription("Total number of rejected orders, labelled by reason"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create orders_rejected_total counter: %w", err)
	}

	mp.crossDuration, err = mp.meter.Float64Histogram(
		"cross_duration_seconds",
		metric.WithDescription("Wall time of a single add_limit/add_market cross routine invocation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01),
	)
	if err != nil {
		return fmt.Errorf("failed to create cross_duration_seconds histogram: %w", err)
	}

	mp.restingQuantity, err = mp.meter.Float64Gauge(
		"resting_quantity",
		metric.WithDescription("Aggregate resting quantity on one side of one symbol's book"),
	)
	if err != nil {
		return fmt.Errorf("failed to create resting_quantity gauge: %w", err)
	}

	mp.bestPrice, err = mp.meter.Float64Gauge(
		"best_price",
		metric.WithDescription("Cached best bid or ask price for a symbol"),
	)
	if err != nil {
		return fmt.Errorf("failed to create best_price gauge: %w", err)
	}

	mp.httpRequestsTotal, err = mp.meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of gateway HTTP requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	mp.httpRequestDur, err = mp.meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("Gateway HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	return nil
}

// RecordOrderSubmitted records an inbound order by symbol, side, and
// order type (limit or market).
func (mp *MetricsProvider) RecordOrderSubmitted(ctx context.Context, symbol, side, orderType string) {
	if mp.ordersSubmitted == nil {
		return
	}
	mp.ordersSubmitted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("symbol", symbol),
		attribute.String("side", side),
		attribute.String("order_type", orderType),
	))
}

// RecordOrderFilled records one order command that filled a non-zero
// quantity against resting liquidity, whether fully or partially.
func (mp *MetricsProvider) RecordOrderFilled(ctx context.Context, symbol, side string) {
	if mp.ordersFilled == nil {
		return
	}
	mp.ordersFilled.Add(ctx, 1, metric.WithAttributes(
		attribute.String("symbol", symbol),
		attribute.String("side", side),
	))
}

// RecordOrderCancelled records a successful cancellation.
func (mp *MetricsProvider) RecordOrderCancelled(ctx context.Context, symbol string) {
	if mp.ordersCancelled == nil {
		return
	}
	mp.ordersCancelled.Add(ctx, 1, metric.WithAttributes(attribute.String("symbol", symbol)))
}

// RecordOrderRejected records a rejected order under reason (for example
// invalid_price, below_min_qty, or fok_insufficient_depth).
func (mp *MetricsProvider) RecordOrderRejected(ctx context.Context, symbol, reason string) {
	if mp.ordersRejected == nil {
		return
	}
	mp.ordersRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("symbol", symbol),
		attribute.String("reason", reason),
	))
}

// RecordCrossDuration records how long a single cross-routine call
// took.
func (mp *MetricsProvider) RecordCrossDuration(ctx context.Context, symbol string, duration time.Duration) {
	if mp.crossDuration == nil {
		return
	}
	mp.crossDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("symbol", symbol)))
}

// UpdateRestingQuantity records the current aggregate resting quantity
// on one side of a symbol's book.
func (mp *MetricsProvider) UpdateRestingQuantity(ctx context.Context, symbol, side string, quantity float64) {
	if mp.restingQuantity == nil {
		return
	}
	mp.restingQuantity.Record(ctx, quantity, metric.WithAttributes(
		attribute.String("symbol", symbol),
		attribute.String("side", side),
	))
}

// UpdateBestPrice records the current cached best bid or ask for a
// symbol. Callers should skip emitting this when the side is at its
// sentinel (empty), since +/-Inf is not a useful Prometheus sample.
func (mp *MetricsProvider) UpdateBestPrice(ctx context.Context, symbol, side string, price float64) {
	if mp.bestPrice == nil {
		return
	}
	mp.bestPrice.Record(ctx, price, metric.WithAttributes(
		attribute.String("symbol", symbol),
		attribute.String("side", side),
	))
}

// RecordHTTPRequest records a gateway HTTP request metric.
func (mp *MetricsProvider) RecordHTTPRequest(ctx context.Context, method, path, status string, duration time.Duration) {
	if mp.httpRequestsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.String("status", status),
	}

	mp.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	mp.httpRequestDur.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// PrometheusHandler returns an http.Handler serving the Prometheus
// registry, for mounting on an existing admin router rather than via
// StartMetricsServer's own listener. Returns a handler that always
// responds 404 if metrics are disabled.
func (mp *MetricsProvider) PrometheusHandler() http.Handler {
	if mp.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(mp.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// StartMetricsServer starts the Prometheus metrics HTTP server.
func (mp *MetricsProvider) StartMetricsServer(port int) error {
	if mp.registry == nil {
		return fmt.Errorf("metrics not enabled")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(mp.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	return server.ListenAndServe()
}

// Shutdown gracefully shuts down the metrics provider.
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	if mp.meterProvider == nil {
		return nil
	}
	return mp.meterProvider.Shutdown(ctx)
}
