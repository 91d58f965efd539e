// Package telemetry wires up the Prometheus + OpenTelemetry exporter used to
// observe a running scan.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"domain-hunter/pkg/config"
	"domain-hunter/pkg/logging"
	"domain-hunter/pkg/resolver"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Telemetry holds telemetry providers and exporters
type Telemetry struct {
	cfg              *config.TelemetryConfig
	meterProvider    metric.MeterProvider
	registry         *promclient.Registry
	prometheusServer *http.Server
	logger           *logging.Logger
}

// Metrics holds all scan metrics
type Metrics struct {
	LookupsTotal    metric.Int64Counter
	LookupsResolved metric.Int64Counter
	LookupErrors    metric.Int64Counter
	LookupDuration  metric.Float64Histogram
	InFlight        metric.Int64UpDownCounter
	GroupsTotal     metric.Int64Counter
}

// New creates a new telemetry instance
func New(ctx context.Context, cfg *config.TelemetryConfig, logger *logging.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = logging.NewDiscard()
	}

	if !cfg.Enabled {
		logger.Debug("Telemetry disabled")
		return &Telemetry{
			cfg:           cfg,
			meterProvider: noop.NewMeterProvider(),
			logger:        logger,
		}, nil
	}

	t := &Telemetry{
		cfg:    cfg,
		logger: logger,
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if err := t.setupMetrics(res); err != nil {
		return nil, fmt.Errorf("failed to setup metrics: %w", err)
	}

	logger.Info("Telemetry initialized",
		"service", cfg.ServiceName,
		"version", cfg.ServiceVersion,
		"prometheus", cfg.PrometheusEnabled,
	)

	return t, nil
}

// setupMetrics initializes the metrics provider
func (t *Telemetry) setupMetrics(res *resource.Resource) error {
	if !t.cfg.PrometheusEnabled {
		t.meterProvider = noop.NewMeterProvider()
		return nil
	}

	// A private registry keeps repeated scans in one process from
	// colliding on the default registerer.
	t.registry = promclient.NewRegistry()

	exporter, err := prometheus.New(prometheus.WithRegisterer(t.registry))
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	t.meterProvider = provider
	otel.SetMeterProvider(provider)

	if t.cfg.PrometheusPort > 0 {
		t.startPrometheusServer()
		t.logger.Info("Prometheus metrics enabled", "port", t.cfg.PrometheusPort)
	}

	return nil
}

// Handler serves the Prometheus exposition of the scan metrics
func (t *Telemetry) Handler() http.Handler {
	if t.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// startPrometheusServer starts the Prometheus metrics HTTP server
func (t *Telemetry) startPrometheusServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", t.Handler())

	t.prometheusServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.cfg.PrometheusPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
	}

	go func() {
		if err := t.prometheusServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.logger.Error("Prometheus server failed", "error", err)
		}
	}()
}

// InitMetrics initializes and returns all scan metrics
func (t *Telemetry) InitMetrics() (*Metrics, error) {
	meter := t.meterProvider.Meter("domain-hunter")

	lookupsTotal, err := meter.Int64Counter(
		"scan.lookups.total",
		metric.WithDescription("Total number of candidate lookups by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookups counter: %w", err)
	}

	lookupsResolved, err := meter.Int64Counter(
		"scan.lookups.resolved",
		metric.WithDescription("Number of candidates that resolved to at least one address"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolved counter: %w", err)
	}

	lookupErrors, err := meter.Int64Counter(
		"scan.lookups.errors",
		metric.WithDescription("Number of lookups that failed with an unexpected error"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup errors counter: %w", err)
	}

	lookupDuration, err := meter.Float64Histogram(
		"scan.lookup.duration",
		metric.WithDescription("Candidate lookup duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup duration histogram: %w", err)
	}

	inFlight, err := meter.Int64UpDownCounter(
		"scan.lookups.inflight",
		metric.WithDescription("Number of lookups currently in flight"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-flight gauge: %w", err)
	}

	groupsTotal, err := meter.Int64Counter(
		"scan.groups.total",
		metric.WithDescription("Number of candidate groups launched"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create groups counter: %w", err)
	}

	return &Metrics{
		LookupsTotal:    lookupsTotal,
		LookupsResolved: lookupsResolved,
		LookupErrors:    lookupErrors,
		LookupDuration:  lookupDuration,
		InFlight:        inFlight,
		GroupsTotal:     groupsTotal,
	}, nil
}

// MeterProvider returns the meter provider
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

// RecordOutcome implements scanner.MetricsRecorder
func (m *Metrics) RecordOutcome(ctx context.Context, outcome resolver.Outcome) {
	if m == nil {
		return
	}

	status := metric.WithAttributes(attribute.String("status", outcome.Status.String()))
	m.LookupsTotal.Add(ctx, 1, status)
	m.LookupDuration.Record(ctx, float64(outcome.Elapsed.Microseconds())/1000.0, status)

	switch outcome.Status {
	case resolver.StatusResolved:
		m.LookupsResolved.Add(ctx, 1)
	case resolver.StatusError:
		m.LookupErrors.Add(ctx, 1)
	}
}

// AddInFlight implements scanner.MetricsRecorder
func (m *Metrics) AddInFlight(ctx context.Context, delta int64) {
	if m != nil && m.InFlight != nil {
		m.InFlight.Add(ctx, delta)
	}
}

// AddGroups implements scanner.MetricsRecorder
func (m *Metrics) AddGroups(ctx context.Context, count int64) {
	if m != nil && m.GroupsTotal != nil {
		m.GroupsTotal.Add(ctx, count)
	}
}

// Shutdown gracefully shuts down telemetry
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error

	if t.prometheusServer != nil {
		if err := t.prometheusServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("prometheus server shutdown: %w", err))
		}
	}

	if provider, ok := t.meterProvider.(*sdkmetric.MeterProvider); ok {
		if err := provider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("telemetry shutdown errors: %v", errs)
	}

	t.logger.Debug("Telemetry shut down")
	return nil
}
