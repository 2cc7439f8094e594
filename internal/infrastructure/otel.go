package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"

	"fintools/internal/config"
)

// MeterName identifies instruments created by this module.
const MeterName = "fintools"

// OTelProviders holds the OpenTelemetry meter provider and the Prometheus
// handler it exports through.
type OTelProviders struct {
	MeterProvider  *sdkmetric.MeterProvider
	Meter          metric.Meter
	PrometheusHTTP http.Handler
}

// InitializeOTel wires the OpenTelemetry metrics pipeline into a dedicated
// Prometheus registry and returns the providers plus the /metrics handler.
func InitializeOTel(logger *slog.Logger) (*OTelProviders, error) {
	registry := promclient.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(config.AppName),
			semconv.ServiceVersion(config.AppVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create otel resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	logger.Info("metrics pipeline initialized",
		slog.String("exporter", "prometheus"),
		slog.String("meter", MeterName))

	return &OTelProviders{
		MeterProvider:  provider,
		Meter:          provider.Meter(MeterName),
		PrometheusHTTP: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, nil
}

// Shutdown flushes and stops the meter provider.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	if p.MeterProvider == nil {
		return nil
	}
	return p.MeterProvider.Shutdown(ctx)
}
