package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"iotauth/distkey/config"
)

type (
	// MetricsProvider owns the meter provider of a process. Batch commands
	// flush readings to a node_exporter textfile on stop.
	MetricsProvider interface {
		Meter() otelmetric.Meter
		Gatherer() prometheus.Gatherer
		Flush() error
		Shutdown(ctx context.Context) error
	}

	textfileMetricsProvider struct {
		path          string
		registry      *prometheus.Registry
		meterProvider *metric.MeterProvider
		logger        *zap.Logger
	}
)

// NewMetricsProvider creates a provider writing to path; an empty path keeps readings in memory
func NewMetricsProvider(path string, logger *zap.Logger) (MetricsProvider, error) {
	registry := prometheus.NewRegistry()

	meterProvider, err := InitPrometheus(registry)
	if err != nil {
		return nil, err
	}

	return &textfileMetricsProvider{
		path:          path,
		registry:      registry,
		meterProvider: meterProvider,
		logger:        logger,
	}, nil
}

func newMetricsProvider(lc fx.Lifecycle, configProvider config.ConfigProvider, logger *zap.Logger) (MetricsProvider, error) {
	provider, err := NewMetricsProvider(configProvider.GetConfig().Metrics.Textfile, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := provider.Flush(); err != nil {
				return err
			}
			return provider.Shutdown(ctx)
		},
	})

	return provider, nil
}

func (p *textfileMetricsProvider) Meter() otelmetric.Meter {
	return p.meterProvider.Meter(MeterName)
}

// Flush writes the current readings to the textfile, if one is configured
func (p *textfileMetricsProvider) Flush() error {
	if p.path == "" {
		return nil
	}

	if err := prometheus.WriteToTextfile(p.path, p.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}

	p.logger.Debug("metrics written", zap.String("path", p.path))
	return nil
}

// Shutdown stops the meter provider; meters obtained afterwards record nothing
func (p *textfileMetricsProvider) Shutdown(ctx context.Context) error {
	return p.meterProvider.Shutdown(ctx)
}

func (p *textfileMetricsProvider) Gatherer() prometheus.Gatherer {
	return p.registry
}

var Module = fx.Provide(
	newMetricsProvider,
)
