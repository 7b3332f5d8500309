package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// latencyBuckets span local AEAD work (microseconds) up to KMS round trips (seconds)
var latencyBuckets = []float64{
	0.000005, 0.00005, 0.0005,
	0.002, 0.01, 0.025, 0.05,
	0.1, 0.25, 0.5, 1, 2.5,
}

// InitPrometheus creates a meter provider whose readings are collected by registerer.
// The global provider is not set.
func InitPrometheus(registerer prometheus.Registerer) (*metric.MeterProvider, error) {
	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registerer),
		otelprom.WithoutScopeInfo(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prometheus exporter: %w", err)
	}

	latencyView := metric.NewView(
		metric.Instrument{Kind: metric.InstrumentKindHistogram, Unit: "s"},
		metric.Stream{Aggregation: metric.AggregationExplicitBucketHistogram{Boundaries: latencyBuckets}},
	)

	return metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithView(latencyView),
	), nil
}
