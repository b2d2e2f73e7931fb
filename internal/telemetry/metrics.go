package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// FetchMetrics records how repository lookups were resolved and how full the
// cache is.
type FetchMetrics struct {
	outcomes metric.Int64Counter
}

// NewFetchMetrics registers the lookup counter and a gauge observing the
// cache size through sizeFunc.
func NewFetchMetrics(meter metric.Meter, sizeFunc func() int64) (*FetchMetrics, error) {
	outcomes, err := meter.Int64Counter(
		"repolens.fetch.outcomes",
		metric.WithDescription("Repository lookups by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create outcome counter: %w", err)
	}

	_, err = meter.Int64ObservableGauge(
		"repolens.cache.size",
		metric.WithDescription("Number of entries in the repository cache"),
		metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
			observer.Observe(sizeFunc())
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache size gauge: %w", err)
	}

	return &FetchMetrics{outcomes: outcomes}, nil
}

func (m *FetchMetrics) RecordOutcome(ctx context.Context, outcome string) {
	m.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
