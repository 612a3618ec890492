package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// IndexMetrics records index rebuild outcomes and the active corpus size.
type IndexMetrics interface {
	RecordRebuild(ctx context.Context, status string, passages int, duration time.Duration)
}

// indexMetrics implements IndexMetrics.
type indexMetrics struct {
	rebuilds metric.Int64Counter
	duration metric.Float64Histogram
	passages metric.Int64Gauge
}

// NewIndexMetrics creates IndexMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewIndexMetrics(meter metric.Meter) (IndexMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	rebuilds, err := meter.Int64Counter(
		MetricNameIndexRebuilds,
		metric.WithDescription("Total index rebuilds by status (success, failed)."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create rebuilds counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameIndexRebuildSeconds,
		metric.WithDescription("Index rebuild duration in seconds, including embedding of every passage."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create rebuild duration histogram: %w", err)
	}

	passages, err := meter.Int64Gauge(
		MetricNameIndexedPassages,
		metric.WithDescription("Number of passages in the active snapshot."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create indexed passages gauge: %w", err)
	}

	return &indexMetrics{rebuilds: rebuilds, duration: duration, passages: passages}, nil
}

func (m *indexMetrics) RecordRebuild(ctx context.Context, status string, passages int, duration time.Duration) {
	if !AllowedRebuildStatuses[status] {
		status = "other"
	}

	attrs := metric.WithAttributes(attribute.String(AttrStatus, status))

	m.rebuilds.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)

	if status == "success" {
		m.passages.Record(ctx, int64(passages))
	}
}
