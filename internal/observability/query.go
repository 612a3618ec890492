package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// QueryMetrics records per-query outcome and latency with bounded cardinality.
type QueryMetrics interface {
	RecordQuery(ctx context.Context, outcome, reason string, duration time.Duration)
}

// queryMetrics implements QueryMetrics.
type queryMetrics struct {
	queries  metric.Int64Counter
	blocked  metric.Int64Counter
	duration metric.Float64Histogram
}

// NewQueryMetrics creates QueryMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewQueryMetrics(meter metric.Meter) (QueryMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	queries, err := meter.Int64Counter(
		MetricNameQueries,
		metric.WithDescription("Total queries by outcome (answered, blocked, error) and reason."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create queries counter: %w", err)
	}

	blocked, err := meter.Int64Counter(
		MetricNameBlockedQueries,
		metric.WithDescription("Queries blocked by grounding validation, by reason "+
			"(below_threshold, high_variance, low_coverage)."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create blocked queries counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameQueryDuration,
		metric.WithDescription("End-to-end query latency in seconds, including retrieval, "+
			"validation and generation."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create query duration histogram: %w", err)
	}

	return &queryMetrics{queries: queries, blocked: blocked, duration: duration}, nil
}

func (q *queryMetrics) RecordQuery(ctx context.Context, outcome, reason string, duration time.Duration) {
	outcome = NormalizeOutcome(outcome)

	allowed := AllowedErrorReasons
	if outcome == "blocked" {
		allowed = AllowedBlockReasons
	}

	attrs := metric.WithAttributes(
		attribute.String(AttrOutcome, outcome),
		attribute.String(AttrReason, NormalizeReason(reason, allowed)),
	)

	q.queries.Add(ctx, 1, attrs)
	q.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrOutcome, outcome)))

	if outcome == "blocked" {
		q.blocked.Add(ctx, 1, metric.WithAttributes(
			attribute.String(AttrReason, NormalizeReason(reason, AllowedBlockReasons)),
		))
	}
}
