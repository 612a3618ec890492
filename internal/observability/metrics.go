package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all copilot metric collectors. When metrics are disabled, all fields are nil.
// Components that accept an interface (QueryMetrics, IndexMetrics, CacheMetrics, APIMetrics)
// can receive the corresponding field; they already handle nil.
type Metrics struct {
	Query QueryMetrics
	Index IndexMetrics
	Cache CacheMetrics
	API   APIMetrics
	HTTP  HTTPMetrics
}

// NewMetrics creates QueryMetrics, IndexMetrics, CacheMetrics and APIMetrics from the given meter.
// Returns (nil, nil) when meter is nil (metrics disabled).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	query, err := NewQueryMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}

	index, err := NewIndexMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("index metrics: %w", err)
	}

	cache, err := NewCacheMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}

	api, err := NewAPIMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("api metrics: %w", err)
	}

	httpm, err := NewHTTPMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("http metrics: %w", err)
	}

	return &Metrics{
		Query: query,
		Index: index,
		Cache: cache,
		API:   api,
		HTTP:  httpm,
	}, nil
}
