// Package observability provides OpenTelemetry metrics and log correlation
// for the copilot API.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameQueries             = "copilot_queries_total"
	MetricNameQueryDuration       = "copilot_query_duration_seconds"
	MetricNameBlockedQueries      = "copilot_blocked_queries_total"
	MetricNameIndexRebuilds       = "copilot_index_rebuilds_total"
	MetricNameIndexRebuildSeconds = "copilot_index_rebuild_duration_seconds"
	MetricNameIndexedPassages     = "copilot_indexed_passages"
	MetricNameCacheHits           = "copilot_cache_hits_total"
	MetricNameCacheMisses         = "copilot_cache_misses_total"
	MetricNameRequestBodyTooLarge = "copilot_request_body_too_large_total"
)

// Attribute keys.
const (
	AttrOutcome = "outcome"
	AttrReason  = "reason"
	AttrStatus  = "status"
)

// AllowedQueryOutcomes for copilot_queries_total.
var AllowedQueryOutcomes = map[string]bool{
	"answered": true,
	"blocked":  true,
	"error":    true,
}

// AllowedBlockReasons for copilot_blocked_queries_total.
var AllowedBlockReasons = map[string]bool{
	"below_threshold": true,
	"high_variance":   true,
	"low_coverage":    true,
}

// AllowedErrorReasons for copilot_queries_total with outcome "error".
var AllowedErrorReasons = map[string]bool{
	"invalid_query":     true,
	"index_empty":       true,
	"retrieval_failed":  true,
	"generation_failed": true,
}

// AllowedRebuildStatuses for copilot_index_rebuilds_total.
var AllowedRebuildStatuses = map[string]bool{
	"success": true,
	"failed":  true,
}

// AllowedCacheNames bounds the cache label cardinality.
var AllowedCacheNames = map[string]bool{
	"query_embedding": true,
}

// NormalizeOutcome returns outcome if allowed, otherwise "other".
func NormalizeOutcome(outcome string) string {
	if AllowedQueryOutcomes[outcome] {
		return outcome
	}

	return "other"
}

// NormalizeReason returns reason if in allowed, otherwise "other".
// The empty reason maps to "none".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if reason == "" {
		return "none"
	}

	if allowed[reason] {
		return reason
	}

	return "other"
}

// NormalizeCacheName returns name if allowed, otherwise "other".
func NormalizeCacheName(name string) string {
	if AllowedCacheNames[name] {
		return name
	}

	return "other"
}
