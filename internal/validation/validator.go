// Package validation gatekeeps answer generation: it inspects the ranked
// candidates for a query and decides whether enough grounding exists to
// answer. The layer is pure and deterministic; identical candidate input
// always produces the identical decision.
package validation

import (
	"strings"

	"github.com/supporthub/copilot/internal/index"
	"github.com/supporthub/copilot/internal/retrieval"
)

// Reason identifies which check blocked a query.
type Reason string

// Block reasons, in check order.
const (
	ReasonNone           Reason = "none"
	ReasonBelowThreshold Reason = "below_threshold"
	ReasonHighVariance   Reason = "high_variance"
	ReasonLowCoverage    Reason = "low_coverage"
)

// consistencyWindow is how many top candidates the variance check considers.
const consistencyWindow = 3

// Decision is the outcome of validating one query's candidates.
// Accepted == false means the answer generator must not be invoked.
// TopScore is reported whether accepted or blocked, so callers can always
// show how close the best match was.
type Decision struct {
	Accepted      bool
	Reason        Reason
	TopScore      float64
	ScoreVariance float64
}

// Validator runs the grounding checks with configured thresholds.
type Validator struct {
	similarityThreshold float64
	varianceThreshold   float64
}

// NewValidator creates a Validator.
func NewValidator(similarityThreshold, varianceThreshold float64) *Validator {
	return &Validator{
		similarityThreshold: similarityThreshold,
		varianceThreshold:   varianceThreshold,
	}
}

// Validate runs the three checks in order; the first failure short-circuits
// and names the decision's reason.
//
//  1. threshold: the top combined score must reach the similarity threshold.
//  2. consistency: the top-3 combined scores must not spread beyond the
//     variance threshold (high spread signals an ambiguous query).
//  3. coverage: at least one non-stop-word query token must appear in the
//     union of the candidates' text.
func (v *Validator) Validate(query string, candidates []retrieval.Candidate) Decision {
	if len(candidates) == 0 {
		return Decision{Reason: ReasonBelowThreshold}
	}

	topScore := candidates[0].CombinedScore
	variance := scoreVariance(candidates)

	if topScore < v.similarityThreshold {
		return Decision{Reason: ReasonBelowThreshold, TopScore: topScore, ScoreVariance: variance}
	}

	if len(candidates) >= consistencyWindow && variance > v.varianceThreshold {
		return Decision{Reason: ReasonHighVariance, TopScore: topScore, ScoreVariance: variance}
	}

	if !coversQuery(query, candidates) {
		return Decision{Reason: ReasonLowCoverage, TopScore: topScore, ScoreVariance: variance}
	}

	return Decision{Accepted: true, Reason: ReasonNone, TopScore: topScore, ScoreVariance: variance}
}

// scoreVariance computes the population variance of the top-3 combined scores.
func scoreVariance(candidates []retrieval.Candidate) float64 {
	window := len(candidates)
	if window > consistencyWindow {
		window = consistencyWindow
	}

	var mean float64
	for i := 0; i < window; i++ {
		mean += candidates[i].CombinedScore
	}

	mean /= float64(window)

	var variance float64
	for i := 0; i < window; i++ {
		d := candidates[i].CombinedScore - mean
		variance += d * d
	}

	return variance / float64(window)
}

// coversQuery reports whether any non-stop-word query token appears in the
// combined candidate text.
func coversQuery(query string, candidates []retrieval.Candidate) bool {
	queryTokens := index.FilterStopwords(index.Tokenize(query))
	if len(queryTokens) == 0 {
		// A query made entirely of stop-words carries no checkable content;
		// let the earlier checks decide.
		return true
	}

	var sb strings.Builder
	for _, c := range candidates {
		sb.WriteString(c.Passage.Text())
		sb.WriteByte('\n')
	}

	candidateTokens := make(map[string]struct{})
	for _, tok := range index.Tokenize(sb.String()) {
		candidateTokens[tok] = struct{}{}
	}

	for _, tok := range queryTokens {
		if _, ok := candidateTokens[tok]; ok {
			return true
		}
	}

	return false
}
