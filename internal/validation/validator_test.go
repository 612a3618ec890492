package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/supporthub/copilot/internal/corpus"
	"github.com/supporthub/copilot/internal/retrieval"
)

func candidate(id string, score float64, answer string) retrieval.Candidate {
	return retrieval.Candidate{
		Passage: corpus.Passage{
			ID:       id,
			Category: "account",
			Question: "How do I reset my password?",
			Answer:   answer,
			Tags:     []string{"password"},
		},
		CombinedScore: score,
	}
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(0.65, 0.1)

	t.Run("no candidates blocks with below_threshold", func(t *testing.T) {
		d := v.Validate("reset password", nil)
		assert.False(t, d.Accepted)
		assert.Equal(t, ReasonBelowThreshold, d.Reason)
		assert.Zero(t, d.TopScore)
	})

	t.Run("top score below threshold blocks", func(t *testing.T) {
		d := v.Validate("reset password", []retrieval.Candidate{
			candidate("kb-1", 0.4, "Reset your password via Settings > Security"),
		})
		assert.False(t, d.Accepted)
		assert.Equal(t, ReasonBelowThreshold, d.Reason)
		assert.InDelta(t, 0.4, d.TopScore, 1e-9)
	})

	t.Run("high variance across top-3 blocks", func(t *testing.T) {
		d := v.Validate("reset password", []retrieval.Candidate{
			candidate("kb-1", 0.95, "Reset your password via Settings > Security"),
			candidate("kb-2", 0.2, "Open the Billing page"),
			candidate("kb-3", 0.1, "Export as CSV"),
		})
		assert.False(t, d.Accepted)
		assert.Equal(t, ReasonHighVariance, d.Reason)
		assert.InDelta(t, 0.95, d.TopScore, 1e-9)
		assert.Greater(t, d.ScoreVariance, 0.1)
	})

	t.Run("fewer than three candidates skips variance check", func(t *testing.T) {
		d := v.Validate("reset password", []retrieval.Candidate{
			candidate("kb-1", 0.95, "Reset your password via Settings > Security"),
			candidate("kb-2", 0.1, "Open the Billing page"),
		})
		assert.True(t, d.Accepted)
	})

	t.Run("no query token in candidate text blocks with low_coverage", func(t *testing.T) {
		d := v.Validate("weather forecast", []retrieval.Candidate{
			candidate("kb-1", 0.9, "Reset your password via Settings > Security"),
			candidate("kb-2", 0.88, "Open the Billing page"),
			candidate("kb-3", 0.86, "Export as CSV"),
		})
		assert.False(t, d.Accepted)
		assert.Equal(t, ReasonLowCoverage, d.Reason)
		assert.InDelta(t, 0.9, d.TopScore, 1e-9)
	})

	t.Run("all checks passing accepts", func(t *testing.T) {
		d := v.Validate("how do I reset my password", []retrieval.Candidate{
			candidate("kb-1", 0.9, "Reset your password via Settings > Security"),
			candidate("kb-2", 0.85, "Passwords can also be rotated by an admin"),
			candidate("kb-3", 0.8, "Security settings overview"),
		})
		assert.True(t, d.Accepted)
		assert.Equal(t, ReasonNone, d.Reason)
		assert.InDelta(t, 0.9, d.TopScore, 1e-9)
	})

	t.Run("check order: threshold fails before variance", func(t *testing.T) {
		// Both threshold and variance would fail; the first check names the reason.
		d := v.Validate("reset password", []retrieval.Candidate{
			candidate("kb-1", 0.5, "Reset your password via Settings > Security"),
			candidate("kb-2", 0.05, "Open the Billing page"),
			candidate("kb-3", 0.01, "Export as CSV"),
		})
		assert.Equal(t, ReasonBelowThreshold, d.Reason)
	})

	t.Run("deterministic for identical input", func(t *testing.T) {
		cands := []retrieval.Candidate{
			candidate("kb-1", 0.9, "Reset your password via Settings > Security"),
			candidate("kb-2", 0.85, "Open the Billing page"),
			candidate("kb-3", 0.8, "Export as CSV"),
		}
		assert.Equal(t, v.Validate("reset password", cands), v.Validate("reset password", cands))
	})

	t.Run("stop-word-only query passes coverage", func(t *testing.T) {
		d := v.Validate("how do you do", []retrieval.Candidate{
			candidate("kb-1", 0.9, "Reset your password via Settings > Security"),
			candidate("kb-2", 0.88, "Open the Billing page"),
			candidate("kb-3", 0.87, "Export as CSV"),
		})
		assert.True(t, d.Accepted)
	})
}
