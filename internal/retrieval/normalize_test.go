package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeScores(t *testing.T) {
	t.Run("scales an unbounded family by its maximum", func(t *testing.T) {
		out := NormalizeScores(map[string]float64{"a": 2, "b": 4, "c": 8})

		assert.InDelta(t, 0.25, out["a"], 1e-12)
		assert.InDelta(t, 0.5, out["b"], 1e-12)
		assert.InDelta(t, 1.0, out["c"], 1e-12)
	})

	t.Run("leaves a family already within [0,1] untouched", func(t *testing.T) {
		out := NormalizeScores(map[string]float64{"a": 0.41, "b": 0.87})

		assert.InDelta(t, 0.41, out["a"], 1e-12)
		assert.InDelta(t, 0.87, out["b"], 1e-12)
	})

	t.Run("does not inflate a uniformly weak family", func(t *testing.T) {
		// An off-topic query yields low similarity everywhere; the best
		// candidate must stay weak rather than being rescaled to 1.
		out := NormalizeScores(map[string]float64{"a": 0.3, "b": 0.3, "c": 0.3})

		for id, s := range out {
			assert.InDelta(t, 0.3, s, 1e-12, "id %s", id)
		}
	})

	t.Run("all-zero family stays zero", func(t *testing.T) {
		out := NormalizeScores(map[string]float64{"a": 0, "b": 0})

		assert.Zero(t, out["a"])
		assert.Zero(t, out["b"])
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		assert.Empty(t, NormalizeScores(nil))
	})

	t.Run("output is bounded by [0,1] for non-negative input", func(t *testing.T) {
		out := NormalizeScores(map[string]float64{"a": 0.5, "b": 3, "c": 120})

		for id, s := range out {
			assert.GreaterOrEqual(t, s, 0.0, "id %s", id)
			assert.LessOrEqual(t, s, 1.0, "id %s", id)
		}
	})
}
