package retrieval

// NormalizeScores maps a non-negative score family into [0,1]. Families
// already within [0,1] (vector similarities from 1/(1+distance)) pass through
// unchanged so absolute similarity survives into the fused score; unbounded
// families (raw BM25) are scaled by their maximum, putting the strongest
// keyword match at exactly 1.
//
// The same function is applied to both score families. Preserving absolute
// vector similarity is what lets the downstream similarity threshold mean
// anything: rescaling every candidate set so its best member reaches 1 would
// make all queries look confident, including ones the corpus cannot answer.
func NormalizeScores(scores map[string]float64) map[string]float64 {
	normalized := make(map[string]float64, len(scores))

	var maxScore float64
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}

	if maxScore <= 1 {
		for id, s := range scores {
			normalized[id] = s
		}

		return normalized
	}

	for id, s := range scores {
		normalized[id] = s / maxScore
	}

	return normalized
}
