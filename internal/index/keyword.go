package index

import (
	"math"
)

// BM25 Okapi parameters; the values rank BM25 implementations default to.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// KeywordDocument is one passage's contribution to the keyword index.
type KeywordDocument struct {
	PassageID string
	Text      string
}

// KeywordIndex scores passages by BM25 term overlap with a query,
// independent of embeddings. Built once per corpus snapshot; safe for
// concurrent reads after construction.
type KeywordIndex struct {
	ids        []string
	termFreqs  []map[string]int
	docLengths []int
	docFreq    map[string]int
	avgDocLen  float64
}

// BuildKeywordIndex computes BM25 term statistics over the documents.
// Stop-words are removed before counting so they never dominate scores.
func BuildKeywordIndex(docs []KeywordDocument) *KeywordIndex {
	ix := &KeywordIndex{
		ids:        make([]string, 0, len(docs)),
		termFreqs:  make([]map[string]int, 0, len(docs)),
		docLengths: make([]int, 0, len(docs)),
		docFreq:    make(map[string]int),
	}

	var totalLen int

	for _, doc := range docs {
		tokens := FilterStopwords(Tokenize(doc.Text))

		freqs := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freqs[tok]++
		}

		for term := range freqs {
			ix.docFreq[term]++
		}

		ix.ids = append(ix.ids, doc.PassageID)
		ix.termFreqs = append(ix.termFreqs, freqs)
		ix.docLengths = append(ix.docLengths, len(tokens))
		totalLen += len(tokens)
	}

	if len(docs) > 0 {
		ix.avgDocLen = float64(totalLen) / float64(len(docs))
	}

	return ix
}

// Len returns the number of indexed documents.
func (ix *KeywordIndex) Len() int { return len(ix.ids) }

// Score returns the BM25 score of every indexed passage against the query
// tokens. Passages with zero term overlap are present with score 0, not
// absent; fusion relies on a complete score map.
func (ix *KeywordIndex) Score(queryTokens []string) map[string]float64 {
	scores := make(map[string]float64, len(ix.ids))
	for _, id := range ix.ids {
		scores[id] = 0
	}

	if len(queryTokens) == 0 || ix.Len() == 0 {
		return scores
	}

	n := float64(ix.Len())

	for _, term := range FilterStopwords(queryTokens) {
		df, ok := ix.docFreq[term]
		if !ok {
			continue
		}

		// Lucene-style IDF: always non-negative, no epsilon floor needed.
		idf := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))

		for i, id := range ix.ids {
			tf := float64(ix.termFreqs[i][term])
			if tf == 0 {
				continue
			}

			norm := 1 - bm25B + bm25B*float64(ix.docLengths[i])/ix.avgDocLen
			scores[id] += idf * tf * (bm25K1 + 1) / (tf + bm25K1*norm)
		}
	}

	return scores
}
