// Package retrieval fuses vector and keyword relevance signals into one
// ranked candidate list per query.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/supporthub/copilot/internal/copiloterrors"
	"github.com/supporthub/copilot/internal/corpus"
	"github.com/supporthub/copilot/internal/index"
	"github.com/supporthub/copilot/pkg/cache"
)

const (
	// minVectorCandidates is the floor for the vector search width. The
	// retriever asks the vector index for 2k candidates (at least this many)
	// so fusion has headroom beyond the final top-k.
	minVectorCandidates = 10

	queryEmbeddingCacheName = "query_embedding"
)

// Embedder converts query text into a dense vector using the same model that
// embedded the corpus.
type Embedder interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// CacheMetrics records query embedding cache hits and misses. May be nil.
type CacheMetrics interface {
	RecordHit(ctx context.Context, cacheName string)
	RecordMiss(ctx context.Context, cacheName string)
}

// Candidate is one passage scored against one query. Candidates exist only
// for the duration of the query; they are never persisted.
type Candidate struct {
	Passage       corpus.Passage
	VectorScore   float64
	KeywordScore  float64
	CombinedScore float64
}

// Retriever performs hybrid retrieval over a Snapshot.
type Retriever struct {
	embedder      Embedder
	vectorWeight  float64
	keywordWeight float64
	embedTimeout  time.Duration
	queryCache    *cache.LoaderCache[string, []float32]
	cacheMetrics  CacheMetrics
	logger        *slog.Logger
}

// RetrieverParams configures a Retriever. QueryCache and CacheMetrics may be
// nil (no caching). Weights must sum to 1.
type RetrieverParams struct {
	Embedder      Embedder
	VectorWeight  float64
	KeywordWeight float64
	EmbedTimeout  time.Duration
	QueryCache    *cache.LoaderCache[string, []float32]
	CacheMetrics  CacheMetrics
	Logger        *slog.Logger
}

// NewRetriever creates a Retriever.
func NewRetriever(p RetrieverParams) (*Retriever, error) {
	const weightSumTolerance = 1e-9

	sum := p.VectorWeight + p.KeywordWeight
	if sum < 1-weightSumTolerance || sum > 1+weightSumTolerance {
		return nil, fmt.Errorf("retrieval weights must sum to 1, got %.3f", sum)
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Retriever{
		embedder:      p.Embedder,
		vectorWeight:  p.VectorWeight,
		keywordWeight: p.KeywordWeight,
		embedTimeout:  p.EmbedTimeout,
		queryCache:    p.QueryCache,
		cacheMetrics:  p.CacheMetrics,
		logger:        logger,
	}, nil
}

// Retrieve returns up to k candidates for the query, sorted descending by
// combined score with ties broken by passage id ascending. Given an unchanged
// snapshot, identical queries return identical ordered results.
//
// A passage found by only one index family still receives a combined score,
// with 0 for the missing family. When both families return nothing the result
// is an empty slice, not an error; the validation layer treats that as
// below-threshold.
func (r *Retriever) Retrieve(ctx context.Context, snap *Snapshot, query string, k int) ([]Candidate, error) {
	if snap.Len() == 0 {
		return nil, copiloterrors.NewIndexEmptyError("no passages indexed")
	}

	if k <= 0 {
		return []Candidate{}, nil
	}

	queryVector, err := r.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	n := 2 * k
	if n < minVectorCandidates {
		n = minVectorCandidates
	}

	vectorHits, err := snap.Vector.Search(queryVector, n)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	vectorScores := make(map[string]float64, len(vectorHits))
	for _, hit := range vectorHits {
		vectorScores[hit.PassageID] = index.DistanceToSimilarity(hit.Distance)
	}

	// Keyword scores cover the full corpus; only nonzero overlap joins the
	// candidate set so silence never counts as a match.
	keywordScores := make(map[string]float64)
	for id, score := range snap.Keyword.Score(index.Tokenize(query)) {
		if score > 0 {
			keywordScores[id] = score
		}
	}

	if len(vectorScores) == 0 && len(keywordScores) == 0 {
		return []Candidate{}, nil
	}

	normVector := NormalizeScores(vectorScores)
	normKeyword := NormalizeScores(keywordScores)

	candidateIDs := make(map[string]struct{}, len(normVector)+len(normKeyword))
	for id := range normVector {
		candidateIDs[id] = struct{}{}
	}

	for id := range normKeyword {
		candidateIDs[id] = struct{}{}
	}

	candidates := make([]Candidate, 0, len(candidateIDs))

	for id := range candidateIDs {
		passage, ok := snap.Passages[id]
		if !ok {
			// Index and passage map are built from the same corpus; a miss
			// here is a snapshot construction bug.
			r.logger.Warn("candidate passage missing from snapshot", "passageId", id)

			continue
		}

		vs := normVector[id]
		ks := normKeyword[id]
		candidates = append(candidates, Candidate{
			Passage:       passage,
			VectorScore:   vs,
			KeywordScore:  ks,
			CombinedScore: r.vectorWeight*vs + r.keywordWeight*ks,
		})
	}

	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].CombinedScore != candidates[b].CombinedScore {
			return candidates[a].CombinedScore > candidates[b].CombinedScore
		}

		return candidates[a].Passage.ID < candidates[b].Passage.ID
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}

	return candidates, nil
}

// embedQuery resolves the query vector, via the cache when configured. Any
// embedder failure (including timeout) surfaces as EmbeddingUnavailableError;
// a default vector is never substituted.
func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if r.embedTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.embedTimeout)
		defer cancel()
	}

	if r.queryCache == nil {
		vec, err := r.embedder.CreateEmbedding(ctx, query)
		if err != nil {
			return nil, copiloterrors.NewEmbeddingUnavailableError(fmt.Sprintf("embed query: %v", err))
		}

		return vec, nil
	}

	vec, hit, err := r.queryCache.GetWithStats(ctx, query, func(ctx context.Context, q string) ([]float32, error) {
		return r.embedder.CreateEmbedding(ctx, q)
	})
	if err != nil {
		return nil, copiloterrors.NewEmbeddingUnavailableError(fmt.Sprintf("embed query: %v", err))
	}

	if r.cacheMetrics != nil {
		if hit {
			r.cacheMetrics.RecordHit(ctx, queryEmbeddingCacheName)
		} else {
			r.cacheMetrics.RecordMiss(ctx, queryEmbeddingCacheName)
		}
	}

	return vec, nil
}
