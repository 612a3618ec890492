package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/supporthub/copilot/internal/copiloterrors"
	"github.com/supporthub/copilot/internal/corpus"
	"github.com/supporthub/copilot/internal/index"
	"github.com/supporthub/copilot/internal/retrieval"
)

const defaultEmbedConcurrency = 4

// CorpusSource supplies the passages for an index build. Implemented by
// corpus.Loader; tests substitute an in-memory source.
type CorpusSource interface {
	Load() ([]corpus.Passage, error)
}

// IndexMetrics records rebuild outcomes. May be nil.
type IndexMetrics interface {
	RecordRebuild(ctx context.Context, status string, passages int, duration time.Duration)
}

// RebuildResult summarizes one completed index rebuild.
type RebuildResult struct {
	Passages int
	Took     time.Duration
}

// IndexStats describes the active snapshot.
type IndexStats struct {
	Passages  int       `json:"passages"`
	Dimension int       `json:"dimension"`
	BuiltAt   time.Time `json:"builtAt"` //nolint:tagliatelle // API contract camelCase
}

// IndexService owns the active retrieval snapshot. Rebuilds construct a whole
// new snapshot off to the side and publish it with a single atomic pointer
// swap; in-flight queries keep the snapshot they acquired at query start.
// Concurrent rebuild requests coalesce: one rebuild runs and all callers
// share its result.
type IndexService struct {
	source           CorpusSource
	embeddingClient  EmbeddingClient
	embedConcurrency int
	embedLimiter     *rate.Limiter
	metrics          IndexMetrics
	logger           *slog.Logger

	active       atomic.Pointer[retrieval.Snapshot]
	rebuildGroup singleflight.Group
}

// IndexServiceParams configures IndexService. EmbedLimiter may be nil (no
// rate limiting of embedding calls during rebuild).
type IndexServiceParams struct {
	Source           CorpusSource
	EmbeddingClient  EmbeddingClient
	EmbedConcurrency int
	EmbedLimiter     *rate.Limiter
	Metrics          IndexMetrics
	Logger           *slog.Logger
}

// NewIndexService creates an IndexService with no active snapshot. Call
// Rebuild before serving queries.
func NewIndexService(p IndexServiceParams) *IndexService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := p.EmbedConcurrency
	if concurrency <= 0 {
		concurrency = defaultEmbedConcurrency
	}

	return &IndexService{
		source:           p.Source,
		embeddingClient:  p.EmbeddingClient,
		embedConcurrency: concurrency,
		embedLimiter:     p.EmbedLimiter,
		metrics:          p.Metrics,
		logger:           logger,
	}
}

// Snapshot returns the active snapshot, or nil when no build has completed.
func (s *IndexService) Snapshot() *retrieval.Snapshot {
	return s.active.Load()
}

// Stats returns stats for the active snapshot.
// Returns IndexEmptyError when no snapshot is active.
func (s *IndexService) Stats() (IndexStats, error) {
	snap := s.active.Load()
	if snap == nil {
		return IndexStats{}, copiloterrors.NewIndexEmptyError("index not built yet")
	}

	return IndexStats{
		Passages:  snap.Len(),
		Dimension: snap.Vector.Dimension(),
		BuiltAt:   snap.BuiltAt,
	}, nil
}

// Rebuild loads the corpus, embeds every passage, builds fresh indexes and
// atomically publishes them. Only one rebuild runs at a time; concurrent
// callers coalesce onto the in-flight rebuild and receive its result.
func (s *IndexService) Rebuild(ctx context.Context) (RebuildResult, error) {
	start := time.Now()

	// The build itself is detached from the triggering request's cancellation:
	// coalesced callers share this one result, and a client disconnect must
	// not fail the rebuild for everyone else.
	res, err, shared := s.rebuildGroup.Do("rebuild", func() (any, error) {
		return s.rebuild(context.WithoutCancel(ctx))
	})
	if err != nil {
		if s.metrics != nil && !shared {
			s.metrics.RecordRebuild(ctx, "failed", 0, time.Since(start))
		}

		return RebuildResult{}, err
	}

	if s.metrics != nil && !shared {
		result := res.(RebuildResult)
		s.metrics.RecordRebuild(ctx, "success", result.Passages, result.Took)
	}

	if shared {
		s.logger.Debug("rebuild request coalesced onto in-flight rebuild")
	}

	return res.(RebuildResult), nil
}

func (s *IndexService) rebuild(ctx context.Context) (RebuildResult, error) {
	start := time.Now()

	passages, err := s.source.Load()
	if err != nil {
		return RebuildResult{}, fmt.Errorf("load corpus: %w", err)
	}

	if len(passages) == 0 {
		return RebuildResult{}, copiloterrors.NewIndexEmptyError("corpus contains no passages")
	}

	vectors, err := s.embedPassages(ctx, passages)
	if err != nil {
		return RebuildResult{}, err
	}

	vix, err := index.NewVectorIndex(len(vectors[0]))
	if err != nil {
		return RebuildResult{}, fmt.Errorf("create vector index: %w", err)
	}

	docs := make([]index.KeywordDocument, 0, len(passages))
	byID := make(map[string]corpus.Passage, len(passages))

	for i, p := range passages {
		if err := vix.Upsert(p.ID, vectors[i]); err != nil {
			return RebuildResult{}, fmt.Errorf("index passage %s: %w", p.ID, err)
		}

		docs = append(docs, index.KeywordDocument{PassageID: p.ID, Text: p.Text()})
		byID[p.ID] = p
	}

	snap := &retrieval.Snapshot{
		Vector:   vix,
		Keyword:  index.BuildKeywordIndex(docs),
		Passages: byID,
		BuiltAt:  time.Now().UTC(),
	}

	// Publication is a single pointer swap; readers on the old snapshot are
	// unaffected and the old snapshot is garbage collected once the last of
	// them finishes.
	s.active.Store(snap)

	took := time.Since(start)
	s.logger.Info("index rebuilt", "passages", len(passages), "dimension", vix.Dimension(), "took", took)

	return RebuildResult{Passages: len(passages), Took: took}, nil
}

// embedPassages embeds all passage texts with bounded concurrency. Each call
// waits on the rate limiter when one is configured. Any embedding failure
// aborts the rebuild; a partially embedded corpus is never published.
func (s *IndexService) embedPassages(ctx context.Context, passages []corpus.Passage) ([][]float32, error) {
	vectors := make([][]float32, len(passages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.embedConcurrency)

	for i, p := range passages {
		g.Go(func() error {
			if s.embedLimiter != nil {
				if err := s.embedLimiter.Wait(gctx); err != nil {
					return fmt.Errorf("embedding rate limiter: %w", err)
				}
			}

			vec, err := s.embeddingClient.CreateEmbedding(gctx, p.Text())
			if err != nil {
				return copiloterrors.NewEmbeddingUnavailableError(
					fmt.Sprintf("embed passage %s: %v", p.ID, err))
			}

			vectors[i] = vec

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return vectors, nil
}
