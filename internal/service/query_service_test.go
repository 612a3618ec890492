package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supporthub/copilot/internal/copiloterrors"
	"github.com/supporthub/copilot/internal/corpus"
	"github.com/supporthub/copilot/internal/generation"
	"github.com/supporthub/copilot/internal/index"
	"github.com/supporthub/copilot/internal/retrieval"
	"github.com/supporthub/copilot/internal/validation"
)

type mockSnapshots struct {
	snapshot *retrieval.Snapshot
}

func (m *mockSnapshots) Snapshot() *retrieval.Snapshot {
	return m.snapshot
}

type mockRetriever struct {
	retrieveFunc func(ctx context.Context, snap *retrieval.Snapshot, query string, k int) ([]retrieval.Candidate, error)
}

func (m *mockRetriever) Retrieve(
	ctx context.Context, snap *retrieval.Snapshot, query string, k int,
) ([]retrieval.Candidate, error) {
	return m.retrieveFunc(ctx, snap, query, k)
}

type mockValidator struct {
	validateFunc func(query string, candidates []retrieval.Candidate) validation.Decision
}

func (m *mockValidator) Validate(query string, candidates []retrieval.Candidate) validation.Decision {
	return m.validateFunc(query, candidates)
}

type mockGenerator struct {
	generateFunc func(ctx context.Context, query string, candidates []retrieval.Candidate) (generation.Result, error)
}

func (m *mockGenerator) Generate(
	ctx context.Context, query string, candidates []retrieval.Candidate,
) (generation.Result, error) {
	return m.generateFunc(ctx, query, candidates)
}

type recordedQuery struct {
	outcome string
	reason  string
}

type mockQueryMetrics struct {
	recorded []recordedQuery
}

func (m *mockQueryMetrics) RecordQuery(_ context.Context, outcome, reason string, _ time.Duration) {
	m.recorded = append(m.recorded, recordedQuery{outcome: outcome, reason: reason})
}

func populatedSnapshot(t *testing.T) *retrieval.Snapshot {
	t.Helper()

	vectorIndex, err := index.NewVectorIndex(2)
	require.NoError(t, err)
	require.NoError(t, vectorIndex.Upsert("kb-1", []float32{1, 0}))

	passage := corpus.Passage{
		ID:       "kb-1",
		Category: "Account",
		Question: "How do I reset my password?",
		Answer:   "Use the password reset link on the sign-in page.",
	}

	return &retrieval.Snapshot{
		Vector: vectorIndex,
		Keyword: index.BuildKeywordIndex([]index.KeywordDocument{
			{PassageID: "kb-1", Text: passage.Text()},
		}),
		Passages: map[string]corpus.Passage{"kb-1": passage},
	}
}

func acceptedCandidates() []retrieval.Candidate {
	return []retrieval.Candidate{
		{
			Passage: corpus.Passage{
				ID:       "kb-1",
				Category: "Account",
				Question: "How do I reset my password?",
				Answer:   "Use the password reset link on the sign-in page.",
			},
			VectorScore:   0.9,
			KeywordScore:  0.8,
			CombinedScore: 0.87,
		},
		{
			Passage: corpus.Passage{
				ID:       "kb-2",
				Category: "Account",
				Question: "How do I change my email?",
				Answer:   "Open account settings and edit the email field.",
			},
			VectorScore:   0.7,
			KeywordScore:  0.5,
			CombinedScore: 0.64,
		},
	}
}

func newTestQueryService(t *testing.T, p QueryServiceParams) (*QueryService, *mockQueryMetrics) {
	t.Helper()

	metrics := &mockQueryMetrics{}

	if p.Snapshots == nil {
		p.Snapshots = &mockSnapshots{snapshot: populatedSnapshot(t)}
	}

	if p.Validator == nil {
		p.Validator = &mockValidator{
			validateFunc: func(_ string, candidates []retrieval.Candidate) validation.Decision {
				top := 0.0
				if len(candidates) > 0 {
					top = candidates[0].CombinedScore
				}

				return validation.Decision{Accepted: true, Reason: validation.ReasonNone, TopScore: top}
			},
		}
	}

	if p.Generator == nil {
		p.Generator = &mockGenerator{
			generateFunc: func(_ context.Context, _ string, _ []retrieval.Candidate) (generation.Result, error) {
				return generation.Result{AnswerText: "Use the password reset link on the sign-in page."}, nil
			},
		}
	}

	p.MaxChunks = 5
	p.Metrics = metrics

	return NewQueryService(p), metrics
}

func TestQueryService_Answer(t *testing.T) {
	t.Parallel()

	t.Run("answers a well grounded query", func(t *testing.T) {
		t.Parallel()

		svc, metrics := newTestQueryService(t, QueryServiceParams{
			Retriever: &mockRetriever{
				retrieveFunc: func(_ context.Context, _ *retrieval.Snapshot, _ string, _ int) ([]retrieval.Candidate, error) {
					return acceptedCandidates(), nil
				},
			},
		})

		result, err := svc.Answer(context.Background(), "How do I reset my password?")
		require.NoError(t, err)

		assert.False(t, result.Blocked)
		assert.Equal(t, "Use the password reset link on the sign-in page.", result.AnswerText)
		assert.InDelta(t, 0.87, result.Confidence, 1e-9)
		require.Len(t, result.Chunks, 2)
		assert.Equal(t, "kb-1", result.Chunks[0].PassageID)
		assert.Equal(t, "Account", result.Chunks[0].Category)
		assert.Contains(t, result.Chunks[0].Content, "password reset link")
		assert.InDelta(t, 0.87, result.Chunks[0].Score, 1e-9)
		assert.GreaterOrEqual(t, result.LatencyMS, 0.0)

		require.Len(t, metrics.recorded, 1)
		assert.Equal(t, recordedQuery{outcome: "answered"}, metrics.recorded[0])
	})

	t.Run("blocks when the best match is below the threshold", func(t *testing.T) {
		t.Parallel()

		svc, metrics := newTestQueryService(t, QueryServiceParams{
			Retriever: &mockRetriever{
				retrieveFunc: func(_ context.Context, _ *retrieval.Snapshot, _ string, _ int) ([]retrieval.Candidate, error) {
					return acceptedCandidates(), nil
				},
			},
			Validator: &mockValidator{
				validateFunc: func(_ string, _ []retrieval.Candidate) validation.Decision {
					return validation.Decision{
						Accepted: false,
						Reason:   validation.ReasonBelowThreshold,
						TopScore: 0.41,
					}
				},
			},
			Generator: &mockGenerator{
				generateFunc: func(_ context.Context, _ string, _ []retrieval.Candidate) (generation.Result, error) {
					t.Fatal("generator must not be called for a blocked query")

					return generation.Result{}, nil
				},
			},
		})

		result, err := svc.Answer(context.Background(), "How do I fly to the moon?")
		require.NoError(t, err)

		assert.True(t, result.Blocked)
		assert.Contains(t, result.AnswerText, "don't have enough information")
		assert.Empty(t, result.Chunks)
		assert.NotNil(t, result.Chunks)
		assert.InDelta(t, 0.41, result.Confidence, 1e-9)

		require.Len(t, metrics.recorded, 1)
		assert.Equal(t, recordedQuery{outcome: "blocked", reason: "below_threshold"}, metrics.recorded[0])
	})

	t.Run("asks for clarification on a high variance block", func(t *testing.T) {
		t.Parallel()

		svc, _ := newTestQueryService(t, QueryServiceParams{
			Retriever: &mockRetriever{
				retrieveFunc: func(_ context.Context, _ *retrieval.Snapshot, _ string, _ int) ([]retrieval.Candidate, error) {
					return acceptedCandidates(), nil
				},
			},
			Validator: &mockValidator{
				validateFunc: func(_ string, _ []retrieval.Candidate) validation.Decision {
					return validation.Decision{
						Accepted:      false,
						Reason:        validation.ReasonHighVariance,
						TopScore:      0.7,
						ScoreVariance: 0.2,
					}
				},
			},
		})

		result, err := svc.Answer(context.Background(), "How does billing work for exports?")
		require.NoError(t, err)

		assert.True(t, result.Blocked)
		assert.Contains(t, result.AnswerText, "rephrase")
		assert.Contains(t, result.AnswerText, "several unrelated topics")
	})

	t.Run("rejects an empty query before retrieval", func(t *testing.T) {
		t.Parallel()

		svc, metrics := newTestQueryService(t, QueryServiceParams{
			Retriever: &mockRetriever{
				retrieveFunc: func(_ context.Context, _ *retrieval.Snapshot, _ string, _ int) ([]retrieval.Candidate, error) {
					t.Fatal("retriever must not be called for an invalid query")

					return nil, nil
				},
			},
		})

		_, err := svc.Answer(context.Background(), "")
		require.ErrorIs(t, err, copiloterrors.ErrInvalidQuery)

		require.Len(t, metrics.recorded, 1)
		assert.Equal(t, recordedQuery{outcome: "error", reason: "invalid_query"}, metrics.recorded[0])
	})

	t.Run("rejects an oversized query", func(t *testing.T) {
		t.Parallel()

		svc, _ := newTestQueryService(t, QueryServiceParams{
			Retriever: &mockRetriever{
				retrieveFunc: func(_ context.Context, _ *retrieval.Snapshot, _ string, _ int) ([]retrieval.Candidate, error) {
					t.Fatal("retriever must not be called for an invalid query")

					return nil, nil
				},
			},
		})

		_, err := svc.Answer(context.Background(), strings.Repeat("a", maxQueryLength+1))
		require.ErrorIs(t, err, copiloterrors.ErrInvalidQuery)
	})

	t.Run("accepts a query at the length limit", func(t *testing.T) {
		t.Parallel()

		svc, _ := newTestQueryService(t, QueryServiceParams{
			Retriever: &mockRetriever{
				retrieveFunc: func(_ context.Context, _ *retrieval.Snapshot, _ string, _ int) ([]retrieval.Candidate, error) {
					return acceptedCandidates(), nil
				},
			},
		})

		_, err := svc.Answer(context.Background(), strings.Repeat("a", maxQueryLength))
		require.NoError(t, err)
	})

	t.Run("length limit counts characters, not bytes", func(t *testing.T) {
		t.Parallel()

		svc, _ := newTestQueryService(t, QueryServiceParams{
			Retriever: &mockRetriever{
				retrieveFunc: func(_ context.Context, _ *retrieval.Snapshot, _ string, _ int) ([]retrieval.Candidate, error) {
					return acceptedCandidates(), nil
				},
			},
		})

		// maxQueryLength two-byte characters: over the limit in bytes but
		// exactly at it in characters, so it must be accepted.
		_, err := svc.Answer(context.Background(), strings.Repeat("\u00e9", maxQueryLength))
		require.NoError(t, err)

		_, err = svc.Answer(context.Background(), strings.Repeat("\u00e9", maxQueryLength+1))
		require.ErrorIs(t, err, copiloterrors.ErrInvalidQuery)
	})

	t.Run("returns index empty before the index is built", func(t *testing.T) {
		t.Parallel()

		svc, metrics := newTestQueryService(t, QueryServiceParams{
			Snapshots: &mockSnapshots{snapshot: nil},
			Retriever: &mockRetriever{
				retrieveFunc: func(_ context.Context, _ *retrieval.Snapshot, _ string, _ int) ([]retrieval.Candidate, error) {
					t.Fatal("retriever must not be called without a snapshot")

					return nil, nil
				},
			},
		})

		_, err := svc.Answer(context.Background(), "How do I reset my password?")
		require.ErrorIs(t, err, copiloterrors.ErrIndexEmpty)

		require.Len(t, metrics.recorded, 1)
		assert.Equal(t, recordedQuery{outcome: "error", reason: "index_empty"}, metrics.recorded[0])
	})

	t.Run("propagates embedding unavailability", func(t *testing.T) {
		t.Parallel()

		svc, metrics := newTestQueryService(t, QueryServiceParams{
			Retriever: &mockRetriever{
				retrieveFunc: func(_ context.Context, _ *retrieval.Snapshot, _ string, _ int) ([]retrieval.Candidate, error) {
					return nil, copiloterrors.NewEmbeddingUnavailableError("embedding provider timed out")
				},
			},
		})

		_, err := svc.Answer(context.Background(), "How do I reset my password?")
		require.ErrorIs(t, err, copiloterrors.ErrEmbeddingUnavailable)

		require.Len(t, metrics.recorded, 1)
		assert.Equal(t, recordedQuery{outcome: "error", reason: "retrieval_failed"}, metrics.recorded[0])
	})

	t.Run("propagates generation unavailability", func(t *testing.T) {
		t.Parallel()

		svc, metrics := newTestQueryService(t, QueryServiceParams{
			Retriever: &mockRetriever{
				retrieveFunc: func(_ context.Context, _ *retrieval.Snapshot, _ string, _ int) ([]retrieval.Candidate, error) {
					return acceptedCandidates(), nil
				},
			},
			Generator: &mockGenerator{
				generateFunc: func(_ context.Context, _ string, _ []retrieval.Candidate) (generation.Result, error) {
					return generation.Result{}, copiloterrors.NewGenerationUnavailableError("model unavailable")
				},
			},
		})

		_, err := svc.Answer(context.Background(), "How do I reset my password?")
		require.ErrorIs(t, err, copiloterrors.ErrGenerationUnavailable)

		require.Len(t, metrics.recorded, 1)
		assert.Equal(t, recordedQuery{outcome: "error", reason: "generation_failed"}, metrics.recorded[0])
	})

	t.Run("returns the fallback text when the generator refuses", func(t *testing.T) {
		t.Parallel()

		svc, metrics := newTestQueryService(t, QueryServiceParams{
			Retriever: &mockRetriever{
				retrieveFunc: func(_ context.Context, _ *retrieval.Snapshot, _ string, _ int) ([]retrieval.Candidate, error) {
					return acceptedCandidates(), nil
				},
			},
			Generator: &mockGenerator{
				generateFunc: func(_ context.Context, _ string, candidates []retrieval.Candidate) (generation.Result, error) {
					return generation.Result{
						AnswerText: candidates[0].Passage.Answer,
						Refused:    true,
					}, nil
				},
			},
		})

		result, err := svc.Answer(context.Background(), "How do I reset my password?")
		require.NoError(t, err)

		assert.False(t, result.Blocked)
		assert.Equal(t, "Use the password reset link on the sign-in page.", result.AnswerText)
		require.Len(t, metrics.recorded, 1)
		assert.Equal(t, recordedQuery{outcome: "answered"}, metrics.recorded[0])
	})

	t.Run("passes the timeout context to the retriever", func(t *testing.T) {
		t.Parallel()

		svc, _ := newTestQueryService(t, QueryServiceParams{
			QueryTimeout: 40 * time.Millisecond,
			Retriever: &mockRetriever{
				retrieveFunc: func(ctx context.Context, _ *retrieval.Snapshot, _ string, _ int) ([]retrieval.Candidate, error) {
					deadline, ok := ctx.Deadline()
					require.True(t, ok)
					assert.WithinDuration(t, time.Now().Add(40*time.Millisecond), deadline, 30*time.Millisecond)

					return acceptedCandidates(), nil
				},
			},
		})

		_, err := svc.Answer(context.Background(), "How do I reset my password?")
		require.NoError(t, err)
	})

	t.Run("wraps unexpected retrieval errors", func(t *testing.T) {
		t.Parallel()

		retrieveErr := errors.New("index corrupted")
		svc, _ := newTestQueryService(t, QueryServiceParams{
			Retriever: &mockRetriever{
				retrieveFunc: func(_ context.Context, _ *retrieval.Snapshot, _ string, _ int) ([]retrieval.Candidate, error) {
					return nil, retrieveErr
				},
			},
		})

		_, err := svc.Answer(context.Background(), "How do I reset my password?")
		require.ErrorIs(t, err, retrieveErr)
	})
}
