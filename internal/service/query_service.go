package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/supporthub/copilot/internal/copiloterrors"
	"github.com/supporthub/copilot/internal/generation"
	"github.com/supporthub/copilot/internal/retrieval"
	"github.com/supporthub/copilot/internal/validation"
)

// maxQueryLength bounds the accepted query size; longer queries are rejected
// before any retrieval work begins.
const maxQueryLength = 500

// Blocked answer texts. These are fixed strings, not model output: a blocked
// result must be deterministic.
const (
	blockedInsufficientText = "I don't have enough information to answer this question. " +
		"Please try rephrasing or contact support."
	blockedAmbiguousText = "Your question matches several unrelated topics. " +
		"Could you rephrase it more specifically?"
)

// Query outcomes for metrics.
const (
	outcomeAnswered = "answered"
	outcomeBlocked  = "blocked"
	outcomeError    = "error"
)

// SnapshotProvider yields the retrieval snapshot a query runs against.
// A query acquires its snapshot exactly once, at query start.
type SnapshotProvider interface {
	Snapshot() *retrieval.Snapshot
}

// CandidateRetriever produces the ranked candidate list for a query.
type CandidateRetriever interface {
	Retrieve(ctx context.Context, snap *retrieval.Snapshot, query string, k int) ([]retrieval.Candidate, error)
}

// GroundingValidator decides whether candidates ground an answer.
type GroundingValidator interface {
	Validate(query string, candidates []retrieval.Candidate) validation.Decision
}

// AnswerGenerator produces the grounded answer text.
type AnswerGenerator interface {
	Generate(ctx context.Context, query string, candidates []retrieval.Candidate) (generation.Result, error)
}

// QueryMetrics records per-query outcome and latency. May be nil.
type QueryMetrics interface {
	RecordQuery(ctx context.Context, outcome, reason string, duration time.Duration)
}

// AnswerChunk is one accepted candidate as exposed to callers.
type AnswerChunk struct {
	Content   string  `json:"content"`
	Score     float64 `json:"score"`
	PassageID string  `json:"passageId"` //nolint:tagliatelle // API contract camelCase
	Category  string  `json:"category"`
}

// AnswerResult is the externally visible record for one query. Blocked
// results are successful results: the engine decided the evidence was too
// weak to answer, which is exactly the behavior callers asked for.
type AnswerResult struct {
	Query      string        `json:"query"`
	AnswerText string        `json:"answerText"` //nolint:tagliatelle // API contract camelCase
	Chunks     []AnswerChunk `json:"chunks"`
	Blocked    bool          `json:"blocked"`
	Confidence float64       `json:"confidence"`
	LatencyMS  float64       `json:"latencyMs"` //nolint:tagliatelle // API contract camelCase
}

// QueryService composes retrieval, validation and generation into the single
// request/response cycle. It is the only layer that maps component failures
// to the caller-visible error taxonomy.
type QueryService struct {
	snapshots    SnapshotProvider
	retriever    CandidateRetriever
	validator    GroundingValidator
	generator    AnswerGenerator
	maxChunks    int
	queryTimeout time.Duration
	metrics      QueryMetrics
	logger       *slog.Logger
}

// QueryServiceParams configures QueryService. Metrics may be nil.
type QueryServiceParams struct {
	Snapshots    SnapshotProvider
	Retriever    CandidateRetriever
	Validator    GroundingValidator
	Generator    AnswerGenerator
	MaxChunks    int
	QueryTimeout time.Duration
	Metrics      QueryMetrics
	Logger       *slog.Logger
}

// NewQueryService creates a QueryService.
func NewQueryService(p QueryServiceParams) *QueryService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &QueryService{
		snapshots:    p.Snapshots,
		retriever:    p.Retriever,
		validator:    p.Validator,
		generator:    p.Generator,
		maxChunks:    p.MaxChunks,
		queryTimeout: p.QueryTimeout,
		metrics:      p.Metrics,
		logger:       logger,
	}
}

// Answer runs the full pipeline for one query: retrieve, validate, generate,
// assemble. Latency covers the whole cycle. Returned errors are always from
// the copiloterrors taxonomy; a blocked answer is returned as a result, never
// as an error.
func (s *QueryService) Answer(ctx context.Context, query string) (AnswerResult, error) {
	start := time.Now()

	if err := validateQuery(query); err != nil {
		s.record(ctx, outcomeError, "invalid_query", time.Since(start))

		return AnswerResult{}, err
	}

	if s.queryTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	// The snapshot is pinned here; a concurrent rebuild cannot change what
	// this query sees.
	snap := s.snapshots.Snapshot()
	if snap.Len() == 0 {
		s.record(ctx, outcomeError, "index_empty", time.Since(start))

		return AnswerResult{}, copiloterrors.NewIndexEmptyError("no passages indexed")
	}

	candidates, err := s.retriever.Retrieve(ctx, snap, query, s.maxChunks)
	if err != nil {
		s.record(ctx, outcomeError, "retrieval_failed", time.Since(start))
		s.logger.Error("retrieval failed", "error", err)

		return AnswerResult{}, fmt.Errorf("retrieve candidates: %w", err)
	}

	decision := s.validator.Validate(query, candidates)
	if !decision.Accepted {
		result := s.blockedResult(query, decision, start)
		s.record(ctx, outcomeBlocked, string(decision.Reason), time.Since(start))
		s.logger.Info("query blocked",
			"reason", decision.Reason, "topScore", decision.TopScore, "variance", decision.ScoreVariance)

		return result, nil
	}

	genResult, err := s.generator.Generate(ctx, query, candidates)
	if err != nil {
		s.record(ctx, outcomeError, "generation_failed", time.Since(start))
		s.logger.Error("generation failed", "error", err)

		return AnswerResult{}, fmt.Errorf("generate answer: %w", err)
	}

	if genResult.Refused {
		s.logger.Info("generator refused, answered with best passage text", "query_len", len(query))
	}

	result := AnswerResult{
		Query:      query,
		AnswerText: genResult.AnswerText,
		Chunks:     toChunks(candidates),
		Confidence: decision.TopScore,
		LatencyMS:  float64(time.Since(start).Microseconds()) / 1000,
	}

	s.record(ctx, outcomeAnswered, "", time.Since(start))

	return result, nil
}

// blockedResult assembles the fixed blocked response. Confidence still
// reports the top score so callers can show how close the best match was.
func (s *QueryService) blockedResult(query string, decision validation.Decision, start time.Time) AnswerResult {
	text := blockedInsufficientText
	if decision.Reason == validation.ReasonHighVariance {
		text = blockedAmbiguousText
	}

	return AnswerResult{
		Query:      query,
		AnswerText: text,
		Chunks:     []AnswerChunk{},
		Blocked:    true,
		Confidence: decision.TopScore,
		LatencyMS:  float64(time.Since(start).Microseconds()) / 1000,
	}
}

func (s *QueryService) record(ctx context.Context, outcome, reason string, duration time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordQuery(ctx, outcome, reason, duration)
	}
}

// validateQuery enforces the boundary constraints before any retrieval work.
// The length limit counts characters, matching the HTTP layer's validator, so
// multi-byte queries are not rejected early.
func validateQuery(query string) error {
	if query == "" {
		return copiloterrors.NewInvalidQueryError("query must not be empty")
	}

	if utf8.RuneCountInString(query) > maxQueryLength {
		return copiloterrors.NewInvalidQueryError(
			fmt.Sprintf("query exceeds maximum length of %d characters", maxQueryLength))
	}

	return nil
}

func toChunks(candidates []retrieval.Candidate) []AnswerChunk {
	chunks := make([]AnswerChunk, 0, len(candidates))
	for _, c := range candidates {
		chunks = append(chunks, AnswerChunk{
			Content:   c.Passage.Text(),
			Score:     c.CombinedScore,
			PassageID: c.Passage.ID,
			Category:  c.Passage.Category,
		})
	}

	return chunks
}
