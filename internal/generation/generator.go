// Package generation produces grounded natural-language answers from
// accepted retrieval candidates, or a typed refusal when the model declines.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/supporthub/copilot/internal/copiloterrors"
	"github.com/supporthub/copilot/internal/retrieval"
)

// minAnswerLength is the shortest generated text treated as a real answer.
// Anything shorter is handled like a refusal and falls back to the best
// candidate's stored answer.
const minAnswerLength = 10

// refusalPatterns match model output that declines to answer. A match is a
// typed refusal outcome, not an error; the generator falls back to grounded
// passage text so the caller still gets a useful response.
var refusalPatterns = []string{
	"i don't know",
	"i do not know",
	"i cannot",
	"i can't",
	"i'm unable",
	"i am unable",
	"i don't have",
	"i do not have",
	"insufficient information",
	"cannot answer",
	"unable to answer",
}

// Client is the generation backend: it turns a prompt into text.
// Implementations must fail explicitly on timeout or unavailability.
type Client interface {
	GenerateText(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

// Result is the typed outcome of answer generation. Refused reports that the
// model declined (or produced unusable output) and the answer text is the
// best candidate's stored answer instead of model output.
type Result struct {
	AnswerText string
	Refused    bool
}

// Generator builds grounded prompts and post-validates model output.
type Generator struct {
	client           Client
	temperature      float64
	maxTokens        int
	timeout          time.Duration
	enforceCitations bool
	logger           *slog.Logger
}

// GeneratorParams configures a Generator.
type GeneratorParams struct {
	Client      Client
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	// EnforceCitations rejects generated text that references none of the
	// candidate passage ids; rejection falls back like a refusal.
	EnforceCitations bool

	Logger *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(p GeneratorParams) *Generator {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Generator{
		client:           p.Client,
		temperature:      p.Temperature,
		maxTokens:        p.MaxTokens,
		timeout:          p.Timeout,
		enforceCitations: p.EnforceCitations,
		logger:           logger,
	}
}

// Generate produces an answer for the query strictly from the given
// candidates. Candidates must be non-empty and ordered descending by score.
// Backend failure or timeout surfaces as GenerationUnavailableError; it is
// never converted into a fabricated answer.
func (g *Generator) Generate(ctx context.Context, query string, candidates []retrieval.Candidate) (Result, error) {
	if len(candidates) == 0 {
		return Result{}, fmt.Errorf("generate called with no candidates")
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	prompt := BuildPrompt(query, candidates)

	text, err := g.client.GenerateText(ctx, prompt, g.temperature, g.maxTokens)
	if err != nil {
		return Result{}, copiloterrors.NewGenerationUnavailableError(fmt.Sprintf("generate answer: %v", err))
	}

	text = strings.TrimSpace(text)

	if refused, why := g.rejects(text, candidates); refused {
		g.logger.Debug("generated text rejected, using best candidate answer", "reason", why)

		return Result{AnswerText: candidates[0].Passage.Answer, Refused: true}, nil
	}

	return Result{AnswerText: text}, nil
}

// rejects reports whether the generated text must be replaced by the
// fallback answer, and why.
func (g *Generator) rejects(text string, candidates []retrieval.Candidate) (bool, string) {
	if len(text) < minAnswerLength {
		return true, "too_short"
	}

	lower := strings.ToLower(text)
	for _, pattern := range refusalPatterns {
		if strings.Contains(lower, pattern) {
			return true, "refusal_pattern"
		}
	}

	if g.enforceCitations {
		var cited bool

		for _, c := range candidates {
			if strings.Contains(text, c.Passage.ID) {
				cited = true

				break
			}
		}

		if !cited {
			return true, "missing_citation"
		}
	}

	return false, ""
}

// BuildPrompt concatenates candidates in descending score order, each tagged
// with its passage id and score, followed by the query and an instruction to
// answer only from the provided context.
func BuildPrompt(query string, candidates []retrieval.Candidate) string {
	var sb strings.Builder

	sb.WriteString("You are a helpful support assistant. Answer based ONLY on the provided documentation.\n\nContext:\n")

	for _, c := range candidates {
		fmt.Fprintf(&sb, "[%s | Score: %.2f]\n%s\n\n", c.Passage.ID, c.CombinedScore, c.Passage.Answer)
	}

	fmt.Fprintf(&sb, "Question: %s\n\nAnswer based on the context above:", query)

	return sb.String()
}
