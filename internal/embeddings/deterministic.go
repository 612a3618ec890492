// Package embeddings provides a deterministic local provider used for tests
// and for running the service without any external model account.
package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"strings"

	"github.com/supporthub/copilot/pkg/embeddings"
)

// ErrEmptyInput is returned when input text is empty.
var ErrEmptyInput = errors.New("embeddings: input text is empty")

const defaultDimension = 1536

// DeterministicClient derives embeddings from the input text hash and answers
// generation requests by echoing the best passage in the prompt. The same
// input always yields the same output, which makes retrieval behavior
// reproducible without a live model.
type DeterministicClient struct {
	dimensions int
}

// NewDeterministicClient creates a deterministic client with the default
// dimension of 1536, matching text-embedding-3-small.
func NewDeterministicClient() *DeterministicClient {
	return &DeterministicClient{dimensions: defaultDimension}
}

// NewDeterministicClientWithDimensions creates a deterministic client with
// custom dimensions.
func NewDeterministicClientWithDimensions(dimensions int) *DeterministicClient {
	return &DeterministicClient{dimensions: dimensions}
}

// CreateEmbedding returns an L2-normalized vector derived from the text hash.
func (c *DeterministicClient) CreateEmbedding(_ context.Context, input string) ([]float32, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}

	hash := sha256.Sum256([]byte(input))
	vector := make([]float32, c.dimensions)

	// Stretch the 32 hash bytes across the full dimension by hashing the
	// block index into the seed, so nearby dimensions are not correlated.
	for block := 0; block*len(hash) < c.dimensions; block++ {
		var seed [sha256.Size + 8]byte

		copy(seed[:], hash[:])
		binary.BigEndian.PutUint64(seed[sha256.Size:], uint64(block))
		blockHash := sha256.Sum256(seed[:])

		for i, b := range blockHash {
			idx := block*len(blockHash) + i
			if idx >= c.dimensions {
				break
			}

			vector[idx] = (float32(b) / 127.5) - 1.0
		}
	}

	embeddings.NormalizeL2(vector)

	return vector, nil
}

// GenerateText returns the first context passage embedded in the prompt,
// mimicking a model that copies its grounding text. Context passages are the
// lines following a "[id | Score: x.xx]" tag, the format BuildPrompt emits.
func (c *DeterministicClient) GenerateText(_ context.Context, prompt string, _ float64, _ int) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyInput
	}

	inContext := false

	for line := range strings.Lines(prompt) {
		line = strings.TrimSpace(line)
		if inContext && line != "" {
			return line, nil
		}

		inContext = strings.HasPrefix(line, "[") && strings.Contains(line, "Score:")
	}

	return "No matching documentation found in the provided context.", nil
}
