package service

import "context"

// EmbeddingClient generates embedding vectors for text.
// Implemented by provider-specific clients (e.g. OpenAI, Google Gemini, Ollama).
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// GenerationClient produces text from a prompt.
// Implemented by the same provider packages as EmbeddingClient.
type GenerationClient interface {
	GenerateText(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}
