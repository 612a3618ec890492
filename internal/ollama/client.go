// Package ollama provides a client for a local Ollama server's embeddings
// and generation endpoints.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

var (
	// ErrEmptyInput is returned when CreateEmbedding is called with empty input.
	ErrEmptyInput = errors.New("ollama: input text is empty")
	// ErrEmptyPrompt is returned when GenerateText is called with an empty prompt.
	ErrEmptyPrompt = errors.New("ollama: prompt is empty")
	// ErrNoEmbeddingInResponse is returned when the response contains no embedding values.
	ErrNoEmbeddingInResponse = errors.New("ollama: no embedding in response")
)

const (
	defaultBaseURL         = "http://localhost:11434"
	defaultEmbeddingModel  = "nomic-embed-text"
	defaultGenerationModel = "llama3.1"
)

// ClientOptions configures the Ollama client.
type ClientOptions struct {
	// BaseURL is the Ollama server URL (default: "http://localhost:11434").
	BaseURL string
	// EmbeddingModel is the model used for /api/embeddings (default: "nomic-embed-text").
	EmbeddingModel string
	// GenerationModel is the model used for /api/generate (default: "llama3.1").
	GenerationModel string
	// RetryMax is the maximum number of retries (default: 3).
	RetryMax int
	// Timeout is the HTTP client timeout (default: 30 seconds).
	Timeout time.Duration
}

// Client calls a local Ollama server.
type Client struct {
	baseURL         string
	embeddingModel  string
	generationModel string
	httpClient      *retryablehttp.Client
}

// NewClient creates an Ollama client with default settings.
func NewClient() *Client {
	return NewClientWithOptions(ClientOptions{})
}

// NewClientWithOptions creates an Ollama client with custom options.
func NewClientWithOptions(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}

	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")

	if opts.EmbeddingModel == "" {
		opts.EmbeddingModel = defaultEmbeddingModel
	}

	if opts.GenerationModel == "" {
		opts.GenerationModel = defaultGenerationModel
	}

	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	if opts.RetryMax == 0 {
		opts.RetryMax = 3
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil

	return &Client{
		baseURL:         opts.BaseURL,
		embeddingModel:  opts.EmbeddingModel,
		generationModel: opts.GenerationModel,
		httpClient:      retryClient,
	}
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// CreateEmbedding returns the embedding vector for the given text from
// /api/embeddings using the configured embedding model.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	var resp embeddingResponse
	if err := c.post(ctx, "/api/embeddings", embeddingRequest{
		Model:  c.embeddingModel,
		Prompt: input,
	}, &resp); err != nil {
		return nil, fmt.Errorf("ollama embedding: %w", err)
	}

	if len(resp.Embedding) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	out := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		out[i] = float32(v)
	}

	return out, nil
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// GenerateText returns a non-streamed completion from /api/generate using the
// configured generation model.
func (c *Client) GenerateText(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	var resp generateResponse
	if err := c.post(ctx, "/api/generate", generateRequest{
		Model:  c.generationModel,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: temperature,
			NumPredict:  maxTokens,
		},
	}, &resp); err != nil {
		return "", fmt.Errorf("ollama generation: %w", err)
	}

	return resp.Response, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
