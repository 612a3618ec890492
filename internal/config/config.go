// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Provider names accepted for EMBEDDING_PROVIDER and GENERATION_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)

// Config holds all application configuration.
type Config struct {
	Port     string
	APIKey   string
	LogLevel string

	// DataPath is the JSON file holding the passage corpus.
	DataPath string

	// Provider selection and credentials.
	EmbeddingProvider  string
	GenerationProvider string
	OpenAIAPIKey       string
	GoogleAPIKey       string
	OllamaBaseURL      string

	EmbeddingDimensions int
	GenerationModel     string

	// Retrieval and validation tuning.
	SimilarityThreshold float64
	VarianceThreshold   float64
	VectorWeight        float64
	KeywordWeight       float64
	MaxContextChunks    int

	// Generation tuning.
	Temperature         float64
	MaxTokens           int
	CitationEnforcement bool

	// Timeouts.
	EmbeddingTimeout  time.Duration
	GenerationTimeout time.Duration
	QueryTimeout      time.Duration

	// Rebuild embedding concurrency cap (max concurrent embedding calls).
	EmbedMaxConcurrent int
	// Rebuild embedding rate limit in calls per second; 0 disables limiting.
	EmbedRatePerSecond float64

	QueryCacheSize      int
	MaxRequestBodyBytes int64
	MetricsEnabled      bool
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool retrieves an environment variable as a bool or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration retrieves an environment variable as a duration or returns a default value.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func validProvider(name string) bool {
	switch name {
	case ProviderOpenAI, ProviderGoogle, ProviderOllama, ProviderMock:
		return true
	}
	return false
}

// Load reads configuration from environment variables and returns a Config struct.
// It automatically loads .env file if it exists.
// Returns default values for any missing environment variables.
// API_KEY is required and the function will return an error if it's not set.
func Load() (*Config, error) {
	// Load .env file if it exists. Skip logging when absent (e.g. env from secrets/parameter store).
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	apiKey := os.Getenv("API_KEY")
	if apiKey == "" {
		return nil, errors.New("API_KEY environment variable is required but not set")
	}

	embeddingProvider := getEnv("EMBEDDING_PROVIDER", ProviderOpenAI)
	if !validProvider(embeddingProvider) {
		return nil, fmt.Errorf("EMBEDDING_PROVIDER must be one of openai, google, ollama, mock; got %q", embeddingProvider)
	}

	generationProvider := getEnv("GENERATION_PROVIDER", embeddingProvider)
	if !validProvider(generationProvider) {
		return nil, fmt.Errorf("GENERATION_PROVIDER must be one of openai, google, ollama, mock; got %q", generationProvider)
	}

	similarityThreshold := getEnvAsFloat("SIMILARITY_THRESHOLD", 0.65)
	if similarityThreshold < 0 || similarityThreshold > 1 {
		return nil, errors.New("SIMILARITY_THRESHOLD must be between 0 and 1")
	}

	varianceThreshold := getEnvAsFloat("VARIANCE_THRESHOLD", 0.1)
	if varianceThreshold < 0 {
		return nil, errors.New("VARIANCE_THRESHOLD must not be negative")
	}

	vectorWeight := getEnvAsFloat("VECTOR_WEIGHT", 0.7)
	keywordWeight := getEnvAsFloat("KEYWORD_WEIGHT", 0.3)
	if vectorWeight < 0 || keywordWeight < 0 {
		return nil, errors.New("VECTOR_WEIGHT and KEYWORD_WEIGHT must not be negative")
	}

	if sum := vectorWeight + keywordWeight; sum < 1-1e-9 || sum > 1+1e-9 {
		return nil, fmt.Errorf("VECTOR_WEIGHT and KEYWORD_WEIGHT must sum to 1, got %.3f", sum)
	}

	maxContextChunks := getEnvAsInt("MAX_CONTEXT_CHUNKS", 5)
	if maxContextChunks <= 0 {
		return nil, errors.New("MAX_CONTEXT_CHUNKS must be a positive integer")
	}

	embedMaxConcurrent := getEnvAsInt("EMBED_MAX_CONCURRENT", 4)
	if embedMaxConcurrent <= 0 {
		return nil, errors.New("EMBED_MAX_CONCURRENT must be a positive integer")
	}

	maxBodyBytes := getEnvAsInt("MAX_REQUEST_BODY_BYTES", 64*1024)
	if maxBodyBytes <= 0 {
		return nil, errors.New("MAX_REQUEST_BODY_BYTES must be a positive integer")
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		APIKey:   apiKey,
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataPath: getEnv("DATA_PATH", "data/support_kb.json"),

		EmbeddingProvider:  embeddingProvider,
		GenerationProvider: generationProvider,
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		GoogleAPIKey:       os.Getenv("GOOGLE_API_KEY"),
		OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),

		EmbeddingDimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 1536),
		GenerationModel:     os.Getenv("GENERATION_MODEL"),

		SimilarityThreshold: similarityThreshold,
		VarianceThreshold:   varianceThreshold,
		VectorWeight:        vectorWeight,
		KeywordWeight:       keywordWeight,
		MaxContextChunks:    maxContextChunks,

		Temperature:         getEnvAsFloat("TEMPERATURE", 0.1),
		MaxTokens:           getEnvAsInt("MAX_TOKENS", 500),
		CitationEnforcement: getEnvAsBool("CITATION_ENFORCEMENT", false),

		EmbeddingTimeout:  getEnvAsDuration("EMBEDDING_TIMEOUT", 2*time.Second),
		GenerationTimeout: getEnvAsDuration("GENERATION_TIMEOUT", 2*time.Second),
		QueryTimeout:      getEnvAsDuration("QUERY_TIMEOUT", 3*time.Second),

		EmbedMaxConcurrent: embedMaxConcurrent,
		EmbedRatePerSecond: getEnvAsFloat("EMBED_RATE_PER_SECOND", 0),

		QueryCacheSize:      getEnvAsInt("QUERY_CACHE_SIZE", 1024),
		MaxRequestBodyBytes: int64(maxBodyBytes),
		MetricsEnabled:      getEnvAsBool("METRICS_ENABLED", true),
	}

	// Requiring the provider key here fails fast instead of on the first query.
	switch {
	case cfg.EmbeddingProvider == ProviderOpenAI && cfg.OpenAIAPIKey == "":
		return nil, errors.New("OPENAI_API_KEY is required when EMBEDDING_PROVIDER is openai")
	case cfg.GenerationProvider == ProviderOpenAI && cfg.OpenAIAPIKey == "":
		return nil, errors.New("OPENAI_API_KEY is required when GENERATION_PROVIDER is openai")
	case cfg.EmbeddingProvider == ProviderGoogle && cfg.GoogleAPIKey == "":
		return nil, errors.New("GOOGLE_API_KEY is required when EMBEDDING_PROVIDER is google")
	case cfg.GenerationProvider == ProviderGoogle && cfg.GoogleAPIKey == "":
		return nil, errors.New("GOOGLE_API_KEY is required when GENERATION_PROVIDER is google")
	}

	return cfg, nil
}
