package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"golang.org/x/time/rate"

	"github.com/supporthub/copilot/internal/api/handlers"
	"github.com/supporthub/copilot/internal/api/middleware"
	"github.com/supporthub/copilot/internal/config"
	"github.com/supporthub/copilot/internal/corpus"
	"github.com/supporthub/copilot/internal/embeddings"
	"github.com/supporthub/copilot/internal/generation"
	"github.com/supporthub/copilot/internal/googleai"
	"github.com/supporthub/copilot/internal/observability"
	"github.com/supporthub/copilot/internal/ollama"
	"github.com/supporthub/copilot/internal/openai"
	"github.com/supporthub/copilot/internal/retrieval"
	"github.com/supporthub/copilot/internal/service"
	"github.com/supporthub/copilot/internal/validation"
	"github.com/supporthub/copilot/pkg/cache"
)

const meterName = "github.com/supporthub/copilot"

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg           *config.Config
	server        *http.Server
	indexService  *service.IndexService
	meterProvider *sdkmetric.MeterProvider
}

// setupMetrics creates the meter provider, the scrape handler, and the copilot
// metric collectors when metrics are enabled. When disabled, all returns are nil.
func setupMetrics(cfg *config.Config) (*sdkmetric.MeterProvider, http.Handler, *observability.Metrics, error) {
	meterProvider, scrapeHandler, err := observability.NewMeterProvider(cfg.MetricsEnabled)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create meter provider: %w", err)
	}

	if meterProvider == nil {
		return nil, nil, nil, nil
	}

	metrics, err := observability.NewMetrics(meterProvider.Meter(meterName))
	if err != nil {
		if err2 := observability.ShutdownMeterProvider(context.Background(), meterProvider); err2 != nil {
			slog.Error("shutdown meter provider after metrics error", "error", err2)
		}

		return nil, nil, nil, fmt.Errorf("create metrics: %w", err)
	}

	return meterProvider, scrapeHandler, metrics, nil
}

// newEmbeddingClient selects the embedding provider from config.
func newEmbeddingClient(ctx context.Context, cfg *config.Config) (service.EmbeddingClient, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.OpenAIAPIKey, openai.WithDimensions(cfg.EmbeddingDimensions)), nil
	case config.ProviderGoogle:
		client, err := googleai.NewClient(ctx, cfg.GoogleAPIKey, googleai.WithDimensions(cfg.EmbeddingDimensions))
		if err != nil {
			return nil, fmt.Errorf("google embedding client: %w", err)
		}

		return client, nil
	case config.ProviderOllama:
		return ollama.NewClientWithOptions(ollama.ClientOptions{BaseURL: cfg.OllamaBaseURL}), nil
	case config.ProviderMock:
		return embeddings.NewDeterministicClientWithDimensions(cfg.EmbeddingDimensions), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.EmbeddingProvider)
	}
}

// newGenerationClient selects the generation provider from config.
func newGenerationClient(ctx context.Context, cfg *config.Config) (service.GenerationClient, error) {
	switch cfg.GenerationProvider {
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.OpenAIAPIKey, openai.WithChatModel(cfg.GenerationModel)), nil
	case config.ProviderGoogle:
		client, err := googleai.NewClient(ctx, cfg.GoogleAPIKey, googleai.WithGenerationModel(cfg.GenerationModel))
		if err != nil {
			return nil, fmt.Errorf("google generation client: %w", err)
		}

		return client, nil
	case config.ProviderOllama:
		return ollama.NewClientWithOptions(ollama.ClientOptions{
			BaseURL:         cfg.OllamaBaseURL,
			GenerationModel: cfg.GenerationModel,
		}), nil
	case config.ProviderMock:
		return embeddings.NewDeterministicClient(), nil
	default:
		return nil, fmt.Errorf("unsupported generation provider %q", cfg.GenerationProvider)
	}
}

// NewApp builds and wires all components. It does not start the HTTP server;
// call Run to start and block until shutdown or failure.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	meterProvider, scrapeHandler, metrics, err := setupMetrics(cfg)
	if err != nil {
		return nil, err
	}

	if meterProvider == nil {
		slog.Warn("metrics not enabled (METRICS_ENABLED=false)")
	} else {
		otel.SetMeterProvider(meterProvider)
	}

	// Install TraceContextHandler unconditionally so request_id appears in logs.
	defaultHandler := slog.Default().Handler()
	slog.SetDefault(slog.New(observability.NewTraceContextHandler(defaultHandler)))

	embeddingClient, err := newEmbeddingClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	generationClient, err := newGenerationClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var embedLimiter *rate.Limiter
	if cfg.EmbedRatePerSecond > 0 {
		embedLimiter = rate.NewLimiter(rate.Limit(cfg.EmbedRatePerSecond), 1)
	}

	var (
		queryMetrics observability.QueryMetrics
		indexMetrics observability.IndexMetrics
		cacheMetrics observability.CacheMetrics
		apiMetrics   observability.APIMetrics
		httpMetrics  observability.HTTPMetrics
	)
	if metrics != nil {
		queryMetrics = metrics.Query
		indexMetrics = metrics.Index
		cacheMetrics = metrics.Cache
		apiMetrics = metrics.API
		httpMetrics = metrics.HTTP
	}

	indexService := service.NewIndexService(service.IndexServiceParams{
		Source:           corpus.NewLoader(cfg.DataPath, slog.Default()),
		EmbeddingClient:  embeddingClient,
		EmbedConcurrency: cfg.EmbedMaxConcurrent,
		EmbedLimiter:     embedLimiter,
		Metrics:          indexMetrics,
		Logger:           slog.Default(),
	})

	queryCache, err := cache.NewLoaderCache[string, []float32](cfg.QueryCacheSize, func(k string) string { return k })
	if err != nil {
		return nil, fmt.Errorf("create query embedding cache: %w", err)
	}

	retriever, err := retrieval.NewRetriever(retrieval.RetrieverParams{
		Embedder:      embeddingClient,
		VectorWeight:  cfg.VectorWeight,
		KeywordWeight: cfg.KeywordWeight,
		EmbedTimeout:  cfg.EmbeddingTimeout,
		QueryCache:    queryCache,
		CacheMetrics:  cacheMetrics,
		Logger:        slog.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("create retriever: %w", err)
	}

	validator := validation.NewValidator(cfg.SimilarityThreshold, cfg.VarianceThreshold)

	generator := generation.NewGenerator(generation.GeneratorParams{
		Client:           generationClient,
		Temperature:      cfg.Temperature,
		MaxTokens:        cfg.MaxTokens,
		Timeout:          cfg.GenerationTimeout,
		EnforceCitations: cfg.CitationEnforcement,
		Logger:           slog.Default(),
	})

	queryService := service.NewQueryService(service.QueryServiceParams{
		Snapshots:    indexService,
		Retriever:    retriever,
		Validator:    validator,
		Generator:    generator,
		MaxChunks:    cfg.MaxContextChunks,
		QueryTimeout: cfg.QueryTimeout,
		Metrics:      queryMetrics,
		Logger:       slog.Default(),
	})

	server := newHTTPServer(cfg, httpServerDeps{
		health:        handlers.NewHealthHandler(),
		answers:       handlers.NewAnswerHandler(queryService),
		index:         handlers.NewIndexHandler(indexService),
		scrapeHandler: scrapeHandler,
		apiMetrics:    apiMetrics,
		httpMetrics:   httpMetrics,
	})

	return &App{
		cfg:           cfg,
		server:        server,
		indexService:  indexService,
		meterProvider: meterProvider,
	}, nil
}

type httpServerDeps struct {
	health        *handlers.HealthHandler
	answers       *handlers.AnswerHandler
	index         *handlers.IndexHandler
	scrapeHandler http.Handler
	apiMetrics    observability.APIMetrics
	httpMetrics   observability.HTTPMetrics
}

// newHTTPServer builds the HTTP server and muxes (no auth on /health and /metrics, API key on /v1/).
// Handler chain: RequestID -> Metrics -> Logging -> MaxBody -> mux.
func newHTTPServer(cfg *config.Config, deps httpServerDeps) *http.Server {
	public := http.NewServeMux()
	public.HandleFunc("GET /health", deps.health.Check)

	if deps.scrapeHandler != nil {
		public.Handle("GET /metrics", deps.scrapeHandler)
	}

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/answers", deps.answers.Create)
	protected.HandleFunc("GET /v1/answers", deps.answers.Get)
	protected.HandleFunc("POST /v1/index/rebuild", deps.index.Rebuild)
	protected.HandleFunc("GET /v1/index/stats", deps.index.Stats)

	protectedWithAuth := middleware.Auth(cfg.APIKey)(protected)
	mux := http.NewServeMux()
	mux.Handle("/v1/", protectedWithAuth)
	mux.Handle("/", public)

	handler := middleware.MaxBody(cfg.MaxRequestBodyBytes, deps.apiMetrics)(mux)
	handler = middleware.Logging(handler)
	handler = middleware.Metrics(deps.httpMetrics)(handler)
	handler = middleware.RequestID(handler)

	const (
		readTimeout  = 15 * time.Second
		writeTimeout = 15 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run builds the initial index, starts the HTTP server, then blocks until ctx
// is cancelled (e.g. signal) or the server fails. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	result, err := a.indexService.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("initial index build: %w", err)
	}

	slog.Info("initial index built", "passages", result.Passages, "took", result.Took)

	runErr := make(chan error, 1)

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Shutdown stops the server, then shuts down the meter provider. Call after Run returns.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error

	if err := a.server.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("server shutdown: %w", err)
	}

	if err := observability.ShutdownMeterProvider(ctx, a.meterProvider); err != nil {
		slog.Error("meter provider shutdown", "error", err)

		if firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
