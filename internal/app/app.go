// Package app wires configuration into adapters and services. It is shared
// by the HTTP server and the command line tool.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/moltocasto/podcast-qa/internal/adapter/ai"
	"github.com/moltocasto/podcast-qa/internal/adapter/feed"
	"github.com/moltocasto/podcast-qa/internal/adapter/queue"
	"github.com/moltocasto/podcast-qa/internal/adapter/speech"
	"github.com/moltocasto/podcast-qa/internal/adapter/store"
	"github.com/moltocasto/podcast-qa/internal/adapter/tokenizer"
	"github.com/moltocasto/podcast-qa/internal/port"
	"github.com/moltocasto/podcast-qa/internal/service"
	"github.com/moltocasto/podcast-qa/pkg/config"
)

// App holds every long-lived dependency of a process.
type App struct {
	Config  *config.Config
	Store   *store.PostgresStore
	Vectors *store.VectorStore
	AI      port.AIProvider
	Queue   *queue.RedisQueue // nil without REDIS_URL

	Pipeline      *service.EmbeddingService
	Ask           *service.AskService
	Transcription *service.TranscriptionService // nil without speech credentials
	Feeds         *service.FeedService
	Questions     *service.QuestionService
}

// New connects to the database (and Redis when configured) and builds the services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	tok, err := tokenizer.New(cfg.TokenizerEncoding, cfg.TokenizerFile)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	vectors := store.NewVectorStore(pgStore, cfg.EmbeddingDimension)

	provider, generator := NewAIProvider(cfg)

	a := &App{
		Config:  cfg,
		Store:   pgStore,
		Vectors: vectors,
		AI:      provider,
	}

	if cfg.RedisURL != "" {
		q, err := queue.ConnectRedis(ctx, cfg.RedisURL, cfg.RedisQueue)
		if err != nil {
			pgStore.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.Queue = q
	}

	a.Pipeline = service.NewEmbeddingService(pgStore, provider, vectors, tok, service.EmbeddingOptions{
		Chunk:      cfg.ChunkOptions(),
		BestEffort: cfg.StoreBestEffort,
		Dimension:  cfg.EmbeddingDimension,
	})

	engine := port.NewAnswerEngine(
		service.NewFullTextStrategy(pgStore),
		service.NewRAGStrategy(provider, vectors, cfg.RAGTopK),
	)
	a.Ask = service.NewAskService(engine, provider)
	a.Feeds = service.NewFeedService(pgStore, feed.NewRSSParser())
	a.Questions = service.NewQuestionService(pgStore, generator)

	if cfg.SpeechConfigured() {
		a.Transcription = service.NewTranscriptionService(pgStore, speech.NewAzureTranscriber(speech.AzureConfig{
			Key:          cfg.SpeechKey,
			Region:       cfg.SpeechRegion,
			Locale:       cfg.SpeechLocale,
			PollInterval: cfg.SpeechPollInterval,
		}))
	} else {
		slog.Warn("speech credentials missing, transcription disabled")
	}

	slog.Info("services ready",
		"provider", cfg.LLMProvider,
		"chat_model", provider.ModelName(),
		"chunk_max_tokens", cfg.ChunkOptions().MaxTokens,
		"queue", a.Queue != nil,
	)
	return a, nil
}

// WorkQueue returns the Redis queue as a port, or nil when none is configured.
func (a *App) WorkQueue() port.WorkQueue {
	if a.Queue == nil {
		return nil
	}
	return a.Queue
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.Queue != nil {
		a.Queue.Close()
	}
	a.Store.Close()
}

// NewAIProvider selects the model backend named by LLM_PROVIDER. The second
// result is nil when the backend cannot produce structured questions.
func NewAIProvider(cfg *config.Config) (port.AIProvider, port.QuestionGenerator) {
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		p := ai.NewOllamaProvider(
			ai.OllamaEndpointConfig{
				BaseURL: cfg.OllamaEmbedURL,
				Model:   cfg.EmbeddingModel,
				Token:   cfg.OllamaEmbedToken,
			},
			ai.OllamaEndpointConfig{
				BaseURL: cfg.OllamaChatURL,
				Model:   cfg.ChatModel,
				Token:   cfg.OllamaChatToken,
			},
		)
		return p, p
	default:
		openaiCfg := ai.OpenAIConfig{
			APIKey:         cfg.LLMAPIKey,
			BaseURL:        cfg.LLMBaseURL,
			EmbeddingModel: cfg.EmbeddingModel,
			ChatModel:      cfg.ChatModel,
		}
		if cfg.LLMProvider == config.ProviderAzure {
			openaiCfg.AzureEndpoint = cfg.LLMTargetURI
			openaiCfg.APIVersion = cfg.LLMAPIVersion
		}
		p := ai.NewOpenAIProvider(openaiCfg)
		return p, p
	}
}
