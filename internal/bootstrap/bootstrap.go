package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hockeytools/rules-engine/internal/config"
	"github.com/hockeytools/rules-engine/internal/core/ports"
	"github.com/hockeytools/rules-engine/internal/core/usecase"
	"github.com/hockeytools/rules-engine/internal/infrastructure/chunking"
	"github.com/hockeytools/rules-engine/internal/infrastructure/extractor/pdfsource"
	"github.com/hockeytools/rules-engine/internal/infrastructure/llm/vertex"
	"github.com/hockeytools/rules-engine/internal/infrastructure/queue/nats"
	"github.com/hockeytools/rules-engine/internal/infrastructure/repository/postgres"
	"github.com/hockeytools/rules-engine/internal/infrastructure/rerank/semanticranker"
	"github.com/hockeytools/rules-engine/internal/infrastructure/resilience"
)

// App wires configuration into the concrete dependency graph shared by the API
// and the worker. Both processes build the full graph; each uses the slice it
// needs.
type App struct {
	Config   config.Config
	Variants *config.Variants
	Logger   *slog.Logger

	Queue      *nats.Queue
	ChunkStore ports.ChunkStore
	RunStore   ports.RunStore

	Retriever ports.ContextRetriever
	Ingestor  ports.RulebookIngestor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	variants, err := config.LoadVariants(cfg.VariantsFile)
	if err != nil {
		logger.Warn("variants_file_unavailable", "path", cfg.VariantsFile, "error", err)
		variants = config.DefaultVariants()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	chunkStore := postgres.NewChunkStore(db, cfg.EmbeddingDims)
	if err := chunkStore.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure chunk schema: %w", err)
	}
	runStore := postgres.NewRunRepository(db)
	if err := runStore.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure run schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init ingest queue: %w", err)
	}

	vertexClient := vertex.New(cfg.VertexBaseURL, cfg.VertexAPIKey, cfg.VertexEmbedModel, cfg.VertexGenModel, vertex.Options{
		Executor: executor,
	})
	embedder := vertex.NewEmbedder(vertexClient, cfg.EmbedRateRPS)
	reasoner := vertex.NewReasoner(vertexClient)
	reranker := semanticranker.New(cfg.VertexBaseURL, cfg.VertexAPIKey, cfg.VertexRankModel, semanticranker.Options{
		Executor: executor,
	})

	engine := usecase.NewHybridEngine(chunkStore, embedder, usecase.HybridEngineConfig{
		RecallDepth:    cfg.RecallDepth,
		RRFK:           cfg.RRFK,
		RerankFanout:   cfg.RerankFanout,
		ChannelTimeout: cfg.ChannelTimeout,
	}, logger)
	queryRouter := usecase.NewQueryRouter(reasoner, variants, cfg.DefaultVariant, cfg.RouteTimeout, logger)
	retriever := usecase.NewOrchestrator(queryRouter, engine, reranker, usecase.OrchestratorConfig{
		ContextSize:   cfg.ContextSize,
		RerankTimeout: cfg.RerankTimeout,
	}, logger)

	ingestor := usecase.NewIngestUseCase(
		runStore,
		pdfsource.New(),
		chunking.NewStructuralFilter(),
		chunking.NewRuleChunker(cfg.MaxChunkChars),
		embedder,
		chunkStore,
		variants,
		cfg.EmbedBatchSize,
		logger,
	)

	return &App{
		Config:   cfg,
		Variants: variants,
		Logger:   logger,

		Queue:      queue,
		ChunkStore: chunkStore,
		RunStore:   runStore,

		Retriever: retriever,
		Ingestor:  ingestor,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
