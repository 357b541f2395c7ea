package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hockeytools/rules-engine/internal/core/domain"
	"github.com/hockeytools/rules-engine/internal/core/ports"
)

// IngestUseCase runs the full ingestion pipeline for one rulebook: structural
// filtering, rule-aware chunking, batched embedding, and an atomic scoped
// replace. Any stage failure aborts the run and leaves the store's previous
// chunk set for the scope untouched.
type IngestUseCase struct {
	runs      ports.RunStore
	source    ports.DocumentSource
	filter    ports.PageFilter
	chunker   ports.Chunker
	embedder  ports.Embedder
	store     ports.ChunkStore
	variants  ports.VariantCatalog
	batchSize int
	logger    *slog.Logger
}

func NewIngestUseCase(
	runs ports.RunStore,
	source ports.DocumentSource,
	filter ports.PageFilter,
	chunker ports.Chunker,
	embedder ports.Embedder,
	store ports.ChunkStore,
	variants ports.VariantCatalog,
	batchSize int,
	logger *slog.Logger,
) *IngestUseCase {
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestUseCase{
		runs:      runs,
		source:    source,
		filter:    filter,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		variants:  variants,
		batchSize: batchSize,
		logger:    logger,
	}
}

type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return fmt.Sprintf("%s: %v", e.stage, e.err) }
func (e *stageError) Unwrap() error { return e.err }

// Ingest executes one run. The returned IngestionRun reflects the terminal
// state; the error mirrors the run's failure when there is one.
func (uc *IngestUseCase) Ingest(ctx context.Context, req ports.IngestRequest) (*domain.IngestionRun, error) {
	if !uc.variants.Supported(req.Scope.Variant) {
		return nil, domain.WrapError(domain.ErrUnknownVariant, "ingest", fmt.Errorf("variant %q", req.Scope.Variant))
	}
	if !req.Replace {
		existing, err := uc.store.CountByScope(ctx, req.Scope)
		if err != nil {
			return nil, fmt.Errorf("count scope %s: %w", req.Scope.String(), err)
		}
		if existing > 0 {
			return nil, domain.WrapError(
				domain.ErrInvalidInput,
				"ingest",
				fmt.Errorf("scope %s already holds %d chunks and replace was not requested", req.Scope.String(), existing),
			)
		}
	}

	run := &domain.IngestionRun{
		ID:         req.RunID,
		Scope:      req.Scope,
		SourceFile: req.Path,
		Status:     domain.RunRunning,
		StartedAt:  time.Now().UTC(),
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if err := uc.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create ingestion run: %w", err)
	}

	chunks, err := uc.pipeline(ctx, req)
	if err != nil {
		stage := failedStage(err)
		if markErr := uc.runs.MarkFailed(ctx, run.ID, stage, err.Error()); markErr != nil {
			uc.logger.Error("mark_run_failed_error", "run_id", run.ID, "error", markErr)
		}
		now := time.Now().UTC()
		run.Status = domain.RunFailed
		run.FailedStage = stage
		run.Error = err.Error()
		run.FinishedAt = &now
		return run, err
	}

	if err := uc.runs.MarkSucceeded(ctx, run.ID, len(chunks)); err != nil {
		uc.logger.Error("mark_run_succeeded_error", "run_id", run.ID, "error", err)
	}
	now := time.Now().UTC()
	run.Status = domain.RunSucceeded
	run.ChunksProduced = len(chunks)
	run.FinishedAt = &now

	uc.logger.Info("ingestion_succeeded", "run_id", run.ID, "scope", req.Scope.String(), "chunks", len(chunks))
	return run, nil
}

func (uc *IngestUseCase) pipeline(ctx context.Context, req ports.IngestRequest) ([]domain.Chunk, error) {
	pages, err := uc.source.Pages(ctx, req.Path)
	if err != nil {
		return nil, &stageError{stage: domain.StageParse, err: err}
	}
	if len(pages) == 0 {
		return nil, &stageError{stage: domain.StageParse, err: domain.WrapError(domain.ErrInvalidInput, "parse", errors.New("document has no pages"))}
	}

	classes := uc.filter.Classify(pages)

	chunks := uc.chunker.Chunk(pages, classes, req.Scope, req.Path)
	if len(chunks) == 0 {
		return nil, &stageError{stage: domain.StageChunk, err: domain.WrapError(domain.ErrInvalidInput, "chunk", errors.New("chunking produced zero chunks"))}
	}

	if err := uc.embedChunks(ctx, chunks); err != nil {
		return nil, &stageError{stage: domain.StageEmbed, err: err}
	}

	if err := uc.store.ReplaceScope(ctx, req.Scope, chunks); err != nil {
		return nil, &stageError{stage: domain.StagePersist, err: err}
	}

	return chunks, nil
}

// embedChunks batches chunk texts through the embedder. A failed batch aborts
// the whole run: nothing has been written yet, so the store stays consistent.
func (uc *IngestUseCase) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	for start := 0; start < len(chunks); start += uc.batchSize {
		end := start + uc.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Text)
		}

		vectors, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(texts) {
			return domain.WrapError(
				domain.ErrInvalidInput,
				"embed",
				fmt.Errorf("vectors/texts mismatch: %d/%d", len(vectors), len(texts)),
			)
		}

		for i := range vectors {
			chunks[start+i].Embedding = vectors[i]
		}
	}
	return nil
}

func failedStage(err error) string {
	var stageErr *stageError
	if errors.As(err, &stageErr) {
		return stageErr.stage
	}
	return domain.StagePersist
}
