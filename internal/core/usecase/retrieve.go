package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hockeytools/rules-engine/internal/core/domain"
	"github.com/hockeytools/rules-engine/internal/core/ports"
)

// HybridEngineConfig carries the retrieval tunables. RecallDepth is the
// per-channel intermediate depth; the fused list is cut to TopN*RerankFanout so
// the reranker has more material than the final context needs.
type HybridEngineConfig struct {
	RecallDepth    int
	RRFK           int
	RerankFanout   int
	ChannelTimeout time.Duration
}

func (c HybridEngineConfig) normalize() HybridEngineConfig {
	out := c
	if out.RecallDepth <= 0 {
		out.RecallDepth = 50
	}
	if out.RRFK <= 0 {
		out.RRFK = defaultRRFK
	}
	if out.RerankFanout <= 0 {
		out.RerankFanout = 3
	}
	if out.ChannelTimeout <= 0 {
		out.ChannelTimeout = 8 * time.Second
	}
	return out
}

// HybridEngine runs the vector and keyword channels concurrently against one
// scope and fuses their rankings. It is read-only against the store.
type HybridEngine struct {
	store    ports.ChunkStore
	embedder ports.Embedder
	cfg      HybridEngineConfig
	logger   *slog.Logger
}

func NewHybridEngine(store ports.ChunkStore, embedder ports.Embedder, cfg HybridEngineConfig, logger *slog.Logger) *HybridEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridEngine{
		store:    store,
		embedder: embedder,
		cfg:      cfg.normalize(),
		logger:   logger,
	}
}

type channelResult struct {
	chunks []domain.Chunk
	err    error
}

// Retrieve returns the fused candidate list for one scope. A single failed
// channel degrades the result to the surviving channel's ranking; both
// channels failing is a retrieval error. An empty partition is not an error.
func (e *HybridEngine) Retrieve(ctx context.Context, question string, scope domain.Scope, topN int) (domain.CandidateSet, error) {
	if strings.TrimSpace(question) == "" {
		return domain.CandidateSet{}, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("question is empty"))
	}
	if topN <= 0 {
		topN = 10
	}

	depth := e.cfg.RecallDepth
	if min := topN * e.cfg.RerankFanout; depth < min {
		depth = min
	}

	var (
		wg      sync.WaitGroup
		vector  channelResult
		keyword channelResult
	)

	// The one mandatory parallel fork point: both channels run against the
	// same scope, each under its own timeout so a slow channel cannot hold
	// the other's finished result hostage.
	wg.Add(2)
	go func() {
		defer wg.Done()
		channelCtx, cancel := context.WithTimeout(ctx, e.cfg.ChannelTimeout)
		defer cancel()
		vector.chunks, vector.err = e.vectorChannel(channelCtx, question, scope, depth)
	}()
	go func() {
		defer wg.Done()
		channelCtx, cancel := context.WithTimeout(ctx, e.cfg.ChannelTimeout)
		defer cancel()
		keyword.chunks, keyword.err = e.keywordChannel(channelCtx, question, scope, depth)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return domain.CandidateSet{}, domain.WrapError(domain.ErrAborted, "retrieve", err)
	}

	if vector.err != nil && keyword.err != nil {
		return domain.CandidateSet{}, domain.WrapError(
			domain.ErrRetrieval,
			"retrieve",
			fmt.Errorf("vector channel: %w; keyword channel: %w", vector.err, keyword.err),
		)
	}

	var failed []string
	if vector.err != nil {
		failed = append(failed, domain.ChannelVector)
		e.logger.Warn("retrieval_channel_failed", "channel", domain.ChannelVector, "scope", scope.String(), "error", vector.err)
	}
	if keyword.err != nil {
		failed = append(failed, domain.ChannelKeyword)
		e.logger.Warn("retrieval_channel_failed", "channel", domain.ChannelKeyword, "scope", scope.String(), "error", keyword.err)
	}

	// A channel that succeeds but finds nothing while its sibling has results
	// degrades the fusion the same way a failed channel does: the result
	// carries only one channel's signal. Both channels empty is an empty
	// partition, not degradation.
	if vector.err == nil && len(vector.chunks) == 0 && len(keyword.chunks) > 0 {
		failed = append(failed, domain.ChannelVector)
	}
	if keyword.err == nil && len(keyword.chunks) == 0 && len(vector.chunks) > 0 {
		failed = append(failed, domain.ChannelKeyword)
	}

	fused := fuseRRF(vector.chunks, keyword.chunks, e.cfg.RRFK)
	fused = trimCandidates(fused, topN*e.cfg.RerankFanout)

	return domain.CandidateSet{
		Candidates:     fused,
		FailedChannels: failed,
	}, nil
}

func (e *HybridEngine) vectorChannel(ctx context.Context, question string, scope domain.Scope, k int) ([]domain.Chunk, error) {
	queryVector, err := e.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	chunks, err := e.store.VectorSearch(ctx, scope, queryVector, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return chunks, nil
}

func (e *HybridEngine) keywordChannel(ctx context.Context, question string, scope domain.Scope, k int) ([]domain.Chunk, error) {
	chunks, err := e.store.KeywordSearch(ctx, scope, question, k)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	return chunks, nil
}
