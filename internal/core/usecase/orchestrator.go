package usecase

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/hockeytools/rules-engine/internal/core/domain"
	"github.com/hockeytools/rules-engine/internal/core/ports"
)

// OrchestratorConfig bounds the sequential stages of one request.
type OrchestratorConfig struct {
	ContextSize   int
	RerankTimeout time.Duration
}

func (c OrchestratorConfig) normalize() OrchestratorConfig {
	out := c
	if out.ContextSize <= 0 {
		out.ContextSize = 10
	}
	if out.RerankTimeout <= 0 {
		out.RerankTimeout = 10 * time.Second
	}
	return out
}

// Orchestrator is the public entry point of the retrieval core. It sequences
// contextualize -> route -> hybrid retrieve -> rerank -> truncate, enforcing
// per-stage timeouts and cooperative cancellation.
type Orchestrator struct {
	router   *QueryRouter
	engine   *HybridEngine
	reranker ports.Reranker
	cfg      OrchestratorConfig
	logger   *slog.Logger
}

func NewOrchestrator(router *QueryRouter, engine *HybridEngine, reranker ports.Reranker, cfg OrchestratorConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		router:   router,
		engine:   engine,
		reranker: reranker,
		cfg:      cfg.normalize(),
		logger:   logger,
	}
}

// AnswerContext resolves the user turn into ranked, provenance-bearing
// passages. Official rules are always searched; when a country is given, the
// local-rules partition is searched as well and both candidate lists compete
// in the reranker (local rules override official ones downstream, so both must
// be present in the context).
func (o *Orchestrator) AnswerContext(ctx context.Context, question string, history []ports.Turn, country string) (*domain.RetrievalContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrAborted, "answer context", err)
	}

	standalone, err := o.router.Contextualize(ctx, history, question, country)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.WrapError(domain.ErrAborted, "answer context", ctx.Err())
		}
		// A failed rewrite degrades to the raw turn; routing and retrieval
		// can still proceed.
		o.logger.Warn("contextualize_failed", "error", err)
		standalone = question
	}

	variant := o.router.Route(ctx, standalone)
	clean := StripVariantTag(standalone)

	official := domain.Scope{Variant: variant}
	set, err := o.engine.Retrieve(ctx, clean, official, o.cfg.ContextSize)
	if err != nil {
		return nil, err
	}

	candidates := set.Candidates
	failed := set.FailedChannels
	degraded := set.Degraded()

	if country != "" {
		local, err := o.engine.Retrieve(ctx, clean, domain.Scope{Variant: variant, Country: country}, o.cfg.ContextSize)
		switch {
		case err != nil && domain.IsKind(err, domain.ErrAborted):
			return nil, err
		case err != nil:
			o.logger.Warn("local_retrieval_failed", "variant", variant, "country", country, "error", err)
			degraded = true
		default:
			candidates = append(candidates, local.Candidates...)
			failed = mergeChannels(failed, local.FailedChannels)
			degraded = degraded || local.Degraded()
		}
	}

	result := &domain.RetrievalContext{
		StandaloneQuestion: standalone,
		Scope:              domain.Scope{Variant: variant, Country: country},
		Degraded:           degraded,
		FailedChannels:     failed,
	}
	if len(candidates) == 0 {
		// Legitimately empty partition: not an error, just no context.
		return result, nil
	}

	passages, rerankApplied := o.rerank(ctx, clean, candidates)
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrAborted, "answer context", err)
	}

	if len(passages) > o.cfg.ContextSize {
		passages = passages[:o.cfg.ContextSize]
	}
	for i := range passages {
		passages[i].Rank = i + 1
	}

	result.Passages = passages
	result.RerankApplied = rerankApplied
	return result, nil
}

// rerank refines the fused ordering with the cross-encoder. A reranker failure
// falls back to the fused ordering; the result is still usable, just unrefined.
func (o *Orchestrator) rerank(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.RankedPassage, bool) {
	texts := make([]string, len(candidates))
	for i, cand := range candidates {
		texts[i] = cand.Chunk.Text
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.RerankTimeout)
	defer cancel()

	scores, err := o.reranker.Rerank(callCtx, query, texts)
	if err != nil || len(scores) == 0 {
		if err != nil {
			o.logger.Warn("rerank_failed", "error", err, "candidates", len(candidates))
		}
		return passagesFromFused(candidates), false
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })

	passages := make([]domain.RankedPassage, 0, len(scores))
	for _, score := range scores {
		if score.Index < 0 || score.Index >= len(candidates) {
			continue
		}
		passages = append(passages, domain.RankedPassage{
			Chunk:     candidates[score.Index].Chunk,
			Relevance: score.Score,
		})
	}
	if len(passages) == 0 {
		return passagesFromFused(candidates), false
	}
	return passages, true
}

func passagesFromFused(candidates []domain.Candidate) []domain.RankedPassage {
	passages := make([]domain.RankedPassage, len(candidates))
	for i, cand := range candidates {
		passages[i] = domain.RankedPassage{
			Chunk:     cand.Chunk,
			Relevance: cand.RRFScore,
		}
	}
	return passages
}

func mergeChannels(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, ch := range append(a, b...) {
		if _, ok := seen[ch]; ok {
			continue
		}
		seen[ch] = struct{}{}
		out = append(out, ch)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
