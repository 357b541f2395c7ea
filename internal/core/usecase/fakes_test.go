package usecase

import (
	"context"
	"strings"

	"github.com/hockeytools/rules-engine/internal/core/domain"
	"github.com/hockeytools/rules-engine/internal/core/ports"
)

type fakeVariants struct{}

func (fakeVariants) Supported(variant string) bool {
	switch strings.ToLower(strings.TrimSpace(variant)) {
	case "outdoor", "indoor", "hockey5s":
		return true
	}
	return false
}

func (fakeVariants) Names() []string {
	return []string{"hockey5s", "indoor", "outdoor"}
}

func (fakeVariants) JurisdictionLabel(countryCode string) string {
	if countryCode == "" {
		return "International"
	}
	return countryCode + " National"
}

type fakeEmbedder struct {
	embedFn      func(ctx context.Context, texts []string) ([][]float32, error)
	embedQueryFn func(ctx context.Context, text string) ([]float32, error)
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.embedFn != nil {
		return f.embedFn(ctx, texts)
	}
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = []float32{0.1, 0.2, 0.3}
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.embedQueryFn != nil {
		return f.embedQueryFn(ctx, text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeChunkStore struct {
	vectorSearchFn  func(ctx context.Context, scope domain.Scope, queryVector []float32, k int) ([]domain.Chunk, error)
	keywordSearchFn func(ctx context.Context, scope domain.Scope, query string, k int) ([]domain.Chunk, error)
	replaceScopeFn  func(ctx context.Context, scope domain.Scope, chunks []domain.Chunk) error
	countByScopeFn  func(ctx context.Context, scope domain.Scope) (int, error)

	replaceCalls int
}

func (f *fakeChunkStore) VectorSearch(ctx context.Context, scope domain.Scope, queryVector []float32, k int) ([]domain.Chunk, error) {
	if f.vectorSearchFn != nil {
		return f.vectorSearchFn(ctx, scope, queryVector, k)
	}
	return nil, nil
}

func (f *fakeChunkStore) KeywordSearch(ctx context.Context, scope domain.Scope, query string, k int) ([]domain.Chunk, error) {
	if f.keywordSearchFn != nil {
		return f.keywordSearchFn(ctx, scope, query, k)
	}
	return nil, nil
}

func (f *fakeChunkStore) ReplaceScope(ctx context.Context, scope domain.Scope, chunks []domain.Chunk) error {
	f.replaceCalls++
	if f.replaceScopeFn != nil {
		return f.replaceScopeFn(ctx, scope, chunks)
	}
	return nil
}

func (f *fakeChunkStore) CountByScope(ctx context.Context, scope domain.Scope) (int, error) {
	if f.countByScopeFn != nil {
		return f.countByScopeFn(ctx, scope)
	}
	return 0, nil
}

func (f *fakeChunkStore) ListJurisdictions(context.Context) ([]string, error) {
	return nil, nil
}

type fakeReasoner struct {
	completeFn func(ctx context.Context, prompt string) (string, error)
	calls      int
	prompts    []string
}

func (f *fakeReasoner) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.completeFn != nil {
		return f.completeFn(ctx, prompt)
	}
	return "", nil
}

type fakeReranker struct {
	rerankFn func(ctx context.Context, query string, candidates []string) ([]ports.RerankScore, error)
	calls    int
	lastLen  int
}

func (f *fakeReranker) Rerank(ctx context.Context, query string, candidates []string) ([]ports.RerankScore, error) {
	f.calls++
	f.lastLen = len(candidates)
	if f.rerankFn != nil {
		return f.rerankFn(ctx, query, candidates)
	}
	scores := make([]ports.RerankScore, len(candidates))
	for i := range scores {
		scores[i] = ports.RerankScore{Index: i, Score: 1 - float64(i)*0.1}
	}
	return scores, nil
}

func chunkWithID(id int64, text string) domain.Chunk {
	return domain.Chunk{
		ID:    id,
		Scope: domain.Scope{Variant: "outdoor"},
		Text:  text,
	}
}
