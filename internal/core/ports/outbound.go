package ports

import (
	"context"

	"github.com/hockeytools/rules-engine/internal/core/domain"
)

// Embedder maps text to dense vectors. Batchable; implementations distinguish
// transient failures (timeouts, rate limits) from permanent ones via
// domain.ErrTemporary.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// RerankScore is one scored candidate from the cross-encoder, addressed by its
// index in the submitted candidate slice.
type RerankScore struct {
	Index int
	Score float64
}

// Reranker jointly scores (query, candidate) pairs with a cross-encoder.
// Results come back ordered by score descending.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []string) ([]RerankScore, error)
}

// Reasoner is the external reasoning capability used for contextualization and
// routing. It returns unstructured text; callers must parse defensively.
type Reasoner interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ChunkStore owns chunk lifetime. Searches are read-only and scoped to one
// partition; ReplaceScope is the single write path and must be atomic.
type ChunkStore interface {
	// VectorSearch returns the k chunks closest to the query vector within
	// the scope, ordered ascending by cosine distance.
	VectorSearch(ctx context.Context, scope domain.Scope, queryVector []float32, k int) ([]domain.Chunk, error)

	// KeywordSearch ranks chunks against the query's lexical representation,
	// ordered descending by full-text rank.
	KeywordSearch(ctx context.Context, scope domain.Scope, query string, k int) ([]domain.Chunk, error)

	// ReplaceScope atomically supersedes all chunks of exactly one scope with
	// the given set. Concurrent readers see either the old set or the new set,
	// never a mix; a failure leaves the old set untouched.
	ReplaceScope(ctx context.Context, scope domain.Scope, chunks []domain.Chunk) error

	// CountByScope reports how many chunks a scope currently holds.
	CountByScope(ctx context.Context, scope domain.Scope) (int, error)

	// ListJurisdictions returns the country codes with ingested local rules.
	ListJurisdictions(ctx context.Context) ([]string, error)
}

// RunStore persists ingestion run state.
type RunStore interface {
	Create(ctx context.Context, run *domain.IngestionRun) error
	GetByID(ctx context.Context, id string) (*domain.IngestionRun, error)
	MarkSucceeded(ctx context.Context, id string, chunksProduced int) error
	MarkFailed(ctx context.Context, id string, stage, errMessage string) error
}

// VariantCatalog is the closed set of supported rulebook variants plus the
// jurisdiction display labels, backed by the deployment's variants manifest.
type VariantCatalog interface {
	Supported(variant string) bool
	Names() []string
	JurisdictionLabel(countryCode string) string
}

// DocumentSource turns a stored rulebook into a page/text-block stream. The
// core never sees raw document bytes.
type DocumentSource interface {
	Pages(ctx context.Context, path string) ([]domain.Page, error)
}

// PageFilter classifies pages so the ingestion pipeline can discard structural
// noise before chunking.
type PageFilter interface {
	Classify(pages []domain.Page) map[int]domain.PageClass
}

// Chunker segments filtered pages into rule-coherent chunks with citation
// metadata attached.
type Chunker interface {
	Chunk(pages []domain.Page, classes map[int]domain.PageClass, scope domain.Scope, sourceFile string) []domain.Chunk
}

// IngestRequest is the queue payload for one admin-triggered ingestion.
type IngestRequest struct {
	RunID   string       `json:"run_id"`
	Scope   domain.Scope `json:"scope"`
	Path    string       `json:"path"`
	Replace bool         `json:"replace"`
}

// IngestQueue hands ingestion requests from the API to the worker.
type IngestQueue interface {
	PublishIngestRequested(ctx context.Context, req IngestRequest) error
	SubscribeIngestRequested(ctx context.Context, handler func(context.Context, IngestRequest) error) error
}
