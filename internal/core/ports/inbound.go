package ports

import (
	"context"

	"github.com/hockeytools/rules-engine/internal/core/domain"
)

// Turn is one prior conversation exchange handed to the contextualizer.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ContextRetriever is the public entry point of the retrieval core: it turns a
// raw user turn plus history into ranked, grounded passages.
type ContextRetriever interface {
	AnswerContext(ctx context.Context, question string, history []Turn, country string) (*domain.RetrievalContext, error)
}

// RulebookIngestor runs the full ingestion pipeline for one rulebook.
type RulebookIngestor interface {
	Ingest(ctx context.Context, req IngestRequest) (*domain.IngestionRun, error)
}

// RunReader exposes ingestion run state to the admin surface.
type RunReader interface {
	GetByID(ctx context.Context, id string) (*domain.IngestionRun, error)
}
