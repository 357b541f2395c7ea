package domain

import "time"

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Ingestion stages, recorded on failed runs so an operator can tell which step
// broke without inspecting partial data (there is none; failed runs leave the
// store untouched).
const (
	StageParse   = "parse"
	StageFilter  = "filter"
	StageChunk   = "chunk"
	StageEmbed   = "embed"
	StagePersist = "persist"
)

// IngestionRun tracks one admin-triggered ingestion of a rulebook into a scope.
type IngestionRun struct {
	ID             string     `json:"id"`
	Scope          Scope      `json:"scope"`
	SourceFile     string     `json:"source_file"`
	ChunksProduced int        `json:"chunks_produced"`
	Status         RunStatus  `json:"status"`
	FailedStage    string     `json:"failed_stage,omitempty"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// Page is one page of extracted document text, as produced by the external
// parsing capability. Blocks preserve reading order within the page.
type Page struct {
	Number int
	Blocks []string
}

// PageClass is the structural classification of a page. Only body and
// definitions pages are chunked; everything else is filtered out before
// chunking so covers and indices do not pollute keyword precision.
type PageClass string

const (
	PageBody        PageClass = "body"
	PageDefinitions PageClass = "definitions"
	PageIntro       PageClass = "intro"
	PageOutro       PageClass = "outro"
)
