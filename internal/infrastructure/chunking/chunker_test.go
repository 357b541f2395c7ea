package chunking

import (
	"strings"
	"testing"

	"github.com/hockeytools/rules-engine/internal/core/domain"
)

func bodyClasses(pages []domain.Page) map[int]domain.PageClass {
	classes := make(map[int]domain.PageClass, len(pages))
	for _, p := range pages {
		classes[p.Number] = domain.PageBody
	}
	return classes
}

func TestChunkSplitsOnRuleHeaders(t *testing.T) {
	pages := []domain.Page{
		page(1,
			"PLAYING THE GAME",
			"9.12 Players must not obstruct an opponent.",
			"Obstruction occurs when shielding the ball.",
			"9.13 Players must not tackle unfairly.",
		),
	}

	chunks := NewRuleChunker(1500).Chunk(pages, bodyClasses(pages), domain.Scope{Variant: "outdoor"}, "rules-outdoor.pdf")

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Metadata.Rule != "9.12" {
		t.Fatalf("expected rule 9.12, got %q", chunks[0].Metadata.Rule)
	}
	if !strings.Contains(chunks[0].Text, "shielding the ball") {
		t.Fatalf("continuation text must stay with its rule, got %q", chunks[0].Text)
	}
	if chunks[1].Metadata.Rule != "9.13" {
		t.Fatalf("expected rule 9.13, got %q", chunks[1].Metadata.Rule)
	}
	if chunks[0].Metadata.Chapter != "PLAYING THE GAME" {
		t.Fatalf("expected chapter carried onto chunk, got %q", chunks[0].Metadata.Chapter)
	}
}

func TestChunkOversizedRuleSplitsAtBlockBoundary(t *testing.T) {
	long := strings.Repeat("The ball must not be played dangerously. ", 4)
	pages := []domain.Page{
		page(1,
			"9.8 Players must not play the ball dangerously.",
			long,
			long,
		),
	}

	chunks := NewRuleChunker(200).Chunk(pages, bodyClasses(pages), domain.Scope{Variant: "outdoor"}, "rules.pdf")

	if len(chunks) < 2 {
		t.Fatalf("expected the oversized rule to split, got %d chunks", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Metadata.Rule != "9.8" {
			t.Fatalf("chunk %d: continuation must keep rule metadata, got %q", i, chunk.Metadata.Rule)
		}
	}
}

func TestChunkCarriesPageAndSourceFile(t *testing.T) {
	pages := []domain.Page{
		page(4, "9.12 Players must not obstruct an opponent."),
		page(5, "9.13 Players must not tackle unfairly."),
	}

	chunks := NewRuleChunker(1500).Chunk(pages, bodyClasses(pages), domain.Scope{Variant: "indoor", Country: "GER"}, "/data/rulebooks/indoor-ger.pdf")

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Metadata.Page != 4 || chunks[1].Metadata.Page != 5 {
		t.Fatalf("expected pages [4 5], got [%d %d]", chunks[0].Metadata.Page, chunks[1].Metadata.Page)
	}
	if chunks[0].Metadata.SourceFile != "indoor-ger.pdf" {
		t.Fatalf("expected base name, got %q", chunks[0].Metadata.SourceFile)
	}
	if chunks[0].Scope.Country != "GER" {
		t.Fatalf("expected scope on chunk, got %+v", chunks[0].Scope)
	}
}

func TestChunkSkipsNonContentPages(t *testing.T) {
	pages := []domain.Page{
		page(1, "Rules of Hockey"),
		page(2, "9.1 A match is played between two teams."),
		page(3, "INDEX", "advantage 12"),
	}
	classes := map[int]domain.PageClass{
		1: domain.PageIntro,
		2: domain.PageBody,
		3: domain.PageOutro,
	}

	chunks := NewRuleChunker(1500).Chunk(pages, classes, domain.Scope{Variant: "outdoor"}, "rules.pdf")

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if strings.Contains(chunks[0].Text, "INDEX") {
		t.Fatal("outro content leaked into a chunk")
	}
}

func TestChunkDefinitionsPagesDropRuleMetadata(t *testing.T) {
	pages := []domain.Page{
		page(1, "9.12 Players must not obstruct an opponent."),
		page(2, "TERMINOLOGY", "Attack: the team trying to score a goal into the opponents' goal."),
	}
	classes := map[int]domain.PageClass{
		1: domain.PageBody,
		2: domain.PageDefinitions,
	}

	chunks := NewRuleChunker(1500).Chunk(pages, classes, domain.Scope{Variant: "outdoor"}, "rules.pdf")

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	def := chunks[1]
	if def.Metadata.ContentType != string(domain.PageDefinitions) {
		t.Fatalf("expected definitions content type, got %q", def.Metadata.ContentType)
	}
	if def.Metadata.Rule != "" {
		t.Fatalf("definitions chunks carry no rule number, got %q", def.Metadata.Rule)
	}
}
