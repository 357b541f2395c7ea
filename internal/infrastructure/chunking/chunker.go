// Package chunking segments filtered rulebook pages into retrieval chunks.
// Chunk boundaries follow the rule hierarchy: a new numbered rule starts a new
// chunk, so a single rule is never split across chunks unless it alone exceeds
// the size bound. Chunk quality, not chunk count, is the success criterion.
package chunking

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hockeytools/rules-engine/internal/core/domain"
)

var (
	chapterPattern    = regexp.MustCompile(`^[A-Z][A-Z\s]{3,}$`)
	sectionPattern    = regexp.MustCompile(`^\d+\s+[A-Za-z].*`)
	sectionNumPattern = regexp.MustCompile(`^\d+$`)
)

type RuleChunker struct {
	maxChars int
}

func NewRuleChunker(maxChars int) *RuleChunker {
	if maxChars <= 0 {
		maxChars = 1500
	}
	return &RuleChunker{maxChars: maxChars}
}

// chunkState tracks the hierarchy context while walking blocks in reading
// order.
type chunkState struct {
	scope      domain.Scope
	sourceFile string
	maxChars   int

	chunks  []domain.Chunk
	text    strings.Builder
	rule    string
	chapter string
	section string
	page    int
	class   domain.PageClass
}

func (c *RuleChunker) Chunk(pages []domain.Page, classes map[int]domain.PageClass, scope domain.Scope, sourceFile string) []domain.Chunk {
	state := &chunkState{
		scope:      scope,
		sourceFile: filepath.Base(sourceFile),
		maxChars:   c.maxChars,
		rule:       "General",
		chapter:    "General",
		section:    "General",
		class:      domain.PageBody,
	}

	for _, page := range pages {
		class, ok := classes[page.Number]
		if !ok || (class != domain.PageBody && class != domain.PageDefinitions) {
			continue
		}
		if class != state.class {
			state.flush()
			state.class = class
		}

		for _, raw := range page.Blocks {
			block := strings.TrimSpace(raw)
			if block == "" {
				continue
			}
			state.consume(block, page.Number)
		}
	}
	state.flush()

	return state.chunks
}

func (s *chunkState) consume(block string, pageNumber int) {
	switch {
	case chapterPattern.MatchString(block) && !sectionNumPattern.MatchString(block):
		s.flush()
		s.chapter = block
		s.rule = "General"
		s.page = pageNumber
		return

	case ruleHeaderPattern.MatchString(block):
		header := ruleHeaderPattern.FindString(block)
		// A new numbered rule always opens a fresh chunk; short fragments
		// left from the previous rule still flush so rule text never mixes.
		s.flush()
		s.rule = strings.TrimSpace(header)
		s.page = pageNumber
		s.append(block)
		return

	case sectionPattern.MatchString(block) && len(block) < 60 && !strings.HasSuffix(block, "."):
		s.flush()
		s.section = block
		s.rule = "General"
		s.page = pageNumber
		return
	}

	// Oversized rules split at block boundaries, keeping the rule metadata on
	// every continuation chunk.
	if s.text.Len() > 0 && s.text.Len()+len(block) > s.maxChars {
		s.flush()
	}
	if s.text.Len() == 0 {
		s.page = pageNumber
	}
	s.append(block)
}

func (s *chunkState) append(block string) {
	if s.text.Len() > 0 {
		s.text.WriteString("\n")
	}
	s.text.WriteString(block)
}

func (s *chunkState) flush() {
	text := strings.TrimSpace(s.text.String())
	s.text.Reset()
	if text == "" {
		return
	}

	meta := domain.ChunkMetadata{
		Rule:        s.rule,
		Chapter:     s.chapter,
		Section:     s.section,
		Page:        s.page,
		SourceFile:  s.sourceFile,
		ContentType: string(s.class),
	}
	if s.class == domain.PageDefinitions {
		meta.Rule = ""
	}

	s.chunks = append(s.chunks, domain.Chunk{
		Scope:    s.scope,
		Text:     text,
		Metadata: meta,
	})
}
