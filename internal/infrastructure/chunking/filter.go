package chunking

import (
	"regexp"
	"strings"

	"github.com/hockeytools/rules-engine/internal/core/domain"
)

var (
	ruleHeaderPattern  = regexp.MustCompile(`(?i)^((Rule\s+)?([1-9]|1[0-9])(\.\d+)+|Rule\s+\d+)\b`)
	definitionsPattern = regexp.MustCompile(`(?i)^(DEFINITIONS|TERMINOLOGY)\b`)
	outroPattern       = regexp.MustCompile(`(?i)^(INDEX|AVAILABILITY OF THE RULES|NOTES)\b`)
)

// StructuralFilter classifies pages so the chunker only sees rule content.
// Covers, tables of contents and trailing indices inject exactly the kind of
// noise that hurts keyword precision, so they are dropped before chunking.
type StructuralFilter struct{}

func NewStructuralFilter() *StructuralFilter {
	return &StructuralFilter{}
}

func (f *StructuralFilter) Classify(pages []domain.Page) map[int]domain.PageClass {
	classes := make(map[int]domain.PageClass, len(pages))

	firstBody := -1
	lastContent := -1
	for i, page := range pages {
		if pageHasRuleContent(page) {
			if firstBody == -1 {
				firstBody = i
			}
			lastContent = i
		}
		if pageStartsDefinitions(page) {
			if firstBody == -1 {
				firstBody = i
			}
			lastContent = i
		}
	}

	inDefinitions := false
	for i, page := range pages {
		switch {
		case firstBody == -1 || i < firstBody:
			classes[page.Number] = domain.PageIntro
		case i > lastContent || pageStartsOutro(page):
			classes[page.Number] = domain.PageOutro
		case pageStartsDefinitions(page):
			inDefinitions = true
			classes[page.Number] = domain.PageDefinitions
		case inDefinitions && !pageHasRuleContent(page):
			classes[page.Number] = domain.PageDefinitions
		default:
			inDefinitions = false
			classes[page.Number] = domain.PageBody
		}
	}
	return classes
}

func pageHasRuleContent(page domain.Page) bool {
	for _, block := range page.Blocks {
		if ruleHeaderPattern.MatchString(strings.TrimSpace(block)) {
			return true
		}
	}
	return false
}

func pageStartsDefinitions(page domain.Page) bool {
	for _, block := range page.Blocks {
		text := strings.TrimSpace(block)
		if text == "" {
			continue
		}
		return definitionsPattern.MatchString(text)
	}
	return false
}

func pageStartsOutro(page domain.Page) bool {
	for _, block := range page.Blocks {
		text := strings.TrimSpace(block)
		if text == "" {
			continue
		}
		return outroPattern.MatchString(text)
	}
	return false
}
