// Package lexical derives the keyword representation indexed alongside each
// chunk. The composition is deterministic: re-running it over the same chunk
// always yields the same search text, which keeps ingestion idempotent.
package lexical

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/hockeytools/rules-engine/internal/core/domain"
)

// SearchText composes the string handed to the full-text indexer: the chunk
// body plus the salient citation metadata. Rule numbers matter most here —
// users search by them verbatim ("rule 9.12") and they rarely survive
// embedding similarity alone.
func SearchText(chunk domain.Chunk) string {
	parts := make([]string, 0, 4)
	parts = append(parts, chunk.Text)
	if chunk.Metadata.Rule != "" {
		parts = append(parts, chunk.Metadata.Rule)
	}
	if chunk.Metadata.Chapter != "" {
		parts = append(parts, chunk.Metadata.Chapter)
	}
	if chunk.Metadata.Section != "" {
		parts = append(parts, chunk.Metadata.Section)
	}
	return strings.Join(parts, " ")
}

// NormalizeQuery reduces a user question to lowercase alphanumeric tokens so
// stray punctuation cannot change what the full-text query parser sees.
// Decimal rule numbers ("9.12") survive as single tokens.
func NormalizeQuery(query string) string {
	return strings.Join(Tokenize(query), " ")
}

// Tokenize splits on anything that is not a letter, digit, or an inner decimal
// point, lowercasing as it goes.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}

	var out []string
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		r = unicode.ToLower(r)
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' && b.Len() > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i+1]) && isNumeric(b.String()):
			b.WriteRune(r)
		default:
			if b.Len() > 0 {
				out = append(out, b.String())
				b.Reset()
			}
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
