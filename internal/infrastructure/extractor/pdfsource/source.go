// Package pdfsource implements ports.DocumentSource over local PDF rulebooks.
// It yields row-ordered text blocks per page; layout analysis beyond reading
// order is the concern of an external parsing capability, not this extractor.
package pdfsource

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/hockeytools/rules-engine/internal/core/domain"
)

type Source struct{}

func New() *Source {
	return &Source{}
}

func (s *Source) Pages(ctx context.Context, path string) ([]domain.Page, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer file.Close()

	total := reader.NumPage()
	pages := make([]domain.Page, 0, total)
	for num := 1; num <= total; num++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(num)
		if page.V.IsNull() {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("extract page %d of %s: %w", num, path, err)
		}

		blocks := make([]string, 0, len(rows))
		for _, row := range rows {
			var b strings.Builder
			for _, word := range row.Content {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(word.S)
			}
			text := strings.TrimSpace(b.String())
			if text != "" {
				blocks = append(blocks, text)
			}
		}

		pages = append(pages, domain.Page{Number: num, Blocks: blocks})
	}
	return pages, nil
}
