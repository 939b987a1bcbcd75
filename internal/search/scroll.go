package search

import (
	"context"

	"github.com/blevesearch/bleve/v2/search/query"
)

// Scroll fetches one cursor page of a compiled query. The cursor is the name
// of the last channel on the previous page, or empty for the first page; the
// page resumes strictly after it. The returned cursor is the last name of
// this page, or empty when a short page signals that no further pages exist.
//
// Scrolling is stateless. A rename or delete between page fetches may skip
// or duplicate a channel; ordering stays monotonically increasing by name.
func (s *ChannelIndex) Scroll(ctx context.Context, q query.Query, size int, cursor string) (*Page, string, error) {
	page, err := s.Search(ctx, q, size, 0, cursor)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if size > 0 && len(page.Names) == size {
		next = page.Names[len(page.Names)-1]
	}
	return page, next, nil
}
