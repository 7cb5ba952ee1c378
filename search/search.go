package search

import "context"

const (
	DefaultPages = 2
	// DefaultMaxPages caps a single search when no limit is configured.
	DefaultMaxPages = 10
)

// ResultRecord is one scraped result card. Absent fields are nil.
type ResultRecord struct {
	Title     *string  `json:"title"`
	TitleURL  *string  `json:"title_url"`
	Timestamp *string  `json:"timestamp"`
	Hostnames []string `json:"hostnames"`
	Tags      []string `json:"tags"`
	Banner    *string  `json:"banner"`
}

// SearchRequest asks for the first Pages result pages of Query.
type SearchRequest struct {
	Query string `json:"query"`
	Pages int    `json:"pages,omitempty"`
}

// SearchResponse holds the records of every page in page order. Counts has
// one entry per page.
type SearchResponse struct {
	Query   string         `json:"query"`
	Pages   int            `json:"pages"`
	Counts  []int          `json:"counts"`
	Count   int            `json:"count"`
	Results []ResultRecord `json:"results"`
}

// SearchEngine runs a search end to end.
type SearchEngine interface {
	Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error)
}

// NormalizePages coerces a requested page count into [1, limit].
// A limit below one means DefaultMaxPages.
func NormalizePages(n, limit int) int {
	if limit < 1 {
		limit = DefaultMaxPages
	}
	if n < 1 {
		return 1
	}
	return min(n, limit)
}
