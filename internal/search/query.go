package search

import (
	"context"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query string // User's search query

	// Pagination
	Limit  int
	Offset int
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:  20,
		Offset: 0,
	}
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string      `json:"query"`
	Total  uint64      `json:"total"`
	TookMs int64       `json:"took_ms"`
	Hits   []SearchHit `json:"hits"`
}

// SearchHit represents a single search result.
type SearchHit struct {
	ID     string  `json:"id"`
	Score  float64 `json:"score"`
	Title  string  `json:"title"`
	Author string  `json:"author,omitempty"`
}

// Search executes a search query over the book index.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = DefaultSearchParams().Limit
	}

	searchRequest := bleve.NewSearchRequestOptions(buildSearchQuery(params.Query), params.Limit, params.Offset, false)
	searchRequest.Fields = []string{"title", "author"}

	result, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		h := SearchHit{
			ID:    hit.ID,
			Score: hit.Score,
		}
		if title, ok := hit.Fields["title"].(string); ok {
			h.Title = title
		}
		if author, ok := hit.Fields["author"].(string); ok {
			h.Author = author
		}
		hits = append(hits, h)
	}

	return &SearchResult{
		Query:  params.Query,
		Total:  result.Total,
		TookMs: result.Took.Milliseconds(),
		Hits:   hits,
	}, nil
}

// buildSearchQuery matches the query text against titles, author names, and genres.
// Titles are boosted so a title hit outranks an author hit for the same terms.
func buildSearchQuery(text string) query.Query {
	titleQuery := bleve.NewMatchQuery(text)
	titleQuery.SetField("title")
	titleQuery.SetBoost(2.0)

	authorQuery := bleve.NewMatchQuery(text)
	authorQuery.SetField("author")

	genreQuery := bleve.NewTermQuery(text)
	genreQuery.SetField("genres")

	return bleve.NewDisjunctionQuery(titleQuery, authorQuery, genreQuery)
}
