package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/memorag/pkg/pipeline"
	"github.com/papercomputeco/memorag/pkg/vector"
)

var (
	searchToolName    = "search"
	searchDescription = "Search the memorized corpus with dense retrieval. Returns the passages nearest to the query text, most similar first, without generating an answer."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query text"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of passages to return (default: the server top-k)"`
}

// SearchResult represents a single passage.
type SearchResult struct {
	ID      string  `json:"id"`
	Ordinal int     `json:"ordinal"`
	Score   float32 `json:"score"`
	Text    string  `json:"text"`
}

// SearchOutput represents the output of the search tool.
type SearchOutput struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	logger := s.config.Logger
	logger.Debug("mcp search request", "query", input.Query, "top_k", input.TopK)

	if input.TopK < 0 {
		return toolError("top_k must be >= 1, got %d", input.TopK), SearchOutput{}, nil
	}

	var results []vector.QueryResult
	err := s.config.Handle.With(func(p *pipeline.Pipeline) error {
		var err error
		results, err = p.Search(ctx, input.Query, input.TopK)
		return err
	})
	if err != nil {
		logger.Warn("mcp search failed", "error", err)
		return toolError("search failed: %v", err), SearchOutput{}, nil
	}

	return toolResult(buildSearchOutput(input.Query, results))
}

func buildSearchOutput(query string, results []vector.QueryResult) SearchOutput {
	out := SearchOutput{
		Query:   query,
		Results: make([]SearchResult, len(results)),
		Count:   len(results),
	}
	for i, r := range results {
		out.Results[i] = SearchResult{
			ID:      r.ID,
			Ordinal: r.Ordinal,
			Score:   r.Score,
			Text:    r.Text,
		}
	}
	return out
}
