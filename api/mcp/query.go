package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/pipeline"
	"github.com/papercomputeco/memorag/pkg/storage"
)

var (
	queryToolName    = "query"
	queryDescription = "Answer a question over the memorized corpus. The memory model recalls clues from the compressed corpus, the clues drive dense retrieval, and the generator answers from the retrieved passages."
)

// QueryInput represents the input arguments for the query tool.
type QueryInput struct {
	Query string `json:"query" jsonschema:"the question to answer"`
	Mode  string `json:"mode,omitempty" jsonschema:"one of memory-only, retrieval-only or memory-then-retrieval (default: the server mode)"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of passages to retrieve (default: the server top-k)"`
}

// QueryOutput represents the output of the query tool.
type QueryOutput struct {
	ID       string   `json:"id,omitempty"`
	Answer   string   `json:"answer"`
	Mode     string   `json:"mode"`
	Path     string   `json:"path"`
	Clue     string   `json:"clue,omitempty"`
	Passages []string `json:"passages,omitempty"`
}

func (s *Server) handleQuery(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (*mcp.CallToolResult, QueryOutput, error) {
	logger := s.config.Logger
	logger.Debug("mcp query request", "query", input.Query, "mode", input.Mode, "top_k", input.TopK)

	q := pipeline.Query{
		Text: input.Query,
		Mode: pipeline.Mode(input.Mode),
		TopK: input.TopK,
	}

	var (
		ans    *pipeline.Answer
		digest string
	)
	err := s.config.Handle.With(func(p *pipeline.Pipeline) error {
		digest = p.State().CorpusDigest
		if q.Mode == "" {
			q.Mode = p.Mode()
		}
		var err error
		ans, err = p.Answer(ctx, q)
		return err
	})

	var id string
	if s.config.Recorder != nil && (err == nil || !errdefs.IsValidation(err)) {
		rec := storage.NewRecord(input.Query, q.Mode, ans, digest, err)
		if s.config.Recorder.Record(Surface, rec) {
			id = rec.ID
		}
	}

	if err != nil {
		logger.Warn("mcp query failed", "error", err)
		return toolError("query failed: %v", err), QueryOutput{}, nil
	}

	out := QueryOutput{
		ID:     id,
		Answer: ans.Text,
		Mode:   string(ans.Mode),
		Path:   string(ans.Path),
		Clue:   ans.Clue,
	}
	for _, p := range ans.Passages {
		out.Passages = append(out.Passages, p.Text)
	}
	return toolResult(out)
}
