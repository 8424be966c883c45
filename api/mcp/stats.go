package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/memorag/pkg/memory"
	"github.com/papercomputeco/memorag/pkg/pipeline"
)

var (
	memoryStatsToolName    = "memory_stats"
	memoryStatsDescription = "Describe the loaded memory: the corpus digest, the memory model, the raw and compressed sizes, and how many passages the dense index holds."
)

// MemoryStatsInput takes no arguments.
type MemoryStatsInput struct{}

// MemoryStatsOutput describes the loaded artifacts.
type MemoryStatsOutput struct {
	Mode         string       `json:"mode"`
	CorpusDigest string       `json:"corpus_digest"`
	Model        string       `json:"model"`
	Memory       memory.Stats `json:"memory"`
	Passages     int          `json:"passages"`
	Dimensions   int          `json:"dimensions,omitempty"`
}

func (s *Server) handleMemoryStats(_ context.Context, _ *mcp.CallToolRequest, _ MemoryStatsInput) (*mcp.CallToolResult, MemoryStatsOutput, error) {
	var out MemoryStatsOutput
	_ = s.config.Handle.With(func(p *pipeline.Pipeline) error {
		st := p.State()
		out = MemoryStatsOutput{
			Mode:         string(p.Mode()),
			CorpusDigest: st.CorpusDigest,
			Model:        st.Model,
			Memory:       st.Stats(),
		}
		if ix := p.Index(); ix != nil {
			out.Passages = ix.Len()
			out.Dimensions = ix.Dimensions
		}
		return nil
	})
	return toolResult(out)
}
