// Package mcp exposes a memorag pipeline as Model Context Protocol tools.
package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/memorag/pkg/pipeline"
	"github.com/papercomputeco/memorag/pkg/recorder"
	"github.com/papercomputeco/memorag/pkg/utils"
)

// Surface names MCP in answer events.
const Surface = "mcp"

type Config struct {
	// Handle serves the current pipeline.
	Handle *pipeline.Handle

	// Recorder logs answers from the query tool. Optional.
	Recorder *recorder.Recorder

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates an MCP server with the query, search and memory_stats
// tools.
func NewServer(c Config) (*Server, error) {
	if c.Handle == nil {
		return nil, errors.New("pipeline handle is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	s := &Server{config: c}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "memorag",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        queryToolName,
		Description: queryDescription,
	}, s.handleQuery)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        searchToolName,
		Description: searchDescription,
	}, s.handleSearch)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        memoryStatsToolName,
		Description: memoryStatsDescription,
	}, s.handleMemoryStats)

	s.mcpServer = mcpServer

	// Stateless streamable HTTP handler
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// toolResult returns output as structured content and, for clients that only
// read text, as serialized JSON.
func toolResult[T any](output T) (*mcp.CallToolResult, T, error) {
	b, err := json.Marshal(output)
	if err != nil {
		var zero T
		return toolError("failed to serialize results: %v", err), zero, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}, output, nil
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}
