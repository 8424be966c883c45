// Package ollama implements the generation Model on Ollama's chat API.
package ollama

import (
	"context"
	"fmt"
	"time"

	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/generation"
	"github.com/papercomputeco/memorag/pkg/llm"
	"github.com/papercomputeco/memorag/pkg/ollama"
)

// DefaultModel is the Ollama tag of the default generator.
const DefaultModel = "qwen3:8b"

// Config holds configuration for the Ollama generator.
type Config struct {
	BaseURL   string
	Model     string
	System    string
	KeepAlive string
	Timeout   time.Duration
}

// Generator answers prompts through /api/chat.
type Generator struct {
	client *ollama.Client
	cfg    Config
}

// NewGenerator creates an Ollama generator.
func NewGenerator(cfg Config) *Generator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Generator{
		client: ollama.NewClient(cfg.BaseURL, cfg.Timeout),
		cfg:    cfg,
	}
}

// Generate sends prompt as a single user turn.
func (g *Generator) Generate(ctx context.Context, prompt string, params llm.Params) (*llm.Response, error) {
	messages := make([]ollama.Message, 0, 2)
	if g.cfg.System != "" {
		messages = append(messages, ollama.Message{Role: "system", Content: g.cfg.System})
	}
	messages = append(messages, ollama.Message{Role: "user", Content: prompt})

	resp, err := g.client.Chat(ctx, &ollama.ChatRequest{
		Model:     g.cfg.Model,
		Messages:  messages,
		KeepAlive: g.cfg.KeepAlive,
		Options:   ollama.OptionsFromParams(params),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrGeneration, err)
	}
	return resp.LLMResponse(), nil
}

// Name returns the configured model.
func (g *Generator) Name() string {
	return g.cfg.Model
}

// Close drops idle connections.
func (g *Generator) Close() error {
	return g.client.Close()
}

var _ generation.Model = (*Generator)(nil)
