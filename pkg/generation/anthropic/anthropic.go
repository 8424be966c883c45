// Package anthropic implements the generation Model on the Anthropic
// messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/generation"
	"github.com/papercomputeco/memorag/pkg/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// Config holds configuration for the Anthropic generator.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	System     string
	MaxRetries int
}

// Generator wraps Messages.New.
type Generator struct {
	client anthropic.Client
	model  string
	system string
}

// NewGenerator creates an Anthropic generator.
func NewGenerator(cfg Config) *Generator {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	return &Generator{
		client: anthropic.NewClient(opts...),
		model:  model,
		system: cfg.System,
	}
}

// Generate sends prompt as a single user message.
func (g *Generator) Generate(ctx context.Context, prompt string, params llm.Params) (*llm.Response, error) {
	req := anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   int64(params.Tokens()),
		Temperature: anthropic.Float(params.EffectiveTemperature()),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if g.system != "" {
		req.System = []anthropic.TextBlockParam{{Text: g.system}}
	}
	if params.DoSample && params.TopP != nil {
		req.TopP = anthropic.Float(*params.TopP)
	}
	if params.DoSample && params.TopK != nil {
		req.TopK = anthropic.Int(int64(*params.TopK))
	}
	if len(params.Stop) > 0 {
		req.StopSequences = params.Stop
	}

	resp, err := g.client.Messages.New(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: anthropic messages: %v", errdefs.ErrGeneration, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(b.Text)
		}
	}

	return &llm.Response{
		Model:      string(resp.Model),
		Text:       text.String(),
		StopReason: string(resp.StopReason),
		Usage: &llm.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

// Name returns the configured model.
func (g *Generator) Name() string {
	return g.model
}

// Close is a no-op.
func (g *Generator) Close() error {
	return nil
}

var _ generation.Model = (*Generator)(nil)
