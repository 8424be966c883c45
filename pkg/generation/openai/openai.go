// Package openai implements the generation Model on the OpenAI chat
// completions API (or any server speaking it).
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/generation"
	"github.com/papercomputeco/memorag/pkg/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Config holds configuration for the OpenAI generator.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	System     string
	MaxRetries int
}

// Generator wraps chat completions.
type Generator struct {
	client openai.Client
	model  string
	system string
}

// NewGenerator creates an OpenAI generator.
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
		client: openai.NewClient(opts...),
		model:  model,
		system: cfg.System,
	}
}

// Generate sends prompt as a single user message.
func (g *Generator) Generate(ctx context.Context, prompt string, params llm.Params) (*llm.Response, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if g.system != "" {
		messages = append(messages, openai.SystemMessage(g.system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	req := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(g.model),
		Messages:    messages,
		MaxTokens:   openai.Int(int64(params.Tokens())),
		Temperature: openai.Float(params.EffectiveTemperature()),
	}
	if params.DoSample && params.TopP != nil {
		req.TopP = openai.Float(*params.TopP)
	}
	if params.Seed != nil {
		req.Seed = openai.Int(int64(*params.Seed))
	}
	if len(params.Stop) > 0 {
		req.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: params.Stop}
	}

	resp, err := g.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: openai chat: %v", errdefs.ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrGeneration, errors.New("no response choices returned"))
	}

	choice := resp.Choices[0]
	return &llm.Response{
		Model:      resp.Model,
		Text:       choice.Message.Content,
		StopReason: choice.FinishReason,
		Usage: &llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
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
