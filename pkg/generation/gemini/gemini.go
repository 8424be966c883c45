// Package gemini implements the generation Model on Google's genai SDK.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	embgemini "github.com/papercomputeco/memorag/pkg/embeddings/gemini"
	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/generation"
	"github.com/papercomputeco/memorag/pkg/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Config holds configuration for the Gemini generator. When Project is set
// the Vertex AI backend is used.
type Config struct {
	APIKey   string
	Project  string
	Location string
	BaseURL  string
	Model    string
	System   string
}

// Generator wraps Models.GenerateContent.
type Generator struct {
	client *genai.Client
	model  string
	system string
}

// NewGenerator creates a Gemini generator.
func NewGenerator(ctx context.Context, cfg Config) (*Generator, error) {
	client, err := genai.NewClient(ctx, embgemini.ClientConfig(cfg.APIKey, cfg.Project, cfg.Location, cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Generator{client: client, model: model, system: cfg.System}, nil
}

// Generate sends prompt as a single user turn.
func (g *Generator) Generate(ctx context.Context, prompt string, params llm.Params) (*llm.Response, error) {
	temp := float32(params.EffectiveTemperature())
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(params.Tokens()),
		StopSequences:   params.Stop,
	}
	if g.system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(g.system, genai.RoleUser)
	}
	if params.DoSample && params.TopP != nil {
		p := float32(*params.TopP)
		cfg.TopP = &p
	}
	if params.DoSample && params.TopK != nil {
		k := float32(*params.TopK)
		cfg.TopK = &k
	}
	if params.Seed != nil {
		s := int32(*params.Seed)
		cfg.Seed = &s
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini generate: %v", errdefs.ErrGeneration, err)
	}

	out := &llm.Response{
		Model: g.model,
		Text:  resp.Text(),
	}
	if len(resp.Candidates) > 0 {
		out.StopReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = &llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
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
