// Package gemini implements pkg/embeddings' Embedder on Google's genai SDK,
// against either the Gemini API or Vertex AI.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/papercomputeco/memorag/pkg/embeddings"
	"github.com/papercomputeco/memorag/pkg/errdefs"
)

// DefaultEmbeddingModel is used when no model is configured.
const DefaultEmbeddingModel = "gemini-embedding-001"

// EmbedderConfig holds configuration for the Gemini embedder. When Project is
// set the Vertex AI backend is used, otherwise APIKey selects the Gemini API.
type EmbedderConfig struct {
	APIKey     string
	Project    string
	Location   string
	BaseURL    string
	Model      string
	Dimensions int
}

// Embedder wraps genai's EmbedContent.
type Embedder struct {
	client     *genai.Client
	model      string
	dimensions int
}

// NewEmbedder creates a Gemini embedder.
func NewEmbedder(ctx context.Context, cfg EmbedderConfig) (*Embedder, error) {
	client, err := genai.NewClient(ctx, ClientConfig(cfg.APIKey, cfg.Project, cfg.Location, cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	return &Embedder{client: client, model: model, dimensions: cfg.Dimensions}, nil
}

// ClientConfig builds the genai client configuration shared by the gemini
// embedding and generation backends.
func ClientConfig(apiKey, project, location, baseURL string) *genai.ClientConfig {
	cc := &genai.ClientConfig{}
	if project != "" {
		cc.Project = project
		cc.Location = location
		cc.Backend = genai.BackendVertexAI
	} else {
		cc.APIKey = apiKey
		cc.Backend = genai.BackendGeminiAPI
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	return cc
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	cfg := &genai.EmbedContentConfig{}
	if e.dimensions > 0 {
		dims := int32(e.dimensions)
		cfg.OutputDimensionality = &dims
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini embed: %v", errdefs.ErrEmbedding, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", errdefs.ErrEmbedding)
	}
	return resp.Embeddings[0].Values, nil
}

// Name returns the configured model.
func (e *Embedder) Name() string {
	return e.model
}

// Close is a no-op.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
