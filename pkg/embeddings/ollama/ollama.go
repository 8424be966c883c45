// Package ollama implements pkg/embeddings' Embedder over Ollama's
// /api/embed endpoint.
package ollama

import (
	"context"
	"fmt"
	"time"

	"github.com/papercomputeco/memorag/pkg/embeddings"
	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/ollama"
)

const (
	// DefaultEmbeddingModel is the Ollama build of the e5 instruct model.
	DefaultEmbeddingModel = "jeffh/intfloat-multilingual-e5-large-instruct:f16"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = ollama.DefaultBaseURL

	// DefaultTimeout bounds a single embedding request.
	DefaultTimeout = 120 * time.Second
)

// EmbedderConfig holds configuration for the Ollama embedder.
type EmbedderConfig struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Model defaults to DefaultEmbeddingModel.
	Model string

	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration

	// Truncate lets Ollama cut inputs at the model's context length.
	// Off by default: an overlong passage fails with ErrEmbedding so the
	// index failure policy decides, instead of embedding half a chunk.
	Truncate bool

	// KeepAlive is passed through to Ollama (e.g. "30m").
	KeepAlive string
}

// Embedder wraps Ollama's embedding API.
type Embedder struct {
	client *ollama.Client
	cfg    EmbedderConfig
}

// NewEmbedder creates a new embedder using Ollama's embedding API.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Embedder{
		client: ollama.NewClient(cfg.BaseURL, cfg.Timeout),
		cfg:    cfg,
	}, nil
}

// Embed returns the vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	truncate := e.cfg.Truncate
	resp, err := e.client.Embed(ctx, &ollama.EmbedRequest{
		Model:     e.cfg.Model,
		Input:     []string{text},
		Truncate:  &truncate,
		KeepAlive: e.cfg.KeepAlive,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrEmbedding, err)
	}
	if len(resp.Embeddings) != 1 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("%w: ollama returned %d embeddings for 1 input", errdefs.ErrEmbedding, len(resp.Embeddings))
	}
	return resp.Embeddings[0], nil
}

// Name returns the configured model.
func (e *Embedder) Name() string {
	return e.cfg.Model
}

// Close drops idle connections.
func (e *Embedder) Close() error {
	return e.client.Close()
}

var _ embeddings.Embedder = (*Embedder)(nil)
