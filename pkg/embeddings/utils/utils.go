// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/memorag/pkg/embeddings"
	"github.com/papercomputeco/memorag/pkg/embeddings/gemini"
	"github.com/papercomputeco/memorag/pkg/embeddings/ollama"
	"github.com/papercomputeco/memorag/pkg/embeddings/openai"
)

// SupportedProviders lists the provider names NewEmbedder accepts.
var SupportedProviders = []string{"ollama", "openai", "gemini"}

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
	Dimensions   int

	// Project and Location select Vertex AI for the gemini provider.
	Project  string
	Location string

	// MaxInputChars wraps the embedder in embeddings.LengthLimited when > 0.
	MaxInputChars int
}

func NewEmbedder(ctx context.Context, o *NewEmbedderOpts) (embeddings.Embedder, error) {
	var (
		e   embeddings.Embedder
		err error
	)

	switch o.ProviderType {
	case "ollama":
		e, err = ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	case "openai":
		e, err = openai.NewEmbedder(openai.EmbedderConfig{
			APIKey:     o.APIKey,
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: o.Dimensions,
		})
	case "gemini":
		e, err = gemini.NewEmbedder(ctx, gemini.EmbedderConfig{
			APIKey:     o.APIKey,
			Project:    o.Project,
			Location:   o.Location,
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: o.Dimensions,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
	if err != nil {
		return nil, err
	}

	if o.MaxInputChars > 0 {
		e = &embeddings.LengthLimited{Embedder: e, MaxChars: o.MaxInputChars}
	}
	return e, nil
}
