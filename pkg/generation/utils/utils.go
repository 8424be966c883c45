// Package generationutils builds a generation.Model from configuration.
package generationutils

import (
	"context"
	"fmt"
	"os"

	"github.com/papercomputeco/memorag/pkg/generation"
	"github.com/papercomputeco/memorag/pkg/generation/anthropic"
	"github.com/papercomputeco/memorag/pkg/generation/gemini"
	"github.com/papercomputeco/memorag/pkg/generation/ollama"
	"github.com/papercomputeco/memorag/pkg/generation/openai"
)

// SupportedProviders lists the provider names NewGenerator accepts.
var SupportedProviders = []string{"ollama", "openai", "anthropic", "gemini"}

// APIKeyEnv maps providers to the environment variable read when no API key
// is configured.
var APIKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

type NewGeneratorOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
	System       string

	// Project and Location select Vertex AI for the gemini provider.
	Project  string
	Location string
}

func NewGenerator(ctx context.Context, o *NewGeneratorOpts) (generation.Model, error) {
	apiKey := o.APIKey
	if apiKey == "" {
		if env, ok := APIKeyEnv[o.ProviderType]; ok {
			apiKey = os.Getenv(env)
		}
	}

	switch o.ProviderType {
	case "ollama":
		return ollama.NewGenerator(ollama.Config{
			BaseURL: o.TargetURL,
			Model:   o.Model,
			System:  o.System,
		}), nil
	case "openai":
		return openai.NewGenerator(openai.Config{
			APIKey:  apiKey,
			BaseURL: o.TargetURL,
			Model:   o.Model,
			System:  o.System,
		}), nil
	case "anthropic":
		return anthropic.NewGenerator(anthropic.Config{
			APIKey:  apiKey,
			BaseURL: o.TargetURL,
			Model:   o.Model,
			System:  o.System,
		}), nil
	case "gemini":
		return gemini.NewGenerator(ctx, gemini.Config{
			APIKey:   apiKey,
			Project:  o.Project,
			Location: o.Location,
			BaseURL:  o.TargetURL,
			Model:    o.Model,
			System:   o.System,
		})
	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", o.ProviderType)
	}
}
