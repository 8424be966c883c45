// Package compressionutils builds a compression.Model from configuration.
package compressionutils

import (
	"fmt"

	"github.com/papercomputeco/memorag/pkg/compression"
	"github.com/papercomputeco/memorag/pkg/compression/extractive"
	"github.com/papercomputeco/memorag/pkg/compression/ollama"
	"github.com/papercomputeco/memorag/pkg/generation"
)

// SupportedProviders lists the provider names NewModel accepts.
var SupportedProviders = []string{"ollama", "extractive"}

type NewModelOpts struct {
	ProviderType  string
	TargetURL     string
	Model         string
	MaxInputChars int

	// Reader answers for the extractive provider. Optional.
	Reader generation.Model
}

func NewModel(o *NewModelOpts) (compression.Model, error) {
	switch o.ProviderType {
	case "ollama":
		return ollama.New(ollama.Config{
			BaseURL:       o.TargetURL,
			Model:         o.Model,
			MaxInputChars: o.MaxInputChars,
		}), nil
	case "extractive":
		return extractive.New(extractive.Config{
			MaxInputChars: o.MaxInputChars,
			Reader:        o.Reader,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported compression provider: %s", o.ProviderType)
	}
}
