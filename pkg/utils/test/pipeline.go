package testutils

import (
	"context"

	"github.com/papercomputeco/memorag/pkg/compression"
	"github.com/papercomputeco/memorag/pkg/embeddings"
	"github.com/papercomputeco/memorag/pkg/generation"
	"github.com/papercomputeco/memorag/pkg/pipeline"
)

// MockServices bundles one mock of each model a pipeline needs.
type MockServices struct {
	Compression *MockCompression
	Embedder    *MockEmbedder
	Generator   *MockGenerator
}

func NewMockServices() *MockServices {
	return &MockServices{
		Compression: NewMockCompression(),
		Embedder:    NewMockEmbedder(),
		Generator:   NewMockGenerator(),
	}
}

// Factories returns pipeline factories that hand out the mocks.
func (m *MockServices) Factories() pipeline.Factories {
	return pipeline.Factories{
		Compression: func(context.Context) (compression.Model, error) {
			return m.Compression, nil
		},
		Embedder: func(context.Context) (embeddings.Embedder, error) {
			return m.Embedder, nil
		},
		Generator: func(context.Context) (generation.Model, error) {
			return m.Generator, nil
		},
	}
}
