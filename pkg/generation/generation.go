// Package generation defines the generation capability service: a prompt in,
// a natural-language answer out.
package generation

import (
	"context"
	"sync"

	"github.com/papercomputeco/memorag/pkg/llm"
)

// Model produces an answer from a fully assembled prompt.
type Model interface {
	Generate(ctx context.Context, prompt string, params llm.Params) (*llm.Response, error)

	// Name identifies the model.
	Name() string

	Close() error
}

// Serialized guards a model that is not safe for concurrent use.
type Serialized struct {
	mu sync.Mutex
	Model
}

// NewSerialized wraps m.
func NewSerialized(m Model) *Serialized {
	return &Serialized{Model: m}
}

// Generate holds the lock for the duration of the call.
func (s *Serialized) Generate(ctx context.Context, prompt string, params llm.Params) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Model.Generate(ctx, prompt, params)
}
