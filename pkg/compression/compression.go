// Package compression defines the compression capability service. A Model
// turns raw corpus text into an opaque payload about 1/ratio of its size and
// later answers prompts from that payload after a one-time prefill.
package compression

import (
	"context"
	"sync"

	"github.com/papercomputeco/memorag/pkg/llm"
)

// Prefix is a model-side handle on a prefilled memory. Models that keep a
// reusable KV context return its tokens in Context; others carry the text to
// prepend in Text.
type Prefix struct {
	Context []int
	Text    string
}

// Model is the compression capability.
type Model interface {
	// Name identifies the model; it is recorded in memory.bin.
	Name() string

	// Compress returns a payload approximating text at the given ratio.
	// Input the model cannot process fails with errdefs.ErrCompression.
	Compress(ctx context.Context, text string, ratio int) ([]byte, error)

	// Prefill loads a payload and returns a prefix reusable across calls.
	Prefill(ctx context.Context, payload []byte) (*Prefix, error)

	// Generate answers prompt against a prefilled prefix.
	Generate(ctx context.Context, prefix *Prefix, prompt string, params llm.Params) (*llm.Response, error)

	Close() error
}

// Budget is the largest payload, in bytes, allowed for rawLen bytes of text
// at ratio. It never increases as ratio grows.
func Budget(rawLen, ratio int) int {
	if ratio <= 1 {
		return rawLen
	}
	return (rawLen + ratio - 1) / ratio
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

func (s *Serialized) Compress(ctx context.Context, text string, ratio int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Model.Compress(ctx, text, ratio)
}

func (s *Serialized) Prefill(ctx context.Context, payload []byte) (*Prefix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Model.Prefill(ctx, payload)
}

func (s *Serialized) Generate(ctx context.Context, prefix *Prefix, prompt string, params llm.Params) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Model.Generate(ctx, prefix, prompt, params)
}
