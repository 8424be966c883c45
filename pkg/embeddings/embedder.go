// Package embeddings defines the embedding capability service: text in,
// fixed-length vector out.
package embeddings

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/papercomputeco/memorag/pkg/errdefs"
)

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Name identifies the embedding model; it is recorded in index.bin.
	Name() string

	// Close releases any resources held by the embedder.
	Close() error
}

// LengthLimited rejects inputs longer than MaxChars runes with
// errdefs.ErrEmbedding before they reach the wrapped embedder.
type LengthLimited struct {
	Embedder
	MaxChars int
}

// Embed checks the input length then delegates.
func (l *LengthLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if l.MaxChars > 0 {
		if n := utf8.RuneCountInString(text); n > l.MaxChars {
			return nil, fmt.Errorf("%w: input of %d chars exceeds limit of %d", errdefs.ErrEmbedding, n, l.MaxChars)
		}
	}
	return l.Embedder.Embed(ctx, text)
}

// Serialized guards an embedder that is not safe for concurrent use so that
// it never sees overlapping calls.
type Serialized struct {
	mu sync.Mutex
	Embedder
}

// NewSerialized wraps e.
func NewSerialized(e Embedder) *Serialized {
	return &Serialized{Embedder: e}
}

// Embed holds the lock for the duration of the call.
func (s *Serialized) Embed(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Embedder.Embed(ctx, text)
}
