package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/papercomputeco/memorag/pkg/artifact"
)

// Opener builds a fresh pipeline, typically Open with fixed options.
type Opener func(ctx context.Context) (*Pipeline, error)

// Handle holds the current pipeline of a long-running server and swaps it
// when the artifacts on disk change. Queries run under a read lock, so a
// pipeline is never closed while a query is using it.
type Handle struct {
	open   Opener
	logger *slog.Logger

	mu      sync.RWMutex
	current *Pipeline
	closed  bool
	loaded  time.Time
}

// NewHandle opens the first pipeline.
func NewHandle(ctx context.Context, open Opener, logger *slog.Logger) (*Handle, error) {
	if open == nil {
		return nil, errors.New("pipeline opener is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	p, err := open(ctx)
	if err != nil {
		return nil, err
	}
	return &Handle{
		open:    open,
		logger:  logger,
		current: p,
		loaded:  time.Now().UTC(),
	}, nil
}

// With runs fn against the current pipeline.
func (h *Handle) With(fn func(p *Pipeline) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return errors.New("pipeline handle is closed")
	}
	return fn(h.current)
}

// LoadedAt returns when the current pipeline was opened.
func (h *Handle) LoadedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loaded
}

// Reload opens a new pipeline and swaps it in. On failure the current
// pipeline keeps serving.
//
// When the index lives in an external vector store, opening the new pipeline
// resets the store the current one searches. Queries are then held for the
// whole reload, and a failed reload makes the current pipeline mirror its
// own index again on its next search.
func (h *Handle) Reload(ctx context.Context) error {
	h.mu.RLock()
	shared := !h.closed && h.current.SharesIndexBackend()
	h.mu.RUnlock()
	if shared {
		return h.reloadExclusive(ctx)
	}

	next, err := h.open(ctx)
	if err != nil {
		h.logger.Error("reloading pipeline failed, keeping current", "error", err)
		return err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return errors.Join(errors.New("pipeline handle is closed"), next.Close())
	}
	prev := h.swapLocked(next)
	h.mu.Unlock()

	return prev.Close()
}

func (h *Handle) reloadExclusive(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.New("pipeline handle is closed")
	}

	next, err := h.open(ctx)
	if err != nil {
		if h.current.retriever != nil {
			h.current.retriever.Invalidate()
		}
		h.logger.Error("reloading pipeline failed, keeping current", "error", err)
		return err
	}
	return h.swapLocked(next).Close()
}

func (h *Handle) swapLocked(next *Pipeline) *Pipeline {
	prev := h.current
	h.current = next
	h.loaded = time.Now().UTC()
	h.logger.Info("pipeline reloaded",
		"corpus_digest", short(next.State().CorpusDigest),
		"shared_index_backend", next.SharesIndexBackend(),
	)
	return prev
}

// Watch reloads the pipeline whenever the artifacts in dir are rewritten,
// until ctx is done.
func (h *Handle) Watch(ctx context.Context, dir string, debounce time.Duration) error {
	return artifact.Watch(ctx, dir, debounce, func(changed []string) {
		h.logger.Info("artifacts changed", "files", changed)
		_ = h.Reload(ctx)
	})
}

// Close closes the current pipeline. Later calls to With fail.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.current.Close()
}
