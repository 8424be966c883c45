package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/papercomputeco/memorag/pkg/corpus"
	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/memory"
	"github.com/papercomputeco/memorag/pkg/retrieval"
)

// MemorizeOptions configures Memorize.
type MemorizeOptions struct {
	Ratio  int
	Policy retrieval.FailurePolicy

	PassagePrefix string

	// Factories.Compression and Factories.Embedder are required; the rest
	// are ignored.
	Factories Factories
	Logger    *slog.Logger
}

// MemorizeStats summarises what Memorize wrote.
type MemorizeStats struct {
	Memory       memory.Stats  `json:"memory"`
	CorpusDigest string        `json:"corpus_digest"`
	Chunks       int           `json:"chunks"`
	Indexed      int           `json:"indexed"`
	Skipped      []string      `json:"skipped,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Memorize builds the memory state and the dense index for c and writes both
// to dir.
func Memorize(ctx context.Context, c *corpus.Corpus, dir string, opts MemorizeOptions) (*MemorizeStats, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errdefs.InvalidArgument("memory directory is required")
	}
	if opts.Ratio == 0 {
		opts.Ratio = DefaultRatio
	}
	if opts.Ratio < 1 {
		return nil, errdefs.InvalidArgument("compression ratio must be a positive integer, got %d", opts.Ratio)
	}
	if c == nil || c.Len() == 0 {
		return nil, errdefs.InvalidArgument("corpus is empty")
	}
	if opts.Factories.Compression == nil || opts.Factories.Embedder == nil {
		return nil, errdefs.InvalidArgument("compression and embedding model factories are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating memory directory: %w", err)
	}

	start := time.Now()

	cm, err := opts.Factories.Compression(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating compression model: %w", err)
	}
	defer cm.Close()

	emb, err := opts.Factories.Embedder(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating embedding model: %w", err)
	}

	ret, err := retrieval.New(retrieval.Config{
		Embedder:      emb,
		Policy:        opts.Policy,
		PassagePrefix: opts.PassagePrefix,
		Logger:        opts.Logger,
	})
	if err != nil {
		return nil, errors.Join(err, emb.Close())
	}
	defer ret.Close()

	store := memory.NewStore(cm, opts.Logger)
	state, err := store.Build(ctx, c.Joined(), opts.Ratio)
	if err != nil {
		return nil, err
	}
	ix, err := ret.BuildIndex(ctx, c)
	if err != nil {
		return nil, err
	}

	if err := store.Persist(state, dir); err != nil {
		return nil, err
	}
	if err := ret.PersistIndex(ix, dir); err != nil {
		return nil, err
	}

	stats := &MemorizeStats{
		Memory:       state.Stats(),
		CorpusDigest: c.Digest(),
		Chunks:       c.Len(),
		Indexed:      ix.Len(),
		Skipped:      ix.Skipped,
		Duration:     time.Since(start),
	}
	opts.Logger.Info("memorized corpus",
		"dir", dir,
		"chunks", stats.Chunks,
		"indexed", stats.Indexed,
		"skipped", len(stats.Skipped),
		"effective_ratio", stats.Memory.EffectiveRatio,
	)
	return stats, nil
}
