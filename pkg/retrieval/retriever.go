// Package retrieval builds, persists and searches the dense index that sits
// beside a memory state. A Retriever pairs an embeddings.Embedder with a
// vector.Driver; the Index is the portable, persisted form of what the driver
// holds.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/memorag/pkg/artifact"
	"github.com/papercomputeco/memorag/pkg/corpus"
	"github.com/papercomputeco/memorag/pkg/embeddings"
	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/vector"
	"github.com/papercomputeco/memorag/pkg/vector/flat"
)

// Config configures a Retriever.
type Config struct {
	// Embedder embeds chunks and queries. Required.
	Embedder embeddings.Embedder

	// Driver holds the searchable vectors. Defaults to an in-process flat
	// driver.
	Driver vector.Driver

	// Policy applies to chunks that fail to embed.
	Policy FailurePolicy

	// QueryPrefix and PassagePrefix are prepended before embedding, for
	// instruction-tuned embedding models.
	QueryPrefix   string
	PassagePrefix string

	Logger *slog.Logger
}

// Retriever embeds chunks and queries and searches the configured driver.
type Retriever struct {
	cfg    Config
	logger *slog.Logger

	// mu guards which index the driver currently mirrors.
	mu     sync.Mutex
	active *Index
}

// New creates a retriever.
func New(cfg Config) (*Retriever, error) {
	if cfg.Embedder == nil {
		return nil, errdefs.InvalidArgument("retriever requires an embedder")
	}
	if cfg.Driver == nil {
		cfg.Driver = flat.NewDriver(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Retriever{cfg: cfg, logger: cfg.Logger}, nil
}

// Policy returns the configured failure policy.
func (r *Retriever) Policy() FailurePolicy {
	return r.cfg.Policy
}

// BuildIndex embeds every chunk of c exactly once, in corpus order, and
// mirrors the result into the driver.
func (r *Retriever) BuildIndex(ctx context.Context, c *corpus.Corpus) (*Index, error) {
	start := time.Now()
	ix := &Index{
		CorpusDigest: c.Digest(),
		Model:        r.cfg.Embedder.Name(),
		CreatedAt:    time.Now().UTC(),
	}

	for _, ch := range c.Chunks() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vec, err := r.cfg.Embedder.Embed(ctx, r.cfg.PassagePrefix+ch.Text)
		if err == nil && len(vec) == 0 {
			err = fmt.Errorf("%w: empty embedding", errdefs.ErrEmbedding)
		}
		if err == nil && ix.Dimensions != 0 && len(vec) != ix.Dimensions {
			err = fmt.Errorf("%w: %w: got %d dimensions, want %d", errdefs.ErrEmbedding, vector.ErrDimension, len(vec), ix.Dimensions)
		}
		if err != nil {
			if !errors.Is(err, errdefs.ErrEmbedding) {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				err = fmt.Errorf("%w: %v", errdefs.ErrEmbedding, err)
			}
			if r.cfg.Policy == FailFast {
				return nil, fmt.Errorf("embedding chunk %s: %w", ch.ID, err)
			}
			r.logger.Warn("skipping chunk that failed to embed",
				"chunk_id", ch.ID,
				"error", err,
			)
			ix.Skipped = append(ix.Skipped, ch.ID)
			continue
		}

		if ix.Dimensions == 0 {
			ix.Dimensions = len(vec)
		}
		ix.Entries = append(ix.Entries, Entry{
			ID:      ch.ID,
			Ordinal: ch.Ordinal,
			Text:    ch.Text,
			Vector:  vec,
		})
	}

	if err := r.mirror(ctx, ix); err != nil {
		return nil, err
	}

	r.logger.Info("index built",
		"model", ix.Model,
		"entries", len(ix.Entries),
		"skipped", len(ix.Skipped),
		"dimensions", ix.Dimensions,
		"duration", time.Since(start),
	)
	return ix, nil
}

// PersistIndex writes ix to dir/index.bin.
func (r *Retriever) PersistIndex(ix *Index, dir string) error {
	if ix == nil {
		return errdefs.InvalidArgument("nil index")
	}
	body, err := encodeBody(ix)
	if err != nil {
		return err
	}
	path := artifact.IndexPath(dir)
	if err := artifact.Write(path, artifact.KindIndex, ix.meta(), body); err != nil {
		return err
	}
	r.logger.Debug("index persisted", "path", path, "entries", len(ix.Entries), "bytes", len(body))
	return nil
}

// LoadIndex reads dir/index.bin and mirrors it into the driver.
func (r *Retriever) LoadIndex(ctx context.Context, dir string) (*Index, error) {
	ix, err := LoadIndex(dir)
	if err != nil {
		return nil, err
	}
	if ix.Model != r.cfg.Embedder.Name() {
		r.logger.Warn("index was built by a different embedding model",
			"built_with", ix.Model,
			"loaded_with", r.cfg.Embedder.Name(),
		)
	}
	if err := r.mirror(ctx, ix); err != nil {
		return nil, err
	}
	return ix, nil
}

// LoadIndex reads dir/index.bin without mirroring it anywhere.
func LoadIndex(dir string) (*Index, error) {
	path := artifact.IndexPath(dir)
	env, err := artifact.Read(path, artifact.KindIndex)
	if err != nil {
		return nil, err
	}
	if env.Meta.CorpusDigest == "" {
		return nil, errdefs.Corrupt(path, "missing corpus digest")
	}
	return decodeBody(path, env.Meta, env.Body)
}

// Search returns the k passages of ix most similar to query, best first, with
// ties broken by chunk ordinal.
func (r *Retriever) Search(ctx context.Context, ix *Index, query string, k int) ([]vector.QueryResult, error) {
	if err := validateSearch(ix, k); err != nil {
		return nil, err
	}
	if err := r.use(ctx, ix); err != nil {
		return nil, err
	}
	return r.search(ctx, query, k)
}

// SearchMany runs one search per non-empty query and merges the results by
// chunk id, keeping each chunk's best score.
func (r *Retriever) SearchMany(ctx context.Context, ix *Index, queries []string, k int) ([]vector.QueryResult, error) {
	if err := validateSearch(ix, k); err != nil {
		return nil, err
	}
	if err := r.use(ctx, ix); err != nil {
		return nil, err
	}

	best := make(map[string]vector.QueryResult)
	searched := 0
	for _, q := range queries {
		if strings.TrimSpace(q) == "" {
			continue
		}
		searched++
		results, err := r.search(ctx, q, k)
		if err != nil {
			return nil, err
		}
		for _, res := range results {
			if prev, ok := best[res.ID]; !ok || res.Score > prev.Score {
				best[res.ID] = res
			}
		}
	}
	if searched == 0 {
		return nil, errdefs.InvalidArgument("no non-empty search query")
	}

	merged := make([]vector.QueryResult, 0, len(best))
	for _, res := range best {
		merged = append(merged, res)
	}
	return vector.TopK(merged, k), nil
}

// Close releases the driver and the embedder.
func (r *Retriever) Close() error {
	return errors.Join(r.cfg.Driver.Close(), r.cfg.Embedder.Close())
}

func (r *Retriever) search(ctx context.Context, query string, k int) ([]vector.QueryResult, error) {
	vec, err := r.cfg.Embedder.Embed(ctx, r.cfg.QueryPrefix+query)
	if err != nil {
		if errors.Is(err, errdefs.ErrEmbedding) {
			return nil, fmt.Errorf("embedding query: %w", err)
		}
		return nil, fmt.Errorf("%w: embedding query: %v", errdefs.ErrEmbedding, err)
	}
	results, err := r.cfg.Driver.Query(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	return vector.TopK(results, k), nil
}

func validateSearch(ix *Index, k int) error {
	if k < 1 {
		return errdefs.InvalidArgument("k must be >= 1, got %d", k)
	}
	if ix == nil || len(ix.Entries) == 0 {
		return errdefs.InvalidArgument("index is empty")
	}
	return nil
}

// use makes sure the driver mirrors ix.
func (r *Retriever) use(ctx context.Context, ix *Index) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == ix {
		return nil
	}
	return r.mirrorLocked(ctx, ix)
}

// Invalidate forgets which index the driver mirrors, so the next search
// loads it again. Call it when another retriever may have rewritten a
// shared backend.
func (r *Retriever) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = nil
}

func (r *Retriever) mirror(ctx context.Context, ix *Index) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mirrorLocked(ctx, ix)
}

func (r *Retriever) mirrorLocked(ctx context.Context, ix *Index) error {
	if err := r.cfg.Driver.Reset(ctx); err != nil {
		return fmt.Errorf("resetting vector driver: %w", err)
	}
	if docs := ix.Documents(); len(docs) > 0 {
		if err := r.cfg.Driver.Add(ctx, docs); err != nil {
			return fmt.Errorf("loading index into vector driver: %w", err)
		}
	}
	r.active = ix
	return nil
}
