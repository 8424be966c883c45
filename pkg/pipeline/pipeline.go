// Package pipeline orchestrates a memory state, a dense index and a generation
// model into one query-answering pipeline. Open validates everything it can
// before constructing any model, then loads both artifacts once; every query
// afterwards only reads them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/papercomputeco/memorag/pkg/artifact"
	"github.com/papercomputeco/memorag/pkg/compression"
	"github.com/papercomputeco/memorag/pkg/embeddings"
	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/generation"
	"github.com/papercomputeco/memorag/pkg/llm"
	"github.com/papercomputeco/memorag/pkg/memory"
	"github.com/papercomputeco/memorag/pkg/retrieval"
	"github.com/papercomputeco/memorag/pkg/vector"
)

// Answer is the outcome of one query.
type Answer struct {
	Query string `json:"query"`
	Mode  Mode   `json:"mode"`
	Path  Path   `json:"path"`
	Text  string `json:"text"`

	// Clue is the memory recall used to steer retrieval, when there was one.
	Clue string `json:"clue,omitempty"`

	// MemoryAnswer is set when UseMemoryAnswer added it to the context.
	MemoryAnswer string `json:"memory_answer,omitempty"`

	Passages []vector.QueryResult `json:"passages,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Query is one request with optional per-query overrides.
type Query struct {
	Text string

	// Mode overrides the pipeline mode. It must not need an index the
	// pipeline did not load.
	Mode Mode

	// Params overrides the pipeline generation parameters.
	Params *llm.Params

	// TopK overrides the pipeline top-k.
	TopK int

	// Template overrides the generation template, or the memory template
	// in memory-only mode.
	Template string
}

// Pipeline answers queries over one memory directory.
type Pipeline struct {
	opts   Options
	logger *slog.Logger

	store     *memory.Store
	state     *memory.State
	retriever *retrieval.Retriever
	index     *retrieval.Index
	generator generation.Model

	owned []io.Closer
}

// Open validates opts, checks the artifacts exist, and only then constructs
// the capability services and loads the artifacts.
func Open(ctx context.Context, opts Options) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.Mode, _ = ParseMode(string(opts.Mode))

	required := []string{artifact.MemoryFile}
	if opts.Mode.NeedsRetrieval() {
		required = append(required, artifact.IndexFile)
	}
	if err := artifact.Require(opts.Dir, required...); err != nil {
		return nil, err
	}

	p := &Pipeline{
		opts:   opts,
		logger: opts.Logger,
	}
	if err := p.init(ctx); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) init(ctx context.Context) error {
	start := time.Now()
	concurrent := p.opts.Workers > 1

	cm, err := p.opts.Factories.Compression(ctx)
	if err != nil {
		return fmt.Errorf("creating compression model: %w", err)
	}
	p.own(cm)
	if concurrent {
		cm = compression.NewSerialized(cm)
	}
	p.store = memory.NewStore(cm, p.logger)

	if p.state, err = p.store.Load(p.opts.Dir); err != nil {
		return err
	}

	if p.opts.Mode.NeedsRetrieval() {
		emb, err := p.opts.Factories.Embedder(ctx)
		if err != nil {
			return fmt.Errorf("creating embedding model: %w", err)
		}
		if concurrent {
			emb = embeddings.NewSerialized(emb)
		}

		var driver vector.Driver
		if p.opts.Factories.VectorDriver != nil {
			if driver, err = p.opts.Factories.VectorDriver(ctx); err != nil {
				_ = emb.Close()
				return fmt.Errorf("creating vector driver: %w", err)
			}
		}

		p.retriever, err = retrieval.New(retrieval.Config{
			Embedder:    emb,
			Driver:      driver,
			Policy:      p.opts.Policy,
			QueryPrefix: p.opts.QueryPrefix,
			Logger:      p.logger,
		})
		if err != nil {
			_ = emb.Close()
			return err
		}
		p.own(p.retriever)

		gen, err := p.opts.Factories.Generator(ctx)
		if err != nil {
			return fmt.Errorf("creating generation model: %w", err)
		}
		p.own(gen)
		if concurrent {
			gen = generation.NewSerialized(gen)
		}
		p.generator = gen

		if p.index, err = p.retriever.LoadIndex(ctx, p.opts.Dir); err != nil {
			return err
		}
		if p.index.CorpusDigest != p.state.CorpusDigest {
			return fmt.Errorf("%w: memory.bin was built from corpus %s, index.bin from %s (re-run memorize)",
				errdefs.ErrCorpusMismatch, short(p.state.CorpusDigest), short(p.index.CorpusDigest))
		}
	}

	st := p.state.Stats()
	attrs := []any{
		"mode", p.opts.Mode,
		"ratio", st.Ratio,
		"raw_length", st.RawLength,
		"compressed_length", st.CompressedLength,
		"duration", time.Since(start),
	}
	if p.index != nil {
		attrs = append(attrs, "index_entries", p.index.Len(), "index_skipped", len(p.index.Skipped))
	}
	p.logger.Info("pipeline loaded", attrs...)
	return nil
}

func (p *Pipeline) own(c io.Closer) {
	p.owned = append(p.owned, c)
}

// Mode returns the pipeline's default mode.
func (p *Pipeline) Mode() Mode {
	return p.opts.Mode
}

// State returns the loaded memory state.
func (p *Pipeline) State() *memory.State {
	return p.state
}

// Index returns the loaded index, or nil when the mode does not retrieve.
func (p *Pipeline) Index() *retrieval.Index {
	return p.index
}

// SharesIndexBackend reports whether the index is mirrored into an external
// vector store. Opening another pipeline with the same options resets and
// reloads that store.
func (p *Pipeline) SharesIndexBackend() bool {
	return p.retriever != nil && p.opts.Factories.VectorDriver != nil
}

// Search returns the k passages nearest to text without generating an
// answer. A k of zero uses the pipeline top-k.
func (p *Pipeline) Search(ctx context.Context, text string, k int) ([]vector.QueryResult, error) {
	if p.index == nil {
		return nil, errdefs.InvalidArgument("search needs the index, but the pipeline was opened in %s mode", p.opts.Mode)
	}
	if strings.TrimSpace(text) == "" {
		return nil, errdefs.InvalidArgument("query is empty")
	}
	if k == 0 {
		k = p.opts.TopK
	}
	return p.retriever.Search(ctx, p.index, text, k)
}

// Query answers text with the pipeline defaults.
func (p *Pipeline) Query(ctx context.Context, text string) (*Answer, error) {
	return p.Answer(ctx, Query{Text: text})
}

// Answer resolves q through the mode's states: Recall for memory-only,
// Retrieve then Generate for the others.
func (p *Pipeline) Answer(ctx context.Context, q Query) (*Answer, error) {
	start := time.Now()

	mode := p.opts.Mode
	if q.Mode != "" {
		m, err := ParseMode(string(q.Mode))
		if err != nil {
			return nil, err
		}
		mode = m
	}
	if mode.NeedsRetrieval() && p.index == nil {
		return nil, errdefs.InvalidArgument("mode %s needs the index, but the pipeline was opened in %s mode", mode, p.opts.Mode)
	}

	params := p.opts.Params
	if q.Params != nil {
		params = *q.Params
		if err := params.Validate(); err != nil {
			return nil, errdefs.InvalidArgument("%v", err)
		}
	}
	topK := p.opts.TopK
	if q.TopK != 0 {
		if q.TopK < 1 {
			return nil, errdefs.InvalidArgument("top-k must be >= 1, got %d", q.TopK)
		}
		topK = q.TopK
	}
	// A template override applies to whichever model writes the final
	// answer: the memory model in memory-only mode, the generator otherwise.
	template, memoryTemplate := p.opts.Template, p.opts.MemoryTemplate
	if q.Template != "" {
		if mode == ModeMemoryOnly {
			if err := ValidateMemoryTemplate(q.Template); err != nil {
				return nil, err
			}
			memoryTemplate = q.Template
		} else {
			if err := ValidateTemplate(q.Template); err != nil {
				return nil, err
			}
			template = q.Template
		}
	}

	text := q.Text
	if strings.TrimSpace(text) == "" {
		if mode != ModeSummarize {
			return nil, errdefs.InvalidArgument("query is empty")
		}
		text = SummaryQuery
	}

	ans := &Answer{Query: text, Mode: mode}
	session := p.store.Session(p.state, memoryTemplate)

	var err error
	switch mode {
	case ModeMemoryOnly:
		err = p.recall(ctx, session, ans, params)
	case ModeRetrievalOnly:
		err = p.retrieve(ctx, []string{text}, topK, ans)
	case ModeMemoRAG:
		var clue string
		clue, err = session.Clue(ctx, text, params)
		if err == nil {
			ans.Clue = clue
			err = p.retrieve(ctx, append(memory.Lines(clue), text), topK, ans)
		}
	case ModeSummarize:
		var points []string
		points, err = session.KeyPoints(ctx, params)
		if err == nil {
			ans.Clue = strings.Join(points, "\n")
			if len(points) == 0 {
				points = []string{text}
			}
			err = p.retrieve(ctx, points, topK, ans)
		}
	default:
		err = errdefs.UnsupportedMode(string(mode))
	}
	if err != nil {
		return nil, err
	}

	if ans.Path == PathRetrieval {
		if p.opts.UseMemoryAnswer {
			mem, err := session.Answer(ctx, text, params)
			if err != nil {
				return nil, err
			}
			ans.MemoryAnswer = strings.TrimSpace(mem.Text)
		}
		if err := p.generate(ctx, template, ans, params); err != nil {
			return nil, err
		}
	}

	ans.Duration = time.Since(start)
	p.logger.Debug("query answered",
		"mode", ans.Mode,
		"path", ans.Path,
		"passages", len(ans.Passages),
		"duration", ans.Duration,
	)
	return ans, nil
}

// recall is the terminal DirectAnswer state.
func (p *Pipeline) recall(ctx context.Context, session *memory.Session, ans *Answer, params llm.Params) error {
	resp, err := session.Answer(ctx, ans.Query, params)
	if err != nil {
		return err
	}
	ans.Path = PathDirectMemory
	ans.Text = strings.TrimSpace(resp.Text)
	return nil
}

// retrieve is the terminal RetrievedPassages state.
func (p *Pipeline) retrieve(ctx context.Context, queries []string, k int, ans *Answer) error {
	var (
		results []vector.QueryResult
		err     error
	)
	if len(queries) == 1 {
		results, err = p.retriever.Search(ctx, p.index, queries[0], k)
	} else {
		results, err = p.retriever.SearchMany(ctx, p.index, queries, k)
	}
	if err != nil {
		return err
	}
	ans.Path = PathRetrieval
	ans.Passages = results
	return nil
}

// generate fills the template and produces the final answer.
func (p *Pipeline) generate(ctx context.Context, template string, ans *Answer, params llm.Params) error {
	prompt := llm.Fill(template, map[string]string{
		"context":  BuildContext(ans.Passages, ans.MemoryAnswer),
		"input":    ans.Query,
		"question": ans.Query,
	})

	resp, err := p.generator.Generate(ctx, prompt, params)
	if err != nil {
		if errors.Is(err, errdefs.ErrGeneration) {
			return err
		}
		return fmt.Errorf("%w: %v", errdefs.ErrGeneration, err)
	}
	ans.Text = strings.TrimSpace(resp.Text)
	return nil
}

// BuildContext joins passages with a blank line, followed by the memory
// answer when there is one.
func BuildContext(passages []vector.QueryResult, memoryAnswer string) string {
	parts := make([]string, 0, len(passages)+1)
	for _, r := range passages {
		parts = append(parts, r.Text)
	}
	if memoryAnswer != "" {
		parts = append(parts, "The answer might be: "+memoryAnswer)
	}
	return strings.Join(parts, "\n\n")
}

// Close releases every capability service the pipeline created.
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.owned) - 1; i >= 0; i-- {
		if err := p.owned[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.owned = nil
	return errors.Join(errs...)
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
