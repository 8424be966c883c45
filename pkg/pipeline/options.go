package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/papercomputeco/memorag/pkg/compression"
	"github.com/papercomputeco/memorag/pkg/embeddings"
	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/generation"
	"github.com/papercomputeco/memorag/pkg/llm"
	"github.com/papercomputeco/memorag/pkg/retrieval"
	"github.com/papercomputeco/memorag/pkg/vector"
)

const (
	// DefaultTopK is the number of passages retrieved per query.
	DefaultTopK = 3

	// DefaultRatio is the default compression ratio.
	DefaultRatio = 4

	// PromptTemplate is the default generation template. {context} receives
	// the retrieved passages and {input} the query.
	PromptTemplate = "You are a helpful AI assistant. You will be provided with a document and a question.\n" +
		"Your task is to generate a comprehensive and accurate answer.\n\n" +
		"Context:\n{context}\n\nQuestion: {input}"

	// SummaryQuery stands in for the query in summarize mode when none is
	// given.
	SummaryQuery = "Summarize the document."
)

// Factories construct the capability services. Open calls them only after
// every option and artifact has been validated, and the pipeline owns what
// they return.
type Factories struct {
	Compression func(ctx context.Context) (compression.Model, error)
	Embedder    func(ctx context.Context) (embeddings.Embedder, error)
	Generator   func(ctx context.Context) (generation.Model, error)

	// VectorDriver is optional; the retriever defaults to an in-process
	// flat driver.
	VectorDriver func(ctx context.Context) (vector.Driver, error)
}

// Options configures a Pipeline.
type Options struct {
	// Dir holds memory.bin and index.bin.
	Dir string

	Mode Mode

	// TopK is the number of passages retrieved per query.
	TopK int

	Params llm.Params

	// Template is the generation prompt template. It must contain {input}
	// (or {question}) and {context}.
	Template string

	// MemoryTemplate is the direct-answer template used in memory-only mode
	// and for UseMemoryAnswer. It must contain {input} (or {question}).
	// Empty selects memory.AnswerTemplate.
	MemoryTemplate string

	// UseMemoryAnswer appends the memory's direct answer to the retrieved
	// context.
	UseMemoryAnswer bool

	// Policy applies to per-record failures in Batch.
	Policy retrieval.FailurePolicy

	// Workers bounds Batch concurrency. Values above 1 serialise every
	// capability service behind a mutex.
	Workers int

	QueryPrefix string

	Factories Factories
	Logger    *slog.Logger
}

// Validate checks options that do not need the filesystem or any model.
func (o *Options) Validate() error {
	if strings.TrimSpace(o.Dir) == "" {
		return errdefs.InvalidArgument("memory directory is required")
	}
	if o.Mode == "" {
		o.Mode = DefaultMode
	}
	if _, err := ParseMode(string(o.Mode)); err != nil {
		return err
	}
	if o.TopK == 0 {
		o.TopK = DefaultTopK
	}
	if o.TopK < 1 {
		return errdefs.InvalidArgument("top-k must be >= 1, got %d", o.TopK)
	}
	if o.Workers < 0 {
		return errdefs.InvalidArgument("workers must be >= 0, got %d", o.Workers)
	}
	if err := o.Params.Validate(); err != nil {
		return errdefs.InvalidArgument("%v", err)
	}
	if o.Template == "" {
		o.Template = PromptTemplate
	}
	if err := ValidateTemplate(o.Template); err != nil {
		return err
	}
	if o.MemoryTemplate != "" {
		if err := ValidateMemoryTemplate(o.MemoryTemplate); err != nil {
			return err
		}
	}

	if o.Factories.Compression == nil {
		return errdefs.InvalidArgument("compression model factory is required")
	}
	if o.Mode.NeedsRetrieval() {
		if o.Factories.Embedder == nil {
			return errdefs.InvalidArgument("embedding model factory is required for mode %s", o.Mode)
		}
		if o.Factories.Generator == nil {
			return errdefs.InvalidArgument("generation model factory is required for mode %s", o.Mode)
		}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return nil
}

// ValidateMemoryTemplate checks that a direct-answer template carries the
// query. It has no {context}: the memory itself is the context.
func ValidateMemoryTemplate(t string) error {
	if !llm.HasPlaceholder(t, "input") && !llm.HasPlaceholder(t, "question") {
		return errdefs.InvalidArgument("memory template must contain {input}")
	}
	return nil
}

// ValidateTemplate checks that a generation template has both placeholders.
func ValidateTemplate(t string) error {
	if !llm.HasPlaceholder(t, "context") {
		return errdefs.InvalidArgument("prompt template must contain {context}")
	}
	if !llm.HasPlaceholder(t, "input") && !llm.HasPlaceholder(t, "question") {
		return errdefs.InvalidArgument("prompt template must contain {input}")
	}
	return nil
}
