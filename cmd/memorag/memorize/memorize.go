// Package memorizecmder provides the memorize command, which builds the
// memory state and dense index for a corpus.
package memorizecmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memorag/pkg/bootstrap"
	"github.com/papercomputeco/memorag/pkg/cliui"
	"github.com/papercomputeco/memorag/pkg/config"
	"github.com/papercomputeco/memorag/pkg/corpus"
	"github.com/papercomputeco/memorag/pkg/logger"
	"github.com/papercomputeco/memorag/pkg/pipeline"
)

type memorizeCommander struct {
	corpusPath string
	chunkSize  int
	chunkMax   int
	debug      bool
}

var memorizeFlags = []string{
	config.FlagMemoryDir,
	config.FlagCompressRatio,
	config.FlagCompressionProv,
	config.FlagCompressionTgt,
	config.FlagCompressionModel,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagFailurePolicy,
}

const memorizeLongDesc string = `Build the memory for a corpus.

Reads the corpus (JSON Lines with a "contents" field per record, or a single
.txt/.md file), compresses it into memory.bin with the memory model, and
embeds its passages into index.bin. Both files are written to the memory
directory and replace any previous pair.

Examples:
  memorag memorize --corpus docs.jsonl
  memorag memorize --corpus book.txt --memory-dir ./book-memory --compress-ratio 8
  memorag memorize --corpus docs.jsonl --failure-policy skip`

const memorizeShortDesc string = "Build memory.bin and index.bin for a corpus"

func NewMemorizeCmd() *cobra.Command {
	cmder := &memorizeCommander{}

	cmd := &cobra.Command{
		Use:   "memorize",
		Short: memorizeShortDesc,
		Long:  memorizeLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cfg, err := config.Resolve(cmd, memorizeFlags)
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().StringVarP(&cmder.corpusPath, "corpus", "c", "", "Corpus file (.jsonl, .txt or .md)")
	cmd.Flags().IntVar(&cmder.chunkSize, "chunk-size", corpus.DefaultTargetSize, "Target passage size in bytes")
	cmd.Flags().IntVar(&cmder.chunkMax, "chunk-max", corpus.DefaultMaxSize, "Maximum passage size in bytes")
	_ = cmd.MarkFlagRequired("corpus")

	config.AddFlags(cmd, config.Flags, memorizeFlags)

	return cmd
}

func (c *memorizeCommander) run(ctx context.Context, out io.Writer, cfg *config.Config) error {
	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true), logger.WithWriter(os.Stderr))

	opts, err := bootstrap.MemorizeOptions(cfg, log)
	if err != nil {
		return err
	}

	records, err := corpus.ReadRecords(c.corpusPath)
	if err != nil {
		return err
	}
	cp := corpus.New(records, corpus.ChunkOptions{TargetSize: c.chunkSize, MaxSize: c.chunkMax})

	fmt.Fprintf(out, "\n  %s %s\n\n",
		cliui.HeadingStyle.Render("Memorizing"),
		cliui.DimStyle.Render(fmt.Sprintf("%s (%d records, %d passages)", c.corpusPath, cp.Records(), cp.Len())),
	)

	var stats *pipeline.MemorizeStats
	err = cliui.Step(out, "Compressing and indexing corpus", func() error {
		var err error
		stats, err = pipeline.Memorize(ctx, cp, cfg.Memory.Dir, opts)
		return err
	})
	if err != nil {
		return err
	}

	printStats(out, cfg.Memory.Dir, stats)
	return nil
}

func printStats(w io.Writer, dir string, stats *pipeline.MemorizeStats) {
	fmt.Fprintln(w)
	cliui.KeyValue(w, 14, "Memory dir", dir)
	cliui.KeyValue(w, 14, "Corpus digest", stats.CorpusDigest[:min(12, len(stats.CorpusDigest))])
	cliui.KeyValue(w, 14, "Raw chars", strconv.Itoa(stats.Memory.RawLength))
	cliui.KeyValue(w, 14, "Memory bytes", strconv.Itoa(stats.Memory.CompressedLength))
	cliui.KeyValue(w, 14, "Ratio", fmt.Sprintf("%d (effective %.1f)", stats.Memory.Ratio, stats.Memory.EffectiveRatio))
	cliui.KeyValue(w, 14, "Passages", fmt.Sprintf("%d indexed of %d", stats.Indexed, stats.Chunks))
	if len(stats.Skipped) > 0 {
		cliui.KeyValue(w, 14, "Skipped", fmt.Sprintf("%d (%v)", len(stats.Skipped), stats.Skipped))
	}
	cliui.KeyValue(w, 14, "Took", cliui.FormatDuration(stats.Duration))
	fmt.Fprintln(w)
}
