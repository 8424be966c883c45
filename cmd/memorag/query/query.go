// Package querycmder provides the query command, which answers every query
// in a JSON Lines file and writes the answers aligned with the input.
package querycmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memorag/pkg/bootstrap"
	"github.com/papercomputeco/memorag/pkg/cliui"
	"github.com/papercomputeco/memorag/pkg/config"
	"github.com/papercomputeco/memorag/pkg/corpus"
	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/logger"
	"github.com/papercomputeco/memorag/pkg/pipeline"
)

type queryCommander struct {
	queriesPath string
	outputPath  string
	debug       bool
}

var queryFlags = append([]string{config.FlagWorkers}, config.PipelineFlags...)

const queryLongDesc string = `Answer a file of queries.

Reads JSON Lines records with a "query" field, answers each one, and writes
the records back to --output with a "generated_answer" field added. Extra
fields in the input are kept. Output order always matches input order, also
with --workers above 1.

With --failure-policy skip a failed query gets an "error" field and the
batch continues; the default fail-fast stops at the first failure and
writes nothing.

Examples:
  memorag query --queries qa.jsonl --output answers.jsonl
  memorag query --queries qa.jsonl --output answers.jsonl --mode retrieval-only --workers 4`

const queryShortDesc string = "Answer a JSON Lines file of queries"

func NewQueryCmd() *cobra.Command {
	cmder := &queryCommander{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: queryShortDesc,
		Long:  queryLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			// Bad output paths fail before any model loads.
			if err := corpus.ValidateResultPath(cmder.outputPath); err != nil {
				return err
			}

			cfg, err := config.Resolve(cmd, queryFlags)
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().StringVarP(&cmder.queriesPath, "queries", "q", "", "Query file (.jsonl with a \"query\" field)")
	cmd.Flags().StringVarP(&cmder.outputPath, "output", "o", "", "Output file (.jsonl)")
	_ = cmd.MarkFlagRequired("queries")
	_ = cmd.MarkFlagRequired("output")
	config.AddFlags(cmd, config.Flags, queryFlags)

	return cmd
}

func (c *queryCommander) run(ctx context.Context, out io.Writer, cfg *config.Config) error {
	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true), logger.WithWriter(os.Stderr))

	records, err := corpus.ReadQueries(c.queriesPath)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errdefs.InvalidArgument("%s has no queries", c.queriesPath)
	}

	opts, err := bootstrap.PipelineOptions(cfg, cfg.Memory.Dir, log)
	if err != nil {
		return err
	}

	var p *pipeline.Pipeline
	err = cliui.Step(out, "Loading memory from "+cfg.Memory.Dir, func() error {
		var err error
		p, err = pipeline.Open(ctx, opts)
		return err
	})
	if err != nil {
		return err
	}
	defer p.Close()

	queries := make([]string, len(records))
	for i, r := range records {
		queries[i] = r.Query
	}

	var results []pipeline.Result
	msg := fmt.Sprintf("Answering %d queries (%s, %d workers)", len(queries), p.Mode(), max(opts.Workers, 1))
	err = cliui.Step(out, msg, func() error {
		var err error
		results, err = p.Batch(ctx, queries, func(done, total int) {
			log.Debug("batch progress", "done", done, "total", total)
		})
		return err
	})
	if err != nil {
		var rerr *errdefs.RecordError
		if errors.As(err, &rerr) {
			return fmt.Errorf("query %d failed, nothing written: %w", rerr.Index, err)
		}
		return err
	}

	rows := make([]corpus.Result, len(results))
	failed := 0
	for i, r := range results {
		rows[i] = corpus.Result{Record: records[i], Err: r.Err}
		if r.Answer != nil {
			rows[i].Answer = r.Answer.Text
		}
		if r.Err != nil {
			failed++
			log.Warn("query failed", "index", r.Index, "query", r.Query, "error", r.Err)
		}
	}

	if err := corpus.WriteResults(c.outputPath, rows); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s Wrote %d answers to %s",
		cliui.SuccessMark, len(rows)-failed, cliui.KeyStyle.Render(c.outputPath))
	if failed > 0 {
		fmt.Fprintf(out, " %s", cliui.ErrorStyle.Render(fmt.Sprintf("(%d failed)", failed)))
	}
	fmt.Fprint(out, "\n\n")
	return nil
}
