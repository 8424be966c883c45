// Package askcmder provides the ask command, which answers one question
// against the memorized corpus.
package askcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memorag/pkg/bootstrap"
	"github.com/papercomputeco/memorag/pkg/cliui"
	"github.com/papercomputeco/memorag/pkg/config"
	"github.com/papercomputeco/memorag/pkg/logger"
	"github.com/papercomputeco/memorag/pkg/pipeline"
	"github.com/papercomputeco/memorag/pkg/utils"
)

type askCommander struct {
	debug     bool
	jsonOut   bool
	passages  bool
	plain     bool
	useMemory bool
}

const askLongDesc string = `Answer a question against the memorized corpus.

The memory directory must hold memory.bin (and index.bin for every mode but
memory-only), as written by "memorag memorize". The answer is rendered as
markdown unless --plain or --json is given.

Modes:
  memory-only             answer from the compressed memory alone
  retrieval-only          retrieve with the question, then generate
  memory-then-retrieval   recall clues from memory, retrieve with them, then generate
  summarize               retrieve with recalled key points and summarize

Examples:
  memorag ask "Who is the CEO?"
  memorag ask --mode memory-only "What is the document about?"
  memorag ask --passages -k 5 "What was the revenue growth?"`

const askShortDesc string = "Answer one question"

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cfg, err := config.Resolve(cmd, config.PipelineFlags)
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), cfg, strings.Join(args, " "))
		},
	}

	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the answer as JSON")
	cmd.Flags().BoolVar(&cmder.passages, "passages", false, "Show the retrieved passages")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Print the answer without markdown rendering")
	cmd.Flags().BoolVar(&cmder.useMemory, "use-memory-answer", false, "Add the memory's direct answer to the retrieved context")
	config.AddFlags(cmd, config.Flags, config.PipelineFlags)

	return cmd
}

func (c *askCommander) run(ctx context.Context, out io.Writer, cfg *config.Config, question string) error {
	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true), logger.WithWriter(os.Stderr))

	opts, err := bootstrap.PipelineOptions(cfg, cfg.Memory.Dir, log)
	if err != nil {
		return err
	}
	opts.UseMemoryAnswer = c.useMemory

	// Progress goes to stderr so --json output stays parseable.
	var p *pipeline.Pipeline
	err = cliui.Step(os.Stderr, "Loading memory from "+cfg.Memory.Dir, func() error {
		var err error
		p, err = pipeline.Open(ctx, opts)
		return err
	})
	if err != nil {
		return err
	}
	defer p.Close()

	var ans *pipeline.Answer
	err = cliui.Step(os.Stderr, fmt.Sprintf("Answering (%s)", p.Mode()), func() error {
		var err error
		ans, err = p.Query(ctx, question)
		return err
	})
	if err != nil {
		return err
	}

	if c.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(ans)
	}

	return c.print(out, ans)
}

func (c *askCommander) print(out io.Writer, ans *pipeline.Answer) error {
	fmt.Fprintln(out)
	if ans.Clue != "" {
		fmt.Fprintf(out, "  %s %s\n\n", cliui.KeyStyle.Render("Clue:"), cliui.DimStyle.Render(utils.Preview(ans.Clue, 120)))
	}

	text := ans.Text
	if !c.plain {
		rendered, err := cliui.RenderMarkdown(text)
		if err == nil {
			text = rendered
		}
	}
	fmt.Fprintln(out, text)

	if c.passages && len(ans.Passages) > 0 {
		fmt.Fprintf(out, "  %s\n\n", cliui.HeadingStyle.Render("Passages"))
		for i, p := range ans.Passages {
			fmt.Fprintf(out, "  %d. %s %s\n     %s\n",
				i+1,
				cliui.KeyStyle.Render(p.ID),
				cliui.DimStyle.Render(fmt.Sprintf("(%.3f)", p.Score)),
				utils.Preview(p.Text, 160),
			)
		}
		fmt.Fprintln(out)
	}
	return nil
}
