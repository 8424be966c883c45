// Package chatcmder provides the chat command, an interactive question and
// answer session against the memorized corpus.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/memorag/pkg/bootstrap"
	"github.com/papercomputeco/memorag/pkg/cliui"
	"github.com/papercomputeco/memorag/pkg/config"
	"github.com/papercomputeco/memorag/pkg/dotdir"
	"github.com/papercomputeco/memorag/pkg/logger"
	"github.com/papercomputeco/memorag/pkg/pipeline"
)

type chatCommander struct {
	debug bool
	reset bool
	plain bool
}

const chatLongDesc string = `Start an interactive question and answer session.

The memory is loaded once and every question is answered against it. The
transcript is saved to .memorag/chat.json after each answer and picked back up
by the next session, as long as the memory was built from the same corpus.

Commands inside the session:
  /mode <name>   switch query mode (memory-only, retrieval-only,
                 memory-then-retrieval, summarize)
  /clear         forget the transcript
  /exit          quit (Ctrl+C and Ctrl+D also quit)

When stdout is not a terminal, questions are read line by line from stdin.

Examples:
  memorag chat
  memorag chat --mode memory-only
  memorag chat --reset`

const chatShortDesc string = "Ask questions interactively"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cfg, err := config.Resolve(cmd, config.PipelineFlags)
			if err != nil {
				return err
			}
			configDir, _ := cmd.Flags().GetString(config.FlagConfigDir)
			return cmder.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cfg, configDir, cmd.Flags().Changed(config.FlagMode))
		},
	}

	cmd.Flags().BoolVar(&cmder.reset, "reset", false, "Discard the saved transcript and start fresh")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Print answers without markdown rendering")
	config.AddFlags(cmd, config.Flags, config.PipelineFlags)

	return cmd
}

func (c *chatCommander) run(ctx context.Context, in io.Reader, out io.Writer, cfg *config.Config, configDir string, modeSet bool) error {
	// The TUI owns the terminal, so logs only surface with --debug.
	log := logger.Nop()
	if c.debug {
		log = logger.New(logger.WithDebug(true), logger.WithPretty(true), logger.WithWriter(os.Stderr))
	}

	opts, err := bootstrap.PipelineOptions(cfg, cfg.Memory.Dir, log)
	if err != nil {
		return err
	}

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

	ddm := dotdir.NewManager()
	if c.reset {
		if err := ddm.ClearChatState(configDir); err != nil {
			return err
		}
	}

	state, resumed, err := loadState(ddm, configDir, cfg.Memory.Dir, p)
	if err != nil {
		return err
	}

	mode := p.Mode()
	if resumed && !modeSet && state.Mode != "" {
		if m, err := pipeline.ParseMode(state.Mode); err == nil {
			mode = m
		}
	}
	state.Mode = string(mode)

	var save saveFunc
	if target, err := ddm.Target(configDir); err == nil && target != "" {
		save = func(s *dotdir.ChatState) error {
			return ddm.SaveChatState(s, configDir)
		}
	} else {
		fmt.Fprintf(os.Stderr, "  %s\n", cliui.DimStyle.Render(`No .memorag directory; the transcript will not be saved (run "memorag init")`))
	}

	if resumed {
		fmt.Fprintf(os.Stderr, "  %s Resuming transcript %s\n", cliui.SuccessMark,
			cliui.DimStyle.Render(fmt.Sprintf("(%d turns)", len(state.Turns))))
	}

	render := func(s string) string { return s }
	if !c.plain {
		render = func(s string) string {
			if r, err := cliui.RenderMarkdown(s); err == nil {
				return r
			}
			return s
		}
	}

	if !cliui.IsTerminal(out) {
		return runLines(ctx, in, out, p.Answer, save, state, mode)
	}

	model := newChatModel(ctx, p.Answer, save, state, mode)
	model.render = render
	if _, err := tea.NewProgram(model, tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out)).Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// loadState returns the saved transcript when it belongs to the loaded
// memory, otherwise a fresh one.
func loadState(ddm *dotdir.Manager, configDir, memoryDir string, p *pipeline.Pipeline) (*dotdir.ChatState, bool, error) {
	digest := p.State().CorpusDigest

	saved, err := ddm.LoadChatState(configDir)
	if err != nil {
		return nil, false, err
	}
	if saved != nil && saved.CorpusDigest == digest && saved.MemoryDir == memoryDir {
		return saved, true, nil
	}
	return &dotdir.ChatState{MemoryDir: memoryDir, CorpusDigest: digest}, false, nil
}

// runLines is the non-interactive session: one question per input line,
// one answer per output block.
func runLines(ctx context.Context, in io.Reader, out io.Writer, ask askFunc, save saveFunc, state *dotdir.ChatState, mode pipeline.Mode) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/exit" || text == "/quit" {
			break
		}

		turn := answerTurn(ctx, ask, mode, text)
		state.Turns = append(state.Turns, turn)
		if save != nil {
			if err := save(state); err != nil {
				return err
			}
		}

		fmt.Fprintf(out, "you> %s\n", text)
		if turn.Error != "" {
			fmt.Fprintf(out, "%s %s\n\n", cliui.FailMark, turn.Error)
			continue
		}
		fmt.Fprintf(out, "%s\n\n", turn.Answer)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}
