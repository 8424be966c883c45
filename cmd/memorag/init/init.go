// Package initcmder provides the init command for initializing a local
// .memorag directory in the current working directory.
package initcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memorag/pkg/cliui"
	"github.com/papercomputeco/memorag/pkg/config"
	"github.com/papercomputeco/memorag/pkg/dotdir"
)

const configFile = "config.toml"

const fetchTimeout = 15 * time.Second

const initLongDesc string = `Initialize a new .memorag/ directory in the current working directory.

Creates a local .memorag/ directory that takes precedence over ~/.memorag/
for configuration and the saved chat transcript, and writes a config.toml
with default values. An existing config.toml is left untouched unless
--preset is given.

--preset takes either a provider preset name or an http(s) URL that serves a
config.toml:
  ollama      Local Ollama models for memory, embedding and generation
  openai      OpenAI embeddings and generation
  anthropic   Anthropic generation
  gemini      Gemini embeddings and generation
  local       Extractive memory with small Ollama models

Examples:
  memorag init
  memorag init --preset openai
  memorag init --preset https://example.com/memorag/config.toml`

const initShortDesc string = "Initialize a local .memorag/ directory"

type initCommander struct {
	preset string
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", "Provider preset name or URL of a config.toml")

	return cmd
}

func (c *initCommander) run(ctx context.Context, out io.Writer) error {
	// A bad preset must not create the directory.
	var cfg *config.Config
	if c.preset != "" {
		var err error
		cfg, err = resolvePreset(ctx, c.preset)
		if err != nil {
			return err
		}
	}

	dir, err := dotdir.NewManager().Create(true)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, configFile)
	_, statErr := os.Stat(path)
	exists := statErr == nil
	if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		return fmt.Errorf("reading config: %w", statErr)
	}

	if cfg == nil {
		if exists {
			fmt.Fprintf(out, "  %s Already initialized: %s\n", cliui.SuccessMark, cliui.DimStyle.Render(dir))
			return nil
		}
		cfg = config.NewDefaultConfig()
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(out, "  %s Initialized .memorag directory: %s\n", cliui.SuccessMark, cliui.DimStyle.Render(dir))
	if c.preset != "" {
		fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Preset:"), cliui.ValueStyle.Render(c.preset))
	}
	return nil
}

func resolvePreset(ctx context.Context, preset string) (*config.Config, error) {
	if strings.HasPrefix(preset, "http://") || strings.HasPrefix(preset, "https://") {
		return fetchConfig(ctx, preset)
	}
	return config.PresetConfig(preset)
}

func fetchConfig(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d from %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	return config.ParseConfigTOML(data)
}
