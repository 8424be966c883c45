// Package configcmder provides the config command for managing persistent
// memorag configuration stored in the .memorag/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memorag/pkg/cliui"
	"github.com/papercomputeco/memorag/pkg/config"
)

const configLongDesc string = `Manage persistent memorag configuration.

Configuration is stored as config.toml in the .memorag/ directory and provides
default values for command flags. Environment variables prefixed MEMORAG_
override the file, and CLI flags always take precedence over both.

Keys use dotted notation matching the TOML section structure:
  memory.dir, memory.compress_ratio,
  compression.provider, compression.model,
  embedding.provider, embedding.model, embedding.dimensions,
  generation.provider, generation.model,
  retrieval.top_k, query.mode, storage.sqlite_path, remote.url

Use subcommands to get, set, or list configuration values:
  memorag config set <key> <value>    Set a configuration value
  memorag config get <key>            Get a configuration value
  memorag config list                 List all configuration values

Examples:
  memorag config set generation.provider anthropic
  memorag config set retrieval.top_k 5
  memorag config get query.mode
  memorag config list`

const configShortDesc string = "Manage persistent memorag configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}

// openConfiger resolves the config file and prints which one is in use.
func openConfiger(out io.Writer, configDir string) (*config.Configer, error) {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(out, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
	} else {
		fmt.Fprintf(out, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}
	return cfger, nil
}
