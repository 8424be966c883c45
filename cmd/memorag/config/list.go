package configcmder

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memorag/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays every configuration key and its effective value from the
config.toml file stored in the .memorag/ directory, grouped by TOML
section. Keys never set fall back to defaults; keys with no default
show <not set>.

Examples:
  memorag config list
  memorag config list --json`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString(config.FlagConfigDir)
			return runList(cmd.OutOrStdout(), configDir, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print key/value pairs as a JSON object")

	return cmd
}

func runList(out io.Writer, configDir string, jsonOut bool) error {
	var (
		cfger *config.Configer
		err   error
	)
	if jsonOut {
		cfger, err = config.NewConfiger(configDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfger, err = openConfiger(out, configDir)
		if err != nil {
			return err
		}
	}

	keys := config.ValidConfigKeys()
	values := make(map[string]string, len(keys))
	for _, key := range keys {
		v, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}
		values[key] = v
	}

	if jsonOut {
		obj := make(map[string]*string, len(keys))
		for _, key := range keys {
			if v := values[key]; v != "" {
				obj[key] = &v
			} else {
				obj[key] = nil
			}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(obj)
	}

	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}

	section := ""
	for i, key := range keys {
		if s, _, ok := strings.Cut(key, "."); ok && s != section {
			if i > 0 {
				fmt.Fprintln(out)
			}
			section = s
			fmt.Fprintf(out, "[%s]\n", section)
		}
		if v := values[key]; v == "" {
			fmt.Fprintf(out, "%-*s = <not set>\n", width, key)
		} else {
			fmt.Fprintf(out, "%-*s = %q\n", width, key, v)
		}
	}

	return nil
}
