// Package historycmder provides the history command, which lists logged
// answers from the answer log or from a running API server.
package historycmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memorag/pkg/bootstrap"
	"github.com/papercomputeco/memorag/pkg/cliui"
	"github.com/papercomputeco/memorag/pkg/config"
	"github.com/papercomputeco/memorag/pkg/logger"
	"github.com/papercomputeco/memorag/pkg/storage"
	"github.com/papercomputeco/memorag/pkg/utils"
)

type historyCommander struct {
	limit   int
	mode    string
	since   time.Duration
	jsonOut bool
	clear   bool
	debug   bool
}

var historyFlags = []string{
	config.FlagStorageProv,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagAPITarget,
}

const historyLongDesc string = `List logged answers.

Answers are read from the configured answer log (SQLite or PostgreSQL).
When the answer log is in-memory, it only lives inside a running
"memorag serve", so the answers are fetched from its API at --api-target.

Examples:
  memorag history
  memorag history --sqlite ./answers.db --limit 20
  memorag history --filter-mode memory-only --since 24h
  memorag history --api-target http://localhost:8081 --json`

const historyShortDesc string = "List logged answers"

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: historyShortDesc,
		Long:  historyLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cfg, err := config.Resolve(cmd, historyFlags)
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", storage.DefaultListLimit, "Maximum answers to list")
	cmd.Flags().StringVar(&cmder.mode, "filter-mode", "", "Only list answers from this mode")
	cmd.Flags().DurationVar(&cmder.since, "since", 0, "Only list answers newer than this (e.g. 24h)")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print answers as JSON")
	cmd.Flags().BoolVar(&cmder.clear, "clear", false, "Delete every logged answer")
	config.AddFlags(cmd, config.Flags, historyFlags)

	return cmd
}

func (c *historyCommander) options() storage.ListOptions {
	opts := storage.ListOptions{Limit: c.limit, Mode: c.mode}
	if c.since > 0 {
		opts.Since = time.Now().Add(-c.since)
	}
	return opts
}

func (c *historyCommander) run(ctx context.Context, out io.Writer, cfg *config.Config) error {
	var (
		records []*storage.Record
		err     error
	)

	local := cfg.Storage.SQLitePath != "" || (cfg.Storage.Provider != "" && cfg.Storage.Provider != "inmemory")
	if local {
		records, err = c.fromDriver(ctx, out, cfg)
	} else {
		if c.clear {
			return fmt.Errorf("--clear needs a persistent answer log (set storage.sqlite_path or storage.postgres_dsn)")
		}
		records, err = FetchAnswers(ctx, cfg.Client.APITarget, c.options())
	}
	if err != nil || c.clear {
		return err
	}

	if c.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No answers logged.")
		return nil
	}

	width := cliui.Width(out, 100)
	fmt.Fprintln(out)
	for _, r := range records {
		mark := cliui.SuccessMark
		if r.Error != "" {
			mark = cliui.FailMark
		}
		fmt.Fprintf(out, "  %s %s  %s  %s\n",
			mark,
			cliui.DimStyle.Render(r.CreatedAt.Local().Format(time.DateTime)),
			cliui.KeyStyle.Render(r.Mode),
			cliui.DimStyle.Render(r.ID),
		)
		fmt.Fprintf(out, "    %s\n", cliui.Truncate("Q: "+utils.Preview(r.Query, width), width-4))
		if r.Error != "" {
			fmt.Fprintf(out, "    %s\n\n", cliui.ErrorStyle.Render(cliui.Truncate(r.Error, width-4)))
			continue
		}
		fmt.Fprintf(out, "    %s\n\n", cliui.Truncate("A: "+utils.Preview(r.Answer, width), width-4))
	}
	return nil
}

func (c *historyCommander) fromDriver(ctx context.Context, out io.Writer, cfg *config.Config) ([]*storage.Record, error) {
	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true), logger.WithWriter(os.Stderr))

	driver, err := bootstrap.NewStorageDriver(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	defer driver.Close()

	if c.clear {
		if err := driver.Clear(ctx); err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "  %s Cleared the answer log\n", cliui.SuccessMark)
		return nil, nil
	}
	return driver.List(ctx, c.options())
}

// FetchAnswers lists answers from the API server at apiTarget.
func FetchAnswers(ctx context.Context, apiTarget string, opts storage.ListOptions) ([]*storage.Record, error) {
	u, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	u.Path = "/v1/answers"
	q := u.Query()
	q.Set("limit", strconv.Itoa(opts.EffectiveLimit()))
	if opts.Mode != "" {
		q.Set("mode", opts.Mode)
	}
	if !opts.Since.IsZero() {
		q.Set("since", opts.Since.UTC().Format(time.RFC3339))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating history request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to memorag API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var output struct {
		Answers []*storage.Record `json:"answers"`
	}
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, fmt.Errorf("failed to parse history response: %w", err)
	}
	return output.Answers, nil
}
