// Package servecmder provides the serve command, which runs the HTTP API and
// MCP server over a memorized corpus.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memorag/api"
	"github.com/papercomputeco/memorag/pkg/artifact"
	"github.com/papercomputeco/memorag/pkg/bootstrap"
	"github.com/papercomputeco/memorag/pkg/config"
	"github.com/papercomputeco/memorag/pkg/eventstream"
	"github.com/papercomputeco/memorag/pkg/logger"
	"github.com/papercomputeco/memorag/pkg/pipeline"
	"github.com/papercomputeco/memorag/pkg/recorder"
)

type serveCommander struct {
	debug      bool
	jsonLogs   bool
	logFile    string
	watch      bool
	debounce   time.Duration
	disableMCP bool

	logger *slog.Logger
}

var serveFlags = append([]string{
	config.FlagAPIListen,
	config.FlagWorkers,
	config.FlagStorageProv,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagEventsProv,
	config.FlagKafkaBrokers,
	config.FlagEventsTopic,
}, config.PipelineFlags...)

const serveLongDesc string = `Run the memorag API server.

Loads the memory directory once and serves it over HTTP:
  POST /v1/query         answer one question
  POST /v1/batch         answer several questions, aligned with the input
  GET  /v1/search        dense retrieval without generation
  GET  /v1/memory        loaded artifact metadata
  POST /v1/reload        reload the artifacts
  GET  /v1/answers       logged answers (also /v1/answers/:id and /v1/stats)
  /mcp                   MCP tools: query, search and memory_stats

With --watch (the default) the server reloads when memory.bin or index.bin
is rewritten, so a fresh "memorag memorize" is picked up without a restart.
Answers are logged to the configured storage backend and optionally
published to Kafka.

Examples:
  memorag serve
  memorag serve --listen :9000 --sqlite ./answers.db
  memorag serve --events-provider kafka --kafka-brokers localhost:9092`

const serveShortDesc string = "Run the memorag API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cfg, err := config.Resolve(cmd, serveFlags)
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Write JSON log records")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON log records to this file")
	cmd.Flags().BoolVar(&cmder.watch, "watch", true, "Reload when the artifacts are rewritten")
	cmd.Flags().DurationVar(&cmder.debounce, "watch-debounce", artifact.DefaultDebounce, "Quiet period before a reload")
	cmd.Flags().BoolVar(&cmder.disableMCP, "no-mcp", false, "Do not mount the MCP endpoint")
	config.AddFlags(cmd, config.Flags, serveFlags)

	return cmd
}

func (c *serveCommander) run(ctx context.Context, cfg *config.Config) error {
	closeLog, err := c.setupLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	handle, err := pipeline.NewHandle(ctx, func(ctx context.Context) (*pipeline.Pipeline, error) {
		return bootstrap.OpenPipeline(ctx, cfg, c.logger)
	}, c.logger)
	if err != nil {
		return err
	}
	defer handle.Close()

	driver, err := bootstrap.NewStorageDriver(ctx, cfg, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := bootstrap.NewPublisher(cfg, c.logger)
	if err != nil {
		return err
	}

	var digest string
	_ = handle.With(func(p *pipeline.Pipeline) error {
		digest = p.State().CorpusDigest
		return nil
	})

	rec, err := recorder.New(recorder.Config{
		Driver:    driver,
		Publisher: publisher,
		Source: eventstream.EventSource{
			MemoryDir:    cfg.Memory.Dir,
			CorpusDigest: digest,
		},
		Workers: 2,
		Logger:  c.logger,
	})
	if err != nil {
		publisher.Close()
		return err
	}
	defer rec.Close()

	server, err := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
		DisableMCP: c.disableMCP,
	}, handle, driver, rec, c.logger)
	if err != nil {
		return err
	}

	errChan := make(chan error, 2)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	if c.watch {
		go func() {
			if err := handle.Watch(ctx, cfg.Memory.Dir, c.debounce); err != nil && ctx.Err() == nil {
				errChan <- fmt.Errorf("artifact watcher error: %w", err)
			}
		}()
	}

	select {
	case err := <-errChan:
		_ = server.Shutdown()
		return err
	case <-ctx.Done():
		c.logger.Info("shutting down")
		return server.Shutdown()
	}
}

func (c *serveCommander) setupLogger() (func(), error) {
	console := logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(!c.jsonLogs),
		logger.WithJSON(c.jsonLogs),
		logger.WithWriter(os.Stderr),
	)
	if c.logFile == "" {
		c.logger = console
		return func() {}, nil
	}

	f, err := logger.OpenFile(c.logFile)
	if err != nil {
		return nil, err
	}
	c.logger = logger.Multi(console, logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
		logger.WithComponent("serve"),
	))
	return func() { f.Close() }, nil
}
