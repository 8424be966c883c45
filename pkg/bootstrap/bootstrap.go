// Package bootstrap turns a resolved *config.Config into the components the
// memorag commands run: model factories, pipeline options, the answer log
// and the answer event publisher.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/papercomputeco/memorag/pkg/compression"
	compressionutils "github.com/papercomputeco/memorag/pkg/compression/utils"
	"github.com/papercomputeco/memorag/pkg/config"
	"github.com/papercomputeco/memorag/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/memorag/pkg/embeddings/utils"
	"github.com/papercomputeco/memorag/pkg/eventstream"
	"github.com/papercomputeco/memorag/pkg/eventstream/kafka"
	"github.com/papercomputeco/memorag/pkg/eventstream/nop"
	"github.com/papercomputeco/memorag/pkg/generation"
	generationutils "github.com/papercomputeco/memorag/pkg/generation/utils"
	"github.com/papercomputeco/memorag/pkg/llm"
	"github.com/papercomputeco/memorag/pkg/pipeline"
	"github.com/papercomputeco/memorag/pkg/retrieval"
	"github.com/papercomputeco/memorag/pkg/storage"
	"github.com/papercomputeco/memorag/pkg/storage/inmemory"
	"github.com/papercomputeco/memorag/pkg/storage/postgres"
	"github.com/papercomputeco/memorag/pkg/storage/sqlite"
	"github.com/papercomputeco/memorag/pkg/vector"
	vectorutils "github.com/papercomputeco/memorag/pkg/vector/utils"
)

// Environment variables read for Vertex AI when the gemini provider is used
// without an API key.
const (
	EnvGoogleProject  = "GOOGLE_CLOUD_PROJECT"
	EnvGoogleLocation = "GOOGLE_CLOUD_LOCATION"
)

// Factories builds the model factories for cfg. Nothing is constructed until
// a factory is called.
func Factories(cfg *config.Config, logger *slog.Logger) pipeline.Factories {
	f := pipeline.Factories{
		Compression: func(ctx context.Context) (compression.Model, error) {
			var reader generation.Model
			if cfg.Compression.Provider == "extractive" {
				g, err := newGenerator(ctx, cfg)
				if err != nil {
					return nil, err
				}
				reader = g
			}
			return compressionutils.NewModel(&compressionutils.NewModelOpts{
				ProviderType:  cfg.Compression.Provider,
				TargetURL:     cfg.Compression.Target,
				Model:         cfg.Compression.Model,
				MaxInputChars: int(cfg.Compression.MaxInputChars),
				Reader:        reader,
			})
		},
		Embedder: func(ctx context.Context) (embeddings.Embedder, error) {
			return embeddingutils.NewEmbedder(ctx, &embeddingutils.NewEmbedderOpts{
				ProviderType:  cfg.Embedding.Provider,
				TargetURL:     cfg.Embedding.Target,
				Model:         cfg.Embedding.Model,
				APIKey:        apiKey(cfg.Embedding.Provider),
				Dimensions:    int(cfg.Embedding.Dimensions),
				Project:       os.Getenv(EnvGoogleProject),
				Location:      os.Getenv(EnvGoogleLocation),
				MaxInputChars: int(cfg.Embedding.MaxInputChars),
			})
		},
		Generator: func(ctx context.Context) (generation.Model, error) {
			return newGenerator(ctx, cfg)
		},
	}

	switch cfg.VectorStore.Provider {
	case "", "flat":
	default:
		f.VectorDriver = func(ctx context.Context) (vector.Driver, error) {
			return vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
				ProviderType: cfg.VectorStore.Provider,
				Target:       cfg.VectorStore.Target,
				APIKey:       os.Getenv("QDRANT_API_KEY"),
				Collection:   cfg.VectorStore.Collection,
				Dimensions:   cfg.Embedding.Dimensions,
				Logger:       logger,
			})
		}
	}

	return f
}

func newGenerator(ctx context.Context, cfg *config.Config) (generation.Model, error) {
	return generationutils.NewGenerator(ctx, &generationutils.NewGeneratorOpts{
		ProviderType: cfg.Generation.Provider,
		TargetURL:    cfg.Generation.Target,
		Model:        cfg.Generation.Model,
		System:       cfg.Generation.System,
		Project:      os.Getenv(EnvGoogleProject),
		Location:     os.Getenv(EnvGoogleLocation),
	})
}

func apiKey(provider string) string {
	if env, ok := generationutils.APIKeyEnv[provider]; ok {
		return os.Getenv(env)
	}
	return ""
}

// PipelineOptions maps cfg onto pipeline options for the memory directory
// dir. Mode and policy strings are validated here so bad configuration fails
// before any artifact is touched.
func PipelineOptions(cfg *config.Config, dir string, logger *slog.Logger) (pipeline.Options, error) {
	mode, err := pipeline.ParseMode(cfg.Query.Mode)
	if err != nil {
		return pipeline.Options{}, err
	}
	policy, err := retrieval.ParseFailurePolicy(cfg.Retrieval.FailurePolicy)
	if err != nil {
		return pipeline.Options{}, err
	}

	params := llm.DefaultParams()
	if cfg.Query.MaxNewTokens > 0 {
		params.MaxTokens = int(cfg.Query.MaxNewTokens)
	}

	if cfg.Query.MemoryTemplate != "" {
		if err := pipeline.ValidateMemoryTemplate(cfg.Query.MemoryTemplate); err != nil {
			return pipeline.Options{}, err
		}
	}

	return pipeline.Options{
		Dir:            dir,
		Mode:           mode,
		TopK:           int(cfg.Retrieval.TopK),
		Params:         params,
		Policy:         policy,
		Workers:        int(cfg.Query.Workers),
		MemoryTemplate: cfg.Query.MemoryTemplate,
		QueryPrefix:    cfg.Embedding.QueryPrefix,
		Factories:      Factories(cfg, logger),
		Logger:         logger,
	}, nil
}

// MemorizeOptions maps cfg onto memorize options.
func MemorizeOptions(cfg *config.Config, logger *slog.Logger) (pipeline.MemorizeOptions, error) {
	policy, err := retrieval.ParseFailurePolicy(cfg.Retrieval.FailurePolicy)
	if err != nil {
		return pipeline.MemorizeOptions{}, err
	}
	return pipeline.MemorizeOptions{
		Ratio:         int(cfg.Memory.CompressRatio),
		Policy:        policy,
		PassagePrefix: cfg.Embedding.PassagePrefix,
		Factories:     Factories(cfg, logger),
		Logger:        logger,
	}, nil
}

// NewStorageDriver opens the answer log selected by cfg. An sqlite path
// upgrades the default in-memory log to sqlite.
func NewStorageDriver(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Driver, error) {
	provider := cfg.Storage.Provider
	if (provider == "" || provider == "inmemory") && cfg.Storage.SQLitePath != "" {
		provider = "sqlite"
	}

	switch provider {
	case "", "inmemory":
		logger.Info("using in-memory answer log")
		return inmemory.NewDriver(), nil

	case "sqlite":
		if cfg.Storage.SQLitePath == "" {
			return nil, fmt.Errorf("storage.sqlite_path is required for the sqlite answer log")
		}
		driver, err := sqlite.NewSQLiteDriver(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite answer log: %w", err)
		}
		logger.Info("using SQLite answer log", "path", cfg.Storage.SQLitePath)
		return driver, nil

	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return nil, fmt.Errorf("storage.postgres_dsn is required for the postgres answer log")
		}
		driver, err := postgres.NewDriver(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL answer log: %w", err)
		}
		logger.Info("using PostgreSQL answer log")
		return driver, nil

	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", provider)
	}
}

// NewPublisher creates the answer event publisher selected by cfg.
func NewPublisher(cfg *config.Config, logger *slog.Logger) (eventstream.Publisher, error) {
	switch cfg.Events.Provider {
	case "", "nop":
		return nop.NewPublisher(), nil

	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: kafka.ParseBrokers(cfg.Events.Brokers),
			Topic:   cfg.Events.Topic,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		logger.Info("publishing answer events to kafka", "topic", cfg.Events.Topic)
		return p, nil

	default:
		return nil, fmt.Errorf("unsupported events provider: %s", cfg.Events.Provider)
	}
}

// OpenPipeline opens the pipeline over cfg's memory directory.
func OpenPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, error) {
	opts, err := PipelineOptions(cfg, cfg.Memory.Dir, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.Open(ctx, opts)
}
