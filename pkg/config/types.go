package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent memorag configuration stored as
// config.toml in the .memorag/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Memory      MemoryConfig      `toml:"memory"`
	Compression CompressionConfig `toml:"compression"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Generation  GenerationConfig  `toml:"generation"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	Query       QueryConfig       `toml:"query"`
	Storage     StorageConfig     `toml:"storage"`
	Events      EventsConfig      `toml:"events"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	Remote      RemoteConfig      `toml:"remote"`
}

// MemoryConfig locates the persisted artifacts.
type MemoryConfig struct {
	Dir           string `toml:"dir,omitempty"`
	CompressRatio uint   `toml:"compress_ratio,omitempty"`
}

// CompressionConfig selects the memory model.
type CompressionConfig struct {
	Provider      string `toml:"provider,omitempty"`
	Target        string `toml:"target,omitempty"`
	Model         string `toml:"model,omitempty"`
	MaxInputChars uint   `toml:"max_input_chars,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider      string `toml:"provider,omitempty"`
	Target        string `toml:"target,omitempty"`
	Model         string `toml:"model,omitempty"`
	Dimensions    uint   `toml:"dimensions,omitempty"`
	MaxInputChars uint   `toml:"max_input_chars,omitempty"`
	QueryPrefix   string `toml:"query_prefix,omitempty"`
	PassagePrefix string `toml:"passage_prefix,omitempty"`
}

// GenerationConfig selects the answer model.
type GenerationConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`
	System   string `toml:"system,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
}

// RetrievalConfig holds retrieval defaults.
type RetrievalConfig struct {
	TopK          uint   `toml:"top_k,omitempty"`
	FailurePolicy string `toml:"failure_policy,omitempty"`
}

// QueryConfig holds per-query defaults.
type QueryConfig struct {
	Mode           string `toml:"mode,omitempty"`
	MemoryTemplate string `toml:"memory_template,omitempty"`
	MaxNewTokens   uint   `toml:"max_new_tokens,omitempty"`
	Workers        uint   `toml:"workers,omitempty"`
}

// StorageConfig selects where answers are logged. An empty provider with an
// sqlite path selects sqlite.
type StorageConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventsConfig selects where answer events are published.
type EventsConfig struct {
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running API
// server. Values are full URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// RemoteConfig holds the artifact sync location, a gs://bucket/prefix URL.
type RemoteConfig struct {
	URL string `toml:"url,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get     func(c *Config) string
	set     func(c *Config, v string) error
	numeric bool
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		numeric: true,
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"memory.dir": stringKey(func(c *Config) *string { return &c.Memory.Dir }),
	"memory.compress_ratio": uintKey("memory.compress_ratio",
		func(c *Config) *uint { return &c.Memory.CompressRatio }),

	"compression.provider": stringKey(func(c *Config) *string { return &c.Compression.Provider }),
	"compression.target":   stringKey(func(c *Config) *string { return &c.Compression.Target }),
	"compression.model":    stringKey(func(c *Config) *string { return &c.Compression.Model }),
	"compression.max_input_chars": uintKey("compression.max_input_chars",
		func(c *Config) *uint { return &c.Compression.MaxInputChars }),

	"embedding.provider": stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":   stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":    stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": uintKey("embedding.dimensions",
		func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"embedding.max_input_chars": uintKey("embedding.max_input_chars",
		func(c *Config) *uint { return &c.Embedding.MaxInputChars }),
	"embedding.query_prefix":   stringKey(func(c *Config) *string { return &c.Embedding.QueryPrefix }),
	"embedding.passage_prefix": stringKey(func(c *Config) *string { return &c.Embedding.PassagePrefix }),

	"generation.provider": stringKey(func(c *Config) *string { return &c.Generation.Provider }),
	"generation.target":   stringKey(func(c *Config) *string { return &c.Generation.Target }),
	"generation.model":    stringKey(func(c *Config) *string { return &c.Generation.Model }),
	"generation.system":   stringKey(func(c *Config) *string { return &c.Generation.System }),

	"vector_store.provider":   stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":     stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.collection": stringKey(func(c *Config) *string { return &c.VectorStore.Collection }),

	"retrieval.top_k": uintKey("retrieval.top_k",
		func(c *Config) *uint { return &c.Retrieval.TopK }),
	"retrieval.failure_policy": stringKey(func(c *Config) *string { return &c.Retrieval.FailurePolicy }),

	"query.mode":            stringKey(func(c *Config) *string { return &c.Query.Mode }),
	"query.memory_template": stringKey(func(c *Config) *string { return &c.Query.MemoryTemplate }),
	"query.max_new_tokens": uintKey("query.max_new_tokens",
		func(c *Config) *uint { return &c.Query.MaxNewTokens }),
	"query.workers": uintKey("query.workers",
		func(c *Config) *uint { return &c.Query.Workers }),

	"storage.provider":     stringKey(func(c *Config) *string { return &c.Storage.Provider }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"events.provider": stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers":  stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	"events.topic":    stringKey(func(c *Config) *string { return &c.Events.Topic }),

	"api.listen":        stringKey(func(c *Config) *string { return &c.API.Listen }),
	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),
	"remote.url":        stringKey(func(c *Config) *string { return &c.Remote.URL }),
}
