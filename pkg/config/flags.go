package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --memory-dir
// on "memorag memorize", "memorag ask" and "memorag serve").
type Flag struct {
	// Name is the long flag name (e.g. "memory-dir").
	Name string

	// Shorthand is the one-letter short flag (e.g. "m"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "memory.dir").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagMemoryDir        = "memory-dir"
	FlagCompressRatio    = "compress-ratio"
	FlagCompressionProv  = "compression-provider"
	FlagCompressionTgt   = "compression-target"
	FlagCompressionModel = "compression-model"
	FlagEmbeddingProv    = "embedding-provider"
	FlagEmbeddingTgt     = "embedding-target"
	FlagEmbeddingModel   = "embedding-model"
	FlagEmbeddingDims    = "embedding-dimensions"
	FlagGenerationProv   = "generation-provider"
	FlagGenerationTgt    = "generation-target"
	FlagGenerationModel  = "generation-model"
	FlagVectorStoreProv  = "vector-store-provider"
	FlagVectorStoreTgt   = "vector-store-target"
	FlagTopK             = "top-k"
	FlagFailurePolicy    = "failure-policy"
	FlagMode             = "mode"
	FlagMaxNewTokens     = "max-new-tokens"
	FlagWorkers          = "workers"
	FlagStorageProv      = "storage-provider"
	FlagSQLite           = "sqlite"
	FlagPostgresDSN      = "postgres-dsn"
	FlagEventsProv       = "events-provider"
	FlagKafkaBrokers     = "kafka-brokers"
	FlagEventsTopic      = "events-topic"
	FlagAPIListen        = "listen"
	FlagAPITarget        = "api-target"
	FlagRemoteURL        = "remote"
)

// Flags is the registry every memorag command draws its flags from.
var Flags = FlagSet{
	FlagMemoryDir:        {Name: "memory-dir", Shorthand: "m", ViperKey: "memory.dir", Description: "Directory holding memory.bin and index.bin"},
	FlagCompressRatio:    {Name: "compress-ratio", ViperKey: "memory.compress_ratio", Description: "Memory compression ratio (>= 1)"},
	FlagCompressionProv:  {Name: "compression-provider", ViperKey: "compression.provider", Description: "Memory model provider (ollama, extractive)"},
	FlagCompressionTgt:   {Name: "compression-target", ViperKey: "compression.target", Description: "Memory model provider URL"},
	FlagCompressionModel: {Name: "compression-model", ViperKey: "compression.model", Description: "Memory model name"},
	FlagEmbeddingProv:    {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider (ollama, openai, gemini)"},
	FlagEmbeddingTgt:     {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider URL"},
	FlagEmbeddingModel:   {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name"},
	FlagEmbeddingDims:    {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding dimensionality"},
	FlagGenerationProv:   {Name: "generation-provider", ViperKey: "generation.provider", Description: "Generation provider (ollama, openai, anthropic, gemini)"},
	FlagGenerationTgt:    {Name: "generation-target", ViperKey: "generation.target", Description: "Generation provider URL"},
	FlagGenerationModel:  {Name: "generation-model", ViperKey: "generation.model", Description: "Generation model name"},
	FlagVectorStoreProv:  {Name: "vector-store-provider", ViperKey: "vector_store.provider", Description: "Vector store provider (flat, sqlite, chroma, qdrant)"},
	FlagVectorStoreTgt:   {Name: "vector-store-target", ViperKey: "vector_store.target", Description: "Vector store location"},
	FlagTopK:             {Name: "top-k", Shorthand: "k", ViperKey: "retrieval.top_k", Description: "Passages retrieved per query"},
	FlagFailurePolicy:    {Name: "failure-policy", ViperKey: "retrieval.failure_policy", Description: "Per-record failure policy (fail-fast, skip)"},
	FlagMode:             {Name: "mode", ViperKey: "query.mode", Description: "Query mode (memory-only, retrieval-only, memory-then-retrieval, summarize)"},
	FlagMaxNewTokens:     {Name: "max-new-tokens", ViperKey: "query.max_new_tokens", Description: "Maximum tokens generated per answer"},
	FlagWorkers:          {Name: "workers", Shorthand: "w", ViperKey: "query.workers", Description: "Concurrent queries in batch mode"},
	FlagStorageProv:      {Name: "storage-provider", ViperKey: "storage.provider", Description: "Answer log backend (inmemory, sqlite, postgres)"},
	FlagSQLite:           {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite answer log"},
	FlagPostgresDSN:      {Name: "postgres-dsn", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string for the answer log"},
	FlagEventsProv:       {Name: "events-provider", ViperKey: "events.provider", Description: "Answer event publisher (nop, kafka)"},
	FlagKafkaBrokers:     {Name: "kafka-brokers", ViperKey: "events.brokers", Description: "Comma separated Kafka brokers"},
	FlagEventsTopic:      {Name: "events-topic", ViperKey: "events.topic", Description: "Kafka topic for answer events"},
	FlagAPIListen:        {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagAPITarget:        {Name: "api-target", ViperKey: "client.api_target", Description: "URL of a running memorag API server"},
	FlagRemoteURL:        {Name: "remote", ViperKey: "remote.url", Description: "Artifact remote (gs://bucket/prefix)"},
}

// ModelFlags select the three model providers and the vector store.
var ModelFlags = []string{
	FlagCompressionProv,
	FlagCompressionTgt,
	FlagCompressionModel,
	FlagEmbeddingProv,
	FlagEmbeddingTgt,
	FlagEmbeddingModel,
	FlagEmbeddingDims,
	FlagGenerationProv,
	FlagGenerationTgt,
	FlagGenerationModel,
	FlagVectorStoreProv,
	FlagVectorStoreTgt,
}

// PipelineFlags are shared by every command that opens a pipeline.
var PipelineFlags = append([]string{
	FlagMemoryDir,
	FlagMode,
	FlagTopK,
	FlagMaxNewTokens,
	FlagFailurePolicy,
}, ModelFlags...)

// AddFlags registers every flag in registryKeys on cmd. Numeric config keys
// get uint flags. Values are read back through viper after
// BindRegisteredFlags, so the flag targets are not kept.
func AddFlags(cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, key := range registryKeys {
		def, ok := fs[key]
		if !ok {
			continue
		}
		if info, ok := configKeys[def.ViperKey]; ok && info.numeric {
			AddUintFlag(cmd, fs, key, new(uint))
			continue
		}
		AddStringFlag(cmd, fs, key, new(string))
	}
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
