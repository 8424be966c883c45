package config

const (
	defaultMemoryDir     = "memorag-state"
	defaultCompressRatio = 4

	defaultCompressionProvider = "ollama"
	defaultCompressionModel    = "TommyChien/memorag-qwen2-7b-inst"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingModel      = "intfloat/multilingual-e5-large-instruct"
	defaultEmbeddingDimensions = 1024

	defaultGenerationProvider = "ollama"
	defaultGenerationModel    = "Qwen/Qwen3-8B"

	defaultVectorProvider   = "flat"
	defaultVectorCollection = "memorag"

	defaultTopK          = 3
	defaultFailurePolicy = "fail-fast"

	defaultMode         = "memory-then-retrieval"
	defaultMaxNewTokens = 4096
	defaultWorkers      = 1

	defaultStorageProvider = "inmemory"
	defaultEventsProvider  = "nop"
	defaultEventsTopic     = "memorag.answers"

	defaultAPIListen       = ":8081"
	defaultClientAPITarget = "http://localhost:8081"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Memory: MemoryConfig{
			Dir:           defaultMemoryDir,
			CompressRatio: defaultCompressRatio,
		},
		Compression: CompressionConfig{
			Provider: defaultCompressionProvider,
			Model:    defaultCompressionModel,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Generation: GenerationConfig{
			Provider: defaultGenerationProvider,
			Model:    defaultGenerationModel,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Collection: defaultVectorCollection,
		},
		Retrieval: RetrievalConfig{
			TopK:          defaultTopK,
			FailurePolicy: defaultFailurePolicy,
		},
		Query: QueryConfig{
			Mode:         defaultMode,
			MaxNewTokens: defaultMaxNewTokens,
			Workers:      defaultWorkers,
		},
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
	}
}
