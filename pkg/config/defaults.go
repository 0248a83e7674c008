package config

const (
	defaultStorageProvider = "sqlite"
	defaultAPIListen       = ":8081"
	defaultClientAPITarget = "http://localhost:8081"

	defaultVectorProvider = "sqlite"

	defaultOllamaTarget        = "http://localhost:11434"
	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingModel      = "embeddinggemma"
	defaultEmbeddingDimensions = 768

	defaultLLMProvider = "ollama"
	defaultLLMModel    = "llama3.2"

	defaultTopK            = 5
	defaultMinSimilarity   = 0.6
	defaultPromptBudget    = 4000
	defaultSnippetRunes    = 500
	defaultNoContextPolicy = "ungrounded"

	defaultIndexWorkers   = 3
	defaultIndexQueueSize = 256
	defaultSweepInterval  = "5m"
	defaultSweepBatch     = 100

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "insurag.entities"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultOllamaTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		LLM: LLMConfig{
			Provider: defaultLLMProvider,
			Target:   defaultOllamaTarget,
			Model:    defaultLLMModel,
		},
		RAG: RAGConfig{
			TopK:            defaultTopK,
			MinSimilarity:   defaultMinSimilarity,
			PromptBudget:    defaultPromptBudget,
			SnippetRunes:    defaultSnippetRunes,
			NoContextPolicy: defaultNoContextPolicy,
		},
		Indexing: IndexingConfig{
			Workers:       defaultIndexWorkers,
			QueueSize:     defaultIndexQueueSize,
			SweepInterval: defaultSweepInterval,
			SweepBatch:    defaultSweepBatch,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
