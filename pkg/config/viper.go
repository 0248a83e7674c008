package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/insurag/pkg/dotdir"
)

// EnvPrefix namespaces environment overrides, e.g. INSURAG_API_LISTEN.
const EnvPrefix = "INSURAG"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads config.toml from the
// resolved .insurag/ directory, and binds INSURAG_ environment variables.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (INSURAG_API_LISTEN, INSURAG_RAG_TOP_K, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	target, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	v.AddConfigPath(target)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("storage.provider", d.Storage.Provider)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("client.api_target", d.Client.APITarget)

	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.rate_limit", d.Embedding.RateLimit)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.target", d.LLM.Target)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)

	v.SetDefault("rag.top_k", d.RAG.TopK)
	v.SetDefault("rag.min_similarity", d.RAG.MinSimilarity)
	v.SetDefault("rag.prompt_budget", d.RAG.PromptBudget)
	v.SetDefault("rag.snippet_runes", d.RAG.SnippetRunes)
	v.SetDefault("rag.no_context_policy", d.RAG.NoContextPolicy)

	v.SetDefault("indexing.workers", d.Indexing.Workers)
	v.SetDefault("indexing.queue_size", d.Indexing.QueueSize)
	v.SetDefault("indexing.sweep_interval", d.Indexing.SweepInterval)
	v.SetDefault("indexing.sweep_batch", d.Indexing.SweepBatch)

	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
	v.SetDefault("events.nats_url", d.Events.NATSURL)
}

// FromViper assembles a Config from v's merged view of flags, env, file
// and defaults.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			Provider:    v.GetString("storage.provider"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		API:    APIConfig{Listen: v.GetString("api.listen")},
		Client: ClientConfig{APITarget: v.GetString("client.api_target")},
		VectorStore: VectorStoreConfig{
			Provider: v.GetString("vector_store.provider"),
			Target:   v.GetString("vector_store.target"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
			RateLimit:  v.GetFloat64("embedding.rate_limit"),
		},
		LLM: LLMConfig{
			Provider:  v.GetString("llm.provider"),
			Target:    v.GetString("llm.target"),
			Model:     v.GetString("llm.model"),
			MaxTokens: v.GetInt("llm.max_tokens"),
		},
		RAG: RAGConfig{
			TopK:            v.GetInt("rag.top_k"),
			MinSimilarity:   v.GetFloat64("rag.min_similarity"),
			PromptBudget:    v.GetInt("rag.prompt_budget"),
			SnippetRunes:    v.GetInt("rag.snippet_runes"),
			NoContextPolicy: v.GetString("rag.no_context_policy"),
		},
		Indexing: IndexingConfig{
			Workers:       v.GetUint("indexing.workers"),
			QueueSize:     v.GetUint("indexing.queue_size"),
			SweepInterval: v.GetString("indexing.sweep_interval"),
			SweepBatch:    v.GetInt("indexing.sweep_batch"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  v.GetString("events.brokers"),
			Topic:    v.GetString("events.topic"),
			NATSURL:  v.GetString("events.nats_url"),
		},
	}
}
