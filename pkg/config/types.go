package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent insurag configuration stored as
// config.toml in the .insurag/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	LLM         LLMConfig         `toml:"llm"`
	RAG         RAGConfig         `toml:"rag"`
	Indexing    IndexingConfig    `toml:"indexing"`
	Events      EventsConfig      `toml:"events"`
}

// StorageConfig selects the persistent record store.
type StorageConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
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

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`

	// RateLimit caps embedding requests per second. Zero disables limiting.
	RateLimit float64 `toml:"rate_limit,omitempty"`
}

// LLMConfig selects the answer generator.
type LLMConfig struct {
	Provider  string `toml:"provider,omitempty"`
	Target    string `toml:"target,omitempty"`
	Model     string `toml:"model,omitempty"`
	MaxTokens int    `toml:"max_tokens,omitempty"`
}

// RAGConfig tunes retrieval and prompting.
type RAGConfig struct {
	TopK            int     `toml:"top_k,omitempty"`
	MinSimilarity   float64 `toml:"min_similarity,omitempty"`
	PromptBudget    int     `toml:"prompt_budget,omitempty"`
	SnippetRunes    int     `toml:"snippet_runes,omitempty"`
	NoContextPolicy string  `toml:"no_context_policy,omitempty"`
}

// IndexingConfig sizes the background indexer.
type IndexingConfig struct {
	Workers       uint   `toml:"workers,omitempty"`
	QueueSize     uint   `toml:"queue_size,omitempty"`
	SweepInterval string `toml:"sweep_interval,omitempty"`
	SweepBatch    int    `toml:"sweep_batch,omitempty"`
}

// SweepEvery parses SweepInterval. An empty or invalid value yields zero,
// which callers treat as the default.
func (c IndexingConfig) SweepEvery() time.Duration {
	d, err := time.ParseDuration(c.SweepInterval)
	if err != nil {
		return 0
	}
	return d
}

// EventsConfig selects where entity lifecycle events are published.
type EventsConfig struct {
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma separated kafka broker list.
	Brokers string `toml:"brokers,omitempty"`

	// Topic is the kafka topic or the NATS subject prefix.
	Topic   string `toml:"topic,omitempty"`
	NATSURL string `toml:"nats_url,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
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

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.Itoa(*field(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			if n < 0 {
				return fmt.Errorf("invalid value for %s: must not be negative", name)
			}
			*field(c) = n
			return nil
		},
	}
}

func floatKey(name string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatFloat(*field(c), 'g', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider":     stringKey(func(c *Config) *string { return &c.Storage.Provider }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"api.listen":        stringKey(func(c *Config) *string { return &c.API.Listen }),
	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),

	"vector_store.provider": stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":   stringKey(func(c *Config) *string { return &c.VectorStore.Target }),

	"embedding.provider":   stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":     stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":      stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"embedding.rate_limit": floatKey("embedding.rate_limit", func(c *Config) *float64 { return &c.Embedding.RateLimit }),

	"llm.provider":   stringKey(func(c *Config) *string { return &c.LLM.Provider }),
	"llm.target":     stringKey(func(c *Config) *string { return &c.LLM.Target }),
	"llm.model":      stringKey(func(c *Config) *string { return &c.LLM.Model }),
	"llm.max_tokens": intKey("llm.max_tokens", func(c *Config) *int { return &c.LLM.MaxTokens }),

	"rag.top_k":          intKey("rag.top_k", func(c *Config) *int { return &c.RAG.TopK }),
	"rag.min_similarity": floatKey("rag.min_similarity", func(c *Config) *float64 { return &c.RAG.MinSimilarity }),
	"rag.prompt_budget":  intKey("rag.prompt_budget", func(c *Config) *int { return &c.RAG.PromptBudget }),
	"rag.snippet_runes":  intKey("rag.snippet_runes", func(c *Config) *int { return &c.RAG.SnippetRunes }),
	"rag.no_context_policy": {
		get: func(c *Config) string { return c.RAG.NoContextPolicy },
		set: func(c *Config, v string) error {
			if v != "ungrounded" && v != "decline" {
				return fmt.Errorf("invalid value for rag.no_context_policy: %q (expected ungrounded or decline)", v)
			}
			c.RAG.NoContextPolicy = v
			return nil
		},
	},

	"indexing.workers":    uintKey("indexing.workers", func(c *Config) *uint { return &c.Indexing.Workers }),
	"indexing.queue_size": uintKey("indexing.queue_size", func(c *Config) *uint { return &c.Indexing.QueueSize }),
	"indexing.sweep_interval": {
		get: func(c *Config) string { return c.Indexing.SweepInterval },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for indexing.sweep_interval: %w", err)
			}
			c.Indexing.SweepInterval = v
			return nil
		},
	},
	"indexing.sweep_batch": intKey("indexing.sweep_batch", func(c *Config) *int { return &c.Indexing.SweepBatch }),

	"events.provider": stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers":  stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	"events.topic":    stringKey(func(c *Config) *string { return &c.Events.Topic }),
	"events.nats_url": stringKey(func(c *Config) *string { return &c.Events.NATSURL }),
}

// orderedKeys lists the keys in TOML section order.
var orderedKeys = []string{
	"storage.provider",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"api.listen",
	"client.api_target",
	"vector_store.provider",
	"vector_store.target",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.dimensions",
	"embedding.rate_limit",
	"llm.provider",
	"llm.target",
	"llm.model",
	"llm.max_tokens",
	"rag.top_k",
	"rag.min_similarity",
	"rag.prompt_budget",
	"rag.snippet_runes",
	"rag.no_context_policy",
	"indexing.workers",
	"indexing.queue_size",
	"indexing.sweep_interval",
	"indexing.sweep_batch",
	"events.provider",
	"events.brokers",
	"events.topic",
	"events.nats_url",
}
