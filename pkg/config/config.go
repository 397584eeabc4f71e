package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
)

type Config struct {
	Server     ServerConfig
	SQLite     SQLiteConfig
	Vector     VectorConfig
	Embedding  EmbeddingConfig
	LLM        LLMConfig
	Redis      RedisConfig
	Chunking   ChunkingConfig
	RAG        RAGConfig
	Resilience ResilienceConfig
	RateLimit  RateLimitConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host             string
	Port             int
	ReadTimeout      int
	WriteTimeout     int
	BodyLimit        int
	MaxMessageLength int
	AllowedOrigins   []string
	Development      bool
}

type SQLiteConfig struct {
	Path string
}

type VectorConfig struct {
	Backend        string
	Endpoint       string
	APIKey         string
	CollectionName string
	IndexNList     int
	SearchNProbe   int
}

type EmbeddingConfig struct {
	Provider   string
	APIKey     string
	BaseURL    string
	Model      string
	Dimension  int
	TimeoutSec int
}

type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLHours int
}

type ChunkingConfig struct {
	Size    int
	Overlap int
}

type RAGConfig struct {
	TopK           int
	MemoryWindow   int
	ExcerptLength  int
	TitleLength    int
	TitleMinLength int
}

type ResilienceConfig struct {
	Enabled          bool
	MaxAttempts      int
	InitialDelayMs   int
	MaxDelayMs       int
	FailureThreshold uint32
	OpenTimeoutSec   int
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/docchat")

	return load(v)
}

// LoadFile reads configuration from an explicit file path, still honouring
// defaults and environment overrides.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("DOCCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// Validate fails fast on settings the core cannot run with.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 || c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking size=%d overlap=%d: %w", c.Chunking.Size, c.Chunking.Overlap, apperr.ErrInvalidChunking)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d: %w", c.Embedding.Dimension, apperr.ErrConfiguration)
	}
	switch c.Vector.Backend {
	case "memory", "milvus":
	default:
		return fmt.Errorf("unknown vector backend %q: %w", c.Vector.Backend, apperr.ErrConfiguration)
	}
	switch c.Embedding.Provider {
	case "openai", "hashing":
	default:
		return fmt.Errorf("unknown embedding provider %q: %w", c.Embedding.Provider, apperr.ErrConfiguration)
	}
	if c.RAG.TopK <= 0 || c.RAG.MemoryWindow <= 0 {
		return fmt.Errorf("rag topK and memoryWindow must be positive: %w", apperr.ErrConfiguration)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 60)
	v.SetDefault("server.bodyLimit", 10485760)
	v.SetDefault("server.maxMessageLength", 5000)
	v.SetDefault("server.allowedOrigins", []string{})
	v.SetDefault("server.development", false)

	v.SetDefault("sqlite.path", "./data/database.db")

	v.SetDefault("vector.backend", "milvus")
	v.SetDefault("vector.endpoint", "localhost:19530")
	v.SetDefault("vector.collectionName", "company_documents")
	v.SetDefault("vector.indexNList", 1024)
	v.SetDefault("vector.searchNProbe", 16)

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimension", 1536)
	v.SetDefault("embedding.timeoutSec", 15)

	v.SetDefault("llm.model", "gpt-3.5-turbo")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.maxTokens", 1000)
	v.SetDefault("llm.timeoutSec", 60)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttlHours", 168)

	v.SetDefault("chunking.size", 1000)
	v.SetDefault("chunking.overlap", 200)

	v.SetDefault("rag.topK", 4)
	v.SetDefault("rag.memoryWindow", 5)
	v.SetDefault("rag.excerptLength", 200)
	v.SetDefault("rag.titleLength", 50)
	v.SetDefault("rag.titleMinLength", 10)

	v.SetDefault("resilience.enabled", true)
	v.SetDefault("resilience.maxAttempts", 3)
	v.SetDefault("resilience.initialDelayMs", 500)
	v.SetDefault("resilience.maxDelayMs", 5000)
	v.SetDefault("resilience.failureThreshold", 5)
	v.SetDefault("resilience.openTimeoutSec", 30)

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerMinute", 60)
	v.SetDefault("rateLimit.burst", 10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
	v.SetDefault("logging.maxSizeMB", 100)
	v.SetDefault("logging.maxBackups", 5)
	v.SetDefault("logging.maxAgeDays", 30)
}
