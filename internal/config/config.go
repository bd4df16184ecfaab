package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel     string            `yaml:"log_level"`
	RAG          RAGConfig         `yaml:"rag"`
	EmbedLLM     LLMConfig         `yaml:"embed_llm"`
	InferenceLLM LLMConfig         `yaml:"inference_llm"`
	VectorStore  VectorStoreConfig `yaml:"vector_store"`
	Chromem      ChromemConfig     `yaml:"chromem"`
	Database     DatabaseConfig    `yaml:"database"`
	Lock         LockConfig        `yaml:"lock"`
	Server       ServerConfig      `yaml:"server"`
}

// RAGConfig controls chunking, retrieval and the document swap.
type RAGConfig struct {
	ChunkSize       int           `yaml:"chunk_size"`
	ChunkOverlap    int           `yaml:"chunk_overlap"`
	TopK            int           `yaml:"top_k"`
	MinScore        float32       `yaml:"min_score"`
	SwapMode        string        `yaml:"swap_mode"`
	EnforceOCR      bool          `yaml:"enforce_ocr"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
	UploadDir       string        `yaml:"upload_dir"`
}

// LLMConfig configures an openai-compatible or ollama model endpoint.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	KeyEnv      string  `yaml:"key_env"`
	Key         string  `yaml:"-"`
	Dimension   int     `yaml:"dimension"`
	BatchSize   int     `yaml:"batch_size"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type VectorStoreConfig struct {
	Type string `yaml:"type"`
}

type ChromemConfig struct {
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	InMemory      bool   `yaml:"in_memory"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
}

type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
	Debug  bool   `yaml:"debug"`
}

type LockConfig struct {
	Type  string      `yaml:"type"`
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr          string        `yaml:"addr"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	TTL           time.Duration `yaml:"ttl"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

const (
	SwapGeneration = "generation"
	SwapReset      = "reset"
)

// LoadConfig reads path, falling back to defaults when it does not exist.
// A .env file in the working directory is loaded first so key_env lookups see it.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.EmbedLLM.Key = os.Getenv(cfg.EmbedLLM.KeyEnv)
	cfg.InferenceLLM.Key = os.Getenv(cfg.InferenceLLM.KeyEnv)
	return cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Validate rejects settings the pipeline cannot act on.
func (c *Config) Validate() error {
	switch c.RAG.SwapMode {
	case SwapGeneration, SwapReset:
	default:
		return fmt.Errorf("invalid rag.swap_mode %q: want %q or %q", c.RAG.SwapMode, SwapGeneration, SwapReset)
	}
	return nil
}

func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
	}

	rag := &cfg.RAG
	if rag.ChunkSize == 0 {
		rag.ChunkSize = 800
	}
	if rag.ChunkOverlap == 0 {
		rag.ChunkOverlap = 150
	}
	if rag.TopK == 0 {
		rag.TopK = 5
	}
	if rag.SwapMode == "" {
		rag.SwapMode = SwapGeneration
	}
	if rag.UpstreamTimeout == 0 {
		rag.UpstreamTimeout = 60 * time.Second
	}
	if rag.UploadDir == "" {
		rag.UploadDir = "data/uploads"
	}

	applyLLMDefaults(&cfg.EmbedLLM, "nomic-embed-text")
	if cfg.EmbedLLM.Dimension == 0 {
		cfg.EmbedLLM.Dimension = 768
	}
	applyLLMDefaults(&cfg.InferenceLLM, "llama3.1")
	if cfg.InferenceLLM.Temperature == 0 {
		cfg.InferenceLLM.Temperature = 0.2
	}
	if cfg.InferenceLLM.MaxTokens == 0 {
		cfg.InferenceLLM.MaxTokens = 512
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "chromem"
	}
	if cfg.Chromem.Path == "" {
		cfg.Chromem.Path = "./chromemdb"
	}
	if cfg.Chromem.Collection == "" {
		cfg.Chromem.Collection = "documents"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "pgdriver"
	}

	if cfg.Lock.Type == "" {
		cfg.Lock.Type = "local"
	}
	if cfg.Lock.Redis.Addr == "" {
		cfg.Lock.Redis.Addr = "localhost:6379"
	}
	if cfg.Lock.Redis.TTL == 0 {
		cfg.Lock.Redis.TTL = 5 * time.Minute
	}
	if cfg.Lock.Redis.RetryInterval == 0 {
		cfg.Lock.Redis.RetryInterval = 200 * time.Millisecond
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
}

func applyLLMDefaults(llm *LLMConfig, model string) {
	llm.Provider = strings.ToLower(llm.Provider)
	if llm.Provider == "" {
		llm.Provider = "ollama"
	}
	if llm.Model == "" {
		llm.Model = model
	}
	if llm.BaseURL == "" {
		switch llm.Provider {
		case "openai":
			llm.BaseURL = "https://api.openai.com/v1"
		default:
			llm.BaseURL = "http://localhost:11434"
		}
	}
	if llm.KeyEnv == "" && llm.Provider == "openai" {
		llm.KeyEnv = "OPENAI_API_KEY"
	}
}
