package config

import (
	"errors"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// OpenAIConfig configures the OpenAI-compatible embedding and chat APIs.
type OpenAIConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	EmbeddingModel string  `yaml:"embedding_model"`
	Dimension      int     `yaml:"dimension"`
	BatchSize      int     `yaml:"batch_size"`
	ChatModel      string  `yaml:"chat_model"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSecs    int     `yaml:"timeout_secs"`
}

// PineconeConfig contains connection and provisioning details for the
// vector index service.
type PineconeConfig struct {
	BaseURL         string `yaml:"base_url"`
	APIKeyEnv       string `yaml:"api_key_env"`
	Index           string `yaml:"index"`
	Namespace       string `yaml:"namespace"`
	Metric          string `yaml:"metric"`
	Cloud           string `yaml:"cloud"`
	Region          string `yaml:"region"`
	Environment     string `yaml:"environment"` // legacy, e.g. "us-east1-gcp-free"
	InitTimeoutSecs int    `yaml:"init_timeout_secs"`
	TimeoutSecs     int    `yaml:"timeout_secs"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// ChainConfig configures the conversational retrieval chain.
type ChainConfig struct {
	RetrieveK        int  `yaml:"retrieve_k"`
	MaxSources       int  `yaml:"max_sources"`
	CondenseFallback bool `yaml:"condense_fallback"`
}

// IngestConfig points at the source document corpus.
type IngestConfig struct {
	PDFPath string `yaml:"pdf_path"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Pinecone PineconeConfig `yaml:"pinecone"`
	Chunker  ChunkerConfig  `yaml:"chunker"`
	Chain    ChainConfig    `yaml:"chain"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Server   ServerConfig   `yaml:"server"`
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// ResolvedRegion returns the target region, preferring the explicit
// region over one derived from a legacy environment string
// ("us-east1-gcp-free" -> "us-east1").
func (c *PineconeConfig) ResolvedRegion() string {
	if c.Region != "" {
		return c.Region
	}
	if c.Environment != "" {
		parts := strings.Split(c.Environment, "-")
		if len(parts) >= 2 {
			return parts[0] + "-" + parts[1]
		}
		return c.Environment
	}
	return "us-west4"
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Chain: ChainConfig{CondenseFallback: true},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.APIKeyEnv == "" {
		cfg.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.OpenAI.Dimension == 0 {
		cfg.OpenAI.Dimension = 1536
	}
	if cfg.OpenAI.BatchSize == 0 {
		cfg.OpenAI.BatchSize = 32
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = "gpt-4o-mini"
	}
	if cfg.OpenAI.TimeoutSecs == 0 {
		cfg.OpenAI.TimeoutSecs = 60
	}
	if cfg.Pinecone.BaseURL == "" {
		cfg.Pinecone.BaseURL = "https://api.pinecone.io"
	}
	if cfg.Pinecone.APIKeyEnv == "" {
		cfg.Pinecone.APIKeyEnv = "PINECONE_API_KEY"
	}
	if cfg.Pinecone.Index == "" {
		cfg.Pinecone.Index = "chat-with-pdf"
	}
	if cfg.Pinecone.Namespace == "" {
		cfg.Pinecone.Namespace = "default"
	}
	if cfg.Pinecone.Metric == "" {
		cfg.Pinecone.Metric = "cosine"
	}
	if cfg.Pinecone.Cloud == "" {
		cfg.Pinecone.Cloud = "gcp"
	}
	if cfg.Pinecone.InitTimeoutSecs == 0 {
		cfg.Pinecone.InitTimeoutSecs = 240
	}
	if cfg.Pinecone.TimeoutSecs == 0 {
		cfg.Pinecone.TimeoutSecs = 30
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.ChunkOverlap == 0 {
		cfg.Chunker.ChunkOverlap = 200
	}
	if cfg.Chain.RetrieveK == 0 {
		cfg.Chain.RetrieveK = 6
	}
	if cfg.Chain.MaxSources == 0 {
		cfg.Chain.MaxSources = 4
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
}
