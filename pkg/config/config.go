// Package config loads the backend configuration from an optional YAML file
// with environment-variable overrides. A .env file, when present, is loaded
// by the binaries before this package reads the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Chat     ChatConfig     `yaml:"chat"`
	Store    StoreConfig    `yaml:"store"`
	Index    IndexConfig    `yaml:"index"`
	NATS     NATSConfig     `yaml:"nats"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// EmbedderConfig selects and configures the embedding encoder.
type EmbedderConfig struct {
	// Type is "ollama" or "openai".
	Type      string `yaml:"type"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// ChatConfig configures the chat-completion model.
type ChatConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TopK        int     `yaml:"top_k"`
	RPS         float64 `yaml:"rps"`
}

// StoreConfig configures chunking and snapshot persistence.
type StoreConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	Overlap      int    `yaml:"overlap"`
	SnapshotPath string `yaml:"snapshot_path"`
}

// IndexConfig configures the vector index.
type IndexConfig struct {
	// DefaultDim is used when the index is built over an empty store.
	DefaultDim int `yaml:"default_dim"`
	// EagerSync embeds on every ingested chunk instead of deferring.
	EagerSync bool `yaml:"eager_sync"`
}

// NATSConfig configures the extracted-chunk consumer. Empty URL disables it.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Queue   string `yaml:"queue"`
}

// Default returns the standard configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: "8080", CORSOrigin: "*"},
		Embedder: EmbedderConfig{
			Type:    "ollama",
			BaseURL: "http://localhost:11434",
			Model:   "all-minilm",
		},
		Chat: ChatConfig{
			BaseURL:     "https://api.x.ai/v1",
			Model:       "grok-1",
			APIKeyEnv:   "GROK_API_KEY",
			Temperature: 0.7,
			MaxTokens:   500,
			TopK:        3,
		},
		Store: StoreConfig{ChunkSize: 300, Overlap: 50},
		Index: IndexConfig{DefaultDim: 384},
		NATS:  NATSConfig{Subject: "engine.extract.chunks", Queue: "bookbodh"},
	}
}

// Load reads cfg from path (when non-empty and existing) over the defaults,
// then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overrides fields from the environment; env always wins over YAML.
func applyEnv(cfg *Config) {
	setStr(&cfg.Server.Port, "PORT")
	setStr(&cfg.Server.CORSOrigin, "CORS_ORIGIN")
	setStr(&cfg.Embedder.Type, "EMBEDDER_TYPE")
	setStr(&cfg.Embedder.BaseURL, "EMBEDDER_URL")
	setStr(&cfg.Embedder.Model, "EMBEDDER_MODEL")
	setStr(&cfg.Chat.BaseURL, "CHAT_URL")
	setStr(&cfg.Chat.Model, "CHAT_MODEL")
	setStr(&cfg.Store.SnapshotPath, "SNAPSHOT_PATH")
	setStr(&cfg.NATS.URL, "NATS_URL")
	setStr(&cfg.NATS.Subject, "NATS_SUBJECT")
	setInt(&cfg.Store.ChunkSize, "CHUNK_SIZE")
	setInt(&cfg.Store.Overlap, "CHUNK_OVERLAP")
	setInt(&cfg.Index.DefaultDim, "INDEX_DEFAULT_DIM")
	setInt(&cfg.Chat.TopK, "TOP_K_RESULTS")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// APIKey resolves the configured key environment variable.
func (c ChatConfig) APIKey() string { return os.Getenv(c.APIKeyEnv) }

// APIKey resolves the configured key environment variable.
func (c EmbedderConfig) APIKey() string { return os.Getenv(c.APIKeyEnv) }
