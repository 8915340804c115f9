package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != "8080" {
		t.Errorf("default port %q", cfg.Server.Port)
	}
	if cfg.Store.ChunkSize != 300 || cfg.Store.Overlap != 50 {
		t.Errorf("default chunking %d/%d", cfg.Store.ChunkSize, cfg.Store.Overlap)
	}
	if cfg.Index.DefaultDim != 384 {
		t.Errorf("default dim %d", cfg.Index.DefaultDim)
	}
	if cfg.Embedder.Type != "ollama" {
		t.Errorf("default embedder %q", cfg.Embedder.Type)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("port %q, want default", cfg.Server.Port)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: "9090"
embedder:
  type: openai
  model: text-embedding-3-small
store:
  chunk_size: 200
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port %q, want 9090", cfg.Server.Port)
	}
	if cfg.Embedder.Type != "openai" || cfg.Embedder.Model != "text-embedding-3-small" {
		t.Errorf("embedder %+v", cfg.Embedder)
	}
	if cfg.Store.ChunkSize != 200 {
		t.Errorf("chunk size %d, want 200", cfg.Store.ChunkSize)
	}
	// Untouched sections keep their defaults.
	if cfg.Store.Overlap != 50 {
		t.Errorf("overlap %d, want default 50", cfg.Store.Overlap)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "7070")
	t.Setenv("CHUNK_SIZE", "150")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("port %q, env must win", cfg.Server.Port)
	}
	if cfg.Store.ChunkSize != 150 {
		t.Errorf("chunk size %d, want 150", cfg.Store.ChunkSize)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml must fail")
	}
}

func TestAPIKey(t *testing.T) {
	t.Setenv("TEST_CHAT_KEY", "sk-123")
	c := ChatConfig{APIKeyEnv: "TEST_CHAT_KEY"}
	if c.APIKey() != "sk-123" {
		t.Errorf("api key %q", c.APIKey())
	}
	if (ChatConfig{}).APIKey() != "" {
		t.Error("unset key env should resolve empty")
	}
}
