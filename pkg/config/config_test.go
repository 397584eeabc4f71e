package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFileAppliesDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "server:\n  port: 9001\n"))
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, 4, cfg.RAG.TopK)
	assert.Equal(t, 5, cfg.RAG.MemoryWindow)
	assert.Equal(t, "company_documents", cfg.Vector.CollectionName)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileEnvOverride(t *testing.T) {
	t.Setenv("DOCCHAT_CHUNKING_SIZE", "500")
	t.Setenv("DOCCHAT_VECTOR_BACKEND", "memory")

	cfg, err := LoadFile(writeConfig(t, "logging:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Chunking.Size)
	assert.Equal(t, "memory", cfg.Vector.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadFile(writeConfig(t, "vector:\n  backend: memory\nembedding:\n  provider: hashing\n"))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		target error
	}{
		{"overlap equals size", func(c *Config) { c.Chunking.Overlap = c.Chunking.Size }, apperr.ErrInvalidChunking},
		{"negative overlap", func(c *Config) { c.Chunking.Overlap = -1 }, apperr.ErrInvalidChunking},
		{"zero size", func(c *Config) { c.Chunking.Size = 0 }, apperr.ErrInvalidChunking},
		{"zero dimension", func(c *Config) { c.Embedding.Dimension = 0 }, apperr.ErrConfiguration},
		{"unknown backend", func(c *Config) { c.Vector.Backend = "chroma" }, apperr.ErrConfiguration},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "gemini" }, apperr.ErrConfiguration},
		{"zero topK", func(c *Config) { c.RAG.TopK = 0 }, apperr.ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target))
			assert.True(t, errors.Is(err, apperr.ErrConfiguration))
		})
	}
}
