package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Load()
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "localhost", cfg.QdrantHost)
	assert.Equal(t, 6334, cfg.QdrantPort)
	assert.Equal(t, 1536, cfg.EmbeddingDimension)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 5, cfg.TopK)

	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("QDRANT_PORT", "7001")
	t.Setenv("SIMILARITY_THRESHOLD", "0.8")
	t.Setenv("CHUNK_SIZE", "500")

	cfg := Load()
	assert.Equal(t, 7001, cfg.QdrantPort)
	assert.Equal(t, 0.8, cfg.SimilarityThreshold)
	assert.Equal(t, 500, cfg.ChunkSize)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero dimension", func(c *Config) { c.EmbeddingDimension = 0 }},
		{"negative threshold", func(c *Config) { c.SimilarityThreshold = -0.1 }},
		{"threshold above one", func(c *Config) { c.SimilarityThreshold = 1.5 }},
		{"overlap equals chunk size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }},
		{"zero top-k", func(c *Config) { c.TopK = 0 }},
		{"empty endpoint", func(c *Config) { c.LLMEndpoint = "" }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"zero workers", func(c *Config) { c.IndexWorkers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
		})
	}
}
