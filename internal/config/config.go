// Package config collects the environment configuration surface of the
// tender answering pipeline and validates it at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrConfiguration marks a fatal configuration error. Every call made with a
// broken configuration would fail identically, so the run aborts immediately.
var ErrConfiguration = errors.New("invalid configuration")

// Config holds all deployment-specific settings. Values come from the
// environment (a .env file is loaded by the binaries before Load runs).
type Config struct {
	// Paths
	KnowledgeBasePath string // directory scanned for knowledge documents
	OutputPath        string // directory for answered questionnaires

	// Optional remote knowledge source (GitHub repository folder)
	GitHubOwner    string
	GitHubRepo     string
	GitHubBasePath string

	// LLM endpoint (OpenAI-compatible, e.g. LM Studio)
	LLMEndpoint    string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64

	// Vector store
	QdrantHost     string
	QdrantPort     int
	CollectionName string

	// Embeddings
	EmbeddingModel     string
	EmbeddingDimension int
	EmbeddingBatchSize int

	// Retrieval
	SimilarityThreshold float64
	TopK                int

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Answer generation
	FormatRetries int

	// Remote call budget
	RequestTimeout time.Duration

	// Worker pool bounds
	IndexWorkers  int
	AnswerWorkers int
}

// Load reads configuration from the environment, applying defaults that
// mirror a local LM Studio + Qdrant deployment.
func Load() *Config {
	return &Config{
		KnowledgeBasePath: getEnv("KNOWLEDGE_BASE_PATH", "knowledge"),
		OutputPath:        getEnv("OUTPUT_PATH", "out"),

		GitHubOwner:    getEnv("KNOWLEDGE_GITHUB_OWNER", ""),
		GitHubRepo:     getEnv("KNOWLEDGE_GITHUB_REPO", ""),
		GitHubBasePath: getEnv("KNOWLEDGE_GITHUB_PATH", "docs"),

		LLMEndpoint:    getEnv("LLM_ENDPOINT", "http://localhost:1234/v1"),
		LLMModel:       getEnv("LLM_MODEL", "mistralai/mistral-7b-instruct-v0.3"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 2048),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.7),

		QdrantHost:     getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:     getEnvInt("QDRANT_PORT", 6334),
		CollectionName: getEnv("COLLECTION_NAME", "aor_knowledge_base"),

		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimension: getEnvInt("EMBEDDING_DIMENSION", 1536),
		EmbeddingBatchSize: getEnvInt("EMBEDDING_BATCH_SIZE", 0),

		SimilarityThreshold: getEnvFloat("SIMILARITY_THRESHOLD", 0.5),
		TopK:                getEnvInt("MAX_SIMILAR_CHUNKS", 5),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),

		FormatRetries: getEnvInt("FORMAT_RETRIES", 3),

		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SECS", 60)) * time.Second,

		IndexWorkers:  getEnvInt("INDEX_WORKERS", 4),
		AnswerWorkers: getEnvInt("ANSWER_WORKERS", 2),
	}
}

// Validate checks the invariants every component depends on. Violations are
// wrapped in ErrConfiguration so callers can fail fast with errors.Is.
func (c *Config) Validate() error {
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive, got %d", ErrConfiguration, c.EmbeddingDimension)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity threshold must be in [0,1], got %g", ErrConfiguration, c.SimilarityThreshold)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrConfiguration, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be in [0, chunk size), got %d", ErrConfiguration, c.ChunkOverlap)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top-k must be positive, got %d", ErrConfiguration, c.TopK)
	}
	if c.LLMEndpoint == "" {
		return fmt.Errorf("%w: LLM endpoint is required", ErrConfiguration)
	}
	if c.FormatRetries < 0 {
		return fmt.Errorf("%w: format retries must be non-negative, got %d", ErrConfiguration, c.FormatRetries)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request timeout must be positive, got %s", ErrConfiguration, c.RequestTimeout)
	}
	if c.IndexWorkers <= 0 || c.AnswerWorkers <= 0 {
		return fmt.Errorf("%w: worker counts must be positive", ErrConfiguration)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
