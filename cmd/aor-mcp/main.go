// Package main provides the MCP server entry point for the tender
// knowledge base.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/qvidal/aor/internal/answer"
	"github.com/qvidal/aor/internal/config"
	"github.com/qvidal/aor/internal/embedding"
	"github.com/qvidal/aor/internal/llm"
	"github.com/qvidal/aor/internal/mcptools"
	"github.com/qvidal/aor/internal/storage"
)

func main() {
	// Load .env file if present (local development), ignore if missing
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	store, err := storage.NewQdrantIndex(cfg.QdrantHost, cfg.QdrantPort, cfg.CollectionName, cfg.EmbeddingDimension)
	if err != nil {
		log.Fatalf("failed to connect to Qdrant: %v", err)
	}
	defer store.Close()

	if err := store.EnsureCollection(ctx); err != nil {
		log.Fatalf("failed to ensure collection: %v", err)
	}

	embeddingClient, err := embedding.NewClient(cfg.LLMEndpoint)
	if err != nil {
		log.Fatalf("failed to create embedding client: %v", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, cfg.EmbeddingModel, cfg.EmbeddingDimension, cfg.EmbeddingBatchSize, cfg.RequestTimeout)

	completer := llm.NewClient(cfg.LLMEndpoint, cfg.LLMModel, cfg.LLMMaxTokens, cfg.LLMTemperature, cfg.RequestTimeout)
	generator := answer.NewGenerator(completer, cfg.FormatRetries, nil)

	server := mcptools.NewServer(&mcptools.Config{
		Store:     store,
		Embedder:  embedder,
		Generator: generator,
		TopK:      cfg.TopK,
		MinScore:  cfg.SimilarityThreshold,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", mcptools.NewHealthHandler(store))
	mux.Handle("/mcp", mcptools.NewHTTPHandler(server, nil))

	port := getEnv("PORT", "8080")
	serverMode := getEnv("SERVER_MODE", "false") == "true"

	if serverMode {
		// HTTP mode: serve MCP over HTTP for remote clients
		addr := "0.0.0.0:" + port
		log.Printf("Starting HTTP server on %s (MCP at /mcp, health at /health)", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	} else {
		// Stdio mode: run MCP over stdin/stdout for local clients, with
		// the HTTP health endpoint in the background
		go func() {
			addr := "0.0.0.0:" + port
			log.Printf("Starting health server on %s", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Printf("Health server error: %v", err)
			}
		}()

		log.Println("Starting AOR MCP server (stdio mode)...")
		if err := server.Run(ctx); err != nil {
			log.Printf("server error: %v", err)
			os.Exit(1)
		}
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
