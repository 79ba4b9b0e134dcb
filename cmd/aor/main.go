// Package main provides the AOR CLI: indexing the tender knowledge base
// and answering questionnaires against it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/qvidal/aor/internal/answer"
	"github.com/qvidal/aor/internal/chunker"
	"github.com/qvidal/aor/internal/config"
	"github.com/qvidal/aor/internal/embedding"
	"github.com/qvidal/aor/internal/knowledge"
	"github.com/qvidal/aor/internal/llm"
	"github.com/qvidal/aor/internal/pipeline"
	"github.com/qvidal/aor/internal/questionnaire"
	"github.com/qvidal/aor/internal/retriever"
	"github.com/qvidal/aor/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "aor",
	Short: "Assistant de réponse aux appels d'offre",
	Long:  "CLI tool for indexing a tender knowledge base into Qdrant and answering questionnaires with a local LLM",
}

var clearFlag bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the knowledge base into the vector store",
	Long: `Scans the knowledge base and indexes every document into Qdrant.

Unchanged documents (same content hash) are skipped; changed documents are
re-embedded and their stale chunks garbage-collected. Use --clear to drop
the collection and rebuild from scratch.

Environment variables:
  KNOWLEDGE_BASE_PATH     Knowledge directory to scan (default: knowledge)
  KNOWLEDGE_GITHUB_OWNER  Optional GitHub owner for a remote knowledge repo
  KNOWLEDGE_GITHUB_REPO   Optional GitHub repository name
  QDRANT_HOST             Qdrant hostname (default: localhost)
  QDRANT_PORT             Qdrant gRPC port (default: 6334)
  LLM_ENDPOINT            OpenAI-compatible endpoint (default: http://localhost:1234/v1)
  GITHUB_TOKEN            GitHub token for higher rate limits (optional)`,
	RunE: runIndex,
}

var answerCmd = &cobra.Command{
	Use:   "answer <questionnaire.xlsx> [more.xlsx...]",
	Short: "Answer questionnaires from the indexed knowledge base",
	Long: `Reads each Excel questionnaire, retrieves relevant knowledge chunks per
question, generates structured answers with the configured LLM, and writes
a copy of the workbook with answer, confidence and source columns appended.

The output file lands in OUTPUT_PATH as <name>_avec_reponses.xlsx.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnswer,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the vector index",
	RunE:  runStatus,
}

func init() {
	indexCmd.Flags().BoolVar(&clearFlag, "clear", false, "drop the collection and rebuild from scratch")
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(answerCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func connectStore(cfg *config.Config) (*storage.QdrantIndex, error) {
	fmt.Printf("Connecting to Qdrant at %s:%d...\n", cfg.QdrantHost, cfg.QdrantPort)
	store, err := storage.NewQdrantIndex(cfg.QdrantHost, cfg.QdrantPort, cfg.CollectionName, cfg.EmbeddingDimension)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	return store, nil
}

func buildEmbedder(cfg *config.Config) (*embedding.Embedder, error) {
	client, err := embedding.NewClient(cfg.LLMEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	return embedding.NewEmbedder(client, cfg.EmbeddingModel, cfg.EmbeddingDimension, cfg.EmbeddingBatchSize, cfg.RequestTimeout), nil
}

// buildSource picks the knowledge source: a GitHub repository folder when
// configured, the local knowledge directory otherwise.
func buildSource(cfg *config.Config, logger *slog.Logger) (knowledge.Source, error) {
	if cfg.GitHubOwner != "" && cfg.GitHubRepo != "" {
		client, err := knowledge.NewGitHubClient()
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub client: %w", err)
		}
		fmt.Printf("Knowledge source: github.com/%s/%s/%s\n", cfg.GitHubOwner, cfg.GitHubRepo, cfg.GitHubBasePath)
		return knowledge.NewGitHubSource(client, cfg.GitHubOwner, cfg.GitHubRepo, cfg.GitHubBasePath, logger), nil
	}
	fmt.Printf("Knowledge source: %s\n", cfg.KnowledgeBasePath)
	return knowledge.NewScanner(cfg.KnowledgeBasePath, logger), nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()
	logger := slog.Default()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := connectStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if clearFlag {
		fmt.Println("Clearing existing collection...")
		if err := store.ClearCollection(ctx); err != nil {
			return fmt.Errorf("failed to clear collection: %w", err)
		}
	}

	if err := store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}

	source, err := buildSource(cfg, logger)
	if err != nil {
		return err
	}

	indexer := pipeline.NewIndexer(
		source,
		chunker.New(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder,
		store,
		cfg.IndexWorkers,
		logger,
	)

	fmt.Println()
	result, err := indexer.IndexAll(ctx)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Indexing complete!")
	fmt.Printf("  Documents: %d indexed, %d unchanged, %d failed (of %d)\n",
		result.IndexedDocs, result.SkippedDocs, len(result.FailedDocs), result.TotalDocs)
	fmt.Printf("  Chunks: %d upserted, %d stale deleted\n", result.TotalChunks, result.DeletedChunks)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Second))

	if len(result.FailedDocs) > 0 {
		fmt.Println()
		fmt.Println("Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Printf("  - %s: %s\n", failed.SourcePath, failed.Reason)
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))
	return nil
}

func runAnswer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := connectStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}

	completer := llm.NewClient(cfg.LLMEndpoint, cfg.LLMModel, cfg.LLMMaxTokens, cfg.LLMTemperature, cfg.RequestTimeout)
	generator := answer.NewGenerator(completer, cfg.FormatRetries, logger)
	ret := retriever.New(embedder, store, cfg.TopK, cfg.SimilarityThreshold)
	answerer := pipeline.NewAnswerer(ret, generator, cfg.AnswerWorkers, logger)

	if err := os.MkdirAll(cfg.OutputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, path := range args {
		if err := answerOne(ctx, answerer, cfg, path); err != nil {
			return err
		}
	}
	return nil
}

// answerOne runs the full flow for one workbook: read questions, answer
// them, write the annotated copy.
func answerOne(ctx context.Context, answerer *pipeline.Answerer, cfg *config.Config, path string) error {
	start := time.Now()

	fmt.Println()
	fmt.Printf("Reading questionnaire %s...\n", path)
	q, err := questionnaire.Read(path)
	if err != nil {
		return fmt.Errorf("failed to read questionnaire: %w", err)
	}
	fmt.Printf("  %d questions found\n", len(q.Questions))

	result, runErr := answerer.AnswerAll(ctx, q.Questions)

	outPath := questionnaire.OutputPath(cfg.OutputPath, path)
	if result != nil && len(result.Records) > 0 {
		if err := q.WriteAnswers(outPath, result.Records); err != nil {
			return fmt.Errorf("failed to write answers: %w", err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("questionnaire run interrupted (partial results in %s): %w", outPath, runErr)
	}

	fmt.Println()
	fmt.Println("Questionnaire complete!")
	fmt.Printf("  Answered: %d/%d\n", result.Answered, len(q.Questions))
	if result.Failed > 0 {
		fmt.Printf("  Failed: %d (marked in the output file)\n", result.Failed)
	}
	fmt.Printf("  Output: %s\n", outPath)
	fmt.Printf("  Duration: %s\n", time.Since(start).Round(time.Second))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := connectStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Health(ctx); err != nil {
		return fmt.Errorf("Qdrant health check failed: %w", err)
	}
	fmt.Println("Qdrant healthy")

	manifests, err := store.Manifests(ctx)
	if err != nil {
		return fmt.Errorf("failed to list manifests: %w", err)
	}
	points, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count points: %w", err)
	}

	chunks := int(points) - len(manifests)
	if chunks < 0 {
		chunks = 0
	}

	fmt.Println()
	fmt.Printf("Collection: %s\n", cfg.CollectionName)
	fmt.Printf("  Documents: %d\n", len(manifests))
	fmt.Printf("  Chunks: %d\n", chunks)

	var last time.Time
	for _, m := range manifests {
		if m.IndexedAt.After(last) {
			last = m.IndexedAt
		}
	}
	if !last.IsZero() {
		fmt.Printf("  Last indexed: %s\n", last.Format(time.RFC3339))
	}

	if len(manifests) > 0 {
		fmt.Println()
		fmt.Println("Indexed documents:")
		for _, m := range manifests {
			fmt.Printf("  - %s (%d chunks)\n", m.SourcePath, len(m.ChunkIDs))
		}
	}
	return nil
}
