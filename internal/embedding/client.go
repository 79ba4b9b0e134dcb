// Package embedding converts text to fixed-dimension vectors through an
// OpenAI-compatible embeddings API.
package embedding

import (
	"errors"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrEmbeddingProvider marks a failed or malformed remote embedding call.
// A chunk whose embedding failed never reaches the index silently.
var ErrEmbeddingProvider = errors.New("embedding provider error")

// Client wraps the OpenAI client used for embedding generation.
type Client struct {
	client *openai.Client
}

// NewClient creates the embeddings client. With a baseURL the client talks
// to a local OpenAI-compatible server (LM Studio, Ollama) and the API key
// is optional; against api.openai.com OPENAI_API_KEY is required.
func NewClient(baseURL string) (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")

	var opts []option.RequestOption
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
		if apiKey == "" {
			// Local servers ignore the key but the SDK requires one.
			opts = append(opts, option.WithAPIKey("not-needed"))
		}
	} else if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	client := openai.NewClient(opts...)
	return &Client{client: &client}, nil
}
