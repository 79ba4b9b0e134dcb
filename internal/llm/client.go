// Package llm calls the configured OpenAI-compatible chat endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Completer is the only capability answer generation needs from a language
// model: prompt in, free-form text out.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client implements Completer against an OpenAI-compatible chat completion
// endpoint such as LM Studio.
type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
}

// NewClient builds the chat client. endpoint is the API base URL
// (e.g. http://localhost:1234/v1); local servers accept any API key.
func NewClient(endpoint, model string, maxTokens int, temperature float64, timeout time.Duration) *Client {
	opts := []option.RequestOption{option.WithBaseURL(endpoint)}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	} else {
		opts = append(opts, option.WithAPIKey("not-needed"))
	}

	client := openai.NewClient(opts...)
	return &Client{
		client:      &client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     timeout,
	}
}

// Complete sends one chat completion request. Transient failures (rate
// limit, server error, per-attempt timeout) retry with exponential backoff
// before the error surfaces to the caller.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	var content string

	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.client.Chat.Completions.New(attemptCtx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(user),
			},
			Model:       openai.ChatModel(c.model),
			MaxTokens:   openai.Int(int64(c.maxTokens)),
			Temperature: openai.Float(c.temperature),
		})
		if err != nil {
			if isRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("completion returned no choices"))
		}
		content = resp.Choices[0].Message.Content
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 15 * time.Second
	b.MaxElapsedTime = 2 * time.Minute

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return content, nil
}

func isRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return errors.Is(err, context.DeadlineExceeded)
}
