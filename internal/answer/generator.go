// Package answer turns a question and its retrieved context into a
// structured, source-attributed answer.
package answer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/qvidal/aor/internal/llm"
	"github.com/qvidal/aor/internal/questionnaire"
	"github.com/qvidal/aor/internal/storage"
)

// ErrGenerationFormat marks an LLM output that could not be coerced into
// the answer schema after the repair retries. Surfaced, never silently
// replaced by a fabricated best-effort answer.
var ErrGenerationFormat = errors.New("generation output format invalid")

// Answer is the structured result for one question. Sources only ever
// contains chunk ids that were present in the generation context.
type Answer struct {
	QuestionID int
	Response   string
	Confidence float64
	Sources    []string
}

// llmAnswer is the JSON schema the model must emit. The French field names
// are the contract with the prompt.
type llmAnswer struct {
	Reponse   string   `json:"reponse"`
	Confiance *float64 `json:"confiance"`
	Sources   []string `json:"sources"`
}

// Generator assembles prompts, calls the model and validates the response
// through a bounded repair loop.
type Generator struct {
	completer  llm.Completer
	maxRetries int
	logger     *slog.Logger
}

// NewGenerator creates a Generator. maxRetries bounds the repair
// re-prompts after the first attempt.
func NewGenerator(completer llm.Completer, maxRetries int, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		completer:  completer,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Generate produces the answer for one question. With an empty context the
// model is still called, framed explicitly as "no matching knowledge": the
// questionnaire row must be filled either way, expecting a low-confidence
// answer rather than no answer.
func (g *Generator) Generate(ctx context.Context, question questionnaire.Question, contextChunks []storage.ScoredChunk) (Answer, error) {
	known := make(map[string]bool, len(contextChunks))
	for _, c := range contextChunks {
		known[c.ChunkID] = true
	}

	prompt := userPrompt(question, contextChunks)
	var lastErr error

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return Answer{}, ctx.Err()
		}

		raw, err := g.completer.Complete(ctx, systemPrompt, prompt)
		if err != nil {
			return Answer{}, err
		}

		parsed, err := parseAnswer(raw)
		if err != nil {
			lastErr = err
			g.logger.Warn("Invalid answer format, re-prompting",
				"question", question.ID, "attempt", attempt+1, "error", err)
			prompt = repairPrompt(question, contextChunks, raw)
			continue
		}

		return Answer{
			QuestionID: question.ID,
			Response:   parsed.Reponse,
			Confidence: *parsed.Confiance,
			Sources:    g.filterSources(question.ID, parsed.Sources, known),
		}, nil
	}

	return Answer{}, fmt.Errorf("%w: after %d attempts: %v", ErrGenerationFormat, g.maxRetries+1, lastErr)
}

// parseAnswer extracts and validates the JSON object from the raw model
// output. Out-of-range confidence is a format failure, not something to
// clamp: a model that cannot respect the schema gets re-prompted.
func parseAnswer(raw string) (*llmAnswer, error) {
	candidate, ok := extractJSON(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON object in output")
	}

	var parsed llmAnswer
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}

	if parsed.Reponse == "" {
		return nil, fmt.Errorf("missing reponse field")
	}
	if parsed.Confiance == nil {
		return nil, fmt.Errorf("missing confiance field")
	}
	if *parsed.Confiance < 0 || *parsed.Confiance > 1 {
		return nil, fmt.Errorf("confiance %g outside [0,1]", *parsed.Confiance)
	}

	return &parsed, nil
}

// filterSources drops ids the model invented. An answer must never cite a
// source it was not given.
func (g *Generator) filterSources(questionID int, sources []string, known map[string]bool) []string {
	kept := make([]string, 0, len(sources))
	for _, id := range sources {
		if known[id] {
			kept = append(kept, id)
			continue
		}
		g.logger.Warn("Dropping source not present in context", "question", questionID, "source", id)
	}
	return kept
}
