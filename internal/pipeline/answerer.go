package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qvidal/aor/internal/answer"
	"github.com/qvidal/aor/internal/questionnaire"
	"github.com/qvidal/aor/internal/storage"
)

// ContextRetriever produces the ranked knowledge context for a question.
type ContextRetriever interface {
	Retrieve(ctx context.Context, question string) ([]storage.ScoredChunk, error)
}

// AnswerGenerator produces the structured answer for a question and its
// context.
type AnswerGenerator interface {
	Generate(ctx context.Context, question questionnaire.Question, contextChunks []storage.ScoredChunk) (answer.Answer, error)
}

// AnswerResult is the outcome of one questionnaire run. Records holds one
// entry per question, in questionnaire order; failed questions carry their
// error marker instead of an answer.
type AnswerResult struct {
	Records  []questionnaire.Record
	Answered int
	Failed   int
	Duration time.Duration
}

// Answerer runs the per-question flow over a whole questionnaire.
type Answerer struct {
	retriever ContextRetriever
	generator AnswerGenerator
	workers   int
	logger    *slog.Logger
}

// NewAnswerer creates an answering pipeline. workers bounds question-level
// parallelism to respect LLM endpoint rate limits.
func NewAnswerer(retriever ContextRetriever, generator AnswerGenerator, workers int, logger *slog.Logger) *Answerer {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{
		retriever: retriever,
		generator: generator,
		workers:   workers,
		logger:    logger,
	}
}

// AnswerAll processes every question independently: one failure marks its
// own record and the batch carries on. On cancellation, in-flight
// questions finish, unstarted ones are marked, and the records produced so
// far are preserved for the writer.
func (p *Answerer) AnswerAll(ctx context.Context, questions []questionnaire.Question) (*AnswerResult, error) {
	start := time.Now()
	result := &AnswerResult{Records: make([]questionnaire.Record, len(questions))}

	p.logger.Info("Answering questionnaire", "questions", len(questions), "workers", p.workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, q := range questions {
		if gctx.Err() != nil {
			result.Records[i] = questionnaire.Record{
				QuestionID: q.ID,
				Err:        "cancelled before processing",
			}
			continue
		}

		g.Go(func() error {
			result.Records[i] = p.answerOne(gctx, q)
			return nil
		})
	}

	waitErr := g.Wait()

	for _, rec := range result.Records {
		if rec.Err == "" {
			result.Answered++
		} else {
			result.Failed++
		}
	}
	result.Duration = time.Since(start)

	p.logger.Info("Questionnaire complete",
		"answered", result.Answered,
		"failed", result.Failed,
		"duration", result.Duration,
	)

	if waitErr != nil {
		return result, waitErr
	}
	return result, ctx.Err()
}

// answerOne runs retrieval and generation for a single question, folding
// any failure into the record's error marker.
func (p *Answerer) answerOne(ctx context.Context, q questionnaire.Question) questionnaire.Record {
	chunks, err := p.retriever.Retrieve(ctx, q.Text)
	if err != nil {
		p.logger.Warn("Retrieval failed", "question", q.ID, "error", err)
		return questionnaire.Record{QuestionID: q.ID, Err: err.Error()}
	}

	a, err := p.generator.Generate(ctx, q, chunks)
	if err != nil {
		p.logger.Warn("Generation failed", "question", q.ID, "error", err)
		return questionnaire.Record{QuestionID: q.ID, Err: err.Error()}
	}

	p.logger.Info("Answered question", "question", q.ID, "confidence", a.Confidence, "sources", len(a.Sources))
	return questionnaire.Record{
		QuestionID: q.ID,
		Response:   a.Response,
		Confidence: a.Confidence,
		Sources:    a.Sources,
	}
}
