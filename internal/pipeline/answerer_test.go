package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qvidal/aor/internal/answer"
	"github.com/qvidal/aor/internal/questionnaire"
	"github.com/qvidal/aor/internal/storage"
)

// fakeContextRetriever returns one canned chunk, failing for questions
// containing failOn.
type fakeContextRetriever struct {
	failOn string
}

func (f *fakeContextRetriever) Retrieve(ctx context.Context, question string) ([]storage.ScoredChunk, error) {
	if f.failOn != "" && strings.Contains(question, f.failOn) {
		return nil, errors.New("vector store unreachable")
	}
	return []storage.ScoredChunk{{
		ChunkID:    "chunk-1",
		SourcePath: "kb/sla.md",
		Text:       "SLA de 4 heures.",
		Score:      0.9,
	}}, nil
}

// fakeGenerator echoes the question back as the response, failing for
// questions containing failOn.
type fakeGenerator struct {
	failOn string
}

func (f *fakeGenerator) Generate(ctx context.Context, q questionnaire.Question, chunks []storage.ScoredChunk) (answer.Answer, error) {
	if f.failOn != "" && strings.Contains(q.Text, f.failOn) {
		return answer.Answer{}, fmt.Errorf("%w: après plusieurs tentatives", answer.ErrGenerationFormat)
	}
	sources := make([]string, 0, len(chunks))
	for _, c := range chunks {
		sources = append(sources, c.ChunkID)
	}
	return answer.Answer{
		QuestionID: q.ID,
		Response:   "Réponse à : " + q.Text,
		Confidence: 0.8,
		Sources:    sources,
	}, nil
}

func testQuestions(texts ...string) []questionnaire.Question {
	questions := make([]questionnaire.Question, len(texts))
	for i, text := range texts {
		questions[i] = questionnaire.Question{ID: i + 2, Text: text}
	}
	return questions
}

func TestAnswerAll_AllQuestionsAnswered(t *testing.T) {
	answerer := NewAnswerer(&fakeContextRetriever{}, &fakeGenerator{}, 3, nil)

	result, err := answerer.AnswerAll(context.Background(), testQuestions(
		"Quel est votre SLA ?",
		"Où sont hébergées les données ?",
		"Quelle est votre certification ISO ?",
	))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Answered)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, result.Records, 3)
	for i, rec := range result.Records {
		assert.Equal(t, i+2, rec.QuestionID, "records must stay in questionnaire order")
		assert.Empty(t, rec.Err)
		assert.Equal(t, []string{"chunk-1"}, rec.Sources)
	}
}

func TestAnswerAll_RetrievalFailureMarksOnlyItsRecord(t *testing.T) {
	answerer := NewAnswerer(&fakeContextRetriever{failOn: "hébergées"}, &fakeGenerator{}, 2, nil)

	result, err := answerer.AnswerAll(context.Background(), testQuestions(
		"Quel est votre SLA ?",
		"Où sont hébergées les données ?",
	))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Answered)
	assert.Equal(t, 1, result.Failed)
	assert.Empty(t, result.Records[0].Err)
	assert.Contains(t, result.Records[1].Err, "vector store unreachable")
	assert.Empty(t, result.Records[1].Response)
}

func TestAnswerAll_GenerationFailureMarksOnlyItsRecord(t *testing.T) {
	answerer := NewAnswerer(&fakeContextRetriever{}, &fakeGenerator{failOn: "ISO"}, 2, nil)

	result, err := answerer.AnswerAll(context.Background(), testQuestions(
		"Quelle est votre certification ISO ?",
		"Quel est votre SLA ?",
	))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Answered)
	assert.Equal(t, 1, result.Failed)
	assert.NotEmpty(t, result.Records[0].Err)
	assert.Empty(t, result.Records[1].Err)
}

func TestAnswerAll_CancelledContextMarksUnstartedQuestions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	answerer := NewAnswerer(&fakeContextRetriever{}, &fakeGenerator{}, 1, nil)
	result, err := answerer.AnswerAll(ctx, testQuestions(
		"Quel est votre SLA ?",
		"Où sont hébergées les données ?",
	))
	require.Error(t, err)
	require.NotNil(t, result)

	require.Len(t, result.Records, 2)
	for _, rec := range result.Records {
		assert.NotEmpty(t, rec.Err)
	}
	assert.Equal(t, 2, result.Failed)
}

func TestAnswerAll_EmptyQuestionnaire(t *testing.T) {
	answerer := NewAnswerer(&fakeContextRetriever{}, &fakeGenerator{}, 2, nil)

	result, err := answerer.AnswerAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Equal(t, 0, result.Answered)
}
