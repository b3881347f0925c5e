package eval

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/hyoka/internal/model"
	"github.com/ashita-ai/hyoka/internal/oracle"
	"github.com/ashita-ai/hyoka/internal/storage/memory"
)

// funcCompleter routes the judge prompt to a handler, so tests can answer
// the faithfulness and relevance tasks differently.
type funcCompleter func(prompt string) (string, error)

func (f funcCompleter) Complete(_ context.Context, messages []oracle.Message) (string, error) {
	return f(messages[len(messages)-1].Content)
}

// stubEmbedder returns canned vectors per input text.
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return pgvector.Vector{}, err
	}
	return vecs[0], nil
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([]pgvector.Vector, error) {
	if s.err != nil {
		return nil, s.err
	}
	vecs := make([]pgvector.Vector, len(texts))
	for i, text := range texts {
		v, ok := s.vectors[text]
		if !ok {
			v = []float32{0, 1}
		}
		vecs[i] = pgvector.NewVector(v)
	}
	return vecs, nil
}

func (s *stubEmbedder) Dimensions() int { return 2 }

// honestJudge answers "no hallucination" and "relevant".
func honestJudge(prompt string) (string, error) {
	if strings.Contains(prompt, "Hallucinated") {
		return "0", nil
	}
	return "1", nil
}

func seedSession(t *testing.T, store *memory.Store, sessionID, question, answer string) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().UTC()
	events := []model.Event{
		{Type: model.EventUserInput, Content: question},
		{Type: model.EventLLMEnd, Content: answer},
		{Type: model.EventFinalAnswer, Content: answer},
	}
	for i, e := range events {
		e.SessionID = sessionID
		e.Timestamp = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, store.AppendEvent(ctx, e))
	}
}

func newEvaluator(store *memory.Store, complete funcCompleter, embedder *stubEmbedder) *Evaluator {
	return New(store, NewJudge(complete, "test-model"), embedder,
		NewLinkChecker(time.Second), nil, 2, slog.New(slog.DiscardHandler))
}

func TestRunOnceGradesAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedSession(t, store, "sess_gold", "Calculate 25 times 4.", "100")

	embedder := &stubEmbedder{vectors: map[string][]float32{"100": {1, 0}}}
	e := newEvaluator(store, honestJudge, embedder)

	graded, err := e.RunOnce(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, graded)

	scores, err := store.ScoresBySession(ctx, "sess_gold")
	require.NoError(t, err)
	require.Len(t, scores, 4)

	byMetric := map[model.Metric]model.Score{}
	for _, s := range scores {
		byMetric[s.Metric] = s
	}
	assert.InDelta(t, 1.0, byMetric[model.MetricFaithfulness].Score, 1e-9)
	assert.InDelta(t, 1.0, byMetric[model.MetricAnswerRelevance].Score, 1e-9)
	assert.InDelta(t, 1.0, byMetric[model.MetricSemanticSimilarity].Score, 1e-9)
	assert.InDelta(t, 1.0, byMetric[model.MetricURLValidity].Score, 1e-9)
	assert.Equal(t, "Auto-graded by test-model", byMetric[model.MetricFaithfulness].Reason)

	// Second run with no new traces grades nothing.
	graded, err = e.RunOnce(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, graded)
}

func TestFaithfulnessInversion(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedSession(t, store, "sess_halluc", "What is the weather in Tokyo?", "It is 80 F and sunny in Tokyo.")

	hallucinating := funcCompleter(func(prompt string) (string, error) {
		if strings.Contains(prompt, "Hallucinated") {
			return "1", nil // judge detects a hallucination
		}
		return "1", nil
	})
	e := newEvaluator(store, hallucinating, &stubEmbedder{})

	_, err := e.RunOnce(ctx, 10)
	require.NoError(t, err)

	scores, _ := store.ScoresBySession(ctx, "sess_halluc")
	for _, s := range scores {
		if s.Metric == model.MetricFaithfulness {
			assert.Zero(t, s.Score, "detected hallucination must store faithfulness 0.0")
		}
		if s.Metric == model.MetricAnswerRelevance {
			assert.InDelta(t, 1.0, s.Score, 1e-9, "relevance is stored uninverted")
		}
	}
}

func TestSimilaritySkippedWithoutGoldKey(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedSession(t, store, "sess_nogold", "Tell me a joke.", "I cannot answer that")

	e := newEvaluator(store, honestJudge, &stubEmbedder{})
	graded, err := e.RunOnce(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, graded)

	scores, _ := store.ScoresBySession(ctx, "sess_nogold")
	require.Len(t, scores, 3)
	for _, s := range scores {
		assert.NotEqual(t, model.MetricSemanticSimilarity, s.Metric)
	}
}

func TestJudgeFailureFailsClosed(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedSession(t, store, "sess_judgedown", "Calculate 7 times 7.", "49")

	down := funcCompleter(func(string) (string, error) {
		return "", errors.New("oracle unavailable")
	})
	e := newEvaluator(store, down, &stubEmbedder{})

	graded, err := e.RunOnce(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, graded, "judge failure must not lose the session")

	scores, _ := store.ScoresBySession(ctx, "sess_judgedown")
	for _, s := range scores {
		switch s.Metric {
		case model.MetricFaithfulness, model.MetricAnswerRelevance:
			assert.Zero(t, s.Score)
			assert.Contains(t, s.Reason, "judge failed")
		}
	}
}

func TestEmbeddingFailureFailsClosed(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedSession(t, store, "sess_embeddown", "Calculate 25 times 4.", "100")

	e := newEvaluator(store, honestJudge, &stubEmbedder{err: errors.New("model not loaded")})
	_, err := e.RunOnce(ctx, 10)
	require.NoError(t, err)

	scores, _ := store.ScoresBySession(ctx, "sess_embeddown")
	var similarity *model.Score
	for i, s := range scores {
		if s.Metric == model.MetricSemanticSimilarity {
			similarity = &scores[i]
		}
	}
	require.NotNil(t, similarity)
	assert.Zero(t, similarity.Score)
	assert.Contains(t, similarity.Reason, "embedding failed")
}

func TestUnreconstructableSessionLeftUngraded(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	// Trace with no user_input: not gradable yet.
	require.NoError(t, store.AppendEvent(ctx, model.Event{
		Timestamp: time.Now().UTC(), SessionID: "sess_broken",
		Type: model.EventLLMEnd, Content: "orphan",
	}))

	e := newEvaluator(store, honestJudge, &stubEmbedder{})
	graded, err := e.RunOnce(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, graded)

	// Still visible to a future run.
	pending, err := store.UngradedSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "sess_broken", pending[0].SessionID)
}

func TestRunOnceRespectsBatchLimit(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedSession(t, store, "sess_1", "q1", "a1")
	seedSession(t, store, "sess_2", "q2", "a2")
	seedSession(t, store, "sess_3", "q3", "a3")

	e := newEvaluator(store, honestJudge, &stubEmbedder{})
	graded, err := e.RunOnce(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, graded)

	graded, err = e.RunOnce(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, graded)
}
