package eval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/hyoka/internal/embedding"
	"github.com/ashita-ai/hyoka/internal/model"
	"github.com/ashita-ai/hyoka/internal/storage"
	"github.com/ashita-ai/hyoka/internal/telemetry"
)

// DefaultBatchSize bounds how many ungraded sessions one run picks up.
const DefaultBatchSize = 10

// DefaultWorkers bounds concurrent session grading.
const DefaultWorkers = 4

// Evaluator grades ungraded sessions. It is the sole writer of scores; the
// anti-join in the store keeps repeated runs incremental.
type Evaluator struct {
	store    storage.EvalStore
	judge    *Judge
	embedder embedding.Provider
	links    *LinkChecker
	gold     map[string]string
	workers  int
	logger   *slog.Logger

	gradedCounter  metric.Int64Counter
	skippedCounter metric.Int64Counter
	failureCounter metric.Int64Counter
}

// New creates an evaluator. A nil gold standard falls back to the defaults;
// workers of zero or less falls back to DefaultWorkers.
func New(store storage.EvalStore, judge *Judge, embedder embedding.Provider, links *LinkChecker, gold map[string]string, workers int, logger *slog.Logger) *Evaluator {
	if gold == nil {
		gold = DefaultGoldStandard()
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}

	meter := telemetry.Meter("hyoka/eval")
	gradedCounter, _ := meter.Int64Counter("eval.sessions_graded",
		metric.WithDescription("Sessions graded and persisted"))
	skippedCounter, _ := meter.Int64Counter("eval.sessions_skipped",
		metric.WithDescription("Sessions skipped as unreconstructable"))
	failureCounter, _ := meter.Int64Counter("eval.judge_failures",
		metric.WithDescription("Metric computations that failed closed"))

	return &Evaluator{
		store:          store,
		judge:          judge,
		embedder:       embedder,
		links:          links,
		gold:           gold,
		workers:        workers,
		logger:         logger,
		gradedCounter:  gradedCounter,
		skippedCounter: skippedCounter,
		failureCounter: failureCounter,
	}
}

// RunOnce grades up to batchLimit ungraded sessions and returns how many
// were persisted. Sessions are independent, so they grade concurrently up
// to the worker limit; a failing session never aborts the rest.
func (e *Evaluator) RunOnce(ctx context.Context, batchLimit int) (int, error) {
	if batchLimit <= 0 {
		batchLimit = DefaultBatchSize
	}

	sessions, err := e.store.UngradedSessions(ctx, batchLimit)
	if err != nil {
		return 0, fmt.Errorf("eval: fetch ungraded sessions: %w", err)
	}
	if len(sessions) == 0 {
		e.logger.Info("no ungraded sessions")
		return 0, nil
	}
	e.logger.Info("grading sessions", "count", len(sessions))

	var graded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, trace := range sessions {
		g.Go(func() error {
			if e.gradeSession(gctx, trace) {
				graded.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return int(graded.Load()), nil
}

// gradeSession reconstructs one conversation, runs all metrics concurrently,
// and persists the scores atomically. Reports whether scores were written.
func (e *Evaluator) gradeSession(ctx context.Context, trace storage.SessionTrace) bool {
	log := e.logger.With("session_id", trace.SessionID)

	conv, err := Reconstruct(trace)
	if err != nil {
		// Left ungraded on purpose: a future run retries once the trace
		// is complete.
		log.Warn("skipping unreconstructable session", "error", err)
		e.skippedCounter.Add(ctx, 1)
		return false
	}

	var (
		mu     sync.Mutex
		scores []model.Score
	)
	record := func(metricName model.Metric, value float64, reason string) {
		mu.Lock()
		defer mu.Unlock()
		scores = append(scores, model.Score{
			Timestamp: time.Now().UTC(),
			SessionID: conv.SessionID,
			Metric:    metricName,
			Score:     value,
			Reason:    reason,
		})
	}

	// The four metrics are read-only over the same conversation.
	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		e.gradeFaithfulness(ctx, log, conv, record)
	}()
	go func() {
		defer wg.Done()
		e.gradeRelevance(ctx, log, conv, record)
	}()
	go func() {
		defer wg.Done()
		e.gradeSimilarity(ctx, log, conv, record)
	}()
	go func() {
		defer wg.Done()
		value, reason := e.links.Check(ctx, conv.FinalAnswer)
		if value == 0.0 {
			log.Warn("broken url in answer", "reason", reason)
		}
		record(model.MetricURLValidity, value, reason)
	}()
	wg.Wait()

	// Deterministic row order regardless of which metric finished first.
	sort.Slice(scores, func(i, j int) bool { return scores[i].Metric < scores[j].Metric })

	// All-or-nothing: any persisted row hides the session from future runs,
	// so partial writes would silently lose metric coverage.
	if err := e.store.InsertScores(ctx, conv.SessionID, scores); err != nil {
		log.Error("persist scores failed", "error", err)
		return false
	}
	e.gradedCounter.Add(ctx, 1)
	log.Info("session graded", "metrics", len(scores))
	return true
}

// gradeFaithfulness asks the hallucination question and stores the
// complement: a detected hallucination scores 0.0.
func (e *Evaluator) gradeFaithfulness(ctx context.Context, log *slog.Logger, conv model.Conversation, record func(model.Metric, float64, string)) {
	verdict, err := e.judge.Ask(ctx, faithfulnessTask, conv.UserQuestion, conv.FinalAnswer, conv.ToolContext)
	if err != nil {
		log.Warn("faithfulness judge failed", "error", err)
		e.failureCounter.Add(ctx, 1)
		record(model.MetricFaithfulness, 0.0, fmt.Sprintf("judge failed: %v", err))
		return
	}

	score := 1.0
	if verdict.Value == 1.0 {
		score = 0.0
	}
	record(model.MetricFaithfulness, score, e.judge.ReasonTag())
}

func (e *Evaluator) gradeRelevance(ctx context.Context, log *slog.Logger, conv model.Conversation, record func(model.Metric, float64, string)) {
	verdict, err := e.judge.Ask(ctx, relevanceTask, conv.UserQuestion, conv.FinalAnswer, conv.ToolContext)
	if err != nil {
		log.Warn("relevance judge failed", "error", err)
		e.failureCounter.Add(ctx, 1)
		record(model.MetricAnswerRelevance, 0.0, fmt.Sprintf("judge failed: %v", err))
		return
	}
	record(model.MetricAnswerRelevance, verdict.Value, e.judge.ReasonTag())
}

// gradeSimilarity only grades questions with a gold-standard entry; anything
// else is a silent skip, not a zero. Partial coverage is the intended
// policy.
func (e *Evaluator) gradeSimilarity(ctx context.Context, log *slog.Logger, conv model.Conversation, record func(model.Metric, float64, string)) {
	goldAnswer, ok := e.gold[conv.UserQuestion]
	if !ok {
		return
	}

	vecs, err := e.embedder.EmbedBatch(ctx, []string{conv.FinalAnswer, goldAnswer})
	if err != nil || len(vecs) != 2 {
		log.Warn("similarity embedding failed", "error", err)
		e.failureCounter.Add(ctx, 1)
		record(model.MetricSemanticSimilarity, 0.0, fmt.Sprintf("embedding failed: %v", err))
		return
	}

	score := Cosine(vecs[0], vecs[1])
	record(model.MetricSemanticSimilarity, score, fmt.Sprintf("cosine vs gold answer %q", goldAnswer))
}
