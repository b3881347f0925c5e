// Package hyoka is the public API for embedding the traced agent loop and
// the trace evaluator in another program.
//
// Library consumers construct an App and drive it directly:
//
//	app, err := hyoka.New(
//	    hyoka.WithLogger(logger),
//	    hyoka.WithSQLite("traces.db"),
//	    hyoka.WithCompleter(myModelClient),
//	)
//	if err != nil { ... }
//	defer app.Close(ctx)
//
//	res, err := app.Ask(ctx, "Calculate 25 times 4.")
//	graded, err := app.Grade(ctx, 10)
//
// The import graph enforces a strict no-cycle rule: hyoka (root) imports
// internal/*, but internal/* never imports hyoka (root). Public types
// (Message, Completer, Tool, ...) are standalone declarations; adapters to
// the internal interfaces live here because this is the only file that sees
// both sides of the boundary.
package hyoka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/pgvector/pgvector-go"

	"github.com/ashita-ai/hyoka/internal/agent"
	"github.com/ashita-ai/hyoka/internal/config"
	"github.com/ashita-ai/hyoka/internal/embedding"
	"github.com/ashita-ai/hyoka/internal/eval"
	"github.com/ashita-ai/hyoka/internal/oracle"
	"github.com/ashita-ai/hyoka/internal/storage"
	"github.com/ashita-ai/hyoka/internal/storage/memory"
	"github.com/ashita-ai/hyoka/internal/storage/postgres"
	"github.com/ashita-ai/hyoka/internal/storage/sqlite"
	"github.com/ashita-ai/hyoka/internal/telemetry"
	"github.com/ashita-ai/hyoka/internal/tools"
	"github.com/ashita-ai/hyoka/migrations"
)

// Message is one role-tagged chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer produces one completion for a conversation. Implement this to
// plug in a custom model backend.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Embedder turns text into a fixed-length vector. Implement this to plug in
// a custom embedding backend for the similarity metric.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Tool is one callable capability offered to the decision model. Args maps
// argument name to a human-readable type hint.
type Tool struct {
	Name        string
	Description string
	Args        map[string]string
	Run         func(ctx context.Context, args map[string]any) (string, error)
}

// Result is the outcome of one agent session.
type Result struct {
	SessionID string
	Answer    string
	Turns     int
}

// App wires the decision loop and the evaluator over one shared store.
// Construct with New(), tear down with Close().
type App struct {
	cfg          config.Config
	store        storage.Store
	loop         *agent.Loop
	evaluator    *eval.Evaluator
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New initialises the app: loads configuration, connects the store, runs
// migrations where the backend has any, and wires the loop and evaluator.
// It starts no goroutines.
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.Level(),
		}))
	}
	if o.databaseURL != "" {
		cfg.StoreDriver = config.StorePostgres
		cfg.DatabaseURL = o.databaseURL
	}
	if o.sqlitePath != "" {
		cfg.StoreDriver = config.StoreSQLite
		cfg.SQLitePath = o.sqlitePath
	}
	if o.memoryStore {
		cfg.StoreDriver = config.StoreMemory
	}
	if o.turnBudget > 0 {
		cfg.TurnBudget = o.turnBudget
	}
	if o.workers > 0 {
		cfg.EvalWorkers = o.workers
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("hyoka starting", "version", version, "store", cfg.StoreDriver)

	ctx := context.Background()
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		_ = otelShutdown(ctx)
		return nil, err
	}

	registry, err := buildRegistry(o.tools)
	if err != nil {
		_ = store.Close(ctx)
		_ = otelShutdown(ctx)
		return nil, err
	}

	completer := adaptCompleter(o.completer)
	if completer == nil {
		completer = newCompleter(cfg, cfg.AgentModel)
	}
	judgeCompleter := adaptCompleter(o.judgeCompleter)
	if judgeCompleter == nil {
		judgeCompleter = newCompleter(cfg, cfg.JudgeModel)
	}
	embedder := adaptEmbedder(o.embedder)
	if embedder == nil {
		embedder = newEmbedder(cfg, logger)
	}

	gold := o.goldStandard
	if gold == nil {
		gold, err = loadGoldStandard(cfg.GoldStandardPath)
		if err != nil {
			_ = store.Close(ctx)
			_ = otelShutdown(ctx)
			return nil, err
		}
	}

	return &App{
		cfg:          cfg,
		store:        store,
		loop:         agent.New(completer, registry, store, logger, cfg.TurnBudget),
		evaluator:    eval.New(store, eval.NewJudge(judgeCompleter, cfg.JudgeModel), embedder, eval.NewLinkChecker(cfg.LinkCheckTimeout), gold, cfg.EvalWorkers, logger),
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Ask runs one user request through the decision loop.
func (a *App) Ask(ctx context.Context, question string) (Result, error) {
	res, err := a.loop.Run(ctx, question)
	return Result{SessionID: res.SessionID, Answer: res.Answer, Turns: res.Turns}, err
}

// Grade runs one evaluator pass over up to batchLimit ungraded sessions and
// returns how many were graded. A batchLimit of zero or less uses the
// configured default.
func (a *App) Grade(ctx context.Context, batchLimit int) (int, error) {
	if batchLimit <= 0 {
		batchLimit = a.cfg.EvalBatchSize
	}
	return a.evaluator.RunOnce(ctx, batchLimit)
}

// Close releases the store and flushes telemetry.
func (a *App) Close(ctx context.Context) error {
	storeErr := a.store.Close(ctx)
	otelErr := a.otelShutdown(ctx)
	if storeErr != nil {
		return fmt.Errorf("close store: %w", storeErr)
	}
	if otelErr != nil {
		return fmt.Errorf("shutdown telemetry: %w", otelErr)
	}
	return nil
}

// openStore connects the configured backend and fails hard when it is
// unreachable: grading without a working anti-join risks duplicate scores.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if err := db.RunMigrations(ctx, migrations.Postgres()); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("migrate postgres store: %w", err)
		}
		return db, nil
	case config.StoreSQLite:
		db, err := sqlite.New(ctx, cfg.SQLitePath, migrations.SQLite(), logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return db, nil
	case config.StoreMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// newCompleter picks the chat backend from config: explicit provider wins,
// otherwise an API key selects the OpenAI-compatible endpoint and its
// absence falls back to local Ollama.
func newCompleter(cfg config.Config, model string) oracle.Completer {
	switch cfg.OracleProvider {
	case "ollama":
		return oracle.NewOllamaClient(cfg.OllamaURL, model, cfg.OracleTimeout)
	case "openai":
		return oracle.NewOpenAIClient(cfg.OracleBaseURL, cfg.OracleAPIKey, model, cfg.OracleTimeout)
	default:
		if cfg.OracleAPIKey != "" {
			return oracle.NewOpenAIClient(cfg.OracleBaseURL, cfg.OracleAPIKey, model, cfg.OracleTimeout)
		}
		return oracle.NewOllamaClient(cfg.OllamaURL, cfg.OllamaModel, cfg.OracleTimeout)
	}
}

// newEmbedder picks the embedding backend the same way, degrading to zero
// vectors when nothing is configured.
func newEmbedder(cfg config.Config, logger *slog.Logger) embedding.Provider {
	switch cfg.EmbeddingProvider {
	case "ollama":
		return embedding.NewOllamaProvider(cfg.OllamaURL, cfg.OllamaEmbedModel, cfg.EmbeddingDimensions)
	case "openai":
		return embedding.NewOpenAIProvider(cfg.OracleBaseURL, cfg.OracleAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
	case "noop":
		return embedding.NewNoopProvider(cfg.EmbeddingDimensions)
	default:
		if cfg.OracleAPIKey != "" {
			return embedding.NewOpenAIProvider(cfg.OracleBaseURL, cfg.OracleAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
		}
		if cfg.OllamaURL != "" {
			return embedding.NewOllamaProvider(cfg.OllamaURL, cfg.OllamaEmbedModel, cfg.EmbeddingDimensions)
		}
		logger.Warn("no embedding backend configured, similarity scores will be zero")
		return embedding.NewNoopProvider(cfg.EmbeddingDimensions)
	}
}

// loadGoldStandard reads a question→answer JSON object from path, or returns
// the builtin defaults when path is empty.
func loadGoldStandard(path string) (map[string]string, error) {
	if path == "" {
		return eval.DefaultGoldStandard(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gold standard: %w", err)
	}
	gold := map[string]string{}
	if err := json.Unmarshal(data, &gold); err != nil {
		return nil, fmt.Errorf("parse gold standard %s: %w", path, err)
	}
	return gold, nil
}

// buildRegistry converts public tools into a validated registry, falling
// back to the builtin set when none are given.
func buildRegistry(public []Tool) (*tools.Registry, error) {
	if len(public) == 0 {
		return tools.Builtin(), nil
	}
	registry := tools.NewRegistry()
	for _, t := range public {
		if err := registry.Register(tools.Tool{
			Name:        t.Name,
			Description: t.Description,
			Args:        t.Args,
			Run:         t.Run,
		}); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// completerAdapter bridges a public Completer to the internal interface.
type completerAdapter struct{ inner Completer }

func (a completerAdapter) Complete(ctx context.Context, messages []oracle.Message) (string, error) {
	public := make([]Message, len(messages))
	for i, m := range messages {
		public[i] = Message{Role: m.Role, Content: m.Content}
	}
	return a.inner.Complete(ctx, public)
}

func adaptCompleter(c Completer) oracle.Completer {
	if c == nil {
		return nil
	}
	return completerAdapter{inner: c}
}

// embedderAdapter bridges a public Embedder to the internal provider.
type embedderAdapter struct{ inner Embedder }

func (a embedderAdapter) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	vec, err := a.inner.Embed(ctx, text)
	if err != nil {
		return pgvector.Vector{}, err
	}
	return pgvector.NewVector(vec), nil
}

func (a embedderAdapter) EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	vecs := make([]pgvector.Vector, len(texts))
	for i, text := range texts {
		vec, err := a.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (a embedderAdapter) Dimensions() int { return a.inner.Dimensions() }

func adaptEmbedder(e Embedder) embedding.Provider {
	if e == nil {
		return nil
	}
	return embedderAdapter{inner: e}
}
