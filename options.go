package hyoka

import (
	"log/slog"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	logger         *slog.Logger
	version        string
	memoryStore    bool
	databaseURL    string
	sqlitePath     string
	completer      Completer
	judgeCompleter Completer
	embedder       Embedder
	tools          []Tool
	goldStandard   map[string]string
	turnBudget     int
	workers        int
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithMemoryStore keeps traces and scores in process memory. Intended for
// tests and throwaway experiments; nothing survives Close.
func WithMemoryStore() Option {
	return func(o *resolvedOptions) { o.memoryStore = true }
}

// WithDatabaseURL selects the Postgres store and overrides the connection
// string from config (DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithSQLite selects the single-file SQLite store at path.
func WithSQLite(path string) Option {
	return func(o *resolvedOptions) { o.sqlitePath = path }
}

// WithCompleter replaces the auto-detected decision model client.
func WithCompleter(c Completer) Option {
	return func(o *resolvedOptions) { o.completer = c }
}

// WithJudgeCompleter replaces the auto-detected judge model client. If not
// set, the judge shares the decision completer's backend with the judge
// model name from config.
func WithJudgeCompleter(c Completer) Option {
	return func(o *resolvedOptions) { o.judgeCompleter = c }
}

// WithEmbedder replaces the auto-detected embedding provider.
func WithEmbedder(e Embedder) Option {
	return func(o *resolvedOptions) { o.embedder = e }
}

// WithTools replaces the builtin tool set (weather/time/multiply). All
// listed tools are registered in order; duplicate names fail New.
func WithTools(tools ...Tool) Option {
	return func(o *resolvedOptions) { o.tools = tools }
}

// WithGoldStandard replaces the default gold-standard mapping used by the
// similarity metric.
func WithGoldStandard(gold map[string]string) Option {
	return func(o *resolvedOptions) { o.goldStandard = gold }
}

// WithTurnBudget overrides the decision loop's maximum turn count.
func WithTurnBudget(turns int) Option {
	return func(o *resolvedOptions) { o.turnBudget = turns }
}

// WithWorkers overrides the evaluator's concurrent session limit.
func WithWorkers(workers int) Option {
	return func(o *resolvedOptions) { o.workers = workers }
}
