package hyoka

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptCompleter replays canned responses through the public Completer
// interface. Judge metrics call it concurrently, hence the mutex.
type scriptCompleter struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func (c *scriptCompleter) Complete(_ context.Context, _ []Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls >= len(c.responses) {
		return `{"tool": null, "message": "I cannot answer that"}`, nil
	}
	r := c.responses[c.calls]
	c.calls++
	return r, nil
}

// unitEmbedder maps every text to the same unit vector, so any gold
// comparison scores 1.0.
type unitEmbedder struct{}

func (unitEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (unitEmbedder) Dimensions() int { return 2 }

func newTestApp(t *testing.T, completer Completer, extra ...Option) *App {
	t.Helper()
	opts := append([]Option{
		WithMemoryStore(),
		WithLogger(slog.New(slog.DiscardHandler)),
		WithCompleter(completer),
		WithJudgeCompleter(&scriptCompleter{responses: []string{"0"}}),
		WithEmbedder(unitEmbedder{}),
	}, extra...)

	app, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func TestAskThenGradeEndToEnd(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, &scriptCompleter{responses: []string{
		`{"tool": "multiply", "arguments": {"a": 25, "b": 4}}`,
		`{"tool": null, "message": "100"}`,
	}})

	res, err := app.Ask(ctx, "Calculate 25 times 4.")
	require.NoError(t, err)
	assert.Equal(t, "100", res.Answer)
	assert.True(t, strings.HasPrefix(res.SessionID, "sess_"))

	graded, err := app.Grade(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, graded)

	// Nothing new to grade on the second pass.
	graded, err = app.Grade(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, graded)
}

func TestWithToolsReplacesBuiltins(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, &scriptCompleter{responses: []string{
		`{"tool": "echo", "arguments": {"text": "hi"}}`,
		`{"tool": null, "message": "hi"}`,
	}}, WithTools(Tool{
		Name:        "echo",
		Description: "Repeats the input text.",
		Args:        map[string]string{"text": "string"},
		Run: func(_ context.Context, args map[string]any) (string, error) {
			return args["text"].(string), nil
		},
	}))

	res, err := app.Ask(ctx, "Say hi.")
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Answer)
}

func TestWithToolsRejectsDuplicates(t *testing.T) {
	tool := Tool{
		Name: "dup",
		Args: map[string]string{},
		Run:  func(context.Context, map[string]any) (string, error) { return "", nil },
	}
	_, err := New(
		WithMemoryStore(),
		WithLogger(slog.New(slog.DiscardHandler)),
		WithTools(tool, tool),
	)
	require.Error(t, err)
}

func TestWithTurnBudget(t *testing.T) {
	ctx := context.Background()
	looping := &scriptCompleter{responses: []string{
		`{"tool": "get_time", "arguments": {"timezone": "PST"}}`,
		`{"tool": "get_time", "arguments": {"timezone": "PST"}}`,
		`{"tool": "get_time", "arguments": {"timezone": "PST"}}`,
	}}
	app := newTestApp(t, looping, WithTurnBudget(2))

	_, err := app.Ask(ctx, "Time in PST now.")
	require.Error(t, err)
	assert.Equal(t, 2, looping.calls)
}
