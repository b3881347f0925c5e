// Package tools defines the agent's tool registry and dispatch.
//
// The registry is the single place tools are declared. The system prompt
// shown to the decision model is generated from it, so the advertised tool
// list can never drift from what dispatch actually accepts.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// dispatch error observations. These are returned to the decision model as
// tool output, not as Go errors: a bad tool call is a turn the model gets
// to recover from, not a crashed session.
const (
	ObservationUnknownTool = "Error: Unknown Tool"
)

// Tool is a single callable capability. Args maps argument name to a
// human-readable type hint shown in the system prompt.
type Tool struct {
	Name        string
	Description string
	Args        map[string]string
	Run         func(ctx context.Context, args map[string]any) (string, error)
}

// Registry holds tools in registration order.
type Registry struct {
	tools  []Tool
	byName map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: map[string]int{}}
}

// Register adds a tool. Names must be unique and tools must be runnable.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tools: register: empty name")
	}
	if t.Run == nil {
		return fmt.Errorf("tools: register %s: nil run func", t.Name)
	}
	if _, exists := r.byName[t.Name]; exists {
		return fmt.Errorf("tools: register %s: already registered", t.Name)
	}
	r.byName[t.Name] = len(r.tools)
	r.tools = append(r.tools, t)
	return nil
}

// MustRegister panics on registration failure. For static tool sets wired
// at startup.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name
	}
	return names
}

// Lookup returns the tool by name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

// Dispatch runs the named tool and returns its observation string. Every
// failure mode maps to a deterministic observation so the decision model
// sees the same text for the same mistake:
//
//   - unknown tool name: "Error: Unknown Tool"
//   - missing arguments: "Error: missing arguments: a, b"
//   - tool error or panic: "Error: <message>"
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) string {
	tool, ok := r.Lookup(name)
	if !ok {
		return ObservationUnknownTool
	}

	var missing []string
	for arg := range tool.Args {
		if _, present := args[arg]; !present {
			missing = append(missing, arg)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Sprintf("Error: missing arguments: %s", strings.Join(missing, ", "))
	}

	out, err := runSafely(ctx, tool, args)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return out
}

// runSafely converts a tool panic into an error. One misbehaving tool must
// not take down the agent process.
func runSafely(ctx context.Context, tool Tool, args map[string]any) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool %s panicked: %v", tool.Name, rec)
		}
	}()
	return tool.Run(ctx, args)
}

// SystemPrompt renders the instruction block for the decision model: the
// numbered tool list plus the JSON output protocol.
func (r *Registry) SystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a factual assistant.\n")
	b.WriteString("You have access to the following tools:\n\n")

	for i, t := range r.tools {
		fmt.Fprintf(&b, "%d. function: %s\n", i+1, t.Name)
		fmt.Fprintf(&b, "   description: %s\n", t.Description)
		b.WriteString("   arguments: {")
		argNames := make([]string, 0, len(t.Args))
		for arg := range t.Args {
			argNames = append(argNames, arg)
		}
		sort.Strings(argNames)
		for j, arg := range argNames {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%q: %q", arg, t.Args[arg])
		}
		b.WriteString("}\n\n")
	}

	b.WriteString(`RULES:
- You must output valid JSON and nothing else.
- To call a tool, output {"tool": "<name>", "arguments": {...}}.
- To answer the user directly, output {"tool": null, "message": "<answer>"}.
- If a tool returns "Unknown", state strictly "Unknown".
- Do not add fluff, opinions, or external facts.
- Refuse questions about history, general knowledge, or writing.`)
	return b.String()
}
