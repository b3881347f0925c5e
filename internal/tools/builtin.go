package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Builtin returns a registry with the stock tool set: weather lookup, time
// lookup, and integer multiplication.
func Builtin() *Registry {
	r := NewRegistry()
	r.MustRegister(GetWeather())
	r.MustRegister(GetTime())
	r.MustRegister(Multiply())
	return r
}

// GetWeather reports canned weather for a small set of known cities and
// "Unknown location" for everything else. The unknown case is deliberate:
// it exercises how the agent handles a tool that cannot help.
func GetWeather() Tool {
	return Tool{
		Name:        "get_weather",
		Description: "Checks weather for a city.",
		Args:        map[string]string{"city": "string"},
		Run: func(_ context.Context, args map[string]any) (string, error) {
			city := strings.ToLower(stringArg(args, "city"))
			switch {
			case strings.Contains(city, "dallas"):
				return "75 F, Sunny", nil
			case strings.Contains(city, "new york"):
				return "65 F, Cold", nil
			default:
				return "Unknown location", nil
			}
		},
	}
}

// GetTime reports the current wall-clock time labelled with the requested
// timezone.
func GetTime() Tool {
	return Tool{
		Name:        "get_time",
		Description: "Checks current time for a timezone.",
		Args:        map[string]string{"timezone": "string"},
		Run: func(_ context.Context, args map[string]any) (string, error) {
			tz := stringArg(args, "timezone")
			now := time.Now().Format("15:04:05")
			return fmt.Sprintf("The current time in %s is %s", tz, now), nil
		},
	}
}

// Multiply multiplies two integers.
func Multiply() Tool {
	return Tool{
		Name:        "multiply",
		Description: "Multiplies two numbers.",
		Args:        map[string]string{"a": "integer", "b": "integer"},
		Run: func(_ context.Context, args map[string]any) (string, error) {
			a, err := intArg(args, "a")
			if err != nil {
				return "", err
			}
			b, err := intArg(args, "b")
			if err != nil {
				return "", err
			}
			return strconv.FormatInt(a*b, 10), nil
		},
	}
}

// stringArg coerces an argument to a string. Non-string values are rendered
// with fmt so the tool still gets something usable.
func stringArg(args map[string]any, name string) string {
	v, ok := args[name]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// intArg coerces an argument to an integer. JSON decoding produces float64
// for all numbers, and models sometimes quote them.
func intArg(args map[string]any, name string) (int64, error) {
	switch v := args[name].(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("argument %q must be an integer, got %v", name, v)
		}
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("argument %q must be an integer, got %q", name, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("argument %q must be an integer, got %T", name, v)
	}
}
