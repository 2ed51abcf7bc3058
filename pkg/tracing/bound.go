package tracing

import (
	"fmt"
	"strings"
)

const (
	// MaxStringLen is the longest string recorded verbatim.
	MaxStringLen = 500
	// MaxArrayLen is the longest array recorded verbatim.
	MaxArrayLen = 10
	// SampleSize is how many leading items are kept from a long array.
	SampleSize = 5
)

// BoundInput returns a copy of v with long strings truncated and long arrays
// replaced by {type, length, sample}. Values that cannot be represented as
// JSON are recorded by their Go type name.
func BoundInput(v any) any {
	g, ok := toGeneric(v)
	if !ok {
		return fmt.Sprintf("<%T>", v)
	}
	return bound(g)
}

func bound(v any) any {
	switch t := v.(type) {
	case string:
		return truncate(t)
	case []any:
		if len(t) > MaxArrayLen {
			sample := make([]any, SampleSize)
			for i := range sample {
				sample[i] = bound(t[i])
			}
			return map[string]any{
				"type":   "array",
				"length": float64(len(t)),
				"sample": sample,
			}
		}
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = bound(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = bound(item)
		}
		return out
	default:
		return v
	}
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= MaxStringLen {
		return s
	}
	var b strings.Builder
	b.WriteString(string(r[:MaxStringLen]))
	fmt.Fprintf(&b, "...[truncated, %d chars total]", len(r))
	return b.String()
}

// countArrays are summed into the result count when present.
var countArrays = []string{"tracks", "albums", "results", "found"}

// countFields are used when none of countArrays is present.
var countFields = []string{"totalFound", "resultCount"}

// Summarize extracts a short summary and a result count from known output shapes.
func Summarize(result any) (string, int) {
	g, ok := toGeneric(result)
	if !ok {
		return "completed", 0
	}
	m, ok := g.(map[string]any)
	if !ok {
		if arr, isArr := g.([]any); isArr {
			return fmt.Sprintf("returned %d items", len(arr)), len(arr)
		}
		return "completed", 0
	}

	count, matched := 0, []string(nil)
	for _, key := range countArrays {
		if arr, ok := m[key].([]any); ok {
			count += len(arr)
			matched = append(matched, fmt.Sprintf("%d %s", len(arr), key))
		}
	}
	if matched != nil {
		return "returned " + strings.Join(matched, ", "), count
	}
	for _, key := range countFields {
		if n, ok := m[key].(float64); ok {
			return fmt.Sprintf("%s=%d", key, int(n)), int(n)
		}
	}
	return "completed", 0
}
