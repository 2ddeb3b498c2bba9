// Package explain produces a short natural-language description of a
// statement and its results. The generator sees at most three simplified
// records, whatever the size of the result set.
package explain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brunobiangulo/gocypher/graph"
	"github.com/brunobiangulo/gocypher/llm"
	"github.com/brunobiangulo/gocypher/prompt"
)

// SampleSize is the number of records shown to the generator.
const SampleSize = 3

const unknownType = "Unknown"

// SampleOf reduces a result set to its total count and the first
// SampleSize records, with node and relationship values cut down to
// {name?, title?, _type}. A nil or empty result set yields {0, []}.
func SampleOf(rs *graph.ResultSet) graph.Sample {
	if rs == nil || rs.Records == nil {
		return graph.Sample{TotalRecords: 0, Sample: []map[string]any{}}
	}

	n := min(len(rs.Records), SampleSize)
	sample := make([]map[string]any, 0, n)
	for _, rec := range rs.Records[:n] {
		simplified := make(map[string]any, len(rec))
		for key, v := range rec {
			simplified[key] = simplify(v)
		}
		sample = append(sample, simplified)
	}
	return graph.Sample{TotalRecords: len(rs.Records), Sample: sample}
}

func simplify(v any) any {
	switch x := v.(type) {
	case *graph.Node:
		if x == nil {
			return nil
		}
		return reduce(x.Properties, x.Labels)
	case *graph.Relationship:
		if x == nil {
			return nil
		}
		return reduce(x.Properties, nil)
	case graph.Path:
		out := make([]any, 0, len(x.Nodes))
		for _, n := range x.Nodes {
			out = append(out, simplify(n))
		}
		return out
	case map[string]any:
		// Entities decoded from JSON carry a "properties" object.
		props, ok := x["properties"].(map[string]any)
		if !ok {
			return x
		}
		return reduce(props, labelsOf(x["labels"]))
	default:
		return v
	}
}

func reduce(props map[string]any, labels []string) map[string]any {
	out := map[string]any{}
	for _, key := range []string{"name", "title"} {
		if v, ok := props[key]; ok && present(v) {
			out[key] = v
		}
	}
	if len(labels) > 0 {
		out["_type"] = labels[0]
	} else {
		out["_type"] = unknownType
	}
	return out
}

func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	default:
		return true
	}
}

func labelsOf(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, l := range x {
			if s, ok := l.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// FallbackText is the templated explanation used when generation fails.
func FallbackText(statement string, rs *graph.ResultSet) string {
	return fmt.Sprintf("The query \"%s\" returned %d records.", statement, rs.Len())
}

// Summary is the result of Summarize. Generated is false when the
// templated fallback was used.
type Summary struct {
	Text      string
	Generated bool
}

// Summarizer asks a provider for an explanation and falls back to
// FallbackText on any failure.
type Summarizer struct {
	Provider llm.Provider
	Timeout  time.Duration
}

// Summarize never fails. An empty generator response counts as a failure.
func (s *Summarizer) Summarize(ctx context.Context, statement string, rs *graph.ResultSet, request string) Summary {
	req := prompt.Explanation(statement, SampleOf(rs), request)

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = llm.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := llm.Generate(ctx, s.Provider, req.System, req.User)
	if err != nil {
		slog.Warn("explain: generation failed, using fallback", "error", err)
		return Summary{Text: FallbackText(statement, rs)}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		slog.Warn("explain: empty explanation, using fallback")
		return Summary{Text: FallbackText(statement, rs)}
	}
	return Summary{Text: text, Generated: true}
}
