package eval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/gocypher"
	"github.com/brunobiangulo/gocypher/llm"
	"github.com/brunobiangulo/gocypher/schema"
)

// scriptedProvider answers with the reply whose key occurs in the user
// message, or with err when nothing matches.
type scriptedProvider struct {
	replies map[string]string
	err     error
}

func (p *scriptedProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	user := req.Messages[len(req.Messages)-1].Content
	for key, reply := range p.replies {
		if strings.Contains(user, key) {
			return &llm.ChatResponse{Content: reply}, nil
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return &llm.ChatResponse{Content: "MATCH (n) RETURN n LIMIT 100"}, nil
}

func (p *scriptedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, llm.ErrEmbeddingUnsupported
}

func newEngine(t *testing.T, p llm.Provider) gocypher.Engine {
	t.Helper()
	cfg := gocypher.DefaultConfig()
	cfg.LLM = llm.Config{Provider: "openai", Model: "gpt-4"}
	cfg.DisableStore = true
	cfg.Timeout = time.Second
	e, err := gocypher.NewWithProvider(cfg, p)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestBundledDatasets(t *testing.T) {
	for _, ds := range AllDatasets() {
		t.Run(ds.Name, func(t *testing.T) {
			_, ok := schema.Sample(ds.Database)
			require.True(t, ok, "dataset targets a bundled sample")
			require.NotEmpty(t, ds.Tests)
			for i, tc := range ds.Tests {
				assert.NotEmpty(t, tc.Request, "test %d", i)
				assert.NotEmpty(t, tc.ExpectedFragments, "test %d", i)
				assert.NotEmpty(t, tc.Category, "test %d", i)
			}
		})
	}
}

func TestComputeFragmentHit(t *testing.T) {
	tests := []struct {
		name      string
		statement string
		fragments []string
		want      float64
	}{
		{"all present", "MATCH (p:Person)-[:DIRECTED]->(m:Movie) RETURN m", []string{":DIRECTED", ":Movie"}, 1},
		{"case and spacing", "match (m:Movie)  where m.releaseYear   =  2023 return m", []string{"releaseYear = 2023"}, 1},
		{"half", "MATCH (m:Movie) RETURN m", []string{":Movie", "avgVote"}, 0.5},
		{"none", "MATCH (n) RETURN n", []string{"salary"}, 0},
		{"no fragments", "MATCH (n) RETURN n", nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, computeFragmentHit(tt.statement, tt.fragments), 1e-9)
		})
	}
	assert.Equal(t, []string{"avgVote"}, missingFragments("MATCH (m:Movie) RETURN m", []string{":Movie", "avgVote"}))
}

func TestRun(t *testing.T) {
	ds := Dataset{
		Name:     "mini",
		Database: "movies",
		Tests: []TestCase{
			{
				Request:           "titles of 2023 movies",
				ExpectedFragments: []string{"releaseYear", "2023"},
				Category:          CategoryFilter,
			},
			{
				Request:           "Who directed Heat",
				ExpectedFragments: []string{":DIRECTED", "Heat"},
				Category:          CategoryTraversal,
			},
			{
				Request:           "everything please",
				ExpectedFragments: []string{":Movie"},
				Category:          CategoryLookup,
			},
		},
	}
	p := &scriptedProvider{replies: map[string]string{
		"titles of 2023": "```cypher\nMATCH (m:Movie) WHERE m.releaseYear = 2023 RETURN m.title\n```",
		"Who directed":   "MATCH (p:Person)-[:DIRECTED]->(m:Movie {title: 'Heat'}) RETURN p.name",
	}}

	report, err := Run(context.Background(), newEngine(t, p), ds)
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalTests)
	assert.Equal(t, 2, report.Passed)
	assert.Equal(t, 1, report.Failed)
	assert.InDelta(t, 2.0/3, report.Metrics.GeneratedRate, 1e-9)
	assert.InDelta(t, 1.0/3, report.Metrics.FallbackRate, 1e-9)
	assert.InDelta(t, 0, report.Metrics.BackendErrorRate, 1e-9)
	assert.InDelta(t, 1, report.Metrics.ValidatorPassRate, 1e-9, "every returned statement passes")
	assert.InDelta(t, 1, report.Metrics.BoundRate, 1e-9, "every returned statement is bounded")

	generic := report.Results[2]
	assert.Equal(t, gocypher.ProvenanceFallback, generic.Provenance)
	assert.NotEmpty(t, generic.RejectReason)
	assert.False(t, generic.Passed, "fallbacks never pass")

	require.Contains(t, report.CategoryMetrics, CategoryFilter)
	assert.InDelta(t, 1, report.CategoryMetrics[CategoryFilter].FragmentHitRate, 1e-9)

	text := FormatReport(report)
	assert.Contains(t, text, "=== Evaluation Report: mini ===")
	assert.Contains(t, text, "Passed: 2 (66.7%)")
	assert.Contains(t, text, "[FAIL] 3. everything please")
}

func TestRunBackendDown(t *testing.T) {
	p := &scriptedProvider{err: errors.New("503")}
	report, err := Run(context.Background(), newEngine(t, p), MoviesDataset())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Passed)
	assert.InDelta(t, 1, report.Metrics.FallbackRate, 1e-9)
	assert.InDelta(t, 1, report.Metrics.BackendErrorRate, 1e-9)
	assert.InDelta(t, 1, report.Metrics.ValidatorPassRate, 1e-9)
}

func TestRunUnknownDatabase(t *testing.T) {
	_, err := Run(context.Background(), newEngine(t, &scriptedProvider{}), Dataset{Name: "x", Database: "nope"})
	assert.ErrorIs(t, err, gocypher.ErrUnknownDatabase)
}

func TestLoadDataset(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{
		"name": "custom",
		"schema": {"nodes": [{"label": "Song", "properties": []}], "relationships": []},
		"tests": [{"request": "list songs", "expected_fragments": [":Song"], "category": "lookup"}]
	}`), 0o644))
	ds, err := LoadDataset(good)
	require.NoError(t, err)
	assert.Equal(t, "custom", ds.Name)
	d, ok := ds.resolveSchema()
	require.True(t, ok)
	assert.True(t, d.HasLabel("Song"))

	tests := map[string]string{
		"empty.json":  `{"name": "empty", "database": "movies", "tests": []}`,
		"schema.json": `{"name": "bad", "schema": {"nodes": []}, "tests": [{"request": "x"}]}`,
		"syntax.json": `{`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadDataset(path)
			assert.Error(t, err)
		})
	}

	_, err = LoadDataset(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
