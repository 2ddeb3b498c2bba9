package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/gocypher"
	"github.com/brunobiangulo/gocypher/llm"
)

type fixedProvider struct{ text string }

func (p fixedProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: p.text}, nil
}

func (p fixedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, llm.ErrEmbeddingUnsupported
}

// useProvider makes commands build a store-less engine around p.
func useProvider(t *testing.T, p llm.Provider) {
	t.Helper()
	orig := newEngine
	newEngine = func(cfg gocypher.Config) (gocypher.Engine, error) {
		cfg.LLM = llm.Config{Provider: "openai"}
		cfg.DisableStore = true
		cfg.Timeout = time.Second
		return gocypher.NewWithProvider(cfg, p)
	}
	t.Cleanup(func() { newEngine = orig })
}

func resetFlags() {
	configPath, verbose = "", false
	validateRaw = false
	schemaFile, schemaJSON = "", false
	genDatabase, genSchemaFile, genJSON, genExecute, genExplain, genOutput = "movies", "", false, false, false, ""
	historyLimit, historyDatabase, historyJSON, historyStats = 20, "", false, false
	learnDatabase = "movies"
}

// run executes the root command and returns what it wrote to stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestExtract(t *testing.T) {
	response := "Sure!\n```cypher\nMATCH (m:Movie) RETURN m.title\n```"

	out, err := run(t, "", "extract", response)
	require.NoError(t, err)
	assert.Equal(t, "MATCH (m:Movie) RETURN m.title\n", out)

	out, err = run(t, response, "extract")
	require.NoError(t, err)
	assert.Equal(t, "MATCH (m:Movie) RETURN m.title\n", out, "stdin")

	_, err = run(t, "  ", "extract")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	out, err := run(t, "", "normalize", "MATCH (m:Movie) RETURN m.title")
	require.NoError(t, err)
	assert.Equal(t, "MATCH (m:Movie) RETURN m.title LIMIT 100\n", out)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		stdin   string
		wantErr string
		want    string
	}{
		{"accepted", []string{"validate", "MATCH (m:Movie) WHERE m.avgVote > 8 RETURN m.title"}, "", "", "Verdict:   accepted"},
		{"generic", []string{"validate", "MATCH (n) RETURN n"}, "", "overly generic", "Verdict:   rejected"},
		{"unguarded delete", []string{"validate", "MATCH (n) DETACH DELETE n"}, "", "DETACH DELETE", "Write:     true"},
		{"raw response", []string{"validate", "--raw"}, "Try this: MATCH (p:Person) WHERE p.birthYear < 1950 RETURN p.name", "", "Bounded:   false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.stdin, tt.args...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestSchema(t *testing.T) {
	out, err := run(t, "", "schema")
	require.NoError(t, err)
	for _, id := range []string{"company", "movies", "social"} {
		assert.Contains(t, out, id)
	}

	out, err = run(t, "", "schema", "movies")
	require.NoError(t, err)
	assert.Contains(t, out, "NODE TYPES:")
	assert.Contains(t, out, "- Person:")

	_, err = run(t, "", "schema", "nope")
	assert.ErrorIs(t, err, gocypher.ErrUnknownDatabase)

	t.Setenv("NEO4J_URI", "")
	t.Setenv("GOCYPHER_NEO4J_URI", "")
	_, err = run(t, "", "schema", "live")
	assert.ErrorIs(t, err, gocypher.ErrNotConnected)
}

func TestSchemaFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`nodes:
  - label: Song
    properties:
      - name: title
        type: string
relationships:
  - type: COVERS
    start_node: Song
    end_node: Song
    properties: []
`), 0o644))

	out, err := run(t, "", "schema", "--file", yamlPath)
	require.NoError(t, err)
	assert.Contains(t, out, "- Song: title")
	assert.Contains(t, out, `"type":"COVERS"`)

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte(`{"nodes": []}`), 0o644))
	_, err = run(t, "", "schema", "--file", badPath)
	assert.ErrorIs(t, err, gocypher.ErrInvalidSchema)

	out, err = run(t, "", "schema", "--file", yamlPath, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"label": "Song"`)
}

func TestGenerate(t *testing.T) {
	useProvider(t, fixedProvider{text: "```cypher\nMATCH (m:Movie) WHERE m.avgVote > 8 RETURN m.title\n```"})

	out, err := run(t, "", "generate", "highly rated movies")
	require.NoError(t, err)
	assert.Equal(t, "MATCH (m:Movie) WHERE m.avgVote > 8 RETURN m.title LIMIT 100\n", out)

	out, err = run(t, "", "generate", "highly rated movies", "--json")
	require.NoError(t, err)
	var outcome gocypher.QueryOutcome
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	assert.Equal(t, gocypher.ProvenanceGenerated, outcome.Provenance)
	assert.Equal(t, "openai", outcome.Backend)
	assert.True(t, outcome.Succeeded)
	assert.NotEmpty(t, outcome.RequestID)

	_, err = run(t, "", "generate", "x", "--database", "nope")
	assert.ErrorIs(t, err, gocypher.ErrUnknownDatabase)
}

func TestGenerateRejectedCandidate(t *testing.T) {
	useProvider(t, fixedProvider{text: "MATCH (n) DETACH DELETE n"})

	out, err := run(t, "", "generate", "list people", "--database", "social", "--json")
	require.NoError(t, err)
	var outcome gocypher.QueryOutcome
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	assert.Equal(t, gocypher.ProvenanceFallback, outcome.Provenance)
	assert.NotEmpty(t, outcome.RejectReason)
	assert.NotContains(t, outcome.Statement, "DELETE")
}

func TestGenerateExecuteNeedsDatabase(t *testing.T) {
	useProvider(t, fixedProvider{text: "MATCH (m:Movie) WHERE m.avgVote > 8 RETURN m.title"})
	t.Setenv("NEO4J_URI", "")
	t.Setenv("GOCYPHER_NEO4J_URI", "")

	_, err := run(t, "", "generate", "highly rated movies", "--execute")
	assert.ErrorIs(t, err, gocypher.ErrNotConnected)
}

func TestHistoryWithoutStore(t *testing.T) {
	useProvider(t, fixedProvider{})

	_, err := run(t, "", "history")
	assert.ErrorIs(t, err, gocypher.ErrNoStore)

	_, err = run(t, "", "learn", "movies from 1999", "MATCH (m:Movie {releaseYear: 1999}) RETURN m.title")
	assert.ErrorIs(t, err, gocypher.ErrNoStore)
}

func TestVersion(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-01-01")
	t.Cleanup(func() { SetVersionInfo(gocypher.Version, "unknown", "unknown") })

	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "gocypher 1.2.3 (commit: abc123, built: 2026-01-01)\n", out)
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "MATCH (n) RETURN n", oneLine("MATCH (n)\n  RETURN n", 40))
	assert.Equal(t, "abcdefg...", oneLine("abcdefghijklmnop", 10))
}
