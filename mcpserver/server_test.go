package mcpserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/gocypher"
	"github.com/brunobiangulo/gocypher/graph"
	"github.com/brunobiangulo/gocypher/graphdb"
	"github.com/brunobiangulo/gocypher/llm"
	"github.com/brunobiangulo/gocypher/schema"
)

type fixedProvider struct{ text string }

func (p fixedProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: p.text}, nil
}

func (p fixedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, llm.ErrEmbeddingUnsupported
}

type fakeExecutor struct{}

func (fakeExecutor) Execute(ctx context.Context, statement string, params map[string]any) (*graphdb.Execution, error) {
	if statement == "DROP INDEX x" {
		return nil, graphdb.ErrUnsafeStatement
	}
	rs := &graph.ResultSet{Fields: []string{"title"}, Records: []graph.Record{{"title": "Heat"}}}
	return &graphdb.Execution{Result: rs, RecordCount: 1}, nil
}

func (fakeExecutor) Schema(ctx context.Context) (*schema.Description, error) {
	return &schema.Description{
		Nodes:         []schema.NodeType{{Label: "Song", Properties: []schema.Property{}}},
		Relationships: []schema.RelationshipType{},
	}, nil
}

func connect(t *testing.T, reply string, db Executor) *mcp.ClientSession {
	t.Helper()
	cfg := gocypher.DefaultConfig()
	cfg.LLM = llm.Config{Provider: "anthropic"}
	cfg.DisableStore = true
	cfg.Timeout = time.Second
	engine, err := gocypher.NewWithProvider(cfg, fixedProvider{text: reply})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	srv := New(engine, db, "test")
	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	_, err = srv.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

// call invokes a tool and returns its text and error flag.
func call(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err, "protocol error")
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text, result.IsError
}

func TestListTools(t *testing.T) {
	tests := []struct {
		name string
		db   Executor
		want []string
	}{
		{"without database", nil, []string{"synthesize_query", "summarize_results", "validate_query", "format_schema", "list_databases"}},
		{"with database", fakeExecutor{}, []string{"synthesize_query", "summarize_results", "validate_query", "format_schema", "list_databases", "execute_query"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := connect(t, "", tt.db)
			result, err := session.ListTools(context.Background(), nil)
			require.NoError(t, err)
			var names []string
			for _, tool := range result.Tools {
				names = append(names, tool.Name)
			}
			assert.ElementsMatch(t, tt.want, names)
		})
	}
}

func TestSynthesizeQueryTool(t *testing.T) {
	session := connect(t, "```cypher\nMATCH (p:Person)-[:ACTED_IN]->(m:Movie) RETURN p.name\n```", nil)

	text, isErr := call(t, session, "synthesize_query", map[string]any{"request": "who acted", "database": "movies"})
	require.False(t, isErr, text)
	var out gocypher.QueryOutcome
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, "MATCH (p:Person)-[:ACTED_IN]->(m:Movie) RETURN p.name LIMIT 100", out.Statement)
	assert.Equal(t, gocypher.ProvenanceGenerated, out.Provenance)
	assert.Equal(t, "anthropic", out.Backend)

	text, isErr = call(t, session, "synthesize_query", map[string]any{"request": "x", "database": "nope"})
	assert.True(t, isErr)
	assert.Contains(t, text, "unknown database")

	_, isErr = call(t, session, "synthesize_query", map[string]any{"request": "x", "database": "live"})
	assert.True(t, isErr, "no database connected")
}

func TestSummarizeResultsTool(t *testing.T) {
	session := connect(t, "One movie: Heat.", nil)
	text, isErr := call(t, session, "summarize_results", map[string]any{
		"statement": "MATCH (m:Movie) RETURN m.title AS title LIMIT 100",
		"request":   "movies",
		"results":   map[string]any{"fields": []string{"title"}, "records": []any{map[string]any{"title": "Heat"}}},
	})
	require.False(t, isErr, text)
	var out gocypher.ExplanationOutcome
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, "One movie: Heat.", out.Text)
	assert.True(t, out.Succeeded)
}

func TestValidateQueryTool(t *testing.T) {
	session := connect(t, "", nil)

	tests := []struct {
		name     string
		args     map[string]any
		accepted bool
		write    bool
	}{
		{"bounded read", map[string]any{"statement": "MATCH (m:Movie) RETURN m.title"}, true, false},
		{"generic", map[string]any{"statement": "MATCH (n) RETURN n"}, false, false},
		{"unguarded delete", map[string]any{"statement": "MATCH (n) DETACH DELETE n"}, false, true},
		{"from response", map[string]any{"response": "Here you go: MATCH (m:Movie) WHERE m.avgVote > 8 RETURN m"}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := call(t, session, "validate_query", tt.args)
			require.False(t, isErr, text)
			var v Validation
			require.NoError(t, json.Unmarshal([]byte(text), &v))
			assert.Equal(t, tt.accepted, v.Verdict.Accepted, v.Verdict.Reason)
			assert.Equal(t, tt.write, v.Write)
		})
	}

	_, isErr := call(t, session, "validate_query", map[string]any{})
	assert.True(t, isErr)
}

func TestFormatSchemaTool(t *testing.T) {
	session := connect(t, "", fakeExecutor{})

	text, isErr := call(t, session, "format_schema", map[string]any{"database": "company"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "- Employee:")

	text, isErr = call(t, session, "format_schema", map[string]any{"database": "live"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "- Song:")
}

func TestExecuteQueryTool(t *testing.T) {
	session := connect(t, "Heat is the only result.", fakeExecutor{})

	text, isErr := call(t, session, "execute_query", map[string]any{
		"statement": "MATCH (m:Movie) RETURN m.title AS title LIMIT 100",
		"request":   "list movies",
	})
	require.False(t, isErr, text)
	assert.Contains(t, text, `"recordCount": 1`)
	assert.Contains(t, text, "Heat is the only result.")

	text, isErr = call(t, session, "execute_query", map[string]any{"statement": "DROP INDEX x"})
	assert.True(t, isErr)
	assert.Contains(t, text, "unsafe statement")
}
