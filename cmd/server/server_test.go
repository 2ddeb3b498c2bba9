package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/gocypher"
	"github.com/brunobiangulo/gocypher/cypher"
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

// fakeDB serves a two-person result for every statement.
type fakeDB struct {
	executed []string
}

func (f *fakeDB) Execute(ctx context.Context, statement string, params map[string]any) (*graphdb.Execution, error) {
	if _, bad := cypher.Destructive(statement); bad {
		return nil, graphdb.ErrUnsafeStatement
	}
	f.executed = append(f.executed, statement)
	c := graph.NewCollector([]string{"a", "r", "b"})
	ann := &graph.Node{ID: "1", Labels: []string{"Person"}, Properties: map[string]any{"name": "Ann"}}
	bob := &graph.Node{ID: "2", Labels: []string{"Person"}, Properties: map[string]any{"name": "Bob"}}
	cid := &graph.Node{ID: "3", Labels: []string{"Person"}, Properties: map[string]any{"name": "Cid"}}
	dee := &graph.Node{ID: "4", Labels: []string{"Person"}, Properties: map[string]any{"name": "Dee"}}
	c.AddRecord(graph.Record{"a": ann, "r": &graph.Relationship{ID: "r1", Type: "KNOWS", StartNode: "1", EndNode: "2"}, "b": bob})
	c.AddRecord(graph.Record{"a": cid, "r": &graph.Relationship{ID: "r2", Type: "KNOWS", StartNode: "3", EndNode: "4"}, "b": dee})
	rs := c.Result()
	return &graphdb.Execution{Result: rs, RecordCount: rs.Len()}, nil
}

func (f *fakeDB) Schema(ctx context.Context) (*schema.Description, error) {
	return &schema.Description{
		Nodes:         []schema.NodeType{{Label: "Person", Properties: []schema.Property{{Name: "name", Type: "String"}}}},
		Relationships: []schema.RelationshipType{{Type: "KNOWS", StartLabel: "Person", EndLabel: "Person", Properties: []schema.Property{}}},
	}, nil
}

func (f *fakeDB) Stats(ctx context.Context) (*graphdb.Stats, error) {
	return &graphdb.Stats{TotalNodes: 4, NodeTypes: 1, TotalRelationships: 2, RelationshipTypes: 1}, nil
}

func (f *fakeDB) Status() graphdb.Status {
	return graphdb.Status{Connected: true, URI: "neo4j://test:7687", Agent: "Neo4j/5.20.0"}
}

func newTestServer(t *testing.T, reply string, db graphDB, apiKey string) *httptest.Server {
	t.Helper()
	cfg := gocypher.DefaultConfig()
	cfg.LLM = llm.Config{Provider: "groq"}
	cfg.DisableStore = true
	cfg.Timeout = time.Second
	engine, err := gocypher.NewWithProvider(cfg, fixedProvider{text: reply})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	h := newHandler(engine, db)
	mux := http.NewServeMux()
	h.register(mux)
	mux.HandleFunc("GET /panic", func(w http.ResponseWriter, r *http.Request) { panic("boom") })

	srv := httptest.NewServer(chain(mux, apiKey, "*"))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-42")
	return do(t, req)
}

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	return do(t, req)
}

func do(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp, body
}

func TestQuery(t *testing.T) {
	srv := newTestServer(t, "MATCH (m:Movie) WHERE m.releaseYear = 2023 RETURN m.title", nil, "")

	resp, body := post(t, srv, "/query", `{"prompt": "movies from 2023", "database": "movies"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "MATCH (m:Movie) WHERE m.releaseYear = 2023 RETURN m.title LIMIT 100", body["statement"])
	assert.Equal(t, "generated", body["provenance"])
	assert.Equal(t, "req-42", body["requestId"], "request id comes from the header")
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"unknown database", `{"prompt": "x", "database": "nope"}`, http.StatusNotFound},
		{"live database without neo4j", `{"prompt": "x", "database": "live"}`, http.StatusServiceUnavailable},
		{"missing prompt", `{"database": "movies"}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
		{"invalid inline schema", `{"prompt": "x", "schema": {"nodes": []}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := post(t, srv, "/query", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestQueryLiveSchema(t *testing.T) {
	srv := newTestServer(t, "MATCH (a:Person)-[:KNOWS]->(b:Person) RETURN b.name", &fakeDB{}, "")
	resp, body := post(t, srv, "/query", `{"prompt": "who does Ann know", "database": "live"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "generated", body["provenance"])
}

func TestValidate(t *testing.T) {
	srv := newTestServer(t, "", nil, "")

	resp, body := post(t, srv, "/validate", `{"statement": "MATCH (n) DETACH DELETE n"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	verdict := body["verdict"].(map[string]any)
	assert.Equal(t, false, verdict["accepted"])
	assert.Equal(t, cypher.ReasonDetachDelete, verdict["reason"])
	assert.Equal(t, true, body["write"])

	_, body = post(t, srv, "/validate", "{\"response\": \"```cypher\\nMATCH (m:Movie) RETURN m.title\\n```\"}")
	assert.Equal(t, "MATCH (m:Movie) RETURN m.title", body["statement"])
	assert.Equal(t, "MATCH (m:Movie) RETURN m.title LIMIT 100", body["normalized"])
	assert.Equal(t, false, body["bounded"])
}

func TestCypher(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		srv := newTestServer(t, "", nil, "")
		resp, _ := post(t, srv, "/cypher", `{"statement": "MATCH (n) RETURN n LIMIT 1"}`)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	db := &fakeDB{}
	srv := newTestServer(t, "Ann knows Bob.", db, "")

	t.Run("focus and explain", func(t *testing.T) {
		resp, body := post(t, srv, "/cypher",
			`{"statement": "MATCH (a)-[r]->(b) RETURN a, r, b LIMIT 100", "prompt": "who knows whom", "explain": true, "focus": ["1"]}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		exec := body["execution"].(map[string]any)
		assert.EqualValues(t, 1, exec["recordCount"], "only Ann's neighbourhood is kept")
		explanation := body["explanation"].(map[string]any)
		assert.Equal(t, "Ann knows Bob.", explanation["text"])
		assert.Equal(t, true, explanation["succeeded"])
	})

	t.Run("unsafe", func(t *testing.T) {
		resp, _ := post(t, srv, "/cypher", `{"statement": "DROP INDEX x"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestExport(t *testing.T) {
	srv := newTestServer(t, "", &fakeDB{}, "")

	resp, _ := post(t, srv, "/export", `{"statement": "MATCH (a)-[r]->(b) RETURN a, r, b LIMIT 100"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "results.csv")

	resp, _ = post(t, srv, "/export", `{"format": "xlsx", "results": {"fields": ["n"], "records": [{"n": 1}]}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")

	resp, _ = post(t, srv, "/export", `{"format": "pdf", "statement": "MATCH (n) RETURN n LIMIT 1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExplain(t *testing.T) {
	srv := newTestServer(t, "", nil, "")
	resp, body := post(t, srv, "/explain", `{"statement": "MATCH (m:Movie) RETURN m LIMIT 100", "prompt": "movies", "results": {"records": []}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["succeeded"], "empty generations fall back")
	assert.Contains(t, body["text"], "returned 0 records")
}

func TestCatalog(t *testing.T) {
	srv := newTestServer(t, "", &fakeDB{}, "")

	_, body := get(t, srv, "/databases")
	dbs := body["databases"].([]any)
	require.Len(t, dbs, len(schema.Samples())+1)
	assert.Equal(t, liveDatabase, dbs[0].(map[string]any)["id"])

	resp, body := get(t, srv, "/databases/movies/schema")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["formatted"], "NODE TYPES:")

	resp, _ = get(t, srv, "/databases/nope/schema")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, body = get(t, srv, "/suggestions/social")
	assert.NotEmpty(t, body["suggestions"])
	resp, _ = get(t, srv, "/suggestions/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, body = get(t, srv, "/llm/status")
	assert.Equal(t, "groq", body["provider"])

	_, body = get(t, srv, "/neo4j/status")
	assert.Equal(t, true, body["status"].(map[string]any)["connected"])
	assert.EqualValues(t, 4, body["stats"].(map[string]any)["totalNodes"])
}

func TestHistoryDisabled(t *testing.T) {
	srv := newTestServer(t, "", nil, "")
	resp, _ := get(t, srv, "/history")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = get(t, srv, "/history?limit=0")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = post(t, srv, "/examples", `{"prompt": "x", "statement": "MATCH (m:Movie) RETURN m.title"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = get(t, srv, "/examples")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMiddleware(t *testing.T) {
	srv := newTestServer(t, "", nil, "secret")

	resp, _ := get(t, srv, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health skips auth")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = get(t, srv, "/llm/status")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/llm/status", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, _ = do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err = http.NewRequest(http.MethodGet, srv.URL+"/panic", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, body := do(t, req)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal server error", body["error"])

	req, err = http.NewRequest(http.MethodOptions, srv.URL+"/query", nil)
	require.NoError(t, err)
	resp, _ = do(t, req)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCORSOrigins(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := corsMiddleware("https://a.example, https://b.example", ok)

	tests := []struct {
		origin string
		want   string
	}{
		{"https://b.example", "https://b.example"},
		{"https://evil.example", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/databases", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestAPIKeyHeader(t *testing.T) {
	srv := newTestServer(t, "", nil, "secret")

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/databases", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")
	resp, _ := do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req.Header.Set("X-API-Key", "wrong")
	resp, _ = do(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
