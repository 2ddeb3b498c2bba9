package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/brunobiangulo/gocypher"
	"github.com/brunobiangulo/gocypher/cypher"
	"github.com/brunobiangulo/gocypher/export"
	"github.com/brunobiangulo/gocypher/graph"
	"github.com/brunobiangulo/gocypher/graphdb"
	"github.com/brunobiangulo/gocypher/schema"
	"github.com/brunobiangulo/gocypher/store"
)

// liveDatabase is the id under which the connected Neo4j instance is
// listed next to the bundled samples.
const liveDatabase = "live"

// graphDB is the part of *graphdb.Client the handlers use.
type graphDB interface {
	Execute(ctx context.Context, statement string, params map[string]any) (*graphdb.Execution, error)
	Schema(ctx context.Context) (*schema.Description, error)
	Stats(ctx context.Context) (*graphdb.Stats, error)
	Status() graphdb.Status
}

type handler struct {
	engine gocypher.Engine
	db     graphDB // nil when no Neo4j URI is configured
}

func newHandler(e gocypher.Engine, db graphDB) *handler {
	return &handler{engine: e, db: db}
}

// register mounts every route on mux.
func (h *handler) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /query", h.handleQuery)
	mux.HandleFunc("POST /cypher", h.handleCypher)
	mux.HandleFunc("POST /validate", h.handleValidate)
	mux.HandleFunc("POST /explain", h.handleExplain)
	mux.HandleFunc("POST /export", h.handleExport)
	mux.HandleFunc("POST /examples", h.handleLearn)
	mux.HandleFunc("GET /examples", h.handleListExamples)
	mux.HandleFunc("GET /examples/{id}", h.handleExample)
	mux.HandleFunc("DELETE /examples/{id}", h.handleExample)
	mux.HandleFunc("GET /databases", h.handleListDatabases)
	mux.HandleFunc("GET /databases/{id}/schema", h.handleSchema)
	mux.HandleFunc("GET /suggestions/{id}", h.handleSuggestions)
	mux.HandleFunc("GET /llm/status", h.handleLLMStatus)
	mux.HandleFunc("GET /neo4j/status", h.handleNeo4jStatus)
	mux.HandleFunc("GET /history", h.handleHistory)
	mux.HandleFunc("GET /health", h.handleHealth)
}

// POST /query
// Synthesizes a statement for a request against a sample, the live
// database or an inline schema.
func (h *handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt   string              `json:"prompt"`
		Database string              `json:"database"`
		Schema   *schema.Description `json:"schema,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	d := req.Schema
	if d == nil {
		var err error
		d, err = h.resolveSchema(ctx, req.Database)
		if err != nil {
			h.writeDBError(w, err, "schema lookup failed")
			return
		}
	}

	out, err := h.engine.SynthesizeQuery(ctx, req.Prompt, d,
		gocypher.WithDatabase(req.Database), gocypher.WithRequestID(requestIDFrom(r.Context())))
	if err != nil {
		if errors.Is(err, gocypher.ErrInvalidSchema) {
			writeError(w, http.StatusBadRequest, "invalid schema")
			return
		}
		writeError(w, http.StatusInternalServerError, "query failed")
		slog.Error("synthesize error", "prompt", req.Prompt, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// POST /cypher
// Executes a statement on the live database, optionally narrowed to the
// neighbourhood of focus nodes and explained.
func (h *handler) handleCypher(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Statement string         `json:"statement"`
		Params    map[string]any `json:"params,omitempty"`
		Prompt    string         `json:"prompt,omitempty"`
		RequestID string         `json:"requestId,omitempty"`
		Explain   bool           `json:"explain,omitempty"`
		Focus     []string       `json:"focus,omitempty"`
		Depth     int            `json:"depth,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Statement == "" {
		writeError(w, http.StatusBadRequest, "statement is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	exec, err := h.execute(ctx, req.Statement, req.Params)
	if err != nil {
		h.writeDBError(w, err, "execution failed")
		return
	}

	if len(req.Focus) > 0 {
		depth := req.Depth
		if depth <= 0 || depth > 5 {
			depth = 1
		}
		exec.Result = exec.Result.Neighborhood(req.Focus, depth)
		exec.RecordCount = exec.Result.Len()
	}

	resp := map[string]interface{}{"execution": exec}
	if req.Explain {
		var opts []gocypher.Option
		if req.RequestID != "" {
			opts = append(opts, gocypher.WithRequestID(req.RequestID))
		}
		resp["explanation"] = h.engine.SummarizeResults(ctx, req.Statement, exec.Result, req.Prompt, opts...)
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /validate
// Runs the normalizer and validator without executing anything.
func (h *handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Statement string `json:"statement"`
		Response  string `json:"response,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	statement := req.Statement
	if req.Response != "" {
		statement = cypher.Extract(req.Response)
	}
	if statement == "" {
		writeError(w, http.StatusBadRequest, "statement or response is required")
		return
	}

	normalized := cypher.Normalize(statement)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"statement":  statement,
		"normalized": normalized,
		"verdict":    cypher.Validate(normalized),
		"bounded":    cypher.IsBounded(statement),
		"write":      cypher.IsWrite(normalized),
	})
}

// POST /explain
// Explains a result set the caller already holds.
func (h *handler) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Statement string           `json:"statement"`
		Prompt    string           `json:"prompt"`
		RequestID string           `json:"requestId,omitempty"`
		Results   *graph.ResultSet `json:"results"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Statement == "" {
		writeError(w, http.StatusBadRequest, "statement is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var opts []gocypher.Option
	if req.RequestID != "" {
		opts = append(opts, gocypher.WithRequestID(req.RequestID))
	}
	writeJSON(w, http.StatusOK, h.engine.SummarizeResults(ctx, req.Statement, req.Results, req.Prompt, opts...))
}

// POST /export
// Streams results as CSV or XLSX. Results are taken from the body or
// produced by executing the statement.
func (h *handler) handleExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Statement string           `json:"statement"`
		Format    string           `json:"format"`
		Results   *graph.ResultSet `json:"results,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Format == "" {
		req.Format = "csv"
	}
	if !export.Supported(req.Format) {
		writeError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}

	rs := req.Results
	if rs == nil {
		if req.Statement == "" {
			writeError(w, http.StatusBadRequest, "statement or results is required")
			return
		}
		exec, err := h.execute(r.Context(), req.Statement, nil)
		if err != nil {
			h.writeDBError(w, err, "execution failed")
			return
		}
		rs = exec.Result
	}

	w.Header().Set("Content-Type", export.ContentType(req.Format))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="results.%s"`, req.Format))
	if err := export.Write(w, req.Format, rs); err != nil {
		slog.Error("export error", "format", req.Format, "error", err)
	}
}

// GET /databases
func (h *handler) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	var dbs []entry
	if h.db != nil && h.db.Status().Connected {
		st := h.db.Status()
		dbs = append(dbs, entry{ID: liveDatabase, Name: "Connected database", Description: st.URI})
	}
	for _, s := range schema.Samples() {
		dbs = append(dbs, entry{ID: s.ID, Name: s.Name, Description: s.Description})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"databases": dbs})
}

// GET /databases/{id}/schema
func (h *handler) handleSchema(w http.ResponseWriter, r *http.Request) {
	d, err := h.resolveSchema(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDBError(w, err, "schema lookup failed")
		return
	}
	formatted, err := schema.Format(d)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "schema is malformed")
		slog.Error("format schema", "database", r.PathValue("id"), "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"schema":    d,
		"formatted": formatted,
	})
}

// GET /suggestions/{id}
func (h *handler) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	s, ok := schema.Sample(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown database")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"suggestions": s.Suggestions})
}

// GET /llm/status
func (h *handler) handleLLMStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.LLMStatus())
}

// GET /neo4j/status
func (h *handler) handleNeo4jStatus(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": graphdb.Status{}})
		return
	}
	resp := map[string]interface{}{"status": h.db.Status()}
	if h.db.Status().Connected {
		if stats, err := h.db.Stats(r.Context()); err == nil {
			resp["stats"] = stats
		} else {
			slog.Warn("neo4j stats", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /history?limit=50&database=movies
func (h *handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	entries, err := h.engine.History(r.Context(), limit, r.URL.Query().Get("database"))
	if err != nil {
		if errors.Is(err, gocypher.ErrNoStore) {
			writeError(w, http.StatusNotFound, "history is disabled")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to read history")
		slog.Error("history error", "error", err)
		return
	}
	resp := map[string]interface{}{"queries": entries}
	if stats, err := h.engine.Stats(r.Context()); err == nil {
		resp["stats"] = stats
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /examples
// Adds a request/statement pair to the example library.
func (h *handler) handleLearn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Database  string `json:"database"`
		Prompt    string `json:"prompt"`
		Statement string `json:"statement"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Prompt == "" || req.Statement == "" {
		writeError(w, http.StatusBadRequest, "prompt and statement are required")
		return
	}

	id, err := h.engine.Learn(r.Context(), req.Database, req.Prompt, req.Statement)
	switch {
	case errors.Is(err, gocypher.ErrUnsafeStatement):
		writeError(w, http.StatusBadRequest, "statement rejected")
		return
	case errors.Is(err, gocypher.ErrNoStore):
		writeError(w, http.StatusNotFound, "example library is disabled")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to store example")
		slog.Error("learn error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id})
}

// GET /examples?database=movies
func (h *handler) handleListExamples(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Store()
	if st == nil {
		writeError(w, http.StatusNotFound, "example library is disabled")
		return
	}
	examples, err := st.ListExamples(r.Context(), r.URL.Query().Get("database"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list examples")
		slog.Error("list examples error", "error", err)
		return
	}
	if examples == nil {
		examples = []store.Example{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"examples": examples})
}

// GET /examples/{id} and DELETE /examples/{id}
func (h *handler) handleExample(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Store()
	if st == nil {
		writeError(w, http.StatusNotFound, "example library is disabled")
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid example id")
		return
	}

	if r.Method == http.MethodDelete {
		err = st.DeleteExample(r.Context(), id)
		if err == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	} else {
		var e *store.Example
		if e, err = st.GetExample(r.Context(), id); err == nil {
			writeJSON(w, http.StatusOK, e)
			return
		}
	}

	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "example not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "failed to access example")
	slog.Error("example error", "id", id, "error", err)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": gocypher.Version,
	}
	if st := h.engine.Store(); st != nil {
		if stats, err := st.DBStats(r.Context()); err == nil {
			resp["store"] = stats
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// resolveSchema finds the description for a database id: a bundled
// sample, or the live database when connected.
func (h *handler) resolveSchema(ctx context.Context, id string) (*schema.Description, error) {
	if s, ok := schema.Sample(id); ok {
		return s.Schema, nil
	}
	if id == liveDatabase || id == "" {
		if h.db == nil {
			return nil, gocypher.ErrNotConnected
		}
		return h.db.Schema(ctx)
	}
	return nil, fmt.Errorf("%w: %s", gocypher.ErrUnknownDatabase, id)
}

func (h *handler) execute(ctx context.Context, statement string, params map[string]any) (*graphdb.Execution, error) {
	if h.db == nil {
		return nil, gocypher.ErrNotConnected
	}
	return h.db.Execute(ctx, statement, params)
}

// writeDBError maps database errors onto status codes.
func (h *handler) writeDBError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, gocypher.ErrUnknownDatabase):
		writeError(w, http.StatusNotFound, "unknown database")
	case errors.Is(err, gocypher.ErrNotConnected):
		writeError(w, http.StatusServiceUnavailable, "database not connected")
	case errors.Is(err, gocypher.ErrUnsafeStatement):
		writeError(w, http.StatusBadRequest, "statement refused")
	default:
		writeError(w, http.StatusInternalServerError, msg)
		slog.Error(msg, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
