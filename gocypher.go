// Package gocypher translates natural-language requests into bounded,
// screened Cypher statements and explains their results.
//
// A request flows through prompt construction, one generator call,
// extraction, normalization and validation. Whenever generation fails or
// the validator rejects the candidate, a keyword-selected fallback
// statement is returned instead, so callers always receive a usable
// statement.
package gocypher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/brunobiangulo/gocypher/cypher"
	"github.com/brunobiangulo/gocypher/explain"
	"github.com/brunobiangulo/gocypher/graph"
	"github.com/brunobiangulo/gocypher/llm"
	"github.com/brunobiangulo/gocypher/prompt"
	"github.com/brunobiangulo/gocypher/retrieval"
	"github.com/brunobiangulo/gocypher/schema"
	"github.com/brunobiangulo/gocypher/store"
)

// Version is reported by the CLI and the MCP server.
const Version = "0.1.0"

// Provenance tags where an outcome came from.
type Provenance string

const (
	// ProvenanceGenerated marks output produced by the generator.
	ProvenanceGenerated Provenance = "generated"
	// ProvenanceFallback marks output from the deterministic fallback path.
	ProvenanceFallback Provenance = "fallback"
)

// FallbackBackend is the backend identifier reported when the generator
// could not be reached.
const FallbackBackend = "fallback"

// Engine is the main entry point for statement synthesis.
type Engine interface {
	// SynthesizeQuery turns a request into a statement. It only fails for
	// a malformed schema (ErrInvalidSchema); generator failures and
	// rejected candidates yield a fallback outcome.
	SynthesizeQuery(ctx context.Context, request string, d *schema.Description, opts ...Option) (QueryOutcome, error)

	// SummarizeResults explains a result set. It never fails.
	SummarizeResults(ctx context.Context, statement string, rs *graph.ResultSet, request string, opts ...Option) ExplanationOutcome

	// Learn adds a request/statement pair to the example library.
	Learn(ctx context.Context, database, request, statement string) (int64, error)

	// History returns recent synthesized statements, newest first.
	History(ctx context.Context, limit int, database string) ([]store.QueryLog, error)

	// Stats aggregates the audit log.
	Stats(ctx context.Context) (*store.QueryStats, error)

	// LLMStatus describes the configured generation backend.
	LLMStatus() llm.Status

	// Store returns the audit store, or nil when it is disabled.
	Store() *store.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// QueryOutcome is the terminal result of SynthesizeQuery.
type QueryOutcome struct {
	RequestID   string     `json:"requestId"`
	Statement   string     `json:"statement"`
	Succeeded   bool       `json:"succeeded"`
	Provenance  Provenance `json:"provenance"`
	Backend     string     `json:"backend"`
	Model       string     `json:"model,omitempty"`
	RawResponse string     `json:"rawResponse,omitempty"`
	// RejectReason is set when a generated candidate was screened out.
	RejectReason string           `json:"rejectReason,omitempty"`
	Examples     int              `json:"examples"`
	ElapsedMs    int64            `json:"elapsedMs"`
	Retrieval    *retrieval.Trace `json:"retrieval,omitempty"`
}

// ExplanationOutcome is the result of SummarizeResults.
type ExplanationOutcome struct {
	Text       string     `json:"text"`
	Succeeded  bool       `json:"succeeded"`
	Provenance Provenance `json:"provenance"`
	Backend    string     `json:"backend"`
	Model      string     `json:"model,omitempty"`
}

// Option configures a single call.
type Option func(*callOptions)

type callOptions struct {
	database  string
	requestID string
}

// WithDatabase names the database a request targets. It scopes example
// retrieval and is recorded in the audit log.
func WithDatabase(name string) Option {
	return func(o *callOptions) { o.database = name }
}

// WithRequestID sets the id that ties a statement to its later
// explanation in the audit log. A random id is used when unset.
func WithRequestID(id string) Option {
	return func(o *callOptions) { o.requestID = id }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg        Config
	llmCfg     llm.Config
	chatLLM    llm.Provider
	store      *store.Store
	selector   *retrieval.Selector
	summarizer *explain.Summarizer
}

// New creates an engine with the provider named in cfg.LLM.
func New(cfg Config) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p, err := llm.NewProvider(cfg.llmConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return NewWithProvider(cfg, p)
}

// NewWithProvider creates an engine around an existing provider. cfg.LLM
// is then only used for reporting.
func NewWithProvider(cfg Config, p llm.Provider) (Engine, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = llm.DefaultTimeout
	}
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 768
	}

	e := &engine{
		cfg:        cfg,
		llmCfg:     cfg.llmConfig(),
		chatLLM:    p,
		summarizer: &explain.Summarizer{Provider: p, Timeout: cfg.Timeout},
	}

	if cfg.DisableStore {
		return e, nil
	}

	s, err := store.New(cfg.resolveDBPath(), cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	e.store = s

	var embedder llm.Provider
	if cfg.Embedding.Provider != "" {
		embedder, err = llm.NewProvider(cfg.Embedding)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%w: embedding provider: %v", ErrInvalidConfig, err)
		}
	}
	e.selector = retrieval.New(s, embedder, retrieval.Config{MaxExamples: cfg.ExampleResults})
	return e, nil
}

// SynthesizeQuery runs the full pipeline for one request.
func (e *engine) SynthesizeQuery(ctx context.Context, request string, d *schema.Description, opts ...Option) (QueryOutcome, error) {
	o := e.options(opts)
	if o.requestID == "" {
		o.requestID = uuid.NewString()
	}
	start := time.Now()

	schemaText, err := schema.Format(d)
	if err != nil {
		return QueryOutcome{}, err
	}

	var extra []prompt.Example
	var trace *retrieval.Trace
	if e.selector != nil {
		extra, trace, err = e.selector.Select(ctx, request, o.database)
		if err != nil {
			slog.Warn("gocypher: example retrieval failed", "error", err)
			extra = nil
		}
	}

	req := prompt.Query(request, schemaText, extra...)

	slog.Info("gocypher: generating statement",
		"request_id", o.requestID, "backend", e.llmCfg.Provider, "examples", len(extra))

	gctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	raw, genErr := llm.Generate(gctx, e.chatLLM, req.System, req.User)
	cancel()

	out := QueryOutcome{
		RequestID: o.requestID,
		Backend:   e.llmCfg.Provider,
		Model:     e.llmCfg.Model,
		Examples:  len(extra),
		Retrieval: trace,
	}

	if genErr != nil {
		slog.Warn("gocypher: generation failed, using fallback", "request_id", o.requestID, "error", genErr)
		out.Statement = cypher.Fallback(request, d)
		out.Succeeded = false
		out.Provenance = ProvenanceFallback
		out.Backend = FallbackBackend
		out.Model = ""
	} else {
		out.RawResponse = raw
		candidate := cypher.Normalize(cypher.Extract(raw))
		slog.Debug("gocypher: extracted statement", "request_id", o.requestID, "statement", candidate)

		if v := cypher.Validate(candidate); v.Accepted {
			out.Statement = candidate
			out.Succeeded = true
			out.Provenance = ProvenanceGenerated
		} else {
			slog.Info("gocypher: candidate rejected, using fallback",
				"request_id", o.requestID, "reason", v.Reason, "candidate", candidate)
			out.Statement = cypher.Fallback(request, d)
			out.Succeeded = true
			out.Provenance = ProvenanceFallback
			out.RejectReason = v.Reason
		}
	}
	out.ElapsedMs = time.Since(start).Milliseconds()

	e.logQuery(ctx, request, o, out)
	return out, nil
}

// SummarizeResults explains a result set, falling back to a templated
// sentence when generation fails.
func (e *engine) SummarizeResults(ctx context.Context, statement string, rs *graph.ResultSet, request string, opts ...Option) ExplanationOutcome {
	o := e.options(opts)
	summary := e.summarizer.Summarize(ctx, statement, rs, request)

	out := ExplanationOutcome{Text: summary.Text}
	if summary.Generated {
		out.Succeeded = true
		out.Provenance = ProvenanceGenerated
		out.Backend = e.llmCfg.Provider
		out.Model = e.llmCfg.Model
	} else {
		out.Provenance = ProvenanceFallback
		out.Backend = FallbackBackend
	}

	if e.store != nil && o.requestID != "" {
		if err := e.store.AttachResult(ctx, o.requestID, rs.Len(), out.Text); err != nil {
			slog.Debug("gocypher: attaching result to log", "request_id", o.requestID, "error", err)
		}
	}
	return out
}

// Learn stores a request/statement pair for few-shot retrieval. The
// statement must pass validation.
func (e *engine) Learn(ctx context.Context, database, request, statement string) (int64, error) {
	if e.selector == nil {
		return 0, ErrNoStore
	}
	statement = cypher.Normalize(statement)
	if v := cypher.Validate(statement); !v.Accepted {
		return 0, fmt.Errorf("%w: %s", ErrUnsafeStatement, v.Reason)
	}
	return e.selector.Learn(ctx, database, request, statement, "feedback")
}

func (e *engine) History(ctx context.Context, limit int, database string) ([]store.QueryLog, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}
	return e.store.RecentQueries(ctx, limit, database)
}

func (e *engine) Stats(ctx context.Context) (*store.QueryStats, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}
	return e.store.QueryStats(ctx)
}

func (e *engine) LLMStatus() llm.Status {
	return llm.StatusOf(e.llmCfg)
}

func (e *engine) Store() *store.Store {
	return e.store
}

// Close shuts down the engine.
func (e *engine) Close() error {
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

func (e *engine) options(opts []Option) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (e *engine) logQuery(ctx context.Context, request string, o callOptions, out QueryOutcome) {
	if e.store == nil {
		return
	}
	_, err := e.store.LogQuery(ctx, store.QueryLog{
		RequestID:   out.RequestID,
		Prompt:      request,
		Database:    o.database,
		Statement:   out.Statement,
		Provenance:  string(out.Provenance),
		Succeeded:   out.Succeeded,
		Backend:     out.Backend,
		Model:       out.Model,
		RawResponse: out.RawResponse,
		ElapsedMs:   out.ElapsedMs,
	})
	if err != nil {
		slog.Warn("gocypher: writing query log", "request_id", out.RequestID, "error", err)
	}
}
