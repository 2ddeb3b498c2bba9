// Package retrieval selects few-shot examples for a request from the
// example library, fusing vector and keyword search with Reciprocal Rank
// Fusion.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brunobiangulo/gocypher/llm"
	"github.com/brunobiangulo/gocypher/prompt"
	"github.com/brunobiangulo/gocypher/store"
)

// Store is the subset of *store.Store used for example selection.
type Store interface {
	InsertExample(ctx context.Context, e store.Example) (int64, error)
	InsertExampleEmbedding(ctx context.Context, exampleID int64, embedding []float32) error
	ExamplesWithoutEmbedding(ctx context.Context) ([]store.Example, error)
	VectorSearchExamples(ctx context.Context, queryEmbedding []float32, k int, database string) ([]store.ExampleResult, error)
	FTSSearchExamples(ctx context.Context, query string, limit int, database string) ([]store.ExampleResult, error)
}

// Config holds retrieval configuration.
type Config struct {
	MaxExamples  int     `json:"max_examples" yaml:"max_examples"`
	WeightVector float64 `json:"weight_vector" yaml:"weight_vector"`
	WeightFTS    float64 `json:"weight_fts" yaml:"weight_fts"`
}

// DefaultConfig returns the weights used when none are configured.
func DefaultConfig() Config {
	return Config{MaxExamples: 3, WeightVector: 1.0, WeightFTS: 1.0}
}

// Trace records the breakdown of one selection.
type Trace struct {
	VecResults          int                       `json:"vec_results"`
	FTSResults          int                       `json:"fts_results"`
	FusedResults        int                       `json:"fused_results"`
	VecWeight           float64                   `json:"vec_weight"`
	FTSWeight           float64                   `json:"fts_weight"`
	IdentifiersDetected bool                      `json:"identifiers_detected"`
	FTSQuery            string                    `json:"fts_query"`
	ElapsedMs           int64                     `json:"elapsed_ms"`
	PerResult           map[int64]FusedResultInfo `json:"per_result,omitempty"`
}

// Selector picks stored examples similar to a request. The embedder may be
// nil, in which case only keyword search runs.
type Selector struct {
	store    Store
	embedder llm.Provider
	cfg      Config
}

// New creates a selector.
func New(s Store, embedder llm.Provider, cfg Config) *Selector {
	def := DefaultConfig()
	if cfg.MaxExamples <= 0 {
		cfg.MaxExamples = def.MaxExamples
	}
	if cfg.WeightVector == 0 {
		cfg.WeightVector = def.WeightVector
	}
	if cfg.WeightFTS == 0 {
		cfg.WeightFTS = def.WeightFTS
	}
	return &Selector{store: s, embedder: embedder, cfg: cfg}
}

// Select returns up to MaxExamples examples for the request, restricted to
// one database when database is non-empty. An error is returned only when
// every search method failed; callers treat it as "no extra examples".
func (s *Selector) Select(ctx context.Context, request, database string) ([]prompt.Example, *Trace, error) {
	weightVec, weightFTS := s.cfg.WeightVector, s.cfg.WeightFTS
	trace := &Trace{}

	// Literal values favour exact keyword hits over semantic neighbours.
	if detectIdentifiers(request) {
		weightFTS *= 2.0
		weightVec *= 0.5
		trace.IdentifiersDetected = true
	}
	trace.VecWeight = weightVec
	trace.FTSWeight = weightFTS

	start := time.Now()
	ftsQuery := sanitizeFTSQuery(request)
	trace.FTSQuery = ftsQuery

	// Over-fetch so fusion has room to reorder.
	fetch := s.cfg.MaxExamples * 3

	type result struct {
		results []store.ExampleResult
		err     error
	}
	vecCh := make(chan result, 1)
	ftsCh := make(chan result, 1)

	go func() {
		r, err := s.vectorSearch(ctx, request, fetch, database)
		vecCh <- result{r, err}
	}()
	go func() {
		if ftsQuery == "" {
			ftsCh <- result{}
			return
		}
		r, err := s.store.FTSSearchExamples(ctx, ftsQuery, fetch, database)
		ftsCh <- result{r, err}
	}()

	vecRes := <-vecCh
	ftsRes := <-ftsCh

	if vecRes.err != nil {
		slog.Debug("retrieval: vector search failed", "error", vecRes.err)
	}
	if ftsRes.err != nil {
		slog.Warn("retrieval: fts search failed", "error", ftsRes.err, "fts_query", ftsQuery)
	}
	trace.VecResults = len(vecRes.results)
	trace.FTSResults = len(ftsRes.results)

	fused, infoMap := fuseRRF(vecRes.results, ftsRes.results, weightVec, weightFTS, s.cfg.MaxExamples)
	trace.FusedResults = len(fused)
	trace.PerResult = infoMap
	trace.ElapsedMs = time.Since(start).Milliseconds()

	slog.Debug("retrieval: examples selected",
		"database", database, "vec_results", trace.VecResults,
		"fts_results", trace.FTSResults, "fused", trace.FusedResults)

	if len(fused) == 0 && vecRes.err != nil && ftsRes.err != nil {
		return nil, trace, fmt.Errorf("selecting examples: %w", ftsRes.err)
	}

	examples := make([]prompt.Example, len(fused))
	for i, r := range fused {
		examples[i] = prompt.Example{Request: r.Request, Statement: r.Statement}
	}
	return examples, trace, nil
}

// Learn stores a request/statement pair and, when an embedder is set, its
// request embedding. Returns the example ID.
func (s *Selector) Learn(ctx context.Context, database, request, statement, source string) (int64, error) {
	id, err := s.store.InsertExample(ctx, store.Example{
		Database:  database,
		Request:   request,
		Statement: statement,
		Source:    source,
	})
	if err != nil {
		return 0, fmt.Errorf("storing example: %w", err)
	}
	if s.embedder == nil {
		return id, nil
	}
	emb, err := s.embed(ctx, request)
	if err != nil {
		// Keyword search still finds the example; Backfill can retry later.
		slog.Warn("retrieval: embedding example failed", "id", id, "error", err)
		return id, nil
	}
	if err := s.store.InsertExampleEmbedding(ctx, id, emb); err != nil {
		return id, fmt.Errorf("storing example embedding: %w", err)
	}
	return id, nil
}

// Backfill embeds every stored example that has no embedding yet and
// returns how many were embedded.
func (s *Selector) Backfill(ctx context.Context) (int, error) {
	if s.embedder == nil {
		return 0, llm.ErrEmbeddingUnsupported
	}
	pending, err := s.store.ExamplesWithoutEmbedding(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	texts := make([]string, len(pending))
	for i, e := range pending {
		texts[i] = e.Request
	}
	embeddings, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding examples: %w", err)
	}
	if len(embeddings) != len(pending) {
		return 0, fmt.Errorf("embedding examples: got %d vectors for %d texts", len(embeddings), len(pending))
	}

	n := 0
	for i, e := range pending {
		if err := s.store.InsertExampleEmbedding(ctx, e.ID, embeddings[i]); err != nil {
			return n, fmt.Errorf("storing embedding for example %d: %w", e.ID, err)
		}
		n++
	}
	slog.Info("retrieval: backfilled example embeddings", "count", n)
	return n, nil
}

func (s *Selector) vectorSearch(ctx context.Context, request string, k int, database string) ([]store.ExampleResult, error) {
	if s.embedder == nil {
		return nil, llm.ErrEmbeddingUnsupported
	}
	emb, err := s.embed(ctx, request)
	if err != nil {
		return nil, err
	}
	return s.store.VectorSearchExamples(ctx, emb, k, database)
}

func (s *Selector) embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return embeddings[0], nil
}
