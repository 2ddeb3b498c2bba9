// Command e2e_test runs one request through the full pipeline against a
// real generation backend and, when NEO4J_URI is set, a real database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brunobiangulo/gocypher"
	"github.com/brunobiangulo/gocypher/graphdb"
	"github.com/brunobiangulo/gocypher/llm"
	"github.com/brunobiangulo/gocypher/schema"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "GOOGLE_API_KEY not set")
		os.Exit(1)
	}

	tmpDir, _ := os.MkdirTemp("", "gocypher-e2e-*")
	defer os.RemoveAll(tmpDir)

	cfg := gocypher.DefaultConfig()
	cfg.DBPath = tmpDir + "/audit.db"
	cfg.LLM = llm.Config{
		Provider: "gemini",
		Model:    "gemini-2.5-flash",
		APIKey:   apiKey,
	}
	cfg.Embedding = llm.Config{
		Provider: "gemini",
		Model:    "gemini-embedding-001",
		APIKey:   apiKey,
	}
	cfg.EmbeddingDim = 3072
	cfg.Neo4j.URI = os.Getenv("NEO4J_URI")
	cfg.Neo4j.Password = os.Getenv("NEO4J_PASSWORD")

	engine, err := gocypher.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	sample, _ := schema.Sample("movies")

	// Seed the example library
	fmt.Fprintf(os.Stderr, "\n=== LEARNING ===\n")
	id, err := engine.Learn(ctx, sample.ID, "Who directed The Matrix?",
		"MATCH (p:Person)-[:DIRECTED]->(m:Movie {title: 'The Matrix'}) RETURN p.name")
	if err != nil {
		fmt.Fprintf(os.Stderr, "learn error: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Stored example_id=%d\n", id)

	// Synthesize
	request := sample.Suggestions[0]
	fmt.Fprintf(os.Stderr, "\n=== SYNTHESIZING: %s ===\n", request)
	outcome, err := engine.SynthesizeQuery(ctx, request, sample.Schema, gocypher.WithDatabase(sample.ID))
	if err != nil {
		fmt.Fprintf(os.Stderr, "synthesize error: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "\n=== STATEMENT (%s via %s) ===\n%s\n", outcome.Provenance, outcome.Backend, outcome.Statement)

	type runView struct {
		RequestID   string `json:"request_id"`
		Statement   string `json:"statement"`
		Provenance  string `json:"provenance"`
		Backend     string `json:"backend"`
		Examples    int    `json:"examples"`
		ElapsedMs   int64  `json:"elapsed_ms"`
		Reject      string `json:"reject_reason,omitempty"`
		Records     int    `json:"records,omitempty"`
		Explanation string `json:"explanation,omitempty"`
	}
	view := runView{
		RequestID:  outcome.RequestID,
		Statement:  outcome.Statement,
		Provenance: string(outcome.Provenance),
		Backend:    outcome.Backend,
		Examples:   outcome.Examples,
		ElapsedMs:  outcome.ElapsedMs,
		Reject:     outcome.RejectReason,
	}

	// Execute and explain when a database is available
	if cfg.Neo4j.URI != "" {
		client, err := graphdb.Connect(ctx, cfg.Neo4j)
		if err != nil {
			fmt.Fprintf(os.Stderr, "neo4j error: %v\n", err)
			os.Exit(1)
		}
		defer client.Close(context.Background())

		exec, err := client.Execute(ctx, outcome.Statement, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "execute error: %v\n", err)
			os.Exit(1)
		}
		explanation := engine.SummarizeResults(ctx, outcome.Statement, exec.Result, request,
			gocypher.WithRequestID(outcome.RequestID))
		fmt.Fprintf(os.Stderr, "\n=== EXPLANATION ===\n%s\n", explanation.Text)
		view.Records = exec.RecordCount
		view.Explanation = explanation.Text
	}

	out, _ := json.MarshalIndent(view, "", "  ")
	fmt.Println(string(out))
}
