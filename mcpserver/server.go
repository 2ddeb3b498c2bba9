// Package mcpserver exposes the gocypher pipeline as Model Context
// Protocol tools.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/brunobiangulo/gocypher"
	"github.com/brunobiangulo/gocypher/graphdb"
	"github.com/brunobiangulo/gocypher/schema"
)

// Executor runs statements against a live database. *graphdb.Client
// satisfies it.
type Executor interface {
	Execute(ctx context.Context, statement string, params map[string]any) (*graphdb.Execution, error)
	Schema(ctx context.Context) (*schema.Description, error)
}

// New creates an MCP server with all tools registered. db may be nil, in
// which case execute_query is not offered and only the bundled sample
// schemas can be referenced by name.
func New(engine gocypher.Engine, db Executor, version string) *mcp.Server {
	t := &Tools{Engine: engine, DB: db}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "gocypher",
		Version: version,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "synthesize_query",
		Description: "Translate a natural-language request into a bounded, screened Cypher statement for a database schema",
	}, t.SynthesizeQuery)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "summarize_results",
		Description: "Explain a Cypher statement and its result set in a few plain sentences",
	}, t.SummarizeResults)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "validate_query",
		Description: "Extract, normalize and screen a Cypher statement or raw model response without executing it",
	}, t.ValidateQuery)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "format_schema",
		Description: "Render a database schema as the plain-text listing used in generation prompts",
	}, t.FormatSchema)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_databases",
		Description: "List the bundled sample databases and their suggested requests",
	}, t.ListDatabases)

	if db != nil {
		mcp.AddTool(srv, &mcp.Tool{
			Name:        "execute_query",
			Description: "Run a Cypher statement on the connected Neo4j database (destructive statements are refused)",
		}, t.ExecuteQuery)
	}

	return srv
}
