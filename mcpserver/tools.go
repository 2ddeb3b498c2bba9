package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/brunobiangulo/gocypher"
	"github.com/brunobiangulo/gocypher/cypher"
	"github.com/brunobiangulo/gocypher/graph"
	"github.com/brunobiangulo/gocypher/schema"
)

// liveDatabase names the connected database in tool inputs.
const liveDatabase = "live"

// Tools holds references needed by the tool handlers.
type Tools struct {
	Engine gocypher.Engine
	DB     Executor
}

// --- Input types ---

type SynthesizeQueryInput struct {
	Request  string              `json:"request" jsonschema:"Natural-language request to translate"`
	Database string              `json:"database,omitempty" jsonschema:"Sample database id (movies, social, company) or live for the connected database"`
	Schema   *schema.Description `json:"schema,omitempty" jsonschema:"Inline schema; overrides database"`
}

type SummarizeResultsInput struct {
	Statement string           `json:"statement" jsonschema:"The statement that produced the results"`
	Request   string           `json:"request,omitempty" jsonschema:"The original natural-language request"`
	RequestID string           `json:"request_id,omitempty" jsonschema:"Request id returned by synthesize_query, to link the explanation in the audit log"`
	Results   *graph.ResultSet `json:"results,omitempty" jsonschema:"Result set with records and fields"`
}

type ValidateQueryInput struct {
	Statement string `json:"statement,omitempty" jsonschema:"Cypher statement to screen"`
	Response  string `json:"response,omitempty" jsonschema:"Raw model response to extract a statement from"`
}

type FormatSchemaInput struct {
	Database string              `json:"database,omitempty" jsonschema:"Sample database id or live"`
	Schema   *schema.Description `json:"schema,omitempty" jsonschema:"Inline schema; overrides database"`
}

type ListDatabasesInput struct{}

type ExecuteQueryInput struct {
	Statement string         `json:"statement" jsonschema:"Cypher statement to run"`
	Params    map[string]any `json:"params,omitempty" jsonschema:"Statement parameters"`
	Request   string         `json:"request,omitempty" jsonschema:"Original request; when set the results are explained"`
	RequestID string         `json:"request_id,omitempty" jsonschema:"Request id returned by synthesize_query"`
}

// --- Output types ---

// Validation is the result of validate_query.
type Validation struct {
	Statement  string         `json:"statement"`
	Normalized string         `json:"normalized"`
	Verdict    cypher.Verdict `json:"verdict"`
	Bounded    bool           `json:"bounded"`
	Write      bool           `json:"write"`
}

// --- Handlers ---

func (t *Tools) SynthesizeQuery(ctx context.Context, _ *mcp.CallToolRequest, input SynthesizeQueryInput) (*mcp.CallToolResult, any, error) {
	if input.Request == "" {
		return toolError("request is required"), nil, nil
	}
	d, err := t.resolveSchema(ctx, input.Database, input.Schema)
	if err != nil {
		return toolError("Failed to resolve schema: %v", err), nil, nil
	}

	out, err := t.Engine.SynthesizeQuery(ctx, input.Request, d, gocypher.WithDatabase(input.Database))
	if err != nil {
		return toolError("Failed to synthesize: %v", err), nil, nil
	}
	return toolJSON(out)
}

func (t *Tools) SummarizeResults(ctx context.Context, _ *mcp.CallToolRequest, input SummarizeResultsInput) (*mcp.CallToolResult, any, error) {
	if input.Statement == "" {
		return toolError("statement is required"), nil, nil
	}
	var opts []gocypher.Option
	if input.RequestID != "" {
		opts = append(opts, gocypher.WithRequestID(input.RequestID))
	}
	return toolJSON(t.Engine.SummarizeResults(ctx, input.Statement, input.Results, input.Request, opts...))
}

func (t *Tools) ValidateQuery(_ context.Context, _ *mcp.CallToolRequest, input ValidateQueryInput) (*mcp.CallToolResult, any, error) {
	statement := input.Statement
	if input.Response != "" {
		statement = cypher.Extract(input.Response)
	}
	if statement == "" {
		return toolError("statement or response is required"), nil, nil
	}
	normalized := cypher.Normalize(statement)
	return toolJSON(Validation{
		Statement:  statement,
		Normalized: normalized,
		Verdict:    cypher.Validate(normalized),
		Bounded:    cypher.IsBounded(statement),
		Write:      cypher.IsWrite(normalized),
	})
}

func (t *Tools) FormatSchema(ctx context.Context, _ *mcp.CallToolRequest, input FormatSchemaInput) (*mcp.CallToolResult, any, error) {
	d, err := t.resolveSchema(ctx, input.Database, input.Schema)
	if err != nil {
		return toolError("Failed to resolve schema: %v", err), nil, nil
	}
	text, err := schema.Format(d)
	if err != nil {
		return toolError("Failed to format schema: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

func (t *Tools) ListDatabases(_ context.Context, _ *mcp.CallToolRequest, _ ListDatabasesInput) (*mcp.CallToolResult, any, error) {
	type entry struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Suggestions []string `json:"suggestions,omitempty"`
	}
	var out []entry
	if t.DB != nil {
		out = append(out, entry{ID: liveDatabase, Name: "Connected database"})
	}
	for _, s := range schema.Samples() {
		out = append(out, entry{ID: s.ID, Name: s.Name, Description: s.Description, Suggestions: s.Suggestions})
	}
	return toolJSON(out)
}

func (t *Tools) ExecuteQuery(ctx context.Context, _ *mcp.CallToolRequest, input ExecuteQueryInput) (*mcp.CallToolResult, any, error) {
	if t.DB == nil {
		return toolError("No database connected."), nil, nil
	}
	if input.Statement == "" {
		return toolError("statement is required"), nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	exec, err := t.DB.Execute(ctx, input.Statement, input.Params)
	if err != nil {
		return toolError("Failed to execute: %v", err), nil, nil
	}

	resp := map[string]any{"execution": exec}
	if input.Request != "" {
		var opts []gocypher.Option
		if input.RequestID != "" {
			opts = append(opts, gocypher.WithRequestID(input.RequestID))
		}
		resp["explanation"] = t.Engine.SummarizeResults(ctx, input.Statement, exec.Result, input.Request, opts...)
	}
	return toolJSON(resp)
}

// resolveSchema prefers an inline schema, then a bundled sample, then the
// live database.
func (t *Tools) resolveSchema(ctx context.Context, database string, inline *schema.Description) (*schema.Description, error) {
	if inline != nil {
		return inline, nil
	}
	if s, ok := schema.Sample(database); ok {
		return s.Schema, nil
	}
	if database == liveDatabase || database == "" {
		if t.DB == nil {
			if database == "" {
				return nil, errors.New("database or schema is required")
			}
			return nil, gocypher.ErrNotConnected
		}
		return t.DB.Schema(ctx)
	}
	return nil, fmt.Errorf("%w: %s", gocypher.ErrUnknownDatabase, database)
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
