// Package graphdb executes statements against Neo4j and introspects its
// schema, converting driver values into the graph package's result shape.
package graphdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/brunobiangulo/gocypher/cypher"
	"github.com/brunobiangulo/gocypher/graph"
)

var (
	// ErrNotConnected is returned when the client has no open driver.
	ErrNotConnected = errors.New("graphdb: not connected")

	// ErrUnsafeStatement is returned for statements that are never executed.
	ErrUnsafeStatement = errors.New("graphdb: unsafe statement")

	// ErrInvalidConfig is returned when the connection settings are incomplete.
	ErrInvalidConfig = errors.New("graphdb: invalid configuration")
)

// Config holds Neo4j connection settings.
type Config struct {
	URI      string `json:"uri" yaml:"uri"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"` // empty selects the server default
}

// Execution is the result of Execute.
type Execution struct {
	Result      *graph.ResultSet `json:"results"`
	RecordCount int              `json:"recordCount"`
	ElapsedMs   int64            `json:"executionTime"`
	Write       bool             `json:"write"`
}

// Stats summarises database size.
type Stats struct {
	TotalNodes         int64 `json:"totalNodes"`
	NodeTypes          int64 `json:"nodeTypes"`
	TotalRelationships int64 `json:"totalRelationships"`
	RelationshipTypes  int64 `json:"relationshipTypes"`
}

// Status describes the client connection.
type Status struct {
	Connected bool   `json:"connected"`
	URI       string `json:"uri,omitempty"`
	Database  string `json:"database,omitempty"`
	Agent     string `json:"agent,omitempty"`
}

// Client wraps a Neo4j driver.
type Client struct {
	mu     sync.RWMutex
	driver neo4j.DriverWithContext
	cfg    Config
	agent  string
}

// Connect creates a driver and verifies connectivity.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("%w: uri is required", ErrInvalidConfig)
	}
	if cfg.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidConfig)
	}
	username := cfg.Username
	if username == "" {
		username = "neo4j"
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connection test failed: %w", err)
	}

	c := &Client{driver: driver, cfg: cfg}
	if info, err := driver.GetServerInfo(ctx); err == nil {
		c.agent = info.Agent()
	}
	slog.Info("graphdb: connected", "uri", cfg.URI, "database", cfg.Database, "agent", c.agent)
	return c, nil
}

// Ping re-verifies connectivity.
func (c *Client) Ping(ctx context.Context) error {
	driver, err := c.get()
	if err != nil {
		return err
	}
	return driver.VerifyConnectivity(ctx)
}

// Status reports the connection without contacting the server.
func (c *Client) Status() Status {
	if c == nil {
		return Status{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		Connected: c.driver != nil,
		URI:       c.cfg.URI,
		Database:  c.cfg.Database,
		Agent:     c.agent,
	}
}

// Close closes the driver. Later calls return ErrNotConnected.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.driver == nil {
		return nil
	}
	err := c.driver.Close(ctx)
	c.driver = nil
	return err
}

func (c *Client) get() (neo4j.DriverWithContext, error) {
	if c == nil {
		return nil, ErrNotConnected
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.driver == nil {
		return nil, ErrNotConnected
	}
	return c.driver, nil
}

// Execute runs a statement in a read or write transaction chosen by its
// clauses. Statements that drop schema or detach-delete without a guard
// are refused with ErrUnsafeStatement.
func (c *Client) Execute(ctx context.Context, statement string, params map[string]any) (*Execution, error) {
	if reason, bad := cypher.Destructive(statement); bad {
		return nil, fmt.Errorf("%w: %s", ErrUnsafeStatement, reason)
	}
	start := time.Now()
	write := cypher.IsWrite(statement)
	rs, err := c.run(ctx, statement, params, write)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	slog.Debug("graphdb: executed", "write", write, "records", rs.Len(), "elapsed", elapsed.Round(time.Millisecond))
	return &Execution{
		Result:      rs,
		RecordCount: rs.Len(),
		ElapsedMs:   elapsed.Milliseconds(),
		Write:       write,
	}, nil
}

func (c *Client) run(ctx context.Context, statement string, params map[string]any, write bool) (*graph.ResultSet, error) {
	driver, err := c.get()
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = map[string]any{}
	}

	mode := neo4j.AccessModeRead
	if write {
		mode = neo4j.AccessModeWrite
	}
	session := driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.cfg.Database, AccessMode: mode})
	defer session.Close(ctx)

	work := func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, statement, params)
		if err != nil {
			return nil, err
		}
		keys, err := result.Keys()
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		return collect(keys, records), nil
	}

	var out any
	if write {
		out, err = session.ExecuteWrite(ctx, work)
	} else {
		out, err = session.ExecuteRead(ctx, work)
	}
	if err != nil {
		return nil, fmt.Errorf("executing statement: %w", err)
	}
	return out.(*graph.ResultSet), nil
}

// Stats counts nodes, labels, relationships and relationship types.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	nodes, err := c.run(ctx,
		"MATCH (n) RETURN count(n) AS totalNodes, count(DISTINCT labels(n)) AS nodeTypes", nil, false)
	if err != nil {
		return nil, fmt.Errorf("counting nodes: %w", err)
	}
	rels, err := c.run(ctx,
		"MATCH ()-[r]->() RETURN count(r) AS totalRelationships, count(DISTINCT type(r)) AS relationshipTypes", nil, false)
	if err != nil {
		return nil, fmt.Errorf("counting relationships: %w", err)
	}

	stats := &Stats{}
	if len(nodes.Records) > 0 {
		stats.TotalNodes = asInt(nodes.Records[0]["totalNodes"])
		stats.NodeTypes = asInt(nodes.Records[0]["nodeTypes"])
	}
	if len(rels.Records) > 0 {
		stats.TotalRelationships = asInt(rels.Records[0]["totalRelationships"])
		stats.RelationshipTypes = asInt(rels.Records[0]["relationshipTypes"])
	}
	return stats, nil
}

func asInt(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	default:
		return 0
	}
}
