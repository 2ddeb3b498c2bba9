// Command mcp serves the gocypher tools over the Model Context Protocol,
// on stdio or streamable HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/brunobiangulo/gocypher"
	"github.com/brunobiangulo/gocypher/graphdb"
	"github.com/brunobiangulo/gocypher/mcpserver"
)

func main() {
	transport := flag.String("transport", "stdio", "Transport mode: stdio or http")
	port := flag.String("port", "8081", "HTTP port (only used with --transport http)")
	configPath := flag.String("config", "", "Path to config file (JSON or YAML)")
	flag.Parse()

	// stdout carries the protocol on stdio, so logs go to stderr.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := gocypher.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = gocypher.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatalf("Failed to read environment: %v", err)
	}

	engine, err := gocypher.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	defer engine.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var db mcpserver.Executor
	if cfg.Neo4j.URI != "" {
		cctx, ccancel := context.WithTimeout(ctx, 15*time.Second)
		client, err := graphdb.Connect(cctx, cfg.Neo4j)
		ccancel()
		if err != nil {
			slog.Warn("neo4j unavailable, execute_query disabled", "uri", cfg.Neo4j.URI, "error", err)
		} else {
			db = client
			defer client.Close(context.Background())
		}
	}

	// Build the MCP server with all tools registered
	srv := mcpserver.New(engine, db, gocypher.Version)

	switch *transport {
	case "stdio":
		slog.Info("gocypher MCP server starting", "transport", "stdio")
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case "http":
		addr := ":" + *port
		handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
			return srv
		}, nil)
		httpSrv := &http.Server{Addr: addr, Handler: handler}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			httpSrv.Shutdown(shutdownCtx)
		}()
		slog.Info("gocypher MCP server listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	default:
		log.Fatalf("Unknown transport: %s (use stdio or http)", *transport)
	}
}
