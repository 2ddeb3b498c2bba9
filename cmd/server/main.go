package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brunobiangulo/gocypher"
	"github.com/brunobiangulo/gocypher/graphdb"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON or YAML)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := gocypher.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = gocypher.LoadConfig(*configPath)
		if err != nil {
			slog.Error("loading config", "error", err)
			os.Exit(1)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		slog.Error("reading environment", "error", err)
		os.Exit(1)
	}

	apiKey := os.Getenv("GOCYPHER_API_KEY")
	corsOrigins := os.Getenv("GOCYPHER_CORS_ORIGINS")

	engine, err := gocypher.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	// The server still synthesizes statements for the bundled samples
	// when Neo4j is unreachable.
	var db graphDB
	if cfg.Neo4j.URI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		client, err := graphdb.Connect(ctx, cfg.Neo4j)
		cancel()
		if err != nil {
			slog.Warn("neo4j unavailable, continuing without execution", "uri", cfg.Neo4j.URI, "error", err)
		} else {
			db = client
			defer client.Close(context.Background())
		}
	}

	h := newHandler(engine, db)
	mux := http.NewServeMux()
	h.register(mux)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      chain(mux, apiKey, corsOrigins),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr, "llm", engine.LLMStatus().Provider, "neo4j", db != nil)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// chain wraps the mux in the middleware stack:
// recovery -> cors -> request id -> auth -> logging -> mux
func chain(mux http.Handler, apiKey, corsOrigins string) http.Handler {
	handler := logMiddleware(mux)
	handler = authMiddleware(apiKey, handler)
	handler = requestIDMiddleware(handler)
	handler = corsMiddleware(corsOrigins, handler)
	return recoveryMiddleware(handler)
}
