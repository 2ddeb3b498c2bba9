// Package cli implements the gocypher command-line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/gocypher"
	"github.com/brunobiangulo/gocypher/graphdb"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "gocypher",
	Short: "Translate natural-language requests into Cypher",
	Long: `gocypher - natural language to Cypher

gocypher turns a plain-language request into a bounded, screened Cypher
statement for a graph schema, optionally runs it on Neo4j and explains
the results.

Quick Start:
  gocypher schema                       List the bundled sample databases
  gocypher generate "top rated movies"  Generate a statement for movies
  gocypher validate "MATCH (n) RETURN n"
  gocypher history                      Show recent statements`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (JSON or YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline steps to stderr")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(learnCmd)
	// versionCmd is registered in version.go
}

// newEngine builds the engine for commands that need one. Tests replace it.
var newEngine = func(cfg gocypher.Config) (gocypher.Engine, error) {
	return gocypher.New(cfg)
}

func loadConfig() (gocypher.Config, error) {
	cfg := gocypher.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = gocypher.LoadConfig(configPath); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func openEngine() (gocypher.Engine, gocypher.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cfg, err
	}
	engine, err := newEngine(cfg)
	if err != nil {
		return nil, cfg, fmt.Errorf("creating engine: %w", err)
	}
	return engine, cfg, nil
}

// connect opens the configured Neo4j database.
func connect(ctx context.Context, cfg gocypher.Config) (*graphdb.Client, error) {
	if cfg.Neo4j.URI == "" {
		return nil, fmt.Errorf("%w: set neo4j.uri or NEO4J_URI", gocypher.ErrNotConnected)
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return graphdb.Connect(ctx, cfg.Neo4j)
}
