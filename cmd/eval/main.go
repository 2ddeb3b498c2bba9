// Command eval runs evaluation datasets against a gocypher engine.
//
// Bundled datasets:
//
//	go run ./cmd/eval \
//	  --chat-provider groq \
//	  --chat-model llama-3.3-70b-versatile \
//	  --dataset all
//
// Custom dataset file:
//
//	go run ./cmd/eval \
//	  --dataset-file ./evals/music.json \
//	  --chat-provider openai --chat-model gpt-4
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/brunobiangulo/gocypher"
	"github.com/brunobiangulo/gocypher/eval"
	"github.com/brunobiangulo/gocypher/llm"
)

// stringSlice implements flag.Value for multi-value string flags.
type stringSlice []string

func (s *stringSlice) String() string { return strings.Join(*s, ", ") }
func (s *stringSlice) Set(val string) error {
	*s = append(*s, val)
	return nil
}

func main() {
	var datasetFiles stringSlice

	var (
		configPath    = flag.String("config", "", "Path to a JSON or YAML config file")
		dataset       = flag.String("dataset", "all", "Bundled dataset to run: movies, social, company, all, none")
		chatProvider  = flag.String("chat-provider", "", "Chat LLM provider (default: from config/env)")
		chatModel     = flag.String("chat-model", "", "Chat model name")
		chatBaseURL   = flag.String("chat-base-url", "", "Chat provider base URL override")
		chatAPIKey    = flag.String("chat-api-key", "", "Chat provider API key (default: from env)")
		timeout       = flag.Duration("timeout", 0, "Per-request generation timeout (default: from config)")
		useStore      = flag.Bool("store", false, "Log runs to the audit store and use learned examples")
		dbPath        = flag.String("db", "", "Path to SQLite database (default: inside run directory)")
		embedProvider = flag.String("embed-provider", "", "Embedding provider for example retrieval")
		embedModel    = flag.String("embed-model", "", "Embedding model name")
		maxTests      = flag.Int("max-tests", 0, "Max tests per dataset (0=all)")
		outputFile    = flag.String("output", "", "Path to write JSON report (default: inside run directory)")
	)
	flag.Var(&datasetFiles, "dataset-file", "Path to dataset JSON file (repeatable)")
	flag.Parse()

	cfg := gocypher.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = gocypher.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatalf("reading environment: %v", err)
	}
	if *chatProvider != "" {
		cfg.LLM.Provider = *chatProvider
	}
	if *chatModel != "" {
		cfg.LLM.Model = *chatModel
	}
	if *chatBaseURL != "" {
		cfg.LLM.BaseURL = *chatBaseURL
	}
	if *chatAPIKey != "" {
		cfg.LLM.APIKey = *chatAPIKey
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *embedProvider != "" {
		cfg.Embedding = llm.Config{Provider: *embedProvider, Model: *embedModel, APIKey: cfg.LLM.APIKey}
	}

	datasets := selectDatasets(*dataset)
	if datasets == nil {
		log.Fatalf("unknown --dataset: %s (use: movies, social, company, all, none)", *dataset)
	}
	for _, path := range datasetFiles {
		ds, err := eval.LoadDataset(path)
		if err != nil {
			log.Fatalf("loading dataset: %v", err)
		}
		datasets = append(datasets, ds)
	}
	if len(datasets) == 0 {
		log.Fatal("nothing to run: pass --dataset or --dataset-file")
	}
	if *maxTests > 0 {
		datasets = limitDatasetTests(datasets, *maxTests)
	}

	runDir := createRunDir()
	fmt.Fprintf(os.Stderr, "Run directory: %s\n", runDir)

	logFile := setupLogTee(runDir)
	defer logFile.Close()

	cfg.DisableStore = !*useStore
	if *useStore {
		cfg.DBPath = *dbPath
		if cfg.DBPath == "" {
			cfg.DBPath = filepath.Join(runDir, "gocypher.db")
		}
	}

	engine, err := gocypher.New(cfg)
	if err != nil {
		log.Fatalf("creating engine: %v", err)
	}
	defer engine.Close()

	status := engine.LLMStatus()
	meta := map[string]interface{}{
		"started_at":    time.Now().Format(time.RFC3339),
		"git_commit":    gitCommit(),
		"go_version":    runtime.Version(),
		"provider":      status.Provider,
		"model":         status.Model,
		"base_url":      status.BaseURL,
		"timeout":       cfg.Timeout.String(),
		"store":         *useStore,
		"datasets":      datasetNames(datasets),
		"max_tests":     *maxTests,
		"dataset_files": strings.Join(datasetFiles, ","),
	}
	writeJSON(filepath.Join(runDir, "metadata.json"), meta)

	ctx := context.Background()
	var allReports []*eval.Report
	evalStart := time.Now()

	for _, ds := range datasets {
		fmt.Fprintf(os.Stderr, "\nRunning %s (%d tests)...\n", ds.Name, len(ds.Tests))
		report, err := eval.Run(ctx, engine, ds)
		if err != nil {
			log.Fatalf("running %s: %v", ds.Name, err)
		}
		allReports = append(allReports, report)
		fmt.Println(eval.FormatReport(report))
		fmt.Println()
	}

	meta["eval_elapsed"] = time.Since(evalStart).Round(time.Millisecond).String()
	writeJSON(filepath.Join(runDir, "metadata.json"), meta)

	reportPath := filepath.Join(runDir, "eval-report.json")
	if *outputFile != "" {
		reportPath = *outputFile
	}
	writeJSON(reportPath, allReports)
	fmt.Fprintf(os.Stderr, "Report written to %s\n", reportPath)

	if *useStore {
		if stats, err := engine.Stats(ctx); err == nil {
			fmt.Fprintf(os.Stderr, "Audit log: %d statements, %d generated, %d fallback\n",
				stats.Total, stats.Generated, stats.Fallback)
		}
	}
	fmt.Fprintf(os.Stderr, "\nRun directory: %s\n", runDir)
}

func selectDatasets(name string) []eval.Dataset {
	switch strings.ToLower(name) {
	case "all":
		return eval.AllDatasets()
	case "movies":
		return []eval.Dataset{eval.MoviesDataset()}
	case "social":
		return []eval.Dataset{eval.SocialDataset()}
	case "company":
		return []eval.Dataset{eval.CompanyDataset()}
	case "none":
		return []eval.Dataset{}
	default:
		return nil
	}
}

func datasetNames(datasets []eval.Dataset) []string {
	names := make([]string, len(datasets))
	for i, ds := range datasets {
		names[i] = ds.Name
	}
	return names
}

// limitDatasetTests truncates each dataset's test list to maxTests.
func limitDatasetTests(datasets []eval.Dataset, maxTests int) []eval.Dataset {
	result := make([]eval.Dataset, len(datasets))
	for i, ds := range datasets {
		result[i] = ds
		if len(ds.Tests) > maxTests {
			result[i].Tests = ds.Tests[:maxTests]
		}
	}
	return result
}

// createRunDir creates evals/runs/<timestamp>/ and returns its path.
func createRunDir() string {
	ts := time.Now().Format("2006-01-02_15-04-05")
	dir := filepath.Join("evals", "runs", ts)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatalf("creating run directory: %v", err)
	}
	return dir
}

// setupLogTee configures slog to write to both stderr and eval.log in the run dir.
func setupLogTee(runDir string) *os.File {
	logPath := filepath.Join(runDir, "eval.log")
	f, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("creating log file: %v", err)
	}
	w := io.MultiWriter(os.Stderr, f)
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(handler))
	return f
}

// gitCommit returns the current git HEAD short hash, or "unknown".
func gitCommit() string {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

// writeJSON marshals v to indented JSON and writes it to path.
func writeJSON(path string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("marshaling JSON for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Fatalf("writing %s: %v", path, err)
	}
}
