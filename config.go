package gocypher

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/gocypher/graphdb"
	"github.com/brunobiangulo/gocypher/llm"
)

// Config holds all configuration for the gocypher engine.
type Config struct {
	// LLM is the text-generation backend: gemini, openai, anthropic or groq.
	LLM llm.Config `json:"llm" yaml:"llm"`

	// Embedding is optional. When set, stored examples are retrieved by
	// request similarity in addition to keyword search.
	Embedding llm.Config `json:"embedding" yaml:"embedding"`

	// Timeout bounds each generation call. YAML accepts "30s"; JSON takes
	// nanoseconds. Defaults to 30s.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// DBPath is the full path to the SQLite audit database.
	// If empty, defaults to ~/.gocypher/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. Options: "home" (default) uses ~/.gocypher/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// DisableStore turns off the audit log and example library.
	DisableStore bool `json:"disable_store" yaml:"disable_store"`

	// Neo4j connection used by the server and CLI to execute statements.
	Neo4j graphdb.Config `json:"neo4j" yaml:"neo4j"`

	// ExampleResults caps the retrieved examples added to each prompt.
	ExampleResults int `json:"example_results" yaml:"example_results"`

	// Embedding dimensions (must match model)
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`
}

// DefaultConfig returns a Config with defaults matching the hosted
// backends. The database is stored in ~/.gocypher/gocypher.db.
func DefaultConfig() Config {
	return Config{
		LLM: llm.Config{
			Provider: "gemini",
		},
		Timeout:        llm.DefaultTimeout,
		DBName:         "gocypher",
		StorageDir:     "home",
		ExampleResults: 3,
		EmbeddingDim:   768,
		Neo4j: graphdb.Config{
			Username: "neo4j",
		},
	}
}

// LoadConfig reads a JSON or YAML file (chosen by extension) over
// DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		return cfg, fmt.Errorf("%w: unsupported config extension %q", ErrInvalidConfig, filepath.Ext(path))
	}
	if err != nil {
		return cfg, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. GOCYPHER_*
// variables win over the unprefixed LLM_* and NEO4J_* ones.
func (c *Config) ApplyEnv() error {
	setString(&c.LLM.Provider, "LLM_PROVIDER", "GOCYPHER_LLM_PROVIDER")
	setString(&c.LLM.APIKey, "LLM_API_KEY", "GOCYPHER_LLM_API_KEY")
	setString(&c.LLM.Model, "GOCYPHER_LLM_MODEL")
	setString(&c.LLM.BaseURL, "GOCYPHER_LLM_BASE_URL")

	setString(&c.Embedding.Provider, "GOCYPHER_EMBEDDING_PROVIDER")
	setString(&c.Embedding.APIKey, "GOCYPHER_EMBEDDING_API_KEY")
	setString(&c.Embedding.Model, "GOCYPHER_EMBEDDING_MODEL")
	setString(&c.Embedding.BaseURL, "GOCYPHER_EMBEDDING_BASE_URL")

	setString(&c.Neo4j.URI, "NEO4J_URI", "GOCYPHER_NEO4J_URI")
	setString(&c.Neo4j.Username, "NEO4J_USERNAME", "GOCYPHER_NEO4J_USERNAME")
	setString(&c.Neo4j.Password, "NEO4J_PASSWORD", "GOCYPHER_NEO4J_PASSWORD")
	setString(&c.Neo4j.Database, "NEO4J_DATABASE", "GOCYPHER_NEO4J_DATABASE")

	setString(&c.DBPath, "GOCYPHER_DB_PATH")
	setString(&c.DBName, "GOCYPHER_DB_NAME")
	setString(&c.StorageDir, "GOCYPHER_STORAGE_DIR")

	if v := os.Getenv("GOCYPHER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: GOCYPHER_TIMEOUT: %v", ErrInvalidConfig, err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("GOCYPHER_DISABLE_STORE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: GOCYPHER_DISABLE_STORE: %v", ErrInvalidConfig, err)
		}
		c.DisableStore = b
	}
	for name, dst := range map[string]*int{
		"GOCYPHER_EXAMPLE_RESULTS": &c.ExampleResults,
		"GOCYPHER_EMBEDDING_DIM":   &c.EmbeddingDim,
	} {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
			}
			*dst = n
		}
	}
	return nil
}

// setString assigns the last non-empty variable among names.
func setString(dst *string, names ...string) {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
}

// Validate checks the settings New depends on.
func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		return fmt.Errorf("%w: llm provider not specified", ErrInvalidConfig)
	}
	if !llm.StatusOf(c.LLM).Supported {
		return fmt.Errorf("%w: unknown llm provider %q", ErrInvalidConfig, c.LLM.Provider)
	}
	if c.Embedding.Provider != "" && !llm.StatusOf(c.Embedding).Supported {
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, c.Embedding.Provider)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	if c.EmbeddingDim < 0 || c.ExampleResults < 0 {
		return fmt.Errorf("%w: negative size", ErrInvalidConfig)
	}
	return nil
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "gocypher"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".gocypher", name+".db")
	}
}

// llmConfig returns the generation backend settings with the engine
// timeout applied.
func (c *Config) llmConfig() llm.Config {
	lc := c.LLM
	if c.Timeout > 0 {
		lc.Timeout = c.Timeout
	}
	return lc.Resolved()
}
