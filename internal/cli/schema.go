package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/gocypher"
	"github.com/brunobiangulo/gocypher/schema"
)

// liveDatabase selects the schema of the configured Neo4j database.
const liveDatabase = "live"

var (
	schemaFile string
	schemaJSON bool
)

var schemaCmd = &cobra.Command{
	Use:   "schema [database]",
	Short: "List sample databases or print a schema",
	Long: `Print a database schema as it appears in generation prompts.

Without arguments, lists the bundled sample databases. The database may be
a sample id (movies, social, company) or "live" for the configured Neo4j
database.

Example:
  gocypher schema
  gocypher schema movies
  gocypher schema live --json
  gocypher schema --file schema.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaFile, "file", "f", "", "Read the schema from a JSON or YAML file")
	schemaCmd.Flags().BoolVar(&schemaJSON, "json", false, "Print the schema description as JSON")
}

func runSchema(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 0 && schemaFile == "" {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tLABELS")
		for _, s := range schema.Samples() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.Name, strings.Join(s.Schema.Labels(), ", "))
		}
		return w.Flush()
	}

	database := ""
	if len(args) == 1 {
		database = args[0]
	}
	d, err := resolveSchema(cmd.Context(), database, schemaFile)
	if err != nil {
		return err
	}

	if schemaJSON {
		data, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	text, err := schema.Format(d)
	if err != nil {
		return err
	}
	fmt.Fprint(out, text)
	return nil
}

// resolveSchema loads a schema from a file, a bundled sample or the live
// database, in that order.
func resolveSchema(ctx context.Context, database, file string) (*schema.Description, error) {
	if file != "" {
		return readSchemaFile(file)
	}
	if s, ok := schema.Sample(database); ok {
		return s.Schema, nil
	}
	if database != liveDatabase {
		return nil, fmt.Errorf("%w: %q", gocypher.ErrUnknownDatabase, database)
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	client, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer client.Close(context.Background())
	return client.Schema(ctx)
}

// readSchemaFile decodes a schema description. Files ending in .yaml or
// .yml are read as YAML, everything else as JSON.
func readSchemaFile(path string) (*schema.Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var d schema.Description
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("%w: %v", schema.ErrInvalidSchema, err)
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		return &d, nil
	default:
		return schema.Parse(data)
	}
}
