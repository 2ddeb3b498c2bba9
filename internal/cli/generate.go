package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/gocypher"
	"github.com/brunobiangulo/gocypher/export"
	"github.com/brunobiangulo/gocypher/graphdb"
)

var (
	genDatabase   string
	genSchemaFile string
	genJSON       bool
	genExecute    bool
	genExplain    bool
	genOutput     string
)

var generateCmd = &cobra.Command{
	Use:   "generate <request>",
	Short: "Generate a Cypher statement from a request",
	Long: `Translate a natural-language request into a bounded Cypher statement.

The statement is printed on stdout; provenance goes to stderr. With
--execute the statement runs on the configured Neo4j database and the
records are written as CSV, or to --output (.csv or .xlsx).

Example:
  gocypher generate "movies rated above 8" --database movies
  gocypher generate "who manages Alice" --schema-file schema.yaml --json
  gocypher generate "top rated movies" -d live --execute --explain`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&genDatabase, "database", "d", "movies", "Sample database id or live")
	generateCmd.Flags().StringVarP(&genSchemaFile, "schema-file", "f", "", "Read the schema from a JSON or YAML file")
	generateCmd.Flags().BoolVar(&genJSON, "json", false, "Print the full outcome as JSON")
	generateCmd.Flags().BoolVar(&genExecute, "execute", false, "Run the statement on Neo4j")
	generateCmd.Flags().BoolVar(&genExplain, "explain", false, "Explain the results (implies --execute)")
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "", "Write results to a .csv or .xlsx file")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := resolveSchema(ctx, genDatabase, genSchemaFile)
	if err != nil {
		return err
	}

	engine, cfg, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	database := genDatabase
	if genSchemaFile != "" {
		database = filepath.Base(genSchemaFile)
	}
	outcome, err := engine.SynthesizeQuery(ctx, args[0], d, gocypher.WithDatabase(database))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if genJSON {
		data, err := json.MarshalIndent(outcome, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		fmt.Fprintln(out, outcome.Statement)
		fmt.Fprintf(cmd.ErrOrStderr(), "provenance=%s backend=%s elapsed=%dms\n",
			outcome.Provenance, outcome.Backend, outcome.ElapsedMs)
		if outcome.RejectReason != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "generated statement rejected: %s\n", outcome.RejectReason)
		}
	}

	if !genExecute && !genExplain {
		return nil
	}

	client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	exec, err := client.Execute(ctx, outcome.Statement, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d records in %dms\n", exec.RecordCount, exec.ElapsedMs)

	if genOutput != "" {
		if err := writeResults(genOutput, exec); err != nil {
			return err
		}
	} else if !genJSON {
		if err := export.WriteCSV(out, exec.Result); err != nil {
			return err
		}
	}

	if genExplain {
		explanation := engine.SummarizeResults(ctx, outcome.Statement, exec.Result, args[0],
			gocypher.WithRequestID(outcome.RequestID), gocypher.WithDatabase(database))
		fmt.Fprintln(out)
		fmt.Fprintln(out, explanation.Text)
	}
	return nil
}

// writeResults exports records to a file whose extension names the format.
func writeResults(path string, exec *graphdb.Execution) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if !export.Supported(format) {
		return fmt.Errorf("unsupported output format %q (use %s)", format, strings.Join(export.Formats, " or "))
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := export.Write(f, format, exec.Result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
