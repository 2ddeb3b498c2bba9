package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	historyLimit    int
	historyDatabase string
	historyJSON     bool
	historyStats    bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently synthesized statements",
	Long: `Show recent entries of the audit log, newest first.

Example:
  gocypher history
  gocypher history --database movies --limit 5
  gocypher history --stats`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Max entries to show")
	historyCmd.Flags().StringVarP(&historyDatabase, "database", "d", "", "Only show entries for this database")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print entries as JSON")
	historyCmd.Flags().BoolVar(&historyStats, "stats", false, "Print aggregate statistics instead of entries")
}

func runHistory(cmd *cobra.Command, args []string) error {
	engine, _, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if historyStats {
		stats, err := engine.Stats(ctx)
		if err != nil {
			return err
		}
		if historyJSON {
			return printJSON(cmd, stats)
		}
		fmt.Fprintf(out, "Total:      %d\n", stats.Total)
		fmt.Fprintf(out, "Generated:  %d\n", stats.Generated)
		fmt.Fprintf(out, "Fallback:   %d\n", stats.Fallback)
		fmt.Fprintf(out, "Succeeded:  %d\n", stats.Succeeded)
		fmt.Fprintf(out, "Avg time:   %.0fms\n", stats.AvgElapsedMs)
		backends := make([]string, 0, len(stats.ByBackend))
		for b := range stats.ByBackend {
			backends = append(backends, b)
		}
		sort.Strings(backends)
		for _, b := range backends {
			fmt.Fprintf(out, "  %-10s %d\n", b, stats.ByBackend[b])
		}
		return nil
	}

	logs, err := engine.History(ctx, historyLimit, historyDatabase)
	if err != nil {
		return err
	}
	if historyJSON {
		return printJSON(cmd, logs)
	}
	if len(logs) == 0 {
		fmt.Fprintln(out, "No statements recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tDATABASE\tPROVENANCE\tSTATEMENT")
	for _, l := range logs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", l.ID, l.CreatedAt, l.Database, l.Provenance, oneLine(l.Statement, 60))
	}
	return w.Flush()
}

var (
	learnDatabase string
)

var learnCmd = &cobra.Command{
	Use:   "learn <request> <statement>",
	Short: "Add a request/statement pair to the example library",
	Long: `Store a vetted request/statement pair. Stored examples are retrieved
into future generation prompts for the same database.

Example:
  gocypher learn "movies from 1999" "MATCH (m:Movie {releaseYear: 1999}) RETURN m.title" -d movies`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := openEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		id, err := engine.Learn(cmd.Context(), learnDatabase, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored example %d for %s\n", id, learnDatabase)
		return nil
	},
}

func init() {
	learnCmd.Flags().StringVarP(&learnDatabase, "database", "d", "movies", "Database the example applies to")
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// oneLine collapses whitespace and truncates s to max runes.
func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
