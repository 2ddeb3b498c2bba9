package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/gocypher/cypher"
)

var extractCmd = &cobra.Command{
	Use:   "extract [response]",
	Short: "Pull a Cypher statement out of a model response",
	Long: `Extract the Cypher statement from a raw model response.

Reads the response from the argument, or from stdin when it is omitted
or "-". Prints the universal fallback when no statement is found.

Example:
  gocypher extract "Sure! MATCH (m:Movie) RETURN m.title"
  cat response.txt | gocypher extract`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := inputText(cmd, args)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cypher.Extract(text))
		return nil
	},
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize [statement]",
	Short: "Bound a statement with LIMIT and terminate DELETE",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := inputText(cmd, args)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cypher.Normalize(text))
		return nil
	},
}

var validateRaw bool

var validateCmd = &cobra.Command{
	Use:   "validate [statement]",
	Short: "Screen a statement without executing it",
	Long: `Normalize and screen a Cypher statement.

Exits non-zero when the statement is rejected. With --raw the input is
treated as a model response and the statement is extracted first.

Example:
  gocypher validate "MATCH (m:Movie) WHERE m.avgVote > 8 RETURN m"
  gocypher validate --raw < response.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateRaw, "raw", false, "Input is a model response; extract the statement first")
}

func runValidate(cmd *cobra.Command, args []string) error {
	text, err := inputText(cmd, args)
	if err != nil {
		return err
	}
	if validateRaw {
		text = cypher.Extract(text)
	}
	normalized := cypher.Normalize(text)
	verdict := cypher.Validate(normalized)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Statement: %s\n", normalized)
	fmt.Fprintf(out, "Bounded:   %v\n", cypher.IsBounded(text))
	fmt.Fprintf(out, "Write:     %v\n", cypher.IsWrite(normalized))
	if !verdict.Accepted {
		fmt.Fprintf(out, "Verdict:   rejected (%s)\n", verdict.Reason)
		return fmt.Errorf("statement rejected: %s", verdict.Reason)
	}
	fmt.Fprintln(out, "Verdict:   accepted")
	return nil
}

// inputText returns the single argument, or stdin when there is none.
func inputText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("no input: pass an argument or pipe text on stdin")
	}
	return text, nil
}
