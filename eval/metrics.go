package eval

import (
	"strings"

	"github.com/brunobiangulo/gocypher/cypher"
)

// normalizeStatement lowercases s and collapses whitespace so fragments
// match regardless of the generator's formatting.
func normalizeStatement(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// computeFragmentHit returns the share of expected fragments present in
// the statement. A test with no fragments scores 1.
func computeFragmentHit(statement string, fragments []string) float64 {
	if len(fragments) == 0 {
		return 1
	}
	norm := normalizeStatement(statement)
	hits := 0
	for _, f := range fragments {
		if strings.Contains(norm, normalizeStatement(f)) {
			hits++
		}
	}
	return float64(hits) / float64(len(fragments))
}

// missingFragments lists the expected fragments absent from statement.
func missingFragments(statement string, fragments []string) []string {
	norm := normalizeStatement(statement)
	var missing []string
	for _, f := range fragments {
		if !strings.Contains(norm, normalizeStatement(f)) {
			missing = append(missing, f)
		}
	}
	return missing
}

// checkStatement re-runs the screens on a returned statement. Every
// returned statement should pass both; a failure here is a pipeline bug.
func checkStatement(statement string) (validated, bound bool) {
	return cypher.Validate(statement).Accepted, cypher.IsBounded(statement)
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
