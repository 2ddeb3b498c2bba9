package cypher

import (
	"fmt"
	"strings"
)

var boundSuffix = fmt.Sprintf(" LIMIT %d", DefaultLimit)

// Normalize repairs a candidate statement so that it carries a
// result-producing clause and, when read-shaped, an explicit row bound.
// It is total and idempotent.
func Normalize(statement string) string {
	s := strings.TrimSpace(statement)
	s = strings.TrimSpace(reTrailing.ReplaceAllString(s, ""))
	if s == "" {
		return UniversalFallback
	}

	if !reReturn.MatchString(s) {
		switch {
		case reMatch.MatchString(s):
			s += "\nRETURN *" + boundSuffix
		case reWrite.MatchString(s):
			s += "\nRETURN *" + boundSuffix
		case reCall.MatchString(s):
			if !reYield.MatchString(s) {
				s += "\nYIELD *" + boundSuffix
			}
		default:
			s += "\nRETURN *" + boundSuffix
		}
	}

	if isReadOperation(s) && !reLimit.MatchString(s) && hasResultClause(s) {
		s += boundSuffix
	}
	return s
}

// IsBounded reports whether a statement already satisfies the guarantees
// Normalize establishes.
func IsBounded(statement string) bool {
	s := strings.TrimSpace(statement)
	if s == "" || !hasResultClause(s) {
		return false
	}
	if isReadOperation(s) && !reLimit.MatchString(s) {
		return false
	}
	return true
}
