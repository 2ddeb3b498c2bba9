// Package cypher recovers, repairs and screens Cypher statements produced
// by an untrusted text generator. Everything here is keyword-level pattern
// recognition over plain strings; no statement is ever parsed.
package cypher

import "regexp"

// UniversalFallback is the terminal default for extraction and
// normalization. It is deliberately in the validator's reject set.
const UniversalFallback = "MATCH (n) RETURN n LIMIT 100"

// DefaultLimit is the row bound appended to unbounded read statements.
const DefaultLimit = 100

var (
	reMatch  = regexp.MustCompile(`(?i)\bMATCH\b`)
	reCreate = regexp.MustCompile(`(?i)\bCREATE\b`)
	reMerge  = regexp.MustCompile(`(?i)\bMERGE\b`)
	reCall   = regexp.MustCompile(`(?i)\bCALL\b`)
	reWith   = regexp.MustCompile(`(?i)\bWITH\b`)
	reReturn = regexp.MustCompile(`(?i)\bRETURN\b`)
	reYield  = regexp.MustCompile(`(?i)\bYIELD\b`)
	reWrite  = regexp.MustCompile(`(?i)\b(?:CREATE|MERGE|DELETE|SET|REMOVE)\b`)

	reCallYield = regexp.MustCompile(`(?is)\bCALL\b.*\bYIELD\b`)
	reLimit     = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)
	reTrailing  = regexp.MustCompile(`;+\s*$`)
)

func hasResultClause(s string) bool {
	return reReturn.MatchString(s) || reYield.MatchString(s)
}

// isReadOperation classifies a statement as read-shaped by keyword
// presence alone. Unbounded writes are not forced to carry a LIMIT.
func isReadOperation(s string) bool {
	return reMatch.MatchString(s) || reReturn.MatchString(s) ||
		reWith.MatchString(s) || reCallYield.MatchString(s)
}

// IsWrite reports whether a statement contains a write clause and so needs
// a write transaction.
func IsWrite(statement string) bool {
	return reWrite.MatchString(statement)
}
