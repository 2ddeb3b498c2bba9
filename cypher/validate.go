package cypher

import (
	"regexp"
	"strings"
)

// Verdict is the binary outcome of Validate. Reason is set on rejection
// and is meant for logs only.
type Verdict struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// Rejection reasons.
const (
	ReasonEmpty         = "empty statement"
	ReasonGeneric       = "overly generic statement"
	ReasonInvalidStart  = "statement does not start with a recognized clause"
	ReasonNoResult      = "statement has no RETURN clause"
	ReasonDrop          = "statement drops schema"
	ReasonDetachDelete  = "statement uses DETACH DELETE"
	ReasonUnboundDelete = "DELETE without RETURN"
)

// genericStatements are the canonical "return everything of a type"
// forms. A generator producing one of these has not answered the request.
var genericStatements = map[string]bool{
	"MATCH (n) RETURN n LIMIT 100":        true,
	"MATCH (m:Movie) RETURN m LIMIT 100":  true,
	"MATCH (p:Person) RETURN p LIMIT 100": true,
}

var (
	reValidStart   = regexp.MustCompile(`(?i)^(?:MATCH|CREATE|MERGE|CALL|WITH|RETURN|UNWIND)\b`)
	reDrop         = regexp.MustCompile(`(?i)\bDROP\s`)
	reDetachDelete = regexp.MustCompile(`(?i)\bDETACH\s+DELETE\s`)
	reDelete       = regexp.MustCompile(`(?i)\bDELETE\s`)
)

// IsGeneric reports whether s is one of the canonical generic statements.
func IsGeneric(s string) bool {
	return genericStatements[strings.TrimSpace(s)]
}

// Validate screens a statement for vacuous, destructive or structurally
// nonconforming shapes. Accepted statements may still be semantically
// wrong.
//
// DETACH DELETE is always rejected, whatever WHERE clauses precede it. A
// plain DELETE accompanied by RETURN is accepted. This mirrors the long
// standing rule and does not make the deletion any safer.
func Validate(statement string) Verdict {
	s := strings.TrimSpace(statement)
	if s == "" {
		return reject(ReasonEmpty)
	}
	if genericStatements[s] {
		return reject(ReasonGeneric)
	}
	if !reValidStart.MatchString(s) {
		return reject(ReasonInvalidStart)
	}
	hasReturn := reReturn.MatchString(s)
	if !hasReturn && !(reCall.MatchString(s) && reYield.MatchString(s)) {
		return reject(ReasonNoResult)
	}
	if reDrop.MatchString(s) {
		return reject(ReasonDrop)
	}
	if reDetachDelete.MatchString(s) {
		return reject(ReasonDetachDelete)
	}
	if reDelete.MatchString(s) && !hasReturn {
		return reject(ReasonUnboundDelete)
	}
	return Verdict{Accepted: true}
}

func reject(reason string) Verdict {
	return Verdict{Accepted: false, Reason: reason}
}

// Destructive reports whether a statement drops schema or uses DETACH
// DELETE. Such statements are never executed, whatever
// their origin.
func Destructive(statement string) (reason string, destructive bool) {
	if reDrop.MatchString(statement) {
		return ReasonDrop, true
	}
	if reDetachDelete.MatchString(statement) {
		return ReasonDetachDelete, true
	}
	return "", false
}
