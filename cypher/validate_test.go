package cypher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		stmt     string
		accepted bool
		reason   string
	}{
		{"generic all nodes", "MATCH (n) RETURN n LIMIT 100", false, ReasonGeneric},
		{"generic movies", "MATCH (m:Movie) RETURN m LIMIT 100", false, ReasonGeneric},
		{"generic people", "MATCH (p:Person) RETURN p LIMIT 100", false, ReasonGeneric},
		{"generic with whitespace", "  MATCH (n) RETURN n LIMIT 100\n", false, ReasonGeneric},
		{"empty", "   ", false, ReasonEmpty},
		{"bare detach delete", "DETACH DELETE n", false, ReasonInvalidStart},
		{"optional match start", "OPTIONAL MATCH (n) RETURN n LIMIT 1", false, ReasonInvalidStart},
		{"prose start", "Here you go: MATCH (n) RETURN n", false, ReasonInvalidStart},
		{"write without return", "MATCH (n:Movie) SET n.seen = true", false, ReasonNoResult},
		{"delete without return", "MATCH (n:Tag) DELETE n", false, ReasonNoResult},
		{"drop after statement", "MATCH (n) RETURN n LIMIT 1; DROP INDEX movie_title", false, ReasonDrop},
		{"unguarded detach delete", "MATCH (n) DETACH DELETE n RETURN count(n)", false, ReasonDetachDelete},
		{"where after detach delete", "MATCH (n) DETACH DELETE n WITH n WHERE n.x = 1 RETURN n", false, ReasonDetachDelete},
		{"filtered detach delete", "MATCH (n:Tag) WHERE n.name = 'x' DETACH DELETE n RETURN count(*)", false, ReasonDetachDelete},
		{"tautological where", "MATCH (n) WHERE 1=1 DETACH DELETE n RETURN count(*)", false, ReasonDetachDelete},
		{"where on unrelated match", "MATCH (x) WHERE true MATCH (n) DETACH DELETE n RETURN * LIMIT 100", false, ReasonDetachDelete},
		{"call yield with delete", "CALL db.labels() YIELD label MATCH (n) DELETE n", false, ReasonUnboundDelete},

		{"filtered read", "MATCH (m:Movie) WHERE m.genres CONTAINS \"Action\" RETURN m LIMIT 100", true, ""},
		{"leading whitespace lowercase", "  match (m:Movie) where m.title = 'Heat' return m limit 1", true, ""},
		{"call yield", "CALL db.labels() YIELD label LIMIT 100", true, ""},
		{"unwind", "UNWIND [1, 2] AS x RETURN x LIMIT 100", true, ""},
		{"drop as function name", "CALL db.index.fulltext.drop('x') YIELD name RETURN name", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Validate(tt.stmt)
			assert.Equal(t, tt.accepted, v.Accepted)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

// A DELETE accompanied by RETURN passes the gate even though returning
// does not make deletion safer. The rule is kept as is.
func TestValidateDeleteWithReturnQuirk(t *testing.T) {
	v := Validate("MATCH (n:Tag) DELETE n RETURN count(n)")
	assert.True(t, v.Accepted)

	v = Validate("MATCH (n:Tag)\nDELETE n\nRETURN * LIMIT 100")
	assert.True(t, v.Accepted)
}

func TestValidateRejectsDestructiveKeywords(t *testing.T) {
	statements := []string{
		"MATCH (n) RETURN n LIMIT 1 DROP CONSTRAINT c",
		"CREATE (n) RETURN n DROP INDEX i",
		"MATCH (n) DETACH DELETE n RETURN n",
		"match (n) detach  delete n return n",
		"WITH 1 AS x MATCH (n) DETACH DELETE n RETURN x",
	}
	for _, s := range statements {
		t.Run(s, func(t *testing.T) {
			assert.False(t, Validate(s).Accepted)
		})
	}
}

func TestIsGeneric(t *testing.T) {
	assert.True(t, IsGeneric(" MATCH (m:Movie) RETURN m LIMIT 100 "))
	assert.False(t, IsGeneric("MATCH (m:Movie) RETURN m LIMIT 10"))
}

func TestDestructive(t *testing.T) {
	tests := []struct {
		statement string
		reason    string
	}{
		{"DROP INDEX movie_title", ReasonDrop},
		{"MATCH (n) DETACH DELETE n", ReasonDetachDelete},
		{"MATCH (n:Temp) WHERE n.expired DETACH DELETE n", ReasonDetachDelete},
		{"MATCH (x) WHERE true MATCH (n) DETACH DELETE n", ReasonDetachDelete},
		{"MATCH (n:Temp) DELETE n", ""},
		{"CREATE (p:Person {name: 'Ann'})", ""},
	}
	for _, tt := range tests {
		t.Run(tt.statement, func(t *testing.T) {
			reason, destructive := Destructive(tt.statement)
			assert.Equal(t, tt.reason, reason)
			assert.Equal(t, tt.reason != "", destructive)
		})
	}
}

func TestIsWrite(t *testing.T) {
	assert.True(t, IsWrite("MATCH (p:Person) SET p.age = 3 RETURN p"))
	assert.True(t, IsWrite("merge (p:Person {name: 'Ann'})"))
	assert.False(t, IsWrite("MATCH (m:Movie) RETURN m.title AS settlement LIMIT 5"))
}

func TestExtractedDetachDeleteIsRejected(t *testing.T) {
	responses := []string{
		"MATCH (x) WHERE true MATCH (n) DETACH DELETE n",
		"```cypher\nMATCH (n) WHERE 1=1 DETACH DELETE n RETURN count(*)\n```",
	}
	for _, r := range responses {
		t.Run(r, func(t *testing.T) {
			candidate := Normalize(Extract(r))
			v := Validate(candidate)
			assert.False(t, v.Accepted, candidate)
			assert.Equal(t, ReasonDetachDelete, v.Reason)
			_, destructive := Destructive(candidate)
			assert.True(t, destructive)
		})
	}
}
