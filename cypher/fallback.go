package cypher

import (
	"fmt"
	"strings"

	"github.com/brunobiangulo/gocypher/schema"
)

// fallbackRule maps request keywords to a pre-bounded statement. A rule
// matches when the request contains one of any and, if set, one of also.
// Rules naming labels or relationship types apply only when the schema
// is unknown or declares them.
type fallbackRule struct {
	any       []string
	also      []string
	labels    []string
	relTypes  []string
	statement string
}

// Generic defaults. Each is a labelled or ordered variant of the
// validator's generic forms so that every fallback is acceptable.
const (
	movieDefault     = "MATCH (m:Movie) RETURN m ORDER BY m.releaseYear DESC LIMIT 100"
	personDefault    = "MATCH (p:Person) RETURN p ORDER BY p.name LIMIT 100"
	UniversalDefault = "MATCH (n) RETURN n, labels(n) AS labels LIMIT 100"
)

var movieWords = []string{"movie", "film"}

var fallbackRules = []fallbackRule{
	{any: movieWords, also: []string{"comedy", "romantic"}, labels: []string{"Movie"},
		statement: `MATCH (m:Movie) WHERE m.genres CONTAINS "Comedy" RETURN m LIMIT 100`},
	{any: movieWords, also: []string{"action"}, labels: []string{"Movie"},
		statement: `MATCH (m:Movie) WHERE m.genres CONTAINS "Action" RETURN m LIMIT 100`},
	{any: movieWords, also: []string{"drama"}, labels: []string{"Movie"},
		statement: `MATCH (m:Movie) WHERE m.genres CONTAINS "Drama" RETURN m LIMIT 100`},
	{any: movieWords, also: []string{"year", "2000", "release"}, labels: []string{"Movie"},
		statement: `MATCH (m:Movie) WHERE m.releaseYear >= 2000 AND m.releaseYear < 2010 RETURN m LIMIT 100`},
	{any: movieWords, labels: []string{"Movie"}, statement: movieDefault},

	{any: []string{"actor", "actress", "director"}, labels: []string{"Person"}, statement: personDefault},
	{any: []string{"acted in", "directed", "starred"}, labels: []string{"Person", "Movie"},
		statement: `MATCH (p:Person)-[r]->(m:Movie) RETURN p, r, m LIMIT 100`},

	{any: []string{"friend"}, labels: []string{"Person"}, relTypes: []string{"FRIENDS_WITH"},
		statement: `MATCH (p:Person)-[r:FRIENDS_WITH]->(f:Person) RETURN p, r, f LIMIT 100`},
	{any: []string{"message"}, labels: []string{"Person", "Message"}, relTypes: []string{"SENT_MESSAGE"},
		statement: `MATCH (p:Person)-[r:SENT_MESSAGE]->(m:Message) RETURN p, r, m ORDER BY m.timestamp DESC LIMIT 100`},

	{any: []string{"manager", "manages", "reports"}, labels: []string{"Employee"}, relTypes: []string{"MANAGES"},
		statement: `MATCH (m:Employee)-[r:MANAGES]->(e:Employee) RETURN m, r, e LIMIT 100`},
	{any: []string{"employee", "staff"}, also: []string{"department"}, labels: []string{"Employee", "Department"},
		relTypes: []string{"BELONGS_TO"},
		statement: `MATCH (e:Employee)-[r:BELONGS_TO]->(d:Department) RETURN e, r, d LIMIT 100`},
	{any: []string{"employee", "staff"}, labels: []string{"Employee", "Company"}, relTypes: []string{"WORKS_FOR"},
		statement: `MATCH (e:Employee)-[r:WORKS_FOR]->(c:Company) RETURN e, r, c LIMIT 100`},
	{any: []string{"department"}, labels: []string{"Department"},
		statement: `MATCH (d:Department) RETURN d ORDER BY d.name LIMIT 100`},
	{any: []string{"company", "companies"}, labels: []string{"Company"},
		statement: `MATCH (c:Company) RETURN c ORDER BY c.name LIMIT 100`},
}

// Fallback picks a safe, pre-bounded statement for a request by keyword.
// The schema may be nil. Every result passes Validate and is a fixed point
// of Normalize.
func Fallback(request string, d *schema.Description) string {
	lower := strings.ToLower(request)

	for _, r := range fallbackRules {
		if !containsAny(lower, r.any) {
			continue
		}
		if len(r.also) > 0 && !containsAny(lower, r.also) {
			continue
		}
		if !r.appliesTo(d) {
			continue
		}
		return r.statement
	}

	if d != nil {
		for _, label := range d.Labels() {
			if len(label) < 3 {
				continue
			}
			if !strings.Contains(lower, strings.ToLower(label)) {
				continue
			}
			if stmt := labelStatement(label); Validate(stmt).Accepted {
				return stmt
			}
		}
	}
	return UniversalDefault
}

func (r fallbackRule) appliesTo(d *schema.Description) bool {
	if d == nil {
		return true
	}
	for _, l := range r.labels {
		if !d.HasLabel(l) {
			return false
		}
	}
	for _, t := range r.relTypes {
		if !d.HasRelationship(t) {
			return false
		}
	}
	return true
}

func labelStatement(label string) string {
	quoted := "`" + strings.ReplaceAll(label, "`", "``") + "`"
	return fmt.Sprintf("MATCH (n:%s) RETURN n, labels(n) AS labels LIMIT %d", quoted, DefaultLimit)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
