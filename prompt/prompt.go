// Package prompt assembles the system/user prompt pairs for statement
// synthesis and result explanation. All functions are pure.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brunobiangulo/gocypher/graph"
)

// Request is a system/user prompt pair, built fresh for each call.
type Request struct {
	System string `json:"system"`
	User   string `json:"user"`
}

// Example pairs a natural-language request with a statement that answers
// it. Examples are shown to the generator as few-shot guidance.
type Example struct {
	Request   string `json:"request"`
	Statement string `json:"statement"`
}

// FixedExamples are included in every synthesis prompt.
var FixedExamples = []Example{
	{"Romantic comedies", `MATCH (m:Movie) WHERE m.genres CONTAINS "Comedy" AND m.genres CONTAINS "Romance" RETURN m`},
	{"Movies from 2000s", `MATCH (m:Movie) WHERE m.releaseYear >= 2000 AND m.releaseYear < 2010 RETURN m`},
	{"Action movies", `MATCH (m:Movie) WHERE m.genres CONTAINS "Action" RETURN m`},
	{"Movies with specific actor", `MATCH (p:Person {name: "Tom Hanks"})-[:ACTED_IN]->(m:Movie) RETURN m`},
	{"Directors and their movies", `MATCH (p:Person)-[:DIRECTED]->(m:Movie) RETURN p, m`},
}

// queryRules are the hard constraints of a synthesis prompt.
var queryRules = []string{
	"Use only properties listed in the schema above. Common movie properties: title, releaseYear, genres, avgVote",
	`For genre filters, use: WHERE m.genres CONTAINS "GenreName"`,
	"For year ranges, use: WHERE m.releaseYear >= 2000 AND m.releaseYear < 2010",
	"EVERY query MUST include a RETURN clause",
	"Return ONLY the Cypher query. No explanations, no comments, no text",
}

var explanationRules = []string{
	"Explain what the query does in plain English in one or two sentences.",
	"Describe the results clearly, highlighting only the key points.",
	"If only a sample is shown, mention that these are sample results from a larger dataset.",
	"Provide 2-3 key insights from the data, each in a single short sentence.",
	"Use simple, concise language. Avoid technical jargon and unnecessary details.",
	"Focus strictly on the query and the results.",
	"If results are empty, explain in one sentence why that might be.",
	"Keep the total explanation short and readable (at most 5 sentences).",
}

// Query builds the synthesis prompt. schemaText is the output of
// schema.Format; extra examples, typically retrieved from the example
// library, follow the fixed set.
func Query(userRequest, schemaText string, extra ...Example) Request {
	var b strings.Builder
	b.WriteString("You are an expert Cypher query generator for Neo4j graph databases.\n\n")
	b.WriteString("Schema Details:\n")
	b.WriteString(schemaText)
	b.WriteString("\n")

	writeExamples(&b, "QUERY EXAMPLES:", FixedExamples)
	if len(extra) > 0 {
		writeExamples(&b, "RELATED EXAMPLES FROM THIS DATABASE:", extra)
	}

	b.WriteString("ABSOLUTE RULES (MUST FOLLOW):\n")
	writeNumbered(&b, queryRules)
	b.WriteString("\nCRITICAL: If the user asks for movies by genre or year, use the appropriate properties from the schema.")

	return Request{
		System: b.String(),
		User:   `Convert this natural language request to a valid Cypher query: "` + userRequest + `"`,
	}
}

// Explanation builds the prompt that asks for a short description of a
// statement and a sample of its results.
func Explanation(statement string, sample graph.Sample, originalRequest string) Request {
	var b strings.Builder
	b.WriteString("You are an expert at explaining graph database queries and results in simple, clear language.\n\n")
	b.WriteString("Important: The results may show only a sample of the data (the first 3 records) when there are many results.\n\n")
	b.WriteString("Rules:\n")
	writeNumbered(&b, explanationRules)

	if sample.Sample == nil {
		sample.Sample = []map[string]any{}
	}
	data, err := json.Marshal(sample.Sample)
	if err != nil {
		data = []byte("[]")
	}

	user := fmt.Sprintf("Explain this Cypher query and its results in simple, short and concise terms:\n"+
		"Query: %s\n"+
		"Sample Results (%d total): %s\n"+
		"Original Request: \"%s\"",
		statement, sample.TotalRecords, data, originalRequest)

	return Request{System: strings.TrimRight(b.String(), "\n"), User: user}
}

func writeExamples(b *strings.Builder, title string, examples []Example) {
	b.WriteString(title)
	b.WriteByte('\n')
	for _, e := range examples {
		fmt.Fprintf(b, "- %s: %s\n", e.Request, e.Statement)
	}
	b.WriteByte('\n')
}

func writeNumbered(b *strings.Builder, lines []string) {
	for i, l := range lines {
		fmt.Fprintf(b, "%d. %s\n", i+1, l)
	}
}
