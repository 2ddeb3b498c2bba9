package retrieval

import (
	"regexp"
	"strings"
)

var ftsReplacer = strings.NewReplacer(
	"\"", "", "*", "", "(", "", ")", "",
	"+", "", "-", "", "^", "", ":", "",
	"?", "", "[", "", "]", "", "{", "",
	"}", "", "!", "", ".", "", ",", "",
	";", "", "'", "", "`", "",
)

// sanitizeFTSQuery strips FTS5 syntax characters and builds an OR query of
// the full phrase plus each significant word. Terms are lowercased so
// request words never read as FTS5 operators. Returns "" when nothing
// searchable remains.
func sanitizeFTSQuery(query string) string {
	words := strings.Fields(strings.ToLower(ftsReplacer.Replace(query)))
	if len(words) == 0 {
		return ""
	}

	var parts []string
	if len(words) > 1 {
		parts = append(parts, "\""+strings.Join(words, " ")+"\"")
	}
	seen := make(map[string]bool)
	for _, w := range words {
		if len(w) > 2 && !isStopWord(w) && !seen[w] {
			seen[w] = true
			parts = append(parts, w)
		}
	}

	if len(parts) == 0 {
		return "\"" + strings.Join(words, " ") + "\""
	}
	return strings.Join(parts, " OR ")
}

// Literal values in a request (quoted names, years, capitalised names)
// are better served by keyword matches than by semantic similarity.
var identifierPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"[^"]+"|'[^']+'`),
	regexp.MustCompile(`\b(?:19|20)\d{2}\b`),
	regexp.MustCompile(`\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`),
}

// detectIdentifiers returns true if the request contains at least one
// literal value.
func detectIdentifiers(query string) bool {
	for _, p := range identifierPatterns {
		if p.MatchString(query) {
			return true
		}
	}
	return false
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "from": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "being": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "must": true,
	"shall": true, "can": true, "this": true, "that": true, "these": true,
	"those": true, "what": true, "which": true, "who": true, "whom": true,
	"where": true, "when": true, "how": true, "why": true, "not": true,
	"no": true, "nor": true, "if": true, "then": true, "than": true,
	"so": true, "as": true, "about": true, "into": true, "between": true,
	"show": true, "me": true, "find": true, "get": true, "list": true,
	"all": true, "near": true,
}

func isStopWord(w string) bool {
	return stopWords[strings.ToLower(w)]
}
