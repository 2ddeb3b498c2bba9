package cypher

import (
	"log/slog"
	"regexp"
	"strings"
)

// matchKind tags which extraction rule produced a candidate.
type matchKind int

const (
	kindNone matchKind = iota
	kindReadReturn
	kindReadYield
	kindCreateReturn
	kindMergeReturn
	kindCallYield
	kindBareRead
	kindBareCreate
	kindBareMerge
	kindBareCall
	kindLineScan
)

func (k matchKind) String() string {
	switch k {
	case kindReadReturn:
		return "match-return"
	case kindReadYield:
		return "match-yield"
	case kindCreateReturn:
		return "create-return"
	case kindMergeReturn:
		return "merge-return"
	case kindCallYield:
		return "call-yield"
	case kindBareRead:
		return "bare-match"
	case kindBareCreate:
		return "bare-create"
	case kindBareMerge:
		return "bare-merge"
	case kindBareCall:
		return "bare-call"
	case kindLineScan:
		return "line-scan"
	default:
		return "none"
	}
}

type extractPattern struct {
	kind matchKind
	re   *regexp.Regexp
}

// extractPatterns is tried in order; the first pattern with a non-empty
// capture wins. Full-statement patterns run through to the end of the
// text, dropping one trailing semicolon.
var extractPatterns = []extractPattern{
	{kindReadReturn, regexp.MustCompile(`(?is)(\bMATCH\s+.*?\bRETURN.*?(?:\bLIMIT\s+\d+)?);?$`)},
	{kindReadYield, regexp.MustCompile(`(?is)(\bMATCH\s+.*?\bYIELD.*?(?:\bLIMIT\s+\d+)?);?$`)},
	{kindCreateReturn, regexp.MustCompile(`(?is)(\bCREATE\s+.*?\bRETURN.*?(?:\bLIMIT\s+\d+)?);?$`)},
	{kindMergeReturn, regexp.MustCompile(`(?is)(\bMERGE\s+.*?\bRETURN.*?(?:\bLIMIT\s+\d+)?);?$`)},
	{kindCallYield, regexp.MustCompile(`(?is)(\bCALL\s+.*?\bYIELD.*?(?:\bLIMIT\s+\d+)?);?$`)},

	{kindBareRead, regexp.MustCompile(`(?im)(\bMATCH\s+.*)$`)},
	{kindBareCreate, regexp.MustCompile(`(?im)(\bCREATE\s+.*)$`)},
	{kindBareMerge, regexp.MustCompile(`(?im)(\bMERGE\s+.*)$`)},
	{kindBareCall, regexp.MustCompile(`(?im)(\bCALL\s+.*)$`)},
}

var reFence = regexp.MustCompile("```\\w*\\s?")

// Extract recovers a single candidate statement from raw generator output.
// It never fails: when nothing statement-like is found it returns
// UniversalFallback. A candidate lacking both RETURN and YIELD gets a
// bounded clause appended by keyword; otherwise no bound is added here.
func Extract(response string) string {
	cleaned := strings.TrimSpace(reFence.ReplaceAllString(response, ""))
	if cleaned == "" {
		return UniversalFallback
	}

	candidate, kind := findCandidate(cleaned)
	if kind == kindNone {
		slog.Debug("cypher: no statement found in response")
		return UniversalFallback
	}

	if hasResultClause(candidate) {
		return candidate
	}

	slog.Debug("cypher: extracted statement missing RETURN/YIELD", "kind", kind.String())
	switch {
	case reMatch.MatchString(candidate):
		return candidate + " RETURN * LIMIT 100"
	case reCall.MatchString(candidate):
		return candidate + " YIELD * LIMIT 100"
	case reCreate.MatchString(candidate), reMerge.MatchString(candidate):
		return candidate + " RETURN * LIMIT 100"
	default:
		return UniversalFallback
	}
}

// lineKeywords are matched case-sensitively by the line scan, so prose
// such as "I cannot match that" is not taken for a statement.
var lineKeywords = []string{"MATCH", "CREATE", "MERGE", "CALL"}

func findCandidate(text string) (string, matchKind) {
	for _, p := range extractPatterns {
		m := p.re.FindStringSubmatch(text)
		if len(m) > 1 {
			if c := strings.TrimSpace(m[1]); c != "" {
				return c, p.kind
			}
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "//") || strings.HasPrefix(line, "--") {
			continue
		}
		for _, kw := range lineKeywords {
			if strings.Contains(line, kw) {
				return line, kindLineScan
			}
		}
	}
	return "", kindNone
}
