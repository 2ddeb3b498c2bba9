package eval

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/brunobiangulo/gocypher/schema"
)

// Categories used by the bundled datasets.
const (
	CategoryLookup      = "lookup"
	CategoryFilter      = "filter"
	CategoryTraversal   = "traversal"
	CategoryAggregation = "aggregation"
)

// Dataset is a collection of requests against one database.
type Dataset struct {
	Name string `json:"name"`
	// Database names a bundled sample. Schema, when set, is used instead.
	Database string              `json:"database"`
	Schema   *schema.Description `json:"schema,omitempty"`
	Tests    []TestCase          `json:"tests"`
}

// TestCase defines a single evaluation request.
type TestCase struct {
	Request string `json:"request"`
	// ExpectedFragments should appear in the statement, compared
	// case-insensitively with whitespace collapsed.
	ExpectedFragments []string `json:"expected_fragments"`
	Category          string   `json:"category"`
}

// MoviesDataset returns requests against the movies sample.
func MoviesDataset() Dataset {
	return Dataset{
		Name:     "Movies",
		Database: "movies",
		Tests: []TestCase{
			{
				Request:           "Show all movies directed by Christopher Nolan",
				ExpectedFragments: []string{":DIRECTED", "Christopher Nolan", ":Movie"},
				Category:          CategoryTraversal,
			},
			{
				Request:           "What movies were released in 2023?",
				ExpectedFragments: []string{"releaseYear", "2023"},
				Category:          CategoryFilter,
			},
			{
				Request:           "Show the cast of The Dark Knight",
				ExpectedFragments: []string{":ACTED_IN", "The Dark Knight"},
				Category:          CategoryTraversal,
			},
			{
				Request:           "Find movies with ratings above 8.0",
				ExpectedFragments: []string{"avgVote", "8"},
				Category:          CategoryFilter,
			},
			{
				Request:           "Which director has the most movies?",
				ExpectedFragments: []string{":DIRECTED", "count("},
				Category:          CategoryAggregation,
			},
			{
				Request:           "Find actors who appeared in more than 5 movies",
				ExpectedFragments: []string{":ACTED_IN", "count(", "5"},
				Category:          CategoryAggregation,
			},
			{
				Request:           "List movie titles",
				ExpectedFragments: []string{":Movie", "title"},
				Category:          CategoryLookup,
			},
		},
	}
}

// SocialDataset returns requests against the social sample.
func SocialDataset() Dataset {
	return Dataset{
		Name:     "Social",
		Database: "social",
		Tests: []TestCase{
			{
				Request:           "Show all friends of John Doe",
				ExpectedFragments: []string{":FRIENDS_WITH", "John Doe"},
				Category:          CategoryTraversal,
			},
			{
				Request:           "Find people with more than 10 friends",
				ExpectedFragments: []string{":FRIENDS_WITH", "count(", "10"},
				Category:          CategoryAggregation,
			},
			{
				Request:           "Show unread messages",
				ExpectedFragments: []string{":Message", "isRead"},
				Category:          CategoryFilter,
			},
			{
				Request:           "Find the most active users",
				ExpectedFragments: []string{":SENT_MESSAGE", "count("},
				Category:          CategoryAggregation,
			},
		},
	}
}

// CompanyDataset returns requests against the company sample.
func CompanyDataset() Dataset {
	return Dataset{
		Name:     "Company",
		Database: "company",
		Tests: []TestCase{
			{
				Request:           "Show all employees in the Engineering department",
				ExpectedFragments: []string{":BELONGS_TO", "Engineering"},
				Category:          CategoryTraversal,
			},
			{
				Request:           "Find managers with more than 5 direct reports",
				ExpectedFragments: []string{":MANAGES", "count(", "5"},
				Category:          CategoryAggregation,
			},
			{
				Request:           "Find the highest paid employees",
				ExpectedFragments: []string{"salary", "DESC"},
				Category:          CategoryLookup,
			},
			{
				Request:           "Find employees who joined in 2023",
				ExpectedFragments: []string{"hireDate", "2023"},
				Category:          CategoryFilter,
			},
		},
	}
}

// AllDatasets returns every bundled dataset.
func AllDatasets() []Dataset {
	return []Dataset{MoviesDataset(), SocialDataset(), CompanyDataset()}
}

// LoadDataset reads a dataset from a JSON file.
func LoadDataset(path string) (Dataset, error) {
	var ds Dataset
	data, err := os.ReadFile(path)
	if err != nil {
		return ds, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &ds); err != nil {
		return ds, fmt.Errorf("parsing %s: %w", path, err)
	}
	if ds.Schema != nil {
		if err := ds.Schema.Validate(); err != nil {
			return ds, fmt.Errorf("%s: %w", path, err)
		}
	}
	if len(ds.Tests) == 0 {
		return ds, fmt.Errorf("%s: dataset has no tests", path)
	}
	return ds, nil
}

// resolveSchema returns the schema requests are synthesized against.
func (ds Dataset) resolveSchema() (*schema.Description, bool) {
	if ds.Schema != nil {
		return ds.Schema, true
	}
	s, ok := schema.Sample(ds.Database)
	if !ok {
		return nil, false
	}
	return s.Schema, true
}
