package schema

import "sort"

// SampleDatabase is one of the bundled demo graphs.
type SampleDatabase struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Schema      *Description `json:"schema"`
	Suggestions []string     `json:"suggestions"`
}

func props(names ...string) []Property {
	out := make([]Property, 0, len(names)/2)
	for i := 0; i+1 < len(names); i += 2 {
		out = append(out, Property{Name: names[i], Type: names[i+1]})
	}
	return out
}

var samples = map[string]SampleDatabase{
	"movies": {
		ID:          "movies",
		Name:        "Movies Database",
		Description: "Sample database with movies, people (actors, and directors)",
		Schema: &Description{
			Nodes: []NodeType{
				{Label: "Person", Properties: props(
					"personId", "string", "name", "string", "birthYear", "integer", "deathYear", "integer")},
				{Label: "Movie", Properties: props(
					"movieId", "string", "title", "string", "avgVote", "float",
					"releaseYear", "integer", "genres", "string[]")},
			},
			Relationships: []RelationshipType{
				{Type: "ACTED_IN", StartLabel: "Person", EndLabel: "Movie",
					Properties: props("roles", "string[]", "billing", "integer")},
				{Type: "DIRECTED", StartLabel: "Person", EndLabel: "Movie", Properties: []Property{}},
			},
		},
		Suggestions: []string{
			"Show all movies directed by Christopher Nolan",
			"Find actors who appeared in more than 5 movies",
			"What movies were released in 2023?",
			"Show the cast of The Dark Knight",
			"Find movies with ratings above 8.0",
			"Which director has the most movies?",
			"Show movies by genre",
			"Find movies starring Tom Hanks",
		},
	},
	"social": {
		ID:          "social",
		Name:        "Social Network Database",
		Description: "Sample database with people, friendships, and messages",
		Schema: &Description{
			Nodes: []NodeType{
				{Label: "Person", Properties: props(
					"userId", "string", "name", "string", "email", "string", "age", "integer",
					"location", "string", "joinDate", "date")},
				{Label: "Friend", Properties: props(
					"friendId", "string", "name", "string", "mutualFriends", "integer")},
				{Label: "Message", Properties: props(
					"messageId", "string", "content", "string", "timestamp", "datetime",
					"isRead", "boolean", "priority", "string")},
			},
			Relationships: []RelationshipType{
				{Type: "FRIENDS_WITH", StartLabel: "Person", EndLabel: "Person",
					Properties: props("since", "date", "closeness", "integer", "isMutual", "boolean")},
				{Type: "SENT_MESSAGE", StartLabel: "Person", EndLabel: "Message",
					Properties: props("timestamp", "datetime", "channel", "string")},
				{Type: "RECEIVED_MESSAGE", StartLabel: "Person", EndLabel: "Message",
					Properties: props("readStatus", "boolean", "readTimestamp", "datetime")},
			},
		},
		Suggestions: []string{
			"Show all friends of John Doe",
			"Find people with more than 10 friends",
			"Show messages sent in the last week",
			"Find the most active users",
			"Show mutual friends between two people",
			"Find people who haven't posted in a month",
			"Show the longest friendship",
			"Find users with similar interests",
		},
	},
	"company": {
		ID:          "company",
		Name:        "Company Database",
		Description: "Sample database with companies, employees, and departments",
		Schema: &Description{
			Nodes: []NodeType{
				{Label: "Company", Properties: props(
					"companyId", "string", "name", "string", "industry", "string", "founded", "integer",
					"revenue", "float", "employeeCount", "integer")},
				{Label: "Employee", Properties: props(
					"employeeId", "string", "name", "string", "position", "string", "salary", "float",
					"hireDate", "date", "department", "string")},
				{Label: "Department", Properties: props(
					"departmentId", "string", "name", "string", "budget", "float", "location", "string",
					"manager", "string")},
			},
			Relationships: []RelationshipType{
				{Type: "WORKS_FOR", StartLabel: "Employee", EndLabel: "Company",
					Properties: props("since", "date", "position", "string", "isCurrent", "boolean")},
				{Type: "BELONGS_TO", StartLabel: "Employee", EndLabel: "Department",
					Properties: props("since", "date", "role", "string")},
				{Type: "MANAGES", StartLabel: "Employee", EndLabel: "Employee",
					Properties: props("since", "date", "title", "string", "reports", "integer")},
			},
		},
		Suggestions: []string{
			"Show all employees in the Engineering department",
			"Find managers with more than 5 direct reports",
			"Show the company hierarchy",
			"Find employees who joined in 2023",
			"Show departments by employee count",
			"Find the highest paid employees",
			"Show projects and their team members",
			"Find employees working on multiple projects",
		},
	},
}

// Sample returns the bundled database with the given id.
func Sample(id string) (SampleDatabase, bool) {
	s, ok := samples[id]
	return s, ok
}

// Samples returns every bundled database sorted by id.
func Samples() []SampleDatabase {
	out := make([]SampleDatabase, 0, len(samples))
	for _, s := range samples {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
