package graph

// Sample is the bounded view of a result set embedded in explanation
// prompts.
type Sample struct {
	TotalRecords int              `json:"totalRecords"`
	Sample       []map[string]any `json:"sample"`
}
