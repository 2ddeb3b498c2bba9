package schema

import (
	"encoding/json"
	"strings"
)

// relationshipLine is the per-relationship record embedded in the schema
// text. Field order is fixed by the struct.
type relationshipLine struct {
	Type       string `json:"type"`
	Properties string `json:"properties"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
}

// Format renders the description as the schema block of a generation
// prompt: a NODE TYPES section and a RELATIONSHIP TYPES section, one line
// per type.
func Format(d *Description) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("DATABASE SCHEMA DETAILS:\n\n")

	b.WriteString("NODE TYPES:\n")
	for _, n := range d.Nodes {
		b.WriteString("- ")
		b.WriteString(n.Label)
		b.WriteString(": ")
		b.WriteString(joinProperties(n.Properties))
		b.WriteByte('\n')
	}

	b.WriteString("\nRELATIONSHIP TYPES:\n")
	for _, r := range d.Relationships {
		line, err := json.Marshal(relationshipLine{
			Type:       r.Type,
			Properties: joinProperties(r.Properties),
			From:       r.StartLabel,
			To:         r.EndLabel,
		})
		if err != nil {
			return "", err
		}
		b.WriteString("- ")
		b.Write(line)
		b.WriteByte('\n')
	}

	return b.String(), nil
}

func joinProperties(props []Property) string {
	if len(props) == 0 {
		return noProperties
	}
	names := make([]string, 0, len(props))
	for _, p := range props {
		names = append(names, p.Name)
	}
	return strings.Join(names, ", ")
}
