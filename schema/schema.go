// Package schema describes a property graph's node labels and relationship
// types and renders them as a compact text block for generation prompts.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSchema is returned when a description lacks its node or
// relationship collections.
var ErrInvalidSchema = errors.New("schema: invalid schema")

// noProperties is written in place of an empty property list.
const noProperties = "No properties"

// Property is a single property key on a node label or relationship type.
type Property struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// NodeType is a node label with the properties observed on it.
type NodeType struct {
	Label      string     `json:"label" yaml:"label"`
	Properties []Property `json:"properties" yaml:"properties"`
}

// RelationshipType is a relationship type with its endpoint labels.
type RelationshipType struct {
	Type       string     `json:"type" yaml:"type"`
	StartLabel string     `json:"startNode,omitempty" yaml:"start_node,omitempty"`
	EndLabel   string     `json:"endNode,omitempty" yaml:"end_node,omitempty"`
	Properties []Property `json:"properties" yaml:"properties"`
}

// Description is the structured schema supplied by database introspection.
// It is treated as immutable input.
type Description struct {
	Nodes         []NodeType         `json:"nodes" yaml:"nodes"`
	Relationships []RelationshipType `json:"relationships" yaml:"relationships"`
}

// Validate checks that both collections are present.
func (d *Description) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil description", ErrInvalidSchema)
	}
	if d.Nodes == nil {
		return fmt.Errorf("%w: nodes missing", ErrInvalidSchema)
	}
	if d.Relationships == nil {
		return fmt.Errorf("%w: relationships missing", ErrInvalidSchema)
	}
	return nil
}

// HasLabel reports whether the description declares the node label
// (case-insensitive).
func (d *Description) HasLabel(label string) bool {
	if d == nil {
		return false
	}
	for _, n := range d.Nodes {
		if strings.EqualFold(n.Label, label) {
			return true
		}
	}
	return false
}

// HasRelationship reports whether the description declares the
// relationship type (case-insensitive).
func (d *Description) HasRelationship(relType string) bool {
	if d == nil {
		return false
	}
	for _, r := range d.Relationships {
		if strings.EqualFold(r.Type, relType) {
			return true
		}
	}
	return false
}

// Labels returns the node labels in declaration order.
func (d *Description) Labels() []string {
	if d == nil {
		return nil
	}
	labels := make([]string, 0, len(d.Nodes))
	for _, n := range d.Nodes {
		labels = append(labels, n.Label)
	}
	return labels
}

// Parse decodes a JSON schema description. Both "nodes" and
// "relationships" must be present as arrays.
func Parse(data []byte) (*Description, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	for _, key := range []string{"nodes", "relationships"} {
		v, ok := raw[key]
		if !ok || !isArray(v) {
			return nil, fmt.Errorf("%w: %q must be an array", ErrInvalidSchema, key)
		}
	}

	d := &Description{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if d.Nodes == nil {
		d.Nodes = []NodeType{}
	}
	if d.Relationships == nil {
		d.Relationships = []RelationshipType{}
	}
	return d, nil
}

func isArray(v json.RawMessage) bool {
	trimmed := bytes.TrimSpace(v)
	return len(trimmed) > 0 && trimmed[0] == '['
}
