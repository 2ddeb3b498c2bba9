package graphdb

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/brunobiangulo/gocypher/graph"
	"github.com/brunobiangulo/gocypher/schema"
)

const (
	visualizationQuery = "CALL db.schema.visualization() YIELD nodes, relationships RETURN nodes, relationships"
	labelsQuery        = "CALL db.labels() YIELD label RETURN collect(label) AS labels"
	relTypesQuery      = "CALL db.relationshipTypes() YIELD relationshipType RETURN collect(relationshipType) AS relationshipTypes"
	nodePropsQuery     = "CALL db.schema.nodeTypeProperties() YIELD nodeLabels, propertyName, propertyTypes RETURN nodeLabels, propertyName, propertyTypes"
	relPropsQuery      = "CALL db.schema.relTypeProperties() YIELD relType, propertyName, propertyTypes RETURN relType, propertyName, propertyTypes"
)

// Schema introspects the database. It prefers db.schema.visualization(),
// which carries relationship endpoints, and falls back to the flat label
// and relationship-type lists. Property names are added where the server
// reports them.
func (c *Client) Schema(ctx context.Context) (*schema.Description, error) {
	d, err := c.visualizedSchema(ctx)
	if err != nil {
		slog.Warn("graphdb: schema visualization failed, using label lists", "error", err)
		d, err = c.basicSchema(ctx)
		if err != nil {
			return nil, err
		}
	}

	if rs, err := c.run(ctx, nodePropsQuery, nil, false); err == nil {
		addNodeProperties(d, rs)
	} else {
		slog.Debug("graphdb: node properties unavailable", "error", err)
	}
	if rs, err := c.run(ctx, relPropsQuery, nil, false); err == nil {
		addRelationshipProperties(d, rs)
	} else {
		slog.Debug("graphdb: relationship properties unavailable", "error", err)
	}
	return d, nil
}

func (c *Client) visualizedSchema(ctx context.Context) (*schema.Description, error) {
	rs, err := c.run(ctx, visualizationQuery, nil, false)
	if err != nil {
		return nil, err
	}
	if len(rs.Records) == 0 {
		return nil, fmt.Errorf("schema visualization returned no records")
	}
	return fromVisualization(rs.Records[0]), nil
}

func (c *Client) basicSchema(ctx context.Context) (*schema.Description, error) {
	labels, err := c.run(ctx, labelsQuery, nil, false)
	if err != nil {
		return nil, fmt.Errorf("listing labels: %w", err)
	}
	types, err := c.run(ctx, relTypesQuery, nil, false)
	if err != nil {
		return nil, fmt.Errorf("listing relationship types: %w", err)
	}

	d := &schema.Description{Nodes: []schema.NodeType{}, Relationships: []schema.RelationshipType{}}
	if len(labels.Records) > 0 {
		for _, l := range stringsOf(labels.Records[0]["labels"]) {
			d.Nodes = append(d.Nodes, schema.NodeType{Label: l, Properties: []schema.Property{}})
		}
	}
	if len(types.Records) > 0 {
		for _, t := range stringsOf(types.Records[0]["relationshipTypes"]) {
			d.Relationships = append(d.Relationships, schema.RelationshipType{Type: t, Properties: []schema.Property{}})
		}
	}
	return d, nil
}

// fromVisualization builds a description from the converted
// {nodes, relationships} record of db.schema.visualization().
func fromVisualization(rec graph.Record) *schema.Description {
	d := &schema.Description{Nodes: []schema.NodeType{}, Relationships: []schema.RelationshipType{}}

	labelByID := map[string]string{}
	for _, v := range asSlice(rec["nodes"]) {
		n, ok := v.(*graph.Node)
		if !ok || n == nil || len(n.Labels) == 0 {
			continue
		}
		labelByID[n.ID] = n.Labels[0]
		d.Nodes = append(d.Nodes, schema.NodeType{Label: n.Labels[0], Properties: []schema.Property{}})
	}

	seen := map[string]bool{}
	for _, v := range asSlice(rec["relationships"]) {
		r, ok := v.(*graph.Relationship)
		if !ok || r == nil {
			continue
		}
		rt := schema.RelationshipType{
			Type:       r.Type,
			StartLabel: labelByID[r.StartNode],
			EndLabel:   labelByID[r.EndNode],
			Properties: []schema.Property{},
		}
		key := rt.Type + "|" + rt.StartLabel + "|" + rt.EndLabel
		if seen[key] {
			continue
		}
		seen[key] = true
		d.Relationships = append(d.Relationships, rt)
	}
	return d
}

// addNodeProperties merges db.schema.nodeTypeProperties() rows into the
// matching node types.
func addNodeProperties(d *schema.Description, rs *graph.ResultSet) {
	props := map[string][]schema.Property{}
	for _, rec := range rs.Records {
		name, _ := rec["propertyName"].(string)
		if name == "" {
			continue
		}
		p := schema.Property{Name: name, Type: firstString(rec["propertyTypes"])}
		for _, label := range stringsOf(rec["nodeLabels"]) {
			props[label] = appendProperty(props[label], p)
		}
	}
	for i := range d.Nodes {
		if p, ok := props[d.Nodes[i].Label]; ok {
			d.Nodes[i].Properties = sortedProperties(p)
		}
	}
}

// addRelationshipProperties merges db.schema.relTypeProperties() rows. The
// server reports types as ":`TYPE`".
func addRelationshipProperties(d *schema.Description, rs *graph.ResultSet) {
	props := map[string][]schema.Property{}
	for _, rec := range rs.Records {
		name, _ := rec["propertyName"].(string)
		relType, _ := rec["relType"].(string)
		if name == "" || relType == "" {
			continue
		}
		relType = strings.Trim(strings.TrimPrefix(relType, ":"), "`")
		props[relType] = appendProperty(props[relType], schema.Property{Name: name, Type: firstString(rec["propertyTypes"])})
	}
	for i := range d.Relationships {
		if p, ok := props[d.Relationships[i].Type]; ok {
			d.Relationships[i].Properties = sortedProperties(p)
		}
	}
}

func appendProperty(list []schema.Property, p schema.Property) []schema.Property {
	for _, existing := range list {
		if existing.Name == p.Name {
			return list
		}
	}
	return append(list, p)
}

func sortedProperties(p []schema.Property) []schema.Property {
	sort.Slice(p, func(i, j int) bool { return p[i].Name < p[j].Name })
	return p
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func stringsOf(v any) []string {
	var out []string
	for _, e := range asSlice(v) {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func firstString(v any) string {
	if s := stringsOf(v); len(s) > 0 {
		return s[0]
	}
	return ""
}
