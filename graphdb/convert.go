package graphdb

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/brunobiangulo/gocypher/graph"
)

// collect converts driver records into a result set, indexing every node
// and relationship they contain.
func collect(keys []string, records []*neo4j.Record) *graph.ResultSet {
	if keys == nil {
		keys = []string{}
	}
	c := graph.NewCollector(keys)
	for _, rec := range records {
		if rec == nil {
			continue
		}
		row := make(graph.Record, len(rec.Keys))
		for i, key := range rec.Keys {
			if i < len(rec.Values) {
				row[key] = convertValue(rec.Values[i])
			}
		}
		c.AddRecord(row)
	}
	return c.Result()
}

// convertValue maps a driver value to a plain Go value: graph entities
// become *graph.Node, *graph.Relationship or graph.Path, temporal values
// become ISO-8601 strings, points become {x, y, z?, srid} maps.
func convertValue(v any) any {
	switch x := v.(type) {
	case neo4j.Node:
		return convertNode(x)
	case neo4j.Relationship:
		return convertRelationship(x)
	case neo4j.Path:
		p := graph.Path{
			Nodes:         make([]*graph.Node, len(x.Nodes)),
			Relationships: make([]*graph.Relationship, len(x.Relationships)),
		}
		for i, n := range x.Nodes {
			p.Nodes[i] = convertNode(n)
		}
		for i, r := range x.Relationships {
			p.Relationships[i] = convertRelationship(r)
		}
		return p
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = convertValue(e)
		}
		return out
	case map[string]any:
		return convertProps(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case neo4j.Date:
		return x.String()
	case neo4j.LocalDateTime:
		return x.String()
	case neo4j.LocalTime:
		return x.String()
	case neo4j.Time:
		return x.String()
	case neo4j.Duration:
		return x.String()
	case neo4j.Point2D:
		return map[string]any{"x": x.X, "y": x.Y, "srid": x.SpatialRefId}
	case neo4j.Point3D:
		return map[string]any{"x": x.X, "y": x.Y, "z": x.Z, "srid": x.SpatialRefId}
	default:
		return v
	}
}

func convertNode(n neo4j.Node) *graph.Node {
	return &graph.Node{
		ID:         n.ElementId,
		Labels:     n.Labels,
		Properties: convertProps(n.Props),
	}
}

func convertRelationship(r neo4j.Relationship) *graph.Relationship {
	return &graph.Relationship{
		ID:         r.ElementId,
		Type:       r.Type,
		StartNode:  r.StartElementId,
		EndNode:    r.EndElementId,
		Properties: convertProps(r.Props),
	}
}

func convertProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = convertValue(v)
	}
	return out
}
