package graphdb

import (
	"context"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/gocypher/graph"
	"github.com/brunobiangulo/gocypher/schema"
)

func person(id, name string) neo4j.Node {
	return neo4j.Node{ElementId: id, Labels: []string{"Person"}, Props: map[string]any{"name": name}}
}

func TestConvertValue(t *testing.T) {
	ann := person("4:a:1", "Ann")
	heat := neo4j.Node{ElementId: "4:a:2", Labels: []string{"Movie"}, Props: map[string]any{
		"title":    "Heat",
		"released": neo4j.Date(time.Date(1995, 12, 15, 0, 0, 0, 0, time.UTC)),
	}}
	acted := neo4j.Relationship{ElementId: "5:a:1", Type: "ACTED_IN", StartElementId: "4:a:1", EndElementId: "4:a:2",
		Props: map[string]any{"roles": []any{"Eady"}}}

	t.Run("node", func(t *testing.T) {
		n, ok := convertValue(heat).(*graph.Node)
		require.True(t, ok)
		assert.Equal(t, "4:a:2", n.ID)
		assert.Equal(t, []string{"Movie"}, n.Labels)
		assert.Equal(t, "1995-12-15", n.Properties["released"])
	})

	t.Run("relationship", func(t *testing.T) {
		r, ok := convertValue(acted).(*graph.Relationship)
		require.True(t, ok)
		assert.Equal(t, "ACTED_IN", r.Type)
		assert.Equal(t, "4:a:1", r.StartNode)
		assert.Equal(t, "4:a:2", r.EndNode)
		assert.Equal(t, []any{"Eady"}, r.Properties["roles"])
	})

	t.Run("path", func(t *testing.T) {
		p, ok := convertValue(neo4j.Path{Nodes: []neo4j.Node{ann, heat}, Relationships: []neo4j.Relationship{acted}}).(graph.Path)
		require.True(t, ok)
		require.Len(t, p.Nodes, 2)
		require.Len(t, p.Relationships, 1)
		assert.Equal(t, "Ann", p.Nodes[0].Properties["name"])
	})

	t.Run("scalars", func(t *testing.T) {
		at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		assert.Equal(t, "2024-01-02T03:04:05Z", convertValue(at))
		assert.Equal(t, int64(42), convertValue(int64(42)))
		assert.Equal(t, "x", convertValue("x"))
		assert.Nil(t, convertValue(nil))
		assert.Equal(t, map[string]any{"x": 1.0, "y": 2.0, "srid": uint32(7203)},
			convertValue(neo4j.Point2D{X: 1, Y: 2, SpatialRefId: 7203}))
	})

	t.Run("nested", func(t *testing.T) {
		out := convertValue(map[string]any{"people": []any{ann}})
		m, ok := out.(map[string]any)
		require.True(t, ok)
		list, ok := m["people"].([]any)
		require.True(t, ok)
		assert.IsType(t, &graph.Node{}, list[0])
	})
}

func TestCollect(t *testing.T) {
	ann := person("1", "Ann")
	bob := person("2", "Bob")
	knows := neo4j.Relationship{ElementId: "r1", Type: "KNOWS", StartElementId: "1", EndElementId: "2"}

	records := []*neo4j.Record{
		{Keys: []string{"a", "r", "b"}, Values: []any{ann, knows, bob}},
		{Keys: []string{"a", "r", "b"}, Values: []any{ann, knows, bob}},
		nil,
	}
	rs := collect([]string{"a", "r", "b"}, records)
	assert.Equal(t, 2, rs.Len())
	assert.Equal(t, []string{"a", "r", "b"}, rs.Fields)
	assert.Len(t, rs.Nodes, 2, "nodes are deduplicated")
	assert.Len(t, rs.Relationships, 1)

	empty := collect(nil, nil)
	assert.Equal(t, 0, empty.Len())
	assert.NotNil(t, empty.Fields)
}

func TestFromVisualization(t *testing.T) {
	rec := graph.Record{
		"nodes": []any{
			&graph.Node{ID: "-1", Labels: []string{"Person"}},
			&graph.Node{ID: "-2", Labels: []string{"Movie"}},
			&graph.Node{ID: "-3"},
		},
		"relationships": []any{
			&graph.Relationship{ID: "-1", Type: "ACTED_IN", StartNode: "-1", EndNode: "-2"},
			&graph.Relationship{ID: "-2", Type: "ACTED_IN", StartNode: "-1", EndNode: "-2"},
			&graph.Relationship{ID: "-3", Type: "DIRECTED", StartNode: "-1", EndNode: "-2"},
		},
	}
	d := fromVisualization(rec)
	require.NoError(t, d.Validate())
	assert.Equal(t, []string{"Person", "Movie"}, d.Labels())
	require.Len(t, d.Relationships, 2)
	assert.Equal(t, schema.RelationshipType{Type: "ACTED_IN", StartLabel: "Person", EndLabel: "Movie", Properties: []schema.Property{}},
		d.Relationships[0])

	empty := fromVisualization(graph.Record{})
	assert.NoError(t, empty.Validate())
}

func TestAddProperties(t *testing.T) {
	d := &schema.Description{
		Nodes:         []schema.NodeType{{Label: "Person", Properties: []schema.Property{}}, {Label: "Movie", Properties: []schema.Property{}}},
		Relationships: []schema.RelationshipType{{Type: "ACTED_IN", Properties: []schema.Property{}}},
	}

	addNodeProperties(d, &graph.ResultSet{Records: []graph.Record{
		{"nodeLabels": []any{"Person"}, "propertyName": "name", "propertyTypes": []any{"String"}},
		{"nodeLabels": []any{"Person"}, "propertyName": "born", "propertyTypes": []any{"Long"}},
		{"nodeLabels": []any{"Person"}, "propertyName": "name", "propertyTypes": []any{"String"}},
		{"nodeLabels": []any{"Movie"}, "propertyName": nil},
	}})
	addRelationshipProperties(d, &graph.ResultSet{Records: []graph.Record{
		{"relType": ":`ACTED_IN`", "propertyName": "roles", "propertyTypes": []any{"StringArray"}},
	}})

	assert.Equal(t, []schema.Property{{Name: "born", Type: "Long"}, {Name: "name", Type: "String"}}, d.Nodes[0].Properties)
	assert.Empty(t, d.Nodes[1].Properties)
	assert.Equal(t, []schema.Property{{Name: "roles", Type: "StringArray"}}, d.Relationships[0].Properties)
}

func TestNotConnected(t *testing.T) {
	ctx := context.Background()
	var c *Client
	assert.Equal(t, Status{}, c.Status())

	c = &Client{cfg: Config{URI: "neo4j://localhost"}}
	_, err := c.Execute(ctx, "MATCH (n) RETURN n LIMIT 1", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, c.Ping(ctx), ErrNotConnected)
	assert.False(t, c.Status().Connected)
	assert.NoError(t, c.Close(ctx))
}

func TestExecuteRefusesUnsafe(t *testing.T) {
	c := &Client{}
	for _, s := range []string{
		"DROP INDEX movie_title",
		"MATCH (n) DETACH DELETE n",
		"MATCH (n) WHERE 1=1 DETACH DELETE n RETURN count(*)",
	} {
		t.Run(s, func(t *testing.T) {
			_, err := c.Execute(context.Background(), s, nil)
			assert.ErrorIs(t, err, ErrUnsafeStatement)
		})
	}
}

func TestConnectValidatesConfig(t *testing.T) {
	_, err := Connect(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = Connect(context.Background(), Config{URI: "neo4j://localhost:7687"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
