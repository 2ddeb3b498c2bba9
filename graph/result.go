// Package graph holds the driver-neutral shape of a query result: tabular
// records plus the distinct nodes and relationships seen in them.
package graph

// Record is one result row keyed by column name. Values are plain Go
// values, *Node, *Relationship, Path, or slices and maps of those.
type Record map[string]any

// Node is a labelled vertex.
type Node struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// Relationship is a typed, directed edge between two node ids.
type Relationship struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	StartNode  string         `json:"startNode"`
	EndNode    string         `json:"endNode"`
	Properties map[string]any `json:"properties"`
}

// Path is an alternating walk of nodes and relationships.
type Path struct {
	Nodes         []*Node         `json:"nodes"`
	Relationships []*Relationship `json:"relationships"`
}

// ResultSet is the output of executing a statement.
type ResultSet struct {
	Records       []Record       `json:"records"`
	Fields        []string       `json:"fields"`
	Nodes         []Node         `json:"nodes"`
	Relationships []Relationship `json:"relationships"`
}

// Len returns the number of records; nil-safe.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Records)
}

// Collector accumulates distinct nodes and relationships while records are
// converted.
type Collector struct {
	rs        *ResultSet
	seenNodes map[string]bool
	seenRels  map[string]bool
}

// NewCollector starts an empty result set with the given column names.
func NewCollector(fields []string) *Collector {
	return &Collector{
		rs: &ResultSet{
			Records:       []Record{},
			Fields:        fields,
			Nodes:         []Node{},
			Relationships: []Relationship{},
		},
		seenNodes: make(map[string]bool),
		seenRels:  make(map[string]bool),
	}
}

// AddRecord appends a row and indexes any nodes and relationships inside.
func (c *Collector) AddRecord(r Record) {
	c.rs.Records = append(c.rs.Records, r)
	for _, v := range r {
		c.index(v)
	}
}

func (c *Collector) index(v any) {
	switch x := v.(type) {
	case *Node:
		if x != nil && !c.seenNodes[x.ID] {
			c.seenNodes[x.ID] = true
			c.rs.Nodes = append(c.rs.Nodes, *x)
		}
	case *Relationship:
		if x != nil && !c.seenRels[x.ID] {
			c.seenRels[x.ID] = true
			c.rs.Relationships = append(c.rs.Relationships, *x)
		}
	case Path:
		for _, n := range x.Nodes {
			c.index(n)
		}
		for _, r := range x.Relationships {
			c.index(r)
		}
	case []any:
		for _, e := range x {
			c.index(e)
		}
	case map[string]any:
		for _, e := range x {
			c.index(e)
		}
	}
}

// Result returns the accumulated result set.
func (c *Collector) Result() *ResultSet {
	return c.rs
}
