package graph

// Neighborhood returns the part of the result set reachable from the seed
// nodes within maxDepth hops, following relationships in both directions.
// Records are kept when every node they reference is reachable.
func (rs *ResultSet) Neighborhood(seedIDs []string, maxDepth int) *ResultSet {
	if rs == nil || len(seedIDs) == 0 || maxDepth < 0 {
		return NewCollector(nil).Result()
	}

	// Build adjacency: node ID -> list of neighbour node IDs.
	neighbours := make(map[string][]string)
	for _, r := range rs.Relationships {
		neighbours[r.StartNode] = append(neighbours[r.StartNode], r.EndNode)
		neighbours[r.EndNode] = append(neighbours[r.EndNode], r.StartNode)
	}

	known := make(map[string]bool, len(rs.Nodes))
	for _, n := range rs.Nodes {
		known[n.ID] = true
	}

	// BFS from seed nodes.
	visited := make(map[string]bool)
	queue := make([]string, 0, len(seedIDs))
	for _, id := range seedIDs {
		if known[id] && !visited[id] {
			visited[id] = true
			queue = append(queue, id)
		}
	}

	for depth := 0; depth < maxDepth && len(queue) > 0; depth++ {
		var next []string
		for _, id := range queue {
			for _, nid := range neighbours[id] {
				if !visited[nid] {
					visited[nid] = true
					next = append(next, nid)
				}
			}
		}
		queue = next
	}

	out := NewCollector(rs.Fields)
	for _, rec := range rs.Records {
		if recordWithin(rec, visited) {
			out.AddRecord(rec)
		}
	}
	// Nodes and relationships not carried by any kept record.
	for i := range rs.Nodes {
		if visited[rs.Nodes[i].ID] {
			out.index(&rs.Nodes[i])
		}
	}
	for i := range rs.Relationships {
		r := &rs.Relationships[i]
		if visited[r.StartNode] && visited[r.EndNode] {
			out.index(r)
		}
	}
	return out.Result()
}

func recordWithin(rec Record, visited map[string]bool) bool {
	ok := true
	var walk func(v any)
	walk = func(v any) {
		switch x := v.(type) {
		case *Node:
			if x != nil && !visited[x.ID] {
				ok = false
			}
		case *Relationship:
			if x != nil && (!visited[x.StartNode] || !visited[x.EndNode]) {
				ok = false
			}
		case Path:
			for _, n := range x.Nodes {
				walk(n)
			}
		case []any:
			for _, e := range x {
				walk(e)
			}
		case map[string]any:
			for _, e := range x {
				walk(e)
			}
		}
	}
	for _, v := range rec {
		walk(v)
	}
	return ok
}
