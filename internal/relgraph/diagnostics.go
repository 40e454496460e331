package relgraph

// Metrics is a diagnostic snapshot of the graph's shape.
type Metrics struct {
	TotalRelationships     int     `json:"total_relationships"`
	AvgChildrenPerParent   float64 `json:"avg_children_per_parent"`
	AvgParentsPerChild     float64 `json:"avg_parents_per_child"`
	MaxDepth               int     `json:"max_depth"`
	CircularReferenceCount int     `json:"circular_reference_count"`
}

// Metrics computes a diagnostic snapshot. MaxDepth is the longest
// parent→child chain, bounded by the configured traversal cutoff.
func (g *Graph) Metrics() Metrics {
	m := Metrics{
		TotalRelationships:     len(g.byID),
		CircularReferenceCount: g.cycleRejections,
	}
	if len(g.byParent) > 0 {
		m.AvgChildrenPerParent = float64(len(g.byID)) / float64(len(g.byParent))
	}
	if len(g.byChild) > 0 {
		m.AvgParentsPerChild = float64(len(g.byID)) / float64(len(g.byChild))
	}

	// Depth is measured from roots: parents that are nobody's child.
	for parentID := range g.byParent {
		if _, isChild := g.byChild[parentID]; isChild {
			continue
		}
		inStack := make(map[string]struct{})
		if d := g.depthFrom(parentID, inStack, 0); d > m.MaxDepth {
			m.MaxDepth = d
		}
	}
	return m
}

func (g *Graph) depthFrom(itemID string, inStack map[string]struct{}, depth int) int {
	if depth >= g.cfg.MaxDepth {
		return depth
	}
	if _, ok := inStack[itemID]; ok {
		return depth
	}
	inStack[itemID] = struct{}{}
	defer delete(inStack, itemID)

	max := depth
	for _, relID := range g.byParent[itemID] {
		if d := g.depthFrom(g.byID[relID].ChildID, inStack, depth+1); d > max {
			max = d
		}
	}
	return max
}
