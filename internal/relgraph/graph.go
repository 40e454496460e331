package relgraph

import (
	"fmt"
	"math"

	"github.com/planweave/tally/internal/metrics"
	"github.com/planweave/tally/internal/variable"
)

// DefaultMaxDepth bounds every depth-first traversal over the graph.
const DefaultMaxDepth = 10

// Relationship is a directed edge from a parent item to a child item.
// The multiplier scales all of the child's aggregated quantities when
// they are folded into the parent's summary.
type Relationship struct {
	ID         string  `json:"relationship_id"`
	ParentID   string  `json:"parent_item_id"`
	ChildID    string  `json:"child_item_id"`
	Multiplier float64 `json:"multiplier"`

	// ContributionSummary is the child's scaled summary as of the last
	// aggregation that traversed this edge. Diagnostic; refreshed by
	// the calculator, never read back by the graph.
	ContributionSummary variable.Summary `json:"contribution_summary,omitempty"`
}

// Config tunes graph traversal behavior.
type Config struct {
	// MaxDepth caps cycle-detection and diagnostic DFS depth.
	MaxDepth int
	// DisableCycleCheck skips circular-reference validation on insert.
	DisableCycleCheck bool
}

// Graph is a mutable, bidirectionally indexed set of relationships.
//
// The graph performs no internal locking: it is designed for one
// logical caller at a time. Every mutation touches all three indices,
// so a multi-goroutine host must serialize access with a single lock
// around the graph and the summary cache collectively (the engine
// facade does this).
type Graph struct {
	cfg      Config
	byID     map[string]*Relationship
	byParent map[string][]string // parent item ID → relationship IDs
	byChild  map[string][]string // child item ID → relationship IDs

	subs      map[string]map[uint64]NotifyFunc
	nextToken uint64

	cycleRejections int
}

// New allocates an empty Graph. Callers construct one per application
// context; there is no package-level instance.
func New(cfg Config) *Graph {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	return &Graph{
		cfg:      cfg,
		byID:     make(map[string]*Relationship),
		byParent: make(map[string][]string),
		byChild:  make(map[string][]string),
		subs:     make(map[string]map[uint64]NotifyFunc),
	}
}

// CreateRelationship inserts (or overwrites, for an existing ID) the
// edge parentID→childID. Subscribers scoped to the parent item are
// notified on success.
func (g *Graph) CreateRelationship(id, parentID, childID string, multiplier float64) (*Relationship, error) {
	if id == "" || parentID == "" || childID == "" {
		return nil, fmt.Errorf("%w: id, parent and child are required", ErrInvalidParameters)
	}
	if math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return nil, fmt.Errorf("%w: multiplier must be finite, got %v", ErrInvalidParameters, multiplier)
	}
	if parentID == childID {
		return nil, fmt.Errorf("%w: item %s cannot relate to itself", ErrSelfReference, parentID)
	}
	if !g.cfg.DisableCycleCheck && g.WouldCreateCircle(childID, parentID) {
		g.cycleRejections++
		metrics.CycleRejections.Inc()
		return nil, fmt.Errorf("%w: path from %s back to %s", ErrCircularReference, childID, parentID)
	}

	// Same ID overwrites the edge in place, including re-homing its
	// endpoints when they changed.
	if old, ok := g.byID[id]; ok {
		g.unindex(old)
	}

	rel := &Relationship{ID: id, ParentID: parentID, ChildID: childID, Multiplier: multiplier}
	g.byID[id] = rel
	g.byParent[parentID] = append(g.byParent[parentID], id)
	g.byChild[childID] = append(g.byChild[childID], id)
	metrics.Relationships.Set(float64(len(g.byID)))

	g.notify(parentID, []string{id})
	return rel, nil
}

// RemoveRelationship deletes the edge from all three indices.
// Returns false if the ID is unknown.
func (g *Graph) RemoveRelationship(id string) bool {
	rel, ok := g.byID[id]
	if !ok {
		return false
	}
	g.unindex(rel)
	metrics.Relationships.Set(float64(len(g.byID)))
	g.notify(rel.ParentID, []string{id})
	return true
}

// UpdateMultiplier replaces the multiplier of an existing edge in
// place. Returns false if the ID is unknown.
func (g *Graph) UpdateMultiplier(id string, multiplier float64) bool {
	rel, ok := g.byID[id]
	if !ok {
		return false
	}
	rel.Multiplier = multiplier
	g.notify(rel.ParentID, []string{id})
	return true
}

// Relationship returns the edge with the given ID.
func (g *Graph) Relationship(id string) (*Relationship, bool) {
	rel, ok := g.byID[id]
	return rel, ok
}

// ChildRelationships returns all edges where parentID is the parent.
func (g *Graph) ChildRelationships(parentID string) []*Relationship {
	return g.resolve(g.byParent[parentID])
}

// ParentRelationships returns all edges where childID is the child.
func (g *Graph) ParentRelationships(childID string) []*Relationship {
	return g.resolve(g.byChild[childID])
}

// AffectedRelationships returns the IDs of every edge whose cached
// contribution becomes stale when itemID's data changes: the edges
// where itemID is the child, plus (transitively, depth-bounded) the
// incoming edges of each ancestor reached through them.
func (g *Graph) AffectedRelationships(itemID string) map[string]struct{} {
	affected := make(map[string]struct{})
	visited := make(map[string]struct{})
	g.collectAncestorEdges(itemID, affected, visited, 0)
	return affected
}

func (g *Graph) collectAncestorEdges(itemID string, affected, visited map[string]struct{}, depth int) {
	if depth >= g.cfg.MaxDepth {
		return
	}
	if _, ok := visited[itemID]; ok {
		return
	}
	visited[itemID] = struct{}{}
	for _, relID := range g.byChild[itemID] {
		affected[relID] = struct{}{}
		g.collectAncestorEdges(g.byID[relID].ParentID, affected, visited, depth+1)
	}
}

// WouldCreateCircle reports whether toID is reachable from fromID by
// following parent→child edges. Adding an edge toID→fromID while this
// holds would close a cycle.
func (g *Graph) WouldCreateCircle(fromID, toID string) bool {
	if fromID == toID {
		return true
	}
	inStack := make(map[string]struct{})
	return g.reachable(fromID, toID, inStack, 0)
}

// reachable is a DFS with a recursion-stack set, so an already broken
// graph (possible when cycle checking was disabled) cannot loop it.
func (g *Graph) reachable(fromID, toID string, inStack map[string]struct{}, depth int) bool {
	if depth >= g.cfg.MaxDepth {
		return false
	}
	if _, ok := inStack[fromID]; ok {
		return false
	}
	inStack[fromID] = struct{}{}
	for _, relID := range g.byParent[fromID] {
		child := g.byID[relID].ChildID
		if child == toID {
			return true
		}
		if g.reachable(child, toID, inStack, depth+1) {
			return true
		}
	}
	return false
}

// Reset drops every relationship while keeping configuration,
// subscriptions and rejection counters. Used when the graph is
// rebuilt from scratch out of the items' parent references.
func (g *Graph) Reset() {
	g.byID = make(map[string]*Relationship)
	g.byParent = make(map[string][]string)
	g.byChild = make(map[string][]string)
	metrics.Relationships.Set(0)
}

// Len returns the number of relationships.
func (g *Graph) Len() int {
	return len(g.byID)
}

func (g *Graph) resolve(ids []string) []*Relationship {
	if len(ids) == 0 {
		return nil
	}
	out := make([]*Relationship, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.byID[id])
	}
	return out
}

func (g *Graph) unindex(rel *Relationship) {
	delete(g.byID, rel.ID)
	g.byParent[rel.ParentID] = remove(g.byParent[rel.ParentID], rel.ID)
	if len(g.byParent[rel.ParentID]) == 0 {
		delete(g.byParent, rel.ParentID)
	}
	g.byChild[rel.ChildID] = remove(g.byChild[rel.ChildID], rel.ID)
	if len(g.byChild[rel.ChildID]) == 0 {
		delete(g.byChild, rel.ChildID)
	}
}

func remove(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
