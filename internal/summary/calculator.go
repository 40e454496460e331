package summary

import (
	"log/slog"
	"time"

	"github.com/planweave/tally/internal/item"
	"github.com/planweave/tally/internal/metrics"
	"github.com/planweave/tally/internal/relgraph"
	"github.com/planweave/tally/internal/variable"
)

// Config tunes aggregation depth and cache behavior.
type Config struct {
	// MaxCascadeDepth bounds recursion through nested relationships.
	MaxCascadeDepth int
	CacheTTL        time.Duration
	CacheMaxEntries int
}

// Contribution is the portion of a parent's total attributable to one
// relationship.
type Contribution struct {
	RelationshipID string           `json:"relationship_id"`
	ChildID        string           `json:"child_item_id"`
	Multiplier     float64          `json:"multiplier"`
	Summary        variable.Summary `json:"summary"`
}

// RelationshipSummary explains why an item's total has its value:
// the direct variables, the per-relationship breakdown, and the
// combined total.
type RelationshipSummary struct {
	ItemID        string           `json:"item_id"`
	Direct        variable.Summary `json:"direct"`
	Contributions []Contribution   `json:"contributions"`
	Total         variable.Summary `json:"total"`
}

// Calculator computes merged quantity summaries by walking the
// relationship graph downward from an item, scaling each child's
// contribution by the traversed edge's multiplier.
type Calculator struct {
	graph    *relgraph.Graph
	cache    *Cache
	maxDepth int
}

// NewCalculator creates a Calculator over g.
func NewCalculator(g *relgraph.Graph, cfg Config) *Calculator {
	if cfg.MaxCascadeDepth <= 0 {
		cfg.MaxCascadeDepth = relgraph.DefaultMaxDepth
	}
	return &Calculator{
		graph:    g,
		cache:    NewCache(cfg.CacheTTL, cfg.CacheMaxEntries),
		maxDepth: cfg.MaxCascadeDepth,
	}
}

// Calculate returns the aggregated summary for itemID. It never
// fails: cycles and depth overruns degrade to partial summaries, and
// an unexpected panic during recursion is answered with a fallback
// aggregation that ignores the relationship graph entirely.
func (c *Calculator) Calculate(itemID string, items item.Map, vars variable.Map) (out variable.Summary) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("summary calculation failed, using fallback", "item", itemID, "panic", r)
			metrics.FallbackComputations.Inc()
			out = c.fallback(itemID, items, vars, make(map[string]struct{}), 0)
		}
	}()
	visited := make(map[string]struct{})
	s, _ := c.calculate(itemID, items, vars, visited, 0, true)
	return s
}

// CalculateFresh recomputes itemID's summary without consulting or
// populating the cache. Used by update validation.
func (c *Calculator) CalculateFresh(itemID string, items item.Map, vars variable.Map) (out variable.Summary) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("fresh summary calculation failed, using fallback", "item", itemID, "panic", r)
			metrics.FallbackComputations.Inc()
			out = c.fallback(itemID, items, vars, make(map[string]struct{}), 0)
		}
	}()
	visited := make(map[string]struct{})
	s, _ := c.calculate(itemID, items, vars, visited, 0, false)
	return s
}

// CalculateRelationship computes the richer per-relationship
// breakdown for itemID.
func (c *Calculator) CalculateRelationship(itemID string, items item.Map, vars variable.Map) *RelationshipSummary {
	rs := &RelationshipSummary{
		ItemID: itemID,
		Direct: variable.Fold(vars[itemID]),
	}
	rs.Total = rs.Direct.Clone()
	visited := map[string]struct{}{itemID: {}}
	for _, rel := range c.graph.ChildRelationships(itemID) {
		child, _ := c.calculate(rel.ChildID, items, vars, visited, 1, true)
		contribution := child.Scale(rel.Multiplier)
		rs.Contributions = append(rs.Contributions, Contribution{
			RelationshipID: rel.ID,
			ChildID:        rel.ChildID,
			Multiplier:     rel.Multiplier,
			Summary:        contribution,
		})
		rs.Total = rs.Total.Merge(contribution)
	}
	return rs
}

// calculate is the recursive core. The visited set short-circuits
// cycles that would only exist if a graph invariant was violated; the
// depth bound truncates pathological chains instead of failing the
// whole call.
//
// The second return value reports whether the subtree was aggregated
// completely. A summary cut short by the depth bound or a cycle is
// valid for this call's horizon only, so it must never be memoized:
// a cached partial would make later calls on that item depend on
// where earlier traversals happened to start.
func (c *Calculator) calculate(itemID string, items item.Map, vars variable.Map, visited map[string]struct{}, depth int, useCache bool) (variable.Summary, bool) {
	if _, ok := visited[itemID]; ok {
		slog.Warn("cycle encountered during aggregation", "item", itemID)
		return variable.Summary{}, false
	}
	if depth >= c.maxDepth {
		slog.Warn("max cascade depth exceeded, truncating", "item", itemID, "depth", depth)
		metrics.DepthTruncations.Inc()
		return variable.Summary{}, false
	}
	if useCache {
		if cached, ok := c.cache.Get(itemID); ok {
			return cached, true
		}
	}
	if _, ok := items[itemID]; !ok {
		slog.Warn("item not found during aggregation", "item", itemID)
	}

	visited[itemID] = struct{}{}
	defer delete(visited, itemID)

	sum := variable.Fold(vars[itemID])
	deps := make(map[string]struct{})
	complete := true
	for _, rel := range c.graph.ChildRelationships(itemID) {
		deps[rel.ID] = struct{}{}
		child, childComplete := c.calculate(rel.ChildID, items, vars, visited, depth+1, useCache)
		if !childComplete {
			complete = false
		}
		contribution := child.Scale(rel.Multiplier)
		rel.ContributionSummary = contribution
		sum = sum.Merge(contribution)
	}
	metrics.SummariesComputed.Inc()
	if useCache && complete {
		c.cache.Put(itemID, sum, deps)
	}
	return sum, complete
}

// fallback aggregates without the relationship graph: the item's
// direct variables plus a naive descent over its own declared
// children, every contribution weighted 1.
func (c *Calculator) fallback(itemID string, items item.Map, vars variable.Map, visited map[string]struct{}, depth int) variable.Summary {
	if _, ok := visited[itemID]; ok || depth >= c.maxDepth {
		return variable.Summary{}
	}
	visited[itemID] = struct{}{}

	sum := variable.Fold(vars[itemID])
	it, ok := items[itemID]
	if !ok || !it.HasChildren() {
		return sum
	}
	for _, childID := range it.Children {
		sum = sum.Merge(c.fallback(childID, items, vars, visited, depth+1))
	}
	return sum
}

// Invalidate removes itemID's cache entry and every entry whose
// dependency set intersects the relationships affected by itemID.
func (c *Calculator) Invalidate(itemID string) {
	c.cache.InvalidateItem(itemID)
	c.cache.InvalidateByDeps(c.graph.AffectedRelationships(itemID))
}

// InvalidateRelationships removes every entry depending on one of the
// given relationship IDs.
func (c *Calculator) InvalidateRelationships(relIDs map[string]struct{}) int {
	return c.cache.InvalidateByDeps(relIDs)
}

// ClearCache drops all memoized summaries.
func (c *Calculator) ClearCache() { c.cache.Clear() }

// CacheStats reports cache effectiveness.
func (c *Calculator) CacheStats() CacheStats { return c.cache.Stats() }

// Graph exposes the underlying relationship graph.
func (c *Calculator) Graph() *relgraph.Graph { return c.graph }
