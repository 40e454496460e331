package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/planweave/tally/internal/config"
	"github.com/planweave/tally/internal/coordinator"
	"github.com/planweave/tally/internal/item"
	"github.com/planweave/tally/internal/relgraph"
	"github.com/planweave/tally/internal/summary"
	"github.com/planweave/tally/internal/variable"
)

// Stats aggregates engine-wide diagnostics.
type Stats struct {
	Items int                `json:"items"`
	Graph relgraph.Metrics   `json:"graph"`
	Cache summary.CacheStats `json:"cache"`
}

// Engine is the application facade over the relationship graph, the
// summary calculator and the update coordinator, plus the item and
// variable maps seeded from config.
//
// The graph and cache never lock on their own; a mutation always
// touches several indices, so the engine serializes every operation
// through one mutex, taken for writing even on reads that may
// populate the cache.
type Engine struct {
	mu    sync.Mutex
	graph *relgraph.Graph
	calc  *summary.Calculator
	coord *coordinator.Coordinator
	items item.Map
	vars  variable.Map
}

// New wires the three components from the engine configuration.
func New(conf config.EngineConf) *Engine {
	g := relgraph.New(relgraph.Config{
		MaxDepth:          conf.MaxCascadeDepth,
		DisableCycleCheck: conf.DisableCycleCheck,
	})
	calc := summary.NewCalculator(g, summary.Config{
		MaxCascadeDepth: conf.MaxCascadeDepth,
		CacheTTL:        conf.CacheTTL(),
		CacheMaxEntries: conf.CacheMaxEntries,
	})
	coord := coordinator.New(g, calc, coordinator.Config{
		BatchSize:      conf.BatchSize,
		FloatTolerance: conf.FloatTolerance,
	})
	return &Engine{
		graph: g,
		calc:  calc,
		coord: coord,
		items: make(item.Map),
		vars:  make(variable.Map),
	}
}

// LoadSeed replaces the item and variable maps from config and
// rebuilds the relationship graph from the items' parent references.
func (e *Engine) LoadSeed(cfg *config.Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = cfg.ItemMap()
	e.vars = cfg.VariableMap()
	e.rebuildLocked()
}

// SynchronizeRelationships ensures every declared parent reference
// has a relationship, creating missing edges with multiplier 1.
// Returns how many edges were created.
func (e *Engine) SynchronizeRelationships() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.synchronizeLocked()
}

// RebuildRelationships drops the graph and cache and reconstructs
// both deterministically from the items' own parent references.
func (e *Engine) RebuildRelationships() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rebuildLocked()
}

func (e *Engine) rebuildLocked() int {
	e.graph.Reset()
	e.calc.ClearCache()
	return e.synchronizeLocked()
}

func (e *Engine) synchronizeLocked() int {
	created := 0
	for _, it := range e.items {
		for _, ref := range it.Parents {
			relID := ref.RelationshipID
			if relID == "" {
				relID = ref.ID + "->" + it.ID
			}
			if _, exists := e.graph.Relationship(relID); exists {
				continue
			}
			if _, err := e.graph.CreateRelationship(relID, ref.ID, it.ID, 1); err != nil {
				slog.Warn("skipping parent reference during sync", "item", it.ID, "parent", ref.ID, "err", err)
				continue
			}
			created++
		}
	}
	if created > 0 {
		e.calc.ClearCache()
	}
	return created
}

// Summary computes (or serves from cache) the aggregated summary for
// itemID.
func (e *Engine) Summary(itemID string) variable.Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calc.Calculate(itemID, e.items, e.vars)
}

// Breakdown returns the per-relationship contribution breakdown.
func (e *Engine) Breakdown(itemID string) *summary.RelationshipSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calc.CalculateRelationship(itemID, e.items, e.vars)
}

// SetVariables replaces itemID's declared variables and propagates
// the change, returning the recomputed summaries.
func (e *Engine) SetVariables(ctx context.Context, itemID string, vars []variable.Variable, changeType string) (map[string]variable.Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(vars) == 0 {
		delete(e.vars, itemID)
	} else {
		e.vars[itemID] = vars
	}
	if _, known := e.items[itemID]; !known {
		e.items[itemID] = &item.Item{ID: itemID}
	}
	return e.coord.UpdateVariables(ctx, itemID, e.items, e.vars, changeType)
}

// CreateRelationship inserts an edge and invalidates summaries the
// new edge makes stale.
func (e *Engine) CreateRelationship(id, parentID, childID string, multiplier float64) (*relgraph.Relationship, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rel, err := e.graph.CreateRelationship(id, parentID, childID, multiplier)
	if err != nil {
		return nil, err
	}
	e.calc.Invalidate(parentID)
	return rel, nil
}

// RemoveRelationship deletes an edge and invalidates stale summaries.
func (e *Engine) RemoveRelationship(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	rel, ok := e.graph.Relationship(id)
	if !ok {
		return false
	}
	if !e.graph.RemoveRelationship(id) {
		return false
	}
	e.calc.InvalidateRelationships(map[string]struct{}{id: {}})
	e.calc.Invalidate(rel.ParentID)
	return true
}

// UpdateMultiplier changes an edge's multiplier and returns the
// recomputed summaries of every stale item.
func (e *Engine) UpdateMultiplier(ctx context.Context, relID string, multiplier float64) (map[string]variable.Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.coord.UpdateMultiplier(ctx, relID, multiplier, e.items, e.vars)
}

// BatchUpdate recomputes the union of the given items' affected sets.
func (e *Engine) BatchUpdate(ctx context.Context, itemIDs []string) (map[string]variable.Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.coord.BatchUpdate(ctx, itemIDs, e.items, e.vars)
}

// ValidateUpdate recomputes itemID fresh and diffs against expected.
func (e *Engine) ValidateUpdate(itemID string, expected variable.Summary) *coordinator.ValidationResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.coord.ValidateUpdate(itemID, expected, e.items, e.vars)
}

// Subscribe registers a mutation callback (item ID or "*" scope).
func (e *Engine) Subscribe(scope string, fn relgraph.NotifyFunc) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	unsub := e.graph.Subscribe(scope, fn)
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		unsub()
	}
}

// Relationship returns the edge with the given ID.
func (e *Engine) Relationship(id string) (*relgraph.Relationship, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Relationship(id)
}

// Stats reports graph and cache diagnostics.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Items: len(e.items),
		Graph: e.graph.Metrics(),
		Cache: e.calc.CacheStats(),
	}
}
