package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/planweave/tally/internal/item"
	"github.com/planweave/tally/internal/metrics"
	"github.com/planweave/tally/internal/relgraph"
	"github.com/planweave/tally/internal/summary"
	"github.com/planweave/tally/internal/variable"
)

// Defaults; overridable through Config.
const (
	DefaultBatchSize      = 50
	DefaultFloatTolerance = 0.001
)

// Config tunes update propagation.
type Config struct {
	// BatchSize bounds how many items are invalidated and recomputed
	// per chunk during batch updates.
	BatchSize int
	// FloatTolerance is the maximum quantity difference ValidateUpdate
	// ignores.
	FloatTolerance float64
}

// State tracks an update through its lifecycle. Not externally
// observable except through the returned summaries or an error.
type State int

const (
	StatePending State = iota
	StateAffectedSetComputed
	StateCacheInvalidated
	StateRecomputed
	StateCommitted
	StateRolledBack
)

// UpdateContext carries one mutation through the state machine and
// records the rollback snapshot.
type UpdateContext struct {
	OperationID   string
	ChangeType    string
	State         State
	StartedAt     time.Time
	RollbackItems []string
}

// Coordinator determines the minimal set of items whose cached
// summaries a mutation makes stale, invalidates them, recomputes, and
// returns the new summaries.
type Coordinator struct {
	graph     *relgraph.Graph
	calc      *summary.Calculator
	batchSize int
	tolerance float64
}

// New creates a Coordinator over the graph and calculator.
func New(g *relgraph.Graph, calc *summary.Calculator, cfg Config) *Coordinator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FloatTolerance <= 0 {
		cfg.FloatTolerance = DefaultFloatTolerance
	}
	return &Coordinator{graph: g, calc: calc, batchSize: cfg.BatchSize, tolerance: cfg.FloatTolerance}
}

// UpdateVariables propagates a change to itemID's declared variables:
// every item touched by an affected relationship is invalidated and
// recomputed. The returned map holds the new summaries keyed by item
// ID. changeType is recorded for diagnostics only.
func (c *Coordinator) UpdateVariables(ctx context.Context, itemID string, items item.Map, vars variable.Map, changeType string) (map[string]variable.Summary, error) {
	uc := newUpdateContext(changeType)
	stale := c.affectedItems(itemID, uc)
	return c.propagate(ctx, uc, stale, items, vars)
}

// UpdateMultiplier applies a multiplier change through the graph and
// propagates from the relationship's parent item.
func (c *Coordinator) UpdateMultiplier(ctx context.Context, relID string, multiplier float64, items item.Map, vars variable.Map) (map[string]variable.Summary, error) {
	rel, ok := c.graph.Relationship(relID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", relgraph.ErrRelationshipNotFound, relID)
	}
	if !c.graph.UpdateMultiplier(relID, multiplier) {
		return nil, fmt.Errorf("%w: %s", relgraph.ErrRelationshipNotFound, relID)
	}
	uc := newUpdateContext("multiplier")
	stale := c.affectedItems(rel.ParentID, uc)
	stale[rel.ChildID] = struct{}{}
	uc.RollbackItems = keys(stale)
	return c.propagate(ctx, uc, stale, items, vars)
}

// BatchUpdate unions the affected sets of all requested items before
// invalidating and recomputing, so mutations sharing dependents are
// not recomputed twice. The union is processed in fixed-size chunks
// to bound the peak working set.
func (c *Coordinator) BatchUpdate(ctx context.Context, itemIDs []string, items item.Map, vars variable.Map) (map[string]variable.Summary, error) {
	uc := newUpdateContext("batch")
	stale := make(map[string]struct{})
	rels := make(map[string]struct{})
	for _, id := range itemIDs {
		if id == "" {
			continue
		}
		stale[id] = struct{}{}
		for relID := range c.graph.AffectedRelationships(id) {
			rels[relID] = struct{}{}
		}
	}
	addEndpoints(c.graph, rels, stale)
	uc.State = StateAffectedSetComputed
	uc.RollbackItems = keys(stale)
	metrics.BatchItems.Observe(float64(len(stale)))

	result := make(map[string]variable.Summary, len(stale))
	err := c.runChunked(ctx, keys(stale), func(chunk []string) {
		for _, id := range chunk {
			c.calc.Invalidate(id)
		}
		uc.State = StateCacheInvalidated
		for _, id := range chunk {
			result[id] = c.calc.Calculate(id, items, vars)
		}
		uc.State = StateRecomputed
	})
	if err != nil {
		uc.State = StateRolledBack
		return result, err
	}
	uc.State = StateCommitted
	return result, nil
}

// Rollback invalidates caches for every item named in the context's
// rollback snapshot, so subsequent reads recompute from source data.
// It does not restore prior graph state. Returns false when the
// context holds no snapshot.
func (c *Coordinator) Rollback(uc *UpdateContext, items item.Map, vars variable.Map) bool {
	if uc == nil || len(uc.RollbackItems) == 0 {
		return false
	}
	for _, id := range uc.RollbackItems {
		c.calc.Invalidate(id)
	}
	uc.State = StateRolledBack
	slog.Info("update rolled back", "operation_id", uc.OperationID, "items", len(uc.RollbackItems))
	return true
}

// affectedItems computes the stale item set for a mutation starting
// at itemID: the item itself plus both endpoints of every affected
// relationship.
func (c *Coordinator) affectedItems(itemID string, uc *UpdateContext) map[string]struct{} {
	stale := map[string]struct{}{itemID: {}}
	addEndpoints(c.graph, c.graph.AffectedRelationships(itemID), stale)
	uc.State = StateAffectedSetComputed
	uc.RollbackItems = keys(stale)
	return stale
}

func (c *Coordinator) propagate(ctx context.Context, uc *UpdateContext, stale map[string]struct{}, items item.Map, vars variable.Map) (map[string]variable.Summary, error) {
	start := time.Now()
	for id := range stale {
		c.calc.Invalidate(id)
	}
	uc.State = StateCacheInvalidated

	result := make(map[string]variable.Summary, len(stale))
	for id := range stale {
		if err := ctx.Err(); err != nil {
			uc.State = StateRolledBack
			return result, err
		}
		result[id] = c.calc.Calculate(id, items, vars)
	}
	uc.State = StateRecomputed
	metrics.UpdateDuration.Observe(float64(time.Since(start).Milliseconds()))

	uc.State = StateCommitted
	slog.Debug("update committed", "operation_id", uc.OperationID, "change_type", uc.ChangeType, "items", len(result))
	return result, nil
}

func newUpdateContext(changeType string) *UpdateContext {
	return &UpdateContext{
		OperationID: uuid.New().String(),
		ChangeType:  changeType,
		State:       StatePending,
		StartedAt:   time.Now(),
	}
}

func addEndpoints(g *relgraph.Graph, relIDs map[string]struct{}, stale map[string]struct{}) {
	for relID := range relIDs {
		if rel, ok := g.Relationship(relID); ok {
			stale[rel.ParentID] = struct{}{}
			stale[rel.ChildID] = struct{}{}
		}
	}
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
