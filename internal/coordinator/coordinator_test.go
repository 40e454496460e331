package coordinator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planweave/tally/internal/item"
	"github.com/planweave/tally/internal/relgraph"
	"github.com/planweave/tally/internal/summary"
	"github.com/planweave/tally/internal/variable"
)

type fixture struct {
	graph *relgraph.Graph
	calc  *summary.Calculator
	coord *Coordinator
	items item.Map
	vars  variable.Map
}

// newFixture builds a -> b -> c with multipliers 2 and 3 and one unit
// of "flour" declared on c.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	g := relgraph.New(relgraph.Config{})
	calc := summary.NewCalculator(g, summary.Config{})
	f := &fixture{
		graph: g,
		calc:  calc,
		coord: New(g, calc, Config{}),
		items: item.Map{
			"a": &item.Item{ID: "a"},
			"b": &item.Item{ID: "b"},
			"c": &item.Item{ID: "c"},
		},
		vars: variable.Map{
			"c": {{Name: "flour", Quantity: 1, Unit: "cups"}},
		},
	}
	_, err := g.CreateRelationship("rel-ab", "a", "b", 2)
	require.NoError(t, err)
	_, err = g.CreateRelationship("rel-bc", "b", "c", 3)
	require.NoError(t, err)
	return f
}

func TestUpdateVariables_RecomputesAffectedItems(t *testing.T) {
	f := newFixture(t)
	// Warm the cache.
	assert.Equal(t, 6.0, f.calc.Calculate("a", f.items, f.vars).Quantity("flour"))

	f.vars["c"] = []variable.Variable{{Name: "flour", Quantity: 2}}
	updated, err := f.coord.UpdateVariables(context.Background(), "c", f.items, f.vars, "quantity")
	require.NoError(t, err)

	// Every endpoint of every affected relationship is recomputed.
	require.Contains(t, updated, "a")
	require.Contains(t, updated, "b")
	require.Contains(t, updated, "c")
	assert.Equal(t, 12.0, updated["a"].Quantity("flour"))
	assert.Equal(t, 6.0, updated["b"].Quantity("flour"))
	assert.Equal(t, 2.0, updated["c"].Quantity("flour"))

	// Subsequent reads see the recomputed values, not stale cache.
	assert.Equal(t, 12.0, f.calc.Calculate("a", f.items, f.vars).Quantity("flour"))
}

func TestUpdateMultiplier_PropagatesToAncestors(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 6.0, f.calc.Calculate("a", f.items, f.vars).Quantity("flour"))

	updated, err := f.coord.UpdateMultiplier(context.Background(), "rel-bc", 5, f.items, f.vars)
	require.NoError(t, err)

	assert.Equal(t, 10.0, updated["a"].Quantity("flour")) // 1*5*2
	assert.Equal(t, 5.0, updated["b"].Quantity("flour"))
	assert.Equal(t, 10.0, f.calc.Calculate("a", f.items, f.vars).Quantity("flour"))
}

func TestUpdateMultiplier_UnknownRelationship(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.UpdateMultiplier(context.Background(), "missing", 5, f.items, f.vars)
	assert.ErrorIs(t, err, relgraph.ErrRelationshipNotFound)
}

func TestBatchUpdate_UnionsAffectedSets(t *testing.T) {
	f := newFixture(t)
	updated, err := f.coord.BatchUpdate(context.Background(), []string{"b", "c"}, f.items, f.vars)
	require.NoError(t, err)

	// b and c share ancestors; each appears exactly once in the map.
	assert.Len(t, updated, 3)
	assert.Equal(t, 6.0, updated["a"].Quantity("flour"))
}

func TestBatchUpdate_ChunksLargeSets(t *testing.T) {
	g := relgraph.New(relgraph.Config{})
	calc := summary.NewCalculator(g, summary.Config{})
	coord := New(g, calc, Config{BatchSize: 10})

	items := make(item.Map)
	vars := make(variable.Map)
	ids := make([]string, 0, 35)
	for i := 0; i < 35; i++ {
		id := fmt.Sprintf("item-%02d", i)
		items[id] = &item.Item{ID: id}
		vars[id] = []variable.Variable{{Name: "x", Quantity: float64(i)}}
		ids = append(ids, id)
	}

	updated, err := coord.BatchUpdate(context.Background(), ids, items, vars)
	require.NoError(t, err)
	assert.Len(t, updated, 35)
	assert.Equal(t, 34.0, updated["item-34"].Quantity("x"))
}

func TestBatchUpdate_HonorsCancellation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.coord.BatchUpdate(ctx, []string{"c"}, f.items, f.vars)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidateUpdate_WithinTolerance(t *testing.T) {
	f := newFixture(t)
	expected := variable.Summary{
		"flour": {Name: "flour", Quantity: 6.0004},
	}
	res := f.coord.ValidateUpdate("a", expected, f.items, f.vars)
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Discrepancies)
	assert.Equal(t, 6.0, res.ActualSummary.Quantity("flour"))
}

func TestValidateUpdate_ReportsDiscrepancies(t *testing.T) {
	f := newFixture(t)
	expected := variable.Summary{
		"flour": {Name: "flour", Quantity: 8},
		"sugar": {Name: "sugar", Quantity: 1},
	}
	res := f.coord.ValidateUpdate("a", expected, f.items, f.vars)
	assert.False(t, res.IsValid)
	require.Len(t, res.Discrepancies, 2)

	byName := map[string]Discrepancy{}
	for _, d := range res.Discrepancies {
		byName[d.Variable] = d
	}
	assert.InDelta(t, 2.0, byName["flour"].Difference, 1e-9)
	assert.Equal(t, 8.0, byName["flour"].Expected)
	assert.Equal(t, 6.0, byName["flour"].Actual)
	assert.Equal(t, 1.0, byName["sugar"].Expected)
	assert.Equal(t, 0.0, byName["sugar"].Actual)
}

func TestValidateUpdate_BypassesStaleCache(t *testing.T) {
	f := newFixture(t)
	f.calc.Calculate("a", f.items, f.vars) // warm cache
	f.vars["c"] = []variable.Variable{{Name: "flour", Quantity: 10}}

	res := f.coord.ValidateUpdate("a", variable.Summary{}, f.items, f.vars)
	assert.Equal(t, 60.0, res.ActualSummary.Quantity("flour"))
}

func TestRollback_InvalidatesSnapshotItems(t *testing.T) {
	f := newFixture(t)
	f.calc.Calculate("a", f.items, f.vars)

	uc := &UpdateContext{OperationID: "op", RollbackItems: []string{"a", "b", "c"}}
	assert.True(t, f.coord.Rollback(uc, f.items, f.vars))
	assert.Equal(t, StateRolledBack, uc.State)

	// The stale cache is gone: a subsequent read recomputes.
	f.vars["c"] = []variable.Variable{{Name: "flour", Quantity: 4}}
	assert.Equal(t, 24.0, f.calc.Calculate("a", f.items, f.vars).Quantity("flour"))

	assert.False(t, f.coord.Rollback(nil, f.items, f.vars))
	assert.False(t, f.coord.Rollback(&UpdateContext{}, f.items, f.vars))
}
