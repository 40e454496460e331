package relgraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planweave/tally/internal/relgraph"
)

func TestSubscribe_ScopedDelivery(t *testing.T) {
	g := newGraph(t)
	var scoped, wildcard []relgraph.Notification
	g.Subscribe("a", func(n relgraph.Notification) { scoped = append(scoped, n) })
	g.Subscribe(relgraph.WildcardScope, func(n relgraph.Notification) { wildcard = append(wildcard, n) })

	_, err := g.CreateRelationship("r1", "a", "b", 1)
	require.NoError(t, err)
	_, err = g.CreateRelationship("r2", "x", "y", 1)
	require.NoError(t, err)

	require.Len(t, scoped, 1)
	assert.Equal(t, "a", scoped[0].InitiatingItemID)
	assert.Equal(t, []string{"r1"}, scoped[0].InvalidatedKeys)
	assert.NotEmpty(t, scoped[0].OperationID)
	assert.False(t, scoped[0].Timestamp.IsZero())

	assert.Len(t, wildcard, 2)
}

func TestSubscribe_NotifiesOnRemoveAndUpdate(t *testing.T) {
	g := newGraph(t)
	_, err := g.CreateRelationship("r1", "a", "b", 1)
	require.NoError(t, err)

	var got []relgraph.Notification
	g.Subscribe("a", func(n relgraph.Notification) { got = append(got, n) })

	g.UpdateMultiplier("r1", 4)
	g.RemoveRelationship("r1")
	assert.Len(t, got, 2)
}

func TestUnsubscribe(t *testing.T) {
	g := newGraph(t)
	calls := 0
	unsub := g.Subscribe(relgraph.WildcardScope, func(relgraph.Notification) { calls++ })

	_, err := g.CreateRelationship("r1", "a", "b", 1)
	require.NoError(t, err)
	unsub()
	_, err = g.CreateRelationship("r2", "a", "c", 1)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

func TestSubscribe_PanickingCallbackDoesNotAbortMutation(t *testing.T) {
	g := newGraph(t)
	g.Subscribe(relgraph.WildcardScope, func(relgraph.Notification) { panic("listener bug") })
	later := 0
	g.Subscribe(relgraph.WildcardScope, func(relgraph.Notification) { later++ })

	rel, err := g.CreateRelationship("r1", "a", "b", 1)
	require.NoError(t, err)
	assert.NotNil(t, rel)
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, 1, later)
}
