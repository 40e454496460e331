package relgraph

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// WildcardScope subscribes a callback to mutations on every item.
const WildcardScope = "*"

// Notification describes a single graph mutation. InvalidatedKeys
// holds the relationship IDs touched by the operation.
type Notification struct {
	OperationID      string    `json:"operation_id"`
	InitiatingItemID string    `json:"initiating_item_id"`
	Timestamp        time.Time `json:"timestamp"`
	InvalidatedKeys  []string  `json:"invalidated_keys"`
}

// NotifyFunc receives mutation notifications. Callbacks run
// synchronously on the mutating call and must not block.
type NotifyFunc func(Notification)

// Subscribe registers fn for mutations scoped to an item ID, or to
// every mutation when scope is WildcardScope. The returned function
// removes the subscription in O(1).
func (g *Graph) Subscribe(scope string, fn NotifyFunc) (unsubscribe func()) {
	g.nextToken++
	token := g.nextToken
	if g.subs[scope] == nil {
		g.subs[scope] = make(map[uint64]NotifyFunc)
	}
	g.subs[scope][token] = fn
	return func() {
		delete(g.subs[scope], token)
		if len(g.subs[scope]) == 0 {
			delete(g.subs, scope)
		}
	}
}

// notify delivers a Notification to subscribers of itemID and of the
// wildcard scope. A panicking callback is logged and isolated; it
// never aborts the mutation that triggered it.
func (g *Graph) notify(itemID string, invalidated []string) {
	if len(g.subs) == 0 {
		return
	}
	n := Notification{
		OperationID:      uuid.New().String(),
		InitiatingItemID: itemID,
		Timestamp:        time.Now(),
		InvalidatedKeys:  invalidated,
	}
	for _, fn := range g.subs[itemID] {
		deliver(fn, n)
	}
	for _, fn := range g.subs[WildcardScope] {
		deliver(fn, n)
	}
}

func deliver(fn NotifyFunc, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("relationship subscriber panicked", "operation_id", n.OperationID, "item", n.InitiatingItemID, "panic", r)
		}
	}()
	fn(n)
}
