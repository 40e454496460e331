package item

// ParentRef is an item's own declaration that it belongs to a parent.
// The relationship graph is reconstructed from these references at
// startup; it is never persisted directly.
type ParentRef struct {
	ID             string `json:"id" yaml:"id"`
	RelationshipID string `json:"relationship_id,omitempty" yaml:"relationship_id,omitempty"`
}

// Item is an opaque entity identified by a stable ID. The engine
// never creates or mutates items; it only follows their declared
// parent and child references.
type Item struct {
	ID       string      `json:"id" yaml:"id"`
	Parents  []ParentRef `json:"parents,omitempty" yaml:"parents,omitempty"`
	Children []string    `json:"children,omitempty" yaml:"children,omitempty"`
}

// HasChildren reports whether the item declares any direct children.
func (it *Item) HasChildren() bool {
	return it != nil && len(it.Children) > 0
}

// Map resolves item IDs to items during traversal.
type Map map[string]*Item
