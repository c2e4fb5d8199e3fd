// Package outline implements the outline tree: an arena of typed nodes
// addressed by NodeID, with parent back-references held as IDs.
//
// All operations are synchronous and total. Structural edits on nodes that
// are not attached to the document (deleted, or from a previous document)
// are silent no-ops reported through a false return.
package outline

import (
	"sync"
)

// Document owns every node of one outline.
//
// A Document is safe for concurrent use; edits are serialized by an
// internal lock so a saver can Snapshot while an editor mutates.
type Document struct {
	mu       sync.RWMutex
	title    string
	nodes    map[NodeID]*Node
	onChange func(Change)
}

// NewDocument returns a document holding only the root container.
func NewDocument(title string) *Document {
	d := &Document{
		title: title,
		nodes: make(map[NodeID]*Node),
	}
	d.nodes[RootID] = &Node{ID: RootID, Kind: KindPlain, Children: []NodeID{}}
	return d
}

// OnChange registers fn to be called after every accepted mutation.
// Passing nil removes the observer. fn runs outside the document lock.
func (d *Document) OnChange(fn func(Change)) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

func (d *Document) notify(c Change) {
	d.mu.RLock()
	fn := d.onChange
	d.mu.RUnlock()
	if fn != nil {
		fn(c)
	}
}

// Title returns the document title.
func (d *Document) Title() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.title
}

// SetTitle renames the document. It reports false when the title is
// unchanged.
func (d *Document) SetTitle(title string) bool {
	return d.mutate(OpTitle, RootID, func() bool {
		if d.title == title {
			return false
		}
		d.title = title
		return true
	})
}

// Root returns the root container's ID.
func (d *Document) Root() NodeID { return RootID }

// Len returns the number of nodes, excluding the root.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.nodes) - 1
}

// Empty reports whether the root has no children.
func (d *Document) Empty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.nodes[RootID].Children) == 0
}

// Node returns a copy of the node with the given ID.
func (d *Document) Node(id NodeID) (Node, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Attached reports whether id names a live node of this document.
func (d *Document) Attached(id NodeID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.nodes[id]
	return ok
}

// Parent returns the parent of id. The root has no parent.
func (d *Document) Parent(id NodeID) (NodeID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.nodes[id]
	if !ok || id == RootID {
		return "", false
	}
	return n.Parent, true
}

// Children returns a copy of id's child list.
func (d *Document) Children(id NodeID) []NodeID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.nodes[id]
	if !ok {
		return nil
	}
	return n.clone().Children
}

// HasChildren reports whether id currently owns at least one child.
func (d *Document) HasChildren(id NodeID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.nodes[id]
	return ok && len(n.Children) > 0
}

// HasContainer reports whether id carries a children container at all.
func (d *Document) HasContainer(id NodeID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.nodes[id]
	return ok && n.Children != nil
}

// IsDescendant reports whether id lies strictly beneath ancestor.
func (d *Document) IsDescendant(id, ancestor NodeID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isDescendant(id, ancestor)
}

func (d *Document) isDescendant(id, ancestor NodeID) bool {
	n, ok := d.nodes[id]
	for ok && n.ID != RootID {
		if n.Parent == ancestor {
			return true
		}
		n, ok = d.nodes[n.Parent]
	}
	return false
}

// Depth returns the nesting level of id; top-level items are at depth 1.
func (d *Document) Depth(id NodeID) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	depth := 0
	n, ok := d.nodes[id]
	for ok && n.ID != RootID {
		depth++
		n, ok = d.nodes[n.Parent]
	}
	return depth
}

// Snapshot captures the whole tree as an immutable Item rooted at RootID.
func (d *Document) Snapshot() Item {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshot(RootID)
}

func (d *Document) snapshot(id NodeID) Item {
	n := d.nodes[id]
	it := Item{
		ID:     n.ID,
		Kind:   n.Kind,
		Done:   n.Done,
		Folded: n.Folded,
		Body:   n.Body,
	}
	if len(n.Children) > 0 {
		it.Children = make([]Item, len(n.Children))
		for i, c := range n.Children {
			it.Children[i] = d.snapshot(c)
		}
	}
	return it
}

// FromItem builds a document from a snapshot. The snapshot's own ID is
// ignored: its children become the children of the new root.
//
// Import normalization: missing, duplicate or reserved IDs are replaced,
// Done is dropped on non-tasks, Folded is dropped on leaves, and children
// found beneath an hr are hoisted to follow it as siblings.
func FromItem(title string, root Item) *Document {
	d := NewDocument(title)
	d.importChildren(d.nodes[RootID], root.Children)
	return d
}

func (d *Document) importChildren(parent *Node, items []Item) {
	for _, it := range items {
		n := &Node{
			ID:     it.ID,
			Kind:   it.Kind,
			Done:   it.Done && it.Kind == KindTask,
			Body:   it.Body,
			Parent: parent.ID,
		}
		if _, taken := d.nodes[n.ID]; n.ID == "" || n.ID == RootID || taken {
			n.ID = d.newID()
		}
		if !n.Kind.HasBody() {
			n.Body = ""
		}
		d.nodes[n.ID] = n
		parent.Children = append(parent.Children, n.ID)

		if len(it.Children) == 0 {
			continue
		}
		if !n.Kind.AcceptsChildren() {
			d.importChildren(parent, it.Children)
			continue
		}
		d.importChildren(n, it.Children)
		n.Folded = it.Folded
	}
}

// newID returns an ID not present in the arena. Caller holds the lock.
func (d *Document) newID() NodeID {
	for {
		id := NewID()
		if _, taken := d.nodes[id]; !taken {
			return id
		}
	}
}
