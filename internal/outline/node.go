package outline

import (
	"slices"

	"github.com/oklog/ulid/v2"
)

// NodeID identifies a node within one document. IDs are never reused.
type NodeID string

// RootID is the fixed identifier of every document's root container.
const RootID NodeID = "root"

// NewID returns a fresh ULID-based identifier.
func NewID() NodeID {
	return NodeID(ulid.Make().String())
}

// Node is one entry in the outline.
//
// Children is nil when the node has no children container; a container is
// never kept once it is empty. Parent is a navigation back-reference only.
type Node struct {
	ID       NodeID
	Kind     Kind
	Done     bool
	Folded   bool
	Body     string
	Parent   NodeID
	Children []NodeID
}

func (n *Node) clone() Node {
	c := *n
	c.Children = slices.Clone(n.Children)
	return c
}

func (n *Node) indexOf(id NodeID) int {
	return slices.Index(n.Children, id)
}

// Item is an immutable value snapshot of a subtree.
type Item struct {
	ID       NodeID
	Kind     Kind
	Done     bool
	Folded   bool
	Body     string
	Children []Item
}

// Count returns the number of items in the subtree, excluding the receiver.
func (it Item) Count() int {
	n := 0
	for _, c := range it.Children {
		n += 1 + c.Count()
	}
	return n
}

// Position selects where MoveTo places a node relative to its target.
type Position uint8

const (
	Before Position = iota
	After
	Inside
)

func (p Position) String() string {
	switch p {
	case Before:
		return "before"
	case After:
		return "after"
	case Inside:
		return "inside"
	}
	return "unknown"
}

// ParsePosition maps "before", "after" or "inside" to a Position.
func ParsePosition(s string) (Position, bool) {
	switch s {
	case "before":
		return Before, true
	case "after":
		return After, true
	case "inside":
		return Inside, true
	}
	return Before, false
}

// Op names an accepted mutation.
type Op string

const (
	OpCreate  Op = "create"
	OpDelete  Op = "delete"
	OpIndent  Op = "indent"
	OpOutdent Op = "outdent"
	OpMove    Op = "move"
	OpKind    Op = "kind"
	OpDone    Op = "done"
	OpFold    Op = "fold"
	OpBody    Op = "body"
	OpTitle   Op = "title"
)

// Change describes one accepted mutation.
type Change struct {
	Op Op
	ID NodeID
}
