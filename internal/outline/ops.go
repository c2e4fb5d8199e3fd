package outline

import "slices"

// mutate runs fn under the write lock and notifies the observer when fn
// reports an accepted change.
func (d *Document) mutate(op Op, id NodeID, fn func() bool) bool {
	d.mu.Lock()
	ok := fn()
	d.mu.Unlock()
	if ok {
		d.notify(Change{Op: op, ID: id})
	}
	return ok
}

// item returns a non-root attached node.
func (d *Document) item(id NodeID) (*Node, bool) {
	if id == RootID {
		return nil, false
	}
	n, ok := d.nodes[id]
	return n, ok
}

// detach removes n from its parent's child list. An emptied non-root
// container is dropped and the parent unfolded.
func (d *Document) detach(n *Node) {
	p := d.nodes[n.Parent]
	i := p.indexOf(n.ID)
	if i < 0 {
		return
	}
	p.Children = slices.Delete(p.Children, i, i+1)
	if len(p.Children) == 0 && p.ID != RootID {
		p.Children = nil
		p.Folded = false
	}
}

// insert places n among parent's children at index i.
func (d *Document) insert(parent *Node, i int, n *Node) {
	n.Parent = parent.ID
	parent.Children = slices.Insert(parent.Children, i, n.ID)
}

func (d *Document) create(kind Kind) *Node {
	n := &Node{ID: d.newID(), Kind: kind}
	d.nodes[n.ID] = n
	return n
}

// AppendChild creates a node of the given kind as the last child of
// parent. Nodes of kind hr never receive children.
func (d *Document) AppendChild(parent NodeID, kind Kind) (NodeID, bool) {
	var id NodeID
	ok := d.mutate(OpCreate, parent, func() bool {
		p, ok := d.nodes[parent]
		if !ok || !p.Kind.AcceptsChildren() {
			return false
		}
		n := d.create(kind)
		d.insert(p, len(p.Children), n)
		id = n.ID
		return true
	})
	return id, ok
}

// CreateSibling creates a node immediately after the given one. The new
// node inherits an inheritable kind; Done is never inherited.
func (d *Document) CreateSibling(after NodeID) (NodeID, bool) {
	var id NodeID
	ok := d.mutate(OpCreate, after, func() bool {
		a, ok := d.item(after)
		if !ok {
			return false
		}
		kind := KindPlain
		if a.Kind.Inheritable() {
			kind = a.Kind
		}
		p := d.nodes[a.Parent]
		n := d.create(kind)
		d.insert(p, p.indexOf(after)+1, n)
		id = n.ID
		return true
	})
	return id, ok
}

// Delete removes the node and its whole subtree.
func (d *Document) Delete(id NodeID) bool {
	return d.mutate(OpDelete, id, func() bool {
		n, ok := d.item(id)
		if !ok {
			return false
		}
		d.detach(n)
		d.drop(n)
		return true
	})
}

func (d *Document) drop(n *Node) {
	for _, c := range n.Children {
		d.drop(d.nodes[c])
	}
	delete(d.nodes, n.ID)
}

// Indent makes the node the last child of its preceding sibling. It is a
// no-op for a first child or when the preceding sibling is an hr.
func (d *Document) Indent(id NodeID) bool {
	return d.mutate(OpIndent, id, func() bool {
		n, ok := d.item(id)
		if !ok {
			return false
		}
		p := d.nodes[n.Parent]
		i := p.indexOf(id)
		if i <= 0 {
			return false
		}
		prev := d.nodes[p.Children[i-1]]
		if !prev.Kind.AcceptsChildren() {
			return false
		}
		d.detach(n)
		d.insert(prev, len(prev.Children), n)
		return true
	})
}

// Outdent moves the node and all of its following siblings, in order, to
// sit immediately after their parent. It is a no-op at the top level.
func (d *Document) Outdent(id NodeID) bool {
	return d.mutate(OpOutdent, id, func() bool {
		n, ok := d.item(id)
		if !ok || n.Parent == RootID {
			return false
		}
		p := d.nodes[n.Parent]
		gp := d.nodes[p.Parent]
		i := p.indexOf(id)
		block := slices.Clone(p.Children[i:])
		p.Children = p.Children[:i]
		if len(p.Children) == 0 {
			p.Children = nil
			p.Folded = false
		}
		at := gp.indexOf(p.ID) + 1
		for j, c := range block {
			d.insert(gp, at+j, d.nodes[c])
		}
		return true
	})
}

// MoveUp swaps the node with its preceding sibling.
func (d *Document) MoveUp(id NodeID) bool {
	return d.swap(id, -1)
}

// MoveDown swaps the node with its following sibling.
func (d *Document) MoveDown(id NodeID) bool {
	return d.swap(id, +1)
}

func (d *Document) swap(id NodeID, delta int) bool {
	return d.mutate(OpMove, id, func() bool {
		n, ok := d.item(id)
		if !ok {
			return false
		}
		p := d.nodes[n.Parent]
		i := p.indexOf(id)
		j := i + delta
		if j < 0 || j >= len(p.Children) {
			return false
		}
		p.Children[i], p.Children[j] = p.Children[j], p.Children[i]
		return true
	})
}

// MoveTo relocates the node relative to target. Inside appends it as the
// last child, falling back to After when target is an hr. Moving a node
// onto itself or into its own subtree is refused.
func (d *Document) MoveTo(id, target NodeID, pos Position) bool {
	return d.mutate(OpMove, id, func() bool {
		n, ok := d.item(id)
		if !ok {
			return false
		}
		t, ok := d.nodes[target]
		if !ok || target == id || d.isDescendant(target, id) {
			return false
		}
		if pos == Inside && !t.Kind.AcceptsChildren() {
			pos = After
		}
		if pos != Inside && target == RootID {
			return false
		}
		d.detach(n)
		switch pos {
		case Inside:
			d.insert(t, len(t.Children), n)
		case Before:
			p := d.nodes[t.Parent]
			d.insert(p, p.indexOf(target), n)
		default:
			p := d.nodes[t.Parent]
			d.insert(p, p.indexOf(target)+1, n)
		}
		return true
	})
}

// ChangeKind retypes the node, tearing down the old kind's state first.
// Retyping to the current kind is a no-op, as is turning a node that has
// children into an hr.
func (d *Document) ChangeKind(id NodeID, kind Kind) bool {
	return d.mutate(OpKind, id, func() bool {
		n, ok := d.item(id)
		if !ok || n.Kind == kind {
			return false
		}
		if !kind.AcceptsChildren() && len(n.Children) > 0 {
			return false
		}
		if n.Kind == KindTask {
			n.Done = false
		}
		if !kind.HasBody() {
			n.Body = ""
			n.Folded = false
			n.Children = nil
		}
		n.Kind = kind
		return true
	})
}

// SetDone sets the completion flag of a task.
func (d *Document) SetDone(id NodeID, done bool) bool {
	return d.mutate(OpDone, id, func() bool {
		n, ok := d.item(id)
		if !ok || n.Kind != KindTask || n.Done == done {
			return false
		}
		n.Done = done
		return true
	})
}

// SetFolded folds or unfolds the node. Folding a leaf is refused.
func (d *Document) SetFolded(id NodeID, folded bool) bool {
	return d.mutate(OpFold, id, func() bool {
		n, ok := d.item(id)
		if !ok || n.Folded == folded {
			return false
		}
		if folded && len(n.Children) == 0 {
			return false
		}
		n.Folded = folded
		return true
	})
}

// SetBody replaces the node's inline content. hr nodes carry no body.
func (d *Document) SetBody(id NodeID, body string) bool {
	return d.mutate(OpBody, id, func() bool {
		n, ok := d.item(id)
		if !ok || !n.Kind.HasBody() || n.Body == body {
			return false
		}
		n.Body = body
		return true
	})
}
