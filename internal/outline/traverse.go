package outline

// PreviousVisible returns the node shown immediately before id when the
// outline is read top to bottom, skipping the descendants of folded nodes.
// It returns false at the top of the document.
func (d *Document) PreviousVisible(id NodeID) (NodeID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.item(id)
	if !ok {
		return "", false
	}
	p := d.nodes[n.Parent]
	i := p.indexOf(id)
	if i == 0 {
		if p.ID == RootID {
			return "", false
		}
		return p.ID, true
	}
	prev := d.nodes[p.Children[i-1]]
	for len(prev.Children) > 0 && !prev.Folded {
		prev = d.nodes[prev.Children[len(prev.Children)-1]]
	}
	return prev.ID, true
}

// NextVisible returns the node shown immediately after id, skipping the
// descendants of folded nodes. It returns false at the end of the document.
func (d *Document) NextVisible(id NodeID) (NodeID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.item(id)
	if !ok {
		return "", false
	}
	if len(n.Children) > 0 && !n.Folded {
		return n.Children[0], true
	}
	for n.ID != RootID {
		p := d.nodes[n.Parent]
		if i := p.indexOf(n.ID); i+1 < len(p.Children) {
			return p.Children[i+1], true
		}
		n = p
	}
	return "", false
}

// Visible lists every node reachable by visible navigation, in order.
func (d *Document) Visible() []NodeID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []NodeID
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, c := range n.Children {
			cn := d.nodes[c]
			out = append(out, c)
			if !cn.Folded {
				walk(cn)
			}
		}
	}
	walk(d.nodes[RootID])
	return out
}

// Walk visits every node except the root in document order, including
// folded descendants. depth is 1 for top-level items. Returning false
// from fn stops the walk. fn must not call back into the document.
func (d *Document) Walk(fn func(n Node, depth int) bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var walk func(n *Node, depth int) bool
	walk = func(n *Node, depth int) bool {
		for _, c := range n.Children {
			cn := d.nodes[c]
			if !fn(cn.clone(), depth) || !walk(cn, depth+1) {
				return false
			}
		}
		return true
	}
	walk(d.nodes[RootID], 1)
}
