package vdom

// Child is a value that can be attached under a Node: either *Node or Text.
type Child interface {
	isChild()
}

// Text is a literal text child. It is HTML-escaped when rendered.
type Text string

func (Text) isChild()  {}
func (*Node) isChild() {}

// Attach inserts c under key. Re-inserting an existing key replaces the
// previous value and moves the key to the end of render order.
//
// Attaching a node that already has a parent moves it. Attaching n itself or
// one of n's ancestors fails with a *CycleError and leaves the tree unchanged.
func (n *Node) Attach(key string, c Child) error {
	if c == nil {
		return ErrNilChild
	}
	child, isNode := c.(*Node)
	if isNode {
		if child == nil {
			return ErrNilChild
		}
		for p := n; p != nil; p = p.parent {
			if p == child {
				return &CycleError{Parent: n.id, Child: child.id}
			}
		}
		if child.parent != nil {
			child.parent.removeNode(child)
		}
	}

	if old, ok := n.kids[key]; ok {
		if oldNode, ok := old.(*Node); ok {
			oldNode.parent = nil
		}
		n.removeKey(key)
	}

	if n.kids == nil {
		n.kids = make(map[string]Child)
	}
	n.keys = append(n.keys, key)
	n.kids[key] = c
	if isNode {
		child.parent = n
	}
	return nil
}

// Append attaches child keyed by its ID.
func (n *Node) Append(child *Node) error {
	if child == nil {
		return ErrNilChild
	}
	return n.Attach(child.id.String(), child)
}

// Detach removes the child under key and returns it.
func (n *Node) Detach(key string) (Child, bool) {
	c, ok := n.kids[key]
	if !ok {
		return nil, false
	}
	n.removeKey(key)
	if node, ok := c.(*Node); ok {
		node.parent = nil
	}
	return c, true
}

// Empty detaches every child.
func (n *Node) Empty() {
	for _, k := range n.Keys() {
		n.Detach(k)
	}
}

// Child returns the child stored under key.
func (n *Node) Child(key string) (Child, bool) {
	c, ok := n.kids[key]
	return c, ok
}

// Keys returns child keys in render order.
func (n *Node) Keys() []string {
	out := make([]string, len(n.keys))
	copy(out, n.keys)
	return out
}

// Children returns the node children in render order, skipping text.
func (n *Node) Children() []*Node {
	out := make([]*Node, 0, len(n.keys))
	for _, k := range n.keys {
		if c, ok := n.kids[k].(*Node); ok {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of children, text included.
func (n *Node) Len() int {
	return len(n.keys)
}

// IsAncestorOf reports whether n is a strict ancestor of other.
func (n *Node) IsAncestorOf(other *Node) bool {
	if other == nil {
		return false
	}
	for p := other.parent; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

func (n *Node) removeKey(key string) {
	delete(n.kids, key)
	for i, k := range n.keys {
		if k == key {
			n.keys = append(n.keys[:i], n.keys[i+1:]...)
			return
		}
	}
}

func (n *Node) removeNode(child *Node) {
	for _, k := range n.keys {
		if n.kids[k] == Child(child) {
			n.removeKey(k)
			child.parent = nil
			return
		}
	}
}
