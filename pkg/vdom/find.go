package vdom

import "github.com/eapache/queue"

// DefaultFindBudget bounds how many nodes Find visits before giving up.
const DefaultFindBudget = 100_000

// Find searches the tree under root breadth-first for the node with id.
// It visits at most budget nodes (DefaultFindBudget if budget <= 0) and
// returns ErrNodeNotFound when the node is absent or the budget runs out.
func Find(root *Node, id ID, budget int) (*Node, error) {
	if root == nil {
		return nil, ErrNodeNotFound
	}
	if budget <= 0 {
		budget = DefaultFindBudget
	}

	frontier := queue.New()
	frontier.Add(root)
	for visited := 0; frontier.Length() > 0; visited++ {
		if visited >= budget {
			return nil, ErrNodeNotFound
		}
		n := frontier.Remove().(*Node)
		if n.id == id {
			return n, nil
		}
		for _, k := range n.keys {
			if c, ok := n.kids[k].(*Node); ok {
				frontier.Add(c)
			}
		}
	}
	return nil, ErrNodeNotFound
}

// Walk visits every node under root depth-first, parents before children.
// Returning false from fn skips that node's subtree.
func Walk(root *Node, fn func(*Node) bool) {
	if root == nil || !fn(root) {
		return
	}
	for _, k := range root.keys {
		if c, ok := root.kids[k].(*Node); ok {
			Walk(c, fn)
		}
	}
}
