package vdom

// NotifyKind says how the browser applies a Notification.
type NotifyKind uint8

const (
	NotifyUpdate        NotifyKind = iota // Replace the element with matching id
	NotifyReplaceWindow                   // Replace the whole document body
)

// String returns the string representation of the NotifyKind.
func (k NotifyKind) String() string {
	switch k {
	case NotifyUpdate:
		return "Update"
	case NotifyReplaceWindow:
		return "ReplaceWindow"
	default:
		return "Unknown"
	}
}

// Notification tells the browser to replace the element ID with Markup.
type Notification struct {
	Kind   NotifyKind
	ID     ID
	Markup string
}

// Differ tracks what each browser has last been sent and computes the
// notifications needed to bring it up to date.
//
// A Differ is not safe for concurrent use.
type Differ struct {
	root  *Node
	cache map[ID]string
}

// NewDiffer creates a Differ with an empty render cache.
func NewDiffer() *Differ {
	return &Differ{cache: make(map[ID]string)}
}

// Diff walks the tree under root and returns the notifications to send, in
// the order they must be applied.
//
// If root is not the root seen on the previous call, the cache is cleared
// and a single NotifyReplaceWindow is returned. Otherwise each node whose
// shallow render changed is resent with its full render, and each newly
// attached subtree causes its nearest known ancestor to be resent. A resent
// node covers any notifications from inside its subtree.
func (d *Differ) Diff(root *Node) []Notification {
	if root == nil {
		return nil
	}
	if root != d.root {
		d.root = root
		clear(d.cache)
		return []Notification{{
			Kind:   NotifyReplaceWindow,
			ID:     root.id,
			Markup: root.RenderFull(),
		}}
	}
	notes, _ := d.walk(root)
	return notes
}

// walk visits children before n. It reports fresh=true when n had no cache
// entry, leaving the notification to the nearest cached ancestor.
func (d *Differ) walk(n *Node) (notes []Notification, fresh bool) {
	freshChild := false
	for _, k := range n.keys {
		c, ok := n.kids[k].(*Node)
		if !ok {
			continue
		}
		childNotes, childFresh := d.walk(c)
		notes = append(notes, childNotes...)
		freshChild = freshChild || childFresh
	}

	shallow := n.RenderShallow()
	prev, cached := d.cache[n.id]
	d.cache[n.id] = shallow
	if !cached {
		return nil, true
	}
	if freshChild || prev != shallow {
		return []Notification{{
			Kind:   NotifyUpdate,
			ID:     n.id,
			Markup: n.RenderFull(),
		}}, false
	}
	return notes, false
}

// Reset forgets the current root so the next Diff resends the whole window.
func (d *Differ) Reset() {
	d.root = nil
	clear(d.cache)
}

// Root returns the root seen on the last Diff.
func (d *Differ) Root() *Node {
	return d.root
}

// Cached returns the last shallow render recorded for id.
func (d *Differ) Cached(id ID) (string, bool) {
	s, ok := d.cache[id]
	return s, ok
}

// Len returns the number of cache entries.
func (d *Differ) Len() int {
	return len(d.cache)
}

// Forget drops cache entries for nodes no longer reachable from the current
// root. It returns the number of entries removed.
func (d *Differ) Forget() int {
	if d.root == nil {
		n := len(d.cache)
		clear(d.cache)
		return n
	}
	live := make(map[ID]struct{}, len(d.cache))
	Walk(d.root, func(n *Node) bool {
		live[n.id] = struct{}{}
		return true
	})
	removed := 0
	for id := range d.cache {
		if _, ok := live[id]; !ok {
			delete(d.cache, id)
			removed++
		}
	}
	return removed
}
