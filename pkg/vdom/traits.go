package vdom

// EventSource is the callback side of a widget: a capability table plus the
// attribute bindings that reach it from the browser.
type EventSource interface {
	Handle(name string, fn Handler)
	Handler(name string) (Handler, bool)
	BindEvent(attr, handler string)
	BindEventParams(attr, handler string, params ...Attr)
}

var _ EventSource = (*Node)(nil)

// Positioned is implemented by widgets that expose geometry.
type Positioned interface {
	SetSize(width, height string)
	SetPosition(left, top string)
}

// Layout implements Positioned over a node's style. Concrete widgets embed
// it next to their *Node:
//
//	type Panel struct {
//	    *vdom.Node
//	    vdom.Layout
//	}
//
//	func NewPanel() *Panel {
//	    n := vdom.New("div")
//	    return &Panel{Node: n, Layout: vdom.Layout{Target: n}}
//	}
type Layout struct {
	Target *Node
}

var _ Positioned = Layout{}

// SetSize sets width and height. Empty values are removed.
func (l Layout) SetSize(width, height string) {
	setOrRemoveStyle(l.Target, "width", width)
	setOrRemoveStyle(l.Target, "height", height)
}

// SetPosition places the node absolutely at left/top. Empty values are removed.
func (l Layout) SetPosition(left, top string) {
	if left == "" && top == "" {
		l.Target.RemoveStyle("position")
	} else {
		l.Target.SetStyle("position", "absolute")
	}
	setOrRemoveStyle(l.Target, "left", left)
	setOrRemoveStyle(l.Target, "top", top)
}

func setOrRemoveStyle(n *Node, key, value string) {
	if value == "" {
		n.RemoveStyle(key)
		return
	}
	n.SetStyle(key, value)
}
