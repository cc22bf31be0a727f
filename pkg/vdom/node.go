package vdom

import (
	"fmt"
	"strings"
)

// Args are the decoded arguments passed to a handler.
type Args map[string]any

// Handler is a callback registered in a node's capability table.
type Handler func(args Args) error

// BinaryHandler serves the synchronous HTTP path. It returns the response
// body and headers.
type BinaryHandler func(args Args) (body []byte, headers map[string]string, err error)

// Node is the unit of the widget tree.
//
// A Node is not safe for concurrent use; the owning session serializes all
// access behind its lock.
type Node struct {
	id    ID
	tag   string
	attrs Attributes
	style Attributes

	keys []string
	kids map[string]Child

	// parent is a lookup-only back reference maintained by Attach and Detach.
	parent *Node

	handlers map[string]Handler
	binary   map[string]BinaryHandler
}

// New creates a node with a fresh ID.
func New(tag string, attrs ...Attr) *Node {
	n := &Node{
		id:   NextID(),
		tag:  tag,
		kids: make(map[string]Child),
	}
	for _, a := range attrs {
		if a.IsEmpty() {
			continue
		}
		n.SetAttr(a.Key, a.Value)
	}
	return n
}

// ID returns the node's handle.
func (n *Node) ID() ID {
	return n.id
}

// Tag returns the element name.
func (n *Node) Tag() string {
	return n.tag
}

// Parent returns the node this one is attached under, or nil.
func (n *Node) Parent() *Node {
	return n.parent
}

// SetAttr sets an attribute. "id" is reserved for the node handle and is
// ignored; "style" is parsed into the style map.
func (n *Node) SetAttr(key, value string) {
	switch key {
	case "id":
		return
	case "style":
		n.style = Attributes{}
		for _, decl := range strings.Split(value, ";") {
			k, v, ok := strings.Cut(decl, ":")
			if !ok {
				continue
			}
			if k = strings.TrimSpace(k); k != "" {
				n.style.Set(k, strings.TrimSpace(v))
			}
		}
		return
	}
	n.attrs.Set(key, value)
}

// Attr returns an attribute value.
func (n *Node) Attr(key string) (string, bool) {
	if key == "style" {
		if n.style.Len() == 0 {
			return "", false
		}
		return joinStyle(&n.style), true
	}
	return n.attrs.Get(key)
}

// RemoveAttr deletes an attribute.
func (n *Node) RemoveAttr(key string) {
	if key == "style" {
		n.style = Attributes{}
		return
	}
	n.attrs.Delete(key)
}

// SetStyle sets one style property.
func (n *Node) SetStyle(key, value string) {
	n.style.Set(key, value)
}

// Style returns one style property.
func (n *Node) Style(key string) (string, bool) {
	return n.style.Get(key)
}

// RemoveStyle deletes one style property.
func (n *Node) RemoveStyle(key string) {
	n.style.Delete(key)
}

// Handle registers fn under name in the node's capability table.
func (n *Node) Handle(name string, fn Handler) {
	if n.handlers == nil {
		n.handlers = make(map[string]Handler)
	}
	n.handlers[name] = fn
}

// Handler looks up a registered handler.
func (n *Node) Handler(name string) (Handler, bool) {
	h, ok := n.handlers[name]
	return h, ok
}

// HandleBinary registers a handler for the synchronous HTTP path.
func (n *Node) HandleBinary(name string, fn BinaryHandler) {
	if n.binary == nil {
		n.binary = make(map[string]BinaryHandler)
	}
	n.binary[name] = fn
}

// BinaryHandler looks up a registered binary handler.
func (n *Node) BinaryHandler(name string) (BinaryHandler, bool) {
	h, ok := n.binary[name]
	return h, ok
}

// Call invokes the named handler. It returns an error wrapping
// ErrHandlerNotFound if no such handler is registered.
func (n *Node) Call(name string, args Args) error {
	h, ok := n.handlers[name]
	if !ok || h == nil {
		return fmt.Errorf("%w: %d/%s", ErrHandlerNotFound, n.id, name)
	}
	return h(args)
}

// BindEvent sets attribute attr (e.g. "onclick") to script that calls the
// handler named handler on this node with no arguments.
func (n *Node) BindEvent(attr, handler string) {
	n.attrs.Set(attr, fmt.Sprintf(
		"sendCallback('%s','%s');event.stopPropagation();event.preventDefault();",
		n.id, handler))
}

// BindEventParams is like BindEvent but passes arguments. Each param value
// is a JavaScript expression evaluated in the browser, e.g. "this.value".
func (n *Node) BindEventParams(attr, handler string, params ...Attr) {
	var obj strings.Builder
	obj.WriteByte('{')
	for i, p := range params {
		if i > 0 {
			obj.WriteByte(',')
		}
		fmt.Fprintf(&obj, "'%s':%s", p.Key, p.Value)
	}
	obj.WriteByte('}')
	n.attrs.Set(attr, fmt.Sprintf(
		"sendCallbackParam('%s','%s',%s);event.stopPropagation();",
		n.id, handler, obj.String()))
}

// Unbind removes an event binding.
func (n *Node) Unbind(attr string) {
	n.attrs.Delete(attr)
}
