package vdom

import "strings"

// voidElements cannot have children and have no closing tag.
var voidElements = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"embed":  true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"link":   true,
	"meta":   true,
	"param":  true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

// IsVoidElement returns true if tag is an HTML void element.
func IsVoidElement(tag string) bool {
	return voidElements[tag]
}

// Renderable is anything the session can mirror to the browser.
type Renderable interface {
	ID() ID
	RenderShallow() string
	RenderFull() string
}

var _ Renderable = (*Node)(nil)

// RenderShallow serializes the node without rendering child nodes. Child
// nodes appear only as id references, so the result changes when this node's
// attributes, text, or child membership change, but not when a descendant
// changes. It is used as the change-detection fingerprint.
func (n *Node) RenderShallow() string {
	var b strings.Builder
	n.writeOpen(&b)
	if IsVoidElement(n.tag) {
		return b.String()
	}
	for _, k := range n.keys {
		switch c := n.kids[k].(type) {
		case Text:
			b.WriteString(escapeHTML(string(c)))
		case *Node:
			b.WriteString("<#")
			b.WriteString(c.id.String())
			b.WriteByte('>')
		}
	}
	b.WriteString("</")
	b.WriteString(n.tag)
	b.WriteByte('>')
	return b.String()
}

// RenderFull serializes the node and its whole subtree.
func (n *Node) RenderFull() string {
	var b strings.Builder
	n.writeFull(&b)
	return b.String()
}

func (n *Node) writeFull(b *strings.Builder) {
	n.writeOpen(b)
	if IsVoidElement(n.tag) {
		return
	}
	for _, k := range n.keys {
		switch c := n.kids[k].(type) {
		case Text:
			b.WriteString(escapeHTML(string(c)))
		case *Node:
			c.writeFull(b)
		}
	}
	b.WriteString("</")
	b.WriteString(n.tag)
	b.WriteByte('>')
}

// writeOpen writes the opening tag: id first, then attributes in insertion
// order, then style.
func (n *Node) writeOpen(b *strings.Builder) {
	b.WriteByte('<')
	b.WriteString(n.tag)
	b.WriteString(` id="`)
	b.WriteString(n.id.String())
	b.WriteByte('"')
	n.attrs.Each(func(k, v string) {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(escapeAttr(v))
		b.WriteByte('"')
	})
	if n.style.Len() > 0 {
		b.WriteString(` style="`)
		b.WriteString(escapeAttr(joinStyle(&n.style)))
		b.WriteByte('"')
	}
	b.WriteByte('>')
}
