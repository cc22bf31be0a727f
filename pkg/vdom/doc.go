// Package vdom provides the server-side widget tree for tether.
//
// The tree lives on the server. Browsers hold a mirror of it that is kept
// current by re-sending the markup of nodes that changed since the previous
// tick. Every Node carries a process-unique ID that doubles as its DOM
// element id and as the address browser events use to call back into it.
//
// # Core Types
//
// Node is the unit of the tree: a tag, ordered attributes, an ordered style
// map, and ordered keyed children that are either nodes or Text. Handlers
// registered on a node form its capability table; event bindings are
// attributes whose JavaScript calls those handlers by name.
//
//	btn := vdom.New("button", vdom.A("class", "primary"))
//	btn.Attach("label", vdom.Text("Click me"))
//	btn.Handle("onclick", func(args vdom.Args) error {
//	    count++
//	    return nil
//	})
//	btn.BindEvent("onclick", "onclick")
//
// # Rendering
//
// RenderShallow serializes a node without its children and serves as the
// change-detection fingerprint. RenderFull includes children and is what
// gets sent to the browser.
//
// # Diffing
//
// Differ remembers the last shallow render of every node it has seen and
// produces a Notification for each subtree whose markup must be resent.
// A changed node resends itself; a newly attached subtree resends its
// nearest already-known ancestor; a new root resends the whole window.
package vdom
