// Package vtest provides testing helpers for tether trees.
//
// A Harness drives one unstarted session synchronously: it admits a
// recording socket, dispatches callbacks through a real Dispatcher and
// ticks on demand, so tests observe exactly the messages a browser would.
//
// # Quick Start
//
//	func TestCounter(t *testing.T) {
//	    root, inc := counterTree()
//	    h := vtest.New(t, root)
//
//	    h.Call(inc, "click", nil)
//	    msgs := h.Tick()
//	    vtest.ExpectUpdate(t, msgs, "1")
//	}
//
// # Reconnects
//
// Reconnect drops the current socket and admits a fresh one, which receives
// a full window render:
//
//	sock := h.Reconnect()
//	vtest.ExpectContains(t, sock.Window().Markup, "Count: 1")
//
// # Render Assertions
//
// Assert on rendered markup of a node or a message:
//
//	vtest.ExpectContains(t, node.RenderFull(), "Welcome")
//	vtest.ExpectNotContains(t, node.RenderFull(), "Login")
package vtest
