// Package server keeps server-side widget trees mirrored into browser tabs.
//
// A Session owns one vdom tree, the sockets of every tab viewing it and a
// single mutex that serializes tree mutation, diffing and broadcast. A
// timer-driven loop ticks each session: it runs the session's idle hook,
// diffs the tree against what the browsers were last sent and broadcasts the
// resulting messages. Inbound callbacks are parsed by the Dispatcher, passed
// through its middleware chain and invoked on the target node under the same
// mutex.
//
// The SessionManager maps a client identity to its Session. In per-browser
// mode the identity is a cookie minted on first visit; in shared mode every
// visitor sees the same Session.
//
// Server ties these to HTTP:
//
//	GET /                     page shell, or WebSocket upgrade
//	GET /{nodeID}/{handler}   binary handler, e.g. a generated image
//	GET /metrics              Prometheus exposition (optional)
//
// Basic usage:
//
//	srv := server.New(server.DefaultServerConfig(), func(s *server.Session) *vdom.Node {
//	    root := vdom.New("div")
//	    btn := vdom.New("button")
//	    btn.Attach("label", vdom.Text("click me"))
//	    btn.Handle("onclick", func(vdom.Args) error {
//	        btn.Attach("label", vdom.Text("clicked"))
//	        return nil
//	    })
//	    btn.BindEvent("onclick", "onclick")
//	    root.Append(btn)
//	    return root
//	})
//	srv.Run()
package server
