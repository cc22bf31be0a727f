package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/vango-dev/tether/pkg/server"
	"github.com/vango-dev/tether/pkg/toast"
	"github.com/vango-dev/tether/pkg/vdom"
)

// demo is the tree served by `tether serve`. Handlers and the idle hook
// run with the session lock held, so its fields need no locking.
type demo struct {
	session *server.Session
	now     func() time.Time

	root     *vdom.Node
	count    *vdom.Node
	greeting *vdom.Node
	clock    *vdom.Node
	badge    *vdom.Node

	n     int
	name  string
	shown string
}

// demoApp returns a root factory that gives every session its own demo.
func demoApp(now func() time.Time) server.RootFactory {
	return func(s *server.Session) *vdom.Node {
		return newDemo(s, now).root
	}
}

func newDemo(s *server.Session, now func() time.Time) *demo {
	d := &demo{session: s, now: now}

	d.root = vdom.New("main", vdom.A("class", "demo"))
	title := vdom.New("h1")
	title.Attach("text", vdom.Text("tether"))

	d.count = vdom.New("span", vdom.A("class", "count"))
	dec := d.button("-", "dec", func() { d.add(-1) })
	inc := d.button("+", "inc", func() { d.add(1) })
	reset := d.button("reset", "reset", func() {
		d.n = 0
		d.render()
		toast.Info(d.session, "Counter reset")
	})

	counter := vdom.New("p", vdom.A("class", "counter"))
	counter.Attach("dec", dec)
	counter.Attach("count", d.count)
	counter.Attach("inc", inc)
	counter.Attach("reset", reset)

	input := vdom.New("input",
		vdom.A("type", "text"),
		vdom.A("placeholder", "Your name"))
	input.BindEventParams("onchange", "rename", vdom.A("name", "this.value"))
	input.Handle("rename", func(args vdom.Args) error {
		name, ok := args["name"]
		if !ok {
			return fmt.Errorf("rename: missing name")
		}
		d.name = strings.TrimSpace(fmt.Sprint(name))
		d.render()
		return nil
	})
	d.greeting = vdom.New("p", vdom.A("class", "greeting"))

	d.clock = vdom.New("time", vdom.A("class", "clock"))

	d.badge = vdom.New("img", vdom.A("alt", "count badge"))
	d.badge.HandleBinary("badge", d.renderBadge)

	d.root.Attach("title", title)
	d.root.Attach("counter", counter)
	d.root.Attach("input", input)
	d.root.Attach("greeting", d.greeting)
	d.root.Attach("clock", d.clock)
	d.root.Attach("badge", d.badge)

	d.render()
	d.tick(s)
	s.OnIdle(d.tick)

	return d
}

func (d *demo) button(label, handler string, fn func()) *vdom.Node {
	b := vdom.New("button", vdom.A("type", "button"))
	b.Attach("text", vdom.Text(label))
	b.BindEvent("onclick", handler)
	b.Handle(handler, func(vdom.Args) error {
		fn()
		return nil
	})
	return b
}

func (d *demo) add(delta int) {
	d.n += delta
	d.render()
}

// render writes the counter state into the tree.
func (d *demo) render() {
	d.count.Attach("text", vdom.Text(fmt.Sprint(d.n)))

	greeting := "Hello, stranger."
	if d.name != "" {
		greeting = fmt.Sprintf("Hello, %s.", d.name)
	}
	d.greeting.Attach("text", vdom.Text(greeting))

	d.badge.SetAttr("src", fmt.Sprintf("/%s/badge?count=%d", d.badge.ID(), d.n))
}

// tick updates the clock once per second.
func (d *demo) tick(*server.Session) {
	now := d.now().Format(time.TimeOnly)
	if now == d.shown {
		return
	}
	d.shown = now
	d.clock.Attach("text", vdom.Text(now))
}

// renderBadge draws the count as an SVG image.
func (d *demo) renderBadge(args vdom.Args) ([]byte, map[string]string, error) {
	count, _ := args["count"].(int64)
	fill := "#2b7a0b"
	if count < 0 {
		fill = "#b3261e"
	}
	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="96" height="24">`+
		`<rect width="96" height="24" rx="4" fill="%s"/>`+
		`<text x="48" y="16" fill="#fff" font-family="sans-serif" font-size="12" text-anchor="middle">count %d</text>`+
		`</svg>`, fill, count)
	return []byte(svg), map[string]string{
		"Content-Type":  "image/svg+xml",
		"Cache-Control": "no-store",
	}, nil
}
