package vdom

import (
	"fmt"
	"strings"
	"testing"
)

func TestRenderShallowExcludesDescendants(t *testing.T) {
	parent := New("div", A("class", "box"))
	child := New("span")
	child.Attach("t", Text("inner"))
	parent.Attach("c", child)
	parent.Attach("t", Text("tail"))

	want := fmt.Sprintf(`<div id="%d" class="box"><#%d>tail</div>`, parent.ID(), child.ID())
	if got := parent.RenderShallow(); got != want {
		t.Errorf("RenderShallow() = %q, want %q", got, want)
	}

	before := parent.RenderShallow()
	child.SetAttr("class", "changed")
	if parent.RenderShallow() != before {
		t.Error("descendant change should not affect parent fingerprint")
	}
}

func TestRenderFull(t *testing.T) {
	parent := New("div", A("class", "box"))
	parent.SetStyle("color", "red")
	child := New("span")
	child.Attach("t", Text("a < b"))
	parent.Attach("c", child)

	want := fmt.Sprintf(`<div id="%d" class="box" style="color:red;"><span id="%d">a &lt; b</span></div>`,
		parent.ID(), child.ID())
	if got := parent.RenderFull(); got != want {
		t.Errorf("RenderFull() = %q, want %q", got, want)
	}
}

func TestRenderVoidElement(t *testing.T) {
	in := New("input", A("type", "text"))
	in.Attach("ignored", Text("x"))

	want := fmt.Sprintf(`<input id="%d" type="text">`, in.ID())
	if got := in.RenderFull(); got != want {
		t.Errorf("RenderFull() = %q, want %q", got, want)
	}
	if got := in.RenderShallow(); got != want {
		t.Errorf("RenderShallow() = %q, want %q", got, want)
	}
}

func TestRenderEscapesAttributes(t *testing.T) {
	n := New("div", A("title", `say "hi" & 'bye'`+"\n"))
	got := n.RenderFull()
	if !strings.Contains(got, `title="say &quot;hi&quot; &amp; &#39;bye&#39;&#10;"`) {
		t.Errorf("RenderFull() = %q", got)
	}
}

func TestEscapeHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"<b>", "&lt;b&gt;"},
		{"a & b", "a &amp; b"},
		{`"q"`, "&quot;q&quot;"},
		{"it's", "it&#39;s"},
		{"ünïcode", "ünïcode"},
	}
	for _, tt := range tests {
		if got := escapeHTML(tt.in); got != tt.want {
			t.Errorf("escapeHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFind(t *testing.T) {
	root := New("div")
	a := New("div")
	b := New("div")
	deep := New("span")
	root.Append(a)
	root.Append(b)
	b.Append(deep)

	got, err := Find(root, deep.ID(), 0)
	if err != nil || got != deep {
		t.Fatalf("Find() = %v, %v; want deep", got, err)
	}

	if _, err := Find(root, New("x").ID(), 0); err != ErrNodeNotFound {
		t.Errorf("Find(detached) error = %v, want ErrNodeNotFound", err)
	}
	if _, err := Find(nil, deep.ID(), 0); err != ErrNodeNotFound {
		t.Errorf("Find(nil root) error = %v", err)
	}
}

func TestFindBudget(t *testing.T) {
	root := New("div")
	last := root
	for i := 0; i < 10; i++ {
		next := New("div")
		last.Append(next)
		last = next
	}

	if _, err := Find(root, last.ID(), 5); err != ErrNodeNotFound {
		t.Errorf("Find() with small budget error = %v, want ErrNodeNotFound", err)
	}
	if got, err := Find(root, last.ID(), 11); err != nil || got != last {
		t.Errorf("Find() with exact budget = %v, %v", got, err)
	}
}

func TestWalkSkipsSubtree(t *testing.T) {
	root := New("div")
	skip := New("div")
	hidden := New("span")
	shown := New("p")
	root.Append(skip)
	root.Append(shown)
	skip.Append(hidden)

	var visited []ID
	Walk(root, func(n *Node) bool {
		visited = append(visited, n.ID())
		return n != skip
	})

	want := []ID{root.ID(), skip.ID(), shown.ID()}
	if fmt.Sprint(visited) != fmt.Sprint(want) {
		t.Errorf("Walk visited %v, want %v", visited, want)
	}
}
