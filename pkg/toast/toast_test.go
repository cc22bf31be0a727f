package toast_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/vango-dev/tether/pkg/toast"
	"github.com/vango-dev/tether/pkg/vdom"
	"github.com/vango-dev/tether/pkg/vtest"
)

// recordingEmitter captures scripts for verification.
type recordingEmitter struct {
	scripts []string
}

func (r *recordingEmitter) ExecuteJS(js string) {
	r.scripts = append(r.scripts, js)
}

// detail extracts the event detail from a toast script.
func detail(t *testing.T, js string) map[string]any {
	t.Helper()
	prefix := `window.dispatchEvent(new CustomEvent("tether:toast",{detail:`
	if !strings.HasPrefix(js, prefix) || !strings.HasSuffix(js, "}))") {
		t.Fatalf("unexpected script %q", js)
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(js, prefix), "}))")
	var m map[string]any
	if err := json.Unmarshal([]byte(raw+"}"), &m); err != nil {
		t.Fatalf("detail %q: %v", raw, err)
	}
	return m
}

func TestLevels(t *testing.T) {
	tests := []struct {
		name  string
		show  func(toast.Emitter, string)
		level toast.Type
	}{
		{"success", toast.Success, toast.TypeSuccess},
		{"error", toast.Error, toast.TypeError},
		{"warning", toast.Warning, toast.TypeWarning},
		{"info", toast.Info, toast.TypeInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &recordingEmitter{}
			tt.show(e, "Item saved!")

			if len(e.scripts) != 1 {
				t.Fatalf("scripts = %d, want 1", len(e.scripts))
			}
			d := detail(t, e.scripts[0])
			if d["level"] != string(tt.level) {
				t.Errorf("level = %v, want %q", d["level"], tt.level)
			}
			if d["message"] != "Item saved!" {
				t.Errorf("message = %v, want %q", d["message"], "Item saved!")
			}
		})
	}
}

func TestWithTitle(t *testing.T) {
	e := &recordingEmitter{}
	toast.WithTitle(e, toast.TypeSuccess, "Settings", "Saved.")

	d := detail(t, e.scripts[0])
	if d["title"] != "Settings" {
		t.Errorf("title = %v, want Settings", d["title"])
	}
}

func TestWithAction(t *testing.T) {
	e := &recordingEmitter{}
	toast.WithAction(e, toast.TypeInfo, "Deleted", "Undo", "12", "undo")

	d := detail(t, e.scripts[0])
	if d["actionNode"] != "12" || d["actionHandler"] != "undo" || d["actionLabel"] != "Undo" {
		t.Errorf("detail = %v", d)
	}
}

func TestScript_EscapesMessage(t *testing.T) {
	js, err := toast.Script(map[string]any{"message": `</script><b>"hi"</b>`})
	if err != nil {
		t.Fatalf("Script() error: %v", err)
	}
	if strings.Contains(js, "</script>") {
		t.Errorf("script contains raw closing tag: %s", js)
	}
}

func TestCustom_Unencodable(t *testing.T) {
	e := &recordingEmitter{}
	toast.Custom(e, map[string]any{"bad": func() {}})
	if len(e.scripts) != 0 {
		t.Errorf("scripts = %d, want 0", len(e.scripts))
	}
}

func TestToastReachesSession(t *testing.T) {
	h := vtest.New(t, vdom.New("div"))
	h.Drain()

	toast.Info(h.Session, "Counter reset")
	vtest.ExpectScript(t, h.Drain(), `"message":"Counter reset"`)
}
