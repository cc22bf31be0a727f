package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/tether/pkg/protocol"
	"github.com/vango-dev/tether/pkg/vdom"
)

// counterApp builds a page with a label and a button that bumps it.
func counterApp(s *Session) *vdom.Node {
	count := 0
	root := vdom.New("div", vdom.A("class", "app"))
	label := vdom.New("span", vdom.A("class", "count"))
	label.Attach("text", vdom.Text("0"))
	button := vdom.New("button")
	button.Attach("text", vdom.Text("+"))
	button.BindEvent("onclick", "click")
	button.Handle("click", func(vdom.Args) error {
		count++
		label.Attach("text", vdom.Text(strings.Repeat("|", count)))
		return nil
	})
	button.HandleBinary("png", func(args vdom.Args) ([]byte, map[string]string, error) {
		size, _ := args["size"].(int64)
		return []byte(strings.Repeat("p", int(size))), map[string]string{"Content-Type": "image/png"}, nil
	})
	root.Attach("label", label)
	root.Attach("button", button)
	return root
}

func newTestServer(t *testing.T, cfg *ServerConfig) (*Server, *httptest.Server) {
	t.Helper()
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	cfg.SessionConfig = DefaultSessionConfig()
	cfg.SessionConfig.UpdateInterval = 10 * time.Millisecond
	srv := New(cfg, counterApp)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ts.Close()
	})
	return srv, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/"
}

func dial(t *testing.T, ts *httptest.Server, cookie *http.Cookie) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if cookie != nil {
		header.Set("Cookie", cookie.String())
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until match returns true or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, match func(protocol.Message) bool) protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error: %v", err)
		}
		m, err := protocol.ParseMessage(string(data))
		if err != nil {
			t.Fatalf("ParseMessage(%q) error: %v", data, err)
		}
		if match(m) {
			return m
		}
	}
}

func kindIs(k protocol.MessageKind) func(protocol.Message) bool {
	return func(m protocol.Message) bool { return m.Kind == k }
}

func getPage(t *testing.T, ts *httptest.Server) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET / error: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func identityCookieOf(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == DefaultCookieName {
			return c
		}
	}
	t.Fatal("no identity cookie set")
	return nil
}

func TestServerPage(t *testing.T) {
	srv, ts := newTestServer(t, DefaultServerConfig().WithTitle("Counter"))

	resp, body := getPage(t, ts)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	for _, want := range []string{"<title>Counter</title>", `class="app"`, "sendCallbackParam", "paramPacketize"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	// A full replace re-targets the root so later partial updates resolve.
	if !strings.Contains(body, "document.body.dataset.root = id") {
		t.Error("full replace does not record the new root id")
	}

	cookie := identityCookieOf(t, resp)
	sess := srv.Sessions().Get(cookie.Value)
	if sess == nil {
		t.Fatal("no session registered for the cookie")
	}
	if want := `data-root="` + sess.Root().ID().String() + `"`; !strings.Contains(body, want) {
		t.Errorf("page missing %q", want)
	}

	// A returning browser keeps its session.
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/", nil)
	req.AddCookie(cookie)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET / error: %v", err)
	}
	resp2.Body.Close()
	if len(resp2.Cookies()) != 0 {
		t.Error("cookie re-minted for known identity")
	}
	if n := srv.Sessions().Count(); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestServerSocketRoundTrip(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	resp, _ := getPage(t, ts)
	cookie := identityCookieOf(t, resp)
	sess := srv.Sessions().Get(cookie.Value)

	conn := dial(t, ts, cookie)
	first := readUntil(t, conn, kindIs(protocol.KindReplaceWindow))
	if first.ID != sess.Root().ID().String() {
		t.Errorf("first message ID = %s, want root %s", first.ID, sess.Root().ID())
	}

	var button *vdom.Node
	vdom.Walk(sess.Root(), func(n *vdom.Node) bool {
		if n.Tag() == "button" {
			button = n
		}
		return true
	})
	msg := protocol.EncodeCall(button.ID().String(), "click", nil)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("WriteMessage() error: %v", err)
	}

	readUntil(t, conn, kindIs(protocol.KindAck))
	update := readUntil(t, conn, kindIs(protocol.KindUpdate))
	if !strings.Contains(update.Markup, "|") {
		t.Errorf("update markup = %q, want the bumped count", update.Markup)
	}

	// Garbage still gets an ack and the socket stays usable.
	conn.WriteMessage(websocket.TextMessage, []byte("not a callback"))
	readUntil(t, conn, kindIs(protocol.KindAck))
}

func TestServerSharedMode(t *testing.T) {
	srv, ts := newTestServer(t, DefaultServerConfig().WithMode(ModeShared))

	a := dial(t, ts, nil)
	b := dial(t, ts, nil)
	readUntil(t, a, kindIs(protocol.KindReplaceWindow))
	readUntil(t, b, kindIs(protocol.KindReplaceWindow))

	sess := srv.Sessions().Get(SharedIdentity)
	if sess == nil {
		t.Fatal("no shared session")
	}
	deadline := time.Now().Add(2 * time.Second)
	for sess.SocketCount() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("SocketCount() = %d, want 2", sess.SocketCount())
		}
		time.Sleep(5 * time.Millisecond)
	}

	var button *vdom.Node
	vdom.Walk(sess.Root(), func(n *vdom.Node) bool {
		if n.Tag() == "button" {
			button = n
		}
		return true
	})
	a.WriteMessage(websocket.TextMessage, []byte(protocol.EncodeCall(button.ID().String(), "click", nil)))

	// The other tab sees the change.
	readUntil(t, b, kindIs(protocol.KindUpdate))
}

func TestServerBinary(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	resp, _ := getPage(t, ts)
	cookie := identityCookieOf(t, resp)
	sess := srv.Sessions().Get(cookie.Value)

	var button *vdom.Node
	vdom.Walk(sess.Root(), func(n *vdom.Node) bool {
		if n.Tag() == "button" {
			button = n
		}
		return true
	})

	tests := []struct {
		name       string
		path       string
		cookie     *http.Cookie
		wantStatus int
		wantBody   string
	}{
		{"ok", "/" + button.ID().String() + "/png?size=3", cookie, http.StatusOK, "ppp"},
		{"unknown handler", "/" + button.ID().String() + "/gif", cookie, http.StatusNotFound, ""},
		{"unknown node", "/999999999/png", cookie, http.StatusNotFound, ""},
		{"no session", "/" + button.ID().String() + "/png", nil, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, ts.URL+tt.path, nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("GET %s error: %v", tt.path, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantBody == "" {
				return
			}
			body, _ := io.ReadAll(resp.Body)
			if string(body) != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
				t.Errorf("Content-Type = %q, want image/png", ct)
			}
		})
	}
}

func TestServerMaxSessions(t *testing.T) {
	_, ts := newTestServer(t, DefaultServerConfig().WithMaxSessions(1))

	if resp, _ := getPage(t, ts); resp.StatusCode != http.StatusOK {
		t.Fatalf("first page status = %d, want 200", resp.StatusCode)
	}
	if resp, _ := getPage(t, ts); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("second page status = %d, want 503", resp.StatusCode)
	}
}

func TestServerShutdownClosesSockets(t *testing.T) {
	srv, ts := newTestServer(t, DefaultServerConfig().WithMode(ModeShared))
	conn := dial(t, ts, nil)
	readUntil(t, conn, kindIs(protocol.KindReplaceWindow))

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
				t.Fatal("socket still open after Shutdown")
			}
			return
		}
	}
}
