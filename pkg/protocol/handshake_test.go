package protocol

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestAcceptKey(t *testing.T) {
	// RFC 6455 section 1.3.
	if got := AcceptKey("dGhlIHNhbXBsZSBub25jZQ=="); got != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Errorf("AcceptKey() = %s, want s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", got)
	}
}

const upgradeRequest = "GET / HTTP/1.1\r\n" +
	"Host: localhost\r\n" +
	"Upgrade: websocket\r\n" +
	"Connection: keep-alive, Upgrade\r\n" +
	"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
	"Sec-WebSocket-Version: 13\r\n\r\n"

func TestAcceptOverPipe(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	type result struct {
		resp *http.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		if _, err := client.Write([]byte(upgradeRequest)); err != nil {
			done <- result{err: err}
			return
		}
		resp, err := http.ReadResponse(bufio.NewReader(client), nil)
		done <- result{resp, err}
	}()

	c, err := Accept(server)
	if err != nil {
		t.Fatalf("Accept() error: %v", err)
	}
	defer c.Close()

	res := <-done
	if res.err != nil {
		t.Fatalf("client error: %v", res.err)
	}
	if res.resp.StatusCode != http.StatusSwitchingProtocols {
		t.Errorf("status = %d, want 101", res.resp.StatusCode)
	}
	if got := res.resp.Header.Get("Sec-WebSocket-Accept"); got != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Errorf("Sec-WebSocket-Accept = %s", got)
	}
	if c.State() != StateOpen {
		t.Errorf("State() = %v, want Open", c.State())
	}
}

func TestAcceptRejects(t *testing.T) {
	tests := []struct {
		name    string
		request string
		cause   error
	}{
		{
			name:    "missing key",
			request: "GET / HTTP/1.1\r\nHost: x\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n\r\n",
			cause:   ErrMissingKey,
		},
		{
			name:    "plain request",
			request: "GET / HTTP/1.1\r\nHost: x\r\n\r\n",
			cause:   ErrNotUpgrade,
		},
		{
			name:    "wrong method",
			request: "POST / HTTP/1.1\r\nHost: x\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Key: abc\r\nContent-Length: 0\r\n\r\n",
			cause:   ErrNotUpgrade,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, client := net.Pipe()
			defer client.Close()

			reply := make(chan string, 1)
			go func() {
				client.Write([]byte(tt.request))
				b, _ := io.ReadAll(client)
				reply <- string(b)
			}()

			c, err := Accept(server)
			if c != nil {
				t.Fatal("Accept() should not return a connection")
			}
			if !errors.Is(err, ErrHandshake) || !errors.Is(err, tt.cause) {
				t.Fatalf("error = %v, want ErrHandshake wrapping %v", err, tt.cause)
			}
			var he *HandshakeError
			if !errors.As(err, &he) || he.Status != http.StatusBadRequest {
				t.Errorf("HandshakeError = %+v, want status 400", he)
			}
			if got := <-reply; !strings.HasPrefix(got, "HTTP/1.1 400") {
				t.Errorf("client got %q, want 400 response", got)
			}
		})
	}
}

func TestAcceptGarbage(t *testing.T) {
	server, client := net.Pipe()
	go func() {
		client.Write([]byte("\x00\x01\x02 not http\r\n\r\n"))
		client.Close()
	}()

	if _, err := Accept(server); !errors.Is(err, ErrHandshake) {
		t.Errorf("error = %v, want ErrHandshake", err)
	}
}

func TestUpgradeRejectsPlainRequest(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := Upgrade(rec, req)
	if !errors.Is(err, ErrNotUpgrade) {
		t.Errorf("error = %v, want ErrNotUpgrade", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUpgradeRequiresHijacker(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")

	_, err := Upgrade(rec, req)
	if !errors.Is(err, ErrNotHijackable) {
		t.Errorf("error = %v, want ErrNotHijackable", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

// TestUpgradeInterop drives the server side with an independent client.
func TestUpgradeInterop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := Upgrade(w, r)
		if err != nil {
			t.Errorf("Upgrade() error: %v", err)
			return
		}
		defer c.Close()
		for {
			msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteText("echo:" + msg); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer ws.Close()

	for _, msg := range []string{"hi", strings.Repeat("long ", 20000)} {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("WriteMessage() error: %v", err)
		}
		typ, got, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error: %v", err)
		}
		if typ != websocket.TextMessage || string(got) != "echo:"+msg {
			t.Errorf("echo mismatch for %d byte message", len(msg))
		}
	}
}
