package protocol

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// GUID is the fixed RFC 6455 string appended to the client key.
const GUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// ErrHandshake matches every handshake failure.
var ErrHandshake = errors.New("protocol: handshake failed")

// Handshake causes.
var (
	ErrNotUpgrade    = errors.New("not a websocket upgrade request")
	ErrMissingKey    = errors.New("missing Sec-WebSocket-Key header")
	ErrNotHijackable = errors.New("response writer does not support hijacking")
)

// HandshakeError is returned when a connection cannot be upgraded. The
// connection never reaches StateOpen.
type HandshakeError struct {
	Status int // HTTP status written to the client, 0 if none was written
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("protocol: handshake failed: %v", e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

func (e *HandshakeError) Is(target error) bool {
	return target == ErrHandshake
}

// AcceptKey computes the Sec-WebSocket-Accept value for a client key.
func AcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key + GUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// IsUpgradeRequest reports whether r asks for a WebSocket upgrade.
func IsUpgradeRequest(r *http.Request) bool {
	return headerContainsToken(r.Header, "Connection", "upgrade") &&
		headerContainsToken(r.Header, "Upgrade", "websocket")
}

// checkRequest validates r and returns the client key.
func checkRequest(r *http.Request) (string, error) {
	if r.Method != http.MethodGet || !IsUpgradeRequest(r) {
		return "", &HandshakeError{Status: http.StatusBadRequest, Err: ErrNotUpgrade}
	}
	key := strings.TrimSpace(r.Header.Get("Sec-WebSocket-Key"))
	if key == "" {
		return "", &HandshakeError{Status: http.StatusBadRequest, Err: ErrMissingKey}
	}
	return key, nil
}

func upgradeResponse(key string) []byte {
	return []byte("HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + AcceptKey(key) + "\r\n\r\n")
}

func errorResponse(status int) []byte {
	text := http.StatusText(status)
	return []byte(fmt.Sprintf("HTTP/1.1 %d %s\r\nConnection: close\r\nContent-Type: text/plain\r\nContent-Length: %d\r\n\r\n%s",
		status, text, len(text), text))
}

// Accept performs the server side of the handshake on a raw connection.
// On failure nc is closed.
func Accept(nc net.Conn) (*Conn, error) {
	br := bufio.NewReader(nc)
	req, err := http.ReadRequest(br)
	if err != nil {
		nc.Close()
		return nil, &HandshakeError{Err: err}
	}
	key, err := checkRequest(req)
	if err != nil {
		var he *HandshakeError
		if errors.As(err, &he) {
			nc.Write(errorResponse(he.Status))
		}
		nc.Close()
		return nil, err
	}
	if _, err := nc.Write(upgradeResponse(key)); err != nil {
		nc.Close()
		return nil, &HandshakeError{Err: err}
	}
	c := newConn(nc, br)
	c.state.Store(int32(StateOpen))
	return c, nil
}

// Upgrade performs the handshake for a request served by net/http. On
// failure an error response is written when still possible.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	key, err := checkRequest(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return nil, err
	}
	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, &HandshakeError{Status: http.StatusInternalServerError, Err: ErrNotHijackable}
	}
	nc, rw, err := hj.Hijack()
	if err != nil {
		return nil, &HandshakeError{Err: err}
	}
	if _, err := rw.Write(upgradeResponse(key)); err != nil {
		nc.Close()
		return nil, &HandshakeError{Err: err}
	}
	if err := rw.Flush(); err != nil {
		nc.Close()
		return nil, &HandshakeError{Err: err}
	}
	c := newConn(nc, rw.Reader)
	c.state.Store(int32(StateOpen))
	return c, nil
}

// headerContainsToken reports whether a comma-separated header contains
// token, case-insensitively.
func headerContainsToken(h http.Header, name, token string) bool {
	for _, v := range h[http.CanonicalHeaderKey(name)] {
		for _, p := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(p), token) {
				return true
			}
		}
	}
	return false
}
