package protocol

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned when reading from or writing to a closed Conn.
var ErrClosed = errors.New("protocol: connection closed")

// State is the lifecycle state of a Conn.
type State int32

const (
	StateAwaitingHandshake State = iota
	StateOpen
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateAwaitingHandshake:
		return "AwaitingHandshake"
	case StateOpen:
		return "Open"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Conn is a server-side WebSocket connection. One goroutine may call
// ReadMessage while others call WriteText.
type Conn struct {
	nc net.Conn
	br *bufio.Reader

	state atomic.Int32

	wmu          sync.Mutex
	writeTimeout time.Duration
	maxPayload   int64

	closeOnce sync.Once
}

func newConn(nc net.Conn, br *bufio.Reader) *Conn {
	if br == nil {
		br = bufio.NewReader(nc)
	}
	return &Conn{
		nc:           nc,
		br:           br,
		writeTimeout: DefaultWriteTimeout,
		maxPayload:   MaxFramePayload,
	}
}

// State returns the current connection state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// SetWriteTimeout sets the deadline applied to each frame write. Zero
// disables it.
func (c *Conn) SetWriteTimeout(d time.Duration) {
	c.wmu.Lock()
	c.writeTimeout = d
	c.wmu.Unlock()
}

// SetMaxPayload sets the inbound frame size limit. It must be called before
// the read loop starts.
func (c *Conn) SetMaxPayload(n int64) {
	c.maxPayload = n
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// WriteText sends s as one text frame. A failed write closes the Conn.
func (c *Conn) WriteText(s string) error {
	if c.State() != StateOpen {
		return ErrClosed
	}
	frame := EncodeFrame([]byte(s))

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.writeTimeout > 0 {
		c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if _, err := c.nc.Write(frame); err != nil {
		c.Close()
		return err
	}
	return nil
}

// ReadMessage blocks until the next text or binary message arrives. Ping
// and pong frames are skipped. A close frame or any decode error moves the
// Conn to StateClosed; the decode error is returned, a close frame yields
// ErrClosed.
func (c *Conn) ReadMessage() (string, error) {
	for {
		if c.State() != StateOpen {
			return "", ErrClosed
		}
		f, err := ReadFrame(c.br, c.maxPayload)
		if err != nil {
			c.Close()
			return "", err
		}
		switch f.Opcode {
		case OpClose:
			c.Close()
			return "", ErrClosed
		case OpPing, OpPong:
			continue
		default:
			return string(f.Payload), nil
		}
	}
}

// Close moves the Conn to StateClosed and closes the socket. It is safe to
// call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		err = c.nc.Close()
	})
	return err
}
