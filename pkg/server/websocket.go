package server

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/vango-dev/tether/pkg/protocol"
)

// ServeConn admits conn to s and runs its read loop until the connection
// closes, the session closes or ctx is cancelled. The socket is removed
// from the session on return.
func ServeConn(ctx context.Context, s *Session, conn *protocol.Conn, d *Dispatcher) error {
	conn.SetWriteTimeout(s.config.WriteTimeout)
	conn.SetMaxPayload(s.config.MaxMessageSize)

	if err := s.AddSocket(conn); err != nil {
		conn.Close()
		return err
	}
	defer s.RemoveSocket(conn)

	// Unblock the reader when the session or the server goes away.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-s.Done():
		case <-stop:
			return
		}
		conn.Close()
	}()

	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			if isClosedErr(err) {
				return nil
			}
			d.metrics.RecordReadError()
			s.Logger().Debug("socket read failed", "error", err, "remote", remoteOf(conn))
			return err
		}
		if err := d.Dispatch(ctx, s, conn, msg); err != nil {
			conn.Close()
			if errors.Is(err, ErrSessionClosed) {
				return nil
			}
			return err
		}
	}
}

// isClosedErr reports whether err is an ordinary end of connection.
func isClosedErr(err error) bool {
	return errors.Is(err, protocol.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed)
}
