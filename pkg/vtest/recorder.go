package vtest

import (
	"errors"
	"sync"

	"github.com/vango-dev/tether/pkg/protocol"
)

// ErrRecorderClosed is returned by WriteText after Close.
var ErrRecorderClosed = errors.New("vtest: recorder closed")

// Recorder is a server.Socket that keeps every message written to it.
type Recorder struct {
	mu     sync.Mutex
	raw    []string
	closed bool

	// Fail, when set, is returned from every WriteText.
	Fail error
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// WriteText records msg.
func (r *Recorder) WriteText(msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRecorderClosed
	}
	if r.Fail != nil {
		return r.Fail
	}
	r.raw = append(r.raw, msg)
	return nil
}

// Close marks the recorder closed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Raw returns the recorded wire strings.
func (r *Recorder) Raw() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.raw...)
}

// Messages returns the recorded messages decoded. Undecodable entries are
// skipped.
func (r *Recorder) Messages() []protocol.Message {
	raw := r.Raw()
	msgs := make([]protocol.Message, 0, len(raw))
	for _, s := range raw {
		if m, err := protocol.ParseMessage(s); err == nil {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

// Drain returns the decoded messages and forgets them.
func (r *Recorder) Drain() []protocol.Message {
	msgs := r.Messages()
	r.mu.Lock()
	r.raw = nil
	r.mu.Unlock()
	return msgs
}

// Window returns the most recent window replacement, or a zero Message.
func (r *Recorder) Window() protocol.Message {
	msgs := r.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Kind == protocol.KindReplaceWindow {
			return msgs[i]
		}
	}
	return protocol.Message{}
}
