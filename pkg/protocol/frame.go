package protocol

import (
	"errors"
	"fmt"
	"io"
)

// Opcode identifies the frame type.
type Opcode uint8

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

// String returns the string representation of the opcode.
func (op Opcode) String() string {
	switch op {
	case OpContinuation:
		return "Continuation"
	case OpText:
		return "Text"
	case OpBinary:
		return "Binary"
	case OpClose:
		return "Close"
	case OpPing:
		return "Ping"
	case OpPong:
		return "Pong"
	default:
		return "Unknown"
	}
}

// IsControl reports whether op is a control opcode (close, ping, pong).
func (op Opcode) IsControl() bool {
	return op&0x8 != 0
}

// Frame errors.
var (
	ErrFrameDecode   = errors.New("protocol: frame decode failed")
	ErrFrameTooLarge = errors.New("protocol: frame payload too large")
)

// FrameError describes a truncated or garbled inbound frame.
// It matches ErrFrameDecode with errors.Is.
type FrameError struct {
	Op  string // which part of the frame was being read
	Err error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("protocol: frame decode: %s: %v", e.Op, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

func (e *FrameError) Is(target error) bool {
	return target == ErrFrameDecode
}

// Frame is one decoded WebSocket frame. Payload is already unmasked.
type Frame struct {
	Fin     bool
	Opcode  Opcode
	Masked  bool
	Payload []byte
}

// EncodeFrame encodes payload as a single unmasked text frame, the form the
// server sends.
func EncodeFrame(payload []byte) []byte {
	e := NewEncoderWithCap(len(payload) + maxFrameHeader)
	e.WriteByte(0x80 | byte(OpText))
	e.WriteLength(len(payload), 0)
	e.WriteBytes(payload)
	return e.Bytes()
}

// EncodeMaskedFrame encodes payload as a single masked text frame, the form
// a browser sends.
func EncodeMaskedFrame(payload []byte, mask [4]byte) []byte {
	return encodeMasked(OpText, payload, mask)
}

// EncodeMaskedControl encodes a masked control frame such as a close or ping.
func EncodeMaskedControl(op Opcode, payload []byte, mask [4]byte) []byte {
	return encodeMasked(op, payload, mask)
}

func encodeMasked(op Opcode, payload []byte, mask [4]byte) []byte {
	e := NewEncoderWithCap(len(payload) + maxFrameHeader)
	e.WriteByte(0x80 | byte(op))
	e.WriteLength(len(payload), 0x80)
	e.WriteBytes(mask[:])
	e.WriteMaskedBytes(payload, mask)
	return e.Bytes()
}

// ReadFrame reads one frame from r. A declared payload longer than max
// (MaxFramePayload if max <= 0) is rejected before it is read. Any short
// read yields a *FrameError.
func ReadFrame(r io.Reader, max int64) (Frame, error) {
	if max <= 0 {
		max = MaxFramePayload
	}
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:2]); err != nil {
		return Frame{}, &FrameError{Op: "header", Err: err}
	}

	f := Frame{
		Fin:    hdr[0]&0x80 != 0,
		Opcode: Opcode(hdr[0] & 0x0F),
		Masked: hdr[1]&0x80 != 0,
	}

	n := uint64(hdr[1] & 0x7F)
	switch n {
	case 126:
		if _, err := io.ReadFull(r, hdr[:2]); err != nil {
			return Frame{}, &FrameError{Op: "length", Err: err}
		}
		n = uint64(hdr[0])<<8 | uint64(hdr[1])
	case 127:
		if _, err := io.ReadFull(r, hdr[:8]); err != nil {
			return Frame{}, &FrameError{Op: "length", Err: err}
		}
		n = 0
		for _, b := range hdr {
			n = n<<8 | uint64(b)
		}
	}
	if n > uint64(max) {
		return Frame{}, &FrameError{Op: "length", Err: fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, max)}
	}

	var mask [4]byte
	if f.Masked {
		if _, err := io.ReadFull(r, mask[:]); err != nil {
			return Frame{}, &FrameError{Op: "mask", Err: err}
		}
	}

	f.Payload = make([]byte, n)
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		return Frame{}, &FrameError{Op: "payload", Err: err}
	}
	if f.Masked {
		for i := range f.Payload {
			f.Payload[i] ^= mask[i%4]
		}
	}
	return f, nil
}
