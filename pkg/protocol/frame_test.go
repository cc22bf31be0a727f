package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	mask := [4]byte{0x12, 0x34, 0x56, 0x78}
	tests := []struct {
		name   string
		size   int
		header []byte // expected bytes after 0x81
	}{
		{"7-bit length", 10, []byte{0x80 | 10}},
		{"16-bit length", 200, []byte{0x80 | 126, 0x00, 0xC8}},
		{"64-bit length", 70000, []byte{0x80 | 127, 0, 0, 0, 0, 0, 0x01, 0x11, 0x70}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := bytes.Repeat([]byte("abcdefg"), tt.size/7+1)[:tt.size]
			encoded := EncodeMaskedFrame(payload, mask)

			if encoded[0] != 0x81 {
				t.Errorf("byte0 = %#x, want 0x81", encoded[0])
			}
			if !bytes.Equal(encoded[1:1+len(tt.header)], tt.header) {
				t.Errorf("length header = %v, want %v", encoded[1:1+len(tt.header)], tt.header)
			}

			f, err := ReadFrame(bytes.NewReader(encoded), 1<<20)
			if err != nil {
				t.Fatalf("ReadFrame() error: %v", err)
			}
			if !f.Fin || f.Opcode != OpText || !f.Masked {
				t.Errorf("frame = fin %v op %v masked %v", f.Fin, f.Opcode, f.Masked)
			}
			if !bytes.Equal(f.Payload, payload) {
				t.Error("payload mismatch after unmasking")
			}
		})
	}
}

func TestEncodeFrameUnmasked(t *testing.T) {
	sizes := []int{0, 125, 126, 65535, 65536}
	for _, size := range sizes {
		payload := bytes.Repeat([]byte{'x'}, size)
		encoded := EncodeFrame(payload)
		if encoded[1]&0x80 != 0 {
			t.Errorf("size %d: server frame must not be masked", size)
		}
		f, err := ReadFrame(bytes.NewReader(encoded), 1<<20)
		if err != nil {
			t.Fatalf("size %d: ReadFrame() error: %v", size, err)
		}
		if f.Masked || len(f.Payload) != size {
			t.Errorf("size %d: got masked=%v len=%d", size, f.Masked, len(f.Payload))
		}
	}
}

func TestReadFrameTruncated(t *testing.T) {
	full := EncodeMaskedFrame([]byte(strings.Repeat("z", 300)), [4]byte{1, 2, 3, 4})
	tests := []struct {
		name string
		data []byte
		op   string
	}{
		{"empty", nil, "header"},
		{"half header", full[:1], "header"},
		{"short extended length", full[:3], "length"},
		{"missing mask", full[:5], "mask"},
		{"short payload", full[:20], "payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tt.data), 0)
			if !errors.Is(err, ErrFrameDecode) {
				t.Fatalf("error = %v, want ErrFrameDecode", err)
			}
			var fe *FrameError
			if !errors.As(err, &fe) || fe.Op != tt.op {
				t.Errorf("FrameError = %+v, want op %q", fe, tt.op)
			}
		})
	}

	if _, err := ReadFrame(bytes.NewReader(nil), 0); !errors.Is(err, io.EOF) {
		t.Errorf("empty reader should unwrap to io.EOF, got %v", err)
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	encoded := EncodeMaskedFrame(make([]byte, 200), [4]byte{})
	_, err := ReadFrame(bytes.NewReader(encoded), 100)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("error = %v, want ErrFrameTooLarge", err)
	}
	if !errors.Is(err, ErrFrameDecode) {
		t.Errorf("error = %v, want ErrFrameDecode", err)
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpText, "Text"},
		{OpClose, "Close"},
		{OpPing, "Ping"},
		{Opcode(0x7), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Opcode(%d).String() = %s, want %s", tt.op, got, tt.want)
		}
	}
	if !OpPong.IsControl() || OpText.IsControl() {
		t.Error("IsControl mismatch")
	}
}
