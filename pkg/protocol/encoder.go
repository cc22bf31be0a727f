package protocol

// Encoder appends frame headers and payloads to an internal buffer.
type Encoder struct {
	buf []byte
}

// NewEncoder creates a new encoder with a default initial capacity.
func NewEncoder() *Encoder {
	return &Encoder{
		buf: make([]byte, 0, 256),
	}
}

// NewEncoderWithCap creates a new encoder with the specified initial capacity.
func NewEncoderWithCap(cap int) *Encoder {
	return &Encoder{
		buf: make([]byte, 0, cap),
	}
}

// Reset resets the encoder to empty state, reusing the underlying buffer.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Bytes returns the encoded bytes. The returned slice is valid until
// the next call to Reset or any Write method.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes currently encoded.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// WriteByte appends a single byte.
func (e *Encoder) WriteByte(b byte) {
	e.buf = append(e.buf, b)
}

// WriteBytes appends raw bytes.
func (e *Encoder) WriteBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

// WriteMaskedBytes appends b XORed with mask[i%4].
func (e *Encoder) WriteMaskedBytes(b []byte, mask [4]byte) {
	for i, c := range b {
		e.buf = append(e.buf, c^mask[i%4])
	}
}

// WriteUint16 appends a uint16 in big-endian byte order.
func (e *Encoder) WriteUint16(v uint16) {
	e.buf = append(e.buf, byte(v>>8), byte(v))
}

// WriteUint64 appends a uint64 in big-endian byte order.
func (e *Encoder) WriteUint64(v uint64) {
	e.buf = append(e.buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// WriteLength appends a frame length field. maskBit is 0x80 for client
// frames and 0 for server frames.
func (e *Encoder) WriteLength(n int, maskBit byte) {
	switch {
	case n <= 125:
		e.WriteByte(maskBit | byte(n))
	case n <= 0xFFFF:
		e.WriteByte(maskBit | 126)
		e.WriteUint16(uint16(n))
	default:
		e.WriteByte(maskBit | 127)
		e.WriteUint64(uint64(n))
	}
}
