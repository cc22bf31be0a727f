package protocol

import "time"

const (
	// MaxFramePayload is the default limit on an inbound frame payload.
	// Callback messages are small; anything near this size is garbage.
	MaxFramePayload = 1 << 20

	// DefaultWriteTimeout bounds a single frame write so a stalled browser
	// cannot hold the session lock indefinitely.
	DefaultWriteTimeout = 10 * time.Second

	// maxFrameHeader is 2 header bytes + 8 extended length + 4 mask.
	maxFrameHeader = 14
)
