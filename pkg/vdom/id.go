package vdom

import (
	"strconv"
	"sync/atomic"
)

// ID is the stable handle of a Node. It is assigned once at creation and
// never reused within the process.
type ID uint64

// String returns the decimal form used as DOM id and wire address.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseID parses the decimal wire form of an ID.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ID(v), nil
}

// lastID is the process-wide handle counter. Zero is never handed out.
var lastID atomic.Uint64

// NextID allocates a fresh ID.
func NextID() ID {
	return ID(lastID.Add(1))
}
