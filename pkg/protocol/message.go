package protocol

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// MessageKind is the leading digit of a server message.
type MessageKind byte

const (
	KindReplaceWindow MessageKind = '0'
	KindUpdate        MessageKind = '1'
	KindExecJS        MessageKind = '2'
	KindAck           MessageKind = '3'
)

// String returns the string representation of the message kind.
func (k MessageKind) String() string {
	switch k {
	case KindReplaceWindow:
		return "ReplaceWindow"
	case KindUpdate:
		return "Update"
	case KindExecJS:
		return "ExecJS"
	case KindAck:
		return "Ack"
	default:
		return "Unknown"
	}
}

// Ack acknowledges a received callback.
const Ack = string(KindAck)

// CallbackPrefix is the first path segment of every inbound callback.
const CallbackPrefix = "callback"

// ErrBadCallback is returned for inbound messages that are not a valid
// callback address.
var ErrBadCallback = errors.New("protocol: malformed callback")

// EscapeMarkup percent-escapes markup for transmission. The browser reverses
// it with decodeURIComponent.
func EscapeMarkup(s string) string {
	return url.PathEscape(s)
}

// ReplaceWindow builds "0<id>,<markup>".
func ReplaceWindow(id, markup string) string {
	return string(KindReplaceWindow) + id + "," + EscapeMarkup(markup)
}

// Update builds "1<id>,<markup>".
func Update(id, markup string) string {
	return string(KindUpdate) + id + "," + EscapeMarkup(markup)
}

// ExecJS builds "2<js>".
func ExecJS(js string) string {
	return string(KindExecJS) + js
}

// Message is a decoded server message, used by Go clients and tests.
type Message struct {
	Kind   MessageKind
	ID     string
	Markup string // unescaped; for KindExecJS the script
}

// ParseMessage decodes a server message.
func ParseMessage(s string) (Message, error) {
	if s == "" {
		return Message{}, fmt.Errorf("protocol: empty message")
	}
	m := Message{Kind: MessageKind(s[0])}
	body := s[1:]
	switch m.Kind {
	case KindAck:
		return m, nil
	case KindExecJS:
		m.Markup = body
		return m, nil
	case KindReplaceWindow, KindUpdate:
		id, markup, ok := strings.Cut(body, ",")
		if !ok {
			return Message{}, fmt.Errorf("protocol: message %q has no id", m.Kind)
		}
		raw, err := url.PathUnescape(markup)
		if err != nil {
			return Message{}, fmt.Errorf("protocol: unescape markup: %w", err)
		}
		m.ID, m.Markup = id, raw
		return m, nil
	default:
		return Message{}, fmt.Errorf("protocol: unknown message kind %q", s[0])
	}
}

// Call is a decoded inbound callback address.
type Call struct {
	NodeID  string
	Handler string
	Params  map[string]any
}

// ParseCall decodes "callback/<nodeId>/<handler>[/<params>]". The whole
// message may be URI-encoded, as the browser sends it. A missing params
// segment yields an empty Params map.
func ParseCall(msg string) (*Call, error) {
	raw, err := url.PathUnescape(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCallback, err)
	}
	parts := strings.SplitN(raw, "/", 4)
	if len(parts) < 3 || parts[0] != CallbackPrefix || parts[1] == "" || parts[2] == "" {
		return nil, fmt.Errorf("%w: %q", ErrBadCallback, raw)
	}
	c := &Call{NodeID: parts[1], Handler: parts[2]}
	if len(parts) == 4 {
		c.Params = DecodeParams(parts[3])
	} else {
		c.Params = make(map[string]any)
	}
	return c, nil
}

// String returns the unescaped callback address.
func (c *Call) String() string {
	s := CallbackPrefix + "/" + c.NodeID + "/" + c.Handler
	if len(c.Params) > 0 {
		s += "/" + EncodeParams(c.Params)
	}
	return s
}

// EncodeCall builds an escaped callback message the way the browser does.
func EncodeCall(nodeID, handler string, params map[string]any) string {
	c := Call{NodeID: nodeID, Handler: handler, Params: params}
	return url.PathEscape(c.String())
}
