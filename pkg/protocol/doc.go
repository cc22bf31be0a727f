// Package protocol implements the wire protocol between a tether server and
// the browser.
//
// It has three layers, none of which depend on the widget tree:
//
//   - A minimal WebSocket transport: the HTTP upgrade handshake and the frame
//     codec. Only unfragmented frames are supported; ping and pong frames are
//     skipped and there is no compression.
//   - The parameter codec used for callback arguments.
//   - Message builders and parsers for the text messages carried by frames.
//
// # Handshake
//
// The server reads the client's opening request, takes Sec-WebSocket-Key and
// answers 101 Switching Protocols with
//
//	Sec-WebSocket-Accept: base64(sha1(key + "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"))
//
// Accept works on a raw net.Conn, Upgrade on an http.ResponseWriter that
// supports hijacking.
//
// # Frames
//
// Server frames are always a single text frame with FIN set:
//
//	┌──────┬────────────┬───────────────────────┬─────────┐
//	│ 0x81 │ len (7bit) │ ext len (0, 2, 8 B)   │ payload │
//	└──────┴────────────┴───────────────────────┴─────────┘
//
// Lengths up to 125 are written directly, up to 65535 as 126 plus a
// big-endian uint16, anything larger as 127 plus a big-endian uint64. Client
// frames additionally carry a 4-byte mask key after the length, and every
// payload byte is XORed with mask[i%4].
//
// # Messages
//
// Server to client, one message per frame, prefixed by a single digit:
//
//	0<id>,<markup>   replace the document body, <id> is the new root
//	1<id>,<markup>   replace the element with id <id>
//	2<js>            run script
//	3                callback acknowledged
//
// Markup is percent-escaped. Client to server:
//
//	callback/<nodeId>/<handler>/<params>
//
// where <params> uses the parameter codec and may be omitted.
//
// # Parameters
//
// Each field is written as "<n>|<name>=<value>|" where n is the byte length
// of "<name>=<value>". Values without quotes decode to int64 or float64 when
// they parse as such and stay strings otherwise.
package protocol
