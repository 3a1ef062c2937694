// Package resp implements an incremental, zero-copy RESP2 parser and a
// non-recursive-in-practice encoder.
//
// Framing follows the Redis Serialization Protocol version 2:
//
//	+simple\r\n            Simple string
//	-err\r\n                Error
//	:123\r\n                Integer
//	$5\r\nhello\r\n         Bulk string
//	$-1\r\n                 Nil bulk string
//	*2\r\n$3\r\nfoo\r\n...   Array
//	*-1\r\n                 Nil array
//
// Parse is incremental: given a byte slice it returns either a parsed Value
// and the number of bytes consumed, ErrIncomplete (more bytes needed, the
// input is not discarded), or a ProtocolError. Bulk string payloads in a
// parsed Value are sub-slices of the caller's buffer — Parse never copies
// bulk payloads. Callers that need to retain a Value past the next read must
// copy it themselves (internal/store does this when installing into a
// shard's map).
package resp
