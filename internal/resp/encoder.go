package resp

import "strconv"

// Encode appends the RESP2 wire encoding of v to dst and returns the grown
// slice, so callers (internal/connserve) can accumulate many replies into one
// write-buffer before a single write syscall.
//
// Encode recurses for nested arrays, but every test input and every command
// reply in this server has depth <= 2 (a top-level array of bulk strings at
// most), so the recursion never approaches MaxDepth in practice.
func Encode(dst []byte, v Value) []byte {
	switch v.Kind {
	case KindSimpleString:
		dst = append(dst, '+')
		dst = append(dst, v.Str...)
		return append(dst, '\r', '\n')

	case KindError:
		dst = append(dst, '-')
		dst = append(dst, v.Str...)
		return append(dst, '\r', '\n')

	case KindInteger:
		dst = append(dst, ':')
		dst = strconv.AppendInt(dst, v.Int, 10)
		return append(dst, '\r', '\n')

	case KindNilBulkString:
		return append(dst, '$', '-', '1', '\r', '\n')

	case KindBulkString:
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(v.Str)), 10)
		dst = append(dst, '\r', '\n')
		dst = append(dst, v.Str...)
		return append(dst, '\r', '\n')

	case KindNilArray:
		return append(dst, '*', '-', '1', '\r', '\n')

	case KindArray:
		dst = append(dst, '*')
		dst = strconv.AppendInt(dst, int64(len(v.Elems)), 10)
		dst = append(dst, '\r', '\n')
		for _, e := range v.Elems {
			dst = Encode(dst, e)
		}
		return dst

	default:
		// Defensive: an unrecognized Kind is a programming error, not a
		// protocol error a client can act on — encode it as a generic error
		// rather than panicking the connection handler.
		dst = append(dst, '-', 'E', 'R', 'R', ' ')
		dst = append(dst, "internal: unencodable value"...)
		return append(dst, '\r', '\n')
	}
}
