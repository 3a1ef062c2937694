package resp

import (
	"bytes"
	"testing"
)

// TestParseEncodeRoundTrip checks that for all Value V,
// parse(encode(V)) == V.
func TestParseEncodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    Value
	}{
		{"simple string", SimpleString("OK")},
		{"error", Error("ERR boom")},
		{"integer", Integer(42)},
		{"negative integer", Integer(-7)},
		{"bulk string", BulkStringFrom("hello")},
		{"empty bulk string", BulkStringFrom("")},
		{"nil bulk", Nil},
		{"nil array", NilArray},
		{"array of bulk strings", Array(BulkStringFrom("SET"), BulkStringFrom("k"), BulkStringFrom("v"))},
		{"nested array", Array(Integer(1), Array(Integer(2), Integer(3)))},
		{"empty array", Array()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire := Encode(nil, tt.v)
			got, n, err := Parse(wire)
			if err != nil {
				t.Fatalf("Parse returned error: %v", err)
			}
			if n != len(wire) {
				t.Fatalf("expected to consume %d bytes, consumed %d", len(wire), n)
			}
			assertValueEqual(t, tt.v, got)
		})
	}
}

func assertValueEqual(t *testing.T, want, got Value) {
	t.Helper()
	if want.Kind != got.Kind {
		t.Fatalf("kind mismatch: want %v got %v", want.Kind, got.Kind)
	}
	switch want.Kind {
	case KindSimpleString, KindError, KindBulkString:
		if !bytes.Equal(want.Str, got.Str) {
			t.Fatalf("str mismatch: want %q got %q", want.Str, got.Str)
		}
	case KindInteger:
		if want.Int != got.Int {
			t.Fatalf("int mismatch: want %d got %d", want.Int, got.Int)
		}
	case KindArray:
		if len(want.Elems) != len(got.Elems) {
			t.Fatalf("array length mismatch: want %d got %d", len(want.Elems), len(got.Elems))
		}
		for i := range want.Elems {
			assertValueEqual(t, want.Elems[i], got.Elems[i])
		}
	}
}

func TestParseIncomplete(t *testing.T) {
	full := Encode(nil, Array(BulkStringFrom("GET"), BulkStringFrom("key")))

	for n := 0; n < len(full); n++ {
		_, _, err := Parse(full[:n])
		if err != ErrIncomplete {
			t.Fatalf("prefix of length %d: expected ErrIncomplete, got %v", n, err)
		}
	}

	_, consumed, err := Parse(full)
	if err != nil {
		t.Fatalf("full buffer: unexpected error %v", err)
	}
	if consumed != len(full) {
		t.Fatalf("expected to consume entire buffer")
	}
}

func TestParsePartialBulkString(t *testing.T) {
	// A length header with no payload yet must be Incomplete, not an error.
	_, _, err := Parse([]byte("$5\r\nhel"))
	if err != ErrIncomplete {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
}

func TestParseProtocolErrors(t *testing.T) {
	tests := []string{
		"!notaframe\r\n",
		"*2\r\n$-2\r\n",
		":notanumber\r\n",
		"$abc\r\nxyz\r\n",
	}
	for _, in := range tests {
		_, _, err := Parse([]byte(in))
		if _, ok := err.(*ProtocolError); !ok {
			t.Fatalf("input %q: expected ProtocolError, got %v (%T)", in, err, err)
		}
	}
}

func TestParseZeroCopyBulkString(t *testing.T) {
	buf := []byte("$5\r\nhello\r\n")
	v, _, err := Parse(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The decoded Str must alias the input buffer, not a copy.
	if &v.Str[0] != &buf[4] {
		t.Fatalf("expected zero-copy alias into input buffer")
	}
}

func TestPipelinedCommandsParsedInOrder(t *testing.T) {
	// A single buffer containing three pipelined PINGs parses to three
	// values in order, each reporting correct consumed length.
	ping := Encode(nil, Array(BulkStringFrom("PING")))
	buf := append(append(append([]byte{}, ping...), ping...), ping...)

	var got []Value
	for len(buf) > 0 {
		v, n, err := Parse(buf)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, v)
		buf = buf[n:]
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 parsed commands, got %d", len(got))
	}
}

func TestMaxDepthExceeded(t *testing.T) {
	buf := []byte("*1\r\n")
	for i := 0; i < MaxDepth+2; i++ {
		buf = append(buf, []byte("*1\r\n")...)
	}
	buf = append(buf, []byte(":1\r\n")...)
	_, _, err := Parse(buf)
	if _, ok := err.(*ProtocolError); !ok {
		t.Fatalf("expected ProtocolError for excessive nesting, got %v", err)
	}
}
