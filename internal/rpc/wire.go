package rpc

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// message is a protobuf message encoded by hand with protowire.
type message interface {
	marshal(b []byte) []byte
	// field decodes one field value from b and returns the bytes used:
	// 0 for a field it does not know, negative on a malformed value.
	field(num protowire.Number, typ protowire.Type, b []byte) int
}

// Codec marshals this package's messages in the protobuf wire format.
// It is registered under the "proto" name so ordinary protobuf clients
// interoperate.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(message)
	if !ok {
		return nil, fmt.Errorf("rpc codec: cannot marshal %T", v)
	}
	return m.marshal(nil), nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(message)
	if !ok {
		return fmt.Errorf("rpc codec: cannot unmarshal into %T", v)
	}
	return unmarshal(data, m)
}

func (Codec) Name() string { return "proto" }

func unmarshal(b []byte, m message) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n = m.field(num, typ, b)
		if n == 0 {
			// unknown field, skip it
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// repeated strings keep empty elements
func appendStrings(b []byte, num protowire.Number, ss []string) []byte {
	for _, s := range ss {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	return b
}

func appendMessage(b []byte, num protowire.Number, m message) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m.marshal(nil))
}

func appendTimestamp(b []byte, num protowire.Number, ts *timestamppb.Timestamp) []byte {
	if ts == nil {
		return b
	}
	return appendMessage(b, num, timestamp{ts})
}

func consumeString(typ protowire.Type, b []byte, dst *string) int {
	if typ != protowire.BytesType {
		return 0
	}
	v, n := protowire.ConsumeBytes(b)
	if n >= 0 {
		*dst = string(v)
	}
	return n
}

func consumeStrings(typ protowire.Type, b []byte, dst *[]string) int {
	var s string
	n := consumeString(typ, b, &s)
	if n > 0 {
		*dst = append(*dst, s)
	}
	return n
}

func consumeMessage(typ protowire.Type, b []byte, m message) int {
	if typ != protowire.BytesType {
		return 0
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n
	}
	if err := unmarshal(v, m); err != nil {
		return -1
	}
	return n
}

// timestamp is google.protobuf.Timestamp as a message.
type timestamp struct {
	*timestamppb.Timestamp
}

func (t timestamp) marshal(b []byte) []byte {
	if t.Seconds != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(t.Seconds))
	}
	if t.Nanos != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(t.Nanos))
	}
	return b
}

func (t timestamp) field(num protowire.Number, typ protowire.Type, b []byte) int {
	if typ != protowire.VarintType {
		return 0
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return n
	}
	switch num {
	case 1:
		t.Seconds = int64(v)
	case 2:
		t.Nanos = int32(v)
	default:
		return 0
	}
	return n
}

func consumeTimestamp(typ protowire.Type, b []byte, dst **timestamppb.Timestamp) int {
	ts := &timestamppb.Timestamp{}
	n := consumeMessage(typ, b, timestamp{ts})
	if n > 0 {
		*dst = ts
	}
	return n
}
