package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Envelope is the outer frame carried in every WebSocket message:
//
//	field 1: payloadType (varint)
//	field 2: payload     (bytes)
//	field 3: clientMsgId (string)
//
// Unknown payload types are delivered to consumers with Payload left opaque.
type Envelope struct {
	PayloadType uint32
	Payload     []byte
	ClientMsgID string
}

// Marshal encodes the envelope.
func (e *Envelope) Marshal() []byte {
	b := protowire.AppendTag(nil, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.PayloadType))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Payload)
	if e.ClientMsgID != "" {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, e.ClientMsgID)
	}
	return b
}

// ParseEnvelope decodes one frame into an envelope.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	err := eachField(data, func(num protowire.Number, typ protowire.Type, val []byte) error {
		switch num {
		case 1:
			v, err := asUint(val)
			if err != nil {
				return err
			}
			if v > math.MaxUint32 {
				return fmt.Errorf("payload type %d overflows uint32", v)
			}
			e.PayloadType = uint32(v)
		case 2:
			v, err := asBytes(val)
			if err != nil {
				return err
			}
			e.Payload = v
		case 3:
			v, err := asString(val)
			if err != nil {
				return err
			}
			e.ClientMsgID = v
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	return &e, nil
}

// ————————————————————————————————————————————————————————————————————————
// protowire helpers shared by all message codecs
// ————————————————————————————————————————————————————————————————————————

// eachField walks every field of a protobuf message, passing the raw value
// bytes (still wire-encoded for the given type) to visit. Unknown fields are
// skipped by the callers simply not handling the number.
func eachField(data []byte, visit func(num protowire.Number, typ protowire.Type, val []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		m := protowire.ConsumeFieldValue(num, typ, data)
		if m < 0 {
			return protowire.ParseError(m)
		}
		if err := visit(num, typ, data[:m]); err != nil {
			return err
		}
		data = data[m:]
	}
	return nil
}

func asUint(val []byte) (uint64, error) {
	v, n := protowire.ConsumeVarint(val)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return v, nil
}

func asInt(val []byte) (int64, error) {
	v, err := asUint(val)
	return int64(v), err
}

func asBool(val []byte) (bool, error) {
	v, err := asUint(val)
	return v != 0, err
}

func asDouble(val []byte) (float64, error) {
	v, n := protowire.ConsumeFixed64(val)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return math.Float64frombits(v), nil
}

func asBytes(val []byte) ([]byte, error) {
	v, n := protowire.ConsumeBytes(val)
	if n < 0 {
		return nil, protowire.ParseError(n)
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func asString(val []byte) (string, error) {
	v, err := asBytes(val)
	return string(v), err
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	return appendUint(b, num, uint64(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return appendUint(b, num, 0)
	}
	return appendUint(b, num, 1)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
