package bsondoc

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrTruncated is returned when a buffer ends before a complete
// document/field could be parsed — the same "reject gaps, stop at the
// bad section" posture the journal recovery path takes on corruption.
var ErrTruncated = errors.New("bsondoc: truncated document")

// ErrBadType is returned when a field's type tag is not one this
// package understands.
var ErrBadType = errors.New("bsondoc: unknown type tag")

// Decode parses a self-length-prefixed document and returns it along
// with the number of bytes consumed.
func Decode(buf []byte) (*Document, int, error) {
	if len(buf) < 5 {
		return nil, 0, ErrTruncated
	}
	total := int(binary.LittleEndian.Uint32(buf[0:4]))
	if total < 5 || total > len(buf) {
		return nil, 0, ErrTruncated
	}
	body := buf[4 : total-1] // strip length prefix and terminator
	doc := &Document{}
	off := 0
	for off < len(body) {
		f, n, err := decodeField(body[off:])
		if err != nil {
			return nil, 0, err
		}
		doc.Fields = append(doc.Fields, f)
		off += n
	}
	return doc, total, nil
}

func decodeField(buf []byte) (Field, int, error) {
	if len(buf) < 2 {
		return Field{}, 0, ErrTruncated
	}
	t := Type(buf[0])
	name, n, err := readCString(buf[1:])
	if err != nil {
		return Field{}, 0, err
	}
	off := 1 + n
	v, vn, err := decodeValue(t, buf[off:])
	if err != nil {
		return Field{}, 0, err
	}
	return Field{Name: name, Value: v}, off + vn, nil
}

func decodeValue(t Type, buf []byte) (Value, int, error) {
	switch t {
	case TypeMinKey, TypeMaxKey, TypeNull:
		return Value{Type: t}, 0, nil
	case TypeBool:
		if len(buf) < 1 {
			return Value{}, 0, ErrTruncated
		}
		return Value{Type: t, Bool: buf[0] != 0}, 1, nil
	case TypeInt32:
		if len(buf) < 4 {
			return Value{}, 0, ErrTruncated
		}
		return Value{Type: t, Int32: int32(binary.LittleEndian.Uint32(buf))}, 4, nil
	case TypeInt64, TypeUTCDateTime, TypeUTCTimestamp:
		if len(buf) < 8 {
			return Value{}, 0, ErrTruncated
		}
		n := int64(binary.LittleEndian.Uint64(buf))
		return Value{Type: t, Int64: n, UTCMillis: n}, 8, nil
	case TypeDouble:
		if len(buf) < 8 {
			return Value{}, 0, ErrTruncated
		}
		bits := binary.LittleEndian.Uint64(buf)
		return Value{Type: t, Double: math.Float64frombits(bits)}, 8, nil
	case TypeDecimal:
		if len(buf) < 16 {
			return Value{}, 0, ErrTruncated
		}
		low := binary.LittleEndian.Uint64(buf[0:8])
		high := binary.LittleEndian.Uint64(buf[8:16])
		return Value{Type: t, Decimal: Decimal128{High: high, Low: low}}, 16, nil
	case TypeString:
		if len(buf) < 4 {
			return Value{}, 0, ErrTruncated
		}
		n := int(binary.LittleEndian.Uint32(buf))
		if n < 1 || 4+n > len(buf) {
			return Value{}, 0, ErrTruncated
		}
		s := string(buf[4 : 4+n-1])
		return Value{Type: t, String: s}, 4 + n, nil
	case TypeBinary:
		if len(buf) < 5 {
			return Value{}, 0, ErrTruncated
		}
		n := int(binary.LittleEndian.Uint32(buf))
		if 5+n > len(buf) {
			return Value{}, 0, ErrTruncated
		}
		sub := BinarySubtype(buf[4])
		data := make([]byte, n)
		copy(data, buf[5:5+n])
		return Value{Type: t, Binary: Binary{Subtype: sub, Data: data}}, 5 + n, nil
	case TypeObjectID:
		if len(buf) < 12 {
			return Value{}, 0, ErrTruncated
		}
		var id ObjectID
		copy(id[:], buf[:12])
		return Value{Type: t, ObjectID: id}, 12, nil
	case TypeRegex:
		pat, n1, err := readCString(buf)
		if err != nil {
			return Value{}, 0, err
		}
		opts, n2, err := readCString(buf[n1:])
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Type: t, Regex: Regex{Pattern: pat, Options: opts}}, n1 + n2, nil
	case TypeDocument:
		sub, n, err := Decode(buf)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Type: t, Document: sub}, n, nil
	case TypeArray:
		sub, n, err := Decode(buf)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Type: t, Array: sub}, n, nil
	default:
		return Value{}, 0, ErrBadType
	}
}

func readCString(buf []byte) (string, int, error) {
	for i, b := range buf {
		if b == 0x00 {
			return string(buf[:i]), i + 1, nil
		}
	}
	return "", 0, ErrTruncated
}

func float64bits(f float64) uint64 {
	return math.Float64bits(f)
}
