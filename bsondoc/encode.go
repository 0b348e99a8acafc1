package bsondoc

import (
	"encoding/binary"
	"fmt"
)

// Encode serialises a Document to its self-length-prefixed binary
// form: a 4-byte little-endian total length (including itself),
// followed by each field as (type byte, name, value), followed by a
// single 0x00 terminator byte.
//
// This hand-rolled fixed-offset layout is deliberate, not an
// oversight: the storage layer (extent scan, B-tree key extraction)
// needs to read a field's length before it knows the document's
// shape, so fields are framed rather than left to a generic
// self-describing parse.
func Encode(d *Document) ([]byte, error) {
	buf := make([]byte, 4) // placeholder for total length
	var err error
	for _, f := range d.Fields {
		buf, err = encodeField(buf, f)
		if err != nil {
			return nil, err
		}
	}
	buf = append(buf, 0x00)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(buf)))
	return buf, nil
}

func encodeField(buf []byte, f Field) ([]byte, error) {
	buf = append(buf, byte(f.Value.Type))
	buf = appendCString(buf, f.Name)
	return encodeValue(buf, f.Value)
}

func encodeValue(buf []byte, v Value) ([]byte, error) {
	switch v.Type {
	case TypeMinKey, TypeMaxKey, TypeNull:
		return buf, nil
	case TypeBool:
		if v.Bool {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case TypeInt32:
		return binary.LittleEndian.AppendUint32(buf, uint32(v.Int32)), nil
	case TypeInt64:
		return binary.LittleEndian.AppendUint64(buf, uint64(v.Int64)), nil
	case TypeUTCDateTime, TypeUTCTimestamp:
		return binary.LittleEndian.AppendUint64(buf, uint64(v.UTCMillis)), nil
	case TypeDouble:
		return binary.LittleEndian.AppendUint64(buf, float64bits(v.Double)), nil
	case TypeDecimal:
		buf = binary.LittleEndian.AppendUint64(buf, v.Decimal.Low)
		buf = binary.LittleEndian.AppendUint64(buf, v.Decimal.High)
		return buf, nil
	case TypeString:
		return appendLPString(buf, v.String), nil
	case TypeBinary:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v.Binary.Data)))
		buf = append(buf, byte(v.Binary.Subtype))
		buf = append(buf, v.Binary.Data...)
		return buf, nil
	case TypeObjectID:
		return append(buf, v.ObjectID[:]...), nil
	case TypeRegex:
		buf = appendCString(buf, v.Regex.Pattern)
		buf = appendCString(buf, v.Regex.Options)
		return buf, nil
	case TypeDocument:
		sub, err := Encode(v.Document)
		if err != nil {
			return nil, err
		}
		return append(buf, sub...), nil
	case TypeArray:
		sub, err := Encode(v.Array)
		if err != nil {
			return nil, err
		}
		return append(buf, sub...), nil
	default:
		return nil, fmt.Errorf("bsondoc: encode: unknown type %d", v.Type)
	}
}

func appendCString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	return append(buf, 0x00)
}

func appendLPString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)+1))
	buf = append(buf, s...)
	return append(buf, 0x00)
}
