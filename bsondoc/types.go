// Package bsondoc implements the self-describing binary document model:
// ordered (name, typed value) pairs, a fixed canonical ordering across
// types, and length-prefixed encode/decode.
//
// Every document is a flat ordered slice of Fields. Arrays are encoded
// as documents whose field names are ASCII decimal indices ("0", "1",
// ...), matching the wire convention described for the document model.
package bsondoc

// Type is the canonical type tag stored alongside every field value.
type Type byte

// Type tags, also used as the low byte of a field's on-disk encoding.
// Tag order is not canonical comparison order; Rank below maps every
// tag to its rank explicitly.
const (
	TypeMinKey Type = iota
	TypeNull
	TypeDouble
	TypeInt32
	TypeInt64
	TypeDecimal
	TypeString
	TypeBinary
	TypeObjectID
	TypeBool
	TypeUTCDateTime
	TypeUTCTimestamp
	TypeRegex
	TypeDocument
	TypeArray
	TypeMaxKey
)

// Rank returns the canonical type ordering used when comparing values
// of different types: numerics (Double/Int32/Int64/Decimal) share one
// rank and compare numerically across representations
func (t Type) Rank() int {
	switch t {
	case TypeMinKey:
		return 0
	case TypeNull:
		return 1
	case TypeDouble, TypeInt32, TypeInt64, TypeDecimal:
		return 2
	case TypeString:
		return 3
	case TypeDocument:
		return 4
	case TypeArray:
		return 5
	case TypeBinary:
		return 6
	case TypeObjectID:
		return 7
	case TypeBool:
		return 8
	case TypeUTCDateTime:
		return 9
	case TypeUTCTimestamp:
		return 10
	case TypeRegex:
		return 11
	case TypeMaxKey:
		return 12
	default:
		return 13
	}
}

// BinarySubtype distinguishes binary blob payloads (generic, UUID,
// MD5, user-defined, ...).
type BinarySubtype byte

const (
	SubtypeGeneric BinarySubtype = iota
	SubtypeUUID
	SubtypeMD5
	SubtypeUserDefined BinarySubtype = 0x80
)

// Binary is a tagged byte blob.
type Binary struct {
	Subtype BinarySubtype
	Data    []byte
}

// Regex carries a pattern and its option flags, stored as two
// null-terminated strings on the wire.
type Regex struct {
	Pattern string
	Options string
}

// Value is the tagged union of every supported field value. Only one
// of the typed fields is meaningful for a given Type; Go's zero values
// double as the representation for Null/MinKey/MaxKey.
type Value struct {
	Type      Type
	Bool      bool
	Int32     int32
	Int64     int64
	Double    float64
	Decimal   Decimal128
	String    string
	Binary    Binary
	ObjectID  ObjectID
	UTCMillis int64 // used for both UTCDateTime and UTCTimestamp
	Regex     Regex
	Document  *Document
	Array     *Document // arrays are documents with "0","1",... field names
}

// Decimal128 is a 128-bit decimal value represented as two uint64
// halves (high, low), matching the wire's fixed 16-byte payload.
// Arithmetic is not implemented; only storage, comparison via the
// widened-float path, and round-trip encode/decode are in scope here.
type Decimal128 struct {
	High, Low uint64
}

// Field is one (name, Value) pair within a Document, in wire order.
type Field struct {
	Name  string
	Value Value
}
