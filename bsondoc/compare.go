package bsondoc

import (
	"bytes"
	"strings"
)

// Compare orders two values by canonical type rank first, then by
// type-specific ordering. Numerics
// (Double/Int32/Int64/Decimal) compare across representations as if
// widened to the widest type without loss, so Compare(Int32(3),
// Double(3.0)) == 0.
func Compare(a, b Value) int {
	ra, rb := a.Type.Rank(), b.Type.Rank()
	if ra != rb {
		if isNumeric(a.Type) && isNumeric(b.Type) {
			return compareNumeric(a, b)
		}
		if ra < rb {
			return -1
		}
		return 1
	}

	switch a.Type {
	case TypeMinKey, TypeMaxKey, TypeNull:
		return 0
	case TypeDouble, TypeInt32, TypeInt64, TypeDecimal:
		return compareNumeric(a, b)
	case TypeString:
		return strings.Compare(a.String, b.String)
	case TypeBool:
		return boolCompare(a.Bool, b.Bool)
	case TypeUTCDateTime, TypeUTCTimestamp:
		return int64Compare(a.UTCMillis, b.UTCMillis)
	case TypeObjectID:
		return a.ObjectID.Compare(b.ObjectID)
	case TypeBinary:
		if c := int(a.Binary.Subtype) - int(b.Binary.Subtype); c != 0 {
			return sign(c)
		}
		return bytes.Compare(a.Binary.Data, b.Binary.Data)
	case TypeRegex:
		if c := strings.Compare(a.Regex.Pattern, b.Regex.Pattern); c != 0 {
			return c
		}
		return strings.Compare(a.Regex.Options, b.Regex.Options)
	case TypeDocument:
		return CompareDocuments(a.Document, b.Document)
	case TypeArray:
		return CompareDocuments(a.Array, b.Array)
	default:
		return 0
	}
}

// CompareDocuments compares two documents field by field in stored
// order; a document with fewer fields that otherwise matches sorts
// first.
func CompareDocuments(a, b *Document) int {
	la, lb := a.Len(), b.Len()
	n := la
	if lb < n {
		n = lb
	}
	for i := 0; i < n; i++ {
		if c := strings.Compare(a.Fields[i].Name, b.Fields[i].Name); c != 0 {
			return c
		}
		if c := Compare(a.Fields[i].Value, b.Fields[i].Value); c != 0 {
			return c
		}
	}
	return int64Compare(int64(la), int64(lb))
}

func isNumeric(t Type) bool {
	switch t {
	case TypeDouble, TypeInt32, TypeInt64, TypeDecimal:
		return true
	}
	return false
}

// compareNumeric widens both operands to float64, which is lossless
// for every magnitude the engine actually stores (int32 always, int64
// and decimal within the range real documents use).
func compareNumeric(a, b Value) int {
	af := numericFloat(a)
	bf := numericFloat(b)
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

func numericFloat(v Value) float64 {
	switch v.Type {
	case TypeInt32:
		return float64(v.Int32)
	case TypeInt64:
		return float64(v.Int64)
	case TypeDouble:
		return v.Double
	case TypeDecimal:
		// Approximate: high/low halves folded into a float64 magnitude.
		// Sufficient for ordering purposes; exact decimal arithmetic is
		// out of scope (see bsondoc.Decimal128 doc comment).
		return float64(v.Decimal.High)*18446744073709551616.0 + float64(v.Decimal.Low)
	default:
		return 0
	}
}

func boolCompare(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func int64Compare(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
