// Package btree implements the keyed B-tree used for every secondary
// and unique index: descent/insertion-point lookup, logical (mark
// unused) deletion with opportunistic compaction, cursor advance, and
// multi-key extraction for array-valued fields.
package btree

import "github.com/jpl-au/stratum/bsondoc"

// Direction is a key-pattern component's sort direction.
type Direction int8

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// KeyPart is one (field path, direction) pair of an index's key
// pattern, e.g. the `b:-1` half of `{a:1, b:-1}`.
type KeyPart struct {
	Path string
	Dir  Direction
}

// KeyPattern is an ordered list of KeyParts. Index keys are
// concatenated component values in this order; comparing two keys
// compares components left to right, applying each component's
// direction, and stops at the first non-zero result.
type KeyPattern []KeyPart

// NewKeyPattern builds a KeyPattern from (path, direction) pairs.
func NewKeyPattern(parts ...KeyPart) KeyPattern {
	return KeyPattern(parts)
}

// IndexKey is one compound key: one bsondoc.Value per KeyPattern
// component, field names already stripped.
type IndexKey []bsondoc.Value

// compareKeys orders two compound keys per pattern, applying each
// component's direction and returning at the first component that
// differs.
func compareKeys(pattern KeyPattern, a, b IndexKey) int {
	for i, part := range pattern {
		c := bsondoc.Compare(a[i], b[i])
		if c != 0 {
			return c * int(part.Dir)
		}
	}
	return 0
}

// fieldValue resolves a dotted field path ("a.b.c") against doc,
// descending through nested documents. It returns the value and
// whether the path resolved to anything; a missing intermediate
// component resolves to a BSON null, matching the usual document
// store convention that an absent field indexes as null rather than
// being skipped.
func fieldValue(doc *bsondoc.Document, path string) (bsondoc.Value, bool) {
	cur := doc
	start := 0
	for i := 0; i <= len(path); i++ {
		if i < len(path) && path[i] != '.' {
			continue
		}
		name := path[start:i]
		start = i + 1
		if cur == nil {
			return bsondoc.Value{Type: bsondoc.TypeNull}, false
		}
		v, ok := cur.Get(name)
		if !ok {
			return bsondoc.Value{Type: bsondoc.TypeNull}, false
		}
		if i == len(path) {
			return v, true
		}
		if v.Type == bsondoc.TypeDocument {
			cur = v.Document
			continue
		}
		return bsondoc.Value{Type: bsondoc.TypeNull}, false
	}
	return bsondoc.Value{Type: bsondoc.TypeNull}, false
}
