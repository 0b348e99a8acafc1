package btree

import "github.com/jpl-au/stratum/bsondoc"

// ExtractKeys resolves pattern against doc, producing one IndexKey
// per combination when any component resolves to an array value — the
// cross-product the spec calls multi-key extraction. multiKey reports
// whether the document produced two or more keys, so the caller can
// set the collection's multi-key bit for this index.
//
// ErrCannotIndex is returned when two or more components resolve to
// arrays: the cross-product of two array components makes both the
// index size and any uniqueness check combinatorially ambiguous, so
// the write is refused outright rather than silently exploding.
func ExtractKeys(doc *bsondoc.Document, pattern KeyPattern) ([]IndexKey, bool, error) {
	options := make([][]bsondoc.Value, len(pattern))
	arrayComponents := 0

	for i, part := range pattern {
		v, _ := fieldValue(doc, part.Path)
		if !bsondoc.IsArray(v) {
			options[i] = []bsondoc.Value{v}
			continue
		}

		arrayComponents++
		if arrayComponents >= 2 {
			return nil, false, ErrCannotIndex
		}

		elems := v.Array.Fields
		vals := make([]bsondoc.Value, 0, len(elems))
		for _, f := range elems {
			vals = append(vals, f.Value)
		}
		if len(vals) == 0 {
			// An empty array still needs one entry so the document
			// remains findable (and unique-checkable) on this index.
			vals = []bsondoc.Value{{Type: bsondoc.TypeNull}}
		}
		options[i] = vals
	}

	keys := []IndexKey{{}}
	for i := range pattern {
		next := make([]IndexKey, 0, len(keys)*len(options[i]))
		for _, k := range keys {
			for _, v := range options[i] {
				nk := append(append(IndexKey(nil), k...), v)
				next = append(next, nk)
			}
		}
		keys = next
	}

	return keys, len(keys) > 1, nil
}
