package btree

import "fmt"

var (
	// ErrDuplicateKey is returned by Insert on a unique index when a
	// live (non-unused) entry already carries the same key.
	ErrDuplicateKey = fmt.Errorf("btree: duplicate key on unique index")

	// ErrCannotIndex is returned when a document would require
	// indexing the cross-product of two or more array-valued key
	// components — disallowed to bound the blowup and keep unique
	// checks unambiguous.
	ErrCannotIndex = fmt.Errorf("btree: document has multiple array key components")

	// ErrNotFound is returned by Remove when no live entry matches the
	// given key and location.
	ErrNotFound = fmt.Errorf("btree: entry not found")
)
