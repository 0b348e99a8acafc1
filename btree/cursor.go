package btree

import "github.com/jpl-au/stratum/storage"

// Valid reports whether p names a real entry slot.
func (p Position) Valid() bool {
	return p.bucket != nil && p.index >= 0 && p.index < len(p.bucket.entries)
}

// Entry returns the key and location at p, and whether that entry is
// currently live (not marked unused).
func (p Position) Entry() (IndexKey, storage.RecordLocation, bool) {
	if !p.Valid() {
		return nil, storage.RecordLocation{}, false
	}
	e := p.bucket.entries[p.index]
	return e.Key, e.Loc, !e.Unused
}

// Advance moves from pos to the next (Ascending) or previous
// (Descending) live entry, skipping unused slots and crossing leaf
// boundaries via the sibling chain. ok is false once the scan runs
// off either end of the tree.
func (t *Tree) Advance(pos Position, dir Direction) (Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.advance(pos, dir)
}

func (t *Tree) advance(pos Position, dir Direction) (Position, bool) {
	b, idx := pos.bucket, pos.index
	for {
		if dir == Ascending {
			idx++
		} else {
			idx--
		}
		for idx < 0 || idx >= len(b.entries) {
			if dir == Ascending {
				b = b.next
			} else {
				b = b.prev
			}
			if b == nil {
				return Position{}, false
			}
			if dir == Ascending {
				idx = 0
			} else {
				idx = len(b.entries) - 1
			}
		}
		if !b.entries[idx].Unused {
			return Position{bucket: b, index: idx}, true
		}
	}
}

func leftmostLeaf(b *bucket) *bucket {
	for !b.leaf {
		b = b.children[0]
	}
	return b
}

func rightmostLeaf(b *bucket) *bucket {
	for !b.leaf {
		b = b.children[len(b.children)-1]
	}
	return b
}

// First returns the leftmost live entry in the tree.
func (t *Tree) First() (Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	leaf := leftmostLeaf(t.root)
	return t.advance(Position{bucket: leaf, index: -1}, Ascending)
}

// Last returns the rightmost live entry in the tree.
func (t *Tree) Last() (Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	leaf := rightmostLeaf(t.root)
	return t.advance(Position{bucket: leaf, index: len(leaf.entries)}, Descending)
}
