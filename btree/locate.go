package btree

// locate descends from the root to the leaf that does or would
// contain key, returning an insertion point regardless of whether the
// key is present — the building block Insert, Remove, and cursor
// range scans all share.
func (t *Tree) locate(key IndexKey) (Position, bool) {
	b := t.root
	for !b.leaf {
		i := childIndex(t.pattern, b, key)
		b = b.children[i]
	}
	idx, found := searchEntries(t.pattern, b.entries, key)
	return Position{bucket: b, index: idx}, found
}

// childIndex finds which child of an internal bucket a key descends
// into: the first separator strictly greater than key marks the
// boundary, so the child at that index covers key.
func childIndex(pattern KeyPattern, b *bucket, key IndexKey) int {
	lo, hi := 0, len(b.seps)
	for lo < hi {
		mid := (lo + hi) / 2
		if compareKeys(pattern, b.seps[mid], key) > 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// Locate returns the bucket/position a key descends to, and whether a
// live or unused entry with that exact key occupies it. It takes the
// tree's read lock, making it safe to call concurrently with other
// readers and with a background index build's dual inserts.
func (t *Tree) Locate(key IndexKey) (Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.locate(key)
}
