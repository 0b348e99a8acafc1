package btree

import "github.com/jpl-au/stratum/storage"

// Insert adds (key, loc) to the tree. On a unique index it fails with
// ErrDuplicateKey if a live entry already carries an equal key, unless
// allowReplace is set and that entry is exactly (key, loc) — the
// background-indexing allowance for a write that is replaying an
// update already reflected in the old index.
func (t *Tree) Insert(key IndexKey, loc storage.RecordLocation, allowReplace bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, found := t.locate(key)
	b := pos.bucket

	insertIdx := pos.index
	if found {
		end := pos.index
		liveDup := false
		for end < len(b.entries) && compareKeys(t.pattern, b.entries[end].Key, key) == 0 {
			e := b.entries[end]
			if e.Loc == loc {
				if e.Unused {
					e.Unused = false
					return nil
				}
				if allowReplace {
					return nil
				}
			}
			if !e.Unused {
				liveDup = true
			}
			end++
		}
		if t.unique && liveDup {
			return ErrDuplicateKey
		}
		insertIdx = end
	}

	t.insertAt(b, insertIdx, &entry{Key: append(IndexKey(nil), key...), Loc: loc})
	return nil
}

// insertAt places e at index idx of leaf b, compacting unused entries
// or splitting the bucket if it now exceeds the tree's order.
func (t *Tree) insertAt(b *bucket, idx int, e *entry) {
	b.entries = append(b.entries, nil)
	copy(b.entries[idx+1:], b.entries[idx:])
	b.entries[idx] = e

	if len(b.entries) <= t.order {
		return
	}
	if compactBucket(b) && len(b.entries) <= t.order {
		return
	}
	t.splitLeaf(b)
}

// compactBucket removes unused entries in place. This is where the
// spec's "physical compaction happens opportunistically on subsequent
// inserts" rule is implemented: Remove never shrinks a bucket itself,
// only the next Insert that would otherwise force a split does.
func compactBucket(b *bucket) bool {
	out := b.entries[:0]
	removed := false
	for _, e := range b.entries {
		if e.Unused {
			removed = true
			continue
		}
		out = append(out, e)
	}
	b.entries = out
	return removed
}

func (t *Tree) splitLeaf(b *bucket) {
	mid := len(b.entries) / 2
	right := &bucket{leaf: true, entries: append([]*entry(nil), b.entries[mid:]...)}
	b.entries = b.entries[:mid:mid]

	right.next = b.next
	if right.next != nil {
		right.next.prev = right
	}
	right.prev = b
	b.next = right

	sep := right.entries[0].Key
	t.insertChild(b, sep, right)
}

func (t *Tree) splitInternal(b *bucket) {
	mid := len(b.seps) / 2
	promoted := b.seps[mid]

	right := &bucket{leaf: false}
	right.seps = append([]IndexKey(nil), b.seps[mid+1:]...)
	right.children = append([]*bucket(nil), b.children[mid+1:]...)
	for _, c := range right.children {
		c.parent = right
	}

	b.seps = b.seps[:mid:mid]
	b.children = b.children[:mid+1 : mid+1]

	t.insertChild(b, promoted, right)
}

// insertChild promotes sep into left's parent with right as the new
// child immediately after left, creating a new root if left had none.
// Used both when a leaf splits (sep copies the right leaf's first
// key) and when an internal bucket splits (sep is the key removed
// from the middle, not duplicated into either half).
func (t *Tree) insertChild(left *bucket, sep IndexKey, right *bucket) {
	parent := left.parent
	if parent == nil {
		newRoot := &bucket{leaf: false, seps: []IndexKey{sep}, children: []*bucket{left, right}}
		left.parent = newRoot
		right.parent = newRoot
		t.root = newRoot
		return
	}

	idx := childPosition(parent, left)

	parent.seps = append(parent.seps, nil)
	copy(parent.seps[idx+1:], parent.seps[idx:])
	parent.seps[idx] = sep

	parent.children = append(parent.children, nil)
	copy(parent.children[idx+2:], parent.children[idx+1:])
	parent.children[idx+1] = right
	right.parent = parent

	if len(parent.children) <= t.order+1 {
		return
	}
	t.splitInternal(parent)
}

func childPosition(parent *bucket, child *bucket) int {
	for i, c := range parent.children {
		if c == child {
			return i
		}
	}
	return -1
}
