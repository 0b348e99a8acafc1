package btree

import "github.com/jpl-au/stratum/storage"

// Remove marks the entry matching (key, loc) unused. It does not
// physically remove the slot or trigger any rebalancing — the next
// Insert into the same bucket compacts it away if that insert would
// otherwise force a split.
func (t *Tree) Remove(key IndexKey, loc storage.RecordLocation) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, found := t.locate(key)
	if !found {
		return ErrNotFound
	}
	b := pos.bucket
	for i := pos.index; i < len(b.entries) && compareKeys(t.pattern, b.entries[i].Key, key) == 0; i++ {
		e := b.entries[i]
		if !e.Unused && e.Loc == loc {
			e.Unused = true
			return nil
		}
	}
	return ErrNotFound
}
