package btree

import (
	"testing"

	"github.com/jpl-au/stratum/bsondoc"
	"github.com/jpl-au/stratum/storage"
)

func intKey(n int32) IndexKey {
	return IndexKey{bsondoc.Value{Type: bsondoc.TypeInt32, Int32: n}}
}

func loc(n int64) storage.RecordLocation {
	return storage.RecordLocation{FileNum: 0, Offset: n}
}

func ascending() KeyPattern {
	return NewKeyPattern(KeyPart{Path: "a", Dir: Ascending})
}

// TestInsertLocateFindsExactKey checks that a key inserted into the
// tree is found by Locate afterward, at the bucket/position it was
// placed at.
func TestInsertLocateFindsExactKey(t *testing.T) {
	tr := New(ascending(), false)
	if err := tr.Insert(intKey(5), loc(100), false); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	pos, found := tr.Locate(intKey(5))
	if !found {
		t.Fatalf("expected key 5 to be found")
	}
	k, l, live := pos.Entry()
	if !live || l != loc(100) || compareKeys(ascending(), k, intKey(5)) != 0 {
		t.Fatalf("unexpected entry: key=%v loc=%v live=%v", k, l, live)
	}
}

// TestUniqueIndexRejectsDuplicateKey verifies that inserting a second,
// distinct location under an already-live key on a unique index fails.
func TestUniqueIndexRejectsDuplicateKey(t *testing.T) {
	tr := New(ascending(), true)
	if err := tr.Insert(intKey(1), loc(1), false); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tr.Insert(intKey(1), loc(2), false); err != ErrDuplicateKey {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

// TestUniqueIndexAllowsReplaceOfSamePair verifies the
// background-indexing allowance: re-inserting the exact same (key,
// loc) pair that is already live is a no-op, not a duplicate error.
func TestUniqueIndexAllowsReplaceOfSamePair(t *testing.T) {
	tr := New(ascending(), true)
	if err := tr.Insert(intKey(1), loc(1), false); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tr.Insert(intKey(1), loc(1), true); err != nil {
		t.Fatalf("expected replace of the same pair to succeed, got %v", err)
	}
}

// TestNonUniqueIndexAllowsRepeatedKeys verifies a non-unique index
// happily holds multiple locations under the same key.
func TestNonUniqueIndexAllowsRepeatedKeys(t *testing.T) {
	tr := New(ascending(), false)
	for i := int64(0); i < 5; i++ {
		if err := tr.Insert(intKey(7), loc(i), false); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	count := 0
	pos, ok := tr.First()
	for ok {
		if _, _, live := pos.Entry(); live {
			count++
		}
		pos, ok = tr.Advance(pos, Ascending)
	}
	if count != 5 {
		t.Fatalf("expected 5 live entries, got %d", count)
	}
}

// TestRemoveMarksUnusedRatherThanDeleting verifies that Remove leaves
// the slot in place (Locate still finds it, but Entry reports it not
// live) instead of physically removing it.
func TestRemoveMarksUnusedRatherThanDeleting(t *testing.T) {
	tr := New(ascending(), false)
	tr.Insert(intKey(3), loc(9), false)
	if err := tr.Remove(intKey(3), loc(9)); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	pos, found := tr.Locate(intKey(3))
	if !found {
		t.Fatalf("expected the unused entry to still be locatable")
	}
	_, _, live := pos.Entry()
	if live {
		t.Fatalf("expected the entry to be marked unused after Remove")
	}
}

// TestRemoveThenInsertReclaimsUnusedSlot verifies that inserting the
// same (key, loc) pair after removing it reuses the unused slot
// rather than growing the bucket with a second entry.
func TestRemoveThenInsertReclaimsUnusedSlot(t *testing.T) {
	tr := New(ascending(), false)
	tr.Insert(intKey(3), loc(9), false)
	tr.Remove(intKey(3), loc(9))
	if err := tr.Insert(intKey(3), loc(9), false); err != nil {
		t.Fatalf("Insert after Remove: %v", err)
	}

	live := 0
	pos, ok := tr.First()
	for ok {
		if _, _, l := pos.Entry(); l {
			live++
		}
		pos, ok = tr.Advance(pos, Ascending)
	}
	if live != 1 {
		t.Fatalf("expected exactly 1 live entry after reclaim, got %d", live)
	}
}

// TestAdvanceSkipsUnusedEntries verifies that a cursor walking forward
// never stops on a removed entry.
func TestAdvanceSkipsUnusedEntries(t *testing.T) {
	tr := New(ascending(), false)
	for i := int32(0); i < 5; i++ {
		tr.Insert(intKey(i), loc(int64(i)), false)
	}
	tr.Remove(intKey(2), loc(2))

	var seen []int32
	pos, ok := tr.First()
	for ok {
		k, _, live := pos.Entry()
		if live {
			seen = append(seen, k[0].Int32)
		}
		pos, ok = tr.Advance(pos, Ascending)
	}
	want := []int32{0, 1, 3, 4}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen = %v, want %v", seen, want)
		}
	}
}

// TestInsertManyKeysSplitsBucketsAndStaysOrdered inserts enough keys
// to force multiple bucket splits, then walks the whole tree forward
// and backward checking the sequence is fully sorted both ways.
func TestInsertManyKeysSplitsBucketsAndStaysOrdered(t *testing.T) {
	tr := New(ascending(), true)
	const n = 500
	order := []int32{3, 1, 4, 1, 5, 9, 2, 6} // seed, extended below
	_ = order
	perm := make([]int32, n)
	for i := range perm {
		perm[i] = int32(i)
	}
	// A simple deterministic shuffle so insertion order isn't sorted.
	for i := len(perm) - 1; i > 0; i-- {
		j := (i * 2654435761) % (i + 1)
		if j < 0 {
			j = -j
		}
		perm[i], perm[j] = perm[j], perm[i]
	}

	for _, v := range perm {
		if err := tr.Insert(intKey(v), loc(int64(v)), false); err != nil {
			t.Fatalf("Insert(%d): %v", v, err)
		}
	}

	pos, ok := tr.First()
	var prev int32 = -1
	count := 0
	for ok {
		k, _, live := pos.Entry()
		if live {
			if k[0].Int32 <= prev {
				t.Fatalf("out of order: %d after %d", k[0].Int32, prev)
			}
			prev = k[0].Int32
			count++
		}
		pos, ok = tr.Advance(pos, Ascending)
	}
	if count != n {
		t.Fatalf("forward walk visited %d entries, want %d", count, n)
	}

	pos, ok = tr.Last()
	prev = n
	count = 0
	for ok {
		k, _, live := pos.Entry()
		if live {
			if k[0].Int32 >= prev {
				t.Fatalf("out of order backward: %d after %d", k[0].Int32, prev)
			}
			prev = k[0].Int32
			count++
		}
		pos, ok = tr.Advance(pos, Descending)
	}
	if count != n {
		t.Fatalf("backward walk visited %d entries, want %d", count, n)
	}
}

// TestRemoveNonexistentReturnsNotFound checks the error path when the
// key exists but no entry matches the given location.
func TestRemoveNonexistentReturnsNotFound(t *testing.T) {
	tr := New(ascending(), false)
	tr.Insert(intKey(1), loc(1), false)
	if err := tr.Remove(intKey(1), loc(2)); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := tr.Remove(intKey(99), loc(1)); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}
}
