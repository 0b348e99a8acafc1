package storage

import (
	"bytes"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), "testdb")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestInsertGetRoundTrip verifies that a document inserted into a
// fresh collection can be read back byte-for-byte at the location
// Insert returned.
func TestInsertGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	doc := []byte("hello world, this is a test document")

	loc, err := s.Insert("widgets", doc)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := s.Get(loc)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, doc) {
		t.Fatalf("round trip mismatch: got %q want %q", got, doc)
	}
}

// TestInsertRejectsOversizeDocument checks that a document larger than
// the configured maximum record size is refused outright rather than
// silently truncated or allocated across extents.
func TestInsertRejectsOversizeDocument(t *testing.T) {
	s := openTestStore(t)
	s.maxRecord = 16

	_, err := s.Insert("widgets", make([]byte, 64))
	if err != ErrOversize {
		t.Fatalf("expected ErrOversize, got %v", err)
	}
}

// TestScanVisitsInsertedDocumentsInOrder inserts several documents and
// checks that a forward Scan visits exactly those documents, in
// insertion order, and a Backward scan visits them in reverse.
func TestScanVisitsInsertedDocumentsInOrder(t *testing.T) {
	s := openTestStore(t)
	want := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, d := range want {
		if _, err := s.Insert("seq", d); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	var got [][]byte
	if err := s.Scan("seq", Forward, func(_ RecordLocation, doc []byte) bool {
		got = append(got, append([]byte(nil), doc...))
		return true
	}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Fatalf("record %d: got %q want %q", i, got[i], want[i])
		}
	}

	var rev [][]byte
	s.Scan("seq", Backward, func(_ RecordLocation, doc []byte) bool {
		rev = append(rev, append([]byte(nil), doc...))
		return true
	})
	for i := range want {
		if !bytes.Equal(rev[i], want[len(want)-1-i]) {
			t.Fatalf("backward record %d: got %q want %q", i, rev[i], want[len(want)-1-i])
		}
	}
}

// TestRemoveSkipsDeletedRecordsOnScan verifies that a removed record
// is absent from subsequent scans even though its slot remains
// physically present (and chained) for the free list to reuse.
func TestRemoveSkipsDeletedRecordsOnScan(t *testing.T) {
	s := openTestStore(t)
	locA, _ := s.Insert("things", []byte("alpha"))
	_, _ = s.Insert("things", []byte("beta"))
	_, _ = s.Insert("things", []byte("gamma"))

	if err := s.Remove("things", locA); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	var seen []string
	s.Scan("things", Forward, func(_ RecordLocation, doc []byte) bool {
		seen = append(seen, string(doc))
		return true
	})
	if len(seen) != 2 || seen[0] != "beta" || seen[1] != "gamma" {
		t.Fatalf("unexpected scan result after remove: %v", seen)
	}
}

// TestRemoveAndReinsertReusesFreedSlot exercises the best-fit free-list
// path: after removing a record, inserting another of similar size
// should be placed back into the freed slot rather than growing the
// extent.
func TestRemoveAndReinsertReusesFreedSlot(t *testing.T) {
	s := openTestStore(t)
	doc := bytes.Repeat([]byte("x"), 100)
	loc, _ := s.Insert("reuse", doc)
	if err := s.Remove("reuse", loc); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	loc2, err := s.Insert("reuse", doc)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if loc2 != loc {
		t.Fatalf("expected reinsert to reuse freed slot %v, got %v", loc, loc2)
	}
}

// TestUpdateInPlaceAdjustsPaddingDown checks that an update which fits
// within the existing slot writes in place (same location) and
// gradually relaxes the padding factor.
func TestUpdateInPlaceAdjustsPaddingDown(t *testing.T) {
	s := openTestStore(t)
	c := s.Collection("padded")
	c.PaddingFactor = 1.5

	loc, _ := s.Insert("padded", []byte("short"))
	newLoc, err := s.Update("padded", loc, []byte("tiny"))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if newLoc != loc {
		t.Fatalf("expected in-place update to keep location %v, got %v", loc, newLoc)
	}
	if c.PaddingFactor >= 1.5 {
		t.Fatalf("expected padding factor to shrink below 1.5, got %v", c.PaddingFactor)
	}
}

// TestUpdateOutOfPlaceGrowsPaddingAndMoves verifies that growing a
// document beyond its slot's capacity relocates it and bumps the
// padding factor upward, per the allocator's boundary behavior.
func TestUpdateOutOfPlaceGrowsPaddingAndMoves(t *testing.T) {
	s := openTestStore(t)
	c := s.Collection("grow")

	loc, _ := s.Insert("grow", []byte("x"))
	big := bytes.Repeat([]byte("y"), 10_000)
	newLoc, err := s.Update("grow", loc, big)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if newLoc == loc {
		t.Fatalf("expected out-of-place update to relocate the record")
	}
	if c.PaddingFactor <= 1.0 {
		t.Fatalf("expected padding factor to grow above 1.0, got %v", c.PaddingFactor)
	}

	got, err := s.Get(newLoc)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, big) {
		t.Fatalf("relocated document mismatch")
	}
}

// TestCappedRingWrapsAndEvictsOldest exercises the capped-collection
// allocator: once the ring fills, the oldest record is silently
// dropped to make room for the newest, and the hook installed via
// SetCappedDeleteHook observes every eviction.
func TestCappedRingWrapsAndEvictsOldest(t *testing.T) {
	s := openTestStore(t)
	s.MakeCapped("ring", 0, true)

	var evicted []string
	s.SetCappedDeleteHook(func(_ string, _ RecordLocation, doc []byte) {
		evicted = append(evicted, string(doc))
	})

	doc := bytes.Repeat([]byte("r"), 200)
	var firstLoc RecordLocation
	for i := 0; i < 400; i++ {
		loc, err := s.Insert("ring", doc)
		if err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
		if i == 0 {
			firstLoc = loc
		}
	}

	if len(evicted) == 0 {
		t.Fatalf("expected the ring to have wrapped and evicted at least one record")
	}
	_ = firstLoc
}

// TestCappedNoDeleteReportsFullOnWrap verifies that a capped
// collection created with deletion disallowed refuses further writes
// once the ring would have to overwrite a live record, rather than
// silently discarding data.
func TestCappedNoDeleteReportsFullOnWrap(t *testing.T) {
	s := openTestStore(t)
	s.MakeCapped("strict", 0, false)

	doc := bytes.Repeat([]byte("z"), 500)
	var lastErr error
	for i := 0; i < 500; i++ {
		_, lastErr = s.Insert("strict", doc)
		if lastErr != nil {
			break
		}
	}
	if lastErr != ErrCappedFull {
		t.Fatalf("expected ErrCappedFull once the ring wrapped, got %v", lastErr)
	}
}

// TestBackupRestoreRoundTrip checks that every live document survives
// a Backup/Restore cycle, in the same order Scan would produce.
func TestBackupRestoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	docs := [][]byte{[]byte("un"), []byte("deux"), []byte("trois")}
	for _, d := range docs {
		if _, err := s.Insert("export", d); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	dir := t.TempDir()
	root := openTestRoot(t, dir)
	if err := s.Backup(root, "export", "export.bak"); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	var restored [][]byte
	err := Restore(root, "export.bak", func(doc []byte) error {
		restored = append(restored, append([]byte(nil), doc...))
		return nil
	})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(restored) != len(docs) {
		t.Fatalf("got %d restored docs, want %d", len(restored), len(docs))
	}
	for i := range docs {
		if !bytes.Equal(restored[i], docs[i]) {
			t.Fatalf("restored doc %d mismatch: got %q want %q", i, restored[i], docs[i])
		}
	}
}
