package btree

import (
	"sync"
	"testing"
	"time"

	"github.com/jpl-au/stratum/bsondoc"
)

func docWithA(n int32) *bsondoc.Document {
	return bsondoc.New(bsondoc.F("a", bsondoc.Value{Type: bsondoc.TypeInt32, Int32: n}))
}

// TestBuilderScanInsertPopulatesTree checks the straight-line path: a
// snapshot scan with no concurrent writes populates the tree under
// construction.
func TestBuilderScanInsertPopulatesTree(t *testing.T) {
	b := NewBuilder(ascending(), false)
	for i := int32(0); i < 10; i++ {
		if err := b.ScanInsert(docWithA(i), loc(int64(i))); err != nil {
			t.Fatalf("ScanInsert(%d): %v", i, err)
		}
	}
	count := 0
	pos, ok := b.Tree().First()
	for ok {
		if _, _, live := pos.Entry(); live {
			count++
		}
		pos, ok = b.Tree().Advance(pos, Ascending)
	}
	if count != 10 {
		t.Fatalf("expected 10 entries, got %d", count)
	}
}

// TestBuilderDedupsScanAndMirrorOfSameLocation verifies that a
// document observed by both the snapshot scan and a concurrently
// mirrored write (the same underlying record location) is only
// inserted into the tree once.
func TestBuilderDedupsScanAndMirrorOfSameLocation(t *testing.T) {
	b := NewBuilder(ascending(), false)
	l := loc(42)
	doc := docWithA(7)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); b.ScanInsert(doc, l) }()
	go func() { defer wg.Done(); b.Mirror(doc, l) }()
	wg.Wait()

	count := 0
	pos, ok := b.Tree().First()
	for ok {
		if _, _, live := pos.Entry(); live {
			count++
		}
		pos, ok = b.Tree().Advance(pos, Ascending)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 entry after racing scan+mirror of the same location, got %d", count)
	}
}

// TestBuilderMirrorRemoveRetractsAnAlreadyIndexedDocument checks that
// a delete mirrored during the build removes the entry the scan had
// already inserted.
func TestBuilderMirrorRemoveRetractsAnAlreadyIndexedDocument(t *testing.T) {
	b := NewBuilder(ascending(), false)
	l := loc(1)
	doc := docWithA(3)

	if err := b.ScanInsert(doc, l); err != nil {
		t.Fatalf("ScanInsert: %v", err)
	}
	b.MirrorRemove(doc, l)

	pos, found := b.Tree().Locate(intKey(3))
	if !found {
		t.Fatalf("expected the removed entry to still be locatable (logical delete)")
	}
	_, _, live := pos.Entry()
	if live {
		t.Fatalf("expected the entry to be marked unused after MirrorRemove")
	}
}

// TestBuilderRunningDoneWait exercises the running/done signal: a
// goroutine parked in Wait is released once Done is called, and
// Running flips to false at the same time.
func TestBuilderRunningDoneWait(t *testing.T) {
	b := NewBuilder(ascending(), false)
	if !b.Running() {
		t.Fatalf("expected a fresh builder to be running")
	}

	released := make(chan struct{})
	go func() {
		b.Wait()
		close(released)
	}()

	select {
	case <-released:
		t.Fatalf("Wait returned before Done was called")
	case <-time.After(20 * time.Millisecond):
	}

	b.Done()

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatalf("Wait did not return after Done")
	}
	if b.Running() {
		t.Fatalf("expected Running to be false after Done")
	}
}

// TestBuilderInsertOnceSurfacesExtractionErrors checks that
// ScanInsert propagates ErrCannotIndex from a document whose shape
// can't be indexed, rather than silently dropping it.
func TestBuilderInsertOnceSurfacesExtractionErrors(t *testing.T) {
	pattern := NewKeyPattern(
		KeyPart{Path: "a", Dir: Ascending},
		KeyPart{Path: "b", Dir: Ascending},
	)
	b := NewBuilder(pattern, false)
	doc := bsondoc.New(
		bsondoc.F("a", arrayOf(i32(1), i32(2))),
		bsondoc.F("b", arrayOf(i32(3), i32(4))),
	)
	if err := b.ScanInsert(doc, loc(1)); err != ErrCannotIndex {
		t.Fatalf("expected ErrCannotIndex, got %v", err)
	}
}
