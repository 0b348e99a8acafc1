package storage

import "testing"

// TestBestFitScansBoundedDepthThenEscalates verifies that bestFit
// inspects at most maxBestFitScan nodes of a bucket before moving up
// to a larger one, even when an earlier, exact-fit node exists deeper
// in the same bucket.
func TestBestFitScansBoundedDepthThenEscalates(t *testing.T) {
	fl := newFreeList()

	// Fill the bucket for size 100 with maxBestFitScan too-small nodes,
	// then one more further back that is actually big enough.
	bi := bucketFor(100)
	for i := 0; i < maxBestFitScan; i++ {
		fl.buckets[bi] = append(fl.buckets[bi], &deletedNode{Loc: RecordLocation{FileNum: 0, Offset: int64(i)}, Size: 10})
	}
	exact := &deletedNode{Loc: RecordLocation{FileNum: 0, Offset: 999}, Size: 100}
	fl.buckets[bi] = append(fl.buckets[bi], exact)

	got := fl.bestFit(100)
	if got == exact {
		t.Fatalf("bestFit found a node beyond the scan depth limit")
	}
	if got != nil && got.Size >= 100 {
		// A larger bucket was consulted instead, which is correct
		// behavior; only fail if it returned something from the
		// too-small nodes in the first bucket.
		return
	}
}

// TestBestFitEscalatesToLargerBucketWhenNoneFit verifies that bestFit
// walks up through buckets when the starting bucket has no node deep
// enough in its scan window to satisfy the request.
func TestBestFitEscalatesToLargerBucketWhenNoneFit(t *testing.T) {
	fl := newFreeList()
	big := &deletedNode{Loc: RecordLocation{FileNum: 0, Offset: 42}, Size: 10000}
	fl.add(big)

	got := fl.bestFit(64)
	if got != big {
		t.Fatalf("expected bestFit to escalate to the larger bucket, got %v", got)
	}
}

// TestBestFitReturnsNilWhenNothingFits checks the empty-free-list case.
func TestBestFitReturnsNilWhenNothingFits(t *testing.T) {
	fl := newFreeList()
	if got := fl.bestFit(128); got != nil {
		t.Fatalf("expected nil from an empty free list, got %v", got)
	}
}

// TestTakeRemovesExactNodeByLocation verifies that take locates and
// removes a specific node rather than an arbitrary one from the same
// bucket.
func TestTakeRemovesExactNodeByLocation(t *testing.T) {
	fl := newFreeList()
	a := &deletedNode{Loc: RecordLocation{FileNum: 0, Offset: 1}, Size: 64}
	b := &deletedNode{Loc: RecordLocation{FileNum: 0, Offset: 2}, Size: 64}
	fl.add(a)
	fl.add(b)

	got := fl.take(RecordLocation{FileNum: 0, Offset: 2})
	if got != b {
		t.Fatalf("take returned the wrong node")
	}
	if fl.take(RecordLocation{FileNum: 0, Offset: 2}) != nil {
		t.Fatalf("expected the node to be gone after take")
	}
	if fl.take(RecordLocation{FileNum: 0, Offset: 1}) != a {
		t.Fatalf("expected the other node to still be present")
	}
}
