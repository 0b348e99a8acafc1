package storage

// Free-list bucket sizes: a geometric series from 32 B to 16 MB.
var bucketSizes = func() []int32 {
	var sizes []int32
	for s := int32(32); s <= 16*1024*1024; s *= 2 {
		sizes = append(sizes, s)
	}
	return sizes
}()

// maxBestFitScan bounds how many nodes of a bucket are inspected
// before falling through to the next bucket.
const maxBestFitScan = 8

// bucketFor returns the index of the smallest bucket able to hold a
// record of the given size.
func bucketFor(size int32) int {
	for i, b := range bucketSizes {
		if size <= b {
			return i
		}
	}
	return len(bucketSizes) - 1
}

// deletedNode is an in-memory mirror of a deleted-record slot: the
// same header shape as a live record (recordHeader). The persisted
// extent bytes carry the identical header so a reopen's rescan can
// rebuild this structure from disk (see Store.rebuildRecordChain).
type deletedNode struct {
	Loc  RecordLocation
	Size int32
}

// freeList holds one bucket of deleted-record slots per size class
// for a collection.
type freeList struct {
	buckets [][]*deletedNode // buckets[i] holds nodes in the order add appended them; bestFit scans from the front
}

func newFreeList() *freeList {
	return &freeList{buckets: make([][]*deletedNode, len(bucketSizes))}
}

// bestFit scans up to maxBestFitScan nodes of the smallest bucket that
// could fit size, then — if nothing that deep fits — walks up through
// larger buckets. Returns nil if no node anywhere is big enough.
func (fl *freeList) bestFit(size int32) *deletedNode {
	start := bucketFor(size)
	for bi := start; bi < len(fl.buckets); bi++ {
		bucket := fl.buckets[bi]
		limit := len(bucket)
		if limit > maxBestFitScan {
			limit = maxBestFitScan
		}
		for i := 0; i < limit; i++ {
			if bucket[i].Size >= size {
				n := bucket[i]
				fl.buckets[bi] = append(bucket[:i], bucket[i+1:]...)
				return n
			}
		}
	}
	return nil
}

// add inserts a deleted-record node into its size-class bucket.
// Coalescing with an adjacent deleted record in the same extent is
// the caller's responsibility (extent-local adjacency isn't visible
// to the free list itself) — see Store.Remove.
func (fl *freeList) add(n *deletedNode) {
	bi := bucketFor(n.Size)
	fl.buckets[bi] = append(fl.buckets[bi], n)
}

// take removes and returns the node at loc, or nil if no such node is
// currently free. Used both for the best-fit split's tail bookkeeping
// and for coalescing an adjacent deleted record on Remove.
func (fl *freeList) take(loc RecordLocation) *deletedNode {
	for bi, bucket := range fl.buckets {
		for i, n := range bucket {
			if n.Loc == loc {
				fl.buckets[bi] = append(bucket[:i], bucket[i+1:]...)
				return n
			}
		}
	}
	return nil
}

// splitThreshold is the minimum slack (bytes beyond the requested
// size) worth carving back into the free list as its own node.
const splitThreshold = recordHeaderSize + 32
