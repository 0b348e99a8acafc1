package shard

import (
	"sort"

	"github.com/jpl-au/stratum/bsondoc"
)

// SplitPoint picks the key at which a chunk should be divided in two,
// given the approximate per-key counts the shard gathered while
// scanning the chunk (coarser than an exact median, cheap to compute
// from an index's natural key order). If the computed median equals
// the chunk's own Min — the common case for a monotonically
// increasing shard key, where every insert lands at the top of the
// last chunk — the split point falls back to the chunk's highest
// observed key instead, so the split still produces two non-empty
// halves rather than an empty lower chunk forever.
func SplitPoint(c *Chunk, sampleKeys []bsondoc.Value) (bsondoc.Value, error) {
	if len(sampleKeys) == 0 {
		return bsondoc.Value{}, ErrCannotSplit
	}
	sorted := append([]bsondoc.Value(nil), sampleKeys...)
	sort.Slice(sorted, func(i, j int) bool { return bsondoc.Compare(sorted[i], sorted[j]) < 0 })

	mid := sorted[len(sorted)/2]
	if bsondoc.Compare(mid, c.Min) == 0 {
		mid = sorted[len(sorted)-1]
	}
	if bsondoc.Compare(mid, c.Min) <= 0 || bsondoc.Compare(mid, c.Max) >= 0 {
		return bsondoc.Value{}, ErrCannotSplit
	}
	return mid, nil
}

// Split divides chunk c at splitPoint into two chunks, [c.Min,
// splitPoint) and [splitPoint, c.Max), both initially owned by c's
// current shard (a split never itself moves data between shards —
// that is migrate.go's job). Both halves receive the collection's
// next version; the lower half keeps c's identity and gets
// Version.Next(), the upper half is a new chunk at the same version,
// matching "every mutation increments collection-version.major by 1"
// applying once per split, not once per resulting chunk.
//
// The caller is expected to be holding the collection's distributed
// config-store lock for the duration of the split; Split itself only
// mutates the in-memory manager state and returns the two resulting
// chunks for the caller to persist.
func (m *Manager) Split(c *Chunk, splitPoint bsondoc.Value) (lower, upper *Chunk, err error) {
	if bsondoc.Compare(splitPoint, c.Min) <= 0 || bsondoc.Compare(splitPoint, c.Max) >= 0 {
		return nil, nil, ErrCannotSplit
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexOf(c)
	if idx < 0 {
		return nil, nil, ErrNoChunkForKey
	}

	next := m.collVer.Next()
	upperChunk := &Chunk{Min: splitPoint, Max: c.Max, Shard: c.Shard, Version: next}
	c.Max = splitPoint
	c.Version = next

	rest := append([]*Chunk{upperChunk}, m.chunks[idx+1:]...)
	m.chunks = append(m.chunks[:idx+1:idx+1], rest...)
	m.collVer = next

	return c, upperChunk, nil
}
