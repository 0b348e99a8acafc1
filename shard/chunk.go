// Package shard implements the routing table and chunk lifecycle for
// a sharded collection: an ordered, gap-free partition of the
// collection's shard-key space into chunks, each owned by exactly one
// shard, plus the split/migrate/auto-split operations that keep that
// partition balanced.
package shard

import (
	"sync/atomic"

	"github.com/jpl-au/stratum/bsondoc"
)

// MinKey and MaxKey are the global sentinel bounds: the first chunk's
// Min is always MinKey, the last chunk's Max is always MaxKey. They
// reuse bsondoc's own MinKey/MaxKey types, which already compare
// below/above every other value in bsondoc.Compare's canonical rank
// order — exactly the property a sentinel bound needs.
var (
	MinKey = bsondoc.Value{Type: bsondoc.TypeMinKey}
	MaxKey = bsondoc.Value{Type: bsondoc.TypeMaxKey}
)

// Version is a chunk or collection version: a (major, minor) pair
// that increases monotonically with every chunk mutation. Comparison
// is lexicographic on (Major, Minor).
type Version struct {
	Major int64
	Minor int64
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater
// than other.
func (v Version) Compare(other Version) int {
	switch {
	case v.Major != other.Major:
		if v.Major < other.Major {
			return -1
		}
		return 1
	case v.Minor != other.Minor:
		if v.Minor < other.Minor {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// Next returns the version produced by a chunk mutation: major bumped
// by one, minor reset to zero — matching "every chunk mutation
// increments collection-version.major by 1".
func (v Version) Next() Version {
	return Version{Major: v.Major + 1, Minor: 0}
}

// Chunk is a half-open key range [Min, Max) of a sharded collection's
// shard-key space, owned by exactly one shard.
type Chunk struct {
	Min, Max bsondoc.Value
	Shard    string
	Version  Version

	// dataWritten is the auto-split trigger's rough byte counter; see
	// autosplit.go. It is deliberately unlocked — see that file's
	// comment for why approximate correctness is acceptable here.
	dataWritten atomic.Int64
}

// contains reports whether key falls in [Min, Max).
func (c *Chunk) contains(key bsondoc.Value) bool {
	return bsondoc.Compare(key, c.Min) >= 0 && bsondoc.Compare(key, c.Max) < 0
}

// overlapsRange reports whether [lo, hi) intersects [c.Min, c.Max) at
// all — used by getChunksForQuery.
func (c *Chunk) overlapsRange(lo, hi bsondoc.Value) bool {
	return bsondoc.Compare(lo, c.Max) < 0 && bsondoc.Compare(hi, c.Min) > 0
}

// Clone returns a value copy suitable for handing to a caller outside
// the manager's lock — the atomic counter is reset on the copy since
// it has no meaning detached from the live chunk.
func (c *Chunk) Clone() *Chunk {
	return &Chunk{Min: c.Min, Max: c.Max, Shard: c.Shard, Version: c.Version}
}
