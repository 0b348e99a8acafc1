package shard

import "github.com/jpl-au/stratum/bsondoc"

// MaxChunkSize is the nominal chunk size target, in bytes of document
// data written. It is nominal rather than enforced exactly: Track is
// called once per write with that write's approximate document size,
// not recalculated from the chunk's true on-disk footprint, so a
// chunk can overshoot before a split is attempted.
const MaxChunkSize = 64 << 20

// autoSplitThreshold is the fraction of MaxChunkSize at which a write
// triggers a split attempt, matching the standard moveChunk heuristic
// of splitting well before the hard cap so the two halves land
// comfortably under it even under a write burst.
const autoSplitThreshold = MaxChunkSize / 5

// Track records approximate bytes written to chunk c since its last
// split, for the auto-split heuristic in ShouldAutoSplit. It is
// called on the hot write path, so it only bumps an atomic counter —
// no lock, no persistence. Losing a few counted writes to a race with
// a concurrent split (which resets the counter on the post-split
// chunks) only delays a split attempt by one more write; it can never
// corrupt the partition, since the partition itself is protected by
// Manager's own lock.
func (c *Chunk) Track(bytesWritten int) {
	c.dataWritten.Add(int64(bytesWritten))
}

// ShouldAutoSplit reports whether c has accumulated enough tracked
// writes to warrant attempting a split. Callers that act on a true
// result should reset the counter (via ResetTracking) once the split
// attempt completes, whether it succeeded or failed with
// ErrCannotSplit, so a chunk that genuinely cannot be split (e.g. all
// its documents share one shard-key value) does not retry on every
// subsequent write.
func (c *Chunk) ShouldAutoSplit() bool {
	return c.dataWritten.Load() > autoSplitThreshold
}

// ResetTracking zeroes the auto-split counter, e.g. after a split
// attempt (successful or not) or after an external migration resets
// the chunk's effective size.
func (c *Chunk) ResetTracking() {
	c.dataWritten.Store(0)
}

// PostSplitMigrationCandidate reports whether chunk c — freshly
// produced by a split — sits at an extreme edge of the whole key
// range and so is a reasonable candidate for an immediate
// auto-migration to a lighter-loaded shard: new chunks at the very
// top or bottom of the range are where a monotonically increasing or
// decreasing shard key concentrates all new writes, and leaving the
// chunk in place just re-triggers another split shortly after.
func PostSplitMigrationCandidate(c *Chunk) bool {
	return bsondoc.Compare(c.Min, MinKey) == 0 || bsondoc.Compare(c.Max, MaxKey) == 0
}
