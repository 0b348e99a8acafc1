package btree

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/zeebo/xxh3"

	"github.com/jpl-au/stratum/bsondoc"
	"github.com/jpl-au/stratum/storage"
)

type buildState int32

const (
	buildRunning buildState = iota
	buildDone
)

// Builder drives a background index build: a snapshot scan of the
// collection proceeds while ordinary writes continue, and every
// concurrent write is mirrored into the tree under construction so
// nothing committed during the scan is lost. On completion the caller
// flips the collection's catalog bit to make the finished tree live.
//
// The running/done signal reuses folio repair.go's
// atomic-state-plus-condition-variable shape (db.state/db.cond):
// state changes are visible to a simple Load without holding a lock,
// while Done's Broadcast wakes anything parked waiting for the build
// to finish.
type Builder struct {
	tree  *Tree
	state atomic.Int32
	cond  *sync.Cond

	mu   sync.Mutex
	seen map[uint64]struct{}
}

// NewBuilder allocates the tree a background build will populate.
func NewBuilder(pattern KeyPattern, unique bool) *Builder {
	b := &Builder{
		tree: New(pattern, unique),
		cond: sync.NewCond(&sync.Mutex{}),
		seen: map[uint64]struct{}{},
	}
	b.state.Store(int32(buildRunning))
	return b
}

// Tree exposes the tree under construction so the caller can swap it
// in as the index's live tree once Done is called.
func (b *Builder) Tree() *Tree { return b.tree }

// Running reports whether the build is still accepting ScanInsert and
// Mirror calls.
func (b *Builder) Running() bool {
	return buildState(b.state.Load()) == buildRunning
}

// Done marks the build complete and wakes anything waiting on it.
func (b *Builder) Done() {
	b.cond.L.Lock()
	b.state.Store(int32(buildDone))
	b.cond.Broadcast()
	b.cond.L.Unlock()
}

// Wait blocks until Done is called.
func (b *Builder) Wait() {
	b.cond.L.Lock()
	for buildState(b.state.Load()) != buildDone {
		b.cond.Wait()
	}
	b.cond.L.Unlock()
}

// ScanInsert is called once per document by the snapshot scan driving
// the build.
func (b *Builder) ScanInsert(doc *bsondoc.Document, loc storage.RecordLocation) error {
	return b.insertOnce(doc, loc)
}

// Mirror is called by an ordinary write that commits while the build
// is in progress, so the tree under construction reflects writes the
// snapshot scan cannot see on its own.
func (b *Builder) Mirror(doc *bsondoc.Document, loc storage.RecordLocation) error {
	return b.insertOnce(doc, loc)
}

// MirrorRemove is called by a concurrent delete of a document the
// scan may or may not have already indexed.
func (b *Builder) MirrorRemove(doc *bsondoc.Document, loc storage.RecordLocation) {
	keys, _, err := ExtractKeys(doc, b.tree.pattern)
	if err != nil {
		return
	}
	for _, k := range keys {
		b.tree.Remove(k, loc)
	}
}

// insertOnce extracts and inserts doc's keys exactly once per
// location, regardless of whether ScanInsert or Mirror (or both,
// racing) call it for the same document. The xxh3 hash of the
// location is the dedup key — a fast, good-distribution fingerprint
// for a 12-byte value, not a cryptographic requirement, matching the
// role folio's default hash algorithm plays as a fast-path probe.
func (b *Builder) insertOnce(doc *bsondoc.Document, loc storage.RecordLocation) error {
	key := locationFingerprint(loc)

	b.mu.Lock()
	if _, dup := b.seen[key]; dup {
		b.mu.Unlock()
		return nil
	}
	b.seen[key] = struct{}{}
	b.mu.Unlock()

	keys, _, err := ExtractKeys(doc, b.tree.pattern)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := b.tree.Insert(k, loc, true); err != nil {
			return err
		}
	}
	return nil
}

func locationFingerprint(loc storage.RecordLocation) uint64 {
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(loc.FileNum))
	binary.LittleEndian.PutUint64(buf[4:12], uint64(loc.Offset))
	return xxh3.Hash(buf[:])
}
