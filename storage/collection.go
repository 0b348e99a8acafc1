package storage

import "sync"

// Collection flag bits.
const (
	FlagCapped uint32 = 1 << iota
	FlagCappedNoDelete
	FlagHasIDIndex
	FlagBackgroundIndexBuild
)

const maxIndexesPerCollection = 40 // 10 inline + 30 overflow

// IndexSlot is an index descriptor as stored in the collection
// header; the B-tree or geo index itself lives in package btree/geo
// and is looked up by Name from there. GeoXPath/GeoYPath/GeoRangeMin/
// GeoRangeMax/GeoBits are only meaningful when Is2D is set — they are
// what a reopened database needs to reconstruct a geo.Index without
// the caller re-declaring its coordinate bounds.
type IndexSlot struct {
	Name       string
	KeyPattern []KeyPart
	Unique     bool
	Is2D       bool

	GeoXPath    string
	GeoYPath    string
	GeoRangeMin float64
	GeoRangeMax float64
	GeoBits     uint
}

// KeyPart is one (field path, direction) pair of an index's key
// pattern.
type KeyPart struct {
	Field     string
	Ascending bool
}

// Collection is the in-memory mirror of a namespace catalog entry's
// collection header: extent list bounds, record/byte counts, padding
// factor, index slots, flags, and (for capped collections) the ring's
// write cursor and wrap state.
type Collection struct {
	mu sync.RWMutex

	Name          string
	FirstExtent   RecordLocation
	LastExtent    RecordLocation
	RecordCount   int64
	ByteCount     int64
	PaddingFactor float64
	Indexes       []IndexSlot
	Flags         uint32
	MultiKeyBits  uint64 // one bit per index slot

	// Capped-collection ring state.
	CappedMaxBytes int64
	CappedWriteLoc RecordLocation // next write position
	CappedFirstNew RecordLocation // invalid while still in first pass
	CappedWrapped  bool

	free    *freeList
	extents []*extentRuntime // runtime mirror of the on-disk extent chain, in list order
}

// extentRuntime is the in-memory counterpart of an on-disk extentHeader:
// the header bytes are the durable truth (and what crash recovery
// walks), this struct is a speed/ease-of-bookkeeping cache the Store
// rebuilds by scanning extents on Open.
type extentRuntime struct {
	loc      RecordLocation // location of the extent header itself
	fileNum  int32
	dataOff  int64 // offset of the first usable (post-header) byte
	length   int64 // total extent length, including header
	used     int64 // bytes consumed for records, relative to dataOff
	firstRec RecordLocation
	lastRec  RecordLocation
}

func (e *extentRuntime) freeBytes() int64 {
	return e.length - extentHeaderSize - e.used
}

// NewCollection constructs an empty, uncapped collection header.
func NewCollection(name string) *Collection {
	return &Collection{
		Name:           name,
		FirstExtent:    NullLocation,
		LastExtent:     NullLocation,
		PaddingFactor:  1.0,
		CappedWriteLoc: NullLocation,
		CappedFirstNew: NullLocation,
		free:           newFreeList(),
	}
}

// Snapshot captures c's durable fields as a CollectionHeader, for the
// Store to persist into the namespace catalog after a structural
// change (insert, update, remove, capping).
func (c *Collection) Snapshot() CollectionHeader {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CollectionHeader{
		FirstExtent:    c.FirstExtent,
		LastExtent:     c.LastExtent,
		RecordCount:    c.RecordCount,
		ByteCount:      c.ByteCount,
		PaddingFactor:  c.PaddingFactor,
		Indexes:        append([]IndexSlot(nil), c.Indexes...),
		Flags:          c.Flags,
		MultiKeyBits:   c.MultiKeyBits,
		CappedMaxBytes: c.CappedMaxBytes,
		CappedWriteLoc: c.CappedWriteLoc,
		CappedFirstNew: c.CappedFirstNew,
		CappedWrapped:  c.CappedWrapped,
	}
}

// applyHeader seeds a freshly constructed Collection's scalar fields
// from a header loaded out of the catalog. The extent list and free
// list are not part of hdr — Store.Collection rebuilds those
// separately by walking the on-disk extent chain starting at
// hdr.FirstExtent, since that chain (not the cached counters) is the
// durable truth a crash could have left the counters behind.
func (c *Collection) applyHeader(hdr CollectionHeader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FirstExtent = hdr.FirstExtent
	c.LastExtent = hdr.LastExtent
	c.RecordCount = hdr.RecordCount
	c.ByteCount = hdr.ByteCount
	c.PaddingFactor = hdr.PaddingFactor
	c.Indexes = append([]IndexSlot(nil), hdr.Indexes...)
	c.Flags = hdr.Flags
	c.MultiKeyBits = hdr.MultiKeyBits
	c.CappedMaxBytes = hdr.CappedMaxBytes
	c.CappedWriteLoc = hdr.CappedWriteLoc
	c.CappedFirstNew = hdr.CappedFirstNew
	c.CappedWrapped = hdr.CappedWrapped
}

// IsCapped reports whether the capped flag is set.
func (c *Collection) IsCapped() bool { return c.Flags&FlagCapped != 0 }

// CappedDeleteAllowed reports whether the capped-no-delete flag is
// clear, i.e. whether the ring is allowed to overwrite old records.
func (c *Collection) CappedDeleteAllowed() bool { return c.Flags&FlagCappedNoDelete == 0 }

// AddIndexSlot appends slot to the collection's index descriptor list
// and returns its slot number, for IsMultiKey/SetMultiKey to address
// later. The live index (B-tree or 2D index) itself lives outside
// this package and is looked up by slot.Name from there.
func (c *Collection) AddIndexSlot(slot IndexSlot) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Indexes = append(c.Indexes, slot)
	return len(c.Indexes) - 1
}

// IndexSlots returns a copy of the collection's current index
// descriptors.
func (c *Collection) IndexSlots() []IndexSlot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]IndexSlot, len(c.Indexes))
	copy(out, c.Indexes)
	return out
}

// SetMultiKey sets the multi-key bit for the index at slot i: it is
// set iff some document has produced >= 2 keys for that index, and is
// never cleared automatically (a later document with a scalar value
// does not retroactively unset it for documents already indexed).
func (c *Collection) SetMultiKey(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MultiKeyBits |= 1 << uint(i)
}

// IsMultiKey reports the multi-key bit for index slot i.
func (c *Collection) IsMultiKey(i int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.MultiKeyBits&(1<<uint(i)) != 0
}

// adjustPaddingOnMove grows the padding factor after an out-of-place
// update (record no longer fit its slot), capped at 2.0.
func (c *Collection) adjustPaddingOnMove() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PaddingFactor += 0.6
	if c.PaddingFactor > 2.0 {
		c.PaddingFactor = 2.0
	}
}

// adjustPaddingOnCleanFit shrinks the padding factor after an
// in-place update that fit cleanly, floored at 1.0.
func (c *Collection) adjustPaddingOnCleanFit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PaddingFactor -= 0.01
	if c.PaddingFactor < 1.0 {
		c.PaddingFactor = 1.0
	}
}

// cappedCapacity sums the length of every extent currently allocated
// to the collection. Callers must hold c.mu.
func (c *Collection) cappedCapacity() int64 {
	var total int64
	for _, e := range c.extents {
		total += e.length
	}
	return total
}

// paddedSize returns the allocation size for a record of raw
// documentSize bytes once the collection's current padding factor is
// applied: the padded size is truncated to whole bytes, is never less
// than documentSize, and has the record header size added.
func (c *Collection) paddedSize(documentSize int32) int32 {
	c.mu.RLock()
	pf := c.PaddingFactor
	c.mu.RUnlock()
	padded := int32(float64(documentSize) * pf)
	if padded < documentSize {
		padded = documentSize
	}
	return recordHeaderSize + padded
}
