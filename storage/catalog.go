package storage

import (
	"encoding/binary"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
)

// Namespace catalog: an on-disk open-addressing hash table keyed by
// 128-byte null-padded collection names. Each bucket holds a
// ~512-byte region that stores the namespace's collection header —
// extent-chain bounds, record/byte counts, padding factor, index
// descriptors, and flags — as a length-prefixed JSON document, the
// catalog's "value" per the namespace-catalog design. A collection
// small enough to describe in under catalogHeaderSize bytes (ten-odd
// indexes' worth) fits inline; SaveHeader reports an error rather than
// truncating one that doesn't.
const (
	catalogKeySize       = 128
	catalogBucketCount   = 2048 // power of two, fixed: Insert reports the catalog full when its probe finds no empty slot
	catalogHeaderSize    = 512
	catalogInlineIndexes = 10
	catalogOverflowSlots = 30
)

// CollectionHeader is the durable projection of a Collection's state:
// everything SaveHeader/LoadHeader need to round-trip a namespace's
// catalog entry across a process restart. Store.Collection reloads one
// of these (when present) and replays the on-disk extent chain from
// FirstExtent to rebuild the in-memory free list and record/byte
// counts, rather than trusting the cached scalars by themselves.
type CollectionHeader struct {
	FirstExtent    RecordLocation
	LastExtent     RecordLocation
	RecordCount    int64
	ByteCount      int64
	PaddingFactor  float64
	Indexes        []IndexSlot
	Flags          uint32
	MultiKeyBits   uint64
	CappedMaxBytes int64
	CappedWriteLoc RecordLocation
	CappedFirstNew RecordLocation
	CappedWrapped  bool
}

const (
	catalogSlotEmpty byte = iota
	catalogSlotUsed
	catalogSlotTombstone
)

// catalogHash implements this exact formula: x ← 131·x + c for
// every byte c of the key, with the high bit forced set so a
// legitimate hash value is never confused with the zero used to mark
// an empty bucket.
func catalogHash(key []byte) uint32 {
	var x uint32
	for _, c := range key {
		x = 131*x + uint32(c)
	}
	return x | 0x80000000
}

// Catalog is the namespace directory for one database: which
// collections exist, and where their headers live on disk.
type Catalog struct {
	root *os.Root
	file *os.File

	// slots mirrors the on-disk bucket array: state + hash + key, used
	// for fast lookup without re-reading headers from disk on every
	// probe. The full ~512B header is read on demand by LoadHeader.
	slots []catalogSlot
}

type catalogSlot struct {
	state byte
	hash  uint32
	key   [catalogKeySize]byte
}

const catalogSlotRecordSize = 1 + 4 + catalogKeySize + catalogHeaderSize

func nsKeyBytes(name string) ([catalogKeySize]byte, error) {
	var out [catalogKeySize]byte
	if len(name) >= catalogKeySize {
		return out, fmt.Errorf("storage: namespace name %q exceeds %d bytes", name, catalogKeySize-1)
	}
	copy(out[:], name)
	return out, nil
}

// OpenCatalog opens (creating if absent) the namespace catalog file
// for a database.
func OpenCatalog(root *os.Root, name string) (*Catalog, error) {
	_, err := root.Stat(name)
	fresh := os.IsNotExist(err)
	var f *os.File
	if fresh {
		f, err = root.Create(name)
		if err != nil {
			return nil, err
		}
		blank := make([]byte, catalogSlotRecordSize)
		for i := 0; i < catalogBucketCount; i++ {
			if _, err := f.Write(blank); err != nil {
				f.Close()
				return nil, err
			}
		}
	} else {
		f, err = root.OpenFile(name, os.O_RDWR, 0644)
		if err != nil {
			return nil, err
		}
	}

	c := &Catalog{root: root, file: f, slots: make([]catalogSlot, catalogBucketCount)}
	if !fresh {
		if err := c.loadSlots(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) loadSlots() error {
	buf := make([]byte, catalogSlotRecordSize)
	for i := 0; i < catalogBucketCount; i++ {
		if _, err := c.file.ReadAt(buf, int64(i)*catalogSlotRecordSize); err != nil {
			return fmt.Errorf("storage: read catalog slot %d: %w", i, err)
		}
		c.slots[i].state = buf[0]
		c.slots[i].hash = binary.LittleEndian.Uint32(buf[1:5])
		copy(c.slots[i].key[:], buf[5:5+catalogKeySize])
	}
	return nil
}

func (c *Catalog) Close() error { return c.file.Close() }

// Insert adds a new namespace entry. Returns an error if the name is
// already present and not merely a tombstone.
func (c *Catalog) Insert(name string) error {
	key, err := nsKeyBytes(name)
	if err != nil {
		return err
	}
	h := catalogHash(key[:])

	firstTomb := -1
	idx := int(h) % len(c.slots)
	for i := 0; i < len(c.slots); i++ {
		probe := (idx + i) % len(c.slots)
		s := &c.slots[probe]
		switch s.state {
		case catalogSlotEmpty:
			target := probe
			if firstTomb >= 0 {
				target = firstTomb
			}
			return c.writeSlot(target, h, key)
		case catalogSlotTombstone:
			if firstTomb < 0 {
				firstTomb = probe
			}
		case catalogSlotUsed:
			if s.hash == h && s.key == key {
				return fmt.Errorf("storage: namespace %q already exists", name)
			}
		}
	}
	return fmt.Errorf("storage: namespace catalog is full")
}

func (c *Catalog) writeSlot(slot int, h uint32, key [catalogKeySize]byte) error {
	buf := make([]byte, catalogSlotRecordSize)
	buf[0] = catalogSlotUsed
	binary.LittleEndian.PutUint32(buf[1:5], h)
	copy(buf[5:5+catalogKeySize], key[:])
	if _, err := c.file.WriteAt(buf, int64(slot)*catalogSlotRecordSize); err != nil {
		return err
	}
	c.slots[slot] = catalogSlot{state: catalogSlotUsed, hash: h, key: key}
	return nil
}

// findUsedSlot locates the used slot holding (h, key), the same probe
// Find/Insert/Kill each run inline, factored out for SaveHeader/
// LoadHeader so they address the exact slot their header region lives
// in rather than re-deriving the offset from a separate scan.
func (c *Catalog) findUsedSlot(h uint32, key [catalogKeySize]byte) (int, bool) {
	idx := int(h) % len(c.slots)
	for i := 0; i < len(c.slots); i++ {
		probe := (idx + i) % len(c.slots)
		s := &c.slots[probe]
		if s.state == catalogSlotEmpty {
			return 0, false
		}
		if s.state == catalogSlotUsed && s.hash == h && s.key == key {
			return probe, true
		}
	}
	return 0, false
}

func headerRegionOffset(slot int) int64 {
	return int64(slot)*catalogSlotRecordSize + 1 + 4 + catalogKeySize
}

// SaveHeader persists hdr as name's collection header, the catalog
// bucket's value half. The region is a 4-byte length prefix followed
// by the JSON encoding of hdr; SaveHeader fails rather than silently
// truncating a header that doesn't fit catalogHeaderSize.
func (c *Catalog) SaveHeader(name string, hdr CollectionHeader) error {
	key, err := nsKeyBytes(name)
	if err != nil {
		return err
	}
	h := catalogHash(key[:])
	slot, ok := c.findUsedSlot(h, key)
	if !ok {
		return fmt.Errorf("storage: namespace %q not found", name)
	}
	buf, err := json.Marshal(hdr)
	if err != nil {
		return fmt.Errorf("storage: encode collection header for %q: %w", name, err)
	}
	if len(buf)+4 > catalogHeaderSize {
		return fmt.Errorf("storage: collection header for %q is %d bytes, exceeds the %d-byte region", name, len(buf)+4, catalogHeaderSize)
	}
	region := make([]byte, catalogHeaderSize)
	binary.LittleEndian.PutUint32(region[0:4], uint32(len(buf)))
	copy(region[4:], buf)
	_, err = c.file.WriteAt(region, headerRegionOffset(slot))
	return err
}

// LoadHeader reads back name's collection header. ok is false if name
// has no slot, or its slot has never had a header saved into it (a
// freshly-inserted namespace with RecordCount still at its zero
// value).
func (c *Catalog) LoadHeader(name string) (CollectionHeader, bool, error) {
	key, err := nsKeyBytes(name)
	if err != nil {
		return CollectionHeader{}, false, err
	}
	h := catalogHash(key[:])
	slot, ok := c.findUsedSlot(h, key)
	if !ok {
		return CollectionHeader{}, false, nil
	}
	region := make([]byte, catalogHeaderSize)
	if _, err := c.file.ReadAt(region, headerRegionOffset(slot)); err != nil {
		return CollectionHeader{}, false, err
	}
	n := binary.LittleEndian.Uint32(region[0:4])
	if n == 0 || n > uint32(catalogHeaderSize-4) {
		return CollectionHeader{}, false, nil
	}
	var hdr CollectionHeader
	if err := json.Unmarshal(region[4:4+n], &hdr); err != nil {
		return CollectionHeader{}, false, fmt.Errorf("storage: decode collection header for %q: %w", name, err)
	}
	return hdr, true, nil
}

// Find reports whether name is present in the catalog.
func (c *Catalog) Find(name string) bool {
	key, err := nsKeyBytes(name)
	if err != nil {
		return false
	}
	h := catalogHash(key[:])
	idx := int(h) % len(c.slots)
	for i := 0; i < len(c.slots); i++ {
		probe := (idx + i) % len(c.slots)
		s := &c.slots[probe]
		if s.state == catalogSlotEmpty {
			return false
		}
		if s.state == catalogSlotUsed && s.hash == h && s.key == key {
			return true
		}
	}
	return false
}

// Kill marks a namespace's slot as a tombstone: the slot is reusable
// by a later Insert's probe but cannot be confused with truly-empty
// during lookup of other keys.
func (c *Catalog) Kill(name string) error {
	key, err := nsKeyBytes(name)
	if err != nil {
		return err
	}
	h := catalogHash(key[:])
	idx := int(h) % len(c.slots)
	for i := 0; i < len(c.slots); i++ {
		probe := (idx + i) % len(c.slots)
		s := &c.slots[probe]
		if s.state == catalogSlotEmpty {
			return fmt.Errorf("storage: namespace %q not found", name)
		}
		if s.state == catalogSlotUsed && s.hash == h && s.key == key {
			var buf [1]byte
			buf[0] = catalogSlotTombstone
			if _, err := c.file.WriteAt(buf[:], int64(probe)*catalogSlotRecordSize); err != nil {
				return err
			}
			c.slots[probe].state = catalogSlotTombstone
			return nil
		}
	}
	return fmt.Errorf("storage: namespace %q not found", name)
}

// Rename tombstones oldName's slot, inserts newName into the slot
// Insert's probe picks for it, and carries oldName's saved collection
// header (if any) across to the new slot — safe because
// index/collection headers never embed an absolute path back to their
// own catalog slot.
func (c *Catalog) Rename(oldName, newName string) error {
	hdr, hadHdr, err := c.LoadHeader(oldName)
	if err != nil {
		return err
	}
	if err := c.Kill(oldName); err != nil {
		return err
	}
	if err := c.Insert(newName); err != nil {
		return err
	}
	if hadHdr {
		return c.SaveHeader(newName, hdr)
	}
	return nil
}

// All iterates every live (non-empty, non-tombstone) namespace name.
func (c *Catalog) All(yield func(name string) bool) {
	for _, s := range c.slots {
		if s.state != catalogSlotUsed {
			continue
		}
		n := 0
		for n < len(s.key) && s.key[n] != 0 {
			n++
		}
		if !yield(string(s.key[:n])) {
			return
		}
	}
}
