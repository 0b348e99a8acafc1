package storage

import (
	"fmt"
	"os"
	"sync"
)

// Errors returned by Store operations.
var (
	ErrAlreadyExists = fmt.Errorf("storage: duplicate key")
	ErrOversize      = fmt.Errorf("storage: document exceeds maximum record size")
	ErrFileFull      = fmt.Errorf("storage: no file slot could be extended")
	ErrCappedFull    = fmt.Errorf("storage: capped collection is full and deletion is disallowed")
	ErrNotFound      = fmt.Errorf("storage: record not found")
)

// defaultExtentSize is the size of the first extent allocated for a
// collection; subsequent extents double up to extentSizeCap, the
// usual "grow the allocation unit over time" extent-sizing heuristic.
const (
	defaultExtentSize  = 64 * 1024
	extentSizeCap      = 32 * 1024 * 1024
	defaultMaxFileSize = 2 * 1024 * 1024 * 1024
	defaultMaxRecord   = 16 * 1024 * 1024
)

// Store manages one database's data files, extent allocation, and
// collection headers. Index maintenance (B-tree inserts) is the
// caller's responsibility — Store only owns record placement.
type Store struct {
	mu sync.RWMutex

	root        *os.Root
	dbName      string
	files       []*DataFile
	maxFileSize int64
	maxRecord   int32

	collections   map[string]*Collection
	cappedHook    cappedDeleteFunc
	writeRecorder writeRecorderFunc
	catalog       *Catalog
}

// AttachCatalog gives the store a namespace catalog to persist
// collection headers into and reload them from. A Store used without
// one (as package-level tests do) falls back to always starting every
// collection empty, exactly as before this existed.
func (s *Store) AttachCatalog(cat *Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = cat
}

// writeRecorderFunc is invoked after every successful physical write
// with the exact bytes and placement just written, so a caller
// layering write-ahead journaling on top of Store (the root package's
// durability adapter) can record a matching WriteIntent without
// duplicating Store's own record/extent-header encoding logic.
type writeRecorderFunc func(fileNum int32, offset int64, data []byte)

// SetWriteRecorder installs the callback Store invokes after every
// successful writeAt, for durability to mirror into its own intent
// log. Unset by default, so using Store without durability wired in
// (as its own package tests do) costs nothing.
func (s *Store) SetWriteRecorder(fn writeRecorderFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeRecorder = fn
}

// recordedWriteAt writes buf to f at off and, on success, reports the
// write to the installed write recorder, if any.
func (s *Store) recordedWriteAt(f *DataFile, buf []byte, off int64) (int, error) {
	n, err := f.writeAt(buf, off)
	if err == nil {
		s.mu.RLock()
		rec := s.writeRecorder
		s.mu.RUnlock()
		if rec != nil {
			rec(f.num, off, buf)
		}
	}
	return n, err
}

// Open opens (creating if necessary) the data files for a database
// rooted at dir/dbName.*.
func Open(dir, dbName string) (*Store, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	s := &Store{
		root:        root,
		dbName:      dbName,
		maxFileSize: defaultMaxFileSize,
		maxRecord:   defaultMaxRecord,
		collections: make(map[string]*Collection),
	}
	if _, err := s.fileAt(0); err != nil {
		root.Close()
		return nil, err
	}
	return s, nil
}

// Sync fsyncs every open data file's writer handle, applying the
// durability package's Applier.Sync contract.
func (s *Store) Sync() error {
	s.mu.RLock()
	files := make([]*DataFile, len(s.files))
	copy(files, s.files)
	s.mu.RUnlock()
	var firstErr error
	for _, f := range files {
		if err := f.sync(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// FileCount reports how many data files are currently open, so the
// durability adapter can translate a fileNum into a CreateFile call
// only when it names a file that does not exist yet.
func (s *Store) FileCount() int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int32(len(s.files))
}

// EnsureFile opens (creating if necessary) the Nth data file, the
// explicit form of file creation the durability package's CreateFile
// op replays.
func (s *Store) EnsureFile(num int32) error {
	_, err := s.fileAt(num)
	return err
}

// ApplyAt writes data to fileNum at offset without invoking the
// installed write recorder — the durability package's replay path
// (live journal application and crash recovery alike) calls this to
// mirror an already-journaled intent, and must not re-record the
// write it is itself replaying.
func (s *Store) ApplyAt(fileNum int32, offset int64, data []byte) error {
	f, err := s.fileAt(fileNum)
	if err != nil {
		return err
	}
	_, err = f.writeAt(data, offset)
	return err
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, f := range s.files {
		if err := f.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.root.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Drop closes every open data file and removes them from disk, for
// the durability package's DropDatabase op.
func (s *Store) Drop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, f := range s.files {
		name := fmt.Sprintf("%s.%d", s.dbName, f.num)
		if err := f.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := s.root.Remove(name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.files = nil
	return firstErr
}

// fileAt returns the Nth data file, opening/creating it on demand.
// No FileCreated op is recorded for a file created here — Store itself
// just performs the filesystem side effect.
func (s *Store) fileAt(num int32) (*DataFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for int32(len(s.files)) <= num {
		n := int32(len(s.files))
		name := fmt.Sprintf("%s.%d", s.dbName, n)
		f, err := openDataFile(s.root, name, n, s.maxFileSize)
		if err != nil {
			return nil, err
		}
		s.files = append(s.files, f)
	}
	return s.files[num], nil
}

func (s *Store) lastFileNum() int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int32(len(s.files) - 1)
}

// Collection returns the named collection, creating an empty one if
// it does not yet exist. The namespace catalog (package-level Catalog
// type) is the durable source of truth for which collections exist;
// Store's map is a runtime cache of headers already resolved via it.
// On a cache miss with a catalog attached, the persisted header (if
// any) is reloaded and the on-disk extent chain replayed to rebuild
// the free list and record/byte counts, so a collection written by a
// prior process session is immediately scannable again rather than
// starting out looking empty.
func (s *Store) Collection(name string) *Collection {
	s.mu.Lock()
	if c, ok := s.collections[name]; ok {
		s.mu.Unlock()
		return c
	}
	cat := s.catalog
	s.mu.Unlock()

	c := NewCollection(name)
	if cat != nil {
		if hdr, ok, err := cat.LoadHeader(name); err == nil && ok {
			c.applyHeader(hdr)
			s.rebuildExtents(c)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.collections[name]; ok {
		return existing
	}
	s.collections[name] = c
	return c
}

// rebuildExtents walks c's on-disk extent chain starting at
// c.FirstExtent, repopulating the in-memory extent list, free list,
// and live record/byte counts by reading exactly what Scan would see
// (plus the deleted slots Scan skips). Errors are swallowed: a chain
// a crash left truncated mid-write is recovered by the durability
// package's replay pass before Store.Collection is ever called for it
// (see DB.Open), so by the time this runs the on-disk headers already
// reflect the last committed state; a read failure here just leaves
// the collection as empty as it would have started without a catalog
// at all.
func (s *Store) rebuildExtents(c *Collection) {
	if c.FirstExtent.Invalid() {
		return
	}
	var liveCount, liveBytes int64
	cur := c.FirstExtent
	for cur != NullLocation {
		f, err := s.fileAt(cur.FileNum)
		if err != nil {
			return
		}
		hdrBuf := make([]byte, extentHeaderSize)
		if _, err := f.readAt(hdrBuf, cur.Offset); err != nil {
			return
		}
		hdr := decodeExtentHeader(hdrBuf)
		if hdr.Magic != extentMagic {
			return
		}
		rt := &extentRuntime{
			loc:      cur,
			fileNum:  cur.FileNum,
			dataOff:  cur.Offset + extentHeaderSize,
			length:   hdr.Length,
			firstRec: hdr.FirstRec,
			lastRec:  hdr.LastRec,
		}
		n, b, err := s.rebuildRecordChain(f, rt, c)
		if err != nil {
			return
		}
		liveCount += n
		liveBytes += b
		c.extents = append(c.extents, rt)
		cur = hdr.Next
	}
	c.RecordCount = liveCount
	c.ByteCount = liveBytes
}

// rebuildRecordChain walks one extent's record chain (live and
// deleted alike), accumulating rt.used, reinstating any still-deleted
// slot into c.free, and reporting the live record/byte totals found.
func (s *Store) rebuildRecordChain(f *DataFile, rt *extentRuntime, c *Collection) (liveCount, liveBytes int64, err error) {
	cur := rt.firstRec
	for cur != NullLocation {
		hdrBuf := make([]byte, recordHeaderSize)
		if _, err := f.readAt(hdrBuf, cur.Offset); err != nil {
			return 0, 0, err
		}
		hdr := decodeRecordHeader(hdrBuf)
		rt.used += int64(hdr.size())
		if hdr.deleted() {
			c.free.add(&deletedNode{Loc: cur, Size: hdr.size()})
		} else {
			liveCount++
			liveBytes += int64(hdr.size()) - recordHeaderSize
		}
		cur = hdr.Next
	}
	return liveCount, liveBytes, nil
}

// persistHeader saves c's current snapshot into the attached catalog,
// if any. Best-effort: a failed save only costs the next reopen a
// stale cached count, since rebuildExtents recomputes RecordCount and
// ByteCount from the on-disk chain rather than trusting them, and
// FirstExtent (the one field rebuildExtents actually depends on) is
// set exactly once, the first time a collection allocates its first
// extent.
func (s *Store) persistHeader(c *Collection) {
	s.mu.RLock()
	cat := s.catalog
	s.mu.RUnlock()
	if cat == nil {
		return
	}
	cat.SaveHeader(c.Name, c.Snapshot())
}

// PersistHeader saves c's current snapshot into the attached catalog,
// for a caller outside this package (the root package's index
// registration) that mutated c through AddIndexSlot/SetMultiKey rather
// than through one of Store's own mutating methods.
func (s *Store) PersistHeader(c *Collection) {
	s.persistHeader(c)
}

// MakeCapped converts a (normally freshly-created, empty) collection
// into a capped collection. maxBytes bounds how many extents the ring
// is allowed to grow to before it starts wrapping; maxBytes <= 0
// means the ring never grows past its first extent.
func (s *Store) MakeCapped(name string, maxBytes int64, allowDelete bool) {
	c := s.Collection(name)
	c.mu.Lock()
	c.Flags |= FlagCapped
	if !allowDelete {
		c.Flags |= FlagCappedNoDelete
	}
	c.CappedMaxBytes = maxBytes
	c.mu.Unlock()
	s.persistHeader(c)
}

// Insert places a new document's encoded bytes into the collection
// and returns its RecordLocation.
func (s *Store) Insert(collName string, doc []byte) (RecordLocation, error) {
	if int32(len(doc)) > s.maxRecord {
		return RecordLocation{}, ErrOversize
	}
	c := s.Collection(collName)

	var loc RecordLocation
	var err error
	if c.IsCapped() {
		loc, err = s.cappedInsert(c, doc)
	} else {
		loc, err = s.heapInsert(c, doc)
	}
	if err == nil {
		s.persistHeader(c)
	}
	return loc, err
}

// heapInsert implements the non-capped allocator: best-fit from the
// free list, else append to the current last extent's free tail, else
// allocate a new extent (new data file if the current one is full).
func (s *Store) heapInsert(c *Collection, doc []byte) (RecordLocation, error) {
	need := c.paddedSize(int32(len(doc)))

	c.mu.Lock()
	node := c.free.bestFit(need)
	c.mu.Unlock()
	if node != nil {
		return s.writeIntoSlot(c, node, doc)
	}

	ext, err := s.ensureRoomInLastExtent(c, int64(need))
	if err != nil {
		return RecordLocation{}, err
	}
	return s.appendToExtent(c, ext, doc)
}

// ensureRoomInLastExtent returns an extent with at least need free
// bytes, allocating a new one (doubling the size heuristic, capped)
// if the current last extent cannot hold it.
func (s *Store) ensureRoomInLastExtent(c *Collection, need int64) (*extentRuntime, error) {
	c.mu.Lock()
	var last *extentRuntime
	if len(c.extents) > 0 {
		last = c.extents[len(c.extents)-1]
	}
	c.mu.Unlock()

	if last != nil && last.freeBytes() >= need {
		return last, nil
	}
	return s.allocateExtent(c, need)
}

func (s *Store) allocateExtent(c *Collection, minSize int64) (*extentRuntime, error) {
	size := int64(defaultExtentSize)
	c.mu.RLock()
	if len(c.extents) > 0 {
		size = c.extents[len(c.extents)-1].length * 2
	}
	c.mu.RUnlock()
	if size > extentSizeCap {
		size = extentSizeCap
	}
	for size < extentHeaderSize+minSize {
		size *= 2
	}

	fnum := s.lastFileNum()
	f, err := s.fileAt(fnum)
	if err != nil {
		return nil, err
	}
	off, ok := f.allocate(size)
	if !ok {
		fnum++
		f, err = s.fileAt(fnum)
		if err != nil {
			return nil, err
		}
		off, ok = f.allocate(size)
		if !ok {
			return nil, ErrFileFull
		}
	}

	c.mu.Lock()
	var prevLoc RecordLocation = NullLocation
	if len(c.extents) > 0 {
		prevLoc = c.extents[len(c.extents)-1].loc
	}
	c.mu.Unlock()

	loc := RecordLocation{FileNum: fnum, Offset: off}
	hdr := extentHeader{
		Magic:    extentMagic,
		Length:   size,
		Prev:     prevLoc,
		Next:     NullLocation,
		FirstRec: NullLocation,
		LastRec:  NullLocation,
	}
	if _, err := s.recordedWriteAt(f, encodeExtentHeader(hdr), off); err != nil {
		return nil, err
	}

	rt := &extentRuntime{
		loc:      loc,
		fileNum:  fnum,
		dataOff:  off + extentHeaderSize,
		length:   size,
		firstRec: NullLocation,
		lastRec:  NullLocation,
	}

	c.mu.Lock()
	c.extents = append(c.extents, rt)
	if c.FirstExtent.Invalid() {
		c.FirstExtent = loc
	}
	c.LastExtent = loc
	c.mu.Unlock()

	if prevLoc != NullLocation {
		if pf, err := s.fileAt(prevLoc.FileNum); err == nil {
			s.patchExtentNext(pf, prevLoc.Offset, loc)
		}
	}

	return rt, nil
}

func (s *Store) patchExtentNext(f *DataFile, extentOff int64, next RecordLocation) {
	buf := make([]byte, 12)
	putLoc(buf, next)
	s.recordedWriteAt(f, buf, extentOff+24) // Next field offset within extentHeader
}

// appendToExtent writes a record at the extent's current free offset,
// linking it onto the extent's record chain.
func (s *Store) appendToExtent(c *Collection, ext *extentRuntime, doc []byte) (RecordLocation, error) {
	f, err := s.fileAt(ext.fileNum)
	if err != nil {
		return RecordLocation{}, err
	}

	padded := c.paddedSize(int32(len(doc)))
	recOff := ext.dataOff + ext.used
	loc := RecordLocation{FileNum: ext.fileNum, Offset: recOff}

	hdr := recordHeader{Length: padded, Prev: ext.lastRec, Next: NullLocation}
	buf := make([]byte, 0, padded)
	buf = append(buf, encodeRecordHeader(hdr)...)
	buf = append(buf, doc...)
	if pad := int(padded) - recordHeaderSize - len(doc); pad > 0 {
		buf = append(buf, make([]byte, pad)...)
	}
	if _, err := s.recordedWriteAt(f, buf, recOff); err != nil {
		return RecordLocation{}, err
	}

	if ext.lastRec != NullLocation {
		s.patchRecordNext(f, ext.lastRec, loc)
	}

	// Persist the extent header's FirstRec/LastRec so rebuildExtents
	// can walk this chain after a reopen.
	bounds := make([]byte, 24)
	first := ext.firstRec
	if first == NullLocation {
		first = loc
	}
	putLoc(bounds[0:12], first)
	putLoc(bounds[12:24], loc)
	s.recordedWriteAt(f, bounds, ext.loc.Offset+36) // FirstRec field offset within extentHeader

	c.mu.Lock()
	ext.used += int64(padded)
	if ext.firstRec == NullLocation {
		ext.firstRec = loc
	}
	ext.lastRec = loc
	c.RecordCount++
	c.ByteCount += int64(len(doc))
	c.mu.Unlock()

	return loc, nil
}

func (s *Store) patchRecordNext(f *DataFile, loc RecordLocation, next RecordLocation) {
	buf := make([]byte, 12)
	putLoc(buf, next)
	s.recordedWriteAt(f, buf, loc.Offset+16) // Next field offset within recordHeader
}

// writeIntoSlot reuses a deleted-record slot found by best-fit,
// splitting its tail back into the free list if slack exceeds
// splitThreshold.
func (s *Store) writeIntoSlot(c *Collection, node *deletedNode, doc []byte) (RecordLocation, error) {
	f, err := s.fileAt(node.Loc.FileNum)
	if err != nil {
		return RecordLocation{}, err
	}

	// Keep the slot's place in the extent's record chain.
	oldBuf := make([]byte, recordHeaderSize)
	if _, err := f.readAt(oldBuf, node.Loc.Offset); err != nil {
		return RecordLocation{}, err
	}
	old := decodeRecordHeader(oldBuf)

	needed := recordHeaderSize + len(doc)
	slack := int(node.Size) - needed
	useSize := node.Size
	if slack > splitThreshold {
		useSize = int32(needed)
		tailLoc := RecordLocation{FileNum: node.Loc.FileNum, Offset: node.Loc.Offset + int64(useSize)}
		tailSize := node.Size - useSize
		tailHdr := recordHeader{Length: -tailSize, Prev: NullLocation, Next: NullLocation}
		s.recordedWriteAt(f, encodeRecordHeader(tailHdr), tailLoc.Offset)
		c.mu.Lock()
		c.free.add(&deletedNode{Loc: tailLoc, Size: tailSize})
		c.mu.Unlock()
	}

	hdr := recordHeader{Length: useSize, Prev: old.Prev, Next: old.Next}
	buf := make([]byte, 0, useSize)
	buf = append(buf, encodeRecordHeader(hdr)...)
	buf = append(buf, doc...)
	if pad := int(useSize) - recordHeaderSize - len(doc); pad > 0 {
		buf = append(buf, make([]byte, pad)...)
	}
	if _, err := s.recordedWriteAt(f, buf, node.Loc.Offset); err != nil {
		return RecordLocation{}, err
	}

	c.mu.Lock()
	c.RecordCount++
	c.ByteCount += int64(len(doc))
	c.mu.Unlock()

	return node.Loc, nil
}

// Get reads the document bytes stored at loc.
func (s *Store) Get(loc RecordLocation) ([]byte, error) {
	f, err := s.fileAt(loc.FileNum)
	if err != nil {
		return nil, err
	}
	hdrBuf := make([]byte, recordHeaderSize)
	if _, err := f.readAt(hdrBuf, loc.Offset); err != nil {
		return nil, err
	}
	hdr := decodeRecordHeader(hdrBuf)
	doc := make([]byte, int(hdr.size())-recordHeaderSize)
	if _, err := f.readAt(doc, loc.Offset+recordHeaderSize); err != nil {
		return nil, err
	}
	return doc, nil
}

// Update writes newDoc at loc in place if it fits the existing slot's
// capacity, otherwise deletes the old record and inserts fresh,
// returning the (possibly new) RecordLocation. The padding factor is
// adjusted either way.
func (s *Store) Update(collName string, loc RecordLocation, newDoc []byte) (RecordLocation, error) {
	c := s.Collection(collName)
	f, err := s.fileAt(loc.FileNum)
	if err != nil {
		return RecordLocation{}, err
	}
	hdrBuf := make([]byte, recordHeaderSize)
	if _, err := f.readAt(hdrBuf, loc.Offset); err != nil {
		return RecordLocation{}, err
	}
	hdr := decodeRecordHeader(hdrBuf)
	capacity := int(hdr.Length) - recordHeaderSize

	if len(newDoc) <= capacity {
		buf := make([]byte, 0, hdr.Length)
		buf = append(buf, hdrBuf...)
		buf = append(buf, newDoc...)
		if pad := capacity - len(newDoc); pad > 0 {
			buf = append(buf, make([]byte, pad)...)
		}
		if _, err := s.recordedWriteAt(f, buf, loc.Offset); err != nil {
			return RecordLocation{}, err
		}
		c.adjustPaddingOnCleanFit()
		s.persistHeader(c)
		return loc, nil
	}

	if err := s.Remove(collName, loc); err != nil {
		return RecordLocation{}, err
	}
	c.adjustPaddingOnMove()
	return s.Insert(collName, newDoc)
}

// Remove deletes the record at loc by relinking it into the
// appropriate free-list bucket, coalescing with an immediately
// adjacent deleted record in the same extent if one exists.
func (s *Store) Remove(collName string, loc RecordLocation) error {
	c := s.Collection(collName)
	if c.IsCapped() && !c.CappedDeleteAllowed() {
		return fmt.Errorf("storage: remove on no-delete capped collection")
	}
	f, err := s.fileAt(loc.FileNum)
	if err != nil {
		return err
	}
	hdrBuf := make([]byte, recordHeaderSize)
	if _, err := f.readAt(hdrBuf, loc.Offset); err != nil {
		return err
	}
	hdr := decodeRecordHeader(hdrBuf)

	node := &deletedNode{Loc: loc, Size: hdr.size()}
	finalPrev, finalNext := hdr.Prev, hdr.Next

	c.mu.Lock()
	c.RecordCount--
	c.ByteCount -= int64(hdr.size()) - recordHeaderSize

	// Coalesce with an immediately-adjacent deleted neighbor: a
	// neighbor only qualifies if it is itself chained directly onto
	// this slot (its location equals hdr.Prev/hdr.Next), which is true
	// only when the neighbor is still a live chain link that happens
	// to already be marked deleted — i.e. was freed but never reused.
	if hdr.Prev != NullLocation {
		if prev := c.free.take(hdr.Prev); prev != nil {
			node.Loc = prev.Loc
			node.Size += prev.Size
			finalPrev = readChainPrev(f, prev.Loc)
		}
	}
	if hdr.Next != NullLocation {
		if next := c.free.take(hdr.Next); next != nil {
			node.Size += next.Size
			finalNext = readChainNext(f, hdr.Next)
		}
	}
	c.free.add(node)
	c.mu.Unlock()

	coalesced := recordHeader{Length: -node.Size, Prev: finalPrev, Next: finalNext}
	s.recordedWriteAt(f, encodeRecordHeader(coalesced), node.Loc.Offset)
	s.persistHeader(c)
	return nil
}

func readChainPrev(f *DataFile, loc RecordLocation) RecordLocation {
	buf := make([]byte, recordHeaderSize)
	if _, err := f.readAt(buf, loc.Offset); err != nil {
		return NullLocation
	}
	return decodeRecordHeader(buf).Prev
}

func readChainNext(f *DataFile, loc RecordLocation) RecordLocation {
	buf := make([]byte, recordHeaderSize)
	if _, err := f.readAt(buf, loc.Offset); err != nil {
		return NullLocation
	}
	return decodeRecordHeader(buf).Next
}

// Scan walks every extent of the collection in list order (or reverse
// for Backward), then the record chain within each extent, yielding
// (location, document bytes) pairs.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (s *Store) Scan(collName string, dir Direction, yield func(RecordLocation, []byte) bool) error {
	c := s.Collection(collName)
	c.mu.RLock()
	extents := make([]*extentRuntime, len(c.extents))
	copy(extents, c.extents)
	c.mu.RUnlock()

	if dir == Backward {
		for i, j := 0, len(extents)-1; i < j; i, j = i+1, j-1 {
			extents[i], extents[j] = extents[j], extents[i]
		}
	}

	for _, ext := range extents {
		f, err := s.fileAt(ext.fileNum)
		if err != nil {
			return err
		}
		cur := ext.firstRec
		if dir == Backward {
			cur = ext.lastRec
		}
		for cur != NullLocation {
			hdrBuf := make([]byte, recordHeaderSize)
			if _, err := f.readAt(hdrBuf, cur.Offset); err != nil {
				return err
			}
			hdr := decodeRecordHeader(hdrBuf)
			next := hdr.Next
			if dir == Backward {
				next = hdr.Prev
			}

			if !hdr.deleted() {
				doc := make([]byte, int(hdr.size())-recordHeaderSize)
				if _, err := f.readAt(doc, cur.Offset+recordHeaderSize); err != nil {
					return err
				}
				if !yield(cur, doc) {
					return nil
				}
			}
			cur = next
		}
	}
	return nil
}
