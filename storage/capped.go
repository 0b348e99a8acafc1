package storage

import "fmt"

// cappedDeleteFunc is invoked for every record the ring silently
// evicts, so the index layer can drop the corresponding B-tree
// entries before the bytes are overwritten. Wired by the caller that
// owns index maintenance (the root package), never by Store itself —
// Store only knows about record placement.
type cappedDeleteFunc func(collName string, loc RecordLocation, doc []byte)

// SetCappedDeleteHook installs the callback used by the capped-ring
// allocator's eviction path.
func (s *Store) SetCappedDeleteHook(fn cappedDeleteFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cappedHook = fn
}

// cappedInsert implements the capped-collection ring allocator:
// a single write cursor advances through the extent chain, wrapping to
// the first extent once the last is exhausted; once wrapped, any
// record the cursor is about to overwrite is evicted first (deleting
// its index entries via the hook) unless CappedNoDelete disallows it,
// in which case the collection reports full.
func (s *Store) cappedInsert(c *Collection, doc []byte) (RecordLocation, error) {
	need := c.paddedSize(int32(len(doc)))

	c.mu.Lock()
	if len(c.extents) == 0 {
		c.mu.Unlock()
		ext, err := s.allocateExtent(c, int64(need))
		if err != nil {
			return RecordLocation{}, err
		}
		c.mu.Lock()
		c.CappedWriteLoc = RecordLocation{FileNum: ext.fileNum, Offset: ext.dataOff}
		c.mu.Unlock()
	} else {
		c.mu.Unlock()
	}

	c.mu.Lock()
	cur := c.CappedWriteLoc
	wrapped := c.CappedWrapped
	c.mu.Unlock()

	ext := s.extentContaining(c, cur)
	if ext == nil {
		return RecordLocation{}, fmt.Errorf("storage: capped write cursor outside any extent")
	}

	if cur.Offset+int64(need) > ext.dataOff+ext.length-extentHeaderSize {
		next := s.nextExtent(c, ext)
		if next == nil {
			c.mu.RLock()
			totalCap := c.cappedCapacity()
			c.mu.RUnlock()
			if c.CappedMaxBytes > 0 && totalCap < c.CappedMaxBytes {
				grown, err := s.allocateExtent(c, int64(need))
				if err != nil {
					return RecordLocation{}, err
				}
				next = grown
			} else {
				next = s.firstExtent(c)
				c.mu.Lock()
				c.CappedWrapped = true
				c.mu.Unlock()
				wrapped = true
			}
		}
		ext = next
		cur = RecordLocation{FileNum: ext.fileNum, Offset: ext.dataOff}
	}

	if wrapped {
		if !c.CappedDeleteAllowed() {
			return RecordLocation{}, ErrCappedFull
		}
		if err := s.evictAt(c, cur); err != nil {
			return RecordLocation{}, err
		}
	}

	loc, err := s.writeCappedRecord(c, ext, cur, doc)
	if err != nil {
		return RecordLocation{}, err
	}

	f, err := s.fileAt(loc.FileNum)
	if err == nil {
		hdrBuf := make([]byte, recordHeaderSize)
		f.readAt(hdrBuf, loc.Offset)
		hdr := decodeRecordHeader(hdrBuf)
		c.mu.Lock()
		c.CappedWriteLoc = RecordLocation{FileNum: loc.FileNum, Offset: loc.Offset + int64(hdr.Length)}
		c.mu.Unlock()
	}

	return loc, nil
}

func (s *Store) extentContaining(c *Collection, loc RecordLocation) *extentRuntime {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.extents {
		if e.fileNum == loc.FileNum && loc.Offset >= e.dataOff && loc.Offset < e.dataOff+e.length-extentHeaderSize {
			return e
		}
	}
	return nil
}

func (s *Store) nextExtent(c *Collection, ext *extentRuntime) *extentRuntime {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i, e := range c.extents {
		if e == ext && i+1 < len(c.extents) {
			return c.extents[i+1]
		}
	}
	return nil
}

func (s *Store) firstExtent(c *Collection) *extentRuntime {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.extents) == 0 {
		return nil
	}
	return c.extents[0]
}

// evictAt removes the record occupying cur so the ring can overwrite
// it, invoking the capped-delete hook first so index entries don't
// dangle.
func (s *Store) evictAt(c *Collection, cur RecordLocation) error {
	f, err := s.fileAt(cur.FileNum)
	if err != nil {
		return err
	}
	hdrBuf := make([]byte, recordHeaderSize)
	if _, err := f.readAt(hdrBuf, cur.Offset); err != nil {
		return err
	}
	hdr := decodeRecordHeader(hdrBuf)
	if hdr.Length == 0 {
		return nil // never-written slot, nothing to evict
	}
	doc := make([]byte, hdr.Length-recordHeaderSize)
	if _, err := f.readAt(doc, cur.Offset+recordHeaderSize); err != nil {
		return err
	}

	s.mu.RLock()
	hook := s.cappedHook
	s.mu.RUnlock()
	if hook != nil {
		hook(c.Name, cur, doc)
	}

	c.mu.Lock()
	c.RecordCount--
	c.ByteCount -= int64(hdr.Length) - recordHeaderSize
	c.mu.Unlock()
	return nil
}

// writeCappedRecord overwrites the slot at cur, sized to the lesser of
// the extent's remaining room and the record's own padded need — ring
// slots are not tracked by the free list, the cursor alone determines
// placement.
func (s *Store) writeCappedRecord(c *Collection, ext *extentRuntime, cur RecordLocation, doc []byte) (RecordLocation, error) {
	f, err := s.fileAt(cur.FileNum)
	if err != nil {
		return RecordLocation{}, err
	}
	padded := c.paddedSize(int32(len(doc)))
	hdr := recordHeader{Length: padded, Prev: NullLocation, Next: NullLocation}
	buf := make([]byte, 0, padded)
	buf = append(buf, encodeRecordHeader(hdr)...)
	buf = append(buf, doc...)
	if _, err := s.recordedWriteAt(f, buf, cur.Offset); err != nil {
		return RecordLocation{}, err
	}

	c.mu.Lock()
	c.RecordCount++
	c.ByteCount += int64(len(doc))
	c.mu.Unlock()

	return cur, nil
}
