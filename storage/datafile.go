package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

// fileHeaderMagic tags the start of every data file (file 0 and every
// file after it share the layout).
const fileHeaderMagic = 0x53545246 // "STRF"

const fileHeaderSize = 32
const fileHeaderVersion = 1

// dataFileHeader is the fixed header at the start of every <db>.N file.
type dataFileHeader struct {
	Magic      uint32
	Version    uint32
	FileNum    int32
	UnusedTail int64 // byte offset of the first never-allocated byte
}

func encodeFileHeader(h dataFileHeader) []byte {
	buf := make([]byte, fileHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.FileNum))
	binary.LittleEndian.PutUint64(buf[12:20], uint64(h.UnusedTail))
	return buf
}

func decodeFileHeader(buf []byte) (dataFileHeader, error) {
	if len(buf) < fileHeaderSize {
		return dataFileHeader{}, fmt.Errorf("storage: short file header (%d bytes)", len(buf))
	}
	h := dataFileHeader{
		Magic:      binary.LittleEndian.Uint32(buf[0:4]),
		Version:    binary.LittleEndian.Uint32(buf[4:8]),
		FileNum:    int32(binary.LittleEndian.Uint32(buf[8:12])),
		UnusedTail: int64(binary.LittleEndian.Uint64(buf[12:20])),
	}
	if h.Magic != fileHeaderMagic {
		return dataFileHeader{}, fmt.Errorf("storage: bad file header magic 0x%x", h.Magic)
	}
	return h, nil
}

// DataFile is one <db>.N file: a file header followed by a sequence
// of extents. Reads and writes go through separate handles the way
// folio keeps distinct reader/writer *os.File values, so a read never
// blocks behind an in-flight write's fd state.
type DataFile struct {
	mu     sync.RWMutex
	num    int32
	reader *os.File
	writer *os.File
	tail   int64 // next unallocated byte offset
	maxLen int64 // configured maximum size before a new file is required
	flock  fileLock
}

func openDataFile(root *os.Root, name string, num int32, maxLen int64) (*DataFile, error) {
	_, err := root.Stat(name)
	if os.IsNotExist(err) {
		f, err := root.Create(name)
		if err != nil {
			return nil, err
		}
		hdr := encodeFileHeader(dataFileHeader{Magic: fileHeaderMagic, Version: fileHeaderVersion, FileNum: num, UnusedTail: fileHeaderSize})
		if _, err := f.Write(hdr); err != nil {
			f.Close()
			return nil, err
		}
		f.Close()
	}

	reader, err := root.OpenFile(name, os.O_RDONLY, 0644)
	if err != nil {
		return nil, err
	}
	writer, err := root.OpenFile(name, os.O_RDWR, 0644)
	if err != nil {
		reader.Close()
		return nil, err
	}

	hdrBuf := make([]byte, fileHeaderSize)
	if _, err := reader.ReadAt(hdrBuf, 0); err != nil {
		reader.Close()
		writer.Close()
		return nil, fmt.Errorf("storage: read file header: %w", err)
	}
	hdr, err := decodeFileHeader(hdrBuf)
	if err != nil {
		reader.Close()
		writer.Close()
		return nil, err
	}

	df := &DataFile{
		num:    num,
		reader: reader,
		writer: writer,
		tail:   hdr.UnusedTail,
		maxLen: maxLen,
	}
	df.flock.setFile(writer)
	return df, nil
}

func (f *DataFile) close() error {
	f.flock.setFile(nil)
	var firstErr error
	if err := f.reader.Close(); err != nil {
		firstErr = err
	}
	if err := f.writer.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// allocate reserves length bytes at the file's current tail and
// returns the offset. Returns false if the allocation would exceed
// maxLen, signalling the caller should roll to a new file — the
// "file creation on demand" lifecycle rule 
func (f *DataFile) allocate(length int64) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tail+length > f.maxLen {
		return 0, false
	}
	off := f.tail
	f.tail += length
	return off, true
}

func (f *DataFile) syncTail() error {
	f.mu.RLock()
	tail := f.tail
	f.mu.RUnlock()
	hdr := encodeFileHeader(dataFileHeader{Magic: fileHeaderMagic, Version: fileHeaderVersion, FileNum: f.num, UnusedTail: tail})
	_, err := f.writer.WriteAt(hdr, 0)
	return err
}

func (f *DataFile) readAt(buf []byte, off int64) (int, error) {
	if err := f.flock.Lock(LockShared); err != nil {
		return 0, err
	}
	defer f.flock.Unlock()
	return f.reader.ReadAt(buf, off)
}

func (f *DataFile) writeAt(buf []byte, off int64) (int, error) {
	if err := f.flock.Lock(LockExclusive); err != nil {
		return 0, err
	}
	defer f.flock.Unlock()
	return f.writer.WriteAt(buf, off)
}

// sync fsyncs the file's writer handle and persists the current tail
// to the header, so a crash after sync never loses track of how much
// of the file is allocated.
func (f *DataFile) sync() error {
	if err := f.syncTail(); err != nil {
		return err
	}
	return f.writer.Sync()
}
