package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Collection backup/export: a zstd-compressed stream of every live
// document in a collection, written to a temp file and renamed into
// place only once fully flushed — the same two-phase swap the
// namespace catalog's repair path uses, so a crash mid-export never
// leaves a half-written backup visible under its final name.
//
// Backup is a cold, infrequent operation (unlike the hot-path per-document
// compress() folio runs on every write), so each call gets its own
// encoder rather than sharing one — Reset is not safe for concurrent
// callers.

const backupMagic = 0x53425031 // "SBP1"

// Backup writes every live record of collName, in Scan's forward
// order, to root/destName as a zstd-compressed stream of
// length-prefixed documents.
func (s *Store) Backup(root *os.Root, collName, destName string) (err error) {
	tmpName := destName + ".tmp"
	f, err := root.Create(tmpName)
	if err != nil {
		return err
	}
	defer func() {
		f.Close()
		if err != nil {
			root.Remove(tmpName)
		}
	}()

	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
	}()

	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], backupMagic)
	binary.LittleEndian.PutUint32(hdr[4:8], 1)
	if _, err = zw.Write(hdr[:]); err != nil {
		return err
	}

	lenBuf := make([]byte, 4)
	scanErr := s.Scan(collName, Forward, func(_ RecordLocation, doc []byte) bool {
		binary.LittleEndian.PutUint32(lenBuf, uint32(len(doc)))
		if _, werr := zw.Write(lenBuf); werr != nil {
			err = werr
			return false
		}
		if _, werr := zw.Write(doc); werr != nil {
			err = werr
			return false
		}
		return true
	})
	if scanErr != nil {
		err = scanErr
	}
	if err != nil {
		return err
	}

	if cerr := zw.Close(); cerr != nil {
		return cerr
	}
	if cerr := f.Close(); cerr != nil {
		return cerr
	}
	return root.Rename(tmpName, destName)
}

// Restore reads a stream written by Backup, calling insert for each
// document in order. Restore does not itself touch a Store — callers
// typically pass Store.Insert bound to a freshly-created collection
// so index maintenance can be driven per document as it streams in.
func Restore(root *os.Root, srcName string, insert func(doc []byte) error) error {
	f, err := root.Open(srcName)
	if err != nil {
		return err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer zr.Close()

	var hdr [8]byte
	if _, err := io.ReadFull(zr, hdr[:]); err != nil {
		return fmt.Errorf("storage: read backup header: %w", err)
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != backupMagic {
		return fmt.Errorf("storage: not a backup stream")
	}

	lenBuf := make([]byte, 4)
	for {
		if _, err := io.ReadFull(zr, lenBuf); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("storage: truncated backup stream: %w", err)
		}
		docLen := binary.LittleEndian.Uint32(lenBuf)
		doc := make([]byte, docLen)
		if _, err := io.ReadFull(zr, doc); err != nil {
			return fmt.Errorf("storage: truncated backup document: %w", err)
		}
		if err := insert(doc); err != nil {
			return err
		}
	}
	return nil
}
