// Package storage implements the on-disk record store: extents,
// per-extent record chains, deleted-record free lists, capped
// collections, and the namespace catalog that tracks which
// collections exist. There is no memory-mapped file layer; reads and
// writes go through explicit pread/pwrite-style calls on *os.File,
// relying on the OS page cache the same way the sandboxed
// reader/writer pair in a data file does.
package storage

import "fmt"

// RecordLocation identifies a document's physical position: a data
// file number and a byte offset within that file.
type RecordLocation struct {
	FileNum int32
	Offset  int64
}

// Invalid reports whether loc is the sentinel "no location" value.
func (loc RecordLocation) Invalid() bool {
	return loc.FileNum < 0
}

// NullLocation is the sentinel used for list terminators (first/last
// record in an empty extent, first/last extent in an empty
// collection).
var NullLocation = RecordLocation{FileNum: -1, Offset: -1}

func (loc RecordLocation) String() string {
	if loc.Invalid() {
		return "<null>"
	}
	return fmt.Sprintf("%d:%d", loc.FileNum, loc.Offset)
}
