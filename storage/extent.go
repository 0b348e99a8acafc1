package storage

import "encoding/binary"

const extentMagic = 0x45585431 // "EXT1"

// extentHeaderSize = magic(4) + length(8) + prev(12) + next(12) +
// firstRec(12) + lastRec(12).
const extentHeaderSize = 4 + 8 + 12 + 12 + 12 + 12

// extentHeader sits at the start of every extent: magic, total size
// (including this header), links to the previous/next extent in the
// owning collection's list, and the first/last record currently
// chained within this extent.
type extentHeader struct {
	Magic    uint32
	Length   int64
	Prev     RecordLocation
	Next     RecordLocation
	FirstRec RecordLocation
	LastRec  RecordLocation
}

func encodeExtentHeader(h extentHeader) []byte {
	buf := make([]byte, extentHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint64(buf[4:12], uint64(h.Length))
	putLoc(buf[12:24], h.Prev)
	putLoc(buf[24:36], h.Next)
	putLoc(buf[36:48], h.FirstRec)
	putLoc(buf[48:60], h.LastRec)
	return buf
}

func decodeExtentHeader(buf []byte) extentHeader {
	return extentHeader{
		Magic:    binary.LittleEndian.Uint32(buf[0:4]),
		Length:   int64(binary.LittleEndian.Uint64(buf[4:12])),
		Prev:     getLoc(buf[12:24]),
		Next:     getLoc(buf[24:36]),
		FirstRec: getLoc(buf[36:48]),
		LastRec:  getLoc(buf[48:60]),
	}
}

func putLoc(buf []byte, loc RecordLocation) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(loc.FileNum))
	binary.LittleEndian.PutUint64(buf[4:12], uint64(loc.Offset))
}

func getLoc(buf []byte) RecordLocation {
	return RecordLocation{
		FileNum: int32(binary.LittleEndian.Uint32(buf[0:4])),
		Offset:  int64(binary.LittleEndian.Uint64(buf[4:12])),
	}
}

// recordHeaderSize is the fixed prefix of every record/deleted-record
// node: 4-byte length-including-header, then prev/next RecordLocation
// within the extent's doubly-linked chain.
const recordHeaderSize = 4 + 12 + 12

// recordHeader is the fixed prefix of every record slot. Length is
// stored negated (-size) for a deleted/free slot and positive for a
// live one — a deleted slot's bytes are otherwise indistinguishable
// from a live record's, so Scan needs this to decide whether to
// interpret what follows as document bytes.
type recordHeader struct {
	Length int32
	Prev   RecordLocation
	Next   RecordLocation
}

func (h recordHeader) deleted() bool { return h.Length < 0 }

func (h recordHeader) size() int32 {
	if h.Length < 0 {
		return -h.Length
	}
	return h.Length
}

func encodeRecordHeader(h recordHeader) []byte {
	buf := make([]byte, recordHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Length))
	putLoc(buf[4:16], h.Prev)
	putLoc(buf[16:28], h.Next)
	return buf
}

func decodeRecordHeader(buf []byte) recordHeader {
	return recordHeader{
		Length: int32(binary.LittleEndian.Uint32(buf[0:4])),
		Prev:   getLoc(buf[4:16]),
		Next:   getLoc(buf[16:28]),
	}
}
