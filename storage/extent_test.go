package storage

import "testing"

// TestExtentHeaderRoundTrip checks that every field of an extentHeader
// survives an encode/decode cycle, including the first/last record
// links that an earlier draft of this encoder once omitted.
func TestExtentHeaderRoundTrip(t *testing.T) {
	h := extentHeader{
		Magic:    extentMagic,
		Length:   65536,
		Prev:     RecordLocation{FileNum: 0, Offset: 32},
		Next:     RecordLocation{FileNum: 1, Offset: 128},
		FirstRec: RecordLocation{FileNum: 0, Offset: 60},
		LastRec:  RecordLocation{FileNum: 0, Offset: 4000},
	}
	buf := encodeExtentHeader(h)
	if len(buf) != extentHeaderSize {
		t.Fatalf("encoded header is %d bytes, want %d", len(buf), extentHeaderSize)
	}
	got := decodeExtentHeader(buf)
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

// TestRecordHeaderLengthSignEncodesDeletedState verifies the
// negative-length deleted-slot convention: decoding a header written
// with a negated length reports deleted() true and recovers the
// original magnitude via size().
func TestRecordHeaderLengthSignEncodesDeletedState(t *testing.T) {
	live := recordHeader{Length: 256, Prev: NullLocation, Next: NullLocation}
	if live.deleted() {
		t.Fatalf("positive length should not be deleted")
	}
	if live.size() != 256 {
		t.Fatalf("size() = %d, want 256", live.size())
	}

	free := recordHeader{Length: -256, Prev: NullLocation, Next: NullLocation}
	if !free.deleted() {
		t.Fatalf("negative length should be deleted")
	}
	if free.size() != 256 {
		t.Fatalf("size() = %d, want 256", free.size())
	}

	buf := encodeRecordHeader(free)
	got := decodeRecordHeader(buf)
	if got != free {
		t.Fatalf("record header round trip mismatch: got %+v want %+v", got, free)
	}
}
