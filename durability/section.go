package durability

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const (
	sectionMagic     = 0x53454354 // "SECT"
	sectionHeaderLen = 4 + 4 + 8 + 4 // magic, placeholder total length, seq number, journal file id
	footerDigestLen  = 16            // 128-bit, folio's AlgBlake2b widened from 8 to 16 bytes
)

const (
	recTagDbContext byte = 1
	recTagOp        byte = 2
	recTagWrite     byte = 3
	recTagFooter    byte = 0xFF
)

// WriteFlags annotates a basic-write entry. No flag bits are defined
// yet; the field exists so a future caller (e.g. "this write may be
// safely coalesced across sections") doesn't need a wire format
// change.
type WriteFlags uint32

const FlagNone WriteFlags = 0

// section is a parsed j._N section: the typed ops and basic writes
// recorded between two group-commit ticks, in application order.
type section struct {
	SeqNumber     uint64
	JournalFileID int32
	Ops           []DurOp
	Writes        []sectionWrite
}

type sectionWrite struct {
	DBPath  string
	FileNum int32
	Offset  int64
	Flags   WriteFlags
	Data    []byte
}

// buildSection serialises one commit tick's ops and merged write
// intents into a complete section: header, ops, db-context-delimited
// basic writes, and a footer digest over everything before it. The
// returned buffer's header already carries the correct total length.
//
// The source patches the header's length field into an
// already-written buffer and issues the write with O_DIRECT; the
// standard library has no portable O_DIRECT equivalent, so this
// builds the complete buffer up front and leaves the single WriteAt
// that follows (in JournalWriter.Tick) to carry it, still as one
// atomic-looking syscall the way folio's append() concatenates record
// and index into a single WriteAt.
func buildSection(seq uint64, journalFileID int32, ops []DurOp, writes []WriteIntent) []byte {
	var body bytes.Buffer

	for _, op := range ops {
		body.WriteByte(recTagOp)
		body.Write(encodeDurOp(op))
	}

	lastPath := ""
	first := true
	for _, w := range writes {
		if first || w.DBPath != lastPath {
			body.WriteByte(recTagDbContext)
			pathBuf := make([]byte, 4+len(w.DBPath))
			binary.LittleEndian.PutUint32(pathBuf[0:4], uint32(len(w.DBPath)))
			copy(pathBuf[4:], w.DBPath)
			body.Write(pathBuf)
			lastPath = w.DBPath
			first = false
		}

		entry := make([]byte, 4+8+4+4+len(w.Data))
		binary.LittleEndian.PutUint32(entry[0:4], uint32(len(w.Data)))
		binary.LittleEndian.PutUint64(entry[4:12], uint64(w.Offset))
		binary.LittleEndian.PutUint32(entry[12:16], uint32(w.FileNum))
		binary.LittleEndian.PutUint32(entry[16:20], uint32(FlagNone))
		copy(entry[20:], w.Data)

		body.WriteByte(recTagWrite)
		body.Write(entry)
	}

	total := sectionHeaderLen + body.Len() + 1 + footerDigestLen

	header := make([]byte, sectionHeaderLen)
	binary.LittleEndian.PutUint32(header[0:4], sectionMagic)
	binary.LittleEndian.PutUint32(header[4:8], uint32(total))
	binary.LittleEndian.PutUint64(header[8:16], seq)
	binary.LittleEndian.PutUint32(header[16:20], uint32(journalFileID))

	digestInput := make([]byte, 0, sectionHeaderLen+body.Len())
	digestInput = append(digestInput, header...)
	digestInput = append(digestInput, body.Bytes()...)
	digest := footerDigest(digestInput)

	out := make([]byte, 0, total)
	out = append(out, digestInput...)
	out = append(out, recTagFooter)
	out = append(out, digest...)
	return out
}

func footerDigest(data []byte) []byte {
	h, _ := blake2b.New(footerDigestLen, nil)
	h.Write(data)
	return h.Sum(nil)
}

// parseSection reads exactly one section starting at the front of
// buf. It returns the parsed section, the number of bytes the section
// occupied (its own declared total length), and ErrCorruptSection if
// the footer digest doesn't match the bytes that precede it.
func parseSection(buf []byte) (section, int, error) {
	if len(buf) < sectionHeaderLen {
		return section{}, 0, fmt.Errorf("durability: truncated section header")
	}
	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != sectionMagic {
		return section{}, 0, fmt.Errorf("durability: bad section magic 0x%x", magic)
	}
	total := int(binary.LittleEndian.Uint32(buf[4:8]))
	seq := binary.LittleEndian.Uint64(buf[8:16])
	journalFileID := int32(binary.LittleEndian.Uint32(buf[16:20]))

	if total < sectionHeaderLen+1+footerDigestLen || len(buf) < total {
		return section{}, 0, fmt.Errorf("durability: truncated section body")
	}

	footerStart := total - 1 - footerDigestLen
	if buf[footerStart] != recTagFooter {
		return section{}, 0, fmt.Errorf("durability: missing section footer tag")
	}
	wantDigest := buf[footerStart+1 : total]
	gotDigest := footerDigest(buf[:footerStart])
	if !bytes.Equal(wantDigest, gotDigest) {
		return section{}, total, ErrCorruptSection
	}

	sec := section{SeqNumber: seq, JournalFileID: journalFileID}
	pos := sectionHeaderLen
	dbPath := ""
	for pos < footerStart {
		tag := buf[pos]
		pos++
		switch tag {
		case recTagOp:
			op, n, err := decodeDurOp(buf[pos:footerStart])
			if err != nil {
				return section{}, total, err
			}
			sec.Ops = append(sec.Ops, op)
			pos += n
		case recTagDbContext:
			if pos+4 > footerStart {
				return section{}, total, fmt.Errorf("durability: truncated db-context record")
			}
			n := int(binary.LittleEndian.Uint32(buf[pos : pos+4]))
			pos += 4
			if pos+n > footerStart {
				return section{}, total, fmt.Errorf("durability: truncated db-context path")
			}
			dbPath = string(buf[pos : pos+n])
			pos += n
		case recTagWrite:
			if pos+20 > footerStart {
				return section{}, total, fmt.Errorf("durability: truncated write entry")
			}
			dataLen := int(binary.LittleEndian.Uint32(buf[pos : pos+4]))
			offset := int64(binary.LittleEndian.Uint64(buf[pos+4 : pos+12]))
			fileNum := int32(binary.LittleEndian.Uint32(buf[pos+12 : pos+16]))
			flags := WriteFlags(binary.LittleEndian.Uint32(buf[pos+16 : pos+20]))
			pos += 20
			if pos+dataLen > footerStart {
				return section{}, total, fmt.Errorf("durability: truncated write payload")
			}
			data := make([]byte, dataLen)
			copy(data, buf[pos:pos+dataLen])
			pos += dataLen
			sec.Writes = append(sec.Writes, sectionWrite{DBPath: dbPath, FileNum: fileNum, Offset: offset, Flags: flags, Data: data})
		default:
			return section{}, total, fmt.Errorf("durability: unknown section record tag %d", tag)
		}
	}

	return sec, total, nil
}
