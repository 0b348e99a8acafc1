package durability

import (
	"encoding/binary"
	"fmt"
)

// DurOpKind tags the typed, non-basic-write operations a commit can
// carry. The source represents these as a polymorphic DurOp class
// hierarchy (one concrete type per operation, dispatched through a
// virtual replay method); a closed tagged variant covers the same
// three cases without needing an interface-per-op in Go.
type DurOpKind byte

const (
	// OpFileCreated records that a data file was extended or created
	// at a given size; replay re-creates it at that size if missing.
	OpFileCreated DurOpKind = iota + 1
	// OpDropDb records that a database's files should be removed.
	OpDropDb
	// OpDbContext marks that subsequent basic-write entries in the
	// section target a different database than the ones before it.
	// It carries no independent replay action of its own.
	OpDbContext
)

// DurOp is one typed op-record. Only the fields relevant to Kind are
// meaningful.
type DurOp struct {
	Kind    DurOpKind
	FileNum int32  // OpFileCreated
	Size    int64  // OpFileCreated
	DBPath  string // OpDropDb, OpDbContext
}

func encodeDurOp(op DurOp) []byte {
	path := []byte(op.DBPath)
	buf := make([]byte, 1+4+8+4+len(path))
	buf[0] = byte(op.Kind)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(op.FileNum))
	binary.LittleEndian.PutUint64(buf[5:13], uint64(op.Size))
	binary.LittleEndian.PutUint32(buf[13:17], uint32(len(path)))
	copy(buf[17:], path)
	return buf
}

// decodeDurOp parses one op-record from the front of buf and returns
// how many bytes it consumed.
func decodeDurOp(buf []byte) (DurOp, int, error) {
	const fixed = 1 + 4 + 8 + 4
	if len(buf) < fixed {
		return DurOp{}, 0, fmt.Errorf("durability: truncated op record")
	}
	pathLen := int(binary.LittleEndian.Uint32(buf[13:17]))
	if len(buf) < fixed+pathLen {
		return DurOp{}, 0, fmt.Errorf("durability: truncated op record path")
	}
	op := DurOp{
		Kind:    DurOpKind(buf[0]),
		FileNum: int32(binary.LittleEndian.Uint32(buf[1:5])),
		Size:    int64(binary.LittleEndian.Uint64(buf[5:13])),
		DBPath:  string(buf[fixed : fixed+pathLen]),
	}
	return op, fixed + pathLen, nil
}

// replay applies op against an Applier during recovery. OpDbContext
// carries no state to apply — it exists only to delimit basic-write
// entries in the section stream, so its replay is a no-op.
func (op DurOp) replay(a Applier) error {
	switch op.Kind {
	case OpFileCreated:
		return a.CreateFile(op.DBPath, op.FileNum, op.Size)
	case OpDropDb:
		return a.DropDatabase(op.DBPath)
	case OpDbContext:
		return nil
	default:
		return fmt.Errorf("durability: unknown op kind %d", op.Kind)
	}
}
