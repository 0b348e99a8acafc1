package bsondoc

import (
	"encoding/binary"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"
)

// ObjectID is a 12-byte monotonic identifier: 4-byte Unix seconds,
// 5-byte machine/process tag, 3-byte per-process counter. The counter
// guarantees monotonicity within a process even when many IDs are
// minted within the same second; the machine/process tag keeps IDs
// from different processes from colliding.
type ObjectID [12]byte

var objectIDCounter atomic.Uint32

// processTag is derived once per process from a fast hash of the
// start time — a cheap, good-distribution fingerprint, not a
// cryptographic requirement.
var processTag = func() [5]byte {
	var tag [5]byte
	h := xxh3.HashString(time.Now().String())
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], h)
	copy(tag[:], b[:5])
	return tag
}()

// NewObjectID mints a new monotonic ObjectID.
func NewObjectID() ObjectID {
	var id ObjectID
	binary.BigEndian.PutUint32(id[0:4], uint32(time.Now().Unix()))
	copy(id[4:9], processTag[:])
	c := objectIDCounter.Add(1) & 0x00FFFFFF
	id[9] = byte(c >> 16)
	id[10] = byte(c >> 8)
	id[11] = byte(c)
	return id
}

// Hex returns the 24-character lowercase hex representation.
func (id ObjectID) Hex() string {
	return hex.EncodeToString(id[:])
}

// Compare orders ObjectIDs byte-wise, which also orders them by
// creation time since the timestamp occupies the leading bytes.
func (id ObjectID) Compare(other ObjectID) int {
	for i := range id {
		if id[i] != other[i] {
			if id[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
