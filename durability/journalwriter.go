package durability

import (
	"context"
	"encoding/binary"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	journalFileMagic     = 0x4a524e4c // "JRNL"
	journalFormatVersion = 1
	journalHeaderSize    = 4 + 4 + 4 + 4 // magic, version, file id, reserved
	journalNamePrefix    = "j._"
	lsnSidecarName       = "j.lsn"
	lsnSidecarSize       = 4 + 8 // file id, sequence number
)

func journalName(id int32) string {
	return journalNamePrefix + strconv.FormatInt(int64(id), 10)
}

// listJournalFiles returns the journal file numbers present in root,
// sorted ascending.
func listJournalFiles(root *os.Root) ([]int32, error) {
	entries, err := fs.ReadDir(root.FS(), ".")
	if err != nil {
		return nil, err
	}
	var nums []int32
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), journalNamePrefix) {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimPrefix(e.Name(), journalNamePrefix), 10, 32)
		if err != nil {
			continue
		}
		nums = append(nums, int32(n))
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	return nums, nil
}

// JournalOptions configures a JournalWriter's group-commit behavior.
type JournalOptions struct {
	// MaxFileSize rolls to a new j._N file once the current one would
	// exceed this size on the next tick.
	MaxFileSize int64
	// ByteThreshold arms an out-of-cycle tick once NoteBytes has seen
	// this many pending bytes since the last tick.
	ByteThreshold int64
}

// JournalWriter owns the active j._N file and drains a CommitJob on
// every group-commit tick, matching folio's single-writer-handle
// discipline (db.go keeps one *os.File per role; this keeps one
// active journal file, rolling to a fresh number rather than growing
// without bound).
type JournalWriter struct {
	mu      sync.Mutex
	root    *os.Root
	job     *CommitJob
	applier Applier

	fileID int32
	file   *os.File
	offset int64
	seq    uint64

	maxFileSize   int64
	byteThreshold int64
	pendingBytes  int64

	closed bool
}

// OpenJournalWriter opens (creating if necessary) the next journal
// file after whatever already exists in root, so a process restart
// never reuses a file number a prior run already wrote sections into.
func OpenJournalWriter(root *os.Root, job *CommitJob, applier Applier, opts JournalOptions) (*JournalWriter, error) {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = 64 * 1024 * 1024
	}
	existing, err := listJournalFiles(root)
	if err != nil {
		return nil, err
	}
	var nextID int32
	if len(existing) > 0 {
		nextID = existing[len(existing)-1] + 1
	}
	// Recover deletes replayed journal files but keeps the LSN sidecar,
	// so numbering also continues past the file the LSN names.
	if lsnID, _, ok, err := readLSN(root); err != nil {
		return nil, err
	} else if ok && lsnID >= nextID {
		nextID = lsnID + 1
	}

	w := &JournalWriter{
		root:          root,
		job:           job,
		applier:       applier,
		maxFileSize:   opts.MaxFileSize,
		byteThreshold: opts.ByteThreshold,
	}
	if err := w.rollTo(nextID); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *JournalWriter) rollTo(id int32) error {
	if w.file != nil {
		w.file.Close()
	}
	f, err := w.root.Create(journalName(id))
	if err != nil {
		return err
	}
	hdr := make([]byte, journalHeaderSize)
	binary.LittleEndian.PutUint32(hdr[0:4], journalFileMagic)
	binary.LittleEndian.PutUint32(hdr[4:8], journalFormatVersion)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(id))
	if _, err := f.Write(hdr); err != nil {
		f.Close()
		return err
	}
	w.file = f
	w.fileID = id
	w.offset = journalHeaderSize
	return nil
}

// NoteBytes records that n additional bytes of intent data have been
// recorded against this writer's job since the last tick, and reports
// whether ByteThreshold has now been crossed — the caller's cue to
// call Tick out of cycle rather than waiting for the next timer fire.
func (w *JournalWriter) NoteBytes(n int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pendingBytes += int64(n)
	return w.byteThreshold > 0 && w.pendingBytes >= w.byteThreshold
}

// Tick drains the commit job, and if it produced anything, builds a
// section, appends it to the active journal file, fsyncs, propagates
// the same bytes to the applier, and advances the recovery LSN. A
// drain that yields nothing is a no-op — there is no empty section on
// an idle tick.
func (w *JournalWriter) Tick() error {
	ops, writes := w.job.drain()
	if len(ops) == 0 && len(writes) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	seq := w.seq + 1
	buf := buildSection(seq, w.fileID, ops, writes)

	if w.offset+int64(len(buf)) > w.maxFileSize {
		if err := w.rollTo(w.fileID + 1); err != nil {
			return err
		}
		buf = buildSection(seq, w.fileID, ops, writes)
	}

	if _, err := w.file.WriteAt(buf, w.offset); err != nil {
		return fmt.Errorf("durability: journal write: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("durability: journal fsync: %w", err)
	}
	w.offset += int64(len(buf))
	w.seq = seq
	w.pendingBytes = 0

	if err := w.apply(ops, writes); err != nil {
		return err
	}
	return writeLSN(w.root, w.fileID, w.seq)
}

// apply propagates a just-journaled section's contents to the
// applier. This mirrors exactly what Recover does for a section read
// back from disk, so the "replay any prefix, then the rest, get the
// same state" property holds whether the bytes came from a live tick
// or a crash-recovery pass.
func (w *JournalWriter) apply(ops []DurOp, writes []WriteIntent) error {
	for _, op := range ops {
		if err := op.replay(w.applier); err != nil {
			return err
		}
	}
	for _, wr := range writes {
		if err := w.applier.ApplyWrite(wr.DBPath, wr.FileNum, wr.Offset, wr.Data); err != nil {
			return err
		}
	}
	return nil
}

// Run drives Tick on a fixed interval until ctx is done. Callers that
// also want byte-threshold-triggered ticks should call NoteBytes from
// their write path and call Tick directly when it reports true.
func (w *JournalWriter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick()
		}
	}
}

// Close flushes no further state — the caller is expected to have
// stopped Run and issued a final Tick first — and closes the active
// file handle.
func (w *JournalWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

func writeLSN(root *os.Root, fileID int32, seq uint64) error {
	buf := make([]byte, lsnSidecarSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(fileID))
	binary.LittleEndian.PutUint64(buf[4:12], seq)

	tmp := lsnSidecarName + ".tmp"
	f, err := root.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	f.Close()
	return root.Rename(tmp, lsnSidecarName)
}

// readLSN reads the last-synced-sequence-number sidecar. ok is false
// if no sidecar exists yet (a fresh database, nothing to recover).
func readLSN(root *os.Root) (fileID int32, seq uint64, ok bool, err error) {
	f, openErr := root.OpenFile(lsnSidecarName, os.O_RDONLY, 0644)
	if openErr != nil {
		if os.IsNotExist(openErr) {
			return 0, 0, false, nil
		}
		return 0, 0, false, openErr
	}
	defer f.Close()

	buf := make([]byte, lsnSidecarSize)
	if _, err := f.Read(buf); err != nil {
		return 0, 0, false, fmt.Errorf("durability: read lsn sidecar: %w", err)
	}
	fileID = int32(binary.LittleEndian.Uint32(buf[0:4]))
	seq = binary.LittleEndian.Uint64(buf[4:12])
	return fileID, seq, true, nil
}
