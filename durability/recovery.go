package durability

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Recover replays every journal section not yet reflected in the data
// files, then removes the journal files and leaves the database ready
// for normal operation. Safe to call against a clean database with no
// journal files (it simply does nothing).
//
// Recovery is idempotent: calling it twice in a row against the same
// on-disk state (as would happen if the process crashed again during
// recovery itself) replays the same sections and reaches the same
// data-file state, since every section is addressed by its own
// sequence number against the durable LSN rather than by a one-shot
// cursor.
func Recover(root *os.Root, applier Applier) error {
	nums, err := listJournalFiles(root)
	if err != nil {
		return err
	}
	if len(nums) == 0 {
		return nil
	}
	for i := 1; i < len(nums); i++ {
		if nums[i] != nums[i-1]+1 {
			return fmt.Errorf("%w: j._%d missing before j._%d", ErrGap, nums[i-1]+1, nums[i])
		}
	}

	lsnFileID, lsn, haveLSN, err := readLSN(root)
	if err != nil {
		return err
	}

	const graceSeq = 0 // no additional grace window beyond exact LSN comparison

	for _, id := range nums {
		f, err := root.OpenFile(journalName(id), os.O_RDONLY, 0644)
		if err != nil {
			return err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return err
		}
		if len(data) < journalHeaderSize {
			continue
		}
		magic := binary.LittleEndian.Uint32(data[0:4])
		if magic != journalFileMagic {
			return fmt.Errorf("durability: bad journal header magic in j._%d", id)
		}

		pos := journalHeaderSize
	sections:
		for pos < len(data) {
			sec, n, err := parseSection(data[pos:])
			switch {
			case err == ErrCorruptSection:
				// Crash landed mid-write of this section. Everything
				// before it is already durable; stop here rather than
				// treating the rest of the file (or later files) as
				// valid.
				break sections
			case err != nil:
				// A short/malformed header at the tail is the same
				// "truncated mid-write" case; anything parseable
				// earlier in this file is still replayed.
				break sections
			}

			applied := haveLSN && (id < lsnFileID || (id == lsnFileID && sec.SeqNumber+graceSeq <= lsn))
			if !applied {
				if err := replaySection(applier, sec); err != nil {
					return err
				}
			}
			pos += n
		}
	}

	if err := applier.Sync(); err != nil {
		return err
	}

	for _, id := range nums {
		if err := root.Remove(journalName(id)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func replaySection(applier Applier, sec section) error {
	for _, op := range sec.Ops {
		if err := op.replay(applier); err != nil {
			return err
		}
	}
	for _, w := range sec.Writes {
		if err := applier.ApplyWrite(w.DBPath, w.FileNum, w.Offset, w.Data); err != nil {
			return err
		}
	}
	return nil
}
