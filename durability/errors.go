// Package durability implements write-ahead journaling: per-thread
// write intents are merged into a process-wide commit job, flushed as
// aligned sections into j._N journal files under group commit, and
// replayed against an Applier on startup to recover from a crash
// between a journal fsync and the matching data-file write.
package durability

import "fmt"

var (
	// ErrGap is returned when journal file numbers are not contiguous,
	// which would mean a file went missing between crashes.
	ErrGap = fmt.Errorf("durability: gap in journal file sequence")

	// ErrCorruptSection is returned when a section's footer digest does
	// not match its body. Recovery treats this as "truncate here and
	// stop" rather than a hard failure, since it is the expected shape
	// of a crash mid-write.
	ErrCorruptSection = fmt.Errorf("durability: section footer digest mismatch")

	// ErrClosed is returned by JournalWriter methods after Close.
	ErrClosed = fmt.Errorf("durability: journal writer is closed")
)
