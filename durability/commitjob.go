package durability

import "sync"

// Applier is the data-file side of a commit: the thing a recovered or
// freshly-flushed section's bytes are propagated into. storage.Store
// (via a thin adapter in the root package) is the only real
// implementation; durability never imports storage directly so that
// either package can be tested in isolation.
type Applier interface {
	// ApplyWrite copies data into file fileNum of database dbPath at
	// offset, the same effect the original write had on the writable
	// view.
	ApplyWrite(dbPath string, fileNum int32, offset int64, data []byte) error
	// CreateFile ensures file fileNum of database dbPath exists and is
	// at least size bytes long.
	CreateFile(dbPath string, fileNum int32, size int64) error
	// DropDatabase removes every file belonging to dbPath.
	DropDatabase(dbPath string) error
	// Sync flushes any buffering the applier does internally. Called
	// once after a recovery pass completes.
	Sync() error
}

// CommitJob is the process-wide collection point every IntentList
// feeds into. One JournalWriter drains one CommitJob per tick.
type CommitJob struct {
	mu      sync.Mutex
	threads []*IntentList
	ops     []DurOp
}

// NewCommitJob creates an empty commit job.
func NewCommitJob() *CommitJob {
	return &CommitJob{}
}

// Thread registers a new per-goroutine intent list with the job. The
// caller keeps the returned list for as long as it keeps recording
// writes against this job.
func (j *CommitJob) Thread() *IntentList {
	l := &IntentList{}
	j.mu.Lock()
	j.threads = append(j.threads, l)
	j.mu.Unlock()
	return l
}

// RecordOp queues a typed, non-basic-write operation for the next
// commit tick.
func (j *CommitJob) RecordOp(op DurOp) {
	j.mu.Lock()
	j.ops = append(j.ops, op)
	j.mu.Unlock()
}

// drain collects every thread's pending intents plus the job's queued
// ops, merges overlapping/abutting same-file intents, and clears the
// job for the next tick. The durability mutex (j.mu) is held only for
// this collection step, matching the "buffer-build phase only" rule —
// the caller's subsequent encode/fsync happens outside any lock drain
// holds.
func (j *CommitJob) drain() ([]DurOp, []WriteIntent) {
	j.mu.Lock()
	ops := j.ops
	j.ops = nil
	threads := append([]*IntentList(nil), j.threads...)
	j.mu.Unlock()

	var all []WriteIntent
	for _, t := range threads {
		all = append(all, t.drain()...)
	}
	return ops, mergeIntents(all)
}
