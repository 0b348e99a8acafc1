package shard

import (
	"context"

	"github.com/jpl-au/stratum/bsondoc"
)

// MigrationState names the phase a moveChunk is in. A donor and
// recipient shard each track their own Migration by ChunkMin/ChunkMax
// so either side can report its own view independently.
type MigrationState int

const (
	// MigrationCloning is the initial bulk-copy phase: the recipient
	// streams every document currently in the chunk while the donor
	// keeps serving reads and writes against it unmodified.
	MigrationCloning MigrationState = iota
	// MigrationCatchingUp replays the donor's mods log (inserts,
	// updates, deletes against the chunk accumulated during cloning)
	// against the recipient until the gap closes.
	MigrationCatchingUp
	// MigrationCommitting is the brief critical section in which the
	// donor stops serving the chunk, the last of the mods log is
	// applied, and ownership flips in the config store.
	MigrationCommitting
	// MigrationDone means ownership has flipped and the config store
	// reflects the recipient as owner.
	MigrationDone
)

// ModEntry is one donor-side operation recorded against a chunk while
// a migration's cloning phase is in flight, to be replayed at the
// recipient during catch-up.
type ModEntry struct {
	Key     bsondoc.Value
	Deleted bool
	Doc     *bsondoc.Document // nil when Deleted
}

// Cloner copies a chunk's documents from donor to recipient and
// reports per-document mod-log entries accumulated since cloning
// started. A real implementation streams over the wire; tests can
// supply an in-process fake.
type Cloner interface {
	CloneChunk(ctx context.Context, c *Chunk) error
	PendingMods(ctx context.Context, c *Chunk) ([]ModEntry, error)
	ApplyMods(ctx context.Context, c *Chunk, mods []ModEntry) error
}

// ConfigStore is the subset of the replicated config store a
// migration needs: acquiring the collection lock and flipping a
// chunk's owning shard under it.
type ConfigStore interface {
	Lock(ctx context.Context, collection string) (unlock func(), err error)
	SetChunkOwner(ctx context.Context, c *Chunk, newShard string, newVersion Version) error
}

// maxCatchUpRounds bounds how many times catch-up replays the mods
// log before giving up — a donor under sustained heavy write load
// against the migrating chunk might never let the gap close.
const maxCatchUpRounds = 8

// Migrate moves chunk c from its current shard to toShard using the
// classic three-phase moveChunk protocol: clone, iteratively catch up
// on mods accumulated during cloning, then commit under the
// collection lock (stop serving the chunk, apply the final mods,
// flip ownership in the config store).
//
// If the config store call in the commit phase fails after the
// recipient may already have observed or applied the ownership flip,
// Migrate returns ErrReconcileNeeded rather than guessing at the
// outcome — see reconciler.go, which resolves that ambiguity out of
// band on a later pass.
func (m *Manager) Migrate(ctx context.Context, collection string, c *Chunk, toShard string, cl Cloner, cs ConfigStore) error {
	if c.Shard == toShard {
		return nil
	}

	if err := cl.CloneChunk(ctx, c); err != nil {
		return err
	}

	converged := false
	for round := 0; round < maxCatchUpRounds; round++ {
		pending, err := cl.PendingMods(ctx, c)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			converged = true
			break
		}
		if err := cl.ApplyMods(ctx, c, pending); err != nil {
			return err
		}
	}
	if !converged {
		return ErrMigrationAborted
	}

	unlock, err := cs.Lock(ctx, collection)
	if err != nil {
		return err
	}
	defer unlock()

	final, err := cl.PendingMods(ctx, c)
	if err != nil {
		return ErrReconcileNeeded
	}
	if len(final) > 0 {
		if err := cl.ApplyMods(ctx, c, final); err != nil {
			return ErrReconcileNeeded
		}
	}

	m.mu.Lock()
	next := m.collVer.Next()
	c.Shard = toShard
	c.Version = next
	m.collVer = next
	m.mu.Unlock()

	if err := cs.SetChunkOwner(ctx, c, toShard, next); err != nil {
		return ErrReconcileNeeded
	}
	return nil
}
