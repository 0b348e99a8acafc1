package shard

import "errors"

var (
	// ErrStaleVersion is returned when a shard's cached collection
	// version no longer matches the config store and routing must
	// reload before it can be trusted.
	ErrStaleVersion = errors.New("shard: stale collection version")
	// ErrVersionAhead is returned to a router whose cached version is
	// newer than the shard's own — the shard refuses to serve until it
	// reloads, and the router is told to refresh too.
	ErrVersionAhead = errors.New("shard: router version ahead of shard")
	// ErrNoChunkForKey is returned when a key falls outside every
	// chunk's range, which the partition invariant says cannot happen
	// for an up-to-date chunk list.
	ErrNoChunkForKey = errors.New("shard: no chunk covers key")
	// ErrLockHeld is returned when a collection-level config store
	// lock is already held by another caller.
	ErrLockHeld = errors.New("shard: collection lock already held")
	// ErrCannotSplit is returned when a split's median key would not
	// strictly fall within (min, max).
	ErrCannotSplit = errors.New("shard: no valid split point")
	// ErrMigrationAborted is returned when a moveChunk's catch-up phase
	// cannot close the mods-log gap (recipient making no progress).
	ErrMigrationAborted = errors.New("shard: migration aborted during catch-up")
	// ErrReconcileNeeded is returned by a commit whose config store
	// call failed after the ownership flip may already have been
	// observed by the recipient — see §9's operator-driven
	// reconciliation note.
	ErrReconcileNeeded = errors.New("shard: migration commit is in an inconsistent state, reconciliation required")
)
