package shard

import (
	"context"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/jpl-au/stratum/bsondoc"
)

// InMemoryConfigStore is an in-process stand-in for the replicated
// config store's `config.shards`, `config.chunks`, `config.locks` and
// `config.changelog` collections, sufficient to drive this package's
// own tests and to exercise ConfigStore/ChunkVersionFetcher callers
// without standing up a real replicated deployment — which is out of
// scope here; a production config store would itself be another
// instance of the database this package's sibling packages implement,
// replicated via the durability package's journal.
type InMemoryConfigStore struct {
	mu        sync.Mutex
	locks     map[string]chan struct{} // collection -> held-lock channel
	owners    map[string]map[string]Version // collection -> chunk-key-fingerprint -> version
	changelog []ChangelogEntry
}

// ChangelogEntry records one config-store mutation, mirroring
// `config.changelog`'s role as an audit trail of every split and
// migration.
type ChangelogEntry struct {
	Collection string
	ChunkMin   bsondoc.Value
	NewShard   string
	NewVersion Version
}

// NewInMemoryConfigStore creates an empty store.
func NewInMemoryConfigStore() *InMemoryConfigStore {
	return &InMemoryConfigStore{
		locks:  make(map[string]chan struct{}),
		owners: make(map[string]map[string]Version),
	}
}

// Lock acquires the named collection's exclusive config-store lock,
// returning ErrLockHeld if it is already held. The returned unlock
// func releases it; callers should defer it immediately.
func (s *InMemoryConfigStore) Lock(ctx context.Context, collection string) (func(), error) {
	s.mu.Lock()
	ch, held := s.locks[collection]
	if held {
		select {
		case <-ch:
			held = false
		default:
		}
	}
	if held {
		s.mu.Unlock()
		return nil, ErrLockHeld
	}
	done := make(chan struct{})
	s.locks[collection] = done
	s.mu.Unlock()

	return func() {
		close(done)
	}, nil
}

// SetChunkOwner records the config store's authoritative view that
// chunk c is now owned by newShard at newVersion, and appends a
// changelog entry.
func (s *InMemoryConfigStore) SetChunkOwner(ctx context.Context, c *Chunk, newShard string, newVersion Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.owners[collectionKey] == nil {
		s.owners[collectionKey] = make(map[string]Version)
	}
	s.owners[collectionKey][keyFingerprint(c.Min)] = newVersion

	s.changelog = append(s.changelog, ChangelogEntry{
		Collection: collectionKey,
		ChunkMin:   c.Min,
		NewShard:   newShard,
		NewVersion: newVersion,
	})
	return nil
}

// collectionKey is the placeholder single-collection namespace this
// fake store uses; a real config store keys config.chunks by
// (database, collection) pairs, which this in-process stand-in does
// not need to distinguish for its own test purposes.
const collectionKey = "_default"

// OwnedChunkVersions implements ChunkVersionFetcher by returning every
// chunk version this store has recorded, regardless of which shard
// SetChunkOwner last assigned it to — tests that want a shard-scoped
// view should filter the shard's Manager.Snapshot() against this
// result themselves, matching what Reconciler.runOnce already does.
func (s *InMemoryConfigStore) OwnedChunkVersions(ctx context.Context, shard string) (map[string]Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Version, len(s.owners[collectionKey]))
	for k, v := range s.owners[collectionKey] {
		out[k] = v
	}
	return out, nil
}

// Changelog returns every mutation recorded so far, oldest first —
// the audit trail config.changelog provides in a real deployment.
func (s *InMemoryConfigStore) Changelog() []ChangelogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChangelogEntry(nil), s.changelog...)
}

// ChangelogJSON encodes the changelog the way a real config store
// would serialize config.changelog documents for a client reading
// them back over the wire.
func (s *InMemoryConfigStore) ChangelogJSON() ([]byte, error) {
	return json.Marshal(s.Changelog())
}

// SeedChunk records c's current owner/version directly, for test
// setup that wants the store pre-populated without going through a
// migration.
func (s *InMemoryConfigStore) SeedChunk(c *Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owners[collectionKey] == nil {
		s.owners[collectionKey] = make(map[string]Version)
	}
	s.owners[collectionKey][keyFingerprint(c.Min)] = c.Version
}
