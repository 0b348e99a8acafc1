package shard

import (
	"sort"
	"sync"

	"github.com/jpl-au/stratum/bsondoc"
)

// Manager is the per-sharded-collection routing table: an ordered
// list of chunks that exactly partitions the shard-key space (no gaps,
// no overlaps), plus the collection-version every chunk mutation
// bumps.
type Manager struct {
	mu      sync.RWMutex
	chunks  []*Chunk // sorted by Min, ascending
	collVer Version
}

// NewManager creates a manager with a single chunk spanning the
// entire key space, owned by initialShard.
func NewManager(initialShard string) *Manager {
	v := Version{Major: 1, Minor: 0}
	return &Manager{
		chunks:  []*Chunk{{Min: MinKey, Max: MaxKey, Shard: initialShard, Version: v}},
		collVer: v,
	}
}

// CollectionVersion returns the current collection-version: the max
// version over all chunks.
func (m *Manager) CollectionVersion() Version {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collVer
}

// FindChunk returns the chunk owning key via binary search over the
// sorted chunk list. ErrNoChunkForKey should not occur for a valid
// partition; its appearance indicates a corrupted chunk list.
func (m *Manager) FindChunk(key bsondoc.Value) (*Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findChunkLocked(key)
}

func (m *Manager) findChunkLocked(key bsondoc.Value) (*Chunk, error) {
	i := sort.Search(len(m.chunks), func(i int) bool {
		return bsondoc.Compare(m.chunks[i].Max, key) > 0
	})
	if i >= len(m.chunks) || !m.chunks[i].contains(key) {
		return nil, ErrNoChunkForKey
	}
	return m.chunks[i], nil
}

// ChunksForRange returns every chunk whose range intersects [lo, hi),
// the chunk set a range-query's shard-key predicate must fan out to.
func (m *Manager) ChunksForRange(lo, hi bsondoc.Value) []*Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Chunk
	for _, c := range m.chunks {
		if c.overlapsRange(lo, hi) {
			out = append(out, c)
		}
	}
	return out
}

// Snapshot returns a point-in-time copy of every chunk, sorted by Min.
func (m *Manager) Snapshot() []*Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Chunk, len(m.chunks))
	for i, c := range m.chunks {
		out[i] = c.Clone()
	}
	return out
}

// loadFrom replaces the manager's chunk list wholesale — used when a
// stale shard reloads its routing table from the config store.
func (m *Manager) loadFrom(chunks []*Chunk, collVer Version) {
	sorted := append([]*Chunk(nil), chunks...)
	sort.Slice(sorted, func(i, j int) bool { return bsondoc.Compare(sorted[i].Min, sorted[j].Min) < 0 })

	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = sorted
	m.collVer = collVer
}

// indexOf returns the slice index of chunk c by identity, or -1.
func (m *Manager) indexOf(c *Chunk) int {
	for i, x := range m.chunks {
		if x == c {
			return i
		}
	}
	return -1
}
