package stratum

import (
	"context"
	"sort"
	"sync"

	"github.com/jpl-au/stratum/bsondoc"
	"github.com/jpl-au/stratum/shard"
)

// ShardRegistry is the admin command surface for sharding: shard
// membership, per-collection routing tables, and the moveChunk/split
// operations an operator (or a balancer) drives against them. It owns
// one shard.Manager per sharded collection and one shared
// shard.InMemoryConfigStore, the in-process stand-in for the
// replicated config-server metadata a real deployment would run
// against.
type ShardRegistry struct {
	mu       sync.RWMutex
	shards   map[string]bool
	managers map[string]*shard.Manager
	config   *shard.InMemoryConfigStore
}

// NewShardRegistry creates an empty registry.
func NewShardRegistry() *ShardRegistry {
	return &ShardRegistry{
		shards:   make(map[string]bool),
		managers: make(map[string]*shard.Manager),
		config:   shard.NewInMemoryConfigStore(),
	}
}

// AddShard registers a shard name as eligible to own chunks.
func (r *ShardRegistry) AddShard(name string) CommandResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shards[name] = true
	return CommandResult{OK: true}
}

// RemoveShard deregisters a shard name. It does not migrate away any
// chunks still owned by it — draining a shard before removal is the
// caller's responsibility, the same division of labor moveChunk
// already assumes between catch-up and commit.
func (r *ShardRegistry) RemoveShard(name string) CommandResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.shards, name)
	return CommandResult{OK: true}
}

// ListShards returns every registered shard name, sorted.
func (r *ShardRegistry) ListShards() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.shards))
	for name := range r.shards {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// EnableSharding installs a fresh single-chunk routing table for
// collName, owned entirely by initialShard until a later split or
// moveChunk redistributes it.
func (r *ShardRegistry) EnableSharding(collName, initialShard string) CommandResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.shards[initialShard] {
		return CommandResult{ErrMsg: "unknown shard " + initialShard, Code: Code(ErrBadValue)}
	}
	if _, ok := r.managers[collName]; ok {
		return CommandResult{ErrMsg: "already sharded", Code: Code(ErrBadValue)}
	}
	mgr := shard.NewManager(initialShard)
	r.managers[collName] = mgr
	for _, c := range mgr.Snapshot() {
		r.config.SeedChunk(c)
	}
	return CommandResult{OK: true}
}

// Manager returns the routing table for collName, or nil if it was
// never sharded.
func (r *ShardRegistry) Manager(collName string) *shard.Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.managers[collName]
}

// GetShardVersion reports collName's current collection version, for
// a router comparing its cached version against the authoritative one.
func (r *ShardRegistry) GetShardVersion(collName string) (shard.Version, error) {
	mgr := r.Manager(collName)
	if mgr == nil {
		return shard.Version{}, ErrNamespaceNotFound
	}
	return mgr.CollectionVersion(), nil
}

// Split splits the chunk covering key at splitPoint.
func (r *ShardRegistry) Split(collName string, key, splitPoint bsondoc.Value) CommandResult {
	mgr := r.Manager(collName)
	if mgr == nil {
		return CommandResult{ErrMsg: "not sharded", Code: Code(ErrNamespaceNotFound)}
	}
	c, err := mgr.FindChunk(key)
	if err != nil {
		return CommandResult{ErrMsg: err.Error(), Code: Code(ErrBadValue)}
	}
	if _, _, err := mgr.Split(c, splitPoint); err != nil {
		return CommandResult{ErrMsg: err.Error(), Code: Code(ErrBadValue)}
	}
	return CommandResult{OK: true}
}

// localCloner is the Cloner used when a "migration" never actually
// leaves this process: chunk data already lives in the one store
// every shard Manager here shares, so cloning and catch-up are no-ops
// and only the ownership/version bookkeeping in moveChunk exercises
// real logic. A deployment with physically separate shard processes
// replaces this with one that actually streams documents and tails
// the oplog for catch-up.
type localCloner struct{}

func (localCloner) CloneChunk(ctx context.Context, c *shard.Chunk) error { return nil }
func (localCloner) PendingMods(ctx context.Context, c *shard.Chunk) ([]shard.ModEntry, error) {
	return nil, nil
}
func (localCloner) ApplyMods(ctx context.Context, c *shard.Chunk, mods []shard.ModEntry) error {
	return nil
}

// MoveChunk migrates the chunk covering key to toShard.
func (r *ShardRegistry) MoveChunk(ctx context.Context, collName string, key bsondoc.Value, toShard string) CommandResult {
	r.mu.RLock()
	known := r.shards[toShard]
	mgr := r.managers[collName]
	cs := r.config
	r.mu.RUnlock()
	if !known {
		return CommandResult{ErrMsg: "unknown shard " + toShard, Code: Code(ErrBadValue)}
	}
	if mgr == nil {
		return CommandResult{ErrMsg: "not sharded", Code: Code(ErrNamespaceNotFound)}
	}
	c, err := mgr.FindChunk(key)
	if err != nil {
		return CommandResult{ErrMsg: err.Error(), Code: Code(ErrBadValue)}
	}
	if err := mgr.Migrate(ctx, collName, c, toShard, localCloner{}, cs); err != nil {
		return CommandResult{ErrMsg: err.Error(), Code: Code(ErrMigrationAborted)}
	}
	return CommandResult{OK: true}
}
