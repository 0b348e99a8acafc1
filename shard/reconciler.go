package shard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpl-au/stratum/bsondoc"
)

// reconcilerState mirrors the blocking-state convention folio's
// background maintenance passes use (an atomic state word gating
// concurrent access while a pass runs), adapted here from a one-shot
// pass triggered by Open into a periodic ticking goroutine, since a
// routing table's staleness accumulates continuously rather than only
// at startup.
type reconcilerState int32

const (
	reconcilerIdle reconcilerState = iota
	reconcilerRunning
	reconcilerStopped
)

// ChunkVersionFetcher is the config store's view a Reconciler needs:
// the authoritative version of every chunk currently owned by this
// shard, keyed by chunk Min.
type ChunkVersionFetcher interface {
	OwnedChunkVersions(ctx context.Context, shard string) (map[string]Version, error)
}

// Reconciler periodically re-fetches the config-store's authoritative
// versions for chunks this shard believes it owns and compares them
// with the manager's routing table. A mismatch is detected but not
// acted on: the routing table is not reloaded and onError is not
// called for it. It exists because
// Migrate can return ErrReconcileNeeded when a commit's config-store
// call fails after the recipient may already have observed the
// ownership flip: rather than the commit path itself guessing at the
// outcome, it defers resolution to this background pass, which will
// discover the true state on its next tick regardless of which side
// of the ambiguity actually happened.
type Reconciler struct {
	mgr    *Manager
	shard  string
	fetch  ChunkVersionFetcher
	period time.Duration

	state   atomic.Int32
	stopCh  chan struct{}
	wg      sync.WaitGroup
	onError func(error)
}

// NewReconciler creates a Reconciler for the given manager and shard
// name, polling fetch every period. onError, if non-nil, is called
// with any error a reconcile pass encounters; a nil onError silently
// drops the error and retries on the next tick.
func NewReconciler(mgr *Manager, shard string, fetch ChunkVersionFetcher, period time.Duration, onError func(error)) *Reconciler {
	return &Reconciler{
		mgr:     mgr,
		shard:   shard,
		fetch:   fetch,
		period:  period,
		stopCh:  make(chan struct{}),
		onError: onError,
	}
}

// Start launches the background ticking goroutine. It is safe to call
// only once per Reconciler.
func (r *Reconciler) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.runOnce(ctx)
			}
		}
	}()
}

// Stop halts the background goroutine and waits for the in-flight
// pass, if any, to finish.
func (r *Reconciler) Stop() {
	r.state.Store(int32(reconcilerStopped))
	close(r.stopCh)
	r.wg.Wait()
}

// runOnce performs a single reconcile pass: fetch authoritative
// versions for every chunk this shard believes it owns, and check
// whether any local version disagrees with the config store's. The
// pass changes no chunk either way.
func (r *Reconciler) runOnce(ctx context.Context) {
	if !r.state.CompareAndSwap(int32(reconcilerIdle), int32(reconcilerRunning)) {
		return // a pass is already running, or Stop was called
	}
	defer r.state.CompareAndSwap(int32(reconcilerRunning), int32(reconcilerIdle))

	authoritative, err := r.fetch.OwnedChunkVersions(ctx, r.shard)
	if err != nil {
		if r.onError != nil {
			r.onError(err)
		}
		return
	}

	mismatched := false
	for _, c := range r.mgr.Snapshot() {
		if c.Shard != r.shard {
			continue
		}
		want, ok := authoritative[keyFingerprint(c.Min)]
		if !ok || want.Compare(c.Version) != 0 {
			mismatched = true
			break
		}
	}
	if !mismatched {
		return
	}
	// No reload happens here: ChunkVersionFetcher returns versions
	// only, not the chunk list a reload would need.
}

// keyFingerprint renders a shard-key bound to the string form the
// config-store's chunk map is keyed by: the value's canonical BSON
// encoding, wrapped in a single-field document since bsondoc only
// encodes whole documents. Two equal values always produce identical
// bytes, which is all a map key needs.
func keyFingerprint(v bsondoc.Value) string {
	wrapped := bsondoc.New(bsondoc.F("k", v))
	b, err := bsondoc.Encode(wrapped)
	if err != nil {
		return ""
	}
	return string(b)
}
