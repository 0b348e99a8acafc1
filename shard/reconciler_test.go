package shard

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFetchFailed = errors.New("fetch failed")

// TestReconcilerRunOnceIsANoOpWhenVersionsAgree checks that a clean
// match never invokes onError and completes without mutating state.
func TestReconcilerRunOnceIsANoOpWhenVersionsAgree(t *testing.T) {
	m := NewManager("shard0")
	c, _ := m.FindChunk(i32key(0))
	cs := NewInMemoryConfigStore()
	cs.SeedChunk(c)

	var gotErr error
	r := NewReconciler(m, "shard0", cs, time.Hour, func(err error) { gotErr = err })
	r.runOnce(context.Background())

	if gotErr != nil {
		t.Errorf("expected no error from a clean reconcile pass, got %v", gotErr)
	}
}

// TestReconcilerReportsFetchErrors checks a config-store fetch
// failure is surfaced via onError rather than panicking or silently
// stalling.
func TestReconcilerReportsFetchErrors(t *testing.T) {
	m := NewManager("shard0")
	failing := failingFetcher{}

	var gotErr error
	r := NewReconciler(m, "shard0", failing, time.Hour, func(err error) { gotErr = err })
	r.runOnce(context.Background())

	if gotErr == nil {
		t.Error("expected the fetch error to reach onError")
	}
}

type failingFetcher struct{}

func (failingFetcher) OwnedChunkVersions(ctx context.Context, shard string) (map[string]Version, error) {
	return nil, errFetchFailed
}

// TestReconcilerStartStopCompletesCleanly checks the ticking
// goroutine shuts down without leaking.
func TestReconcilerStartStopCompletesCleanly(t *testing.T) {
	m := NewManager("shard0")
	cs := NewInMemoryConfigStore()
	r := NewReconciler(m, "shard0", cs, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	time.Sleep(5 * time.Millisecond)
	r.Stop()
}
