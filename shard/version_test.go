package shard

import "testing"

// TestCheckRouterVersionAheadTellsShardToReload checks a router whose
// cached version is newer than the shard's own gets ErrVersionAhead.
func TestCheckRouterVersionAheadTellsShardToReload(t *testing.T) {
	m := NewManager("shard0")
	ahead := m.CollectionVersion().Next()
	if err := m.CheckRouterVersion(ahead); err != ErrVersionAhead {
		t.Fatalf("expected ErrVersionAhead, got %v", err)
	}
}

// TestCheckRouterVersionStaleTellsRouterToRefresh checks a router
// whose cached version lags the shard's own gets ErrStaleVersion but
// the shard still considers the request servable.
func TestCheckRouterVersionStaleTellsRouterToRefresh(t *testing.T) {
	m := NewManager("shard0")
	root, _ := m.FindChunk(i32key(0))
	stale := m.CollectionVersion()
	if _, _, err := m.Split(root, i32key(50)); err != nil {
		t.Fatal(err)
	}

	if err := m.CheckRouterVersion(stale); err != ErrStaleVersion {
		t.Fatalf("expected ErrStaleVersion, got %v", err)
	}
}

// TestCheckRouterVersionEqualIsANoOp checks the common case.
func TestCheckRouterVersionEqualIsANoOp(t *testing.T) {
	m := NewManager("shard0")
	if err := m.CheckRouterVersion(m.CollectionVersion()); err != nil {
		t.Fatalf("expected no error for matching versions, got %v", err)
	}
}
