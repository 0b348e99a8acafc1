package geo

import (
	"testing"

	"github.com/jpl-au/stratum/bsondoc"
	"github.com/jpl-au/stratum/btree"
	"github.com/jpl-au/stratum/storage"
)

func pointDoc(id int32, x, y float64) *bsondoc.Document {
	return bsondoc.New(
		bsondoc.F("_id", bsondoc.Value{Type: bsondoc.TypeInt32, Int32: id}),
		bsondoc.F("x", bsondoc.Value{Type: bsondoc.TypeDouble, Double: x}),
		bsondoc.F("y", bsondoc.Value{Type: bsondoc.TypeDouble, Double: y}),
	)
}

func locFor(id int32) storage.RecordLocation {
	return storage.RecordLocation{FileNum: 0, Offset: int64(id)}
}

// TestIndexInsertAndNearFindsClosestPoints checks that Near returns
// the n points nearest the query, ordered closest-first.
func TestIndexInsertAndNearFindsClosestPoints(t *testing.T) {
	idx := NewIndex(DefaultConfig(Range{Min: 0, Max: 1000}), "x", "y", nil, false)

	points := []struct {
		id   int32
		x, y float64
	}{
		{1, 10, 10},
		{2, 500, 500},
		{3, 12, 9},
		{4, 900, 900},
		{5, 11, 11},
	}
	for _, p := range points {
		if err := idx.Insert(pointDoc(p.id, p.x, p.y), locFor(p.id)); err != nil {
			t.Fatalf("Insert(%d): %v", p.id, err)
		}
	}

	got, err := idx.Near(Point{X: 10, Y: 10}, 0, 3)
	if err != nil {
		t.Fatalf("Near: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d: %+v", len(got), got)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Dist < got[i-1].Dist {
			t.Fatalf("results not sorted by distance: %+v", got)
		}
	}
	wantIDs := map[int64]bool{1: true, 3: true, 5: true}
	for _, c := range got {
		if !wantIDs[c.Loc.Offset] {
			t.Errorf("unexpected result id %d in nearest-3 of the cluster at (10,10): %+v", c.Loc.Offset, got)
		}
	}
}

// TestIndexNearRespectsMaxDist checks that points beyond maxDist are
// excluded even if they would otherwise be among the n closest.
func TestIndexNearRespectsMaxDist(t *testing.T) {
	idx := NewIndex(DefaultConfig(Range{Min: 0, Max: 1000}), "x", "y", nil, false)
	idx.Insert(pointDoc(1, 10, 10), locFor(1))
	idx.Insert(pointDoc(2, 800, 800), locFor(2))

	got, err := idx.Near(Point{X: 10, Y: 10}, 5, 5)
	if err != nil {
		t.Fatalf("Near: %v", err)
	}
	if len(got) != 1 || got[0].Loc.Offset != 1 {
		t.Fatalf("expected only the in-range point, got %+v", got)
	}
}

// TestIndexRemoveStopsFutureMatches checks that a removed point no
// longer surfaces in Near results.
func TestIndexRemoveStopsFutureMatches(t *testing.T) {
	idx := NewIndex(DefaultConfig(Range{Min: 0, Max: 1000}), "x", "y", nil, false)
	doc := pointDoc(1, 10, 10)
	idx.Insert(doc, locFor(1))
	if err := idx.Remove(doc, locFor(1)); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	got, err := idx.Near(Point{X: 10, Y: 10}, 0, 5)
	if err != nil {
		t.Fatalf("Near: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no results after removal, got %+v", got)
	}
}

// TestIndexWithinCircleFindsAllPointsInRadius checks membership
// against a circular query region, including and excluding boundary
// cases.
func TestIndexWithinCircleFindsAllPointsInRadius(t *testing.T) {
	idx := NewIndex(DefaultConfig(Range{Min: 0, Max: 1000}), "x", "y", nil, false)
	idx.Insert(pointDoc(1, 50, 50), locFor(1))
	idx.Insert(pointDoc(2, 53, 50), locFor(2))
	idx.Insert(pointDoc(3, 200, 200), locFor(3))

	got, err := idx.WithinCircle(Point{X: 50, Y: 50}, 5)
	if err != nil {
		t.Fatalf("WithinCircle: %v", err)
	}
	ids := map[int64]bool{}
	for _, c := range got {
		ids[c.Loc.Offset] = true
	}
	if !ids[1] || !ids[2] || ids[3] {
		t.Fatalf("unexpected membership: %+v", got)
	}
}

// TestIndexWithinBoxFindsPointsInsideTheRectangle checks exact
// membership against an axis-aligned box, rejecting a point just
// outside each edge.
func TestIndexWithinBoxFindsPointsInsideTheRectangle(t *testing.T) {
	idx := NewIndex(DefaultConfig(Range{Min: 0, Max: 1000}), "x", "y", nil, false)
	idx.Insert(pointDoc(1, 100, 100), locFor(1)) // inside
	idx.Insert(pointDoc(2, 50, 100), locFor(2))  // outside (left of box)
	idx.Insert(pointDoc(3, 150, 100), locFor(3)) // outside (right of box)

	got, err := idx.WithinBox(Box{BottomLeft: Point{X: 80, Y: 80}, TopRight: Point{X: 120, Y: 120}})
	if err != nil {
		t.Fatalf("WithinBox: %v", err)
	}
	if len(got) != 1 || got[0].Loc.Offset != 1 {
		t.Fatalf("expected only point 1 inside the box, got %+v", got)
	}
}

// TestIndexCompoundSuffixIsPreservedInKeys checks that a compound geo
// index (geohash + a suffix field) still inserts and removes without
// error, exercising the suffix-component key path.
func TestIndexCompoundSuffixIsPreservedInKeys(t *testing.T) {
	suffix := btree.NewKeyPattern(btree.KeyPart{Path: "category", Dir: btree.Ascending})
	idx := NewIndex(DefaultConfig(Range{Min: 0, Max: 1000}), "x", "y", suffix, false)

	doc := bsondoc.New(
		bsondoc.F("x", bsondoc.Value{Type: bsondoc.TypeDouble, Double: 10}),
		bsondoc.F("y", bsondoc.Value{Type: bsondoc.TypeDouble, Double: 10}),
		bsondoc.F("category", bsondoc.Value{Type: bsondoc.TypeString, String: "cafe"}),
	)
	if err := idx.Insert(doc, locFor(1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := idx.Remove(doc, locFor(1)); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}
