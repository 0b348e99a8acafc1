package query

import (
	"testing"

	"github.com/jpl-au/stratum/bsondoc"
)

func locDoc(x, y float64) *bsondoc.Document {
	return bsondoc.New(bsondoc.F("loc", arrayOf(dbl(x), dbl(y))))
}

// TestNearWithMaxDistanceBoundsMatches checks that $near with
// $maxDistance rejects points beyond the radius.
func TestNearWithMaxDistanceBoundsMatches(t *testing.T) {
	filter := bsondoc.New(bsondoc.F("loc", bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(
		bsondoc.F("$near", bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(
			bsondoc.F("$point", arrayOf(dbl(0), dbl(0))),
			bsondoc.F("$maxDistance", dbl(10)),
		)}),
	)}))
	m := mustCompile(t, filter)

	if !m.Match(locDoc(3, 4)) {
		t.Errorf("expected (3,4) (distance 5) to match $near within 10")
	}
	if m.Match(locDoc(30, 40)) {
		t.Errorf("expected (30,40) (distance 50) not to match $near within 10")
	}
}

// TestNearWithoutMaxDistanceAcceptsAnyPoint checks that an unbounded
// $near accepts any point with valid coordinates.
func TestNearWithoutMaxDistanceAcceptsAnyPoint(t *testing.T) {
	filter := bsondoc.New(bsondoc.F("loc", bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(
		bsondoc.F("$near", bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(
			bsondoc.F("$point", arrayOf(dbl(0), dbl(0))),
		)}),
	)}))
	m := mustCompile(t, filter)
	if !m.Match(locDoc(1000, 1000)) {
		t.Errorf("expected an unbounded $near to accept a distant point")
	}
}

// TestWithinCircleAcceptsPointsInsideRadius checks $within circle.
func TestWithinCircleAcceptsPointsInsideRadius(t *testing.T) {
	filter := bsondoc.New(bsondoc.F("loc", bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(
		bsondoc.F("$within", bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(
			bsondoc.F("$circle", bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(
				bsondoc.F("$center", arrayOf(dbl(0), dbl(0))),
				bsondoc.F("$radius", dbl(5)),
			)}),
		)}),
	)}))
	m := mustCompile(t, filter)
	if !m.Match(locDoc(3, 4)) {
		t.Errorf("expected (3,4) to be within radius 5 of origin")
	}
	if m.Match(locDoc(10, 10)) {
		t.Errorf("expected (10,10) not to be within radius 5 of origin")
	}
}

// TestWithinBoxAcceptsPointsInsideRectangle checks $within box.
func TestWithinBoxAcceptsPointsInsideRectangle(t *testing.T) {
	filter := bsondoc.New(bsondoc.F("loc", bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(
		bsondoc.F("$within", bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(
			bsondoc.F("$box", bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(
				bsondoc.F("$bottomLeft", arrayOf(dbl(0), dbl(0))),
				bsondoc.F("$topRight", arrayOf(dbl(10), dbl(10))),
			)}),
		)}),
	)}))
	m := mustCompile(t, filter)
	if !m.Match(locDoc(5, 5)) {
		t.Errorf("expected (5,5) to be inside the box")
	}
	if m.Match(locDoc(20, 20)) {
		t.Errorf("expected (20,20) to be outside the box")
	}
}

// TestNearRejectsMalformedPoint checks that compiling $near with a
// non-2-element point fails rather than silently matching nothing at
// evaluation time with no diagnostic.
func TestNearRejectsMalformedPoint(t *testing.T) {
	filter := bsondoc.New(bsondoc.F("loc", bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(
		bsondoc.F("$near", bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(
			bsondoc.F("$point", arrayOf(dbl(0))),
		)}),
	)}))
	if _, err := Compile(filter); err != ErrInvalidOperand {
		t.Fatalf("expected ErrInvalidOperand, got %v", err)
	}
}
