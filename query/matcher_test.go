package query

import (
	"testing"

	"github.com/jpl-au/stratum/bsondoc"
)

func i32(n int32) bsondoc.Value   { return bsondoc.Value{Type: bsondoc.TypeInt32, Int32: n} }
func str(s string) bsondoc.Value  { return bsondoc.Value{Type: bsondoc.TypeString, String: s} }
func dbl(f float64) bsondoc.Value { return bsondoc.Value{Type: bsondoc.TypeDouble, Double: f} }

func arrayOf(vals ...bsondoc.Value) bsondoc.Value {
	fields := make([]bsondoc.Field, len(vals))
	for i, v := range vals {
		fields[i] = bsondoc.F(indexName(i), v)
	}
	return bsondoc.Value{Type: bsondoc.TypeArray, Array: bsondoc.New(fields...)}
}

func indexName(i int) string { return string(rune('0' + i)) }

func mustCompile(t *testing.T, filter *bsondoc.Document) *Matcher {
	t.Helper()
	m, err := Compile(filter)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return m
}

// TestImplicitEqualityMatchesPlainValue checks that a bare {field:
// value} filter is an equality test.
func TestImplicitEqualityMatchesPlainValue(t *testing.T) {
	filter := bsondoc.New(bsondoc.F("a", i32(5)))
	m := mustCompile(t, filter)

	match := bsondoc.New(bsondoc.F("a", i32(5)))
	nomatch := bsondoc.New(bsondoc.F("a", i32(6)))
	if !m.Match(match) {
		t.Errorf("expected a=5 to match {a: 5}")
	}
	if m.Match(nomatch) {
		t.Errorf("expected a=6 not to match {a: 5}")
	}
}

// TestImplicitTopLevelFieldsAreAnded checks that multiple top-level
// fields require all of them to hold.
func TestImplicitTopLevelFieldsAreAnded(t *testing.T) {
	filter := bsondoc.New(bsondoc.F("a", i32(1)), bsondoc.F("b", str("x")))
	m := mustCompile(t, filter)

	both := bsondoc.New(bsondoc.F("a", i32(1)), bsondoc.F("b", str("x")))
	onlyA := bsondoc.New(bsondoc.F("a", i32(1)), bsondoc.F("b", str("y")))
	if !m.Match(both) {
		t.Errorf("expected a match when both fields hold")
	}
	if m.Match(onlyA) {
		t.Errorf("expected no match when only one field holds")
	}
}

// TestComparisonOperators checks $gt/$gte/$lt/$lte.
func TestComparisonOperators(t *testing.T) {
	cases := []struct {
		op   string
		val  int32
		want map[int32]bool
	}{
		{"$gt", 5, map[int32]bool{4: false, 5: false, 6: true}},
		{"$gte", 5, map[int32]bool{4: false, 5: true, 6: true}},
		{"$lt", 5, map[int32]bool{4: true, 5: false, 6: false}},
		{"$lte", 5, map[int32]bool{4: true, 5: true, 6: false}},
	}
	for _, c := range cases {
		filter := bsondoc.New(bsondoc.F("a", bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(bsondoc.F(c.op, i32(c.val)))}))
		m := mustCompile(t, filter)
		for input, want := range c.want {
			doc := bsondoc.New(bsondoc.F("a", i32(input)))
			if got := m.Match(doc); got != want {
				t.Errorf("%s %d against a=%d: got %v, want %v", c.op, c.val, input, got, want)
			}
		}
	}
}

// TestInAndNin checks membership operators, including array-field
// "matches if any element matches" semantics.
func TestInAndNin(t *testing.T) {
	inFilter := bsondoc.New(bsondoc.F("a", bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(
		bsondoc.F("$in", arrayOf(i32(1), i32(2), i32(3))),
	)}))
	m := mustCompile(t, inFilter)
	if !m.Match(bsondoc.New(bsondoc.F("a", i32(2)))) {
		t.Errorf("expected a=2 to match $in [1,2,3]")
	}
	if m.Match(bsondoc.New(bsondoc.F("a", i32(9)))) {
		t.Errorf("expected a=9 not to match $in [1,2,3]")
	}
	if !m.Match(bsondoc.New(bsondoc.F("a", arrayOf(i32(9), i32(2))))) {
		t.Errorf("expected an array field containing 2 to match $in [1,2,3]")
	}
}

// TestExists checks $exists true/false against a present and an
// absent field.
func TestExists(t *testing.T) {
	filter := bsondoc.New(bsondoc.F("a", bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(
		bsondoc.F("$exists", bsondoc.Value{Type: bsondoc.TypeBool, Bool: true}),
	)}))
	m := mustCompile(t, filter)
	if !m.Match(bsondoc.New(bsondoc.F("a", i32(1)))) {
		t.Errorf("expected a present to satisfy $exists: true")
	}
	if m.Match(bsondoc.New(bsondoc.F("b", i32(1)))) {
		t.Errorf("expected a absent not to satisfy $exists: true")
	}
}

// TestSize checks $size against array and non-array fields.
func TestSize(t *testing.T) {
	filter := bsondoc.New(bsondoc.F("tags", bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(
		bsondoc.F("$size", i32(2)),
	)}))
	m := mustCompile(t, filter)
	if !m.Match(bsondoc.New(bsondoc.F("tags", arrayOf(str("x"), str("y"))))) {
		t.Errorf("expected a 2-element array to match $size: 2")
	}
	if m.Match(bsondoc.New(bsondoc.F("tags", arrayOf(str("x"))))) {
		t.Errorf("expected a 1-element array not to match $size: 2")
	}
	if m.Match(bsondoc.New(bsondoc.F("tags", str("x")))) {
		t.Errorf("expected a non-array field not to match $size")
	}
}

// TestRegex checks case-insensitive-by-default pattern matching.
func TestRegex(t *testing.T) {
	filter := bsondoc.New(bsondoc.F("name", bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(
		bsondoc.F("$regex", str("^foo")),
	)}))
	m := mustCompile(t, filter)
	if !m.Match(bsondoc.New(bsondoc.F("name", str("FOOBAR")))) {
		t.Errorf("expected case-insensitive prefix match to succeed")
	}
	if m.Match(bsondoc.New(bsondoc.F("name", str("barfoo")))) {
		t.Errorf("expected a non-prefix match to fail")
	}
}

// TestAndOrNorNot exercises the four logical combinators.
func TestAndOrNorNot(t *testing.T) {
	and := bsondoc.New(bsondoc.F("$and", arrayOf(
		bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(bsondoc.F("a", i32(1)))},
		bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(bsondoc.F("b", i32(2)))},
	)))
	mAnd := mustCompile(t, and)
	if !mAnd.Match(bsondoc.New(bsondoc.F("a", i32(1)), bsondoc.F("b", i32(2)))) {
		t.Errorf("expected $and to match when both hold")
	}
	if mAnd.Match(bsondoc.New(bsondoc.F("a", i32(1)), bsondoc.F("b", i32(3)))) {
		t.Errorf("expected $and not to match when one fails")
	}

	or := bsondoc.New(bsondoc.F("$or", arrayOf(
		bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(bsondoc.F("a", i32(1)))},
		bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(bsondoc.F("a", i32(2)))},
	)))
	mOr := mustCompile(t, or)
	if !mOr.Match(bsondoc.New(bsondoc.F("a", i32(2)))) {
		t.Errorf("expected $or to match a=2")
	}
	if mOr.Match(bsondoc.New(bsondoc.F("a", i32(3)))) {
		t.Errorf("expected $or not to match a=3")
	}

	nor := bsondoc.New(bsondoc.F("$nor", arrayOf(
		bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(bsondoc.F("a", i32(1)))},
	)))
	mNor := mustCompile(t, nor)
	if mNor.Match(bsondoc.New(bsondoc.F("a", i32(1)))) {
		t.Errorf("expected $nor to reject a=1")
	}
	if !mNor.Match(bsondoc.New(bsondoc.F("a", i32(2)))) {
		t.Errorf("expected $nor to accept a=2")
	}

	not := bsondoc.New(bsondoc.F("$not", bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(bsondoc.F("a", i32(1)))}))
	mNot := mustCompile(t, not)
	if mNot.Match(bsondoc.New(bsondoc.F("a", i32(1)))) {
		t.Errorf("expected $not to reject a=1")
	}
	if !mNot.Match(bsondoc.New(bsondoc.F("a", i32(2)))) {
		t.Errorf("expected $not to accept a=2")
	}
}

// TestDottedPathMatchesNestedDocument checks descent through a nested
// document field.
func TestDottedPathMatchesNestedDocument(t *testing.T) {
	filter := bsondoc.New(bsondoc.F("address.city", str("Darwin")))
	m := mustCompile(t, filter)

	inner := bsondoc.New(bsondoc.F("city", str("Darwin")))
	doc := bsondoc.New(bsondoc.F("address", bsondoc.Value{Type: bsondoc.TypeDocument, Document: inner}))
	if !m.Match(doc) {
		t.Errorf("expected dotted path to match nested field")
	}
}

// TestInvalidOperatorIsRejected checks that compiling an unknown
// operator fails rather than silently matching everything.
func TestInvalidOperatorIsRejected(t *testing.T) {
	filter := bsondoc.New(bsondoc.F("a", bsondoc.Value{Type: bsondoc.TypeDocument, Document: bsondoc.New(
		bsondoc.F("$bogus", i32(1)),
	)}))
	if _, err := Compile(filter); err != ErrInvalidOperator {
		t.Fatalf("expected ErrInvalidOperator, got %v", err)
	}
}
