package query

import (
	"math"
	"regexp"

	"github.com/jpl-au/stratum/bsondoc"
	"github.com/jpl-au/stratum/geo"
)

// predicate tests one resolved field value (and whether the field was
// present at all) against a single operator's condition.
type predicate interface {
	eval(v bsondoc.Value, present bool) bool
}

// compileField turns one (path, value) pair of a filter document into
// an Expr. A document value whose fields are all operator names
// ("$gt", "$in", ...) compiles to the conjunction of those operators
// on path; any other value (including a plain document, which has no
// operator-shaped fields) is an equality test.
func compileField(path string, v bsondoc.Value) (Expr, error) {
	if v.Type == bsondoc.TypeDocument && isOperatorDocument(v.Document) {
		var preds []predicate
		for _, f := range v.Document.Fields {
			p, err := compileOperator(f.Name, f.Value)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
		return fieldExpr{path: path, pred: allOf{preds}}, nil
	}
	return fieldExpr{path: path, pred: eqPred{target: v}}, nil
}

func isOperatorDocument(doc *bsondoc.Document) bool {
	if doc.Len() == 0 {
		return false
	}
	for _, f := range doc.Fields {
		if len(f.Name) == 0 || f.Name[0] != '$' {
			return false
		}
	}
	return true
}

func compileOperator(op string, arg bsondoc.Value) (predicate, error) {
	switch op {
	case "$eq":
		return eqPred{target: arg}, nil
	case "$ne":
		return nePred{target: arg}, nil
	case "$gt":
		return cmpPred{target: arg, accept: func(c int) bool { return c > 0 }}, nil
	case "$gte":
		return cmpPred{target: arg, accept: func(c int) bool { return c >= 0 }}, nil
	case "$lt":
		return cmpPred{target: arg, accept: func(c int) bool { return c < 0 }}, nil
	case "$lte":
		return cmpPred{target: arg, accept: func(c int) bool { return c <= 0 }}, nil
	case "$in":
		vals, err := arrayValues(arg)
		if err != nil {
			return nil, err
		}
		return inPred{values: vals}, nil
	case "$nin":
		vals, err := arrayValues(arg)
		if err != nil {
			return nil, err
		}
		return notPred{inner: inPred{values: vals}}, nil
	case "$exists":
		return existsPred{want: arg.Bool}, nil
	case "$size":
		return sizePred{n: int(numericOperand(arg))}, nil
	case "$regex":
		pattern, opts := regexOperand(arg)
		if !opts.caseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, ErrInvalidPattern
		}
		return regexPred{re: re}, nil
	case "$near":
		return compileNear(arg)
	case "$within":
		return compileWithin(arg)
	default:
		return nil, ErrInvalidOperator
	}
}

func arrayValues(v bsondoc.Value) ([]bsondoc.Value, error) {
	if !bsondoc.IsArray(v) {
		return nil, ErrInvalidOperand
	}
	out := make([]bsondoc.Value, 0, len(v.Array.Fields))
	for _, f := range v.Array.Fields {
		out = append(out, f.Value)
	}
	return out, nil
}

func numericOperand(v bsondoc.Value) float64 {
	switch v.Type {
	case bsondoc.TypeInt32:
		return float64(v.Int32)
	case bsondoc.TypeInt64:
		return float64(v.Int64)
	case bsondoc.TypeDouble:
		return v.Double
	default:
		return math.NaN()
	}
}

type regexOpts struct{ caseSensitive bool }

// regexOperand accepts either a bare TypeRegex value or a TypeString
// pattern (the latter when $regex is given alongside $options is left
// out of scope — the embedded Regex type already carries its options
// string).
func regexOperand(v bsondoc.Value) (string, regexOpts) {
	if v.Type == bsondoc.TypeRegex {
		opts := regexOpts{caseSensitive: true}
		for _, c := range v.Regex.Options {
			if c == 'i' {
				opts.caseSensitive = false
			}
		}
		return v.Regex.Pattern, opts
	}
	return v.String, regexOpts{caseSensitive: true}
}

// eqPred matches equal values directly, and — matching the store's
// general "an array field matches if any element matches" convention
// used by multi-key indexing — matches an array field that contains
// an equal element.
type eqPred struct{ target bsondoc.Value }

func (p eqPred) eval(v bsondoc.Value, present bool) bool {
	return valueOrElementMatches(v, present, func(x bsondoc.Value) bool {
		return bsondoc.Compare(x, p.target) == 0
	})
}

type nePred struct{ target bsondoc.Value }

func (p nePred) eval(v bsondoc.Value, present bool) bool {
	return !(eqPred{target: p.target}).eval(v, present)
}

type cmpPred struct {
	target bsondoc.Value
	accept func(cmp int) bool
}

func (p cmpPred) eval(v bsondoc.Value, present bool) bool {
	if !present {
		return false
	}
	return valueOrElementMatches(v, present, func(x bsondoc.Value) bool {
		return p.accept(bsondoc.Compare(x, p.target))
	})
}

type inPred struct{ values []bsondoc.Value }

func (p inPred) eval(v bsondoc.Value, present bool) bool {
	return valueOrElementMatches(v, present, func(x bsondoc.Value) bool {
		for _, want := range p.values {
			if bsondoc.Compare(x, want) == 0 {
				return true
			}
		}
		return false
	})
}

type notPred struct{ inner predicate }

func (p notPred) eval(v bsondoc.Value, present bool) bool {
	return !p.inner.eval(v, present)
}

type allOf struct{ preds []predicate }

func (p allOf) eval(v bsondoc.Value, present bool) bool {
	for _, pr := range p.preds {
		if !pr.eval(v, present) {
			return false
		}
	}
	return true
}

type existsPred struct{ want bool }

func (p existsPred) eval(_ bsondoc.Value, present bool) bool {
	return present == p.want
}

type sizePred struct{ n int }

func (p sizePred) eval(v bsondoc.Value, present bool) bool {
	if !present || !bsondoc.IsArray(v) {
		return false
	}
	return v.Array.Len() == p.n
}

type regexPred struct{ re *regexp.Regexp }

func (p regexPred) eval(v bsondoc.Value, present bool) bool {
	if !present || v.Type != bsondoc.TypeString {
		return false
	}
	return p.re.MatchString(v.String)
}

// valueOrElementMatches applies test to v directly, or — if v is an
// array — to each element, matching if any element satisfies it. This
// is the query-time analogue of multi-key indexing: a field holding
// an array is treated as "matches if any of its values would".
func valueOrElementMatches(v bsondoc.Value, present bool, test func(bsondoc.Value) bool) bool {
	if !present {
		return test(bsondoc.Value{Type: bsondoc.TypeNull})
	}
	if bsondoc.IsArray(v) {
		for _, f := range v.Array.Fields {
			if test(f.Value) {
				return true
			}
		}
		return false
	}
	return test(v)
}

// coordinatesOf reads a 2-element numeric array field value as a
// geo.Point, the legacy-coordinate-pair convention ([x, y]).
func coordinatesOf(v bsondoc.Value, present bool) (geo.Point, bool) {
	if !present || !bsondoc.IsArray(v) || len(v.Array.Fields) != 2 {
		return geo.Point{}, false
	}
	x := numericOperand(v.Array.Fields[0].Value)
	y := numericOperand(v.Array.Fields[1].Value)
	if math.IsNaN(x) || math.IsNaN(y) {
		return geo.Point{}, false
	}
	return geo.Point{X: x, Y: y}, true
}
