// Package query implements the filter-document matcher: compiling a
// query document into an expression tree and evaluating it against a
// candidate document during a collection scan or index range walk.
package query

import "github.com/jpl-au/stratum/bsondoc"

// Expr is one node of a compiled filter's expression tree.
type Expr interface {
	match(doc *bsondoc.Document) bool
}

// Matcher is a compiled filter document, ready to test candidates.
type Matcher struct {
	root Expr
}

// Compile parses a filter document into a Matcher. Top-level fields
// are implicitly ANDed together, matching the usual document-query
// convention; `$and`, `$or`, `$nor`, and `$not` combine sub-filters
// explicitly.
func Compile(filter *bsondoc.Document) (*Matcher, error) {
	expr, err := compileDocument(filter)
	if err != nil {
		return nil, err
	}
	return &Matcher{root: expr}, nil
}

// Match reports whether doc satisfies the compiled filter.
func (m *Matcher) Match(doc *bsondoc.Document) bool {
	if m.root == nil {
		return true
	}
	return m.root.match(doc)
}

type andExpr struct{ clauses []Expr }

func (e andExpr) match(doc *bsondoc.Document) bool {
	for _, c := range e.clauses {
		if !c.match(doc) {
			return false
		}
	}
	return true
}

type orExpr struct{ clauses []Expr }

func (e orExpr) match(doc *bsondoc.Document) bool {
	if len(e.clauses) == 0 {
		return false
	}
	for _, c := range e.clauses {
		if c.match(doc) {
			return true
		}
	}
	return false
}

type norExpr struct{ clauses []Expr }

func (e norExpr) match(doc *bsondoc.Document) bool {
	for _, c := range e.clauses {
		if c.match(doc) {
			return false
		}
	}
	return true
}

type notExpr struct{ inner Expr }

func (e notExpr) match(doc *bsondoc.Document) bool {
	return !e.inner.match(doc)
}

// fieldExpr tests one field path against a single predicate.
type fieldExpr struct {
	path string
	pred predicate
}

func (e fieldExpr) match(doc *bsondoc.Document) bool {
	v, present := fieldValue(doc, e.path)
	return e.pred.eval(v, present)
}

// compileDocument turns one filter document (at any nesting level)
// into an Expr, recognizing the logical operators at the top of each
// document and treating every other field as an implicit equality or
// operator-document test.
func compileDocument(filter *bsondoc.Document) (Expr, error) {
	var clauses []Expr
	for _, f := range filter.Fields {
		switch f.Name {
		case "$and":
			sub, err := compileClauseList(f.Value)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, andExpr{clauses: sub})
		case "$or":
			sub, err := compileClauseList(f.Value)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, orExpr{clauses: sub})
		case "$nor":
			sub, err := compileClauseList(f.Value)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, norExpr{clauses: sub})
		case "$not":
			if f.Value.Type != bsondoc.TypeDocument {
				return nil, ErrInvalidOperand
			}
			inner, err := compileDocument(f.Value.Document)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, notExpr{inner: inner})
		default:
			expr, err := compileField(f.Name, f.Value)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, expr)
		}
	}
	return andExpr{clauses: clauses}, nil
}

func compileClauseList(v bsondoc.Value) ([]Expr, error) {
	if !bsondoc.IsArray(v) {
		return nil, ErrInvalidOperand
	}
	out := make([]Expr, 0, len(v.Array.Fields))
	for _, f := range v.Array.Fields {
		if f.Value.Type != bsondoc.TypeDocument {
			return nil, ErrInvalidOperand
		}
		expr, err := compileDocument(f.Value.Document)
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
	}
	return out, nil
}

// fieldValue resolves a dotted field path against doc, descending
// through nested documents; an absent or non-document intermediate
// resolves to BSON null with present = false, the same convention
// btree's index extraction uses.
func fieldValue(doc *bsondoc.Document, path string) (bsondoc.Value, bool) {
	cur := doc
	start := 0
	for i := 0; i <= len(path); i++ {
		if i < len(path) && path[i] != '.' {
			continue
		}
		name := path[start:i]
		start = i + 1
		if cur == nil {
			return bsondoc.Value{Type: bsondoc.TypeNull}, false
		}
		v, ok := cur.Get(name)
		if !ok {
			return bsondoc.Value{Type: bsondoc.TypeNull}, false
		}
		if i == len(path) {
			return v, true
		}
		if v.Type == bsondoc.TypeDocument {
			cur = v.Document
			continue
		}
		return bsondoc.Value{Type: bsondoc.TypeNull}, false
	}
	return bsondoc.Value{Type: bsondoc.TypeNull}, false
}
