package query

import (
	"github.com/jpl-au/stratum/bsondoc"
	"github.com/jpl-au/stratum/geo"
)

// $near and $within, evaluated against a document's coordinate field
// directly (the legacy [x, y] pair convention) rather than through an
// index. This is the path a collection scan takes when no geo index
// covers the query; an indexed query instead goes straight to
// geo.Index.Near/WithinCircle/WithinBox and never compiles these
// predicates at all.

type geoNearPred struct {
	center  geo.Point
	maxDist float64 // 0 means unbounded
	epsilon float64
}

func (p geoNearPred) eval(v bsondoc.Value, present bool) bool {
	pt, ok := coordinatesOf(v, present)
	if !ok {
		return false
	}
	if p.maxDist <= 0 {
		return true
	}
	return geo.Distance(p.center, pt) <= p.maxDist+p.epsilon
}

type geoWithinCirclePred struct {
	center geo.Point
	radius float64
}

func (p geoWithinCirclePred) eval(v bsondoc.Value, present bool) bool {
	pt, ok := coordinatesOf(v, present)
	if !ok {
		return false
	}
	return geo.Distance(p.center, pt) <= p.radius
}

type geoWithinBoxPred struct{ box geo.Box }

func (p geoWithinBoxPred) eval(v bsondoc.Value, present bool) bool {
	pt, ok := coordinatesOf(v, present)
	if !ok {
		return false
	}
	return pt.X >= p.box.BottomLeft.X && pt.X <= p.box.TopRight.X &&
		pt.Y >= p.box.BottomLeft.Y && pt.Y <= p.box.TopRight.Y
}

// compileNear parses `{$near: {$point: [x, y], $maxDistance: d}}`.
func compileNear(arg bsondoc.Value) (predicate, error) {
	if arg.Type != bsondoc.TypeDocument {
		return nil, ErrInvalidOperand
	}
	ptVal, ok := arg.Document.Get("$point")
	if !ok {
		return nil, ErrInvalidOperand
	}
	pt, ok := coordinatesOf(ptVal, true)
	if !ok {
		return nil, ErrInvalidOperand
	}
	maxDist := 0.0
	if mv, ok := arg.Document.Get("$maxDistance"); ok {
		maxDist = numericOperand(mv)
	}
	return geoNearPred{center: pt, maxDist: maxDist}, nil
}

// compileWithin parses `{$within: {$circle: {$center: [x, y], $radius: r}}}`
// or `{$within: {$box: {$bottomLeft: [x, y], $topRight: [x, y]}}}`.
func compileWithin(arg bsondoc.Value) (predicate, error) {
	if arg.Type != bsondoc.TypeDocument {
		return nil, ErrInvalidOperand
	}
	if cv, ok := arg.Document.Get("$circle"); ok {
		if cv.Type != bsondoc.TypeDocument {
			return nil, ErrInvalidOperand
		}
		centerVal, ok := cv.Document.Get("$center")
		if !ok {
			return nil, ErrInvalidOperand
		}
		center, ok := coordinatesOf(centerVal, true)
		if !ok {
			return nil, ErrInvalidOperand
		}
		rv, ok := cv.Document.Get("$radius")
		if !ok {
			return nil, ErrInvalidOperand
		}
		return geoWithinCirclePred{center: center, radius: numericOperand(rv)}, nil
	}
	if bv, ok := arg.Document.Get("$box"); ok {
		if bv.Type != bsondoc.TypeDocument {
			return nil, ErrInvalidOperand
		}
		blVal, ok1 := bv.Document.Get("$bottomLeft")
		trVal, ok2 := bv.Document.Get("$topRight")
		if !ok1 || !ok2 {
			return nil, ErrInvalidOperand
		}
		bl, ok1 := coordinatesOf(blVal, true)
		tr, ok2 := coordinatesOf(trVal, true)
		if !ok1 || !ok2 {
			return nil, ErrInvalidOperand
		}
		return geoWithinBoxPred{box: geo.Box{BottomLeft: bl, TopRight: tr}}, nil
	}
	return nil, ErrInvalidOperand
}
