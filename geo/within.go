package geo

import (
	"github.com/jpl-au/stratum/btree"
	"github.com/jpl-au/stratum/storage"
)

// WithinCircle implements $within circle: every live entry whose
// cell's lower-left corner (as Decode returns it) lies within r of
// center, with Epsilon slack applied to paper over quantization
// rounding at the boundary. It picks one precision whose cell side is
// at least r and scans the query point's cell plus its eight
// neighbours at that precision, which together cover the circle.
func (idx *Index) WithinCircle(center Point, r float64) ([]Candidate, error) {
	queryHash, err := idx.cfg.Encode(center.X, center.Y)
	if err != nil {
		return nil, err
	}

	bitsPrec := idx.cfg.Range.precisionBitsForCellSize(2 * r)
	if bitsPrec == 0 {
		bitsPrec = 1
	}
	if bitsPrec > idx.cfg.Bits {
		bitsPrec = idx.cfg.Bits
	}

	var out []Candidate
	visited := map[storage.RecordLocation]bool{}

	collect := func(hash Hash, prec uint) {
		pos, _ := idx.tree.Locate(btree.IndexKey{hashValue(hash)})
		for _, dir := range []btree.Direction{btree.Ascending, btree.Descending} {
			cur, ok := pos, true
			for ok {
				k, loc, live := cur.Entry()
				if len(k) == 0 || !hasPrefix(hashFromValue(k[0]), hash, prec) {
					break
				}
				if live && !visited[loc] {
					visited[loc] = true
					cx, cy := idx.cfg.Decode(hashFromValue(k[0]))
					cell := Point{X: cx, Y: cy}
					d := dist(center, cell)
					if d <= r+idx.cfg.Epsilon() {
						out = append(out, Candidate{Loc: loc, Cell: cell, Dist: d})
					}
				}
				cur, ok = idx.tree.Advance(cur, dir)
			}
		}
	}

	collect(queryHash, bitsPrec)
	side := (idx.cfg.Range.Max - idx.cfg.Range.Min) / float64(uint64(1)<<bitsPrec)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx := center.X + float64(dx)*side
			ny := center.Y + float64(dy)*side
			if nx < idx.cfg.Range.Min || nx >= idx.cfg.Range.Max || ny < idx.cfg.Range.Min || ny >= idx.cfg.Range.Max {
				continue
			}
			if nh, err := idx.cfg.Encode(nx, ny); err == nil {
				collect(nh, bitsPrec)
			}
		}
	}
	return out, nil
}

// Box is an axis-aligned rectangle given by its bottom-left and
// top-right corners.
type Box struct {
	BottomLeft Point
	TopRight   Point
}

func (b Box) contains(p Point) bool {
	return p.X >= b.BottomLeft.X && p.X <= b.TopRight.X && p.Y >= b.BottomLeft.Y && p.Y <= b.TopRight.Y
}

// cellBox returns the square cell covering hash at bitsPrec precision.
func (idx *Index) cellBox(hash Hash, bitsPrec uint) Box {
	x0, y0 := idx.cfg.Decode(truncateAt(hash, bitsPrec))
	side := (idx.cfg.Range.Max - idx.cfg.Range.Min) / float64(uint64(1)<<bitsPrec)
	return Box{BottomLeft: Point{X: x0, Y: y0}, TopRight: Point{X: x0 + side, Y: y0 + side}}
}

func boxesOverlap(a, b Box) bool {
	return a.BottomLeft.X < b.TopRight.X && a.TopRight.X > b.BottomLeft.X &&
		a.BottomLeft.Y < b.TopRight.Y && a.TopRight.Y > b.BottomLeft.Y
}

func boxFullyInside(inner, outer Box) bool {
	return inner.BottomLeft.X >= outer.BottomLeft.X && inner.TopRight.X <= outer.TopRight.X &&
		inner.BottomLeft.Y >= outer.BottomLeft.Y && inner.TopRight.Y <= outer.TopRight.Y
}

// WithinBox implements $within box: descend to the smallest prefix
// whose cell fully encloses the box, then recursively subdivide into
// quadrants — a quadrant fully inside the box is accepted whole
// (every live entry under its prefix is a hit), a quadrant fully
// outside is pruned, and a partially-overlapping quadrant is either
// subdivided further or, once at full index precision, scanned
// pointwise.
func (idx *Index) WithinBox(box Box) ([]Candidate, error) {
	enclosingBits := idx.enclosingPrecision(box)

	var out []Candidate
	visited := map[storage.RecordLocation]bool{}

	var subdivide func(hash Hash, prec uint)
	subdivide = func(hash Hash, prec uint) {
		cell := idx.cellBox(hash, prec)
		if !boxesOverlap(cell, box) {
			return
		}
		if boxFullyInside(cell, box) || prec >= idx.cfg.Bits {
			idx.scanCellPointwise(hash, prec, box, &out, visited)
			return
		}
		// Quad-subdivide: the four children at prec+1 share this
		// cell's top 2*prec bits and differ in the next X/Y bit pair.
		for _, xb := range [2]uint64{0, 1} {
			for _, yb := range [2]uint64{0, 1} {
				shift := 64 - 2*(prec+1)
				childBits := (xb << 1) | yb
				child := Hash((uint64(hash) &^ (uint64(3) << shift)) | (childBits << shift))
				subdivide(child, prec+1)
			}
		}
	}

	rootHash, err := idx.cfg.Encode(
		clamp(box.BottomLeft.X, idx.cfg.Range),
		clamp(box.BottomLeft.Y, idx.cfg.Range),
	)
	if err != nil {
		return nil, err
	}
	topHash, err := idx.cfg.Encode(
		clamp(box.TopRight.X, idx.cfg.Range),
		clamp(box.TopRight.Y, idx.cfg.Range),
	)
	if err != nil {
		return nil, err
	}
	// Coarsen until one cell holds both corners, and so the whole box.
	for enclosingBits > 0 && !hasPrefix(topHash, rootHash, enclosingBits) {
		enclosingBits--
	}
	subdivide(truncateAt(rootHash, enclosingBits), enclosingBits)
	return out, nil
}

func clamp(v float64, r Range) float64 {
	if v < r.Min {
		return r.Min
	}
	if v >= r.Max {
		return r.Max - r.cellSize()
	}
	return v
}

// enclosingPrecision finds the coarsest precision (fewest bits) whose
// grid cell size is still no larger than the box's smaller dimension,
// the finest precision WithinBox tries as its starting cell.
func (idx *Index) enclosingPrecision(box Box) uint {
	w := box.TopRight.X - box.BottomLeft.X
	h := box.TopRight.Y - box.BottomLeft.Y
	side := w
	if h < side {
		side = h
	}
	prec := idx.cfg.Range.precisionBitsForCellSize(side)
	if prec == 0 {
		return 0
	}
	return prec - 1
}

// scanCellPointwise walks every live entry under hash's prefix at
// prec bits and tests each one's exact coordinates against box,
// rather than accepting the whole cell.
func (idx *Index) scanCellPointwise(hash Hash, prec uint, box Box, out *[]Candidate, visited map[storage.RecordLocation]bool) {
	pos, _ := idx.tree.Locate(btree.IndexKey{hashValue(hash)})
	for _, dir := range []btree.Direction{btree.Ascending, btree.Descending} {
		cur, ok := pos, true
		for ok {
			k, loc, live := cur.Entry()
			if len(k) == 0 || !hasPrefix(hashFromValue(k[0]), hash, prec) {
				break
			}
			if live && !visited[loc] {
				cx, cy := idx.cfg.Decode(hashFromValue(k[0]))
				cell := Point{X: cx, Y: cy}
				if box.contains(cell) {
					visited[loc] = true
					*out = append(*out, Candidate{Loc: loc, Cell: cell})
				}
			}
			cur, ok = idx.tree.Advance(cur, dir)
		}
	}
}
