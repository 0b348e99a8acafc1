package geo

import (
	"container/heap"

	"github.com/jpl-au/stratum/bsondoc"
	"github.com/jpl-au/stratum/btree"
	"github.com/jpl-au/stratum/storage"
)

// candidateHeap is a bounded max-heap on Dist: the root is always the
// current worst of the retained candidates, so a new candidate closer
// than the root can evict it in O(log n).
type candidateHeap []Candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].Dist > h[j].Dist }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(Candidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (h *candidateHeap) offer(c Candidate, n int) {
	if h.Len() < n {
		heap.Push(h, c)
		return
	}
	if h.Len() > 0 && c.Dist < (*h)[0].Dist {
		heap.Pop(h)
		heap.Push(h, c)
	}
}

// worst returns the current largest retained distance, or +Inf if the
// heap has not yet filled to its target size.
func (h candidateHeap) worst(n int) float64 {
	if h.Len() < n {
		return posInf
	}
	return h[0].Dist
}

const posInf = 1.0e308 * 10 // exceeds any real distance without a math.Inf import

// edgeDistance returns the distance from pt to the nearest edge of
// the cell queryHash occupies at precision bits — the margin the
// $near search compares against the current worst retained distance
// to decide whether zooming out could still help.
func edgeDistance(cfg Config, queryHash Hash, bitsPrec uint, pt Point) float64 {
	cellHash := truncateAt(queryHash, bitsPrec)
	x0, y0 := cfg.Decode(cellHash)
	side := (cfg.Range.Max - cfg.Range.Min) / float64(uint64(1)<<bitsPrec)
	left := pt.X - x0
	right := x0 + side - pt.X
	bottom := pt.Y - y0
	top := y0 + side - pt.Y
	m := left
	for _, v := range []float64{right, bottom, top} {
		if v < m {
			m = v
		}
	}
	return m
}

// Near implements $near: an expanding-prefix search for the n closest
// indexed points to pt, within maxDist if maxDist > 0.
//
// The search starts at pt's own geohash cell and walks outward along
// the tree's leaf chain while entries share the current prefix. Once
// the candidate heap holds n entries and the remaining margin to the
// enclosing cell's edge is no smaller than the worst retained
// distance, nothing outside the cell can improve the result and the
// walk stops; otherwise the prefix is widened by one level (zoom out)
// and the walk continues. A final pass over the 8 neighboring
// same-precision cells around the query point catches points that are
// geometrically close but fall in an adjacent cell at the final
// precision — required because prefix-sharing is a cell-membership
// test, not a distance test.
func (idx *Index) Near(pt Point, maxDist float64, n int) ([]Candidate, error) {
	if n <= 0 {
		return nil, nil
	}
	queryHash, err := idx.cfg.Encode(pt.X, pt.Y)
	if err != nil {
		return nil, err
	}

	var h candidateHeap
	visited := map[storage.RecordLocation]bool{}

	pos, _ := idx.tree.Locate(btree.IndexKey{hashValue(queryHash)})
	fwd, fok := pos, true
	back, bok := pos, true

	prec := idx.cfg.Bits
	for prec > 0 {
		for fok {
			k, loc, live := fwd.Entry()
			if len(k) == 0 || !hasPrefix(hashFromValue(k[0]), queryHash, prec) {
				fok = false
				break
			}
			if live {
				idx.offerCandidate(&h, k[0], loc, pt, maxDist, n, visited)
			}
			fwd, fok = idx.tree.Advance(fwd, btree.Ascending)
		}
		for bok {
			k, loc, live := back.Entry()
			if len(k) == 0 || !hasPrefix(hashFromValue(k[0]), queryHash, prec) {
				bok = false
				break
			}
			if live {
				idx.offerCandidate(&h, k[0], loc, pt, maxDist, n, visited)
			}
			back, bok = idx.tree.Advance(back, btree.Descending)
		}

		if h.Len() >= n {
			if edgeDistance(idx.cfg, queryHash, prec, pt) >= h.worst(n) {
				break
			}
		}
		prec--
		fok, bok = true, true
	}

	idx.scanNeighborCells(queryHash, prec, pt, maxDist, n, &h, visited)

	out := make([]Candidate, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Candidate)
	}
	return out, nil
}

func (idx *Index) offerCandidate(h *candidateHeap, hv bsondoc.Value, loc storage.RecordLocation, pt Point, maxDist float64, n int, visited map[storage.RecordLocation]bool) {
	if visited[loc] {
		return
	}
	visited[loc] = true
	cx, cy := idx.cfg.Decode(hashFromValue(hv))
	cell := Point{X: cx, Y: cy}
	d := dist(pt, cell)
	if maxDist > 0 && d > maxDist+idx.cfg.Epsilon() {
		return
	}
	h.offer(Candidate{Loc: loc, Cell: cell, Dist: d}, n)
}

// scanNeighborCells walks the 8 same-precision cells surrounding the
// cell containing pt, to cover points that are nearer than a
// candidate already retained but sit just across a cell boundary at
// the precision the main descent stopped at.
func (idx *Index) scanNeighborCells(queryHash Hash, bitsPrec uint, pt Point, maxDist float64, n int, h *candidateHeap, visited map[storage.RecordLocation]bool) {
	if bitsPrec == 0 {
		return
	}
	side := (idx.cfg.Range.Max - idx.cfg.Range.Min) / float64(uint64(1)<<bitsPrec)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx := pt.X + float64(dx)*side
			ny := pt.Y + float64(dy)*side
			if nx < idx.cfg.Range.Min || nx >= idx.cfg.Range.Max || ny < idx.cfg.Range.Min || ny >= idx.cfg.Range.Max {
				continue
			}
			neighborHash, err := idx.cfg.Encode(nx, ny)
			if err != nil {
				continue
			}
			idx.scanCellExact(neighborHash, bitsPrec, pt, maxDist, n, h, visited)
		}
	}
}

// scanCellExact walks every live entry sharing neighborHash's prefix
// at bitsPrec, offering each to the candidate heap.
func (idx *Index) scanCellExact(neighborHash Hash, bitsPrec uint, pt Point, maxDist float64, n int, h *candidateHeap, visited map[storage.RecordLocation]bool) {
	pos, _ := idx.tree.Locate(btree.IndexKey{hashValue(neighborHash)})
	for _, dir := range []btree.Direction{btree.Ascending, btree.Descending} {
		cur, ok := pos, true
		for ok {
			k, loc, live := cur.Entry()
			if len(k) == 0 || !hasPrefix(hashFromValue(k[0]), neighborHash, bitsPrec) {
				break
			}
			if live {
				idx.offerCandidate(h, k[0], loc, pt, maxDist, n, visited)
			}
			cur, ok = idx.tree.Advance(cur, dir)
		}
	}
}
