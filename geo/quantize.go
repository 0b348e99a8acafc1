// Package geo implements the 2D geohash index: quantizing a point into
// a 64-bit interleaved hash, prefix-containment tests over that hash,
// and the $near / $within circle / $within box search primitives
// layered on top of the ordinary keyed B-tree.
package geo

import "math"

// DefaultBits is the default geohash precision: the number of
// interleaved-bit pairs retained from the full quantizeBits-per-axis
// quantization, i.e. the hash uses the top 2*DefaultBits bits.
const DefaultBits = 26

// quantizeBits is the per-axis resolution every point is quantized to
// before interleaving, independent of the configured search
// precision — search precision only truncates which of those bits are
// kept in a stored/queried hash.
const quantizeBits = 30

// Range describes the coordinate bounds an index was built over. Both
// axes share the same bounds, matching a square index domain.
type Range struct {
	Min, Max float64
}

// scale is the per-unit quantization factor for this range: the
// factor a coordinate is multiplied by, after subtracting Min, to
// land in [0, 2^quantizeBits).
func (r Range) scale() float64 {
	return float64(uint64(1)<<quantizeBits) / (r.Max - r.Min)
}

// Config bundles a geo index's coordinate bounds and the hash
// precision entries are stored/queried at.
type Config struct {
	Range Range
	Bits  uint // number of interleaved-bit pairs retained, <= 32
}

// DefaultConfig returns a Config over the given bounds at
// DefaultBits precision.
func DefaultConfig(r Range) Config {
	return Config{Range: r, Bits: DefaultBits}
}

// quantizeAxis maps a single coordinate in [Min, Max) to its unsigned
// integer grid coordinate.
func (r Range) quantizeAxis(v float64) (uint32, error) {
	if v < r.Min || v >= r.Max {
		return 0, ErrOutOfRange
	}
	q := (v - r.Min) * r.scale()
	return uint32(q), nil
}

// unquantizeAxis maps a grid coordinate back to the coordinate at its
// cell's lower-left corner.
func (r Range) unquantizeAxis(q uint32) float64 {
	return r.Min + float64(q)/r.scale()
}

// cellSize is the width of one full-resolution grid cell in
// coordinate units — used to compute Epsilon.
func (r Range) cellSize() float64 {
	return (r.Max - r.Min) / float64(uint64(1)<<quantizeBits)
}

// Epsilon is the Euclidean distance between the two corner geohashes
// of a single full-resolution grid cell: the slack a boundary-distance
// comparison should allow for quantization rounding.
func (c Config) Epsilon() float64 {
	cell := c.Range.cellSize()
	return math.Hypot(cell, cell)
}
