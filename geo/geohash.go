package geo

import "math/bits"

// Hash is a 64-bit interleaved geohash: X occupies the even bit
// positions, Y the odd bit positions, most significant pair first.
// Only the top 2*Bits bits of a stored/queried Hash are meaningful;
// the rest are zeroed by Encode.
type Hash uint64

// padShift left-aligns the 2*quantizeBits-wide interleaved value
// against bit 63, so "top 2*bits bits" (what truncate/hasPrefix
// operate on) means the same thing regardless of quantizeBits: the
// most significant interleaved bit pair, not the most significant bit
// of the 64-bit word that happens to be unused padding.
const padShift = 64 - 2*quantizeBits

// Encode quantizes (x, y) under cfg and interleaves the result,
// truncated to cfg.Bits pairs of bits.
func (cfg Config) Encode(x, y float64) (Hash, error) {
	qx, err := cfg.Range.quantizeAxis(x)
	if err != nil {
		return 0, err
	}
	qy, err := cfg.Range.quantizeAxis(y)
	if err != nil {
		return 0, err
	}
	return cfg.truncate(interleave(qx, qy)), nil
}

// Decode returns the coordinates of h's cell's lower-left corner.
func (cfg Config) Decode(h Hash) (x, y float64) {
	qx, qy := deinterleave(uint64(h))
	return cfg.Range.unquantizeAxis(qx), cfg.Range.unquantizeAxis(qy)
}

// truncate zeroes every bit below the top 2*Bits bits, leaving a hash
// that represents the square cell at this index's search precision
// rather than full quantization resolution.
func (cfg Config) truncate(h Hash) Hash {
	return truncateAt(h, cfg.Bits)
}

// interleave spreads x into even bit positions and y into odd bit
// positions, then left-aligns the result to bit 63 (see padShift),
// producing the classic Z-order (Morton) code used by geohashing.
func interleave(x, y uint32) Hash {
	return Hash((spread(x)<<1 | spread(y)) << padShift)
}

// spread takes the low 32 bits of v and inserts a zero bit after each
// original bit, so consecutive bits of v land two bits apart. This is
// the standard "magic number" bit-spreading trick; math/bits has no
// direct interleave primitive so it's implemented here by hand.
func spread(v uint32) uint64 {
	x := uint64(v)
	x = (x | (x << 16)) & 0x0000FFFF0000FFFF
	x = (x | (x << 8)) & 0x00FF00FF00FF00FF
	x = (x | (x << 4)) & 0x0F0F0F0F0F0F0F0F
	x = (x | (x << 2)) & 0x3333333333333333
	x = (x | (x << 1)) & 0x5555555555555555
	return x
}

// compact is the inverse of spread: extracts every other bit starting
// from bit 0 back into a dense 32-bit value.
func compact(x uint64) uint32 {
	x &= 0x5555555555555555
	x = (x | (x >> 1)) & 0x3333333333333333
	x = (x | (x >> 2)) & 0x0F0F0F0F0F0F0F0F
	x = (x | (x >> 4)) & 0x00FF00FF00FF00FF
	x = (x | (x >> 8)) & 0x0000FFFF0000FFFF
	x = (x | (x >> 16)) & 0x00000000FFFFFFFF
	return uint32(x)
}

func deinterleave(h uint64) (x, y uint32) {
	h >>= padShift
	return compact(h >> 1), compact(h)
}

// hasPrefix reports whether b, read at precision bits, is a prefix of
// a read at full precision: the top 2*bits bits of both hashes match,
// meaning a's cell lies within b's (coarser) cell.
func hasPrefix(a Hash, b Hash, bitsPrec uint) bool {
	return truncateAt(a, bitsPrec) == truncateAt(b, bitsPrec)
}

// truncateAt zeroes every bit below the top 2*bitsPrec bits.
func truncateAt(h Hash, bitsPrec uint) Hash {
	keep := 2 * bitsPrec
	if keep >= 64 {
		return h
	}
	mask := ^uint64(0) << (64 - keep)
	return Hash(uint64(h) & mask)
}

// precisionBitsForCellSize returns the number of interleaved-bit pairs required
// to represent a cell of the given side length at this range's scale,
// clamped to [0, 32].
func (r Range) precisionBitsForCellSize(side float64) uint {
	full := r.Max - r.Min
	if side <= 0 || side >= full {
		return 0
	}
	ratio := full / side
	bitsNeeded := uint(bits.Len(uint(ratio)))
	if bitsNeeded > 32 {
		bitsNeeded = 32
	}
	return bitsNeeded
}
