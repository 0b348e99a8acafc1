package geo

import "errors"

// ErrOutOfRange is returned when a point falls outside the index's
// configured [min, max) bounds and so cannot be quantized.
var ErrOutOfRange = errors.New("geo: point out of index range")
