package geo

import (
	"encoding/binary"
	"math"

	"github.com/jpl-au/stratum/bsondoc"
	"github.com/jpl-au/stratum/btree"
	"github.com/jpl-au/stratum/storage"
)

// Index is a 2D geo index: a geohash of the indexed point stored as
// the leading component of an ordinary keyed B-tree, optionally
// followed by further key-pattern components for a compound index.
// All descent, cursoring, and logical-delete behavior is inherited
// from btree.Tree — this package only adds the coordinate encoding and
// the search primitives that walk that tree by prefix.
type Index struct {
	cfg    Config
	tree   *btree.Tree
	xPath  string
	yPath  string
	suffix btree.KeyPattern
}

// geoKeyPart is the synthetic path name the geohash occupies in the
// underlying tree's key pattern; it never collides with a real
// document field because ExtractKeys never sees it — geo entries
// bypass ExtractKeys and build their IndexKey directly in hashKey.
const geoKeyPart = "$geohash"

// NewIndex builds a geo index over (xPath, yPath) under cfg, with any
// additional compound suffix components appended to every key.
func NewIndex(cfg Config, xPath, yPath string, suffix btree.KeyPattern, unique bool) *Index {
	pattern := append(btree.KeyPattern{{Path: geoKeyPart, Dir: btree.Ascending}}, suffix...)
	return &Index{
		cfg:    cfg,
		tree:   btree.New(pattern, unique),
		xPath:  xPath,
		yPath:  yPath,
		suffix: suffix,
	}
}

// Tree exposes the underlying B-tree, e.g. for a background builder
// to swap in once a concurrent rebuild finishes.
func (idx *Index) Tree() *btree.Tree { return idx.tree }

// hashValue encodes a geohash as an 8-byte big-endian BinData value:
// big-endian so that bsondoc.Compare's byte-wise comparison of the
// Binary payload agrees with unsigned numeric hash order, which is
// what prefix-based descent relies on.
func hashValue(h Hash) bsondoc.Value {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(h))
	return bsondoc.Value{Type: bsondoc.TypeBinary, Binary: bsondoc.Binary{Subtype: bsondoc.SubtypeGeneric, Data: buf[:]}}
}

func hashFromValue(v bsondoc.Value) Hash {
	if v.Type != bsondoc.TypeBinary || len(v.Binary.Data) != 8 {
		return 0
	}
	return Hash(binary.BigEndian.Uint64(v.Binary.Data))
}

// Insert extracts the point from doc and inserts it keyed by geohash
// plus any suffix components.
func (idx *Index) Insert(doc *bsondoc.Document, loc storage.RecordLocation) error {
	key, err := idx.keyFor(doc)
	if err != nil {
		return err
	}
	return idx.tree.Insert(key, loc, false)
}

// Remove mirrors Insert for deletion.
func (idx *Index) Remove(doc *bsondoc.Document, loc storage.RecordLocation) error {
	key, err := idx.keyFor(doc)
	if err != nil {
		return err
	}
	return idx.tree.Remove(key, loc)
}

func (idx *Index) keyFor(doc *bsondoc.Document) (btree.IndexKey, error) {
	xv, _ := doc.Get(idx.xPath)
	yv, _ := doc.Get(idx.yPath)
	x := numericValue(xv)
	y := numericValue(yv)
	h, err := idx.cfg.Encode(x, y)
	if err != nil {
		return nil, err
	}
	key := make(btree.IndexKey, 0, 1+len(idx.suffix))
	key = append(key, hashValue(h))
	for _, part := range idx.suffix {
		v, _ := doc.Get(part.Path)
		key = append(key, v)
	}
	return key, nil
}

func numericValue(v bsondoc.Value) float64 {
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

// Point is a 2D coordinate returned alongside each search hit.
type Point struct {
	X, Y float64
}

// Candidate is one search result: the matching entry's location and
// decoded cell coordinates.
type Candidate struct {
	Loc  storage.RecordLocation
	Cell Point
	Dist float64
}

// Distance returns the Euclidean distance between two points. It is
// exported so callers matching $near/$within against an unindexed
// field (a plain collection scan) can reuse the same distance metric
// the index-accelerated search primitives use.
func Distance(a, b Point) float64 {
	return dist(a, b)
}

func dist(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Hypot(dx, dy)
}
