package stratum

import (
	"sync"

	"github.com/jpl-au/stratum/bsondoc"
	"github.com/jpl-au/stratum/btree"
	"github.com/jpl-au/stratum/geo"
	"github.com/jpl-au/stratum/query"
	"github.com/jpl-au/stratum/shard"
	"github.com/jpl-au/stratum/storage"
)

// Collection is a named group of documents: the store's physical
// record placement, plus every B-tree and geo index maintained over
// it, plus (for a sharded collection) the chunk routing table that
// decides which shard owns a given document. A Collection is the
// root package's analogue of folio's per-namespace handle — where
// folio wraps one key/value bucket, this wraps one extent chain with
// typed secondary indexes layered on top.
type Collection struct {
	db    *DB
	name  string
	store *storage.Collection

	mu       sync.RWMutex
	indexes  map[string]*btree.Tree
	geo      map[string]*geo.Index
	shardMgr *shard.Manager
}

func newCollection(db *DB, name string, store *storage.Collection) *Collection {
	return &Collection{
		db:      db,
		name:    name,
		store:   store,
		indexes: make(map[string]*btree.Tree),
		geo:     make(map[string]*geo.Index),
	}
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

// EnsureIndex creates (or returns the existing) B-tree index named
// name over pattern. The new tree starts empty: documents already
// stored in the collection are not added to it by this call, and the
// btree package's background Builder is not used here.
func (c *Collection) EnsureIndex(name string, pattern btree.KeyPattern, unique bool) (*btree.Tree, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.indexes[name]; ok {
		return t, nil
	}
	t := btree.New(pattern, unique)
	c.indexes[name] = t
	c.registerIndexSlotLocked(storage.IndexSlot{Name: name, Unique: unique, KeyPattern: keyPartsOf(pattern)})
	return t, nil
}

// EnsureGeoIndex builds a 2D geo index named name over (xPath, yPath).
func (c *Collection) EnsureGeoIndex(name string, cfg geo.Config, xPath, yPath string, suffix btree.KeyPattern, unique bool) (*geo.Index, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx, ok := c.geo[name]; ok {
		return idx, nil
	}
	idx := geo.NewIndex(cfg, xPath, yPath, suffix, unique)
	c.geo[name] = idx
	c.registerIndexSlotLocked(storage.IndexSlot{
		Name: name, Unique: unique, Is2D: true, KeyPattern: keyPartsOf(suffix),
		GeoXPath: xPath, GeoYPath: yPath,
		GeoRangeMin: cfg.Range.Min, GeoRangeMax: cfg.Range.Max, GeoBits: cfg.Bits,
	})
	return idx, nil
}

func keyPartsOf(pattern btree.KeyPattern) []storage.KeyPart {
	parts := make([]storage.KeyPart, 0, len(pattern))
	for _, p := range pattern {
		parts = append(parts, storage.KeyPart{Field: p.Path, Ascending: p.Dir == btree.Ascending})
	}
	return parts
}

func keyPatternOf(parts []storage.KeyPart) btree.KeyPattern {
	pattern := make(btree.KeyPattern, 0, len(parts))
	for _, p := range parts {
		dir := btree.Descending
		if p.Ascending {
			dir = btree.Ascending
		}
		pattern = append(pattern, btree.KeyPart{Path: p.Field, Dir: dir})
	}
	return pattern
}

func (c *Collection) registerIndexSlotLocked(slot storage.IndexSlot) {
	c.store.AddIndexSlot(slot)
	c.db.store.PersistHeader(c.store)
}

// rebuildIndexesFromSlots recreates every index descriptor already
// persisted in the collection's header (from a prior process's
// EnsureIndex/EnsureGeoIndex calls) and repopulates it with a
// foreground scan of the collection's current documents. Called once
// when a Collection handle is opened, so a reopened database answers
// indexed queries correctly instead of silently falling back to an
// empty index.
func (c *Collection) rebuildIndexesFromSlots() error {
	slots := c.store.IndexSlots()
	if len(slots) == 0 {
		return nil
	}

	c.mu.Lock()
	for _, slot := range slots {
		if slot.Is2D {
			cfg := geo.Config{Range: geo.Range{Min: slot.GeoRangeMin, Max: slot.GeoRangeMax}, Bits: slot.GeoBits}
			c.geo[slot.Name] = geo.NewIndex(cfg, slot.GeoXPath, slot.GeoYPath, keyPatternOf(slot.KeyPattern), slot.Unique)
		} else {
			c.indexes[slot.Name] = btree.New(keyPatternOf(slot.KeyPattern), slot.Unique)
		}
	}
	c.mu.Unlock()

	var scanErr error
	err := c.db.store.Scan(c.name, storage.Forward, func(loc storage.RecordLocation, raw []byte) bool {
		doc, _, err := bsondoc.Decode(raw)
		if err != nil {
			return true
		}
		if err := c.insertIntoIndexes(doc, loc); err != nil {
			scanErr = err
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	return scanErr
}

// EnableSharding installs a chunk routing table over this collection,
// so Insert routes each document's shard key to the chunk (and,
// eventually, the physical shard) that owns it. A collection with no
// routing table installed is implicitly single-shard: every operation
// targets the local store directly.
func (c *Collection) EnableSharding(mgr *shard.Manager) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shardMgr = mgr
}

// ShardManager returns the collection's routing table, or nil if
// sharding was never enabled.
func (c *Collection) ShardManager() *shard.Manager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shardMgr
}

// Insert assigns an ObjectID to a missing _id field, writes the
// document, and maintains every index. On a unique-index violation
// the document and any index entries already inserted for it are torn
// back out before returning ErrDuplicateKey, so no partial write
// survives the failed operation.
func (c *Collection) Insert(doc *bsondoc.Document) (storage.RecordLocation, error) {
	if _, ok := doc.Get("_id"); !ok {
		doc.Set("_id", bsondoc.Value{Type: bsondoc.TypeObjectID, ObjectID: bsondoc.NewObjectID()})
	}

	var loc storage.RecordLocation
	err := c.db.withWriteTicket(func() error {
		buf, err := bsondoc.Encode(doc)
		if err != nil {
			return wrap("insert: encode", ErrBadValue)
		}
		loc, err = c.db.store.Insert(c.name, buf)
		if err != nil {
			return wrap("insert: store", err)
		}
		if err := c.insertIntoIndexes(doc, loc); err != nil {
			c.db.store.Remove(c.name, loc)
			return err
		}
		return nil
	})
	return loc, err
}

func (c *Collection) insertIntoIndexes(doc *bsondoc.Document, loc storage.RecordLocation) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var done []func()
	rollback := func() {
		for _, undo := range done {
			undo()
		}
	}

	for name, t := range c.indexes {
		keys, multi, err := btree.ExtractKeys(doc, t.Pattern())
		if err != nil {
			rollback()
			return wrap("insert: "+name, ErrCannotIndex)
		}
		inserted := make([]btree.IndexKey, 0, len(keys))
		var failErr error
		for _, k := range keys {
			if err := t.Insert(k, loc, false); err != nil {
				failErr = err
				break
			}
			inserted = append(inserted, k)
		}
		if failErr != nil {
			for _, k := range inserted {
				t.Remove(k, loc)
			}
			rollback()
			return wrap("insert: "+name, ErrDuplicateKey)
		}
		if multi {
			c.setMultiKey(name)
		}
		tree, slot := t, inserted
		done = append(done, func() {
			for _, k := range slot {
				tree.Remove(k, loc)
			}
		})
	}

	for name, idx := range c.geo {
		if err := idx.Insert(doc, loc); err != nil {
			rollback()
			return wrap("insert: "+name, ErrCannotIndex)
		}
		gi := idx
		done = append(done, func() { gi.Remove(doc, loc) })
	}
	return nil
}

func (c *Collection) setMultiKey(indexName string) {
	for i, slot := range c.store.IndexSlots() {
		if slot.Name == indexName {
			c.store.SetMultiKey(i)
			return
		}
	}
}

// removeFromIndexes tears every index entry for (doc, loc) out, the
// mirror image of insertIntoIndexes, used by Remove, Update (for the
// old document), and the capped-eviction hook.
func (c *Collection) removeFromIndexes(doc *bsondoc.Document, loc storage.RecordLocation) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.indexes {
		keys, _, err := btree.ExtractKeys(doc, t.Pattern())
		if err != nil {
			continue
		}
		for _, k := range keys {
			t.Remove(k, loc)
		}
	}
	for _, idx := range c.geo {
		idx.Remove(doc, loc)
	}
}

// dropFromIndexes is removeFromIndexes from raw stored bytes, used
// when the caller (the capped-eviction hook) only has the encoded
// document.
func (c *Collection) dropFromIndexes(loc storage.RecordLocation, raw []byte) {
	doc, _, err := bsondoc.Decode(raw)
	if err != nil {
		return
	}
	c.removeFromIndexes(doc, loc)
}

// Get returns the document stored at loc.
func (c *Collection) Get(loc storage.RecordLocation) (*bsondoc.Document, error) {
	var doc *bsondoc.Document
	err := c.db.withReadTicket(func() error {
		raw, err := c.db.store.Get(loc)
		if err != nil {
			return wrap("get", err)
		}
		d, _, err := bsondoc.Decode(raw)
		if err != nil {
			return wrap("get: decode", ErrBadValue)
		}
		doc = d
		return nil
	})
	return doc, err
}

// Update replaces the document at loc with newDoc, relocating it if
// Store can't fit the new size in place, and reconciles every index
// against the delta between the old and new document.
func (c *Collection) Update(loc storage.RecordLocation, newDoc *bsondoc.Document) (storage.RecordLocation, error) {
	var newLoc storage.RecordLocation
	err := c.db.withWriteTicket(func() error {
		oldRaw, err := c.db.store.Get(loc)
		if err != nil {
			return wrap("update: read old", err)
		}
		oldDoc, _, err := bsondoc.Decode(oldRaw)
		if err != nil {
			return wrap("update: decode old", ErrBadValue)
		}

		buf, err := bsondoc.Encode(newDoc)
		if err != nil {
			return wrap("update: encode", ErrBadValue)
		}
		newLoc, err = c.db.store.Update(c.name, loc, buf)
		if err != nil {
			return wrap("update: store", err)
		}

		c.removeFromIndexes(oldDoc, loc)
		if err := c.insertIntoIndexes(newDoc, newLoc); err != nil {
			// The store already committed newDoc at newLoc, possibly
			// at a relocated offset, so putting the old index entries
			// back at the original loc would point them at a slot
			// that may no longer hold anything. Compensate by writing
			// the old bytes back through Store (recording wherever
			// that revert lands) and re-indexing against that.
			revertLoc, revertErr := c.db.store.Update(c.name, newLoc, oldRaw)
			if revertErr == nil {
				c.insertIntoIndexes(oldDoc, revertLoc)
				newLoc = revertLoc
			}
			return err
		}
		return nil
	})
	return newLoc, err
}

// Remove deletes the document at loc and every index entry for it.
func (c *Collection) Remove(loc storage.RecordLocation) error {
	return c.db.withWriteTicket(func() error {
		raw, err := c.db.store.Get(loc)
		if err != nil {
			return wrap("remove: read", err)
		}
		doc, _, err := bsondoc.Decode(raw)
		if err != nil {
			return wrap("remove: decode", ErrBadValue)
		}
		if err := c.db.store.Remove(c.name, loc); err != nil {
			return wrap("remove: store", err)
		}
		c.removeFromIndexes(doc, loc)
		return nil
	})
}

// Find compiles filter into a Matcher and scans the collection's
// extent chain in insertion order, yielding every matching document
// until yield returns false. Index-assisted lookup (routing through a
// btree.Tree or geo.Index instead of a full scan) is the query
// planner's job, out of scope for this collection-level primitive.
func (c *Collection) Find(filter *bsondoc.Document, yield func(storage.RecordLocation, *bsondoc.Document) bool) error {
	matcher, err := query.Compile(filter)
	if err != nil {
		return wrap("find: compile", ErrBadValue)
	}
	return c.db.withReadTicket(func() error {
		return c.db.store.Scan(c.name, storage.Forward, func(loc storage.RecordLocation, raw []byte) bool {
			doc, _, err := bsondoc.Decode(raw)
			if err != nil {
				return true
			}
			if !matcher.Match(doc) {
				return true
			}
			return yield(loc, doc)
		})
	})
}

// FindOne returns the first document matching filter.
func (c *Collection) FindOne(filter *bsondoc.Document) (*bsondoc.Document, storage.RecordLocation, bool, error) {
	var found *bsondoc.Document
	var loc storage.RecordLocation
	err := c.Find(filter, func(l storage.RecordLocation, d *bsondoc.Document) bool {
		found, loc = d, l
		return false
	})
	return found, loc, found != nil, err
}
