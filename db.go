package stratum

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jpl-au/stratum/durability"
	"github.com/jpl-au/stratum/storage"
)

// DB is one database: its data files, namespace catalog, group-commit
// journal, and the live collection handles opened against it. Open
// wires storage, durability, and index maintenance the way folio's
// db.go wires its own file roles together, but against this system's
// extent/B-tree/journal stack instead.
type DB struct {
	cfg    *Config
	log    *zap.SugaredLogger
	dbPath string

	root    *os.Root
	store   *storage.Store
	catalog *storage.Catalog
	applier *storeApplier

	job     *durability.CommitJob
	intents *durability.IntentList // shared across all writing goroutines; IntentList is its own mutex
	journal *durability.JournalWriter

	readTickets  ticketPool
	writeTickets ticketPool

	mu          sync.RWMutex
	collections map[string]*Collection

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open opens (creating if necessary) a database rooted at dir, runs
// crash recovery against any journal left by an unclean shutdown, and
// starts the group-commit thread.
func Open(dir string, config Config) (*DB, error) {
	cfg := config.withDefaults()
	log := cfg.Logger.Named("stratum")

	const dbName = "stratum"

	root, err := os.OpenRoot(dir)
	if err != nil {
		log.Errorw("failed to open database root", "dir", dir, "error", err)
		return nil, wrap("stratum: open root", err)
	}

	store, err := storage.Open(dir, dbName)
	if err != nil {
		root.Close()
		log.Errorw("failed to open store", "dir", dir, "error", err)
		return nil, wrap("stratum: open store", err)
	}

	applier := newStoreApplier(dir, store)
	log.Infow("recovering journal", "dir", dir)
	if err := durability.Recover(root, applier); err != nil {
		store.Close()
		root.Close()
		log.Errorw("journal recovery failed", "dir", dir, "error", err)
		return nil, wrap("stratum: recover journal", err)
	}
	if err := applier.Sync(); err != nil {
		store.Close()
		root.Close()
		return nil, wrap("stratum: post-recovery sync", err)
	}

	catalog, err := storage.OpenCatalog(root, dbName+".ns")
	if err != nil {
		store.Close()
		root.Close()
		return nil, wrap("stratum: open catalog", err)
	}
	store.AttachCatalog(catalog)

	job := durability.NewCommitJob()
	journal, err := durability.OpenJournalWriter(root, job, applier, durability.JournalOptions{
		ByteThreshold: 8 * 1024 * 1024,
	})
	if err != nil {
		catalog.Close()
		store.Close()
		root.Close()
		return nil, wrap("stratum: open journal writer", err)
	}

	db := &DB{
		cfg:          cfg,
		log:          log,
		dbPath:       dir,
		root:         root,
		store:        store,
		catalog:      catalog,
		applier:      applier,
		job:          job,
		intents:      job.Thread(),
		journal:      journal,
		readTickets:  newTicketPool(cfg.MaxReadTickets.Load()),
		writeTickets: newTicketPool(cfg.MaxWriteTickets.Load()),
		collections:  make(map[string]*Collection),
	}

	store.SetWriteRecorder(db.recordWrite)
	store.SetCappedDeleteHook(db.onCappedEvict)

	ctx, cancel := context.WithCancel(context.Background())
	db.cancel = cancel
	interval := time.Duration(cfg.GroupCommitIntervalMillis.Load()) * time.Millisecond
	db.wg.Add(1)
	go func() {
		defer db.wg.Done()
		journal.Run(ctx, interval)
	}()

	log.Infow("database opened", "dir", dir)
	return db, nil
}

// recordWrite is the write-recorder callback installed on the store:
// every successful physical write becomes a WriteIntent on the
// database's single shared intent list.
func (db *DB) recordWrite(fileNum int32, offset int64, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	intent := durability.WriteIntent{DBPath: db.dbPath, FileNum: fileNum, Offset: offset, Data: cp}
	db.intents.Record(intent)
	if db.journal.NoteBytes(len(cp)) {
		db.journal.Tick()
	}
}

// onCappedEvict drops a capped ring's silently-overwritten record from
// every index maintained on its collection.
func (db *DB) onCappedEvict(collName string, loc storage.RecordLocation, doc []byte) {
	coll := db.collectionIfOpen(collName)
	if coll == nil {
		return
	}
	db.log.Debugw("capped collection evicted record", "collection", collName)
	coll.dropFromIndexes(loc, doc)
}

func (db *DB) collectionIfOpen(name string) *Collection {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.collections[name]
}

// Collection returns the named collection, opening it (and recording
// it in the namespace catalog) on first use.
func (db *DB) Collection(name string) (*Collection, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if c, ok := db.collections[name]; ok {
		return c, nil
	}
	if !db.catalog.Find(name) {
		if err := db.catalog.Insert(name); err != nil {
			return nil, wrap("stratum: register namespace", err)
		}
	}
	store := db.store.Collection(name)
	c := newCollection(db, name, store)
	if err := c.rebuildIndexesFromSlots(); err != nil {
		db.log.Errorw("failed to rebuild indexes", "name", name, "error", err)
		return nil, wrap("stratum: rebuild indexes", err)
	}
	db.collections[name] = c
	db.log.Infow("collection opened", "name", name)
	return c, nil
}

// DropCollection forgets the open collection handle and removes the
// collection's namespace entry from the catalog. It records no journal
// operation and does not free or clear the collection's extents.
func (db *DB) DropCollection(name string) error {
	db.mu.Lock()
	delete(db.collections, name)
	db.mu.Unlock()
	if err := db.catalog.Kill(name); err != nil {
		db.log.Errorw("failed to drop namespace", "name", name, "error", err)
		return wrap("stratum: drop namespace", err)
	}
	db.log.Infow("collection dropped", "name", name)
	return nil
}

// Flush forces an out-of-cycle group-commit tick, draining any
// pending write intents and fsyncing the journal before returning.
func (db *DB) Flush() error {
	return db.journal.Tick()
}

// Close stops the group-commit thread, flushes any remaining intents,
// and releases every open file handle.
func (db *DB) Close() error {
	if db.cancel != nil {
		db.cancel()
	}
	db.wg.Wait()

	var firstErr error
	if err := db.journal.Tick(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := db.journal.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := db.catalog.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := db.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := db.root.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	db.log.Infow("database closed")
	return firstErr
}

func (db *DB) withReadTicket(fn func() error) error {
	if err := db.readTickets.acquire(nil); err != nil {
		return err
	}
	defer db.readTickets.release()
	return fn()
}

func (db *DB) withWriteTicket(fn func() error) error {
	if err := db.writeTickets.acquire(nil); err != nil {
		return err
	}
	defer db.writeTickets.release()
	return fn()
}
