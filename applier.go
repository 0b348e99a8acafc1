package stratum

import (
	"fmt"

	"github.com/jpl-au/stratum/storage"
)

// storeApplier adapts a single storage.Store to durability.Applier,
// the seam the journal writer and crash-recovery pass both replay
// into. One DB only ever has one dbPath, so dbPath is checked rather
// than used to select among stores — this database never multiplexes
// several storage.Store values behind one journal.
type storeApplier struct {
	dbPath string
	store  *storage.Store
}

func newStoreApplier(dbPath string, store *storage.Store) *storeApplier {
	return &storeApplier{dbPath: dbPath, store: store}
}

func (a *storeApplier) checkPath(dbPath string) error {
	if dbPath != a.dbPath {
		return fmt.Errorf("stratum: applier for %q cannot replay entries for %q", a.dbPath, dbPath)
	}
	return nil
}

// ApplyWrite mirrors a journaled write intent back into the data
// file it was recorded from. On the live write path this is a no-op
// in effect (Store has already written the bytes itself; the
// recorder callback is what produced the intent in the first place),
// but during crash recovery this is the only path that writes at
// all, so it must actually perform the write both times.
func (a *storeApplier) ApplyWrite(dbPath string, fileNum int32, offset int64, data []byte) error {
	if err := a.checkPath(dbPath); err != nil {
		return err
	}
	return a.store.ApplyAt(fileNum, offset, data)
}

func (a *storeApplier) CreateFile(dbPath string, fileNum int32, size int64) error {
	if err := a.checkPath(dbPath); err != nil {
		return err
	}
	return a.store.EnsureFile(fileNum)
}

func (a *storeApplier) DropDatabase(dbPath string) error {
	if err := a.checkPath(dbPath); err != nil {
		return err
	}
	return a.store.Drop()
}

func (a *storeApplier) Sync() error {
	return a.store.Sync()
}
