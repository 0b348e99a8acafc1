package stratum

import (
	"os"

	"github.com/jpl-au/stratum/bsondoc"
	"github.com/jpl-au/stratum/storage"
)

// BackupCollection writes every live document in collName to destName
// under destDir, for an operator-triggered export.
func (db *DB) BackupCollection(destDir, collName, destName string) error {
	coll, err := db.Collection(collName)
	if err != nil {
		return err
	}
	destRoot, err := os.OpenRoot(destDir)
	if err != nil {
		return wrap("backup: open destination", err)
	}
	defer destRoot.Close()
	if err := db.store.Backup(destRoot, coll.name, destName); err != nil {
		return wrap("backup", err)
	}
	return nil
}

// RestoreCollection reads every document out of srcName under srcDir
// and inserts it into collName, re-populating every index along the
// way via Collection.Insert.
func (db *DB) RestoreCollection(srcDir, srcName, collName string) error {
	coll, err := db.Collection(collName)
	if err != nil {
		return err
	}
	srcRoot, err := os.OpenRoot(srcDir)
	if err != nil {
		return wrap("restore: open source", err)
	}
	defer srcRoot.Close()

	insert := func(raw []byte) error {
		doc, _, err := bsondoc.Decode(raw)
		if err != nil {
			return wrap("restore: decode", ErrBadValue)
		}
		_, err = coll.Insert(doc)
		return err
	}
	if err := storage.Restore(srcRoot, srcName, insert); err != nil {
		return wrap("restore", err)
	}
	return nil
}
