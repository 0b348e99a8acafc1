package durability

import (
	"fmt"
	"os"
	"sync"
	"testing"
)

func openTestRoot(t *testing.T, dir string) *os.Root {
	t.Helper()
	root, err := os.OpenRoot(dir)
	if err != nil {
		t.Fatalf("os.OpenRoot: %v", err)
	}
	t.Cleanup(func() { root.Close() })
	return root
}

// fakeApplier is an in-memory Applier stand-in: each (dbPath, fileNum)
// pair maps to a byte slice that grows on demand, the same shape a
// real data file's writable view has.
type fakeApplier struct {
	mu      sync.Mutex
	files   map[string][]byte
	dropped map[string]bool
	syncs   int
}

func newFakeApplier() *fakeApplier {
	return &fakeApplier{files: map[string][]byte{}, dropped: map[string]bool{}}
}

func (a *fakeApplier) key(dbPath string, fileNum int32) string {
	return fmt.Sprintf("%s/%d", dbPath, fileNum)
}

func (a *fakeApplier) ApplyWrite(dbPath string, fileNum int32, offset int64, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := a.key(dbPath, fileNum)
	buf := a.files[k]
	need := offset + int64(len(data))
	if int64(len(buf)) < need {
		grown := make([]byte, need)
		copy(grown, buf)
		buf = grown
	}
	copy(buf[offset:], data)
	a.files[k] = buf
	return nil
}

func (a *fakeApplier) CreateFile(dbPath string, fileNum int32, size int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := a.key(dbPath, fileNum)
	if _, ok := a.files[k]; !ok {
		a.files[k] = make([]byte, size)
	}
	return nil
}

func (a *fakeApplier) DropDatabase(dbPath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dropped[dbPath] = true
	for k := range a.files {
		if len(k) >= len(dbPath) && k[:len(dbPath)] == dbPath {
			delete(a.files, k)
		}
	}
	return nil
}

func (a *fakeApplier) Sync() error {
	a.mu.Lock()
	a.syncs++
	a.mu.Unlock()
	return nil
}

func (a *fakeApplier) bytesOf(dbPath string, fileNum int32) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]byte(nil), a.files[a.key(dbPath, fileNum)]...)
}
