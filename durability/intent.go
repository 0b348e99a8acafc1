package durability

import (
	"sort"
	"sync"
)

// WriteIntent is a record that the bytes at [Offset, Offset+len(Data))
// of file FileNum in database DBPath changed and must reach the
// journal before the next commit tick considers them durable.
//
// The source design resolves an intent from a private-view pointer
// through an interval map of mapped-file base addresses, because its
// storage layer writes through a memory-mapped private view. This
// store has no mmap layer — storage.Store writes through explicit
// pwrite-style calls — so an intent already carries its resolved
// (file, offset) address and the bytes themselves; there is no
// separate address-resolution step to perform at commit time.
type WriteIntent struct {
	DBPath  string
	FileNum int32
	Offset  int64
	Data    []byte
}

func (w WriteIntent) end() int64 { return w.Offset + int64(len(w.Data)) }

// IntentList accumulates write intents between group-commit ticks
// (the source's "per thread" list). CommitJob.Thread hands out a list;
// one list may be shared by many goroutines, as the root package's DB
// does.
type IntentList struct {
	mu    sync.Mutex
	items []WriteIntent
}

// Record appends a new intent. Safe for concurrent use.
func (l *IntentList) Record(intent WriteIntent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, intent)
}

// drain removes and returns every intent accumulated so far.
func (l *IntentList) drain() []WriteIntent {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.items) == 0 {
		return nil
	}
	out := l.items
	l.items = nil
	return out
}

// taggedIntent pairs an intent with its position in the original,
// chronological input slice, so connectivity (decided by offset) and
// precedence (decided by recording order) can be resolved separately
// — the two do not always agree, e.g. a later write can land at a
// lower offset than an earlier one it partially overlaps.
type taggedIntent struct {
	WriteIntent
	seq int
}

// mergeIntents computes the union of overlapping or abutting
// same-file intents, keeping the most recently recorded write
// authoritative on any byte two intents share.
func mergeIntents(intents []WriteIntent) []WriteIntent {
	if len(intents) == 0 {
		return nil
	}

	byFile := map[int32][]taggedIntent{}
	var order []int32
	for i, w := range intents {
		if _, ok := byFile[w.FileNum]; !ok {
			order = append(order, w.FileNum)
		}
		byFile[w.FileNum] = append(byFile[w.FileNum], taggedIntent{w, i})
	}

	var out []WriteIntent
	for _, fileNum := range order {
		for _, comp := range connectedComponents(byFile[fileNum]) {
			out = append(out, flatten(fileNum, comp))
		}
	}
	return out
}

// connectedComponents groups intents whose byte ranges overlap or
// abut, by sweeping them in offset order.
func connectedComponents(group []taggedIntent) [][]taggedIntent {
	sorted := append([]taggedIntent(nil), group...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	var components [][]taggedIntent
	cur := []taggedIntent{sorted[0]}
	curEnd := sorted[0].end()
	for _, t := range sorted[1:] {
		if t.Offset > curEnd {
			components = append(components, cur)
			cur = []taggedIntent{t}
			curEnd = t.end()
			continue
		}
		cur = append(cur, t)
		if t.end() > curEnd {
			curEnd = t.end()
		}
	}
	return append(components, cur)
}

// flatten renders one connected component into a single intent,
// applying its members in the order they were originally recorded so
// the last one recorded wins on any byte two members share.
func flatten(fileNum int32, comp []taggedIntent) WriteIntent {
	lo, hi := comp[0].Offset, comp[0].end()
	for _, t := range comp[1:] {
		if t.Offset < lo {
			lo = t.Offset
		}
		if t.end() > hi {
			hi = t.end()
		}
	}

	byRecordOrder := append([]taggedIntent(nil), comp...)
	sort.SliceStable(byRecordOrder, func(i, j int) bool { return byRecordOrder[i].seq < byRecordOrder[j].seq })

	merged := make([]byte, hi-lo)
	dbPath := ""
	for _, t := range byRecordOrder {
		copy(merged[t.Offset-lo:], t.Data)
		if t.DBPath != "" {
			dbPath = t.DBPath
		}
	}
	return WriteIntent{DBPath: dbPath, FileNum: fileNum, Offset: lo, Data: merged}
}
