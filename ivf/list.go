package ivf

import "sync"

// Record is a vector stored in an inverted list.
type Record struct {
	DocID    string
	Vector   []float32
	Metadata map[string]any
}

// entry is a stored record plus its ordinal in the posting lists.
type entry struct {
	Record
	ord uint32
}

// invertedList holds the records of one cluster in insertion order.
//
// The slice is append-only between clears and reset installs a new slice, so
// a snapshot taken under the read lock stays valid after it is released.
type invertedList struct {
	mu      sync.RWMutex
	entries []entry
}

func (l *invertedList) append(e entry) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

func (l *invertedList) snapshot() []entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[:len(l.entries):len(l.entries)]
}

func (l *invertedList) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *invertedList) reset() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

func newLists(n int) []*invertedList {
	lists := make([]*invertedList, n)
	for i := range lists {
		lists[i] = &invertedList{}
	}
	return lists
}
