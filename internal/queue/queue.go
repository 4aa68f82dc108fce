// Package queue provides a bounded priority queue for top-k selection.
package queue

import "slices"

// Item is a scored candidate. Pos is the candidate's position in scan order and
// breaks ties between equal scores (lower position ranks first).
type Item struct {
	Pos   int
	Score float32
}

// CompareFunc orders two scores; a negative result means a ranks before b.
type CompareFunc func(a, b float32) int

// TopK keeps the k best items seen so far.
// The heap root is the worst kept item so that it can be evicted in O(log k).
type TopK struct {
	k     int
	cmp   CompareFunc
	items []Item
}

// NewTopK initializes a bounded queue that keeps at most k items.
func NewTopK(k int, cmp CompareFunc) *TopK {
	if k < 0 {
		k = 0
	}
	return &TopK{
		k:     k,
		cmp:   cmp,
		items: make([]Item, 0, min(k, 1024)),
	}
}

// Len returns the number of items currently kept.
func (q *TopK) Len() int { return len(q.items) }

// before reports whether a ranks strictly before b.
func (q *TopK) before(a, b Item) bool {
	if c := q.cmp(a.Score, b.Score); c != 0 {
		return c < 0
	}
	return a.Pos < b.Pos
}

// Push offers an item. It returns false if the item was rejected.
func (q *TopK) Push(item Item) bool {
	if q.k == 0 {
		return false
	}
	if len(q.items) < q.k {
		q.items = append(q.items, item)
		q.siftUp(len(q.items) - 1)
		return true
	}
	if !q.before(item, q.items[0]) {
		return false
	}
	q.items[0] = item
	q.siftDown(0)
	return true
}

// Sorted returns the kept items best first and empties the queue.
func (q *TopK) Sorted() []Item {
	out := q.items
	q.items = nil
	slices.SortFunc(out, func(a, b Item) int {
		if q.before(a, b) {
			return -1
		}
		if q.before(b, a) {
			return 1
		}
		return 0
	})
	return out
}

// worse is the heap ordering: the worst item sits at the root.
func (q *TopK) worse(i, j int) bool {
	return q.before(q.items[j], q.items[i])
}

func (q *TopK) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.worse(i, p) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *TopK) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		worst := l
		r := l + 1
		if r < n && q.worse(r, l) {
			worst = r
		}
		if !q.worse(worst, i) {
			return
		}
		q.items[i], q.items[worst] = q.items[worst], q.items[i]
		i = worst
	}
}
