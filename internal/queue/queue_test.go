package queue

import (
	"cmp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ascending(a, b float32) int  { return cmp.Compare(a, b) }
func descending(a, b float32) int { return cmp.Compare(b, a) }

func positions(items []Item) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.Pos
	}
	return out
}

func TestTopK(t *testing.T) {
	t.Run("Ascending", func(t *testing.T) {
		q := NewTopK(3, ascending)
		for i, s := range []float32{5, 1, 4, 2, 3, 0} {
			q.Push(Item{Pos: i, Score: s})
		}
		assert.Equal(t, 3, q.Len())
		assert.Equal(t, []int{5, 1, 3}, positions(q.Sorted()))
	})

	t.Run("Descending", func(t *testing.T) {
		q := NewTopK(2, descending)
		for i, s := range []float32{5, 1, 4, 2, 3, 0} {
			q.Push(Item{Pos: i, Score: s})
		}
		assert.Equal(t, []int{0, 2}, positions(q.Sorted()))
	})

	t.Run("StableTies", func(t *testing.T) {
		q := NewTopK(3, ascending)
		for i := 0; i < 6; i++ {
			q.Push(Item{Pos: i, Score: 1})
		}
		assert.Equal(t, []int{0, 1, 2}, positions(q.Sorted()))
	})

	t.Run("FewerThanK", func(t *testing.T) {
		q := NewTopK(10, ascending)
		q.Push(Item{Pos: 0, Score: 2})
		q.Push(Item{Pos: 1, Score: 1})
		assert.Equal(t, []int{1, 0}, positions(q.Sorted()))
	})

	t.Run("ZeroK", func(t *testing.T) {
		q := NewTopK(0, ascending)
		assert.False(t, q.Push(Item{Pos: 0, Score: 1}))
		assert.Empty(t, q.Sorted())
	})
}
