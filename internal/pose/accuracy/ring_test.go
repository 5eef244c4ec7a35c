package accuracy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing_EvictsOldestFirst(t *testing.T) {
	r := NewRing[int](100)
	for i := 0; i < 250; i++ {
		r.Push(i)
		assert.LessOrEqual(t, r.Len(), 100)
	}
	got := r.Values()
	assert.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, 150+i, v)
	}
}

func TestRing_PartialAndReset(t *testing.T) {
	r := NewRing[string](3)
	r.Push("a")
	r.Push("b")
	assert.Equal(t, []string{"a", "b"}, r.Values())
	r.Push("c")
	r.Push("d")
	assert.Equal(t, []string{"b", "c", "d"}, r.Values())

	r.Reset()
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Values())
	r.Push("e")
	assert.Equal(t, []string{"e"}, r.Values())
	assert.Equal(t, 3, r.Cap())
}

func TestRing_MinimumCapacity(t *testing.T) {
	r := NewRing[int](0)
	r.Push(1)
	r.Push(2)
	assert.Equal(t, []int{2}, r.Values())
}
