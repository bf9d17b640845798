package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	// Sets are created empty, even when a capacity hint is given.
	s := MakeSet[string](10)
	assert.Empty(t, s)

	s.Insert("n", "m")
	assert.Len(t, s, 2)
	assert.True(t, s.Has("n"))
	assert.True(t, s.Has("m"))
	assert.False(t, s.Has("p"))

	s2 := SetWith("p", "m")
	assert.Len(t, s2, 2)
	assert.True(t, s2.Has("p"))
	assert.False(t, s2.Has("n"))

	// Sub keeps only elements absent from the other set.
	s3 := s.Sub(s2)
	assert.Len(t, s3, 1)
	assert.True(t, s3.Has("n"))

	delete(s, "m")
	assert.True(t, s.Equal(s3))
	assert.False(t, s.Equal(s2))
	assert.False(t, s.Equal(SetWith("q")))
}

func TestSortedKeys(t *testing.T) {
	s := SetWith(7, 3, 5, 3)
	assert.Equal(t, []int{3, 5, 7}, SortedKeys(s))
	assert.Empty(t, SortedKeys(MakeSet[int]()))
}
