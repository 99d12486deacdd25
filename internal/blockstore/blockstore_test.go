package blockstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBlockAndGet(t *testing.T) {
	s := New(5)
	b := s.CreateBlock([]int64{0, 1, 2})

	assert.Equal(t, b, s.Get(0))
	assert.Equal(t, b, s.Get(1))
	assert.Equal(t, b, s.Get(2))
	assert.ElementsMatch(t, []int64{0, 1, 2}, s.Members(b))
	assert.Equal(t, int64(1), s.BlockCount())
	assert.Equal(t, int64(0), s.SingletonCount())
}

func TestMarkSingletonRequiresExistingBlock(t *testing.T) {
	s := New(2)
	err := s.MarkSingleton(0)
	assert.Error(t, err)

	s.CreateBlock([]int64{0, 1})
	require.NoError(t, s.MarkSingleton(0))

	tag := s.Get(0)
	assert.True(t, BlockOrSingleton(tag).IsSingleton())
	assert.Equal(t, int64(0), BlockOrSingleton(tag).VertexID())
	assert.Equal(t, int64(1), s.SingletonCount())
}

func TestInitSingletonBypassesBlockRequirement(t *testing.T) {
	s := New(1)
	s.InitSingleton(0)
	assert.True(t, BlockOrSingleton(s.Get(0)).IsSingleton())
	assert.Equal(t, int64(1), s.SingletonCount())
}

func TestRecycleSlotIsReusedByNextSlot(t *testing.T) {
	s := New(4)
	b1 := s.CreateBlock([]int64{0, 1})
	s.RecycleSlot(b1)

	b2 := s.CreateBlock([]int64{2, 3})
	assert.Equal(t, b1, b2, "recycled slot should be reused before growing")
}

func TestCloneIsIndependent(t *testing.T) {
	s := New(3)
	b := s.CreateBlock([]int64{0, 1, 2})
	c := s.Clone()

	require.NoError(t, c.MarkSingleton(0))
	assert.False(t, BlockOrSingleton(s.Get(0)).IsSingleton())
	assert.True(t, BlockOrSingleton(c.Get(0)).IsSingleton())
	assert.ElementsMatch(t, []int64{0, 1, 2}, s.Members(b))
}

func TestTotalCellsCountsBlocksAndSingletons(t *testing.T) {
	s := New(3)
	s.CreateBlock([]int64{0, 1})
	s.InitSingleton(2)
	assert.Equal(t, int64(2), s.TotalCells())
}

func TestAllBlockIDsSkipsFreeSlots(t *testing.T) {
	s := New(4)
	b1 := s.CreateBlock([]int64{0})
	b2 := s.CreateBlock([]int64{1})
	s.RecycleSlot(b1)

	var seen []int64
	s.AllBlockIDs(func(b int64) { seen = append(seen, b) })
	assert.Equal(t, []int64{b2}, seen)
}

func TestSingletonTagRoundTrip(t *testing.T) {
	tag := SingletonTag(41)
	assert.True(t, tag.IsSingleton())
	assert.Equal(t, int64(41), tag.VertexID())
}
