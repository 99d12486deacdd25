package graph

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratabisim/stratabisim/internal/wire"
)

func encodeTriples(t *testing.T, triples [][3]int64) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	for _, tr := range triples {
		require.NoError(t, w.WriteEntity(tr[0]))
		require.NoError(t, w.WritePredicate(tr[1]))
		require.NoError(t, w.WriteEntity(tr[2]))
	}
	require.NoError(t, w.Flush())
	return &buf
}

func TestLoadBuildsForwardAndReverseAdjacency(t *testing.T) {
	buf := encodeTriples(t, [][3]int64{
		{0, 1, 2},
		{1, 1, 2},
		{2, 2, 0},
	})

	g, err := Load(buf)
	require.NoError(t, err)

	assert.Equal(t, int64(3), g.NumVertices())
	assert.ElementsMatch(t, []Edge{{Label: 1, Target: 2}}, g.OutgoingEdges(0))
	assert.ElementsMatch(t, []Edge{{Label: 2, Target: 0}}, g.OutgoingEdges(2))

	rev := append([]int64(nil), g.ReverseNeighbors(2)...)
	sort.Slice(rev, func(i, j int) bool { return rev[i] < rev[j] })
	assert.Equal(t, []int64{0, 1}, rev)
}

func TestLoadDedupesReverseNeighbors(t *testing.T) {
	buf := encodeTriples(t, [][3]int64{
		{0, 1, 5},
		{0, 2, 5},
		{0, 1, 5},
	})

	g, err := Load(buf)
	require.NoError(t, err)
	assert.Len(t, g.ReverseNeighbors(5), 1)
	assert.Len(t, g.OutgoingEdges(0), 3)
}

func TestValidateTargetRejectsOutOfBounds(t *testing.T) {
	buf := encodeTriples(t, [][3]int64{{0, 1, 1}})
	g, err := Load(buf)
	require.NoError(t, err)

	assert.NoError(t, g.ValidateTarget(1))
	assert.Error(t, g.ValidateTarget(99))
	assert.Error(t, g.ValidateTarget(-1))
}

func TestOutgoingEdgesOutOfRangeReturnsNil(t *testing.T) {
	g := &Graph{}
	assert.Nil(t, g.OutgoingEdges(0))
	assert.Nil(t, g.ReverseNeighbors(0))
}
