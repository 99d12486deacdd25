package refiner

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratabisim/stratabisim/internal/blockstore"
	"github.com/stratabisim/stratabisim/internal/graph"
	"github.com/stratabisim/stratabisim/internal/wire"
	"github.com/stratabisim/stratabisim/pkg/collections"
)

func buildGraph(t *testing.T, triples [][3]int64) *graph.Graph {
	t.Helper()
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	for _, tr := range triples {
		require.NoError(t, w.WriteEntity(tr[0]))
		require.NoError(t, w.WritePredicate(tr[1]))
		require.NoError(t, w.WriteEntity(tr[2]))
	}
	require.NoError(t, w.Flush())
	g, err := graph.Load(&buf)
	require.NoError(t, err)
	return g
}

// Vertices 0,1 point to 2 with the same label; 2,3 have no outgoing edges
// and sit in their own block. Signatures of 0 and 1 agree, so the block
// {0,1} must not split.
func TestRefineNoSplitWhenSignaturesAgree(t *testing.T) {
	g := buildGraph(t, [][3]int64{{0, 1, 2}, {1, 1, 2}})
	store := blockstore.New(4)
	b01 := store.CreateBlock([]int64{0, 1})
	store.CreateBlock([]int64{2, 3})

	dirty := collections.NewBitset(8)
	dirty.Set(int(b01))

	res, err := Refine(g, store, dirty, 1)
	require.NoError(t, err)
	assert.Equal(t, b01, res.Next.Get(0))
	assert.Equal(t, b01, res.Next.Get(1))
	assert.Empty(t, res.RefinesEdges)
}

// 0 points to 2, 1 points to 3, and {2} / {3} are in different blocks, so
// {0,1}'s signatures diverge and support=1 (< 2) dissolves the size-2 block
// into singletons via Pass A.
func TestRefinePassADissolvesSizeTwoBlock(t *testing.T) {
	g := buildGraph(t, [][3]int64{{0, 1, 2}, {1, 1, 3}})
	store := blockstore.New(4)
	b01 := store.CreateBlock([]int64{0, 1})
	store.CreateBlock([]int64{2})
	store.CreateBlock([]int64{3})

	dirty := collections.NewBitset(8)
	dirty.Set(int(b01))

	res, err := Refine(g, store, dirty, 1)
	require.NoError(t, err)
	assert.True(t, blockstore.BlockOrSingleton(res.Next.Get(0)).IsSingleton())
	assert.True(t, blockstore.BlockOrSingleton(res.Next.Get(1)).IsSingleton())
	assert.Equal(t, []int64{SingletonSentinel}, res.RefinesEdges[b01])
}

// A block of 3 members where one diverges from the other two splits via
// Pass B into a size-2 block and a singleton.
func TestRefinePassBSplitsBySignature(t *testing.T) {
	g := buildGraph(t, [][3]int64{{0, 1, 3}, {1, 1, 3}, {2, 1, 4}})
	store := blockstore.New(5)
	b := store.CreateBlock([]int64{0, 1, 2})
	store.CreateBlock([]int64{3})
	store.CreateBlock([]int64{4})

	dirty := collections.NewBitset(8)
	dirty.Set(int(b))

	res, err := Refine(g, store, dirty, 1)
	require.NoError(t, err)

	assert.Equal(t, res.Next.Get(0), res.Next.Get(1))
	assert.True(t, blockstore.BlockOrSingleton(res.Next.Get(2)).IsSingleton())
	assert.Contains(t, res.RefinesEdges[b], SingletonSentinel)
}

// Support=2 disables Pass A, so a diverging size-2 block stays intact.
func TestRefineSupportTwoDisablesPassA(t *testing.T) {
	g := buildGraph(t, [][3]int64{{0, 1, 2}, {1, 1, 3}})
	store := blockstore.New(4)
	b01 := store.CreateBlock([]int64{0, 1})
	store.CreateBlock([]int64{2})
	store.CreateBlock([]int64{3})

	dirty := collections.NewBitset(8)
	dirty.Set(int(b01))

	res, err := Refine(g, store, dirty, 2)
	require.NoError(t, err)
	assert.Equal(t, b01, res.Next.Get(0))
	assert.Equal(t, b01, res.Next.Get(1))
	assert.Empty(t, res.RefinesEdges)
}

func TestRefineRejectsZeroSupport(t *testing.T) {
	g := buildGraph(t, nil)
	store := blockstore.New(0)
	dirty := collections.NewBitset(1)
	_, err := Refine(g, store, dirty, 0)
	assert.Error(t, err)
}
