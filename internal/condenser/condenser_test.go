package condenser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratabisim/stratabisim/internal/driver"
	"github.com/stratabisim/stratabisim/internal/graph"
	"github.com/stratabisim/stratabisim/internal/wire"
)

func writeTriples(t *testing.T, path string, triples [][3]int64) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := wire.NewWriter(f)
	for _, tr := range triples {
		require.NoError(t, w.WriteEntity(tr[0]))
		require.NoError(t, w.WritePredicate(tr[1]))
		require.NoError(t, w.WriteEntity(tr[2]))
	}
	require.NoError(t, w.Flush())
}

// Builds a tiny experiment directory the way the run pipeline would: the
// triples file plus whatever driver.Run persists.
func setupExperiment(t *testing.T, triples [][3]int64, cfg driver.Config) string {
	t.Helper()
	dir := t.TempDir()
	cfg.DataDir = dir
	triplesPath := filepath.Join(dir, "binary_encoding.bin")
	writeTriples(t, triplesPath, triples)

	f, err := os.Open(triplesPath)
	require.NoError(t, err)
	defer f.Close()
	g, err := graph.Load(f)
	require.NoError(t, err)

	_, err = driver.Run(g, cfg, nil)
	require.NoError(t, err)
	return dir
}

func TestCondenseSingleLevelFixedPoint(t *testing.T) {
	dir := setupExperiment(t, [][3]int64{{0, 99, 0}, {1, 99, 1}}, driver.Config{SupportThreshold: 1})

	result, err := Condense(dir, nil)
	require.NoError(t, err)

	assert.Len(t, result.Intervals, 1, "both vertices collapse into one block that never splits")
	assert.FileExists(t, filepath.Join(dir, "condensed_multi_summary_graph.bin"))
	assert.FileExists(t, filepath.Join(dir, "condensed_multi_summary_intervals.bin"))
	assert.FileExists(t, filepath.Join(dir, "condensed_multi_summary_local_global_map.bin"))

	// S2-style no-op fixed point: the driver always writes one redundant
	// final level, so the sole block's lifetime spans [0, 1] even though it
	// never actually changed membership.
	for _, iv := range result.Intervals {
		assert.Equal(t, 0, iv.start)
		assert.Equal(t, 1, iv.end)
	}
}

func TestCondenseSplitProducesTwoGenerationsOfNodes(t *testing.T) {
	dir := setupExperiment(t, [][3]int64{{0, 1, 2}, {1, 1, 3}}, driver.Config{SupportThreshold: 1})

	result, err := Condense(dir, nil)
	require.NoError(t, err)

	var bornAtZero, bornLater int
	for _, iv := range result.Intervals {
		if iv.start == 0 {
			bornAtZero++
		} else {
			bornLater++
		}
	}
	assert.Positive(t, bornAtZero)
	assert.Positive(t, bornLater, "the split parent's children/singletons must be born after level 0")
}

// Duplicate parallel edges between two vertices that never split must
// collapse into one induced summary edge, at every level.
func TestCondenseInducedEdgesAreDeduplicated(t *testing.T) {
	dir := setupExperiment(t, [][3]int64{{0, 99, 1}, {0, 99, 1}, {1, 99, 1}}, driver.Config{SupportThreshold: 1})

	result, err := Condense(dir, nil)
	require.NoError(t, err)
	assert.Len(t, result.Edges, 1)
}
