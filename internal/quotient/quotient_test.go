package quotient

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratabisim/stratabisim/internal/condenser"
	"github.com/stratabisim/stratabisim/internal/driver"
	"github.com/stratabisim/stratabisim/internal/graph"
	"github.com/stratabisim/stratabisim/internal/wire"
)

func setupExperiment(t *testing.T, triples [][3]int64, cfg driver.Config) string {
	t.Helper()
	dir := t.TempDir()
	cfg.DataDir = dir
	triplesPath := filepath.Join(dir, "binary_encoding.bin")

	f, err := os.Create(triplesPath)
	require.NoError(t, err)
	w := wire.NewWriter(f)
	for _, tr := range triples {
		require.NoError(t, w.WriteEntity(tr[0]))
		require.NoError(t, w.WritePredicate(tr[1]))
		require.NoError(t, w.WriteEntity(tr[2]))
	}
	require.NoError(t, w.Flush())
	require.NoError(t, f.Close())

	rf, err := os.Open(triplesPath)
	require.NoError(t, err)
	defer rf.Close()
	g, err := graph.Load(rf)
	require.NoError(t, err)

	_, err = driver.Run(g, cfg, nil)
	require.NoError(t, err)

	_, err = condenser.Condense(dir, nil)
	require.NoError(t, err)
	return dir
}

// A block that never splits should have identical membership whether asked
// for at level 0 or at the fixed point (-1).
func TestExtractFixedPointMatchesOnlyLevel(t *testing.T) {
	dir := setupExperiment(t, [][3]int64{{0, 99, 0}, {1, 99, 1}}, driver.Config{SupportThreshold: 1})

	atZero, err := Extract(dir, 0, nil)
	require.NoError(t, err)
	atFixed, err := Extract(dir, -1, nil)
	require.NoError(t, err)

	zeroContents, err := os.ReadFile(atZero.Membership)
	require.NoError(t, err)
	fixedContents, err := os.ReadFile(atFixed.Membership)
	require.NoError(t, err)
	assert.Equal(t, zeroContents, fixedContents)
}

// After a split, level 0's quotient has one block covering every vertex;
// the fixed point's quotient has the split blocks instead.
func TestExtractReflectsSplitAtLaterLevel(t *testing.T) {
	dir := setupExperiment(t, [][3]int64{{0, 1, 2}, {1, 1, 3}}, driver.Config{SupportThreshold: 1})

	atZero, err := Extract(dir, 0, nil)
	require.NoError(t, err)
	zeroLines := readLines(t, atZero.Membership)
	assert.Len(t, zeroLines, 1, "level 0 starts from a single trivial block")

	atFixed, err := Extract(dir, -1, nil)
	require.NoError(t, err)
	fixedLines := readLines(t, atFixed.Membership)
	assert.Greater(t, len(fixedLines), 1, "the fixed point must reflect the split into multiple blocks")
}

// The edge list and edge-type list must stay line-aligned.
func TestExtractEdgeFilesLineAligned(t *testing.T) {
	dir := setupExperiment(t, [][3]int64{{0, 1, 2}, {1, 1, 3}}, driver.Config{SupportThreshold: 1})

	files, err := Extract(dir, -1, nil)
	require.NoError(t, err)

	edgeLines := readLines(t, files.Edges)
	typeLines := readLines(t, files.EdgeTypes)
	assert.Equal(t, len(edgeLines), len(typeLines))
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var lines []string
	for _, l := range splitNonEmpty(string(data)) {
		lines = append(lines, l)
	}
	return lines
}

func splitNonEmpty(s string) []string {
	var out []string
	start := 0
	for i, c := range s {
		if c == '\n' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
