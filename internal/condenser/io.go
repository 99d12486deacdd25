package condenser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/stratabisim/stratabisim/internal/wire"
	apperrors "github.com/stratabisim/stratabisim/pkg/errors"
)

// graphStats mirrors the subset of ad_hoc_results/graph_stats.json the
// condenser needs.
type graphStats struct {
	VertexCount int64 `json:"Vertex count"`
	FinalDepth  int   `json:"Final depth"`
	FixedPoint  bool  `json:"Fixed point"`
}

func readGraphStats(dataDir string) (*graphStats, error) {
	path := filepath.Join(dataDir, "ad_hoc_results", "graph_stats.json")
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIO, "open graph_stats.json", err)
	}
	defer f.Close()
	var gs graphStats
	if err := json.NewDecoder(f).Decode(&gs); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeFileFormat, "parse graph_stats.json", err)
	}
	return &gs, nil
}

func outcomeFilePath(dataDir string, level int) string {
	return filepath.Join(dataDir, fmt.Sprintf("outcome_condensed-%04d.bin", level))
}

func mappingFilePath(dataDir string, from, to int) string {
	return filepath.Join(dataDir, fmt.Sprintf("mapping-%04dto%04d.bin", from, to))
}

func singletonMappingFilePath(dataDir string, from, to int) string {
	return filepath.Join(dataDir, fmt.Sprintf("singleton_mapping-%04dto%04d.bin", from, to))
}

// readOutcome parses an outcome_condensed-KKKK.bin file into block id ->
// membership.
func readOutcome(path string) (map[int64][]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIO, "open outcome file", err)
	}
	defer f.Close()

	r := wire.NewReader(f)
	blocks := make(map[int64][]int64)
	for {
		blockID, err := r.ReadBlock()
		if err != nil {
			if wire.IsEOF(err) {
				break
			}
			return nil, wire.ErrTruncated("outcome file (block id)")
		}
		size, err := r.ReadEntity()
		if err != nil {
			return nil, wire.ErrTruncated("outcome file (block size)")
		}
		members := make([]int64, size)
		for i := int64(0); i < size; i++ {
			v, err := r.ReadEntity()
			if err != nil {
				return nil, wire.ErrTruncated("outcome file (member)")
			}
			members[i] = v
		}
		blocks[blockID] = members
	}
	return blocks, nil
}

// readMapping parses a mapping-KKKKtoLLLL.bin file into parent -> children
// (0 = singleton sentinel).
func readMapping(path string) (map[int64][]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[int64][]int64{}, nil
		}
		return nil, apperrors.Wrap(apperrors.CodeIO, "open mapping file", err)
	}
	defer f.Close()

	r := wire.NewReader(f)
	edges := make(map[int64][]int64)
	for {
		parent, err := r.ReadBlock()
		if err != nil {
			if wire.IsEOF(err) {
				break
			}
			return nil, wire.ErrTruncated("mapping file (parent id)")
		}
		count, err := r.ReadBlock()
		if err != nil {
			return nil, wire.ErrTruncated("mapping file (child count)")
		}
		children := make([]int64, count)
		for i := int64(0); i < count; i++ {
			c, err := r.ReadBlock()
			if err != nil {
				return nil, wire.ErrTruncated("mapping file (child id)")
			}
			children[i] = c
		}
		edges[parent] = children
	}
	return edges, nil
}

// buildVertexClass derives, for every vertex in [0, numVertices), its
// level-local block-or-singleton tag: positive if it appears in some
// block's membership list, otherwise a singleton tag -- the outcome file
// format never lists singleton membership explicitly, since a singleton's
// "block" is trivially itself.
func buildVertexClass(blocks map[int64][]int64, numVertices int64) map[int64]int64 {
	class := make(map[int64]int64, numVertices)
	for b, members := range blocks {
		for _, v := range members {
			class[v] = b
		}
	}
	for v := int64(0); v < numVertices; v++ {
		if _, ok := class[v]; !ok {
			class[v] = -(v + 1)
		}
	}
	return class
}

func sortedKeys(m map[int64][]int64) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
