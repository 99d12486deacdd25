package quotient

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stratabisim/stratabisim/internal/wire"
	apperrors "github.com/stratabisim/stratabisim/pkg/errors"
)

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

// readIntervals parses condensed_multi_summary_intervals.bin into node ->
// lifetime interval.
func readIntervals(path string) (map[int64]interval, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIO, "open intervals file", err)
	}
	defer f.Close()

	r := wire.NewReader(f)
	intervals := make(map[int64]interval)
	for {
		node, err := r.ReadBlockOrSingleton()
		if err != nil {
			if wire.IsEOF(err) {
				break
			}
			return nil, wire.ErrTruncated("intervals file (node)")
		}
		start, err := r.ReadKType()
		if err != nil {
			return nil, wire.ErrTruncated("intervals file (start)")
		}
		end, err := r.ReadKType()
		if err != nil {
			return nil, wire.ErrTruncated("intervals file (end)")
		}
		intervals[node] = interval{start: start, end: end}
	}
	return intervals, nil
}

// levelLocal identifies a block by the level it was local to and its
// level-local id, the key the local-to-global map is keyed on.
type levelLocal struct {
	level int
	local int64
}

// readLocalGlobalMap parses condensed_multi_summary_local_global_map.bin
// into (level, local id) -> global id.
func readLocalGlobalMap(path string) (map[levelLocal]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIO, "open local-to-global map file", err)
	}
	defer f.Close()

	r := wire.NewReader(f)
	out := make(map[levelLocal]int64)
	for {
		level, err := r.ReadKType()
		if err != nil {
			if wire.IsEOF(err) {
				break
			}
			return nil, wire.ErrTruncated("local-to-global map file (level)")
		}
		local, err := r.ReadBlockOrSingleton()
		if err != nil {
			return nil, wire.ErrTruncated("local-to-global map file (local id)")
		}
		global, err := r.ReadBlockOrSingleton()
		if err != nil {
			return nil, wire.ErrTruncated("local-to-global map file (global id)")
		}
		out[levelLocal{level: level, local: local}] = global
	}
	return out, nil
}

// readSummaryGraph parses condensed_multi_summary_graph.bin into edges over
// global ids.
func readSummaryGraph(path string) ([]edge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIO, "open condensed summary graph file", err)
	}
	defer f.Close()

	r := wire.NewReader(f)
	var edges []edge
	for {
		s, err := r.ReadBlockOrSingleton()
		if err != nil {
			if wire.IsEOF(err) {
				break
			}
			return nil, wire.ErrTruncated("condensed summary graph file (subject)")
		}
		p, err := r.ReadPredicate()
		if err != nil {
			return nil, wire.ErrTruncated("condensed summary graph file (predicate)")
		}
		o, err := r.ReadBlockOrSingleton()
		if err != nil {
			return nil, wire.ErrTruncated("condensed summary graph file (object)")
		}
		edges = append(edges, edge{subject: s, predicate: p, object: o})
	}
	return edges, nil
}
