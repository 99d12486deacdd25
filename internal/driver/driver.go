// Package driver implements C4: the level driver that iterates refinement to
// a fixed point (or an explicit bound), persisting each level's outcome,
// refines-mapping, and statistics to disk.
//
// Grounded on the teacher's driving-loop shape in
// internal/parser/hprof/parallel_analyzer.go (iterate to a stop condition,
// persist per-stage artifacts, emit a stats record) reduced to the
// single-threaded cooperative model the spec's concurrency section mandates:
// this package never spawns a goroutine over shared refiner/blockstore
// state.
package driver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/stratabisim/stratabisim/internal/blockstore"
	"github.com/stratabisim/stratabisim/internal/graph"
	"github.com/stratabisim/stratabisim/internal/refiner"
	"github.com/stratabisim/stratabisim/internal/wire"
	"github.com/stratabisim/stratabisim/pkg/collections"
	apperrors "github.com/stratabisim/stratabisim/pkg/errors"
	"github.com/stratabisim/stratabisim/pkg/utils"
)

// Config configures a single refinement run.
type Config struct {
	DataDir          string
	SupportThreshold int64
	TypedStart       bool
	RDFTypeLabel     int64
	MaxLevel         int // 0 = unbounded, refine to fixed point
}

// GraphStats mirrors ad_hoc_results/graph_stats.json.
type GraphStats struct {
	VertexCount      int64 `json:"Vertex count"`
	EdgeCount        int64 `json:"Edge count"`
	TotalTimeTakenMs int64 `json:"Total time taken (ms)"`
	MaxMemoryKB      int64 `json:"Maximum memory footprint (kB)"`
	FinalDepth       int   `json:"Final depth"`
	FixedPoint       bool  `json:"Fixed point"`
}

// LevelStats mirrors ad_hoc_results/statistics_condensed-KKKK.json.
type LevelStats struct {
	BlockCount            int64 `json:"Block count"`
	SingletonCount        int64 `json:"Singleton count"`
	AccumulatedBlockCount int64 `json:"Accumulated block count"`
	TimeTakenMs           int64 `json:"Time taken (ms)"`
	MemoryFootprintKB     int64 `json:"Memory footprint (kB)"`
}

func outcomePath(dir string, level int) string {
	return filepath.Join(dir, fmt.Sprintf("outcome_condensed-%04d.bin", level))
}

func mappingPath(dir string, from, to int) string {
	return filepath.Join(dir, fmt.Sprintf("mapping-%04dto%04d.bin", from, to))
}

func levelStatsPath(dir string, level int) string {
	return filepath.Join(dir, "ad_hoc_results", fmt.Sprintf("statistics_condensed-%04d.json", level))
}

func graphStatsPath(dir string) string {
	return filepath.Join(dir, "ad_hoc_results", "graph_stats.json")
}

func memFootprintKB() int64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return int64(ms.Alloc / 1024)
}

// buildInitialPartition constructs level 0's store and dirty set, per
// spec.md 4.4's trivial-start and typed-start variants.
func buildInitialPartition(g *graph.Graph, cfg Config) (*blockstore.Store, *collections.Bitset) {
	n := g.NumVertices()
	store := blockstore.New(n)
	dirty := collections.NewBitset(1)

	markDirtyIfEligible := func(b int64, size int64) {
		if size >= cfg.SupportThreshold {
			dirty.Set(int(b))
		}
	}

	if !cfg.TypedStart {
		members := make([]int64, n)
		for i := range members {
			members[i] = int64(i)
		}
		b := store.CreateBlock(members)
		markDirtyIfEligible(b, n)
		return store, dirty
	}

	groups := make(map[string][]int64)
	var order []string
	for v := int64(0); v < n; v++ {
		set := make(map[int64]struct{})
		for _, e := range g.OutgoingEdges(v) {
			if e.Label == cfg.RDFTypeLabel {
				set[e.Target] = struct{}{}
			}
		}
		targets := make([]int64, 0, len(set))
		for t := range set {
			targets = append(targets, t)
		}
		sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
		key := fmt.Sprint(targets)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], v)
	}
	sort.Strings(order)
	for _, key := range order {
		members := groups[key]
		if len(members) == 1 {
			store.InitSingleton(members[0])
			continue
		}
		b := store.CreateBlock(members)
		markDirtyIfEligible(b, int64(len(members)))
	}
	return store, dirty
}

// writeOutcome persists every currently-occupied block's membership.
func writeOutcome(path string, store *blockstore.Store) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "create outcome file", err)
	}
	defer f.Close()

	w := wire.NewWriter(f)
	var writeErr error
	store.AllBlockIDs(func(b int64) {
		if writeErr != nil {
			return
		}
		members := store.Members(b)
		if err := w.WriteBlock(b); err != nil {
			writeErr = err
			return
		}
		if err := w.WriteEntity(int64(len(members))); err != nil {
			writeErr = err
			return
		}
		for _, v := range members {
			if err := w.WriteEntity(v); err != nil {
				writeErr = err
				return
			}
		}
	})
	if writeErr != nil {
		return writeErr
	}
	return w.Flush()
}

// writeMapping persists the refines-edges between two consecutive levels.
func writeMapping(path string, edges map[int64][]int64) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "create mapping file", err)
	}
	defer f.Close()

	w := wire.NewWriter(f)
	parents := make([]int64, 0, len(edges))
	for p := range edges {
		parents = append(parents, p)
	}
	sort.Slice(parents, func(i, j int) bool { return parents[i] < parents[j] })

	for _, parent := range parents {
		children := edges[parent]
		if err := w.WriteBlock(parent); err != nil {
			return err
		}
		if err := w.WriteBlock(int64(len(children))); err != nil {
			return err
		}
		for _, c := range children {
			if err := w.WriteBlock(c); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "create ad_hoc_results directory", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "create json stats file", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return apperrors.Wrap(apperrors.CodeFileFormat, "encode json stats", err)
	}
	return nil
}

// Run iterates refinement from level 0 to a fixed point (or cfg.MaxLevel,
// whichever comes first), writing every level's artifacts under cfg.DataDir.
// It returns the final depth reached and whether that depth is the true
// fixed point.
func Run(g *graph.Graph, cfg Config, logger utils.Logger) (*GraphStats, error) {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIO, "create data directory", err)
	}

	start := time.Now()
	store, dirty := buildInitialPartition(g, cfg)
	level := 0

	if err := writeOutcome(outcomePath(cfg.DataDir, level), store); err != nil {
		return nil, err
	}
	accumulated := store.MaxBlockID()
	if err := writeJSON(levelStatsPath(cfg.DataDir, level), LevelStats{
		BlockCount:            store.BlockCount(),
		SingletonCount:        store.SingletonCount(),
		AccumulatedBlockCount: accumulated,
		TimeTakenMs:           time.Since(start).Milliseconds(),
		MemoryFootprintKB:     memFootprintKB(),
	}); err != nil {
		return nil, err
	}

	fixedPoint := dirty.Count() == 0
	for !fixedPoint {
		if cfg.MaxLevel > 0 && level >= cfg.MaxLevel {
			break
		}
		levelStart := time.Now()
		result, err := refiner.Refine(g, store, dirty, cfg.SupportThreshold)
		if err != nil {
			return nil, err
		}

		// Even a no-op transition is written: spec.md's S2 scenario expects
		// a redundant final level whose outcome is identical to its parent,
		// with the fixed-point flag raised there rather than one level
		// earlier.
		if err := writeOutcome(outcomePath(cfg.DataDir, level+1), result.Next); err != nil {
			return nil, err
		}
		if err := writeMapping(mappingPath(cfg.DataDir, level, level+1), result.RefinesEdges); err != nil {
			return nil, err
		}
		accumulated = result.Next.MaxBlockID()
		if err := writeJSON(levelStatsPath(cfg.DataDir, level+1), LevelStats{
			BlockCount:            result.Next.BlockCount(),
			SingletonCount:        result.Next.SingletonCount(),
			AccumulatedBlockCount: accumulated,
			TimeTakenMs:           time.Since(levelStart).Milliseconds(),
			MemoryFootprintKB:     memFootprintKB(),
		}); err != nil {
			return nil, err
		}

		logger.Info("level %d -> %d: blocks=%d singletons=%d", level, level+1, result.Next.BlockCount(), result.Next.SingletonCount())

		totalCellsSame := result.Next.TotalCells() == store.TotalCells()
		store = result.Next
		dirty = result.Dirty
		level++

		if totalCellsSame || dirty.Count() == 0 {
			fixedPoint = true
		}
	}

	stats := &GraphStats{
		VertexCount:      g.NumVertices(),
		EdgeCount:        countEdges(g),
		TotalTimeTakenMs: time.Since(start).Milliseconds(),
		MaxMemoryKB:      memFootprintKB(),
		FinalDepth:       level,
		FixedPoint:       fixedPoint,
	}
	if err := writeJSON(graphStatsPath(cfg.DataDir), stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func countEdges(g *graph.Graph) int64 {
	var total int64
	n := g.NumVertices()
	for v := int64(0); v < n; v++ {
		total += int64(len(g.OutgoingEdges(v)))
	}
	return total
}
