// Package quotient implements C6: reconstruction of a single-level quotient
// graph from the condensed multi-level artifacts C5 produces.
//
// Grounded on the teacher's internal/parser/hprof/core_result_builder.go,
// which replays an accumulated structure to reconstruct a point-in-time
// view; here the "point in time" is a bisimulation depth instead of a heap
// snapshot instant.
package quotient

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/stratabisim/stratabisim/internal/wire"
	apperrors "github.com/stratabisim/stratabisim/pkg/errors"
	"github.com/stratabisim/stratabisim/pkg/utils"
)

type interval struct {
	start, end int
}

type edge struct {
	subject, predicate, object int64
}

// Files written by Extract.
type Files struct {
	Membership string
	Edges      string
	EdgeTypes  string
}

// Extract reconstructs the quotient graph at level L (use -1 for the fixed
// point) from dataDir's condensed artifacts and writes three line-aligned
// text files under dataDir.
func Extract(dataDir string, level int, logger utils.Logger) (*Files, error) {
	if logger == nil {
		logger = &utils.NullLogger{}
	}

	stats, err := readGraphStats(dataDir)
	if err != nil {
		return nil, err
	}
	if level < 0 {
		level = stats.FinalDepth
	}

	intervals, err := readIntervals(filepath.Join(dataDir, "condensed_multi_summary_intervals.bin"))
	if err != nil {
		return nil, err
	}
	localToGlobal, err := readLocalGlobalMap(filepath.Join(dataDir, "condensed_multi_summary_local_global_map.bin"))
	if err != nil {
		return nil, err
	}
	edges, err := readSummaryGraph(filepath.Join(dataDir, "condensed_multi_summary_graph.bin"))
	if err != nil {
		return nil, err
	}

	aliveAt := func(node int64, l int) bool {
		iv, ok := intervals[node]
		if !ok {
			return false
		}
		return iv.start <= l && l <= iv.end
	}

	// Build child-global -> parent-global for the L -> L+1 transition, used
	// to pull a node born one level after L back down to its level-L
	// ancestor. At the fixed point there is no such transition, so this map
	// is empty and every node is naturally its own parent.
	childToParent := make(map[int64]int64)
	if level < stats.FinalDepth {
		mapping, err := readMapping(mappingFilePath(dataDir, level, level+1))
		if err != nil {
			return nil, err
		}
		globalAt := func(lvl int, local int64) (int64, bool) {
			g, ok := localToGlobal[levelLocal{level: lvl, local: local}]
			return g, ok
		}
		for parent, children := range mapping {
			parentGlobal, ok := globalAt(level, parent)
			if !ok {
				continue
			}
			for _, c := range children {
				if c == wire.SingletonSentinel {
					continue
				}
				childGlobal, ok := globalAt(level+1, c)
				if !ok {
					continue
				}
				childToParent[childGlobal] = parentGlobal
			}
		}
	}

	var kept []edge
	for _, e := range edges {
		if !aliveAt(e.object, level) {
			continue
		}
		subject := e.subject
		if iv, ok := intervals[subject]; ok && iv.start == level+1 {
			if parent, ok := childToParent[subject]; ok {
				subject = parent
			} else {
				continue
			}
		}
		if !aliveAt(subject, level) {
			continue
		}
		kept = append(kept, edge{subject: subject, predicate: e.predicate, object: e.object})
	}

	// Living blocks at level L: any global id alive at L that corresponds to
	// a positive (non-singleton) node.
	living := make(map[int64]bool)
	for node, iv := range intervals {
		if node > 0 && iv.start <= level && level <= iv.end {
			living[node] = true
		}
	}

	membership, err := readOutcome(outcomeFilePath(dataDir, level))
	if err != nil {
		return nil, err
	}

	// A block's local id stays stable for as long as it remains alive (only
	// a dissolution recycles a slot), so its global id at level L is whatever
	// birth-level entry produced a global id still alive at L -- not
	// necessarily one recorded at level L itself, since unchanged blocks
	// never get a fresh local-to-global entry past their birth level.
	candidatesByLocal := make(map[int64][]int64)
	for key, g := range localToGlobal {
		candidatesByLocal[key.local] = append(candidatesByLocal[key.local], g)
	}
	globalForLocal := make(map[int64]int64)
	for local, candidates := range candidatesByLocal {
		for _, g := range candidates {
			if aliveAt(g, level) {
				globalForLocal[local] = g
				break
			}
		}
	}

	files := &Files{
		Membership: filepath.Join(dataDir, fmt.Sprintf("quotient-%04d-membership.txt", level)),
		Edges:      filepath.Join(dataDir, fmt.Sprintf("quotient-%04d-edges.txt", level)),
		EdgeTypes:  filepath.Join(dataDir, fmt.Sprintf("quotient-%04d-edge-types.txt", level)),
	}

	if err := writeMembership(files.Membership, membership, globalForLocal); err != nil {
		return nil, err
	}
	if err := writeEdges(files.Edges, files.EdgeTypes, kept); err != nil {
		return nil, err
	}

	logger.Info("quotient at level %d: %d blocks, %d edges", level, len(living), len(kept))
	return files, nil
}

func writeMembership(path string, blocks map[int64][]int64, globalForLocal map[int64]int64) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "create quotient membership file", err)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)

	localIDs := make([]int64, 0, len(blocks))
	for b := range blocks {
		localIDs = append(localIDs, b)
	}
	sort.Slice(localIDs, func(i, j int) bool { return localIDs[i] < localIDs[j] })

	for _, b := range localIDs {
		gid := globalForLocal[b]
		fmt.Fprintf(bw, "%d", gid)
		for _, v := range blocks[b] {
			fmt.Fprintf(bw, " %d", v)
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

func writeEdges(edgesPath, typesPath string, edges []edge) error {
	ef, err := os.Create(edgesPath)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "create quotient edges file", err)
	}
	defer ef.Close()
	tf, err := os.Create(typesPath)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "create quotient edge-types file", err)
	}
	defer tf.Close()

	ebw := bufio.NewWriter(ef)
	tbw := bufio.NewWriter(tf)
	for _, e := range edges {
		fmt.Fprintf(ebw, "%d %d\n", e.subject, e.object)
		fmt.Fprintf(tbw, "%d\n", e.predicate)
	}
	if err := ebw.Flush(); err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "flush quotient edges file", err)
	}
	return tbw.Flush()
}
