// Package refiner implements C3: the signature-split partition refinement
// step that turns level k's outcome into level k+1's outcome plus the
// refines-mapping between them.
//
// Grounded structurally on the teacher's internal/parser/hprof/
// graph_buffer_pool.go dirty-tracking shape and on pkg/collections.Bitset
// for the dirty-block set; the per-call signature maps and the
// changed-vertex list are plain maps and slices allocated on each call. The
// refinement algorithm itself is novel to this package, there being nothing
// resembling signature-based bisimulation in the teacher's heap-dump domain.
package refiner

import (
	"sort"
	"strconv"
	"strings"

	"github.com/stratabisim/stratabisim/internal/blockstore"
	"github.com/stratabisim/stratabisim/internal/graph"
	"github.com/stratabisim/stratabisim/pkg/collections"
	apperrors "github.com/stratabisim/stratabisim/pkg/errors"
)

// SingletonSentinel is the refines-edge child entry denoting "some children
// of this parent are singletons"; it is recorded at most once per parent.
const SingletonSentinel int64 = 0

// Result is the outcome of one refinement step.
type Result struct {
	Next         *blockstore.Store
	Dirty        *collections.Bitset // indexed by block id; bit b set means block b is a candidate to split next level
	RefinesEdges map[int64][]int64   // parent block id (level k) -> child entries (level k+1 block ids, 0 = singleton sentinel)
}

type sigPair struct {
	label int64
	tag   int64
}

// signature computes v's split signature relative to store: the *set* of
// (label, block-or-singleton) pairs over v's outgoing edges. Using a set
// instead of a multiset is load-bearing -- parallel edges to the same
// (label, target-block) must collapse, or the refinement no longer computes
// forward bisimulation.
func signature(g *graph.Graph, store *blockstore.Store, v int64) ([]sigPair, error) {
	edges := g.OutgoingEdges(v)
	if len(edges) == 0 {
		return nil, nil
	}
	set := make(map[sigPair]struct{}, len(edges))
	for _, e := range edges {
		if err := g.ValidateTarget(e.Target); err != nil {
			return nil, err
		}
		set[sigPair{label: e.Label, tag: store.Get(e.Target)}] = struct{}{}
	}
	pairs := make([]sigPair, 0, len(set))
	for p := range set {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].label != pairs[j].label {
			return pairs[i].label < pairs[j].label
		}
		return pairs[i].tag < pairs[j].tag
	})
	return pairs, nil
}

func sigKey(pairs []sigPair) string {
	var b strings.Builder
	for _, p := range pairs {
		b.WriteString(strconv.FormatInt(p.label, 36))
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(p.tag, 36))
		b.WriteByte(',')
	}
	return b.String()
}

func sigEqual(a, b []sigPair) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Refine produces level k+1 from level k. dirty is the set of block ids at
// level k that may split; support is the minimum block size eligible for
// splitting or dirtying (s >= 1).
func Refine(g *graph.Graph, prev *blockstore.Store, dirty *collections.Bitset, support int64) (*Result, error) {
	if support < 1 {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "support threshold must be >= 1", nil)
	}

	next := prev.Clone()
	refinesEdges := make(map[int64][]int64)
	changed := make([]int64, 0)

	// Pass A: size-2 block dissolution, only meaningful when s < 2.
	if support < 2 {
		var passABlocks []int64
		dirty.Iterate(func(b int) bool {
			passABlocks = append(passABlocks, int64(b))
			return true
		})
		for _, b := range passABlocks {
			members := next.Members(b)
			if len(members) != 2 {
				continue
			}
			sigA, err := signature(g, prev, members[0])
			if err != nil {
				return nil, err
			}
			sigB, err := signature(g, prev, members[1])
			if err != nil {
				return nil, err
			}
			if sigEqual(sigA, sigB) {
				continue
			}
			next.RecycleSlot(b)
			for _, v := range members {
				if err := next.MarkSingleton(v); err != nil {
					return nil, err
				}
				changed = append(changed, v)
			}
			refinesEdges[b] = []int64{SingletonSentinel}
		}
	}

	// Pass B: all other dirty blocks of size > max(2, s).
	threshold := int64(2)
	if support > threshold {
		threshold = support
	}
	var passBBlocks []int64
	dirty.Iterate(func(b int) bool {
		passBBlocks = append(passBBlocks, int64(b))
		return true
	})
	for _, b := range passBBlocks {
		members := next.Members(b)
		if members == nil {
			// Already dissolved by Pass A.
			continue
		}
		if int64(len(members)) <= threshold {
			continue
		}

		groups := make(map[string][]int64)
		var order []string
		for _, v := range members {
			sig, err := signature(g, prev, v)
			if err != nil {
				return nil, err
			}
			key := sigKey(sig)
			if _, ok := groups[key]; !ok {
				order = append(order, key)
			}
			groups[key] = append(groups[key], v)
		}
		if len(groups) == 1 {
			// No change: the whole block shares one signature.
			continue
		}

		next.RecycleSlot(b)
		sentinelRecorded := false
		sort.Strings(order)
		for _, key := range order {
			group := groups[key]
			if len(group) == 1 {
				v := group[0]
				if err := next.MarkSingleton(v); err != nil {
					return nil, err
				}
				changed = append(changed, v)
				if !sentinelRecorded {
					refinesEdges[b] = append(refinesEdges[b], SingletonSentinel)
					sentinelRecorded = true
				}
				continue
			}
			newID := next.CreateBlock(group)
			refinesEdges[b] = append(refinesEdges[b], newID)
			changed = append(changed, group...)
		}
	}

	// Dirtying for the next level: a block becomes dirty when one of its
	// members has an outgoing edge targeting a changed vertex. Walk the
	// reverse index from each changed vertex.
	newDirty := collections.NewBitset(int(next.MaxBlockID()) + 1)
	for _, cv := range changed {
		for _, u := range g.ReverseNeighbors(cv) {
			b := next.Get(u)
			if b <= 0 {
				continue // singleton sources cannot split further
			}
			if int64(len(next.Members(b))) < support {
				continue
			}
			newDirty.Set(int(b))
		}
	}

	return &Result{Next: next, Dirty: newDirty, RefinesEdges: refinesEdges}, nil
}
