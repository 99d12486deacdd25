// Package graph implements C1: a compact in-memory adjacency representation
// of the input triple stream, plus its reverse index. Grounded on the
// teacher's slice-indexed, growth-on-demand storage style in
// internal/parser/hprof/graph_indexed.go, adapted from a single object table
// to a pair of per-vertex edge-list slices (outgoing + reverse).
package graph

import (
	"io"

	"github.com/stratabisim/stratabisim/internal/wire"
	apperrors "github.com/stratabisim/stratabisim/pkg/errors"
)

// Edge is a single outgoing edge: an edge label and the target vertex id.
type Edge struct {
	Label  int64
	Target int64
}

// Graph is an immutable, once-built adjacency structure: an outgoing edge
// list per vertex plus a deduplicated reverse-neighbor list per vertex.
type Graph struct {
	out [][]Edge
	rev [][]int64
}

// NumVertices returns the size of the dense vertex id space, i.e. one plus
// the maximum vertex id ever observed (as a source, target, or named via
// growth) while loading.
func (g *Graph) NumVertices() int64 {
	return int64(len(g.out))
}

// OutgoingEdges returns v's outgoing edges in file order, including
// duplicates. The refiner is responsible for collapsing them into a set
// inside the signature computation.
func (g *Graph) OutgoingEdges(v int64) []Edge {
	if v < 0 || int(v) >= len(g.out) {
		return nil
	}
	return g.out[v]
}

// ReverseNeighbors returns the deduplicated set of vertices with an edge
// targeting v, as a slice built once at load time.
func (g *Graph) ReverseNeighbors(v int64) []int64 {
	if v < 0 || int(v) >= len(g.rev) {
		return nil
	}
	return g.rev[v]
}

func (g *Graph) ensureSize(n int64) {
	for int64(len(g.out)) < n {
		g.out = append(g.out, nil)
	}
}

// Load reads a concatenation of ENTITY|PREDICATE|ENTITY triples from r until
// EOF, growing the vertex table as larger ids are observed, and computes the
// reverse index via a dedup pass over a transient per-vertex set before
// materializing it as a shrunk slice -- this is deliberate: the refiner's
// reverse-propagation walk is on the hot path and must not pay for duplicate
// incoming edges it will never distinguish.
func Load(r io.Reader) (*Graph, error) {
	rd := wire.NewReader(r)
	g := &Graph{}

	incomingSets := make([]map[int64]struct{}, 0)
	ensureIncoming := func(n int64) {
		for int64(len(incomingSets)) < n {
			incomingSets = append(incomingSets, nil)
		}
	}

	for {
		subject, err := rd.ReadEntity()
		if err != nil {
			if wire.IsEOF(err) {
				break
			}
			return nil, wire.ErrTruncated("triples file (subject)")
		}
		label, err := rd.ReadPredicate()
		if err != nil {
			return nil, wire.ErrTruncated("triples file (predicate)")
		}
		object, err := rd.ReadEntity()
		if err != nil {
			return nil, wire.ErrTruncated("triples file (object)")
		}

		maxID := subject
		if object > maxID {
			maxID = object
		}
		g.ensureSize(maxID + 1)
		ensureIncoming(maxID + 1)

		g.out[subject] = append(g.out[subject], Edge{Label: label, Target: object})

		if incomingSets[object] == nil {
			incomingSets[object] = make(map[int64]struct{}, 4)
		}
		incomingSets[object][subject] = struct{}{}
	}

	g.rev = make([][]int64, len(g.out))
	for v, set := range incomingSets {
		if len(set) == 0 {
			continue
		}
		list := make([]int64, 0, len(set))
		for u := range set {
			list = append(list, u)
		}
		g.rev[v] = list
	}

	return g, nil
}

// ValidateTarget returns an invariant-violation error if target is not a
// valid vertex id in g. The refiner calls this on every signature edge it
// processes, per the spec's "target-id out of graph bounds is fatal" rule.
func (g *Graph) ValidateTarget(target int64) error {
	if target < 0 || target >= g.NumVertices() {
		return apperrors.Wrap(apperrors.CodeInvariant, "edge target out of graph bounds", nil)
	}
	return nil
}
