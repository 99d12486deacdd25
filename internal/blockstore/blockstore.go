// Package blockstore implements C2: the per-level block store and the
// vertex-to-block map, including the signed block-or-singleton union, the
// free-slot stack, and the clone operation the refiner needs to build level
// k+1 while level k is still being read for target lookups.
//
// Grounded on the teacher's internal/parser/hprof/graph_indexed.go, which
// solves the same "avoid one map per attribute" problem for heap objects:
// here the block array plays the role of IndexedObjectStore's parallel
// slices, and the vertex-to-block map plays the role of its objToIdx map,
// generalized to carry the signed block-or-singleton union the spec calls
// for instead of a single positive dominator index.
package blockstore

import (
	apperrors "github.com/stratabisim/stratabisim/pkg/errors"
)

// BlockOrSingleton packs the "block or singleton" union spec.md's wire
// format stores as one signed integer. Construction at I/O boundaries goes
// through Encode/Decode; in-memory code should prefer IsBlock/IsSingleton
// and the dedicated accessors rather than comparing the raw signed value.
type BlockOrSingleton int64

// IsBlock reports whether the tag refers to an ordinary (possibly
// multi-member) block.
func (t BlockOrSingleton) IsBlock() bool { return t > 0 }

// IsSingleton reports whether the tag refers to a singleton vertex.
func (t BlockOrSingleton) IsSingleton() bool { return t < 0 }

// BlockID returns the block id this tag refers to. Only valid when
// IsBlock() is true.
func (t BlockOrSingleton) BlockID() int64 { return int64(t) }

// VertexID recovers the singleton's originating vertex id. Only valid when
// IsSingleton() is true.
func (t BlockOrSingleton) VertexID() int64 { return -int64(t) - 1 }

// SingletonTag encodes vertex v as its singleton tag.
func SingletonTag(v int64) BlockOrSingleton { return BlockOrSingleton(-(v + 1)) }

// Store is the owner of block contents and the vertex-to-block map for a
// single level. It is built by cloning the previous level's store (or
// freshly, for level 0) and is immutable once the refiner that produced it
// has finished writing it to disk.
type Store struct {
	// blocks[b-1] holds the membership of block id b, or nil if slot b-1 is
	// free or was never allocated beyond nextSlot.
	blocks [][]int64

	// vertexToBlock is the total map V -> Z described in the data model:
	// positive is a block id, negative is a singleton tag.
	vertexToBlock []int64

	// freeSlots is the LIFO of vacated slot positions (0-based) available
	// for reuse by the next block creation.
	freeSlots []int64

	occupied       int64
	singletonCount int64
}

// New creates a store sized for n vertices, with every vertex initially
// unassigned (vertexToBlock entries of 0, i.e. neither a valid block nor a
// valid singleton tag -- callers must assign every vertex before use).
func New(n int64) *Store {
	return &Store{
		vertexToBlock: make([]int64, n),
	}
}

// Get returns the current block-or-singleton tag for v.
func (s *Store) Get(v int64) int64 {
	return s.vertexToBlock[v]
}

// MarkSingleton transitions v from its current (positive) block to a
// singleton. It is a programming error to call this on a vertex that is
// already a singleton.
func (s *Store) MarkSingleton(v int64) error {
	if s.vertexToBlock[v] <= 0 {
		return apperrors.Wrap(apperrors.CodeInvariant, "mark_singleton called on a non-block vertex", nil)
	}
	s.vertexToBlock[v] = int64(SingletonTag(v))
	s.singletonCount++
	return nil
}

// InitSingleton assigns v directly to its singleton tag. Unlike
// MarkSingleton, it does not require v to currently hold a positive block
// id; it exists for level-0 construction (typed start), where a vertex with
// a unique type set never passes through an ordinary block at all.
func (s *Store) InitSingleton(v int64) {
	s.vertexToBlock[v] = int64(SingletonTag(v))
	s.singletonCount++
}

// SetBlock assigns vertex v to block b without touching b's membership
// list; callers that also own the membership list (CreateBlock, AddMember)
// are expected to keep both in sync.
func (s *Store) SetBlock(v, b int64) error {
	if b <= 0 {
		return apperrors.Wrap(apperrors.CodeInvariant, "set_block requires a positive block id", nil)
	}
	s.vertexToBlock[v] = b
	return nil
}

// NextSlot returns an available block id, preferring a recycled free slot
// over growing the block array, per the spec's "keep block-id density high"
// design note.
func (s *Store) NextSlot() int64 {
	if n := len(s.freeSlots); n > 0 {
		slot := s.freeSlots[n-1]
		s.freeSlots = s.freeSlots[:n-1]
		return slot + 1
	}
	s.blocks = append(s.blocks, nil)
	return int64(len(s.blocks))
}

// RecycleSlot frees block id b's slot for reuse and clears its membership.
func (s *Store) RecycleSlot(b int64) {
	idx := b - 1
	s.blocks[idx] = nil
	s.freeSlots = append(s.freeSlots, idx)
	s.occupied--
}

// CreateBlock allocates a block id for members, records its membership, and
// points every member's vertex-to-block entry at it. Returns the new block
// id.
func (s *Store) CreateBlock(members []int64) int64 {
	b := s.NextSlot()
	s.blocks[b-1] = members
	s.occupied++
	for _, v := range members {
		s.vertexToBlock[v] = b
	}
	return b
}

// Members returns the membership list of block b.
func (s *Store) Members(b int64) []int64 {
	return s.blocks[b-1]
}

// BlockCount returns the number of non-singleton blocks currently occupied:
// total slots ever allocated minus free slots currently on the stack.
func (s *Store) BlockCount() int64 {
	return s.occupied
}

// SingletonCount returns the number of vertices that have become singletons.
func (s *Store) SingletonCount() int64 {
	return s.singletonCount
}

// TotalCells returns the number of distinct partition cells: non-singleton
// blocks plus singletons.
func (s *Store) TotalCells() int64 {
	return s.occupied + s.singletonCount
}

// NumVertices returns the size of the vertex-to-block map.
func (s *Store) NumVertices() int64 {
	return int64(len(s.vertexToBlock))
}

// Clone returns an independently mutable copy of s, used by the refiner to
// build level k+1's store while level k's store is still needed to resolve
// edge-target blocks during signature computation.
func (s *Store) Clone() *Store {
	c := &Store{
		vertexToBlock:  append([]int64(nil), s.vertexToBlock...),
		freeSlots:      append([]int64(nil), s.freeSlots...),
		occupied:       s.occupied,
		singletonCount: s.singletonCount,
	}
	c.blocks = make([][]int64, len(s.blocks))
	for i, members := range s.blocks {
		if members != nil {
			c.blocks[i] = append([]int64(nil), members...)
		}
	}
	return c
}

// MaxBlockID returns the highest block id ever allocated (the size of the
// slot array), whether or not that slot is currently occupied.
func (s *Store) MaxBlockID() int64 {
	return int64(len(s.blocks))
}

// AllBlockIDs calls fn for every currently-occupied block id, in slot order.
func (s *Store) AllBlockIDs(fn func(b int64)) {
	for i, members := range s.blocks {
		if members != nil {
			fn(int64(i + 1))
		}
	}
}
