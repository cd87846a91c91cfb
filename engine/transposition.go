package engine

import (
	"sync/atomic"
	"unsafe"

	"chess-search/board"
)

type Bound uint8

const (
	BoundNone Bound = iota
	BoundExact
	BoundLower // score is a lower bound (fail high)
	BoundUpper // score is an upper bound (fail low)
)

func (b Bound) String() string {
	switch b {
	case BoundExact:
		return "exact"
	case BoundLower:
		return "lower"
	case BoundUpper:
		return "upper"
	}
	return "none"
}

type TTEntry struct {
	Key     uint64
	Move    board.Move
	Score   int32
	Depth   int
	Bound   Bound
	Ancient bool
}

func (e TTEntry) Found() bool { return e.Bound != BoundNone }

// MateScoreAdjustment converts a stored mate score, which counts from the
// stored node, back into a distance from the current root.
func (e *TTEntry) MateScoreAdjustment(distanceFromRoot int) {
	d := int32(distanceFromRoot)
	if e.Score > MateThreshold {
		e.Score -= d
	}
	if e.Score < -MateThreshold {
		e.Score += d
	}
}

/*
Entry data is packed into one word:
  - bits 0..15:  move
  - bits 16..31: score (int16)
  - bits 32..39: depth (int8)
  - bits 40..41: bound
  - bit 42:      ancient

The key word holds key ^ data (without the ancient bit). A reader that sees
half of a concurrent write fails the key check and treats the slot as empty.
*/
const (
	scoreShift = 16
	depthShift = 32
	boundShift = 40
	ancientBit = uint64(1) << 42
)

func packEntry(move board.Move, score int32, depth int, bound Bound) uint64 {
	return uint64(move) |
		uint64(uint16(int16(score)))<<scoreShift |
		uint64(uint8(int8(depth)))<<depthShift |
		uint64(bound)<<boundShift
}

func unpackEntry(key, data uint64) TTEntry {
	return TTEntry{
		Key:     key,
		Move:    board.Move(data),
		Score:   int32(int16(uint16(data >> scoreShift))),
		Depth:   int(int8(uint8(data >> depthShift))),
		Bound:   Bound((data >> boundShift) & 3),
		Ancient: data&ancientBit != 0,
	}
}

type ttSlot struct {
	key  atomic.Uint64
	data atomic.Uint64
}

const leaseTableSize = 1 << 16

// TranspositionTable is a direct-mapped cache of search results shared by
// all threads. It never blocks: slots are read and written with atomics.
type TranspositionTable struct {
	slots  []ttSlot
	leases []atomic.Uint64
	hits   atomic.Uint64
}

func NewTranspositionTable(sizeMB int) *TranspositionTable {
	sizeMB = Max(sizeMB, 1)
	n := uint64(sizeMB) * 1024 * 1024 / uint64(unsafe.Sizeof(ttSlot{}))
	return &TranspositionTable{
		slots:  make([]ttSlot, n),
		leases: make([]atomic.Uint64, leaseTableSize),
	}
}

func (tt *TranspositionTable) Capacity() int { return len(tt.slots) }

func (tt *TranspositionTable) slot(key uint64) *ttSlot {
	return &tt.slots[key%uint64(len(tt.slots))]
}

func (tt *TranspositionTable) load(key uint64) (TTEntry, bool) {
	s := tt.slot(key)
	data := s.data.Load()
	stored := s.key.Load()
	if Bound((data>>boundShift)&3) == BoundNone || stored^(data&^ancientBit) != key {
		return TTEntry{}, false
	}
	return unpackEntry(key, data), true
}

// CheckEntry reports whether key has an entry searched to at least depth.
func (tt *TranspositionTable) CheckEntry(key uint64, depth int) bool {
	e, ok := tt.load(key)
	return ok && e.Depth >= depth
}

// Contains reports whether key has an entry of any depth.
func (tt *TranspositionTable) Contains(key uint64) bool {
	_, ok := tt.load(key)
	return ok
}

// GetEntry returns the entry for key, or one with BoundNone. Reading an entry
// marks it as belonging to the current search.
func (tt *TranspositionTable) GetEntry(key uint64) TTEntry {
	e, ok := tt.load(key)
	if !ok {
		return TTEntry{}
	}
	if e.Ancient {
		s := tt.slot(key)
		data := s.data.Load()
		s.data.CompareAndSwap(data, data&^ancientBit)
		e.Ancient = false
	}
	return e
}

// AddEntry stores a result if the slot is empty, ancient, or no deeper than
// depth. Mate scores are stored relative to this node.
func (tt *TranspositionTable) AddEntry(move board.Move, key uint64, score int32, depth, distanceFromRoot int, bound Bound) {
	if score > MateThreshold {
		score += int32(distanceFromRoot)
	}
	if score < -MateThreshold {
		score -= int32(distanceFromRoot)
	}

	s := tt.slot(key)
	old := s.data.Load()
	if Bound((old>>boundShift)&3) != BoundNone && old&ancientBit == 0 {
		if depth < int(int8(uint8(old>>depthShift))) {
			return
		}
	}

	data := packEntry(move, score, Clamp(depth, -128, 127), bound)
	s.data.Store(data)
	s.key.Store(key ^ data)
}

// SetAllAncient marks every entry as left over from a previous search so it
// can be replaced regardless of depth.
func (tt *TranspositionTable) SetAllAncient() {
	for i := range tt.slots {
		s := &tt.slots[i]
		for {
			data := s.data.Load()
			if data == 0 || data&ancientBit != 0 || s.data.CompareAndSwap(data, data|ancientBit) {
				break
			}
		}
	}
}

// Clear empties the table and all leases.
func (tt *TranspositionTable) Clear() {
	for i := range tt.slots {
		tt.slots[i].data.Store(0)
		tt.slots[i].key.Store(0)
	}
	for i := range tt.leases {
		tt.leases[i].Store(0)
	}
	tt.hits.Store(0)
}

// PreFetch touches the slot for key so the following probe hits the cache.
func (tt *TranspositionTable) PreFetch(key uint64) {
	_ = tt.slot(key).data.Load()
}

/*
ExclusiveRights tries to take the advisory lease on key. It never blocks:
false means another thread is searching the position (or a colliding one)
right now. Key 0 is always granted.
*/
func (tt *TranspositionTable) ExclusiveRights(key uint64) bool {
	if key == 0 {
		return true
	}
	return tt.leases[key&(leaseTableSize-1)].CompareAndSwap(0, key)
}

// FreeExclusiveRights releases a lease taken with ExclusiveRights. Releasing
// a lease that is not held is a no-op.
func (tt *TranspositionTable) FreeExclusiveRights(key uint64) {
	if key == 0 {
		return
	}
	tt.leases[key&(leaseTableSize-1)].CompareAndSwap(key, 0)
}

func (tt *TranspositionTable) AddHit() { tt.hits.Add(1) }
func (tt *TranspositionTable) HitCount() uint64 { return tt.hits.Load() }
func (tt *TranspositionTable) ResetHitCount() { tt.hits.Store(0) }

// Hashfull returns the permille of sampled slots used by the current search.
func (tt *TranspositionTable) Hashfull() int {
	sample := Min(1000, len(tt.slots))
	if sample == 0 {
		return 0
	}
	used := 0
	for i := 0; i < sample; i++ {
		data := tt.slots[i].data.Load()
		if Bound((data>>boundShift)&3) != BoundNone && data&ancientBit == 0 {
			used++
		}
	}
	return used * 1000 / sample
}
