// Package eval is a tapered material, piece-square and mobility evaluation.
package eval

import (
	"math/bits"

	"github.com/dylhunn/dragontoothmg"

	"chess-search/board"
	"chess-search/engine"
)

const (
	fileA uint64 = 0x0101010101010101
	fileH uint64 = 0x8080808080808080

	// Keep static scores clear of the mate range.
	maxEval = engine.MateThreshold - 1
)

var knightMasks [64]uint64

func init() {
	for sq := 0; sq < 64; sq++ {
		r, f := sq>>3, sq&7
		for _, d := range [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}} {
			tr, tf := r+d[0], f+d[1]
			if tr >= 0 && tr < 8 && tf >= 0 && tf < 8 {
				knightMasks[sq] |= 1 << (tr*8 + tf)
			}
		}
	}
}

// flip mirrors a square vertically so black pieces can use white's tables.
func flip(sq int) int { return sq ^ 56 }

// BitboardPosition is a position that exposes its piece bitboards.
type BitboardPosition interface {
	Bitboards(c board.Colour) dragontoothmg.Bitboards
}

// Evaluator scores positions from white's point of view.
type Evaluator struct{}

func New() Evaluator { return Evaluator{} }

// Evaluate returns 0 for positions that do not expose bitboards.
func (Evaluator) Evaluate(pos engine.Position) int32 {
	bp, ok := pos.(BitboardPosition)
	if !ok {
		return 0
	}
	return Score(bp.Bitboards(board.White), bp.Bitboards(board.Black))
}

// Score evaluates a pair of bitboard sets, white first.
func Score(white, black dragontoothmg.Bitboards) int32 {
	occupied := white.All | black.All
	wPawnAttacks := pawnAttacks(white.Pawns, board.White)
	bPawnAttacks := pawnAttacks(black.Pawns, board.Black)

	wMG, wEG := sideScore(&white, occupied, bPawnAttacks, false)
	bMG, bEG := sideScore(&black, occupied, wPawnAttacks, true)

	phase := int32(Phase(white, black))
	score := ((wMG-bMG)*phase + (wEG-bEG)*(TotalPhase-phase)) / TotalPhase
	return engine.Clamp(score, -maxEval, maxEval)
}

/* ============= MATERIAL + PHASE ============= */

// Phase runs from TotalPhase with all pieces on the board down to 0.
func Phase(white, black dragontoothmg.Bitboards) int {
	phase := bits.OnesCount64(white.Knights|black.Knights) * knightPhase
	phase += bits.OnesCount64(white.Bishops|black.Bishops) * bishopPhase
	phase += bits.OnesCount64(white.Rooks|black.Rooks) * rookPhase
	phase += bits.OnesCount64(white.Queens|black.Queens) * queenPhase
	return engine.Min(phase, TotalPhase)
}

// GamePhase is Phase for a board.
func GamePhase(b *board.Board) int {
	return Phase(b.Bitboards(board.White), b.Bitboards(board.Black))
}

func pawnAttacks(pawns uint64, side board.Colour) uint64 {
	if side == board.White {
		return (pawns&^fileA)<<7 | (pawns&^fileH)<<9
	}
	return (pawns&^fileA)>>9 | (pawns&^fileH)>>7
}

// sideScore sums material, piece-square and mobility terms for one side.
// enemyPawnAttacks squares do not count toward mobility.
func sideScore(bb *dragontoothmg.Bitboards, occupied, enemyPawnAttacks uint64, black bool) (mg, eg int32) {
	pieces := [7]uint64{
		board.Pawn:   bb.Pawns,
		board.Knight: bb.Knights,
		board.Bishop: bb.Bishops,
		board.Rook:   bb.Rooks,
		board.Queen:  bb.Queens,
		board.King:   bb.Kings,
	}
	mobilityMask := ^bb.All &^ enemyPawnAttacks

	for pt := board.Pawn; pt <= board.King; pt++ {
		for x := pieces[pt]; x != 0; x &= x - 1 {
			sq := bits.TrailingZeros64(x)
			idx := sq
			if black {
				idx = flip(sq)
			}
			mg += pieceValueMG[pt] + psqtMG[pt][idx]
			eg += pieceValueEG[pt] + psqtEG[pt][idx]

			if mobilityValueMG[pt] == 0 && mobilityValueEG[pt] == 0 {
				continue
			}
			n := int32(bits.OnesCount64(attacks(pt, sq, occupied) & mobilityMask))
			mg += n * mobilityValueMG[pt]
			eg += n * mobilityValueEG[pt]
		}
	}

	if bits.OnesCount64(bb.Bishops) > 1 {
		mg += bishopPairMG
		eg += bishopPairEG
	}
	return mg, eg
}

func attacks(pt board.PieceType, sq int, occupied uint64) uint64 {
	switch pt {
	case board.Knight:
		return knightMasks[sq]
	case board.Bishop:
		return dragontoothmg.CalculateBishopMoveBitboard(uint8(sq), occupied)
	case board.Rook:
		return dragontoothmg.CalculateRookMoveBitboard(uint8(sq), occupied)
	case board.Queen:
		return dragontoothmg.CalculateBishopMoveBitboard(uint8(sq), occupied) |
			dragontoothmg.CalculateRookMoveBitboard(uint8(sq), occupied)
	}
	return 0
}
