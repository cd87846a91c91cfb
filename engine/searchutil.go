package engine

import (
	"fmt"

	"chess-search/board"
)

// ===== MARGINS =====
const (
	nullMoveReduction   = 3
	nullMoveMinDepth    = 3 // null move needs depth > this
	nullMoveMinPieces   = 5 // zugzwang gets too likely below this
	futilityMaxDepth    = 2
	futilityMargin      = 200
	lmrMinDepth         = 3 // probe needs depth > this
	lmrMinMoveIndex     = 3 // and move index > this
	lmrProbeDepthOffset = 2
	deltaMargin         = 200
	aspirationWindow    = 25
)

// isPV reports whether the window is wider than a null window.
func isPV(alpha, beta int32) bool {
	return beta != alpha+1
}

func allowedNull(allowNull, inCheck bool, alpha, beta int32, depth, pieceCount int) bool {
	return allowNull &&
		!inCheck &&
		!isPV(alpha, beta) &&
		depth > nullMoveMinDepth &&
		pieceCount >= nullMoveMinPieces
}

// isFutile is checked after the move is made: givesCheck is whether the
// opponent is now in check.
func isFutile(m board.Move, alpha, beta int32, inCheck, givesCheck bool) bool {
	return !isPV(alpha, beta) &&
		!m.IsCapture() &&
		!m.IsPromotion() &&
		!inCheck &&
		!givesCheck
}

func lateMoveReducible(m board.Move, i int, alpha, beta int32, inCheck, givesCheck bool, depth int) bool {
	return i > lmrMinMoveIndex &&
		!m.IsCapture() &&
		!m.IsPromotion() &&
		!isPV(alpha, beta) &&
		!inCheck &&
		!givesCheck &&
		depth > lmrMinDepth
}

/*
extension adds a ply for a move that gives check (outside the PV only if the
move does not lose material) and another for a pawn reaching the seventh rank.
moved is the piece that made the move.
*/
func extension(m board.Move, moved board.PieceType, side board.Colour, alpha, beta int32, givesCheck bool, estimate int32) int {
	ext := 0
	if givesCheck && (isPV(alpha, beta) || estimate >= 0) {
		ext++
	}
	if moved == board.Pawn && !m.IsPromotion() {
		if (side == board.White && m.To().Rank() == 6) || (side == board.Black && m.To().Rank() == 1) {
			ext++
		}
	}
	return ext
}

// useTransposition applies a probed entry to the window. The entry must
// already be mate adjusted.
func useTransposition(entry TTEntry, alpha, beta int32) bool {
	switch entry.Bound {
	case BoundExact:
		return true
	case BoundLower:
		alpha = Max(alpha, entry.Score)
	case BoundUpper:
		beta = Min(beta, entry.Score)
	default:
		return false
	}
	return alpha >= beta
}

func terminalScore(inCheck bool, distanceFromRoot int) int32 {
	if inCheck {
		return -MateScore + int32(distanceFromRoot)
	}
	return DrawScore
}

func boundFor(score, alpha, beta int32) Bound {
	switch {
	case score <= alpha:
		return BoundUpper
	case score >= beta:
		return BoundLower
	}
	return BoundExact
}

func IsMateScore(score int32) bool {
	return Abs(score) > MateThreshold
}

// MateIn converts a mate score into moves to mate, negative when mated.
func MateIn(score int32) int {
	plies := int(MateScore - Abs(score))
	moves := (plies + 1) / 2
	if score < 0 {
		return -moves
	}
	return moves
}

// ScoreString formats a score for a UCI info line.
func ScoreString(score int32) string {
	if IsMateScore(score) {
		return fmt.Sprintf("mate %d", MateIn(score))
	}
	return fmt.Sprintf("cp %d", score)
}
