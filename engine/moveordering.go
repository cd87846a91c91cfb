package engine

import (
	"golang.org/x/exp/slices"

	"chess-search/board"
)

type scoredMove struct {
	move    board.Move
	score   int32
	history int32
}

/*
Move ordering offsets
  - The hash move goes first; it was best (or good enough) last time we were here.
  - Captures are scored victim minus attacker when the victim is defended,
    so winning captures come before killers and losing ones after quiet moves.
  - Queen promotions add a queen; under-promotions barely register.
  - Killers sit just above quiet moves, which are ordered by history.
*/
const (
	hashMoveScore     int32 = 15000
	firstKillerScore  int32 = 20
	secondKillerScore int32 = 10
)

// Piece values used for ordering only.
var orderingValue = [7]int32{
	board.NoPiece: 0,
	board.Pawn:    100,
	board.Knight:  300,
	board.Bishop:  300,
	board.Rook:    500,
	board.Queen:   900,
	board.King:    10000,
}

// MoveOrderer scores and sorts move lists. The table is only read.
type MoveOrderer struct {
	tt *TranspositionTable
}

func NewMoveOrderer(tt *TranspositionTable) MoveOrderer {
	return MoveOrderer{tt: tt}
}

/*
captureEstimate is a cheap stand-in for static exchange evaluation: the
victim's value, minus the attacker's if the opponent defends the target
square. Promotions never lose the attacker and add a queen, or 1 for an
under-promotion. Quiet moves score 0.
*/
func captureEstimate(pos Position, m board.Move) int32 {
	var score int32
	if m.IsCapture() {
		victim := board.Pawn
		if m.Flag() != board.EnPassant {
			victim, _ = pos.PieceAt(m.To())
		}
		score = orderingValue[victim]
		if !m.IsPromotion() && pos.IsSquareAttacked(m.To(), pos.SideToMove().Other()) {
			attacker, _ := pos.PieceAt(m.From())
			score -= orderingValue[attacker]
		}
	}
	switch m.Promotion() {
	case board.NoPiece:
	case board.Queen:
		score += orderingValue[board.Queen]
	default:
		score++
	}
	return score
}

// hashMove returns the move stored for this position if it was searched at
// least depth-1 plies deep.
func (o MoveOrderer) hashMove(pos Position, depth int) board.Move {
	if o.tt == nil {
		return board.NoMove
	}
	key := pos.Key()
	if !o.tt.CheckEntry(key, depth-1) {
		return board.NoMove
	}
	entry := o.tt.GetEntry(key)
	if entry.Key != key {
		return board.NoMove
	}
	return entry.Move
}

// OrderMoves returns moves in search order for a full-width node.
func (o MoveOrderer) OrderMoves(pos Position, moves []board.Move, depth, distanceFromRoot int, state *SearchState) []scoredMove {
	hash := o.hashMove(pos, depth)
	side := pos.SideToMove()
	var killers [2]board.Move
	if state != nil && distanceFromRoot <= MaxPly {
		killers = state.KillerMoves[distanceFromRoot]
	}

	scored := make([]scoredMove, len(moves))
	for i, m := range moves {
		sm := scoredMove{move: m}
		switch {
		case m == hash:
			sm.score = hashMoveScore
		case m.IsCapture() || m.IsPromotion():
			sm.score = captureEstimate(pos, m)
		case m == killers[0]:
			sm.score = firstKillerScore
		case m == killers[1]:
			sm.score = secondKillerScore
		}
		if sm.score == 0 && state != nil {
			sm.history = state.HistoryScore(side, m)
		}
		scored[i] = sm
	}
	sortScored(scored)
	return scored
}

// OrderCaptures orders quiescence moves by capture estimate alone.
func (o MoveOrderer) OrderCaptures(pos Position, moves []board.Move) []scoredMove {
	scored := make([]scoredMove, len(moves))
	for i, m := range moves {
		scored[i] = scoredMove{move: m, score: captureEstimate(pos, m)}
	}
	sortScored(scored)
	return scored
}

// sortScored sorts by score, breaking ties between zero scored moves by
// history. The sort is stable so generation order decides the rest.
func sortScored(moves []scoredMove) {
	slices.SortStableFunc(moves, func(a, b scoredMove) bool {
		if a.score != b.score {
			return a.score > b.score
		}
		return a.score == 0 && a.history > b.history
	})
}
