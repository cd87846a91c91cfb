package engine

import (
	"chess-search/board"
)

// SearchState is owned by one search thread and never shared.
type SearchState struct {
	KillerMoves [MaxPly + 1][2]board.Move
	History     [2][64][64]int32
}

func NewSearchState() *SearchState {
	return &SearchState{}
}

// InsertKiller shifts the current first killer down unless move already is it.
func (s *SearchState) InsertKiller(move board.Move, distanceFromRoot int) {
	if distanceFromRoot > MaxPly {
		return
	}
	k := &s.KillerMoves[distanceFromRoot]
	if move != k[0] {
		k[1] = k[0]
		k[0] = move
	}
}

// ClearKillers empties the killer moves table.
func (s *SearchState) ClearKillers() {
	for ply := range s.KillerMoves {
		s.KillerMoves[ply][0] = board.NoMove
		s.KillerMoves[ply][1] = board.NoMove
	}
}

// AddHistory rewards a quiet move that caused a beta cutoff.
func (s *SearchState) AddHistory(side board.Colour, move board.Move, depth int) {
	s.History[side][move.From()][move.To()] += int32(depth * depth)
}

func (s *SearchState) HistoryScore(side board.Colour, move board.Move) int32 {
	return s.History[side][move.From()][move.To()]
}

// AgeHistory halves every history score so older searches fade out.
func (s *SearchState) AgeHistory() {
	for side := range s.History {
		for from := range s.History[side] {
			for to := range s.History[side][from] {
				s.History[side][from][to] /= 2
			}
		}
	}
}

// ResetForNewGame clears killers and history.
func (s *SearchState) ResetForNewGame() {
	s.ClearKillers()
	s.History = [2][64][64]int32{}
}

// recordCutoff updates killers and history for a move that failed high.
// Captures and promotions are ordered by material and get neither.
func (s *SearchState) recordCutoff(side board.Colour, move board.Move, depth, distanceFromRoot int) {
	if move.IsCapture() || move.IsPromotion() {
		return
	}
	s.InsertKiller(move, distanceFromRoot)
	s.AddHistory(side, move, depth)
}
