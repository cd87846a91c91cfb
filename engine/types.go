package engine

import (
	"chess-search/board"
)

// Score bounds. A side mated at distance d from the root scores -MateScore + d.
const (
	Infinity      int32 = 30000
	MateScore     int32 = 10000
	DrawScore     int32 = 0
	MaxPly              = 100
	MateThreshold int32 = MateScore - MaxPly

	// Returned by an aborted search. Never stored and never selected.
	abortScore int32 = -2 * Infinity
)

// Position is everything the search needs from a board.
type Position interface {
	Key() uint64
	SideToMove() board.Colour

	ApplyMove(m board.Move)
	RevertMove()
	ApplyNullMove()
	RevertNullMove()
	CanNullMove() bool

	LegalMoves() []board.Move
	QuiescenceMoves() []board.Move
	IsLegal(m board.Move) bool

	InCheck() bool
	IsSquareAttacked(sq board.Square, by board.Colour) bool
	PieceAt(sq board.Square) (board.PieceType, board.Colour)
	CaptureSquare() (board.Square, bool)
	PieceCount() int

	InsufficientMaterial() bool
	IsRepetition() bool

	Nodes() uint64
}

// Evaluator scores a position from white's point of view.
type Evaluator interface {
	Evaluate(pos Position) int32
}

// EvaluatorFunc adapts a plain function to Evaluator.
type EvaluatorFunc func(pos Position) int32

func (f EvaluatorFunc) Evaluate(pos Position) int32 { return f(pos) }

func colourSign(pos Position) int32 { return pos.SideToMove().Sign() }
