package board

import (
	"github.com/dylhunn/dragontoothmg"
)

// Square is a 0..63 index, a1 = 0, h8 = 63.
type Square uint8

// NoSquare marks an absent en passant or capture square.
const NoSquare Square = 64

func (s Square) String() string {
	if s >= NoSquare {
		return "-"
	}
	return dragontoothmg.IndexToAlgebraic(dragontoothmg.Square(s))
}

// Rank returns 0..7.
func (s Square) Rank() int { return int(s) >> 3 }

// File returns 0..7.
func (s Square) File() int { return int(s) & 7 }

// ParseSquare converts "e4" style coordinates.
func ParseSquare(alg string) (Square, error) {
	idx, err := dragontoothmg.AlgebraicToIndex(alg)
	if err != nil {
		return NoSquare, err
	}
	return Square(idx), nil
}

type Colour uint8

const (
	White Colour = iota
	Black
)

func (c Colour) Other() Colour { return c ^ 1 }

// Sign is +1 for white and -1 for black.
func (c Colour) Sign() int32 {
	if c == White {
		return 1
	}
	return -1
}

func (c Colour) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// PieceType shares its numbering with dragontoothmg.
type PieceType uint8

const (
	NoPiece PieceType = PieceType(dragontoothmg.Nothing)
	Pawn    PieceType = PieceType(dragontoothmg.Pawn)
	Knight  PieceType = PieceType(dragontoothmg.Knight)
	Bishop  PieceType = PieceType(dragontoothmg.Bishop)
	Rook    PieceType = PieceType(dragontoothmg.Rook)
	Queen   PieceType = PieceType(dragontoothmg.Queen)
	King    PieceType = PieceType(dragontoothmg.King)
)

type MoveFlag uint8

const (
	Quiet MoveFlag = iota
	DoublePush
	KingCastle
	QueenCastle
	Capture
	EnPassant
	_
	_
	KnightPromotion
	BishopPromotion
	RookPromotion
	QueenPromotion
	KnightPromotionCapture
	BishopPromotionCapture
	RookPromotionCapture
	QueenPromotionCapture
)

/*
Move packs a move into 16 bits:
  - bits 0..5:   from square
  - bits 6..11:  to square
  - bits 12..15: flag
*/
type Move uint16

const NoMove Move = 0

func NewMove(from, to Square, flag MoveFlag) Move {
	return Move(uint16(from)&0x3F | (uint16(to)&0x3F)<<6 | uint16(flag)<<12)
}

func (m Move) From() Square   { return Square(m & 0x3F) }
func (m Move) To() Square     { return Square((m >> 6) & 0x3F) }
func (m Move) Flag() MoveFlag { return MoveFlag(m >> 12) }

func (m Move) IsCapture() bool {
	f := m.Flag()
	return f == Capture || f == EnPassant || f >= KnightPromotionCapture
}

func (m Move) IsPromotion() bool { return m.Flag() >= KnightPromotion }

// Promotion returns the piece promoted to, or NoPiece.
func (m Move) Promotion() PieceType {
	if !m.IsPromotion() {
		return NoPiece
	}
	return Knight + PieceType(m.Flag()&3)
}

// String returns UCI coordinate notation.
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}
	s := m.From().String() + m.To().String()
	switch m.Promotion() {
	case Knight:
		s += "n"
	case Bishop:
		s += "b"
	case Rook:
		s += "r"
	case Queen:
		s += "q"
	}
	return s
}

func (m Move) toEngine() dragontoothmg.Move {
	var dm dragontoothmg.Move
	dm.Setfrom(dragontoothmg.Square(m.From())).Setto(dragontoothmg.Square(m.To()))
	if p := m.Promotion(); p != NoPiece {
		dm.Setpromote(dragontoothmg.Piece(p))
	}
	return dm
}
