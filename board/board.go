package board

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"github.com/dylhunn/dragontoothmg"
	"github.com/samber/lo"
)

const StartFEN = dragontoothmg.Startpos

var (
	ErrInvalidFEN  = errors.New("invalid FEN")
	ErrIllegalMove = errors.New("illegal move")
)

const darkSquares uint64 = 0xAA55AA55AA55AA55

// sideKey is the Zobrist constant dragontoothmg folds in for white to move.
// Passing the turn does not touch the library hash, so Key() adds it back.
var sideKey = func() uint64 {
	w := dragontoothmg.ParseFen("4k3/8/8/8/8/8/8/4K3 w - - 0 1")
	b := dragontoothmg.ParseFen("4k3/8/8/8/8/8/8/4K3 b - - 0 1")
	return w.Hash() ^ b.Hash()
}()

type undoState struct {
	unapply      func()
	null         bool
	ep           Square
	capture      Square
	irreversible int
}

// Board wraps a dragontoothmg board with the bookkeeping the search needs:
// an undo stack, null moves, the en passant square, the last capture square
// and the key history used for repetition detection.
type Board struct {
	pos dragontoothmg.Board

	ep         Square
	capture    Square
	nullParity uint8

	undo         []undoState
	keys         []uint64
	irreversible int

	nodes uint64
}

func NewBoard() *Board {
	b, _ := ParseFEN(StartFEN)
	return b
}

// ParseFEN validates fen before handing it to dragontoothmg, which does not.
func ParseFEN(fen string) (*Board, error) {
	if err := validateFEN(fen); err != nil {
		return nil, err
	}
	fields := strings.Fields(fen)
	b := &Board{
		pos:     dragontoothmg.ParseFen(fen),
		ep:      NoSquare,
		capture: NoSquare,
	}
	if fields[3] != "-" {
		sq, _ := ParseSquare(fields[3])
		b.ep = sq
	}
	b.keys = append(make([]uint64, 0, 256), b.Key())
	return b, nil
}

func validateFEN(fen string) error {
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return fmt.Errorf("%w: expected at least 4 fields, got %d", ErrInvalidFEN, len(fields))
	}
	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return fmt.Errorf("%w: expected 8 ranks, got %d", ErrInvalidFEN, len(ranks))
	}
	kings := map[rune]int{}
	for i, rank := range ranks {
		width := 0
		for _, ch := range rank {
			switch {
			case ch >= '1' && ch <= '8':
				width += int(ch - '0')
			case strings.ContainsRune("pnbrqkPNBRQK", ch):
				width++
				if ch == 'k' || ch == 'K' {
					kings[ch]++
				}
			default:
				return fmt.Errorf("%w: unexpected %q in rank %d", ErrInvalidFEN, ch, 8-i)
			}
		}
		if width != 8 {
			return fmt.Errorf("%w: rank %d has %d files", ErrInvalidFEN, 8-i, width)
		}
	}
	if kings['K'] != 1 || kings['k'] != 1 {
		return fmt.Errorf("%w: each side needs exactly one king", ErrInvalidFEN)
	}
	if fields[1] != "w" && fields[1] != "b" {
		return fmt.Errorf("%w: side to move %q", ErrInvalidFEN, fields[1])
	}
	if fields[2] != "-" && strings.Trim(fields[2], "KQkq") != "" {
		return fmt.Errorf("%w: castling rights %q", ErrInvalidFEN, fields[2])
	}
	if fields[3] != "-" {
		sq, err := ParseSquare(fields[3])
		if err != nil || (sq.Rank() != 2 && sq.Rank() != 5) {
			return fmt.Errorf("%w: en passant square %q", ErrInvalidFEN, fields[3])
		}
	}
	return nil
}

// Copy returns an independent board sharing no undo closures with b.
func (b *Board) Copy() *Board {
	c := &Board{
		pos:          b.pos,
		ep:           b.ep,
		capture:      b.capture,
		nullParity:   b.nullParity,
		irreversible: b.irreversible,
	}
	c.keys = append(make([]uint64, 0, len(b.keys)+256), b.keys...)
	return c
}

func (b *Board) FEN() string { return b.pos.ToFen() }

func (b *Board) Key() uint64 {
	if b.nullParity != 0 {
		return b.pos.Hash() ^ sideKey
	}
	return b.pos.Hash()
}

func (b *Board) SideToMove() Colour {
	if b.pos.Wtomove {
		return White
	}
	return Black
}

func (b *Board) Bitboards(c Colour) dragontoothmg.Bitboards {
	if c == White {
		return b.pos.White
	}
	return b.pos.Black
}

func (b *Board) sides() (own, opp *dragontoothmg.Bitboards) {
	if b.pos.Wtomove {
		return &b.pos.White, &b.pos.Black
	}
	return &b.pos.Black, &b.pos.White
}

func pieceTypeAt(bb *dragontoothmg.Bitboards, sq Square) PieceType {
	mask := uint64(1) << sq
	switch {
	case bb.All&mask == 0:
		return NoPiece
	case bb.Pawns&mask != 0:
		return Pawn
	case bb.Knights&mask != 0:
		return Knight
	case bb.Bishops&mask != 0:
		return Bishop
	case bb.Rooks&mask != 0:
		return Rook
	case bb.Queens&mask != 0:
		return Queen
	case bb.Kings&mask != 0:
		return King
	}
	return NoPiece
}

// PieceAt returns the piece on sq and its owner. The colour is meaningless
// for an empty square.
func (b *Board) PieceAt(sq Square) (PieceType, Colour) {
	if p := pieceTypeAt(&b.pos.White, sq); p != NoPiece {
		return p, White
	}
	return pieceTypeAt(&b.pos.Black, sq), Black
}

func (b *Board) KingSquare(c Colour) Square {
	bb := b.Bitboards(c)
	return Square(bits.TrailingZeros64(bb.Kings))
}

func (b *Board) InCheck() bool { return b.pos.OurKingInCheck() }

// IsSquareAttacked reports whether any piece of colour by attacks sq.
func (b *Board) IsSquareAttacked(sq Square, by Colour) bool {
	return b.pos.UnderDirectAttack(by == Black, uint8(sq))
}

// CaptureSquare returns the destination of the last move if it captured.
func (b *Board) CaptureSquare() (Square, bool) {
	return b.capture, b.capture != NoSquare
}

func (b *Board) EnPassantSquare() Square { return b.ep }

func (b *Board) PieceCount() int {
	return bits.OnesCount64(b.pos.White.All | b.pos.Black.All)
}

// InsufficientMaterial covers K v K, K+minor v K and same coloured bishops.
func (b *Board) InsufficientMaterial() bool {
	w, bl := &b.pos.White, &b.pos.Black
	if w.Pawns|bl.Pawns|w.Rooks|bl.Rooks|w.Queens|bl.Queens != 0 {
		return false
	}
	minors := bits.OnesCount64(w.Knights | w.Bishops | bl.Knights | bl.Bishops)
	if minors <= 1 {
		return true
	}
	if minors == 2 && w.Knights|bl.Knights == 0 && w.Bishops != 0 && bl.Bishops != 0 {
		return (w.Bishops&darkSquares != 0) == (bl.Bishops&darkSquares != 0)
	}
	return false
}

func (b *Board) Nodes() uint64 { return b.nodes }

func (b *Board) fromEngine(dm dragontoothmg.Move) Move {
	from, to := Square(dm.From()), Square(dm.To())
	own, opp := b.sides()
	piece := pieceTypeAt(own, from)
	captured := pieceTypeAt(opp, to) != NoPiece

	var flag MoveFlag
	switch {
	case dm.Promote() != dragontoothmg.Nothing:
		flag = KnightPromotion + MoveFlag(dm.Promote()-dragontoothmg.Knight)
		if captured {
			flag += KnightPromotionCapture - KnightPromotion
		}
	case piece == King && to == from+2:
		flag = KingCastle
	case piece == King && from == to+2:
		flag = QueenCastle
	case captured:
		flag = Capture
	case piece == Pawn && to == b.ep:
		flag = EnPassant
	case piece == Pawn && (to == from+16 || from == to+16):
		flag = DoublePush
	default:
		flag = Quiet
	}
	return NewMove(from, to, flag)
}

// LegalMoves returns every legal move in the position.
func (b *Board) LegalMoves() []Move {
	dms := b.pos.GenerateLegalMoves()
	moves := make([]Move, len(dms))
	for i := range dms {
		moves[i] = b.fromEngine(dms[i])
	}
	return moves
}

// QuiescenceMoves returns the legal captures and promotions.
func (b *Board) QuiescenceMoves() []Move {
	return lo.Filter(b.LegalMoves(), func(m Move, _ int) bool {
		return m.IsCapture() || m.IsPromotion()
	})
}

func (b *Board) IsLegal(m Move) bool {
	return m != NoMove && lo.Contains(b.LegalMoves(), m)
}

// ParseMove resolves a UCI coordinate string against the legal moves.
func (b *Board) ParseMove(s string) (Move, error) {
	if _, err := dragontoothmg.ParseMove(s); err != nil {
		return NoMove, fmt.Errorf("parse move %q: %w", s, err)
	}
	m, ok := lo.Find(b.LegalMoves(), func(m Move) bool { return m.String() == s })
	if !ok {
		return NoMove, fmt.Errorf("%w: %s in %s", ErrIllegalMove, s, b.FEN())
	}
	return m, nil
}

func (b *Board) ApplyMove(m Move) {
	st := undoState{ep: b.ep, capture: b.capture, irreversible: b.irreversible}
	piece, _ := b.PieceAt(m.From())
	st.unapply = b.pos.Apply(m.toEngine())
	b.undo = append(b.undo, st)

	b.ep = NoSquare
	if m.Flag() == DoublePush {
		b.ep = (m.From() + m.To()) / 2
	}
	b.capture = NoSquare
	if m.IsCapture() {
		b.capture = m.To()
	}
	b.keys = append(b.keys, b.Key())
	if m.IsCapture() || piece == Pawn {
		b.irreversible = len(b.keys) - 1
	}
	b.nodes++
}

func (b *Board) RevertMove() {
	st := b.popUndo()
	st.unapply()
}

// CanNullMove is false while an en passant square is set: dragontoothmg keeps
// its own copy of that square and would offer the capture to the wrong side.
func (b *Board) CanNullMove() bool { return b.ep == NoSquare }

func (b *Board) ApplyNullMove() {
	b.undo = append(b.undo, undoState{null: true, ep: b.ep, capture: b.capture, irreversible: b.irreversible})
	b.pos.Wtomove = !b.pos.Wtomove
	b.nullParity ^= 1
	b.ep = NoSquare
	b.capture = NoSquare
	b.keys = append(b.keys, b.Key())
	b.irreversible = len(b.keys) - 1
}

func (b *Board) RevertNullMove() {
	b.popUndo()
	b.pos.Wtomove = !b.pos.Wtomove
	b.nullParity ^= 1
}

func (b *Board) popUndo() undoState {
	st := b.undo[len(b.undo)-1]
	b.undo = b.undo[:len(b.undo)-1]
	b.keys = b.keys[:len(b.keys)-1]
	b.ep = st.ep
	b.capture = st.capture
	b.irreversible = st.irreversible
	return st
}
