package board

import (
	"errors"
	"testing"

	"github.com/matryer/is"
)

const kiwipete = "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1"

func mustParse(t *testing.T, fen string) *Board {
	t.Helper()
	b, err := ParseFEN(fen)
	if err != nil {
		t.Fatalf("parse FEN %q: %v", fen, err)
	}
	return b
}

func play(t *testing.T, b *Board, moves ...string) {
	t.Helper()
	for _, s := range moves {
		m, err := b.ParseMove(s)
		if err != nil {
			t.Fatalf("move %s: %v", s, err)
		}
		b.ApplyMove(m)
	}
}

func TestParseFENRejectsMalformed(t *testing.T) {
	is := is.New(t)
	bad := []string{
		"",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP w KQkq -",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x KQkq -",
		"rnbqkbnr/pppppppp/9/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQ1BNR w kq -",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQxq -",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq e5",
	}
	for _, fen := range bad {
		_, err := ParseFEN(fen)
		is.True(errors.Is(err, ErrInvalidFEN)) // malformed FEN accepted
	}
}

func TestPerft(t *testing.T) {
	is := is.New(t)
	cases := []struct {
		fen   string
		depth int
		nodes uint64
	}{
		{StartFEN, 1, 20},
		{StartFEN, 2, 400},
		{StartFEN, 3, 8902},
		{kiwipete, 1, 48},
		{kiwipete, 2, 2039},
		{"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1", 3, 2812},
		{"n1n5/PPPk4/8/8/8/8/4Kppp/5N1N b - - 0 1", 2, 496},
	}
	for _, c := range cases {
		b := mustParse(t, c.fen)
		before := b.Key()
		is.Equal(Perft(b, c.depth), c.nodes)
		is.Equal(b.Key(), before) // perft left the board modified
	}
}

func TestMoveFlags(t *testing.T) {
	is := is.New(t)

	b := NewBoard()
	m, err := b.ParseMove("e2e4")
	is.NoErr(err)
	is.Equal(m.Flag(), DoublePush)
	b.ApplyMove(m)
	is.Equal(b.EnPassantSquare().String(), "e3")

	b = mustParse(t, kiwipete)
	m, err = b.ParseMove("e1g1")
	is.NoErr(err)
	is.Equal(m.Flag(), KingCastle)
	m, err = b.ParseMove("e1c1")
	is.NoErr(err)
	is.Equal(m.Flag(), QueenCastle)
	m, err = b.ParseMove("e5f7")
	is.NoErr(err)
	is.True(m.IsCapture())

	b = mustParse(t, "4k3/8/8/3pP3/8/8/8/4K3 w - d6 0 1")
	m, err = b.ParseMove("e5d6")
	is.NoErr(err)
	is.Equal(m.Flag(), EnPassant)
	is.True(m.IsCapture())

	b = mustParse(t, "1n2k3/P7/8/8/8/8/8/4K3 w - - 0 1")
	m, err = b.ParseMove("a7b8n")
	is.NoErr(err)
	is.Equal(m.Flag(), KnightPromotionCapture)
	is.Equal(m.Promotion(), Knight)
	is.Equal(m.String(), "a7b8n")
	m, err = b.ParseMove("a7a8q")
	is.NoErr(err)
	is.Equal(m.Flag(), QueenPromotion)
	is.True(!m.IsCapture())

	_, err = b.ParseMove("a7a6")
	is.True(errors.Is(err, ErrIllegalMove))
}

func TestApplyRevertRestoresState(t *testing.T) {
	is := is.New(t)
	b := mustParse(t, kiwipete)
	key, fen := b.Key(), b.FEN()
	for _, m := range b.LegalMoves() {
		b.ApplyMove(m)
		if m.IsCapture() {
			sq, ok := b.CaptureSquare()
			is.True(ok)
			is.Equal(sq, m.To())
		}
		b.RevertMove()
		is.Equal(b.Key(), key)
		is.Equal(b.FEN(), fen)
	}
	_, ok := b.CaptureSquare()
	is.True(!ok)
}

func TestNullMoveKeyMatchesSideToMove(t *testing.T) {
	is := is.New(t)
	b := NewBoard()
	flipped := mustParse(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR b KQkq - 0 1")

	before := b.Key()
	is.True(b.CanNullMove())
	b.ApplyNullMove()
	is.Equal(b.SideToMove(), Black)
	is.Equal(b.Key(), flipped.Key())

	// Keys stay consistent for moves played after the null move.
	play(t, b, "e7e5")
	play(t, flipped, "e7e5")
	is.Equal(b.Key(), flipped.Key())
	b.RevertMove()

	b.RevertNullMove()
	is.Equal(b.Key(), before)
	is.Equal(b.SideToMove(), White)

	play(t, b, "e2e4")
	is.True(!b.CanNullMove()) // en passant square set
}

func TestRepetition(t *testing.T) {
	is := is.New(t)
	b := NewBoard()
	play(t, b, "g1f3", "g8f6", "f3g1")
	is.True(!b.IsRepetition())
	play(t, b, "f6g8")
	is.True(b.IsRepetition())

	// A pawn move resets the window.
	play(t, b, "e2e3", "e7e6", "g1f3", "g8f6", "f3g1")
	is.True(!b.IsRepetition())
	play(t, b, "f6g8")
	is.True(b.IsRepetition())

	is.Equal(b.Ply(), 10)

	c := b.Copy()
	is.True(c.IsRepetition())
	is.Equal(c.Key(), b.Key())
	is.Equal(c.Ply(), 10)
	is.Equal(c.Nodes(), uint64(0))
}

func TestInsufficientMaterial(t *testing.T) {
	is := is.New(t)
	cases := []struct {
		fen  string
		dead bool
	}{
		{"4k3/8/8/8/8/8/8/4K3 w - - 0 1", true},
		{"4k3/8/8/8/8/8/8/4KN2 w - - 0 1", true},
		{"4k3/8/8/8/8/8/8/4KB2 w - - 0 1", true},
		{"4kb2/8/8/8/8/8/8/2B1K3 w - - 0 1", true},
		{"4k1b1/8/8/8/8/8/8/2B1K3 w - - 0 1", false},
		{"4k3/8/8/8/8/8/8/3NKN2 w - - 0 1", false},
		{"4k3/8/8/8/8/8/4P3/4K3 w - - 0 1", false},
		{"4k3/8/8/8/8/8/8/4K2R w - - 0 1", false},
	}
	for _, c := range cases {
		is.Equal(mustParse(t, c.fen).InsufficientMaterial(), c.dead)
	}
}

func TestAttackQueries(t *testing.T) {
	is := is.New(t)
	b := mustParse(t, "4k3/8/8/3p4/4P3/8/8/4K2R w - - 0 1")
	d5, _ := ParseSquare("d5")
	e4, _ := ParseSquare("e4")
	h8, _ := ParseSquare("h8")
	is.True(b.IsSquareAttacked(d5, White))
	is.True(b.IsSquareAttacked(e4, Black))
	is.True(b.IsSquareAttacked(h8, White))
	is.True(!b.InCheck())

	p, c := b.PieceAt(d5)
	is.Equal(p, Pawn)
	is.Equal(c, Black)
	is.Equal(b.KingSquare(Black).String(), "e8")
	is.Equal(b.PieceCount(), 5)
	is.Equal(len(b.QuiescenceMoves()), 1)
}
