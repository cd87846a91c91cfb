package eval

import (
	"strings"
	"testing"

	"github.com/matryer/is"

	"chess-search/board"
)

// mirrorFEN reflects the board top to bottom, swaps piece colours and the
// side to move. Castling and en passant fields are dropped.
func mirrorFEN(fen string) string {
	fields := strings.Fields(fen)
	ranks := strings.Split(fields[0], "/")
	for i, j := 0, len(ranks)-1; i < j; i, j = i+1, j-1 {
		ranks[i], ranks[j] = ranks[j], ranks[i]
	}
	swapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z':
			return r - 'A' + 'a'
		}
		return r
	}, strings.Join(ranks, "/"))
	side := "b"
	if fields[1] == "b" {
		side = "w"
	}
	return swapped + " " + side + " - - 0 1"
}

func evalFEN(t *testing.T, fen string) int32 {
	t.Helper()
	b, err := board.ParseFEN(fen)
	if err != nil {
		t.Fatalf("parse FEN %q: %v", fen, err)
	}
	return New().Evaluate(b)
}

func TestMirroredPositionsNegate(t *testing.T) {
	is := is.New(t)
	fens := []string{
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w - - 0 1",
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w - - 0 1",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
		"r1bq1rk1/pp2bppp/2n1pn2/3p4/2PP4/2N1PN2/PP3PPP/R2QKB1R b - - 0 1",
		"6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1",
	}
	for _, fen := range fens {
		is.Equal(evalFEN(t, fen), -evalFEN(t, mirrorFEN(fen))) // mirror must negate
	}
}

func TestStartPositionIsBalanced(t *testing.T) {
	is := is.New(t)
	is.Equal(evalFEN(t, board.StartFEN), int32(0))
}

func TestMaterialAdvantage(t *testing.T) {
	is := is.New(t)
	is.True(evalFEN(t, "4k3/8/8/8/8/8/8/Q3K3 w - - 0 1") > 800)  // white queen up
	is.True(evalFEN(t, "q3k3/8/8/8/8/8/8/4K3 w - - 0 1") < -800) // black queen up
}

func TestPhase(t *testing.T) {
	is := is.New(t)
	b, err := board.ParseFEN(board.StartFEN)
	is.NoErr(err)
	is.Equal(GamePhase(b), TotalPhase)

	b, err = board.ParseFEN("4k3/pppppppp/8/8/8/8/PPPPPPPP/4K3 w - - 0 1")
	is.NoErr(err)
	is.Equal(GamePhase(b), 0)
}
