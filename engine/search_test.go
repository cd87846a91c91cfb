package engine_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/matryer/is"
	"github.com/samber/lo"

	"chess-search/board"
	"chess-search/engine"
	"chess-search/eval"
)

type recordingReporter struct {
	mu         sync.Mutex
	iterations []engine.Iteration
	best       []board.Move
}

func (r *recordingReporter) Iteration(it engine.Iteration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.iterations = append(r.iterations, it)
}

func (r *recordingReporter) BestMove(m board.Move) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.best = append(r.best, m)
}

// exact drops the bound reports of failed aspiration windows.
func (r *recordingReporter) exact() []engine.Iteration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Filter(r.iterations, func(it engine.Iteration, _ int) bool { return it.Bound == engine.BoundExact })
}

func newCoordinator(threads int, rep engine.Reporter) *engine.Coordinator {
	return engine.NewCoordinator(engine.Config{Threads: threads, HashMB: 16}, eval.New(), rep)
}

func search(t *testing.T, c *engine.Coordinator, fen string, params engine.SearchParams) (engine.Result, *board.Board) {
	t.Helper()
	b, err := board.ParseFEN(fen)
	if err != nil {
		t.Fatalf("parse FEN %q: %v", fen, err)
	}
	res, err := c.Search(context.Background(), b, params)
	if err != nil {
		t.Fatalf("search %q: %v", fen, err)
	}
	return res, b
}

func TestMateInOne(t *testing.T) {
	is := is.New(t)
	rep := &recordingReporter{}
	res, b := search(t, newCoordinator(1, rep), "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1", engine.SearchParams{MaxDepth: 4})

	is.Equal(res.Move.String(), "a1a8")
	is.Equal(res.Score, engine.MateScore-1)
	is.Equal(res.Depth, 4)
	is.True(b.IsLegal(res.Move))
	is.Equal(rep.best, []board.Move{res.Move})
}

func TestMateFoundWithFlatEvaluator(t *testing.T) {
	is := is.New(t)
	flat := engine.EvaluatorFunc(func(engine.Position) int32 { return 0 })
	c := engine.NewCoordinator(engine.Config{Threads: 1, HashMB: 4}, flat, &recordingReporter{})
	b, err := board.ParseFEN("6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1")
	is.NoErr(err)
	res, err := c.Search(context.Background(), b, engine.SearchParams{MaxDepth: 3})
	is.NoErr(err)
	is.Equal(res.Move.String(), "a1a8")
	is.Equal(res.Score, engine.MateScore-1)
}

// stoppingReporter stops the search once the first iteration is reported.
type stoppingReporter struct {
	recordingReporter
	c *engine.Coordinator
}

func (r *stoppingReporter) Iteration(it engine.Iteration) {
	r.recordingReporter.Iteration(it)
	r.c.Stop()
}

func TestStopDuringSearch(t *testing.T) {
	is := is.New(t)
	c := newCoordinator(2, nil)
	rep := &stoppingReporter{c: c}
	c.SetReporter(rep)

	res, b := search(t, c, board.StartFEN, engine.SearchParams{})
	is.True(b.IsLegal(res.Move))
	is.True(res.Depth >= 1)
	is.Equal(rep.best, []board.Move{res.Move})
	is.True(c.Table().Contains(b.Key())) // the root result was stored
}

func TestMultiReporter(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer
	rec := &recordingReporter{}
	c := newCoordinator(1, engine.MultiReporter{rec, engine.NewUCIReporter(&buf)})
	res, _ := search(t, c, board.StartFEN, engine.SearchParams{MaxDepth: 2})

	is.Equal(len(rec.exact()), 2)
	is.Equal(rec.best, []board.Move{res.Move})
	is.True(strings.HasSuffix(strings.TrimSpace(buf.String()), "bestmove "+res.Move.String()))
}

func TestMateInTwo(t *testing.T) {
	is := is.New(t)
	for _, threads := range []int{1, 4} {
		res, _ := search(t, newCoordinator(threads, &recordingReporter{}), "7k/8/8/8/8/8/R7/1R5K w - - 0 1", engine.SearchParams{MaxDepth: 5})
		is.Equal(res.Score, engine.MateScore-3) // mate in two
		is.Equal(engine.MateIn(res.Score), 2)
	}
}

func TestMateWithNullMoveActive(t *testing.T) {
	is := is.New(t)
	res, _ := search(t, newCoordinator(2, &recordingReporter{}), "k7/p7/P1K5/8/8/8/8/1Q6 w - - 0 1", engine.SearchParams{MaxDepth: 5})
	is.Equal(res.Move.String(), "b1b7")
	is.Equal(res.Score, engine.MateScore-1)
}

func TestQueenEndingIsNeverADraw(t *testing.T) {
	is := is.New(t)
	rep := &recordingReporter{}
	res, b := search(t, newCoordinator(2, rep), "8/6k1/8/8/8/8/1K6/Q7 w - - 0 1", engine.SearchParams{MaxDepth: 7})
	is.True(b.IsLegal(res.Move))
	is.True(res.Score > 500) // a queen up must not look drawn

	is.True(len(rep.iterations) >= 7)
	for _, it := range rep.iterations {
		is.True(it.Score != engine.DrawScore) // no depth may report a draw
	}
}

func TestLeasedMoveIsDeferredNotLost(t *testing.T) {
	is := is.New(t)
	c := engine.NewCoordinator(engine.Config{Threads: 1, HashMB: 16}, eval.New(), &recordingReporter{})
	b, err := board.ParseFEN("6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1")
	is.NoErr(err)

	// Pretend another thread is inside the mating line.
	m, err := b.ParseMove("a1a8")
	is.NoErr(err)
	b.ApplyMove(m)
	childKey := b.Key()
	b.RevertMove()
	is.True(c.Table().ExclusiveRights(childKey))
	defer c.Table().FreeExclusiveRights(childKey)

	res, err := c.Search(context.Background(), b, engine.SearchParams{MaxDepth: 3})
	is.NoErr(err)
	is.Equal(res.Move, m)
	is.Equal(res.Score, engine.MateScore-1)
	is.True(c.Statistics().DeferredMoves > 0)
}

func TestAspirationFailureReportsBound(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer
	rec := &recordingReporter{}
	c := newCoordinator(1, engine.MultiReporter{rec, engine.NewUCIReporter(&buf)})
	res, _ := search(t, c, "7k/8/8/8/8/8/R7/1R5K w - - 0 1", engine.SearchParams{MaxDepth: 5})
	is.Equal(res.Score, engine.MateScore-3)

	// The mate appears only once the window around the material score fails high.
	_, lower, ok := lo.FindIndexOf(rec.iterations, func(it engine.Iteration) bool { return it.Bound == engine.BoundLower })
	is.True(ok)
	_, mate, ok := lo.FindIndexOf(rec.iterations, func(it engine.Iteration) bool {
		return it.Bound == engine.BoundExact && it.Score == engine.MateScore-3
	})
	is.True(ok)
	is.True(lower < mate)
	is.True(strings.Contains(buf.String(), " lowerbound "))
	is.Equal(len(rec.exact()), 5)
}

func TestRepetitionIsADraw(t *testing.T) {
	is := is.New(t)
	// Black is a queen down but can step back into a position already seen.
	b, err := board.ParseFEN("4k3/8/8/8/8/8/8/Q3K3 w - - 0 1")
	is.NoErr(err)
	for _, s := range []string{"e1f1", "e8d8", "f1e1"} {
		m, err := b.ParseMove(s)
		is.NoErr(err)
		b.ApplyMove(m)
	}
	c := newCoordinator(1, &recordingReporter{})
	res, err := c.Search(context.Background(), b, engine.SearchParams{MaxDepth: 4})
	is.NoErr(err)
	is.Equal(res.Move.String(), "d8e8") // repeats the starting position
	is.Equal(res.Score, engine.DrawScore)
}

func TestStartPosition(t *testing.T) {
	is := is.New(t)
	rep := &recordingReporter{}
	res, b := search(t, newCoordinator(1, rep), board.StartFEN, engine.SearchParams{MaxDepth: 4})

	is.True(b.IsLegal(res.Move))
	is.Equal(len(b.LegalMoves()), 20)
	is.True(res.Nodes > 400)       // searched more than the first two plies
	is.True(res.Nodes < 5_000_000) // but nowhere near a full minimax tree
	is.True(engine.Abs(res.Score) < 200)

	iterations := rep.exact()
	is.Equal(len(iterations), 4)
	for i, it := range iterations {
		is.Equal(it.Depth, i+1)
		is.True(len(it.PV) >= 1)
		is.True(it.SelDepth >= it.Depth)
	}
	last := iterations[3]
	is.Equal(last.PV[0], res.Move)
	is.Equal(res.PV, last.PV)
}

func TestMultiThreadedSearch(t *testing.T) {
	is := is.New(t)
	rep := &recordingReporter{}
	c := newCoordinator(4, rep)
	res, b := search(t, c, "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1", engine.SearchParams{MaxDepth: 5})

	is.True(b.IsLegal(res.Move))
	is.Equal(res.Depth, 5)
	is.Equal(len(rep.exact()), 5) // one report per depth
	stats := c.Statistics()
	is.True(stats.BetaCutoffs > 0)
}

func TestNodeLimit(t *testing.T) {
	is := is.New(t)
	res, b := search(t, newCoordinator(1, &recordingReporter{}), board.StartFEN, engine.SearchParams{NodeLimit: 20000})
	is.True(b.IsLegal(res.Move))
	is.True(res.Nodes <= 20000+1024)
	is.True(res.Depth >= 1)
}

func TestCancelledSearchStillMoves(t *testing.T) {
	is := is.New(t)
	b, err := board.ParseFEN(board.StartFEN)
	is.NoErr(err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newCoordinator(2, &recordingReporter{}).Search(ctx, b, engine.SearchParams{})
	is.NoErr(err)
	is.True(b.IsLegal(res.Move))
}

func TestNoLegalMoves(t *testing.T) {
	is := is.New(t)
	b, err := board.ParseFEN("R5k1/5ppp/8/8/8/8/8/6K1 b - - 0 1")
	is.NoErr(err)
	_, err = newCoordinator(1, nil).Search(context.Background(), b, engine.SearchParams{MaxDepth: 2})
	is.True(errors.Is(err, engine.ErrNoLegalMoves))
}

func TestUCIReporterFormat(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer
	rep := engine.NewUCIReporter(&buf)
	b, err := board.ParseFEN("6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1")
	is.NoErr(err)
	m, err := b.ParseMove("a1a8")
	is.NoErr(err)

	c := engine.NewCoordinator(engine.DefaultConfig(), eval.New(), rep)
	_, err = c.Search(context.Background(), b, engine.SearchParams{MaxDepth: 2})
	is.NoErr(err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	is.Equal(len(lines), 3)
	is.True(strings.HasPrefix(lines[0], "info depth 1 "))
	is.True(strings.Contains(lines[1], " score mate 1 "))
	is.True(strings.Contains(lines[1], " pv a1a8"))
	is.Equal(lines[2], "bestmove "+m.String())
}

func BenchmarkSearchDepth5(b *testing.B) {
	c := newCoordinator(1, &recordingReporter{})
	root, err := board.ParseFEN("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.NewGame()
		if _, err := c.Search(context.Background(), root, engine.SearchParams{MaxDepth: 5}); err != nil {
			b.Fatal(err)
		}
	}
}
