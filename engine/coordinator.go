package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"chess-search/board"
)

var ErrNoLegalMoves = errors.New("no legal moves in root position")

type Config struct {
	Threads int
	HashMB  int
}

func DefaultConfig() Config {
	return Config{Threads: 1, HashMB: 64}
}

func (c Config) normalize() Config {
	c.Threads = Clamp(c.Threads, 1, 256)
	c.HashMB = Max(c.HashMB, 1)
	return c
}

// SearchParams limits a single search. Zero values mean no limit.
type SearchParams struct {
	BudgetMs  int
	MaxDepth  int
	NodeLimit uint64 // per thread
}

type Result struct {
	Move  board.Move
	Score int32
	Depth int
	Nodes uint64
	PV    []board.Move
}

// depthAggregate records which threads finished a depth and what the first
// of them found.
type depthAggregate struct {
	finished int
	nodes    uint64
	recorded bool
	move     board.Move
	score    int32
	pv       []board.Move

	boundReported bool // an aspiration failure at this depth was reported
}

/*
Coordinator runs a Lazy-SMP search: every thread searches the same root with
the same iterative deepening loop, sharing only the transposition table. The
threads drift apart through table timing and move deferral, which is where
the speedup comes from.
*/
type Coordinator struct {
	cfg      Config
	eval     Evaluator
	reporter Reporter
	tt       *TranspositionTable
	tm       *TimeManager
	states   []*SearchState

	mu       sync.Mutex
	maxDepth int
	depths   []depthAggregate
	nodes    []atomic.Uint64
	stats    CutStatistics
	logger   zerolog.Logger
}

func NewCoordinator(cfg Config, eval Evaluator, reporter Reporter) *Coordinator {
	cfg = cfg.normalize()
	if reporter == nil {
		reporter = LogReporter{Logger: log.Logger}
	}
	c := &Coordinator{
		cfg:      cfg,
		eval:     eval,
		reporter: reporter,
		tt:       NewTranspositionTable(cfg.HashMB),
		tm:       NewTimeManager(),
	}
	c.ensureStates()
	return c
}

func (c *Coordinator) ensureStates() {
	for len(c.states) < c.cfg.Threads {
		c.states = append(c.states, NewSearchState())
	}
}

func (c *Coordinator) Config() Config                { return c.cfg }
func (c *Coordinator) Table() *TranspositionTable    { return c.tt }
func (c *Coordinator) Statistics() CutStatistics     { return c.stats }
func (c *Coordinator) SetReporter(reporter Reporter) { c.reporter = reporter }

// SetThreads changes the thread count for the next search.
func (c *Coordinator) SetThreads(n int) {
	c.cfg.Threads = n
	c.cfg = c.cfg.normalize()
	c.ensureStates()
}

// Resize replaces the table, dropping everything stored in it.
func (c *Coordinator) Resize(hashMB int) {
	c.cfg.HashMB = hashMB
	c.cfg = c.cfg.normalize()
	c.tt = NewTranspositionTable(c.cfg.HashMB)
	log.Debug().Int("mb", c.cfg.HashMB).Int("entries", c.tt.Capacity()).Msg("transposition table resized")
}

// NewGame forgets everything learned in previous searches.
func (c *Coordinator) NewGame() {
	c.tt.Clear()
	for _, s := range c.states {
		s.ResetForNewGame()
	}
}

// Stop aborts a running search. Search still returns the best move found.
func (c *Coordinator) Stop() { c.tm.Stop() }

/*
Search runs all threads from root until a limit is reached or ctx is
cancelled, then reports and returns the move of the deepest depth every
shallower depth was also completed for. root is not modified.
*/
func (c *Coordinator) Search(ctx context.Context, root *board.Board, params SearchParams) (Result, error) {
	moves := root.LegalMoves()
	if len(moves) == 0 {
		return Result{}, ErrNoLegalMoves
	}

	c.maxDepth = params.MaxDepth
	if c.maxDepth <= 0 || c.maxDepth > MaxPly {
		c.maxDepth = MaxPly
	}
	c.depths = make([]depthAggregate, c.maxDepth+1)
	c.nodes = make([]atomic.Uint64, c.cfg.Threads)
	c.stats = CutStatistics{}
	c.logger = log.With().Str("search", uuid.NewString()).Logger()

	c.tm.StartSearch(params.BudgetMs)
	c.tm.SetNodeLimit(params.NodeLimit)
	c.tt.SetAllAncient()
	c.tt.ResetHitCount()
	for _, s := range c.states {
		s.ClearKillers()
		s.AgeHistory()
	}

	c.logger.Info().
		Str("fen", root.FEN()).
		Int("threads", c.cfg.Threads).
		Int("budget_ms", params.BudgetMs).
		Int("max_depth", c.maxDepth).
		Int("hash_mb", c.cfg.HashMB).
		Msg("search started")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.tm.Stop()
		case <-done:
		}
	}()

	var g errgroup.Group
	for i := 0; i < c.cfg.Threads; i++ {
		w := newWorker(i, root.Copy(), c.eval, c.tt, c.tm, c.states[i])
		w.published = &c.nodes[i]
		g.Go(func() error {
			c.iterate(w)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := c.result(moves[0])
	c.logger.Debug().
		Int("depth", res.Depth).
		Uint64("nodes", res.Nodes).
		Dur("elapsed", c.tm.Elapsed()).
		Object("cuts", c.stats).
		Msg("search finished")
	c.reporter.BestMove(res.Move)
	return res, nil
}

// iterate is the iterative deepening loop of one thread.
func (c *Coordinator) iterate(w *worker) {
	alpha, beta := -Infinity, Infinity
	depth := 1
	for !w.aborted() && c.tm.ContinueSearch() && depth <= c.maxDepth {
		w.selDepth = 0
		score, move := w.negaScoutRoot(depth, alpha, beta)
		if w.tm.Stopped() {
			break
		}

		// Aspiration failure: report the bound, then retry this depth with
		// the full window.
		if score <= alpha || score >= beta {
			c.failedAspiration(w, depth, score, move, boundFor(score, alpha, beta))
			alpha, beta = -Infinity, Infinity
			continue
		}

		c.complete(w, depth, score, move)
		alpha, beta = score-aspirationWindow, score+aspirationWindow
		depth++
	}

	w.published.Store(w.pos.Nodes())
	c.logger.Debug().
		Int("thread", w.id).
		Uint64("nodes", w.pos.Nodes()).
		Object("cuts", w.stats).
		Msg("thread finished")

	c.mu.Lock()
	c.stats.Add(w.stats)
	c.mu.Unlock()
}

func (c *Coordinator) totalNodes() uint64 {
	var total uint64
	for i := range c.nodes {
		total += c.nodes[i].Load()
	}
	return total
}

// complete counts a finished depth. The first thread to get here records its
// move and reports the iteration.
func (c *Coordinator) complete(w *worker, depth int, score int32, move board.Move) {
	w.published.Store(w.pos.Nodes())

	c.mu.Lock()
	defer c.mu.Unlock()

	agg := &c.depths[depth]
	agg.finished++
	agg.nodes += w.pos.Nodes()
	if agg.recorded {
		return
	}

	agg.recorded = true
	agg.move = move
	agg.score = score
	agg.pv = principalVariation(w.pos, c.tt, move, depth)
	c.report(w, depth, score, BoundExact, agg.pv)

	if depth == c.maxDepth {
		c.tm.Stop()
	}
}

// failedAspiration reports the bound found by a search that fell outside its
// window. Each depth reports at most one bound, and none once it is recorded.
func (c *Coordinator) failedAspiration(w *worker, depth int, score int32, move board.Move, bound Bound) {
	w.published.Store(w.pos.Nodes())

	c.mu.Lock()
	defer c.mu.Unlock()

	agg := &c.depths[depth]
	if agg.recorded || agg.boundReported {
		return
	}
	agg.boundReported = true
	c.report(w, depth, score, bound, principalVariation(w.pos, c.tt, move, depth))
}

// report must be called with c.mu held.
func (c *Coordinator) report(w *worker, depth int, score int32, bound Bound, pv []board.Move) {
	nodes := c.totalNodes()
	var hitRate uint64
	if nodes > 0 {
		hitRate = c.tt.HitCount() * 1000 / nodes
	}
	c.reporter.Iteration(Iteration{
		Thread:   w.id,
		Depth:    depth,
		SelDepth: Max(w.selDepth, len(pv)),
		Score:    score,
		Bound:    bound,
		Elapsed:  c.tm.Elapsed(),
		Nodes:    nodes,
		Hashfull: c.tt.Hashfull(),
		HitRate:  hitRate,
		PV:       pv,
	})
}

/*
principalVariation follows stored best moves from the root. The walk stops
at a position it has already visited, at a missing or illegal table move, or
once it is twice as long as the search depth.
*/
func principalVariation(pos Position, tt *TranspositionTable, first board.Move, depth int) []board.Move {
	var pv []board.Move
	var seen []uint64
	move := first
	for move != board.NoMove && pos.IsLegal(move) && !slices.Contains(seen, pos.Key()) {
		seen = append(seen, pos.Key())
		pos.ApplyMove(move)
		pv = append(pv, move)
		if len(pv) >= MaxPly || len(pv)/2 >= depth {
			break
		}

		move = board.NoMove
		key := pos.Key()
		if tt.Contains(key) {
			if entry := tt.GetEntry(key); entry.Key == key {
				move = entry.Move
			}
		}
	}
	for range pv {
		pos.RevertMove()
	}
	return pv
}

// result picks the move of the deepest depth reached with no gaps below it.
func (c *Coordinator) result(fallback board.Move) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := Result{Move: fallback, PV: []board.Move{fallback}, Nodes: c.totalNodes()}
	for d := 1; d < len(c.depths) && c.depths[d].recorded; d++ {
		agg := c.depths[d]
		res.Move = agg.move
		res.Score = agg.score
		res.Depth = d
		res.PV = agg.pv
	}
	return res
}
