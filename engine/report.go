package engine

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"chess-search/board"
)

// Iteration is the result of the first thread to finish a depth.
type Iteration struct {
	Thread   int
	Depth    int
	SelDepth int
	Score    int32
	Bound    Bound
	Elapsed  time.Duration
	Nodes    uint64
	Hashfull int
	HitRate  uint64 // table hits per thousand nodes
	PV       []board.Move
}

func (it Iteration) NPS() uint64 {
	ms := uint64(it.Elapsed.Milliseconds())
	if ms == 0 {
		ms = 1
	}
	return it.Nodes * 1000 / ms
}

// Reporter receives search progress. Iteration is called with the
// coordinator lock held, so implementations must not call back into it.
type Reporter interface {
	Iteration(it Iteration)
	BestMove(m board.Move)
}

func FormatPV(pv []board.Move) string {
	return strings.Join(lo.Map(pv, func(m board.Move, _ int) string { return m.String() }), " ")
}

// UCIReporter writes info and bestmove lines.
type UCIReporter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewUCIReporter(w io.Writer) *UCIReporter {
	return &UCIReporter{w: w}
}

func (r *UCIReporter) Iteration(it Iteration) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "info depth %d seldepth %d score %s", it.Depth, it.SelDepth, ScoreString(it.Score))
	switch it.Bound {
	case BoundUpper:
		sb.WriteString(" upperbound")
	case BoundLower:
		sb.WriteString(" lowerbound")
	}
	fmt.Fprintf(&sb, " time %d nodes %d nps %d hashfull %d hitrate %d",
		it.Elapsed.Milliseconds(), it.Nodes, it.NPS(), it.Hashfull, it.HitRate)
	if len(it.PV) > 0 {
		sb.WriteString(" pv ")
		sb.WriteString(FormatPV(it.PV))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, sb.String())
}

func (r *UCIReporter) BestMove(m board.Move) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "bestmove %s\n", m)
}

// LogReporter writes progress as structured log events.
type LogReporter struct {
	Logger zerolog.Logger
}

func (r LogReporter) Iteration(it Iteration) {
	r.Logger.Info().
		Int("thread", it.Thread).
		Int("depth", it.Depth).
		Int("seldepth", it.SelDepth).
		Str("score", ScoreString(it.Score)).
		Stringer("bound", it.Bound).
		Dur("elapsed", it.Elapsed).
		Uint64("nodes", it.Nodes).
		Uint64("nps", it.NPS()).
		Int("hashfull", it.Hashfull).
		Str("pv", FormatPV(it.PV)).
		Msg("iteration")
}

func (r LogReporter) BestMove(m board.Move) {
	r.Logger.Info().Stringer("move", m).Msg("bestmove")
}

// MultiReporter fans every call out to each reporter in order.
type MultiReporter []Reporter

func (mr MultiReporter) Iteration(it Iteration) {
	lo.ForEach(mr, func(r Reporter, _ int) { r.Iteration(it) })
}

func (mr MultiReporter) BestMove(m board.Move) {
	lo.ForEach(mr, func(r Reporter, _ int) { r.BestMove(m) })
}
