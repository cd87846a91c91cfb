package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"chess-search/board"
	"chess-search/engine"
	"chess-search/eval"
)

const (
	engineName   = "chess-search"
	engineAuthor = "chess-search authors"

	// Clock assumed when go carries no limits at all.
	defaultClockMs = 300000
)

var errMalformed = errors.New("malformed command")

func main() {
	threads := flag.Int("threads", 1, "search threads")
	hash := flag.Int("hash", 64, "transposition table size in MB")
	level := flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	flag.Parse()

	lvl, err := zerolog.ParseLevel(*level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level %q: %v\n", *level, err)
		os.Exit(2)
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	u := newUCIEngine(os.Stdout, engine.Config{Threads: *threads, HashMB: *hash})
	u.run(os.Stdin)
}

// uciEngine is the protocol front end. Commands are handled one at a time;
// a search runs in its own goroutine so stop and isready stay responsive.
type uciEngine struct {
	out   io.Writer
	board *board.Board
	coord *engine.Coordinator

	cancel   context.CancelFunc
	done     chan struct{}
	infinite bool // the running search has no limit of its own
}

// lockedWriter serialises protocol lines from the command loop and the
// search goroutine.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

func newUCIEngine(w io.Writer, cfg engine.Config) *uciEngine {
	out := &lockedWriter{w: w}
	return &uciEngine{
		out:   out,
		board: board.NewBoard(),
		coord: engine.NewCoordinator(cfg, eval.New(), engine.NewUCIReporter(out)),
	}
}

// run reads commands until quit or end of input. At end of input a search
// with limits is allowed to finish; an infinite one is stopped, since no stop
// command can arrive any more.
func (u *uciEngine) run(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if quit := u.handle(scanner.Text()); quit {
			u.stopSearch()
			return
		}
	}
	if u.infinite {
		u.stopSearch()
		return
	}
	u.wait()
}

func (u *uciEngine) println(a ...any) {
	fmt.Fprintln(u.out, a...)
}

func (u *uciEngine) handle(line string) (quit bool) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 { // ignore blank lines
		return false
	}

	var err error
	switch strings.ToLower(tokens[0]) {
	case "uci":
		u.println("id name", engineName)
		u.println("id author", engineAuthor)
		u.println("option name Threads type spin default 1 min 1 max 256")
		u.println("option name Hash type spin default 64 min 1 max 65536")
		u.println("uciok")
	case "isready":
		u.println("readyok")
	case "ucinewgame":
		u.stopSearch()
		u.board = board.NewBoard()
		u.coord.NewGame()
	case "position":
		u.wait()
		err = u.position(tokens[1:])
	case "go":
		u.wait()
		err = u.goCommand(tokens[1:])
	case "stop":
		u.stopSearch()
	case "setoption":
		u.wait()
		err = u.setOption(tokens[1:])
	case "quit":
		return true
	default:
		err = fmt.Errorf("%w: unknown command %q", errMalformed, tokens[0])
	}

	if err != nil {
		log.Warn().Err(err).Str("line", line).Msg("command skipped")
		u.println("info string", err)
	}
	return false
}

// position handles "startpos|fen <fen> [moves ...]". The board is only
// replaced once every move has been applied.
func (u *uciEngine) position(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: position needs startpos or fen", errMalformed)
	}

	var b *board.Board
	var rest []string
	switch strings.ToLower(args[0]) {
	case "startpos":
		b = board.NewBoard()
		rest = args[1:]
	case "fen":
		i := 1
		for i < len(args) && strings.ToLower(args[i]) != "moves" {
			i++
		}
		parsed, err := board.ParseFEN(strings.Join(args[1:i], " "))
		if err != nil {
			return fmt.Errorf("position: %w", err)
		}
		b = parsed
		rest = args[i:]
	default:
		return fmt.Errorf("%w: invalid position subcommand %q", errMalformed, args[0])
	}

	if len(rest) > 0 {
		if strings.ToLower(rest[0]) != "moves" {
			return fmt.Errorf("%w: expected moves, got %q", errMalformed, rest[0])
		}
		for _, s := range rest[1:] {
			m, err := b.ParseMove(strings.ToLower(s))
			if err != nil {
				return fmt.Errorf("position: %w", err)
			}
			b.ApplyMove(m)
		}
	}
	u.board = b
	return nil
}

type goParams struct {
	wtime, btime int
	winc, binc   int
	movesToGo    int
	movetime     int
	depth        int
	nodes        uint64
	infinite     bool
}

func parseGo(args []string) (goParams, error) {
	var p goParams
	for i := 0; i < len(args); i++ {
		token := strings.ToLower(args[i])
		if token == "infinite" {
			p.infinite = true
			continue
		}
		if i+1 >= len(args) {
			return p, fmt.Errorf("%w: go option %s needs a value", errMalformed, token)
		}
		value := args[i+1]
		i++

		var err error
		switch token {
		case "wtime":
			p.wtime, err = strconv.Atoi(value)
		case "btime":
			p.btime, err = strconv.Atoi(value)
		case "winc":
			p.winc, err = strconv.Atoi(value)
		case "binc":
			p.binc, err = strconv.Atoi(value)
		case "movestogo":
			p.movesToGo, err = strconv.Atoi(value)
		case "movetime":
			p.movetime, err = strconv.Atoi(value)
		case "depth":
			p.depth, err = strconv.Atoi(value)
		case "nodes":
			p.nodes, err = strconv.ParseUint(value, 10, 64)
		default:
			return p, fmt.Errorf("%w: unknown go option %q", errMalformed, token)
		}
		if err != nil {
			return p, fmt.Errorf("%w: go %s: %v", errMalformed, token, err)
		}
	}
	return p, nil
}

// searchParams turns go options into limits for the side to move.
func (p goParams) searchParams(b *board.Board) engine.SearchParams {
	sp := engine.SearchParams{MaxDepth: p.depth, NodeLimit: p.nodes}
	switch {
	case p.movetime > 0:
		sp.BudgetMs = p.movetime
	case p.infinite:
	default:
		remaining, inc := p.wtime, p.winc
		if b.SideToMove() == board.Black {
			remaining, inc = p.btime, p.binc
		}
		if remaining <= 0 {
			if p.depth > 0 || p.nodes > 0 {
				break
			}
			remaining = defaultClockMs
		}
		movesLeft := p.movesToGo
		if movesLeft <= 0 {
			movesLeft = engine.EstimateMovesRemaining(eval.GamePhase(b))
		}
		sp.BudgetMs = engine.AllocateTime(remaining, inc, movesLeft)
	}
	return sp
}

func (u *uciEngine) goCommand(args []string) error {
	p, err := parseGo(args)
	if err != nil {
		return err
	}
	params := p.searchParams(u.board)
	root := u.board.Copy()
	u.infinite = params == engine.SearchParams{}

	ctx, cancel := context.WithCancel(context.Background())
	u.cancel = cancel
	u.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		defer cancel()
		if _, err := u.coord.Search(ctx, root, params); err != nil {
			log.Warn().Err(err).Str("fen", root.FEN()).Msg("search failed")
			u.println("bestmove 0000")
		}
	}(u.done)
	return nil
}

func (u *uciEngine) setOption(args []string) error {
	// setoption name <id> value <x>
	if len(args) != 4 || strings.ToLower(args[0]) != "name" || strings.ToLower(args[2]) != "value" {
		return fmt.Errorf("%w: setoption name <id> value <x>", errMalformed)
	}
	n, err := strconv.Atoi(args[3])
	if err != nil {
		return fmt.Errorf("%w: option %s: %v", errMalformed, args[1], err)
	}
	switch strings.ToLower(args[1]) {
	case "threads":
		u.coord.SetThreads(n)
	case "hash":
		u.coord.Resize(n)
	default:
		return fmt.Errorf("%w: unknown option %q", errMalformed, args[1])
	}
	return nil
}

// stopSearch aborts a running search and waits for its bestmove.
func (u *uciEngine) stopSearch() {
	if u.cancel != nil {
		u.cancel()
	}
	u.wait()
}

func (u *uciEngine) wait() {
	if u.done != nil {
		<-u.done
		u.done = nil
		u.cancel = nil
		u.infinite = false
	}
}
