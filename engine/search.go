package engine

import (
	"sync/atomic"

	"chess-search/board"
)

// worker is one Lazy-SMP search thread. Everything except the table and the
// time manager belongs to this worker alone.
type worker struct {
	id      int
	pos     Position
	eval    Evaluator
	tt      *TranspositionTable
	tm      *TimeManager
	state   *SearchState
	orderer MoveOrderer

	stats     CutStatistics
	selDepth  int
	published *atomic.Uint64 // node count visible to the coordinator
}

func newWorker(id int, pos Position, eval Evaluator, tt *TranspositionTable, tm *TimeManager, state *SearchState) *worker {
	return &worker{
		id:      id,
		pos:     pos,
		eval:    eval,
		tt:      tt,
		tm:      tm,
		state:   state,
		orderer: NewMoveOrderer(tt),
	}
}

func (w *worker) aborted() bool {
	nodes := w.pos.Nodes()
	if w.published != nil && nodes%clockCheckInterval == 0 {
		w.published.Store(nodes)
	}
	return w.tm.AbortSearch(nodes)
}

// deferredMove is a move skipped because another thread held its lease.
type deferredMove struct {
	move board.Move
	ext  int
}

// nodeSearch tracks the running result of a full-width node while its moves
// are tried.
type nodeSearch struct {
	alpha, beta int32 // window after mate distance pruning
	a, b        int32 // current scout window
	bestScore   int32
	bestMove    board.Move
}

func newNodeSearch(alpha, beta int32) nodeSearch {
	return nodeSearch{alpha: alpha, beta: beta, a: alpha, b: beta, bestScore: -Infinity}
}

// update folds one searched move into the node. It returns true on a beta
// cutoff.
func (n *nodeSearch) update(m board.Move, score int32) bool {
	if score > n.bestScore {
		n.bestScore = score
		n.bestMove = m
	}
	n.a = Max(n.a, n.bestScore)
	if n.a >= n.beta {
		return true
	}
	n.b = n.a + 1
	return false
}

/*
scout searches the child position already on the board with the current
null window, and re-searches with (a, beta) when the score lands strictly
inside the real window. Nothing is re-searched while the first move still
has the full window.
*/
func (w *worker) scout(n *nodeSearch, newDepth, distanceFromRoot int, research bool) int32 {
	score := -w.negaScout(newDepth, -n.b, -n.a, distanceFromRoot+1, true)
	if research && n.b < n.beta && score > n.a && score < n.beta && !w.tm.Stopped() {
		score = -w.negaScout(newDepth, -n.beta, -n.a, distanceFromRoot+1, true)
	}
	return score
}

func (w *worker) negaScout(depth int, alpha, beta int32, distanceFromRoot int, allowNull bool) int32 {
	pos := w.pos
	w.selDepth = Max(w.selDepth, distanceFromRoot)

	if w.aborted() {
		return abortScore
	}
	if distanceFromRoot >= MaxPly {
		return DrawScore
	}

	/*
		DRAW DETECTION
	*/
	if pos.InsufficientMaterial() || pos.IsRepetition() {
		return DrawScore
	}

	/*
		TRANSPOSITION TABLE LOOKUP
	*/
	key := pos.Key()
	if w.tt.CheckEntry(key, depth) {
		entry := w.tt.GetEntry(key)
		if entry.Key == key && entry.Found() {
			w.tt.AddHit()
			entry.MateScoreAdjustment(distanceFromRoot)
			if useTransposition(entry, alpha, beta) {
				w.stats.TTCutoffs++
				return entry.Score
			}
		}
	}

	inCheck := pos.InCheck()
	if depth <= 0 && !inCheck {
		return w.quiescence(alpha, beta, distanceFromRoot)
	}

	moves := pos.LegalMoves()
	if len(moves) == 0 {
		return terminalScore(inCheck, distanceFromRoot)
	}

	/*
		NULL MOVE PRUNING
		Pass the turn and search reduced with a null window. A fail high is
		confirmed by a search of our own position to the same depth before
		we trust it, which keeps zugzwang from faking a cutoff.
	*/
	if allowedNull(allowNull, inCheck, alpha, beta, depth, pos.PieceCount()) && pos.CanNullMove() {
		pos.ApplyNullMove()
		score := -w.negaScout(depth-nullMoveReduction, -beta, -beta+1, distanceFromRoot+1, false)
		pos.RevertNullMove()
		if w.tm.Stopped() {
			return abortScore
		}
		if score >= beta {
			score = w.negaScout(depth-nullMoveReduction, beta-1, beta, distanceFromRoot, false)
			if w.tm.Stopped() {
				return abortScore
			}
			if score >= beta {
				w.stats.NullMoveCutoffs++
				return score
			}
		}
	}

	/*
		MATE DISTANCE PRUNING
	*/
	alpha = Max(-MateScore+int32(distanceFromRoot), alpha)
	beta = Min(MateScore-int32(distanceFromRoot)-1, beta)
	if alpha >= beta {
		return alpha
	}

	ordered := w.orderer.OrderMoves(pos, moves, depth, distanceFromRoot, w.state)
	staticScore := colourSign(pos) * w.eval.Evaluate(pos)
	side := pos.SideToMove()
	node := newNodeSearch(alpha, beta)
	var deferred []deferredMove
	cutoff := false

	for i, sm := range ordered {
		m := sm.move
		moved, _ := pos.PieceAt(m.From())
		pos.ApplyMove(m)
		childKey := pos.Key()
		w.tt.PreFetch(childKey)
		givesCheck := pos.InCheck()

		/*
			FUTILITY PRUNING
		*/
		if i > 0 && depth <= futilityMaxDepth && isFutile(m, alpha, beta, inCheck, givesCheck) && staticScore+futilityMargin < node.a {
			pos.RevertMove()
			w.stats.FutilityPrunes++
			continue
		}

		ext := extension(m, moved, side, alpha, beta, givesCheck, sm.score)

		/*
			LATE MOVE REDUCTION
			Late quiet moves get a reduced null window probe first and are
			dropped if they cannot beat a.
		*/
		if lateMoveReducible(m, i, alpha, beta, inCheck, givesCheck, depth) {
			score := -w.negaScout(depth-lmrProbeDepthOffset, -node.a-1, -node.a, distanceFromRoot+1, true)
			if w.tm.Stopped() {
				pos.RevertMove()
				return abortScore
			}
			if score <= node.a {
				pos.RevertMove()
				w.stats.LateMovePrunes++
				continue
			}
		}

		// Another thread is already in this subtree; come back to it later.
		leased := false
		if i != 0 {
			if !w.tt.ExclusiveRights(childKey) {
				pos.RevertMove()
				deferred = append(deferred, deferredMove{move: m, ext: ext})
				w.stats.DeferredMoves++
				continue
			}
			leased = true
		}

		score := w.scout(&node, depth+ext-1, distanceFromRoot, i >= 1)
		if leased {
			w.tt.FreeExclusiveRights(childKey)
		}
		pos.RevertMove()
		if w.tm.Stopped() {
			return abortScore
		}

		if node.update(m, score) {
			w.state.recordCutoff(side, m, depth, distanceFromRoot)
			w.stats.BetaCutoffs++
			cutoff = true
			break
		}
	}

	if !cutoff {
		for _, d := range deferred {
			pos.ApplyMove(d.move)
			w.tt.PreFetch(pos.Key())
			score := w.scout(&node, depth+d.ext-1, distanceFromRoot, true)
			pos.RevertMove()
			if w.tm.Stopped() {
				return abortScore
			}
			if node.update(d.move, score) {
				w.state.recordCutoff(side, d.move, depth, distanceFromRoot)
				w.stats.BetaCutoffs++
				break
			}
		}
	}

	if !w.aborted() {
		w.tt.AddEntry(node.bestMove, key, node.bestScore, depth, distanceFromRoot, boundFor(node.bestScore, node.alpha, node.beta))
	}
	return node.bestScore
}

/*
negaScoutRoot searches the root position. It is negaScout without draw
detection, table cutoffs, null move or pruning: every root move gets a real
score, and the best one is returned alongside it.
*/
func (w *worker) negaScoutRoot(depth int, alpha, beta int32) (int32, board.Move) {
	pos := w.pos
	if w.aborted() {
		return abortScore, board.NoMove
	}

	moves := pos.LegalMoves()
	inCheck := pos.InCheck()
	if len(moves) == 0 {
		return terminalScore(inCheck, 0), board.NoMove
	}

	alpha = Max(-MateScore, alpha)
	beta = Min(MateScore-1, beta)
	if alpha >= beta {
		return alpha, board.NoMove
	}

	ordered := w.orderer.OrderMoves(pos, moves, depth, 0, w.state)
	side := pos.SideToMove()
	key := pos.Key()
	node := newNodeSearch(alpha, beta)
	var deferred []deferredMove
	cutoff := false

	for i, sm := range ordered {
		m := sm.move
		moved, _ := pos.PieceAt(m.From())
		pos.ApplyMove(m)
		childKey := pos.Key()
		ext := extension(m, moved, side, alpha, beta, pos.InCheck(), sm.score)

		leased := false
		if i != 0 {
			if !w.tt.ExclusiveRights(childKey) {
				pos.RevertMove()
				deferred = append(deferred, deferredMove{move: m, ext: ext})
				w.stats.DeferredMoves++
				continue
			}
			leased = true
		}

		score := w.scout(&node, depth+ext-1, 0, i >= 1)
		if leased {
			w.tt.FreeExclusiveRights(childKey)
		}
		pos.RevertMove()
		if w.tm.Stopped() {
			return abortScore, board.NoMove
		}

		if node.update(m, score) {
			w.state.recordCutoff(side, m, depth, 0)
			w.stats.BetaCutoffs++
			cutoff = true
			break
		}
	}

	if !cutoff {
		for _, d := range deferred {
			pos.ApplyMove(d.move)
			w.tt.PreFetch(pos.Key())
			score := w.scout(&node, depth+d.ext-1, 0, true)
			pos.RevertMove()
			if w.tm.Stopped() {
				return abortScore, board.NoMove
			}
			if node.update(d.move, score) {
				w.state.recordCutoff(side, d.move, depth, 0)
				w.stats.BetaCutoffs++
				break
			}
		}
	}

	if !w.aborted() {
		w.tt.AddEntry(node.bestMove, key, node.bestScore, depth, 0, boundFor(node.bestScore, node.alpha, node.beta))
	}
	return node.bestScore, node.bestMove
}
