package engine

import "chess-search/board"

// quiescence resolves captures and promotions until the position is quiet
// enough to trust the static evaluation. It never touches the table.
func (w *worker) quiescence(alpha, beta int32, distanceFromRoot int) int32 {
	pos := w.pos
	w.selDepth = Max(w.selDepth, distanceFromRoot)

	if w.aborted() {
		return abortScore
	}
	if distanceFromRoot >= MaxPly {
		return DrawScore
	}

	// In check there is no stand pat: every evasion is searched.
	if pos.InCheck() {
		return w.quiescenceEvasions(alpha, beta, distanceFromRoot)
	}

	staticScore := colourSign(pos) * w.eval.Evaluate(pos)
	if staticScore >= beta {
		w.stats.QStandPat++
		return staticScore
	}
	alpha = Max(alpha, staticScore)

	moves := pos.QuiescenceMoves()
	if len(moves) == 0 {
		return staticScore
	}

	captureSq, hasCapture := pos.CaptureSquare()
	bestScore := staticScore
	for _, sm := range w.orderer.OrderCaptures(pos, moves) {
		m := sm.move

		/*
			DELTA PRUNING
			Moves are sorted by estimate, so once the best remaining swing
			cannot lift us to alpha nothing after it can either.
		*/
		if staticScore+sm.score+deltaMargin < alpha {
			break
		}
		// Losing captures come last.
		if sm.score < 0 {
			break
		}
		// Even trades only as a recapture.
		if sm.score <= 0 && !(hasCapture && m.To() == captureSq) {
			continue
		}
		if m.IsPromotion() && m.Promotion() != board.Queen {
			continue
		}

		pos.ApplyMove(m)
		score := -w.quiescence(-beta, -alpha, distanceFromRoot+1)
		pos.RevertMove()
		if w.tm.Stopped() {
			return abortScore
		}

		bestScore = Max(bestScore, score)
		alpha = Max(alpha, bestScore)
		if bestScore >= beta {
			w.stats.QBetaCutoffs++
			return bestScore
		}
	}
	return bestScore
}

func (w *worker) quiescenceEvasions(alpha, beta int32, distanceFromRoot int) int32 {
	pos := w.pos
	moves := pos.LegalMoves()
	if len(moves) == 0 {
		return terminalScore(true, distanceFromRoot)
	}

	bestScore := -Infinity
	for _, sm := range w.orderer.OrderCaptures(pos, moves) {
		pos.ApplyMove(sm.move)
		score := -w.quiescence(-beta, -alpha, distanceFromRoot+1)
		pos.RevertMove()
		if w.tm.Stopped() {
			return abortScore
		}

		bestScore = Max(bestScore, score)
		alpha = Max(alpha, bestScore)
		if bestScore >= beta {
			w.stats.QBetaCutoffs++
			return bestScore
		}
	}
	return bestScore
}
