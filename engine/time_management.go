package engine

import (
	"sync/atomic"
	"time"
)

// Clock is sampled once every this many nodes.
const clockCheckInterval = 1024

// TimeManager holds the deadline and node budget shared by all search
// threads. Every method is safe for concurrent use.
type TimeManager struct {
	start     time.Time
	budget    time.Duration // 0 means no deadline
	nodeLimit uint64        // 0 means no limit
	stop      atomic.Bool
}

func NewTimeManager() *TimeManager {
	return &TimeManager{start: time.Now()}
}

// StartSearch resets the manager for a new search. budgetMs <= 0 searches
// until Stop is called or another limit is reached.
func (tm *TimeManager) StartSearch(budgetMs int) {
	tm.start = time.Now()
	tm.budget = 0
	if budgetMs > 0 {
		tm.budget = time.Duration(budgetMs) * time.Millisecond
	}
	tm.nodeLimit = 0
	tm.stop.Store(false)
}

func (tm *TimeManager) SetNodeLimit(nodes uint64) { tm.nodeLimit = nodes }

// Stop makes every subsequent AbortSearch call return true.
func (tm *TimeManager) Stop() { tm.stop.Store(true) }

func (tm *TimeManager) Stopped() bool { return tm.stop.Load() }

func (tm *TimeManager) Elapsed() time.Duration { return time.Since(tm.start) }

/*
AbortSearch is polled at every node. The flag is read each call, the clock
only every clockCheckInterval nodes. Once the budget is exceeded the result
latches, so every frame of every thread unwinds.
*/
func (tm *TimeManager) AbortSearch(nodes uint64) bool {
	if tm.stop.Load() {
		return true
	}
	if tm.nodeLimit > 0 && nodes >= tm.nodeLimit {
		tm.stop.Store(true)
		return true
	}
	if tm.budget > 0 && nodes%clockCheckInterval == 0 && time.Since(tm.start) > tm.budget {
		tm.stop.Store(true)
		return true
	}
	return false
}

// ContinueSearch reports whether another iteration is worth starting. The next
// depth is assumed to cost at least as much as everything searched so far.
func (tm *TimeManager) ContinueSearch() bool {
	if tm.budget == 0 {
		return true
	}
	return time.Since(tm.start) < tm.budget/2
}

// AllocateTime turns UCI clock parameters into a per-move budget in
// milliseconds. movesLeft estimates the remaining moves in the game.
func AllocateTime(remainingMs, incrementMs, movesLeft int) int {
	const overheadMs = 30      // reserve for UCI/IO jitter
	const minMoveMs = 5        // never less than this
	const maxFrac = 0.7        // never spend >70% of remaining time
	const panicThreshMs = 1000 // low on time
	const panicFrac = 0.90     // use 90% of inc in panic

	if movesLeft <= 0 {
		movesLeft = 40
	}
	rem, inc := remainingMs, incrementMs

	var moveTime int
	if inc > 0 {
		if rem < panicThreshMs {
			moveTime = int(float64(inc) * panicFrac)
		} else {
			moveTime = rem/movesLeft + inc
		}
	} else {
		moveTime = rem / movesLeft
	}

	moveTime = Min(moveTime, int(float64(rem)*maxFrac))
	moveTime = Min(moveTime, rem-overheadMs)
	return Max(moveTime, minMoveMs)
}

// EstimateMovesRemaining interpolates between 20 (endgame) and 45 (opening)
// from a 0..24 game phase.
func EstimateMovesRemaining(phase int) int {
	return (Clamp(phase, 0, 24)*25)/24 + 20
}
