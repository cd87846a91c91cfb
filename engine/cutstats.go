package engine

import "github.com/rs/zerolog"

// CutStatistics collects counts for each pruning/cutoff mechanism.
type CutStatistics struct {
	TTCutoffs       uint64
	NullMoveCutoffs uint64
	FutilityPrunes  uint64
	LateMovePrunes  uint64
	BetaCutoffs     uint64
	DeferredMoves   uint64
	QStandPat       uint64
	QBetaCutoffs    uint64
}

func (c *CutStatistics) Add(o CutStatistics) {
	c.TTCutoffs += o.TTCutoffs
	c.NullMoveCutoffs += o.NullMoveCutoffs
	c.FutilityPrunes += o.FutilityPrunes
	c.LateMovePrunes += o.LateMovePrunes
	c.BetaCutoffs += o.BetaCutoffs
	c.DeferredMoves += o.DeferredMoves
	c.QStandPat += o.QStandPat
	c.QBetaCutoffs += o.QBetaCutoffs
}

// MarshalZerologObject lets the stats be logged as one event field.
func (c CutStatistics) MarshalZerologObject(e *zerolog.Event) {
	e.Uint64("tt", c.TTCutoffs).
		Uint64("null", c.NullMoveCutoffs).
		Uint64("futility", c.FutilityPrunes).
		Uint64("lmr", c.LateMovePrunes).
		Uint64("beta", c.BetaCutoffs).
		Uint64("deferred", c.DeferredMoves).
		Uint64("qstandpat", c.QStandPat).
		Uint64("qbeta", c.QBetaCutoffs)
}
