// context.go grades the trading environment from the previous session.
//
// The session snapshot summarizes a completed session window from closed
// M15 bars; the context engine turns that plus the live price into a
// go/no-go verdict and the directions worth hunting.
package smc

import (
	"time"

	"smc-trader/internal/market"
	"smc-trader/pkg/types"
)

// SessionSnapshot summarizes one session window.
type SessionSnapshot struct {
	Type        market.Session
	High        float64
	Low         float64
	Range       float64
	Open        float64
	Close       float64
	StartTime   time.Time
	EndTime     time.Time
	IsComplete  bool
	CandleCount int
}

// BuildSessionSnapshot aggregates the closed M15 bars inside [start, end).
// CandleCount 0 means no usable data for the window.
func BuildSessionSnapshot(sess market.Session, start, end time.Time, m15 []types.Bar, now time.Time) SessionSnapshot {
	snap := SessionSnapshot{
		Type:       sess,
		StartTime:  start,
		EndTime:    end,
		IsComplete: !end.After(now),
	}
	startMs, endMs := start.UnixMilli(), end.UnixMilli()

	for _, bar := range m15 {
		if bar.Timestamp < startMs || bar.Timestamp >= endMs {
			continue
		}
		if snap.CandleCount == 0 {
			snap.Open = bar.Open
			snap.High = bar.High
			snap.Low = bar.Low
		}
		if bar.High > snap.High {
			snap.High = bar.High
		}
		if bar.Low < snap.Low {
			snap.Low = bar.Low
		}
		snap.Close = bar.Close
		snap.CandleCount++
	}
	snap.Range = snap.High - snap.Low
	return snap
}

// Grade ranks how tradeable the environment is. Anything at or below
// GradeNoTrade parks the state machine in IDLE.
type Grade string

const (
	GradeA       Grade = "A"
	GradeB       Grade = "B"
	GradeNoTrade Grade = "NO_TRADE"
)

// Context is the verdict for one analysis cycle.
type Context struct {
	Grade             Grade
	Bias              types.Side // dominant hunt direction, empty when both
	CanTrade          bool
	BlockReason       string
	AllowedDirections []types.Side
}

// allows reports whether the context permits entries in the direction.
func (c Context) allows(dir types.Side) bool {
	for _, d := range c.AllowedDirections {
		if d == dir {
			return true
		}
	}
	return false
}

// minSessionRangePips: a previous session narrower than this carries no
// meaningful liquidity to sweep.
const minSessionRangePips = 10

// EvaluateContext grades the environment from the previous session's
// structure and the current price position relative to it.
//
//   - no previous-session data or a compressed range → NO_TRADE
//   - price above the previous high → liquidity above is taken, hunt SELLs
//   - price below the previous low → hunt BUYs
//   - price inside the range → both directions, graded B
func EvaluateContext(prev SessionSnapshot, price, pip float64) Context {
	if prev.CandleCount == 0 {
		return Context{Grade: GradeNoTrade, BlockReason: "no previous session data"}
	}
	if pip > 0 && prev.Range/pip < minSessionRangePips {
		return Context{Grade: GradeNoTrade, BlockReason: "previous session range too narrow"}
	}

	switch {
	case price > prev.High:
		return Context{
			Grade: GradeA, Bias: types.SELL, CanTrade: true,
			AllowedDirections: []types.Side{types.SELL},
		}
	case price < prev.Low:
		return Context{
			Grade: GradeA, Bias: types.BUY, CanTrade: true,
			AllowedDirections: []types.Side{types.BUY},
		}
	default:
		return Context{
			Grade: GradeB, CanTrade: true,
			AllowedDirections: []types.Side{types.BUY, types.SELL},
		}
	}
}
