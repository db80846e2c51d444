// Package smc implements the institutional Smart Money Concepts strategy:
// session context, liquidity pools, sweep detection, change of character,
// fair value gaps, and the per-symbol state machine that sequences them
// into a single entry signal.
//
// Everything in this package operates on CLOSED candles only. Forming bars
// never advance state.
package smc

import (
	"smc-trader/pkg/types"
)

// SwingKind separates swing highs from swing lows.
type SwingKind string

const (
	SwingHigh SwingKind = "HIGH"
	SwingLow  SwingKind = "LOW"
)

// Swing is one fractal turning point on M15.
type Swing struct {
	Kind      SwingKind
	Price     float64
	Timestamp int64 // bar open, unix millis
}

// DetectSwings finds fractal swing points: a bar whose high (low) strictly
// exceeds the highs (lows) of `lookback` bars on each side. Returns the
// most recent maxPerType swings of each kind, oldest first.
func DetectSwings(bars []types.Bar, lookback, maxPerType int) []Swing {
	if lookback < 1 {
		lookback = 1
	}
	var highs, lows []Swing

	for i := lookback; i < len(bars)-lookback; i++ {
		isHigh, isLow := true, true
		for j := i - lookback; j <= i+lookback; j++ {
			if j == i {
				continue
			}
			if bars[j].High >= bars[i].High {
				isHigh = false
			}
			if bars[j].Low <= bars[i].Low {
				isLow = false
			}
		}
		if isHigh {
			highs = append(highs, Swing{Kind: SwingHigh, Price: bars[i].High, Timestamp: bars[i].Timestamp})
		}
		if isLow {
			lows = append(lows, Swing{Kind: SwingLow, Price: bars[i].Low, Timestamp: bars[i].Timestamp})
		}
	}

	if maxPerType > 0 {
		if len(highs) > maxPerType {
			highs = highs[len(highs)-maxPerType:]
		}
		if len(lows) > maxPerType {
			lows = lows[len(lows)-maxPerType:]
		}
	}

	out := make([]Swing, 0, len(highs)+len(lows))
	out = append(out, highs...)
	out = append(out, lows...)
	return out
}

// lastSwingBefore returns the most recent swing of the given kind whose bar
// opened before ts, or nil.
func lastSwingBefore(swings []Swing, kind SwingKind, ts int64) *Swing {
	var best *Swing
	for i := range swings {
		s := &swings[i]
		if s.Kind != kind || s.Timestamp >= ts {
			continue
		}
		if best == nil || s.Timestamp > best.Timestamp {
			best = s
		}
	}
	return best
}
