// fvg.go detects and tracks fair value gaps on M5.
//
// A fair value gap is a three-candle imbalance: in a bearish move the
// first candle's low sits above the third candle's high, leaving a price
// band nothing traded through. The state machine waits for price to come
// back and mitigate the gap before arming an entry; a close through the
// far edge invalidates it.
package smc

import (
	"fmt"

	"smc-trader/pkg/types"
)

// FVG is one tracked fair value gap. Low/High are the zone bounds.
type FVG struct {
	ID             string
	Direction      types.Side // SELL for a bearish gap, BUY for bullish
	High           float64
	Low            float64
	GapSizePips    float64
	CreatedAt      int64 // third candle's open timestamp, unix millis
	Mitigated      bool
	MitigatedAt    int64
	MitigatedPrice float64
	Invalidated    bool
}

// DetectFVG scans closed M5 bars after the afterTs watermark for the most
// recent gap in the given direction with size >= minGapPips. Returns nil
// when no qualifying gap exists.
func DetectFVG(closedM5 []types.Bar, dir types.Side, afterTs int64, minGapPips, pip float64) *FVG {
	if pip <= 0 {
		return nil
	}
	// Newest triple first so the freshest imbalance wins.
	for i := len(closedM5) - 1; i >= 2; i-- {
		first, third := closedM5[i-2], closedM5[i]
		if first.Timestamp <= afterTs {
			break
		}

		var low, high float64
		switch dir {
		case types.SELL:
			if first.Low <= third.High {
				continue
			}
			low, high = third.High, first.Low
		case types.BUY:
			if third.Low <= first.High {
				continue
			}
			low, high = first.High, third.Low
		default:
			return nil
		}

		gapPips := (high - low) / pip
		if gapPips < minGapPips {
			continue
		}
		return &FVG{
			ID:          fmt.Sprintf("fvg:%s:%d", dir, third.Timestamp),
			Direction:   dir,
			High:        high,
			Low:         low,
			GapSizePips: gapPips,
			CreatedAt:   third.Timestamp,
		}
	}
	return nil
}

// Update advances the gap's lifecycle with one closed M5 bar.
//
// Mitigation: price re-enters the zone (from below for a bearish gap,
// from above for a bullish one). Invalidation: the bar CLOSES through the
// far edge, meaning the imbalance has been fully repriced. A bar can do
// both; invalidation wins.
func (f *FVG) Update(bar types.Bar) {
	if f.Invalidated || bar.Timestamp <= f.CreatedAt {
		return
	}

	switch f.Direction {
	case types.SELL:
		if bar.Close > f.High {
			f.Invalidated = true
			return
		}
		if !f.Mitigated && bar.High >= f.Low {
			f.mitigate(bar.Timestamp, bar.High)
		}
	case types.BUY:
		if bar.Close < f.Low {
			f.Invalidated = true
			return
		}
		if !f.Mitigated && bar.Low <= f.High {
			f.mitigate(bar.Timestamp, bar.Low)
		}
	}
}

func (f *FVG) mitigate(ts int64, price float64) {
	f.Mitigated = true
	f.MitigatedAt = ts
	f.MitigatedPrice = price
}
