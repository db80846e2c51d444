// structure.go detects the change of character after a sweep.
package smc

import (
	"smc-trader/pkg/types"
)

// CHoCH records a confirmed change of character: a closed M15 bar breaking
// the opposite swing level by at least the configured distance.
type CHoCH struct {
	Direction   types.Side // SELL = bearish break, BUY = bullish break
	Price       float64    // the breaking bar's close
	BrokenLevel float64    // the swing level that gave way
	Timestamp   int64      // breaking bar's open, unix millis
}

// DetectCHoCH looks for a structure break in the expected direction on the
// closed M15 bars after the sweep candle. A bearish CHoCH closes below the
// last swing low formed before the sweep by >= minPips; bullish is the
// mirror against the last swing high.
func DetectCHoCH(closedM15 []types.Bar, swings []Swing, dir types.Side, sweepTs int64, minPips, pip float64) *CHoCH {
	if pip <= 0 {
		return nil
	}

	var level float64
	switch dir {
	case types.SELL:
		s := lastSwingBefore(swings, SwingLow, sweepTs)
		if s == nil {
			return nil
		}
		level = s.Price
	case types.BUY:
		s := lastSwingBefore(swings, SwingHigh, sweepTs)
		if s == nil {
			return nil
		}
		level = s.Price
	default:
		return nil
	}

	for _, bar := range closedM15 {
		if bar.Timestamp <= sweepTs {
			continue
		}
		switch dir {
		case types.SELL:
			if (level-bar.Close)/pip >= minPips {
				return &CHoCH{Direction: dir, Price: bar.Close, BrokenLevel: level, Timestamp: bar.Timestamp}
			}
		case types.BUY:
			if (bar.Close-level)/pip >= minPips {
				return &CHoCH{Direction: dir, Price: bar.Close, BrokenLevel: level, Timestamp: bar.Timestamp}
			}
		}
	}
	return nil
}
