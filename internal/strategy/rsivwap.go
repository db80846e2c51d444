// Package strategy implements the indicator-based signal generator that
// runs alongside the institutional flow machine: RSI mean reversion with
// a session-anchored VWAP filter on M5 candles.
//
// Per analysis cycle:
//  1. Compute Wilder RSI over the last rsiPeriod M5 closes.
//  2. Compute VWAP anchored at the current trading day open (21:00 UTC).
//  3. Emit BUY when RSI is oversold and price trades below VWAP,
//     SELL when RSI is overbought and price trades above VWAP.
//
// Both conditions must agree. RSI alone fires into every pullback of a
// strong trend; the VWAP side keeps entries on the cheap side of the
// day's volume-weighted average.
package strategy

import (
	"fmt"
	"log/slog"
	"time"

	"smc-trader/internal/config"
	"smc-trader/internal/market"
	"smc-trader/pkg/types"
)

const maxConfidence = 80

// RSIVwap evaluates one MTF bundle at a time and keeps no per-symbol
// state, so a single instance serves every symbol.
type RSIVwap struct {
	cfg    config.RSIVwapConfig
	logger *slog.Logger
}

func NewRSIVwap(cfg config.RSIVwapConfig, logger *slog.Logger) *RSIVwap {
	return &RSIVwap{
		cfg:    cfg,
		logger: logger.With("component", "rsi_vwap"),
	}
}

// Analyze returns a directional signal, or an invalid one with the
// reason the setup did not qualify.
func (r *RSIVwap) Analyze(b types.MTFBundle) types.Signal {
	rsi, ok := RSI(b.M5, r.cfg.RSIPeriod)
	if !ok {
		return types.Signal{Source: "RSI_VWAP", Reason: "insufficient M5 history"}
	}

	dayOpen := market.TradingDay(b.Now).Add(-3 * time.Hour)
	vwap, ok := AnchoredVWAP(b.M5, dayOpen)
	if !ok {
		return types.Signal{Source: "RSI_VWAP", Reason: "no bars in current trading day"}
	}

	mid := (b.Bid + b.Ask) / 2

	var dir types.Side
	var excess float64
	switch {
	case rsi <= r.cfg.Oversold && mid < vwap:
		dir = types.BUY
		excess = r.cfg.Oversold - rsi
	case rsi >= r.cfg.Overbought && mid > vwap:
		dir = types.SELL
		excess = rsi - r.cfg.Overbought
	default:
		return types.Signal{
			Source: "RSI_VWAP",
			Reason: fmt.Sprintf("rsi %.1f vwap %.5f mid %.5f: no setup", rsi, vwap, mid),
		}
	}

	conf := 55 + int(excess)
	if conf > maxConfidence {
		conf = maxConfidence
	}

	sig := types.Signal{
		Valid:      true,
		Direction:  dir,
		Confidence: conf,
		Reason:     fmt.Sprintf("rsi %.1f, price %.5f vs vwap %.5f", rsi, mid, vwap),
		Source:     "RSI_VWAP",
		StopPips:   r.cfg.StopPips,
		TargetPips: r.cfg.TargetPips,
	}
	r.logger.Debug("signal",
		"symbol", b.Symbol,
		"direction", dir,
		"rsi", rsi,
		"vwap", vwap,
		"confidence", conf,
	)
	return sig
}

// RSI computes Wilder's relative strength index over the closing prices
// of the most recent period+1 bars. Returns false when there is not
// enough history.
func RSI(bars []types.Bar, period int) (float64, bool) {
	if period <= 0 || len(bars) < period+1 {
		return 0, false
	}

	closes := make([]float64, period+1)
	for i := range closes {
		closes[i] = bars[len(bars)-period-1+i].Close
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, true
		}
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// AnchoredVWAP computes the volume-weighted average of typical prices
// over the bars at or after the anchor. Tick volume can legitimately be
// zero on quiet candles; when the whole window carries no volume, each
// bar weighs equally.
func AnchoredVWAP(bars []types.Bar, anchor time.Time) (float64, bool) {
	anchorMs := anchor.UnixMilli()

	var sumPV, sumV, sumP float64
	n := 0
	for _, b := range bars {
		if b.Timestamp < anchorMs {
			continue
		}
		tp := (b.High + b.Low + b.Close) / 3
		v := float64(b.Volume)
		sumPV += tp * v
		sumV += v
		sumP += tp
		n++
	}
	if n == 0 {
		return 0, false
	}
	if sumV == 0 {
		return sumP / float64(n), true
	}
	return sumPV / sumV, true
}
