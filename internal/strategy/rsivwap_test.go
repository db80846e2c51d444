package strategy

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"smc-trader/internal/config"
	"smc-trader/pkg/types"
)

func rsiVwapConfig() config.RSIVwapConfig {
	return config.RSIVwapConfig{
		RSIPeriod:  14,
		Oversold:   30,
		Overbought: 70,
		StopPips:   12,
		TargetPips: 24,
	}
}

func newRSIVwap() *RSIVwap {
	return NewRSIVwap(rsiVwapConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// m5Series builds n bars ending just before now, each close moved by
// step from the previous one.
func m5Series(now time.Time, n int, start, step float64) []types.Bar {
	bars := make([]types.Bar, n)
	c := start
	for i := 0; i < n; i++ {
		ts := now.Add(time.Duration(i-n) * 5 * time.Minute)
		bars[i] = types.Bar{
			Timestamp: ts.UnixMilli(),
			Open:      c,
			High:      c + math.Abs(step),
			Low:       c - math.Abs(step),
			Close:     c + step,
			Volume:    100,
		}
		c += step
	}
	return bars
}

func TestRSIExtremes(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

	up := m5Series(now, 20, 1.1000, 0.0005)
	if rsi, ok := RSI(up, 14); !ok || rsi != 100 {
		t.Errorf("monotonic rally RSI = %v %v, want 100", rsi, ok)
	}

	down := m5Series(now, 20, 1.1100, -0.0005)
	if rsi, ok := RSI(down, 14); !ok || rsi != 0 {
		t.Errorf("monotonic selloff RSI = %v %v, want 0", rsi, ok)
	}

	flat := m5Series(now, 20, 1.1000, 0)
	if rsi, ok := RSI(flat, 14); !ok || rsi != 50 {
		t.Errorf("flat series RSI = %v %v, want 50", rsi, ok)
	}
}

func TestRSIInsufficientHistory(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	if _, ok := RSI(m5Series(now, 10, 1.1, 0.0001), 14); ok {
		t.Error("RSI computed from 10 bars with period 14")
	}
}

func TestAnchoredVWAP(t *testing.T) {
	t.Parallel()
	anchor := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	bars := []types.Bar{
		// Before the anchor: must be excluded.
		{Timestamp: anchor.Add(-5 * time.Minute).UnixMilli(), High: 9, Low: 9, Close: 9, Volume: 1000},
		{Timestamp: anchor.UnixMilli(), High: 1.2, Low: 1.0, Close: 1.1, Volume: 100},
		{Timestamp: anchor.Add(5 * time.Minute).UnixMilli(), High: 1.4, Low: 1.2, Close: 1.3, Volume: 300},
	}
	// Typical prices 1.1 and 1.3, weights 100 and 300 → 1.25.
	v, ok := AnchoredVWAP(bars, anchor)
	if !ok || math.Abs(v-1.25) > 1e-9 {
		t.Errorf("vwap = %v %v, want 1.25", v, ok)
	}
}

func TestAnchoredVWAPZeroVolume(t *testing.T) {
	t.Parallel()
	anchor := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	bars := []types.Bar{
		{Timestamp: anchor.UnixMilli(), High: 1.1, Low: 1.1, Close: 1.1},
		{Timestamp: anchor.Add(5 * time.Minute).UnixMilli(), High: 1.3, Low: 1.3, Close: 1.3},
	}
	v, ok := AnchoredVWAP(bars, anchor)
	if !ok || math.Abs(v-1.2) > 1e-9 {
		t.Errorf("zero-volume vwap = %v %v, want simple mean 1.2", v, ok)
	}
}

func TestAnalyzeOversoldBelowVWAP(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	s := newRSIVwap()

	// Steady selloff: RSI 0, price well below the day's VWAP.
	sig := s.Analyze(types.MTFBundle{
		Symbol: "EURUSD",
		M5:     m5Series(now, 30, 1.1100, -0.0005),
		Bid:    1.0950,
		Ask:    1.0952,
		Now:    now,
	})
	if !sig.Valid {
		t.Fatalf("no signal: %s", sig.Reason)
	}
	if sig.Direction != types.BUY {
		t.Errorf("direction = %s, want BUY", sig.Direction)
	}
	if sig.Confidence < 50 || sig.Confidence > maxConfidence {
		t.Errorf("confidence = %d, want within [50, %d]", sig.Confidence, maxConfidence)
	}
	if sig.Source != "RSI_VWAP" {
		t.Errorf("source = %q", sig.Source)
	}
}

func TestAnalyzeOverboughtAboveVWAP(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	s := newRSIVwap()

	sig := s.Analyze(types.MTFBundle{
		Symbol: "EURUSD",
		M5:     m5Series(now, 30, 1.0900, 0.0005),
		Bid:    1.1050,
		Ask:    1.1052,
		Now:    now,
	})
	if !sig.Valid || sig.Direction != types.SELL {
		t.Fatalf("signal = %+v, want valid SELL", sig)
	}
}

func TestAnalyzeRejectsDisagreement(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	s := newRSIVwap()

	// Oversold RSI but price quoted above the VWAP: no trade.
	sig := s.Analyze(types.MTFBundle{
		Symbol: "EURUSD",
		M5:     m5Series(now, 30, 1.1100, -0.0005),
		Bid:    1.1200,
		Ask:    1.1202,
		Now:    now,
	})
	if sig.Valid {
		t.Errorf("signal fired without vwap agreement: %+v", sig)
	}
}

func TestAnalyzeNeedsHistory(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	sig := newRSIVwap().Analyze(types.MTFBundle{Symbol: "EURUSD", Now: now})
	if sig.Valid {
		t.Error("signal from empty bundle")
	}
}
