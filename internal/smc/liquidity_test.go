package smc

import (
	"testing"
	"time"

	"smc-trader/internal/config"
	"smc-trader/internal/market"
	"smc-trader/pkg/types"
)

func smcConfig() config.SMCConfig {
	return config.SMCConfig{
		ChochMinPips:        5,
		MinGapPips:          2,
		SwingLookback:       2,
		MaxSwingsPerType:    3,
		MaxTradesPerSession: 2,
		PoolTTL:             24 * time.Hour,
		WaitSweepTimeout:    90 * time.Minute,
		WaitChochTimeout:    60 * time.Minute,
		WaitFVGTimeout:      60 * time.Minute,
		WaitMitigTimeout:    60 * time.Minute,
		WaitEntryTimeout:    30 * time.Minute,
		CooldownTimeout:     20 * time.Minute,
		StopPips:            15,
		TargetPips:          30,
	}
}

func prevLondon(now time.Time) SessionSnapshot {
	start := time.Date(now.Year(), now.Month(), now.Day(), 7, 0, 0, 0, time.UTC)
	return SessionSnapshot{
		Type: market.SessionLondon,
		High: 1.1050, Low: 1.1000, Range: 0.0050,
		Open: 1.1010, Close: 1.1040,
		StartTime: start, EndTime: start.Add(5 * time.Hour),
		IsComplete: true, CandleCount: 20,
	}
}

func TestPoolKeyStableAcrossPriceNoise(t *testing.T) {
	t.Parallel()
	a := PoolKey(PoolSessionHigh, 1.10500, 1000)
	b := PoolKey(PoolSessionHigh, 1.1050000001, 1000)
	if a != b {
		t.Errorf("keys differ for same 5dp price: %q vs %q", a, b)
	}
	if a == PoolKey(PoolSessionLow, 1.10500, 1000) {
		t.Error("keys collide across pool types")
	}
}

func TestBuildPoolsFromAllSources(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)
	e := NewLiquidityEngine(smcConfig())

	swings := []Swing{
		{Kind: SwingHigh, Price: 1.1044, Timestamp: now.Add(-2 * time.Hour).UnixMilli()},
		{Kind: SwingLow, Price: 1.1004, Timestamp: now.Add(-3 * time.Hour).UnixMilli()},
	}
	pools := e.BuildPools(prevLondon(now), 1.1080, 1.0980, now.Add(-27*time.Hour), swings, now)

	if len(pools) != 6 {
		t.Fatalf("pool count = %d, want 6 (session×2, daily×2, swing×2)", len(pools))
	}
	// Highest priority first.
	if pools[0].Priority != 1 || pools[len(pools)-1].Priority != 3 {
		t.Errorf("pools not ordered by priority: first %d, last %d",
			pools[0].Priority, pools[len(pools)-1].Priority)
	}
}

func TestRebuildPreservesSweptState(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)
	e := NewLiquidityEngine(smcConfig())
	prev := prevLondon(now)

	e.BuildPools(prev, 0, 0, time.Time{}, nil, now)

	// Wick above the session high, close back below: a sweep.
	sweep := types.Bar{
		Timestamp: now.UnixMilli(),
		Open:      1.1040, High: 1.1060, Low: 1.1035, Close: 1.1045,
	}
	swept := e.DetectSweeps([]types.Bar{sweep})
	if len(swept) != 1 || swept[0].Type != PoolSessionHigh {
		t.Fatalf("swept = %+v, want one SESSION_HIGH", swept)
	}

	// Rebuild with inputs in a different shape: swept must survive.
	pools := e.BuildPools(prev, 1.1090, 1.0970, now.Add(-27*time.Hour), []Swing{
		{Kind: SwingLow, Price: 1.1004, Timestamp: now.Add(-3 * time.Hour).UnixMilli()},
	}, now.Add(30*time.Second))

	var found *Pool
	for _, p := range pools {
		if p.Type == PoolSessionHigh {
			found = p
		}
	}
	if found == nil {
		t.Fatal("session high pool missing after rebuild")
	}
	if !found.Swept {
		t.Error("rebuild forgot the sweep")
	}
	if found.SweptCandle != sweep.Timestamp {
		t.Errorf("swept candle = %d, want %d", found.SweptCandle, sweep.Timestamp)
	}
	if found.SweepDirection != types.SELL {
		t.Errorf("sweep direction = %s, want SELL", found.SweepDirection)
	}
}

func TestSweepRequiresCloseBackInside(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)
	e := NewLiquidityEngine(smcConfig())
	e.BuildPools(prevLondon(now), 0, 0, time.Time{}, nil, now)

	// Breakout bar: closes above the level, not a sweep.
	breakout := types.Bar{
		Timestamp: now.UnixMilli(),
		Open:      1.1040, High: 1.1070, Low: 1.1035, Close: 1.1065,
	}
	if swept := e.DetectSweeps([]types.Bar{breakout}); len(swept) != 0 {
		t.Errorf("breakout counted as sweep: %+v", swept)
	}
}

func TestLowPoolSweep(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)
	e := NewLiquidityEngine(smcConfig())
	e.BuildPools(prevLondon(now), 0, 0, time.Time{}, nil, now)

	bar := types.Bar{
		Timestamp: now.UnixMilli(),
		Open:      1.1010, High: 1.1015, Low: 1.0990, Close: 1.1008,
	}
	swept := e.DetectSweeps([]types.Bar{bar})
	if len(swept) != 1 || swept[0].Type != PoolSessionLow {
		t.Fatalf("swept = %+v, want one SESSION_LOW", swept)
	}
	if swept[0].SweepDirection != types.BUY {
		t.Errorf("direction = %s, want BUY", swept[0].SweepDirection)
	}
}

func TestExpiredPoolsDropped(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)
	e := NewLiquidityEngine(smcConfig())
	prev := prevLondon(now)

	e.BuildPools(prev, 0, 0, time.Time{}, nil, now)
	pools := e.BuildPools(prev, 0, 0, time.Time{}, nil, now.Add(25*time.Hour))
	if len(pools) != 0 {
		t.Errorf("pools past TTL survived: %+v", pools)
	}
}
