package risk

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"smc-trader/internal/config"
	"smc-trader/pkg/types"
)

func testConfig() config.RiskConfig {
	return config.RiskConfig{
		RiskPercent:           1.0,
		DailyLossLimitPercent: 3.0,
		CircuitBreakerEnabled: true,
		MaxOpenTrades:         3,
		SessionFilterEnabled:  true,
		LondonStart:           "04:00",
		LondonEnd:             "09:00",
		NYStart:               "09:30",
		NYEnd:                 "14:00",
	}
}

func testManager(cfg config.RiskConfig) *Manager {
	return NewManager(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// 12:00 UTC = 09:00 Brasília, inside neither window's gap — NY starts 09:30.
func utc(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

func TestBreakerTripsAtDailyLossLimit(t *testing.T) {
	t.Parallel()
	rm := testManager(testConfig())
	now := utc(10, 0)

	rm.UpdateEquity(10000, now)
	rm.UpdateEquity(9800, now.Add(time.Hour)) // -2%
	if rm.BreakerTripped() {
		t.Fatal("breaker tripped at 2% loss, limit is 3%")
	}

	rm.UpdateEquity(9700, now.Add(2*time.Hour)) // -3%
	if !rm.BreakerTripped() {
		t.Fatal("breaker not tripped at 3% loss")
	}

	ok, reason := rm.CanOpenPosition(now.Add(3*time.Hour), 0)
	if ok {
		t.Error("CanOpenPosition() = true with tripped breaker")
	}
	if !strings.Contains(reason, "circuit breaker") {
		t.Errorf("reason = %q, want circuit breaker mention", reason)
	}
}

func TestBreakerClearsAtDayRollover(t *testing.T) {
	t.Parallel()
	rm := testManager(testConfig())

	rm.UpdateEquity(10000, utc(10, 0))
	rm.UpdateEquity(9600, utc(11, 0)) // -4%, trips
	if !rm.BreakerTripped() {
		t.Fatal("breaker not tripped")
	}

	// First update of the next UTC day resets baseline and breaker.
	nextDay := utc(10, 0).Add(24 * time.Hour)
	rm.UpdateEquity(9600, nextDay)
	if rm.BreakerTripped() {
		t.Error("breaker still tripped after day rollover")
	}

	// New baseline is 9600, so 9600 is 0% drawdown.
	rm.UpdateEquity(9400, nextDay.Add(time.Hour)) // -2.08%
	if rm.BreakerTripped() {
		t.Error("breaker tripped against stale baseline")
	}
}

func TestBreakerDisabledNeverTrips(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.CircuitBreakerEnabled = false
	rm := testManager(cfg)

	rm.UpdateEquity(10000, utc(10, 0))
	rm.UpdateEquity(5000, utc(11, 0)) // -50%
	if rm.BreakerTripped() {
		t.Error("breaker tripped while disabled")
	}
}

func TestManualReset(t *testing.T) {
	t.Parallel()
	rm := testManager(testConfig())
	rm.UpdateEquity(10000, utc(10, 0))
	rm.UpdateEquity(9000, utc(11, 0))
	if !rm.BreakerTripped() {
		t.Fatal("breaker not tripped")
	}

	rm.ResetCircuitBreaker()
	if rm.BreakerTripped() {
		t.Error("breaker still tripped after reset")
	}
}

func TestMaxOpenTradesGate(t *testing.T) {
	t.Parallel()
	rm := testManager(testConfig())
	now := utc(13, 0) // 10:00 Brasília, inside NY window

	if ok, _ := rm.CanOpenPosition(now, 2); !ok {
		t.Error("blocked below the open-trade cap")
	}
	if ok, _ := rm.CanOpenPosition(now, 3); ok {
		t.Error("allowed at the open-trade cap")
	}
}

func TestSessionFilterBrasilia(t *testing.T) {
	t.Parallel()
	rm := testManager(testConfig())

	cases := []struct {
		utc  time.Time
		want bool
	}{
		{utc(7, 30), true},   // 04:30 BRT, London
		{utc(11, 59), true},  // 08:59 BRT, London
		{utc(12, 10), false}, // 09:10 BRT, gap between sessions
		{utc(13, 0), true},   // 10:00 BRT, NY
		{utc(16, 59), true},  // 13:59 BRT, NY
		{utc(17, 0), false},  // 14:00 BRT, NY closed
		{utc(2, 0), false},   // 23:00 BRT, overnight
	}
	for _, tc := range cases {
		ok, _ := rm.CanOpenPosition(tc.utc, 0)
		if ok != tc.want {
			t.Errorf("CanOpenPosition(%s UTC) = %v, want %v", tc.utc.Format("15:04"), ok, tc.want)
		}
	}
}

func TestSessionFilterDisabled(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.SessionFilterEnabled = false
	rm := testManager(cfg)

	if ok, _ := rm.CanOpenPosition(utc(2, 0), 0); !ok {
		t.Error("blocked overnight with session filter disabled")
	}
}

func TestPositionSizeRoundsDown(t *testing.T) {
	t.Parallel()
	rm := testManager(testConfig())
	specs := types.VolumeSpecs{MinLots: 0.01, MaxLots: 100, StepLots: 0.01}

	// 10000 × 1% = 100 USD; 15 pips × 10 USD/pip/lot = 150 → 0.666... lots
	s := rm.CalculatePositionSize(10000, 15, 10, specs)
	if !s.CanTrade {
		t.Fatalf("CanTrade = false (%s), want tradeable", s.Reason)
	}
	if s.Lots != 0.66 {
		t.Errorf("lots = %v, want 0.66 (rounded down)", s.Lots)
	}
	if s.RiskUSD != 100 {
		t.Errorf("riskUSD = %v, want 100", s.RiskUSD)
	}
}

func TestPositionSizeRefusesBelowMinimum(t *testing.T) {
	t.Parallel()
	rm := testManager(testConfig())
	specs := types.VolumeSpecs{MinLots: 0.01, MaxLots: 100, StepLots: 0.01}

	// 100 × 1% = 1 USD budget; 50 pips × 10 USD/pip/lot needs 500 USD per
	// lot, so the budget buys 0.002 lots. Rounding up to 0.01 would risk
	// five times the budget; the trade must be refused instead.
	s := rm.CalculatePositionSize(100, 50, 10, specs)
	if s.CanTrade {
		t.Fatalf("CanTrade = true with %v lots, want refusal", s.Lots)
	}
	if !strings.Contains(s.Reason, "below minimum") {
		t.Errorf("reason = %q, want below-minimum mention", s.Reason)
	}

	// Broker minimum above the computed size refuses too.
	specs.MinLots = 0.7
	s = rm.CalculatePositionSize(10000, 15, 10, specs) // 0.66 lots
	if s.CanTrade {
		t.Errorf("CanTrade = true with broker min 0.7 and size %v", s.Lots)
	}
}

func TestPositionSizeCapsAtCeiling(t *testing.T) {
	t.Parallel()
	rm := testManager(testConfig())
	specs := types.VolumeSpecs{MinLots: 0.01, MaxLots: 100, StepLots: 0.01}

	// Huge equity: caps at the 10-lot ceiling even with MaxLots 100.
	s := rm.CalculatePositionSize(10_000_000, 10, 10, specs)
	if !s.CanTrade || s.Lots != 10 {
		t.Errorf("cap: lots = %v canTrade = %v, want 10 true", s.Lots, s.CanTrade)
	}
}

func TestPositionSizeInvalidInputs(t *testing.T) {
	t.Parallel()
	rm := testManager(testConfig())
	specs := types.VolumeSpecs{MinLots: 0.01, MaxLots: 100, StepLots: 0.01}

	if s := rm.CalculatePositionSize(10000, 0, 10, specs); s.CanTrade {
		t.Errorf("zero stop: CanTrade = true, want refusal")
	}
	if s := rm.CalculatePositionSize(0, 15, 10, specs); s.CanTrade {
		t.Errorf("zero equity: CanTrade = true, want refusal")
	}
}

func TestRestoreDiscardsStaleState(t *testing.T) {
	t.Parallel()
	rm := testManager(testConfig())

	rm.Restore(State{
		BaselineDate:   "2026-03-01",
		DailyBaseline:  10000,
		BreakerTripped: true,
		BreakerReason:  "daily loss",
	}, utc(10, 0)) // 2026-03-02

	if rm.BreakerTripped() {
		t.Error("stale tripped state survived restore")
	}
}

func TestRestoreKeepsSameDayState(t *testing.T) {
	t.Parallel()
	rm := testManager(testConfig())

	rm.Restore(State{
		BaselineDate:   "2026-03-02",
		DailyBaseline:  10000,
		BreakerTripped: true,
		BreakerReason:  "daily loss",
	}, utc(10, 0))

	if !rm.BreakerTripped() {
		t.Error("same-day tripped state discarded")
	}
	st := rm.Snapshot()
	if st.DailyBaseline != 10000 {
		t.Errorf("baseline = %v, want 10000", st.DailyBaseline)
	}
}
