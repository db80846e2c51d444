// Package risk enforces account-level limits for the trading engine.
//
// The manager tracks a daily equity baseline and trips a circuit breaker
// when drawdown from that baseline exceeds the configured daily loss limit.
// A tripped breaker blocks all new positions until an operator reset or the
// next UTC day. It also owns position sizing (fixed-fractional risk per
// trade) and the trading-session filter, evaluated in Brasília time.
package risk

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"smc-trader/internal/config"
	"smc-trader/pkg/types"
)

// Brasília is UTC-3 year round since 2019.
var brasilia = time.FixedZone("BRT", -3*60*60)

// Sizing clamps independent of broker limits.
const (
	absoluteMinLots = 0.01
	absoluteMaxLots = 10.0
	lotStep         = 0.01
)

// State is the persistable slice of risk state. Reloading it across a
// restart keeps the daily baseline and a tripped breaker intact.
type State struct {
	BaselineDate   string  `json:"baseline_date"` // UTC "2006-01-02"
	DailyBaseline  float64 `json:"daily_baseline"`
	BreakerTripped bool    `json:"breaker_tripped"`
	BreakerReason  string  `json:"breaker_reason,omitempty"`
}

// Manager evaluates every order attempt against the account limits.
type Manager struct {
	cfg    config.RiskConfig
	logger *slog.Logger

	mu             sync.RWMutex
	baselineDate   string
	dailyBaseline  float64
	equity         float64
	breakerTripped bool
	breakerReason  string
}

// NewManager creates a risk manager with no baseline; the first equity
// update of the day establishes it.
func NewManager(cfg config.RiskConfig, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger.With("component", "risk"),
	}
}

// Restore loads persisted state. Stale state from a previous UTC day is
// discarded so yesterday's breaker cannot block today's trading.
func (rm *Manager) Restore(st State, now time.Time) {
	if st.BaselineDate != utcDate(now) {
		rm.logger.Info("discarding stale risk state", "state_date", st.BaselineDate)
		return
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.baselineDate = st.BaselineDate
	rm.dailyBaseline = st.DailyBaseline
	rm.breakerTripped = st.BreakerTripped
	rm.breakerReason = st.BreakerReason
	if st.BreakerTripped {
		rm.logger.Warn("circuit breaker restored in tripped state", "reason", st.BreakerReason)
	}
}

// Snapshot returns the persistable state.
func (rm *Manager) Snapshot() State {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return State{
		BaselineDate:   rm.baselineDate,
		DailyBaseline:  rm.dailyBaseline,
		BreakerTripped: rm.breakerTripped,
		BreakerReason:  rm.breakerReason,
	}
}

// UpdateEquity feeds the latest account equity into the drawdown check.
// The first update of each UTC day resets the baseline and clears any
// breaker left over from the previous day.
func (rm *Manager) UpdateEquity(equity float64, now time.Time) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	today := utcDate(now)
	if rm.baselineDate != today {
		rm.baselineDate = today
		rm.dailyBaseline = equity
		if rm.breakerTripped {
			rm.breakerTripped = false
			rm.breakerReason = ""
			rm.logger.Info("circuit breaker cleared at day rollover", "date", today)
		}
		rm.logger.Info("daily baseline set", "date", today, "baseline", equity)
	}
	rm.equity = equity

	if !rm.cfg.CircuitBreakerEnabled || rm.breakerTripped || rm.dailyBaseline <= 0 {
		return
	}
	lossPct := (rm.dailyBaseline - equity) / rm.dailyBaseline * 100
	if lossPct >= rm.cfg.DailyLossLimitPercent {
		rm.breakerTripped = true
		rm.breakerReason = fmt.Sprintf("daily loss %.2f%% >= limit %.2f%%", lossPct, rm.cfg.DailyLossLimitPercent)
		rm.logger.Error("CIRCUIT BREAKER TRIPPED",
			"loss_pct", lossPct,
			"baseline", rm.dailyBaseline,
			"equity", equity,
		)
	}
}

// CanOpenPosition is the risk gate for one new order. Returns false with
// the blocking reason when the breaker is tripped, the open-trade cap is
// reached, or the clock is outside the allowed sessions.
func (rm *Manager) CanOpenPosition(now time.Time, openPositions int) (bool, string) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	if rm.breakerTripped {
		return false, "circuit breaker: " + rm.breakerReason
	}
	if rm.cfg.MaxOpenTrades > 0 && openPositions >= rm.cfg.MaxOpenTrades {
		return false, fmt.Sprintf("open trades %d at limit %d", openPositions, rm.cfg.MaxOpenTrades)
	}
	if rm.cfg.SessionFilterEnabled && !rm.inTradingSession(now) {
		return false, "outside trading sessions"
	}
	return true, ""
}

// BreakerTripped reports whether the circuit breaker is engaged.
func (rm *Manager) BreakerTripped() bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.breakerTripped
}

// ResetCircuitBreaker clears a tripped breaker. Operator action only.
func (rm *Manager) ResetCircuitBreaker() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if !rm.breakerTripped {
		return
	}
	rm.breakerTripped = false
	rm.breakerReason = ""
	rm.logger.Warn("circuit breaker manually reset")
}

// Sizing is the outcome of converting the per-trade risk budget into lots.
// CanTrade=false means the budget cannot buy even the minimum tradeable
// size; rounding up would overshoot the risk the operator configured.
type Sizing struct {
	Lots        float64 `json:"lotSize"`
	RiskUSD     float64 `json:"riskUsd"`
	RiskPercent float64 `json:"riskPercent"`
	CanTrade    bool    `json:"canTrade"`
	Reason      string  `json:"reason,omitempty"`
}

// CalculatePositionSize converts the per-trade risk budget into lots:
//
//	lots = (equity × riskPercent/100) / (stopPips × pipValuePerLot)
//
// rounded DOWN to the 0.01 lot step so actual risk never exceeds the
// budget. The result is capped at the broker maximum intersected with the
// engine's own 10-lot ceiling; a result below the broker minimum (or the
// 0.01 floor) is refused rather than rounded up.
func (rm *Manager) CalculatePositionSize(equity, stopPips, pipValuePerLot float64, specs types.VolumeSpecs) Sizing {
	s := Sizing{RiskPercent: rm.cfg.RiskPercent}
	if equity <= 0 || stopPips <= 0 || pipValuePerLot <= 0 {
		s.Reason = "invalid sizing inputs"
		return s
	}

	s.RiskUSD = equity * rm.cfg.RiskPercent / 100
	raw := s.RiskUSD / (stopPips * pipValuePerLot)

	lots, _ := decimal.NewFromFloat(raw).
		Div(decimal.NewFromFloat(lotStep)).
		Floor().
		Mul(decimal.NewFromFloat(lotStep)).
		Float64()

	lo := absoluteMinLots
	if specs.MinLots > lo {
		lo = specs.MinLots
	}
	hi := absoluteMaxLots
	if specs.MaxLots > 0 && specs.MaxLots < hi {
		hi = specs.MaxLots
	}

	if lots < lo {
		s.Lots = lots
		s.Reason = fmt.Sprintf("size %.2f below minimum %.2f", lots, lo)
		return s
	}
	if lots > hi {
		lots = hi
	}
	s.Lots = lots
	s.CanTrade = true
	return s
}

// inTradingSession checks the London and New York windows in Brasília time.
func (rm *Manager) inTradingSession(now time.Time) bool {
	local := now.In(brasilia)
	m := local.Hour()*60 + local.Minute()
	return inWindow(m, rm.cfg.LondonStart, rm.cfg.LondonEnd) ||
		inWindow(m, rm.cfg.NYStart, rm.cfg.NYEnd)
}

// inWindow tests minutes-of-day against an "HH:MM" window. Malformed
// windows are rejected by config validation, so parse errors read as
// "closed".
func inWindow(minutes int, start, end string) bool {
	s, err1 := time.Parse("15:04", start)
	e, err2 := time.Parse("15:04", end)
	if err1 != nil || err2 != nil {
		return false
	}
	sm := s.Hour()*60 + s.Minute()
	em := e.Hour()*60 + e.Minute()
	return minutes >= sm && minutes < em
}

func utcDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
