// strategy.go orchestrates the per-symbol institutional setup hunt.
//
// Each analysis cycle receives a multi-timeframe bundle of CLOSED bars and
// advances one symbol's state machine at most one phase. New market
// evidence is consumed through an M15 watermark, so a bar drives at most
// one transition and historical bars present at boot never arm the
// machine retroactively.
package smc

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"smc-trader/internal/config"
	"smc-trader/internal/market"
	"smc-trader/pkg/types"
)

// Recorder receives structured strategy events (status, transitions,
// terminal decisions) for persistence and streaming. May be nil.
type Recorder interface {
	Record(event string, fields map[string]any)
}

// SymbolStatus is the externally visible state of one symbol's hunt.
type SymbolStatus struct {
	Phase             string `json:"phase"`
	Session           string `json:"session"`
	ContextGrade      string `json:"context_grade"`
	TradesThisSession int    `json:"trades_this_session"`
	PoolCount         int    `json:"pool_count"`
}

type symbolState struct {
	fsm       *FSM
	liquidity *LiquidityEngine

	session     market.Session
	prevSession SessionSnapshot
	context     Context

	sweptPool *Pool
	choch     *CHoCH
	fvg       *FVG

	tradesThisSession int
	m15Watermark      int64 // last processed closed M15 open timestamp
	booted            bool
}

// Strategy runs the institutional setup hunt across all symbols.
type Strategy struct {
	cfg    config.SMCConfig
	logger *slog.Logger
	rec    Recorder

	mu      sync.Mutex
	symbols map[string]*symbolState
}

// NewStrategy creates the strategy. rec may be nil.
func NewStrategy(cfg config.SMCConfig, logger *slog.Logger, rec Recorder) *Strategy {
	return &Strategy{
		cfg:     cfg,
		logger:  logger.With("component", "smc"),
		rec:     rec,
		symbols: make(map[string]*symbolState),
	}
}

// Analyze advances the symbol's machine with one bundle of closed bars and
// returns an entry signal only while the machine sits in WAIT_ENTRY.
func (s *Strategy) Analyze(b types.MTFBundle) types.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(b.Symbol, b.Now)
	pip := types.PipSize(b.Symbol)

	s.checkSessionRollover(b.Symbol, st, b.Now)

	prevType, prevStart, prevEnd := market.PreviousSessionRange(b.Now)
	st.prevSession = BuildSessionSnapshot(prevType, prevStart, prevEnd, b.M15, b.Now)

	mid := (b.Bid + b.Ask) / 2
	st.context = EvaluateContext(st.prevSession, mid, pip)
	if !st.context.CanTrade {
		if st.fsm.State() != StateIdle {
			s.decide(b.Symbol, st, "NO_TRADE", "context_reject: "+st.context.BlockReason, b.Now)
			s.reset(st, "context_reject", b.Now)
		}
		return types.Signal{}
	}

	swings := DetectSwings(b.M15, s.cfg.SwingLookback, s.cfg.MaxSwingsPerType)
	dayHigh, dayLow, dayStart := previousDayExtremes(b.H1, b.Now)
	pools := st.liquidity.BuildPools(st.prevSession, dayHigh, dayLow, dayStart, swings, b.Now)
	s.logger.Debug("pools built", "symbol", b.Symbol, "count", len(pools))

	// Per-state timeout before anything else this cycle.
	if st.fsm.Expired(s.cfg, b.Now) {
		if st.fsm.State() == StateCooldown {
			st.fsm.Transition(StateIdle, "cooldown_elapsed", b.Now)
		} else {
			s.decide(b.Symbol, st, "EXPIRE", fmt.Sprintf("state %s timed out", st.fsm.State()), b.Now)
			s.reset(st, "timeout", b.Now)
		}
	}

	newM15 := barsAfter(b.M15, st.m15Watermark)
	if len(b.M15) > 0 {
		st.m15Watermark = b.M15[len(b.M15)-1].Timestamp
	}

	var signal types.Signal
	switch st.fsm.State() {
	case StateIdle:
		if st.prevSession.CandleCount > 0 {
			s.transition(b.Symbol, st, StateWaitSweep, "context_ready", b.Now)
		}

	case StateWaitSweep:
		swept := st.liquidity.DetectSweeps(newM15)
		for _, p := range swept {
			if !st.context.allows(p.SweepDirection) {
				continue
			}
			st.sweptPool = p
			s.transition(b.Symbol, st, StateWaitChoch,
				fmt.Sprintf("sweep %s @%.5f", p.Type, p.Price), b.Now)
			break
		}

	case StateWaitChoch:
		st.liquidity.DetectSweeps(newM15)
		ch := DetectCHoCH(b.M15, swings, st.sweptPool.SweepDirection, st.sweptPool.SweptCandle, s.cfg.ChochMinPips, pip)
		if ch != nil {
			st.choch = ch
			s.transition(b.Symbol, st, StateWaitFVG,
				fmt.Sprintf("choch %s broke %.5f", ch.Direction, ch.BrokenLevel), b.Now)
		}

	case StateWaitFVG:
		st.liquidity.DetectSweeps(newM15)
		f := DetectFVG(b.M5, st.choch.Direction, st.choch.Timestamp, s.cfg.MinGapPips, pip)
		if f != nil {
			st.fvg = f
			s.transition(b.Symbol, st, StateWaitMitigation,
				fmt.Sprintf("fvg %.1f pips [%.5f, %.5f]", f.GapSizePips, f.Low, f.High), b.Now)
		}

	case StateWaitMitigation:
		st.liquidity.DetectSweeps(newM15)
		for _, bar := range barsAfter(b.M5, st.fvg.CreatedAt) {
			st.fvg.Update(bar)
			if st.fvg.Invalidated {
				break
			}
		}
		if st.fvg.Invalidated {
			s.decide(b.Symbol, st, "NO_TRADE", "fvg_invalidated", b.Now)
			s.reset(st, "fvg_invalidated", b.Now)
		} else if st.fvg.Mitigated {
			s.transition(b.Symbol, st, StateWaitEntry,
				fmt.Sprintf("fvg mitigated @%.5f", st.fvg.MitigatedPrice), b.Now)
		}

	case StateWaitEntry:
		if s.cfg.MaxTradesPerSession > 0 && st.tradesThisSession >= s.cfg.MaxTradesPerSession {
			s.decide(b.Symbol, st, "NO_TRADE", "session trade limit reached", b.Now)
			s.reset(st, "session_trade_limit", b.Now)
			break
		}
		signal = s.entrySignal(st)

	case StateCooldown:
		// Waiting out the dwell; nothing to evaluate.
	}

	return signal
}

// NotifyTradeExecuted moves the symbol into COOLDOWN after the engine
// confirms an order, consuming the armed structure.
func (s *Strategy) NotifyTradeExecuted(symbol string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.symbols[symbol]
	if !ok || st.fsm.State() != StateWaitEntry {
		return
	}
	st.tradesThisSession++
	s.decide(symbol, st, "TRADE", "entry executed", now)
	st.sweptPool = nil
	st.choch = nil
	st.fvg = nil
	s.transition(symbol, st, StateCooldown, "trade_executed", now)
}

// Status returns the per-symbol view for the dashboard.
func (s *Strategy) Status() map[string]SymbolStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]SymbolStatus, len(s.symbols))
	for sym, st := range s.symbols {
		out[sym] = SymbolStatus{
			Phase:             string(st.fsm.State()),
			Session:           string(st.session),
			ContextGrade:      string(st.context.Grade),
			TradesThisSession: st.tradesThisSession,
			PoolCount:         len(st.liquidity.Pools()),
		}
	}
	return out
}

// Phase returns the FSM phase for one symbol, "IDLE" if unknown.
func (s *Strategy) Phase(symbol string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.symbols[symbol]; ok {
		return string(st.fsm.State())
	}
	return string(StateIdle)
}

func (s *Strategy) state(symbol string, now time.Time) *symbolState {
	st, ok := s.symbols[symbol]
	if !ok {
		st = &symbolState{
			fsm:       NewFSM(now),
			liquidity: NewLiquidityEngine(s.cfg),
			session:   market.SessionAt(now),
		}
		s.symbols[symbol] = st
	}
	return st
}

// checkSessionRollover resets per-session state when the clock crosses a
// session boundary. Pools survive; they carry their own expiry.
func (s *Strategy) checkSessionRollover(symbol string, st *symbolState, now time.Time) {
	sess := market.SessionAt(now)
	if !st.booted {
		st.booted = true
		st.session = sess
		s.emitStatus(symbol, st)
		return
	}
	if sess == st.session {
		return
	}
	st.session = sess
	st.tradesThisSession = 0
	st.sweptPool = nil
	st.choch = nil
	st.fvg = nil
	st.fsm.Transition(StateIdle, "session_rollover", now)
	s.emitStatus(symbol, st)
}

func (s *Strategy) reset(st *symbolState, trigger string, now time.Time) {
	st.sweptPool = nil
	st.choch = nil
	st.fvg = nil
	st.fsm.Transition(StateIdle, trigger, now)
}

func (s *Strategy) entrySignal(st *symbolState) types.Signal {
	confidence := 60
	if st.context.Grade == GradeA {
		confidence += 10
	}
	if st.sweptPool != nil && st.sweptPool.Priority == 1 {
		confidence += 10
	}
	if st.fvg != nil && st.fvg.GapSizePips >= 2*s.cfg.MinGapPips {
		confidence += 5
	}

	reason := "institutional setup"
	if st.sweptPool != nil {
		reason = fmt.Sprintf("%s sweep, choch, fvg mitigated", st.sweptPool.Type)
	}
	return types.Signal{
		Valid:      true,
		Direction:  st.choch.Direction,
		Confidence: confidence,
		Reason:     reason,
		Source:     "SMC",
		StopPips:   s.cfg.StopPips,
		TargetPips: s.cfg.TargetPips,
	}
}

func (s *Strategy) transition(symbol string, st *symbolState, to State, trigger string, now time.Time) {
	from := st.fsm.State()
	if !st.fsm.Transition(to, trigger, now) {
		return
	}
	s.logger.Info("fsm transition",
		"event", "SMC_INST_FSM_TRANSITION",
		"symbol", symbol, "from", from, "to", to, "trigger", trigger)
	s.record("SMC_INST_FSM_TRANSITION", map[string]any{
		"symbol": symbol, "from": string(from), "to": string(to), "trigger": trigger,
	})
}

// decide emits a terminal decision record.
func (s *Strategy) decide(symbol string, st *symbolState, decision, reason string, now time.Time) {
	fields := map[string]any{
		"symbol":   symbol,
		"decision": decision,
		"reason":   reason,
		"phase":    string(st.fsm.State()),
	}
	if st.choch != nil {
		fields["direction"] = string(st.choch.Direction)
		fields["choch_price"] = st.choch.Price
	}
	if st.sweptPool != nil {
		fields["pool_key"] = st.sweptPool.Key
	}
	if st.fvg != nil {
		fields["fvg_id"] = st.fvg.ID
	}
	s.logger.Info("decision", append([]any{"event", "SMC_INST_DECISION"}, flatten(fields)...)...)
	s.record("SMC_INST_DECISION", fields)
}

func (s *Strategy) emitStatus(symbol string, st *symbolState) {
	fields := map[string]any{
		"symbol":                 symbol,
		"enabled":                true,
		"source":                 "SMC",
		"session":                string(st.session),
		"fsm_phase":              string(st.fsm.State()),
		"trades_this_session":    st.tradesThisSession,
		"max_trades_per_session": s.cfg.MaxTradesPerSession,
	}
	s.logger.Info("status", append([]any{"event", "SMC_INST_STATUS"}, flatten(fields)...)...)
	s.record("SMC_INST_STATUS", fields)
}

func (s *Strategy) record(event string, fields map[string]any) {
	if s.rec != nil {
		s.rec.Record(event, fields)
	}
}

// previousDayExtremes computes the prior trading day's high/low from H1
// bars. The trading day boundary is the NY close, 21:00 UTC.
func previousDayExtremes(h1 []types.Bar, now time.Time) (high, low float64, start time.Time) {
	dayStart := market.TradingDay(now).Add(-3 * time.Hour) // 21:00 UTC yesterday
	start = dayStart.Add(-24 * time.Hour)
	startMs, endMs := start.UnixMilli(), dayStart.UnixMilli()

	for _, bar := range h1 {
		if bar.Timestamp < startMs || bar.Timestamp >= endMs {
			continue
		}
		if high == 0 || bar.High > high {
			high = bar.High
		}
		if low == 0 || bar.Low < low {
			low = bar.Low
		}
	}
	return high, low, start
}

// barsAfter returns the suffix of bars whose open timestamp is strictly
// after ts. Bars are sorted ascending.
func barsAfter(bars []types.Bar, ts int64) []types.Bar {
	i := len(bars)
	for i > 0 && bars[i-1].Timestamp > ts {
		i--
	}
	return bars[i:]
}

// flatten turns a fields map into alternating slog key/value args with a
// stable order.
func flatten(fields map[string]any) []any {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(fields)*2)
	for _, k := range keys {
		out = append(out, k, fields[k])
	}
	return out
}
