// Package engine is the central orchestrator of the trading bot.
//
// It wires together all subsystems:
//
//  1. The broker adapter streams quotes and serves candle history.
//  2. A data-refresh loop keeps the multi-timeframe bar store current.
//  3. An analysis loop feeds every symbol's bars to the institutional
//     flow machine and the RSI+VWAP strategy, combines their signals,
//     and hands qualifying ones to the execution guard.
//  4. The execution guard dispatches at most one order per symbol at a
//     time, protected by an in-flight lock with a watchdog.
//  5. The risk manager gates everything behind the daily circuit breaker.
//
// Lifecycle: New() → Run(ctx) → [runs until ctx cancels]
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"smc-trader/internal/broker"
	"smc-trader/internal/config"
	"smc-trader/internal/market"
	"smc-trader/internal/obs"
	"smc-trader/internal/risk"
	"smc-trader/internal/smc"
	"smc-trader/pkg/types"
)

const (
	historyBarCount   = 250
	minH1Bars         = 50
	minM15Bars        = 30
	minM5Bars         = 20
	interHistoryDelay = time.Second
	candleGate        = 5 * time.Minute
)

var analysisTimeframes = []types.Timeframe{types.H1, types.M15, types.M5}

// Broker is the slice of the adapter the engine drives.
type Broker interface {
	SubscribePrice(ctx context.Context, symbol string) error
	UnsubscribePrice(ctx context.Context, symbol string) error
	SubscribeLiveTrendbars(ctx context.Context, symbol string, tf types.Timeframe) error
	Bars() <-chan types.LiveBar
	GetCandleHistory(ctx context.Context, symbol string, tf types.Timeframe, count int) ([]types.Bar, error)
	LastTick(symbol string) (types.Tick, bool)
	PlaceOrder(ctx context.Context, req types.OrderRequest) (*types.OrderResult, error)
	ReconcilePositions(ctx context.Context) ([]types.Position, error)
	GetOpenPositions() []types.Position
	GetAccountInfo(ctx context.Context) (types.AccountInfo, error)
	GetSymbolInfo(symbol string) (types.Symbol, types.VolumeSpecs, error)
}

// SignalSource produces a directional signal from one bundle of bars.
type SignalSource interface {
	Analyze(b types.MTFBundle) types.Signal
}

// SMCStrategy is the institutional flow machine: besides signalling it
// must learn about executed trades and report per-symbol phases.
type SMCStrategy interface {
	SignalSource
	NotifyTradeExecuted(symbol string, now time.Time)
	Status() map[string]smc.SymbolStatus
}

// Persister is the engine's durable state collaborator.
type Persister interface {
	SavePositions(symbol string, positions []types.Position) error
	CountOpenPositions(symbol string) (int, error)
	SaveRiskState(st risk.State) error
	Record(event string, fields map[string]any)
}

// Status is the engine snapshot served by the dashboard.
type Status struct {
	IsRunning          bool                         `json:"isRunning"`
	Mode               string                       `json:"mode"`
	Symbols            []string                     `json:"symbols"`
	AnalysisCount      int64                        `json:"analysisCount"`
	TradesExecuted     int64                        `json:"tradesExecuted"`
	InFlightOrders     []InFlightStatus             `json:"inFlightOrders"`
	PerformanceMetrics map[string]SymbolPerformance `json:"performanceMetrics"`
	RiskState          risk.State                   `json:"riskState"`
	FSM                map[string]smc.SymbolStatus  `json:"fsm"`
}

// Engine runs the analysis and refresh loops and owns the execution path.
type Engine struct {
	cfg     config.Config
	broker  Broker
	bars    *market.Store
	riskMgr *risk.Manager
	smc     SMCStrategy
	rsi     SignalSource
	store   Persister
	logger  *slog.Logger

	inFlight *inFlightTable
	perf     *perfTracker

	// Per-symbol execution bookkeeping, guarded by mu.
	mu               sync.Mutex
	lastTradeTime    map[string]time.Time
	lastTradedCandle map[string]int64

	analysisCount  atomic.Int64
	tradesExecuted atomic.Int64
	running        atomic.Bool

	now func() time.Time
}

// New wires an engine from already-constructed collaborators.
func New(
	cfg config.Config,
	b Broker,
	bars *market.Store,
	riskMgr *risk.Manager,
	smcStrat SMCStrategy,
	rsi SignalSource,
	persist Persister,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:              cfg,
		broker:           b,
		bars:             bars,
		riskMgr:          riskMgr,
		smc:              smcStrat,
		rsi:              rsi,
		store:            persist,
		logger:           logger.With("component", "engine"),
		inFlight:         newInFlightTable(cfg.Engine.InFlightTTL),
		perf:             newPerfTracker(),
		lastTradeTime:    make(map[string]time.Time),
		lastTradedCandle: make(map[string]int64),
		now:              time.Now,
	}
}

// Run subscribes all symbols, performs the initial history load, then
// drives the analysis and refresh loops until ctx cancels.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)

	for _, symbol := range e.cfg.Engine.Symbols {
		if err := e.broker.SubscribePrice(ctx, symbol); err != nil {
			return err
		}
		// Live M5 bars keep the entry timeframe fresh between history
		// refreshes; a failed subscription is not fatal.
		if err := e.broker.SubscribeLiveTrendbars(ctx, symbol, types.M5); err != nil {
			e.logger.Warn("live trendbar subscription failed", "symbol", symbol, "error", err)
		}
	}
	e.refreshAll(ctx)

	analysis := time.NewTicker(e.cfg.Engine.AnalysisInterval)
	defer analysis.Stop()
	refresh := time.NewTicker(e.cfg.Engine.RefreshInterval)
	defer refresh.Stop()

	e.logger.Info("engine started",
		"symbols", e.cfg.Engine.Symbols,
		"mode", e.Mode(),
		"analysis_interval", e.cfg.Engine.AnalysisInterval,
	)

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return ctx.Err()
		case <-analysis.C:
			e.analyzeAll(ctx)
		case <-refresh.C:
			e.refreshAll(ctx)
		case lb := <-e.broker.Bars():
			e.bars.Upsert(lb.Symbol, lb.Timeframe, lb.Bar)
		}
	}
}

func (e *Engine) shutdown() {
	unsubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, symbol := range e.cfg.Engine.Symbols {
		if err := e.broker.UnsubscribePrice(unsubCtx, symbol); err != nil {
			e.logger.Warn("unsubscribe failed", "symbol", symbol, "error", err)
		}
	}
	for _, rec := range e.inFlight.sweep(e.now().Add(e.cfg.Engine.InFlightTTL)) {
		e.logger.Warn("in-flight order abandoned on shutdown",
			"symbol", rec.Symbol,
			"correlation_id", rec.CorrelationID,
		)
	}
	e.logger.Info("engine stopped")
}

// refreshAll reloads bar history for every symbol and timeframe. A
// request rejected for request frequency backs off and retries; other
// errors skip the timeframe until the next cycle.
func (e *Engine) refreshAll(ctx context.Context) {
	for _, symbol := range e.cfg.Engine.Symbols {
		for _, tf := range analysisTimeframes {
			if err := e.refreshHistory(ctx, symbol, tf); err != nil {
				if ctx.Err() != nil {
					return
				}
				e.logger.Error("history refresh failed",
					"symbol", symbol,
					"timeframe", tf.String(),
					"error", err,
				)
			}
			if !sleepCtx(ctx, interHistoryDelay) {
				return
			}
		}
	}
}

func (e *Engine) refreshHistory(ctx context.Context, symbol string, tf types.Timeframe) error {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.Engine.HistoryRetries; attempt++ {
		bars, err := e.broker.GetCandleHistory(ctx, symbol, tf, historyBarCount)
		if err == nil {
			e.bars.SetHistory(symbol, tf, bars)
			return nil
		}
		lastErr = err

		var rle *broker.RateLimitError
		if !errors.As(err, &rle) {
			return err
		}
		obs.IncRateLimitHit(rle.Op)
		e.logger.Warn("history rate limited, backing off",
			"symbol", symbol,
			"timeframe", tf.String(),
			"attempt", attempt+1,
		)
		if !sleepCtx(ctx, e.cfg.Engine.HistoryBackoff) {
			return ctx.Err()
		}
	}
	return lastErr
}

// analyzeAll is one analysis cycle: run the watchdog, refresh the
// equity-driven risk state, then analyze every symbol.
func (e *Engine) analyzeAll(ctx context.Context) {
	now := e.now()

	for _, rec := range e.inFlight.sweep(now) {
		e.record("LOCK_TIMEOUT", map[string]any{
			"symbol":         rec.Symbol,
			"correlation_id": rec.CorrelationID,
			"age_ms":         now.Sub(rec.StartedAt).Milliseconds(),
		})
		obs.IncLockEvent("timeout")
		e.logger.Warn("in-flight order expired",
			"symbol", rec.Symbol,
			"correlation_id", rec.CorrelationID,
		)
	}

	e.refreshRiskState(ctx, now)

	for _, symbol := range e.cfg.Engine.Symbols {
		if ctx.Err() != nil {
			return
		}
		e.analyzeSymbol(ctx, symbol, now)
	}

	e.analysisCount.Add(1)
	obs.IncAnalysisCycles()
	obs.SetOpenPositions(len(e.broker.GetOpenPositions()))

	if e.perf.consumeDirty() {
		e.record("PERFORMANCE", map[string]any{"symbols": e.perf.snapshot()})
	}
}

func (e *Engine) refreshRiskState(ctx context.Context, now time.Time) {
	acct, err := e.broker.GetAccountInfo(ctx)
	if err != nil {
		e.logger.Warn("account info unavailable", "error", err)
		return
	}
	e.riskMgr.UpdateEquity(acct.Equity, now)
	obs.SetEquity(acct.Equity)
	obs.SetBreakerActive(e.riskMgr.BreakerTripped())
	if err := e.store.SaveRiskState(e.riskMgr.Snapshot()); err != nil {
		e.logger.Warn("risk state persist failed", "error", err)
	}
}

func (e *Engine) analyzeSymbol(ctx context.Context, symbol string, now time.Time) {
	if e.bars.Count(symbol, types.H1) < minH1Bars ||
		e.bars.Count(symbol, types.M15) < minM15Bars ||
		e.bars.Count(symbol, types.M5) < minM5Bars {
		e.logger.Debug("insufficient bars", "symbol", symbol)
		return
	}

	tick, ok := e.broker.LastTick(symbol)
	if !ok {
		e.logger.Debug("no quote yet", "symbol", symbol)
		return
	}

	bundle := e.bars.Bundle(symbol, tick.Bid, tick.Ask, now)
	smcSig := e.smc.Analyze(bundle)
	rsiSig := e.rsi.Analyze(bundle)

	final, conflict := combineSignals(smcSig, rsiSig)
	if conflict {
		e.logger.Warn("CONFLITO: strategies disagree, skipping",
			"symbol", symbol,
			"smc", string(smcSig.Direction),
			"rsi_vwap", string(rsiSig.Direction),
		)
		e.record("CONFLITO", map[string]any{
			"symbol":   symbol,
			"smc":      string(smcSig.Direction),
			"rsi_vwap": string(rsiSig.Direction),
		})
		obs.IncSignals("combined", "conflict")
		e.perf.conflict(symbol)
		return
	}
	if !final.Valid {
		return
	}
	if final.Confidence < e.cfg.Engine.MinConfidence {
		e.logger.Debug("signal below confidence gate",
			"symbol", symbol,
			"source", final.Source,
			"confidence", final.Confidence,
		)
		obs.IncSignals(final.Source, "rejected")
		return
	}

	e.executeSignal(ctx, symbol, final, now)
}

// combineSignals applies the fixed priority: the institutional machine
// wins agreement, disagreement trades nothing.
func combineSignals(smcSig, rsiSig types.Signal) (types.Signal, bool) {
	switch {
	case smcSig.Valid && rsiSig.Valid:
		if smcSig.Direction != rsiSig.Direction {
			return types.Signal{}, true
		}
		return smcSig, false
	case smcSig.Valid:
		return smcSig, false
	case rsiSig.Valid:
		return rsiSig, false
	default:
		return types.Signal{}, false
	}
}

// Mode reports how orders leave the engine.
func (e *Engine) Mode() string {
	switch {
	case e.cfg.DryRun:
		return "dry-run"
	case e.cfg.Broker.Demo:
		return "demo"
	default:
		return "live"
	}
}

// ResetCircuitBreaker clears the daily-loss block and persists the new
// risk state. Admin surface only.
func (e *Engine) ResetCircuitBreaker() {
	e.riskMgr.ResetCircuitBreaker()
	obs.SetBreakerActive(false)
	if err := e.store.SaveRiskState(e.riskMgr.Snapshot()); err != nil {
		e.logger.Warn("risk state persist failed", "error", err)
	}
}

// GetStatus returns the snapshot served by /api/status.
func (e *Engine) GetStatus() Status {
	return Status{
		IsRunning:          e.running.Load(),
		Mode:               e.Mode(),
		Symbols:            e.cfg.Engine.Symbols,
		AnalysisCount:      e.analysisCount.Load(),
		TradesExecuted:     e.tradesExecuted.Load(),
		InFlightOrders:     e.inFlight.snapshot(e.now()),
		PerformanceMetrics: e.perf.snapshot(),
		RiskState:          e.riskMgr.Snapshot(),
		FSM:                e.smc.Status(),
	}
}

func (e *Engine) record(event string, fields map[string]any) {
	if e.store != nil {
		e.store.Record(event, fields)
	}
}

// sleepCtx waits for d unless ctx cancels first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
