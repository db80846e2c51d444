package engine

import (
	"context"
	"strings"
	"time"

	"smc-trader/internal/obs"
	"smc-trader/pkg/types"
)

const contractSize = 100000.0

// executeSignal is the guarded path from signal to broker order.
//
// It first takes the per-symbol in-flight lock, then runs six checks in
// order (cooldown, candle gate, risk gate, live reconciliation, persisted
// positions, global cap), prepares sizing, and dispatches. A placement
// whose outcome is unknown runs the safety latch: one more reconciliation
// that treats a newly appeared position as success, so a transport error
// after the broker accepted can never cause a double submission.
func (e *Engine) executeSignal(ctx context.Context, symbol string, sig types.Signal, now time.Time) {
	holder, ok := e.inFlight.acquire(symbol, now)
	if !ok {
		e.record("LOCK_BLOCKED", map[string]any{
			"symbol":         symbol,
			"correlation_id": holder.CorrelationID,
			"age_ms":         now.Sub(holder.StartedAt).Milliseconds(),
		})
		obs.IncLockEvent("blocked")
		e.logger.Warn("order lock held, skipping signal",
			"symbol", symbol,
			"holder", holder.CorrelationID,
		)
		return
	}
	corrID := holder.CorrelationID

	e.record("LOCK_ACQUIRED", map[string]any{
		"symbol":         symbol,
		"correlation_id": corrID,
		"source":         sig.Source,
		"direction":      string(sig.Direction),
	})
	obs.IncLockEvent("acquired")

	reject := func(reason string) {
		e.inFlight.release(symbol, lockFailed)
		e.record("LOCK_RELEASED", map[string]any{
			"symbol":         symbol,
			"correlation_id": corrID,
			"status":         lockFailed,
			"reason":         reason,
		})
		obs.IncLockEvent("released")
		obs.IncSignals(sig.Source, "rejected")
		e.perf.rejection(symbol)
		e.logger.Info("signal rejected", "symbol", symbol, "reason", reason)
	}

	// 1. Cooldown between trades on one symbol.
	cooldown := time.Duration(e.cfg.Engine.CooldownMs) * time.Millisecond
	e.mu.Lock()
	last, traded := e.lastTradeTime[symbol]
	lastCandle := e.lastTradedCandle[symbol]
	e.mu.Unlock()
	if traded && now.Sub(last) < cooldown {
		reject("cooldown active")
		return
	}

	// 2. One entry per 5-minute candle.
	candle := now.Truncate(candleGate).UnixMilli()
	if traded && candle == lastCandle {
		reject("already traded this candle")
		return
	}

	// 3. Risk gate: breaker, session filter, open-trade cap.
	if allowed, reason := e.riskMgr.CanOpenPosition(now, len(e.broker.GetOpenPositions())); !allowed {
		reject("risk: " + reason)
		return
	}

	// 4. Live reconciliation against the broker.
	open, err := e.broker.ReconcilePositions(ctx)
	if err != nil {
		reject("reconcile failed: " + err.Error())
		return
	}
	symbolOpen := countForSymbol(open, symbol)
	if symbolOpen >= e.cfg.Engine.MaxTradesPerSymbol {
		reject("symbol position limit reached")
		return
	}

	// 5. Persisted positions must agree.
	persisted, err := e.store.CountOpenPositions(symbol)
	if err != nil {
		reject("position store unreadable: " + err.Error())
		return
	}
	if persisted >= e.cfg.Engine.MaxTradesPerSymbol {
		reject("persisted position limit reached")
		return
	}

	// 6. Global cap across all symbols.
	if len(open) >= e.cfg.Engine.MaxPositions {
		reject("total position limit reached")
		return
	}

	// Sizing inputs.
	acct, err := e.broker.GetAccountInfo(ctx)
	if err != nil {
		reject("account info unavailable: " + err.Error())
		return
	}
	tick, ok := e.broker.LastTick(symbol)
	if !ok {
		reject("no live quote")
		return
	}
	entry := tick.Ask
	if sig.Direction == types.SELL {
		entry = tick.Bid
	}
	_, specs, err := e.broker.GetSymbolInfo(symbol)
	if err != nil {
		reject("unknown symbol: " + err.Error())
		return
	}

	pipValue := e.pipValueUSD(symbol, entry)
	sizing := e.riskMgr.CalculatePositionSize(acct.Balance, sig.StopPips, pipValue, specs)
	if !sizing.CanTrade {
		reject("sizing: " + sizing.Reason)
		return
	}
	lots := sizing.Lots

	sl, tp := sig.StopPips, sig.TargetPips
	req := types.OrderRequest{
		Symbol:         symbol,
		Direction:      sig.Direction,
		OrderType:      types.OrderTypeMarket,
		Lots:           lots,
		StopLossPips:   &sl,
		TakeProfitPips: &tp,
		Comment:        corrID,
	}

	if e.cfg.DryRun {
		e.logger.Info("dry run: order not dispatched",
			"symbol", symbol,
			"direction", string(sig.Direction),
			"lots", lots,
			"entry", entry,
		)
		e.confirmTrade(symbol, sig, corrID, now, candle, map[string]any{
			"dry_run": true,
			"lots":    lots,
		})
		return
	}

	e.inFlight.setStatus(symbol, lockSent)
	result, err := e.broker.PlaceOrder(ctx, req)

	switch {
	case err != nil:
		// Outcome unknown: the request may have reached the broker.
		if e.safetyLatch(ctx, symbol, symbolOpen) {
			e.logger.Warn("safety latch: order confirmed by reconciliation",
				"symbol", symbol,
				"correlation_id", corrID,
				"error", err,
			)
			e.confirmTrade(symbol, sig, corrID, now, candle, map[string]any{
				"lots":         lots,
				"safety_latch": true,
			})
			return
		}
		reject("order dispatch failed: " + err.Error())

	case !result.Success:
		reject("broker rejected order: " + result.ErrorMessage)

	default:
		e.confirmTrade(symbol, sig, corrID, now, candle, map[string]any{
			"lots":            lots,
			"position_id":     result.PositionID,
			"execution_price": result.ExecutionPrice,
		})
	}
}

// confirmTrade runs the success bookkeeping: cooldown stamps, counters,
// strategy notification, persistence, and lock release.
func (e *Engine) confirmTrade(symbol string, sig types.Signal, corrID string, now time.Time, candle int64, extra map[string]any) {
	e.mu.Lock()
	e.lastTradeTime[symbol] = now
	e.lastTradedCandle[symbol] = candle
	e.mu.Unlock()

	e.tradesExecuted.Add(1)
	e.perf.trade(symbol, string(sig.Direction), sig.Source, now)
	if sig.Source == "SMC" {
		e.smc.NotifyTradeExecuted(symbol, now)
	}

	open := positionsForSymbol(e.broker.GetOpenPositions(), symbol)
	if err := e.store.SavePositions(symbol, open); err != nil {
		e.logger.Warn("position persist failed", "symbol", symbol, "error", err)
	}

	fields := map[string]any{
		"symbol":         symbol,
		"correlation_id": corrID,
		"direction":      string(sig.Direction),
		"source":         sig.Source,
		"confidence":     sig.Confidence,
	}
	for k, v := range extra {
		fields[k] = v
	}
	e.record("TRADE", fields)

	e.inFlight.release(symbol, lockConfirmed)
	e.record("LOCK_RELEASED", map[string]any{
		"symbol":         symbol,
		"correlation_id": corrID,
		"status":         lockConfirmed,
	})
	obs.IncLockEvent("released")
	obs.IncTrades(symbol, string(sig.Direction))
	obs.IncSignals(sig.Source, "executed")

	e.logger.Info("TRADE",
		"symbol", symbol,
		"direction", string(sig.Direction),
		"source", sig.Source,
		"correlation_id", corrID,
	)
}

// safetyLatch re-reconciles after a failed placement and reports whether
// a position for the symbol appeared since the pre-dispatch count.
func (e *Engine) safetyLatch(ctx context.Context, symbol string, before int) bool {
	open, err := e.broker.ReconcilePositions(ctx)
	if err != nil {
		e.logger.Error("safety latch reconcile failed", "symbol", symbol, "error", err)
		return false
	}
	return countForSymbol(open, symbol) > before
}

// pipValueUSD estimates the USD value of one pip for one standard lot.
// Direct pairs (quote USD) are exact; others convert the quote currency
// through whichever USD pair the adapter has a quote for.
func (e *Engine) pipValueUSD(symbol string, price float64) float64 {
	pip := types.PipSize(symbol)
	base := pip * contractSize

	quote := quoteCurrency(symbol)
	if quote == "USD" || quote == "" {
		return base
	}
	if t, ok := e.broker.LastTick(quote + "USD"); ok {
		if mid := (t.Bid + t.Ask) / 2; mid > 0 {
			return base * mid
		}
	}
	if t, ok := e.broker.LastTick("USD" + quote); ok {
		if mid := (t.Bid + t.Ask) / 2; mid > 0 {
			return base / mid
		}
	}
	if strings.HasPrefix(strings.ToUpper(symbol), "USD") && price > 0 {
		return base / price
	}
	return base
}

func quoteCurrency(symbol string) string {
	s := strings.ToUpper(symbol)
	if len(s) < 6 {
		return ""
	}
	return s[len(s)-3:]
}

func countForSymbol(positions []types.Position, symbol string) int {
	n := 0
	for _, p := range positions {
		if p.Symbol == symbol {
			n++
		}
	}
	return n
}

func positionsForSymbol(positions []types.Position, symbol string) []types.Position {
	var out []types.Position
	for _, p := range positions {
		if p.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out
}
