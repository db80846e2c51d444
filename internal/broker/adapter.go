// adapter.go is the high-level broker surface the engine consumes.
//
// It owns the symbol catalog, quote cache, and open-position cache, and
// translates between engine vocabulary (symbols, lots, pips) and the wire
// layer (symbol ids, centilots, absolute prices). All methods are safe for
// concurrent use.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"smc-trader/internal/wire"
	"smc-trader/pkg/types"
)

// Default volume constraints when the broker does not publish per-symbol
// limits through the light catalog.
const (
	defaultMinLots  = 0.01
	defaultMaxLots  = 100
	defaultStepLots = 0.01
)

// lotUnits is the contract size of one standard lot.
const lotUnits = 100000.0

// Adapter wraps a Client with symbol resolution, caching, and pacing.
type Adapter struct {
	client *Client
	logger *slog.Logger
	pacer  *Pacer

	maxSpreadPips float64

	mu        sync.RWMutex
	byName    map[string]*types.Symbol
	byID      map[int64]*types.Symbol
	quotes    map[string]types.Tick
	positions map[int64]types.Position
	balance   float64
	spotSubs  map[int64]bool                      // symbol id → subscribed
	barSubs   map[int64]map[types.Timeframe]bool  // symbol id → periods

	ticks chan types.Tick
	bars  chan types.LiveBar
}

// NewAdapter creates the adapter around an already-constructed client.
// maxSpreadPips gates order placement; <= 0 disables the gate.
func NewAdapter(client *Client, maxSpreadPips float64, logger *slog.Logger) *Adapter {
	return &Adapter{
		client:        client,
		logger:        logger.With("component", "adapter"),
		pacer:         NewPacer(),
		maxSpreadPips: maxSpreadPips,
		byName:        make(map[string]*types.Symbol),
		byID:          make(map[int64]*types.Symbol),
		quotes:        make(map[string]types.Tick),
		positions:     make(map[int64]types.Position),
		spotSubs:      make(map[int64]bool),
		barSubs:       make(map[int64]map[types.Timeframe]bool),
		ticks:         make(chan types.Tick, 256),
		bars:          make(chan types.LiveBar, 256),
	}
}

// Ticks returns normalized quote updates for subscribed symbols.
func (a *Adapter) Ticks() <-chan types.Tick { return a.ticks }

// Bars returns streamed trendbar updates for live-subscribed symbols.
func (a *Adapter) Bars() <-chan types.LiveBar { return a.bars }

// Connect authenticates the session and loads the symbol catalog.
func (a *Adapter) Connect(ctx context.Context, creds types.Credentials) error {
	if _, err := a.client.Connect(ctx, creds); err != nil {
		return err
	}
	if err := a.LoadSymbols(ctx); err != nil {
		a.client.Disconnect()
		return err
	}
	return nil
}

// Disconnect tears the session down.
func (a *Adapter) Disconnect() { a.client.Disconnect() }

// LoadSymbols fetches the light symbol catalog and rebuilds the
// bidirectional name/id index. Disabled symbols are skipped.
func (a *Adapter) LoadSymbols(ctx context.Context) error {
	if err := a.pacer.Catalog.Wait(ctx); err != nil {
		return err
	}
	env, err := a.client.Request(ctx, "SymbolsListReq", &wire.SymbolsListReq{
		AccountID: a.client.AccountID(),
	}, 0)
	if err != nil {
		return fmt.Errorf("symbols list: %w", err)
	}
	var res wire.SymbolsListRes
	if err := res.Unmarshal(env.Payload); err != nil {
		return fmt.Errorf("decode symbols list: %w", err)
	}

	a.mu.Lock()
	a.byName = make(map[string]*types.Symbol, len(res.Symbols))
	a.byID = make(map[int64]*types.Symbol, len(res.Symbols))
	for _, ls := range res.Symbols {
		if !ls.Enabled {
			continue
		}
		sym := &types.Symbol{
			ID:           ls.ID,
			Name:         ls.Name,
			Digits:       types.PriceDigits(ls.Name),
			PipPosition:  pipPosition(ls.Name),
			BaseAssetID:  ls.BaseAssetID,
			QuoteAssetID: ls.QuoteAssetID,
		}
		a.byName[ls.Name] = sym
		a.byID[ls.ID] = sym
	}
	count := len(a.byName)
	a.mu.Unlock()

	a.logger.Info("symbol catalog loaded", "count", count)
	return nil
}

// GetSymbolInfo returns the catalog entry and volume constraints for a symbol.
func (a *Adapter) GetSymbolInfo(symbol string) (types.Symbol, types.VolumeSpecs, error) {
	a.mu.RLock()
	sym, ok := a.byName[symbol]
	a.mu.RUnlock()
	if !ok {
		return types.Symbol{}, types.VolumeSpecs{}, fmt.Errorf("unknown symbol %q", symbol)
	}
	specs := types.VolumeSpecs{
		MinLots:  defaultMinLots,
		MaxLots:  defaultMaxLots,
		StepLots: defaultStepLots,
	}
	return *sym, specs, nil
}

// SubscribePrice starts the spot stream for a symbol. Idempotent.
func (a *Adapter) SubscribePrice(ctx context.Context, symbol string) error {
	sym, err := a.symbol(symbol)
	if err != nil {
		return err
	}

	a.mu.Lock()
	already := a.spotSubs[sym.ID]
	a.spotSubs[sym.ID] = true
	a.mu.Unlock()
	if already {
		return nil
	}

	_, err = a.client.Request(ctx, "SubscribeSpotsReq", &wire.SubscribeSpotsReq{
		AccountID: a.client.AccountID(),
		SymbolIDs: []int64{sym.ID},
	}, 0)
	if err != nil {
		a.mu.Lock()
		delete(a.spotSubs, sym.ID)
		a.mu.Unlock()
		return fmt.Errorf("subscribe spots %s: %w", symbol, err)
	}
	return nil
}

// UnsubscribePrice stops the spot stream for a symbol. Idempotent.
func (a *Adapter) UnsubscribePrice(ctx context.Context, symbol string) error {
	sym, err := a.symbol(symbol)
	if err != nil {
		return err
	}

	a.mu.Lock()
	subscribed := a.spotSubs[sym.ID]
	delete(a.spotSubs, sym.ID)
	delete(a.barSubs, sym.ID)
	a.mu.Unlock()
	if !subscribed {
		return nil
	}

	_, err = a.client.Request(ctx, "UnsubscribeSpotsReq", &wire.UnsubscribeSpotsReq{
		AccountID: a.client.AccountID(),
		SymbolIDs: []int64{sym.ID},
	}, 0)
	if err != nil {
		return fmt.Errorf("unsubscribe spots %s: %w", symbol, err)
	}
	return nil
}

// SubscribeLiveTrendbars attaches live bar updates for one symbol/timeframe.
// Requires an active spot subscription on the symbol.
func (a *Adapter) SubscribeLiveTrendbars(ctx context.Context, symbol string, tf types.Timeframe) error {
	sym, err := a.symbol(symbol)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if a.barSubs[sym.ID] == nil {
		a.barSubs[sym.ID] = make(map[types.Timeframe]bool)
	}
	already := a.barSubs[sym.ID][tf]
	a.barSubs[sym.ID][tf] = true
	a.mu.Unlock()
	if already {
		return nil
	}

	_, err = a.client.Request(ctx, "SubscribeLiveTrendbarReq", &wire.SubscribeLiveTrendbarReq{
		AccountID: a.client.AccountID(),
		Period:    int32(tf),
		SymbolID:  sym.ID,
	}, 0)
	if err != nil {
		return fmt.Errorf("subscribe trendbars %s %s: %w", symbol, tf, err)
	}
	return nil
}

// GetCandleHistory pulls up to count closed bars for symbol/timeframe,
// oldest first. Calls are paced; frequency rejections come back typed as
// RateLimitError so the caller can back off and retry.
func (a *Adapter) GetCandleHistory(ctx context.Context, symbol string, tf types.Timeframe, count int) ([]types.Bar, error) {
	sym, err := a.symbol(symbol)
	if err != nil {
		return nil, err
	}
	if err := a.pacer.History.Wait(ctx); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	from := now.Add(-time.Duration(count+5) * tf.Duration())

	env, err := a.client.Request(ctx, "GetTrendbarsReq", &wire.GetTrendbarsReq{
		AccountID:     a.client.AccountID(),
		FromTimestamp: from.UnixMilli(),
		ToTimestamp:   now.UnixMilli(),
		Period:        int32(tf),
		SymbolID:      sym.ID,
		Count:         uint32(count),
	}, 0)
	if err != nil {
		var be *BrokerError
		if errors.As(err, &be) && IsRateLimitMessage(be.Code+" "+be.Description) {
			return nil, &RateLimitError{Op: "history " + symbol, Err: err}
		}
		return nil, fmt.Errorf("trendbars %s %s: %w", symbol, tf, err)
	}

	var res wire.GetTrendbarsRes
	if err := res.Unmarshal(env.Payload); err != nil {
		return nil, fmt.Errorf("decode trendbars: %w", err)
	}

	bars := make([]types.Bar, 0, len(res.Bars))
	for i := range res.Bars {
		bars = append(bars, barFromWire(&res.Bars[i]))
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp < bars[j].Timestamp })
	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	return bars, nil
}

// LastTick returns the most recent quote for a symbol.
func (a *Adapter) LastTick(symbol string) (types.Tick, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.quotes[symbol]
	return t, ok
}

// PlaceOrder sends a market order and waits for the broker's terminal
// verdict. Rejections come back as a failed OrderResult, not an error;
// errors mean the outcome is UNKNOWN (timeout, disconnect) and the caller
// must reconcile before treating the order as failed.
func (a *Adapter) PlaceOrder(ctx context.Context, req types.OrderRequest) (*types.OrderResult, error) {
	sym, err := a.symbol(req.Symbol)
	if err != nil {
		return nil, err
	}

	tick, ok := a.LastTick(req.Symbol)
	if !ok {
		return nil, fmt.Errorf("no quote for %s yet", req.Symbol)
	}

	if a.maxSpreadPips > 0 {
		spread := types.SpreadPips(req.Symbol, tick.Bid, tick.Ask)
		if spread > a.maxSpreadPips {
			return &types.OrderResult{
				Success:      false,
				ErrorMessage: fmt.Sprintf("spread %.1f pips exceeds limit %.1f", spread, a.maxSpreadPips),
			}, nil
		}
	}

	pip := types.PipSize(req.Symbol)
	entry := tick.Ask
	dir := int32(wire.TradeSideBuy)
	if req.Direction == types.SELL {
		entry = tick.Bid
		dir = wire.TradeSideSell
	}

	var sl, tp float64
	if req.StopLossPips != nil {
		if req.Direction == types.BUY {
			sl = entry - *req.StopLossPips*pip
		} else {
			sl = entry + *req.StopLossPips*pip
		}
	}
	if req.TakeProfitPips != nil {
		if req.Direction == types.BUY {
			tp = entry + *req.TakeProfitPips*pip
		} else {
			tp = entry - *req.TakeProfitPips*pip
		}
	}

	if err := a.pacer.Order.Wait(ctx); err != nil {
		return nil, err
	}

	env, err := a.client.Request(ctx, "NewOrderReq", &wire.NewOrderReq{
		AccountID:  a.client.AccountID(),
		SymbolID:   sym.ID,
		OrderType:  wire.OrderTypeMarket,
		TradeSide:  dir,
		Volume:     types.VolumeFromLots(req.Lots),
		StopLoss:   sl,
		TakeProfit: tp,
		Comment:    req.Comment,
		Label:      "smc-trader",
	}, 0)
	if err != nil {
		var be *BrokerError
		if errors.As(err, &be) {
			// Definitive server-side rejection, not an unknown outcome.
			return &types.OrderResult{Success: false, ErrorMessage: be.Error()}, nil
		}
		return nil, err
	}

	return a.orderVerdict(env)
}

// orderVerdict interprets the correlated response to an order placement.
func (a *Adapter) orderVerdict(env *wire.Envelope) (*types.OrderResult, error) {
	switch env.PayloadType {
	case wire.PayloadExecutionEvent:
		var evt wire.ExecutionEvent
		if err := evt.Unmarshal(env.Payload); err != nil {
			return nil, fmt.Errorf("decode execution: %w", err)
		}
		switch evt.ExecutionType {
		case wire.ExecOrderFilled, wire.ExecOrderPartialFill, wire.ExecOrderAccepted:
			res := &types.OrderResult{Success: true}
			if evt.Order != nil {
				res.OrderID = evt.Order.OrderID
				res.ExecutionPrice = evt.Order.ExecutionPrice
			}
			if evt.Position != nil {
				res.PositionID = evt.Position.PositionID
				a.rememberPosition(&evt)
			}
			return res, nil
		default:
			return &types.OrderResult{
				Success:      false,
				ErrorMessage: fmt.Sprintf("order not filled: execution type %d code %s", evt.ExecutionType, evt.ErrorCode),
			}, nil
		}

	case wire.PayloadOrderErrorEvent:
		var evt wire.OrderErrorEvent
		if err := evt.Unmarshal(env.Payload); err != nil {
			return nil, fmt.Errorf("decode order error: %w", err)
		}
		return &types.OrderResult{
			Success:      false,
			ErrorMessage: fmt.Sprintf("%s: %s", evt.ErrorCode, evt.Description),
		}, nil
	}
	return nil, fmt.Errorf("unexpected order response payload %d", env.PayloadType)
}

// ClosePosition closes a cached position at market in full.
func (a *Adapter) ClosePosition(ctx context.Context, positionID int64) error {
	a.mu.RLock()
	pos, ok := a.positions[positionID]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("position %d not in cache", positionID)
	}

	if err := a.pacer.Order.Wait(ctx); err != nil {
		return err
	}
	_, err := a.client.Request(ctx, "ClosePositionReq", &wire.ClosePositionReq{
		AccountID:  a.client.AccountID(),
		PositionID: positionID,
		Volume:     types.VolumeFromLots(pos.Lots),
	}, 0)
	if err != nil {
		return fmt.Errorf("close position %d: %w", positionID, err)
	}
	return nil
}

// AmendPositionSLTP changes stop-loss/take-profit on an open position.
// Zero leaves the corresponding level untouched.
func (a *Adapter) AmendPositionSLTP(ctx context.Context, positionID int64, stopLoss, takeProfit float64) error {
	if err := a.pacer.Order.Wait(ctx); err != nil {
		return err
	}
	_, err := a.client.Request(ctx, "AmendPositionSLTPReq", &wire.AmendPositionSLTPReq{
		AccountID:  a.client.AccountID(),
		PositionID: positionID,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
	}, 0)
	if err != nil {
		return fmt.Errorf("amend position %d: %w", positionID, err)
	}
	return nil
}

// GetOpenPositions returns the cached open position set.
func (a *Adapter) GetOpenPositions() []types.Position {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]types.Position, 0, len(a.positions))
	for _, p := range a.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PositionID < out[j].PositionID })
	return out
}

// ReconcilePositions asks the broker for the authoritative open position
// set, replaces the cache with it, and returns it.
func (a *Adapter) ReconcilePositions(ctx context.Context) ([]types.Position, error) {
	if err := a.pacer.Catalog.Wait(ctx); err != nil {
		return nil, err
	}
	env, err := a.client.Request(ctx, "ReconcileReq", &wire.ReconcileReq{
		AccountID: a.client.AccountID(),
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	var res wire.ReconcileRes
	if err := res.Unmarshal(env.Payload); err != nil {
		return nil, fmt.Errorf("decode reconcile: %w", err)
	}

	fresh := make(map[int64]types.Position, len(res.Positions))
	for i := range res.Positions {
		wp := &res.Positions[i]
		if wp.Status != wire.PositionStatusOpen {
			continue
		}
		fresh[wp.PositionID] = a.positionFromWire(wp)
	}

	a.mu.Lock()
	a.positions = fresh
	a.mu.Unlock()

	return a.GetOpenPositions(), nil
}

// GetAccountInfo fetches balance from the broker. Equity starts equal to
// balance; live updates refine it through TraderUpdateEvent.
func (a *Adapter) GetAccountInfo(ctx context.Context) (types.AccountInfo, error) {
	if err := a.pacer.Catalog.Wait(ctx); err != nil {
		return types.AccountInfo{}, err
	}
	env, err := a.client.Request(ctx, "TraderReq", &wire.TraderReq{
		AccountID: a.client.AccountID(),
	}, 0)
	if err != nil {
		return types.AccountInfo{}, fmt.Errorf("trader: %w", err)
	}
	var res wire.TraderRes
	if err := res.Unmarshal(env.Payload); err != nil {
		return types.AccountInfo{}, fmt.Errorf("decode trader: %w", err)
	}
	balance := float64(res.Trader.BalanceCents) / 100
	a.mu.Lock()
	a.balance = balance
	a.mu.Unlock()
	return types.AccountInfo{
		AccountID: res.Trader.AccountID,
		Balance:   balance,
		Equity:    a.Equity(),
	}, nil
}

// Equity returns the cached balance plus the floating PnL of every cached
// open position, valued at the latest quotes. Positions whose symbol has
// no quote yet contribute nothing.
func (a *Adapter) Equity() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	equity := a.balance
	for _, p := range a.positions {
		tick, ok := a.quotes[p.Symbol]
		if !ok {
			continue
		}
		var diff float64
		if p.Direction == types.BUY {
			diff = tick.Bid - p.EntryPrice
		} else {
			diff = p.EntryPrice - tick.Ask
		}
		equity += diff * p.Lots * lotUnits * a.quoteToUSDLocked(p.Symbol)
	}
	return equity
}

// quoteToUSDLocked converts one unit of a symbol's quote currency to USD
// using whichever USD cross has a cached quote. Falls back to 1 when the
// quote currency is USD or no cross is quoted. Caller holds mu.
func (a *Adapter) quoteToUSDLocked(symbol string) float64 {
	if len(symbol) < 6 {
		return 1
	}
	quote := symbol[len(symbol)-3:]
	if quote == "USD" {
		return 1
	}
	if t, ok := a.quotes[quote+"USD"]; ok {
		if mid := (t.Bid + t.Ask) / 2; mid > 0 {
			return mid
		}
	}
	if t, ok := a.quotes["USD"+quote]; ok {
		if mid := (t.Bid + t.Ask) / 2; mid > 0 {
			return 1 / mid
		}
	}
	return 1
}

func (a *Adapter) handleTraderUpdate(evt *wire.TraderUpdateEvent) {
	balance := float64(evt.Trader.BalanceCents) / 100
	a.mu.Lock()
	a.balance = balance
	a.mu.Unlock()
	a.logger.Debug("trader update", "balance", balance)
}

// Run consumes the client's event streams: quote routing, execution-driven
// cache maintenance, and re-subscription after reconnect. Blocks until ctx
// is cancelled.
func (a *Adapter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case evt := <-a.client.Spots():
			a.handleSpot(evt)

		case evt := <-a.client.Executions():
			a.handleExecution(evt)

		case evt := <-a.client.TraderUpdates():
			a.handleTraderUpdate(evt)

		case evt := <-a.client.OrderErrors():
			a.logger.Warn("async order error",
				"code", evt.ErrorCode, "position_id", evt.PositionID, "description", evt.Description)

		case <-a.client.Authenticated():
			a.resubscribe(ctx)
		}
	}
}

func (a *Adapter) handleSpot(evt *wire.SpotEvent) {
	a.mu.Lock()
	sym, ok := a.byID[evt.SymbolID]
	if !ok {
		a.mu.Unlock()
		return
	}
	tick := a.quotes[sym.Name]
	tick.SymbolID = evt.SymbolID
	tick.Symbol = sym.Name
	if evt.Bid != 0 {
		tick.Bid = types.PriceFromWire(int64(evt.Bid))
	}
	if evt.Ask != 0 {
		tick.Ask = types.PriceFromWire(int64(evt.Ask))
	}
	if evt.Timestamp != 0 {
		tick.Timestamp = time.UnixMilli(evt.Timestamp).UTC()
	} else {
		tick.Timestamp = time.Now().UTC()
	}
	a.quotes[sym.Name] = tick
	a.mu.Unlock()

	select {
	case a.ticks <- tick:
	default:
		// Quote consumers always want the latest state, which LastTick
		// still serves; dropping an intermediate update is harmless.
	}

	for i := range evt.Trendbars {
		tb := &evt.Trendbars[i]
		select {
		case a.bars <- types.LiveBar{
			Symbol:    sym.Name,
			Timeframe: types.Timeframe(tb.Period),
			Bar:       barFromWire(tb),
		}:
		default:
			// Same bar arrives again on the next update; the periodic
			// history refresh backfills anything dropped here.
		}
	}
}

// handleExecution keeps the position cache current from unsolicited events
// (stop-loss hits, manual closes from another terminal).
func (a *Adapter) handleExecution(evt *wire.ExecutionEvent) {
	if evt.Position == nil {
		return
	}
	if evt.Position.Status == wire.PositionStatusClosed {
		a.mu.Lock()
		delete(a.positions, evt.Position.PositionID)
		a.mu.Unlock()
		a.logger.Info("position closed", "position_id", evt.Position.PositionID)
		return
	}
	if evt.ExecutionType == wire.ExecOrderFilled || evt.ExecutionType == wire.ExecOrderPartialFill {
		a.rememberPosition(evt)
	}
}

func (a *Adapter) rememberPosition(evt *wire.ExecutionEvent) {
	pos := a.positionFromWire(evt.Position)
	a.mu.Lock()
	a.positions[pos.PositionID] = pos
	a.mu.Unlock()
}

// resubscribe restores spot and trendbar subscriptions after a reconnect.
func (a *Adapter) resubscribe(ctx context.Context) {
	a.mu.RLock()
	spotIDs := make([]int64, 0, len(a.spotSubs))
	for id := range a.spotSubs {
		spotIDs = append(spotIDs, id)
	}
	bars := make(map[int64][]types.Timeframe, len(a.barSubs))
	for id, tfs := range a.barSubs {
		for tf := range tfs {
			bars[id] = append(bars[id], tf)
		}
	}
	a.mu.RUnlock()

	if len(spotIDs) == 0 {
		return
	}
	sort.Slice(spotIDs, func(i, j int) bool { return spotIDs[i] < spotIDs[j] })

	_, err := a.client.Request(ctx, "SubscribeSpotsReq", &wire.SubscribeSpotsReq{
		AccountID: a.client.AccountID(),
		SymbolIDs: spotIDs,
	}, 0)
	if err != nil {
		a.logger.Error("resubscribe spots failed", "error", err)
		return
	}
	for id, tfs := range bars {
		for _, tf := range tfs {
			_, err := a.client.Request(ctx, "SubscribeLiveTrendbarReq", &wire.SubscribeLiveTrendbarReq{
				AccountID: a.client.AccountID(),
				Period:    int32(tf),
				SymbolID:  id,
			}, 0)
			if err != nil {
				a.logger.Error("resubscribe trendbars failed", "symbol_id", id, "timeframe", tf.String(), "error", err)
			}
		}
	}
	a.logger.Info("subscriptions restored", "symbols", len(spotIDs))
}

func (a *Adapter) symbol(name string) (*types.Symbol, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	sym, ok := a.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %q", name)
	}
	return sym, nil
}

func (a *Adapter) positionFromWire(wp *wire.Position) types.Position {
	a.mu.RLock()
	sym := a.byID[wp.TradeData.SymbolID]
	a.mu.RUnlock()

	name := ""
	if sym != nil {
		name = sym.Name
	}
	dir := types.BUY
	if wp.TradeData.TradeSide == wire.TradeSideSell {
		dir = types.SELL
	}
	status := types.PositionOpen
	if wp.Status == wire.PositionStatusClosed {
		status = types.PositionClosed
	}
	return types.Position{
		PositionID: wp.PositionID,
		Symbol:     name,
		Direction:  dir,
		Lots:       types.LotsFromVolume(wp.TradeData.Volume),
		EntryPrice: wp.Price,
		StopLoss:   wp.StopLoss,
		TakeProfit: wp.TakeProfit,
		OpenedAt:   time.UnixMilli(wp.TradeData.OpenTimestamp).UTC(),
		Status:     status,
	}
}

func barFromWire(tb *wire.Trendbar) types.Bar {
	return types.Bar{
		Timestamp: tb.TimestampMillis(),
		Open:      types.PriceFromWire(tb.OpenWire()),
		High:      types.PriceFromWire(tb.HighWire()),
		Low:       types.PriceFromWire(tb.Low),
		Close:     types.PriceFromWire(tb.CloseWire()),
		Volume:    tb.Volume,
	}
}

// pipPosition is the decimal exponent of the pip for the symbol class.
func pipPosition(symbolName string) int {
	switch types.PipSize(symbolName) {
	case 0.01:
		return 2
	case 0.1:
		return 1
	default:
		return 4
	}
}
