package engine

import (
	"sync"
	"time"
)

// SymbolPerformance aggregates execution outcomes for one symbol since
// the engine started. Served under performanceMetrics in the status
// payload and emitted as a PERFORMANCE decision-log event.
type SymbolPerformance struct {
	Trades      int64            `json:"trades"`
	Buys        int64            `json:"buys"`
	Sells       int64            `json:"sells"`
	BySource    map[string]int64 `json:"bySource"`
	Conflicts   int64            `json:"conflicts"`
	Rejections  int64            `json:"rejections"`
	LastTradeAt time.Time        `json:"lastTradeAt"`
}

// perfTracker is the mutable accumulator behind SymbolPerformance.
// The dirty flag lets the analysis loop emit PERFORMANCE only on change.
type perfTracker struct {
	mu      sync.Mutex
	dirty   bool
	symbols map[string]*SymbolPerformance
}

func newPerfTracker() *perfTracker {
	return &perfTracker{symbols: make(map[string]*SymbolPerformance)}
}

func (p *perfTracker) get(symbol string) *SymbolPerformance {
	sp, ok := p.symbols[symbol]
	if !ok {
		sp = &SymbolPerformance{BySource: make(map[string]int64)}
		p.symbols[symbol] = sp
	}
	return sp
}

func (p *perfTracker) trade(symbol, direction, source string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sp := p.get(symbol)
	sp.Trades++
	if direction == "SELL" {
		sp.Sells++
	} else {
		sp.Buys++
	}
	sp.BySource[source]++
	sp.LastTradeAt = at
	p.dirty = true
}

func (p *perfTracker) conflict(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.get(symbol).Conflicts++
	p.dirty = true
}

func (p *perfTracker) rejection(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.get(symbol).Rejections++
	p.dirty = true
}

// snapshot deep-copies the accumulated metrics.
func (p *perfTracker) snapshot() map[string]SymbolPerformance {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]SymbolPerformance, len(p.symbols))
	for sym, sp := range p.symbols {
		cp := *sp
		cp.BySource = make(map[string]int64, len(sp.BySource))
		for k, v := range sp.BySource {
			cp.BySource[k] = v
		}
		out[sym] = cp
	}
	return out
}

// consumeDirty reports whether anything changed since the last call and
// clears the flag.
func (p *perfTracker) consumeDirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.dirty
	p.dirty = false
	return d
}
