// Package market maintains per-symbol, per-timeframe bar series and the
// forex session clock.
//
// The store is the single source of market structure for strategies: bars
// arrive from history pulls and live trendbar updates, are deduplicated by
// open timestamp, kept sorted ascending, and capped to a fixed window.
// Reads return copies so strategy code can never mutate shared state.
package market

import (
	"sort"
	"sync"
	"time"

	"smc-trader/pkg/types"
)

// DefaultMaxBars caps each series; enough for 300 H1 bars (~12 days).
const DefaultMaxBars = 300

// Store holds bar series keyed by symbol and timeframe.
type Store struct {
	mu      sync.RWMutex
	maxBars int
	series  map[string]map[types.Timeframe][]types.Bar
}

// NewStore creates a bar store. maxBars <= 0 uses DefaultMaxBars.
func NewStore(maxBars int) *Store {
	if maxBars <= 0 {
		maxBars = DefaultMaxBars
	}
	return &Store{
		maxBars: maxBars,
		series:  make(map[string]map[types.Timeframe][]types.Bar),
	}
}

// SetHistory replaces the whole series for symbol/timeframe with bars,
// sorted ascending and trimmed to the window.
func (s *Store) SetHistory(symbol string, tf types.Timeframe, bars []types.Bar) {
	sorted := make([]types.Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })
	if len(sorted) > s.maxBars {
		sorted = sorted[len(sorted)-s.maxBars:]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.series[symbol] == nil {
		s.series[symbol] = make(map[types.Timeframe][]types.Bar)
	}
	s.series[symbol][tf] = sorted
}

// Upsert merges one bar into the series by open timestamp: a bar with a
// known timestamp replaces the stored one (live updates of the forming
// candle), a newer one appends, an out-of-order one is inserted in place.
func (s *Store) Upsert(symbol string, tf types.Timeframe, bar types.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.series[symbol] == nil {
		s.series[symbol] = make(map[types.Timeframe][]types.Bar)
	}
	bars := s.series[symbol][tf]

	n := len(bars)
	switch {
	case n == 0 || bar.Timestamp > bars[n-1].Timestamp:
		bars = append(bars, bar)
	case bar.Timestamp == bars[n-1].Timestamp:
		bars[n-1] = bar
	default:
		i := sort.Search(n, func(i int) bool { return bars[i].Timestamp >= bar.Timestamp })
		if i < n && bars[i].Timestamp == bar.Timestamp {
			bars[i] = bar
		} else {
			bars = append(bars, types.Bar{})
			copy(bars[i+1:], bars[i:])
			bars[i] = bar
		}
	}

	if len(bars) > s.maxBars {
		bars = bars[len(bars)-s.maxBars:]
	}
	s.series[symbol][tf] = bars
}

// Bars returns a copy of the series, oldest first.
func (s *Store) Bars(symbol string, tf types.Timeframe) []types.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bars := s.series[symbol][tf]
	out := make([]types.Bar, len(bars))
	copy(out, bars)
	return out
}

// ClosedBars returns only bars whose interval ended at or before now.
// Strategies consume this view so a forming candle can never drive a
// decision.
func (s *Store) ClosedBars(symbol string, tf types.Timeframe, now time.Time) []types.Bar {
	bars := s.Bars(symbol, tf)
	for len(bars) > 0 && !bars[len(bars)-1].IsClosed(tf, now) {
		bars = bars[:len(bars)-1]
	}
	return bars
}

// Count returns the stored bar count for symbol/timeframe.
func (s *Store) Count(symbol string, tf types.Timeframe) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series[symbol][tf])
}

// Bundle assembles the multi-timeframe snapshot strategies analyze: closed
// bars on H1/M15/M5 plus the live quote.
func (s *Store) Bundle(symbol string, bid, ask float64, now time.Time) types.MTFBundle {
	return types.MTFBundle{
		Symbol:     symbol,
		H1:         s.ClosedBars(symbol, types.H1, now),
		M15:        s.ClosedBars(symbol, types.M15, now),
		M5:         s.ClosedBars(symbol, types.M5, now),
		Bid:        bid,
		Ask:        ask,
		SpreadPips: types.SpreadPips(symbol, bid, ask),
		Now:        now,
	}
}
