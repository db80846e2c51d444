// Package obs exposes the engine's Prometheus metrics:
//
//   - bot_analysis_cycles_total            – completed analysis cycles
//   - bot_trades_total{symbol,direction}   – orders accepted by the broker
//   - bot_signals_total{source,outcome}    – signals by origin and fate
//   - bot_lock_events_total{event}         – in-flight lock lifecycle
//   - bot_reconnects_total                 – broker session reconnects
//   - bot_rate_limit_hits_total{op}        – throttled broker requests
//   - bot_equity_usd                       – last reported account equity
//   - bot_circuit_breaker_active           – 1 while the breaker blocks trading
//   - bot_open_positions                   – open positions across symbols
//
// Registered in init() and served at /metrics by the dashboard server.
package obs

import "github.com/prometheus/client_golang/prometheus"

var (
	analysisCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_analysis_cycles_total",
			Help: "Completed analysis cycles across all symbols",
		},
	)

	trades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_trades_total",
			Help: "Orders accepted by the broker",
		},
		[]string{"symbol", "direction"},
	)

	signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_signals_total",
			Help: "Strategy signals by source and outcome",
		},
		[]string{"source", "outcome"}, // outcome: executed|rejected|conflict
	)

	lockEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_lock_events_total",
			Help: "In-flight order lock lifecycle events",
		},
		[]string{"event"}, // acquired|blocked|released|timeout
	)

	reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_reconnects_total",
			Help: "Broker session reconnects",
		},
	)

	rateLimitHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_rate_limit_hits_total",
			Help: "Broker requests rejected for request frequency",
		},
		[]string{"op"},
	)

	equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_equity_usd",
			Help: "Last reported account equity",
		},
	)

	breakerActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_circuit_breaker_active",
			Help: "1 while the daily-loss circuit breaker blocks trading",
		},
	)

	openPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_open_positions",
			Help: "Open positions across all symbols",
		},
	)
)

func init() {
	prometheus.MustRegister(analysisCycles, trades, signals)
	prometheus.MustRegister(lockEvents, reconnects, rateLimitHits)
	prometheus.MustRegister(equity, breakerActive, openPositions)
}

func IncAnalysisCycles()                  { analysisCycles.Inc() }
func IncTrades(symbol, direction string)  { trades.WithLabelValues(symbol, direction).Inc() }
func IncSignals(source, outcome string)   { signals.WithLabelValues(source, outcome).Inc() }
func IncLockEvent(event string)           { lockEvents.WithLabelValues(event).Inc() }
func IncReconnects()                      { reconnects.Inc() }
func IncRateLimitHit(op string)           { rateLimitHits.WithLabelValues(op).Inc() }
func SetEquity(v float64)                 { equity.Set(v) }
func SetOpenPositions(n int)              { openPositions.Set(float64(n)) }

func SetBreakerActive(active bool) {
	if active {
		breakerActive.Set(1)
	} else {
		breakerActive.Set(0)
	}
}
