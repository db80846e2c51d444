// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the trading engine — symbols,
// timeframes, bars, ticks, signals, orders, and positions — plus the
// centralized fixed-point conversions between broker wire integers and
// display values. It has no dependencies on internal packages, so it can be
// imported by any layer.
package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the direction of an order: BUY or SELL.
type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == BUY {
		return SELL
	}
	return BUY
}

// Timeframe is a broker trendbar period. The numeric values are the wire
// enum the broker expects in GET_TRENDBARS_REQ and must not change.
type Timeframe int32

const (
	M1  Timeframe = 1
	M2  Timeframe = 2
	M3  Timeframe = 3
	M4  Timeframe = 4
	M5  Timeframe = 5
	M10 Timeframe = 6
	M15 Timeframe = 7
	M30 Timeframe = 8
	H1  Timeframe = 9
	H4  Timeframe = 10
	H12 Timeframe = 11
	D1  Timeframe = 12
	W1  Timeframe = 13
	MN1 Timeframe = 14
)

// Duration returns the bar interval for the timeframe.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case M1:
		return time.Minute
	case M2:
		return 2 * time.Minute
	case M3:
		return 3 * time.Minute
	case M4:
		return 4 * time.Minute
	case M5:
		return 5 * time.Minute
	case M10:
		return 10 * time.Minute
	case M15:
		return 15 * time.Minute
	case M30:
		return 30 * time.Minute
	case H1:
		return time.Hour
	case H4:
		return 4 * time.Hour
	case H12:
		return 12 * time.Hour
	case D1:
		return 24 * time.Hour
	case W1:
		return 7 * 24 * time.Hour
	case MN1:
		return 30 * 24 * time.Hour
	}
	return time.Minute
}

// String returns the conventional timeframe label ("M5", "H1", ...).
func (tf Timeframe) String() string {
	switch tf {
	case M1:
		return "M1"
	case M2:
		return "M2"
	case M3:
		return "M3"
	case M4:
		return "M4"
	case M5:
		return "M5"
	case M10:
		return "M10"
	case M15:
		return "M15"
	case M30:
		return "M30"
	case H1:
		return "H1"
	case H4:
		return "H4"
	case H12:
		return "H12"
	case D1:
		return "D1"
	case W1:
		return "W1"
	case MN1:
		return "MN1"
	}
	return "?"
}

// ————————————————————————————————————————————————————————————————————————
// Prices, pips, volumes
// ————————————————————————————————————————————————————————————————————————

// PriceScale is the wire representation of prices: integer price × 100000.
const PriceScale = 100000

var (
	priceScaleDec = decimal.NewFromInt(PriceScale)
	hundredDec    = decimal.NewFromInt(100)
)

// PriceFromWire converts a wire integer price (1/100000 units) to a float.
// The division goes through decimal so 110500 becomes exactly 1.105.
func PriceFromWire(raw int64) float64 {
	f, _ := decimal.NewFromInt(raw).Div(priceScaleDec).Float64()
	return f
}

// PriceToWire converts a price to the integer wire representation.
func PriceToWire(price float64) int64 {
	return decimal.NewFromFloat(price).Mul(priceScaleDec).Round(0).IntPart()
}

// VolumeFromLots converts lots to broker volume units (lots × 100, rounded up
// so a fractional lot never collapses to zero volume).
func VolumeFromLots(lots float64) int64 {
	return decimal.NewFromFloat(lots).Mul(hundredDec).Ceil().IntPart()
}

// LotsFromVolume converts broker volume units back to lots.
func LotsFromVolume(volume int64) float64 {
	f, _ := decimal.NewFromInt(volume).Div(hundredDec).Float64()
	return f
}

// PipSize returns the symbol-class-dependent pip quantum:
// 0.01 for JPY crosses, 0.1 for gold, 0.0001 for everything else.
func PipSize(symbolName string) float64 {
	name := strings.ToUpper(symbolName)
	switch {
	case strings.Contains(name, "JPY"):
		return 0.01
	case strings.HasPrefix(name, "XAU"):
		return 0.1
	default:
		return 0.0001
	}
}

// PriceDigits returns the quote precision implied by the pip class.
func PriceDigits(symbolName string) int {
	switch PipSize(symbolName) {
	case 0.01:
		return 3
	case 0.1:
		return 2
	default:
		return 5
	}
}

// SpreadPips converts a bid/ask pair to pips for the given symbol.
func SpreadPips(symbolName string, bid, ask float64) float64 {
	pip := PipSize(symbolName)
	if pip == 0 {
		return 0
	}
	return (ask - bid) / pip
}

// ————————————————————————————————————————————————————————————————————————
// Market data
// ————————————————————————————————————————————————————————————————————————

// Symbol is the broker catalog entry for a tradeable instrument.
// Unique by ID and by Name; the adapter keeps a bidirectional index.
type Symbol struct {
	ID           int64
	Name         string
	Digits       int
	PipPosition  int
	BaseAssetID  int64
	QuoteAssetID int64
}

// Bar is one OHLC candle. Timestamp is the bar open in Unix milliseconds.
// Prices are already converted from the wire representation.
type Bar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

// OpenTime returns the bar open time.
func (b Bar) OpenTime() time.Time {
	return time.UnixMilli(b.Timestamp).UTC()
}

// CloseTime returns the instant the bar closes for the given timeframe.
func (b Bar) CloseTime(tf Timeframe) time.Time {
	return b.OpenTime().Add(tf.Duration())
}

// IsClosed reports whether the bar's interval is fully in the past.
// Strategy code must never act on a bar for which this is false.
func (b Bar) IsClosed(tf Timeframe, now time.Time) bool {
	return !b.CloseTime(tf).After(now)
}

// Bullish reports whether the bar closed above its open.
func (b Bar) Bullish() bool { return b.Close > b.Open }

// Bearish reports whether the bar closed below its open.
func (b Bar) Bearish() bool { return b.Close < b.Open }

// Tick is a real-time quote for one symbol.
type Tick struct {
	SymbolID  int64
	Symbol    string
	Bid       float64
	Ask       float64
	Timestamp time.Time
}

// LiveBar is one streamed trendbar update. The bar for an open interval
// arrives repeatedly as it forms; consumers upsert by timestamp.
type LiveBar struct {
	Symbol    string
	Timeframe Timeframe
	Bar       Bar
}

// MTFBundle is the multi-timeframe view handed to strategies each analysis
// cycle: consistent snapshots of the three working timeframes plus the
// latest quote.
type MTFBundle struct {
	Symbol     string
	H1         []Bar
	M15        []Bar
	M5         []Bar
	Bid        float64
	Ask        float64
	SpreadPips float64
	Now        time.Time
}

// ————————————————————————————————————————————————————————————————————————
// Signals
// ————————————————————————————————————————————————————————————————————————

// Signal is the normalized strategy output. A zero Signal means "no trade".
type Signal struct {
	Valid      bool
	Direction  Side
	Confidence int // 0..100
	Reason     string
	Source     string  // "SMC" or "RSI_VWAP"
	StopPips   float64 // suggested stop distance in pips
	TargetPips float64 // suggested take-profit distance in pips
}

// ————————————————————————————————————————————————————————————————————————
// Orders and positions
// ————————————————————————————————————————————————————————————————————————

// OrderType enumerates supported order lifecycles. Only market orders are
// dispatched by the engine.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
)

// OrderRequest is the high-level order the engine hands to the adapter.
// SL/TP are pip distances from the execution price; nil means "do not set".
type OrderRequest struct {
	Symbol         string
	Direction      Side
	OrderType      OrderType
	Lots           float64
	StopLossPips   *float64
	TakeProfitPips *float64
	Comment        string
}

// OrderResult is the adapter's terminal outcome for one placement attempt.
// SafetyLatchTriggered means success was established by post-failure
// reconciliation rather than a broker confirmation.
type OrderResult struct {
	Success              bool
	OrderID              int64
	PositionID           int64
	ExecutionPrice       float64
	ErrorMessage         string
	SafetyLatchTriggered bool
}

// PositionStatus is the lifecycle state of a broker position.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// Position mirrors one broker position.
type Position struct {
	PositionID int64          `json:"position_id"`
	Symbol     string         `json:"symbol"`
	Direction  Side           `json:"direction"`
	Lots       float64        `json:"lots"`
	EntryPrice float64        `json:"entry_price"`
	StopLoss   float64        `json:"stop_loss,omitempty"`
	TakeProfit float64        `json:"take_profit,omitempty"`
	OpenedAt   time.Time      `json:"opened_at"`
	Status     PositionStatus `json:"status"`
}

// VolumeSpecs carries the broker's volume constraints for a symbol, in lots.
type VolumeSpecs struct {
	MinLots  float64
	MaxLots  float64
	StepLots float64
}

// AccountInfo is the subset of trader state the engine consumes.
type AccountInfo struct {
	AccountID int64
	Balance   float64
	Equity    float64
	IsDemo    bool
}

// Credentials authenticate one broker session. Immutable once connected.
type Credentials struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	AccountID    int64 // 0 = pick the first account returned by the broker
	IsDemo       bool
}
