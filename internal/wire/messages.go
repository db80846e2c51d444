package wire

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Message is anything that can be placed in an envelope payload.
type Message interface {
	Marshal() []byte
}

// Trade side and order type wire enums.
const (
	TradeSideBuy  int32 = 1
	TradeSideSell int32 = 2

	OrderTypeMarket int32 = 1

	PositionStatusOpen   int32 = 1
	PositionStatusClosed int32 = 2
)

// Execution event types.
const (
	ExecOrderAccepted    int32 = 2
	ExecOrderFilled      int32 = 3
	ExecOrderReplaced    int32 = 4
	ExecOrderCancelled   int32 = 5
	ExecOrderExpired     int32 = 6
	ExecOrderRejected    int32 = 7
	ExecOrderPartialFill int32 = 11
)

// ————————————————————————————————————————————————————————————————————————
// Session / auth
// ————————————————————————————————————————————————————————————————————————

// ApplicationAuthReq authenticates the API application.
type ApplicationAuthReq struct {
	ClientID     string
	ClientSecret string
}

func (m *ApplicationAuthReq) Marshal() []byte {
	b := appendString(nil, 2, m.ClientID)
	return appendString(b, 3, m.ClientSecret)
}

func (m *ApplicationAuthReq) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		var err error
		switch num {
		case 2:
			m.ClientID, err = asString(val)
		case 3:
			m.ClientSecret, err = asString(val)
		}
		return err
	})
}

// ApplicationAuthRes acknowledges application auth. No fields consumed.
type ApplicationAuthRes struct{}

func (m *ApplicationAuthRes) Marshal() []byte          { return nil }
func (m *ApplicationAuthRes) Unmarshal(_ []byte) error { return nil }

// GetAccountsByTokenReq lists accounts reachable with an access token.
type GetAccountsByTokenReq struct {
	AccessToken string
}

func (m *GetAccountsByTokenReq) Marshal() []byte {
	return appendString(nil, 2, m.AccessToken)
}

func (m *GetAccountsByTokenReq) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		var err error
		if num == 2 {
			m.AccessToken, err = asString(val)
		}
		return err
	})
}

// CtidTraderAccount is one account entry in GetAccountsByTokenRes.
type CtidTraderAccount struct {
	AccountID   int64
	IsLive      bool
	TraderLogin int64
}

func (m *CtidTraderAccount) Marshal() []byte {
	b := appendInt(nil, 1, m.AccountID)
	b = appendBool(b, 2, m.IsLive)
	if m.TraderLogin != 0 {
		b = appendInt(b, 3, m.TraderLogin)
	}
	return b
}

func (m *CtidTraderAccount) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		var err error
		switch num {
		case 1:
			m.AccountID, err = asInt(val)
		case 2:
			m.IsLive, err = asBool(val)
		case 3:
			m.TraderLogin, err = asInt(val)
		}
		return err
	})
}

// GetAccountsByTokenRes lists the accounts for the supplied token.
type GetAccountsByTokenRes struct {
	Accounts []CtidTraderAccount
}

func (m *GetAccountsByTokenRes) Marshal() []byte {
	var b []byte
	for i := range m.Accounts {
		b = appendMessage(b, 2, m.Accounts[i].Marshal())
	}
	return b
}

func (m *GetAccountsByTokenRes) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		if num != 2 {
			return nil
		}
		raw, err := asBytes(val)
		if err != nil {
			return err
		}
		var acc CtidTraderAccount
		if err := acc.Unmarshal(raw); err != nil {
			return err
		}
		m.Accounts = append(m.Accounts, acc)
		return nil
	})
}

// AccountAuthReq authorizes one trading account on the session.
type AccountAuthReq struct {
	AccountID   int64
	AccessToken string
}

func (m *AccountAuthReq) Marshal() []byte {
	b := appendInt(nil, 2, m.AccountID)
	return appendString(b, 3, m.AccessToken)
}

func (m *AccountAuthReq) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		var err error
		switch num {
		case 2:
			m.AccountID, err = asInt(val)
		case 3:
			m.AccessToken, err = asString(val)
		}
		return err
	})
}

// AccountAuthRes acknowledges account auth.
type AccountAuthRes struct {
	AccountID int64
}

func (m *AccountAuthRes) Marshal() []byte {
	return appendInt(nil, 2, m.AccountID)
}

func (m *AccountAuthRes) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		var err error
		if num == 2 {
			m.AccountID, err = asInt(val)
		}
		return err
	})
}

// HeartbeatEvent is the 10-second keepalive, sent both directions.
type HeartbeatEvent struct{}

func (m *HeartbeatEvent) Marshal() []byte          { return nil }
func (m *HeartbeatEvent) Unmarshal(_ []byte) error { return nil }

// ClientDisconnectEvent is sent by the server before it drops the session.
type ClientDisconnectEvent struct {
	Reason string
}

func (m *ClientDisconnectEvent) Marshal() []byte {
	if m.Reason == "" {
		return nil
	}
	return appendString(nil, 1, m.Reason)
}

func (m *ClientDisconnectEvent) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		var err error
		if num == 1 {
			m.Reason, err = asString(val)
		}
		return err
	})
}

// ErrorRes is the distinguished broker error response (payload type 2142).
type ErrorRes struct {
	ErrorCode   string
	Description string
}

func (m *ErrorRes) Marshal() []byte {
	b := appendString(nil, 2, m.ErrorCode)
	if m.Description != "" {
		b = appendString(b, 3, m.Description)
	}
	return b
}

func (m *ErrorRes) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		var err error
		switch num {
		case 2:
			m.ErrorCode, err = asString(val)
		case 3:
			m.Description, err = asString(val)
		}
		return err
	})
}

// ————————————————————————————————————————————————————————————————————————
// Symbols and spots
// ————————————————————————————————————————————————————————————————————————

// SymbolsListReq requests the symbol catalog for the account.
type SymbolsListReq struct {
	AccountID int64
}

func (m *SymbolsListReq) Marshal() []byte { return appendInt(nil, 2, m.AccountID) }

func (m *SymbolsListReq) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		var err error
		if num == 2 {
			m.AccountID, err = asInt(val)
		}
		return err
	})
}

// LightSymbol is one catalog entry.
type LightSymbol struct {
	ID           int64
	Name         string
	Enabled      bool
	BaseAssetID  int64
	QuoteAssetID int64
	Description  string
}

func (m *LightSymbol) Marshal() []byte {
	b := appendInt(nil, 1, m.ID)
	b = appendString(b, 2, m.Name)
	b = appendBool(b, 3, m.Enabled)
	if m.BaseAssetID != 0 {
		b = appendInt(b, 4, m.BaseAssetID)
	}
	if m.QuoteAssetID != 0 {
		b = appendInt(b, 5, m.QuoteAssetID)
	}
	if m.Description != "" {
		b = appendString(b, 7, m.Description)
	}
	return b
}

func (m *LightSymbol) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		var err error
		switch num {
		case 1:
			m.ID, err = asInt(val)
		case 2:
			m.Name, err = asString(val)
		case 3:
			m.Enabled, err = asBool(val)
		case 4:
			m.BaseAssetID, err = asInt(val)
		case 5:
			m.QuoteAssetID, err = asInt(val)
		case 7:
			m.Description, err = asString(val)
		}
		return err
	})
}

// SymbolsListRes carries the symbol catalog.
type SymbolsListRes struct {
	AccountID int64
	Symbols   []LightSymbol
}

func (m *SymbolsListRes) Marshal() []byte {
	b := appendInt(nil, 2, m.AccountID)
	for i := range m.Symbols {
		b = appendMessage(b, 3, m.Symbols[i].Marshal())
	}
	return b
}

func (m *SymbolsListRes) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		switch num {
		case 2:
			v, err := asInt(val)
			m.AccountID = v
			return err
		case 3:
			raw, err := asBytes(val)
			if err != nil {
				return err
			}
			var sym LightSymbol
			if err := sym.Unmarshal(raw); err != nil {
				return err
			}
			m.Symbols = append(m.Symbols, sym)
		}
		return nil
	})
}

// SubscribeSpotsReq subscribes real-time quotes for the listed symbol ids.
type SubscribeSpotsReq struct {
	AccountID int64
	SymbolIDs []int64
}

func (m *SubscribeSpotsReq) Marshal() []byte {
	b := appendInt(nil, 2, m.AccountID)
	for _, id := range m.SymbolIDs {
		b = appendInt(b, 3, id)
	}
	return b
}

func (m *SubscribeSpotsReq) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		switch num {
		case 2:
			v, err := asInt(val)
			m.AccountID = v
			return err
		case 3:
			v, err := asInt(val)
			if err != nil {
				return err
			}
			m.SymbolIDs = append(m.SymbolIDs, v)
		}
		return nil
	})
}

// SubscribeSpotsRes acknowledges a spot subscription.
type SubscribeSpotsRes struct {
	AccountID int64
}

func (m *SubscribeSpotsRes) Marshal() []byte { return appendInt(nil, 2, m.AccountID) }

func (m *SubscribeSpotsRes) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		var err error
		if num == 2 {
			m.AccountID, err = asInt(val)
		}
		return err
	})
}

// UnsubscribeSpotsReq removes spot subscriptions.
type UnsubscribeSpotsReq struct {
	AccountID int64
	SymbolIDs []int64
}

func (m *UnsubscribeSpotsReq) Marshal() []byte {
	b := appendInt(nil, 2, m.AccountID)
	for _, id := range m.SymbolIDs {
		b = appendInt(b, 3, id)
	}
	return b
}

func (m *UnsubscribeSpotsReq) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		switch num {
		case 2:
			v, err := asInt(val)
			m.AccountID = v
			return err
		case 3:
			v, err := asInt(val)
			if err != nil {
				return err
			}
			m.SymbolIDs = append(m.SymbolIDs, v)
		}
		return nil
	})
}

// UnsubscribeSpotsRes acknowledges an unsubscribe.
type UnsubscribeSpotsRes struct {
	AccountID int64
}

func (m *UnsubscribeSpotsRes) Marshal() []byte { return appendInt(nil, 2, m.AccountID) }

func (m *UnsubscribeSpotsRes) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		var err error
		if num == 2 {
			m.AccountID, err = asInt(val)
		}
		return err
	})
}

// SpotEvent is a real-time quote. Bid/Ask are integer prices (×100000);
// zero means "unchanged on this update".
type SpotEvent struct {
	AccountID int64
	SymbolID  int64
	Bid       uint64
	Ask       uint64
	Trendbars []Trendbar
	Timestamp int64 // unix millis
}

func (m *SpotEvent) Marshal() []byte {
	b := appendInt(nil, 2, m.AccountID)
	b = appendInt(b, 3, m.SymbolID)
	if m.Bid != 0 {
		b = appendUint(b, 4, m.Bid)
	}
	if m.Ask != 0 {
		b = appendUint(b, 5, m.Ask)
	}
	for i := range m.Trendbars {
		b = appendMessage(b, 6, m.Trendbars[i].Marshal())
	}
	if m.Timestamp != 0 {
		b = appendInt(b, 8, m.Timestamp)
	}
	return b
}

func (m *SpotEvent) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		switch num {
		case 2:
			v, err := asInt(val)
			m.AccountID = v
			return err
		case 3:
			v, err := asInt(val)
			m.SymbolID = v
			return err
		case 4:
			v, err := asUint(val)
			m.Bid = v
			return err
		case 5:
			v, err := asUint(val)
			m.Ask = v
			return err
		case 6:
			raw, err := asBytes(val)
			if err != nil {
				return err
			}
			var tb Trendbar
			if err := tb.Unmarshal(raw); err != nil {
				return err
			}
			m.Trendbars = append(m.Trendbars, tb)
		case 8:
			v, err := asInt(val)
			m.Timestamp = v
			return err
		}
		return nil
	})
}

// ————————————————————————————————————————————————————————————————————————
// Trendbars
// ————————————————————————————————————————————————————————————————————————

// Trendbar is the delta-encoded OHLC bar:
//
//	open  = low + deltaOpen
//	close = low + deltaClose
//	high  = low + deltaHigh
//	timestamp = utcTimestampInMinutes × 60 × 1000
type Trendbar struct {
	Volume                int64
	Period                int32
	Low                   int64
	DeltaOpen             uint64
	DeltaClose            uint64
	DeltaHigh             uint64
	UTCTimestampInMinutes uint32
}

func (m *Trendbar) Marshal() []byte {
	b := appendInt(nil, 3, m.Volume)
	if m.Period != 0 {
		b = appendInt(b, 4, int64(m.Period))
	}
	b = appendInt(b, 5, m.Low)
	b = appendUint(b, 6, m.DeltaOpen)
	b = appendUint(b, 7, m.DeltaClose)
	b = appendUint(b, 8, m.DeltaHigh)
	b = appendUint(b, 9, uint64(m.UTCTimestampInMinutes))
	return b
}

func (m *Trendbar) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		switch num {
		case 3:
			v, err := asInt(val)
			m.Volume = v
			return err
		case 4:
			v, err := asInt(val)
			m.Period = int32(v)
			return err
		case 5:
			v, err := asInt(val)
			m.Low = v
			return err
		case 6:
			v, err := asUint(val)
			m.DeltaOpen = v
			return err
		case 7:
			v, err := asUint(val)
			m.DeltaClose = v
			return err
		case 8:
			v, err := asUint(val)
			m.DeltaHigh = v
			return err
		case 9:
			v, err := asUint(val)
			m.UTCTimestampInMinutes = uint32(v)
			return err
		}
		return nil
	})
}

// OpenWire returns the absolute wire open price.
func (m *Trendbar) OpenWire() int64 { return m.Low + int64(m.DeltaOpen) }

// HighWire returns the absolute wire high price.
func (m *Trendbar) HighWire() int64 { return m.Low + int64(m.DeltaHigh) }

// CloseWire returns the absolute wire close price.
func (m *Trendbar) CloseWire() int64 { return m.Low + int64(m.DeltaClose) }

// TimestampMillis returns the bar open as unix milliseconds.
func (m *Trendbar) TimestampMillis() int64 { return int64(m.UTCTimestampInMinutes) * 60 * 1000 }

// GetTrendbarsReq requests candle history.
type GetTrendbarsReq struct {
	AccountID     int64
	FromTimestamp int64
	ToTimestamp   int64
	Period        int32
	SymbolID      int64
	Count         uint32
}

func (m *GetTrendbarsReq) Marshal() []byte {
	b := appendInt(nil, 2, m.AccountID)
	b = appendInt(b, 3, m.FromTimestamp)
	b = appendInt(b, 4, m.ToTimestamp)
	b = appendInt(b, 5, int64(m.Period))
	b = appendInt(b, 6, m.SymbolID)
	if m.Count != 0 {
		b = appendUint(b, 7, uint64(m.Count))
	}
	return b
}

func (m *GetTrendbarsReq) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		switch num {
		case 2:
			v, err := asInt(val)
			m.AccountID = v
			return err
		case 3:
			v, err := asInt(val)
			m.FromTimestamp = v
			return err
		case 4:
			v, err := asInt(val)
			m.ToTimestamp = v
			return err
		case 5:
			v, err := asInt(val)
			m.Period = int32(v)
			return err
		case 6:
			v, err := asInt(val)
			m.SymbolID = v
			return err
		case 7:
			v, err := asUint(val)
			m.Count = uint32(v)
			return err
		}
		return nil
	})
}

// GetTrendbarsRes carries the requested history.
type GetTrendbarsRes struct {
	AccountID int64
	Period    int32
	Timestamp int64
	Bars      []Trendbar
}

func (m *GetTrendbarsRes) Marshal() []byte {
	b := appendInt(nil, 2, m.AccountID)
	if m.Period != 0 {
		b = appendInt(b, 3, int64(m.Period))
	}
	if m.Timestamp != 0 {
		b = appendInt(b, 4, m.Timestamp)
	}
	for i := range m.Bars {
		b = appendMessage(b, 5, m.Bars[i].Marshal())
	}
	return b
}

func (m *GetTrendbarsRes) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		switch num {
		case 2:
			v, err := asInt(val)
			m.AccountID = v
			return err
		case 3:
			v, err := asInt(val)
			m.Period = int32(v)
			return err
		case 4:
			v, err := asInt(val)
			m.Timestamp = v
			return err
		case 5:
			raw, err := asBytes(val)
			if err != nil {
				return err
			}
			var tb Trendbar
			if err := tb.Unmarshal(raw); err != nil {
				return err
			}
			m.Bars = append(m.Bars, tb)
		}
		return nil
	})
}

// SubscribeLiveTrendbarReq subscribes live bar updates for one symbol/period.
type SubscribeLiveTrendbarReq struct {
	AccountID int64
	Period    int32
	SymbolID  int64
}

func (m *SubscribeLiveTrendbarReq) Marshal() []byte {
	b := appendInt(nil, 2, m.AccountID)
	b = appendInt(b, 3, int64(m.Period))
	return appendInt(b, 4, m.SymbolID)
}

func (m *SubscribeLiveTrendbarReq) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		switch num {
		case 2:
			v, err := asInt(val)
			m.AccountID = v
			return err
		case 3:
			v, err := asInt(val)
			m.Period = int32(v)
			return err
		case 4:
			v, err := asInt(val)
			m.SymbolID = v
			return err
		}
		return nil
	})
}

// SubscribeLiveTrendbarRes acknowledges a live trendbar subscription.
type SubscribeLiveTrendbarRes struct {
	AccountID int64
}

func (m *SubscribeLiveTrendbarRes) Marshal() []byte { return appendInt(nil, 2, m.AccountID) }

func (m *SubscribeLiveTrendbarRes) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		var err error
		if num == 2 {
			m.AccountID, err = asInt(val)
		}
		return err
	})
}

// ————————————————————————————————————————————————————————————————————————
// Orders, positions, trader
// ————————————————————————————————————————————————————————————————————————

// NewOrderReq places an order. Volume is broker units (lots × 100).
// StopLoss/TakeProfit are absolute prices; zero means unset.
type NewOrderReq struct {
	AccountID  int64
	SymbolID   int64
	OrderType  int32
	TradeSide  int32
	Volume     int64
	StopLoss   float64
	TakeProfit float64
	Comment    string
	Label      string
}

func (m *NewOrderReq) Marshal() []byte {
	b := appendInt(nil, 2, m.AccountID)
	b = appendInt(b, 3, m.SymbolID)
	b = appendInt(b, 4, int64(m.OrderType))
	b = appendInt(b, 5, int64(m.TradeSide))
	b = appendInt(b, 6, m.Volume)
	if m.StopLoss != 0 {
		b = appendDouble(b, 9, m.StopLoss)
	}
	if m.TakeProfit != 0 {
		b = appendDouble(b, 10, m.TakeProfit)
	}
	if m.Comment != "" {
		b = appendString(b, 11, m.Comment)
	}
	if m.Label != "" {
		b = appendString(b, 17, m.Label)
	}
	return b
}

func (m *NewOrderReq) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		switch num {
		case 2:
			v, err := asInt(val)
			m.AccountID = v
			return err
		case 3:
			v, err := asInt(val)
			m.SymbolID = v
			return err
		case 4:
			v, err := asInt(val)
			m.OrderType = int32(v)
			return err
		case 5:
			v, err := asInt(val)
			m.TradeSide = int32(v)
			return err
		case 6:
			v, err := asInt(val)
			m.Volume = v
			return err
		case 9:
			v, err := asDouble(val)
			m.StopLoss = v
			return err
		case 10:
			v, err := asDouble(val)
			m.TakeProfit = v
			return err
		case 11:
			v, err := asString(val)
			m.Comment = v
			return err
		case 17:
			v, err := asString(val)
			m.Label = v
			return err
		}
		return nil
	})
}

// ClosePositionReq closes (part of) a position.
type ClosePositionReq struct {
	AccountID  int64
	PositionID int64
	Volume     int64
}

func (m *ClosePositionReq) Marshal() []byte {
	b := appendInt(nil, 2, m.AccountID)
	b = appendInt(b, 3, m.PositionID)
	return appendInt(b, 4, m.Volume)
}

func (m *ClosePositionReq) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		switch num {
		case 2:
			v, err := asInt(val)
			m.AccountID = v
			return err
		case 3:
			v, err := asInt(val)
			m.PositionID = v
			return err
		case 4:
			v, err := asInt(val)
			m.Volume = v
			return err
		}
		return nil
	})
}

// AmendPositionSLTPReq changes stop-loss/take-profit on an open position.
type AmendPositionSLTPReq struct {
	AccountID  int64
	PositionID int64
	StopLoss   float64
	TakeProfit float64
}

func (m *AmendPositionSLTPReq) Marshal() []byte {
	b := appendInt(nil, 2, m.AccountID)
	b = appendInt(b, 3, m.PositionID)
	if m.StopLoss != 0 {
		b = appendDouble(b, 4, m.StopLoss)
	}
	if m.TakeProfit != 0 {
		b = appendDouble(b, 5, m.TakeProfit)
	}
	return b
}

func (m *AmendPositionSLTPReq) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		switch num {
		case 2:
			v, err := asInt(val)
			m.AccountID = v
			return err
		case 3:
			v, err := asInt(val)
			m.PositionID = v
			return err
		case 4:
			v, err := asDouble(val)
			m.StopLoss = v
			return err
		case 5:
			v, err := asDouble(val)
			m.TakeProfit = v
			return err
		}
		return nil
	})
}

// TradeData is the immutable core of an order or position.
type TradeData struct {
	SymbolID      int64
	Volume        int64
	TradeSide     int32
	OpenTimestamp int64
	Label         string
}

func (m *TradeData) Marshal() []byte {
	b := appendInt(nil, 1, m.SymbolID)
	b = appendInt(b, 2, m.Volume)
	b = appendInt(b, 3, int64(m.TradeSide))
	if m.OpenTimestamp != 0 {
		b = appendInt(b, 4, m.OpenTimestamp)
	}
	if m.Label != "" {
		b = appendString(b, 5, m.Label)
	}
	return b
}

func (m *TradeData) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		switch num {
		case 1:
			v, err := asInt(val)
			m.SymbolID = v
			return err
		case 2:
			v, err := asInt(val)
			m.Volume = v
			return err
		case 3:
			v, err := asInt(val)
			m.TradeSide = int32(v)
			return err
		case 4:
			v, err := asInt(val)
			m.OpenTimestamp = v
			return err
		case 5:
			v, err := asString(val)
			m.Label = v
			return err
		}
		return nil
	})
}

// Position is the broker's view of an open or closed position.
type Position struct {
	PositionID int64
	TradeData  TradeData
	Status     int32
	Price      float64
	StopLoss   float64
	TakeProfit float64
}

func (m *Position) Marshal() []byte {
	b := appendInt(nil, 1, m.PositionID)
	b = appendMessage(b, 2, m.TradeData.Marshal())
	b = appendInt(b, 3, int64(m.Status))
	if m.Price != 0 {
		b = appendDouble(b, 5, m.Price)
	}
	if m.StopLoss != 0 {
		b = appendDouble(b, 6, m.StopLoss)
	}
	if m.TakeProfit != 0 {
		b = appendDouble(b, 7, m.TakeProfit)
	}
	return b
}

func (m *Position) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		switch num {
		case 1:
			v, err := asInt(val)
			m.PositionID = v
			return err
		case 2:
			raw, err := asBytes(val)
			if err != nil {
				return err
			}
			return m.TradeData.Unmarshal(raw)
		case 3:
			v, err := asInt(val)
			m.Status = int32(v)
			return err
		case 5:
			v, err := asDouble(val)
			m.Price = v
			return err
		case 6:
			v, err := asDouble(val)
			m.StopLoss = v
			return err
		case 7:
			v, err := asDouble(val)
			m.TakeProfit = v
			return err
		}
		return nil
	})
}

// Order is the broker's view of an order in an execution event.
type Order struct {
	OrderID        int64
	TradeData      TradeData
	ExecutionPrice float64
}

func (m *Order) Marshal() []byte {
	b := appendInt(nil, 1, m.OrderID)
	b = appendMessage(b, 2, m.TradeData.Marshal())
	if m.ExecutionPrice != 0 {
		b = appendDouble(b, 6, m.ExecutionPrice)
	}
	return b
}

func (m *Order) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		switch num {
		case 1:
			v, err := asInt(val)
			m.OrderID = v
			return err
		case 2:
			raw, err := asBytes(val)
			if err != nil {
				return err
			}
			return m.TradeData.Unmarshal(raw)
		case 6:
			v, err := asDouble(val)
			m.ExecutionPrice = v
			return err
		}
		return nil
	})
}

// ExecutionEvent reports order lifecycle changes, including fills.
type ExecutionEvent struct {
	AccountID     int64
	ExecutionType int32
	Position      *Position
	Order         *Order
	ErrorCode     string
}

func (m *ExecutionEvent) Marshal() []byte {
	b := appendInt(nil, 2, m.AccountID)
	b = appendInt(b, 3, int64(m.ExecutionType))
	if m.Position != nil {
		b = appendMessage(b, 4, m.Position.Marshal())
	}
	if m.Order != nil {
		b = appendMessage(b, 5, m.Order.Marshal())
	}
	if m.ErrorCode != "" {
		b = appendString(b, 9, m.ErrorCode)
	}
	return b
}

func (m *ExecutionEvent) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		switch num {
		case 2:
			v, err := asInt(val)
			m.AccountID = v
			return err
		case 3:
			v, err := asInt(val)
			m.ExecutionType = int32(v)
			return err
		case 4:
			raw, err := asBytes(val)
			if err != nil {
				return err
			}
			m.Position = &Position{}
			return m.Position.Unmarshal(raw)
		case 5:
			raw, err := asBytes(val)
			if err != nil {
				return err
			}
			m.Order = &Order{}
			return m.Order.Unmarshal(raw)
		case 9:
			v, err := asString(val)
			m.ErrorCode = v
			return err
		}
		return nil
	})
}

// OrderErrorEvent reports an order rejected outside the request/response flow.
type OrderErrorEvent struct {
	ErrorCode   string
	AccountID   int64
	OrderID     int64
	PositionID  int64
	Description string
}

func (m *OrderErrorEvent) Marshal() []byte {
	b := appendString(nil, 2, m.ErrorCode)
	b = appendInt(b, 3, m.AccountID)
	if m.OrderID != 0 {
		b = appendInt(b, 4, m.OrderID)
	}
	if m.PositionID != 0 {
		b = appendInt(b, 5, m.PositionID)
	}
	if m.Description != "" {
		b = appendString(b, 6, m.Description)
	}
	return b
}

func (m *OrderErrorEvent) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		switch num {
		case 2:
			v, err := asString(val)
			m.ErrorCode = v
			return err
		case 3:
			v, err := asInt(val)
			m.AccountID = v
			return err
		case 4:
			v, err := asInt(val)
			m.OrderID = v
			return err
		case 5:
			v, err := asInt(val)
			m.PositionID = v
			return err
		case 6:
			v, err := asString(val)
			m.Description = v
			return err
		}
		return nil
	})
}

// TraderReq requests account details.
type TraderReq struct {
	AccountID int64
}

func (m *TraderReq) Marshal() []byte { return appendInt(nil, 2, m.AccountID) }

func (m *TraderReq) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		var err error
		if num == 2 {
			m.AccountID, err = asInt(val)
		}
		return err
	})
}

// Trader carries account balance in cents.
type Trader struct {
	AccountID    int64
	BalanceCents int64
}

func (m *Trader) Marshal() []byte {
	b := appendInt(nil, 1, m.AccountID)
	return appendInt(b, 2, m.BalanceCents)
}

func (m *Trader) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		switch num {
		case 1:
			v, err := asInt(val)
			m.AccountID = v
			return err
		case 2:
			v, err := asInt(val)
			m.BalanceCents = v
			return err
		}
		return nil
	})
}

// TraderRes answers TraderReq.
type TraderRes struct {
	AccountID int64
	Trader    Trader
}

func (m *TraderRes) Marshal() []byte {
	b := appendInt(nil, 2, m.AccountID)
	return appendMessage(b, 3, m.Trader.Marshal())
}

func (m *TraderRes) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		switch num {
		case 2:
			v, err := asInt(val)
			m.AccountID = v
			return err
		case 3:
			raw, err := asBytes(val)
			if err != nil {
				return err
			}
			return m.Trader.Unmarshal(raw)
		}
		return nil
	})
}

// TraderUpdateEvent pushes balance/equity changes.
type TraderUpdateEvent struct {
	AccountID int64
	Trader    Trader
}

func (m *TraderUpdateEvent) Marshal() []byte {
	b := appendInt(nil, 2, m.AccountID)
	return appendMessage(b, 3, m.Trader.Marshal())
}

func (m *TraderUpdateEvent) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		switch num {
		case 2:
			v, err := asInt(val)
			m.AccountID = v
			return err
		case 3:
			raw, err := asBytes(val)
			if err != nil {
				return err
			}
			return m.Trader.Unmarshal(raw)
		}
		return nil
	})
}

// ReconcileReq asks the broker for the authoritative open position set.
type ReconcileReq struct {
	AccountID int64
}

func (m *ReconcileReq) Marshal() []byte { return appendInt(nil, 2, m.AccountID) }

func (m *ReconcileReq) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		var err error
		if num == 2 {
			m.AccountID, err = asInt(val)
		}
		return err
	})
}

// ReconcileRes lists the broker's open positions.
type ReconcileRes struct {
	AccountID int64
	Positions []Position
}

func (m *ReconcileRes) Marshal() []byte {
	b := appendInt(nil, 2, m.AccountID)
	for i := range m.Positions {
		b = appendMessage(b, 3, m.Positions[i].Marshal())
	}
	return b
}

func (m *ReconcileRes) Unmarshal(data []byte) error {
	return eachField(data, func(num protowire.Number, _ protowire.Type, val []byte) error {
		switch num {
		case 2:
			v, err := asInt(val)
			m.AccountID = v
			return err
		case 3:
			raw, err := asBytes(val)
			if err != nil {
				return err
			}
			var pos Position
			if err := pos.Unmarshal(raw); err != nil {
				return err
			}
			m.Positions = append(m.Positions, pos)
		}
		return nil
	})
}
