package wire

import (
	"reflect"
	"testing"
)

// roundTripper is every message that can be both encoded and decoded.
type roundTripper interface {
	Message
	Unmarshal([]byte) error
}

// roundTripCases pairs each payload type with a fully populated message.
// Optional fields are set to nonzero values so the comparison covers every
// field the codec models.
var roundTripCases = []struct {
	name string
	id   uint32
	in   roundTripper
	out  roundTripper
}{
	{"ApplicationAuthReq", PayloadApplicationAuthReq,
		&ApplicationAuthReq{ClientID: "client-1", ClientSecret: "s3cret"},
		&ApplicationAuthReq{}},
	{"ApplicationAuthRes", PayloadApplicationAuthRes,
		&ApplicationAuthRes{}, &ApplicationAuthRes{}},
	{"GetAccountsByTokenReq", PayloadGetAccountsByTokenReq,
		&GetAccountsByTokenReq{AccessToken: "tok"},
		&GetAccountsByTokenReq{}},
	{"GetAccountsByTokenRes", PayloadGetAccountsByTokenRes,
		&GetAccountsByTokenRes{Accounts: []CtidTraderAccount{
			{AccountID: 12345, IsLive: false, TraderLogin: 42},
			{AccountID: 67890, IsLive: true, TraderLogin: 43},
		}},
		&GetAccountsByTokenRes{}},
	{"AccountAuthReq", PayloadAccountAuthReq,
		&AccountAuthReq{AccountID: 12345, AccessToken: "tok"},
		&AccountAuthReq{}},
	{"AccountAuthRes", PayloadAccountAuthRes,
		&AccountAuthRes{AccountID: 12345}, &AccountAuthRes{}},
	{"HeartbeatEvent", PayloadHeartbeatEvent,
		&HeartbeatEvent{}, &HeartbeatEvent{}},
	{"ClientDisconnectEvent", PayloadClientDisconnectEvent,
		&ClientDisconnectEvent{Reason: "maintenance"},
		&ClientDisconnectEvent{}},
	{"ErrorRes", PayloadErrorRes,
		&ErrorRes{ErrorCode: "CH_CLIENT_AUTH_FAILURE", Description: "bad secret"},
		&ErrorRes{}},
	{"SymbolsListReq", PayloadSymbolsListReq,
		&SymbolsListReq{AccountID: 12345}, &SymbolsListReq{}},
	{"SymbolsListRes", PayloadSymbolsListRes,
		&SymbolsListRes{AccountID: 12345, Symbols: []LightSymbol{
			{ID: 1, Name: "EURUSD", Enabled: true, BaseAssetID: 2, QuoteAssetID: 3, Description: "Euro vs Dollar"},
		}},
		&SymbolsListRes{}},
	{"SubscribeSpotsReq", PayloadSubscribeSpotsReq,
		&SubscribeSpotsReq{AccountID: 12345, SymbolIDs: []int64{1, 2, 3}},
		&SubscribeSpotsReq{}},
	{"SubscribeSpotsRes", PayloadSubscribeSpotsRes,
		&SubscribeSpotsRes{AccountID: 12345}, &SubscribeSpotsRes{}},
	{"UnsubscribeSpotsReq", PayloadUnsubscribeSpotsReq,
		&UnsubscribeSpotsReq{AccountID: 12345, SymbolIDs: []int64{1}},
		&UnsubscribeSpotsReq{}},
	{"UnsubscribeSpotsRes", PayloadUnsubscribeSpotsRes,
		&UnsubscribeSpotsRes{AccountID: 12345}, &UnsubscribeSpotsRes{}},
	{"SpotEvent", PayloadSpotEvent,
		&SpotEvent{
			AccountID: 12345, SymbolID: 1, Bid: 110000, Ask: 110020,
			Trendbars: []Trendbar{{
				Volume: 10, Period: 5, Low: 110000,
				DeltaOpen: 50, DeltaClose: 120, DeltaHigh: 150,
				UTCTimestampInMinutes: 29000000,
			}},
			Timestamp: 1700000000000,
		},
		&SpotEvent{}},
	{"GetTrendbarsReq", PayloadGetTrendbarsReq,
		&GetTrendbarsReq{AccountID: 12345, FromTimestamp: 1, ToTimestamp: 2, Period: 7, SymbolID: 1, Count: 250},
		&GetTrendbarsReq{}},
	{"GetTrendbarsRes", PayloadGetTrendbarsRes,
		&GetTrendbarsRes{AccountID: 12345, Period: 7, Timestamp: 1700000000000, Bars: []Trendbar{
			{Volume: 1, Period: 7, Low: 109000, DeltaOpen: 10, DeltaClose: 20, DeltaHigh: 30, UTCTimestampInMinutes: 29000001},
			{Volume: 2, Period: 7, Low: 109100, DeltaOpen: 11, DeltaClose: 21, DeltaHigh: 31, UTCTimestampInMinutes: 29000016},
		}},
		&GetTrendbarsRes{}},
	{"SubscribeLiveTrendbarReq", PayloadSubscribeLiveTrendbarReq,
		&SubscribeLiveTrendbarReq{AccountID: 12345, Period: 5, SymbolID: 1},
		&SubscribeLiveTrendbarReq{}},
	{"SubscribeLiveTrendbarRes", PayloadSubscribeLiveTrendbarRes,
		&SubscribeLiveTrendbarRes{AccountID: 12345},
		&SubscribeLiveTrendbarRes{}},
	{"NewOrderReq", PayloadNewOrderReq,
		&NewOrderReq{
			AccountID: 12345, SymbolID: 1, OrderType: OrderTypeMarket,
			TradeSide: TradeSideBuy, Volume: 100,
			StopLoss: 1.0985, TakeProfit: 1.1045,
			Comment: "EURUSD-1700000000000", Label: "smc-trader",
		},
		&NewOrderReq{}},
	{"ClosePositionReq", PayloadClosePositionReq,
		&ClosePositionReq{AccountID: 12345, PositionID: 99, Volume: 100},
		&ClosePositionReq{}},
	{"AmendPositionSLTPReq", PayloadAmendPositionSLTPReq,
		&AmendPositionSLTPReq{AccountID: 12345, PositionID: 99, StopLoss: 1.0985, TakeProfit: 1.1045},
		&AmendPositionSLTPReq{}},
	{"ExecutionEvent", PayloadExecutionEvent,
		&ExecutionEvent{
			AccountID:     12345,
			ExecutionType: ExecOrderFilled,
			Position: &Position{
				PositionID: 99,
				TradeData:  TradeData{SymbolID: 1, Volume: 100, TradeSide: TradeSideBuy, OpenTimestamp: 1700000000000, Label: "smc-trader"},
				Status:     PositionStatusOpen,
				Price:      1.1012, StopLoss: 1.0985, TakeProfit: 1.1045,
			},
			Order: &Order{
				OrderID:        10,
				TradeData:      TradeData{SymbolID: 1, Volume: 100, TradeSide: TradeSideBuy},
				ExecutionPrice: 1.1012,
			},
			ErrorCode: "PARTIAL",
		},
		&ExecutionEvent{}},
	{"OrderErrorEvent", PayloadOrderErrorEvent,
		&OrderErrorEvent{ErrorCode: "MARKET_CLOSED", AccountID: 12345, OrderID: 10, PositionID: 99, Description: "market is closed"},
		&OrderErrorEvent{}},
	{"TraderReq", PayloadTraderReq,
		&TraderReq{AccountID: 12345}, &TraderReq{}},
	{"TraderRes", PayloadTraderRes,
		&TraderRes{AccountID: 12345, Trader: Trader{AccountID: 12345, BalanceCents: 1000000}},
		&TraderRes{}},
	{"TraderUpdateEvent", PayloadTraderUpdateEvent,
		&TraderUpdateEvent{AccountID: 12345, Trader: Trader{AccountID: 12345, BalanceCents: 969000}},
		&TraderUpdateEvent{}},
	{"ReconcileReq", PayloadReconcileReq,
		&ReconcileReq{AccountID: 12345}, &ReconcileReq{}},
	{"ReconcileRes", PayloadReconcileRes,
		&ReconcileRes{AccountID: 12345, Positions: []Position{{
			PositionID: 99,
			TradeData:  TradeData{SymbolID: 1, Volume: 100, TradeSide: TradeSideSell, OpenTimestamp: 1700000000000},
			Status:     PositionStatusOpen,
			Price:      1.1012,
		}}},
		&ReconcileRes{}},
}

func TestMessageRoundTrips(t *testing.T) {
	t.Parallel()
	for _, tc := range roundTripCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.out.Unmarshal(tc.in.Marshal()); err != nil {
				t.Fatalf("Unmarshal() error: %v", err)
			}
			if !reflect.DeepEqual(tc.in, tc.out) {
				t.Errorf("decode(encode(msg)) mismatch:\n got %+v\nwant %+v", tc.out, tc.in)
			}
		})
	}
}

func TestEnvelopeRoundTrips(t *testing.T) {
	t.Parallel()
	for _, tc := range roundTripCases {
		env := &Envelope{PayloadType: tc.id, Payload: tc.in.Marshal(), ClientMsgID: "msg-" + tc.name}
		got, err := ParseEnvelope(env.Marshal())
		if err != nil {
			t.Fatalf("%s: ParseEnvelope() error: %v", tc.name, err)
		}
		if got.PayloadType != tc.id {
			t.Errorf("%s: payload type = %d, want %d", tc.name, got.PayloadType, tc.id)
		}
		if got.ClientMsgID != env.ClientMsgID {
			t.Errorf("%s: client msg id = %q, want %q", tc.name, got.ClientMsgID, env.ClientMsgID)
		}
		if !reflect.DeepEqual(got.Payload, env.Payload) && len(env.Payload) > 0 {
			t.Errorf("%s: payload bytes changed in transit", tc.name)
		}
	}

	// Events carry no correlation id.
	env := &Envelope{PayloadType: PayloadHeartbeatEvent}
	got, err := ParseEnvelope(env.Marshal())
	if err != nil {
		t.Fatalf("ParseEnvelope() error: %v", err)
	}
	if got.ClientMsgID != "" {
		t.Errorf("client msg id = %q, want empty", got.ClientMsgID)
	}
}

func TestRequestTypeRegistry(t *testing.T) {
	t.Parallel()
	// Every request name resolves to its payload-type id, and no two names
	// share an id.
	seen := make(map[uint32]string)
	for _, tc := range roundTripCases {
		id, ok := RequestType(tc.name)
		if !ok {
			continue // responses and events are not in the request table
		}
		if id != tc.id {
			t.Errorf("RequestType(%s) = %d, want %d", tc.name, id, tc.id)
		}
		if prev, dup := seen[id]; dup {
			t.Errorf("payload type %d claimed by both %s and %s", id, prev, tc.name)
		}
		seen[id] = tc.name
	}
	if len(seen) != len(requestTypes) {
		t.Errorf("round-trip table covers %d request types, registry has %d", len(seen), len(requestTypes))
	}

	if _, ok := RequestType("NoSuchReq"); ok {
		t.Error("RequestType accepted an unknown name")
	}
}

func TestPayloadNameRegistry(t *testing.T) {
	t.Parallel()
	covered := 0
	for _, tc := range roundTripCases {
		name, ok := PayloadName(tc.id)
		if !ok {
			continue // request payload types have no inbound name
		}
		if name != tc.name {
			t.Errorf("PayloadName(%d) = %s, want %s", tc.id, name, tc.name)
		}
		covered++
	}
	if covered != len(responseNames) {
		t.Errorf("round-trip table covers %d inbound types, registry has %d", covered, len(responseNames))
	}

	if !IsError(PayloadErrorRes) {
		t.Error("IsError(PayloadErrorRes) = false")
	}
	if IsError(PayloadSpotEvent) {
		t.Error("IsError(PayloadSpotEvent) = true")
	}
}
