// Package wire implements the broker's binary protocol: length-delimited
// protobuf envelopes carried one-per-frame over the WebSocket.
//
// Every frame is a ProtoMessage envelope {payloadType, payload, clientMsgId}.
// A registry maps request message names to payload-type ids and response ids
// back to names. Message bodies are encoded with protowire against statically
// defined structs — the envelope is the authoritative shape, and only the
// fields this engine consumes are modeled.
package wire

// Payload type ids. These are fixed by the broker protocol; getting one wrong
// produces silent request/response mismatches, so they are centralized here.
const (
	PayloadHeartbeatEvent uint32 = 51

	PayloadApplicationAuthReq uint32 = 2100
	PayloadApplicationAuthRes uint32 = 2101
	PayloadAccountAuthReq     uint32 = 2102
	PayloadAccountAuthRes     uint32 = 2103

	PayloadNewOrderReq          uint32 = 2106
	PayloadAmendPositionSLTPReq uint32 = 2110
	PayloadClosePositionReq     uint32 = 2111

	PayloadSymbolsListReq uint32 = 2114
	PayloadSymbolsListRes uint32 = 2115

	PayloadTraderReq         uint32 = 2121
	PayloadTraderRes         uint32 = 2122
	PayloadTraderUpdateEvent uint32 = 2123

	PayloadReconcileReq uint32 = 2124
	PayloadReconcileRes uint32 = 2125

	PayloadExecutionEvent uint32 = 2126

	PayloadSubscribeSpotsReq   uint32 = 2127
	PayloadSubscribeSpotsRes   uint32 = 2128
	PayloadUnsubscribeSpotsReq uint32 = 2129
	PayloadUnsubscribeSpotsRes uint32 = 2130

	PayloadSpotEvent       uint32 = 2131
	PayloadOrderErrorEvent uint32 = 2132

	PayloadSubscribeLiveTrendbarReq uint32 = 2135
	PayloadGetTrendbarsReq          uint32 = 2137
	PayloadGetTrendbarsRes          uint32 = 2138

	PayloadErrorRes uint32 = 2142

	PayloadClientDisconnectEvent uint32 = 2148

	PayloadGetAccountsByTokenReq uint32 = 2149
	PayloadGetAccountsByTokenRes uint32 = 2150

	PayloadSubscribeLiveTrendbarRes uint32 = 2165
)

// requestTypes maps request message names to payload-type ids.
var requestTypes = map[string]uint32{
	"ApplicationAuthReq":       PayloadApplicationAuthReq,
	"GetAccountsByTokenReq":    PayloadGetAccountsByTokenReq,
	"AccountAuthReq":           PayloadAccountAuthReq,
	"SymbolsListReq":           PayloadSymbolsListReq,
	"SubscribeSpotsReq":        PayloadSubscribeSpotsReq,
	"UnsubscribeSpotsReq":      PayloadUnsubscribeSpotsReq,
	"SubscribeLiveTrendbarReq": PayloadSubscribeLiveTrendbarReq,
	"GetTrendbarsReq":          PayloadGetTrendbarsReq,
	"NewOrderReq":              PayloadNewOrderReq,
	"ClosePositionReq":         PayloadClosePositionReq,
	"AmendPositionSLTPReq":     PayloadAmendPositionSLTPReq,
	"TraderReq":                PayloadTraderReq,
	"ReconcileReq":             PayloadReconcileReq,
}

// responseNames maps inbound payload-type ids to message names.
var responseNames = map[uint32]string{
	PayloadHeartbeatEvent:           "HeartbeatEvent",
	PayloadApplicationAuthRes:       "ApplicationAuthRes",
	PayloadAccountAuthRes:           "AccountAuthRes",
	PayloadSymbolsListRes:           "SymbolsListRes",
	PayloadTraderRes:                "TraderRes",
	PayloadTraderUpdateEvent:        "TraderUpdateEvent",
	PayloadReconcileRes:             "ReconcileRes",
	PayloadExecutionEvent:           "ExecutionEvent",
	PayloadSubscribeSpotsRes:        "SubscribeSpotsRes",
	PayloadUnsubscribeSpotsRes:      "UnsubscribeSpotsRes",
	PayloadSpotEvent:                "SpotEvent",
	PayloadOrderErrorEvent:          "OrderErrorEvent",
	PayloadGetTrendbarsRes:          "GetTrendbarsRes",
	PayloadErrorRes:                 "ErrorRes",
	PayloadClientDisconnectEvent:    "ClientDisconnectEvent",
	PayloadGetAccountsByTokenRes:    "GetAccountsByTokenRes",
	PayloadSubscribeLiveTrendbarRes: "SubscribeLiveTrendbarRes",
}

// RequestType returns the payload-type id for a request message name.
func RequestType(name string) (uint32, bool) {
	id, ok := requestTypes[name]
	return id, ok
}

// PayloadName returns the message name for an inbound payload type.
// Unknown types return ("", false) and are delivered opaque.
func PayloadName(id uint32) (string, bool) {
	name, ok := responseNames[id]
	return name, ok
}

// IsError reports whether the payload type is the broker error response.
func IsError(id uint32) bool { return id == PayloadErrorRes }
