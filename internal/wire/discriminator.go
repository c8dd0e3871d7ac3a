package wire

import (
	"bytes"
	"encoding/json"
)

// AccountFrameKind discriminates a decoded value arriving on an
// authenticated account's upstream channel. REDESIGN FLAGS: this replaces
// the original's order-sensitive enum probe with an explicit, deterministic
// shape test — presence of a marker field decides the branch, independent
// of struct field declaration order.
type AccountFrameKind int

const (
	AccountFrameUnknown AccountFrameKind = iota
	AccountFrameUserData
	AccountFrameLogon
	AccountFrameSubscribe
	AccountFrameSubscriptionList
	AccountFrameStatus
)

// AccountFrame is the result of probing one upstream value destined for an
// Account's Process() loop. Exactly one of the pointer fields matching Kind
// is populated.
type AccountFrame struct {
	Kind             AccountFrameKind
	UserData         *UserDataWrapper
	Logon            *SessionLogonResponse
	Subscribe        *UserDataStreamSubscribeResponse
	SubscriptionList *WsApiResponse[UserDataStreamListResult]
	Status           *WsApiResponse[json.RawMessage]
}

// DecodeAccountFrame classifies a raw upstream frame by probing known
// marker fields, in the precedence order required to distinguish the five
// WS-API/user-data shapes Binance can send on the session.logon connection:
//
//  1. "subscriptionId" + "event" together → a user-data event wrapper.
//  2. "result.apiKey" present → a session.logon reply.
//  3. "result" is a JSON array → a subscription-list reply.
//  4. "result.subscriptionId" present → a subscribe reply.
//  5. anything else → a generic status/unsubscribe reply.
//
// Malformed or unrecognized shapes decode to AccountFrameStatus with a best
// effort Status value; callers are expected to log and drop, never panic.
func DecodeAccountFrame(raw json.RawMessage) AccountFrame {
	var probe struct {
		SubscriptionID *int64          `json:"subscriptionId"`
		Event          json.RawMessage `json:"event"`
		Result         json.RawMessage `json:"result"`
	}
	_ = json.Unmarshal(raw, &probe)

	if probe.SubscriptionID != nil && len(probe.Event) > 0 {
		var w UserDataWrapper
		if err := json.Unmarshal(raw, &w); err == nil {
			return AccountFrame{Kind: AccountFrameUserData, UserData: &w}
		}
	}

	if len(bytes.TrimSpace(probe.Result)) > 0 {
		var apiKeyProbe struct {
			APIKey string `json:"apiKey"`
		}
		_ = json.Unmarshal(probe.Result, &apiKeyProbe)
		if apiKeyProbe.APIKey != "" {
			var resp SessionLogonResponse
			if err := json.Unmarshal(raw, &resp); err == nil {
				return AccountFrame{Kind: AccountFrameLogon, Logon: &resp}
			}
		}

		if trimmed := bytes.TrimSpace(probe.Result); len(trimmed) > 0 && trimmed[0] == '[' {
			var resp WsApiResponse[UserDataStreamListResult]
			if err := json.Unmarshal(raw, &resp); err == nil {
				return AccountFrame{Kind: AccountFrameSubscriptionList, SubscriptionList: &resp}
			}
		}

		var subProbe struct {
			SubscriptionID int64 `json:"subscriptionId"`
		}
		_ = json.Unmarshal(probe.Result, &subProbe)
		if subProbe.SubscriptionID != 0 {
			var resp UserDataStreamSubscribeResponse
			if err := json.Unmarshal(raw, &resp); err == nil {
				return AccountFrame{Kind: AccountFrameSubscribe, Subscribe: &resp}
			}
		}
	}

	var resp WsApiResponse[json.RawMessage]
	_ = json.Unmarshal(raw, &resp)
	return AccountFrame{Kind: AccountFrameStatus, Status: &resp}
}

// MarketEventKind discriminates a decoded value arriving on a market
// upstream channel (OKX/Binance public combined streams).
type MarketEventKind int

const (
	MarketEventUnknown MarketEventKind = iota
	MarketEventSuccess
	MarketEventError
	MarketEventStream
)

// MarketAck is a generic subscribe/unsubscribe acknowledgement, keyed by
// the request id the pending-request table was populated with.
type MarketAck struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
}

// MarketErrorAck mirrors MarketAck for a failed request.
type MarketErrorAck struct {
	ID    int64      `json:"id"`
	Error WsApiError `json:"error"`
}

// MarketStreamEvent is a combined-stream push: a channel name plus its
// opaque payload (AggTradeEvent, DepthUpdateEvent, BookTickerEvent, ...).
type MarketStreamEvent struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// MarketEvent is the result of probing one upstream value destined for
// Market's Process() loop. Exactly one of Success/Error/Stream is set,
// matching Kind.
type MarketEvent struct {
	Kind    MarketEventKind
	Success *MarketAck
	Error   *MarketErrorAck
	Stream  *MarketStreamEvent
}

// DecodeMarketEvent classifies a raw upstream frame into the {Success,
// Error, Stream} union market.Process expects: a "stream" marker field
// means a push; an "error" object means a failed request; otherwise an
// "id" field means a request acknowledgement.
func DecodeMarketEvent(raw json.RawMessage) MarketEvent {
	var probe struct {
		ID     *int64          `json:"id"`
		Error  json.RawMessage `json:"error"`
		Stream *string         `json:"stream"`
	}
	_ = json.Unmarshal(raw, &probe)

	if probe.Stream != nil {
		var s MarketStreamEvent
		if err := json.Unmarshal(raw, &s); err == nil {
			return MarketEvent{Kind: MarketEventStream, Stream: &s}
		}
	}

	if len(bytes.TrimSpace(probe.Error)) > 0 {
		var e MarketErrorAck
		if err := json.Unmarshal(raw, &e); err == nil {
			return MarketEvent{Kind: MarketEventError, Error: &e}
		}
	}

	if probe.ID != nil {
		var s MarketAck
		if err := json.Unmarshal(raw, &s); err == nil {
			return MarketEvent{Kind: MarketEventSuccess, Success: &s}
		}
	}

	return MarketEvent{Kind: MarketEventUnknown}
}
