package wire

import (
	"bytes"
	"encoding/json"
)

// SRequest is an inbound strategy-client request envelope. P is the
// concrete params shape for a given method (LoginParams, SubscribeParams,
// OrderParams, ...).
type SRequest[P any] struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params P      `json:"params"`
}

// SResponse is an outbound success reply, correlated to SRequest.ID.
type SResponse[T any] struct {
	ID     int64 `json:"id"`
	Result T     `json:"result"`
}

// ErrorBody is the payload of a failed strategy-client request.
type ErrorBody struct {
	Code int32  `json:"code"`
	Msg  string `json:"msg"`
}

// SError is an outbound error reply, correlated to SRequest.ID.
type SError struct {
	ID    int64     `json:"id"`
	Error ErrorBody `json:"error"`
}

// RawMethod peeks at an inbound client frame far enough to route it without
// committing to a concrete Params type.
type RawMethod struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// LoginParams mirrors the login request body a strategy client sends;
// echoed back verbatim on success.
type LoginParams map[string]any

// SubscribeParams is the list of venue-native channel strings a strategy
// client asks to subscribe to, e.g. "btcusdt@bookTicker" or "kline:1D".
type SubscribeParams struct {
	Streams []string `json:"streams"`
}

// UnmarshalJSON accepts both the bare-array form ["btcusdt@bbo", ...] and
// the object form {"streams": [...]}.
func (p *SubscribeParams) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &p.Streams)
	}
	type plain SubscribeParams
	return json.Unmarshal(data, (*plain)(p))
}

// OrderParams is the strategy client's order-placement request. ID is the
// client's own order-local sequence number; combined with SessionID it
// forms the venue client_order_id (see EncodeClientOrderID).
type OrderParams struct {
	ID          uint32 `json:"id"`
	Symbol      string `json:"symbol"`
	Price       string `json:"price"`
	Quantity    string `json:"quantity"`
	Side        string `json:"side"`
	OrderType   string `json:"order_type"`
	TimeInForce string `json:"tif"`
	SessionID   uint16 `json:"session_id"`
}

// CancelParams identifies an order to cancel by its venue order id.
type CancelParams struct {
	Symbol    string `json:"symbol"`
	SessionID uint16 `json:"session_id"`
	OrderID   uint32 `json:"order_id"`
}

// GetProductsParams is the optional symbol list of a get_products request.
// The dispatch hub does not decode it: get_products always returns every
// known product, whatever symbols are listed.
type GetProductsParams struct {
	Symbols []string `json:"symbols"`
}

// GetPositionsParams requests one login session's position snapshot,
// optionally filtered to specific symbols.
type GetPositionsParams struct {
	SessionID uint16   `json:"session_id"`
	Symbols   []string `json:"symbols"`
}

func NewSuccess[T any](id int64, result T) SResponse[T] {
	return SResponse[T]{ID: id, Result: result}
}

func NewError(id int64, code int32, msg string) SError {
	return SError{ID: id, Error: ErrorBody{Code: code, Msg: msg}}
}

// ClientErrorCode assigns this protocol's wire error code for an internal
// error classification string (apperror.Code, passed as a plain string to
// avoid this package depending on apperror). Unmapped codes fall back to a
// generic -1000.
func ClientErrorCode(code string) int32 {
	switch code {
	case "NOT_LOGIN":
		return -1001
	case "DISCONNECTED":
		return -1002
	case "SUBSCRIPTION_LIMIT_REACHED":
		return -1003
	case "AUTHENTICATION_FAILED":
		return -1004
	case "PROTOCOL_DECODE_ERROR":
		return -1005
	default:
		return -1000
	}
}
