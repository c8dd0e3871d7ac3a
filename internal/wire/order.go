package wire

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Side mirrors a venue order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// State is an order's lifecycle state as reported by the venue.
type State string

const (
	StateNew             State = "NEW"
	StatePartiallyFilled State = "PARTIALLY_FILLED"
	StateFilled          State = "FILLED"
	StateCanceled        State = "CANCELED"
	StatePendingCancel   State = "PENDING_CANCEL"
	StateRejected        State = "REJECTED"
	StateExpired         State = "EXPIRED"
)

// Order is the canonical, venue-agnostic view every ExecutionReport and
// OrderUpdate projects into.
type Order struct {
	InternalID    uint32
	State         State
	OrderID       int64
	Symbol        string
	Side          Side
	OrderType     string
	TimeInForce   string
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	TradeTime     int64
	TradePrice    decimal.Decimal
	TradeQuantity decimal.Decimal
	Acc           decimal.Decimal
	Making        bool
}

// ExecutionReport is Binance spot's per-fill user-data event ("e":
// "executionReport"). Field names mirror the venue's single-letter wire
// keys; see ToOrder for the projection into the canonical view.
type ExecutionReport struct {
	EventType        string `json:"e"`
	EventTime        int64  `json:"E"`
	Symbol           string `json:"s"`
	ClientOrderID    string `json:"c"`
	Side             Side   `json:"S"`
	OrderType        string `json:"o"`
	TimeInForce      string `json:"f"`
	Quantity         string `json:"q"`
	Price            string `json:"p"`
	State            State  `json:"X"`
	OrderID          int64  `json:"i"`
	LastFillQuantity string `json:"l"`
	CumulativeFilled string `json:"z"`
	LastFillPrice    string `json:"L"`
	TradeTime        int64  `json:"T"`
	IsOnBook         bool   `json:"w"`
	IsMaker          bool   `json:"m"`
	OriginalClientID string `json:"C"`
}

// ToOrder projects an ExecutionReport into the canonical Order view.
//
// client_order_id is read from the "original client order id" field (C)
// rather than the live one (c) when the order has reached CANCELED — the
// live field is empty in that case since cancellation did not originate a
// new client order id.
func (r ExecutionReport) ToOrder() Order {
	raw := r.ClientOrderID
	if r.State == StateCanceled {
		raw = r.OriginalClientID
	}
	clientOrderID, _ := strconv.ParseUint(raw, 10, 64)
	internalID := uint32(clientOrderID & 0xFFFFFFFF)

	return Order{
		InternalID:    internalID,
		State:         r.State,
		OrderID:       r.OrderID,
		Symbol:        r.Symbol,
		Side:          r.Side,
		OrderType:     r.OrderType,
		TimeInForce:   r.TimeInForce,
		Price:         parseDecimalOrZero(r.Price),
		Quantity:      parseDecimalOrZero(r.Quantity),
		TradeTime:     r.TradeTime,
		TradePrice:    parseDecimalOrZero(r.LastFillPrice),
		TradeQuantity: parseDecimalOrZero(r.LastFillQuantity),
		Acc:           parseDecimalOrZero(r.CumulativeFilled),
		Making:        r.IsMaker,
	}
}

// OrderUpdate is Binance USD-M futures' "ORDER_TRADE_UPDATE" user-data
// event: an envelope around an embedded order-data object.
type OrderUpdate struct {
	EventType string          `json:"e"`
	EventTime int64           `json:"E"`
	MatchTime int64           `json:"T"`
	Order     OrderUpdateData `json:"o"`
}

type OrderUpdateData struct {
	Symbol           string `json:"s"`
	ClientOrderID    string `json:"c"`
	Side             Side   `json:"S"`
	OrderType        string `json:"o"`
	TimeInForce      string `json:"f"`
	Quantity         string `json:"q"`
	Price            string `json:"p"`
	State            State  `json:"X"`
	OrderID          int64  `json:"i"`
	LastFillQuantity string `json:"l"`
	CumulativeFilled string `json:"z"`
	LastFillPrice    string `json:"L"`
	TradeTime        int64  `json:"T"`
	IsMaker          bool   `json:"m"`
}

// ToOrder projects an OrderUpdate into the canonical Order view. Unlike
// spot's ExecutionReport, futures never special-cases CANCELED — "c" is
// always the originating client order id here.
func (u OrderUpdate) ToOrder() Order {
	clientOrderID, _ := strconv.ParseUint(u.Order.ClientOrderID, 10, 64)
	internalID := uint32(clientOrderID & 0xFFFFFFFF)

	o := u.Order
	return Order{
		InternalID:    internalID,
		State:         o.State,
		OrderID:       o.OrderID,
		Symbol:        o.Symbol,
		Side:          o.Side,
		OrderType:     o.OrderType,
		TimeInForce:   o.TimeInForce,
		Price:         parseDecimalOrZero(o.Price),
		Quantity:      parseDecimalOrZero(o.Quantity),
		TradeTime:     o.TradeTime,
		TradePrice:    parseDecimalOrZero(o.LastFillPrice),
		TradeQuantity: parseDecimalOrZero(o.LastFillQuantity),
		Acc:           parseDecimalOrZero(o.CumulativeFilled),
		Making:        o.IsMaker,
	}
}

// EncodeClientOrderID packs a session id and a client-local order sequence
// into the client_order_id string sent on order.place: SessionID occupies
// the high 32 bits, localID the low 32 bits. ExecutionReport.ToOrder and
// OrderUpdate.ToOrder mask off the low 32 bits to recover localID.
func EncodeClientOrderID(sessionID uint16, localID uint32) string {
	return strconv.FormatUint(uint64(sessionID)<<32|uint64(localID), 10)
}

func parseDecimalOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
