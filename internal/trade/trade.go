// Package trade defines the venue-agnostic order-management contract (C7):
// product catalog, positions, and order placement/cancel, implemented per
// venue by an adapter such as binancetrade.Adapter.
package trade

import (
	"context"
	"encoding/json"

	"github.com/fd1az/venue-gateway/internal/apperror"
	"github.com/fd1az/venue-gateway/internal/productcatalog"
	"github.com/fd1az/venue-gateway/internal/subscriber"
	"github.com/fd1az/venue-gateway/internal/wire"
)

// ProductMetadata re-exports the catalog's metadata shape so callers of
// this package need not import internal/productcatalog directly.
type ProductMetadata = productcatalog.ProductMetadata

// Error is a client-facing protocol error, independent of wire.SError so
// this package does not need to depend on the dispatch hub's framing.
type Error struct {
	Code int32
	Msg  string
}

func NewError(code apperror.Code, msg string) *Error {
	return &Error{Code: wire.ClientErrorCode(string(code)), Msg: msg}
}

// Position is the venue-agnostic view of a held balance or open position,
// keyed by asset/symbol in the map Trade.GetPositions returns.
type Position struct {
	Symbol        string
	Free          string
	Locked        string
	UnrealizedPnL string
}

// Trade is implemented once per venue and owns everything needed to serve
// order-management traffic from a strategy client: the product catalog,
// per-session positions, and order placement/cancel against the upstream
// account connection. Implementations are expected to hold an Account (C4)
// internally.
type Trade interface {
	// Disconnected reports whether the upstream account connection is down.
	Disconnected() bool

	// Products returns the most recently fetched product catalog, keyed by
	// lowercased symbol.
	Products() map[string]ProductMetadata

	// GetPositions returns the positions held under a given strategy
	// session id, or false if that session has none on record.
	GetPositions(sessionID uint16) (map[string]Position, bool)

	// Process performs one non-blocking step of the trade event pump:
	// decode and dispatch at most one upstream user-data frame.
	Process(ctx context.Context) (bool, error)

	// AddOrder places an order on behalf of a connected strategy client.
	AddOrder(addr subscriber.Addr, order OrderRequest) error

	// Cancel cancels a previously-placed order.
	Cancel(addr subscriber.Addr, cancel CancelRequest) error

	// HandleLogin authenticates a newly-connected strategy client's trade
	// session; a non-nil *Error means the login itself failed validation,
	// while a non-nil error means the upstream call could not be issued.
	HandleLogin(ctx context.Context, addr subscriber.Addr, req wire.SRequest[wire.LoginParams], sink subscriber.Sink) (*Error, error)

	// HandleSubscribe validates a client's requested stream list against
	// the product catalog before Market ever sees it.
	HandleSubscribe(addr subscriber.Addr, req wire.SRequest[wire.SubscribeParams]) *Error

	// HandleClose releases any per-client state held for addr.
	HandleClose(addr subscriber.Addr) error

	// HandleDisconnect replies immediately to any client message carrying
	// an "id" with a DISCONNECTED error, since the upstream is down.
	HandleDisconnect(addr subscriber.Addr, raw json.RawMessage) error

	// Reply sends a success envelope to a connected client's sink.
	Reply(addr subscriber.Addr, id int64, payload any) error
}

// OrderRequest is the venue-agnostic shape an order placement is reduced to
// before being signed and sent upstream.
type OrderRequest struct {
	ClientOrderID string
	SessionID     uint16
	Symbol        string
	Side          wire.Side
	OrderType     string
	TimeInForce   string
	Price         string
	Quantity      string
}

// CancelRequest identifies an order to cancel by its venue order id.
type CancelRequest struct {
	SessionID uint16
	Symbol    string
	OrderID   int64
}
