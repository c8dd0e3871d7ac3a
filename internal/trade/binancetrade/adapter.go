// Package binancetrade implements the reference Trade adapter (C7) for
// Binance spot: order placement/cancel, product validation, and positions,
// layered over a session.Manager account connection and a productcatalog
// REST client.
package binancetrade

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/fd1az/venue-gateway/internal/apperror"
	"github.com/fd1az/venue-gateway/internal/logger"
	"github.com/fd1az/venue-gateway/internal/productcatalog"
	"github.com/fd1az/venue-gateway/internal/ratelimit"
	"github.com/fd1az/venue-gateway/internal/session"
	"github.com/fd1az/venue-gateway/internal/subscriber"
	"github.com/fd1az/venue-gateway/internal/trade"
	"github.com/fd1az/venue-gateway/internal/wire"
)

// Adapter implements trade.Trade over one Binance spot account connection.
// OutboundAccountPosition events report the whole wallet, not a
// per-strategy view, so positions are tracked once and mirrored to every
// session id that has logged in; a session id stays known after its client
// closes (see DESIGN.md's Open Question decision for C7).
type Adapter struct {
	session *session.Manager
	catalog *productcatalog.Client
	log     logger.LoggerInterface

	mu       sync.RWMutex
	products map[string]productcatalog.ProductMetadata
	balances map[string]trade.Position
	sessions map[uint16]struct{} // session ids that have logged in at least once

	sinks   map[subscriber.Addr]subscriber.Sink
	limiter *ratelimit.Limiter

	ordersPlaced    atomic.Int64
	ordersCancelled atomic.Int64
	errors          atomic.Int64

	// OnOrderEvent, if set, is invoked for every order push event this
	// adapter broadcasts to strategy clients. Used by the operator
	// dashboard to drive its event feed; nil is a valid no-op default.
	OnOrderEvent func(wire.Order)
}

// Stats is a point-in-time snapshot of this adapter's running counters.
type Stats struct {
	OrdersPlaced    int64
	OrdersCancelled int64
	Errors          int64
}

// Stats returns the adapter's current counters, for operator display.
func (a *Adapter) Stats() Stats {
	return Stats{
		OrdersPlaced:    a.ordersPlaced.Load(),
		OrdersCancelled: a.ordersCancelled.Load(),
		Errors:          a.errors.Load(),
	}
}

func NewAdapter(mgr *session.Manager, catalog *productcatalog.Client, log logger.LoggerInterface) *Adapter {
	return &Adapter{
		session:  mgr,
		catalog:  catalog,
		log:      log,
		products: make(map[string]productcatalog.ProductMetadata),
		balances: make(map[string]trade.Position),
		sessions: make(map[uint16]struct{}),
		sinks:    make(map[subscriber.Addr]subscriber.Sink),
	}
}

// BindSession attaches the account session manager once it exists. Needed
// because the manager's constructor requires this Adapter as its
// wire.UserDataHandler, so the two must be built in two steps: NewAdapter
// with a nil manager, then session.NewManager(client, adapter, log), then
// BindSession.
func (a *Adapter) BindSession(mgr *session.Manager) {
	a.session = mgr
}

// SetOrderLimiter installs a token-bucket limiter gating AddOrder/Cancel
// against the venue's order-rate limit. A nil limiter, the default, issues
// every call immediately.
func (a *Adapter) SetOrderLimiter(l *ratelimit.Limiter) {
	a.limiter = l
}

// FetchProducts refreshes the product catalog from the REST API. Called
// once at startup; get_products requests are served from the cache.
func (a *Adapter) FetchProducts(ctx context.Context) error {
	products, err := a.catalog.Fetch(ctx)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.products = products
	a.mu.Unlock()
	return nil
}

func (a *Adapter) Disconnected() bool {
	return a.session.Disconnected()
}

func (a *Adapter) Products() map[string]productcatalog.ProductMetadata {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]productcatalog.ProductMetadata, len(a.products))
	for k, v := range a.products {
		out[k] = v
	}
	return out
}

func (a *Adapter) GetPositions(sessionID uint16) (map[string]trade.Position, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if _, ok := a.sessions[sessionID]; !ok {
		return nil, false
	}
	out := make(map[string]trade.Position, len(a.balances))
	for k, v := range a.balances {
		out[k] = v
	}
	return out, true
}

// Process pumps one step of the account event loop (wraps session.Manager,
// which dispatches every user-data event into this Adapter's
// wire.UserDataHandler methods below).
func (a *Adapter) Process(ctx context.Context) (bool, error) {
	return a.session.Process(ctx), nil
}

// AddOrder signs and issues order.place on behalf of a connected strategy
// client. clientOrderID encodes the session id in its high 32 bits and an
// order-local sequence in the low 32 bits, matching the mask
// wire.ExecutionReport.ToOrder uses to recover the session-scoped id.
func (a *Adapter) AddOrder(addr subscriber.Addr, order trade.OrderRequest) error {
	if a.limiter != nil && !a.limiter.Allow() {
		return apperror.New(apperror.CodeRateLimitExceeded, apperror.WithMessage("order rate limit exceeded"))
	}
	params := map[string]string{
		"symbol":           order.Symbol,
		"side":             string(order.Side),
		"type":             order.OrderType,
		"quantity":         order.Quantity,
		"newClientOrderId": order.ClientOrderID,
	}
	if order.Price != "" {
		params["price"] = order.Price
	}
	if order.TimeInForce != "" {
		params["timeInForce"] = order.TimeInForce
	}
	if err := a.session.PlaceOrder(params); err != nil {
		a.errors.Add(1)
		return err
	}
	a.ordersPlaced.Add(1)
	return nil
}

func (a *Adapter) Cancel(addr subscriber.Addr, cancel trade.CancelRequest) error {
	if a.limiter != nil && !a.limiter.Allow() {
		return apperror.New(apperror.CodeRateLimitExceeded, apperror.WithMessage("order rate limit exceeded"))
	}
	params := map[string]string{
		"symbol":  cancel.Symbol,
		"orderId": strconv.FormatInt(cancel.OrderID, 10),
	}
	if err := a.session.CancelOrder(params); err != nil {
		a.errors.Add(1)
		return err
	}
	a.ordersCancelled.Add(1)
	return nil
}

// HandleLogin rejects the login while the account connection is down,
// records the client's session id and sink, and echoes the login params
// back. It does not check that the product catalog is loaded.
func (a *Adapter) HandleLogin(ctx context.Context, addr subscriber.Addr, req wire.SRequest[wire.LoginParams], sink subscriber.Sink) (*trade.Error, error) {
	if a.Disconnected() {
		return trade.NewError(apperror.CodeDisconnected, "trade account disconnected"), nil
	}

	sessionID, err := extractSessionID(req.Params)
	if err != nil {
		return trade.NewError(apperror.CodeValidationError, err.Error()), nil
	}

	a.mu.Lock()
	a.sinks[addr] = sink
	a.sessions[sessionID] = struct{}{}
	a.mu.Unlock()

	return nil, a.Reply(addr, req.ID, req.Params)
}

// HandleSubscribe rejects any requested stream whose symbol is not present
// in the product catalog.
func (a *Adapter) HandleSubscribe(addr subscriber.Addr, req wire.SRequest[wire.SubscribeParams]) *trade.Error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, stream := range req.Params.Streams {
		symbol := symbolOf(stream)
		if _, ok := a.products[symbol]; !ok {
			return trade.NewError(apperror.CodeNotFound, "unknown symbol: "+symbol)
		}
	}
	return nil
}

func (a *Adapter) HandleClose(addr subscriber.Addr) error {
	a.mu.Lock()
	delete(a.sinks, addr)
	a.mu.Unlock()
	return nil
}

func (a *Adapter) HandleDisconnect(addr subscriber.Addr, raw json.RawMessage) error {
	var probe struct {
		ID *int64 `json:"id"`
	}
	_ = json.Unmarshal(raw, &probe)
	if probe.ID == nil {
		return nil
	}
	return a.replyError(addr, *probe.ID, apperror.CodeDisconnected)
}

func (a *Adapter) Reply(addr subscriber.Addr, id int64, payload any) error {
	a.mu.RLock()
	sink, ok := a.sinks[addr]
	a.mu.RUnlock()
	if !ok {
		return nil
	}
	body, err := json.Marshal(wire.NewSuccess(id, payload))
	if err != nil {
		return err
	}
	return sink.Send(body)
}

func (a *Adapter) replyError(addr subscriber.Addr, id int64, code apperror.Code) error {
	a.mu.RLock()
	sink, ok := a.sinks[addr]
	a.mu.RUnlock()
	if !ok {
		return nil
	}
	appErr := apperror.New(code)
	body, err := json.Marshal(wire.NewError(id, wire.ClientErrorCode(string(code)), appErr.Message))
	if err != nil {
		return err
	}
	return sink.Send(body)
}

// -- wire.UserDataHandler --

func (a *Adapter) OnOrder(o wire.Order) {
	a.broadcastPush("order", o)
	if a.OnOrderEvent != nil {
		a.OnOrderEvent(o)
	}
}

func (a *Adapter) OnBalanceUpdate(u wire.BalanceUpdate) {
	if a.log != nil {
		a.log.Info(context.Background(), "balance update", "asset", u.Asset, "delta", u.Delta)
	}
}

func (a *Adapter) OnOutboundAccountPosition(p wire.OutboundAccountPosition) {
	a.mu.Lock()
	for _, b := range p.Balances {
		a.balances[b.Asset] = trade.Position{Symbol: b.Asset, Free: b.Free, Locked: b.Locked}
	}
	a.mu.Unlock()
}

func (a *Adapter) OnUserLiabilityChange(wire.UserLiabilityChange)         {}
func (a *Adapter) OnMarginLevelStatusChange(wire.MarginLevelStatusChange) {}
func (a *Adapter) OnListStatus(wire.ListStatus)                           {}

func (a *Adapter) OnListenKeyExpired(e wire.ListenKeyExpired) {
	if a.log != nil {
		a.log.Warn(context.Background(), "listen key expired", "listen_key", e.ListenKey)
	}
}

func (a *Adapter) OnUnknown(kind wire.UserDataKind, raw json.RawMessage) {
	if a.log != nil {
		a.log.Warn(context.Background(), "unrecognized user data event", "kind", string(kind))
	}
}

func (a *Adapter) broadcastPush(event string, payload any) {
	body, err := json.Marshal(map[string]any{"event": event, "data": payload})
	if err != nil {
		return
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, sink := range a.sinks {
		_ = sink.Send(body)
	}
}

func extractSessionID(params wire.LoginParams) (uint16, error) {
	raw, ok := params["session_id"]
	if !ok {
		return 0, apperror.New(apperror.CodeValidationError, apperror.WithMessage("login params missing session_id"))
	}
	switch v := raw.(type) {
	case float64:
		return uint16(v), nil
	case string:
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return 0, err
		}
		return uint16(n), nil
	default:
		return 0, apperror.New(apperror.CodeValidationError, apperror.WithMessage("session_id has unexpected type"))
	}
}

func symbolOf(stream string) string {
	for i, r := range stream {
		if r == ':' || r == '@' {
			return stream[:i]
		}
	}
	return stream
}
