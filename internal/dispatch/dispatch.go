// Package dispatch implements the strategy-client dispatch hub (C8): the
// single-threaded cooperative loop that accepts client connections,
// decodes their requests, and routes them between the public Market
// component and a venue Trade adapter.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fd1az/venue-gateway/internal/apperror"
	"github.com/fd1az/venue-gateway/internal/logger"
	"github.com/fd1az/venue-gateway/internal/subscriber"
	"github.com/fd1az/venue-gateway/internal/trade"
	"github.com/fd1az/venue-gateway/internal/wire"
)

// maxClientMsgBatch bounds how many pending frames are drained from one
// client per loop iteration, so a single chatty client cannot starve the
// others sharing this hub.
const maxClientMsgBatch = 16

// idleTick is the wakeup period when no connection or upstream event is
// pending, so client channels are still drained under idle load.
const idleTick = time.Millisecond

// Market is the subset of *market.Market the dispatch hub depends on.
type Market interface {
	Disconnected() bool
	HandleConnect(addr subscriber.Addr, sink subscriber.Sink)
	HandleLogin(addr subscriber.Addr, id int64, params json.RawMessage) error
	HandleSubscribe(ctx context.Context, addr subscriber.Addr, id int64, requested []string) error
	HandleClose(addr subscriber.Addr) error
	HandleDisconnect(addr subscriber.Addr, raw json.RawMessage) error
	Reply(addr subscriber.Addr, id int64, result any) error
	ReplyError(addr subscriber.Addr, id int64, code int32, msg string) error
	Process(ctx context.Context) bool
}

// Connection is handed to the dispatch hub by the acceptor when a new
// strategy-client socket has been accepted and upgraded.
type Connection struct {
	Addr subscriber.Addr
	// Outbound is written to by the hub, read by the connection's writer
	// pump.
	Outbound chan []byte
	// Inbound is written to by the connection's reader pump, read by the
	// hub. Closed when the socket disconnects.
	Inbound <-chan []byte
}

type clientChannel struct {
	outbound chan<- []byte
	inbound  <-chan []byte
	sink     subscriber.Sink
}

// Handler owns the set of connected strategy clients and drives requests
// between Market and Trade. Exactly one Handler runs per venue gateway
// process.
type Handler struct {
	market Market
	trade  trade.Trade
	log    logger.LoggerInterface

	clients     map[subscriber.Addr]*clientChannel
	keepRunning bool
}

func New(market Market, t trade.Trade, log logger.LoggerInterface) *Handler {
	return &Handler{
		market:  market,
		trade:   t,
		log:     log,
		clients: make(map[subscriber.Addr]*clientChannel),
	}
}

// Stop ends the next Run iteration.
func (h *Handler) Stop() { h.keepRunning = false }

// Run drives the dispatch loop until ctx is cancelled or Stop is called.
// connections delivers newly-accepted strategy-client sockets.
func (h *Handler) Run(ctx context.Context, connections <-chan *Connection) error {
	h.keepRunning = true
	ticker := time.NewTicker(idleTick)
	defer ticker.Stop()

	for h.keepRunning {
		select {
		case <-ctx.Done():
			h.keepRunning = false
		case conn, ok := <-connections:
			if ok {
				h.onClientConnect(conn)
			}
		case <-ticker.C:
		}

		h.market.Process(ctx)
		if _, err := h.trade.Process(ctx); err != nil && h.log != nil {
			h.log.Error(ctx, "trade process error", "error", err.Error())
		}

		h.drainClientMessages(ctx)
	}
	return nil
}

func (h *Handler) onClientConnect(conn *Connection) {
	cc := &clientChannel{outbound: conn.Outbound, inbound: conn.Inbound}
	addr := conn.Addr
	cc.sink = subscriber.SinkFunc(func(payload []byte) error {
		select {
		case cc.outbound <- payload:
			return nil
		default:
			return fmt.Errorf("dispatch: outbound buffer full for %s", addr)
		}
	})
	h.clients[addr] = cc
	h.market.HandleConnect(addr, cc.sink)
}

type drainedClient struct {
	addr   subscriber.Addr
	msgs   [][]byte
	closed bool
}

// drainClientMessages non-blockingly drains up to maxClientMsgBatch frames
// per client, then processes every collected frame. Collecting first and
// processing after avoids mutating h.clients while its range is in
// progress (a close prunes the map).
func (h *Handler) drainClientMessages(ctx context.Context) {
	batch := make([]drainedClient, 0, len(h.clients))
	for addr, cc := range h.clients {
		d := drainedClient{addr: addr}
	drain:
		for i := 0; i < maxClientMsgBatch; i++ {
			select {
			case msg, ok := <-cc.inbound:
				if !ok {
					d.closed = true
					break drain
				}
				d.msgs = append(d.msgs, msg)
			default:
				break drain
			}
		}
		batch = append(batch, d)
	}

	for _, d := range batch {
		for _, msg := range d.msgs {
			if err := h.dispatchClientRequest(ctx, d.addr, msg); err != nil && h.log != nil {
				h.log.Error(ctx, "client request failed", "addr", string(d.addr), "error", err.Error())
			}
		}
		if d.closed {
			h.prune(ctx, d.addr)
		}
	}
}

func (h *Handler) prune(ctx context.Context, addr subscriber.Addr) {
	delete(h.clients, addr)
	if err := h.market.HandleClose(addr); err != nil && h.log != nil {
		h.log.Error(ctx, "market handle_close failed", "addr", string(addr), "error", err.Error())
	}
	if err := h.trade.HandleClose(addr); err != nil && h.log != nil {
		h.log.Error(ctx, "trade handle_close failed", "addr", string(addr), "error", err.Error())
	}
}

// dispatchClientRequest routes one decoded client frame to market or
// trade. Either side being disconnected short-circuits into an immediate
// DISCONNECTED reply instead of further processing.
func (h *Handler) dispatchClientRequest(ctx context.Context, addr subscriber.Addr, raw []byte) error {
	if h.market.Disconnected() {
		return h.market.HandleDisconnect(addr, raw)
	}
	if h.trade.Disconnected() {
		return h.trade.HandleDisconnect(addr, raw)
	}

	var probe wire.RawMethod
	if err := json.Unmarshal(raw, &probe); err != nil {
		if h.log != nil {
			h.log.Warn(ctx, "invalid client request", "addr", string(addr), "error", err.Error())
		}
		return nil
	}

	switch probe.Method {
	case "login":
		return h.handleLogin(ctx, addr, probe)
	case "subscribe":
		return h.handleSubscribe(ctx, addr, probe)
	case "get_products":
		return h.handleGetProducts(addr, probe)
	case "get_positions":
		return h.handleGetPositions(addr, probe)
	case "order":
		return h.handleOrder(addr, probe)
	case "cancel":
		return h.handleCancel(addr, probe)
	default:
		if h.log != nil {
			h.log.Warn(ctx, "unrecognized client method", "addr", string(addr), "method", probe.Method)
		}
		return nil
	}
}

func (h *Handler) replyDecodeError(addr subscriber.Addr, id int64) error {
	appErr := apperror.New(apperror.CodeProtocolDecodeError)
	return h.market.ReplyError(addr, id, wire.ClientErrorCode(string(apperror.CodeProtocolDecodeError)), appErr.Message)
}

// handleLogin mirrors trade.handle_login/market.handle_login: when the
// client asks for a trading session ("trading": true) trade validates and
// records it first; only on acceptance (or when trading was not
// requested) does market establish its own per-client bookkeeping.
func (h *Handler) handleLogin(ctx context.Context, addr subscriber.Addr, probe wire.RawMethod) error {
	var params wire.LoginParams
	if err := json.Unmarshal(probe.Params, &params); err != nil {
		return h.replyDecodeError(addr, probe.ID)
	}

	trading, _ := params["trading"].(bool)
	if trading {
		cc, ok := h.clients[addr]
		if !ok {
			return nil
		}
		req := wire.SRequest[wire.LoginParams]{ID: probe.ID, Method: probe.Method, Params: params}
		errReply, err := h.trade.HandleLogin(ctx, addr, req, cc.sink)
		if err != nil {
			return err
		}
		if errReply != nil {
			return h.market.ReplyError(addr, probe.ID, errReply.Code, errReply.Msg)
		}
	}

	return h.market.HandleLogin(addr, probe.ID, probe.Params)
}

func (h *Handler) handleSubscribe(ctx context.Context, addr subscriber.Addr, probe wire.RawMethod) error {
	var params wire.SubscribeParams
	if err := json.Unmarshal(probe.Params, &params); err != nil {
		return h.replyDecodeError(addr, probe.ID)
	}

	req := wire.SRequest[wire.SubscribeParams]{ID: probe.ID, Method: probe.Method, Params: params}
	if errReply := h.trade.HandleSubscribe(addr, req); errReply != nil {
		return h.market.ReplyError(addr, probe.ID, errReply.Code, errReply.Msg)
	}
	return h.market.HandleSubscribe(ctx, addr, probe.ID, params.Streams)
}

// handleGetProducts always returns the full catalog: the requested symbol
// filter is accepted on the wire but never actually narrows the result,
// matching handler.rs's handle_client_get_products (both of its branches
// collect every product regardless of the filter).
func (h *Handler) handleGetProducts(addr subscriber.Addr, probe wire.RawMethod) error {
	products := h.trade.Products()
	out := make([]trade.ProductMetadata, 0, len(products))
	for _, p := range products {
		out = append(out, p)
	}
	return h.market.Reply(addr, probe.ID, out)
}

type getPositionsResult struct {
	SessionID uint16           `json:"session_id"`
	Positions []trade.Position `json:"positions"`
}

func (h *Handler) handleGetPositions(addr subscriber.Addr, probe wire.RawMethod) error {
	var params wire.GetPositionsParams
	if err := json.Unmarshal(probe.Params, &params); err != nil {
		return h.replyDecodeError(addr, probe.ID)
	}

	positions, ok := h.trade.GetPositions(params.SessionID)
	if !ok {
		return h.market.Reply(addr, probe.ID, getPositionsResult{SessionID: params.SessionID, Positions: []trade.Position{}})
	}

	result := getPositionsResult{SessionID: params.SessionID, Positions: []trade.Position{}}
	if len(params.Symbols) == 0 {
		for _, p := range positions {
			result.Positions = append(result.Positions, p)
		}
	} else {
		for _, symbol := range params.Symbols {
			if p, ok := positions[symbol]; ok {
				result.Positions = append(result.Positions, p)
			}
		}
	}
	return h.market.Reply(addr, probe.ID, result)
}

func (h *Handler) handleOrder(addr subscriber.Addr, probe wire.RawMethod) error {
	var params wire.OrderParams
	if err := json.Unmarshal(probe.Params, &params); err != nil {
		return h.replyDecodeError(addr, probe.ID)
	}

	return h.trade.AddOrder(addr, trade.OrderRequest{
		ClientOrderID: wire.EncodeClientOrderID(params.SessionID, params.ID),
		SessionID:     params.SessionID,
		Symbol:        params.Symbol,
		Side:          wire.Side(params.Side),
		OrderType:     params.OrderType,
		TimeInForce:   params.TimeInForce,
		Price:         params.Price,
		Quantity:      params.Quantity,
	})
}

func (h *Handler) handleCancel(addr subscriber.Addr, probe wire.RawMethod) error {
	var params wire.CancelParams
	if err := json.Unmarshal(probe.Params, &params); err != nil {
		return h.replyDecodeError(addr, probe.ID)
	}

	return h.trade.Cancel(addr, trade.CancelRequest{
		SessionID: params.SessionID,
		Symbol:    params.Symbol,
		OrderID:   int64(params.OrderID),
	})
}
