// Package market implements the process-wide public market-data component
// (C6): one instance per upstream exchange connection, fanning decoded
// stream pushes out to every strategy client subscribed to them.
package market

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fd1az/venue-gateway/internal/apperror"
	"github.com/fd1az/venue-gateway/internal/logger"
	"github.com/fd1az/venue-gateway/internal/subscriber"
	"github.com/fd1az/venue-gateway/internal/wire"
)

// Upstream is the subset of wsclient.Client this package depends on:
// connecting and issuing a request/reply-style call. Satisfied by
// *wsclient.Client.
type Upstream interface {
	Connect(ctx context.Context) (<-chan json.RawMessage, error)
	WsapiCall(method string, params any, id int64) error
}

// Market owns the public upstream connection and every connected strategy
// client's subscription state. Exactly one instance exists per venue.
type Market struct {
	client Upstream
	log    logger.LoggerInterface

	sinks       map[subscriber.Addr]subscriber.Sink
	subscribers map[subscriber.Addr]*subscriber.Subscriber
	refcounts   map[string]uint16
	pending     map[int64]subscriber.Addr

	frames       <-chan json.RawMessage
	disconnected bool
	nextID       atomic.Int64
}

func New(client Upstream, log logger.LoggerInterface) *Market {
	return &Market{
		client:      client,
		log:         log,
		sinks:       make(map[subscriber.Addr]subscriber.Sink),
		subscribers: make(map[subscriber.Addr]*subscriber.Subscriber),
		refcounts:   make(map[string]uint16),
		pending:     make(map[int64]subscriber.Addr),
	}
}

// Connect dials the public upstream connection.
func (m *Market) Connect(ctx context.Context) error {
	frames, err := m.client.Connect(ctx)
	if err != nil {
		return err
	}
	m.frames = frames
	return nil
}

func (m *Market) Disconnected() bool { return m.disconnected }

// Reconnect is a documented no-op: reconnection lives exclusively in C3's
// watchdog, which also replays every persisted subscription. Nothing here
// needs to drive a reconnect attempt.
func (m *Market) Reconnect(context.Context) error { return nil }

// ClientCount returns the number of strategy clients currently logged in.
func (m *Market) ClientCount() int { return len(m.subscribers) }

// Subscriptions returns a snapshot of every stream's current subscriber
// refcount, for operator display.
func (m *Market) Subscriptions() map[string]uint16 {
	out := make(map[string]uint16, len(m.refcounts))
	for stream, n := range m.refcounts {
		out[stream] = n
	}
	return out
}

func (m *Market) nextRequestID() int64 { return m.nextID.Add(1) }

// HandleConnect records a newly-accepted strategy client's outbound sink.
func (m *Market) HandleConnect(addr subscriber.Addr, sink subscriber.Sink) {
	m.sinks[addr] = sink
}

// HandleLogin creates the client's Subscriber on first login and echoes the
// login params back as a success reply. Login has no upstream round trip:
// it only establishes local bookkeeping.
func (m *Market) HandleLogin(addr subscriber.Addr, id int64, params json.RawMessage) error {
	sink, ok := m.sinks[addr]
	if !ok {
		return nil
	}
	if _, exists := m.subscribers[addr]; !exists {
		m.subscribers[addr] = subscriber.New(sink)
	}
	return m.reply(addr, id, params)
}

// HandleSubscribe normalizes every requested stream name not already held
// by this client, increments shared refcounts, and issues a single
// upstream SUBSCRIBE for the net-new set.
func (m *Market) HandleSubscribe(ctx context.Context, addr subscriber.Addr, id int64, requested []string) error {
	sub, ok := m.subscribers[addr]
	if !ok {
		return m.replyError(addr, id, apperror.CodeNotLogin)
	}

	normalized := make([]string, 0, len(requested))
	for _, raw := range requested {
		if sub.IsSubscribed(raw) {
			continue
		}
		stream := normalizeRequestedStream(raw)
		m.refcounts[stream]++
		normalized = append(normalized, stream)
	}

	upstreamID := m.nextRequestID()
	if err := m.client.WsapiCall("SUBSCRIBE", normalized, upstreamID); err != nil {
		return err
	}
	m.pending[upstreamID] = addr
	sub.OnStrategyClientSubscribe(upstreamID, id, normalized)
	return nil
}

// HandleClose drops a disconnected client's sink and subscriber, decrements
// the refcounts it held, and issues a single upstream UNSUBSCRIBE for every
// symbol whose refcount reached zero.
func (m *Market) HandleClose(addr subscriber.Addr) error {
	delete(m.sinks, addr)
	sub, ok := m.subscribers[addr]
	if !ok {
		return nil
	}
	delete(m.subscribers, addr)

	var unsubscribe []string
	for _, stream := range sub.Symbols() {
		cnt, ok := m.refcounts[stream]
		if !ok {
			continue
		}
		cnt--
		if cnt == 0 {
			delete(m.refcounts, stream)
			unsubscribe = append(unsubscribe, stream)
		} else {
			m.refcounts[stream] = cnt
		}
	}

	if len(unsubscribe) == 0 {
		return nil
	}
	return m.client.WsapiCall("UNSUBSCRIBE", unsubscribe, m.nextRequestID())
}

// HandleDisconnect replies immediately with DISCONNECTED to any client
// message carrying an "id", since no upstream round trip can be served
// while the exchange connection is down.
func (m *Market) HandleDisconnect(addr subscriber.Addr, raw json.RawMessage) error {
	var probe struct {
		ID *int64 `json:"id"`
	}
	_ = json.Unmarshal(raw, &probe)
	if probe.ID == nil {
		return nil
	}
	return m.replyError(addr, *probe.ID, apperror.CodeDisconnected)
}

// Process performs one step of the upstream event pump: decode the next
// frame and route it. Returns false when there was nothing to do, true
// otherwise; the caller should stop polling once Disconnected() is true.
func (m *Market) Process(ctx context.Context) bool {
	if m.frames == nil {
		return false
	}
	select {
	case raw, ok := <-m.frames:
		if !ok {
			if !m.disconnected {
				m.disconnected = true
				if m.log != nil {
					m.log.Error(ctx, "market disconnected")
				}
			}
			return false
		}
		m.handleEvent(ctx, raw)
		return true
	default:
		return false
	}
}

func (m *Market) handleEvent(ctx context.Context, raw json.RawMessage) {
	event := wire.DecodeMarketEvent(raw)
	switch event.Kind {
	case wire.MarketEventSuccess:
		m.routeAck(event.Success.ID, raw)
	case wire.MarketEventError:
		m.routeAck(event.Error.ID, raw)
	case wire.MarketEventStream:
		m.fanOutStream(ctx, event.Stream)
	default:
		if m.log != nil {
			m.log.Warn(ctx, "unrecognized market frame shape, dropping", "raw", string(raw))
		}
	}
}

func (m *Market) routeAck(upstreamID int64, raw json.RawMessage) {
	addr, ok := m.pending[upstreamID]
	if !ok {
		return
	}
	delete(m.pending, upstreamID)
	if sub, ok := m.subscribers[addr]; ok {
		_ = sub.OnExchangeResponse(raw)
	}
}

func (m *Market) fanOutStream(ctx context.Context, stream *wire.MarketStreamEvent) {
	data, err := canonicalizeStream(stream)
	if err != nil {
		if m.log != nil {
			m.log.Warn(ctx, "failed to canonicalize market stream frame", "stream", stream.Stream, "error", err.Error())
		}
		return
	}
	for _, sub := range m.subscribers {
		if sub.IsSubscribed(stream.Stream) {
			_ = sub.ForwardToStrategyClient(data)
		}
	}
}

// canonicalizeStream converts one combined-stream push into the JSON
// subscribers expect: book-ticker passes through, depth frames gain a
// receive timestamp and drop zero-qty levels, klines are normalized.
func canonicalizeStream(stream *wire.MarketStreamEvent) ([]byte, error) {
	switch {
	case strings.Contains(stream.Stream, "@depth"):
		symbol := strings.SplitN(stream.Stream, "@", 2)[0]
		var depth wire.Depth20Event
		if err := json.Unmarshal(stream.Data, &depth); err != nil {
			return nil, err
		}
		depth.Symbol = strings.ToUpper(symbol)
		canonical, err := depth.Canonicalize(time.Now())
		if err != nil {
			return nil, err
		}
		return json.Marshal(canonical)

	case strings.Contains(stream.Stream, "@kline"):
		var kline wire.KlineEvent
		if err := json.Unmarshal(stream.Data, &kline); err != nil {
			return nil, err
		}
		return json.Marshal(kline.Canonicalize(stream.Stream))

	default:
		return stream.Data, nil
	}
}

// normalizeRequestedStream rewrites a client-facing "{symbol}@{kind}[:{param}]"
// request token into the exact upstream stream name, per the venue-specific
// rewrites NormalizeStreamSuffix implements. Requests with no '@' are
// assumed to already be a literal upstream stream name.
func normalizeRequestedStream(raw string) string {
	idx := strings.Index(raw, "@")
	if idx < 0 {
		return raw
	}
	return wire.NormalizeStreamSuffix(raw[:idx], raw[idx+1:])
}

// Reply sends a success envelope to a connected client's sink. Exported
// for the dispatch hub, which owns routing but not the sink registry.
func (m *Market) Reply(addr subscriber.Addr, id int64, result any) error {
	return m.reply(addr, id, result)
}

// ReplyError sends an error envelope carrying an already-resolved wire
// code, e.g. one produced by a trade adapter's own error classification.
func (m *Market) ReplyError(addr subscriber.Addr, id int64, code int32, msg string) error {
	sink, ok := m.sinks[addr]
	if !ok {
		return nil
	}
	body, err := json.Marshal(wire.NewError(id, code, msg))
	if err != nil {
		return err
	}
	return sink.Send(body)
}

func (m *Market) reply(addr subscriber.Addr, id int64, result any) error {
	sink, ok := m.sinks[addr]
	if !ok {
		return nil
	}
	body, err := json.Marshal(wire.NewSuccess(id, result))
	if err != nil {
		return err
	}
	return sink.Send(body)
}

func (m *Market) replyError(addr subscriber.Addr, id int64, code apperror.Code) error {
	sink, ok := m.sinks[addr]
	if !ok {
		return nil
	}
	appErr := apperror.New(code)
	return m.ReplyError(addr, id, wire.ClientErrorCode(string(code)), appErr.Message)
}
