package wsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/venue-gateway/internal/apperror"
	"github.com/fd1az/venue-gateway/internal/circuitbreaker"
	"github.com/fd1az/venue-gateway/internal/protocol"
	"github.com/fd1az/venue-gateway/internal/signing"
)

// Signer is implemented by protocols that support signed RPC beyond login
// (currently only BinanceWsApi).
type Signer interface {
	SignParams(secretOrPath string, params map[string]string) (string, error)
}

// Client owns one persistent upstream connection: egress/ingress pumps,
// heartbeat, idle watchdog, and subscription replay on reconnect.
type Client struct {
	config Config
	url    string

	connMu sync.RWMutex
	conn   *websocket.Conn

	subsMu sync.Mutex
	subs   map[string]protocol.StoredSubscription
	order  []string

	outbound chan []byte
	inbound  chan json.RawMessage

	lastActivity    atomic.Int64 // unix nano
	pingOutstanding atomic.Bool
	closed          atomic.Bool

	framesIn  atomic.Int64
	framesOut atomic.Int64

	watchdogOnce sync.Once
	breaker      *gobreaker.CircuitBreaker[struct{}]

	tracer  trace.Tracer
	metrics *clientMetrics
}

func New(cfg Config) (*Client, error) {
	url, err := cfg.resolveURL()
	if err != nil {
		return nil, err
	}
	m, err := newClientMetrics()
	if err != nil {
		return nil, fmt.Errorf("init wsclient metrics: %w", err)
	}
	c := &Client{
		config:   cfg,
		url:      url,
		subs:     make(map[string]protocol.StoredSubscription),
		outbound: make(chan []byte, cfg.BufferSize),
		inbound:  make(chan json.RawMessage, cfg.BufferSize),
		tracer:   otel.Tracer(tracerName),
		metrics:  m,
	}
	breakerCfg := circuitbreaker.DefaultConfig(cfg.Name + "-reconnect")
	c.breaker = circuitbreaker.New[struct{}](breakerCfg)
	return c, nil
}

// Connect dials the upstream, performs login if private, replays any
// persisted subscriptions, and returns the channel decoded frames arrive
// on. The channel is stable across watchdog-triggered reconnects.
func (c *Client) Connect(ctx context.Context) (<-chan json.RawMessage, error) {
	if c.closed.Load() {
		return nil, errClosed()
	}
	if err := c.connectOnce(ctx); err != nil {
		return nil, err
	}
	c.watchdogOnce.Do(func() { go c.watchdogLoop(context.Background()) })
	return c.inbound, nil
}

func (c *Client) connectOnce(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "wsclient.connect",
		trace.WithAttributes(attribute.String("wsclient.name", c.config.Name), attribute.String("wsclient.url", c.url)),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	dialCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return apperror.External(apperror.CodeWebSocketConnectionError, c.config.Name, err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.lastActivity.Store(time.Now().UnixNano())
	c.pingOutstanding.Store(false)

	connDone := make(chan struct{})
	go c.egressPump(conn, connDone)
	go c.ingressPump(conn, connDone)
	go c.heartbeatLoop(conn, connDone)

	if c.config.IsPrivate {
		login, err := c.config.Protocol.BuildLogin(c.config.Credentials)
		if err != nil {
			span.RecordError(err)
			return apperror.New(apperror.CodeSigningFailed, apperror.WithCause(err))
		}
		if login != nil {
			c.enqueue(login)
		}
		time.Sleep(c.config.LoginSettle)
	}

	c.subsMu.Lock()
	order := append([]string(nil), c.order...)
	subs := c.subs
	c.subsMu.Unlock()
	for _, key := range order {
		if sub, ok := subs[key]; ok {
			c.enqueue(sub.ReqSub)
		}
	}

	span.SetStatus(codes.Ok, "connected")
	return nil
}

func (c *Client) enqueue(frame []byte) {
	select {
	case c.outbound <- frame:
	default:
		c.metrics.droppedMessages.Add(context.Background(), 1, metric.WithAttributes(attribute.String("wsclient.name", c.config.Name), attribute.String("direction", "outbound")))
	}
}

func (c *Client) egressPump(conn *websocket.Conn, done chan struct{}) {
	attrs := metric.WithAttributes(attribute.String("wsclient.name", c.config.Name))
	for {
		select {
		case <-done:
			return
		case frame := <-c.outbound:
			writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				c.triggerDisconnect(conn, done)
				return
			}
			c.metrics.messagesSent.Add(context.Background(), 1, attrs)
			c.framesOut.Add(1)
		}
	}
}

func (c *Client) ingressPump(conn *websocket.Conn, done chan struct{}) {
	attrs := metric.WithAttributes(attribute.String("wsclient.name", c.config.Name))
	for {
		select {
		case <-done:
			return
		default:
		}

		_, data, err := conn.Read(context.Background())
		if err != nil {
			c.triggerDisconnect(conn, done)
			return
		}
		c.lastActivity.Store(time.Now().UnixNano())

		if pongText, ok := c.config.Protocol.PingText(); ok {
			if strings.TrimSpace(string(data)) == "pong" || strings.TrimSpace(string(data)) == pongText {
				c.pingOutstanding.Store(false)
				continue
			}
		}

		var raw json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			// malformed frame: not logged, only counted in the dropped
			// metric; the stream continues.
			c.metrics.droppedMessages.Add(context.Background(), 1, metric.WithAttributes(attribute.String("wsclient.name", c.config.Name), attribute.String("direction", "inbound")))
			continue
		}

		select {
		case c.inbound <- raw:
			c.metrics.messagesReceived.Add(context.Background(), 1, attrs)
			c.framesIn.Add(1)
		default:
			c.metrics.droppedMessages.Add(context.Background(), 1, metric.WithAttributes(attribute.String("wsclient.name", c.config.Name), attribute.String("direction", "inbound")))
		}
	}
}

func (c *Client) heartbeatLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.config.HeartbeatPeriod)
	defer ticker.Stop()
	attrs := metric.WithAttributes(attribute.String("wsclient.name", c.config.Name))

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if c.config.Protocol.NoHeartbeat() {
				continue
			}

			if c.pingOutstanding.Load() {
				c.metrics.pingsFailed.Add(context.Background(), 1, attrs)
				c.triggerDisconnect(conn, done)
				return
			}

			if text, ok := c.config.Protocol.PingText(); ok {
				c.pingOutstanding.Store(true)
				c.enqueue([]byte(text))
				c.metrics.pingsTotal.Add(context.Background(), 1, attrs)
				continue
			}

			pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			c.metrics.pingsTotal.Add(context.Background(), 1, attrs)
			if err != nil {
				c.metrics.pingsFailed.Add(context.Background(), 1, attrs)
				c.triggerDisconnect(conn, done)
				return
			}
		}
	}
}

// triggerDisconnect closes the current generation of pumps exactly once;
// the watchdog loop is responsible for reconnecting.
func (c *Client) triggerDisconnect(conn *websocket.Conn, done chan struct{}) {
	select {
	case <-done:
		return
	default:
	}
	defer func() { recover() }() // guard the racing egress/ingress/heartbeat close
	close(done)

	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connMu.Unlock()
	_ = conn.Close(websocket.StatusAbnormalClosure, "disconnected")
}

// watchdogLoop polls for staleness and reconnects through the circuit
// breaker so a persistent outage backs off instead of hot-looping.
func (c *Client) watchdogLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.WatchdogPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if c.closed.Load() {
			return
		}
		last := time.Unix(0, c.lastActivity.Load())
		if time.Since(last) < c.config.IdleTimeout {
			continue
		}

		c.metrics.reconnectsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("wsclient.name", c.config.Name)))
		_, _ = c.breaker.Execute(func() (struct{}, error) {
			c.connMu.Lock()
			conn := c.conn
			c.connMu.Unlock()
			if conn != nil {
				_ = conn.Close(websocket.StatusGoingAway, "idle reconnect")
			}
			return struct{}{}, c.connectOnce(ctx)
		})
	}
}

// Subscribe builds and sends a subscribe frame, persisting it for replay on
// reconnect. Re-subscribing to the same key is idempotent (last write wins).
func (c *Client) Subscribe(channel protocol.ChannelType, args protocol.Args) error {
	sub, err := c.config.Protocol.BuildSubscribe(channel, args)
	if err != nil {
		return err
	}
	c.subsMu.Lock()
	if _, exists := c.subs[sub.Key]; !exists {
		c.order = append(c.order, sub.Key)
	}
	c.subs[sub.Key] = sub
	c.subsMu.Unlock()

	c.enqueue(sub.ReqSub)
	return nil
}

// Unsubscribe removes a persisted subscription and sends its unsubscribe
// frame. A key with no persisted entry falls back to building one ad hoc.
func (c *Client) Unsubscribe(channel protocol.ChannelType, args protocol.Args) error {
	key := c.config.Protocol.MakeKey(channel, args)

	c.subsMu.Lock()
	sub, ok := c.subs[key]
	if ok {
		delete(c.subs, key)
		for i, k := range c.order {
			if k == key {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	c.subsMu.Unlock()

	if ok {
		c.enqueue(sub.ReqUnsub)
		return nil
	}

	adhoc, err := c.config.Protocol.BuildSubscribe(channel, args)
	if err != nil {
		return err
	}
	c.enqueue(adhoc.ReqUnsub)
	return nil
}

// WsapiCall sends a fire-and-forget unsigned request.
func (c *Client) WsapiCall(method string, params any, id int64) error {
	if !c.IsConnected() {
		return errNotConnected()
	}
	frame, err := json.Marshal(map[string]any{"id": id, "method": method, "params": params})
	if err != nil {
		return err
	}
	c.enqueue(frame)
	return nil
}

// WsapiCallSigned inserts apiKey and a millisecond timestamp into params,
// signs the sorted k=v payload, and sends the request with the signature
// attached. Only protocols implementing Signer support this.
func (c *Client) WsapiCallSigned(method string, params map[string]string, id int64) error {
	signer, ok := c.config.Protocol.(Signer)
	if !ok {
		return apperror.New(apperror.CodeSigningFailed, apperror.WithMessage("protocol does not support signed RPC"))
	}

	signable := make(map[string]string, len(params)+2)
	for k, v := range params {
		signable[k] = v
	}
	signable["apiKey"] = c.config.Credentials.APIKey
	ts := signing.NowMS()
	signable["timestamp"] = ts

	sig, err := signer.SignParams(c.config.Credentials.APISecret, signable)
	if err != nil {
		return apperror.New(apperror.CodeAuthenticationFailed, apperror.WithCause(err))
	}
	signable["signature"] = sig

	tsInt, _ := strconv.ParseInt(ts, 10, 64)
	outParams := map[string]any{}
	for k, v := range signable {
		if k == "timestamp" {
			outParams[k] = tsInt
			continue
		}
		outParams[k] = v
	}

	frame, err := json.Marshal(map[string]any{"id": id, "method": method, "params": outParams})
	if err != nil {
		return err
	}
	c.enqueue(frame)
	return nil
}

// Close sends a close frame and stops the background pumps permanently.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "client closing")
}

// IsConnected reports whether a live connection is installed.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn != nil
}

// FrameCounts returns the running count of frames read from and written to
// this connection, for operator display.
func (c *Client) FrameCounts() (in, out int64) {
	return c.framesIn.Load(), c.framesOut.Load()
}
