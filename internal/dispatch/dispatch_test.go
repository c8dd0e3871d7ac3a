package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/fd1az/venue-gateway/internal/apperror"
	"github.com/fd1az/venue-gateway/internal/logger"
	"github.com/fd1az/venue-gateway/internal/subscriber"
	"github.com/fd1az/venue-gateway/internal/trade"
	"github.com/fd1az/venue-gateway/internal/wire"
)

type fakeMarket struct {
	disconnected bool

	connected     map[subscriber.Addr]subscriber.Sink
	logins        []int64
	subscribes    []int64
	closed        []subscriber.Addr
	disconnects   []subscriber.Addr
	replies       []any
	errorReplies  []string
	subscribeErrs int
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{connected: make(map[subscriber.Addr]subscriber.Sink)}
}

func (m *fakeMarket) Disconnected() bool { return m.disconnected }

func (m *fakeMarket) HandleConnect(addr subscriber.Addr, sink subscriber.Sink) {
	m.connected[addr] = sink
}

func (m *fakeMarket) HandleLogin(addr subscriber.Addr, id int64, params json.RawMessage) error {
	m.logins = append(m.logins, id)
	return m.Reply(addr, id, params)
}

func (m *fakeMarket) HandleSubscribe(ctx context.Context, addr subscriber.Addr, id int64, requested []string) error {
	m.subscribes = append(m.subscribes, id)
	return m.Reply(addr, id, requested)
}

func (m *fakeMarket) HandleClose(addr subscriber.Addr) error {
	m.closed = append(m.closed, addr)
	return nil
}

func (m *fakeMarket) HandleDisconnect(addr subscriber.Addr, raw json.RawMessage) error {
	m.disconnects = append(m.disconnects, addr)
	return nil
}

func (m *fakeMarket) Reply(addr subscriber.Addr, id int64, result any) error {
	m.replies = append(m.replies, result)
	return nil
}

func (m *fakeMarket) ReplyError(addr subscriber.Addr, id int64, code int32, msg string) error {
	m.errorReplies = append(m.errorReplies, msg)
	return nil
}

func (m *fakeMarket) Process(ctx context.Context) bool { return false }

type fakeTrade struct {
	disconnected bool
	products     map[string]trade.ProductMetadata
	positions    map[uint16]map[string]trade.Position

	rejectLogin     *trade.Error
	rejectSubscribe *trade.Error

	orders  []trade.OrderRequest
	cancels []trade.CancelRequest
	closed  []subscriber.Addr
}

func newFakeTrade() *fakeTrade {
	return &fakeTrade{
		products:  make(map[string]trade.ProductMetadata),
		positions: make(map[uint16]map[string]trade.Position),
	}
}

func (t *fakeTrade) Disconnected() bool                         { return t.disconnected }
func (t *fakeTrade) Products() map[string]trade.ProductMetadata { return t.products }

func (t *fakeTrade) GetPositions(sessionID uint16) (map[string]trade.Position, bool) {
	p, ok := t.positions[sessionID]
	return p, ok
}

func (t *fakeTrade) Process(ctx context.Context) (bool, error) { return false, nil }

func (t *fakeTrade) AddOrder(addr subscriber.Addr, order trade.OrderRequest) error {
	t.orders = append(t.orders, order)
	return nil
}

func (t *fakeTrade) Cancel(addr subscriber.Addr, cancel trade.CancelRequest) error {
	t.cancels = append(t.cancels, cancel)
	return nil
}

func (t *fakeTrade) HandleLogin(ctx context.Context, addr subscriber.Addr, req wire.SRequest[wire.LoginParams], sink subscriber.Sink) (*trade.Error, error) {
	return t.rejectLogin, nil
}

func (t *fakeTrade) HandleSubscribe(addr subscriber.Addr, req wire.SRequest[wire.SubscribeParams]) *trade.Error {
	return t.rejectSubscribe
}

func (t *fakeTrade) HandleClose(addr subscriber.Addr) error {
	t.closed = append(t.closed, addr)
	return nil
}

func (t *fakeTrade) HandleDisconnect(addr subscriber.Addr, raw json.RawMessage) error { return nil }
func (t *fakeTrade) Reply(addr subscriber.Addr, id int64, payload any) error          { return nil }

func newTestHandler() (*Handler, *fakeMarket, *fakeTrade) {
	m := newFakeMarket()
	tr := newFakeTrade()
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	h := New(m, tr, log)
	return h, m, tr
}

func connect(h *Handler, addr subscriber.Addr) {
	outbound := make(chan []byte, 8)
	inbound := make(chan []byte, 8)
	h.onClientConnect(&Connection{Addr: addr, Outbound: outbound, Inbound: inbound})
}

func TestHandleLoginWithoutTradingSkipsTradeValidation(t *testing.T) {
	h, m, tr := newTestHandler()
	connect(h, "addr-1")
	tr.rejectLogin = trade.NewError(apperror.CodeValidationError, "should not be reached")

	raw := []byte(`{"id":1,"method":"login","params":{"session_id":7,"trading":false}}`)
	if err := h.dispatchClientRequest(context.Background(), "addr-1", raw); err != nil {
		t.Fatal(err)
	}
	if len(m.logins) != 1 {
		t.Fatalf("market logins = %d, want 1", len(m.logins))
	}
}

func TestHandleLoginWithTradingRejectedByTradeSkipsMarket(t *testing.T) {
	h, m, tr := newTestHandler()
	connect(h, "addr-1")
	tr.rejectLogin = trade.NewError(apperror.CodeValidationError, "bad session")

	raw := []byte(`{"id":1,"method":"login","params":{"session_id":7,"trading":true}}`)
	if err := h.dispatchClientRequest(context.Background(), "addr-1", raw); err != nil {
		t.Fatal(err)
	}
	if len(m.logins) != 0 {
		t.Fatal("market login should not run when trade rejects")
	}
	if len(m.errorReplies) != 1 {
		t.Fatal("expected one error reply")
	}
}

func TestHandleSubscribeRoutesToMarketOnAcceptance(t *testing.T) {
	h, m, _ := newTestHandler()
	connect(h, "addr-1")

	raw := []byte(`{"id":2,"method":"subscribe","params":{"streams":["btcusdt:bbo"]}}`)
	if err := h.dispatchClientRequest(context.Background(), "addr-1", raw); err != nil {
		t.Fatal(err)
	}
	if len(m.subscribes) != 1 {
		t.Fatalf("market subscribes = %d, want 1", len(m.subscribes))
	}
}

func TestHandleSubscribeRejectedByTradeNeverReachesMarket(t *testing.T) {
	h, m, tr := newTestHandler()
	connect(h, "addr-1")
	tr.rejectSubscribe = trade.NewError(apperror.CodeNotFound, "unknown symbol")

	raw := []byte(`{"id":2,"method":"subscribe","params":{"streams":["ethusdt:bbo"]}}`)
	if err := h.dispatchClientRequest(context.Background(), "addr-1", raw); err != nil {
		t.Fatal(err)
	}
	if len(m.subscribes) != 0 {
		t.Fatal("market subscribe should not run when trade rejects")
	}
}

func TestHandleGetProductsIgnoresSymbolFilter(t *testing.T) {
	h, m, tr := newTestHandler()
	connect(h, "addr-1")
	tr.products["btcusdt"] = trade.ProductMetadata{Symbol: "btcusdt"}
	tr.products["ethusdt"] = trade.ProductMetadata{Symbol: "ethusdt"}

	raw := []byte(`{"id":3,"method":"get_products","params":{"symbols":["btcusdt"]}}`)
	if err := h.dispatchClientRequest(context.Background(), "addr-1", raw); err != nil {
		t.Fatal(err)
	}
	if len(m.replies) != 1 {
		t.Fatal("expected one reply")
	}
	products, ok := m.replies[0].([]trade.ProductMetadata)
	if !ok {
		t.Fatalf("reply type = %T", m.replies[0])
	}
	if len(products) != 2 {
		t.Fatalf("products returned = %d, want 2 (filter is not applied)", len(products))
	}
}

func TestHandleGetPositionsFiltersBySymbol(t *testing.T) {
	h, m, tr := newTestHandler()
	connect(h, "addr-1")
	tr.positions[7] = map[string]trade.Position{
		"BTC": {Symbol: "BTC", Free: "1"},
		"ETH": {Symbol: "ETH", Free: "2"},
	}

	raw := []byte(`{"id":4,"method":"get_positions","params":{"session_id":7,"symbols":["BTC"]}}`)
	if err := h.dispatchClientRequest(context.Background(), "addr-1", raw); err != nil {
		t.Fatal(err)
	}
	result, ok := m.replies[0].(getPositionsResult)
	if !ok {
		t.Fatalf("reply type = %T", m.replies[0])
	}
	if len(result.Positions) != 1 || result.Positions[0].Symbol != "BTC" {
		t.Fatalf("positions = %+v, want only BTC", result.Positions)
	}
}

func TestHandleOrderEncodesClientOrderID(t *testing.T) {
	h, _, tr := newTestHandler()
	connect(h, "addr-1")

	raw := []byte(`{"id":5,"method":"order","params":{"id":42,"symbol":"BTCUSDT","price":"50000","quantity":"0.1","side":"BUY","order_type":"LIMIT","tif":"GTC","session_id":7}}`)
	if err := h.dispatchClientRequest(context.Background(), "addr-1", raw); err != nil {
		t.Fatal(err)
	}
	if len(tr.orders) != 1 {
		t.Fatalf("orders placed = %d, want 1", len(tr.orders))
	}
	want := wire.EncodeClientOrderID(7, 42)
	if tr.orders[0].ClientOrderID != want {
		t.Fatalf("client_order_id = %q, want %q", tr.orders[0].ClientOrderID, want)
	}
}

func TestHandleCancelRoutesToTrade(t *testing.T) {
	h, _, tr := newTestHandler()
	connect(h, "addr-1")

	raw := []byte(`{"id":6,"method":"cancel","params":{"symbol":"BTCUSDT","session_id":7,"order_id":123}}`)
	if err := h.dispatchClientRequest(context.Background(), "addr-1", raw); err != nil {
		t.Fatal(err)
	}
	if len(tr.cancels) != 1 || tr.cancels[0].OrderID != 123 {
		t.Fatalf("cancels = %+v", tr.cancels)
	}
}

func TestDispatchShortCircuitsWhenMarketDisconnected(t *testing.T) {
	h, m, _ := newTestHandler()
	connect(h, "addr-1")
	m.disconnected = true

	raw := []byte(`{"id":7,"method":"get_products","params":{}}`)
	if err := h.dispatchClientRequest(context.Background(), "addr-1", raw); err != nil {
		t.Fatal(err)
	}
	if len(m.disconnects) != 1 {
		t.Fatal("expected disconnect short-circuit")
	}
}

func TestDispatchShortCircuitsWhenTradeDisconnected(t *testing.T) {
	h, _, tr := newTestHandler()
	connect(h, "addr-1")
	tr.disconnected = true

	raw := []byte(`{"id":7,"method":"order","params":{}}`)
	if err := h.dispatchClientRequest(context.Background(), "addr-1", raw); err != nil {
		t.Fatal(err)
	}
	if len(tr.orders) != 0 {
		t.Fatal("order should not reach trade while disconnected")
	}
}

func TestDrainClientMessagesPrunesOnClosedChannel(t *testing.T) {
	h, m, tr := newTestHandler()
	outbound := make(chan []byte, 8)
	inbound := make(chan []byte, 8)
	h.onClientConnect(&Connection{Addr: "addr-1", Outbound: outbound, Inbound: inbound})
	close(inbound)

	h.drainClientMessages(context.Background())

	if _, ok := h.clients["addr-1"]; ok {
		t.Fatal("expected client to be pruned after its inbound channel closed")
	}
	if len(m.closed) != 1 || len(tr.closed) != 1 {
		t.Fatal("expected both market and trade HandleClose to run")
	}
}

func TestDrainClientMessagesCapsBatchSize(t *testing.T) {
	h, m, _ := newTestHandler()
	outbound := make(chan []byte, maxClientMsgBatch*2)
	inbound := make(chan []byte, maxClientMsgBatch*2)
	h.onClientConnect(&Connection{Addr: "addr-1", Outbound: outbound, Inbound: inbound})

	for i := 0; i < maxClientMsgBatch*2; i++ {
		inbound <- []byte(`{"id":1,"method":"get_products","params":{}}`)
	}

	h.drainClientMessages(context.Background())
	if len(m.replies) != maxClientMsgBatch {
		t.Fatalf("replies handled this tick = %d, want %d", len(m.replies), maxClientMsgBatch)
	}

	h.drainClientMessages(context.Background())
	if len(m.replies) != maxClientMsgBatch*2 {
		t.Fatalf("replies handled after second tick = %d, want %d", len(m.replies), maxClientMsgBatch*2)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	h, _, _ := newTestHandler()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	connections := make(chan *Connection)
	if err := h.Run(ctx, connections); err != nil {
		t.Fatal(err)
	}
}
