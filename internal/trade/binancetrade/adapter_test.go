package binancetrade

import (
	"context"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fd1az/venue-gateway/internal/logger"
	"github.com/fd1az/venue-gateway/internal/productcatalog"
	"github.com/fd1az/venue-gateway/internal/protocol"
	"github.com/fd1az/venue-gateway/internal/ratelimit"
	"github.com/fd1az/venue-gateway/internal/session"
	"github.com/fd1az/venue-gateway/internal/subscriber"
	"github.com/fd1az/venue-gateway/internal/trade"
	"github.com/fd1az/venue-gateway/internal/wire"
	"github.com/fd1az/venue-gateway/internal/wsclient"
)

func ed25519PEMFixture(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	return string(pem.EncodeToMemory(block))
}

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	cfg := wsclient.DefaultConfig("test-trade", protocol.BinanceWsApi{})
	cfg.Credentials = protocol.Credentials{APIKey: "test-key", APISecret: ed25519PEMFixture(t)}
	client, err := wsclient.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	adapter := NewAdapter(nil, nil, log)
	mgr := session.NewManager(client, adapter, log)
	adapter.session = mgr
	return adapter
}

func newRecordingSink() (subscriber.Sink, *[][]byte) {
	var sent [][]byte
	return subscriber.SinkFunc(func(payload []byte) error {
		sent = append(sent, payload)
		return nil
	}), &sent
}

func TestHandleLoginWithoutSessionIDIsRejected(t *testing.T) {
	a := newTestAdapter(t)
	sink, _ := newRecordingSink()
	req := wire.SRequest[wire.LoginParams]{ID: 1, Method: "login", Params: wire.LoginParams{}}

	errReply, err := a.HandleLogin(context.Background(), "addr-1", req, sink)
	if err != nil {
		t.Fatal(err)
	}
	if errReply == nil {
		t.Fatal("expected a validation error for missing session_id")
	}
}

func TestHandleLoginEchoesParamsAndRecordsSession(t *testing.T) {
	a := newTestAdapter(t)
	sink, sent := newRecordingSink()
	req := wire.SRequest[wire.LoginParams]{ID: 1, Method: "login", Params: wire.LoginParams{"session_id": float64(7)}}

	errReply, err := a.HandleLogin(context.Background(), "addr-1", req, sink)
	if err != nil {
		t.Fatal(err)
	}
	if errReply != nil {
		t.Fatalf("unexpected error reply: %+v", errReply)
	}
	if len(*sent) != 1 {
		t.Fatalf("sent = %d, want 1 echo reply", len(*sent))
	}

	if _, ok := a.GetPositions(7); !ok {
		t.Fatal("expected session 7 to be tracked after login")
	}
}

func TestGetPositionsUnknownSessionReturnsFalse(t *testing.T) {
	a := newTestAdapter(t)
	if _, ok := a.GetPositions(99); ok {
		t.Fatal("expected unknown session to report false")
	}
}

func TestOnOutboundAccountPositionUpdatesBalances(t *testing.T) {
	a := newTestAdapter(t)
	sink, _ := newRecordingSink()
	_, _ = a.HandleLogin(context.Background(), "addr-1", wire.SRequest[wire.LoginParams]{ID: 1, Params: wire.LoginParams{"session_id": float64(1)}}, sink)

	a.OnOutboundAccountPosition(wire.OutboundAccountPosition{
		Balances: []wire.SpotPosition{{Asset: "BTC", Free: "1.5", Locked: "0"}},
	})

	positions, ok := a.GetPositions(1)
	if !ok {
		t.Fatal("expected session 1 tracked")
	}
	if positions["BTC"].Free != "1.5" {
		t.Fatalf("BTC free = %q, want 1.5", positions["BTC"].Free)
	}
}

func TestOnOrderBroadcastsToLoggedInSinks(t *testing.T) {
	a := newTestAdapter(t)
	sink, sent := newRecordingSink()
	_, _ = a.HandleLogin(context.Background(), "addr-1", wire.SRequest[wire.LoginParams]{ID: 1, Params: wire.LoginParams{"session_id": float64(1)}}, sink)

	a.OnOrder(wire.Order{Symbol: "BTCUSDT", OrderID: 42})

	if len(*sent) != 2 {
		t.Fatalf("sent = %d, want 2 (login echo + order push)", len(*sent))
	}
	var push map[string]any
	if err := json.Unmarshal((*sent)[1], &push); err != nil {
		t.Fatal(err)
	}
	if push["event"] != "order" {
		t.Fatalf("event = %v, want order", push["event"])
	}
}

func TestHandleCloseRemovesClientState(t *testing.T) {
	a := newTestAdapter(t)
	sink, _ := newRecordingSink()
	_, _ = a.HandleLogin(context.Background(), "addr-1", wire.SRequest[wire.LoginParams]{ID: 1, Params: wire.LoginParams{"session_id": float64(1)}}, sink)

	if err := a.HandleClose("addr-1"); err != nil {
		t.Fatal(err)
	}

	a.OnOrder(wire.Order{Symbol: "BTCUSDT"})
	if len(a.sinks) != 0 {
		t.Fatalf("sinks = %d, want 0 after close", len(a.sinks))
	}
}

func TestHandleSubscribeRejectsUnknownSymbol(t *testing.T) {
	a := newTestAdapter(t)
	a.products["btcusdt"] = productcatalog.ProductMetadata{Symbol: "btcusdt"}

	req := wire.SRequest[wire.SubscribeParams]{ID: 1, Params: wire.SubscribeParams{Streams: []string{"ethusdt:bbo"}}}
	if errReply := a.HandleSubscribe("addr-1", req); errReply == nil {
		t.Fatal("expected rejection for a symbol not in the catalog")
	}
}

func TestHandleSubscribeAcceptsKnownSymbol(t *testing.T) {
	a := newTestAdapter(t)
	a.products["btcusdt"] = productcatalog.ProductMetadata{Symbol: "btcusdt"}

	req := wire.SRequest[wire.SubscribeParams]{ID: 1, Params: wire.SubscribeParams{Streams: []string{"btcusdt:bbo"}}}
	if errReply := a.HandleSubscribe("addr-1", req); errReply != nil {
		t.Fatalf("unexpected rejection: %+v", errReply)
	}
}

func TestAddOrderRejectedWhenRateLimited(t *testing.T) {
	a := newTestAdapter(t)
	a.SetOrderLimiter(ratelimit.NewWithBurst(0, 1))
	// First call consumes the only token and is issued (a signed call is
	// queued even without a live connection).
	_ = a.AddOrder("addr-1", trade.OrderRequest{Symbol: "BTCUSDT"})

	err := a.AddOrder("addr-1", trade.OrderRequest{Symbol: "BTCUSDT"})
	if err == nil {
		t.Fatal("expected second order to be rate-limited")
	}
}

func TestOnOrderInvokesEventHook(t *testing.T) {
	a := newTestAdapter(t)
	var got wire.Order
	a.OnOrderEvent = func(o wire.Order) { got = o }

	a.OnOrder(wire.Order{Symbol: "ETHUSDT", OrderID: 7})

	if got.Symbol != "ETHUSDT" || got.OrderID != 7 {
		t.Fatalf("OnOrderEvent hook did not observe the pushed order: %+v", got)
	}
}

func TestStatsCountsPlacedAndCancelledOrders(t *testing.T) {
	a := newTestAdapter(t)
	if err := a.AddOrder("addr-1", trade.OrderRequest{Symbol: "BTCUSDT"}); err != nil {
		t.Fatal(err)
	}
	if err := a.Cancel("addr-1", trade.CancelRequest{Symbol: "BTCUSDT", OrderID: 1}); err != nil {
		t.Fatal(err)
	}

	stats := a.Stats()
	if stats.OrdersPlaced != 1 {
		t.Fatalf("OrdersPlaced = %d, want 1", stats.OrdersPlaced)
	}
	if stats.OrdersCancelled != 1 {
		t.Fatalf("OrdersCancelled = %d, want 1", stats.OrdersCancelled)
	}
}

func TestStatsCountsSigningFailureAsError(t *testing.T) {
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	// BinanceStream carries no Signer implementation, so a signed call
	// against it fails before ever reaching the wire.
	cfg := wsclient.DefaultConfig("test-trade-unsigned", protocol.BinanceStream{})
	client, err := wsclient.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	a := NewAdapter(nil, nil, log)
	mgr := session.NewManager(client, a, log)
	a.session = mgr

	if err := a.AddOrder("addr-1", trade.OrderRequest{Symbol: "BTCUSDT"}); err == nil {
		t.Fatal("expected signing failure to surface as an error")
	}

	if stats := a.Stats(); stats.Errors != 1 {
		t.Fatalf("Errors = %d, want 1", stats.Errors)
	}
}

func TestFetchProductsPopulatesCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbols":[{"symbol":"BTCUSDT","status":"TRADING","baseAsset":"BTC","quoteAsset":"USDT","orderTypes":["LIMIT"],"filters":[]}]}`))
	}))
	defer srv.Close()

	catalog, err := productcatalog.NewClient(productcatalog.Config{BaseURL: srv.URL}, logger.New(io.Discard, logger.LevelError, "test", nil))
	if err != nil {
		t.Fatal(err)
	}
	a := newTestAdapter(t)
	a.catalog = catalog

	if err := a.FetchProducts(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok := a.Products()["btcusdt"]; !ok {
		t.Fatal("expected btcusdt in the fetched catalog")
	}
}
