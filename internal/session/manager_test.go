package session

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/fd1az/venue-gateway/internal/logger"
	"github.com/fd1az/venue-gateway/internal/protocol"
	"github.com/fd1az/venue-gateway/internal/wire"
	"github.com/fd1az/venue-gateway/internal/wsclient"
)

type fakeAccountProtocol struct{}

func (fakeAccountProtocol) DefaultPublicURL() string { return "wss://example.invalid/public" }
func (fakeAccountProtocol) DefaultPrivateURL() (string, bool) {
	return "wss://example.invalid/private", true
}
func (fakeAccountProtocol) PingText() (string, bool) { return "", false }
func (fakeAccountProtocol) NoHeartbeat() bool        { return true }
func (fakeAccountProtocol) BuildLogin(protocol.Credentials) (json.RawMessage, error) {
	return json.Marshal(map[string]string{"method": "session.logon"})
}
func (fakeAccountProtocol) MakeKey(ch protocol.ChannelType, args protocol.Args) string {
	sym, _ := args.Symbol()
	return sym
}
func (fakeAccountProtocol) BuildSubscribe(ch protocol.ChannelType, args protocol.Args) (protocol.StoredSubscription, error) {
	return protocol.StoredSubscription{}, nil
}

type recordingHandler struct {
	orders  []wire.Order
	unknown int
}

func (h *recordingHandler) OnOrder(o wire.Order)                                 { h.orders = append(h.orders, o) }
func (h *recordingHandler) OnBalanceUpdate(wire.BalanceUpdate)                   {}
func (h *recordingHandler) OnOutboundAccountPosition(wire.OutboundAccountPosition) {}
func (h *recordingHandler) OnUserLiabilityChange(wire.UserLiabilityChange)       {}
func (h *recordingHandler) OnMarginLevelStatusChange(wire.MarginLevelStatusChange) {}
func (h *recordingHandler) OnListStatus(wire.ListStatus)                        {}
func (h *recordingHandler) OnListenKeyExpired(wire.ListenKeyExpired)            {}
func (h *recordingHandler) OnUnknown(kind wire.UserDataKind, raw json.RawMessage) { h.unknown++ }

func newTestManager(t *testing.T) (*Manager, *recordingHandler) {
	t.Helper()
	client, err := wsclient.New(wsclient.DefaultConfig("test-account", fakeAccountProtocol{}))
	if err != nil {
		t.Fatal(err)
	}
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	handler := &recordingHandler{}
	m := NewManager(client, handler, log)
	return m, handler
}

func TestManagerStartsDisconnected(t *testing.T) {
	m, _ := newTestManager(t)
	if m.State() != StateDisconnected {
		t.Fatalf("state = %v, want disconnected", m.State())
	}
}

func TestProcessWithNoFramesChannelIsNoop(t *testing.T) {
	m, _ := newTestManager(t)
	if m.Process(context.Background()) {
		t.Fatal("Process should report nothing to do before Connect")
	}
}

func TestHandleFrameLogonSuccessTransitionsToAuthenticated(t *testing.T) {
	m, _ := newTestManager(t)
	frames := make(chan json.RawMessage, 1)
	m.frames = frames
	m.setState(StateConnected)

	raw := []byte(`{"id":"1","status":200,"result":{"apiKey":"abc123","authorizedSince":1000,"connectedSince":900,"serverTime":1001,"userDataStream":true}}`)
	frames <- raw

	if !m.Process(context.Background()) {
		t.Fatal("expected Process to consume the queued frame")
	}

	info, ok := m.Authenticated()
	if !ok {
		t.Fatalf("state = %v, want authenticated", m.State())
	}
	if info.APIKey != "abc123" {
		t.Fatalf("apiKey = %q, want abc123", info.APIKey)
	}
	if info.ServerTime != 1001 {
		t.Fatalf("serverTime = %d, want 1001", info.ServerTime)
	}
}

func TestHandleFrameLogonFailureTransitionsToAuthenticationFailed(t *testing.T) {
	m, _ := newTestManager(t)
	frames := make(chan json.RawMessage, 1)
	m.frames = frames
	m.setState(StateConnected)

	raw := []byte(`{"id":"1","status":401,"error":{"code":-2015,"msg":"Invalid API-key"}}`)
	frames <- raw
	m.Process(context.Background())

	if m.State() != StateAuthenticationFailed {
		t.Fatalf("state = %v, want authentication_failed", m.State())
	}
	reason, ok := m.AuthenticationFailureReason()
	if !ok || reason != "Invalid API-key" {
		t.Fatalf("reason = %q, ok = %v", reason, ok)
	}
}

func TestHandleFrameUserDataDispatchesToHandler(t *testing.T) {
	m, handler := newTestManager(t)
	frames := make(chan json.RawMessage, 1)
	m.frames = frames

	raw := []byte(`{"subscriptionId":7,"event":{"e":"executionReport","E":1,"s":"BTCUSDT","c":"1","S":"BUY","o":"LIMIT","f":"GTC","q":"1","p":"1","X":"NEW","i":10,"l":"0","z":"0","L":"0","T":1,"w":true,"m":false,"C":""}}`)
	frames <- raw
	m.Process(context.Background())

	if len(handler.orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(handler.orders))
	}
	if handler.orders[0].Symbol != "BTCUSDT" {
		t.Fatalf("symbol = %q, want BTCUSDT", handler.orders[0].Symbol)
	}
}

func TestHandleFrameSubscribeAckTracksSubscriptionID(t *testing.T) {
	m, _ := newTestManager(t)
	frames := make(chan json.RawMessage, 1)
	m.frames = frames

	raw := []byte(`{"id":"2","status":200,"result":{"subscriptionId":42}}`)
	frames <- raw
	m.Process(context.Background())

	active := m.streams.Active()
	if len(active) != 1 || active[0] != 42 {
		t.Fatalf("active streams = %v, want [42]", active)
	}
}

func TestProcessOnClosedChannelMarksDisconnected(t *testing.T) {
	m, _ := newTestManager(t)
	frames := make(chan json.RawMessage)
	close(frames)
	m.frames = frames
	m.setState(StateAuthenticated)

	if m.Process(context.Background()) {
		t.Fatal("Process on a closed channel should return false")
	}
	if m.State() != StateDisconnected {
		t.Fatalf("state = %v, want disconnected", m.State())
	}
	if !m.Disconnected() {
		t.Fatal("expected Disconnected() to report true")
	}
}

func TestUnsubscribeUserDataWithIDRemovesLocally(t *testing.T) {
	m, _ := newTestManager(t)
	m.streams.Add(5)
	m.streams.Add(6)

	id := int64(5)
	_ = m.UnsubscribeUserData(&id)

	active := m.streams.Active()
	if len(active) != 1 || active[0] != 6 {
		t.Fatalf("active streams = %v, want [6]", active)
	}
}

func TestUnsubscribeUserDataWithoutIDClearsAll(t *testing.T) {
	m, _ := newTestManager(t)
	m.streams.Add(5)
	m.streams.Add(6)

	_ = m.UnsubscribeUserData(nil)

	if len(m.streams.Active()) != 0 {
		t.Fatalf("expected all streams cleared, got %v", m.streams.Active())
	}
	if m.streams.LifetimeCount() != 2 {
		t.Fatalf("lifetime count = %d, want 2 (never decrements)", m.streams.LifetimeCount())
	}
}

func TestNextRequestIDIsMonotonic(t *testing.T) {
	m, _ := newTestManager(t)
	first := m.NextRequestID()
	second := m.NextRequestID()
	if second != first+1 {
		t.Fatalf("ids = %d, %d, want consecutive", first, second)
	}
}
