package protocol

import (
	"encoding/json"
	"strconv"

	"github.com/fd1az/venue-gateway/internal/signing"
)

// BinanceWsApi implements WsProtocol for Binance's request/response
// WebSocket API — session.logon authentication, not subscription-style.
type BinanceWsApi struct{}

var (
	_ WsProtocol  = BinanceWsApi{}
	_ WsEndpoints = BinanceWsApi{}
)

func (BinanceWsApi) DefaultPublicURL() string { return "wss://ws-api.binance.com/ws-api/v3" }
func (BinanceWsApi) DefaultPrivateURL() (string, bool) {
	return "", false
}

func (BinanceWsApi) PingText() (string, bool) { return "", false }

// NoHeartbeat is true: the WS-API does not expect any keepalive traffic,
// application-level or transport-level, from the client.
func (BinanceWsApi) NoHeartbeat() bool { return true }

// BuildLogin constructs session.logon, signing every parameter it sends
// except signature — apiKey and timestamp — as a key-sorted k=v&k=v payload.
func (BinanceWsApi) BuildLogin(cred Credentials) (json.RawMessage, error) {
	ts := signing.NowMS()
	payload := signing.SortedQueryString(map[string]string{
		"apiKey":    cred.APIKey,
		"timestamp": ts,
	})
	sig, err := signing.Ed25519SignBase64(cred.APISecret, payload)
	if err != nil {
		return nil, err
	}

	tsInt, _ := strconv.ParseInt(ts, 10, 64)
	req := map[string]any{
		"id":     1,
		"method": "session.logon",
		"params": map[string]any{
			"apiKey":    cred.APIKey,
			"timestamp": tsInt,
			"signature": sig,
		},
	}
	return json.Marshal(req)
}

// BuildSubscribe returns placeholder frames: WS-API is not subscription
// style and this method must not be used for market data.
func (BinanceWsApi) BuildSubscribe(ChannelType, Args) (StoredSubscription, error) {
	placeholder, err := json.Marshal(map[string]any{"id": 1, "method": "session.status"})
	if err != nil {
		return StoredSubscription{}, err
	}
	return StoredSubscription{Key: "rpc", ReqSub: placeholder, ReqUnsub: placeholder}, nil
}

func (BinanceWsApi) MakeKey(ChannelType, Args) string { return "rpc" }

// SignParams signs every parameter in params except "signature" (added by
// the caller after this returns), sorted by key, and returns the
// base64-encoded Ed25519 signature to attach. Used by wsclient's
// WsapiCallSigned for authenticated RPC beyond login (order.place, etc.).
func (BinanceWsApi) SignParams(secretOrPath string, params map[string]string) (string, error) {
	payload := signing.SortedQueryString(params)
	return signing.Ed25519SignBase64(secretOrPath, payload)
}
