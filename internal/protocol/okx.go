package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/fd1az/venue-gateway/internal/signing"
)

// Okx implements WsProtocol for OKX's v5 public/private WebSocket API.
type Okx struct{}

var (
	_ WsProtocol  = Okx{}
	_ WsEndpoints = Okx{}
)

func (Okx) DefaultPublicURL() string { return "wss://ws.okx.com:8443/ws/v5/public" }
func (Okx) DefaultPrivateURL() (string, bool) {
	return "wss://ws.okx.com:8443/ws/v5/private", true
}

func (Okx) PingText() (string, bool) { return "ping", true }

func (Okx) NoHeartbeat() bool { return false }

type okxWsAuth struct {
	APIKey     string `json:"apiKey"`
	Sign       string `json:"sign"`
	Timestamp  string `json:"timestamp"`
	Passphrase string `json:"passphrase"`
}

type okxWsLoginRequest struct {
	Op   string      `json:"op"`
	Args []okxWsAuth `json:"args"`
}

func (Okx) BuildLogin(cred Credentials) (json.RawMessage, error) {
	ts := signing.NowMS()
	sig, err := signing.HMACSHA256Base64(cred.APISecret, ts, "GET", "/users/self/verify", "")
	if err != nil {
		return nil, err
	}
	req := okxWsLoginRequest{
		Op: "login",
		Args: []okxWsAuth{{
			APIKey:     cred.APIKey,
			Sign:       sig,
			Timestamp:  ts,
			Passphrase: cred.Passphrase,
		}},
	}
	return json.Marshal(req)
}

type okxSubscription struct {
	Channel      string            `json:"channel"`
	InstrumentID string            `json:"instId,omitempty"`
	Args         map[string]string `json:"-"`
}

// MarshalJSON flattens Args alongside Channel/InstrumentID, mirroring the
// original's #[serde(flatten)] behavior on the extra parameter map.
func (s okxSubscription) MarshalJSON() ([]byte, error) {
	m := map[string]string{"channel": s.Channel}
	if s.InstrumentID != "" {
		m["instId"] = s.InstrumentID
	}
	for k, v := range s.Args {
		m[k] = v
	}
	return json.Marshal(m)
}

type okxWsRequest struct {
	Op   string            `json:"op"`
	Args []okxSubscription `json:"args"`
}

func okxMapChannel(channel ChannelType) string {
	switch channel.Kind {
	case ChannelCandle:
		return fmt.Sprintf("candle%s", channel.Period)
	case ChannelTickers:
		return "tickers"
	case ChannelTrades:
		return "trades"
	case ChannelBooks:
		return "books"
	case ChannelDepth:
		return "depth"
	default:
		return ""
	}
}

func (Okx) MakeKey(channel ChannelType, args Args) string {
	name := okxMapChannel(channel)
	if sym, ok := args.Symbol(); ok {
		return fmt.Sprintf("%s:%s", name, sym)
	}
	return name
}

func (o Okx) BuildSubscribe(channel ChannelType, args Args) (StoredSubscription, error) {
	name := okxMapChannel(channel)
	instID, _ := args.Symbol()
	sub := okxSubscription{Channel: name, InstrumentID: instID, Args: args.Params}

	key := name
	if instID != "" {
		key = fmt.Sprintf("%s:%s", name, instID)
	}

	reqSub, err := json.Marshal(okxWsRequest{Op: "subscribe", Args: []okxSubscription{sub}})
	if err != nil {
		return StoredSubscription{}, err
	}
	reqUnsub, err := json.Marshal(okxWsRequest{Op: "unsubscribe", Args: []okxSubscription{sub}})
	if err != nil {
		return StoredSubscription{}, err
	}
	local, err := json.Marshal(sub)
	if err != nil {
		return StoredSubscription{}, err
	}

	return StoredSubscription{Key: key, Local: local, ReqSub: reqSub, ReqUnsub: reqUnsub}, nil
}
