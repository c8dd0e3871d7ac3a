package protocol

import (
	"encoding/json"
	"fmt"
)

// BinanceStream implements WsProtocol for Binance's public combined-stream
// WebSocket — subscription-style (SUBSCRIBE/UNSUBSCRIBE), no login.
type BinanceStream struct{}

var (
	_ WsProtocol  = BinanceStream{}
	_ WsEndpoints = BinanceStream{}
)

func (BinanceStream) DefaultPublicURL() string { return "wss://stream.binance.com:9443/ws" }
func (BinanceStream) DefaultPrivateURL() (string, bool) {
	// The stream network has no distinct private endpoint; private (user
	// data) streams are reached via a listen-key-bearing URL built by the
	// caller, not by this protocol.
	return "", false
}

func (BinanceStream) PingText() (string, bool) { return "", false }

// NoHeartbeat is false: the public stream network relies on the standard
// transport-level ping/pong Binance expects every connection to answer.
func (BinanceStream) NoHeartbeat() bool { return false }

func (BinanceStream) BuildLogin(Credentials) (json.RawMessage, error) { return nil, nil }

type binanceWsRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

func binanceMapChannel(channel ChannelType, normalizedSymbol string) string {
	switch channel.Kind {
	case ChannelTickers:
		return normalizedSymbol + "@ticker"
	case ChannelTrades:
		return normalizedSymbol + "@trade"
	case ChannelBooks:
		return normalizedSymbol + "@bookTicker"
	case ChannelDepth:
		return normalizedSymbol + "@depth"
	case ChannelCandle:
		return fmt.Sprintf("%s@kline_%s", normalizedSymbol, channel.Period)
	default:
		return ""
	}
}

func (BinanceStream) MakeKey(channel ChannelType, args Args) string {
	sym, _ := args.NormalizedSymbol()
	return binanceMapChannel(channel, sym)
}

func (b BinanceStream) BuildSubscribe(channel ChannelType, args Args) (StoredSubscription, error) {
	sym, _ := args.NormalizedSymbol()
	param := binanceMapChannel(channel, sym)

	reqSub, err := json.Marshal(binanceWsRequest{Method: "SUBSCRIBE", Params: []string{param}, ID: 1})
	if err != nil {
		return StoredSubscription{}, err
	}
	reqUnsub, err := json.Marshal(binanceWsRequest{Method: "UNSUBSCRIBE", Params: []string{param}, ID: 1})
	if err != nil {
		return StoredSubscription{}, err
	}

	return StoredSubscription{Key: param, ReqSub: reqSub, ReqUnsub: reqUnsub}, nil
}
