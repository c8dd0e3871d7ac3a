// Package wsclient implements a single persistent upstream WebSocket
// connection: multiplexed send/recv, heartbeating, idle-reconnect, signed
// RPC, and subscription persistence across reconnects. One instance serves
// one exchange URL (public market data, or a private/account connection).
package wsclient

import (
	"time"

	"github.com/fd1az/venue-gateway/internal/protocol"
)

// Config configures one upstream connection.
type Config struct {
	// Name identifies this client in traces/metrics/logs, e.g. "okx-public".
	Name string
	// URL overrides the protocol's default endpoint when non-empty.
	URL string
	// Protocol selects the venue wire dialect (OKX, BinanceStream,
	// BinanceWsApi).
	Protocol protocol.WsProtocol
	// Credentials are required when IsPrivate is true.
	Credentials protocol.Credentials
	IsPrivate   bool

	ConnectTimeout  time.Duration
	HeartbeatPeriod time.Duration
	WatchdogPeriod  time.Duration
	IdleTimeout     time.Duration
	LoginSettle     time.Duration
	BufferSize      int
}

// DefaultConfig fills in the timings 4.3 specifies: 15s heartbeat tick, 5s
// watchdog poll, 30s idle ceiling, 500ms post-login settle, 3s connect
// timeout, 100-deep egress/ingress buffers.
func DefaultConfig(name string, proto protocol.WsProtocol) Config {
	return Config{
		Name:            name,
		Protocol:        proto,
		ConnectTimeout:  3 * time.Second,
		HeartbeatPeriod: 15 * time.Second,
		WatchdogPeriod:  5 * time.Second,
		IdleTimeout:     30 * time.Second,
		LoginSettle:     500 * time.Millisecond,
		BufferSize:      100,
	}
}

func (c Config) resolveURL() (string, error) {
	if c.URL != "" {
		return c.URL, nil
	}
	eps, ok := c.Protocol.(protocol.WsEndpoints)
	if !ok {
		return "", errNoEndpoints()
	}
	if c.IsPrivate {
		url, ok := eps.DefaultPrivateURL()
		if !ok {
			return "", errNoPrivateEndpoint()
		}
		return url, nil
	}
	return eps.DefaultPublicURL(), nil
}
