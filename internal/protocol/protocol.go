package protocol

import "encoding/json"

// WsProtocol is the per-venue strategy object: it knows how to build login
// and subscribe/unsubscribe frames, what text to ping with, and how to key a
// subscription. Adding a venue means adding one implementation of these five
// methods (plus WsEndpoints for its default URLs) — no inheritance, no
// shared base type.
type WsProtocol interface {
	// PingText returns the application-level ping payload to send when no
	// pong is outstanding, or "" if the venue relies on transport-level
	// pings only (ok is false in that case).
	PingText() (text string, ok bool)

	// NoHeartbeat reports whether this protocol wants no keepalive traffic
	// at all — neither an application-level ping nor a transport-level
	// one — because the venue tears down idle connections on its own terms
	// (e.g. Binance's WS-API).
	NoHeartbeat() bool

	// BuildLogin returns the login frame for cred, or nil if this protocol
	// has no login step (e.g. Binance's public stream network).
	BuildLogin(cred Credentials) (json.RawMessage, error)

	// BuildSubscribe builds the persistable subscription record for channel
	// against args.
	BuildSubscribe(channel ChannelType, args Args) (StoredSubscription, error)

	// MakeKey computes the same key BuildSubscribe would, without building
	// the frames — used so callers can unsubscribe by channel/args alone.
	MakeKey(channel ChannelType, args Args) string
}

// WsEndpoints exposes a protocol's default connection URLs.
type WsEndpoints interface {
	DefaultPublicURL() string
	DefaultPrivateURL() (string, bool)
}
