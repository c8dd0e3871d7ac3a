// Package subscriber implements the per-strategy-client registry (C5):
// the set of stream names a client is subscribed to, the sink used to push
// data back to it, and the one-shot exchange-request-id to
// client-request-id mapping used to route upstream replies home.
package subscriber

import (
	"encoding/json"
)

// Addr identifies one connected strategy client. Opaque to this package;
// callers typically use the remote socket address or a generated
// connection id.
type Addr string

// Sink delivers a serialized frame to one strategy client connection.
type Sink interface {
	Send(payload []byte) error
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(payload []byte) error

func (f SinkFunc) Send(payload []byte) error { return f(payload) }

// Subscriber tracks one strategy client's subscriptions and owns its
// outbound sink. OnExchangeResponse/OnExchangeError consume the recorded
// upstream-id mapping exactly once per request.
type Subscriber struct {
	sink    Sink
	symbols map[string]struct{}
	ids     map[int64]int64 // upstream (exchange) request id -> client request id
}

func New(sink Sink) *Subscriber {
	return &Subscriber{
		sink:    sink,
		symbols: make(map[string]struct{}),
		ids:     make(map[int64]int64),
	}
}

// OnStrategyClientSubscribe records a pending upstream request id as
// belonging to the given client-side request id, and extends this
// subscriber's symbol set with the normalized stream names it requested.
func (s *Subscriber) OnStrategyClientSubscribe(upstreamID, clientID int64, symbols []string) {
	s.ids[upstreamID] = clientID
	for _, sym := range symbols {
		s.symbols[sym] = struct{}{}
	}
}

// IsSubscribed reports whether this subscriber already holds the given
// exact stream name.
func (s *Subscriber) IsSubscribed(symbol string) bool {
	_, ok := s.symbols[symbol]
	return ok
}

// Symbols returns every stream name this subscriber currently holds. The
// returned slice is a snapshot; mutating it does not affect the subscriber.
func (s *Subscriber) Symbols() []string {
	out := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		out = append(out, sym)
	}
	return out
}

// idEnvelope is the minimal shape every exchange response/error carries:
// an "id" field this subscriber rewrites before forwarding to the client.
type idEnvelope struct {
	ID int64 `json:"id"`
}

// OnExchangeResponse rewrites response's id from the recorded client-side
// id and forwards the re-serialized frame to this subscriber's sink. No-op
// if the upstream id was never recorded (already consumed, or not ours).
func (s *Subscriber) OnExchangeResponse(response json.RawMessage) error {
	return s.reforwardWithClientID(response)
}

// OnExchangeError behaves identically to OnExchangeResponse: the wire shape
// for a success and an error reply differ only in their body, both carry
// the same "id" correlator this package rewrites.
func (s *Subscriber) OnExchangeError(response json.RawMessage) error {
	return s.reforwardWithClientID(response)
}

func (s *Subscriber) reforwardWithClientID(response json.RawMessage) error {
	var env idEnvelope
	if err := json.Unmarshal(response, &env); err != nil {
		return err
	}
	clientID, ok := s.ids[env.ID]
	if !ok {
		return nil
	}
	delete(s.ids, env.ID) // one-shot

	rewritten, err := rewriteID(response, clientID)
	if err != nil {
		return err
	}
	return s.sink.Send(rewritten)
}

// rewriteID replaces the top-level "id" field of a JSON object with id,
// preserving every other field verbatim.
func rewriteID(raw json.RawMessage, id int64) ([]byte, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	rewritten, err := json.Marshal(id)
	if err != nil {
		return nil, err
	}
	obj["id"] = rewritten
	return json.Marshal(obj)
}

// ForwardToStrategyClient sends a raw, already-serialized stream payload
// straight to this subscriber's sink.
func (s *Subscriber) ForwardToStrategyClient(data []byte) error {
	return s.sink.Send(data)
}
