package protocol

import "encoding/json"

// StoredSubscription is the persisted record of one active subscription: the
// exact outbound frames needed to (re-)establish and tear it down, keyed for
// replay and lookup. See SPEC_FULL.md §9 "Subscription replay across
// reconnect".
type StoredSubscription struct {
	Key      string
	Local    json.RawMessage // venue-native struct, opaque outside its protocol
	ReqSub   json.RawMessage
	ReqUnsub json.RawMessage
}
