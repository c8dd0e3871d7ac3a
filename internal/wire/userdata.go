package wire

import "encoding/json"

// UserDataKind discriminates the inner "e" field of a user-data stream
// event.
type UserDataKind string

const (
	UserDataExecutionReport         UserDataKind = "executionReport"
	UserDataOrderTradeUpdate        UserDataKind = "ORDER_TRADE_UPDATE"
	UserDataBalanceUpdate           UserDataKind = "balanceUpdate"
	UserDataOutboundAccountPosition UserDataKind = "outboundAccountPosition"
	UserDataUserLiabilityChange     UserDataKind = "userLiabilityChange"
	UserDataMarginLevelStatusChange UserDataKind = "marginLevelStatusChange"
	UserDataListStatus              UserDataKind = "listStatus"
	UserDataListenKeyExpired        UserDataKind = "listenKeyExpired"
)

// UserDataWrapper is the outer envelope Binance sends for user-data stream
// pushes: {"subscriptionId": n, "event": {...}}.
type UserDataWrapper struct {
	SubscriptionID int64           `json:"subscriptionId"`
	Event          json.RawMessage `json:"event"`
}

func eventKind(raw json.RawMessage) UserDataKind {
	var probe struct {
		E string `json:"e"`
	}
	_ = json.Unmarshal(raw, &probe)
	return UserDataKind(probe.E)
}

// BalanceUpdate is Binance spot's "balanceUpdate" user-data event.
type BalanceUpdate struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Asset     string `json:"a"`
	Delta     string `json:"d"`
	ClearTime int64  `json:"T"`
}

// SpotPosition is one entry of OutboundAccountPosition.Balances.
type SpotPosition struct {
	Asset  string `json:"a"`
	Free   string `json:"f"`
	Locked string `json:"l"`
}

// OutboundAccountPosition is Binance spot's "outboundAccountPosition" event.
type OutboundAccountPosition struct {
	EventType string         `json:"e"`
	EventTime int64          `json:"E"`
	LastTime  int64          `json:"u"`
	Balances  []SpotPosition `json:"B"`
}

// UserLiabilityChange is Binance margin's "userLiabilityChange" event.
type UserLiabilityChange struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Asset     string `json:"a"`
	Type      string `json:"t"`
	Principal string `json:"p"`
	Interest  string `json:"i"`
}

// MarginLevelStatusChange is Binance margin's "marginLevelStatusChange"
// event.
type MarginLevelStatusChange struct {
	EventType   string `json:"e"`
	EventTime   int64  `json:"E"`
	MarginLevel string `json:"l"`
	Status      string `json:"s"`
}

// OCODetail is one leg of an OCO order inside ListStatus.
type OCODetail struct {
	Symbol        string `json:"s"`
	OrderID       int64  `json:"i"`
	ClientOrderID string `json:"c"`
}

// ListStatus is Binance spot's "listStatus" (OCO) user-data event.
type ListStatus struct {
	EventType     string      `json:"e"`
	EventTime     int64       `json:"E"`
	Symbol        string      `json:"s"`
	OrderListID   int64       `json:"g"`
	ContingencyOK string      `json:"o"`
	ListStatusOK  string      `json:"l"`
	ListStatus    string      `json:"L"`
	RejectReason  string      `json:"r"`
	ListClientID  string      `json:"C"`
	TxTime        int64       `json:"T"`
	Orders        []OCODetail `json:"O"`
}

// ListenKeyExpired is the spot/futures "listenKeyExpired" push sent when the
// current listen key has been invalidated server-side.
type ListenKeyExpired struct {
	EventType string `json:"e"`
	EventTime string `json:"E"`
	ListenKey string `json:"listenKey"`
}

// UserDataHandler receives decoded user-data events; each method has a
// default no-op/logging implementation so callers only override what they
// act on (see DefaultUserDataHandler).
type UserDataHandler interface {
	OnOrder(Order)
	OnBalanceUpdate(BalanceUpdate)
	OnOutboundAccountPosition(OutboundAccountPosition)
	OnUserLiabilityChange(UserLiabilityChange)
	OnMarginLevelStatusChange(MarginLevelStatusChange)
	OnListStatus(ListStatus)
	OnListenKeyExpired(ListenKeyExpired)
	OnUnknown(kind UserDataKind, raw json.RawMessage)
}

// DispatchUserDataEvent decodes the inner event payload of a UserDataWrapper
// by its "e" marker field and invokes the matching handler method. Unknown
// or malformed shapes fall through to OnUnknown and are never re-raised.
func DispatchUserDataEvent(raw json.RawMessage, h UserDataHandler) {
	kind := eventKind(raw)
	switch kind {
	case UserDataExecutionReport:
		var r ExecutionReport
		if err := json.Unmarshal(raw, &r); err == nil {
			h.OnOrder(r.ToOrder())
			return
		}
	case UserDataOrderTradeUpdate:
		var u OrderUpdate
		if err := json.Unmarshal(raw, &u); err == nil {
			h.OnOrder(u.ToOrder())
			return
		}
	case UserDataBalanceUpdate:
		var b BalanceUpdate
		if err := json.Unmarshal(raw, &b); err == nil {
			h.OnBalanceUpdate(b)
			return
		}
	case UserDataOutboundAccountPosition:
		var p OutboundAccountPosition
		if err := json.Unmarshal(raw, &p); err == nil {
			h.OnOutboundAccountPosition(p)
			return
		}
	case UserDataUserLiabilityChange:
		var u UserLiabilityChange
		if err := json.Unmarshal(raw, &u); err == nil {
			h.OnUserLiabilityChange(u)
			return
		}
	case UserDataMarginLevelStatusChange:
		var m MarginLevelStatusChange
		if err := json.Unmarshal(raw, &m); err == nil {
			h.OnMarginLevelStatusChange(m)
			return
		}
	case UserDataListStatus:
		var l ListStatus
		if err := json.Unmarshal(raw, &l); err == nil {
			h.OnListStatus(l)
			return
		}
	case UserDataListenKeyExpired:
		var e ListenKeyExpired
		if err := json.Unmarshal(raw, &e); err == nil {
			h.OnListenKeyExpired(e)
			return
		}
	}
	h.OnUnknown(kind, raw)
}

// DefaultUserDataHandler logs every event via a caller-supplied sink and can
// be embedded to pick up only the methods a caller cares to override.
type DefaultUserDataHandler struct {
	Log func(kind UserDataKind, raw json.RawMessage)
}

func (d DefaultUserDataHandler) OnOrder(o Order) {
	d.logf("executionReport", o)
}
func (d DefaultUserDataHandler) OnBalanceUpdate(b BalanceUpdate) {
	d.logf(UserDataBalanceUpdate, b)
}
func (d DefaultUserDataHandler) OnOutboundAccountPosition(p OutboundAccountPosition) {
	d.logf(UserDataOutboundAccountPosition, p)
}
func (d DefaultUserDataHandler) OnUserLiabilityChange(u UserLiabilityChange) {
	d.logf(UserDataUserLiabilityChange, u)
}
func (d DefaultUserDataHandler) OnMarginLevelStatusChange(m MarginLevelStatusChange) {
	d.logf(UserDataMarginLevelStatusChange, m)
}
func (d DefaultUserDataHandler) OnListStatus(l ListStatus) {
	d.logf(UserDataListStatus, l)
}
func (d DefaultUserDataHandler) OnListenKeyExpired(e ListenKeyExpired) {
	d.logf(UserDataListenKeyExpired, e)
}
func (d DefaultUserDataHandler) OnUnknown(kind UserDataKind, raw json.RawMessage) {
	d.logf(kind, raw)
}

func (d DefaultUserDataHandler) logf(kind any, payload any) {
	if d.Log == nil {
		return
	}
	b, _ := json.Marshal(payload)
	k, _ := kind.(UserDataKind)
	d.Log(k, b)
}
