package session

import (
	"context"
	"encoding/json"

	"github.com/fd1az/venue-gateway/internal/wire"
)

func (m *Manager) handleFrame(ctx context.Context, raw json.RawMessage) {
	frame := wire.DecodeAccountFrame(raw)

	switch frame.Kind {
	case wire.AccountFrameUserData:
		wire.DispatchUserDataEvent(frame.UserData.Event, m.handler)

	case wire.AccountFrameLogon:
		m.handleLogon(ctx, frame.Logon)

	case wire.AccountFrameSubscribe:
		m.handleSubscribeAck(ctx, frame.Subscribe)

	case wire.AccountFrameSubscriptionList:
		if m.log != nil {
			m.log.Debug(ctx, "user data stream subscription list", "count", len(*frame.SubscriptionList.Result))
		}

	case wire.AccountFrameStatus:
		if m.log != nil {
			m.log.Debug(ctx, "session status/unsubscribe reply", "status", frame.Status.Status)
		}

	default:
		if m.log != nil {
			m.log.Warn(ctx, "unrecognized account frame shape, dropping", "raw", string(raw))
		}
	}
}

func (m *Manager) handleLogon(ctx context.Context, resp *wire.SessionLogonResponse) {
	if resp.OK() {
		m.mu.Lock()
		m.apiKey = resp.Result.APIKey
		m.authorizedSince = resp.Result.AuthorizedSince
		m.serverTime = resp.Result.ServerTime
		m.state = StateAuthenticated
		m.mu.Unlock()

		if err := m.SubscribeUserData(); err != nil && m.log != nil {
			m.log.Warn(ctx, "failed to issue userDataStream.subscribe after login", "error", err.Error())
		}
		return
	}

	reason := "unknown"
	if resp.Error != nil {
		reason = resp.Error.Msg
	}
	m.mu.Lock()
	m.state = StateAuthenticationFailed
	m.authFailReason = reason
	m.mu.Unlock()

	if m.log != nil {
		m.log.Error(ctx, "session.logon failed", "reason", reason)
	}
}

func (m *Manager) handleSubscribeAck(ctx context.Context, resp *wire.UserDataStreamSubscribeResponse) {
	if !resp.OK() {
		if m.log != nil {
			reason := ""
			if resp.Error != nil {
				reason = resp.Error.Msg
			}
			m.log.Warn(ctx, "userDataStream.subscribe failed", "reason", reason)
		}
		return
	}

	if !m.streams.Add(resp.Result.SubscriptionID) {
		if m.log != nil {
			m.log.Warn(ctx, "user data stream subscription limit reached, discarding subscription id",
				"subscription_id", resp.Result.SubscriptionID,
				"active", len(m.streams.Active()),
				"lifetime_count", m.streams.LifetimeCount())
		}
	}
}

// AuthenticatedInfo is the Authenticated{...} variant's payload.
type AuthenticatedInfo struct {
	APIKey          string
	AuthorizedSince int64
	ServerTime      int64
	ActiveStreams   []int64
	LifetimeStreams uint32
}

// Authenticated returns the session's authenticated snapshot, or ok=false
// if the session is not currently in the Authenticated state.
func (m *Manager) Authenticated() (AuthenticatedInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateAuthenticated {
		return AuthenticatedInfo{}, false
	}
	return AuthenticatedInfo{
		APIKey:          m.apiKey,
		AuthorizedSince: m.authorizedSince,
		ServerTime:      m.serverTime,
		ActiveStreams:   m.streams.Active(),
		LifetimeStreams: m.streams.LifetimeCount(),
	}, true
}

// AuthenticationFailureReason returns the reason recorded for an
// AuthenticationFailed transition, if the session is currently in that
// state.
func (m *Manager) AuthenticationFailureReason() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateAuthenticationFailed {
		return "", false
	}
	return m.authFailReason, true
}
