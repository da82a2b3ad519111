package session

import (
	"context"
	"strings"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/log"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/whatsapp"
)

// CloseClass buckets a connection-close signal into the supervisor's three
// reactions.
type CloseClass int

const (
	// CloseBenign closures are expected during pairing-code flows; nothing
	// happens and the pairing ticket runs its course.
	CloseBenign CloseClass = iota
	// CloseTerminal means authentication is permanently invalidated; the
	// number must be re-paired from scratch.
	CloseTerminal
	// CloseUnexpected triggers the bounded reconnect policy.
	CloseUnexpected
)

// Classify maps a close status code and message onto a supervisor reaction.
func Classify(code int, message string) CloseClass {
	switch code {
	case 401, 403:
		return CloseTerminal
	case 408:
		return CloseBenign
	}
	lower := strings.ToLower(message)
	if strings.Contains(lower, "logged out") || strings.Contains(lower, "unlinked") {
		return CloseTerminal
	}
	if strings.Contains(lower, "qr refs attempts ended") || strings.Contains(lower, "pairing timed out") {
		return CloseBenign
	}
	return CloseUnexpected
}

// eventHandler is the per-handle supervisor plus the forwarding edge into the
// dispatch gateway. One instance per handle, revoked with it.
func (m *Manager) eventHandler(handle *Handle) func(interface{}) {
	return func(rawEvt interface{}) {
		switch evt := rawEvt.(type) {
		case *events.PairSuccess:
			m.tickets.Delete(handle.Number)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := m.store.SaveDeviceJID(ctx, handle.Number, evt.ID.String()); err != nil {
				log.Session(handle.Number, "PairSuccess").WithError(err).Warn("Failed to persist device identity")
			}
			cancel()
			log.Session(handle.Number, "PairSuccess").
				WithField("device", whatsapp.MaskJID(evt.ID.String())).
				Info("Device linked")

		case *events.PairError:
			// Expected while a pairing window lapses; ticket expiry handles it.
			log.Session(handle.Number, "PairError").WithError(evt.Error).Warn("Pairing attempt failed")

		case *events.Connected:
			m.onConnected(handle)

		case *events.LoggedOut:
			log.Session(handle.Number, "LoggedOut").
				WithField("reason", int(evt.Reason)).
				Warn("Terminal unlink received")
			m.handleTerminal(handle)

		case *events.StreamReplaced:
			// Another process owns the session now; drop without touching
			// credentials so that process keeps working.
			log.Session(handle.Number, "StreamReplaced").Warn("Session taken over elsewhere, detaching")
			m.registry.Remove(handle.Number, handle)
			handle.teardown()

		case *events.TemporaryBan:
			log.Session(handle.Number, "TemporaryBan").
				WithField("code", int(evt.Code)).
				WithField("expire", evt.Expire.String()).
				Warn("Number temporarily banned")

		case *events.KeepAliveTimeout:
			log.Session(handle.Number, "KeepAlive").Debug("Keepalive timeout, transport will recover")

		case *events.ConnectFailure:
			switch Classify(int(evt.Reason), evt.Message) {
			case CloseTerminal:
				log.Session(handle.Number, "ConnectFailure").
					WithField("reason", int(evt.Reason)).
					Warn("Terminal connect failure")
				m.handleTerminal(handle)
			case CloseBenign:
				log.Session(handle.Number, "ConnectFailure").
					WithField("reason", int(evt.Reason)).
					Debug("Benign connect failure during pairing window")
			default:
				log.Session(handle.Number, "ConnectFailure").
					WithField("reason", int(evt.Reason)).
					WithField("message", evt.Message).
					Error("Unexpected connect failure")
				m.scheduleRetry(handle)
			}

		case *events.Disconnected:
			if handle.closed.Load() {
				return
			}
			log.Session(handle.Number, "Disconnected").Warn("Socket closed unexpectedly")
			m.scheduleRetry(handle)

		default:
			if m.sink != nil {
				m.sink.HandleEvent(handle, rawEvt)
			}
		}
	}
}

// onConnected resets the failure budget and runs the first-connection side
// effects exactly once per pairing.
func (m *Manager) onConnected(handle *Handle) {
	handle.retries.Store(0)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if handle.Client.Store.ID != nil {
		if err := m.store.SaveDeviceJID(ctx, handle.Number, handle.Client.Store.ID.String()); err != nil {
			log.Session(handle.Number, "Connected").WithError(err).Warn("Failed to mark session active")
		}
	} else if err := m.store.TouchConnected(ctx, handle.Number); err != nil {
		log.Session(handle.Number, "Connected").WithError(err).Warn("Failed to touch session")
	}

	log.Session(handle.Number, "Connected").Info("Connection open")

	if handle.fresh.CompareAndSwap(true, false) {
		go m.firstConnectionActions(handle)
	}
}

// firstConnectionActions runs the configured auto-follow and auto-join side
// actions and greets the freshly paired number in its own chat.
func (m *Manager) firstConnectionActions(handle *Handle) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for _, channel := range m.cfg.AutoFollowChannels {
		if err := whatsapp.FollowNewsletter(ctx, handle.Client, whatsapp.ComposeJID(channel)); err != nil {
			log.Session(handle.Number, "AutoFollow").WithError(err).Warn("Failed to follow channel " + channel)
		}
	}
	for _, link := range m.cfg.AutoJoinGroups {
		if _, err := whatsapp.JoinGroupWithLink(ctx, handle.Client, link); err != nil {
			log.Session(handle.Number, "AutoJoin").WithError(err).Warn("Failed to join group")
		}
	}

	if m.cfg.ConnectedMessage != "" {
		selfJID := whatsapp.ComposeJID(handle.Number)
		if _, err := whatsapp.SendText(ctx, handle.Client, selfJID, m.cfg.ConnectedMessage); err != nil {
			log.Session(handle.Number, "Connected").WithError(err).Warn("Failed to send welcome message")
		}
	}
}

// handleTerminal performs the full terminal-unlink teardown: registry entry
// removed, credentials deleted, no retry scheduled. The retry counter is
// never consulted again because the handle is closed.
func (m *Manager) handleTerminal(handle *Handle) {
	m.registry.Remove(handle.Number, handle)
	handle.teardown()
	m.tickets.Delete(handle.Number)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := whatsapp.DeleteDeviceForNumber(ctx, m.container, handle.Number); err != nil {
		log.Session(handle.Number, "Teardown").WithError(err).Warn("Failed to delete device credentials")
	}
	if err := m.store.DeleteSession(ctx, handle.Number); err != nil {
		log.Session(handle.Number, "Teardown").WithError(err).Warn("Failed to delete session row")
	}
}

// scheduleRetry applies the bounded reconnect policy. The attempt count rides
// along to the replacement handle so one failure episode never exceeds the
// budget; past it, the number is left for the reconciliation loop.
func (m *Manager) scheduleRetry(handle *Handle) {
	attempt := handle.retries.Add(1)

	m.registry.Remove(handle.Number, handle)
	handle.teardown()

	if int(attempt) > m.cfg.MaxRetries {
		log.Session(handle.Number, "Reconnect").
			WithField("attempts", attempt-1).
			Warn("Retry budget exhausted, leaving number for reconciliation")
		return
	}

	log.Session(handle.Number, "Reconnect").
		WithField("attempt", attempt).
		WithField("delay", m.cfg.RetryDelay.String()).
		Info("Scheduling reconnect")

	number := handle.Number
	go func() {
		time.Sleep(m.cfg.RetryDelay)
		if !m.tryLock(number) {
			return
		}
		defer m.unlock(number)
		if err := m.connect(context.Background(), number, nil, attempt); err != nil {
			log.Session(number, "Reconnect").WithError(err).Error("Reconnect attempt failed")
		}
	}()
}
