package board

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"github.com/lcalzada-xor/wprov/internal/core/domain"
	"github.com/lcalzada-xor/wprov/internal/telemetry"
)

// runClient joins the saved network and serves events until the next
// state is known.
func (m *Machine) runClient(ctx context.Context) (domain.BoardWifiState, error) {
	m.transition(ctx, domain.StateClient, uuid.NewString())

	joined, err := m.enterClient(ctx)
	if err != nil || !joined {
		return domain.StateAP, err
	}
	m.refresh(ctx, "")

	for {
		select {
		case <-ctx.Done():
			cctx, cancel := m.cleanupContext()
			if err := m.exitClient(cctx, 0); err != nil {
				m.log.Error(err, "Client cleanup on shutdown failed")
			}
			cancel()
			return "", nil
		case ev := <-m.control:
			next, done, err := m.handleClientEvent(ctx, ev)
			if err != nil || done {
				return next, err
			}
		case ev := <-m.events:
			next, done, err := m.handleClientEvent(ctx, ev)
			if err != nil || done {
				return next, err
			}
		}
	}
}

// enterClient joins the network named by the active credentials. It
// returns false when the operator chose to reset or ctx ended.
func (m *Machine) enterClient(ctx context.Context) (bool, error) {
	if m.connected {
		m.log.Info("Already connected", "ssid", m.creds.SSID)
		return true, nil
	}

	profile := domain.NewNetworkProfile(m.cfg.Label, m.creds)
	for {
		m.log.Info("Connecting to Wi-Fi", "ssid", profile.SSID, "security", profile.Security)
		err := m.join(ctx, profile)
		if domain.IsLinkKind(err, domain.LinkAlreadyActive) {
			m.log.Info("Profile already active", "ssid", profile.SSID)
			err = nil
		}
		if err == nil {
			m.connected = true
			m.associatedAt = time.Now()
			m.log.Info("Connected to Wi-Fi", "ssid", profile.SSID)
			m.goOnline(ctx)
			return true, nil
		}
		if ctx.Err() != nil {
			return false, nil
		}
		m.log.Error(err, "Failed to connect to Wi-Fi", "ssid", profile.SSID)

		decision, derr := m.deps.Decider.DecideJoinFailure(ctx, m.creds, err)
		if derr != nil {
			if ctx.Err() != nil {
				return false, nil
			}
			return false, domain.Fatal("join failure decision", derr)
		}
		m.log.Info("Join failure handled", "decision", decision)

		if decision == domain.DecisionReset {
			// Join may have left a half configured profile behind.
			if err := m.deps.Link.RemoveProfile(ctx, profile.Label); err != nil {
				m.log.V(1).Info("Profile removal after failed join", "error", err.Error())
			}
			return false, m.resetCredentials(ctx)
		}
	}
}

func (m *Machine) join(ctx context.Context, profile domain.NetworkProfile) error {
	ctx, span := m.startSpan(ctx, "board.join", domain.BoardEvent{})
	defer span.End()

	err := m.deps.Link.Join(ctx, profile)
	result := "ok"
	if err != nil {
		result = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	telemetry.JoinAttempts.WithLabelValues(result).Inc()
	return err
}

// handleClientEvent applies ev in CLIENT. done reports that the client
// state was exited and next is the state to enter.
func (m *Machine) handleClientEvent(ctx context.Context, ev domain.BoardEvent) (next domain.BoardWifiState, done bool, err error) {
	ctx, span := m.startSpan(ctx, "board.client_event", ev)
	defer span.End()

	switch ev.Kind {
	case domain.EventLinkRestored:
		if !m.connected {
			m.connected = true
			m.log.Info("Link restored", "ssid", m.creds.SSID)
			m.refresh(ctx, "")
		}
		return "", false, nil

	case domain.EventLinkLost:
		if ev.At.Before(m.associatedAt) {
			m.log.V(1).Info("Stale link event", "id", ev.ID)
			return "", false, nil
		}
		m.log.Info("Link lost", "ssid", m.creds.SSID)
		m.connected = false
		m.refresh(ctx, "")
		return domain.StateClient, true, m.exitClient(ctx, m.cfg.ClientGrace)

	case domain.EventCredentialsReceived:
		m.log.Info("New credentials received", "ssid", ev.Credentials.SSID)
		if err := m.exitClient(ctx, m.cfg.ClientGrace); err != nil {
			return "", true, err
		}
		m.creds = ev.Credentials
		return domain.StateClient, true, nil

	case domain.EventOperatorReset:
		if err := m.resetCredentials(ctx); err != nil {
			return "", true, err
		}
		return domain.StateAP, true, m.exitClient(ctx, m.cfg.ClientGrace)
	}

	m.log.Info("Ignoring event", "kind", ev.Kind, "id", ev.ID)
	return "", false, nil
}

// exitClient leaves the network and removes its profile after grace.
func (m *Machine) exitClient(ctx context.Context, grace time.Duration) error {
	if sleep(ctx, grace) != nil {
		var cancel context.CancelFunc
		ctx, cancel = m.cleanupContext()
		defer cancel()
	}
	m.goOffline()

	m.log.Info("Leaving Wi-Fi", "ssid", m.creds.SSID)
	if err := m.deps.Link.Leave(ctx); err != nil {
		return domain.Fatal("leave network", err)
	}
	if err := m.deps.Link.RemoveProfile(ctx, m.cfg.Label); err != nil {
		return domain.Fatal("remove network profile", err)
	}
	m.connected = false
	return nil
}

// goOnline connects the status publisher once the board has joined.
func (m *Machine) goOnline(ctx context.Context) {
	p := m.deps.Publisher
	if p == nil || m.online {
		return
	}
	if err := p.Connect(ctx); err != nil {
		m.log.Error(err, "Status publisher unavailable")
		return
	}
	m.online = true
}

func (m *Machine) goOffline() {
	if !m.online {
		return
	}
	m.deps.Publisher.Disconnect()
	m.online = false
}
