package board

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lcalzada-xor/wprov/internal/core/domain"
)

// runAP brings up the provisioning access point and serves events until the
// next state is known.
func (m *Machine) runAP(ctx context.Context) (domain.BoardWifiState, error) {
	m.connected = false
	m.transition(ctx, domain.StateAP, uuid.NewString())

	if err := m.enterAP(ctx); err != nil {
		return "", err
	}
	m.refresh(ctx, "")

	for {
		select {
		case <-ctx.Done():
			cctx, cancel := m.cleanupContext()
			if err := m.exitAP(cctx, 0); err != nil {
				m.log.Error(err, "Access point cleanup on shutdown failed")
			}
			cancel()
			return "", nil
		case ev := <-m.control:
			next, done, err := m.handleAPEvent(ctx, ev)
			if err != nil || done {
				return next, err
			}
		case ev := <-m.events:
			next, done, err := m.handleAPEvent(ctx, ev)
			if err != nil || done {
				return next, err
			}
		}
	}
}

// enterAP starts the access point, waits for its address, then opens the
// provisioning listener and announces it.
func (m *Machine) enterAP(ctx context.Context) error {
	ap := m.cfg.AccessPoint
	m.log.Info("Starting Access Point", "ssid", ap.SSID, "channel", ap.Channel)
	if err := m.deps.Link.StartAP(ctx, ap); err != nil {
		return domain.Fatal("start access point", err)
	}

	ip, err := m.waitAPAddress(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return domain.Fatal("access point address", err)
	}
	m.log.Info("Access Point up", "ssid", ap.SSID, "ip", ip)

	l := m.deps.Listener
	if l == nil {
		return nil
	}
	if err := l.Start(ctx); err != nil {
		return domain.Fatal("start provisioning listener", err)
	}
	m.log.Info("Waiting for credentials", "ip", ip, "port", l.Port())

	if a := m.deps.Announcer; a != nil {
		if err := a.Announce(ctx, l.Port()); err != nil {
			m.log.Error(err, "mDNS announcement failed")
		}
	}
	return nil
}

// waitAPAddress polls until the AP interface has an address.
func (m *Machine) waitAPAddress(ctx context.Context) (string, error) {
	for {
		ip, err := m.deps.Link.IP(ctx, domain.InterfaceAP)
		if err != nil {
			return "", err
		}
		if ip != "" && ip != "0.0.0.0" {
			return ip, nil
		}
		if err := sleep(ctx, m.cfg.APPollInterval); err != nil {
			return "", err
		}
	}
}

// handleAPEvent applies ev in AP. done reports that the AP was torn down
// and next is the state to enter.
func (m *Machine) handleAPEvent(ctx context.Context, ev domain.BoardEvent) (next domain.BoardWifiState, done bool, err error) {
	ctx, span := m.startSpan(ctx, "board.ap_event", ev)
	defer span.End()

	switch ev.Kind {
	case domain.EventCredentialsReceived:
		m.log.Info("New credentials received", "ssid", ev.Credentials.SSID)
		if err := m.exitAP(ctx, m.cfg.APGrace); err != nil {
			return "", true, err
		}
		m.creds = ev.Credentials
		return domain.StateClient, true, nil

	case domain.EventOperatorReset:
		if err := m.resetCredentials(ctx); err != nil {
			return "", true, err
		}
		return domain.StateAP, true, m.exitAP(ctx, m.cfg.APGrace)

	case domain.EventLinkLost, domain.EventLinkRestored:
		m.log.V(1).Info("Link event ignored in AP mode", "kind", ev.Kind)
		return "", false, nil
	}

	m.log.Info("Ignoring event", "kind", ev.Kind, "id", ev.ID)
	return "", false, nil
}

// exitAP closes the provisioning channel and stops the access point after
// grace.
func (m *Machine) exitAP(ctx context.Context, grace time.Duration) error {
	if sleep(ctx, grace) != nil {
		var cancel context.CancelFunc
		ctx, cancel = m.cleanupContext()
		defer cancel()
	}

	if l := m.deps.Listener; l != nil {
		if err := l.Stop(); err != nil {
			m.log.Error(err, "Stopping provisioning listener")
		}
	}
	if a := m.deps.Announcer; a != nil {
		a.Shutdown()
	}

	m.log.Info("Stopping Access Point", "ssid", m.cfg.AccessPoint.SSID)
	if err := m.deps.Link.StopAP(ctx); err != nil {
		return domain.Fatal("stop access point", err)
	}
	return nil
}
