package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/go-logr/logr"
	"github.com/grandcat/zeroconf"

	"github.com/lcalzada-xor/wprov/internal/core/ports"
)

var _ ports.Announcer = (*MDNSAnnouncer)(nil)

// Defaults of the provisioning service announcement.
const (
	DefaultInstance = "low_level_microcontroller"
	DefaultService  = "_provision._tcp"
	DefaultDomain   = "local."
)

type server interface {
	Shutdown()
}

// registerService allows mocking zeroconf registration in tests
var registerService = func(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (server, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// MDNSAnnouncer publishes the provisioning port over DNS-SD.
type MDNSAnnouncer struct {
	instance string
	service  string
	domain   string
	iface    string
	log      logr.Logger

	mu     sync.Mutex
	server server
}

// NewMDNSAnnouncer returns an announcer. iface restricts the announcement to
// one interface; empty means all multicast interfaces.
func NewMDNSAnnouncer(instance, service, iface string, log logr.Logger) *MDNSAnnouncer {
	if instance == "" {
		instance = DefaultInstance
	}
	if service == "" {
		service = DefaultService
	}
	return &MDNSAnnouncer{
		instance: instance,
		service:  service,
		domain:   DefaultDomain,
		iface:    iface,
		log:      log.WithName("mdns"),
	}
}

// Announce registers the service on port, replacing a previous announcement.
func (a *MDNSAnnouncer) Announce(ctx context.Context, port int) error {
	var ifaces []net.Interface
	if a.iface != "" {
		iface, err := net.InterfaceByName(a.iface)
		if err != nil {
			return fmt.Errorf("mdns interface %s: %w", a.iface, err)
		}
		ifaces = []net.Interface{*iface}
	}

	txt := []string{"proto=ssid,password", "version=1"}
	srv, err := registerService(a.instance, a.service, a.domain, port, txt, ifaces)
	if err != nil {
		return fmt.Errorf("mdns register %s.%s: %w", a.instance, a.service, err)
	}

	a.mu.Lock()
	prev := a.server
	a.server = srv
	a.mu.Unlock()
	if prev != nil {
		prev.Shutdown()
	}

	a.log.Info("MDNS service announced", "instance", a.instance, "service", a.service, "port", port)
	return nil
}

// Shutdown withdraws the announcement.
func (a *MDNSAnnouncer) Shutdown() {
	a.mu.Lock()
	srv := a.server
	a.server = nil
	a.mu.Unlock()
	if srv != nil {
		srv.Shutdown()
		a.log.Info("MDNS service withdrawn", "instance", a.instance)
	}
}
