package link

import (
	"context"
	"sync"

	"github.com/lcalzada-xor/wprov/internal/core/domain"
	"github.com/lcalzada-xor/wprov/internal/core/ports"
)

var _ ports.WirelessLink = (*SimLink)(nil)

// Default addresses handed out by the simulated radio.
const (
	SimAPAddress     = "192.168.4.1"
	SimClientAddress = "192.168.1.50"
	NoAddress        = "0.0.0.0"
)

// SimLink is an in-process WirelessLink. It backs the "sim" driver and the
// state machine tests: failures can be queued per operation and link status
// changes triggered by hand.
type SimLink struct {
	mu       sync.Mutex
	onStatus ports.LinkStatusFunc
	failures map[string][]error
	calls    []string

	started  bool
	profiles map[string]domain.NetworkProfile
	joined   *domain.NetworkProfile
	ap       *domain.AccessPointConfig

	// APAddressPolls is how many IP queries on the AP interface report
	// NoAddress before the address appears.
	APAddressPolls int
	pendingPolls   int
}

// NewSimLink returns an idle simulated radio.
func NewSimLink() *SimLink {
	return &SimLink{
		failures: make(map[string][]error),
		profiles: make(map[string]domain.NetworkProfile),
	}
}

// FailNext queues err for the next call of op ("start", "join", "leave",
// "remove_profile", "start_ap", "stop_ap", "ip"). Queued errors are consumed
// in order.
func (s *SimLink) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// TriggerLinkStatus delivers a status change to the registered callback,
// as the driver would from its own goroutine.
func (s *SimLink) TriggerLinkStatus(up bool) {
	s.mu.Lock()
	cb := s.onStatus
	if !up {
		s.joined = nil
	}
	s.mu.Unlock()
	if cb != nil {
		cb(up)
	}
}

// Calls returns the operations performed so far, in order.
func (s *SimLink) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Joined returns the profile of the current client association.
func (s *SimLink) Joined() (domain.NetworkProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joined == nil {
		return domain.NetworkProfile{}, false
	}
	return *s.joined, true
}

// AccessPoint returns the running access point configuration.
func (s *SimLink) AccessPoint() (domain.AccessPointConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ap == nil {
		return domain.AccessPointConfig{}, false
	}
	return *s.ap, true
}

// record logs the call and pops a queued failure. Callers hold s.mu.
func (s *SimLink) record(op string) error {
	s.calls = append(s.calls, op)
	queue := s.failures[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	s.failures[op] = queue[1:]
	return err
}

func (s *SimLink) Start(ctx context.Context, onStatus ports.LinkStatusFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("start"); err != nil {
		return err
	}
	s.started = true
	s.onStatus = onStatus
	return nil
}

func (s *SimLink) Join(ctx context.Context, profile domain.NetworkProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("join"); err != nil {
		return err
	}
	if !s.started {
		return domain.NewLinkError("join", domain.LinkInternal, errNotStarted)
	}
	if s.ap != nil {
		return domain.NewLinkError("join", domain.LinkInternal, errAPActive)
	}
	s.profiles[profile.Label] = profile
	s.joined = &profile
	return nil
}

func (s *SimLink) Leave(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("leave"); err != nil {
		return err
	}
	s.joined = nil
	return nil
}

func (s *SimLink) RemoveProfile(ctx context.Context, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("remove_profile"); err != nil {
		return err
	}
	delete(s.profiles, label)
	return nil
}

func (s *SimLink) StartAP(ctx context.Context, ap domain.AccessPointConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("start_ap"); err != nil {
		return err
	}
	if !s.started {
		return domain.NewLinkError("start_ap", domain.LinkInternal, errNotStarted)
	}
	if s.ap != nil {
		return domain.NewLinkError("start_ap", domain.LinkAlreadyActive, errAPActive)
	}
	s.ap = &ap
	s.pendingPolls = s.APAddressPolls
	return nil
}

func (s *SimLink) StopAP(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("stop_ap"); err != nil {
		return err
	}
	s.ap = nil
	return nil
}

func (s *SimLink) IP(ctx context.Context, iface domain.Interface) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("ip"); err != nil {
		return "", err
	}
	switch iface {
	case domain.InterfaceAP:
		if s.ap == nil {
			return NoAddress, nil
		}
		if s.pendingPolls > 0 {
			s.pendingPolls--
			return NoAddress, nil
		}
		return SimAPAddress, nil
	default:
		if s.joined == nil {
			return NoAddress, nil
		}
		return SimClientAddress, nil
	}
}
