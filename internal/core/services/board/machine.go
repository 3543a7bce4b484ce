package board

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lcalzada-xor/wprov/internal/core/domain"
	"github.com/lcalzada-xor/wprov/internal/core/ports"
	"github.com/lcalzada-xor/wprov/internal/telemetry"
)

// eventBuffer bounds the number of pending link status events.
const eventBuffer = 16

// controlBuffer bounds pending credential and reset requests, which queue
// apart from link status events.
const controlBuffer = 4

var allStates = []string{string(domain.StateClient), string(domain.StateAP)}

// Config holds the board behaviour knobs.
type Config struct {
	// Label keys the saved credentials in the store.
	Label       string
	AccessPoint domain.AccessPointConfig
	// ClientGrace lets in-flight replies drain before leaving the network.
	ClientGrace time.Duration
	// APGrace lets the provisioning reply reach the peer before the AP goes down.
	APGrace time.Duration
	// APPollInterval is the wait between AP address queries.
	APPollInterval time.Duration
	// CleanupTimeout bounds exit cleanup on shutdown.
	CleanupTimeout time.Duration
}

// DefaultConfig mirrors the stock board demo.
func DefaultConfig() Config {
	return Config{
		Label: "wifi",
		AccessPoint: domain.AccessPointConfig{
			SSID:     "my_network",
			Password: "my_password",
			Channel:  1,
		},
		ClientGrace:    time.Second,
		APGrace:        10 * time.Second,
		APPollInterval: 100 * time.Millisecond,
		CleanupTimeout: 5 * time.Second,
	}
}

// Deps are the collaborators driven by the machine. Listener, Announcer and
// Publisher are optional.
type Deps struct {
	Store     ports.CredentialStore
	Link      ports.WirelessLink
	Decider   ports.JoinFailureDecider
	Listener  ports.ProvisioningListener
	Announcer ports.Announcer
	Publisher ports.StatusPublisher
}

// Machine is the board Wi-Fi state machine. All state lives on the
// goroutine running Run; other goroutines talk to it through Post and read
// it through Snapshot.
type Machine struct {
	cfg     Config
	deps    Deps
	log     logr.Logger
	tracer  trace.Tracer
	events  chan domain.BoardEvent
	control chan domain.BoardEvent

	// Owned by the Run goroutine.
	state     domain.BoardWifiState
	creds     domain.NetworkCredentials
	connected bool
	online    bool // status publisher connected

	// Link events stamped before this association are stale.
	associatedAt time.Time

	mu        sync.RWMutex
	snap      domain.BoardSnapshot
	observers []ports.BoardObserver
}

var _ ports.EventSink = (*Machine)(nil)

// NewMachine creates a machine; nothing happens until Run.
func NewMachine(cfg Config, deps Deps, log logr.Logger) *Machine {
	return &Machine{
		cfg:     cfg,
		deps:    deps,
		log:     log.WithName("board"),
		tracer:  telemetry.Tracer("board"),
		events:  make(chan domain.BoardEvent, eventBuffer),
		control: make(chan domain.BoardEvent, controlBuffer),
	}
}

// AddObserver registers o for transition notifications.
func (m *Machine) AddObserver(o ports.BoardObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// Post queues an event for the machine. It never blocks and reports false
// when the queue for ev's kind is full.
func (m *Machine) Post(ev domain.BoardEvent) bool {
	queue := m.control
	if ev.Kind.LinkStatus() {
		queue = m.events
	}
	select {
	case queue <- ev:
		return true
	default:
		m.log.Info("Event dropped, queue full", "kind", ev.Kind, "id", ev.ID)
		return false
	}
}

// Snapshot returns a copy of the current board state.
func (m *Machine) Snapshot() domain.BoardSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Run drives the board until ctx is cancelled (nil) or an unrecoverable
// failure occurs (an error wrapping domain.ErrFatal).
func (m *Machine) Run(ctx context.Context) error {
	if err := m.deps.Link.Start(ctx, m.onLinkStatus); err != nil {
		return domain.Fatal("start wireless link", err)
	}

	target, err := m.initialState(ctx)
	if err != nil {
		return err
	}

	for {
		var next domain.BoardWifiState
		switch target {
		case domain.StateClient:
			next, err = m.runClient(ctx)
		default:
			next, err = m.runAP(ctx)
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			m.log.Info("Board stopped", "state", m.state)
			return nil
		}
		target = next
	}
}

// initialState picks CLIENT when credentials are saved, AP otherwise.
func (m *Machine) initialState(ctx context.Context) (domain.BoardWifiState, error) {
	creds, err := m.deps.Store.Load(ctx, m.cfg.Label)
	switch {
	case errors.Is(err, domain.ErrCredentialsNotFound):
		m.log.Info("No saved credentials")
		return domain.StateAP, nil
	case err != nil:
		return "", domain.Fatal("load credentials", err)
	case !creds.Known():
		return domain.StateAP, nil
	}
	m.creds = creds
	m.log.Info("Loaded saved credentials", "ssid", creds.SSID, "security", creds.Security)
	return domain.StateClient, nil
}

// onLinkStatus runs on a driver goroutine and only posts events.
func (m *Machine) onLinkStatus(up bool) {
	kind := domain.EventLinkLost
	if up {
		kind = domain.EventLinkRestored
	}
	m.Post(domain.NewBoardEvent(kind))
}

// transition records the entry into state and notifies observers.
func (m *Machine) transition(ctx context.Context, state domain.BoardWifiState, transitionID string) {
	from := m.state
	m.state = state
	if from != "" {
		telemetry.BoardTransitions.WithLabelValues(string(from), string(state)).Inc()
	}
	telemetry.SetBoardState(string(state), allStates...)
	m.log.Info("Board state", "from", from, "to", state, "transition", transitionID)
	m.refresh(ctx, transitionID)
}

// refresh rebuilds the snapshot from the owned fields and fans it out.
func (m *Machine) refresh(ctx context.Context, transitionID string) {
	snap := domain.BoardSnapshot{
		State:     m.state,
		SSID:      m.creds.SSID,
		Security:  m.creds.Security,
		Connected: m.connected,
		Since:     time.Now(),
	}
	if m.state == domain.StateAP {
		snap.SSID = m.cfg.AccessPoint.SSID
		snap.Security = ""
	}
	if ip, err := m.currentIP(ctx); err == nil {
		snap.IP = ip
	}

	m.mu.Lock()
	if transitionID == "" {
		transitionID = m.snap.TransitionID
		if m.snap.State == snap.State {
			snap.Since = m.snap.Since
		}
	}
	snap.TransitionID = transitionID
	m.snap = snap
	observers := append([]ports.BoardObserver(nil), m.observers...)
	m.mu.Unlock()

	for _, o := range observers {
		o.OnTransition(snap)
	}
	if m.online && m.deps.Publisher != nil {
		if err := m.deps.Publisher.Publish(snap); err != nil {
			m.log.Error(err, "Status publish failed")
		}
	}
}

func (m *Machine) currentIP(ctx context.Context) (string, error) {
	switch {
	case m.state == domain.StateAP:
		return m.deps.Link.IP(ctx, domain.InterfaceAP)
	case m.connected:
		return m.deps.Link.IP(ctx, domain.InterfaceClient)
	}
	return "", errors.New("no address")
}

// resetCredentials forgets the saved network. Failure is fatal.
func (m *Machine) resetCredentials(ctx context.Context) error {
	if err := m.deps.Store.Reset(ctx, m.cfg.Label); err != nil {
		return domain.Fatal("reset credentials", err)
	}
	m.creds = domain.NetworkCredentials{}
	m.log.Info("Credentials reset")
	return nil
}

// sleep waits d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cleanupContext is used for exit actions once ctx is cancelled.
func (m *Machine) cleanupContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.cfg.CleanupTimeout)
}

func (m *Machine) startSpan(ctx context.Context, name string, ev domain.BoardEvent) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("board.state", string(m.state))}
	if ev.ID != "" {
		attrs = append(attrs,
			attribute.String("board.event.id", ev.ID),
			attribute.String("board.event.kind", string(ev.Kind)))
	}
	return m.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
