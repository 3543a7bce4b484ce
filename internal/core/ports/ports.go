package ports

import (
	"context"

	"github.com/lcalzada-xor/wprov/internal/core/domain"
)

// LinkStatusFunc is invoked by the link driver when the client link goes
// down (false) or comes back (true). It runs on a driver goroutine.
type LinkStatusFunc func(up bool)

// WirelessLink drives the Wi-Fi radio.
// Every operation returns a *domain.LinkError on failure.
type WirelessLink interface {
	// Start initializes the driver and registers the link status callback.
	Start(ctx context.Context, onStatus LinkStatusFunc) error
	// Join adds the profile and joins the network it names.
	Join(ctx context.Context, profile domain.NetworkProfile) error
	// Leave disconnects from the current network.
	Leave(ctx context.Context) error
	// RemoveProfile forgets the network profile added by Join.
	RemoveProfile(ctx context.Context, label string) error
	// StartAP brings up the provisioning access point.
	StartAP(ctx context.Context, ap domain.AccessPointConfig) error
	// StopAP tears the access point down.
	StopAP(ctx context.Context) error
	// IP returns the current address of the selected interface, or
	// "0.0.0.0" when none is assigned yet.
	IP(ctx context.Context, iface domain.Interface) (string, error)
}

// Announcer publishes the provisioning service on the local network.
type Announcer interface {
	Announce(ctx context.Context, port int) error
	Shutdown()
}

// ProvisioningListener accepts credentials while the board is an AP.
type ProvisioningListener interface {
	// Start begins serving in the background.
	Start(ctx context.Context) error
	// Stop closes the listener and waits for the serving goroutine.
	Stop() error
	// Port returns the bound TCP port.
	Port() int
}

// JoinFailureDecider chooses how to recover from a failed join.
type JoinFailureDecider interface {
	DecideJoinFailure(ctx context.Context, creds domain.NetworkCredentials, cause error) (domain.JoinDecision, error)
}

// EventSink receives board events, e.g. the state machine's Post.
type EventSink interface {
	Post(ev domain.BoardEvent) bool
}

// BoardObserver is notified after every completed transition.
// Implementations must not block.
type BoardObserver interface {
	OnTransition(snap domain.BoardSnapshot)
}

// StatusPublisher pushes board status to a message bus once the board is
// online as a client.
type StatusPublisher interface {
	Connect(ctx context.Context) error
	Publish(snap domain.BoardSnapshot) error
	Disconnect()
}

// ProvisioningHandler turns one provisioning request into a reply. When the
// request is accepted the transport writes the reply first and then calls
// Commit.
type ProvisioningHandler interface {
	Handle(ctx context.Context, payload string) (reply string, creds domain.NetworkCredentials, accepted bool)
	Commit(creds domain.NetworkCredentials) bool
}

// BoardStatus exposes the current board snapshot.
type BoardStatus interface {
	Snapshot() domain.BoardSnapshot
}
