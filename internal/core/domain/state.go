package domain

import (
	"time"

	"github.com/google/uuid"
)

// BoardWifiState is the role the Wi-Fi radio currently plays.
type BoardWifiState string

const (
	StateClient BoardWifiState = "CLIENT"
	StateAP     BoardWifiState = "AP"
)

// EventKind names the external inputs of the board state machine.
type EventKind string

const (
	EventLinkLost            EventKind = "link_lost"
	EventLinkRestored        EventKind = "link_restored"
	EventCredentialsReceived EventKind = "credentials_received"
	EventOperatorReset       EventKind = "operator_reset"
)

// LinkStatus reports whether k is a radio status change rather than a
// request from the operator or a provisioning peer.
func (k EventKind) LinkStatus() bool {
	return k == EventLinkLost || k == EventLinkRestored
}

// BoardEvent asks the state machine to reconsider its state.
type BoardEvent struct {
	ID          string
	Kind        EventKind
	Credentials NetworkCredentials // only for EventCredentialsReceived
	At          time.Time
}

// NewBoardEvent stamps a new event with an id and the current time.
func NewBoardEvent(kind EventKind) BoardEvent {
	return BoardEvent{
		ID:   uuid.New().String(),
		Kind: kind,
		At:   time.Now(),
	}
}

// CredentialsEvent builds an EventCredentialsReceived for creds.
func CredentialsEvent(creds NetworkCredentials) BoardEvent {
	ev := NewBoardEvent(EventCredentialsReceived)
	ev.Credentials = creds
	return ev
}

// BoardSnapshot is a read-only copy of the board state variables.
type BoardSnapshot struct {
	State        BoardWifiState `json:"state"`
	SSID         string         `json:"ssid"`
	Security     Security       `json:"security"`
	Connected    bool           `json:"connected"`
	IP           string         `json:"ip,omitempty"`
	TransitionID string         `json:"transition_id,omitempty"`
	Since        time.Time      `json:"since"`
}

// JoinDecision is the operator's answer to a failed join.
type JoinDecision int

const (
	DecisionRetry JoinDecision = iota
	DecisionReset
)

func (d JoinDecision) String() string {
	if d == DecisionReset {
		return "reset"
	}
	return "retry"
}

// ParseJoinDecision maps a console character or config word to a decision.
func ParseJoinDecision(s string) (JoinDecision, bool) {
	switch s {
	case "r", "R", "reset":
		return DecisionReset, true
	case "a", "A", "retry":
		return DecisionRetry, true
	}
	return DecisionRetry, false
}

// Interface selects which radio interface an address is requested for.
type Interface int

const (
	InterfaceAP Interface = iota
	InterfaceClient
)
