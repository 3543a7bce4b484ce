package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// BoardTransitions counts completed state machine transitions
	BoardTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wprov",
			Name:      "board_transitions_total",
			Help:      "Total number of board Wi-Fi state transitions",
		},
		[]string{"from", "to"},
	)

	// BoardState is 1 for the active state and 0 for the others
	BoardState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "wprov",
			Name:      "board_state",
			Help:      "Current board Wi-Fi state (1 = active)",
		},
		[]string{"state"},
	)

	// JoinAttempts counts attempts to join the saved network
	JoinAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wprov",
			Name:      "join_attempts_total",
			Help:      "Total number of client join attempts",
		},
		[]string{"result"},
	)

	// ProvisioningRequests counts credential exchanges on the provisioning port
	ProvisioningRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wprov",
			Name:      "provisioning_requests_total",
			Help:      "Total number of provisioning exchanges",
		},
		[]string{"result"},
	)

	// WPSElements counts WPS information elements seen in scanned frames
	WPSElements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wprov",
			Name:      "wps_ies_total",
			Help:      "Total number of WPS information elements parsed",
		},
		[]string{"password_id"},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry
// This function is idempotent and can be called multiple times safely
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(BoardTransitions)
		prometheus.DefaultRegisterer.Register(BoardState)
		prometheus.DefaultRegisterer.Register(JoinAttempts)
		prometheus.DefaultRegisterer.Register(ProvisioningRequests)
		prometheus.DefaultRegisterer.Register(WPSElements)
	})
}

// SetBoardState marks state as the active one.
func SetBoardState(active string, all ...string) {
	for _, s := range all {
		v := 0.0
		if s == active {
			v = 1
		}
		BoardState.WithLabelValues(s).Set(v)
	}
}
