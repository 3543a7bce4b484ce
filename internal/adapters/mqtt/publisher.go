package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-logr/logr"

	"github.com/lcalzada-xor/wprov/internal/core/domain"
	"github.com/lcalzada-xor/wprov/internal/core/ports"
)

var _ ports.StatusPublisher = (*Publisher)(nil)

const (
	qosAtLeastOnce = 1
	publishTimeout = 5 * time.Second
	offlinePayload = `{"state":"OFFLINE","connected":false}`
)

var errNotConnected = errors.New("mqtt client not connected")

// Publisher reports board status as a retained message on <topic>/status.
type Publisher struct {
	broker   string
	topic    string
	clientID string
	log      logr.Logger

	mu     sync.Mutex
	client paho.Client
}

// NewPublisher returns a publisher for broker (e.g. "tcp://host:1883").
// An empty clientID defaults to wprov-<hostname>.
func NewPublisher(broker, topic, clientID string, log logr.Logger) *Publisher {
	if clientID == "" {
		host, _ := os.Hostname()
		clientID = "wprov-" + host
	}
	return &Publisher{
		broker:   broker,
		topic:    topic,
		clientID: clientID,
		log:      log.WithName("mqtt"),
	}
}

// StatusTopic is where snapshots are published.
func (p *Publisher) StatusTopic() string {
	return p.topic + "/status"
}

// Connect dials the broker, giving up when ctx ends.
func (p *Publisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil && p.client.IsConnected() {
		return nil
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(p.broker)
	opts.SetClientID(p.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetWill(p.StatusTopic(), offlinePayload, qosAtLeastOnce, true)
	client := paho.NewClient(opts)

	p.log.Info("Connecting to MQTT broker", "broker", p.broker, "client_id", p.clientID)
	token := client.Connect()
	for !token.WaitTimeout(500 * time.Millisecond) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("mqtt connect %s: %w", p.broker, err)
		}
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", p.broker, err)
	}

	p.client = client
	p.log.Info("MQTT client connected", "broker", p.broker)
	return nil
}

// Publish sends snap as JSON, retained.
func (p *Publisher) Publish(snap domain.BoardSnapshot) error {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client == nil || !client.IsConnected() {
		return errNotConnected
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	token := client.Publish(p.StatusTopic(), qosAtLeastOnce, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish %s: timeout", p.StatusTopic())
	}
	return token.Error()
}

// Disconnect publishes the offline status and closes the session.
func (p *Publisher) Disconnect() {
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.mu.Unlock()
	if client == nil {
		return
	}
	if client.IsConnected() {
		client.Publish(p.StatusTopic(), qosAtLeastOnce, true, offlinePayload).WaitTimeout(publishTimeout)
		client.Disconnect(250 /* milliseconds */)
	}
	p.log.Info("MQTT client disconnected", "broker", p.broker)
}
