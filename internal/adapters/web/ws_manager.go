package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/lcalzada-xor/wprov/internal/core/domain"
	"github.com/lcalzada-xor/wprov/internal/core/ports"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// Allow same-origin (no Origin header)
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	},
}

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WSManager streams board transitions to WebSocket clients.
type WSManager struct {
	Status  ports.BoardStatus
	Clients map[*websocket.Conn]bool
	updates chan domain.BoardSnapshot
	log     logr.Logger
	mu      sync.Mutex
}

var _ ports.BoardObserver = (*WSManager)(nil)

func NewWSManager(status ports.BoardStatus, log logr.Logger) *WSManager {
	return &WSManager{
		Status:  status,
		Clients: make(map[*websocket.Conn]bool),
		updates: make(chan domain.BoardSnapshot, 16),
		log:     log.WithName("ws"),
	}
}

func (m *WSManager) Start(ctx context.Context) {
	go m.processAndBroadcast(ctx)
}

// OnTransition queues snap for broadcast; it never blocks the board.
func (m *WSManager) OnTransition(snap domain.BoardSnapshot) {
	select {
	case m.updates <- snap:
	default:
		m.log.V(1).Info("Dropping board update, clients too slow")
	}
}

func (m *WSManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Error(err, "Upgrade error")
		return
	}

	m.mu.Lock()
	m.Clients[conn] = true
	m.mu.Unlock()

	m.log.Info("WebSocket connected", "remote", r.RemoteAddr)
	m.send(conn, WSMessage{Type: "board.state", Payload: m.Status.Snapshot()})

	// Clean up on disconnect
	go func() {
		defer conn.Close()
		defer func() {
			m.mu.Lock()
			delete(m.Clients, conn)
			m.mu.Unlock()
			m.log.Info("WebSocket disconnected", "remote", r.RemoteAddr)
		}()
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}

func (m *WSManager) processAndBroadcast(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case snap := <-m.updates:
			m.broadcastMessage(WSMessage{Type: "board.state", Payload: snap})
		}
	}
}

func (m *WSManager) send(conn *websocket.Conn, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		m.log.Error(err, "JSON marshal error")
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		conn.Close()
		delete(m.Clients, conn)
	}
}

func (m *WSManager) broadcastMessage(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		m.log.Error(err, "JSON marshal error")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.Clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(m.Clients, conn)
		}
	}
}

func (m *WSManager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.Clients {
		conn.Close()
		delete(m.Clients, conn)
	}
}
