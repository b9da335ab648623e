// Package gateway serves the exam over HTTP: REST control endpoints and a
// websocket feed of exam events for displays.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/osce/go/internal/events"
)

// HubConfig holds configuration for websocket connections.
type HubConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
		CheckOrigin: func(r *http.Request) bool {
			// Displays are served from other origins on the exam LAN.
			return true
		},
	}
}

// StateFunc returns the message sent to a display as soon as it connects.
type StateFunc func(ctx context.Context) (any, error)

// Message is what the hub writes for anything that is not an exam event.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// MessageTypeState carries the exam view sent on connect.
const MessageTypeState = "State"

// Hub fans exam events out to every connected display. It is an
// events.Subscriber; slow displays are disconnected rather than allowed to
// hold up the exam.
type Hub struct {
	mu          sync.RWMutex
	connections map[*Connection]bool

	upgrader    websocket.Upgrader
	config      HubConfig
	state       StateFunc
	broadcastCh chan *events.Event

	broadcasts uint64
	dropped    uint64
}

// Connection is one connected display.
type Connection struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan []byte
	Hub         *Hub
	ConnectedAt time.Time
}

var _ events.Subscriber = (*Hub)(nil)

// NewHub creates a hub. state may be nil.
func NewHub(config HubConfig, state StateFunc) *Hub {
	return &Hub{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		state:       state,
		broadcastCh: make(chan *events.Event, 1000),
	}
}

// Run broadcasts queued events until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	log.Info().Msg("Websocket hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Websocket hub shutting down")
			h.closeAll()
			return
		case ev := <-h.broadcastCh:
			h.broadcast(ev)
		}
	}
}

func (h *Hub) HandleEvent(ev *events.Event) {
	select {
	case h.broadcastCh <- ev:
	default:
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
		log.Warn().Str("event_type", string(ev.Type)).Msg("Broadcast channel full, dropping event")
	}
}

// ServeWS upgrades the request and registers the display.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	c := &Connection{
		ID:          uuid.NewString(),
		Conn:        conn,
		Send:        make(chan []byte, h.config.SendBuffer),
		Hub:         h,
		ConnectedAt: time.Now(),
	}

	// Registered before the state is built so no event falls between the two.
	h.register(c)
	if h.state != nil {
		if data, err := h.stateMessage(r.Context()); err != nil {
			log.Warn().Err(err).Str("connection_id", c.ID).Msg("Failed to build initial state")
		} else {
			h.send(c, data)
		}
	}

	go c.writePump()
	go c.readPump()

	log.Info().Str("connection_id", c.ID).Str("remote", r.RemoteAddr).Msg("Display connected")
}

func (h *Hub) stateMessage(ctx context.Context) ([]byte, error) {
	state, err := h.state(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(Message{Type: MessageTypeState, Data: state})
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return data, nil
}

func (h *Hub) register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
	log.Debug().Str("connection_id", c.ID).Int("total_connections", len(h.connections)).Msg("Connection registered")
}

func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[c]; !ok {
		return
	}
	delete(h.connections, c)
	close(c.Send)
	log.Info().Str("connection_id", c.ID).Msg("Display disconnected")
}

// send queues data for c unless c has already been unregistered.
func (h *Hub) send(c *Connection, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connections[c] {
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Warn().Str("connection_id", c.ID).Msg("Connection send buffer full, dropping message")
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.connections))
	for c := range h.connections {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		h.unregister(c)
	}
}

func (h *Hub) broadcast(ev *events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event for broadcast")
		return
	}

	// Sends happen under the lock so unregister cannot close a channel mid-send.
	var slow []*Connection
	h.mu.Lock()
	h.broadcasts++
	for c := range h.connections {
		select {
		case c.Send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		log.Warn().Str("connection_id", c.ID).Msg("Connection send buffer full, closing connection")
		h.unregister(c)
		c.Conn.Close()
	}
}

// Stats describes the hub for the /ws/stats endpoint.
type Stats struct {
	TotalConnections int    `json:"total_connections"`
	Broadcasts       uint64 `json:"broadcasts"`
	Dropped          uint64 `json:"dropped"`
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{
		TotalConnections: len(h.connections),
		Broadcasts:       h.broadcasts,
		Dropped:          h.dropped,
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Hub.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("Failed to write websocket message")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("Failed to send ping")
				return
			}
		}
	}
}

// readPump only exists to process pongs and notice disconnects; displays
// never send commands over the socket.
func (c *Connection) readPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Hub.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("Unexpected websocket close error")
			}
			return
		}
	}
}
