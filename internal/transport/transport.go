// Package transport broadcasts decoded qam.Event frames to websocket
// clients. The connection lifecycle (register, keepalive, close) is
// adapted from m17/relay.go's Relay (which spoke the M17 reflector's
// CONN/PING/PONG/DISC UDP protocol); here the transport is a websocket
// hub and the wire format is JSON, grounded on madpsy-ka9q_ubersdr's
// gorilla/websocket usage (per-connection buffered writer goroutine,
// UUID session identifiers).
package transport

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Frame is the JSON wire message broadcast to every connected client,
// replacing the M17 reflector's binary "M17 "+packet protocol with a
// direct encoding of a qam.Event.
type Frame struct {
	Kind           string `json:"kind"`
	PayloadLength  int    `json:"payloadLength,omitempty"`
	PayloadHex     string `json:"payloadHex,omitempty"`
	CRCReceived    byte   `json:"crcReceived,omitempty"`
	CRCComputed    byte   `json:"crcComputed,omitempty"`
	DecodedError   float64 `json:"decodedError,omitempty"`
	SelectedPhase  int    `json:"selectedPhase,omitempty"`
	PhaseConflict  bool   `json:"phaseConflict,omitempty"`
	DesyncBitcount int    `json:"desyncBitcount,omitempty"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan Frame
}

// Hub tracks connected clients and fans decoded frames out to all of
// them, mirroring Relay's "one handler, N connections implied by the
// reflector" shape but generalized to direct per-client connections
// instead of a single shared UDP socket.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// ClientCount reports how many clients are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket and registers the
// resulting connection with the hub until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ERROR] transport: upgrade failed: %v", err)
		return
	}
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan Frame, sendBuffer),
	}
	h.register(c)
	defer h.unregister(c)

	go c.writeLoop()
	c.readLoop()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	log.Printf("[DEBUG] transport: client %s connected (%d total)", c.id, len(h.clients))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
		log.Printf("[DEBUG] transport: client %s disconnected (%d total)", c.id, len(h.clients))
	}
}

// Broadcast fans out frame to every connected client without blocking;
// a client whose send buffer is full misses this frame but stays
// connected, matching Relay's drop-rather-than-block treatment of a
// slow reflector peer.
func (h *Hub) Broadcast(f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		select {
		case c.send <- f:
		default:
			log.Printf("[DEBUG] transport: client %s send buffer full, dropping frame", c.id)
		}
	}
}

func (c *client) readLoop() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case f, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			b, err := json.Marshal(f)
			if err != nil {
				log.Printf("[ERROR] transport: marshal frame: %v", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (f Frame) String() string {
	return fmt.Sprintf("Frame{kind=%s len=%d}", f.Kind, f.PayloadLength)
}
