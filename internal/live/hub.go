// Package live pushes the receiver's display to websocket viewers
package live

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shehryarbajwa/camdroid/pkg/models"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type message struct {
	kind int
	data []byte
}

// client holds at most one pending message; newer ones replace it
type client struct {
	conn *websocket.Conn
	send chan message
	done chan struct{}
	once sync.Once
}

func (c *client) push(m message) {
	select {
	case c.send <- m:
		return
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- m:
	default:
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Hub broadcasts frames as binary JPEG messages and placeholders as text.
// It implements display.Renderer.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	current  *message
	lastSeq  uint64
	lastText string
	closed   bool
}

// NewHub creates a hub with no viewers
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the viewer
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan message, 1),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.current != nil {
		c.push(*h.current)
	}
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("✅ Live viewer connected from %s (%d watching)", r.RemoteAddr, count)

	go h.writePump(c)
	h.readPump(c)

	h.remove(c)
	log.Printf("Live viewer %s disconnected", r.RemoteAddr)
}

// readPump discards viewer input and notices when the viewer goes away
func (h *Hub) readPump(c *client) {
	defer c.close()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case m := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(m.kind, m.data); err != nil {
				log.Printf("Failed to write to live viewer: %v", err)
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

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *Hub) broadcast(m message) {
	h.current = &m
	for c := range h.clients {
		c.push(m)
	}
}

// RenderFrame sends the frame's encoded bytes once per sequence number
func (h *Hub) RenderFrame(frame *models.Frame) {
	if frame == nil || len(frame.Encoded) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if frame.Seq == h.lastSeq {
		return
	}
	h.lastSeq = frame.Seq
	h.lastText = ""
	h.broadcast(message{kind: websocket.BinaryMessage, data: frame.Encoded})
}

// RenderPlaceholder sends text when it differs from what viewers last got
func (h *Hub) RenderPlaceholder(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if text == h.lastText {
		return
	}
	h.lastText = text
	h.lastSeq = 0
	h.broadcast(message{kind: websocket.TextMessage, data: []byte(text)})
}

// Viewers returns the number of connected viewers
func (h *Hub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every viewer and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		c.close()
	}
}
