package services

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 512
)

// ReloadMessage is pushed to every browser showing a presentation
type ReloadMessage struct {
	Type    string `json:"type"`
	BuildID string `json:"buildId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Message types
const (
	MessageReload = "reload"
	MessageError  = "error"
)

type reloadClient struct {
	hub  *ReloadHub
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// ReloadHub tracks the websocket connections of open presentations and
// tells them to reload after a successful render
type ReloadHub struct {
	upgrader   websocket.Upgrader
	register   chan *reloadClient
	unregister chan *reloadClient
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*reloadClient]bool
}

// NewReloadHub creates a new reload hub. Run must be called to serve it
func NewReloadHub() *ReloadHub {
	return &ReloadHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		register:   make(chan *reloadClient),
		unregister: make(chan *reloadClient),
		broadcast:  make(chan []byte, 16),
		done:       make(chan struct{}),
		clients:    make(map[*reloadClient]bool),
	}
}

// Run dispatches messages until ctx is done
func (h *ReloadHub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return nil
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				c.close()
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow client
					delete(h.clients, c)
					c.close()
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected browsers
func (h *ReloadHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues msg for every connected browser
func (h *ReloadHub) Publish(msg ReloadMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal reload message: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// Reload tells every browser to reload
func (h *ReloadHub) Reload(buildID string) {
	h.Publish(ReloadMessage{Type: MessageReload, BuildID: buildID})
}

// ServeWS upgrades the request and registers the connection
func (h *ReloadHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade reload connection: %v", err)
		return
	}

	c := &reloadClient{hub: h, conn: conn, send: make(chan []byte, 16)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.write()
	go c.read()
}

func (c *reloadClient) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// read drains the connection so that pongs and close frames are handled
func (c *reloadClient) read() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Warning: reload connection closed: %v", err)
			}
			return
		}
	}
}

func (c *reloadClient) write() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
