package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"penwheel/internal/sink"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Local visualization tool; allow all origins.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// hub tracks connected observers and fans frames out to them. A client
// that cannot keep up is dropped rather than allowed to backlog.
type hub struct {
	log        zerolog.Logger
	clients    map[*wsClient]bool
	clientsMu  sync.Mutex
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte
	shutdown   chan struct{}
	once       sync.Once
}

// wsClient is one connected observer.
type wsClient struct {
	hub  *hub
	conn *websocket.Conn
	send chan []byte
	ip   string
}

func newHub(log zerolog.Logger) *hub {
	return &hub{
		log:        log,
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, 1),
		shutdown:   make(chan struct{}),
	}
}

func (h *hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.clientsMu.Unlock()
			h.log.Info().Str("ip", client.ip).Int("total", total).
				Msg("api: observer connected")

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.clientsMu.Unlock()
			h.log.Info().Str("ip", client.ip).Int("total", total).
				Msg("api: observer disconnected")

		case message := <-h.broadcast:
			h.clientsMu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow observer: drop it, never block the feed.
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.clientsMu.Unlock()

		case <-h.shutdown:
			h.clientsMu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()
			return
		}
	}
}

func (h *hub) stop() {
	h.once.Do(func() { close(h.shutdown) })
}

// broadcastFrame serializes a frame and hands it to the hub. The
// broadcast channel holds a single slot; when one frame is already
// pending the new one is skipped — observers only need recent state and
// another frame follows within a tick.
func (h *hub) broadcastFrame(frame sink.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.log.Error().Err(err).Msg("api: marshal frame")
		return
	}

	select {
	case h.broadcast <- data:
	default:
		// A frame is already pending; the next tick supersedes this one.
	}
}

func (h *hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("api: websocket upgrade failed")
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 16),
		ip:   r.RemoteAddr,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump discards anything the observer sends; the feed is one-way.
// It exists to notice disconnects and answer pings.
func (c *wsClient) readPump() {
	defer func() {
		// The hub may already be stopped, with nobody left to receive
		// the unregister.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.shutdown:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pushes frames from the hub to the observer.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
