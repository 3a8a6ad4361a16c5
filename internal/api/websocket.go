package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"autokey/internal/protocol"
)

// The default CheckOrigin rejects cross-origin browser pages and accepts
// clients that send no Origin header.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub handles WebSocket connections and broadcasting
type Hub struct {
	server     *Server
	clients    map[*hubClient]bool
	clientsMu  sync.Mutex
	broadcast  chan protocol.Message
	register   chan *hubClient
	unregister chan *hubClient
	shutdown   chan struct{}
	stopOnce   sync.Once
}

// hubClient represents a connected watcher
type hubClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	ip   string
}

func newHub(s *Server) *Hub {
	return &Hub{
		server:     s,
		clients:    make(map[*hubClient]bool),
		broadcast:  make(chan protocol.Message, 256),
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		shutdown:   make(chan struct{}),
	}
}

func (h *Hub) start() {
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.clientsMu.Unlock()
			log.Info().Str("component", "ws").Str("remote", client.ip).Int("clients", n).Msg("WS: client registered")

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Info().Str("component", "ws").Str("remote", client.ip).Int("clients", len(h.clients)).Msg("WS: client unregistered")
			}
			h.clientsMu.Unlock()

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case <-h.shutdown:
			h.clientsMu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.clientsMu.Unlock()
			return
		}
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() { close(h.shutdown) })
}

func (h *Hub) broadcastMessage(message protocol.Message) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Error().Str("component", "ws").Err(err).Msg("WS: failed to marshal broadcast message")
		return
	}

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- jsonMsg:
		default:
			// Slow client; drop it rather than stall playback.
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// Broadcast queues msg for every client. It never blocks the caller: when
// the queue is full or the hub has stopped, the message is dropped.
func (h *Hub) Broadcast(msg protocol.Message) {
	select {
	case h.broadcast <- msg:
	case <-h.shutdown:
	default:
		log.Warn().Str("component", "ws").Str("type", string(msg.Type)).Msg("WS: broadcast queue full, dropping message")
	}
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Str("component", "ws").Err(err).Msg("WS: failed to upgrade connection")
		return
	}

	client := &hubClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		ip:   r.RemoteAddr,
	}

	select {
	case h.register <- client:
	case <-h.shutdown:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the hub.
func (c *hubClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.shutdown:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Str("component", "ws").Err(err).Msg("WS: read error")
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *hubClient) writePump() {
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
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
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

// handleMessage handles client requests. Watchers may only stop a run;
// starting one goes through POST /api/play.
func (c *hubClient) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Str("component", "ws").Err(err).Msg("WS: invalid message format")
		return
	}

	switch msg.Type {
	case protocol.TypeStop:
		log.Info().Str("component", "ws").Str("remote", c.ip).Msg("WS: stop requested")
		// Stop waits for held inputs to be released; keep the read pump free.
		go c.hub.server.runner.Stop()
	default:
		log.Debug().Str("component", "ws").Str("type", string(msg.Type)).Msg("WS: ignoring message")
	}
}
