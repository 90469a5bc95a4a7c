package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"equity-sim/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans simulation events out to connected websocket clients. Slow
// clients are dropped rather than allowed to block the broadcast loop.
type Hub struct {
	mu        sync.Mutex
	clients   map[*websocket.Conn]chan events.Event
	broadcast chan events.Event
	logger    zerolog.Logger
}

// NewHub creates an empty hub. Call Run in a goroutine before use.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]chan events.Event),
		broadcast: make(chan events.Event, 256),
		logger:    logger.With().Str("component", "ws_hub").Logger(),
	}
}

// Run pumps broadcast events to every client channel.
func (h *Hub) Run() {
	for event := range h.broadcast {
		h.mu.Lock()
		for conn, ch := range h.clients {
			select {
			case ch <- event:
			default:
				// Client cannot keep up; drop it.
				close(ch)
				delete(h.clients, conn)
				conn.Close()
			}
		}
		h.mu.Unlock()
	}
}

// Broadcast queues an event for all clients, dropping it if the hub
// backlog is full.
func (h *Hub) Broadcast(event events.Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn().Str("type", string(event.Type)).Msg("broadcast backlog full, event dropped")
	}
}

func (h *Hub) register(conn *websocket.Conn) chan events.Event {
	ch := make(chan events.Event, 64)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
	conn.Close()
}

// handleWebSocket upgrades the connection and streams events until the
// client disconnects.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ch := s.hub.register(conn)
	s.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("websocket client connected")

	// Reader goroutine: detect disconnects, discard client frames.
	go func() {
		defer s.hub.unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for event := range ch {
		if err := conn.WriteJSON(event); err != nil {
			s.hub.unregister(conn)
			return
		}
	}
}
