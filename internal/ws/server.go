// Package ws is the broadcast fabric: one hub, every connected client
// receives every committed mutation as a typed event. Delivery is
// best-effort: closed sockets are dropped and there is no replay buffer.
// Clients full-resync over HTTP on (re)connect; the monotonic sequence
// in each envelope lets them detect missed events.
package ws

import (
	"net/http"
	"sync"
	"time"

	"dinetab-order-services/internal/events"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) writeJSON(timeout time.Duration, value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteJSON(value)
}

type Server struct {
	Logger       *zap.Logger
	WriteTimeout time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}
	seq     uint64
}

func New(logger *zap.Logger, writeTimeout time.Duration) *Server {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Server{
		Logger:       logger,
		WriteTimeout: writeTimeout,
		clients:      make(map[*client]struct{}),
	}
}

type connectAck struct {
	Type        string `json:"type"`
	ClientCount int    `json:"clientCount"`
	Seq         uint64 `json:"seq"`
}

// HandleWS upgrades the connection and parks it in the hub. The ack is a
// liveness signal, not a snapshot; the client fetches full state itself.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	count := len(s.clients)
	seq := s.seq
	s.mu.Unlock()

	if err := c.writeJSON(s.WriteTimeout, connectAck{Type: "connected", ClientCount: count, Seq: seq}); err != nil {
		s.remove(c)
		return
	}

	go s.readLoop(c)
}

// readLoop exists to notice the peer going away; inbound frames carry no
// meaning on this channel.
func (s *Server) readLoop(c *client) {
	defer s.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	_ = c.conn.Close()
}

func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Publish stamps the event with the next sequence number and fans it out.
// A failed write drops that client; nobody else is blocked or retried.
func (s *Server) Publish(t events.Type, data any) events.Envelope {
	s.mu.Lock()
	s.seq++
	env := events.Envelope{Seq: s.seq, Type: t, At: time.Now(), Data: data}
	targets := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		if err := c.writeJSON(s.WriteTimeout, env); err != nil {
			s.Logger.Debug("ws client dropped", zap.Error(err))
			s.remove(c)
		}
	}
	return env
}
