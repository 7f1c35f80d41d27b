package relaytest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/tarkovremote/go/internal/remote/protocol"
	"github.com/rs/zerolog/log"
)

// Config holds settings for the in-process relay
type Config struct {
	WriteTimeout   time.Duration
	PingInterval   time.Duration // Zero disables automatic pings
	MaxMessageSize int64
	SendBufferSize int
}

func DefaultConfig() Config {
	return Config{
		WriteTimeout:   10 * time.Second,
		PingInterval:   40 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBufferSize: 256,
	}
}

// Relay is a minimal relay honoring the remote-control wire protocol: clients announce
// their session with a connect frame, commands are forwarded to every connection
// announced under the command's session id, and every connection is pinged periodically.
// It is meant for tests and local development.
type Relay struct {
	config   Config
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	conns    map[*relayConn]bool
	sessions map[string]map[*relayConn]bool

	pongs     atomic.Int64
	forwarded atomic.Int64
}

type relayConn struct {
	id        string
	sessionID string // Guarded by Relay.mu
	ws        *websocket.Conn
	send      chan []byte
	relay     *Relay
}

func New(config Config) *Relay {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = DefaultConfig().SendBufferSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}
	return &Relay{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		conns:    make(map[*relayConn]bool),
		sessions: make(map[string]map[*relayConn]bool),
	}
}

// NewServer starts the relay on a local httptest server
func NewServer(config Config) (*Relay, *httptest.Server) {
	r := New(config)
	return r, httptest.NewServer(r)
}

// WebsocketURL converts an http(s) server URL into the ws(s) URL clients dial
func WebsocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http")
}

func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade relay connection")
		return
	}

	c := &relayConn{
		id:    uuid.New().String()[:8],
		ws:    ws,
		send:  make(chan []byte, r.config.SendBufferSize),
		relay: r,
	}

	r.mu.Lock()
	r.conns[c] = true
	r.mu.Unlock()

	go c.writePump()
	go c.readPump()

	log.Debug().Str("connection_id", c.id).Msg("relay connection established")
}

// PingAll sends a ping frame to every connection
func (r *Relay) PingAll() {
	frame, _ := protocol.Encode(protocol.Ping())

	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.conns {
		c.enqueue(frame)
	}
}

// DropAll closes every connection without a close handshake
func (r *Relay) DropAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.conns {
		c.ws.Close()
	}
}

// SessionCount returns how many connections announced sessionID
func (r *Relay) SessionCount(sessionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[sessionID])
}

// Connections returns the number of open connections
func (r *Relay) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Pongs returns the number of pong frames received
func (r *Relay) Pongs() int64 {
	return r.pongs.Load()
}

// Forwarded returns the number of command frames delivered to a connection
func (r *Relay) Forwarded() int64 {
	return r.forwarded.Load()
}

func (r *Relay) announce(c *relayConn, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.sessionID != "" {
		delete(r.sessions[c.sessionID], c)
	}
	c.sessionID = sessionID
	if r.sessions[sessionID] == nil {
		r.sessions[sessionID] = make(map[*relayConn]bool)
	}
	r.sessions[sessionID][c] = true

	log.Debug().
		Str("connection_id", c.id).
		Str("session_id", sessionID).
		Int("session_connections", len(r.sessions[sessionID])).
		Msg("session announced")
}

func (r *Relay) forward(sessionID string, frame []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for c := range r.sessions[sessionID] {
		if c.enqueue(frame) {
			r.forwarded.Add(1)
		}
	}
}

func (r *Relay) unregister(c *relayConn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.conns[c] {
		return
	}
	delete(r.conns, c)
	close(c.send)

	if conns, ok := r.sessions[c.sessionID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(r.sessions, c.sessionID)
		}
	}

	log.Debug().Str("connection_id", c.id).Msg("relay connection closed")
}

// enqueue must be called with Relay.mu held
func (c *relayConn) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		log.Warn().Str("connection_id", c.id).Msg("relay send buffer full, dropping frame")
		return false
	}
}

func (c *relayConn) writePump() {
	var tick <-chan time.Time
	if c.relay.config.PingInterval > 0 {
		ticker := time.NewTicker(c.relay.config.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	ping, _ := protocol.Encode(protocol.Ping())

	defer c.ws.Close()

	for {
		select {
		case frame, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.relay.config.WriteTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("relay write failed")
				return
			}

		case <-tick:
			c.ws.SetWriteDeadline(time.Now().Add(c.relay.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, ping); err != nil {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("relay ping failed")
				return
			}
		}
	}
}

func (c *relayConn) readPump() {
	defer func() {
		c.relay.unregister(c)
		c.ws.Close()
	}()

	if c.relay.config.MaxMessageSize > 0 {
		c.ws.SetReadLimit(c.relay.config.MaxMessageSize)
	}

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("unexpected relay close")
			}
			return
		}
		c.handleMessage(data)
	}
}

func (c *relayConn) handleMessage(data []byte) {
	msg, err := protocol.Parse(data)
	if err != nil {
		log.Debug().Err(err).Str("connection_id", c.id).Msg("relay ignoring malformed frame")
		return
	}

	switch msg.Type {
	case protocol.MessageTypeConnect:
		c.relay.announce(c, msg.SessionID)
	case protocol.MessageTypePong:
		c.relay.pongs.Add(1)
	case protocol.MessageTypeCommand:
		if msg.SessionID == "" {
			log.Debug().Str("connection_id", c.id).Msg("relay dropping command without session id")
			return
		}
		c.relay.forward(msg.SessionID, data)
	}
}
