package main

import (
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// Hub manages all connected clients and owns the game-side singletons:
// the room registry, the matchmaker, auth and presence.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client

	rooms    *RoomRegistry
	match    *Matchmaker
	auth     *Auth
	presence *Presence
	db       *DB
	results  ResultSink
	cfg      *Config

	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int
}

// NewHub wires the hub. db may be nil (no persistence, in-memory only).
func NewHub(cfg *Config, db *DB) *Hub {
	rooms := NewRoomRegistry()
	var sink ResultSink
	if db != nil {
		sink = db
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		rooms:      rooms,
		match:      NewMatchmaker(rooms, cfg, sink),
		auth:       NewAuth(db),
		presence:   NewPresence(db),
		db:         db,
		results:    sink,
		cfg:        cfg,
		ipConns:    make(map[string]int),
	}
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.handleDisconnect(client)
		}
	}
}

// handleDisconnect performs the same exit logic as an explicit
// exitGameRoom request, then reports the identity back to idle.
func (h *Hub) handleDisconnect(c *Client) {
	if room := h.rooms.RoomOf(c.identityID); room != nil {
		if ge := room.Exit(c.identityID); ge != nil {
			logrus.WithFields(logrus.Fields{
				"user": c.username,
				"room": room.Name(),
				"kind": ge.Kind.String(),
			}).Warn("exit on disconnect failed")
		}
	}
	h.presence.SetStatus(c.identityID, StatusOnline)
	h.presence.Clear(c.identityID)
	logrus.WithFields(logrus.Fields{"user": c.username, "conn": c.connID}).Info("disconnected")
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}
