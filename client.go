package main

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 50
)

// Client represents one authenticated WebSocket connection. Identity
// is resolved before the client is constructed; unresolvable
// connections are rejected at upgrade time.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	connID     string // correlation id for logs
	identityID int64
	username   string
	remoteAddr string
	msgCount   int
	msgResetAt time.Time
}

// NewClient creates a Client for a resolved identity
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, identityID int64, username string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		connID:     uuid.NewString(),
		identityID: identityID,
		username:   username,
		remoteAddr: remoteAddr,
	}
}

func (c *Client) member() Member {
	return Member{ID: c.identityID, Username: c.username, Client: c}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithError(err).WithField("conn", c.connID).Warn("ws read error")
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			logrus.WithField("addr", c.remoteAddr).Warn("rate limit exceeded, disconnecting")
			c.SendJSON(Envelope{T: MsgDisconnect, Data: NoticeMsg{Message: "rate limit exceeded"}})
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Check for binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
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

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		logrus.WithError(err).Error("marshal error")
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message.
// Prefixes with 0xFF marker byte so WritePump can distinguish from text.
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) sendErr(ge *GameError) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Kind: ge.Kind.String(), Msg: ge.Msg}})
}

// handleMessage routes incoming messages. Failures never escape the
// dispatch boundary: they become error notices to this connection only.
func (c *Client) handleMessage(raw []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			logrus.WithFields(logrus.Fields{"conn": c.connID, "panic": rec}).Error("dispatch panic")
		}
	}()

	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.sendErr(errf(ErrInvalidInput, "malformed message"))
		return
	}

	switch env.T {
	case MsgFindRooms:
		c.handleFindRooms()
	case MsgCreateRoom:
		c.handleCreateRoom()
	case MsgJoinRoom:
		c.handleJoinRoom(env.D)
	case MsgReady:
		c.handleReady(env.D)
	case MsgStart:
		c.handleStart(env.D)
	case MsgExitRoom:
		c.handleExitRoom(env.D)
	case MsgRandomMatch:
		c.handleRandomMatch()
	case MsgTouchBar:
		c.handleTouchBar(env.D)
	default:
		c.sendErr(errf(ErrInvalidInput, "unknown message type %q", env.T))
	}
}

func (c *Client) handleFindRooms() {
	c.SendJSON(Envelope{T: MsgFindRooms, Data: c.hub.rooms.List()})
}

func (c *Client) handleCreateRoom() {
	var room *Room
	for {
		var ge *GameError
		room, ge = c.hub.rooms.Create(GenerateRoomName(), c.hub.cfg, c.hub.results)
		if ge == nil {
			break
		}
		// Name collision, roll again.
	}
	logrus.WithFields(logrus.Fields{"room": room.Name(), "user": c.username}).Info("room created")
	c.SendJSON(Envelope{T: MsgCreateRoom, Data: RoomMsg{
		Message: "room " + room.Name() + " created",
		Room:    room.Info(),
	}})
}

func (c *Client) handleJoinRoom(data json.RawMessage) {
	var msg RoomNameMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendErr(errf(ErrInvalidInput, "malformed join request"))
		return
	}
	room := c.hub.rooms.Find(msg.RoomName)
	if room == nil {
		c.sendErr(errf(ErrNotFound, "room %s does not exist", msg.RoomName))
		return
	}
	if _, ge := room.Join(c.member()); ge != nil {
		c.sendErr(ge)
		return
	}
	c.hub.presence.SetStatus(c.identityID, StatusInGame)
}

func (c *Client) handleReady(data json.RawMessage) {
	var msg ReadyMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendErr(errf(ErrInvalidInput, "malformed ready request"))
		return
	}
	room := c.hub.rooms.Find(msg.RoomName)
	if room == nil {
		c.sendErr(errf(ErrNotFound, "room %s does not exist", msg.RoomName))
		return
	}
	opt := GameOption{BackgroundColor: msg.BackgroundColor, Mode: msg.Mode}
	started, ge := room.Ready(c.identityID, opt)
	if ge != nil {
		c.sendErr(ge)
		return
	}
	if !started {
		c.SendJSON(Envelope{T: MsgWait, Data: NoticeMsg{Message: "waiting for the other player"}})
	}
}

func (c *Client) handleStart(data json.RawMessage) {
	var msg RoomNameMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendErr(errf(ErrInvalidInput, "malformed start request"))
		return
	}
	room := c.hub.rooms.Find(msg.RoomName)
	if room == nil {
		c.sendErr(errf(ErrNotFound, "room %s does not exist", msg.RoomName))
		return
	}
	if ge := room.Start(c.identityID); ge != nil {
		c.sendErr(ge)
	}
}

func (c *Client) handleExitRoom(data json.RawMessage) {
	var msg RoomNameMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendErr(errf(ErrInvalidInput, "malformed exit request"))
		return
	}
	room := c.hub.rooms.Find(msg.RoomName)
	if room == nil {
		c.sendErr(errf(ErrNotFound, "room %s does not exist", msg.RoomName))
		return
	}
	if ge := room.Exit(c.identityID); ge != nil {
		c.sendErr(ge)
		return
	}
	c.SendJSON(Envelope{T: MsgExitRoom, Data: NoticeMsg{Message: "left room " + msg.RoomName}})
	c.hub.presence.SetStatus(c.identityID, StatusOnline)
}

func (c *Client) handleRandomMatch() {
	room, ge := c.hub.match.RequestMatch(c.member())
	if ge != nil {
		c.sendErr(ge)
		return
	}
	if room == nil {
		// Already in a room; matchmaking is a silent no-op.
		return
	}
	c.hub.presence.SetStatus(c.identityID, StatusInGame)
	c.SendJSON(Envelope{T: MsgRandomMatch, Data: RoomMsg{
		Message: "matched into room " + room.Name(),
		Room:    room.Info(),
	}})
}

func (c *Client) handleTouchBar(data json.RawMessage) {
	var msg TouchBarMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendErr(errf(ErrInvalidInput, "malformed touchBar request"))
		return
	}
	room := c.hub.rooms.Find(msg.RoomName)
	if room == nil {
		c.sendErr(errf(ErrNotFound, "room %s does not exist", msg.RoomName))
		return
	}
	if ge := room.TouchBar(c.identityID, msg.TouchBar); ge != nil {
		c.sendErr(ge)
	}
}
