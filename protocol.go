package main

import "encoding/json"

// Client -> Server message types
const (
	MsgFindRooms   = "findGameRooms"
	MsgCreateRoom  = "createGameRoom"
	MsgJoinRoom    = "joinGameRoom"
	MsgReady       = "readyGame"
	MsgStart       = "startGame"
	MsgExitRoom    = "exitGameRoom"
	MsgRandomMatch = "randomGameMatch"
	MsgTouchBar    = "touchBar"
)

// Server -> Client message types (room broadcasts unless noted)
const (
	MsgBall       = "ball"
	MsgScore      = "score"
	MsgWait       = "wait" // to the caller only
	MsgGameOver   = "gameOver"
	MsgConnection = "connection"    // ack, to the caller only
	MsgDisconnect = "disconnection" // ack, to the caller only
	MsgError      = "error"         // to the caller only
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages — json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// RoomNameMsg carries requests that only need a room name
// (joinGameRoom, startGame, exitGameRoom).
type RoomNameMsg struct {
	RoomName string `json:"roomName"`
}

// ReadyMsg is a player's option proposal.
type ReadyMsg struct {
	RoomName        string `json:"roomName"`
	BackgroundColor int    `json:"backgroundColor"`
	Mode            int    `json:"mode"`
}

// TouchBarMsg carries a paddle move; TouchBar is a fraction in [0,1]
// of the display height.
type TouchBarMsg struct {
	RoomName string  `json:"roomName"`
	TouchBar float64 `json:"touchBar"`
}

// RoomInfo is the room-list snapshot entry.
type RoomInfo struct {
	Name       string   `json:"name"`
	Status     string   `json:"status"`
	Players    []string `json:"players"`
	Spectators int      `json:"spectators"`
}

// RoomMsg announces a room event together with its current snapshot.
type RoomMsg struct {
	Message string   `json:"message"`
	Room    RoomInfo `json:"room"`
}

// ReadyBcast is broadcast when both players agreed on options.
type ReadyBcast struct {
	Message string     `json:"message"`
	Options GameOption `json:"options"`
	Players []string   `json:"players"`
}

// BallMsg is emitted on every ball state change.
type BallMsg struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
}

// ScoreMsg is emitted after a goal.
type ScoreMsg struct {
	Score [2]int `json:"score"`
}

// TouchBarBcast mirrors a paddle move to every room member.
type TouchBarBcast struct {
	PlayerID int64   `json:"player"`
	TouchBar float64 `json:"touchBar"` // original fraction
	Offset   float64 `json:"offset"`   // scaled by display height
}

// GameOverMsg terminates a match: either a win or an abort after a
// player left mid-game.
type GameOverMsg struct {
	Winner  string `json:"winner,omitempty"`
	Score   [2]int `json:"score"`
	Aborted bool   `json:"aborted,omitempty"`
}

// ExitBcast announces a member leaving a room.
type ExitBcast struct {
	Username  string `json:"username"`
	Spectator bool   `json:"spectator,omitempty"`
}

// NoticeMsg is a plain human-readable notice (wait, connection acks).
type NoticeMsg struct {
	Message string `json:"message"`
}

// ErrorMsg carries a typed failure to the originating connection.
type ErrorMsg struct {
	Kind string `json:"kind"`
	Msg  string `json:"msg"`
}
