package main

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

// RoomStatus is the room lifecycle phase.
type RoomStatus int

const (
	StatusLobby RoomStatus = iota
	StatusCountdown
	StatusPlaying
	StatusFinished
)

func (s RoomStatus) String() string {
	switch s {
	case StatusLobby:
		return "LOBBY"
	case StatusCountdown:
		return "COUNTDOWN"
	case StatusPlaying:
		return "PLAYING"
	case StatusFinished:
		return "FINISHED"
	}
	return "UNKNOWN"
}

// Role distinguishes gameplay members from watchers.
type Role int

const (
	RolePlayer Role = iota
	RoleSpectator
)

// Broadcaster delivers messages to one connection.
type Broadcaster interface {
	SendJSON(v interface{})
	SendBinary(data []byte)
}

// Member is an identity admitted to a room.
type Member struct {
	ID       int64
	Username string
	Client   Broadcaster
}

// Player is a room member permitted to affect gameplay. Slot order is
// significant: index 0 is the left paddle.
type Player struct {
	Member
	Ready    bool
	Proposal *GameOption
	Bar      float64
}

// ResultSink receives finished-match results for persistence.
type ResultSink interface {
	RecordMatch(roomName string, winner, loser Member, winnerScore, loserScore int, duration time.Duration)
}

// Room is one match's container. Every mutating operation takes the
// room lock, so inbound events and tick steps are applied one at a
// time in arrival order.
type Room struct {
	mu         sync.Mutex
	name       string
	status     RoomStatus
	players    []*Player
	spectators map[int64]*Member
	options    GameOption
	play       *PlayState
	stop       chan struct{} // non-nil only while PLAYING
	startedAt  time.Time
	pending    bool // created by matchmaking, waiting for an opponent

	cfg      *Config
	registry *RoomRegistry
	results  ResultSink
}

// NewRoom builds an empty room in LOBBY. The caller inserts it into
// the registry.
func NewRoom(name string, cfg *Config, registry *RoomRegistry, results ResultSink) *Room {
	return &Room{
		name:       name,
		status:     StatusLobby,
		spectators: make(map[int64]*Member),
		cfg:        cfg,
		registry:   registry,
		results:    results,
	}
}

// Name returns the immutable room name.
func (r *Room) Name() string { return r.name }

// Status returns the current lifecycle phase.
func (r *Room) Status() RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Info snapshots the room for the room list.
func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.players))
	for _, p := range r.players {
		names = append(names, p.Username)
	}
	return RoomInfo{
		Name:       r.name,
		Status:     r.status.String(),
		Players:    names,
		Spectators: len(r.spectators),
	}
}

// HasMember reports whether the identity is a player or spectator here.
func (r *Room) HasMember(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.memberLocked(id)
}

func (r *Room) memberLocked(id int64) bool {
	if _, ok := r.spectators[id]; ok {
		return true
	}
	return r.playerLocked(id) != nil
}

func (r *Room) playerLocked(id int64) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) playerIndexLocked(id int64) int {
	for i, p := range r.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Join admits the member: as a player while the room is in LOBBY with
// a free slot, as a spectator otherwise. Duplicate joins conflict.
func (r *Room) Join(m Member) (Role, *GameError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.memberLocked(m.ID) {
		return 0, errf(ErrConflict, "%s is already in room %s", m.Username, r.name)
	}
	if r.status == StatusFinished {
		return 0, errf(ErrInvalidState, "room %s is finished", r.name)
	}

	role := RoleSpectator
	if r.status == StatusLobby && len(r.players) < 2 {
		r.players = append(r.players, &Player{
			Member: m,
			Bar:    r.cfg.Display.Height / 2,
		})
		if len(r.players) == 2 {
			r.pending = false
		}
		role = RolePlayer
	} else {
		r.spectators[m.ID] = &m
	}

	msg := m.Username + " joined room " + r.name
	if role == RoleSpectator {
		msg = m.Username + " is watching room " + r.name
	}
	r.broadcastLocked(Envelope{T: MsgJoinRoom, Data: RoomMsg{Message: msg, Room: r.infoLocked()}})
	return role, nil
}

// markPending flags a matchmaking-created room that still waits for
// its opponent.
func (r *Room) markPending() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = true
}

// TryMatch admits the member as the second player of a pending lobby
// room. Returns false when this room cannot take the match.
func (r *Room) TryMatch(m Member) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.pending || r.status != StatusLobby || len(r.players) != 1 || r.memberLocked(m.ID) {
		return false
	}
	r.players = append(r.players, &Player{
		Member: m,
		Bar:    r.cfg.Display.Height / 2,
	})
	r.pending = false
	r.broadcastLocked(Envelope{T: MsgRandomMatch, Data: RoomMsg{
		Message: m.Username + " was matched into room " + r.name,
		Room:    r.infoLocked(),
	}})
	return true
}

// Ready records the caller's option proposal. When both slots are
// filled, both players are ready, and the proposals are equal, the
// room moves to COUNTDOWN and the agreed options are broadcast. The
// returned bool reports whether that transition happened; otherwise
// the caller should be told to keep waiting.
func (r *Room) Ready(id int64, opt GameOption) (bool, *GameError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusLobby {
		return false, errf(ErrInvalidState, "room %s is not in lobby", r.name)
	}
	p := r.playerLocked(id)
	if p == nil {
		return false, errf(ErrNotFound, "not a player in room %s", r.name)
	}

	prop := opt
	p.Proposal = &prop
	p.Ready = true

	if len(r.players) < 2 ||
		!r.players[0].Ready || !r.players[1].Ready ||
		!r.players[0].Proposal.Equal(*r.players[1].Proposal) {
		return false, nil
	}

	r.options = *r.players[0].Proposal
	r.status = StatusCountdown
	r.broadcastLocked(Envelope{T: MsgReady, Data: ReadyBcast{
		Message: "both players ready",
		Options: r.options,
		Players: []string{r.players[0].Username, r.players[1].Username},
	}})
	return true, nil
}

// Start begins the match: the ball is served from the center, score is
// zeroed, and the tick loop starts.
func (r *Room) Start(id int64) *GameError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.playerLocked(id) == nil {
		return errf(ErrNotFound, "not a player in room %s", r.name)
	}
	if r.status != StatusCountdown {
		return errf(ErrConflict, "room %s already started", r.name)
	}

	r.play = NewPlayState(r.cfg, r.options)
	r.play.Bars[0] = r.players[0].Bar
	r.play.Bars[1] = r.players[1].Bar
	r.status = StatusPlaying
	r.startedAt = time.Now()
	r.stop = make(chan struct{})
	go r.run(r.stop)

	r.broadcastLocked(Envelope{T: MsgBall, Data: r.play.BallState()})
	logrus.WithFields(logrus.Fields{"room": r.name, "options": r.options}).Info("match started")
	return nil
}

// TouchBar applies a paddle move and mirrors it to the room at once,
// without waiting for the next tick. fraction is relative to the
// display height.
func (r *Room) TouchBar(id int64, fraction float64) *GameError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if fraction < 0 || fraction > 1 {
		return errf(ErrInvalidInput, "touchBar %v out of range", fraction)
	}
	if r.status != StatusPlaying {
		return errf(ErrInvalidState, "room %s is not playing", r.name)
	}
	idx := r.playerIndexLocked(id)
	if idx < 0 {
		return errf(ErrNotFound, "not a player in room %s", r.name)
	}

	offset := r.play.SetBar(idx, fraction*r.cfg.Display.Height)
	r.players[idx].Bar = offset
	r.broadcastLocked(Envelope{T: MsgTouchBar, Data: TouchBarBcast{
		PlayerID: id,
		TouchBar: fraction,
		Offset:   offset,
	}})
	return nil
}

// Exit removes the member. A player leaving mid-match aborts it; an
// empty room is removed from the registry. A second exit for the same
// identity yields NotFound.
func (r *Room) Exit(id int64) *GameError {
	ge, empty := r.exit(id)
	if empty {
		r.registry.Remove(r.name)
	}
	return ge
}

func (r *Room) exit(id int64) (*GameError, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if spec, ok := r.spectators[id]; ok {
		delete(r.spectators, id)
		r.broadcastLocked(Envelope{T: MsgExitRoom, Data: ExitBcast{Username: spec.Username, Spectator: true}})
		return nil, r.emptyLocked()
	}

	idx := r.playerIndexLocked(id)
	if idx < 0 {
		return errf(ErrNotFound, "not in room %s", r.name), false
	}
	leaving := r.players[idx]
	r.players = append(r.players[:idx], r.players[idx+1:]...)
	r.broadcastLocked(Envelope{T: MsgExitRoom, Data: ExitBcast{Username: leaving.Username}})

	switch r.status {
	case StatusPlaying:
		// A player left mid-match: cancel the tick first, then tear down.
		r.stopTickLocked()
		score := r.play.Score
		r.play = nil
		r.status = StatusFinished
		r.broadcastLocked(Envelope{T: MsgGameOver, Data: GameOverMsg{Score: score, Aborted: true}})
		logrus.WithFields(logrus.Fields{"room": r.name, "player": leaving.Username}).Info("match aborted")
	case StatusCountdown:
		r.status = StatusLobby
		fallthrough
	case StatusLobby:
		for _, p := range r.players {
			p.Ready = false
			p.Proposal = nil
		}
	}

	return nil, r.emptyLocked()
}

func (r *Room) emptyLocked() bool {
	return len(r.players) == 0 && len(r.spectators) == 0
}

// run drives the fixed-period tick while the room is PLAYING. The stop
// channel is closed exactly once by whichever transition leaves PLAYING.
func (r *Room) run(stop chan struct{}) {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.step()
		case <-stop:
			return
		}
	}
}

// step runs one tick in the fixed order: score check, win check,
// paddle collision, wall collision, integration. Each change is
// emitted as its own event, plus one binary snapshot per tick.
func (r *Room) step() {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A tick can race the closing of its stop channel.
	if r.status != StatusPlaying || r.play == nil {
		return
	}
	ps := r.play
	ps.Tick++

	if scorer := ps.CheckGoal(); scorer >= 0 {
		r.broadcastLocked(Envelope{T: MsgScore, Data: ScoreMsg{Score: ps.Score}})

		if win := ps.Winner(); win >= 0 {
			r.finishLocked(win)
			return
		}
		r.broadcastLocked(Envelope{T: MsgBall, Data: ps.BallState()})
	}

	if ps.CollidePaddles() {
		r.broadcastLocked(Envelope{T: MsgBall, Data: ps.BallState()})
	}
	if ps.CollideWalls() {
		r.broadcastLocked(Envelope{T: MsgBall, Data: ps.BallState()})
	}
	if ps.Advance(r.cfg.TickInterval.Seconds()) {
		r.broadcastLocked(Envelope{T: MsgBall, Data: ps.BallState()})
	}

	if raw, err := msgpack.Marshal(ps.Snap()); err == nil {
		r.broadcastBinaryLocked(raw)
	}
}

// finishLocked ends a won match: cancel the tick before any other
// teardown, then announce the winner and persist the result.
func (r *Room) finishLocked(winner int) {
	r.stopTickLocked()
	score := r.play.Score
	duration := time.Since(r.startedAt)
	win := r.players[winner].Member
	lose := r.players[1-winner].Member
	r.play = nil
	r.status = StatusFinished

	r.broadcastLocked(Envelope{T: MsgGameOver, Data: GameOverMsg{
		Winner: win.Username,
		Score:  score,
	}})
	logrus.WithFields(logrus.Fields{
		"room":   r.name,
		"winner": win.Username,
		"score":  score,
	}).Info("match finished")

	if r.results != nil {
		// Persistence stays off the tick-critical section.
		go r.results.RecordMatch(r.name, win, lose, score[winner], score[1-winner], duration)
	}
}

// stopTickLocked cancels the tick loop. Safe to call from any
// transition out of PLAYING; only the first call closes the channel.
func (r *Room) stopTickLocked() {
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
}

func (r *Room) infoLocked() RoomInfo {
	names := make([]string, 0, len(r.players))
	for _, p := range r.players {
		names = append(names, p.Username)
	}
	return RoomInfo{
		Name:       r.name,
		Status:     r.status.String(),
		Players:    names,
		Spectators: len(r.spectators),
	}
}

func (r *Room) broadcastLocked(env Envelope) {
	for _, p := range r.players {
		if p.Client != nil {
			p.Client.SendJSON(env)
		}
	}
	for _, s := range r.spectators {
		if s.Client != nil {
			s.Client.SendJSON(env)
		}
	}
}

func (r *Room) broadcastBinaryLocked(data []byte) {
	for _, p := range r.players {
		if p.Client != nil {
			p.Client.SendBinary(data)
		}
	}
	for _, s := range r.spectators {
		if s.Client != nil {
			s.Client.SendBinary(data)
		}
	}
}
