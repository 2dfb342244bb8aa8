package main

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient captures everything broadcast to one member.
type mockClient struct {
	mu     sync.Mutex
	msgs   []Envelope
	binary [][]byte
}

func (m *mockClient) SendJSON(v interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if env, ok := v.(Envelope); ok {
		m.msgs = append(m.msgs, env)
	}
}

func (m *mockClient) SendBinary(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.binary = append(m.binary, data)
}

func (m *mockClient) count(msgType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, env := range m.msgs {
		if env.T == msgType {
			n++
		}
	}
	return n
}

func (m *mockClient) last(msgType string) (Envelope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.msgs) - 1; i >= 0; i-- {
		if m.msgs[i].T == msgType {
			return m.msgs[i], true
		}
	}
	return Envelope{}, false
}

func member(id int64, name string) (Member, *mockClient) {
	c := &mockClient{}
	return Member{ID: id, Username: name, Client: c}, c
}

func newTestRoom(t *testing.T) (*Room, *RoomRegistry) {
	t.Helper()
	registry := NewRoomRegistry()
	room, ge := registry.Create("test-room", TestConfig(), nil)
	require.Nil(t, ge)
	return room, registry
}

// readyBoth admits two players and drives the room into COUNTDOWN.
func readyBoth(t *testing.T, room *Room) (Member, Member, *mockClient, *mockClient) {
	t.Helper()
	a, ca := member(1, "alice")
	b, cb := member(2, "bob")

	role, ge := room.Join(a)
	require.Nil(t, ge)
	require.Equal(t, RolePlayer, role)
	role, ge = room.Join(b)
	require.Nil(t, ge)
	require.Equal(t, RolePlayer, role)

	opt := GameOption{BackgroundColor: 1, Mode: 0}
	started, ge := room.Ready(a.ID, opt)
	require.Nil(t, ge)
	require.False(t, started)
	started, ge = room.Ready(b.ID, opt)
	require.Nil(t, ge)
	require.True(t, started)
	require.Equal(t, StatusCountdown, room.Status())
	return a, b, ca, cb
}

func TestJoinThirdBecomesSpectator(t *testing.T) {
	room, _ := newTestRoom(t)

	a, _ := member(1, "alice")
	b, _ := member(2, "bob")
	c, _ := member(3, "carol")

	role, ge := room.Join(a)
	require.Nil(t, ge)
	assert.Equal(t, RolePlayer, role)
	role, ge = room.Join(b)
	require.Nil(t, ge)
	assert.Equal(t, RolePlayer, role)
	role, ge = room.Join(c)
	require.Nil(t, ge)
	assert.Equal(t, RoleSpectator, role)

	info := room.Info()
	assert.Len(t, info.Players, 2)
	assert.Equal(t, 1, info.Spectators)
}

func TestJoinDuplicateConflicts(t *testing.T) {
	room, _ := newTestRoom(t)
	a, _ := member(1, "alice")

	_, ge := room.Join(a)
	require.Nil(t, ge)
	_, ge = room.Join(a)
	require.NotNil(t, ge)
	assert.Equal(t, ErrConflict, ge.Kind)
}

func TestReadyMismatchKeepsLobby(t *testing.T) {
	room, _ := newTestRoom(t)
	a, _ := member(1, "alice")
	b, _ := member(2, "bob")
	room.Join(a)
	room.Join(b)

	started, ge := room.Ready(a.ID, GameOption{BackgroundColor: 1, Mode: 0})
	require.Nil(t, ge)
	assert.False(t, started)
	started, ge = room.Ready(b.ID, GameOption{BackgroundColor: 0, Mode: 0})
	require.Nil(t, ge)
	assert.False(t, started)
	assert.Equal(t, StatusLobby, room.Status())

	// The latest consistent pair wins.
	started, ge = room.Ready(b.ID, GameOption{BackgroundColor: 1, Mode: 0})
	require.Nil(t, ge)
	assert.True(t, started)
	assert.Equal(t, StatusCountdown, room.Status())
}

func TestReadyFromSpectatorFails(t *testing.T) {
	room, _ := newTestRoom(t)
	a, _ := member(1, "alice")
	b, _ := member(2, "bob")
	s, _ := member(3, "spectator")
	room.Join(a)
	room.Join(b)
	room.Join(s)

	_, ge := room.Ready(s.ID, GameOption{})
	require.NotNil(t, ge)
	assert.Equal(t, ErrNotFound, ge.Kind)
}

func TestReadyTransitionsExactlyOnce(t *testing.T) {
	room, _ := newTestRoom(t)
	a, ca := member(1, "alice")
	b, _ := member(2, "bob")
	room.Join(a)
	room.Join(b)

	opt := GameOption{BackgroundColor: 1, Mode: 0}
	var wg sync.WaitGroup
	for _, id := range []int64{a.ID, b.ID} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			room.Ready(id, opt)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, StatusCountdown, room.Status())
	assert.Equal(t, 1, ca.count(MsgReady), "countdown announced exactly once")
}

func TestStartOutsideCountdownConflicts(t *testing.T) {
	room, _ := newTestRoom(t)
	a, _ := member(1, "alice")
	room.Join(a)

	ge := room.Start(a.ID)
	require.NotNil(t, ge)
	assert.Equal(t, ErrConflict, ge.Kind)
}

func TestStartBeginsPlayingAndServes(t *testing.T) {
	room, _ := newTestRoom(t)
	a, _, ca, _ := readyBoth(t, room)

	require.Nil(t, room.Start(a.ID))
	assert.Equal(t, StatusPlaying, room.Status())

	env, ok := ca.last(MsgBall)
	require.True(t, ok, "initial ball broadcast")
	ball := env.Data.(BallMsg)
	assert.Equal(t, 500.0, ball.X)
	assert.Equal(t, 300.0, ball.Y)
	assert.True(t, ball.VX != 0, "served ball must move")

	// Double start conflicts.
	ge := room.Start(a.ID)
	require.NotNil(t, ge)
	assert.Equal(t, ErrConflict, ge.Kind)

	room.Exit(a.ID) // stop the tick loop
}

func TestTouchBarScalesAndBroadcastsImmediately(t *testing.T) {
	room, _ := newTestRoom(t)
	a, _, _, cb := readyBoth(t, room)
	require.Nil(t, room.Start(a.ID))

	before := cb.count(MsgTouchBar)
	require.Nil(t, room.TouchBar(a.ID, 0.5))

	env, ok := cb.last(MsgTouchBar)
	require.True(t, ok)
	bcast := env.Data.(TouchBarBcast)
	assert.Equal(t, 300.0, bcast.Offset, "fraction 0.5 of height 600")
	assert.Equal(t, a.ID, bcast.PlayerID)
	assert.Equal(t, before+1, cb.count(MsgTouchBar))

	room.Exit(a.ID)
}

func TestTouchBarValidation(t *testing.T) {
	room, _ := newTestRoom(t)
	a, _, _, _ := readyBoth(t, room)
	require.Nil(t, room.Start(a.ID))

	ge := room.TouchBar(a.ID, 1.5)
	require.NotNil(t, ge)
	assert.Equal(t, ErrInvalidInput, ge.Kind)

	ge = room.TouchBar(99, 0.5)
	require.NotNil(t, ge)
	assert.Equal(t, ErrNotFound, ge.Kind)

	room.Exit(a.ID)
}

func TestPlayerExitMidMatchAborts(t *testing.T) {
	room, _ := newTestRoom(t)
	a, _, _, cb := readyBoth(t, room)
	require.Nil(t, room.Start(a.ID))

	require.Nil(t, room.Exit(a.ID))
	assert.Equal(t, StatusFinished, room.Status())

	env, ok := cb.last(MsgGameOver)
	require.True(t, ok, "remaining player told about the abort")
	assert.True(t, env.Data.(GameOverMsg).Aborted)

	room.mu.Lock()
	assert.Nil(t, room.stop, "tick cancelled")
	assert.Nil(t, room.play, "playing state discarded")
	room.mu.Unlock()
}

func TestExitIdempotence(t *testing.T) {
	room, registry := newTestRoom(t)
	a, _ := member(1, "alice")
	room.Join(a)

	require.Nil(t, room.Exit(a.ID))
	ge := room.Exit(a.ID)
	require.NotNil(t, ge)
	assert.Equal(t, ErrNotFound, ge.Kind)

	assert.Nil(t, registry.Find("test-room"), "empty room removed from registry")
}

func TestRoomSurvivesWhileSpectatorRemains(t *testing.T) {
	room, registry := newTestRoom(t)
	a, _ := member(1, "alice")
	b, _ := member(2, "bob")
	c, _ := member(3, "carol")
	room.Join(a)
	room.Join(b)
	room.Join(c) // spectator

	room.Exit(a.ID)
	room.Exit(b.ID)
	assert.NotNil(t, registry.Find("test-room"))

	room.Exit(c.ID)
	assert.Nil(t, registry.Find("test-room"))
}

func TestCountdownExitResetsToLobby(t *testing.T) {
	room, _ := newTestRoom(t)
	a, b, _, _ := readyBoth(t, room)
	_ = b

	require.Nil(t, room.Exit(a.ID))
	assert.Equal(t, StatusLobby, room.Status())

	// The remaining player must ready up again.
	room.mu.Lock()
	for _, p := range room.players {
		assert.False(t, p.Ready)
	}
	room.mu.Unlock()
}

type recordingSink struct {
	mu      sync.Mutex
	matches []string
	winners []string
}

func (s *recordingSink) RecordMatch(roomName string, winner, loser Member, winnerScore, loserScore int, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches = append(s.matches, roomName)
	s.winners = append(s.winners, winner.Username)
}

func TestWinFinishesAndRecordsResult(t *testing.T) {
	registry := NewRoomRegistry()
	sink := &recordingSink{}
	room, ge := registry.Create("win-room", TestConfig(), sink)
	require.Nil(t, ge)

	a, _, _, cb := readyBoth(t, room)
	require.Nil(t, room.Start(a.ID))

	// Force match point and hand the winning goal to the tick loop.
	room.mu.Lock()
	room.play.Score[0] = room.play.WinScore - 1
	room.play.Ball.X = room.play.Display.Width + 1
	room.mu.Unlock()

	room.step()

	assert.Equal(t, StatusFinished, room.Status())
	env, ok := cb.last(MsgGameOver)
	require.True(t, ok)
	over := env.Data.(GameOverMsg)
	assert.Equal(t, "alice", over.Winner)
	assert.False(t, over.Aborted)

	// Result persistence runs off the tick path.
	assert.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.matches) == 1 && sink.winners[0] == "alice"
	}, time.Second, 10*time.Millisecond)
}

func TestLateTickAfterFinishIsNoop(t *testing.T) {
	room, _ := newTestRoom(t)
	a, _, ca, _ := readyBoth(t, room)
	require.Nil(t, room.Start(a.ID))
	require.Nil(t, room.Exit(a.ID))

	before := ca.count(MsgBall)
	room.step() // a straggler tick must not resurrect the room
	assert.Equal(t, before, ca.count(MsgBall))
	assert.Equal(t, StatusFinished, room.Status())
}
