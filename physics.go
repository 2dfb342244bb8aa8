package main

import (
	"math"
	"math/rand"
)

// maxBounceAngle caps the deflection a paddle edge can impart,
// measured from the horizontal.
const maxBounceAngle = math.Pi / 3 // 60°

// serveAngle bounds the random serve direction.
const serveAngle = math.Pi / 6 // 30°

// GameOption is a player's match-option proposal. Both players must
// propose equal options before the room leaves the lobby.
type GameOption struct {
	BackgroundColor int `json:"backgroundColor"`
	Mode            int `json:"mode"` // 1 = fast ball
}

// Equal reports whether two proposals are consistent.
func (o GameOption) Equal(other GameOption) bool {
	return o.BackgroundColor == other.BackgroundColor && o.Mode == other.Mode
}

// Ball holds position and velocity in display units.
type Ball struct {
	X  float64 `msgpack:"x"`
	Y  float64 `msgpack:"y"`
	VX float64 `msgpack:"vx"`
	VY float64 `msgpack:"vy"`
}

// Snapshot is the compact per-tick binary state, msgpack-encoded and
// broadcast alongside the granular JSON events.
type Snapshot struct {
	Tick  uint64     `msgpack:"t"`
	Ball  Ball       `msgpack:"b"`
	Bars  [2]float64 `msgpack:"p"`
	Score [2]int     `msgpack:"s"`
}

// PlayState is the live simulation of one match. It exists only while
// the room is playing and is never shared between rooms. All access is
// serialized by the owning room's lock.
type PlayState struct {
	Display      Display
	PaddleW      float64
	PaddleH      float64
	Speed        float64 // ball speed magnitude, units/s
	WinScore     int
	Ball         Ball
	Bars         [2]float64 // paddle center offsets, index 0 = left
	Score        [2]int
	Tick         uint64
	randAngle    func() float64 // [-1,1), swappable in tests
	randSide     func() int     // 0 or 1
}

// NewPlayState builds the simulation for the given options: ball at
// center, paddles centered, serve direction unbiased.
func NewPlayState(cfg *Config, opt GameOption) *PlayState {
	speed := cfg.BallSpeed
	if opt.Mode == 1 {
		speed *= cfg.SpeedFactor
	}
	ps := &PlayState{
		Display:   cfg.Display,
		PaddleW:   cfg.PaddleWidth,
		PaddleH:   cfg.PaddleHeight,
		Speed:     speed,
		WinScore:  cfg.WinScore,
		Bars:      [2]float64{cfg.Display.Height / 2, cfg.Display.Height / 2},
		randAngle: func() float64 { return rand.Float64()*2 - 1 },
		randSide:  func() int { return rand.Intn(2) },
	}
	ps.Serve(0)
	return ps
}

// Serve re-centers the ball with a randomized direction. toward picks
// the horizontal direction: +1 serves right, -1 serves left, 0 flips a
// fair coin. The ball is never stationary.
func (ps *PlayState) Serve(toward int) {
	if toward == 0 {
		if ps.randSide() == 0 {
			toward = -1
		} else {
			toward = 1
		}
	}
	angle := ps.randAngle() * serveAngle
	ps.Ball = Ball{
		X:  ps.Display.Width / 2,
		Y:  ps.Display.Height / 2,
		VX: float64(toward) * ps.Speed * math.Cos(angle),
		VY: ps.Speed * math.Sin(angle),
	}
}

// CheckGoal reports which player scored this tick, or -1. A goal is
// the ball having crossed a goal-line beyond the opposing paddle. On a
// goal the score is incremented and the ball re-served toward the
// player who conceded.
func (ps *PlayState) CheckGoal() int {
	scorer := -1
	toward := 0
	if ps.Ball.X <= 0 {
		scorer = 1 // right player scores on the left goal-line
		toward = -1
	} else if ps.Ball.X >= ps.Display.Width {
		scorer = 0
		toward = 1
	}
	if scorer < 0 {
		return -1
	}
	ps.Score[scorer]++
	ps.Serve(toward)
	return scorer
}

// Winner returns the index of the player who reached the win score,
// or -1.
func (ps *PlayState) Winner() int {
	for i, s := range ps.Score {
		if s >= ps.WinScore {
			return i
		}
	}
	return -1
}

// CollidePaddles reflects the ball off a paddle when its leading edge
// intersects the paddle's vertical extent at the paddle plane. The new
// direction follows a linear deflection model: the impact offset from
// the paddle center maps linearly onto [-maxBounceAngle, maxBounceAngle].
func (ps *PlayState) CollidePaddles() bool {
	half := ps.PaddleH / 2
	if ps.Ball.VX < 0 && ps.Ball.X <= ps.PaddleW {
		if math.Abs(ps.Ball.Y-ps.Bars[0]) <= half {
			ps.bounce(0, 1)
			ps.Ball.X = ps.PaddleW
			return true
		}
	}
	if ps.Ball.VX > 0 && ps.Ball.X >= ps.Display.Width-ps.PaddleW {
		if math.Abs(ps.Ball.Y-ps.Bars[1]) <= half {
			ps.bounce(1, -1)
			ps.Ball.X = ps.Display.Width - ps.PaddleW
			return true
		}
	}
	return false
}

func (ps *PlayState) bounce(paddle, dir int) {
	offset := (ps.Ball.Y - ps.Bars[paddle]) / (ps.PaddleH / 2)
	offset = Clamp(offset, -1, 1)
	angle := offset * maxBounceAngle
	ps.Ball.VX = float64(dir) * ps.Speed * math.Cos(angle)
	ps.Ball.VY = ps.Speed * math.Sin(angle)
}

// CollideWalls reflects the vertical velocity at the top and bottom
// bounds and clamps the ball inside the display.
func (ps *PlayState) CollideWalls() bool {
	if ps.Ball.Y <= 0 {
		ps.Ball.Y = 0
		if ps.Ball.VY < 0 {
			ps.Ball.VY = -ps.Ball.VY
		}
		return true
	}
	if ps.Ball.Y >= ps.Display.Height {
		ps.Ball.Y = ps.Display.Height
		if ps.Ball.VY > 0 {
			ps.Ball.VY = -ps.Ball.VY
		}
		return true
	}
	return false
}

// Advance integrates the ball position for dt seconds and reports
// whether it moved.
func (ps *PlayState) Advance(dt float64) bool {
	if ps.Ball.VX == 0 && ps.Ball.VY == 0 {
		return false
	}
	ps.Ball.X += ps.Ball.VX * dt
	ps.Ball.Y += ps.Ball.VY * dt
	return true
}

// SetBar clamps and applies a paddle offset.
func (ps *PlayState) SetBar(paddle int, offset float64) float64 {
	offset = Clamp(offset, 0, ps.Display.Height)
	ps.Bars[paddle] = offset
	return offset
}

// BallState copies the current ball for broadcasting.
func (ps *PlayState) BallState() BallMsg {
	return BallMsg{X: ps.Ball.X, Y: ps.Ball.Y, VX: ps.Ball.VX, VY: ps.Ball.VY}
}

// Snap copies the current state into a Snapshot.
func (ps *PlayState) Snap() Snapshot {
	return Snapshot{Tick: ps.Tick, Ball: ps.Ball, Bars: ps.Bars, Score: ps.Score}
}
