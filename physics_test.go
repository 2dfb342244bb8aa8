package main

import (
	"math"
	"testing"
)

func newTestPlayState() *PlayState {
	return NewPlayState(TestConfig(), GameOption{})
}

func TestServeNeverStationary(t *testing.T) {
	ps := newTestPlayState()
	for i := 0; i < 100; i++ {
		ps.Serve(0)
		if ps.Ball.VX == 0 {
			t.Fatal("serve produced a stationary ball")
		}
		if ps.Ball.X != ps.Display.Width/2 || ps.Ball.Y != ps.Display.Height/2 {
			t.Fatalf("serve not centered: (%v, %v)", ps.Ball.X, ps.Ball.Y)
		}
		speed := math.Hypot(ps.Ball.VX, ps.Ball.VY)
		if math.Abs(speed-ps.Speed) > 1e-9 {
			t.Fatalf("serve speed %v, want %v", speed, ps.Speed)
		}
	}
}

func TestServeDirectionUnbiased(t *testing.T) {
	ps := newTestPlayState()
	left, right := 0, 0
	for i := 0; i < 200; i++ {
		ps.Serve(0)
		if ps.Ball.VX < 0 {
			left++
		} else {
			right++
		}
	}
	if left == 0 || right == 0 {
		t.Errorf("serve direction biased: left=%d right=%d", left, right)
	}
}

func TestGoalScoresAndServesTowardConceder(t *testing.T) {
	ps := newTestPlayState()

	// Ball crossed the left goal-line: the right player (index 1) scores.
	ps.Ball.X = -5
	scorer := ps.CheckGoal()
	if scorer != 1 {
		t.Fatalf("scorer = %d, want 1", scorer)
	}
	if ps.Score != [2]int{0, 1} {
		t.Fatalf("score = %v, want [0 1]", ps.Score)
	}
	if ps.Ball.VX >= 0 {
		t.Errorf("re-serve should move toward the conceding left player, VX = %v", ps.Ball.VX)
	}

	// And symmetrically on the right goal-line.
	ps.Ball.X = ps.Display.Width + 5
	if scorer := ps.CheckGoal(); scorer != 0 {
		t.Fatalf("scorer = %d, want 0", scorer)
	}
	if ps.Ball.VX <= 0 {
		t.Errorf("re-serve should move toward the conceding right player, VX = %v", ps.Ball.VX)
	}
}

func TestScoreIncrementsByOne(t *testing.T) {
	ps := newTestPlayState()
	prev := ps.Score
	for i := 0; i < 5; i++ {
		ps.Ball.X = -1
		ps.CheckGoal()
		if ps.Score[1] != prev[1]+1 {
			t.Fatalf("score jumped from %d to %d", prev[1], ps.Score[1])
		}
		prev = ps.Score
	}
}

func TestWinnerThreshold(t *testing.T) {
	ps := newTestPlayState()
	if ps.Winner() != -1 {
		t.Fatal("fresh game should have no winner")
	}
	ps.Score[0] = ps.WinScore
	if ps.Winner() != 0 {
		t.Fatalf("winner = %d, want 0", ps.Winner())
	}
}

func TestPaddleDeflection(t *testing.T) {
	ps := newTestPlayState()
	bar := ps.Bars[0]

	// Hit the left paddle above center: horizontal velocity reflects,
	// vertical velocity points down-field proportionally.
	ps.Ball = Ball{X: ps.PaddleW - 1, Y: bar + ps.PaddleH/4, VX: -ps.Speed, VY: 0}
	if !ps.CollidePaddles() {
		t.Fatal("expected paddle hit")
	}
	if ps.Ball.VX <= 0 {
		t.Errorf("VX = %v, want reflected to positive", ps.Ball.VX)
	}
	if ps.Ball.VY <= 0 {
		t.Errorf("VY = %v, want positive for an above-center hit", ps.Ball.VY)
	}
	if ps.Ball.X != ps.PaddleW {
		t.Errorf("ball not clamped to paddle plane: %v", ps.Ball.X)
	}
}

func TestPaddleDeflectionCapped(t *testing.T) {
	ps := newTestPlayState()
	bar := ps.Bars[0]

	// An edge hit must not exceed the maximum bounce angle.
	ps.Ball = Ball{X: 0, Y: bar + ps.PaddleH/2, VX: -ps.Speed, VY: 0}
	if !ps.CollidePaddles() {
		t.Fatal("expected paddle hit")
	}
	angle := math.Atan2(ps.Ball.VY, ps.Ball.VX)
	if angle > maxBounceAngle+1e-9 {
		t.Errorf("bounce angle %v exceeds cap %v", angle, maxBounceAngle)
	}
}

func TestPaddleMissNoReflection(t *testing.T) {
	ps := newTestPlayState()
	ps.Ball = Ball{X: ps.PaddleW - 1, Y: ps.Bars[0] + ps.PaddleH, VX: -ps.Speed, VY: 0}
	if ps.CollidePaddles() {
		t.Fatal("ball beyond the paddle extent must not reflect")
	}
}

func TestWallCollisionKeepsBallInBounds(t *testing.T) {
	ps := newTestPlayState()
	ps.Ball = Ball{X: ps.Display.Width / 2, Y: 10, VX: 0.2 * ps.Speed, VY: -ps.Speed}

	dt := 0.03
	for i := 0; i < 500; i++ {
		ps.CollidePaddles()
		ps.CollideWalls()
		if ps.Ball.Y < 0 || ps.Ball.Y > ps.Display.Height {
			t.Fatalf("tick %d: ball Y %v out of [0, %v] after wall step", i, ps.Ball.Y, ps.Display.Height)
		}
		ps.Advance(dt)
		// Keep the rally going for the horizontal axis.
		if ps.Ball.X <= 0 || ps.Ball.X >= ps.Display.Width {
			ps.Ball.VX = -ps.Ball.VX
			ps.Ball.X = Clamp(ps.Ball.X, 1, ps.Display.Width-1)
		}
	}
}

func TestWallReflectsVerticalVelocity(t *testing.T) {
	ps := newTestPlayState()
	ps.Ball = Ball{X: 500, Y: -3, VX: 100, VY: -200}
	if !ps.CollideWalls() {
		t.Fatal("expected top wall hit")
	}
	if ps.Ball.Y != 0 || ps.Ball.VY != 200 {
		t.Errorf("after top bounce: Y=%v VY=%v", ps.Ball.Y, ps.Ball.VY)
	}

	ps.Ball = Ball{X: 500, Y: ps.Display.Height + 3, VX: 100, VY: 200}
	if !ps.CollideWalls() {
		t.Fatal("expected bottom wall hit")
	}
	if ps.Ball.Y != ps.Display.Height || ps.Ball.VY != -200 {
		t.Errorf("after bottom bounce: Y=%v VY=%v", ps.Ball.Y, ps.Ball.VY)
	}
}

func TestAdvanceIntegratesVelocity(t *testing.T) {
	ps := newTestPlayState()
	ps.Ball = Ball{X: 100, Y: 100, VX: 200, VY: -100}
	if !ps.Advance(0.03) {
		t.Fatal("moving ball should report a change")
	}
	if ps.Ball.X != 106 || ps.Ball.Y != 97 {
		t.Errorf("ball at (%v, %v), want (106, 97)", ps.Ball.X, ps.Ball.Y)
	}
}

func TestSpeedModeMultiplier(t *testing.T) {
	cfg := TestConfig()
	slow := NewPlayState(cfg, GameOption{Mode: 0})
	fast := NewPlayState(cfg, GameOption{Mode: 1})
	if fast.Speed <= slow.Speed {
		t.Errorf("speed mode: fast %v should exceed %v", fast.Speed, slow.Speed)
	}
}

func TestSetBarClamps(t *testing.T) {
	ps := newTestPlayState()
	if got := ps.SetBar(0, -50); got != 0 {
		t.Errorf("SetBar(-50) = %v, want 0", got)
	}
	if got := ps.SetBar(1, ps.Display.Height+50); got != ps.Display.Height {
		t.Errorf("SetBar(over) = %v, want %v", got, ps.Display.Height)
	}
}
