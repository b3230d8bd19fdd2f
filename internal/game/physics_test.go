package game

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dt = 1.0 / TickRate

func newTestSim() *Sim {
	return NewSim(rand.New(rand.NewSource(1)))
}

func drainServe(s *Sim) {
	for i := 0; i < serveDelayTicks; i++ {
		s.Step(dt)
	}
}

func TestPaddleMovementClampsToField(t *testing.T) {
	s := newTestSim()
	s.SetDirection(SideLeft, DirUp)
	s.SetDirection(SideRight, DirDown)

	for i := 0; i < TickRate*5; i++ {
		s.Step(dt)
	}

	assert.Equal(t, PaddleHalfHeight, s.PaddleY(SideLeft))
	assert.Equal(t, 1-PaddleHalfHeight, s.PaddleY(SideRight))
}

func TestPaddleStopsOnStopIntent(t *testing.T) {
	s := newTestSim()
	s.SetDirection(SideLeft, DirDown)
	s.Step(dt)
	moved := s.PaddleY(SideLeft)
	require.Greater(t, moved, 0.5)

	s.SetDirection(SideLeft, DirStop)
	s.Step(dt)
	assert.Equal(t, moved, s.PaddleY(SideLeft))
}

func TestWallBounceFlipsVerticalVelocity(t *testing.T) {
	s := newTestSim()
	drainServe(s)

	s.ball = Ball{X: 0.5, Y: ballRadius + 0.001, VX: 0.2, VY: -0.5}
	s.Step(dt)

	require.Greater(t, s.ball.VY, 0.0, "vy should flip at the top wall")
	assert.GreaterOrEqual(t, s.ball.Y, ballRadius)
}

func TestPaddleBounceSpeedsUpAndAims(t *testing.T) {
	s := newTestSim()
	drainServe(s)

	// Strike the lower half of the left paddle head-on.
	s.p1Y = 0.5
	s.ball = Ball{X: leftGoalX + ballRadius + 0.001, Y: 0.55, VX: -serveSpeed, VY: 0}
	before := math.Hypot(s.ball.VX, s.ball.VY)

	scored := s.Step(dt)
	require.Equal(t, SideNone, scored)

	after := math.Hypot(s.ball.VX, s.ball.VY)
	assert.Greater(t, s.ball.VX, 0.0, "ball should reflect toward the right")
	assert.Greater(t, s.ball.VY, 0.0, "low strike should aim downward")
	assert.InDelta(t, before*bounceSpeedUp, after, 1e-9)
}

func TestBounceSpeedIsCapped(t *testing.T) {
	s := newTestSim()
	drainServe(s)

	s.p1Y = 0.5
	s.ball = Ball{X: leftGoalX + ballRadius + 0.001, Y: 0.5, VX: -maxBallSpeed, VY: 0}
	s.Step(dt)

	assert.LessOrEqual(t, math.Hypot(s.ball.VX, s.ball.VY), maxBallSpeed+1e-9)
}

func TestMissedBallScoresForOpponent(t *testing.T) {
	s := newTestSim()
	drainServe(s)

	// Ball sails past the left paddle.
	s.p1Y = 0.9
	s.ball = Ball{X: 0.01, Y: 0.2, VX: -1.0, VY: 0}

	var scorer Side
	for i := 0; i < 10; i++ {
		if scorer = s.Step(dt); scorer != SideNone {
			break
		}
	}

	require.Equal(t, SideRight, scorer)
	assert.Equal(t, Ball{X: 0.5, Y: 0.5}, s.Ball(), "ball resets to center with no velocity")
}

func TestReserveTargetsConcedingSide(t *testing.T) {
	s := newTestSim()
	drainServe(s)

	s.p1Y = 0.9
	s.ball = Ball{X: 0.01, Y: 0.2, VX: -1.0, VY: 0}
	for s.Step(dt) == SideNone {
	}

	drainServe(s)
	assert.Less(t, s.Ball().VX, 0.0, "serve goes back toward the side that conceded")
}

func TestServeDelayHoldsBallAtCenter(t *testing.T) {
	s := newTestSim()

	for i := 0; i < serveDelayTicks-1; i++ {
		s.Step(dt)
		assert.Equal(t, Ball{X: 0.5, Y: 0.5}, s.Ball())
	}

	s.Step(dt)
	speed := math.Hypot(s.Ball().VX, s.Ball().VY)
	assert.InDelta(t, serveSpeed, speed, 1e-9)
}

func TestParseDirection(t *testing.T) {
	cases := []struct {
		in   string
		dir  Direction
		ok   bool
	}{
		{"up", DirUp, true},
		{"down", DirDown, true},
		{"stop", DirStop, true},
		{"left", DirStop, false},
		{"", DirStop, false},
	}
	for _, tc := range cases {
		dir, ok := ParseDirection(tc.in)
		assert.Equal(t, tc.dir, dir, tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
	}
}
