package game

import (
	"math"
	"math/rand"
)

// Sim owns the live ball and paddle state for one match. It is advanced
// exclusively by the match's room goroutine; nothing else writes to it.
type Sim struct {
	rng *rand.Rand

	ball  Ball
	p1Y   float64
	p2Y   float64
	p1Dir Direction
	p2Dir Direction

	serveTicks   int
	lastConceded Side
}

// NewSim centers both paddles and schedules the opening serve toward a
// random side.
func NewSim(rng *rand.Rand) *Sim {
	s := &Sim{
		rng: rng,
		p1Y: 0.5,
		p2Y: 0.5,
	}
	s.resetBall(SideNone)
	return s
}

// SetDirection records the latest movement intent for one side. The intent
// takes effect on the next call to Step.
func (s *Sim) SetDirection(side Side, dir Direction) {
	switch side {
	case SideLeft:
		s.p1Dir = dir
	case SideRight:
		s.p2Dir = dir
	}
}

// Ball returns the current ball state.
func (s *Sim) Ball() Ball { return s.ball }

// PaddleY returns the paddle center for the given side.
func (s *Sim) PaddleY(side Side) float64 {
	if side == SideLeft {
		return s.p1Y
	}
	return s.p2Y
}

// Step advances the simulation by dt seconds and returns the side that
// scored during this tick, or SideNone. The ball is re-served automatically
// after a goal, toward the side that conceded.
func (s *Sim) Step(dt float64) Side {
	s.p1Y = clamp(s.p1Y+float64(s.p1Dir)*PaddleSpeed*dt, PaddleHalfHeight, 1-PaddleHalfHeight)
	s.p2Y = clamp(s.p2Y+float64(s.p2Dir)*PaddleSpeed*dt, PaddleHalfHeight, 1-PaddleHalfHeight)

	if s.serveTicks > 0 {
		s.serveTicks--
		if s.serveTicks == 0 {
			s.serve()
		}
		return SideNone
	}

	s.ball.X += s.ball.VX * dt
	s.ball.Y += s.ball.VY * dt

	// Top/bottom wall reflection.
	if s.ball.Y-ballRadius < 0 {
		s.ball.Y = ballRadius
		s.ball.VY = -s.ball.VY
	}
	if s.ball.Y+ballRadius > 1 {
		s.ball.Y = 1 - ballRadius
		s.ball.VY = -s.ball.VY
	}

	// Paddle reflection, only when the ball is moving toward the paddle.
	if s.ball.VX < 0 && s.ball.X-ballRadius <= leftGoalX {
		if math.Abs(s.ball.Y-s.p1Y) <= PaddleHalfHeight+ballRadius {
			s.ball.X = leftGoalX + ballRadius
			s.bounceOffPaddle(s.p1Y, 1)
		}
	}
	if s.ball.VX > 0 && s.ball.X+ballRadius >= rightGoalX {
		if math.Abs(s.ball.Y-s.p2Y) <= PaddleHalfHeight+ballRadius {
			s.ball.X = rightGoalX - ballRadius
			s.bounceOffPaddle(s.p2Y, -1)
		}
	}

	// Goal lines.
	if s.ball.X+ballRadius < 0 {
		s.resetBall(SideLeft)
		return SideRight
	}
	if s.ball.X-ballRadius > 1 {
		s.resetBall(SideRight)
		return SideLeft
	}

	return SideNone
}

// bounceOffPaddle reflects the ball horizontally. The exit angle is derived
// from where the ball struck relative to the paddle center, so returns can
// be aimed; speed grows by a fixed factor per bounce up to a cap.
func (s *Sim) bounceOffPaddle(paddleY float64, dir float64) {
	rel := clamp((s.ball.Y-paddleY)/PaddleHalfHeight, -1, 1)

	speed := math.Hypot(s.ball.VX, s.ball.VY)
	speed = clamp(speed*bounceSpeedUp, serveSpeed, maxBallSpeed)

	angle := rel * maxBounceAngle
	s.ball.VX = dir * speed * math.Cos(angle)
	s.ball.VY = speed * math.Sin(angle)
}

// resetBall parks the ball at center with zero velocity and schedules a
// serve toward the conceding side.
func (s *Sim) resetBall(conceded Side) {
	s.lastConceded = conceded
	s.ball = Ball{X: 0.5, Y: 0.5}
	s.serveTicks = serveDelayTicks
}

func (s *Sim) serve() {
	dir := 1.0
	switch s.lastConceded {
	case SideLeft:
		dir = -1
	case SideRight:
		dir = 1
	default:
		if s.rng.Intn(2) == 0 {
			dir = -1
		}
	}

	angle := (s.rng.Float64()*2 - 1) * maxServeAngle
	s.ball.VX = dir * serveSpeed * math.Cos(angle)
	s.ball.VY = serveSpeed * math.Sin(angle)
}
