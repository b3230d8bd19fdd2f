package game

import "time"

const (
	TickRate     = 60 // simulation ticks per second
	TickInterval = time.Second / TickRate

	WinScore = 11

	// Playfield is normalized to [0,1] on both axes.
	PaddleHalfHeight = 0.1
	PaddleSpeed      = 0.9 // field heights per second
	paddleMargin     = 0.02
	paddleWidth      = 0.015
	ballRadius       = 0.015

	serveSpeed     = 0.55 // field widths per second
	maxBallSpeed   = 1.6
	bounceSpeedUp  = 1.05
	maxBounceAngle = 0.9 // radians, ~51 degrees
	maxServeAngle  = 0.4

	serveDelayTicks = 45 // ~0.75s between a goal and the next serve
)

const (
	leftGoalX  = paddleMargin + paddleWidth
	rightGoalX = 1 - leftGoalX
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
