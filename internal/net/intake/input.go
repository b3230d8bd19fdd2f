// Package intake validates and sequences client input before it reaches a
// match's simulation.
package intake

import (
	"time"

	"pong-duel/server/internal/game"
	"pong-duel/server/internal/net/proto"
)

// Reject reasons returned by Stage.
const (
	RejectRateLimit = "rate_limit"
	RejectStaleSeq  = "stale_seq"
	RejectDirection = "invalid_direction"
)

const (
	inputPerSecond = 60
	inputBurst     = 90
)

// Limiter is a token bucket refilled continuously at a fixed rate.
type Limiter struct {
	capacity float64
	refill   float64
	tokens   float64
	last     time.Time
}

// NewLimiter builds a bucket allowing perSecond sustained messages with a
// burst headroom.
func NewLimiter(perSecond, burst float64) *Limiter {
	return &Limiter{capacity: burst, refill: perSecond, tokens: burst}
}

// Allow consumes one token if available.
func (l *Limiter) Allow(now time.Time) bool {
	if !l.last.IsZero() {
		elapsed := now.Sub(l.last).Seconds()
		if elapsed > 0 {
			l.tokens += elapsed * l.refill
			if l.tokens > l.capacity {
				l.tokens = l.capacity
			}
		}
	}
	l.last = now
	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}

// Pipeline holds the per-connection input state: a rate limiter and the
// highest sequence number applied so far. It reconstructs no timeline;
// stale re-sends are simply dropped.
type Pipeline struct {
	limiter *Limiter
	lastSeq uint64
}

// NewPipeline builds a pipeline tuned to the client's 60 Hz input cadence.
func NewPipeline() *Pipeline {
	return &Pipeline{limiter: NewLimiter(inputPerSecond, inputBurst)}
}

// LastSeq returns the highest sequence number accepted on this connection.
func (p *Pipeline) LastSeq() uint64 { return p.lastSeq }

// Stage validates one input frame. On success it returns the parsed paddle
// direction; otherwise ok is false and reason names the rejection.
func (p *Pipeline) Stage(msg proto.ClientMessage, now time.Time) (game.Direction, bool, string) {
	if !p.limiter.Allow(now) {
		return game.DirStop, false, RejectRateLimit
	}
	if msg.Seq <= p.lastSeq {
		return game.DirStop, false, RejectStaleSeq
	}
	dir, ok := game.ParseDirection(msg.Direction)
	if !ok {
		return game.DirStop, false, RejectDirection
	}
	p.lastSeq = msg.Seq
	return dir, true, ""
}
