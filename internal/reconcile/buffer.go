// Package reconcile is the client-side rendering aid: it buffers the last
// few authoritative snapshots and produces interpolated views so rendering
// stays smooth across network jitter. It performs no I/O of its own.
package reconcile

import (
	"pong-duel/server/internal/game"
)

// RenderDelay is the intentional rendering lag, one simulation tick, that
// gives interpolation a bracketing pair to work with.
const RenderDelay = game.TickInterval

const bufferSize = 3

// Buffer retains the last three snapshots in insertion order. The oldest
// is discarded on overflow; there is no history beyond that.
type Buffer struct {
	snaps []game.Snapshot
}

// NewBuffer returns an empty snapshot buffer.
func NewBuffer() *Buffer {
	return &Buffer{snaps: make([]game.Snapshot, 0, bufferSize)}
}

// Push appends a received snapshot, evicting the oldest when full.
func (b *Buffer) Push(s game.Snapshot) {
	if len(b.snaps) == bufferSize {
		copy(b.snaps, b.snaps[1:])
		b.snaps = b.snaps[:bufferSize-1]
	}
	b.snaps = append(b.snaps, s)
}

// Len returns the number of buffered snapshots.
func (b *Buffer) Len() int { return len(b.snaps) }

// Sample renders for wall-clock time now, shifted back by RenderDelay.
func (b *Buffer) Sample(nowMillis int64) (game.Snapshot, bool) {
	return b.RenderAt(nowMillis - RenderDelay.Milliseconds())
}

// RenderAt produces the view for the given render time: the interpolation
// of the bracketing snapshot pair, or the most recent snapshot verbatim
// when the render time falls outside the buffered range. Scores are never
// interpolated; they take the later snapshot's value.
func (b *Buffer) RenderAt(renderMillis int64) (game.Snapshot, bool) {
	switch len(b.snaps) {
	case 0:
		return game.Snapshot{}, false
	case 1:
		return b.snaps[0], true
	}

	for i := 0; i < len(b.snaps)-1; i++ {
		s1, s2 := b.snaps[i], b.snaps[i+1]
		if s1.Timestamp <= renderMillis && renderMillis <= s2.Timestamp {
			return lerp(s1, s2, renderMillis), true
		}
	}

	return b.snaps[len(b.snaps)-1], true
}

func lerp(s1, s2 game.Snapshot, renderMillis int64) game.Snapshot {
	span := s2.Timestamp - s1.Timestamp
	if span <= 0 {
		return s2
	}
	t := clamp(float64(renderMillis-s1.Timestamp)/float64(span), 0, 1)

	out := s2
	out.Timestamp = renderMillis
	out.Ball.X = s1.Ball.X + (s2.Ball.X-s1.Ball.X)*t
	out.Ball.Y = s1.Ball.Y + (s2.Ball.Y-s1.Ball.Y)*t
	out.P1.Y = s1.P1.Y + (s2.P1.Y-s1.P1.Y)*t
	out.P2.Y = s1.P2.Y + (s2.P2.Y-s1.P2.Y)*t
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
