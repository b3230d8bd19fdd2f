package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pong-duel/server/internal/game"
)

func snap(ts int64, ballX float64) game.Snapshot {
	return game.Snapshot{
		Timestamp: ts,
		Ball:      game.Ball{X: ballX, Y: 0.5},
		P1:        game.Paddle{Y: 0.5},
		P2:        game.Paddle{Y: 0.5},
	}
}

func TestRenderAtEmptyBuffer(t *testing.T) {
	b := NewBuffer()
	_, ok := b.RenderAt(100)
	assert.False(t, ok)
}

func TestRenderAtSingleSnapshotVerbatim(t *testing.T) {
	b := NewBuffer()
	b.Push(snap(10, 0.3))

	got, ok := b.RenderAt(999)
	require.True(t, ok)
	assert.Equal(t, snap(10, 0.3), got)
}

func TestRenderAtInterpolatesBracketingPair(t *testing.T) {
	b := NewBuffer()
	b.Push(snap(0, 0.2))
	b.Push(snap(100, 0.8))

	got, ok := b.RenderAt(50)
	require.True(t, ok)
	assert.InDelta(t, 0.5, got.Ball.X, 1e-9)
	assert.Equal(t, int64(50), got.Timestamp)
}

func TestRenderAtBeyondBufferUsesNewest(t *testing.T) {
	b := NewBuffer()
	b.Push(snap(0, 0.2))
	b.Push(snap(100, 0.8))

	got, ok := b.RenderAt(200)
	require.True(t, ok)
	assert.Equal(t, 0.8, got.Ball.X)
	assert.Equal(t, int64(100), got.Timestamp)
}

func TestRenderAtBeforeBufferUsesNewest(t *testing.T) {
	b := NewBuffer()
	b.Push(snap(100, 0.2))
	b.Push(snap(200, 0.8))

	got, ok := b.RenderAt(50)
	require.True(t, ok)
	assert.Equal(t, 0.8, got.Ball.X, "render times before the window fall through to the newest snapshot")
}

func TestScoreIsNeverInterpolated(t *testing.T) {
	b := NewBuffer()
	s1 := snap(0, 0.2)
	s1.Score = game.Score{P1: 1, P2: 0}
	s2 := snap(100, 0.8)
	s2.Score = game.Score{P1: 2, P2: 0}
	b.Push(s1)
	b.Push(s2)

	got, ok := b.RenderAt(50)
	require.True(t, ok)
	assert.Equal(t, game.Score{P1: 2, P2: 0}, got.Score, "score takes the later snapshot's value")
}

func TestPaddleInterpolation(t *testing.T) {
	b := NewBuffer()
	s1 := snap(0, 0.5)
	s1.P1.Y = 0.2
	s2 := snap(100, 0.5)
	s2.P1.Y = 0.6
	b.Push(s1)
	b.Push(s2)

	got, ok := b.RenderAt(25)
	require.True(t, ok)
	assert.InDelta(t, 0.3, got.P1.Y, 1e-9)
}

func TestBufferEvictsOldest(t *testing.T) {
	b := NewBuffer()
	for i := int64(0); i < 5; i++ {
		b.Push(snap(i*16, float64(i)/10))
	}
	assert.Equal(t, 3, b.Len())

	// The oldest surviving snapshot is t=32; anything earlier renders the
	// bracket starting there.
	got, ok := b.RenderAt(40)
	require.True(t, ok)
	assert.Greater(t, got.Ball.X, 0.2)
}

func TestSampleAppliesRenderDelay(t *testing.T) {
	b := NewBuffer()
	b.Push(snap(0, 0.0))
	b.Push(snap(100, 1.0))

	// Sample at now=100ms renders at ~83ms, inside the bracket.
	got, ok := b.Sample(100)
	require.True(t, ok)
	assert.Greater(t, got.Ball.X, 0.7)
	assert.Less(t, got.Ball.X, 1.0)
}
