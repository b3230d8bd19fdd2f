package match

import (
	"time"

	"github.com/rotisserie/eris"

	"pong-duel/server/internal/game"
)

var (
	ErrNotParticipant = eris.New("player is not a participant in this match")
	ErrInvalidState   = eris.New("command is not valid in the current match state")
	ErrNotPauser      = eris.New("only the player who paused may resume")
)

// Machine owns a match's lifecycle: state, scores, pausedBy and winnerId are
// mutated only here. It is not safe for concurrent use; the room goroutine
// that owns the match is its single caller.
type Machine struct {
	m      Match
	ready  map[string]bool
	reason Reason
}

// NewMachine wraps a freshly created (or reloaded) match record.
func NewMachine(m Match) *Machine {
	if m.State == "" {
		m.State = StateWaiting
	}
	return &Machine{
		m:     m,
		ready: make(map[string]bool, 2),
	}
}

// Snapshot returns a copy of the match record.
func (mc *Machine) Snapshot() Match { return mc.m }

// State returns the current lifecycle state.
func (mc *Machine) State() State { return mc.m.State }

// EndReason returns why the match ended; meaningful only in terminal states.
func (mc *Machine) EndReason() Reason { return mc.reason }

// Side maps a player id onto a field side.
func (mc *Machine) Side(playerID string) game.Side {
	switch playerID {
	case mc.m.P1ID:
		return game.SideLeft
	case mc.m.P2ID:
		return game.SideRight
	}
	return game.SideNone
}

// PlayerID maps a field side back onto a player id.
func (mc *Machine) PlayerID(side game.Side) string {
	switch side {
	case game.SideLeft:
		return mc.m.P1ID
	case game.SideRight:
		return mc.m.P2ID
	}
	return ""
}

// Score returns the current score pair.
func (mc *Machine) Score() game.Score {
	return game.Score{P1: mc.m.P1Score, P2: mc.m.P2Score}
}

// MarkReady records a player's ready flag while waiting. Re-asserting an
// already-set flag is idempotent. Returns true when both players are ready
// and the countdown should begin.
func (mc *Machine) MarkReady(playerID string) (bool, error) {
	if !mc.m.IsParticipant(playerID) {
		return false, ErrNotParticipant
	}
	if mc.m.State != StateWaiting {
		// A ready keepalive that arrives after the countdown started is
		// harmless; anything later is a protocol violation.
		if mc.m.State == StateCountdown && mc.ready[playerID] {
			return false, nil
		}
		return false, ErrInvalidState
	}
	mc.ready[playerID] = true
	return mc.ready[mc.m.P1ID] && mc.ready[mc.m.P2ID], nil
}

// ClearReady drops a player's ready flag, used when they disconnect while
// the match is still waiting.
func (mc *Machine) ClearReady(playerID string) {
	delete(mc.ready, playerID)
}

// BeginCountdown moves waiting → countdown once both players are ready.
func (mc *Machine) BeginCountdown() error {
	if mc.m.State != StateWaiting {
		return ErrInvalidState
	}
	if !mc.ready[mc.m.P1ID] || !mc.ready[mc.m.P2ID] {
		return ErrInvalidState
	}
	mc.m.State = StateCountdown
	return nil
}

// StartPlaying moves countdown → playing when the countdown reaches zero.
func (mc *Machine) StartPlaying() error {
	if mc.m.State != StateCountdown {
		return ErrInvalidState
	}
	mc.m.State = StatePlaying
	if mc.m.StartedAt.IsZero() {
		mc.m.StartedAt = time.Now()
	}
	return nil
}

// Pause freezes a playing match on behalf of the requesting player.
func (mc *Machine) Pause(playerID string) error {
	if !mc.m.IsParticipant(playerID) {
		return ErrNotParticipant
	}
	if mc.m.State != StatePlaying {
		return ErrInvalidState
	}
	mc.m.State = StatePaused
	mc.m.PausedBy = playerID
	return nil
}

// Resume lifts a pause. Only the player recorded in PausedBy may resume;
// the match re-enters countdown before play continues.
func (mc *Machine) Resume(playerID string) error {
	if !mc.m.IsParticipant(playerID) {
		return ErrNotParticipant
	}
	if mc.m.State != StatePaused {
		return ErrInvalidState
	}
	if playerID != mc.m.PausedBy {
		return ErrNotPauser
	}
	mc.m.PausedBy = ""
	mc.m.State = StateCountdown
	return nil
}

// Forfeit ends the match in favor of the non-forfeiting player. Valid from
// any non-terminal state: an explicit forfeit command, a disconnect-grace
// expiry, or a drop mid-countdown all land here.
func (mc *Machine) Forfeit(playerID string, reason Reason) (string, error) {
	if !mc.m.IsParticipant(playerID) {
		return "", ErrNotParticipant
	}
	if mc.m.State.Terminal() {
		return "", ErrInvalidState
	}
	mc.m.State = StateForfeited
	mc.m.PausedBy = ""
	mc.m.WinnerID = mc.m.Opponent(playerID)
	mc.m.EndedAt = time.Now()
	mc.reason = reason
	return mc.m.WinnerID, nil
}

// AddPoint credits one point to the scoring side. When the winning score is
// reached the match ends and the scorer becomes the winner.
func (mc *Machine) AddPoint(scorer game.Side) (bool, error) {
	if mc.m.State != StatePlaying {
		return false, ErrInvalidState
	}
	switch scorer {
	case game.SideLeft:
		mc.m.P1Score++
	case game.SideRight:
		mc.m.P2Score++
	default:
		return false, ErrInvalidState
	}
	if mc.m.P1Score >= game.WinScore || mc.m.P2Score >= game.WinScore {
		mc.m.State = StateEnded
		mc.m.EndedAt = time.Now()
		mc.reason = ReasonScore
		if mc.m.P1Score > mc.m.P2Score {
			mc.m.WinnerID = mc.m.P1ID
		} else {
			mc.m.WinnerID = mc.m.P2ID
		}
		return true, nil
	}
	return false, nil
}
