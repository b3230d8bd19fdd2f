package match

import "time"

// State is a match lifecycle phase.
type State string

const (
	StateWaiting   State = "waiting"
	StateCountdown State = "countdown"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateEnded     State = "ended"
	StateForfeited State = "forfeited"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateForfeited
}

// Reason explains why a match reached a terminal state.
type Reason string

const (
	ReasonScore      Reason = "score"
	ReasonForfeit    Reason = "forfeit"
	ReasonDisconnect Reason = "disconnect"
)

// Match is the authoritative record for one two-player match. The state
// machine is its only writer; everything else receives copies.
type Match struct {
	ID       string `json:"id"`
	P1ID     string `json:"p1Id"`
	P2ID     string `json:"p2Id"`
	State    State  `json:"state"`
	P1Score  int    `json:"p1Score"`
	P2Score  int    `json:"p2Score"`
	WinnerID string `json:"winnerId,omitempty"`
	PausedBy string `json:"pausedBy,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	StartedAt time.Time `json:"startedAt,omitzero"`
	EndedAt   time.Time `json:"endedAt,omitzero"`
}

// Opponent returns the other participant's id, or "" for a non-participant.
func (m Match) Opponent(playerID string) string {
	switch playerID {
	case m.P1ID:
		return m.P2ID
	case m.P2ID:
		return m.P1ID
	}
	return ""
}

// IsParticipant reports whether playerID is one of the two players.
func (m Match) IsParticipant(playerID string) bool {
	return playerID == m.P1ID || playerID == m.P2ID
}
