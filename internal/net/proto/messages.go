// Package proto defines the JSON frames exchanged over a match websocket.
package proto

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"pong-duel/server/internal/game"
	"pong-duel/server/internal/match"
)

// Client → server message types.
const (
	TypeJoinMatch    = "join_match"
	TypeLeaveMatch   = "leave_match"
	TypeInput        = "input"
	TypeReady        = "ready"
	TypePause        = "pause"
	TypeResume       = "resume"
	TypeRequestState = "request_state"
	TypeForfeit      = "forfeit"
	TypePing         = "ping"
)

// Server → client message types.
const (
	TypeConnectionOK = "connection_ok"
	TypeJoined       = "joined"
	TypeState        = "state"
	TypeCountdown    = "countdown"
	TypePaused       = "paused"
	TypeResumeAt     = "resume"
	TypeGameOver     = "game_over"
	TypeError        = "error"
	TypePong         = "pong"
	TypeLeft         = "left"
)

// Wire error codes.
const (
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeInvalidState  = "INVALID_STATE"
	CodeRateLimit     = "RATE_LIMIT"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeResumeFailed  = "RESUME_FAILED"
	CodeMatchNotFound = "MATCH_NOT_FOUND"
	CodeAlreadyJoined = "ALREADY_JOINED"
)

// ClientMessage is the single inbound frame shape; Type selects which
// fields are meaningful.
type ClientMessage struct {
	Type       string `json:"type"`
	MatchID    string `json:"matchId,omitempty"`
	Direction  string `json:"direction,omitempty"`
	Seq        uint64 `json:"seq,omitempty"`
	ClientTime int64  `json:"clientTime,omitempty"`
}

// Decode parses an inbound frame and rejects frames without a type.
func Decode(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, eris.Wrap(err, "malformed client frame")
	}
	if msg.Type == "" {
		return msg, eris.New("client frame missing type")
	}
	return msg, nil
}

// MatchSummary is the match record subset sent in join acknowledgments.
type MatchSummary struct {
	ID      string      `json:"id"`
	P1ID    string      `json:"p1Id"`
	P2ID    string      `json:"p2Id"`
	State   match.State `json:"state"`
	P1Score int         `json:"p1Score"`
	P2Score int         `json:"p2Score"`
}

// Summarize trims a match record down to its wire form.
func Summarize(m match.Match) MatchSummary {
	return MatchSummary{
		ID:      m.ID,
		P1ID:    m.P1ID,
		P2ID:    m.P2ID,
		State:   m.State,
		P1Score: m.P1Score,
		P2Score: m.P2Score,
	}
}

// PlayerProfile carries display-only labels resolved from the profile
// collaborator. Never used for authorization.
type PlayerProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

type ConnectionOK struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	MatchID string `json:"matchId,omitempty"`
}

type Joined struct {
	Type     string          `json:"type"`
	MatchID  string          `json:"matchId"`
	PlayerID string          `json:"playerId"`
	Match    MatchSummary    `json:"match"`
	Players  []PlayerProfile `json:"players,omitempty"`
}

// StateMessage wraps one simulation snapshot for broadcast.
type StateMessage struct {
	Type    string `json:"type"`
	MatchID string `json:"matchId"`
	game.Snapshot
}

type Countdown struct {
	Type    string `json:"type"`
	MatchID string `json:"matchId"`
	Seconds int    `json:"seconds"`
}

type Paused struct {
	Type      string `json:"type"`
	MatchID   string `json:"matchId"`
	By        string `json:"by"`
	Timestamp int64  `json:"timestamp"`
}

type ResumeAt struct {
	Type    string `json:"type"`
	MatchID string `json:"matchId"`
	At      int64  `json:"at"`
}

type GameOver struct {
	Type     string       `json:"type"`
	MatchID  string       `json:"matchId"`
	WinnerID string       `json:"winnerId"`
	P1Score  int          `json:"p1Score"`
	P2Score  int          `json:"p2Score"`
	Reason   match.Reason `json:"reason"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	MatchID string `json:"matchId,omitempty"`
}

type Pong struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type Left struct {
	Type    string `json:"type"`
	MatchID string `json:"matchId"`
}

// NewError builds an error frame for the given code.
func NewError(code, message, matchID string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Code: code, Message: message, MatchID: matchID}
}

// ErrorCode maps a state machine error onto its wire code.
func ErrorCode(err error) string {
	switch {
	case eris.Is(err, match.ErrNotParticipant):
		return CodeUnauthorized
	case eris.Is(err, match.ErrNotPauser):
		return CodeResumeFailed
	case eris.Is(err, match.ErrInvalidState):
		return CodeInvalidState
	}
	return CodeInvalidInput
}
