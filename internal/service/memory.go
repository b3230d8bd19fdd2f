package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"pong-duel/server/internal/match"
)

var (
	ErrSamePlayer    = eris.New("a match needs two distinct players")
	ErrEmptyPlayerID = eris.New("player ids must be non-empty")
)

// MemoryStore is an in-process implementation of all collaborator
// interfaces, used by the default wiring and by tests. A deployment backed
// by real user/match services swaps it out at app construction.
type MemoryStore struct {
	mu       sync.Mutex
	matches  map[string]match.Match
	recent   map[string][]string
	profiles map[string]Profile
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		matches:  make(map[string]match.Match),
		recent:   make(map[string][]string),
		profiles: make(map[string]Profile),
	}
}

// CreateMatch mints a match record in the waiting state.
func (s *MemoryStore) CreateMatch(_ context.Context, p1ID, p2ID string) (match.Match, error) {
	if p1ID == "" || p2ID == "" {
		return match.Match{}, ErrEmptyPlayerID
	}
	if p1ID == p2ID {
		return match.Match{}, ErrSamePlayer
	}

	m := match.Match{
		ID:        uuid.NewString(),
		P1ID:      p1ID,
		P2ID:      p2ID,
		State:     match.StateWaiting,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.matches[m.ID] = m
	s.mu.Unlock()
	return m, nil
}

// GetMatch fetches a match record by id.
func (s *MemoryStore) GetMatch(_ context.Context, matchID string) (match.Match, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	return m, ok, nil
}

// RecordResult stores the terminal match record. The stored state flips to
// ended/forfeited here, so a finished match can never be joined again.
func (s *MemoryStore) RecordResult(_ context.Context, result match.Match) error {
	if !result.State.Terminal() {
		return eris.Errorf("record result: match %s is not terminal", result.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[result.ID]
	if !ok {
		return eris.Errorf("record result: unknown match %s", result.ID)
	}
	m.State = result.State
	m.WinnerID = result.WinnerID
	m.P1Score = result.P1Score
	m.P2Score = result.P2Score
	m.PausedBy = ""
	m.EndedAt = result.EndedAt
	if m.EndedAt.IsZero() {
		m.EndedAt = time.Now()
	}
	s.matches[result.ID] = m
	return nil
}

// AppendRecentMatch adds a match to a player's recent-match list.
func (s *MemoryStore) AppendRecentMatch(_ context.Context, playerID, matchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent[playerID] = append(s.recent[playerID], matchID)
	return nil
}

// RecentMatches returns a player's recent match ids, newest last.
func (s *MemoryStore) RecentMatches(playerID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.recent[playerID]))
	copy(out, s.recent[playerID])
	return out
}

// SetProfile seeds a display profile.
func (s *MemoryStore) SetProfile(userID string, p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = p
}

// ResolveDisplayProfile returns the stored profile, or a fallback built
// from the user id so broadcasts always have a label.
func (s *MemoryStore) ResolveDisplayProfile(_ context.Context, userID string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[userID]; ok {
		return p, nil
	}
	return Profile{DisplayName: userID}, nil
}
