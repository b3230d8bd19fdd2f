package room

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"pong-duel/server/internal/metrics"
	"pong-duel/server/internal/net/proto"
	"pong-duel/server/internal/service"
)

// Manager maps match ids onto live rooms. Rooms are created on the first
// join against a known match and removed once their actor loop exits, so
// there is never more than one simulation loop per match.
type Manager struct {
	mu    sync.Mutex
	rooms map[string]*Room

	matches  service.MatchService
	recorder service.ResultRecorder
	profiles service.ProfileResolver
	metrics  *metrics.Metrics
	cfg      Config
	log      zerolog.Logger
}

// NewManager builds an empty registry.
func NewManager(matches service.MatchService, recorder service.ResultRecorder, profiles service.ProfileResolver, mets *metrics.Metrics, cfg Config, log zerolog.Logger) *Manager {
	return &Manager{
		rooms:    make(map[string]*Room),
		matches:  matches,
		recorder: recorder,
		profiles: profiles,
		metrics:  mets,
		cfg:      cfg,
		log:      log,
	}
}

// Room returns the live room for matchID, starting one if the match exists
// and has not finished. The second return is a wire error code, "" on
// success.
func (mgr *Manager) Room(ctx context.Context, matchID string) (*Room, string) {
	mgr.mu.Lock()
	if r, ok := mgr.rooms[matchID]; ok {
		mgr.mu.Unlock()
		return r, ""
	}
	mgr.mu.Unlock()

	// Fetch outside the lock; the collaborator call may be remote.
	m, ok, err := mgr.matches.GetMatch(ctx, matchID)
	if err != nil {
		mgr.log.Error().Err(err).Str("match_id", matchID).Msg("match lookup failed")
		return nil, proto.CodeMatchNotFound
	}
	if !ok {
		return nil, proto.CodeMatchNotFound
	}
	// A decided match is never revived, even against a store that failed to
	// persist the terminal state.
	if m.State.Terminal() || m.WinnerID != "" {
		return nil, proto.CodeInvalidState
	}

	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if r, ok := mgr.rooms[matchID]; ok {
		return r, ""
	}

	r := New(m, mgr.cfg, mgr.recorder, mgr.profiles, mgr.metrics, mgr.log, func() {
		mgr.remove(matchID)
	})
	mgr.rooms[matchID] = r
	go r.Run()
	mgr.log.Info().Str("match_id", matchID).Msg("room started")
	return r, ""
}

// Lookup returns an already-running room without creating one.
func (mgr *Manager) Lookup(matchID string) (*Room, bool) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	r, ok := mgr.rooms[matchID]
	return r, ok
}

func (mgr *Manager) remove(matchID string) {
	mgr.mu.Lock()
	delete(mgr.rooms, matchID)
	mgr.mu.Unlock()
	mgr.log.Info().Str("match_id", matchID).Msg("room stopped")
}

// ActiveRooms returns the rooms currently running, for diagnostics.
func (mgr *Manager) ActiveRooms() []*Room {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	out := make([]*Room, 0, len(mgr.rooms))
	for _, r := range mgr.rooms {
		out = append(out, r)
	}
	return out
}

// Shutdown stops every live room and waits for their loops to exit.
func (mgr *Manager) Shutdown() {
	mgr.mu.Lock()
	rooms := make([]*Room, 0, len(mgr.rooms))
	for _, r := range mgr.rooms {
		rooms = append(rooms, r)
	}
	mgr.mu.Unlock()

	for _, r := range rooms {
		r.Stop()
	}
	for _, r := range rooms {
		<-r.Done()
	}
}
