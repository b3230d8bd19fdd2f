// Package room hosts the per-match actor: one goroutine per live match
// that owns the state machine and simulation, drains commands between
// ticks, and fans snapshots out to both participants.
package room

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pong-duel/server/internal/game"
	"pong-duel/server/internal/match"
	"pong-duel/server/internal/metrics"
	"pong-duel/server/internal/net/proto"
	"pong-duel/server/internal/service"
)

const (
	inboxSize        = 256
	countdownSeconds = 3
	recordTimeout    = 5 * time.Second
)

// Conn is the transport surface a room needs from a client connection.
// Writes must be safe to call from the room goroutine.
type Conn interface {
	Send(data []byte) error
	Close() error
}

// Config tunes a room's timers.
type Config struct {
	// GracePeriod is how long a dropped player may reconnect before the
	// match is forfeited in their absence.
	GracePeriod time.Duration
	// TickInterval overrides the simulation cadence; tests shrink it.
	TickInterval time.Duration
}

// DefaultConfig mirrors the production tuning.
func DefaultConfig() Config {
	return Config{
		GracePeriod:  10 * time.Second,
		TickInterval: game.TickInterval,
	}
}

type client struct {
	conn    Conn
	profile service.Profile
}

// Room is the single writer for one match. All mutation happens on the
// goroutine running Run; connection handlers only enqueue commands.
type Room struct {
	inbox    chan command
	quit     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	log      zerolog.Logger
	metrics  *metrics.Metrics
	recorder service.ResultRecorder
	profiles service.ProfileResolver
	cfg      Config

	machine *match.Machine
	sim     *game.Sim

	clients    map[string]*client
	graceTicks map[string]int

	countdownLeft int // ticks remaining in an active countdown
	started       bool

	// onStop is invoked once, after the actor loop exits.
	onStop func()
}

// New builds a room for the given match record. Run must be started on its
// own goroutine before any command is enqueued.
func New(m match.Match, cfg Config, recorder service.ResultRecorder, profiles service.ProfileResolver, mets *metrics.Metrics, log zerolog.Logger, onStop func()) *Room {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = game.TickInterval
	}
	return &Room{
		inbox:      make(chan command, inboxSize),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		log:        log.With().Str("match_id", m.ID).Logger(),
		metrics:    mets,
		recorder:   recorder,
		profiles:   profiles,
		cfg:        cfg,
		machine:    match.NewMachine(m),
		sim:        game.NewSim(rand.New(rand.NewSource(time.Now().UnixNano()))),
		clients:    make(map[string]*client, 2),
		graceTicks: make(map[string]int, 2),
		onStop:     onStop,
	}
}

// MatchID returns the id of the match this room hosts.
func (r *Room) MatchID() string { return r.machine.Snapshot().ID }

// Run drives the actor loop: commands are drained as they arrive and the
// simulation advances on a fixed ticker. Returns when the match reaches a
// terminal state or Stop is called.
func (r *Room) Run() {
	defer func() {
		if r.onStop != nil {
			r.onStop()
		}
		close(r.done)
	}()

	if r.metrics != nil {
		r.metrics.ActiveMatches.Inc()
		defer r.metrics.ActiveMatches.Dec()
	}

	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-r.quit:
			r.closeClients()
			return
		case cmd := <-r.inbox:
			r.handleCommand(cmd)
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			if dt <= 0 {
				dt = 1.0 / float64(game.TickRate)
			}
			last = now
			r.handleTick(now, dt)
		}
		if r.machine.State().Terminal() {
			r.closeClients()
			return
		}
	}
}

// Stop aborts the actor without a lifecycle transition. Used on server
// shutdown; normal teardown happens via terminal states.
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.quit) })
}

// Done is closed once the actor loop has exited.
func (r *Room) Done() <-chan struct{} { return r.done }

// Snapshot returns the current match record, for diagnostics.
func (r *Room) Snapshot() match.Match {
	reply := make(chan match.Match, 1)
	if !r.enqueue(command{kind: cmdSnapshot, matchReply: reply}) {
		return match.Match{}
	}
	select {
	case m := <-reply:
		return m
	case <-r.done:
		return match.Match{}
	}
}

// ConnectedPlayers returns how many participants hold a live connection.
func (r *Room) ConnectedPlayers() int {
	reply := make(chan int, 1)
	if !r.enqueue(command{kind: cmdCountClients, intReply: reply}) {
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-r.done:
		return 0
	}
}

func (r *Room) handleTick(now time.Time, dt float64) {
	if r.metrics != nil {
		r.metrics.TicksTotal.Inc()
	}

	// Disconnect grace countdowns run in every non-terminal state.
	for pid, left := range r.graceTicks {
		left--
		if left > 0 {
			r.graceTicks[pid] = left
			continue
		}
		delete(r.graceTicks, pid)
		r.log.Info().Str("player_id", pid).Msg("disconnect grace elapsed, forfeiting")
		r.forfeit(pid, match.ReasonDisconnect)
		return
	}

	switch r.machine.State() {
	case match.StateCountdown:
		r.advanceCountdown()
	case match.StatePlaying:
		scorer := r.sim.Step(dt)
		if scorer != game.SideNone {
			over, err := r.machine.AddPoint(scorer)
			if err != nil {
				r.log.Error().Err(err).Msg("score rejected by state machine")
				return
			}
			if over {
				r.broadcastSnapshot(now)
				r.finish()
				return
			}
		}
		r.broadcastSnapshot(now)
	}
}

func (r *Room) startCountdown() {
	r.countdownLeft = countdownSeconds * game.TickRate
	r.broadcastCountdown(countdownSeconds)
}

func (r *Room) advanceCountdown() {
	if r.countdownLeft <= 0 {
		return
	}
	r.countdownLeft--
	if r.countdownLeft%game.TickRate != 0 {
		return
	}
	r.broadcastCountdown(r.countdownLeft / game.TickRate)
	if r.countdownLeft > 0 {
		return
	}

	if err := r.machine.StartPlaying(); err != nil {
		r.log.Error().Err(err).Msg("countdown finished in unexpected state")
		return
	}
	if !r.started {
		r.started = true
		if r.metrics != nil {
			r.metrics.MatchesStarted.Inc()
		}
		r.log.Info().Msg("match started")
	}
}

// forfeit ends the match in favor of playerID's opponent and tears down.
func (r *Room) forfeit(playerID string, reason match.Reason) {
	if _, err := r.machine.Forfeit(playerID, reason); err != nil {
		r.log.Debug().Err(err).Str("player_id", playerID).Msg("forfeit ignored")
		return
	}
	r.finish()
}

// finish broadcasts the terminal result exactly once and hands the outcome
// to the persistence collaborators. The actor loop exits right after.
func (r *Room) finish() {
	m := r.machine.Snapshot()
	r.broadcast(proto.GameOver{
		Type:     proto.TypeGameOver,
		MatchID:  m.ID,
		WinnerID: m.WinnerID,
		P1Score:  m.P1Score,
		P2Score:  m.P2Score,
		Reason:   r.machine.EndReason(),
	})

	if r.metrics != nil {
		r.metrics.MatchesCompleted.WithLabelValues(string(r.machine.EndReason())).Inc()
	}
	r.log.Info().
		Str("winner_id", m.WinnerID).
		Str("reason", string(r.machine.EndReason())).
		Int("p1_score", m.P1Score).
		Int("p2_score", m.P2Score).
		Msg("match finished")

	if r.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := r.recorder.RecordResult(ctx, m); err != nil {
		r.log.Error().Err(err).Msg("failed to record match result")
	}
	for _, pid := range []string{m.P1ID, m.P2ID} {
		if err := r.recorder.AppendRecentMatch(ctx, pid, m.ID); err != nil {
			r.log.Error().Err(err).Str("player_id", pid).Msg("failed to append recent match")
		}
	}
}

func (r *Room) snapshot(now time.Time) game.Snapshot {
	return game.Snapshot{
		Timestamp: now.UnixMilli(),
		Ball:      r.sim.Ball(),
		P1:        game.Paddle{Y: r.sim.PaddleY(game.SideLeft)},
		P2:        game.Paddle{Y: r.sim.PaddleY(game.SideRight)},
		Score:     r.machine.Score(),
	}
}

func (r *Room) broadcastSnapshot(now time.Time) {
	r.broadcast(proto.StateMessage{
		Type:     proto.TypeState,
		MatchID:  r.MatchID(),
		Snapshot: r.snapshot(now),
	})
	if r.metrics != nil {
		r.metrics.SnapshotsBroadcast.Inc()
	}
}

func (r *Room) broadcastCountdown(seconds int) {
	r.broadcast(proto.Countdown{Type: proto.TypeCountdown, MatchID: r.MatchID(), Seconds: seconds})
}

// broadcast delivers a frame to every connected participant, best effort.
// A failed write starts that player's disconnect grace; it never blocks
// delivery to the other player.
func (r *Room) broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to marshal broadcast frame")
		return
	}
	for pid, c := range r.clients {
		if err := c.conn.Send(data); err != nil {
			r.log.Warn().Err(err).Str("player_id", pid).Msg("broadcast write failed")
			r.dropConnection(pid)
		}
	}
}

// sendTo delivers a frame to one participant.
func (r *Room) sendTo(playerID string, msg any) {
	c, ok := r.clients[playerID]
	if !ok {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to marshal frame")
		return
	}
	if err := c.conn.Send(data); err != nil {
		r.log.Warn().Err(err).Str("player_id", playerID).Msg("write failed")
		r.dropConnection(playerID)
	}
}

func (r *Room) sendError(playerID, code, message string) {
	r.sendTo(playerID, proto.NewError(code, message, r.MatchID()))
}

// dropConnection removes a dead connection and starts the grace window.
func (r *Room) dropConnection(playerID string) {
	c, ok := r.clients[playerID]
	if !ok {
		return
	}
	_ = c.conn.Close()
	delete(r.clients, playerID)

	if r.machine.State().Terminal() {
		return
	}
	if r.machine.State() == match.StateWaiting {
		r.machine.ClearReady(playerID)
	}
	ticks := int(r.cfg.GracePeriod / r.cfg.TickInterval)
	if ticks < 1 {
		ticks = 1
	}
	r.graceTicks[playerID] = ticks
	r.log.Info().Str("player_id", playerID).Dur("grace", r.cfg.GracePeriod).Msg("player absent, grace timer started")
}

func (r *Room) closeClients() {
	for pid, c := range r.clients {
		_ = c.conn.Close()
		delete(r.clients, pid)
	}
}
