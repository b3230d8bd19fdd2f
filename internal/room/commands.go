package room

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"pong-duel/server/internal/game"
	"pong-duel/server/internal/match"
	"pong-duel/server/internal/net/proto"
	"pong-duel/server/internal/service"
)

type cmdKind int

const (
	cmdJoin cmdKind = iota
	cmdLeave
	cmdReady
	cmdPause
	cmdResume
	cmdForfeit
	cmdInput
	cmdRequestState
	cmdDisconnect
	cmdSnapshot
	cmdCountClients
)

// command is the single envelope drained by the actor loop. Connection
// handlers never touch room state directly; they enqueue one of these.
type command struct {
	kind     cmdKind
	playerID string
	conn     Conn
	dir      game.Direction

	reply      chan string // join ack: "" on success, else an error code
	matchReply chan match.Match
	intReply   chan int
}

func (r *Room) enqueue(cmd command) bool {
	select {
	case r.inbox <- cmd:
		return true
	case <-r.done:
		return false
	}
}

// Join attaches a connection to the match. It blocks until the actor has
// processed the join and returns "" on success or a wire error code. On
// success the joined ack and a resync snapshot have already been written
// to conn, in that order.
func (r *Room) Join(playerID string, conn Conn) string {
	reply := make(chan string, 1)
	if !r.enqueue(command{kind: cmdJoin, playerID: playerID, conn: conn, reply: reply}) {
		return proto.CodeMatchNotFound
	}
	select {
	case code := <-reply:
		return code
	case <-r.done:
		return proto.CodeMatchNotFound
	}
}

// Leave detaches the player and forfeits the match if it is still live.
func (r *Room) Leave(playerID string) {
	r.enqueue(command{kind: cmdLeave, playerID: playerID})
}

// HandleDisconnect reports an abrupt transport loss; the player keeps the
// grace window to reconnect before a forfeit.
func (r *Room) HandleDisconnect(playerID string) {
	r.enqueue(command{kind: cmdDisconnect, playerID: playerID})
}

// Ready flags the player as ready to start.
func (r *Room) Ready(playerID string) {
	r.enqueue(command{kind: cmdReady, playerID: playerID})
}

// Pause freezes a playing match.
func (r *Room) Pause(playerID string) {
	r.enqueue(command{kind: cmdPause, playerID: playerID})
}

// Resume lifts a pause; only accepted from the pauser.
func (r *Room) Resume(playerID string) {
	r.enqueue(command{kind: cmdResume, playerID: playerID})
}

// Forfeit concedes the match.
func (r *Room) Forfeit(playerID string) {
	r.enqueue(command{kind: cmdForfeit, playerID: playerID})
}

// Input stages a validated paddle direction; it takes effect on the next
// tick.
func (r *Room) Input(playerID string, dir game.Direction) {
	r.enqueue(command{kind: cmdInput, playerID: playerID, dir: dir})
}

// RequestState re-sends the current snapshot to the requester.
func (r *Room) RequestState(playerID string) {
	r.enqueue(command{kind: cmdRequestState, playerID: playerID})
}

func (r *Room) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdJoin:
		cmd.reply <- r.handleJoin(cmd.playerID, cmd.conn)
	case cmdLeave:
		r.handleLeave(cmd.playerID)
	case cmdDisconnect:
		r.dropConnection(cmd.playerID)
	case cmdReady:
		r.handleReady(cmd.playerID)
	case cmdPause:
		r.handlePause(cmd.playerID)
	case cmdResume:
		r.handleResume(cmd.playerID)
	case cmdForfeit:
		r.handleForfeit(cmd.playerID)
	case cmdInput:
		r.handleInput(cmd.playerID, cmd.dir)
	case cmdRequestState:
		r.sendTo(cmd.playerID, proto.StateMessage{
			Type:     proto.TypeState,
			MatchID:  r.MatchID(),
			Snapshot: r.snapshot(time.Now()),
		})
	case cmdSnapshot:
		cmd.matchReply <- r.machine.Snapshot()
	case cmdCountClients:
		cmd.intReply <- len(r.clients)
	}
}

func (r *Room) handleJoin(playerID string, conn Conn) string {
	m := r.machine.Snapshot()
	if !m.IsParticipant(playerID) {
		return proto.CodeUnauthorized
	}
	if m.State.Terminal() {
		return proto.CodeInvalidState
	}

	// A re-join during the grace window replaces the stale connection and
	// cancels the forfeit timer.
	if existing, ok := r.clients[playerID]; ok {
		_ = existing.conn.Close()
		delete(r.clients, playerID)
	}
	delete(r.graceTicks, playerID)

	r.clients[playerID] = &client{conn: conn, profile: r.resolveProfile(playerID)}
	r.log.Info().Str("player_id", playerID).Msg("player joined")

	r.sendTo(playerID, proto.Joined{
		Type:     proto.TypeJoined,
		MatchID:  m.ID,
		PlayerID: playerID,
		Match:    proto.Summarize(m),
		Players:  r.playerProfiles(m),
	})
	r.sendTo(playerID, proto.StateMessage{
		Type:     proto.TypeState,
		MatchID:  m.ID,
		Snapshot: r.snapshot(time.Now()),
	})
	// If the ack writes already failed, dropConnection has removed the
	// client and started the grace window. The join itself succeeded; the
	// dead transport follows the normal disconnect path.
	return ""
}

func (r *Room) handleLeave(playerID string) {
	c, ok := r.clients[playerID]
	if !ok {
		return
	}
	r.sendTo(playerID, proto.Left{Type: proto.TypeLeft, MatchID: r.MatchID()})
	_ = c.conn.Close()
	delete(r.clients, playerID)
	delete(r.graceTicks, playerID)
	r.log.Info().Str("player_id", playerID).Msg("player left")

	if !r.machine.State().Terminal() {
		r.forfeit(playerID, match.ReasonForfeit)
	}
}

func (r *Room) handleReady(playerID string) {
	both, err := r.machine.MarkReady(playerID)
	if err != nil {
		r.sendError(playerID, proto.ErrorCode(err), "ready not accepted")
		return
	}
	if !both {
		return
	}
	if err := r.machine.BeginCountdown(); err != nil {
		r.log.Error().Err(err).Msg("countdown refused after both ready")
		return
	}
	r.log.Info().Msg("both players ready, countdown starting")
	r.startCountdown()
}

func (r *Room) handlePause(playerID string) {
	if err := r.machine.Pause(playerID); err != nil {
		r.sendError(playerID, proto.ErrorCode(err), "pause not accepted")
		return
	}
	r.log.Info().Str("player_id", playerID).Msg("match paused")
	r.broadcast(proto.Paused{
		Type:      proto.TypePaused,
		MatchID:   r.MatchID(),
		By:        playerID,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (r *Room) handleResume(playerID string) {
	if err := r.machine.Resume(playerID); err != nil {
		if eris.Is(err, match.ErrNotPauser) {
			r.sendError(playerID, proto.CodeResumeFailed, "only the pausing player may resume")
		} else {
			r.sendError(playerID, proto.ErrorCode(err), "resume not accepted")
		}
		return
	}
	resumeAt := time.Now().Add(countdownSeconds * time.Second)
	r.log.Info().Str("player_id", playerID).Time("at", resumeAt).Msg("match resuming")
	r.broadcast(proto.ResumeAt{Type: proto.TypeResumeAt, MatchID: r.MatchID(), At: resumeAt.UnixMilli()})
	r.startCountdown()
}

func (r *Room) handleForfeit(playerID string) {
	m := r.machine.Snapshot()
	if !m.IsParticipant(playerID) {
		r.sendError(playerID, proto.CodeUnauthorized, "not a participant")
		return
	}
	if m.State.Terminal() {
		r.sendError(playerID, proto.CodeInvalidState, "match already over")
		return
	}
	r.log.Info().Str("player_id", playerID).Msg("player forfeited")
	r.forfeit(playerID, match.ReasonForfeit)
}

func (r *Room) handleInput(playerID string, dir game.Direction) {
	side := r.machine.Side(playerID)
	if side == game.SideNone {
		r.sendError(playerID, proto.CodeUnauthorized, "not a participant")
		return
	}
	if r.machine.State() != match.StatePlaying {
		r.sendError(playerID, proto.CodeInvalidState, "input only valid while playing")
		return
	}
	r.sim.SetDirection(side, dir)
}

func (r *Room) resolveProfile(playerID string) service.Profile {
	if r.profiles == nil {
		return service.Profile{DisplayName: playerID}
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p, err := r.profiles.ResolveDisplayProfile(ctx, playerID)
	if err != nil {
		r.log.Warn().Err(err).Str("player_id", playerID).Msg("profile lookup failed, using id")
		return service.Profile{DisplayName: playerID}
	}
	return p
}

func (r *Room) playerProfiles(m match.Match) []proto.PlayerProfile {
	out := make([]proto.PlayerProfile, 0, 2)
	for _, pid := range []string{m.P1ID, m.P2ID} {
		var p service.Profile
		if c, ok := r.clients[pid]; ok {
			p = c.profile
		} else {
			p = r.resolveProfile(pid)
		}
		out = append(out, proto.PlayerProfile{ID: pid, DisplayName: p.DisplayName, AvatarURL: p.AvatarURL})
	}
	return out
}
