// Package ws bridges websocket connections onto match rooms: it upgrades
// requests, decodes frames, applies per-connection input policing, and
// enqueues commands on the owning room. It never mutates match state.
package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"pong-duel/server/internal/metrics"
	"pong-duel/server/internal/net/intake"
	"pong-duel/server/internal/net/proto"
	"pong-duel/server/internal/room"
)

// Handler serves the /ws endpoint.
type Handler struct {
	rooms    *room.Manager
	metrics  *metrics.Metrics
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewHandler builds a websocket handler backed by the room registry.
func NewHandler(rooms *room.Manager, mets *metrics.Metrics, log zerolog.Logger) *Handler {
	return &Handler{
		rooms:   rooms,
		metrics: mets,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handle upgrades the request and runs the connection's read loop. The
// caller's identity arrives on the userId query parameter; session/token
// validation happens upstream of this handler.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("player_id", userID).Msg("websocket upgrade failed")
		return
	}

	sess := newSession(conn)
	log := h.log.With().Str("player_id", userID).Logger()

	h.writeJSON(sess, userID, proto.ConnectionOK{Type: proto.TypeConnectionOK, UserID: userID})

	pipeline := intake.NewPipeline()
	var joined *room.Room
	var matchID string

	disconnect := func() {
		if joined != nil {
			joined.HandleDisconnect(userID)
		}
		sess.Close()
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Msg("connection closed")
			disconnect()
			return
		}

		msg, err := proto.Decode(payload)
		if err != nil {
			log.Debug().Err(err).Msg("discarding malformed frame")
			h.writeJSON(sess, userID, proto.NewError(proto.CodeInvalidInput, "malformed frame", ""))
			continue
		}

		if msg.MatchID != "" && matchID != "" && msg.MatchID != matchID {
			h.writeJSON(sess, userID, proto.NewError(proto.CodeMatchNotFound, "frame addresses another match", msg.MatchID))
			continue
		}

		switch msg.Type {
		case proto.TypePing:
			h.writeJSON(sess, userID, proto.Pong{Type: proto.TypePong, Timestamp: time.Now().UnixMilli()})

		case proto.TypeJoinMatch:
			if joined != nil {
				h.writeJSON(sess, userID, proto.NewError(proto.CodeAlreadyJoined, "connection already joined a match", matchID))
				continue
			}
			if msg.MatchID == "" {
				h.writeJSON(sess, userID, proto.NewError(proto.CodeInvalidInput, "join_match requires matchId", ""))
				continue
			}
			rm, code := h.rooms.Room(r.Context(), msg.MatchID)
			if code == "" {
				code = rm.Join(userID, sess)
			}
			if code != "" {
				h.writeJSON(sess, userID, proto.NewError(code, "join rejected", msg.MatchID))
				continue
			}
			joined = rm
			matchID = msg.MatchID
			log.Info().Str("match_id", matchID).Msg("joined match")

		case proto.TypeLeaveMatch:
			if joined == nil {
				h.writeJSON(sess, userID, proto.NewError(proto.CodeInvalidState, "no joined match", msg.MatchID))
				continue
			}
			joined.Leave(userID)
			joined = nil
			matchID = ""

		case proto.TypeInput:
			if joined == nil {
				h.writeJSON(sess, userID, proto.NewError(proto.CodeInvalidState, "join a match before sending input", msg.MatchID))
				continue
			}
			dir, ok, reason := pipeline.Stage(msg, time.Now())
			if !ok {
				if h.metrics != nil {
					h.metrics.InputsDropped.WithLabelValues(reason).Inc()
				}
				switch reason {
				case intake.RejectRateLimit:
					h.writeJSON(sess, userID, proto.NewError(proto.CodeRateLimit, "input rate exceeded, back off", matchID))
				case intake.RejectDirection:
					h.writeJSON(sess, userID, proto.NewError(proto.CodeInvalidInput, "direction must be up, down or stop", matchID))
				}
				// Stale seq re-sends are dropped silently.
				continue
			}
			joined.Input(userID, dir)

		case proto.TypeReady:
			if !h.requireJoined(sess, userID, joined, msg) {
				continue
			}
			joined.Ready(userID)

		case proto.TypePause:
			if !h.requireJoined(sess, userID, joined, msg) {
				continue
			}
			joined.Pause(userID)

		case proto.TypeResume:
			if !h.requireJoined(sess, userID, joined, msg) {
				continue
			}
			joined.Resume(userID)

		case proto.TypeForfeit:
			if !h.requireJoined(sess, userID, joined, msg) {
				continue
			}
			joined.Forfeit(userID)

		case proto.TypeRequestState:
			if !h.requireJoined(sess, userID, joined, msg) {
				continue
			}
			joined.RequestState(userID)

		default:
			log.Debug().Str("frame_type", msg.Type).Msg("unknown frame type")
			h.writeJSON(sess, userID, proto.NewError(proto.CodeInvalidInput, "unknown message type", msg.MatchID))
		}
	}
}

func (h *Handler) requireJoined(sess *Session, userID string, joined *room.Room, msg proto.ClientMessage) bool {
	if joined != nil {
		return true
	}
	h.writeJSON(sess, userID, proto.NewError(proto.CodeInvalidState, "no joined match", msg.MatchID))
	return false
}

func (h *Handler) writeJSON(sess *Session, userID string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Str("player_id", userID).Msg("failed to marshal frame")
		return
	}
	if err := sess.Send(data); err != nil {
		h.log.Debug().Err(err).Str("player_id", userID).Msg("write failed")
	}
}
