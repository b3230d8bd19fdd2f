package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pong-duel/server/internal/metrics"
	"pong-duel/server/internal/net/proto"
	"pong-duel/server/internal/room"
	"pong-duel/server/internal/service"
)

func setupServer(t *testing.T) (string, *service.MemoryStore, string) {
	t.Helper()
	store := service.NewMemoryStore()
	m, err := store.CreateMatch(context.Background(), "alice", "bob")
	require.NoError(t, err)

	mets := metrics.New(prometheus.NewRegistry())
	mgr := room.NewManager(store, store, store, mets,
		room.Config{GracePeriod: 50 * time.Millisecond, TickInterval: time.Millisecond}, zerolog.Nop())
	t.Cleanup(mgr.Shutdown)

	handler := NewHandler(mgr, mets, zerolog.Nop())
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.Handle)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	return wsURL, store, m.ID
}

func dial(t *testing.T, wsURL, userID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?userId="+userID, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// readUntil consumes frames until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		frame := readFrame(t, conn)
		if frame["type"] == msgType {
			return frame
		}
	}
	t.Fatalf("never received a %q frame", msgType)
	return nil
}

func TestConnectionAcknowledged(t *testing.T) {
	wsURL, _, _ := setupServer(t)
	conn := dial(t, wsURL, "alice")

	frame := readFrame(t, conn)
	assert.Equal(t, "connection_ok", frame["type"])
	assert.Equal(t, "alice", frame["userId"])
}

func TestMissingUserIDRejected(t *testing.T) {
	wsURL, _, _ := setupServer(t)
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPingPong(t *testing.T) {
	wsURL, _, _ := setupServer(t)
	conn := dial(t, wsURL, "alice")
	readFrame(t, conn) // connection_ok

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	frame := readUntil(t, conn, "pong")
	assert.Greater(t, frame["timestamp"].(float64), float64(0))
}

func TestJoinUnknownMatch(t *testing.T) {
	wsURL, _, _ := setupServer(t)
	conn := dial(t, wsURL, "alice")
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "join_match", "matchId": "nope"}))
	frame := readUntil(t, conn, "error")
	assert.Equal(t, proto.CodeMatchNotFound, frame["code"])
}

func TestJoinAsOutsiderRejected(t *testing.T) {
	wsURL, _, matchID := setupServer(t)
	conn := dial(t, wsURL, "mallory")
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "join_match", "matchId": matchID}))
	frame := readUntil(t, conn, "error")
	assert.Equal(t, proto.CodeUnauthorized, frame["code"])
}

func TestJoinDeliversAckAndSnapshot(t *testing.T) {
	wsURL, _, matchID := setupServer(t)
	conn := dial(t, wsURL, "alice")
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "join_match", "matchId": matchID}))
	joined := readUntil(t, conn, "joined")
	assert.Equal(t, matchID, joined["matchId"])
	assert.Equal(t, "alice", joined["playerId"])

	state := readUntil(t, conn, "state")
	assert.Equal(t, matchID, state["matchId"])
}

func TestSecondJoinOnSameConnectionRejected(t *testing.T) {
	wsURL, _, matchID := setupServer(t)
	conn := dial(t, wsURL, "alice")
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "join_match", "matchId": matchID}))
	readUntil(t, conn, "joined")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "join_match", "matchId": matchID}))
	frame := readUntil(t, conn, "error")
	assert.Equal(t, proto.CodeAlreadyJoined, frame["code"])
}

func TestInputBeforeJoinRejected(t *testing.T) {
	wsURL, _, _ := setupServer(t)
	conn := dial(t, wsURL, "alice")
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "input", "direction": "up", "seq": 1}))
	frame := readUntil(t, conn, "error")
	assert.Equal(t, proto.CodeInvalidState, frame["code"])
}

func TestMalformedFrameKeepsConnectionOpen(t *testing.T) {
	wsURL, _, _ := setupServer(t)
	conn := dial(t, wsURL, "alice")
	readFrame(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{nope")))
	frame := readUntil(t, conn, "error")
	assert.Equal(t, proto.CodeInvalidInput, frame["code"])

	// The connection still works afterwards.
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	readUntil(t, conn, "pong")
}

func TestFullMatchStartOverWire(t *testing.T) {
	wsURL, _, matchID := setupServer(t)

	alice := dial(t, wsURL, "alice")
	bob := dial(t, wsURL, "bob")
	readFrame(t, alice)
	readFrame(t, bob)

	require.NoError(t, alice.WriteJSON(map[string]any{"type": "join_match", "matchId": matchID}))
	readUntil(t, alice, "joined")
	require.NoError(t, bob.WriteJSON(map[string]any{"type": "join_match", "matchId": matchID}))
	readUntil(t, bob, "joined")

	require.NoError(t, alice.WriteJSON(map[string]any{"type": "ready", "matchId": matchID}))
	require.NoError(t, bob.WriteJSON(map[string]any{"type": "ready", "matchId": matchID}))

	countdown := readUntil(t, alice, "countdown")
	assert.Equal(t, float64(3), countdown["seconds"])

	// After the countdown both players stream state frames.
	state := readUntil(t, bob, "state")
	assert.Contains(t, state, "ball")
	assert.Contains(t, state, "score")
}

func TestForfeitOverWire(t *testing.T) {
	wsURL, _, matchID := setupServer(t)

	alice := dial(t, wsURL, "alice")
	bob := dial(t, wsURL, "bob")
	readFrame(t, alice)
	readFrame(t, bob)

	require.NoError(t, alice.WriteJSON(map[string]any{"type": "join_match", "matchId": matchID}))
	readUntil(t, alice, "joined")
	require.NoError(t, bob.WriteJSON(map[string]any{"type": "join_match", "matchId": matchID}))
	readUntil(t, bob, "joined")

	require.NoError(t, alice.WriteJSON(map[string]any{"type": "forfeit", "matchId": matchID}))
	over := readUntil(t, bob, "game_over")
	assert.Equal(t, "bob", over["winnerId"])
	assert.Equal(t, "forfeit", over["reason"])
}
