// Package app wires the match engine together: collaborators, room
// registry, websocket endpoint and the thin HTTP glue around them.
package app

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"pong-duel/server/internal/game"
	"pong-duel/server/internal/metrics"
	"pong-duel/server/internal/net/ws"
	"pong-duel/server/internal/room"
	"pong-duel/server/internal/service"
)

// NewLogger builds the process root logger from config.
func NewLogger(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.LogPretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// Run starts the server and blocks until ctx is cancelled or the listener
// fails.
func Run(ctx context.Context, cfg Config, log zerolog.Logger) error {
	store := service.NewMemoryStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	mets := metrics.New(registry)

	roomCfg := room.DefaultConfig()
	roomCfg.GracePeriod = cfg.GracePeriod()
	manager := room.NewManager(store, store, store, mets, roomCfg, log)

	wsHandler := ws.NewHandler(manager, mets, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.Handle)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/diagnostics", diagnosticsHandler(manager))
	mux.HandleFunc("/matches", createMatchHandler(store, log))

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
		manager.Shutdown()
		return nil
	case err := <-errCh:
		if eris.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "listener failed")
	}
}

type diagnosticsMatch struct {
	MatchID   string `json:"matchId"`
	State     string `json:"state"`
	Connected int    `json:"connected"`
}

func diagnosticsHandler(manager *room.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms := manager.ActiveRooms()
		matches := make([]diagnosticsMatch, 0, len(rooms))
		for _, rm := range rooms {
			m := rm.Snapshot()
			matches = append(matches, diagnosticsMatch{
				MatchID:   m.ID,
				State:     string(m.State),
				Connected: rm.ConnectedPlayers(),
			})
		}

		payload := struct {
			Status     string             `json:"status"`
			ServerTime int64              `json:"serverTime"`
			TickRate   int                `json:"tickRate"`
			Matches    []diagnosticsMatch `json:"matches"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			TickRate:   game.TickRate,
			Matches:    matches,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	}
}

// createMatchHandler is deliberately thin glue: matchmaking and identity
// live outside the engine, this just exposes the createMatch collaborator
// for local runs.
func createMatchHandler(matches service.MatchService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body struct {
			P1ID string `json:"p1Id"`
			P2ID string `json:"p2Id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}

		m, err := matches.CreateMatch(r.Context(), body.P1ID, body.P2ID)
		if err != nil {
			log.Warn().Err(err).Msg("match creation rejected")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m)
	}
}
