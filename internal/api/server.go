// Package api provides the HTTP control server for remote playback.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"autokey/internal/config"
	"autokey/internal/protocol"
	"autokey/internal/runner"
	"autokey/internal/timeline"
)

const maxScriptBytes = 4 << 20

// Server provides HTTP API for remote control
type Server struct {
	configMgr *config.Manager
	runner    *runner.Runner
	hub       *Hub
	http      *http.Server
}

// NewServer creates a new API server
func NewServer(configMgr *config.Manager, r *runner.Runner) *Server {
	s := &Server{
		configMgr: configMgr,
		runner:    r,
	}
	s.hub = newHub(s)
	return s
}

// Handler builds the router. The WebSocket hub must be running for /ws
// clients to receive anything; Start takes care of that.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/ws", s.hub.handleWebSocket)
		r.Route("/api", func(r chi.Router) {
			r.Post("/compile", s.handleCompile)
			r.Post("/play", s.handlePlay)
			r.Post("/stop", s.handleStop)
			r.Get("/status", s.handleStatus)
		})
	})

	return r
}

// Start starts the API server on the configured host and port. It blocks
// until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	cfg := s.configMgr.Get()

	go s.hub.start()

	addr := net.JoinHostPort(cfg.General.APIHost, fmt.Sprint(cfg.General.APIPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error().Str("component", "api").Str("addr", addr).Err(err).Msg("API: failed to listen")
		return err
	}
	if cfg.General.APIToken == "" {
		log.Warn().Str("component", "api").Msg("API: no api_token set, requests are not authenticated")
	}

	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("component", "api").Str("addr", ln.Addr().String()).Msg("API: server listening")

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Str("component", "api").Err(err).Msg("API: server stopped")
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes WebSocket clients
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.stop()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Broadcast sends a run event to every WebSocket client. It is meant to be
// installed with runner.SetOnMessage.
func (s *Server) Broadcast(msg protocol.Message) {
	s.hub.Broadcast(msg)
}

// requestLogger logs every request once it has been served
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("component", "api").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("API: request")
	})
}

// authMiddleware checks the API token if one is configured. WebSocket
// clients in a browser cannot set headers, so ?token= is accepted too.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.configMgr.Get().General.APIToken
		if token != "" {
			given, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				given = r.URL.Query().Get("token")
			}
			if !tokenMatches(given, token) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func tokenMatches(given, want string) bool {
	return subtle.ConstantTimeCompare([]byte(given), []byte(want)) == 1
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCompile handles POST /api/compile
func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	res, status, err := s.compile(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	resp := protocol.CompileResponse{
		Stats:  res.Stats,
		Events: make([]string, 0, res.Timeline.Len()),
	}
	for _, ev := range res.Timeline.Events() {
		resp.Events = append(resp.Events, fmt.Sprint(ev))
	}
	for _, e := range res.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePlay handles POST /api/play
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	res, status, err := s.compile(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	id, err := s.runner.Start(res.Timeline, "api")
	if errors.Is(err, runner.ErrBusy) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Str("component", "api").Str("run_id", id).Str("remote", r.RemoteAddr).Msg("API: playback started")
	writeJSON(w, http.StatusAccepted, protocol.PlayResponse{RunID: id, Stats: res.Stats})
}

// handleStop handles POST /api/stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.StopResponse{Stopped: s.runner.Stop()})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Status())
}

// compile decodes a CompileRequest and compiles it with the request's
// overrides on top of the playback config. The int is the HTTP status to
// use when err is set.
func (s *Server) compile(w http.ResponseWriter, r *http.Request) (*timeline.Result, int, error) {
	var req protocol.CompileRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxScriptBytes)).Decode(&req); err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err)
	}

	opts, err := s.compileOptions(req)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	res, err := timeline.CompileSource(strings.NewReader(req.Script), req.Recording, opts)
	if err != nil {
		return nil, http.StatusUnprocessableEntity, err
	}
	return res, http.StatusOK, nil
}

func (s *Server) compileOptions(req protocol.CompileRequest) (timeline.Options, error) {
	cfg := s.configMgr.Get().Playback

	name := cfg.OnMalformed
	if req.OnMalformed != "" {
		name = req.OnMalformed
	}
	policy, err := timeline.ParsePolicy(name)
	if err != nil {
		return timeline.Options{}, err
	}

	strict := cfg.StrictOrder
	if req.StrictOrder != nil {
		strict = *req.StrictOrder
	}
	return timeline.Options{OnMalformed: policy, StrictOrder: strict}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Str("component", "api").Err(err).Msg("API: failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, protocol.ErrorResponse{Error: msg})
}
