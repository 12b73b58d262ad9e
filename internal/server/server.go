// Package server provides the HTTP and WebSocket surface of the mudra
// stream server.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string

	// WSPath is the WebSocket endpoint. Defaults to "/ws".
	WSPath         string
	AllowedOrigins []string
	WriteTimeout   time.Duration
	MaxMessageSize int64

	Manager *session.Manager
	Store   *store.Store
	Logger  *slog.Logger
}

// Server routes the health, session and stream endpoints and, optionally,
// static files.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	logger *slog.Logger
}

// New builds a Server. Session routes exist only when a Manager is set and
// the history route only when a Store is set.
func New(config Config) *Server {
	if config.WSPath == "" {
		config.WSPath = "/ws"
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		logger: logging.OrDiscard(config.Logger).With("component", "server"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	if m := s.config.Manager; m != nil {
		s.mux.Handle("GET /api/sessions", api.NewSessionsHandler(m))
		s.mux.Handle("GET "+s.config.WSPath, NewStreamHandler(m, StreamOptions{
			AllowedOrigins: s.config.AllowedOrigins,
			WriteTimeout:   s.config.WriteTimeout,
			MaxMessageSize: s.config.MaxMessageSize,
		}, s.logger))
	}

	if st := s.config.Store; st != nil {
		s.mux.Handle("GET /api/sessions/history", api.NewHistoryHandler(st.Sessions(), s.logger))
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type healthResponse struct {
	Status   string `json:"status"`
	Uptime   string `json:"uptime"`
	Sessions int    `json:"sessions"`
	History  bool   `json:"history"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Uptime:  time.Since(s.start).Round(time.Second).String(),
		History: s.config.Store != nil,
	}
	if s.config.Manager != nil {
		resp.Sessions = s.config.Manager.Count()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("health response not written", "error", err)
	}
}

// HTTPServer wraps s in an http.Server listening on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
