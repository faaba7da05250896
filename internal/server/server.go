package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splitlab/splitlab/internal/engine"
)

// Server exposes the experimentation engine over HTTP. Authorization is the
// caller's concern; every endpoint trusts its inputs are pre-authorized.
type Server struct {
	engine    *engine.Engine
	addr      string
	log       *slog.Logger
	router    *http.ServeMux
	startTime time.Time
}

func New(eng *engine.Engine, addr string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	srv := &Server{
		engine:    eng,
		addr:      addr,
		log:       log,
		router:    http.NewServeMux(),
		startTime: time.Now(),
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.Handle("GET /metrics", promhttp.Handler())

	s.router.HandleFunc("POST /api/tests", s.handleCreateTest)
	s.router.HandleFunc("GET /api/tests", s.handleListTests)
	s.router.HandleFunc("GET /api/tests/{id}", s.handleGetTest)
	s.router.HandleFunc("POST /api/tests/{id}/start", s.handleStartTest)
	s.router.HandleFunc("POST /api/tests/{id}/pause", s.handlePauseTest)
	s.router.HandleFunc("POST /api/tests/{id}/complete", s.handleCompleteTest)
	s.router.HandleFunc("POST /api/tests/{id}/events", s.handleRecordEvent)
	s.router.HandleFunc("POST /api/tests/{id}/spend", s.handleRecordSpend)
	s.router.HandleFunc("GET /api/tests/{id}/allocate", s.handleAllocate)
	s.router.HandleFunc("GET /api/tests/{id}/results", s.handleResults)
}

func (s *Server) Start() error {
	s.log.Info("splitlab listening", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.router)
}

func (s *Server) Handler() http.Handler {
	return s.router
}
