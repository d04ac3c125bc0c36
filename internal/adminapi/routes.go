// Package adminapi is the Task Processor's HTTP control plane: a chi
// router exposing processor/task introspection, task cancellation, a
// live WebSocket task-event feed, and the Prometheus metrics endpoint.
package adminapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coro-sched/coro/internal/adminapi/handlers"
	adminmw "github.com/coro-sched/coro/internal/adminapi/middleware"
	"github.com/coro-sched/coro/internal/adminapi/websocket"
	"github.com/coro-sched/coro/internal/config"
	"github.com/coro-sched/coro/internal/events"
	"github.com/coro-sched/coro/internal/processor"
)

// Server is the admin API's HTTP entry point.
type Server struct {
	router    *chi.Mux
	cfg       *config.Config
	proc      *processor.Processor
	procH     *handlers.ProcessorHandler
	taskH     *handlers.TaskHandler
	wsHub     *websocket.Hub
	wsHandler *websocket.Handler
}

// NewServer builds the admin API router for one Processor, broadcasting
// its task lifecycle events to WebSocket clients over bus.
func NewServer(cfg *config.Config, p *processor.Processor, bus *events.Bus) *Server {
	wsHub := websocket.NewHub(bus)

	s := &Server{
		router:    chi.NewRouter(),
		cfg:       cfg,
		proc:      p,
		procH:     handlers.NewProcessorHandler(p),
		taskH:     handlers.NewTaskHandler(p),
		wsHub:     wsHub,
		wsHandler: websocket.NewHandler(wsHub),
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(adminmw.RequestLogger())
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Heartbeat("/health"))

	if s.cfg.AdminAPI.RateLimitRPS > 0 {
		s.router.Use(adminmw.ClientRateLimit(s.cfg.AdminAPI.RateLimitRPS))
	}

	if s.cfg.Auth.Enabled {
		authCfg := &adminmw.AuthConfig{
			Enabled:   s.cfg.Auth.Enabled,
			JWTSecret: s.cfg.Auth.JWTSecret,
			APIKeys:   toAPIKeySet(s.cfg.Auth.APIKeys),
		}
		s.router.Use(adminmw.Auth(authCfg))
	}
}

func toAPIKeySet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

func (s *Server) setupRoutes() {
	s.router.Route("/processors/{id}", func(r chi.Router) {
		r.Get("/stats", s.procH.Stats)
		r.Get("/tasks", s.procH.Tasks)
	})

	s.router.Route("/tasks/{id}", func(r chi.Router) {
		r.Get("/", s.taskH.Get)

		cancel := http.HandlerFunc(s.taskH.Cancel)
		if s.cfg.Auth.Enabled {
			role := s.cfg.Auth.CancelRole
			if role == "" {
				role = "operator"
			}
			r.With(adminmw.RequireRole(role)).Post("/cancel", cancel.ServeHTTP)
		} else {
			r.Post("/cancel", cancel.ServeHTTP)
		}
	})

	s.router.Get("/ws", s.wsHandler.ServeWS)

	if s.cfg.Metrics.Enabled {
		s.router.Handle(s.cfg.Metrics.Path, promhttp.Handler())
	}
}

// Start starts the WebSocket hub's broadcast loop.
func (s *Server) Start(ctx context.Context) {
	go s.wsHub.Run(ctx)
}

// Stop stops the WebSocket hub.
func (s *Server) Stop() {
	s.wsHub.Stop()
}

// Router returns the chi router, e.g. for http.ListenAndServe.
func (s *Server) Router() *chi.Mux { return s.router }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
