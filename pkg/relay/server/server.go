// Package server assembles the relay's HTTP surface: the websocket endpoint,
// the health and readiness probes, and the middleware chain around them.
package server

import (
	"log/slog"
	"net/http"

	"github.com/linguacast/linguacast/pkg/relay/config"
	"github.com/linguacast/linguacast/pkg/relay/dispatch"
	"github.com/linguacast/linguacast/pkg/relay/drain"
	"github.com/linguacast/linguacast/pkg/relay/gateway"
	"github.com/linguacast/linguacast/pkg/relay/handlers"
	"github.com/linguacast/linguacast/pkg/relay/mw"
	"github.com/linguacast/linguacast/pkg/relay/pipeline"
	"github.com/linguacast/linguacast/pkg/relay/registry"
	"github.com/linguacast/linguacast/pkg/relay/sessions"
)

// Deps carries the long-lived relay components the endpoints serve. The
// caller owns their lifecycles; the server only routes requests to them.
type Deps struct {
	Registry   *registry.Registry
	Dispatcher *dispatch.Dispatcher
	Sessions   *sessions.Lifecycle
	Pipeline   *pipeline.Orchestrator
	Drain      *drain.State
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux
	deps   Deps
}

func New(cfg config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),
		deps:   deps,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/", handlers.NotFoundHandler{})
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg, Drain: s.deps.Drain})
	s.mux.Handle("/v1/pipeline/health", handlers.PipelineHealthHandler{Orchestrator: s.deps.Pipeline})

	s.mux.Handle("/ws", gateway.Handler{
		Config:     s.cfg,
		Registry:   s.deps.Registry,
		Dispatcher: s.deps.Dispatcher,
		Sessions:   s.deps.Sessions,
		Drain:      s.deps.Drain,
		Logger:     s.logger,
	})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg.AllowedOrigins, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
