// Package server exposes the clood session lifecycle over HTTP. Every API
// response is HTTP 200 with a {success, data, errorMessage} envelope.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/clood-dev/clood/internal/clood/orchestrator"
	"github.com/clood-dev/clood/internal/common/httpx"
	"github.com/clood-dev/clood/internal/common/middleware"
)

// CloodServer routes HTTP requests to the orchestrator.
type CloodServer struct {
	Router         *chi.Mux
	orch           *orchestrator.Orchestrator
	handleCORS     bool
	requestTimeout time.Duration
	printRoutes    bool
}

// Option configures a CloodServer.
type Option func(*CloodServer)

// WithCORS enables permissive CORS handling.
func WithCORS(enabled bool) Option {
	return func(s *CloodServer) {
		s.handleCORS = enabled
	}
}

// WithRequestTimeout bounds the context of every API request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *CloodServer) {
		s.requestTimeout = d
	}
}

// WithRouteListing prints the mounted routes to stdout.
func WithRouteListing(enabled bool) Option {
	return func(s *CloodServer) {
		s.printRoutes = enabled
	}
}

// CreateNewServer creates a server for orch.
func CreateNewServer(orch *orchestrator.Orchestrator, opts ...Option) (*CloodServer, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	s := &CloodServer{
		Router: chi.NewRouter(),
		orch:   orch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MountHandlers sets up middleware and routes.
func (s *CloodServer) MountHandlers() {
	s.Router.Use(middleware.RequestLogger)
	s.Router.Use(middleware.PanicHandler)
	if s.handleCORS {
		s.Router.Use(s.HandleCORS)
	}
	s.mountResourceHandlers(s.Router)
	if s.printRoutes {
		fmt.Println("Routes in clood router")
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			fmt.Printf("%s %s\n", method, route)
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			log.Error().Err(err).Msg("Error walking router")
		}
	}
}

func (s *CloodServer) mountResourceHandlers(r chi.Router) {
	r.Route("/api/clood", func(r chi.Router) {
		r.Use(middleware.SetTimeout(s.requestTimeout))
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			httpx.ErrInvalidRequest("unknown endpoint " + r.URL.Path).Send(w)
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			httpx.ErrReqMethodNotSupported().Send(w)
		})
		s.apiRouter(r)
	})
	r.Get("/version", s.getVersion)
	r.Get("/ready", s.getReadiness)
}

// GetVersionRsp is the body of GET /version.
type GetVersionRsp struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}

func (s *CloodServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &GetVersionRsp{
		ServerVersion: "clood server: " + Version,
		ApiVersion:    ApiVersion,
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}

func (s *CloodServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("Readiness check")
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, map[string]any{
		"status":   "ready",
		"sessions": len(s.orch.List()),
	})
}

// HandleCORS provides CORS middleware for cross-origin requests.
func (s *CloodServer) HandleCORS(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding"},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})(next)
}
