// Package api exposes reading progress, sessions and history over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/reading-server/internal/auth"
	"github.com/listenupapp/reading-server/internal/ratelimit"
	"github.com/listenupapp/reading-server/internal/service"
	"github.com/listenupapp/reading-server/internal/sse"
	"github.com/listenupapp/reading-server/internal/store"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// Services groups the business services the handlers call.
type Services struct {
	Progress *service.ProgressService
	Sessions *service.SessionService
	History  *service.HistoryService
	Catalog  *service.CatalogService
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store           store.Store
	services        *Services
	tokens          *auth.TokenService
	sseManager      *sse.Manager
	progressLimiter *ratelimit.KeyedRateLimiter
	router          *chi.Mux
	api             huma.API
	logger          *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(
	st store.Store,
	services *Services,
	tokens *auth.TokenService,
	sseManager *sse.Manager,
	progressLimiter *ratelimit.KeyedRateLimiter,
	allowedOrigins []string,
	logger *slog.Logger,
) *Server {
	s := &Server{
		store:           st,
		services:        services,
		tokens:          tokens,
		sseManager:      sseManager,
		progressLimiter: progressLimiter,
		router:          chi.NewRouter(),
		logger:          logger,
	}

	s.setupMiddleware(allowedOrigins)
	s.api = humachi.New(s.router, newHumaConfig())
	RegisterErrorHandler()
	s.setupRoutes()

	return s
}

func newHumaConfig() huma.Config {
	cfg := huma.DefaultConfig("Reading Server API", Version)
	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	cfg.Transformers = append(cfg.Transformers, EnvelopeTransformer)
	return cfg
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) setupMiddleware(allowedOrigins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Last-Event-ID"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerProgressRoutes()
	s.registerSessionRoutes()
	s.registerHistoryRoutes()
	s.registerBookRoutes()

	if s.sseManager != nil {
		s.router.Get("/api/v1/events", sse.NewHandler(s.sseManager, userFromRequest(s.tokens, s.logger), s.logger).ServeHTTP)
	}
}
