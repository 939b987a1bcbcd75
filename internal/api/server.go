// Package api provides the HTTP server and handlers for the directory
// resources.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/channelfinder/channelfinder-server/internal/auth"
	"github.com/channelfinder/channelfinder-server/internal/http/response"
	"github.com/channelfinder/channelfinder-server/internal/ratelimit"
	"github.com/channelfinder/channelfinder-server/internal/service"
)

// Version is the service version reported by the info endpoint.
const Version = "1.0.0"

// Server holds dependencies for HTTP handlers.
type Server struct {
	name       string
	channels   *service.ChannelService
	tags       *service.TagService
	properties *service.PropertyService
	users      *auth.Users
	limiter    *ratelimit.KeyedRateLimiter
	registry   *prometheus.Registry
	router     *chi.Mux
	logger     *slog.Logger
}

// Options configures a Server.
type Options struct {
	Name       string
	Channels   *service.ChannelService
	Tags       *service.TagService
	Properties *service.PropertyService
	Users      *auth.Users
	Limiter    *ratelimit.KeyedRateLimiter
	Registry   *prometheus.Registry
	Logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(opts Options) *Server {
	s := &Server{
		name:       opts.Name,
		channels:   opts.Channels,
		tags:       opts.Tags,
		properties: opts.Properties,
		users:      opts.Users,
		limiter:    opts.Limiter,
		registry:   opts.Registry,
		router:     chi.NewRouter(),
		logger:     opts.Logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "PUT", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
}

// setupRoutes configures all HTTP routes. Reads are open; mutations resolve
// credentials through basic auth and are rate limited per client.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealthCheck)
	if s.registry != nil {
		s.router.Method("GET", "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	s.router.Route("/ChannelFinder", func(r chi.Router) {
		r.Get("/", s.handleInfo)

		r.Route("/resources", func(r chi.Router) {
			r.Use(s.authenticate)

			r.Route("/channels", func(r chi.Router) {
				r.Get("/", s.handleSearchChannels)
				r.Get("/combined", s.handleCombinedChannels)
				r.Get("/count", s.handleCountChannels)
				r.Get("/{name}", s.handleGetChannel)

				r.Group(func(r chi.Router) {
					r.Use(s.rateLimit)
					r.Put("/", s.handleCreateChannels)
					r.Post("/", s.handleUpdateChannels)
					r.Put("/{name}", s.handleCreateChannel)
					r.Post("/{name}", s.handleUpdateChannel)
					r.Delete("/{name}", s.handleDeleteChannel)
				})
			})

			r.Route("/scroll", func(r chi.Router) {
				r.Get("/", s.handleScrollChannels)
				r.Get("/{cursor}", s.handleScrollChannels)
			})

			r.Route("/tags", func(r chi.Router) {
				r.Get("/", s.handleListTags)
				r.Get("/{name}", s.handleGetTag)

				r.Group(func(r chi.Router) {
					r.Use(s.rateLimit)
					r.Put("/", s.handleCreateTags)
					r.Post("/", s.handleUpdateTags)
					r.Put("/{name}", s.handleCreateTag)
					r.Post("/{name}", s.handleUpdateTag)
					r.Delete("/{name}", s.handleDeleteTag)
					r.Put("/{name}/{channel}", s.handleAddTagToChannel)
					r.Delete("/{name}/{channel}", s.handleRemoveTagFromChannel)
				})
			})

			r.Route("/properties", func(r chi.Router) {
				r.Get("/", s.handleListProperties)
				r.Get("/{name}", s.handleGetProperty)

				r.Group(func(r chi.Router) {
					r.Use(s.rateLimit)
					r.Put("/", s.handleCreateProperties)
					r.Post("/", s.handleUpdateProperties)
					r.Put("/{name}", s.handleCreateProperty)
					r.Post("/{name}", s.handleUpdateProperty)
					r.Delete("/{name}", s.handleDeleteProperty)
					r.Put("/{name}/{channel}", s.handleAddPropertyToChannel)
					r.Delete("/{name}/{channel}", s.handleRemovePropertyFromChannel)
				})
			})
		})
	})
}

// handleHealthCheck returns server health status.
func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]string{
		"status": "healthy",
	}, s.logger)
}

// handleInfo reports the service identity the way directory clients expect.
func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]string{
		"name":    s.name,
		"version": Version,
	}, s.logger)
}
