// Package api exposes the orchestration core over HTTP.
package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/deepforge/internal/collab"
	"github.com/p-blackswan/deepforge/internal/health"
	"github.com/p-blackswan/deepforge/internal/metrics"
	"github.com/p-blackswan/deepforge/internal/project"
	"github.com/p-blackswan/deepforge/internal/requestid"
	"github.com/p-blackswan/deepforge/internal/vcs"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	ListenAddr  string
	CORSOrigins string

	// Bounds for the synchronous research endpoint's session wait.
	SessionWaitMax      time.Duration
	SessionPollInterval time.Duration
}

// Server is the HTTP API Fiber application.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	logger   zerolog.Logger
	config   ServerConfig
}

// NewServer creates and configures the API server.
func NewServer(
	cfg ServerConfig,
	registry *vcs.Registry,
	projects *project.Manager,
	collabMgr *collab.Manager,
	checker *health.Checker,
	metricsCollector *metrics.Metrics,
	logger zerolog.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ReadBufferSize:        8192,
		WriteBufferSize:       8192,
	})

	handlers := NewHandlers(registry, projects, collabMgr, checker, cfg, logger)

	s := &Server{
		app:      app,
		handlers: handlers,
		logger:   logger.With().Str("component", "api_server").Logger(),
		config:   cfg,
	}

	s.setupMiddleware(cfg, logger)
	s.setupRoutes(handlers, metricsCollector)

	return s
}

func (s *Server) setupMiddleware(cfg ServerConfig, logger zerolog.Logger) {
	// Recovery middleware
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID middleware
	s.app.Use(func(c *fiber.Ctx) error {
		_, reqID := requestid.New(c.Context())
		c.Set("X-Request-ID", reqID)
		c.Locals("request_id", reqID)
		return c.Next()
	})

	// CORS middleware
	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
			AllowMethods: "GET, POST, PATCH, DELETE, OPTIONS",
		}))
	}

	// Audit middleware (log every request)
	s.app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		// Skip noisy probe logging
		if path == "/healthz" || path == "/metrics" {
			return c.Next()
		}

		logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Str("ip", c.IP()).
			Str("request_id", fmt.Sprintf("%v", c.Locals("request_id"))).
			Msg("api request")

		return c.Next()
	})
}

func (s *Server) setupRoutes(h *Handlers, metricsCollector *metrics.Metrics) {
	s.app.Get("/healthz", h.Liveness)
	s.app.Get("/readyz", h.Readiness)

	if metricsCollector != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(metricsCollector.Handler()))
	}

	v1 := s.app.Group("/api/v1")

	v1.Post("/projects", h.CreateProject)
	v1.Get("/projects", h.ListProjects)
	v1.Get("/projects/:id", h.GetProject)
	v1.Delete("/projects/:id", h.DeleteProject)
	v1.Get("/projects/:id/history", h.GetCommitHistory)

	v1.Post("/projects/:id/issues", h.CreateIssue)
	v1.Get("/projects/:id/issues", h.ListIssues)
	v1.Patch("/projects/:id/issues/:issue", h.UpdateIssueStatus)

	v1.Post("/projects/:id/pulls", h.CreatePullRequest)
	v1.Get("/projects/:id/pulls", h.ListPullRequests)
	v1.Post("/projects/:id/pulls/:pr/merge", h.MergePullRequest)

	v1.Post("/research", h.Research)

	v1.Post("/sessions", h.StartSession)
	v1.Get("/sessions", h.ListSessions)
	v1.Get("/sessions/:id", h.GetSessionStatus)

	v1.Get("/agents/:id/metrics", h.GetAgentMetrics)
}

// Start runs the server on the configured listen address.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	s.logger.Info().Str("addr", addr).Msg("api server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("api server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func customErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("unhandled error")

		detail := err.Error()
		if code == fiber.StatusInternalServerError {
			detail = "An internal error occurred"
		}

		return c.Status(code).JSON(ProblemDetail{
			Type:     "internal_error",
			Title:    "Internal Server Error",
			Status:   code,
			Detail:   detail,
			Instance: c.Path(),
		})
	}
}
