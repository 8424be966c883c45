package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/memorag/api/mcp"
	"github.com/papercomputeco/memorag/pkg/pipeline"
	"github.com/papercomputeco/memorag/pkg/recorder"
	"github.com/papercomputeco/memorag/pkg/storage"
)

// Surface names the API in answer events.
const Surface = "api"

// Server is the API server for querying a memorag pipeline.
type Server struct {
	config   Config
	handle   *pipeline.Handle
	answers  storage.Driver
	recorder *recorder.Recorder
	logger   *slog.Logger
	app      *fiber.App
}

// NewServer creates a new API server. The recorder is optional; without one
// answers are served but not logged.
func NewServer(config Config, handle *pipeline.Handle, answers storage.Driver, rec *recorder.Recorder, logger *slog.Logger) (*Server, error) {
	if handle == nil {
		return nil, errors.New("pipeline handle is required")
	}
	if answers == nil {
		return nil, errors.New("answer storage driver is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s := &Server{
		config:   config,
		handle:   handle,
		answers:  answers,
		recorder: rec,
		logger:   logger,
		app:      app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Post("/query", s.handleQuery)
	v1.Post("/batch", s.handleBatch)
	v1.Get("/search", s.handleSearch)
	v1.Get("/memory", s.handleMemory)
	v1.Post("/reload", s.handleReload)
	v1.Get("/answers", s.handleListAnswers)
	v1.Get("/answers/:id", s.handleGetAnswer)
	v1.Get("/stats", s.handleStats)

	if !config.DisableMCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Handle:   handle,
			Recorder: rec,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	return s, nil
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
