// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/retrocast/retrocast/internal/api"
	"github.com/retrocast/retrocast/internal/catalog"
	"github.com/retrocast/retrocast/internal/clock"
	"github.com/retrocast/retrocast/internal/config"
	"github.com/retrocast/retrocast/internal/db"
	"github.com/retrocast/retrocast/internal/epoch"
	"github.com/retrocast/retrocast/internal/logger"
	"github.com/retrocast/retrocast/internal/manifest"
	"github.com/retrocast/retrocast/internal/middleware"
	"github.com/retrocast/retrocast/internal/position"
	"github.com/retrocast/retrocast/internal/session"
	"github.com/retrocast/retrocast/internal/state"
)

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	db         *db.DB
	repos      *db.Repositories
	clk        clock.Clock
	epochs     *epoch.Store
	catalogSvc *catalog.Service
	stateSvc   *state.Service
	positions  *position.Service
	manifests  *manifest.Service
	sessions   *session.Service
	router     *gin.Engine
	server     *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, database *db.DB) *Server {
	repos := db.NewRepositories(database)
	clk := clock.SystemClock{}
	epochs := epoch.NewStore(repos.Epoch, clk)
	catalogSvc := catalog.NewService(repos, cfg.Engine.DefaultItemDuration)
	stateSvc := state.NewService(repos, clk, cfg.Engine.ResetDuration, cfg.Engine.ResetSteps)
	positions := position.NewService(catalogSvc, epochs, stateSvc, clk,
		cfg.Engine.PositionCacheTTL, cfg.Engine.TransitionWarning)
	manifests := manifest.NewService(catalogSvc, epochs, clk)
	sessions := session.NewService(repos, cfg.Engine.SessionDebounce)

	return &Server{
		config:     cfg,
		db:         database,
		repos:      repos,
		clk:        clk,
		epochs:     epochs,
		catalogSvc: catalogSvc,
		stateSvc:   stateSvc,
		positions:  positions,
		manifests:  manifests,
		sessions:   sessions,
	}
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	// Set Gin mode based on log level
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create new Gin router
	s.router = gin.New()

	// Add middleware stack
	s.router.Use(middleware.RequestLogger()) // Custom zerolog request logger
	s.router.Use(gin.Recovery())             // Panic recovery
	s.router.Use(cors.Default())             // CORS support (allows all origins)

	// Create API route group
	apiGroup := s.router.Group("/api")

	// Register service routes
	api.SetupHealthRoutes(apiGroup, s.db, s.clk)
	api.SetupChannelRoutes(apiGroup, s.repos, s.stateSvc)
	api.SetupPositionRoutes(apiGroup, s.positions, s.stateSvc)
	api.SetupManifestRoutes(apiGroup, s.manifests)
	api.SetupSessionRoutes(apiGroup, s.sessions)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.setupRouter()

	// Pin the global epoch before serving: every position answer derives
	// from it, and the first writer wins for the deployment's lifetime.
	epochAt, err := s.epochs.GetOrInit(context.Background())
	if err != nil {
		return fmt.Errorf("failed to initialize epoch: %w", err)
	}

	logger.Log.Info().
		Int64("epoch_ms", epochAt.UnixMilli()).
		Time("epoch", epochAt).
		Msg("Global broadcast epoch resolved")

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Msg("Starting HTTP server")

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server. Pending gradual resets are
// cancelled and debounced session writes are flushed before the listener
// closes.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	if s.sessions != nil {
		s.sessions.Shutdown(ctx)
	}
	if s.stateSvc != nil {
		s.stateSvc.Shutdown()
	}

	// Check if server was started before attempting shutdown
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}
