package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"smc-engine/internal/cache"
	"smc-engine/internal/engine"
	"smc-engine/internal/simulator"
	"smc-engine/internal/weights"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
}

// Server exposes the analysis engine and the trade simulator over HTTP.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     ServerConfig
	engine     *engine.Engine
	simulator  *simulator.Simulator
	weights    weights.Provider
	cache      *cache.AnalysisCache
	logger     zerolog.Logger
}

// NewServer creates a new API server. The cache may be nil when Redis is
// not configured.
func NewServer(
	cfg ServerConfig,
	eng *engine.Engine,
	sim *simulator.Simulator,
	provider weights.Provider,
	analysisCache *cache.AnalysisCache,
	logger zerolog.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8088"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:    router,
		config:    cfg,
		engine:    eng,
		simulator: sim,
		weights:   provider,
		cache:     analysisCache,
		logger:    logger.With().Str("component", "api").Logger(),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.POST("/analyze", s.handleAnalyze)
		api.POST("/signals", s.handleSignals)

		api.GET("/trades", s.handleListTrades)
		api.POST("/trades", s.handleCreateTrade)
		api.DELETE("/trades/:id", s.handleCancelTrade)
		api.DELETE("/trades", s.handleClearTrades)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"trades": len(s.simulator.Trades()),
	})
}
