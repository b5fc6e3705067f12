package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/leozw/domain-activator/internal/api/handlers"
	"github.com/leozw/domain-activator/internal/api/middleware"
	"github.com/leozw/domain-activator/internal/config"
)

type Server struct {
	Config *config.Config
	Router *gin.Engine
}

func NewServer(cfg *config.Config, h *handlers.Handler, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger.Named("http")))

	server := &Server{
		Config: cfg,
		Router: router,
	}
	server.setupRoutes(h, gatherer)
	return server
}

func (s *Server) setupRoutes(h *handlers.Handler, gatherer prometheus.Gatherer) {
	s.Router.GET("/health", h.Health)
	s.Router.GET("/ready", h.Ready)
	if gatherer != nil {
		s.Router.GET("/metrics", handlers.Metrics(gatherer))
	}

	api := s.Router.Group("/api/v1")
	api.Use(middleware.AuthRequired(s.Config.Auth.JWTSecret))
	{
		api.POST("/domain", h.SubmitDomain)
		api.GET("/domain/status", h.GetDomainStatus)
		api.POST("/domain/restart", h.RestartDomain)
		api.POST("/domain/check", h.RecheckDomain)
		api.DELETE("/domain", h.RemoveDomain)
	}
}
