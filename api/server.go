package api

import (
	"context"
	"fmt"
	"net/http"

	"example.com/volunteerhub/services/signup/api/middleware"
	"example.com/volunteerhub/services/signup/api/routes"
	"example.com/volunteerhub/services/signup/config"
	"example.com/volunteerhub/services/signup/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP server
type Server struct {
	router     *gin.Engine
	config     *config.Config
	httpServer *http.Server
	log        *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(
	cfg *config.Config,
	log *logrus.Logger,
	nrApp *newrelic.Application,
	svc service.SignupService,
) *Server {
	gin.SetMode(cfg.Server.Mode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(log))

	if nrApp != nil {
		router.Use(middleware.NewRelicMiddleware(nrApp))
	}

	routes.SetupRoutes(router, svc, cfg.Server.AdminToken, log)

	return &Server{
		router: router,
		config: cfg,
		log:    log,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: router,
		},
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Infof("Starting server on port %d", s.config.Server.Port)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
