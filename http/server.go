// Package http is the collector's transport layer: a gin server
// exposing the ingestion endpoints and a few operational routes.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/solidangle/housemetrics/config"
	"github.com/solidangle/housemetrics/db"
	"github.com/solidangle/housemetrics/sensor"
	"github.com/solidangle/housemetrics/tariff"
)

// Store is the subset of the database layer the server uses.
type Store interface {
	Session(ctx context.Context) (*db.Session, error)
	ListSensors(ctx context.Context) ([]db.Sensor, error)
}

// Server bundles router and dependencies for the collector.
type Server struct {
	cfg      config.Config
	store    Store
	resolver *sensor.Resolver
	tariffs  *tariff.Classifier
	log      *logrus.Logger
	engine   *gin.Engine
}

// New constructs a server with routes and middleware.
func New(cfg config.Config, store Store, resolver *sensor.Resolver, tariffs *tariff.Classifier, log *logrus.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestIDMiddleware())

	server := &Server{
		cfg:      cfg,
		store:    store,
		resolver: resolver,
		tariffs:  tariffs,
		log:      log,
		engine:   engine,
	}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.engine.PUT("/metrics/airquality", s.handleAirQuality)
	s.engine.POST("/api/v2/write", s.handleEnergyWrite)
	s.engine.POST("/api/v2/query", s.handleQueryStub)
	s.engine.GET("/metrics/ping", s.handlePing)
	s.engine.GET("/metrics/sensors", s.handleListSensors)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// requestLog returns a logger entry carrying the request id.
func (s *Server) requestLog(c *gin.Context) *logrus.Entry {
	return s.log.WithField("request_id", c.GetString("request_id"))
}
