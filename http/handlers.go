package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/solidangle/housemetrics/ingest"
	"github.com/solidangle/housemetrics/lineproto"
)

// handleAirQuality ingests newline-delimited air-quality lines. The
// whole request fails on the first malformed line or unknown sensor;
// rows persisted before that stay committed.
func (s *Server) handleAirQuality(c *gin.Context) {
	ctx := c.Request.Context()

	sess, err := s.store.Session(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer sess.Release()

	coord := ingest.New(sess, s.resolver, s.tariffs, s.requestLog(c), ingest.Config{
		MaxSampleAge: s.cfg.MaxSampleAge,
	})

	s.respondIngest(c, coord.AirQuality(ctx, c.Request.Body))
}

// handleEnergyWrite ingests newline-delimited energy samples.
// Malformed, stale and negligible samples are dropped silently.
func (s *Server) handleEnergyWrite(c *gin.Context) {
	ctx := c.Request.Context()

	sess, err := s.store.Session(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer sess.Release()

	coord := ingest.New(sess, s.resolver, s.tariffs, s.requestLog(c), ingest.Config{
		MaxSampleAge: s.cfg.MaxSampleAge,
		EnergyPolicy: ingest.SkipLine,
	})

	s.respondIngest(c, coord.Energy(ctx, c.Request.Body))
}

// respondIngest maps an ingestion result onto the response.
func (s *Server) respondIngest(c *gin.Context, err error) {
	status := ingestStatus(err)
	if status == http.StatusNoContent {
		c.Status(status)
		return
	}
	s.requestLog(c).WithError(err).Warn("ingestion request failed")
	c.JSON(status, gin.H{"error": err.Error()})
}

func ingestStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusNoContent
	case errors.Is(err, ingest.ErrUnknownSensor):
		return http.StatusNotFound
	case errors.Is(err, lineproto.ErrMalformed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleQueryStub accepts and ignores query probes so the metering
// agent's health checks pass.
func (s *Server) handleQueryStub(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (s *Server) handlePing(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

func (s *Server) handleListSensors(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	sensors, err := s.store.ListSensors(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sensors": sensors})
}
