// Package ingest runs the per-request loop that turns a byte stream of
// telemetry lines into persisted rows.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/solidangle/housemetrics/db"
	"github.com/solidangle/housemetrics/lineproto"
	"github.com/solidangle/housemetrics/sensor"
	"github.com/solidangle/housemetrics/tariff"
	"github.com/solidangle/housemetrics/telemetry"
)

// ErrUnknownSensor marks an air-quality line naming a sensor the store
// has never heard of. One unknown sensor fails the whole request.
var ErrUnknownSensor = errors.New("unknown sensor")

// Watt-hour readings below this are meter noise, not consumption.
const minWattHours = 1e-7

const defaultMaxSampleAge = 24 * time.Hour

// ParsePolicy decides what a malformed line does to the request.
type ParsePolicy int

const (
	// FailRequest aborts the whole request on the first bad line.
	// Lines already persisted stay committed.
	FailRequest ParsePolicy = iota
	// SkipLine drops the bad line and keeps reading.
	SkipLine
)

// Store is the per-request persistence session the coordinator writes
// through.
type Store interface {
	sensor.Querier
	InsertAirQuality(ctx context.Context, sensorID int, fields []db.Field) error
	InsertEnergy(ctx context.Context, sample lineproto.EnergySample, costs tariff.Costs) error
}

// Config tunes a Coordinator. Zero values mean: 24h max sample age,
// fail-fast on parse errors, wall clock.
type Config struct {
	MaxSampleAge     time.Duration
	AirQualityPolicy ParsePolicy
	EnergyPolicy     ParsePolicy
	Now              func() time.Time
}

// Coordinator drives one ingestion request: read a line, parse it,
// enrich it, persist it, until the stream runs dry. Line processing is
// strictly sequential; the store session is owned by the caller.
type Coordinator struct {
	store    Store
	resolver *sensor.Resolver
	tariffs  *tariff.Classifier
	log      logrus.FieldLogger
	cfg      Config
}

// New builds a coordinator around an acquired store session.
func New(store Store, resolver *sensor.Resolver, tariffs *tariff.Classifier, log logrus.FieldLogger, cfg Config) *Coordinator {
	if cfg.MaxSampleAge <= 0 {
		cfg.MaxSampleAge = defaultMaxSampleAge
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Coordinator{
		store:    store,
		resolver: resolver,
		tariffs:  tariffs,
		log:      log,
		cfg:      cfg,
	}
}

// AirQuality consumes newline-delimited air-quality lines until the
// stream ends. A malformed line or an unknown sensor aborts the
// request; rows persisted before the abort stay committed.
func (c *Coordinator) AirQuality(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		telemetry.LinesReceived.WithLabelValues("airquality").Inc()
		c.log.WithField("line", line).Debug("got air-quality line")

		sample, err := lineproto.ParseAirQuality(line)
		if err != nil {
			if c.cfg.AirQualityPolicy == SkipLine {
				telemetry.SamplesDropped.WithLabelValues(telemetry.ReasonMalformed).Inc()
				continue
			}
			return err
		}

		id, err := c.resolver.Resolve(ctx, c.store, sample.Sensor)
		if err != nil {
			return err
		}
		if id == nil {
			return fmt.Errorf("%w: %q", ErrUnknownSensor, sample.Sensor)
		}

		if err := c.store.InsertAirQuality(ctx, *id, airQualityFields(sample)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Energy consumes newline-delimited energy-sample lines until the
// stream ends. Malformed, negligible and stale samples are dropped
// without failing the request; duplicate (time, circuit) rows are
// logged and skipped. Any other store failure aborts the request.
func (c *Coordinator) Energy(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		telemetry.LinesReceived.WithLabelValues("write").Inc()

		sample, err := lineproto.ParseEnergy(scanner.Text())
		if err != nil {
			if c.cfg.EnergyPolicy == FailRequest {
				return err
			}
			telemetry.SamplesDropped.WithLabelValues(telemetry.ReasonMalformed).Inc()
			continue
		}

		if sample.WattHours < minWattHours {
			telemetry.SamplesDropped.WithLabelValues(telemetry.ReasonNegligible).Inc()
			continue
		}
		if c.cfg.Now().Sub(sample.Time) > c.cfg.MaxSampleAge {
			telemetry.SamplesDropped.WithLabelValues(telemetry.ReasonStale).Inc()
			continue
		}

		costs := c.tariffs.Costs(sample.Time, sample.WattHours)

		err = c.store.InsertEnergy(ctx, sample, costs)
		if db.IsUniqueViolation(err) {
			telemetry.DuplicateSamples.Inc()
			c.log.WithFields(logrus.Fields{
				"circuit": sample.CircuitID,
				"time":    sample.Time,
			}).Info("discarding duplicate sample")
			continue
		}
		if err != nil {
			return err
		}
	}
	return scanner.Err()
}
