// Package lineproto parses the newline-delimited key=value telemetry
// format submitted by the air-quality sensors and the energy monitor.
package lineproto

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformed wraps every per-line parse failure so callers can match
// it with errors.Is regardless of which grammar rejected the line.
var ErrMalformed = errors.New("malformed line")

// AirQualitySample is one parsed air-quality line. Fields holds the
// raw string values keyed by field name; unknown keys are retained.
type AirQualitySample struct {
	Sensor string
	Fields map[string]string
}

// EnergySample is one parsed sub-metering pulse.
type EnergySample struct {
	CircuitID int
	WattHours float64
	Time      time.Time
}

// ParseAirQuality parses a line of the form
//
//	airquality sensor=kitchen temp=27.6 rh=47.6 co2=1234 ...
//
// The first token is a reserved discriminator and is ignored. Every
// remaining token is split on its first '='; a token without one fails
// the whole line, as does a missing sensor key.
func ParseAirQuality(line string) (AirQualitySample, error) {
	parts := strings.Split(line, " ")

	fields := make(map[string]string, len(parts)-1)
	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return AirQualitySample{}, fmt.Errorf("%w: token %q has no '='", ErrMalformed, part)
		}
		fields[key] = value
	}

	sensor, ok := fields["sensor"]
	if !ok || sensor == "" {
		return AirQualitySample{}, fmt.Errorf("%w: missing sensor key", ErrMalformed)
	}

	return AirQualitySample{Sensor: sensor, Fields: fields}, nil
}

// ParseEnergy parses a line of the form
//
//	9 v=0.1031944 1654732890
//
// i.e. circuit id, watt-hours behind a two-character value prefix, and
// a Unix-seconds timestamp.
func ParseEnergy(line string) (EnergySample, error) {
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return EnergySample{}, fmt.Errorf("%w: want 3 tokens, got %d", ErrMalformed, len(parts))
	}

	circuitID, err := strconv.Atoi(parts[0])
	if err != nil {
		return EnergySample{}, fmt.Errorf("%w: circuit id %q", ErrMalformed, parts[0])
	}

	if len(parts[1]) < 2 {
		return EnergySample{}, fmt.Errorf("%w: value token %q too short", ErrMalformed, parts[1])
	}
	wattHours, err := strconv.ParseFloat(parts[1][2:], 64)
	if err != nil {
		return EnergySample{}, fmt.Errorf("%w: watt-hours %q", ErrMalformed, parts[1])
	}

	unixSeconds, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return EnergySample{}, fmt.Errorf("%w: timestamp %q", ErrMalformed, parts[2])
	}

	return EnergySample{
		CircuitID: circuitID,
		WattHours: wattHours,
		Time:      time.Unix(unixSeconds, 0).UTC(),
	}, nil
}
