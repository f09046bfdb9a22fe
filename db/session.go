package db

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solidangle/housemetrics/lineproto"
	"github.com/solidangle/housemetrics/tariff"
)

// Field is one validated numeric column for an air-quality insert.
// Only fields actually present in the input appear; absent fields are
// omitted from the statement entirely, not written as NULL.
type Field struct {
	Column string
	Value  float64
}

// Session is a single checked-out connection serving one ingestion
// request end to end.
type Session struct {
	conn *pgxpool.Conn
}

// Release returns the connection to the pool.
func (s *Session) Release() {
	if s.conn != nil {
		s.conn.Release()
	}
}

const sensorIDSQL = `SELECT id FROM sensors WHERE name = $1`

// SensorIDByName returns the id for an exact name match, or nil when
// the sensor is not registered.
func (s *Session) SensorIDByName(ctx context.Context, name string) (*int, error) {
	var id int
	err := s.conn.QueryRow(ctx, sensorIDSQL, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// InsertAirQuality appends one air-quality row. The column list is
// built from the fields that survived validation so the row carries
// exactly what the sensor reported.
func (s *Session) InsertAirQuality(ctx context.Context, sensorID int, fields []Field) error {
	var cols, vals strings.Builder
	cols.WriteString("INSERT INTO airquality(time, id")
	vals.WriteString(") VALUES (CURRENT_TIMESTAMP, $1")

	args := []any{sensorID}
	for _, f := range fields {
		args = append(args, f.Value)
		cols.WriteString(", " + f.Column)
		vals.WriteString(", $" + strconv.Itoa(len(args)))
	}

	sql := cols.String() + vals.String() + ")"
	_, err := s.conn.Exec(ctx, sql, args...)
	return err
}

const insertEnergySQL = `
    INSERT INTO electricity_5s(time, circuit_id, watt_hours, tou1_cost, tou2_cost, tou3_cost)
    VALUES ($1, $2, $3, $4, $5, $6)
`

// InsertEnergy appends one priced energy row. The sink's uniqueness
// constraint on (time, circuit_id) surfaces duplicates as an error the
// caller is expected to check with IsUniqueViolation.
func (s *Session) InsertEnergy(ctx context.Context, sample lineproto.EnergySample, costs tariff.Costs) error {
	_, err := s.conn.Exec(ctx, insertEnergySQL,
		sample.Time,
		sample.CircuitID,
		sample.WattHours,
		costs.TOU1,
		costs.TOU2,
		costs.TOU3,
	)
	return err
}
