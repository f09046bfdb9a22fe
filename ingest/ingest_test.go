package ingest

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/solidangle/housemetrics/db"
	"github.com/solidangle/housemetrics/lineproto"
	"github.com/solidangle/housemetrics/sensor"
	"github.com/solidangle/housemetrics/tariff"
)

type airInsert struct {
	sensorID int
	fields   []db.Field
}

type energyInsert struct {
	sample lineproto.EnergySample
	costs  tariff.Costs
}

// fakeStore records inserts and can fail on demand.
type fakeStore struct {
	ids map[string]int

	air    []airInsert
	energy []energyInsert

	// popped in order by InsertEnergy; nil entries mean success.
	energyErrs []error
	airErr     error
}

func (f *fakeStore) SensorIDByName(_ context.Context, name string) (*int, error) {
	if id, ok := f.ids[name]; ok {
		return &id, nil
	}
	return nil, nil
}

func (f *fakeStore) InsertAirQuality(_ context.Context, sensorID int, fields []db.Field) error {
	if f.airErr != nil {
		return f.airErr
	}
	f.air = append(f.air, airInsert{sensorID: sensorID, fields: fields})
	return nil
}

func (f *fakeStore) InsertEnergy(_ context.Context, sample lineproto.EnergySample, costs tariff.Costs) error {
	var err error
	if len(f.energyErrs) > 0 {
		err = f.energyErrs[0]
		f.energyErrs = f.energyErrs[1:]
	}
	if err != nil {
		return err
	}
	f.energy = append(f.energy, energyInsert{sample: sample, costs: costs})
	return nil
}

func quietLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testClassifier(t *testing.T) *tariff.Classifier {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return tariff.NewClassifier(loc, nil)
}

func newCoordinator(t *testing.T, store Store, cfg Config) *Coordinator {
	t.Helper()
	return New(store, sensor.NewResolver(sensor.NewTTLCache()), testClassifier(t), quietLog(), cfg)
}

func TestAirQuality_SingleLine(t *testing.T) {
	store := &fakeStore{ids: map[string]int{"kitchen": 3}}
	c := newCoordinator(t, store, Config{})

	err := c.AirQuality(context.Background(), strings.NewReader("airquality sensor=kitchen temp=27.6 rh=47.6\n"))
	if err != nil {
		t.Fatalf("AirQuality() error = %v", err)
	}

	if len(store.air) != 1 {
		t.Fatalf("got %d inserts, want 1", len(store.air))
	}
	if store.air[0].sensorID != 3 {
		t.Errorf("sensorID = %d, want 3", store.air[0].sensorID)
	}
	if got := len(store.air[0].fields); got != 3 {
		t.Errorf("got %d columns, want temp, rh, humidex", got)
	}
}

func TestAirQuality_EmptyStream(t *testing.T) {
	store := &fakeStore{}
	c := newCoordinator(t, store, Config{})

	if err := c.AirQuality(context.Background(), strings.NewReader("")); err != nil {
		t.Fatalf("AirQuality() error = %v", err)
	}
	if len(store.air) != 0 {
		t.Errorf("got %d inserts for empty stream, want 0", len(store.air))
	}
}

func TestAirQuality_UnknownSensorAbortsBatch(t *testing.T) {
	store := &fakeStore{ids: map[string]int{"kitchen": 3}}
	c := newCoordinator(t, store, Config{})

	body := "airquality sensor=kitchen temp=20\n" +
		"airquality sensor=ghost temp=21\n" +
		"airquality sensor=kitchen temp=22\n"

	err := c.AirQuality(context.Background(), strings.NewReader(body))
	if !errors.Is(err, ErrUnknownSensor) {
		t.Fatalf("AirQuality() error = %v, want ErrUnknownSensor", err)
	}

	// The line before the unknown sensor is already committed, the
	// line after is never reached.
	if len(store.air) != 1 {
		t.Errorf("got %d inserts, want 1", len(store.air))
	}
}

func TestAirQuality_MalformedLineAbortsAfterPriorPersisted(t *testing.T) {
	store := &fakeStore{ids: map[string]int{"kitchen": 3}}
	c := newCoordinator(t, store, Config{})

	body := "airquality sensor=kitchen temp=20\n" +
		"airquality sensor=kitchen temp=21\n" +
		"this is not a line\n" +
		"airquality sensor=kitchen temp=22\n"

	err := c.AirQuality(context.Background(), strings.NewReader(body))
	if !errors.Is(err, lineproto.ErrMalformed) {
		t.Fatalf("AirQuality() error = %v, want ErrMalformed", err)
	}
	if len(store.air) != 2 {
		t.Errorf("got %d inserts, want the 2 lines before the malformed one", len(store.air))
	}
}

func TestAirQuality_StoreErrorPropagates(t *testing.T) {
	wantErr := errors.New("connection reset")
	store := &fakeStore{ids: map[string]int{"kitchen": 3}, airErr: wantErr}
	c := newCoordinator(t, store, Config{})

	err := c.AirQuality(context.Background(), strings.NewReader("airquality sensor=kitchen temp=20\n"))
	if !errors.Is(err, wantErr) {
		t.Errorf("AirQuality() error = %v, want %v", err, wantErr)
	}
}

func TestEnergy_InsertsClassifiedSample(t *testing.T) {
	store := &fakeStore{}
	// 2022-06-14 17:00 UTC = 13:00 in Toronto, a Tuesday: on-peak.
	sampleTime := time.Date(2022, time.June, 14, 17, 0, 0, 0, time.UTC)
	now := sampleTime.Add(time.Hour)
	c := newCoordinator(t, store, Config{Now: func() time.Time { return now }})

	err := c.Energy(context.Background(), strings.NewReader("9 v=250.5 "+unix(sampleTime)+"\n"))
	if err != nil {
		t.Fatalf("Energy() error = %v", err)
	}

	if len(store.energy) != 1 {
		t.Fatalf("got %d inserts, want 1", len(store.energy))
	}

	ins := store.energy[0]
	if ins.sample.CircuitID != 9 {
		t.Errorf("CircuitID = %d, want 9", ins.sample.CircuitID)
	}
	if ins.costs.TOU3 == nil {
		t.Fatal("on-peak sample left tou3_cost nil")
	}
	if ins.costs.TOU1 != nil || ins.costs.TOU2 != nil {
		t.Error("off-peak cost columns populated for an on-peak sample")
	}
	want := 250.5 * 0.170 / 1000
	if *ins.costs.TOU3 != want {
		t.Errorf("tou3_cost = %v, want %v", *ins.costs.TOU3, want)
	}
}

func TestEnergy_DropsNegligibleSample(t *testing.T) {
	store := &fakeStore{}
	now := time.Date(2022, time.June, 14, 17, 0, 0, 0, time.UTC)
	c := newCoordinator(t, store, Config{Now: func() time.Time { return now }})

	err := c.Energy(context.Background(), strings.NewReader("9 v=0.00000005 "+unix(now)+"\n"))
	if err != nil {
		t.Fatalf("Energy() error = %v", err)
	}
	if len(store.energy) != 0 {
		t.Errorf("got %d inserts for sub-threshold sample, want 0", len(store.energy))
	}
}

func TestEnergy_DropsStaleSample(t *testing.T) {
	store := &fakeStore{}
	sampleTime := time.Date(2022, time.June, 14, 17, 0, 0, 0, time.UTC)
	now := sampleTime.Add(48 * time.Hour)
	c := newCoordinator(t, store, Config{Now: func() time.Time { return now }})

	err := c.Energy(context.Background(), strings.NewReader("9 v=250.5 "+unix(sampleTime)+"\n"))
	if err != nil {
		t.Fatalf("Energy() error = %v", err)
	}
	if len(store.energy) != 0 {
		t.Errorf("got %d inserts for 2-day-old sample, want 0", len(store.energy))
	}
}

func TestEnergy_DuplicateIsNotAnError(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505"}
	store := &fakeStore{energyErrs: []error{dup, nil}}
	sampleTime := time.Date(2022, time.June, 14, 17, 0, 0, 0, time.UTC)
	now := sampleTime.Add(time.Hour)
	c := newCoordinator(t, store, Config{Now: func() time.Time { return now }})

	ts := unix(sampleTime)
	body := "9 v=250.5 " + ts + "\n" + "9 v=250.5 " + ts + "\n"

	if err := c.Energy(context.Background(), strings.NewReader(body)); err != nil {
		t.Fatalf("Energy() error = %v, duplicate should be benign", err)
	}
	// First insert hit the constraint, second went through.
	if len(store.energy) != 1 {
		t.Errorf("got %d inserts, want 1", len(store.energy))
	}
}

func TestEnergy_OtherStoreErrorAborts(t *testing.T) {
	wantErr := errors.New("disk full")
	store := &fakeStore{energyErrs: []error{wantErr}}
	sampleTime := time.Date(2022, time.June, 14, 17, 0, 0, 0, time.UTC)
	now := sampleTime.Add(time.Hour)
	c := newCoordinator(t, store, Config{Now: func() time.Time { return now }})

	err := c.Energy(context.Background(), strings.NewReader("9 v=250.5 "+unix(sampleTime)+"\n"))
	if !errors.Is(err, wantErr) {
		t.Errorf("Energy() error = %v, want %v", err, wantErr)
	}
}

func TestEnergy_MalformedLineSkipped(t *testing.T) {
	store := &fakeStore{}
	sampleTime := time.Date(2022, time.June, 14, 17, 0, 0, 0, time.UTC)
	now := sampleTime.Add(time.Hour)
	c := newCoordinator(t, store, Config{
		EnergyPolicy: SkipLine,
		Now:          func() time.Time { return now },
	})

	body := "garbage\n" + "9 v=250.5 " + unix(sampleTime) + "\n"
	if err := c.Energy(context.Background(), strings.NewReader(body)); err != nil {
		t.Fatalf("Energy() error = %v", err)
	}
	if len(store.energy) != 1 {
		t.Errorf("got %d inserts, want the line after the bad one", len(store.energy))
	}
}

func TestEnergy_FailRequestPolicyAbortsOnMalformed(t *testing.T) {
	store := &fakeStore{}
	c := newCoordinator(t, store, Config{EnergyPolicy: FailRequest})

	err := c.Energy(context.Background(), strings.NewReader("garbage\n"))
	if !errors.Is(err, lineproto.ErrMalformed) {
		t.Errorf("Energy() error = %v, want ErrMalformed", err)
	}
}

func unix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
