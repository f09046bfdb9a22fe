package ingest

import (
	"strconv"

	"github.com/solidangle/housemetrics/db"
	"github.com/solidangle/housemetrics/derive"
	"github.com/solidangle/housemetrics/lineproto"
)

// Sensors report co2 in ppm; outdoor ambient is ~420, so anything
// below this floor is a misread and gets dropped.
const minCO2 = 350

// fieldSpec pairs a column with an optional acceptance guard. The
// specs are applied in order so the insert's column list is stable.
type fieldSpec struct {
	column string
	accept func(v float64) bool
}

var airQualityColumns = []fieldSpec{
	{column: "co2", accept: func(v float64) bool { return v >= minCO2 }},
	{column: "pm1"},
	{column: "pm2"},
	{column: "pm10"},
	{column: "tvoc"},
	{column: "eco2"},
}

// airQualityFields turns a parsed sample into the columns to persist.
// A field that is absent, unparseable, or rejected by its guard is
// omitted from the result; humidex is appended once temp and rh are
// both available.
func airQualityFields(sample lineproto.AirQualitySample) []db.Field {
	fields := make([]db.Field, 0, len(airQualityColumns)+3)

	for _, spec := range airQualityColumns {
		v, ok := numericField(sample, spec.column)
		if !ok {
			continue
		}
		if spec.accept != nil && !spec.accept(v) {
			continue
		}
		fields = append(fields, db.Field{Column: spec.column, Value: v})
	}

	temp, haveTemp := numericField(sample, "temp")
	rh, haveRH := numericField(sample, "rh")

	if haveTemp {
		fields = append(fields, db.Field{Column: "temp", Value: temp})
	}
	if haveRH {
		fields = append(fields, db.Field{Column: "rh", Value: rh})
	}
	if haveTemp && haveRH {
		// rh arrives as a percentage on the wire.
		fields = append(fields, db.Field{Column: "humidex", Value: derive.Humidex(temp, rh/100.0)})
	}

	return fields
}

func numericField(sample lineproto.AirQualitySample, name string) (float64, bool) {
	raw, ok := sample.Fields[name]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
