// Package tariff classifies instants against the local time-of-use
// electricity schedule and prices energy samples accordingly.
package tariff

import "time"

// Bucket is a time-of-use price band.
type Bucket int

const (
	BucketNone Bucket = iota
	OffPeak           // TOU1
	MidPeak           // TOU2
	OnPeak            // TOU3
)

// String returns the column-style name of the bucket.
func (b Bucket) String() string {
	switch b {
	case OffPeak:
		return "tou1"
	case MidPeak:
		return "tou2"
	case OnPeak:
		return "tou3"
	default:
		return "none"
	}
}

// $/kWh per bucket.
const (
	offPeakRate = 0.082
	midPeakRate = 0.113
	onPeakRate  = 0.170
)

// Date is a recurring month/day holiday entry.
type Date struct {
	Month time.Month
	Day   int
}

// DefaultHolidays is the statutory holiday set observed by the
// utility. The dates are the observed dates for a single year and do
// not shift with the calendar; override via configuration when they
// drift.
var DefaultHolidays = []Date{
	{time.July, 1},
	{time.August, 1},
	{time.September, 5},
	{time.October, 10},
	{time.December, 26},
	{time.December, 27},
}

// Costs carries the three persisted cost columns. Exactly one is
// non-nil for any classified sample; the row always has all three.
type Costs struct {
	TOU1 *float64
	TOU2 *float64
	TOU3 *float64
}

// Classifier maps instants to buckets under a fixed civil timezone.
type Classifier struct {
	loc      *time.Location
	holidays map[Date]struct{}
}

// NewClassifier builds a classifier for the given location and holiday
// set. A nil holiday slice means DefaultHolidays.
func NewClassifier(loc *time.Location, holidays []Date) *Classifier {
	if holidays == nil {
		holidays = DefaultHolidays
	}
	set := make(map[Date]struct{}, len(holidays))
	for _, d := range holidays {
		set[d] = struct{}{}
	}
	return &Classifier{loc: loc, holidays: set}
}

// Classify returns the bucket in effect at t. Rules are evaluated in
// order, first match wins: weekends, evenings/nights and holidays are
// off-peak; 11:00-17:00 is on-peak; everything else is mid-peak.
func (c *Classifier) Classify(t time.Time) Bucket {
	local := t.In(c.loc)
	hour := local.Hour()

	_, holiday := c.holidays[Date{Month: local.Month(), Day: local.Day()}]

	switch {
	case local.Weekday() == time.Saturday || local.Weekday() == time.Sunday,
		hour >= 19 || hour < 7,
		holiday:
		return OffPeak
	case hour >= 11 && hour < 17:
		return OnPeak
	default:
		return MidPeak
	}
}

// Costs classifies t and prices wattHours into the matching cost
// column, leaving the other two nil.
func (c *Classifier) Costs(t time.Time, wattHours float64) Costs {
	switch c.Classify(t) {
	case OffPeak:
		cost := wattHours * offPeakRate / 1000
		return Costs{TOU1: &cost}
	case OnPeak:
		cost := wattHours * onPeakRate / 1000
		return Costs{TOU3: &cost}
	default:
		cost := wattHours * midPeakRate / 1000
		return Costs{TOU2: &cost}
	}
}
