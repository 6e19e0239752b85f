package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// ReadingsLayout is the consumption export timestamp, DD.MM.YYYY HH:MM.
	ReadingsLayout = "02.01.2006 15:04"
	// PricesLayout is the spot price export timestamp, DD-MM-YYYY HH:MM:SS.
	PricesLayout = "02-01-2006 15:04:05"
)

// ParseDecimal parses a number that may use a comma as decimal separator.
// Values that parse but are not finite (NaN, Inf) are rejected.
func ParseDecimal(raw string) (float64, error) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", raw)
	}
	return v, nil
}

// ParseTimestamp trims raw and parses it with layout as wall-clock time in
// loc. A wall-clock time skipped by a daylight saving transition is an error;
// time.ParseInLocation would silently move it onto the following hour.
func ParseTimestamp(raw, layout string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	wall, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, err
	}
	at, err := time.ParseInLocation(layout, s, loc)
	if err != nil {
		return time.Time{}, err
	}
	if !sameWallClock(wall, at) {
		return time.Time{}, fmt.Errorf("%s does not exist in %s", s, loc)
	}
	return at, nil
}

func sameWallClock(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd &&
		a.Hour() == b.Hour() && a.Minute() == b.Minute() && a.Second() == b.Second()
}
