package models

import (
	"fmt"
	"strings"
	"time"
)

// Reading is one sampling interval from the consumption export.
type Reading struct {
	Timestamp    time.Time
	EnergyKWh    float64
	TemperatureC float64
}

// PricePoint is one hourly spot price.
type PricePoint struct {
	Timestamp       time.Time
	PriceCentPerKWh float64
}

// MergedRecord is a reading joined with the price for the same timestamp.
type MergedRecord struct {
	Timestamp       time.Time `json:"timestamp"`
	EnergyKWh       float64   `json:"energy_kwh"`
	TemperatureC    float64   `json:"temperature_c"`
	PriceCentPerKWh float64   `json:"price_cent_per_kwh"`
	BillEUR         float64   `json:"bill_eur"`
}

// Bucket summarises every merged record whose timestamp falls in
// [PeriodStart, next period start).
type Bucket struct {
	PeriodStart     time.Time `json:"period_start"`
	EnergyKWhSum    float64   `json:"energy_kwh_sum"`
	BillEURSum      float64   `json:"bill_eur_sum"`
	PriceMean       float64   `json:"price_mean"`
	TemperatureMean float64   `json:"temperature_mean"`
	Count           int       `json:"count"`
}

type Granularity string

const (
	Hourly Granularity = "hourly"
	Daily  Granularity = "daily"
	Weekly Granularity = "weekly"
)

// Granularities lists the supported resampling widths, finest first.
var Granularities = []Granularity{Hourly, Daily, Weekly}

// Label returns the title-cased name ("Hourly", "Daily", "Weekly").
func (g Granularity) Label() string {
	if g == "" {
		return ""
	}
	return strings.ToUpper(string(g[:1])) + string(g[1:])
}

// PeriodNoun returns the singular period name used in report text.
func (g Granularity) PeriodNoun() string {
	switch g {
	case Hourly:
		return "hour"
	case Daily:
		return "day"
	case Weekly:
		return "week"
	}
	return string(g)
}

// UnknownGranularityError is returned for any granularity outside Granularities.
type UnknownGranularityError struct {
	Value string
}

func (e *UnknownGranularityError) Error() string {
	return fmt.Sprintf("unknown granularity %q (want hourly, daily or weekly)", e.Value)
}

func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Granularities {
		if g == known {
			return g, nil
		}
	}
	return "", &UnknownGranularityError{Value: s}
}
