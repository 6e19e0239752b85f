package ingest

import (
	"github.com/lox/energybill/internal/models"
)

// Plausibility flags. A flagged record is kept; the flags only surface in
// logs, /health and metrics.
const (
	FlagTempOutOfRange  = "temp_out_of_range"
	FlagEnergyUnlikely  = "energy_unlikely"
	FlagPriceOutOfRange = "price_out_of_range"
)

const (
	minTempC = -55.0
	maxTempC = 45.0

	// Per sampling interval of a household meter.
	maxEnergyKWh = 50.0

	// Day-ahead market harmonised min and max clearing prices, in cent/kWh.
	minPriceCent = -50.0
	maxPriceCent = 400.0
)

func ValidateRecord(r models.MergedRecord) []string {
	var flags []string

	if r.TemperatureC < minTempC || r.TemperatureC > maxTempC {
		flags = append(flags, FlagTempOutOfRange)
	}

	if r.EnergyKWh > maxEnergyKWh {
		flags = append(flags, FlagEnergyUnlikely)
	}

	if r.PriceCentPerKWh < minPriceCent || r.PriceCentPerKWh > maxPriceCent {
		flags = append(flags, FlagPriceOutOfRange)
	}

	return flags
}

// FlagCounts tallies ValidateRecord flags across records. Flags that never
// fire are absent from the map.
func FlagCounts(records []models.MergedRecord) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		for _, f := range ValidateRecord(r) {
			counts[f]++
		}
	}
	return counts
}
