// Package align joins normalized readings and prices into merged records.
package align

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lox/energybill/internal/models"
)

var centsPerEuro = decimal.NewFromInt(100)

// CardinalityViolationError reports a timestamp that maps to more than one
// row on one side of the join. Normalized input never produces this; seeing
// it means the dedup step was bypassed or broken.
type CardinalityViolationError struct {
	Dataset   string
	Timestamp time.Time
	Count     int
}

func (e *CardinalityViolationError) Error() string {
	return fmt.Sprintf("join cardinality violated: %d %s rows at %s", e.Count, e.Dataset, e.Timestamp.Format(time.RFC3339))
}

// Join inner-joins readings and prices on timestamp, one to one. Timestamps
// missing from either side are dropped. The result is sorted by timestamp.
func Join(readings []models.Reading, prices []models.PricePoint) ([]models.MergedRecord, error) {
	if err := checkUnique("readings", len(readings), func(i int) time.Time { return readings[i].Timestamp }); err != nil {
		return nil, err
	}

	if err := checkUnique("prices", len(prices), func(i int) time.Time { return prices[i].Timestamp }); err != nil {
		return nil, err
	}

	priceAt := make(map[int64]float64, len(prices))
	for _, p := range prices {
		priceAt[p.Timestamp.UnixNano()] = p.PriceCentPerKWh
	}

	merged := make([]models.MergedRecord, 0, min(len(readings), len(prices)))
	for _, r := range readings {
		price, ok := priceAt[r.Timestamp.UnixNano()]
		if !ok {
			continue
		}
		merged = append(merged, models.MergedRecord{
			Timestamp:       r.Timestamp,
			EnergyKWh:       r.EnergyKWh,
			TemperatureC:    r.TemperatureC,
			PriceCentPerKWh: price,
			BillEUR:         Bill(price, r.EnergyKWh),
		})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged, nil
}

// Bill returns the cost in EUR of energy kWh at a price in cents per kWh.
func Bill(priceCentPerKWh, energyKWh float64) float64 {
	return decimal.NewFromFloat(priceCentPerKWh).
		Mul(decimal.NewFromFloat(energyKWh)).
		Div(centsPerEuro).
		InexactFloat64()
}

func checkUnique(dataset string, n int, at func(i int) time.Time) error {
	counts := make(map[int64]int, n)
	for i := 0; i < n; i++ {
		counts[at(i).UnixNano()]++
	}
	for i := 0; i < n; i++ {
		if c := counts[at(i).UnixNano()]; c > 1 {
			return &CardinalityViolationError{Dataset: dataset, Timestamp: at(i), Count: c}
		}
	}
	return nil
}
