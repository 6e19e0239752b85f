// Package resample groups merged records into calendar buckets.
package resample

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/lox/energybill/internal/models"
)

type group struct {
	bucket models.Bucket
	energy []float64
	price  []float64
	temp   []float64
	bill   decimal.Decimal
}

// Aggregate buckets records by the calendar period of their timestamp, in the
// timestamp's own location. Energy and bill are summed, price and
// temperature averaged. Periods without records produce no bucket. The
// result is ascending by PeriodStart and the input is not modified.
func Aggregate(records []models.MergedRecord, g models.Granularity) ([]models.Bucket, error) {
	// Validate up front so an empty input still rejects a bad granularity.
	if _, err := PeriodStart(time.Time{}, g); err != nil {
		return nil, err
	}

	groups := make(map[int64]*group)
	for _, r := range records {
		start, err := PeriodStart(r.Timestamp, g)
		if err != nil {
			return nil, err
		}
		key := start.UnixNano()
		grp, ok := groups[key]
		if !ok {
			grp = &group{bucket: models.Bucket{PeriodStart: start}}
			groups[key] = grp
		}
		grp.energy = append(grp.energy, r.EnergyKWh)
		grp.price = append(grp.price, r.PriceCentPerKWh)
		grp.temp = append(grp.temp, r.TemperatureC)
		grp.bill = grp.bill.Add(decimal.NewFromFloat(r.BillEUR))
	}

	buckets := make([]models.Bucket, 0, len(groups))
	for _, grp := range groups {
		b := grp.bucket
		b.EnergyKWhSum = floats.Sum(grp.energy)
		b.BillEURSum = grp.bill.InexactFloat64()
		b.PriceMean = stat.Mean(grp.price, nil)
		b.TemperatureMean = stat.Mean(grp.temp, nil)
		b.Count = len(grp.energy)
		buckets = append(buckets, b)
	}

	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].PeriodStart.Before(buckets[j].PeriodStart)
	})
	return buckets, nil
}
