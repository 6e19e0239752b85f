// Package stats computes the descriptive summary of a bucket range.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/lox/energybill/internal/models"
)

// ErrEmptyRange is returned when no bucket falls inside the requested range.
var ErrEmptyRange = errors.New("no data in selected range")

// Filter returns the buckets whose PeriodStart lies in [start, end], sorted
// ascending. The input slice is left untouched.
func Filter(buckets []models.Bucket, start, end time.Time) []models.Bucket {
	out := make([]models.Bucket, 0, len(buckets))
	for _, b := range buckets {
		if b.PeriodStart.Before(start) || b.PeriodStart.After(end) {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PeriodStart.Before(out[j].PeriodStart)
	})
	return out
}

// Summarize reports on the buckets in [start, end]. Values that cannot be
// computed (ratios over a zero denominator, the spread of a single bucket)
// come back undefined rather than as NaN or Inf.
func Summarize(buckets []models.Bucket, start, end time.Time) (*models.Report, error) {
	in := Filter(buckets, start, end)
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: %s to %s", ErrEmptyRange, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	n := len(in)
	energy := make([]float64, n)
	bill := make([]float64, n)
	price := make([]float64, n)
	temp := make([]float64, n)
	totalBill := decimal.Zero
	for i, b := range in {
		energy[i] = b.EnergyKWhSum
		bill[i] = b.BillEURSum
		price[i] = b.PriceMean
		temp[i] = b.TemperatureMean
		totalBill = totalBill.Add(decimal.NewFromFloat(b.BillEURSum))
	}

	r := &models.Report{
		Start:        start,
		End:          end,
		Count:        n,
		TotalEnergy:  models.Defined(floats.Sum(energy), models.UnitKWh),
		TotalBill:    models.Defined(totalBill.InexactFloat64(), models.UnitEUR),
		Energy:       describe(energy, models.UnitKWh),
		Bill:         describe(bill, models.UnitEUR),
		Price:        describe(price, models.UnitCentPerKWh),
		Temperature:  describe(temp, models.UnitCelsius),
		PeakPriceAt:  in[floats.MaxIdx(price)].PeriodStart,
		PeakEnergyAt: in[floats.MaxIdx(energy)].PeriodStart,
		PriceRange:   models.Defined(floats.Max(price)-floats.Min(price), models.UnitCentPerKWh),
	}

	r.EnergyToBillRatio = ratio(r.TotalEnergy.Value, r.TotalBill.Value, models.UnitKWhPerEUR)
	r.ConsumptionPerDegree = ratio(r.TotalEnergy.Value, r.Temperature.Mean.Value, models.UnitKWhPerCelsius)
	return r, nil
}

func describe(x []float64, unit models.Unit) models.SeriesStats {
	s := models.SeriesStats{
		Mean:   models.Defined(stat.Mean(x, nil), unit),
		Median: models.Defined(Median(x), unit),
		StdDev: models.Undefined(unit),
		Min:    models.Defined(floats.Min(x), unit),
		Max:    models.Defined(floats.Max(x), unit),
	}
	if len(x) > 1 {
		s.StdDev = models.Defined(stat.StdDev(x, nil), unit)
	}
	return s
}

// Median returns the middle value of x, averaging the two middle values when
// len(x) is even. x is not reordered. Median of an empty slice is NaN.
func Median(x []float64) float64 {
	// stat.Quantile picks an order statistic instead of interpolating.
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	n := len(sorted)
	switch {
	case n == 0:
		return math.NaN()
	case n%2 == 1:
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func ratio(num, den float64, unit models.Unit) models.Quantity {
	if den == 0 {
		return models.Undefined(unit)
	}
	return models.Defined(num/den, unit)
}
