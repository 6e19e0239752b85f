package ingest

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/lox/energybill/internal/metrics"
	"github.com/lox/energybill/internal/models"
	"github.com/lox/energybill/internal/source"
)

var errNegativeEnergy = errors.New("energy must not be negative")

// Diagnostics records what happened to the rows of one dataset during
// normalization. Malformed rows never abort a load; they end up here.
type Diagnostics struct {
	Dataset    string
	Total      int
	Kept       int
	Duplicates int
	Malformed  []error
}

// Dropped is the number of rows that did not survive normalization.
func (d Diagnostics) Dropped() int {
	return d.Total - d.Kept
}

func (d Diagnostics) MalformedValues() int {
	n := 0
	for _, err := range d.Malformed {
		var mv *MalformedValueError
		if errors.As(err, &mv) {
			n++
		}
	}
	return n
}

func (d Diagnostics) MalformedTimestamps() int {
	n := 0
	for _, err := range d.Malformed {
		var mt *MalformedTimestampError
		if errors.As(err, &mt) {
			n++
		}
	}
	return n
}

// Normalizer turns raw string tables into typed, timestamp-unique rows.
type Normalizer struct {
	loc    *time.Location
	logger *zap.Logger
}

func NewNormalizer(loc *time.Location, logger *zap.Logger) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{loc: loc, logger: logger.Named("ingest")}
}

// Readings parses the consumption table. Rows with a malformed timestamp,
// energy or temperature are dropped; of several rows sharing a timestamp the
// first well-formed one in file order wins.
func (n *Normalizer) Readings(t source.RawTable) ([]models.Reading, Diagnostics) {
	ts := t.Column(source.ColTimestamp)
	energy := t.Column(source.ColEnergy)
	temp := t.Column(source.ColTemperature)

	rows := minLen(ts, energy, temp)
	readings, diag := fold(t.Dataset, rows, func(i int) (time.Time, models.Reading, error) {
		line := i + 2
		at, err := ParseTimestamp(ts[i], ReadingsLayout, n.loc)
		if err != nil {
			return time.Time{}, models.Reading{}, &MalformedTimestampError{Dataset: t.Dataset, Line: line, Value: ts[i], Layout: ReadingsLayout, Err: err}
		}
		kwh, err := ParseDecimal(energy[i])
		if err != nil {
			return time.Time{}, models.Reading{}, &MalformedValueError{Dataset: t.Dataset, Line: line, Column: source.ColEnergy, Value: energy[i], Err: err}
		}
		if kwh < 0 {
			return time.Time{}, models.Reading{}, &MalformedValueError{Dataset: t.Dataset, Line: line, Column: source.ColEnergy, Value: energy[i], Err: errNegativeEnergy}
		}
		celsius, err := ParseDecimal(temp[i])
		if err != nil {
			return time.Time{}, models.Reading{}, &MalformedValueError{Dataset: t.Dataset, Line: line, Column: source.ColTemperature, Value: temp[i], Err: err}
		}
		return at, models.Reading{Timestamp: at, EnergyKWh: kwh, TemperatureC: celsius}, nil
	})

	n.report(diag)
	return readings, diag
}

// Prices parses the spot price table with the same drop and dedup rules as
// Readings.
func (n *Normalizer) Prices(t source.RawTable) ([]models.PricePoint, Diagnostics) {
	ts := t.Column(source.ColTimestamp)
	price := t.Column(source.ColPrice)

	rows := minLen(ts, price)
	prices, diag := fold(t.Dataset, rows, func(i int) (time.Time, models.PricePoint, error) {
		line := i + 2
		at, err := ParseTimestamp(ts[i], PricesLayout, n.loc)
		if err != nil {
			return time.Time{}, models.PricePoint{}, &MalformedTimestampError{Dataset: t.Dataset, Line: line, Value: ts[i], Layout: PricesLayout, Err: err}
		}
		cents, err := ParseDecimal(price[i])
		if err != nil {
			return time.Time{}, models.PricePoint{}, &MalformedValueError{Dataset: t.Dataset, Line: line, Column: source.ColPrice, Value: price[i], Err: err}
		}
		return at, models.PricePoint{Timestamp: at, PriceCentPerKWh: cents}, nil
	})

	n.report(diag)
	return prices, diag
}

// fold parses rows 0..count-1 in order, collecting well-formed values and
// the errors of the rest. Keys are compared as instants.
func fold[T any](dataset string, count int, parse func(i int) (time.Time, T, error)) ([]T, Diagnostics) {
	diag := Diagnostics{Dataset: dataset, Total: count}
	seen := make(map[int64]struct{}, count)
	out := make([]T, 0, count)

	for i := 0; i < count; i++ {
		at, v, err := parse(i)
		if err != nil {
			diag.Malformed = append(diag.Malformed, err)
			continue
		}
		key := at.UnixNano()
		if _, dup := seen[key]; dup {
			diag.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}

	diag.Kept = len(out)
	return out, diag
}

func (n *Normalizer) report(diag Diagnostics) {
	values, timestamps := diag.MalformedValues(), diag.MalformedTimestamps()
	metrics.RowsDropped.WithLabelValues(diag.Dataset, metrics.ReasonMalformedValue).Add(float64(values))
	metrics.RowsDropped.WithLabelValues(diag.Dataset, metrics.ReasonMalformedTimestamp).Add(float64(timestamps))
	metrics.RowsDropped.WithLabelValues(diag.Dataset, metrics.ReasonDuplicate).Add(float64(diag.Duplicates))

	for _, err := range diag.Malformed {
		n.logger.Debug("row dropped", zap.String("dataset", diag.Dataset), zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("dataset", diag.Dataset),
		zap.Int("total", diag.Total),
		zap.Int("kept", diag.Kept),
		zap.Int("duplicates", diag.Duplicates),
		zap.Int("malformed_values", values),
		zap.Int("malformed_timestamps", timestamps),
	}
	if len(diag.Malformed) > 0 {
		n.logger.Warn("dropped malformed rows", fields...)
		return
	}
	n.logger.Info("dataset normalized", fields...)
}

func minLen(cols ...[]string) int {
	if len(cols) == 0 {
		return 0
	}
	n := len(cols[0])
	for _, c := range cols[1:] {
		if len(c) < n {
			n = len(c)
		}
	}
	return n
}
