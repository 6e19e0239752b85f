package dataset

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/energybill/internal/ingest"
	"github.com/lox/energybill/internal/models"
	"github.com/lox/energybill/internal/source"
	"github.com/lox/energybill/internal/stats"
)

type fakeLoader struct {
	readings [][]string
	prices   [][]string
	err      error
}

func (f fakeLoader) LoadPair(_ context.Context, readings, prices source.Spec) (source.RawTable, source.RawTable, error) {
	if f.err != nil {
		return source.RawTable{}, source.RawTable{}, f.err
	}
	rt, err := table(readings, f.readings)
	if err != nil {
		return source.RawTable{}, source.RawTable{}, err
	}
	pt, err := table(prices, f.prices)
	if err != nil {
		return source.RawTable{}, source.RawTable{}, err
	}
	return rt, pt, nil
}

func table(spec source.Spec, records [][]string) (source.RawTable, error) {
	frame := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	return source.NewRawTable(spec, frame)
}

func testOptions() Options {
	return Options{
		Readings: source.ReadingsSpec("readings.csv"),
		Prices:   source.PricesSpec("prices.csv"),
		Location: time.UTC,
	}
}

func sampleLoader() fakeLoader {
	return fakeLoader{
		readings: [][]string{
			{"Time", "Energy (kWh)", "Temperature"},
			{"01.01.2024 10:00", "1,0", "-5,0"},
			{"01.01.2024 10:00", "9,0", "-5,0"},
			{"01.01.2024 11:00", "3,0", "-3,0"},
			{"02.01.2024 23:00", "2,0", "-1,0"},
			{"03.01.2024 08:00", "bad", "-1,0"},
		},
		prices: [][]string{
			{"Time", "Price (cent/kWh)"},
			{"01-01-2024 10:00:00", "10.0"},
			{"01-01-2024 11:00:00", "10.0"},
			{"02-01-2024 23:00:00", "5.0"},
			{"05-01-2024 00:00:00", "5.0"},
		},
	}
}

func TestLoad(t *testing.T) {
	ds, err := Load(context.Background(), sampleLoader(), testOptions(), nil)
	require.NoError(t, err)

	records := ds.Records()
	require.Len(t, records, 3)
	assert.Equal(t, 1.0, records[0].EnergyKWh, "first duplicate wins")
	assert.Equal(t, 0.1, records[0].BillEUR)
	assert.Equal(t, 0.3, records[1].BillEUR)
	assert.Equal(t, 0.1, records[2].BillEUR)

	dropped := ds.Dropped()
	assert.Equal(t, 2, dropped[source.DatasetReadings])
	assert.Equal(t, 0, dropped[source.DatasetPrices])
	assert.Len(t, ds.Diagnostics(), 2)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", ds.ID().String())
}

func TestLoad_SingleRowScenario(t *testing.T) {
	loader := fakeLoader{
		readings: [][]string{{"Time", "Energy (kWh)", "Temperature"}, {"01.01.2024 10:00", "1,5", "-5,2"}},
		prices:   [][]string{{"Time", "Price (cent/kWh)"}, {"01-01-2024 10:00:00", "8.0"}},
	}
	ds, err := Load(context.Background(), loader, testOptions(), nil)
	require.NoError(t, err)

	records := ds.Records()
	require.Len(t, records, 1)
	assert.Equal(t, 1.5, records[0].EnergyKWh)
	assert.Equal(t, -5.2, records[0].TemperatureC)
	assert.Equal(t, 8.0, records[0].PriceCentPerKWh)
	assert.Equal(t, 0.12, records[0].BillEUR)
}

func TestLoad_SourceError(t *testing.T) {
	want := &source.DataUnavailableError{Dataset: "readings", Location: "missing.csv", Err: errors.New("no such file")}
	ds, err := Load(context.Background(), fakeLoader{err: want}, testOptions(), nil)
	assert.Nil(t, ds)

	var du *source.DataUnavailableError
	require.True(t, errors.As(err, &du))
	assert.Equal(t, "missing.csv", du.Location)
}

func TestContext_RecordsIsACopy(t *testing.T) {
	ds := New([]models.MergedRecord{{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), EnergyKWh: 1}}, time.UTC)
	records := ds.Records()
	records[0].EnergyKWh = 99
	assert.Equal(t, 1.0, ds.Records()[0].EnergyKWh)
}

func TestContext_AggregateAndSummarize(t *testing.T) {
	ds, err := Load(context.Background(), sampleLoader(), testOptions(), nil)
	require.NoError(t, err)

	daily, err := ds.Aggregate(models.Daily)
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, 4.0, daily[0].EnergyKWhSum)
	assert.Equal(t, 0.4, daily[0].BillEURSum)

	hourly, err := ds.Aggregate(models.Hourly)
	require.NoError(t, err)

	// End is a date; the 23:00 bucket on that date must be included.
	start, err := ds.ParseDate("2024-01-01")
	require.NoError(t, err)
	end, err := ds.ParseDate("2024-01-02")
	require.NoError(t, err)

	report, err := ds.Summarize(hourly, start, end)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Count)
	assert.Equal(t, 6.0, report.TotalEnergy.Value)
	assert.True(t, report.PeakEnergyAt.Equal(time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)))

	report, err = ds.Summarize(hourly, start, start)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count)
}

func TestContext_SummarizeEmptyRange(t *testing.T) {
	ds, err := Load(context.Background(), sampleLoader(), testOptions(), nil)
	require.NoError(t, err)
	daily, err := ds.Aggregate(models.Daily)
	require.NoError(t, err)

	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	report, err := ds.Summarize(daily, from, from.AddDate(0, 0, 7))
	assert.Nil(t, report)
	assert.ErrorIs(t, err, stats.ErrEmptyRange)
}

func TestContext_AggregateUnknownGranularity(t *testing.T) {
	ds := New(nil, time.UTC)
	_, err := ds.Aggregate("monthly")
	var ug *models.UnknownGranularityError
	assert.True(t, errors.As(err, &ug))
}

func TestContext_Span(t *testing.T) {
	ds := New(nil, time.UTC)
	_, _, ok := ds.Span(nil)
	assert.False(t, ok)

	buckets := []models.Bucket{
		{PeriodStart: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{PeriodStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{PeriodStart: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
	}
	first, last, ok := ds.Span(buckets)
	require.True(t, ok)
	assert.Equal(t, 1, first.Day())
	assert.Equal(t, 5, last.Day())
}

func TestNew_MovesTimestampsIntoLocation(t *testing.T) {
	plus2 := time.FixedZone("EET", 2*3600)
	ds := New([]models.MergedRecord{{Timestamp: time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)}}, plus2)

	daily, err := ds.Aggregate(models.Daily)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, 2, daily[0].PeriodStart.Day(), "23:00 UTC is already the next day at UTC+2")
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate(" 2024-03-05 ", time.UTC)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)))

	_, err = ParseDate("05.03.2024", time.UTC)
	assert.Error(t, err)
}

func TestEndOfDay(t *testing.T) {
	got := EndOfDay(time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC))
	assert.True(t, got.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)))
}

func TestContext_QualityFlags(t *testing.T) {
	ds := New([]models.MergedRecord{
		{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), TemperatureC: 80},
		{Timestamp: time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), TemperatureC: -3},
	}, time.UTC)

	flags := ds.QualityFlags()
	assert.Equal(t, map[string]int{ingest.FlagTempOutOfRange: 1}, flags)

	flags[ingest.FlagTempOutOfRange] = 99
	assert.Equal(t, 1, ds.QualityFlags()[ingest.FlagTempOutOfRange])
}
