// Package dataset holds the merged records of one load and runs the
// aggregation and summary operations over them.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lox/energybill/internal/align"
	"github.com/lox/energybill/internal/ingest"
	"github.com/lox/energybill/internal/metrics"
	"github.com/lox/energybill/internal/models"
	"github.com/lox/energybill/internal/resample"
	"github.com/lox/energybill/internal/source"
	"github.com/lox/energybill/internal/stats"
)

// TableLoader fetches the raw readings and prices tables.
type TableLoader interface {
	LoadPair(ctx context.Context, readings, prices source.Spec) (source.RawTable, source.RawTable, error)
}

type Options struct {
	Readings source.Spec
	Prices   source.Spec
	Location *time.Location
}

// Context is the immutable result of one load. It is safe for concurrent
// use: every method returns freshly allocated slices.
type Context struct {
	id          uuid.UUID
	loc         *time.Location
	loadedAt    time.Time
	records     []models.MergedRecord
	diagnostics []ingest.Diagnostics
	flags       map[string]int
}

// New wraps already merged records. Timestamps are moved into loc so that
// calendar bucketing happens in local time.
func New(records []models.MergedRecord, loc *time.Location, diags ...ingest.Diagnostics) *Context {
	if loc == nil {
		loc = time.UTC
	}
	local := make([]models.MergedRecord, len(records))
	for i, r := range records {
		r.Timestamp = r.Timestamp.In(loc)
		local[i] = r
	}
	return &Context{
		id:          uuid.New(),
		loc:         loc,
		loadedAt:    time.Now(),
		records:     local,
		diagnostics: append([]ingest.Diagnostics(nil), diags...),
		flags:       ingest.FlagCounts(local),
	}
}

// Load fetches both sources, normalizes them and joins the result.
func Load(ctx context.Context, loader TableLoader, opts Options, logger *zap.Logger) (*Context, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	rawReadings, rawPrices, err := loader.LoadPair(ctx, opts.Readings, opts.Prices)
	if err != nil {
		return nil, err
	}

	norm := ingest.NewNormalizer(opts.Location, logger)
	readings, readingDiag := norm.Readings(rawReadings)
	prices, priceDiag := norm.Prices(rawPrices)

	merged, err := align.Join(readings, prices)
	if err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}

	ds := New(merged, opts.Location, readingDiag, priceDiag)
	metrics.MergedRecords.Set(float64(len(merged)))
	for flag, n := range ds.flags {
		metrics.QualityFlags.WithLabelValues(flag).Add(float64(n))
		logger.Warn("implausible records",
			zap.String("load_id", ds.id.String()),
			zap.String("flag", flag),
			zap.Int("count", n))
	}

	logger.Info("dataset ready",
		zap.String("load_id", ds.id.String()),
		zap.Int("readings", len(readings)),
		zap.Int("prices", len(prices)),
		zap.Int("merged", len(merged)),
		zap.String("timezone", ds.loc.String()))
	if len(merged) == 0 {
		logger.Warn("no timestamps shared by readings and prices", zap.String("load_id", ds.id.String()))
	}
	return ds, nil
}

func (c *Context) ID() uuid.UUID            { return c.id }
func (c *Context) Location() *time.Location { return c.loc }
func (c *Context) LoadedAt() time.Time      { return c.loadedAt }
func (c *Context) Len() int                 { return len(c.records) }

// Records returns a copy of the merged records, ascending by timestamp.
func (c *Context) Records() []models.MergedRecord {
	return append([]models.MergedRecord(nil), c.records...)
}

func (c *Context) Diagnostics() []ingest.Diagnostics {
	return append([]ingest.Diagnostics(nil), c.diagnostics...)
}

// Dropped returns the number of rows dropped during normalization, by
// dataset name.
func (c *Context) Dropped() map[string]int {
	out := make(map[string]int, len(c.diagnostics))
	for _, d := range c.diagnostics {
		out[d.Dataset] += d.Dropped()
	}
	return out
}

// QualityFlags returns how many merged records carry each plausibility flag.
func (c *Context) QualityFlags() map[string]int {
	out := make(map[string]int, len(c.flags))
	for k, v := range c.flags {
		out[k] = v
	}
	return out
}

func (c *Context) Aggregate(g models.Granularity) ([]models.Bucket, error) {
	start := time.Now()
	buckets, err := resample.Aggregate(c.records, g)
	if err != nil {
		return nil, err
	}
	metrics.ComputeLatency.WithLabelValues("aggregate", string(g)).Observe(time.Since(start).Seconds())
	return buckets, nil
}

// Summarize reports on buckets between the calendar days of start and end,
// both inclusive: end is widened to the last instant of its day.
func (c *Context) Summarize(buckets []models.Bucket, start, end time.Time) (*models.Report, error) {
	from := resample.DayStart(start.In(c.loc))
	to := EndOfDay(end.In(c.loc))

	began := time.Now()
	report, err := stats.Summarize(buckets, from, to)
	if errors.Is(err, stats.ErrEmptyRange) {
		metrics.EmptyRanges.Inc()
	}
	if err != nil {
		return nil, err
	}
	metrics.ComputeLatency.WithLabelValues("summarize", "").Observe(time.Since(began).Seconds())
	return report, nil
}

// Span returns the first and last period start in buckets, for defaulting a
// date range selection. ok is false when buckets is empty.
func (c *Context) Span(buckets []models.Bucket) (first, last time.Time, ok bool) {
	if len(buckets) == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, last = buckets[0].PeriodStart, buckets[0].PeriodStart
	for _, b := range buckets[1:] {
		if b.PeriodStart.Before(first) {
			first = b.PeriodStart
		}
		if b.PeriodStart.After(last) {
			last = b.PeriodStart
		}
	}
	return first, last, true
}

// ParseDate parses a YYYY-MM-DD calendar date as local midnight.
func (c *Context) ParseDate(s string) (time.Time, error) {
	return ParseDate(s, c.loc)
}

func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

// EndOfDay returns the last instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location()).Add(-time.Nanosecond)
}
