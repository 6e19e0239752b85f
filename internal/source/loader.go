package source

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-gota/gota/dataframe"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/lox/energybill/internal/httputil"
	"github.com/lox/energybill/internal/metrics"
	"github.com/lox/energybill/internal/store"
)

// Loader reads source datasets into raw tables. Supported locations are
// local paths (optionally file://), http(s):// URLs, ftp:// URLs and
// sqlite://<path>?dataset=<name> for datasets copied by the import command.
type Loader struct {
	client         *http.Client
	logger         *zap.Logger
	maxElapsedTime time.Duration
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		client:         httputil.NewClient(),
		logger:         logger.Named("source"),
		maxElapsedTime: 2 * time.Minute,
	}
}

// LoadPair loads the readings and prices datasets. Either failure is
// returned as a *DataUnavailableError.
func (l *Loader) LoadPair(ctx context.Context, readings, prices Spec) (RawTable, RawTable, error) {
	rt, err := l.Load(ctx, readings)
	if err != nil {
		return RawTable{}, RawTable{}, err
	}
	pt, err := l.Load(ctx, prices)
	if err != nil {
		return RawTable{}, RawTable{}, err
	}
	return rt, pt, nil
}

// Load reads one dataset and checks it carries every column in spec.
func (l *Loader) Load(ctx context.Context, spec Spec) (RawTable, error) {
	scheme := Scheme(spec.Location)
	start := time.Now()

	table, err := l.load(ctx, scheme, spec)
	metrics.SourceFetchLatency.WithLabelValues(spec.Name, scheme).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SourceFetchTotal.WithLabelValues(spec.Name, scheme, "error").Inc()
		return RawTable{}, &DataUnavailableError{Dataset: spec.Name, Location: spec.Location, Err: err}
	}
	metrics.SourceFetchTotal.WithLabelValues(spec.Name, scheme, "ok").Inc()
	metrics.RowsLoaded.WithLabelValues(spec.Name).Add(float64(table.Len()))

	l.logger.Info("dataset loaded",
		zap.String("dataset", spec.Name),
		zap.String("location", spec.Location),
		zap.Int("rows", table.Len()),
		zap.Duration("took", time.Since(start)))
	return table, nil
}

func (l *Loader) load(ctx context.Context, scheme string, spec Spec) (RawTable, error) {
	if spec.Location == "" {
		return RawTable{}, fmt.Errorf("no location configured")
	}

	var frame dataframe.DataFrame
	switch scheme {
	case "http", "https":
		body, err := l.fetchHTTP(ctx, spec.Location)
		if err != nil {
			return RawTable{}, err
		}
		if frame, err = readFrame(bytes.NewReader(body), spec.Delimiter); err != nil {
			return RawTable{}, err
		}
	case "ftp":
		body, err := fetchFTP(ctx, spec.Location)
		if err != nil {
			return RawTable{}, err
		}
		if frame, err = readFrame(bytes.NewReader(body), spec.Delimiter); err != nil {
			return RawTable{}, err
		}
	case "sqlite":
		var err error
		frame, err = l.readSQLite(spec)
		if err != nil {
			return RawTable{}, err
		}
	case "file":
		f, err := os.Open(strings.TrimPrefix(spec.Location, "file://"))
		if err != nil {
			return RawTable{}, err
		}
		defer f.Close()
		if frame, err = readFrame(f, spec.Delimiter); err != nil {
			return RawTable{}, err
		}
	default:
		return RawTable{}, fmt.Errorf("unsupported location scheme %q", scheme)
	}

	return NewRawTable(spec, frame)
}

func (l *Loader) readSQLite(spec Spec) (dataframe.DataFrame, error) {
	path, dataset := ParseSQLiteLocation(spec.Location, spec.Name)
	// sql.Open would silently create a missing database file.
	if _, err := os.Stat(path); err != nil {
		return dataframe.DataFrame{}, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	header, rows, err := store.New(db, l.logger).ReadDataset(dataset)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	return loadFrame(header, rows), nil
}

// Scheme returns the location scheme, "file" for bare paths.
func Scheme(location string) string {
	i := strings.Index(location, "://")
	if i <= 0 {
		return "file"
	}
	return strings.ToLower(location[:i])
}

// ParseSQLiteLocation splits sqlite://<path>?dataset=<name> into the
// database path and dataset name, defaulting the name to fallback.
func ParseSQLiteLocation(location, fallback string) (path, dataset string) {
	rest := strings.TrimPrefix(location, "sqlite://")
	path, query, _ := strings.Cut(rest, "?")
	dataset = fallback
	for _, kv := range strings.Split(query, "&") {
		if k, v, ok := strings.Cut(kv, "="); ok && k == "dataset" && v != "" {
			dataset = v
		}
	}
	return path, dataset
}

func (l *Loader) newBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = l.maxElapsedTime
	return backoff.WithContext(bo, ctx)
}
