package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/lox/energybill/internal/api"
	"github.com/lox/energybill/internal/config"
	"github.com/lox/energybill/internal/dataset"
	"github.com/lox/energybill/internal/models"
	"github.com/lox/energybill/internal/report"
	"github.com/lox/energybill/internal/source"
	"github.com/lox/energybill/internal/stats"
	"github.com/lox/energybill/internal/store"
)

type CLI struct {
	Config  string                   `help:"Path to YAML config file." default:"config.yaml" type:"path"`
	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to .env file'"`

	Serve   ServeCmd   `cmd:"" help:"Load the datasets and serve the JSON API."`
	Report  ReportCmd  `cmd:"" help:"Print a summary report for a date range."`
	Import  ImportCmd  `cmd:"" help:"Copy the configured source datasets into a SQLite source database."`
	Imports ImportsCmd `cmd:"" help:"List the datasets held in a SQLite source database."`
}

type appContext struct {
	ctx    context.Context
	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
}

type ServeCmd struct {
	Port string `help:"HTTP server port." default:"8080" env:"PORT"`
}

func (c *ServeCmd) Run(app *appContext) error {
	ds, err := loadDataset(app)
	if err != nil {
		return err
	}
	return api.NewServer(ds, c.Port, app.logger).Run(app.ctx)
}

type ReportCmd struct {
	Granularity string `help:"Bucket width: hourly, daily or weekly." default:"daily" short:"g"`
	Start       string `help:"First date to include (YYYY-MM-DD). Defaults to the first bucket."`
	End         string `help:"Last date to include (YYYY-MM-DD). Defaults to the last bucket."`
}

func (c *ReportCmd) Run(app *appContext) error {
	g, err := models.ParseGranularity(c.Granularity)
	if err != nil {
		return err
	}

	ds, err := loadDataset(app)
	if err != nil {
		return err
	}

	buckets, err := ds.Aggregate(g)
	if err != nil {
		return err
	}

	first, last, _ := ds.Span(buckets)
	start, end := first, last
	if c.Start != "" {
		if start, err = ds.ParseDate(c.Start); err != nil {
			return fmt.Errorf("--start: %w", err)
		}
	}
	if c.End != "" {
		if end, err = ds.ParseDate(c.End); err != nil {
			return fmt.Errorf("--end: %w", err)
		}
	}
	if end.Before(start) {
		return errors.New("--end is before --start")
	}

	summary, err := ds.Summarize(buckets, start, end)
	if errors.Is(err, stats.ErrEmptyRange) {
		fmt.Fprintln(app.out, "No data available for the selected date range.")
		return nil
	}
	if err != nil {
		return err
	}
	return report.Write(app.out, summary, g)
}

type ImportCmd struct {
	DB string `help:"Path to SQLite source database." default:"data/energybill.db" type:"path"`
}

func (c *ImportCmd) Run(app *appContext) error {
	st, closeDB, err := openStore(c.DB, app.logger)
	if err != nil {
		return err
	}
	defer closeDB()

	loader := source.NewLoader(app.logger)
	for _, spec := range []source.Spec{app.cfg.ReadingsSpec(), app.cfg.PricesSpec()} {
		table, err := loader.Load(app.ctx, spec)
		if err != nil {
			return err
		}
		imp, err := st.ReplaceDataset(spec.Name, spec.Location, table.Header(), table.Rows())
		if err != nil {
			return fmt.Errorf("import %s: %w", spec.Name, err)
		}
		status := "imported"
		if imp.Unchanged {
			status = "unchanged"
		}
		app.logger.Info("dataset "+status,
			zap.String("dataset", imp.Dataset),
			zap.Int64("import_id", imp.ID),
			zap.Int("rows", imp.RowCount))
		fmt.Fprintf(app.out, "%s: %d rows %s -> sqlite://%s?dataset=%s\n", imp.Dataset, imp.RowCount, status, c.DB, imp.Dataset)
	}
	return nil
}

type ImportsCmd struct {
	DB string `help:"Path to SQLite source database." default:"data/energybill.db" type:"existingfile"`
}

func (c *ImportsCmd) Run(app *appContext) error {
	st, closeDB, err := openStore(c.DB, app.logger)
	if err != nil {
		return err
	}
	defer closeDB()

	imports, err := st.ListImports()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(app.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATASET\tROWS\tIMPORTED\tHASH\tLOCATION")
	for _, imp := range imports {
		hash := imp.ContentHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", imp.Dataset, imp.RowCount, imp.ImportedAt.Format(time.RFC3339), hash, imp.Location)
	}
	return tw.Flush()
}

func loadDataset(app *appContext) (*dataset.Context, error) {
	loc, err := app.cfg.Location()
	if err != nil {
		return nil, err
	}
	return dataset.Load(app.ctx, source.NewLoader(app.logger), dataset.Options{
		Readings: app.cfg.ReadingsSpec(),
		Prices:   app.cfg.PricesSpec(),
		Location: loc,
	}, app.logger)
}

func openStore(path string, logger *zap.Logger) (*store.Store, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db, logger)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return st, func() { db.Close() }, nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("energybill"),
		kong.Description("Electricity consumption and spot price analysis."),
		kong.UsageOnError(),
	)

	if err := run(kctx, &cli, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "energybill: %v\n", err)
		os.Exit(1)
	}
}

func run(kctx *kong.Context, cli *CLI, out io.Writer) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()
	cfg.PrintConfig(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return kctx.Run(&appContext{ctx: ctx, cfg: cfg, logger: logger, out: out})
}
