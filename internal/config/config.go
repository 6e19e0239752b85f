package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"
	"unicode/utf8"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"

	"github.com/lox/energybill/internal/source"
)

// Config holds the source locations, their column layout and the time zone
// the timestamps are recorded in.
type Config struct {
	Readings ReadingsConfig `yaml:"readings" env-prefix:"READINGS_"`
	Prices   PricesConfig   `yaml:"prices" env-prefix:"PRICES_"`

	Timezone string `yaml:"timezone" env:"TIMEZONE" env-default:"Europe/Helsinki"`

	Logging LoggingConfig `yaml:"logging"`
}

// ReadingsConfig describes the consumption export.
type ReadingsConfig struct {
	Location          string `yaml:"location" env:"LOCATION" env-default:"data/Electricity_20-09-2024.csv"`
	Delimiter         string `yaml:"delimiter" env:"DELIMITER" env-default:";"`
	TimeHeader        string `yaml:"timeHeader" env:"TIME_HEADER" env-default:"Time"`
	EnergyHeader      string `yaml:"energyHeader" env:"ENERGY_HEADER" env-default:"Energy (kWh)"`
	TemperatureHeader string `yaml:"temperatureHeader" env:"TEMPERATURE_HEADER" env-default:"Temperature"`
}

// PricesConfig describes the spot price export.
type PricesConfig struct {
	Location    string `yaml:"location" env:"LOCATION" env-default:"data/sahkon-hinta-010121-240924.csv"`
	Delimiter   string `yaml:"delimiter" env:"DELIMITER" env-default:","`
	TimeHeader  string `yaml:"timeHeader" env:"TIME_HEADER" env-default:"Time"`
	PriceHeader string `yaml:"priceHeader" env:"PRICE_HEADER" env-default:"Price (cent/kWh)"`
}

// Load reads configuration from the specified file path and applies
// environment variable overrides. A missing file is not an error: the
// defaults and the environment are used on their own.
func Load(configPath string) (*Config, error) {
	var cfg Config

	if configPath != "" && fileExists(configPath) {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from %s: %w", configPath, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks that all configuration parameters are valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Readings.Location) == "" {
		return errors.New("readings.location cannot be empty")
	}
	if strings.TrimSpace(c.Prices.Location) == "" {
		return errors.New("prices.location cannot be empty")
	}

	if err := validateDelimiter("readings", c.Readings.Delimiter); err != nil {
		return err
	}
	if err := validateDelimiter("prices", c.Prices.Delimiter); err != nil {
		return err
	}

	headers := map[string]string{
		"readings.timeHeader":        c.Readings.TimeHeader,
		"readings.energyHeader":      c.Readings.EnergyHeader,
		"readings.temperatureHeader": c.Readings.TemperatureHeader,
		"prices.timeHeader":          c.Prices.TimeHeader,
		"prices.priceHeader":         c.Prices.PriceHeader,
	}
	for key, h := range headers {
		if strings.TrimSpace(h) == "" {
			return fmt.Errorf("%s cannot be empty", key)
		}
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	if err := ValidateLogging(&c.Logging); err != nil {
		return fmt.Errorf("logging validation failed: %w", err)
	}

	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) ReadingsSpec() source.Spec {
	spec := source.ReadingsSpec(c.Readings.Location).
		WithHeader(source.ColTimestamp, c.Readings.TimeHeader).
		WithHeader(source.ColEnergy, c.Readings.EnergyHeader).
		WithHeader(source.ColTemperature, c.Readings.TemperatureHeader)
	spec.Delimiter = delimiter(c.Readings.Delimiter, spec.Delimiter)
	return spec
}

func (c *Config) PricesSpec() source.Spec {
	spec := source.PricesSpec(c.Prices.Location).
		WithHeader(source.ColTimestamp, c.Prices.TimeHeader).
		WithHeader(source.ColPrice, c.Prices.PriceHeader)
	spec.Delimiter = delimiter(c.Prices.Delimiter, spec.Delimiter)
	return spec
}

// NewLogger creates a zap logger based on the configuration
func (c *Config) NewLogger() (*zap.Logger, error) {
	return NewLogger(&c.Logging)
}

// PrintConfig logs the effective configuration.
func (c *Config) PrintConfig(logger *zap.Logger) {
	logger.Info("configuration loaded",
		zap.String("readings_location", redactLocation(c.Readings.Location)),
		zap.String("readings_delimiter", c.Readings.Delimiter),
		zap.String("prices_location", redactLocation(c.Prices.Location)),
		zap.String("prices_delimiter", c.Prices.Delimiter),
		zap.String("timezone", c.Timezone),
		zap.String("log_format", c.Logging.Format),
		zap.String("log_level", c.Logging.Level),
	)
}

func validateDelimiter(dataset, d string) error {
	if utf8.RuneCountInString(d) != 1 {
		return fmt.Errorf("%s.delimiter must be a single character, got %q", dataset, d)
	}
	r, _ := utf8.DecodeRuneInString(d)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return fmt.Errorf("%s.delimiter %q is not usable in CSV", dataset, d)
	}
	return nil
}

func delimiter(d string, fallback rune) rune {
	if r, size := utf8.DecodeRuneInString(d); size > 0 && r != utf8.RuneError {
		return r
	}
	return fallback
}

// redactLocation hides credentials embedded in ftp:// or http(s):// URLs.
func redactLocation(location string) string {
	scheme, rest, ok := strings.Cut(location, "://")
	if !ok {
		return location
	}
	at := strings.LastIndex(rest, "@")
	slash := strings.Index(rest, "/")
	if at < 0 || (slash >= 0 && at > slash) {
		return location
	}
	return scheme + "://***@" + rest[at+1:]
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
