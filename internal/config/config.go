// Package config holds the settings shared by the batch CLI and the API
// server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

var (
	ErrUnknownDriver       = errors.New("PRECINCT_DB_DRIVER must be sqlite or postgres")
	ErrMissingDatabaseURL  = errors.New("DATABASE_URL environment variable is required for postgres")
	ErrMissingDatabasePath = errors.New("PRECINCT_DB_PATH is required for sqlite")
)

// Driver identifies which database backs the document store.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

const (
	DefaultDBPath         = "precinct.db"
	DefaultSchema         = "precinct"
	DefaultPort           = "5050"
	DefaultResultsPattern = `__precinct\.csv$`
	DefaultRateLimitRPS   = 10
	DefaultRateLimitBurst = 20
)

type Database struct {
	Driver Driver `yaml:"driver"`
	URL    string `yaml:"url"`
	Path   string `yaml:"path"`
	Schema string `yaml:"schema"`
	// LogLevel is one of silent, error, warn or info.
	LogLevel string `yaml:"log_level"`
}

// Sources names the raw input files for each batch step.
type Sources struct {
	GeoFile        string `yaml:"geo_file"`
	CensusFile1    string `yaml:"census_file_1"`
	CensusFile2    string `yaml:"census_file_2"`
	EquivalenceDir string `yaml:"equivalence_dir"`
	VoterFile      string `yaml:"voter_file"`
	ResultsDir     string `yaml:"results_dir"`
	ResultsPattern string `yaml:"results_pattern"`
}

type Server struct {
	Port           string   `yaml:"port"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Config struct {
	Database Database `yaml:"database"`
	Sources  Sources  `yaml:"sources"`
	Server   Server   `yaml:"server"`
}

// Default returns a local sqlite configuration with no sources set.
func Default() Config {
	return Config{
		Database: Database{
			Driver:   DriverSQLite,
			Path:     DefaultDBPath,
			Schema:   DefaultSchema,
			LogLevel: "warn",
		},
		Sources: Sources{ResultsPattern: DefaultResultsPattern},
		Server: Server{
			Port:           DefaultPort,
			RateLimitRPS:   DefaultRateLimitRPS,
			RateLimitBurst: DefaultRateLimitBurst,
		},
	}
}

// LoadFromEnv loads configuration from environment variables on top of the
// defaults.
//
// Environment variables:
//   - PRECINCT_DB_DRIVER: "sqlite" or "postgres" (default: "sqlite")
//   - DATABASE_URL: postgres DSN (required if using postgres)
//   - PRECINCT_DB_PATH: sqlite file (default: precinct.db)
//   - PRECINCT_DB_SCHEMA: postgres schema (default: precinct)
//   - PRECINCT_DB_LOG: gorm log level (default: warn)
//   - CENSUS_GEO_FILE, CENSUS_FILE_1, CENSUS_FILE_2: Census PL 94-171 extracts
//   - EQUIVALENCE_DIR: directory of per-county equivalence CSVs
//   - VOTER_FILE: statewide voter file
//   - RESULTS_DIR, RESULTS_PATTERN: result files to batch load
//   - PORT, RATE_LIMIT_RPS, RATE_LIMIT_BURST, ALLOWED_ORIGINS: API server
func LoadFromEnv() Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// LoadFile decodes a YAML pipeline file and then applies any environment
// overrides.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("PRECINCT_DB_DRIVER"))); v != "" {
		c.Database.Driver = Driver(v)
	}
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Database.Path, "PRECINCT_DB_PATH")
	setString(&c.Database.Schema, "PRECINCT_DB_SCHEMA")
	setString(&c.Database.LogLevel, "PRECINCT_DB_LOG")

	setString(&c.Sources.GeoFile, "CENSUS_GEO_FILE")
	setString(&c.Sources.CensusFile1, "CENSUS_FILE_1")
	setString(&c.Sources.CensusFile2, "CENSUS_FILE_2")
	setString(&c.Sources.EquivalenceDir, "EQUIVALENCE_DIR")
	setString(&c.Sources.VoterFile, "VOTER_FILE")
	setString(&c.Sources.ResultsDir, "RESULTS_DIR")
	setString(&c.Sources.ResultsPattern, "RESULTS_PATTERN")

	setString(&c.Server.Port, "PORT")
	if v, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64); err == nil && v > 0 {
		c.Server.RateLimitRPS = v
	}
	if v, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST")); err == nil && v > 0 {
		c.Server.RateLimitBurst = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, o)
			}
		}
	}
}

// Validate checks that the database settings are usable for the selected
// driver.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return ErrMissingDatabasePath
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return ErrMissingDatabaseURL
		}
	default:
		return fmt.Errorf("%w (got %q)", ErrUnknownDriver, c.Database.Driver)
	}
	return nil
}
