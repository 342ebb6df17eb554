package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

type Config struct {
	App       AppConfig       `yaml:"app" envPrefix:"APP_"`
	Store     StoreConfig     `yaml:"store" envPrefix:"STORE_"`
	Postgres  PostgresConfig  `yaml:"postgres" envPrefix:"DB_"`
	Planner   PlannerConfig   `yaml:"planner" envPrefix:"PLANNER_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"OTEL_"`
}

type AppConfig struct {
	Name            string        `yaml:"name" env:"NAME"`
	Port            string        `yaml:"port" env:"PORT"`
	LogLevel        string        `yaml:"log_level" env:"LOG_LEVEL"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// StoreConfig selects the database backend. SQLite is meant for local runs and tests.
type StoreConfig struct {
	Driver     string `yaml:"driver" env:"DRIVER"`
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host" env:"HOST"`
	Port            string        `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	DBName          string        `yaml:"dbname" env:"NAME"`
	SSLMode         string        `yaml:"sslmode" env:"SSLMODE"`
	MaxConns        int32         `yaml:"max_conns" env:"MAX_CONNS"`
	MinConns        int32         `yaml:"min_conns" env:"MIN_CONNS"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"MAX_CONN_LIFETIME"`
	Migrate         bool          `yaml:"migrate" env:"MIGRATE"`
}

type PlannerConfig struct {
	BatchSize  int  `yaml:"batch_size" env:"BATCH_SIZE"`
	MaxResults int  `yaml:"max_results" env:"MAX_RESULTS"`
	Strict     bool `yaml:"strict" env:"STRICT"`
}

type TelemetryConfig struct {
	Endpoint    string  `yaml:"endpoint" env:"EXPORTER_OTLP_ENDPOINT"`
	SampleRatio float64 `yaml:"sample_ratio" env:"SAMPLE_RATIO"`
}

// DSN returns a libpq style connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// MigrateURL returns the connection URL understood by the golang-migrate pgx/v5 driver.
func (p PostgresConfig) MigrateURL() string {
	return fmt.Sprintf("pgx5://%s:%s@%s:%s/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:            "shop-service",
			Port:            "8080",
			LogLevel:        "info",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Store: StoreConfig{
			Driver:     DriverPostgres,
			SQLitePath: "shop.db",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            "5432",
			SSLMode:         "disable",
			MaxConns:        10,
			MinConns:        2,
			MaxConnLifetime: 30 * time.Minute,
			Migrate:         true,
		},
		Planner: PlannerConfig{
			BatchSize:  100,
			MaxResults: 1000,
		},
		Telemetry: TelemetryConfig{
			SampleRatio: 1.0,
		},
	}
}

// Load builds the configuration in layers: defaults, the optional YAML file at
// yamlPath, the optional dotenv file at envPath, and finally the process environment.
func Load(yamlPath, envPath string) (*Config, error) {
	cfg := Default()

	if yamlPath != "" {
		if err := loadYAML(yamlPath, cfg); err != nil {
			return nil, err
		}
	}

	if envPath != "" {
		err := godotenv.Load(envPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("config file %s: unsupported extension %q", path, ext)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed open config file: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("invalid config file: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Postgres.User == "" {
			return errors.New("DB_USER is required")
		}
		if c.Postgres.DBName == "" {
			return errors.New("DB_NAME is required")
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("STORE_SQLITE_PATH is required")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if c.Planner.BatchSize <= 0 {
		return fmt.Errorf("planner batch size must be positive, got %d", c.Planner.BatchSize)
	}
	if c.Planner.MaxResults <= 0 {
		return fmt.Errorf("planner max results must be positive, got %d", c.Planner.MaxResults)
	}
	return nil
}
