// Package config loads server settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	ExecutorColumnar = "columnar"
	ExecutorDuckDB   = "duckdb"
)

type Config struct {
	Addr      string   `yaml:"addr"`
	DataPath  string   `yaml:"data_path"`
	Executor  string   `yaml:"executor"`
	Table     string   `yaml:"table"`
	LogLevel  string   `yaml:"log_level"`
	Workers   int      `yaml:"workers"`
	RateLimit float64  `yaml:"rate_limit"`
	Charts    []string `yaml:"charts"`
	ChartTopN int      `yaml:"chart_top_n"`
	PivotRow  string   `yaml:"pivot_row"`
	PivotCol  string   `yaml:"pivot_col"`
	// ParallelViews bounds concurrent view queries per generation; 0 means unbounded.
	ParallelViews int `yaml:"parallel_views"`
}

func Default() Config {
	return Config{
		Addr:      ":8080",
		DataPath:  "survey.csv",
		Executor:  ExecutorColumnar,
		Table:     "survey",
		LogLevel:  "info",
		RateLimit: 50,
		Charts:    []string{"role", "region", "industry", "org_size"},
		ChartTopN: 15,
		PivotRow:  "role",
		PivotCol:  "region",

		ParallelViews: 8,
	}
}

// Load reads path (if non-empty) over the defaults, then applies SURVEY_* env vars.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SURVEY_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("SURVEY_DATA"); v != "" {
		c.DataPath = v
	}
	if v := os.Getenv("SURVEY_EXECUTOR"); v != "" {
		c.Executor = v
	}
	if v := os.Getenv("SURVEY_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SURVEY_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SURVEY_WORKERS: %w", err)
		}
		c.Workers = n
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DataPath == "" {
		errs = append(errs, errors.New("data_path is required"))
	}
	if c.Executor != ExecutorColumnar && c.Executor != ExecutorDuckDB {
		errs = append(errs, fmt.Errorf("executor must be %q or %q, got %q", ExecutorColumnar, ExecutorDuckDB, c.Executor))
	}
	if c.Table == "" {
		errs = append(errs, errors.New("table is required"))
	}
	if c.Workers < 0 {
		errs = append(errs, errors.New("workers must not be negative"))
	}
	if c.ParallelViews < 0 {
		errs = append(errs, errors.New("parallel_views must not be negative"))
	}
	if c.ChartTopN < 0 {
		errs = append(errs, errors.New("chart_top_n must not be negative"))
	}
	return errors.Join(errs...)
}
