package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"flipscore/scoring"
)

// Config holds service configuration derived from environment variables.
type Config struct {
	DBPath            string
	ResultsDir        string
	WorkerCount       int
	FetchTimeoutSec   int
	RebuildSchedule   string
	BenchmarkPattern  string
	MunicipalPrefixes []string
	FilterMode        scoring.FilterMode
	Thresholds        scoring.Thresholds
	StrictConfig      bool
}

type fileConfig struct {
	DBPath            string               `json:"db_path" yaml:"db_path"`
	ResultsDir        string               `json:"results_dir" yaml:"results_dir"`
	RebuildSchedule   string               `json:"rebuild_schedule" yaml:"rebuild_schedule"`
	BenchmarkPattern  string               `json:"benchmark_pattern" yaml:"benchmark_pattern"`
	MunicipalPrefixes []string             `json:"municipal_prefixes" yaml:"municipal_prefixes"`
	FilterMode        string               `json:"filter_mode" yaml:"filter_mode"`
	Thresholds        thresholdsFileConfig `json:"thresholds" yaml:"thresholds"`
}

const (
	defaultDBPath          = "flipscore.db"
	defaultResultsDir      = "runtime/results"
	defaultWorkerCount     = 4
	defaultFetchTimeoutSec = 60
	defaultSchedule        = "15 2 * * *"
	defaultBenchmark       = `(?i)^(president|governor|united states senator)`
)

func defaultMunicipalPrefixes() []string {
	return []string{"CITY OF", "TOWN OF", "VILLAGE OF", "BOROUGH OF"}
}

type thresholdsFileConfig struct {
	SlamDunkGap              *int64   `json:"slam_dunk_gap" yaml:"slam_dunk_gap"`
	FlippableGap             *int64   `json:"flippable_gap" yaml:"flippable_gap"`
	SlamDunkActivationPct    *float64 `json:"slam_dunk_activation_pct" yaml:"slam_dunk_activation_pct"`
	FlippableActivationPct   *float64 `json:"flippable_activation_pct" yaml:"flippable_activation_pct"`
	CompetitiveGap           *int64   `json:"competitive_gap" yaml:"competitive_gap"`
	CompetitiveActivationPct *float64 `json:"competitive_activation_pct" yaml:"competitive_activation_pct"`
	PathwayGap               *int64   `json:"pathway_gap" yaml:"pathway_gap"`
	PathwayActivationPct     *float64 `json:"pathway_activation_pct" yaml:"pathway_activation_pct"`
	MaxMarginPct             *float64 `json:"max_margin_pct" yaml:"max_margin_pct"`
	MinTotalVotes            *int64   `json:"min_total_votes" yaml:"min_total_votes"`
}

// Default returns the configuration with every knob at its default value.
func Default() Config {
	return Config{
		DBPath:            defaultDBPath,
		ResultsDir:        defaultResultsDir,
		WorkerCount:       defaultWorkerCount,
		FetchTimeoutSec:   defaultFetchTimeoutSec,
		RebuildSchedule:   defaultSchedule,
		BenchmarkPattern:  defaultBenchmark,
		MunicipalPrefixes: defaultMunicipalPrefixes(),
		FilterMode:        scoring.FilterGapActivation,
		Thresholds:        scoring.DefaultThresholds(),
	}
}

// Load reads configuration from an optional config file and environment
// variables, applying sane defaults.
func Load() (Config, error) {
	cfg := Default()
	cfg.StrictConfig = parseBoolEnv("STRICT_CONFIG")

	configPath := getEnv("CONFIG_PATH", filepath.Join("config", "config.yaml"))
	fileCfg, fileErr := loadFileConfig(configPath)
	if fileErr != nil {
		if cfg.StrictConfig && !errors.Is(fileErr, os.ErrNotExist) {
			return cfg, fmt.Errorf("config load failed (%s): %w", configPath, fileErr)
		}
		if !errors.Is(fileErr, os.ErrNotExist) {
			log.Printf("config load failed (%s): %v (using defaults)", configPath, fileErr)
		}
	}

	cfg.DBPath = firstNonEmpty(os.Getenv("DB_PATH"), fileCfg.DBPath, cfg.DBPath)
	cfg.ResultsDir = firstNonEmpty(os.Getenv("RESULTS_DIR"), fileCfg.ResultsDir, cfg.ResultsDir)
	cfg.RebuildSchedule = firstNonEmpty(os.Getenv("REBUILD_SCHEDULE"), fileCfg.RebuildSchedule, cfg.RebuildSchedule)
	cfg.BenchmarkPattern = firstNonEmpty(os.Getenv("BENCHMARK_PATTERN"), fileCfg.BenchmarkPattern, cfg.BenchmarkPattern)

	if v := strings.TrimSpace(os.Getenv("MUNICIPAL_PREFIXES")); v != "" {
		cfg.MunicipalPrefixes = splitPrefixes(v)
	} else if len(fileCfg.MunicipalPrefixes) > 0 {
		cfg.MunicipalPrefixes = fileCfg.MunicipalPrefixes
	}

	if v := firstNonEmpty(os.Getenv("FILTER_MODE"), fileCfg.FilterMode); v != "" {
		cfg.FilterMode = scoring.FilterMode(strings.ToLower(strings.TrimSpace(v)))
	}

	cfg.Thresholds = applyThresholdOverrides(cfg.Thresholds, fileCfg.Thresholds)

	if v, ok, err := parseIntEnv("WORKER_COUNT"); err != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("invalid WORKER_COUNT: %w", err)
		}
		log.Printf("invalid WORKER_COUNT: %v (using default %d)", err, defaultWorkerCount)
	} else if ok && v > 0 {
		cfg.WorkerCount = v
	}

	if v, ok, err := parseIntEnv("FETCH_TIMEOUT_SEC"); err != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("invalid FETCH_TIMEOUT_SEC: %w", err)
		}
		log.Printf("invalid FETCH_TIMEOUT_SEC: %v (using default %d)", err, defaultFetchTimeoutSec)
	} else if ok && v > 0 {
		cfg.FetchTimeoutSec = v
	}

	if err := validateConfig(&cfg); err != nil {
		if cfg.StrictConfig {
			return cfg, err
		}
		log.Printf("config validation failed: %v (continuing with defaults)", err)
	}

	return cfg, nil
}

// BenchmarkRegexp compiles the benchmark contest pattern.
func (c Config) BenchmarkRegexp() (*regexp.Regexp, error) {
	re, err := regexp.Compile(c.BenchmarkPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid benchmark pattern %q: %w", c.BenchmarkPattern, err)
	}
	return re, nil
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("empty config file")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// validateConfig resets unusable values to defaults so a bad knob degrades
// rather than wedges the daemon; strict mode surfaces the error instead.
func validateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("DB_PATH is required")
	}
	if _, err := regexp.Compile(cfg.BenchmarkPattern); err != nil {
		cfg.BenchmarkPattern = defaultBenchmark
		return fmt.Errorf("invalid benchmark pattern: %w", err)
	}
	switch cfg.FilterMode {
	case scoring.FilterGapActivation, scoring.FilterMarginFloor:
	default:
		mode := cfg.FilterMode
		cfg.FilterMode = scoring.FilterGapActivation
		return fmt.Errorf("unknown filter mode %q", mode)
	}
	if cfg.Thresholds.PathwayGap <= 0 || cfg.Thresholds.PathwayActivationPct <= 0 {
		cfg.Thresholds = scoring.DefaultThresholds()
		return errors.New("pathway thresholds must be positive")
	}
	return nil
}

func applyThresholdOverrides(base scoring.Thresholds, override thresholdsFileConfig) scoring.Thresholds {
	if override.SlamDunkGap != nil && *override.SlamDunkGap > 0 {
		base.SlamDunkGap = *override.SlamDunkGap
	}
	if override.FlippableGap != nil && *override.FlippableGap > 0 {
		base.FlippableGap = *override.FlippableGap
	}
	if override.SlamDunkActivationPct != nil && *override.SlamDunkActivationPct > 0 {
		base.SlamDunkActivationPct = *override.SlamDunkActivationPct
	}
	if override.FlippableActivationPct != nil && *override.FlippableActivationPct > 0 {
		base.FlippableActivationPct = *override.FlippableActivationPct
	}
	if override.CompetitiveGap != nil && *override.CompetitiveGap > 0 {
		base.CompetitiveGap = *override.CompetitiveGap
	}
	if override.CompetitiveActivationPct != nil && *override.CompetitiveActivationPct > 0 {
		base.CompetitiveActivationPct = *override.CompetitiveActivationPct
	}
	if override.PathwayGap != nil && *override.PathwayGap > 0 {
		base.PathwayGap = *override.PathwayGap
	}
	if override.PathwayActivationPct != nil && *override.PathwayActivationPct > 0 {
		base.PathwayActivationPct = *override.PathwayActivationPct
	}
	if override.MaxMarginPct != nil && *override.MaxMarginPct > 0 {
		base.MaxMarginPct = *override.MaxMarginPct
	}
	if override.MinTotalVotes != nil && *override.MinTotalVotes > 0 {
		base.MinTotalVotes = *override.MinTotalVotes
	}
	return base
}

func splitPrefixes(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return val
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return false
}

func parseIntEnv(key string) (int, bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false, nil
	}
	val, err := strconv.Atoi(raw)
	return val, true, err
}
