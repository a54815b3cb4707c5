package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

const (
	RunModeMock = "mock"
	RunModeLive = "live"
)

// AppConfig holds all application configuration loaded from environment variables.
type AppConfig struct {
	RunMode   string // "mock" or "live"
	LogLevel  string
	LogFormat string
	LogFile   string // Optional JSON log file written next to the console output
	WebPort   string

	// MonitoredWallets are subscribed at startup with the background interval.
	MonitoredWallets []string
	// MonitoredPool optionally restricts the startup subscriptions to one pool.
	MonitoredPool string
	// AutoExecute submits rebalances and stop-loss exits instead of only reporting them.
	AutoExecute bool
	// MaxConcurrency bounds per-tick position evaluation.
	MaxConcurrency int

	Params types.RebalanceParameters

	DB        DBSettings
	Endpoints EndpointConfig
}

// DBSettings holds Postgres connection parameters. An empty Host selects the in-memory event store.
type DBSettings struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// Enabled reports whether a database was configured.
func (d DBSettings) Enabled() bool {
	return d.Host != ""
}

// LoadConfig loads configuration from environment variables.
// Live mode requires the indexer and executor endpoints; everything else has a default.
func LoadConfig() (*AppConfig, error) {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error
	cfg := &AppConfig{
		RunMode:   strings.ToLower(getEnvOrDefault("RUN_MODE", RunModeMock)),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "console"),
		LogFile:   getEnvOrDefault("LOG_FILE", ""),
		WebPort:   getEnvOrDefault("WEB_PORT", "8080"),
		Params:    DefaultRebalanceParameters,
	}
	if cfg.RunMode != RunModeMock && cfg.RunMode != RunModeLive {
		return nil, errors.New("RUN_MODE must be 'mock' or 'live', got: " + cfg.RunMode)
	}

	cfg.MonitoredWallets = splitList(getEnvOrDefault("MONITORED_WALLETS", ""))
	for _, wallet := range cfg.MonitoredWallets {
		if err := types.ValidateAddress(wallet); err != nil {
			return nil, errors.Join(errors.New("MONITORED_WALLETS contains an invalid wallet"), err)
		}
	}
	cfg.MonitoredPool = getEnvOrDefault("MONITORED_POOL", "")
	if cfg.MonitoredPool != "" {
		if err := types.ValidateAddress(cfg.MonitoredPool); err != nil {
			return nil, errors.Join(errors.New("MONITORED_POOL is invalid"), err)
		}
	}

	if cfg.AutoExecute, err = getEnvAsBool("AUTO_REBALANCE_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrency, err = getEnvAsInt("MAX_CONCURRENCY", 8); err != nil {
		return nil, err
	}
	if cfg.Params.VolatilityThreshold, err = getEnvAsFloat64("VOLATILITY_THRESHOLD", DefaultRebalanceParameters.VolatilityThreshold); err != nil {
		return nil, err
	}
	if cfg.Params.BackgroundInterval, err = getEnvAsDuration("REBALANCE_INTERVAL", DefaultRebalanceParameters.BackgroundInterval); err != nil {
		return nil, err
	}
	if cfg.Params.DashboardInterval, err = getEnvAsDuration("DASHBOARD_INTERVAL", DefaultRebalanceParameters.DashboardInterval); err != nil {
		return nil, err
	}
	if cfg.Params.SampleMarginBins, err = getEnvAsInt("SAMPLE_MARGIN_BINS", DefaultRebalanceParameters.SampleMarginBins); err != nil {
		return nil, err
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}

	cfg.DB = DBSettings{
		Host:     getEnvOrDefault("DB_HOST", ""),
		User:     getEnvOrDefault("DB_USER", ""),
		Password: getEnvOrDefault("DB_PASSWORD", ""),
		Name:     getEnvOrDefault("DB_NAME", ""),
		SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
	}
	if cfg.DB.Port, err = getEnvAsInt("DB_PORT", 5432); err != nil {
		return nil, err
	}

	if cfg.Endpoints, err = loadEndpointConfig(cfg.RunMode == RunModeLive); err != nil {
		return nil, err
	}

	log.Debug().
		Str("RunMode", cfg.RunMode).
		Strs("MonitoredWallets", cfg.MonitoredWallets).
		Bool("AutoExecute", cfg.AutoExecute).
		Float64("VolatilityThreshold", cfg.Params.VolatilityThreshold).
		Dur("RebalanceInterval", cfg.Params.BackgroundInterval).
		Bool("Database", cfg.DB.Enabled()).
		Msg("Configuration loaded successfully.")

	return cfg, nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

func getEnvOrDefault(key, fallback string) string {
	if value, err := getEnv(key); err == nil {
		return strings.TrimSpace(value)
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an int, or fallback when unset.
func getEnvAsInt(key string, fallback int) (int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return fallback, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsFloat64 retrieves an environment variable as a float64, or fallback when unset.
func getEnvAsFloat64(key string, fallback float64) (float64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid float64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsBool retrieves an environment variable as a bool, or fallback when unset.
func getEnvAsBool(key string, fallback bool) (bool, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return fallback, nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
	if err != nil {
		return false, errors.New("environment variable " + key + " must be a valid bool, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsDuration accepts Go durations ("15m") or a bare number of seconds.
func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return fallback, nil
	}
	valueStr = strings.TrimSpace(valueStr)
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return 0, errors.New("environment variable " + key + " must be a positive duration, got: " + valueStr)
	}
	return value, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
