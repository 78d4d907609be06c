package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/county-rates-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	CasesPath      string
	DeathsPath     string
	PopulationPath string
	XLSXSheet      string

	IntegrityPolicy domain.IntegrityPolicy
	RefreshInterval time.Duration
	OneShot         bool
	OutputDir       string

	KafkaBrokers        []string
	KafkaEnabled        bool
	KafkaIncidenceTopic string
	KafkaRateTopic      string
	BatchSize           int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	refresh, err := time.ParseDuration(sharedcfg.EnvOrDefault("REFRESH_INTERVAL", "24h"))
	if err != nil || refresh <= 0 {
		return nil, errors.New("invalid REFRESH_INTERVAL")
	}

	policy, err := domain.ParseIntegrityPolicy(sharedcfg.EnvOrDefault("RATE_INTEGRITY_POLICY", "abort"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_INTEGRITY_POLICY: %w", err)
	}

	oneShot, err := parseBool("ONESHOT", false)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}
	kafkaEnabled, err := parseBool("KAFKA_ENABLED", len(brokers) > 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		CasesPath:      sharedcfg.EnvOrDefault("CASES_PATH", "data/covid_confirmed_usafacts.csv"),
		DeathsPath:     sharedcfg.EnvOrDefault("DEATHS_PATH", "data/covid_deaths_usafacts.csv"),
		PopulationPath: sharedcfg.EnvOrDefault("POPULATION_PATH", "data/covid_county_population_usafacts.csv"),
		XLSXSheet:      os.Getenv("XLSX_SHEET"),

		IntegrityPolicy: policy,
		RefreshInterval: refresh,
		OneShot:         oneShot,
		OutputDir:       os.Getenv("OUTPUT_DIR"),

		KafkaBrokers:        brokers,
		KafkaEnabled:        kafkaEnabled,
		KafkaIncidenceTopic: sharedcfg.EnvOrDefault("KAFKA_INCIDENCE_TOPIC", "county-weekly-incidence"),
		KafkaRateTopic:      sharedcfg.EnvOrDefault("KAFKA_RATE_TOPIC", "county-weekly-rates"),
		BatchSize:           batchSize,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && (cfg.KafkaIncidenceTopic == "" || cfg.KafkaRateTopic == "") {
		return nil, errors.New("KAFKA_INCIDENCE_TOPIC and KAFKA_RATE_TOPIC are required")
	}
	switch cfg.LogFormat {
	case "json", "text", "console", "auto":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q", cfg.LogFormat)
	}

	return cfg, nil
}

func parseBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
