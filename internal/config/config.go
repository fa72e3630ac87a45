package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete engine configuration: the penalties, gates,
// and thresholds that tune C2-C5, plus the ambient collaborators (§6).
type Config struct {
	Environment string                `mapstructure:"environment"`
	Normalizer  NormalizerConfig      `mapstructure:"normalizer"`
	Resolver    ResolverConfig        `mapstructure:"resolver"`
	Feedback    FeedbackConfig        `mapstructure:"feedback"`
	Cache       CacheConfig           `mapstructure:"cache"`
	Logging     LoggingConfig         `mapstructure:"logging"`
}

// NormalizerConfig mirrors internal/normalizer.Thresholds.
type NormalizerConfig struct {
	MinQuality          float64 `mapstructure:"min_quality"`
	MinAlleleDepthRatio float64 `mapstructure:"min_allele_depth_ratio"`
}

// ResolverConfig mirrors internal/resolver.Penalties.
type ResolverConfig struct {
	MissingKeyPosition   float64 `mapstructure:"missing_key_position_penalty"`
	UnphasedHeterozygote float64 `mapstructure:"unphased_heterozygote_penalty"`
	PartialAlleleMatch   float64 `mapstructure:"partial_allele_match_penalty"`
	NoCoverageData       float64 `mapstructure:"no_coverage_data_penalty"`
	HomozygousThreshold  float64 `mapstructure:"homozygous_threshold"`
	CompoundHetMin       float64 `mapstructure:"compound_het_min"`
	CNVNotEvaluated      float64 `mapstructure:"cnv_not_evaluated_penalty"`
	RequireCompleteMatch bool    `mapstructure:"require_complete_match"`
	CompletenessThreshold float64 `mapstructure:"completeness_threshold"`
}

// FeedbackConfig configures the optional (gene,diplotype)->prior store.
type FeedbackConfig struct {
	Driver          string        `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// CacheConfig configures the optional Redis idempotency cache.
type CacheConfig struct {
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// LoggingConfig configures logrus.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Manager implements configuration loading using Viper.
type Manager struct {
	config *Config
}

// NewManager creates a new configuration manager, reading from
// ./config.yaml (or /etc/pgxengine/config.yaml) and the PGX_ env prefix,
// falling back to defaults when no file is present.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/pgxengine/")

	viper.SetEnvPrefix("PGX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	viper.SetDefault("environment", "development")

	// Normalizer defaults (§4.2)
	viper.SetDefault("normalizer.min_quality", 20.0)
	viper.SetDefault("normalizer.min_allele_depth_ratio", 0.2)

	// Resolver penalty defaults (§4.3)
	viper.SetDefault("resolver.missing_key_position_penalty", 0.8)
	viper.SetDefault("resolver.unphased_heterozygote_penalty", 0.9)
	viper.SetDefault("resolver.partial_allele_match_penalty", 0.7)
	viper.SetDefault("resolver.no_coverage_data_penalty", 0.9)
	viper.SetDefault("resolver.homozygous_threshold", 2.0)
	viper.SetDefault("resolver.compound_het_min", 1.0)
	viper.SetDefault("resolver.cnv_not_evaluated_penalty", 0.80)
	viper.SetDefault("resolver.require_complete_match", false)
	viper.SetDefault("resolver.completeness_threshold", 0.8)

	// Feedback store defaults
	viper.SetDefault("feedback.driver", "sqlite")
	viper.SetDefault("feedback.dsn", "file:pgx_feedback.db?cache=shared")
	viper.SetDefault("feedback.max_open_conns", 25)
	viper.SetDefault("feedback.max_idle_conns", 5)
	viper.SetDefault("feedback.conn_max_lifetime", "5m")

	// Cache defaults
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "24h")
	viper.SetDefault("cache.max_retries", 3)
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Reload reloads the configuration from its sources.
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate checks the loaded configuration for obviously invalid values.
func (m *Manager) Validate() error {
	config := m.config

	if config.Normalizer.MinQuality < 0 {
		return fmt.Errorf("normalizer.min_quality must be non-negative")
	}
	if config.Resolver.HomozygousThreshold <= 0 {
		return fmt.Errorf("resolver.homozygous_threshold must be positive")
	}
	if config.Resolver.CompoundHetMin <= 0 {
		return fmt.Errorf("resolver.compound_het_min must be positive")
	}
	penaltyWeights := []struct {
		name  string
		value float64
	}{
		{"resolver.missing_key_position_penalty", config.Resolver.MissingKeyPosition},
		{"resolver.unphased_heterozygote_penalty", config.Resolver.UnphasedHeterozygote},
		{"resolver.partial_allele_match_penalty", config.Resolver.PartialAlleleMatch},
		{"resolver.no_coverage_data_penalty", config.Resolver.NoCoverageData},
		{"resolver.cnv_not_evaluated_penalty", config.Resolver.CNVNotEvaluated},
	}
	for _, w := range penaltyWeights {
		if w.value <= 0 || w.value > 1 {
			return fmt.Errorf("%s must be in (0, 1]", w.name)
		}
	}

	switch config.Feedback.Driver {
	case "sqlite", "postgres", "":
	default:
		return fmt.Errorf("unsupported feedback.driver: %s", config.Feedback.Driver)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// IsProduction returns true if running in production mode.
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}
