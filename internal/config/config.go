package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Providers ProvidersConfig
	Refresh   RefreshConfig
	Kafka     KafkaConfig
	Logging   LoggingConfig
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	ServiceKey   string
}

// DatabaseConfig holds database specific configuration
type DatabaseConfig struct {
	Path string
}

// ProvidersConfig holds provider adapter configuration
type ProvidersConfig struct {
	Preferred       string
	Timeout         time.Duration
	AlphaVantageKey string
}

// RefreshConfig holds refresh pipeline configuration
type RefreshConfig struct {
	StalenessThreshold time.Duration
	MaxRetries         uint64
	BatchConcurrency   int
	HistoryPeriod      string
	JobSchedule        string
	JobBatchSize       int
	JobTimeout         time.Duration
}

// KafkaConfig holds Kafka specific configuration
type KafkaConfig struct {
	Enabled  bool
	Brokers  []string
	ClientID string
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads the configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Environment variables override
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8086")
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.idleTimeout", "120s")

	// Database defaults
	v.SetDefault("database.path", "market_pulse.db")

	// Provider defaults
	v.SetDefault("providers.preferred", "yahoo")
	v.SetDefault("providers.timeout", "10s")

	// Refresh defaults
	v.SetDefault("refresh.stalenessThreshold", "15m")
	v.SetDefault("refresh.maxRetries", 2)
	v.SetDefault("refresh.batchConcurrency", 5)
	v.SetDefault("refresh.historyPeriod", "1y")
	v.SetDefault("refresh.jobSchedule", "@every 5m")
	v.SetDefault("refresh.jobBatchSize", 20)
	v.SetDefault("refresh.jobTimeout", "2m")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.clientID", "market-pulse")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
