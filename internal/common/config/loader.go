// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like DATABASE_POSTGRES_PASSWORD
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment overlay, ignored if absent
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile tries .env from a few locations so binaries and tests both
// pick it up regardless of working directory.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}
	for _, p := range possiblePaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "builder-licensing"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 10000
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 10
	}
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 20
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Redis.CacheTTL == 0 {
		cfg.Database.Redis.CacheTTL = 60
	}
	if cfg.Database.Elasticsearch.AuditIndex == "" {
		cfg.Database.Elasticsearch.AuditIndex = "license-lifecycle-events"
	}
	if cfg.Email.Provider == "" {
		cfg.Email.Provider = "smtp"
	}
	if cfg.Email.Timeout == 0 {
		cfg.Email.Timeout = 15000
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = 587
	}
	if cfg.Email.From == "" {
		cfg.Email.From = "The Builder <noreply@thebuilder.app>"
	}
	if cfg.Lifecycle.WarnWindowDays == 0 {
		cfg.Lifecycle.WarnWindowDays = 10
	}
	if cfg.Lifecycle.GraceDays == 0 {
		cfg.Lifecycle.GraceDays = 15
	}
	if cfg.Lifecycle.FinalWindowDays == 0 {
		cfg.Lifecycle.FinalWindowDays = 15
	}
	if cfg.Lifecycle.MaxRetries == 0 {
		cfg.Lifecycle.MaxRetries = 3
	}
	if cfg.Lifecycle.DrainBatchSize == 0 {
		cfg.Lifecycle.DrainBatchSize = 50
	}
	if cfg.Lifecycle.ClaimLease == 0 {
		cfg.Lifecycle.ClaimLease = 10
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Auth.InternalAPIKey == "" {
		return fmt.Errorf("auth.internal_api_key is required")
	}
	if cfg.Email.Provider != "smtp" && cfg.Email.Provider != "ses" {
		return fmt.Errorf("email.provider must be smtp or ses, got %q", cfg.Email.Provider)
	}
	if cfg.Email.Provider == "smtp" && cfg.Email.SMTPHost == "" {
		return fmt.Errorf("email.smtp_host is required for the smtp provider")
	}
	if cfg.Email.Provider == "ses" && cfg.Email.SESRegion == "" {
		return fmt.Errorf("email.ses_region is required for the ses provider")
	}
	if cfg.Lifecycle.WarnWindowDays < 0 || cfg.Lifecycle.GraceDays < 0 || cfg.Lifecycle.FinalWindowDays < 0 {
		return fmt.Errorf("lifecycle windows must be non-negative")
	}
	if cfg.Lifecycle.MaxRetries < 1 {
		return fmt.Errorf("lifecycle.max_retries must be at least 1")
	}
	return nil
}
