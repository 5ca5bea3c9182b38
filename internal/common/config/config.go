// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Email     EmailConfig     `mapstructure:"email"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Stripe    StripeConfig    `mapstructure:"stripe"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	URL         string `mapstructure:"url"` // customer-facing app, linked from emails
	PaymentURL  string `mapstructure:"payment_url"`
	TiersPath   string `mapstructure:"tiers_path"` // empty uses the built-in lineup
}

type HTTPConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // seconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // seconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // seconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// CacheTTL bounds how stale a cached validation result may be, seconds.
	CacheTTL int `mapstructure:"cache_ttl"`
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	AuditIndex string   `mapstructure:"audit_index"`
	Enabled    bool     `mapstructure:"enabled"`
}

// AuthConfig holds the shared secret that gates admin and queue endpoints.
type AuthConfig struct {
	InternalAPIKey string `mapstructure:"internal_api_key"`
}

type EmailConfig struct {
	Provider     string `mapstructure:"provider"` // "smtp" or "ses"
	From         string `mapstructure:"from"`
	Timeout      int    `mapstructure:"timeout"` // milliseconds, per send
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUsername string `mapstructure:"smtp_username"`
	SMTPPassword string `mapstructure:"smtp_password"`
	UseTLS       bool   `mapstructure:"use_tls"`
	SESRegion    string `mapstructure:"ses_region"`
}

// LifecycleConfig carries the state-machine windows. Windows are distances
// from expiry, in days, so the evaluator converges under repeated runs.
type LifecycleConfig struct {
	WarnWindowDays  int `mapstructure:"warn_window_days"`
	GraceDays       int `mapstructure:"grace_days"`
	FinalWindowDays int `mapstructure:"final_window_days"`
	MaxRetries      int `mapstructure:"max_retries"`
	DrainBatchSize  int `mapstructure:"drain_batch_size"`
	SweepInterval   int `mapstructure:"sweep_interval"` // minutes; 0 disables the in-process ticker
	ClaimLease      int `mapstructure:"claim_lease"`    // minutes before a claimed job is reclaimable
}

type StripeConfig struct {
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type AlertsConfig struct {
	SNSTopicARN string `mapstructure:"sns_topic_arn"`
	Region      string `mapstructure:"region"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
