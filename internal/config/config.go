package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Billing   BillingConfig   `yaml:"billing"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// BillingConfig contains recurring-charge and late-fee settings
type BillingConfig struct {
	HorizonDays    int     `yaml:"horizon_days"`
	LateFeePercent float64 `yaml:"late_fee_percent"`
	LateFeeCap     float64 `yaml:"late_fee_cap"`
	GraceDays      int     `yaml:"grace_days"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	GenerateRecurringCharges string `yaml:"generate_recurring_charges"`
	PostLateFees             string `yaml:"post_late_fees"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables if present
	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Billing
	if val := os.Getenv("BILLING_HORIZON_DAYS"); val != "" {
		fmt.Sscanf(val, "%d", &c.Billing.HorizonDays)
	}
	if val := os.Getenv("BILLING_GRACE_DAYS"); val != "" {
		fmt.Sscanf(val, "%d", &c.Billing.GraceDays)
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	// Billing defaults
	if c.Billing.HorizonDays <= 0 {
		c.Billing.HorizonDays = 60
	}
	if c.Billing.LateFeePercent <= 0 {
		c.Billing.LateFeePercent = 5
	}
	if c.Billing.LateFeeCap <= 0 {
		c.Billing.LateFeeCap = 50 // Default $50.00
	}
	if c.Billing.GraceDays <= 0 {
		c.Billing.GraceDays = 5
	}

	// Scheduler defaults
	if c.Scheduler.GenerateRecurringCharges == "" {
		c.Scheduler.GenerateRecurringCharges = "0 0 2 * * *" // 2 AM UTC
	}
	if c.Scheduler.PostLateFees == "" {
		c.Scheduler.PostLateFees = "0 0 3 * * *" // 3 AM UTC
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}
