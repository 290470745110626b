package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// DatabaseConfig selects and locates the relational store.
type DatabaseConfig struct {
	// Driver is "sqlite" (local file) or "postgres" (hosted database).
	Driver string `mapstructure:"driver" yaml:"driver"`

	// Path is the SQLite database file, used when Driver is "sqlite".
	Path string `mapstructure:"path" yaml:"path"`

	// DSN is the Postgres connection string, used when Driver is "postgres".
	// The password may be omitted and supplied through the keyring.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// BillingConfig holds invoicing defaults and the issuer block printed on
// every invoice.
type BillingConfig struct {
	Currency       string  `mapstructure:"currency" yaml:"currency"`
	TaxRate        float64 `mapstructure:"tax_rate" yaml:"tax_rate"`
	DueDays        int     `mapstructure:"due_days" yaml:"due_days"`
	CompanyName    string  `mapstructure:"company_name" yaml:"company_name"`
	CompanyAddress string  `mapstructure:"company_address" yaml:"company_address"`
	CompanyEmail   string  `mapstructure:"company_email" yaml:"company_email"`
}

// TaxRateDecimal returns the tax rate as a fixed-point fraction (0.15 = 15%).
func (b BillingConfig) TaxRateDecimal() decimal.Decimal {
	return decimal.NewFromFloat(b.TaxRate)
}

// ArchiveConfig selects where rendered documents are kept.
type ArchiveConfig struct {
	// Driver is "fs", "s3", or "" to disable archiving.
	Driver    string `mapstructure:"driver" yaml:"driver"`
	Dir       string `mapstructure:"dir" yaml:"dir"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Region    string `mapstructure:"region" yaml:"region"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	PathStyle bool   `mapstructure:"path_style" yaml:"path_style"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
}

// MailConfig holds outgoing mail settings. Passwords live in the keyring.
type MailConfig struct {
	From        string `mapstructure:"from" yaml:"from"`
	Username    string `mapstructure:"username" yaml:"username"`
	SMTPHost    string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort    string `mapstructure:"smtp_port" yaml:"smtp_port"`
	IMAPHost    string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort    string `mapstructure:"imap_port" yaml:"imap_port"`
	SentMailbox string `mapstructure:"sent_mailbox" yaml:"sent_mailbox"`
	TLS         bool   `mapstructure:"tls" yaml:"tls"`
}

// Enabled reports whether enough is configured to send mail.
func (m MailConfig) Enabled() bool {
	return m.SMTPHost != "" && m.From != ""
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme              string `mapstructure:"theme" yaml:"theme"`
	RefreshIntervalSec int    `mapstructure:"refresh_interval_sec" yaml:"refresh_interval_sec"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Billing  BillingConfig  `mapstructure:"billing" yaml:"billing"`
	Archive  ArchiveConfig  `mapstructure:"archive" yaml:"archive"`
	Mail     MailConfig     `mapstructure:"mail" yaml:"mail"`
	Display  DisplayConfig  `mapstructure:"display" yaml:"display"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// DefaultConfigDir returns ~/.config/sitebook, falling back to the
// working directory when the home directory is unknown.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "sitebook")
}

// DefaultConfigPath returns the default path for the configuration file.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// setDefaults registers every key so that missing keys and SITEBOOK_*
// environment overrides both resolve.
func setDefaults(v *viper.Viper) {
	dir := DefaultConfigDir()

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", filepath.Join(dir, "sitebook.db"))
	v.SetDefault("database.dsn", "")

	v.SetDefault("billing.currency", "USD")
	v.SetDefault("billing.tax_rate", 0.15)
	v.SetDefault("billing.due_days", 30)
	v.SetDefault("billing.company_name", "")
	v.SetDefault("billing.company_address", "")
	v.SetDefault("billing.company_email", "")

	v.SetDefault("archive.driver", "fs")
	v.SetDefault("archive.dir", filepath.Join(dir, "documents"))
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.path_style", false)
	v.SetDefault("archive.access_key", "")

	v.SetDefault("mail.from", "")
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.smtp_host", "")
	v.SetDefault("mail.smtp_port", "587")
	v.SetDefault("mail.imap_host", "")
	v.SetDefault("mail.imap_port", "993")
	v.SetDefault("mail.sent_mailbox", "Sent")
	v.SetDefault("mail.tls", false)

	v.SetDefault("display.theme", "default")
	v.SetDefault("display.refresh_interval_sec", 60)

	v.SetDefault("metrics.addr", "")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// SITEBOOK_<SECTION>_<KEY> environment variables override file values.
// If the file does not exist, defaults plus environment are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("sitebook")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints that defaults cannot express.
func (c *AppConfig) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}

	if c.Billing.TaxRate < 0 || c.Billing.TaxRate >= 1 {
		return fmt.Errorf("billing.tax_rate must be in [0, 1), got %v", c.Billing.TaxRate)
	}
	if c.Billing.DueDays <= 0 {
		return fmt.Errorf("billing.due_days must be positive")
	}

	switch c.Archive.Driver {
	case "", "fs", "s3":
	default:
		return fmt.Errorf("unknown archive.driver %q", c.Archive.Driver)
	}
	if c.Archive.Driver == "s3" && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket is required for s3")
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("database", cfg.Database)
	v.Set("billing", cfg.Billing)
	v.Set("archive", cfg.Archive)
	v.Set("mail", cfg.Mail)
	v.Set("display", cfg.Display)
	v.Set("metrics", cfg.Metrics)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
