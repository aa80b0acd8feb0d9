package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Policy     PolicyConfig     `yaml:"policy"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// PolicyConfig holds the circulation policy knobs. The amounts are cents so
// fine arithmetic stays integral.
type PolicyConfig struct {
	LoanPeriodDays           int   `yaml:"loan_period_days"`
	MaxRenewals              int   `yaml:"max_renewals"`
	RenewalPeriodDays        int   `yaml:"renewal_period_days"`
	PickupWindowDays         int   `yaml:"pickup_window_days"`
	OverdueDailyFineCents    int64 `yaml:"overdue_daily_fine_cents"`
	DamageFineCents          int64 `yaml:"damage_fine_cents"`
	LostReplacementFineCents int64 `yaml:"lost_replacement_fine_cents"`
	PenaltyDueDays           int   `yaml:"penalty_due_days"`
}

// LoanPeriod returns the configured loan period as a duration.
func (p PolicyConfig) LoanPeriod() time.Duration {
	return time.Duration(p.LoanPeriodDays) * 24 * time.Hour
}

// RenewalPeriod returns the configured renewal extension as a duration.
func (p PolicyConfig) RenewalPeriod() time.Duration {
	return time.Duration(p.RenewalPeriodDays) * 24 * time.Hour
}

// PickupWindow returns the configured pickup window as a duration.
func (p PolicyConfig) PickupWindow() time.Duration {
	return time.Duration(p.PickupWindowDays) * 24 * time.Hour
}

// PenaltyDue returns how long a reader has to settle a new penalty.
func (p PolicyConfig) PenaltyDue() time.Duration {
	return time.Duration(p.PenaltyDueDays) * 24 * time.Hour
}

// SweepConfig holds the maintenance sweep loop configuration.
type SweepConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// ApplyDefaults fills in zero or invalid values with the standard policy.
func ApplyDefaults(cfg *Config) {
	if cfg.Sweep.IntervalSeconds <= 0 {
		cfg.Sweep.IntervalSeconds = 3600
	}
	cfg.Sweep.Interval = time.Duration(cfg.Sweep.IntervalSeconds) * time.Second

	if cfg.Policy.LoanPeriodDays <= 0 {
		cfg.Policy.LoanPeriodDays = 15
	}
	if cfg.Policy.MaxRenewals <= 0 {
		cfg.Policy.MaxRenewals = 3
	}
	if cfg.Policy.RenewalPeriodDays <= 0 {
		cfg.Policy.RenewalPeriodDays = 15
	}
	if cfg.Policy.PickupWindowDays <= 0 {
		cfg.Policy.PickupWindowDays = 3
	}
	if cfg.Policy.OverdueDailyFineCents <= 0 {
		cfg.Policy.OverdueDailyFineCents = 50
	}
	if cfg.Policy.DamageFineCents <= 0 {
		cfg.Policy.DamageFineCents = 1500
	}
	if cfg.Policy.LostReplacementFineCents <= 0 {
		cfg.Policy.LostReplacementFineCents = 4500
	}
	if cfg.Policy.PenaltyDueDays <= 0 {
		cfg.Policy.PenaltyDueDays = 30
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
