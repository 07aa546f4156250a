package main

import (
	"time"

	"github.com/resupify/resupify/pkg/admission"
)

// Config is the server configuration, loaded from the environment. Limit
// defaults mirror admission.DefaultLimits; each class is tunable per
// deployment without a rebuild.
type Config struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// AdminAPIKey exempts requests carrying it in X-Admin-Key from all
	// admission checks. Empty disables the exemption entirely.
	AdminAPIKey string `env:"ADMIN_API_KEY"`

	// RedisURL enables the Redis stats recorder when set.
	RedisURL string `env:"REDIS_URL"`

	// CleanupInterval controls the idle-key sweep; zero disables it.
	CleanupInterval time.Duration `env:"ADMISSION_CLEANUP_INTERVAL" envDefault:"10m"`
	IdleThreshold   time.Duration `env:"ADMISSION_IDLE_THRESHOLD" envDefault:"1h"`

	EvidenceScanLimit  int           `env:"EVIDENCE_SCAN_LIMIT" envDefault:"10"`
	EvidenceScanWindow time.Duration `env:"EVIDENCE_SCAN_WINDOW" envDefault:"10m"`
	OutreachLimit      int           `env:"OUTREACH_LIMIT" envDefault:"10"`
	OutreachWindow     time.Duration `env:"OUTREACH_WINDOW" envDefault:"10m"`
	KitLimit           int           `env:"KIT_LIMIT" envDefault:"10"`
	KitWindow          time.Duration `env:"KIT_WINDOW" envDefault:"10m"`
	URLFetchIPLimit    int           `env:"URL_FETCH_IP_LIMIT" envDefault:"20"`
	URLFetchIPWindow   time.Duration `env:"URL_FETCH_IP_WINDOW" envDefault:"1h"`
	URLFetchUserLimit  int           `env:"URL_FETCH_USER_LIMIT" envDefault:"10"`
	URLFetchUserWindow time.Duration `env:"URL_FETCH_USER_WINDOW" envDefault:"1h"`
	AuthLimit          int           `env:"AUTH_LIMIT" envDefault:"20"`
	AuthWindow         time.Duration `env:"AUTH_WINDOW" envDefault:"10m"`
	JDExtractLimit     int           `env:"JD_EXTRACT_LIMIT" envDefault:"10"`
	JDExtractWindow    time.Duration `env:"JD_EXTRACT_WINDOW" envDefault:"10m"`

	// ScanConcurrency caps simultaneous evidence scans per user.
	ScanConcurrency int `env:"SCAN_CONCURRENCY" envDefault:"1"`
}

// Limits assembles the limit table from the configured values, keyed by the
// canonical class names.
func (c Config) Limits() map[string]admission.Config {
	return map[string]admission.Config{
		admission.LimitEvidenceScanPerUser: {Limit: c.EvidenceScanLimit, Window: c.EvidenceScanWindow},
		admission.LimitOutreachPerUser:     {Limit: c.OutreachLimit, Window: c.OutreachWindow},
		admission.LimitKitPerUser:          {Limit: c.KitLimit, Window: c.KitWindow},
		admission.LimitURLFetchPerIP:       {Limit: c.URLFetchIPLimit, Window: c.URLFetchIPWindow},
		admission.LimitURLFetchPerUser:     {Limit: c.URLFetchUserLimit, Window: c.URLFetchUserWindow},
		admission.LimitAuthPerIP:           {Limit: c.AuthLimit, Window: c.AuthWindow},
		admission.LimitJDExtractPerUser:    {Limit: c.JDExtractLimit, Window: c.JDExtractWindow},
	}
}
