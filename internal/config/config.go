package config

import (
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the outreach engine.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	DatabaseURL string `json:"database_url"`
	RedisAddr   string `json:"redis_addr,omitempty"`
	HTTPAddr    string `json:"http_addr"`

	// Engine wake interval bounds. Each cycle sleeps a random duration
	// between the two so sends never land on a clean clock grid.
	EngineMinIntervalStr string        `json:"engine_min_interval"`
	EngineMinInterval    time.Duration `json:"-"`
	EngineMaxIntervalStr string        `json:"engine_max_interval"`
	EngineMaxInterval    time.Duration `json:"-"`

	ClaimLimit    int           `json:"claim_limit"`
	JobTimeout    time.Duration `json:"-"`
	JobTimeoutStr string        `json:"job_timeout"`

	DBOpTimeout    time.Duration `json:"-"`
	DBOpTimeoutStr string        `json:"db_op_timeout"`

	DBMaxOpenConns       int           `json:"db_max_open_conns"`
	DBMaxIdleConns       int           `json:"db_max_idle_conns"`
	DBConnMaxLifetime    time.Duration `json:"-"`
	DBConnMaxLifetimeStr string        `json:"db_conn_max_lifetime"`
	DBConnMaxIdleTime    time.Duration `json:"-"`
	DBConnMaxIdleTimeStr string        `json:"db_conn_max_idle_time"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`

	ReconcileEnabled     bool          `json:"reconcile_enabled"`
	ReconcileInterval    time.Duration `json:"-"`
	ReconcileIntervalStr string        `json:"reconcile_interval"`

	// ReconcileThreshold must comfortably exceed JOB_TIMEOUT.
	ReconcileThreshold    time.Duration `json:"-"`
	ReconcileThresholdStr string        `json:"reconcile_threshold"`

	ReconcileBatchSize int `json:"reconcile_batch_size"`

	// LeadRegions is the allowlist of market regions; each maps onto its
	// own lead table.
	LeadRegions []string `json:"lead_regions"`

	PDFRenderURL   string `json:"pdf_render_url"`
	LetterheadPath string `json:"letterhead_path"`
	LogoPath       string `json:"logo_path,omitempty"`

	GmailCredentialsFile string `json:"gmail_credentials_file"`
	OperatorEmail        string `json:"operator_email"`

	// CircuitBreakerThreshold: 0 disables the circuit breaker.
	CircuitBreakerThreshold   int           `json:"circuit_breaker_threshold"`
	CircuitBreakerCooldown    time.Duration `json:"-"`
	CircuitBreakerCooldownStr string        `json:"circuit_breaker_cooldown"`
}

// Load reads configuration from environment variables with defaults.
// A local .env file is applied first when present.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		HTTPAddr:               os.Getenv("HTTP_ADDR"),
		EngineMinIntervalStr:   os.Getenv("ENGINE_MIN_INTERVAL"),
		EngineMaxIntervalStr:   os.Getenv("ENGINE_MAX_INTERVAL"),
		JobTimeoutStr:          os.Getenv("JOB_TIMEOUT"),
		DBOpTimeoutStr:         os.Getenv("DB_OP_TIMEOUT"),
		DBConnMaxLifetimeStr:   os.Getenv("DB_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTimeStr:   os.Getenv("DB_CONN_MAX_IDLE_TIME"),
		HTTPShutdownTimeoutStr: os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		MetricsEnabled:         os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:            os.Getenv("METRICS_PATH"),
		ReconcileEnabled:       os.Getenv("RECONCILE_ENABLED") != "false",
		ReconcileIntervalStr:   os.Getenv("RECONCILE_INTERVAL"),
		ReconcileThresholdStr:  os.Getenv("RECONCILE_THRESHOLD"),
		PDFRenderURL:           os.Getenv("PDF_RENDER_URL"),
		LetterheadPath:         os.Getenv("LETTERHEAD_PATH"),
		LogoPath:               os.Getenv("LOGO_PATH"),
		GmailCredentialsFile:   os.Getenv("GMAIL_CREDENTIALS_FILE"),
		OperatorEmail:          os.Getenv("OPERATOR_EMAIL"),
	}

	for _, region := range strings.Split(os.Getenv("LEAD_REGIONS"), ",") {
		if region = strings.TrimSpace(region); region != "" {
			cfg.LeadRegions = append(cfg.LeadRegions, region)
		}
	}

	if claimStr := os.Getenv("CLAIM_LIMIT"); claimStr != "" {
		if n, err := parseInt(claimStr); err == nil && n > 0 {
			cfg.ClaimLimit = n
		} else {
			log.Printf("config: invalid CLAIM_LIMIT %q (must be a positive integer), using default 10", claimStr)
		}
	}
	if cfg.ClaimLimit == 0 {
		cfg.ClaimLimit = 10
	}

	if batchStr := os.Getenv("RECONCILE_BATCH_SIZE"); batchStr != "" {
		if batch, err := parseInt(batchStr); err == nil && batch > 0 {
			cfg.ReconcileBatchSize = batch
		}
	}
	if cfg.ReconcileBatchSize == 0 {
		cfg.ReconcileBatchSize = 100
	}

	if cbThreshStr := os.Getenv("CIRCUIT_BREAKER_THRESHOLD"); cbThreshStr != "" {
		if n, err := parseInt(cbThreshStr); err == nil {
			cfg.CircuitBreakerThreshold = n
		} else {
			log.Printf("config: invalid CIRCUIT_BREAKER_THRESHOLD %q, using default 5", cbThreshStr)
		}
	}
	if cfg.CircuitBreakerThreshold == 0 && os.Getenv("CIRCUIT_BREAKER_THRESHOLD") == "" {
		cfg.CircuitBreakerThreshold = 5
	}

	cfg.CircuitBreakerCooldownStr = os.Getenv("CIRCUIT_BREAKER_COOLDOWN")

	if maxOpenStr := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpenStr != "" {
		if n, err := parseInt(maxOpenStr); err == nil && n > 0 {
			cfg.DBMaxOpenConns = n
		}
	}
	if cfg.DBMaxOpenConns == 0 {
		cfg.DBMaxOpenConns = 25
	}

	if maxIdleStr := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdleStr != "" {
		if n, err := parseInt(maxIdleStr); err == nil && n > 0 {
			cfg.DBMaxIdleConns = n
		}
	}
	if cfg.DBMaxIdleConns == 0 {
		cfg.DBMaxIdleConns = 5
	}

	// Support Railway's PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.EngineMinIntervalStr == "" {
		cfg.EngineMinIntervalStr = "30s"
	}
	if cfg.EngineMaxIntervalStr == "" {
		cfg.EngineMaxIntervalStr = "2m"
	}
	if cfg.JobTimeoutStr == "" {
		cfg.JobTimeoutStr = "90s"
	}
	if cfg.DBOpTimeoutStr == "" {
		cfg.DBOpTimeoutStr = "5s"
	}
	if cfg.DBConnMaxLifetimeStr == "" {
		cfg.DBConnMaxLifetimeStr = "30m"
	}
	if cfg.DBConnMaxIdleTimeStr == "" {
		cfg.DBConnMaxIdleTimeStr = "5m"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.ReconcileIntervalStr == "" {
		cfg.ReconcileIntervalStr = "5m"
	}
	if cfg.ReconcileThresholdStr == "" {
		cfg.ReconcileThresholdStr = "10m"
	}
	if cfg.CircuitBreakerCooldownStr == "" {
		cfg.CircuitBreakerCooldownStr = "2m"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.EngineMinIntervalStr); err == nil {
		cfg.EngineMinInterval = d
	}
	if d, err := time.ParseDuration(cfg.EngineMaxIntervalStr); err == nil {
		cfg.EngineMaxInterval = d
	}
	if d, err := time.ParseDuration(cfg.JobTimeoutStr); err == nil {
		cfg.JobTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DBOpTimeoutStr); err == nil {
		cfg.DBOpTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxLifetimeStr); err == nil {
		cfg.DBConnMaxLifetime = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxIdleTimeStr); err == nil {
		cfg.DBConnMaxIdleTime = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.ReconcileIntervalStr); err == nil {
		cfg.ReconcileInterval = d
	}
	if d, err := time.ParseDuration(cfg.ReconcileThresholdStr); err == nil {
		cfg.ReconcileThreshold = d
	}
	if d, err := time.ParseDuration(cfg.CircuitBreakerCooldownStr); err == nil {
		cfg.CircuitBreakerCooldown = d
	}

	return cfg
}

// parseInt parses a string as an integer.
func parseInt(s string) (int, error) {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		DatabaseURL             string   `json:"database_url"`
		RedisAddr               string   `json:"redis_addr,omitempty"`
		HTTPAddr                string   `json:"http_addr"`
		EngineMinInterval       string   `json:"engine_min_interval"`
		EngineMaxInterval       string   `json:"engine_max_interval"`
		ClaimLimit              int      `json:"claim_limit"`
		JobTimeout              string   `json:"job_timeout"`
		DBOpTimeout             string   `json:"db_op_timeout"`
		DBMaxOpenConns          int      `json:"db_max_open_conns"`
		DBMaxIdleConns          int      `json:"db_max_idle_conns"`
		DBConnMaxLifetime       string   `json:"db_conn_max_lifetime"`
		DBConnMaxIdleTime       string   `json:"db_conn_max_idle_time"`
		HTTPShutdownTimeout     string   `json:"http_shutdown_timeout"`
		MetricsEnabled          bool     `json:"metrics_enabled"`
		MetricsPath             string   `json:"metrics_path"`
		ReconcileEnabled        bool     `json:"reconcile_enabled"`
		ReconcileInterval       string   `json:"reconcile_interval"`
		ReconcileThreshold      string   `json:"reconcile_threshold"`
		ReconcileBatchSize      int      `json:"reconcile_batch_size"`
		LeadRegions             []string `json:"lead_regions"`
		PDFRenderURL            string   `json:"pdf_render_url"`
		LetterheadPath          string   `json:"letterhead_path"`
		LogoPath                string   `json:"logo_path,omitempty"`
		GmailCredentialsFile    string   `json:"gmail_credentials_file"`
		OperatorEmail           string   `json:"operator_email"`
		CircuitBreakerThreshold int      `json:"circuit_breaker_threshold"`
		CircuitBreakerCooldown  string   `json:"circuit_breaker_cooldown"`
	}{
		DatabaseURL:             maskSecret(c.DatabaseURL),
		RedisAddr:               c.RedisAddr,
		HTTPAddr:                c.HTTPAddr,
		EngineMinInterval:       c.EngineMinIntervalStr,
		EngineMaxInterval:       c.EngineMaxIntervalStr,
		ClaimLimit:              c.ClaimLimit,
		JobTimeout:              c.JobTimeoutStr,
		DBOpTimeout:             c.DBOpTimeoutStr,
		DBMaxOpenConns:          c.DBMaxOpenConns,
		DBMaxIdleConns:          c.DBMaxIdleConns,
		DBConnMaxLifetime:       c.DBConnMaxLifetimeStr,
		DBConnMaxIdleTime:       c.DBConnMaxIdleTimeStr,
		HTTPShutdownTimeout:     c.HTTPShutdownTimeoutStr,
		MetricsEnabled:          c.MetricsEnabled,
		MetricsPath:             c.MetricsPath,
		ReconcileEnabled:        c.ReconcileEnabled,
		ReconcileInterval:       c.ReconcileIntervalStr,
		ReconcileThreshold:      c.ReconcileThresholdStr,
		ReconcileBatchSize:      c.ReconcileBatchSize,
		LeadRegions:             c.LeadRegions,
		PDFRenderURL:            c.PDFRenderURL,
		LetterheadPath:          c.LetterheadPath,
		LogoPath:                c.LogoPath,
		GmailCredentialsFile:    c.GmailCredentialsFile,
		OperatorEmail:           c.OperatorEmail,
		CircuitBreakerThreshold: c.CircuitBreakerThreshold,
		CircuitBreakerCooldown:  c.CircuitBreakerCooldownStr,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if len(s) >= len(scheme) && s[:len(scheme)] == scheme {
			return scheme + "***"
		}
	}
	return "***"
}
