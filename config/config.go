package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kevinaaaquil/circulation/secret"
)

const defaultJWTSecret = "change-me-in-production"

// Store drivers accepted in STORE_DRIVER.
const (
	DriverMongo    = "mongo"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
)

type Config struct {
	Port         string
	CORSOrigins  []string
	StoreDriver  string
	MongoURI     string
	DBName       string
	SQLDSN       string
	StoreTimeout time.Duration

	JWTSecret  string
	AuthEmail  string
	AuthPass   string
	AuthBranch string

	LoanPeriod time.Duration
	FineRate   decimal.Decimal
	CommentMax int

	S3Bucket      string
	S3Region      string
	S3AccessKeyID string
	S3SecretKey   string
	ReportURLTTL  time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string // opened with SecretKey when sealed
	SMTPFrom     string

	SecretKey []byte // 32 bytes for AES-256; base64 in env
}

// Load reads the environment. Malformed values are errors; missing required
// values are reported by Validate.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", DriverMongo)),
		MongoURI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:        getEnv("MONGODB_DB", "circulation"),
		SQLDSN:        getEnv("SQL_DSN", ""),
		JWTSecret:     getEnv("JWT_SECRET", defaultJWTSecret),
		AuthEmail:     getEnv("AUTH_EMAIL", ""),
		AuthPass:      getEnv("AUTH_PASSWORD", ""),
		AuthBranch:    getEnv("AUTH_BRANCH", ""),
		S3Bucket:      getEnv("AWS_S3_BUCKET", ""),
		S3Region:      getEnv("AWS_REGION", "us-east-1"),
		S3AccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPUser:      getEnv("SMTP_USER", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:      getEnv("SMTP_FROM", ""),
	}

	var err error
	if cfg.StoreTimeout, err = parseDuration("STORE_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	if cfg.ReportURLTTL, err = parseDuration("REPORT_URL_TTL", "15m"); err != nil {
		return nil, err
	}
	days, err := parseInt("LOAN_PERIOD_DAYS", 14)
	if err != nil {
		return nil, err
	}
	cfg.LoanPeriod = time.Duration(days) * 24 * time.Hour
	if cfg.CommentMax, err = parseInt("REVIEW_COMMENT_MAX", 1000); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = parseInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	cfg.FineRate, err = decimal.NewFromString(getEnv("FINE_RATE_PER_DAY", "1"))
	if err != nil || cfg.FineRate.IsNegative() {
		return nil, fmt.Errorf("config: FINE_RATE_PER_DAY must be a non-negative decimal")
	}

	for _, o := range strings.Split(getEnv("CORS_ORIGINS", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	if k := getEnv("SECRET_KEY", ""); k != "" {
		if cfg.SecretKey, err = secret.DecodeKey(k); err != nil {
			return nil, fmt.Errorf("config: SECRET_KEY: %w (generate with: openssl rand -base64 32)", err)
		}
	}
	if secret.IsSealed(cfg.SMTPPassword) {
		if cfg.SecretKey == nil {
			return nil, fmt.Errorf("config: SMTP_PASSWORD is sealed but SECRET_KEY is not set")
		}
		if cfg.SMTPPassword, err = secret.Open(cfg.SMTPPassword, cfg.SecretKey); err != nil {
			return nil, fmt.Errorf("config: SMTP_PASSWORD: %w", err)
		}
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseInt(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	v := getEnv(key, fallback)
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive duration, got %q", key, v)
	}
	return d, nil
}

// RequiredEnvVars are needed whatever the store driver.
var RequiredEnvVars = []string{
	"JWT_SECRET",
	"AUTH_EMAIL",
	"AUTH_PASSWORD",
}

// Validate reports missing required settings and an unsafe JWT secret.
func (c *Config) Validate() error {
	var missing []string
	for _, key := range RequiredEnvVars {
		if strings.TrimSpace(os.Getenv(key)) == "" {
			missing = append(missing, key)
		}
	}
	switch c.StoreDriver {
	case DriverMongo:
		if c.MongoURI == "" {
			missing = append(missing, "MONGODB_URI")
		}
	case DriverSQLite, DriverPostgres, DriverPGX:
		if c.SQLDSN == "" {
			missing = append(missing, "SQL_DSN")
		}
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required env: %s (set these in .env or environment)", strings.Join(missing, ", "))
	}
	if c.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("config: JWT_SECRET must be set to a strong secret (not the default %s)", defaultJWTSecret)
	}
	return nil
}

// ReportsEnabled reports whether overdue exports can be archived to S3.
func (c *Config) ReportsEnabled() bool { return c.S3Bucket != "" }

// NoticesEnabled reports whether overdue notices can be mailed.
func (c *Config) NoticesEnabled() bool { return c.SMTPHost != "" && c.SMTPFrom != "" }
