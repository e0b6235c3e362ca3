package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Accounting AccountingSettings
	Scheduler  SchedulerSettings

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MetricsAddr    string
	MetricsEnabled bool

	// OTLPEndpoint receives traces over gRPC. Empty keeps spans in process.
	OTLPEndpoint string
}

// AccountingSettings gates and tunes the accounting engine.
type AccountingSettings struct {
	Enabled           bool
	RequireFiscalYear bool
	EntryPrefix       string
	SeedDefaults      bool
	ConfigPath        string
	// Location is the zone the business keeps its books in. Nil reads event
	// timestamps in their own offset and the clock in UTC.
	Location *time.Location
}

type SchedulerSettings struct {
	Enabled     bool
	RunInterval time.Duration
	JobTimeout  time.Duration
	EnabledJobs []string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "posledger"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "posledger"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),

		Accounting: AccountingSettings{
			Enabled:           getenvBool("ACCOUNTING_ENABLED", false),
			RequireFiscalYear: getenvBool("ACCOUNTING_REQUIRE_FISCAL_YEAR", false),
			EntryPrefix:       strings.ToUpper(strings.TrimSpace(getenv("ACCOUNTING_ENTRY_PREFIX", "JE"))),
			SeedDefaults:      getenvBool("ACCOUNTING_SEED_DEFAULTS", true),
			ConfigPath:        strings.TrimSpace(getenv("ACCOUNTING_CONFIG_PATH", "")),
			Location:          getenvLocation("ACCOUNTING_TIMEZONE"),
		},
		Scheduler: SchedulerSettings{
			Enabled:     getenvBool("SCHEDULER_ENABLED", true),
			RunInterval: getenvDuration("SCHEDULER_RUN_INTERVAL", time.Minute),
			JobTimeout:  getenvDuration("SCHEDULER_JOB_TIMEOUT", 30*time.Second),
			EnabledJobs: parseList(getenv("SCHEDULER_ENABLED_JOBS", "")),
		},

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       int(getenvInt64("REDIS_DB", 0)),

		MetricsAddr:    strings.TrimSpace(getenv("METRICS_ADDR", ":9090")),
		MetricsEnabled: getenvBool("METRICS_ENABLED", true),

		OTLPEndpoint: strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")),
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

// getenvLocation returns nil when key is unset or names an unknown zone.
func getenvLocation(key string) *time.Location {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	loc, err := time.LoadLocation(value)
	if err != nil {
		return nil
	}
	return loc
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
