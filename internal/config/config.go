package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	// NodeID seeds snowflake ids; every running process needs its own.
	NodeID int64

	OTLPEndpoint string

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
	DBRunMigrations   bool

	Redis RedisConfig

	Business BusinessConfig
	Approval ApprovalConfig
	Outbound OutboundConfig

	SchedulerInterval time.Duration
	SchedulerEnabled  bool
	SchedulerJobs     string
	SeedDefaults      bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type BusinessConfig struct {
	Timezone string
}

type ApprovalConfig struct {
	ExpiryPolicy        string
	RequireReason       bool
	SLAWarningWindow    time.Duration
	DefaultApproverRole string
	DefaultSLAHours     int
	QuoteValidityDays   int
	LockTTL             time.Duration
}

type OutboundConfig struct {
	Sender    string
	Stream    string
	BatchSize int
}

const (
	ExpiryPolicyEscalate = "escalate"
	ExpiryPolicyNotify   = "notify"

	SenderLog   = "log"
	SenderRedis = "redis"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "sellerflow"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		NodeID:       int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "sellerflow"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBRunMigrations:   getenvBool("DATABASE_RUN_MIGRATIONS", true),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},

		Business: BusinessConfig{
			Timezone: getenv("BUSINESS_TIMEZONE", "America/Sao_Paulo"),
		},

		Approval: ApprovalConfig{
			ExpiryPolicy:        normalizeExpiryPolicy(getenv("APPROVAL_EXPIRY_POLICY", ExpiryPolicyEscalate)),
			RequireReason:       getenvBool("APPROVAL_REQUIRE_REASON", false),
			SLAWarningWindow:    getenvDuration("APPROVAL_SLA_WARNING_WINDOW", 4*time.Hour),
			DefaultApproverRole: strings.ToLower(getenv("APPROVAL_DEFAULT_ROLE", "gerente")),
			DefaultSLAHours:     getenvInt("APPROVAL_DEFAULT_SLA_HOURS", 24),
			QuoteValidityDays:   getenvInt("QUOTE_VALIDITY_DAYS", 15),
			LockTTL:             getenvDuration("QUOTE_LOCK_TTL", 10*time.Second),
		},

		Outbound: OutboundConfig{
			Sender:    strings.ToLower(getenv("OUTBOUND_SENDER", SenderLog)),
			Stream:    getenv("OUTBOUND_STREAM", "sellerflow:quotes"),
			BatchSize: getenvInt("OUTBOUND_BATCH_SIZE", 50),
		},

		SchedulerInterval: getenvDuration("SCHEDULER_INTERVAL", time.Minute),
		SchedulerEnabled:  getenvBool("SCHEDULER_ENABLED", true),
		SchedulerJobs:     getenv("SCHEDULER_JOBS", ""),
		SeedDefaults:      getenvBool("SEED_DEFAULTS", true),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewPricingDefaultsHolder),
)

func normalizeExpiryPolicy(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case ExpiryPolicyNotify:
		return ExpiryPolicyNotify
	default:
		return ExpiryPolicyEscalate
	}
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

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
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
