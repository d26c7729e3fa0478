package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/sellerflow/internal/config"
)

const defaultServiceName = "sellerflow"

// Config is the observability view of the process: how it names itself in
// logs, spans and metrics, and where telemetry goes.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64

	// PrometheusEnabled exposes GET /metrics for the scheduler and HTTP
	// collectors.
	PrometheusEnabled bool
}

func LoadConfig(cfg config.Config) Config {
	return loadConfig(cfg, os.LookupEnv)
}

type lookupFunc func(key string) (string, bool)

func loadConfig(cfg config.Config, lookup lookupFunc) Config {
	env := envReader{lookup: lookup}

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	protocol := env.lower("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	protocol = env.lower("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", protocol)

	return Config{
		ServiceName:          serviceName,
		Environment:          env.str("DEPLOYMENT_ENV", cfg.Environment),
		Version:              env.str("SERVICE_VERSION", cfg.AppVersion),
		LogLevel:             env.lower("LOG_LEVEL", "info"),
		LogFormat:            env.lower("LOG_FORMAT", "json"),
		OtelEnabled:          env.boolean("OTEL_ENABLED", true),
		OtelExporterEndpoint: env.str("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint),
		OtelExporterProtocol: protocol,
		OtelSamplingRatio:    clampRatio(env.float("OTEL_SAMPLING_RATIO", 0.1)),
		PrometheusEnabled:    env.boolean("PROMETHEUS_ENABLED", true),
	}
}

// Debug turns on verbose request logging and stack traces.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func clampRatio(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

type envReader struct {
	lookup lookupFunc
}

func (r envReader) str(key, def string) string {
	if value, ok := r.lookup(key); ok {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return strings.TrimSpace(def)
}

func (r envReader) lower(key, def string) string {
	return strings.ToLower(r.str(key, def))
}

func (r envReader) boolean(key string, def bool) bool {
	switch r.lower(key, "") {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func (r envReader) float(key string, def float64) float64 {
	parsed, err := strconv.ParseFloat(r.str(key, ""), 64)
	if err != nil {
		return def
	}
	return parsed
}
