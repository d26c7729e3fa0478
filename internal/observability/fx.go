package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/sellerflow/internal/observability/logger"
	"github.com/smallbiznis/sellerflow/internal/observability/metrics"
	"github.com/smallbiznis/sellerflow/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module wires logging, tracing and both metric pipelines: OTel instruments
// for workflow outcomes and prometheus collectors for HTTP and scheduler health.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		func(cfg Config) logger.Config {
			return logger.Config{
				ServiceName:         cfg.ServiceName,
				Environment:         cfg.Environment,
				Version:             cfg.Version,
				Level:               cfg.LogLevel,
				Format:              cfg.LogFormat,
				Debug:               cfg.Debug(),
				IncludeCaller:       true,
				IncludeStackOnError: cfg.Debug(),
			}
		},
		logger.New,
		func(cfg Config) tracing.Config {
			return tracing.Config{
				Enabled:          cfg.OtelEnabled,
				ServiceName:      cfg.ServiceName,
				ServiceVersion:   cfg.Version,
				Environment:      cfg.Environment,
				ExporterEndpoint: cfg.OtelExporterEndpoint,
				ExporterProtocol: cfg.OtelExporterProtocol,
				SamplingRatio:    cfg.OtelSamplingRatio,
			}
		},
		tracing.NewProvider,
		metricsConfig,
		metrics.NewProvider,
		metrics.New,
		promRegisterer,
		metrics.NewHTTPMetrics,
		schedulerMetrics,
	),
	// the tracer provider has no consumer in the graph but must install itself globally
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

func metricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.OtelEnabled,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
	}
}

// promRegisterer hands out the default registry only when /metrics serves it.
// A disabled endpoint still gets working collectors on a private registry.
func promRegisterer(cfg Config) prometheus.Registerer {
	if cfg.PrometheusEnabled {
		return prometheus.DefaultRegisterer
	}
	return prometheus.NewRegistry()
}

func schedulerMetrics(cfg Config, reg prometheus.Registerer, mcfg metrics.Config) *metrics.SchedulerMetrics {
	if cfg.PrometheusEnabled {
		return metrics.SchedulerWithConfig(mcfg)
	}
	return metrics.NewSchedulerMetrics(reg, mcfg)
}
