package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes the workflow instruments.
type Metrics struct {
	marginCalculations metric.Int64Counter
	approvalRequests   metric.Int64Counter
	approvalDecisions  metric.Int64Counter
	approvalWait       metric.Float64Histogram
	approvalExpiries   metric.Int64Counter
	slaWarnings        metric.Int64Counter
	outboundDispatch   metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New creates the workflow instruments on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "sellerflow"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.marginCalculations, "sellerflow_margin_calculations_total", "Priced or simulated lines by margin band."},
		{&m.approvalRequests, "sellerflow_approval_requests_total", "Approval requests opened, by required role."},
		{&m.approvalDecisions, "sellerflow_approval_decisions_total", "Approve and reject decisions."},
		{&m.approvalExpiries, "sellerflow_approval_expiries_total", "Requests that passed their deadline, by expiry policy."},
		{&m.slaWarnings, "sellerflow_approval_sla_warnings_total", "Approvers warned of an approaching deadline."},
		{&m.outboundDispatch, "sellerflow_outbound_dispatch_total", "Outbox deliveries by result."},
	}
	var err error
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, fmt.Errorf("create %s: %w", c.name, err)
		}
	}
	m.approvalWait, err = meter.Float64Histogram("sellerflow_approval_wait_hours",
		metric.WithDescription("Wall-clock hours between request and decision."),
		metric.WithUnit("h"),
		metric.WithExplicitBucketBoundaries(0.25, 1, 2, 4, 8, 16, 24, 48, 72),
	)
	if err != nil {
		return nil, fmt.Errorf("create sellerflow_approval_wait_hours: %w", err)
	}
	return m, nil
}

// RecordMarginCalculation counts simulated or priced lines by band.
func (m *Metrics) RecordMarginCalculation(ctx context.Context, band string, authorized bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("band", strings.TrimSpace(band)),
		attribute.Bool("authorized", authorized),
	)
	m.marginCalculations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordApprovalRequested counts requests opened for role.
func (m *Metrics) RecordApprovalRequested(ctx context.Context, role string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("role", strings.TrimSpace(role)))
	m.approvalRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordApprovalDecision counts an approve or reject and how long the
// request waited for it.
func (m *Metrics) RecordApprovalDecision(ctx context.Context, outcome, role string, waited time.Duration) {
	if m == nil {
		return
	}
	opt := metric.WithAttributes(FilterAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
		attribute.String("role", strings.TrimSpace(role)),
	)...)
	m.approvalDecisions.Add(ctx, 1, opt)
	if waited >= 0 {
		m.approvalWait.Record(ctx, waited.Hours(), opt)
	}
}

// RecordApprovalExpired counts requests that missed their deadline.
func (m *Metrics) RecordApprovalExpired(ctx context.Context, policy string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("policy", strings.TrimSpace(policy)))
	m.approvalExpiries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordSLAWarning(ctx context.Context, role string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("role", strings.TrimSpace(role)))
	m.slaWarnings.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOutboundDispatch counts outbox deliveries by result. An empty
// eventType records the batch without the event_type label.
func (m *Metrics) RecordOutboundDispatch(ctx context.Context, eventType, status string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("status", strings.TrimSpace(status))}
	if eventType = strings.TrimSpace(eventType); eventType != "" {
		attrs = append(attrs, attribute.String("event_type", eventType))
	}
	m.outboundDispatch.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":    {},
	"status_code": {},
	"band":        {},
	"authorized":  {},
	"role":        {},
	"outcome":     {},
	"policy":      {},
	"event_type":  {},
	"status":      {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
