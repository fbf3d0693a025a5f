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

// Metrics exposes application-level instruments.
type Metrics struct {
	featureReads           metric.Int64Counter
	milestoneActivations   metric.Int64Counter
	milestoneDeactivations metric.Int64Counter
	activationSkipped      metric.Int64Counter
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

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "flagship"
	}
	meter := provider.Meter(name)

	featureReads, err := meter.Int64Counter("flagship_feature_reads_total")
	if err != nil {
		return nil, err
	}
	milestoneActivations, err := meter.Int64Counter("flagship_milestone_activations_total")
	if err != nil {
		return nil, err
	}
	milestoneDeactivations, err := meter.Int64Counter("flagship_milestone_deactivations_total")
	if err != nil {
		return nil, err
	}
	activationSkipped, err := meter.Int64Counter("flagship_activation_conflicts_skipped_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		featureReads:           featureReads,
		milestoneActivations:   milestoneActivations,
		milestoneDeactivations: milestoneDeactivations,
		activationSkipped:      activationSkipped,
	}, nil
}

// RecordFeatureRead increments consumer-tagged read counts.
func (m *Metrics) RecordFeatureRead(ctx context.Context, consumer, environment string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("consumer", strings.TrimSpace(consumer)),
		attribute.String("environment", strings.TrimSpace(environment)),
	)
	m.featureReads.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordMilestoneActivation increments activation counts.
func (m *Metrics) RecordMilestoneActivation(ctx context.Context, environment string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("environment", strings.TrimSpace(environment)))
	m.milestoneActivations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordMilestoneDeactivation increments deactivation counts.
func (m *Metrics) RecordMilestoneDeactivation(ctx context.Context, environment string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("environment", strings.TrimSpace(environment)))
	m.milestoneDeactivations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordActivationSkipped counts idempotent copies skipped on conflict.
func (m *Metrics) RecordActivationSkipped(ctx context.Context, environment string, skipped int) {
	if m == nil || skipped <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("environment", strings.TrimSpace(environment)))
	m.activationSkipped.Add(ctx, int64(skipped), metric.WithAttributes(attrs...))
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
	"consumer":    {},
	"environment": {},
	"endpoint":    {},
	"status_code": {},
	"method":      {},
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
