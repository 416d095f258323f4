package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cardroom/config"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// MetricsProvider manages OpenTelemetry metrics for the card room. A nil
// provider is valid and records nothing.
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	enabled       bool
	mu            sync.RWMutex

	// Metric instruments
	ledgerTransactionsCounter    metric.Int64Counter
	tableTransitionsCounter      metric.Int64Counter
	routerAssignmentsCounter     metric.Int64Counter
	routerPassDurationHist       metric.Float64Histogram
	enforcerActionsCounter       metric.Int64Counter
	inviteConsumptionsCounter    metric.Int64Counter
	dispatcherQueueDepthGauge    metric.Int64UpDownCounter
	natsMessagesPublishedCounter metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Debug("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdkmetric.Exporter
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		mp.initialized = true
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				exporter,
				sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
			),
		),
	)
	otel.SetMeterProvider(mp.meterProvider)

	if err := mp.createInstruments(mp.meterProvider.Meter("cardroom")); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	mp.enabled = true
	log.Info("Metrics provider initialized successfully")
	return nil
}

// InitializeWithReader wires the provider to an explicit reader. Tests use it
// with a ManualReader to collect what was recorded.
func (mp *MetricsProvider) InitializeWithReader(reader sdkmetric.Reader) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	if err := mp.createInstruments(mp.meterProvider.Meter("cardroom")); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}
	mp.initialized = true
	mp.enabled = true
	return nil
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments(meter metric.Meter) error {
	var err error
	mp.meter = meter

	mp.ledgerTransactionsCounter, err = meter.Int64Counter(
		LedgerTransactionsTotal,
		metric.WithDescription("Total number of ledger transactions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create ledger transactions counter: %w", err)
	}

	mp.tableTransitionsCounter, err = meter.Int64Counter(
		TableTransitionsTotal,
		metric.WithDescription("Total number of table status transitions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create table transitions counter: %w", err)
	}

	mp.routerAssignmentsCounter, err = meter.Int64Counter(
		RouterAssignmentsTotal,
		metric.WithDescription("Total number of waitlist entries handled by the router"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create router assignments counter: %w", err)
	}

	mp.routerPassDurationHist, err = meter.Float64Histogram(
		RouterPassDuration,
		metric.WithDescription("Duration of router passes in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create router pass duration histogram: %w", err)
	}

	mp.enforcerActionsCounter, err = meter.Int64Counter(
		EnforcerActionsTotal,
		metric.WithDescription("Total number of enforcement actions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create enforcer actions counter: %w", err)
	}

	mp.inviteConsumptionsCounter, err = meter.Int64Counter(
		InviteConsumptionsTotal,
		metric.WithDescription("Total number of invite consume attempts"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create invite consumptions counter: %w", err)
	}

	mp.dispatcherQueueDepthGauge, err = meter.Int64UpDownCounter(
		DispatcherQueueDepth,
		metric.WithDescription("Intents queued across table mailboxes"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher queue depth gauge: %w", err)
	}

	mp.natsMessagesPublishedCounter, err = meter.Int64Counter(
		NATSMessagesPublishedTotal,
		metric.WithDescription("Total number of NATS messages published"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create NATS messages published counter: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordLedgerTransaction records an applied ledger transaction
func (mp *MetricsProvider) RecordLedgerTransaction(kind, currency string) {
	if !mp.isEnabled() {
		return
	}

	mp.ledgerTransactionsCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelKind, kind),
			attribute.String(LabelCurrency, currency),
		),
	)
}

// RecordTableTransition records a table entering a status
func (mp *MetricsProvider) RecordTableTransition(status string) {
	if !mp.isEnabled() {
		return
	}

	mp.tableTransitionsCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelStatus, status),
		),
	)
}

// RecordRouterAssignment records what the router did with one entry
func (mp *MetricsProvider) RecordRouterAssignment(outcome string) {
	if !mp.isEnabled() {
		return
	}

	mp.routerAssignmentsCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelOutcome, outcome),
		),
	)
}

// MeasureRouterPass returns a function that records the pass duration
//
//	defer observability.GetMetrics().MeasureRouterPass()()
func (mp *MetricsProvider) MeasureRouterPass() func() {
	start := time.Now()
	return func() {
		if !mp.isEnabled() {
			return
		}
		mp.routerPassDurationHist.Record(context.Background(), time.Since(start).Seconds())
	}
}

// RecordEnforcerAction records a timeout or expiration enforcement
func (mp *MetricsProvider) RecordEnforcerAction(action string) {
	if !mp.isEnabled() {
		return
	}

	mp.enforcerActionsCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelAction, action),
		),
	)
}

// RecordInviteConsumption records the result of a consume attempt
func (mp *MetricsProvider) RecordInviteConsumption(result string) {
	if !mp.isEnabled() {
		return
	}

	mp.inviteConsumptionsCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelResult, result),
		),
	)
}

// UpdateDispatcherQueueDepth adjusts the queued intent count
func (mp *MetricsProvider) UpdateDispatcherQueueDepth(delta int64) {
	if !mp.isEnabled() {
		return
	}

	mp.dispatcherQueueDepthGauge.Add(context.Background(), delta)
}

// RecordNATSMessagePublished records a NATS message being published
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesPublishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelEventType, eventType),
		),
	)
}

// isEnabled checks if metrics are enabled and initialized
func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.enabled
}

// Global metrics provider instance
var (
	globalMetrics *MetricsProvider
	metricsOnce   sync.Once
)

// InitializeGlobalMetrics initializes the global metrics provider
func InitializeGlobalMetrics(ctx context.Context, cfg *config.Config) error {
	var err error
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsProvider(cfg)
		err = globalMetrics.Initialize(ctx)
	})
	return err
}

// GetMetrics returns the global metrics provider, nil until initialized
func GetMetrics() *MetricsProvider {
	return globalMetrics
}

// ShutdownGlobalMetrics shuts down the global metrics provider
func ShutdownGlobalMetrics(ctx context.Context) error {
	if globalMetrics != nil {
		return globalMetrics.Shutdown(ctx)
	}
	return nil
}
