package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds the engine's domain metrics.
type Registry struct {
	meter metric.Meter

	// Detection metrics
	ViolationsDetected metric.Int64Counter
	DetectionDuration  metric.Float64Histogram
	CompletenessScore  metric.Float64Histogram

	// Settlement metrics
	AnalysesGenerated metric.Int64Counter
	LeverageScore     metric.Float64Histogram

	// Negotiation metrics
	NegotiationDecisions metric.Int64Counter

	// Escalation scheduler metrics
	TickDuration      metric.Float64Histogram
	RequestsProcessed metric.Int64Counter
	CheckpointsFired  metric.Int64Counter
	TickErrors        metric.Int64Counter
	MassTriggersFired metric.Int64Counter
}

// NewRegistry creates the registry against the global meter provider.
func NewRegistry(meterName string) (*Registry, error) {
	meter := otel.Meter(meterName)
	r := &Registry{meter: meter}

	var err error

	if r.ViolationsDetected, err = meter.Int64Counter(
		"gdpr.detection.violations_total",
		metric.WithDescription("Violations emitted by the detector"),
	); err != nil {
		return nil, err
	}

	if r.DetectionDuration, err = meter.Float64Histogram(
		"gdpr.detection.duration",
		metric.WithDescription("Document analysis duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 50, 100, 500, 1000),
	); err != nil {
		return nil, err
	}

	if r.CompletenessScore, err = meter.Float64Histogram(
		"gdpr.detection.completeness_score",
		metric.WithDescription("GDPR response completeness scores"),
		metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.4, 0.6, 0.8, 1.0),
	); err != nil {
		return nil, err
	}

	if r.AnalysesGenerated, err = meter.Int64Counter(
		"gdpr.settlement.analyses_total",
		metric.WithDescription("Settlement analyses generated"),
	); err != nil {
		return nil, err
	}

	if r.LeverageScore, err = meter.Float64Histogram(
		"gdpr.settlement.leverage_score",
		metric.WithDescription("Computed leverage scores"),
		metric.WithExplicitBucketBoundaries(10, 30, 50, 75, 100),
	); err != nil {
		return nil, err
	}

	if r.NegotiationDecisions, err = meter.Int64Counter(
		"gdpr.negotiation.decisions_total",
		metric.WithDescription("Negotiation round decisions by action"),
	); err != nil {
		return nil, err
	}

	if r.TickDuration, err = meter.Float64Histogram(
		"gdpr.scheduler.tick_duration",
		metric.WithDescription("Escalation tick duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(10, 100, 1000, 10000, 60000),
	); err != nil {
		return nil, err
	}

	if r.RequestsProcessed, err = meter.Int64Counter(
		"gdpr.scheduler.requests_processed_total",
		metric.WithDescription("Requests examined per escalation tick"),
	); err != nil {
		return nil, err
	}

	if r.CheckpointsFired, err = meter.Int64Counter(
		"gdpr.scheduler.checkpoints_fired_total",
		metric.WithDescription("Escalation checkpoints fired by name"),
	); err != nil {
		return nil, err
	}

	if r.TickErrors, err = meter.Int64Counter(
		"gdpr.scheduler.errors_total",
		metric.WithDescription("Per-request errors isolated during ticks"),
	); err != nil {
		return nil, err
	}

	if r.MassTriggersFired, err = meter.Int64Counter(
		"gdpr.scheduler.mass_triggers_total",
		metric.WithDescription("Mass enforcement protocol activations"),
	); err != nil {
		return nil, err
	}

	return r, nil
}

// RecordCheckpoint counts one fired checkpoint by name.
func (r *Registry) RecordCheckpoint(ctx context.Context, checkpoint string) {
	r.CheckpointsFired.Add(ctx, 1, metric.WithAttributes(attribute.String("checkpoint", checkpoint)))
}

// RecordDecision counts one negotiation decision by action.
func (r *Registry) RecordDecision(ctx context.Context, action string) {
	r.NegotiationDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}
