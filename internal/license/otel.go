package license

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const MeterName = "license-core"

// Metrics holds the license-specific OpenTelemetry instruments. All of them
// are no-ops until the host application installs a metrics SDK.
type Metrics struct {
	// Validation metrics
	ValidationAttempts    metric.Int64Counter
	ValidationDuration    metric.Float64Histogram
	ValidationCacheHits   metric.Int64Counter
	ValidationCacheMisses metric.Int64Counter
	IntegrityScore        metric.Int64Histogram

	// Activation metrics
	ActivationAttempts metric.Int64Counter
	ActivationSuccess  metric.Int64Counter
	ActivationFailures metric.Int64Counter

	// Storage metrics
	RepairOperations metric.Int64Counter

	// Security metrics
	TamperDetections      metric.Int64Counter
	FingerprintMismatches metric.Int64Counter
	RateLimitHits         metric.Int64Counter
}

// InitMetrics creates all license metrics from the global meter provider.
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(MeterName)
	m := &Metrics{}
	var err error

	m.ValidationAttempts, err = meter.Int64Counter(
		"license_validation_attempts_total",
		metric.WithDescription("Total number of license validation attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation attempts counter: %w", err)
	}

	m.ValidationDuration, err = meter.Float64Histogram(
		"license_validation_duration_seconds",
		metric.WithDescription("License validation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation duration histogram: %w", err)
	}

	m.ValidationCacheHits, err = meter.Int64Counter(
		"license_validation_cache_hits_total",
		metric.WithDescription("Total number of license validation cache hits"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache hits counter: %w", err)
	}

	m.ValidationCacheMisses, err = meter.Int64Counter(
		"license_validation_cache_misses_total",
		metric.WithDescription("Total number of license validation cache misses"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache misses counter: %w", err)
	}

	m.IntegrityScore, err = meter.Int64Histogram(
		"license_integrity_score",
		metric.WithDescription("Integrity score distribution across validations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create integrity score histogram: %w", err)
	}

	m.ActivationAttempts, err = meter.Int64Counter(
		"license_activation_attempts_total",
		metric.WithDescription("Total number of license activation attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create activation attempts counter: %w", err)
	}

	m.ActivationSuccess, err = meter.Int64Counter(
		"license_activation_success_total",
		metric.WithDescription("Total number of successful license activations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create activation success counter: %w", err)
	}

	m.ActivationFailures, err = meter.Int64Counter(
		"license_activation_failures_total",
		metric.WithDescription("Total number of failed license activations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create activation failures counter: %w", err)
	}

	m.RepairOperations, err = meter.Int64Counter(
		"license_storage_repairs_total",
		metric.WithDescription("Total number of storage repair operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create repair counter: %w", err)
	}

	m.TamperDetections, err = meter.Int64Counter(
		"license_tamper_detections_total",
		metric.WithDescription("Total number of validations ending in the tampered state"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tamper counter: %w", err)
	}

	m.FingerprintMismatches, err = meter.Int64Counter(
		"license_fingerprint_mismatches_total",
		metric.WithDescription("Total number of stored records bound to a different device"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fingerprint mismatch counter: %w", err)
	}

	m.RateLimitHits, err = meter.Int64Counter(
		"license_rate_limit_hits_total",
		metric.WithDescription("Total number of throttled activation attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit counter: %w", err)
	}

	return m, nil
}

// recordValidation records the outcome of one full validation pass.
func (m *Metrics) recordValidation(ctx context.Context, result *Result, seconds float64) {
	if m == nil {
		return
	}
	status := attribute.String("status", string(result.Status))
	m.ValidationAttempts.Add(ctx, 1, metric.WithAttributes(status))
	m.ValidationDuration.Record(ctx, seconds, metric.WithAttributes(status))
	m.IntegrityScore.Record(ctx, int64(result.IntegrityScore))
	if result.Status == StatusTampered {
		m.TamperDetections.Add(ctx, 1)
	}
}

func (m *Metrics) recordCache(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.ValidationCacheHits.Add(ctx, 1)
	} else {
		m.ValidationCacheMisses.Add(ctx, 1)
	}
}

func (m *Metrics) recordActivation(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	m.ActivationAttempts.Add(ctx, 1)
	if success {
		m.ActivationSuccess.Add(ctx, 1)
	} else {
		m.ActivationFailures.Add(ctx, 1)
	}
}

func (m *Metrics) addRepair(ctx context.Context) {
	if m == nil {
		return
	}
	m.RepairOperations.Add(ctx, 1)
}

func (m *Metrics) addFingerprintMismatch(ctx context.Context) {
	if m == nil {
		return
	}
	m.FingerprintMismatches.Add(ctx, 1)
}

func (m *Metrics) addRateLimitHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.RateLimitHits.Add(ctx, 1)
}
