package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"meal-stub-service/internal/domain"
)

const meterName = "meal-stub-service/internal/usecase"

// serviceMetrics はバッチ生成と検証の業務メトリクス。
type serviceMetrics struct {
	triples       metric.Int64Counter
	batchDuration metric.Float64Histogram
	checks        metric.Int64Counter
}

// newServiceMetrics はグローバルMeterProviderから計器を作る。
// 作成に失敗した場合は記録しない計器で代替する。
func newServiceMetrics() *serviceMetrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	triples, err := meter.Int64Counter("meal_stub_triples",
		metric.WithDescription("Number of id/key/ciphertext triples processed"),
	)
	if err != nil {
		slog.Warn("failed to create metric", "name", "meal_stub_triples", "error", err)
		triples = noop.Int64Counter{}
	}
	batchDuration, err := meter.Float64Histogram("meal_stub_batch_duration_seconds",
		metric.WithDescription("Duration of batch generation in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		slog.Warn("failed to create metric", "name", "meal_stub_batch_duration_seconds", "error", err)
		batchDuration = noop.Float64Histogram{}
	}
	checks, err := meter.Int64Counter("meal_stub_checks",
		metric.WithDescription("Number of verify and redeem attempts by outcome"),
	)
	if err != nil {
		slog.Warn("failed to create metric", "name", "meal_stub_checks", "error", err)
		checks = noop.Int64Counter{}
	}

	return &serviceMetrics{
		triples:       triples,
		batchDuration: batchDuration,
		checks:        checks,
	}
}

func (m *serviceMetrics) recordTriple(ctx context.Context, scheme domain.Scheme, err error) {
	result := "persisted"
	if err != nil {
		result = "failed"
	}
	m.triples.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scheme", string(scheme)),
		attribute.String("result", result),
	))
}

func (m *serviceMetrics) recordBatch(ctx context.Context, batch *domain.Batch, elapsed time.Duration) {
	m.batchDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("scheme", string(batch.Scheme)),
		attribute.String("status", string(batch.Status)),
	))
}

func (m *serviceMetrics) recordCheck(ctx context.Context, operation string, err error) {
	m.checks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", checkOutcome(err)),
	))
}

// checkOutcome は検証結果をラベル値に変換する。
func checkOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrStubNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrMalformedCiphertext):
		return "malformed"
	case errors.Is(err, domain.ErrWrongKey):
		return "wrong_key"
	case errors.Is(err, domain.ErrIdentifierMismatch):
		return "mismatch"
	case errors.Is(err, domain.ErrStubAlreadyRedeemed):
		return "already_redeemed"
	default:
		return "error"
	}
}
