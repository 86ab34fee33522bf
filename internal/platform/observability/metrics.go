package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/farhanyousaf786/fans-munch-sub000/internal/payments"

// SplitMetrics counts split calculations by applied model and outcome.
type SplitMetrics struct {
	calculations metric.Int64Counter
	amount       metric.Float64Histogram
}

// NewSplitMetrics registers the instruments on meter, or on the global provider when nil.
func NewSplitMetrics(meter metric.Meter) (*SplitMetrics, error) {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(meterName)
	}
	calculations, err := meter.Int64Counter(
		"payments.split.calculations",
		metric.WithDescription("Payment split calculations by model and outcome"),
	)
	if err != nil {
		return nil, err
	}
	amount, err := meter.Float64Histogram(
		"payments.split.amount",
		metric.WithDescription("Order totals run through the split engine"),
	)
	if err != nil {
		return nil, err
	}
	return &SplitMetrics{calculations: calculations, amount: amount}, nil
}

// Record notes one calculation. A nil receiver is a no-op.
func (m *SplitMetrics) Record(ctx context.Context, model, currency, outcome string, total float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("currency", currency),
		attribute.String("outcome", outcome),
	)
	m.calculations.Add(ctx, 1, attrs)
	if outcome == "ok" {
		m.amount.Record(ctx, total, attrs)
	}
}
