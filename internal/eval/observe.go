package eval

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// tracer uses the global OTel tracer provider.
var tracer = otel.Tracer("dbtsel/eval")

type evalMetrics struct {
	evaluations metric.Int64Counter
	matched     metric.Int64Histogram
	latency     metric.Float64Histogram
}

var (
	defaultMetrics     *evalMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getMetrics lazily creates instruments on the global meter provider.
func getMetrics() (*evalMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newEvalMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newEvalMetrics() (*evalMetrics, error) {
	meter := otel.Meter("dbtsel/eval")

	evaluations, err := meter.Int64Counter("dbtsel.selector.evaluations",
		metric.WithDescription("Number of selector evaluations"),
	)
	if err != nil {
		return nil, err
	}

	matched, err := meter.Int64Histogram("dbtsel.selector.matched",
		metric.WithDescription("Nodes selected per evaluation"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("dbtsel.selector.latency_ms",
		metric.WithDescription("Selector evaluation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &evalMetrics{evaluations: evaluations, matched: matched, latency: latency}, nil
}

func recordEvaluation(ctx context.Context, name string, matched int, d time.Duration) {
	m, err := getMetrics()
	if err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("selector.name", name))
	m.evaluations.Add(ctx, 1, attrs)
	m.matched.Record(ctx, int64(matched), attrs)
	m.latency.Record(ctx, float64(d.Microseconds())/1000.0, attrs)
}
