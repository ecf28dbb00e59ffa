package pipeline

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("dot-tracker.pipeline")
	meter  = otel.Meter("dot-tracker.pipeline")
)

var (
	buildLatency    metric.Float64Histogram
	buildTotal      metric.Int64Counter
	featuresCreated metric.Int64Histogram
	edgesCreated    metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments once. Safe to call repeatedly.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"tracker_build_duration_seconds",
			metric.WithDescription("Duration of stack builds and rebuilds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"tracker_build_total",
			metric.WithDescription("Total number of stack builds and rebuilds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		featuresCreated, err = meter.Int64Histogram(
			"tracker_features_created",
			metric.WithDescription("Number of features per build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesCreated, err = meter.Int64Histogram(
			"tracker_edges_created",
			metric.WithDescription("Number of child edges and sibling pairs per build"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordBuildMetrics records one build or rebuild.
func recordBuildMetrics(ctx context.Context, scope string, duration time.Duration, features, edges int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.Bool("success", success),
	)
	buildLatency.Record(ctx, duration.Seconds(), attrs)
	buildTotal.Add(ctx, 1, attrs)

	if success {
		featuresCreated.Record(ctx, int64(features))
		edgesCreated.Record(ctx, int64(edges))
	}
}
