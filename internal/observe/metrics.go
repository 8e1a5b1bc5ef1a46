// Package observe holds the OpenTelemetry instruments recorded by the
// supervisor and the planner, and the Prometheus bridge that exposes them.
//
// Tests should build their own [Metrics] with [NewMetrics] and an SDK
// ManualReader; production code uses [InitPrometheus].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "voxelcraft.ai/goalbot"

// Action outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeInterrupted = "interrupted"
	OutcomeTimeout     = "timeout"
)

type Metrics struct {
	// ActionDuration tracks supervised action run time.
	ActionDuration metric.Float64Histogram

	// ActionOutcomes counts finished actions. Use with attribute:
	//   attribute.String("outcome", ...)
	ActionOutcomes metric.Int64Counter

	// StopDuration tracks how long Stop took to observe the action ending.
	StopDuration metric.Float64Histogram

	// UnstuckAttempts counts recovery attempts. Use with attribute:
	//   attribute.String("path", "move_away"|"pulses")
	UnstuckAttempts metric.Int64Counter

	// ForcedStops counts stops that gave up on the action.
	ForcedStops metric.Int64Counter

	// ActiveActions is 1 while an action executes.
	ActiveActions metric.Int64UpDownCounter

	// PlannerSteps counts leaf executions. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("status", ...)
	PlannerSteps metric.Int64Counter
}

var durationBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300,
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ActionDuration, err = m.Float64Histogram("goalbot.action.duration",
		metric.WithDescription("Run time of supervised actions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StopDuration, err = m.Float64Histogram("goalbot.action.stop.duration",
		metric.WithDescription("Time from a stop request to the action being cleared."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActionOutcomes, err = m.Int64Counter("goalbot.action.outcomes",
		metric.WithDescription("Finished actions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.UnstuckAttempts, err = m.Int64Counter("goalbot.action.unstuck",
		metric.WithDescription("Unstuck recovery attempts by path."),
	); err != nil {
		return nil, err
	}
	if met.ForcedStops, err = m.Int64Counter("goalbot.action.forced_stops",
		metric.WithDescription("Stops that cleared an action which never finished."),
	); err != nil {
		return nil, err
	}
	if met.ActiveActions, err = m.Int64UpDownCounter("goalbot.action.active",
		metric.WithDescription("Number of executing actions."),
	); err != nil {
		return nil, err
	}
	if met.PlannerSteps, err = m.Int64Counter("goalbot.planner.steps",
		metric.WithDescription("Planner leaf executions by method kind and status."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns metrics bound to the global meter provider. It
// panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

func (m *Metrics) RecordOutcome(ctx context.Context, outcome string, seconds float64) {
	m.ActionOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.ActionDuration.Record(ctx, seconds)
}

func (m *Metrics) RecordUnstuck(ctx context.Context, path string) {
	m.UnstuckAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("path", path)))
}

func (m *Metrics) RecordPlannerStep(ctx context.Context, kind, status string) {
	m.PlannerSteps.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}
