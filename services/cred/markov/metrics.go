// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package markov

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("cred.markov")

// Metrics for solver runs.
var (
	solveLatency    metric.Float64Histogram
	solveIterations metric.Int64Histogram
	solveTotal      metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		solveLatency, err = meter.Float64Histogram(
			"cred_solver_duration_seconds",
			metric.WithDescription("Duration of stationary distribution computations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		solveIterations, err = meter.Int64Histogram(
			"cred_solver_iterations",
			metric.WithDescription("Power iterations per computation"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		solveTotal, err = meter.Int64Counter(
			"cred_solver_total",
			metric.WithDescription("Total number of stationary distribution computations"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordSolveMetrics records metrics for a finished computation.
func recordSolveMetrics(ctx context.Context, duration time.Duration, r *Result) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("state", r.State.String()))
	solveLatency.Record(ctx, duration.Seconds(), attrs)
	solveIterations.Record(ctx, int64(r.Iterations), attrs)
	solveTotal.Add(ctx, 1, attrs)
}
