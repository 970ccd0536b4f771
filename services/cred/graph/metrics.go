// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("cred.graph")

// Metrics for graph merge operations.
var (
	mergeLatency metric.Float64Histogram
	mergeTotal   metric.Int64Counter
	mergedNodes  metric.Int64Histogram
	mergedEdges  metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		mergeLatency, err = meter.Float64Histogram(
			"cred_graph_merge_duration_seconds",
			metric.WithDescription("Duration of graph merge operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		mergeTotal, err = meter.Int64Counter(
			"cred_graph_merge_total",
			metric.WithDescription("Total number of graph merge operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		mergedNodes, err = meter.Int64Histogram(
			"cred_graph_merged_nodes",
			metric.WithDescription("Number of nodes in merged graphs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		mergedEdges, err = meter.Int64Histogram(
			"cred_graph_merged_edges",
			metric.WithDescription("Number of edges in merged graphs"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordMergeMetrics records metrics for a successful merge.
func recordMergeMetrics(ctx context.Context, duration time.Duration, inputs, nodeCount, edgeCount int) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Int("inputs", inputs))
	mergeLatency.Record(ctx, duration.Seconds(), attrs)
	mergeTotal.Add(ctx, 1, attrs)
	mergedNodes.Record(ctx, int64(nodeCount))
	mergedEdges.Record(ctx, int64(edgeCount))
}
