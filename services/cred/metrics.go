// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cred

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("cred.service")

var (
	computeLatency metric.Float64Histogram
	computeTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		computeLatency, err = meter.Float64Histogram(
			"cred_compute_duration_seconds",
			metric.WithDescription("Duration of compute requests including graph loading"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		computeTotal, err = meter.Int64Counter(
			"cred_compute_total",
			metric.WithDescription("Total number of compute requests"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordComputeMetrics(ctx context.Context, duration time.Duration, strategy string, err error) {
	if initMetrics() != nil {
		return
	}
	outcome := "ok"
	if err != nil {
		_, outcome = errorStatus(err)
	}
	attrs := metric.WithAttributes(
		attribute.String("strategy", strategy),
		attribute.String("outcome", outcome),
	)
	computeLatency.Record(ctx, duration.Seconds(), attrs)
	computeTotal.Add(ctx, 1, attrs)
}

// registerCacheMetrics exposes the cache's counters as observable
// instruments read at collection time.
func registerCacheMetrics[K comparable, V any](m metric.Meter, c *lruCache[K, V]) (metric.Registration, error) {
	lookups, err := m.Int64ObservableCounter(
		"cred_result_cache_lookups_total",
		metric.WithDescription("Result cache lookups by outcome"),
	)
	if err != nil {
		return nil, err
	}
	evictions, err := m.Int64ObservableCounter(
		"cred_result_cache_evictions_total",
		metric.WithDescription("Results evicted from the cache"),
	)
	if err != nil {
		return nil, err
	}
	entries, err := m.Int64ObservableGauge(
		"cred_result_cache_entries",
		metric.WithDescription("Results currently held in the cache"),
	)
	if err != nil {
		return nil, err
	}
	hitAttrs := metric.WithAttributes(attribute.Bool("hit", true))
	missAttrs := metric.WithAttributes(attribute.Bool("hit", false))
	return m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		hits, misses, evicted := c.Stats()
		o.ObserveInt64(lookups, hits, hitAttrs)
		o.ObserveInt64(lookups, misses, missAttrs)
		o.ObserveInt64(evictions, evicted)
		o.ObserveInt64(entries, int64(c.Len()))
		return nil
	}, lookups, evictions, entries)
}
