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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
	"github.com/AleutianAI/AleutianCred/services/cred/attribution"
	"github.com/AleutianAI/AleutianCred/services/cred/entity"
	"github.com/AleutianAI/AleutianCred/services/cred/graph"
	credbadger "github.com/AleutianAI/AleutianCred/services/cred/storage/badger"
	"github.com/AleutianAI/AleutianCred/services/cred/telemetry"
	"github.com/AleutianAI/AleutianCred/services/cred/weighted"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("cred.service")

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Defaults is the strategy and parameters used when a compute request
	// does not override them.
	Defaults attribution.Config

	// ResultCacheSize is the number of decoded results kept in memory.
	// Default: 32
	ResultCacheSize int
}

// DefaultServiceConfig returns CREDRANK v1 defaults scoring "user" nodes.
func DefaultServiceConfig() ServiceConfig {
	cfg := attribution.DefaultConfig()
	cfg.Parameters.ScoringPrefixes = []address.NodeAddress{address.MustNode("user")}
	return ServiceConfig{Defaults: cfg, ResultCacheSize: 32}
}

// Service implements the cred API on top of a Store.
//
// Thread Safety:
//
//	Safe for concurrent use. Every computation decodes its own graphs, so
//	concurrent requests never share mutable graph state.
type Service struct {
	store    *credbadger.Store
	defaults attribution.Config
	results  *lruCache[string, *attribution.Result]
	flight   singleflight.Group
	newID    func() string
}

// NewService creates a service backed by store.
func NewService(store *credbadger.Store, cfg ServiceConfig) *Service {
	s := &Service{
		store:    store,
		defaults: cfg.Defaults,
		results:  newLRUCache[string, *attribution.Result](cfg.ResultCacheSize),
		newID:    uuid.NewString,
	}
	if _, err := registerCacheMetrics(meter, s.results); err != nil {
		slog.Warn("Result cache metrics unavailable", slog.String("error", err.Error()))
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() *credbadger.Store {
	return s.store
}

// =============================================================================
// Graphs
// =============================================================================

// PutGraph decodes a weighted-graph envelope and stores it under name.
//
// Errors:
//
//	compat.ErrIncompatibleFormat - not a cred/weightedGraph document
//	weighted.ErrInvalidWeight - a negative or non-finite weight
func (s *Service) PutGraph(ctx context.Context, name string, data []byte) (credbadger.GraphInfo, error) {
	wg, err := weighted.FromJSON(data)
	if err != nil {
		return credbadger.GraphInfo{}, err
	}
	if err := wg.Weights.Validate(); err != nil {
		return credbadger.GraphInfo{}, err
	}
	return s.store.SaveGraph(ctx, name, wg)
}

// Graph returns a stored graph.
func (s *Service) Graph(ctx context.Context, name string) (*weighted.Graph, error) {
	return s.store.LoadGraph(ctx, name)
}

// ListGraphs returns every stored graph.
func (s *Service) ListGraphs(ctx context.Context) ([]credbadger.GraphInfo, error) {
	return s.store.ListGraphs(ctx)
}

// DeleteGraph removes a graph and its entity table.
func (s *Service) DeleteGraph(ctx context.Context, name string) error {
	return s.store.DeleteGraph(ctx, name)
}

// PutEntities decodes an entity-table envelope and stores it for the
// graph called name.
func (s *Service) PutEntities(ctx context.Context, name string, data []byte) error {
	tbl, err := entity.FromJSON(data)
	if err != nil {
		return err
	}
	return s.store.SaveEntities(ctx, name, tbl)
}

// Entities returns the entity table stored for the graph called name.
func (s *Service) Entities(ctx context.Context, name string) (*entity.Table, error) {
	return s.store.LoadEntities(ctx, name)
}

// =============================================================================
// Compute
// =============================================================================

// Compute runs an attribution over stored graphs and persists the result.
//
// Description:
//
//	Resolves the run configuration from the service defaults and the
//	request overrides, loads every named graph and entity table in
//	parallel, runs the pipeline and stores the result under a new ID.
//	Identical requests that arrive while a computation is in flight
//	share its result. The shared computation is detached from the
//	caller's cancellation, so a caller that goes away stops waiting
//	without failing the others. The result is still stored.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	req - The compute request. Graphs must be non-empty.
//
// Outputs:
//
//	*ComputeResponse - The stored result's summary.
//	error - ErrInvalidRequest, store ErrNotFound for a missing graph,
//	        merge conflicts, or pipeline errors.
//
// Thread Safety: Safe for concurrent use.
func (s *Service) Compute(ctx context.Context, req ComputeRequest) (_ *ComputeResponse, err error) {
	start := time.Now()
	cfg, err := s.resolveConfig(req)
	if err != nil {
		recordComputeMetrics(ctx, time.Since(start), "", err)
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "cred.Service.Compute",
		trace.WithAttributes(
			attribute.String("strategy", cfg.Strategy.String()),
			attribute.StringSlice("graphs", req.Graphs),
		),
	)
	defer span.End()
	defer func() { telemetry.RecordError(span, err) }()

	key, err := flightKey(req.Graphs, req.Contractions, cfg)
	if err != nil {
		return nil, err
	}
	detached := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(key, func() (any, error) {
		return s.compute(detached, req, cfg)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		res.Err = ctx.Err()
	case res = <-ch:
	}
	recordComputeMetrics(ctx, time.Since(start), cfg.Strategy.String(), res.Err)
	if res.Err != nil {
		return nil, res.Err
	}
	span.SetAttributes(attribute.Bool("shared", res.Shared))
	return res.Val.(*ComputeResponse), nil
}

func (s *Service) compute(ctx context.Context, req ComputeRequest, cfg attribution.Config) (*ComputeResponse, error) {
	graphs := make([]*weighted.Graph, len(req.Graphs))
	tables := make([]*entity.Table, len(req.Graphs))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range req.Graphs {
		g.Go(func() error {
			wg, err := s.store.LoadGraph(gctx, name)
			if err != nil {
				return err
			}
			graphs[i] = wg
			tbl, err := s.store.LoadEntities(gctx, name)
			switch {
			case errors.Is(err, credbadger.ErrNotFound):
			case err != nil:
				return err
			default:
				tables[i] = tbl
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	contractions := make([]graph.NodeContraction, 0, len(req.Contractions))
	for _, c := range req.Contractions {
		contractions = append(contractions, graph.NodeContraction{Old: c.Old, Replacement: c.Replacement})
	}

	res, err := attribution.Run(ctx, attribution.Input{
		WeightedGraphs: graphs,
		Entities:       tables,
		Contractions:   contractions,
	}, cfg)
	if err != nil {
		return nil, err
	}

	id := s.newID()
	info, err := s.store.SaveResult(ctx, id, req.Graphs, res)
	if err != nil {
		return nil, fmt.Errorf("store result: %w", err)
	}
	s.results.Set(id, res)

	slog.Info("Attribution computed",
		slog.String("result_id", id),
		slog.String("strategy", info.Strategy),
		slog.Bool("converged", res.Converged),
		slog.Int("iterations", res.Iterations),
	)
	return &ComputeResponse{
		ResultID:         id,
		Strategy:         info.Strategy,
		Converged:        res.Converged,
		Iterations:       res.Iterations,
		ConvergenceDelta: res.ConvergenceDelta,
		NodeCount:        len(res.Scores),
		CreatedAt:        info.CreatedAt,
	}, nil
}

// resolveConfig layers the request overrides over the defaults.
func (s *Service) resolveConfig(req ComputeRequest) (attribution.Config, error) {
	if len(req.Graphs) == 0 {
		return attribution.Config{}, fmt.Errorf("%w: %w", ErrInvalidRequest, attribution.ErrNoGraphs)
	}
	cfg := s.defaults
	cfg.Parameters.ScoringPrefixes = slices.Clone(s.defaults.Parameters.ScoringPrefixes)
	cfg.Parameters.EpochBoundaries = slices.Clone(s.defaults.Parameters.EpochBoundaries)
	if req.Strategy != nil {
		cfg.Strategy = *req.Strategy
	}
	if len(req.Parameters) > 0 {
		if err := json.Unmarshal(req.Parameters, &cfg.Parameters); err != nil {
			return attribution.Config{}, fmt.Errorf("%w: parameters: %v", ErrInvalidRequest, err)
		}
	}
	if req.ScoringPrefixes != nil {
		cfg.Parameters.ScoringPrefixes = req.ScoringPrefixes
	}
	if err := cfg.Strategy.Validate(); err != nil {
		return attribution.Config{}, err
	}
	return cfg, nil
}

// flightKey identifies a computation. Graph order does not matter because
// merging is commutative.
func flightKey(graphs []string, contractions []Contraction, cfg attribution.Config) (string, error) {
	sorted := slices.Clone(graphs)
	slices.Sort(sorted)
	key, err := json.Marshal(struct {
		Graphs       []string
		Contractions []Contraction
		Config       attribution.Config
	}{sorted, contractions, cfg})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return string(key), nil
}

// =============================================================================
// Results
// =============================================================================

// Result returns a stored result, from the cache when possible.
func (s *Service) Result(ctx context.Context, id string) (*attribution.Result, error) {
	if res, ok := s.results.Get(id); ok {
		return res, nil
	}
	res, err := s.store.LoadResult(ctx, id)
	if err != nil {
		return nil, err
	}
	s.results.Set(id, res)
	return res, nil
}

// ListResults returns every stored result, newest first.
func (s *Service) ListResults(ctx context.Context) ([]credbadger.ResultInfo, error) {
	return s.store.ListResults(ctx)
}

// DeleteResult removes a stored result.
func (s *Service) DeleteResult(ctx context.Context, id string) error {
	s.results.Delete(id)
	return s.store.DeleteResult(ctx, id)
}

// Top returns the k highest scoring input nodes under prefix.
func (s *Service) Top(ctx context.Context, id string, k int, prefix address.NodeAddress) ([]attribution.RankedNode, error) {
	res, err := s.Result(ctx, id)
	if err != nil {
		return nil, err
	}
	return res.Top(k, prefix), nil
}

// Decomposition returns the score breakdown of one node.
func (s *Service) Decomposition(ctx context.Context, id string, node address.NodeAddress) (attribution.NodeDecomposition, error) {
	res, err := s.Result(ctx, id)
	if err != nil {
		return attribution.NodeDecomposition{}, err
	}
	return res.Decomposition(node)
}
