// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package attribution

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
	"github.com/AleutianAI/AleutianCred/services/cred/entity"
	"github.com/AleutianAI/AleutianCred/services/cred/graph"
	"github.com/AleutianAI/AleutianCred/services/cred/markov"
	"github.com/AleutianAI/AleutianCred/services/cred/telemetry"
	"github.com/AleutianAI/AleutianCred/services/cred/weighted"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("cred.attribution")

// Input is everything a run consumes.
type Input struct {
	// WeightedGraphs are merged conservatively. At least one is required.
	WeightedGraphs []*weighted.Graph

	// Entities supply descriptions and timestamps. Merged conservatively.
	Entities []*entity.Table

	// Contractions collapse identity aliases before chain construction.
	Contractions []graph.NodeContraction
}

// Config selects the strategy and its parameters.
type Config struct {
	Strategy   Strategy
	Parameters Parameters
}

// DefaultConfig returns CREDRANK v1 with default parameters.
func DefaultConfig() Config {
	return Config{Strategy: DefaultStrategy(), Parameters: DefaultParameters()}
}

// Run computes scores for the input graphs.
//
// Description:
//
//	Merges the graphs and entity tables, applies contractions, builds the
//	chain for the configured strategy, solves it and decomposes every
//	node's score. A solver that stops at the iteration cap still yields a
//	result with Converged set to false.
//
// Inputs:
//
//   - ctx: Context for cancellation and tracing. Must not be nil.
//   - in: The graphs, entities and contractions. Not mutated.
//   - cfg: Strategy and parameters.
//
// Outputs:
//
//   - *Result: The self-describing result.
//   - error: ErrNoGraphs, ErrUnsupportedStrategyVersion, merge conflicts,
//     parameter errors, or ctx.Err() on cancellation.
//
// Example:
//
//	res, err := attribution.Run(ctx, attribution.Input{
//	    WeightedGraphs: []*weighted.Graph{github, discord},
//	}, attribution.DefaultConfig())
func Run(ctx context.Context, in Input, cfg Config) (_ *Result, err error) {
	ctx, span := tracer.Start(ctx, "attribution.Run",
		trace.WithAttributes(
			attribute.String("strategy", cfg.Strategy.String()),
			attribute.Int("graph_count", len(in.WeightedGraphs)),
		),
	)
	defer span.End()
	defer func() { telemetry.RecordError(span, err) }()
	start := time.Now()

	if err := cfg.Strategy.Validate(); err != nil {
		return nil, err
	}
	if len(in.WeightedGraphs) == 0 {
		return nil, ErrNoGraphs
	}

	wg, err := weighted.Merge(ctx, in.WeightedGraphs...)
	if err != nil {
		return nil, err
	}
	entities, err := entity.MergeConservative(in.Entities...)
	if err != nil {
		return nil, err
	}
	if len(in.Contractions) > 0 {
		wg, err = weighted.Contract(ctx, wg, in.Contractions)
		if err != nil {
			return nil, err
		}
	}
	if err := wg.Weights.Validate(); err != nil {
		return nil, err
	}

	params := cfg.Parameters
	params.applyDefaults()
	var (
		chain  *markov.Chain
		solver = params.solverOptions()
		scores map[address.NodeAddress]float64
		cred   *markov.CredRankChain
	)
	switch cfg.Strategy.Type {
	case StrategyPageRank:
		chain, err = markov.BuildPageRankChain(ctx, wg, &markov.BuildOptions{SyntheticLoopWeight: params.SyntheticLoopWeight})
		if err != nil {
			return nil, err
		}
		solver.Alpha = params.Alpha
		solver.Seed = markov.WeightedDistribution(chain.Nodes, nodeWeights(wg, chain.Nodes))
	case StrategyCredRank:
		cred, err = markov.BuildCredRankChain(ctx, wg, entities, params.CredRank, params.fibration())
		if err != nil {
			return nil, err
		}
		chain = cred.Chain
	}

	res, err := markov.FindStationaryDistribution(ctx, chain, solver)
	if err != nil {
		return nil, fmt.Errorf("solve %s: %w", cfg.Strategy, err)
	}

	if cred != nil {
		scores = cred.BaseScores(res.Pi)
	} else {
		scores = make(map[address.NodeAddress]float64, len(chain.Nodes))
		for i, n := range chain.Nodes {
			scores[n] = res.Pi[i]
		}
	}

	decompositions, err := Decompose(chain, res.Pi)
	if err != nil {
		return nil, err
	}

	out := &Result{
		Strategy:         cfg.Strategy,
		Parameters:       params,
		NodeOrder:        slices.Clone(chain.Nodes),
		Distribution:     res.Pi,
		Converged:        res.Converged(),
		State:            res.State,
		Iterations:       res.Iterations,
		ConvergenceDelta: res.ConvergenceDelta,
		Scores:           make([]NodeScore, 0, len(scores)),
		Decompositions:   decompositions,
	}
	if cred != nil {
		out.ScoringDecompositions = FoldEpochs(decompositions, cred.EpochNodes)
	}
	for n, s := range scores {
		out.Scores = append(out.Scores, NodeScore{Node: n, Description: entities.Description(n), Score: s})
	}
	slices.SortFunc(out.Scores, compareScores)
	if cred != nil {
		out.Payouts = cred.Payouts(res.Pi)
	}

	if !out.Converged {
		slog.Warn("Attribution did not converge",
			slog.String("strategy", cfg.Strategy.String()),
			slog.Int("iterations", out.Iterations),
			slog.Float64("delta", out.ConvergenceDelta),
		)
	}
	slog.Debug("Attribution completed",
		slog.String("strategy", cfg.Strategy.String()),
		slog.Int("nodes", wg.Graph.NodeCount()),
		slog.Int("edges", wg.Graph.EdgeCount()),
		slog.Duration("duration", time.Since(start)),
	)
	span.SetAttributes(
		attribute.Int("iterations", out.Iterations),
		attribute.Bool("converged", out.Converged),
	)
	return out, nil
}

func nodeWeights(wg *weighted.Graph, nodes []address.NodeAddress) map[address.NodeAddress]float64 {
	ev := wg.Evaluator()
	out := make(map[address.NodeAddress]float64, len(nodes))
	for _, n := range nodes {
		out[n] = ev.NodeWeight(n)
	}
	return out
}
