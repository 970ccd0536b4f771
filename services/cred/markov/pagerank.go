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
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
	"github.com/AleutianAI/AleutianCred/services/cred/graph"
	"github.com/AleutianAI/AleutianCred/services/cred/telemetry"
	"github.com/AleutianAI/AleutianCred/services/cred/weighted"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// PageRank chain
// =============================================================================

var buildTracer = otel.Tracer("cred.markov.build")

// DefaultSyntheticLoopWeight is the raw weight of every node's synthetic
// self-loop. Small enough not to distort scores; large enough to keep
// sink nodes stochastic.
const DefaultSyntheticLoopWeight = 1e-3

// BuildOptions configures BuildPageRankChain.
type BuildOptions struct {
	// SyntheticLoopWeight is the raw self-loop weight per node.
	// Must be > 0. Default: DefaultSyntheticLoopWeight
	SyntheticLoopWeight float64
}

// DefaultBuildOptions returns the default builder options.
func DefaultBuildOptions() *BuildOptions {
	return &BuildOptions{SyntheticLoopWeight: DefaultSyntheticLoopWeight}
}

// Validate checks the options.
func (o *BuildOptions) Validate() error {
	w := o.SyntheticLoopWeight
	if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
		return fmt.Errorf("%w: synthetic loop weight %v must be positive", ErrInvalidParameters, w)
	}
	return nil
}

// BuildPageRankChain converts a weighted graph into a Markov chain.
//
// Description:
//
//	Nodes are ordered by address. For every edge e = src -> dst two raw
//	transitions are created: src -> dst with e's forwards weight
//	(recorded at dst as KindInEdge) and dst -> src with e's backwards
//	weight (recorded at src as KindOutEdge). Every node also gets one
//	KindSyntheticLoop with the configured raw weight. Raw weights are then
//	divided by the total raw out-weight of their source, which makes the
//	chain row-stochastic. Each node's adjacencies are sorted by kind, edge
//	address and source address so that identical inputs yield identical
//	chains.
//
// Inputs:
//
//   - ctx: Context for tracing. Must not be nil.
//   - wg: The weighted graph. Not mutated.
//   - opts: Builder options. If nil, defaults are used.
//
// Outputs:
//
//   - *Chain: The row-stochastic chain.
//   - error: ErrInvalidParameters for bad options, or a cursor error if wg
//     is mutated during the build.
//
// Complexity: O(V log V + E log E).
func BuildPageRankChain(ctx context.Context, wg *weighted.Graph, opts *BuildOptions) (_ *Chain, err error) {
	_, span := buildTracer.Start(ctx, "markov.BuildPageRankChain",
		trace.WithAttributes(
			attribute.Int("node_count", wg.Graph.NodeCount()),
			attribute.Int("edge_count", wg.Graph.EdgeCount()),
		),
	)
	defer span.End()
	defer func() { telemetry.RecordError(span, err) }()

	if opts == nil {
		opts = DefaultBuildOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	nodes, err := wg.Graph.Nodes(graph.NodeFilter{}).Collect()
	if err != nil {
		return nil, fmt.Errorf("build chain: %w", err)
	}
	edges, err := wg.Graph.Edges(graph.EdgeFilter{}).Collect()
	if err != nil {
		return nil, fmt.Errorf("build chain: %w", err)
	}

	index := make(map[address.NodeAddress]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}

	b := newChainBuilder(nodes)
	ev := wg.Evaluator()
	for _, e := range edges {
		w := ev.EdgeWeight(e.Address)
		src, dst := index[e.Src], index[e.Dst]
		b.add(dst, Adjacency{Kind: KindInEdge, Edge: e.Address, Source: src, Weight: w.Forwards})
		b.add(src, Adjacency{Kind: KindOutEdge, Edge: e.Address, Source: dst, Weight: w.Backwards})
	}
	for i := range nodes {
		b.add(i, Adjacency{Kind: KindSyntheticLoop, Source: i, Weight: opts.SyntheticLoopWeight})
	}

	chain := b.normalized()
	slog.Debug("PageRank chain built",
		slog.Int("node_count", len(nodes)),
		slog.Int("edge_count", len(edges)),
	)
	return chain, nil
}

// chainBuilder accumulates raw transitions before normalization.
type chainBuilder struct {
	nodes []address.NodeAddress
	adjs  [][]Adjacency
}

func newChainBuilder(nodes []address.NodeAddress) *chainBuilder {
	return &chainBuilder{nodes: nodes, adjs: make([][]Adjacency, len(nodes))}
}

func (b *chainBuilder) add(target int, adj Adjacency) {
	b.adjs[target] = append(b.adjs[target], adj)
}

// normalized divides raw weights by their source's total out-weight and
// sorts every adjacency list. Sources with zero out-weight keep their
// zero entries.
func (b *chainBuilder) normalized() *Chain {
	totals := make([]float64, len(b.nodes))
	for _, adjs := range b.adjs {
		for _, adj := range adjs {
			totals[adj.Source] += adj.Weight
		}
	}
	for _, adjs := range b.adjs {
		for j := range adjs {
			if t := totals[adjs[j].Source]; t > 0 {
				adjs[j].Weight /= t
			}
		}
	}
	return b.sorted()
}

func (b *chainBuilder) sorted() *Chain {
	for _, adjs := range b.adjs {
		slices.SortStableFunc(adjs, func(x, y Adjacency) int {
			return compareAdjacency(b.nodes, x, y)
		})
	}
	return &Chain{Nodes: b.nodes, Adjacencies: b.adjs}
}
