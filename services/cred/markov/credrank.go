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
	"sort"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
	"github.com/AleutianAI/AleutianCred/services/cred/entity"
	"github.com/AleutianAI/AleutianCred/services/cred/graph"
	"github.com/AleutianAI/AleutianCred/services/cred/telemetry"
	"github.com/AleutianAI/AleutianCred/services/cred/weighted"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// CredRank chain
// =============================================================================

// CredRank parameter defaults.
const (
	DefaultAlpha         = 0.1
	DefaultBeta          = 0.4
	DefaultGammaForward  = 0.1
	DefaultGammaBackward = 0.1
)

// Reserved addresses for the structural nodes added by BuildCredRankChain.
// Input graphs may not use the CorePrefix namespace.
var (
	CorePrefix     = address.MustNode("cred", "core")
	coreEdgePrefix = address.MustEdge("cred", "core")

	// SeedAddress is the node that mints and collects mass.
	SeedAddress = CorePrefix.MustAppend("SEED")
)

// EpochAddress returns the address of base's node for the given epoch.
func EpochAddress(base address.NodeAddress, epoch int) address.NodeAddress {
	return CorePrefix.MustAppend("EPOCH", epochLabel(epoch)).MustAppend(base.Parts()...)
}

// AccumulatorAddress returns the payout accumulator of an epoch.
func AccumulatorAddress(epoch int) address.NodeAddress {
	return CorePrefix.MustAppend("ACCUMULATOR", epochLabel(epoch))
}

func epochLabel(epoch int) string {
	return fmt.Sprintf("%06d", epoch)
}

func structuralEdge(label string, node address.NodeAddress) address.EdgeAddress {
	return coreEdgePrefix.MustAppend(label).MustAppend(node.Parts()...)
}

// CredRankParams controls mass flow in the CredRank chain.
type CredRankParams struct {
	// Alpha is the fraction every node returns to the seed.
	Alpha float64 `json:"alpha" yaml:"alpha" validate:"gte=0,lte=1"`

	// Beta is the fraction an epoch node pays to its epoch accumulator.
	Beta float64 `json:"beta" yaml:"beta" validate:"gte=0,lte=1"`

	// GammaForward is the fraction an epoch node passes to its next epoch.
	GammaForward float64 `json:"gammaForward" yaml:"gamma_forward" validate:"gte=0,lte=1"`

	// GammaBackward is the fraction an epoch node passes to its previous
	// epoch.
	GammaBackward float64 `json:"gammaBackward" yaml:"gamma_backward" validate:"gte=0,lte=1"`
}

// DefaultCredRankParams returns alpha=0.1, beta=0.4, gamma=0.1 both ways.
func DefaultCredRankParams() CredRankParams {
	return CredRankParams{
		Alpha:         DefaultAlpha,
		Beta:          DefaultBeta,
		GammaForward:  DefaultGammaForward,
		GammaBackward: DefaultGammaBackward,
	}
}

// Validate checks that every parameter is a non-negative finite number and
// that together they do not exceed 1.
func (p CredRankParams) Validate() error {
	for _, v := range []float64{p.Alpha, p.Beta, p.GammaForward, p.GammaBackward} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %+v has a negative or non-finite value", ErrInvalidParameters, p)
		}
	}
	if sum := p.Alpha + p.Beta + p.GammaForward + p.GammaBackward; sum > 1+1e-12 {
		return fmt.Errorf("%w: alpha+beta+gammaForward+gammaBackward = %v exceeds 1", ErrInvalidParameters, sum)
	}
	return nil
}

// Fibration splits nodes into scoring and non-scoring sets and scoring
// nodes into time epochs.
type Fibration struct {
	// ScoringPrefixes selects scoring nodes, typically users.
	ScoringPrefixes []address.NodeAddress `json:"scoringPrefixes"`

	// EpochBoundaries are strictly increasing epoch start times in Unix
	// milliseconds. Epoch 0 covers everything before the first boundary;
	// epoch i covers [EpochBoundaries[i-1], EpochBoundaries[i]).
	EpochBoundaries []int64 `json:"epochBoundaries"`
}

// Validate checks that the epoch boundaries are strictly increasing.
func (f Fibration) Validate() error {
	for i := 1; i < len(f.EpochBoundaries); i++ {
		if f.EpochBoundaries[i] <= f.EpochBoundaries[i-1] {
			return fmt.Errorf("%w: epoch boundaries not strictly increasing at %d", ErrInvalidParameters, i)
		}
	}
	return nil
}

// IsScoring reports whether a matches any scoring prefix.
func (f Fibration) IsScoring(a address.NodeAddress) bool {
	for _, p := range f.ScoringPrefixes {
		if a.HasPrefix(p) {
			return true
		}
	}
	return false
}

// EpochCount returns the number of epochs.
func (f Fibration) EpochCount() int {
	return len(f.EpochBoundaries) + 1
}

// EpochOf returns the epoch containing timestampMs.
func (f Fibration) EpochOf(timestampMs int64) int {
	return sort.Search(len(f.EpochBoundaries), func(i int) bool {
		return f.EpochBoundaries[i] > timestampMs
	})
}

// CredRankChain is a Chain plus the bookkeeping needed to map its
// structural nodes back to the input graph.
type CredRankChain struct {
	*Chain

	Params    CredRankParams
	Fibration Fibration

	// SeedIndex is the chain index of SeedAddress.
	SeedIndex int

	// Scoring lists the scoring base nodes in address order.
	Scoring []address.NodeAddress

	// EpochNodes maps a scoring base node to its chain index per epoch.
	EpochNodes map[address.NodeAddress][]int

	// Accumulators holds the chain index of each epoch's accumulator. Empty
	// when there are no scoring nodes.
	Accumulators []int

	// Base maps each non-scoring base node to its chain index.
	Base map[address.NodeAddress]int
}

// BaseScores folds a stationary distribution back onto the input graph's
// nodes. A scoring node's score is the sum over its epoch nodes. The seed
// and accumulators are omitted.
func (c *CredRankChain) BaseScores(pi []float64) map[address.NodeAddress]float64 {
	out := make(map[address.NodeAddress]float64, len(c.Base)+len(c.Scoring))
	for n, i := range c.Base {
		out[n] = pi[i]
	}
	for n, epochs := range c.EpochNodes {
		total := 0.0
		for _, i := range epochs {
			total += pi[i]
		}
		out[n] = total
	}
	return out
}

// EpochScores returns a scoring node's stationary mass per epoch.
func (c *CredRankChain) EpochScores(pi []float64, n address.NodeAddress) []float64 {
	epochs, ok := c.EpochNodes[n]
	if !ok {
		return nil
	}
	out := make([]float64, len(epochs))
	for e, i := range epochs {
		out[e] = pi[i]
	}
	return out
}

// Payouts returns the stationary mass of each epoch accumulator.
func (c *CredRankChain) Payouts(pi []float64) []float64 {
	out := make([]float64, len(c.Accumulators))
	for e, i := range c.Accumulators {
		out[e] = pi[i]
	}
	return out
}

type epochRef struct {
	base  address.NodeAddress
	epoch int
}

type rawTransition struct {
	target int
	kind   AdjacencyKind
	edge   address.EdgeAddress
	weight float64
}

// BuildCredRankChain builds the CredRank process graph.
//
// Description:
//
//	Scoring nodes are replaced by one node per epoch; non-scoring nodes
//	are kept as is. A seed node and, when scoring nodes exist, one
//	accumulator per epoch are added. Each edge is assigned to the epoch
//	of its timestamp in entities (epoch 0 when unknown) and connects the
//	epoch-specific representatives of its endpoints in both directions,
//	as in BuildPageRankChain.
//
//	Outgoing mass of each node:
//
//	  - seed: minted to non-scoring nodes in proportion to node weight,
//	    uniformly when all weights are zero, to epoch nodes when there
//	    are no non-scoring nodes, or to itself when the graph is empty
//	  - every other node: Alpha back to the seed
//	  - epoch nodes: Beta to their accumulator, GammaForward to the next
//	    epoch and GammaBackward to the previous epoch when those exist
//	  - the remainder follows the node's edges in proportion to their
//	    raw weights, or returns to the seed when the node has no edge
//	    weight
//	  - accumulators: everything to the seed
//
// Inputs:
//
//   - ctx: Context for tracing. Must not be nil.
//   - wg: The weighted graph. Not mutated.
//   - entities: Edge timestamps. May be nil.
//   - params: Mass flow parameters.
//   - fib: Scoring prefixes and epoch boundaries.
//
// Outputs:
//
//   - *CredRankChain: The chain and its node bookkeeping.
//   - error: ErrInvalidParameters for bad params, boundaries, or input
//     nodes under CorePrefix.
func BuildCredRankChain(ctx context.Context, wg *weighted.Graph, entities *entity.Table, params CredRankParams, fib Fibration) (_ *CredRankChain, err error) {
	_, span := buildTracer.Start(ctx, "markov.BuildCredRankChain",
		trace.WithAttributes(
			attribute.Int("node_count", wg.Graph.NodeCount()),
			attribute.Int("edge_count", wg.Graph.EdgeCount()),
			attribute.Int("epoch_count", fib.EpochCount()),
		),
	)
	defer span.End()
	defer func() { telemetry.RecordError(span, err) }()

	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := fib.Validate(); err != nil {
		return nil, err
	}

	baseNodes, err := wg.Graph.Nodes(graph.NodeFilter{}).Collect()
	if err != nil {
		return nil, fmt.Errorf("build credrank chain: %w", err)
	}
	edges, err := wg.Graph.Edges(graph.EdgeFilter{}).Collect()
	if err != nil {
		return nil, fmt.Errorf("build credrank chain: %w", err)
	}
	if reserved := wg.Graph.NodeList(graph.NodeFilter{Prefix: CorePrefix}); len(reserved) > 0 {
		return nil, fmt.Errorf("%w: input node %s uses reserved prefix", ErrInvalidParameters, reserved[0])
	}
	if reserved := wg.Graph.EdgeList(graph.EdgeFilter{AddressPrefix: coreEdgePrefix}); len(reserved) > 0 {
		return nil, fmt.Errorf("%w: input edge %s uses reserved prefix", ErrInvalidParameters, reserved[0].Address)
	}

	epochs := fib.EpochCount()
	var scoring, plain []address.NodeAddress
	for _, n := range baseNodes {
		if fib.IsScoring(n) {
			scoring = append(scoring, n)
		} else {
			plain = append(plain, n)
		}
	}

	nodes := make([]address.NodeAddress, 0, 1+len(plain)+len(scoring)*epochs+epochs)
	nodes = append(nodes, SeedAddress)
	nodes = append(nodes, plain...)
	for _, n := range scoring {
		for e := 0; e < epochs; e++ {
			nodes = append(nodes, EpochAddress(n, e))
		}
	}
	if len(scoring) > 0 {
		for e := 0; e < epochs; e++ {
			nodes = append(nodes, AccumulatorAddress(e))
		}
	}
	slices.SortFunc(nodes, address.Compare[address.Node])

	index := make(map[address.NodeAddress]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}

	out := &CredRankChain{
		Params:     params,
		Fibration:  fib,
		SeedIndex:  index[SeedAddress],
		Scoring:    scoring,
		EpochNodes: make(map[address.NodeAddress][]int, len(scoring)),
		Base:       make(map[address.NodeAddress]int, len(plain)),
	}
	for _, n := range plain {
		out.Base[n] = index[n]
	}
	epochOwner := make(map[int]epochRef)
	for _, n := range scoring {
		idx := make([]int, epochs)
		for e := range idx {
			idx[e] = index[EpochAddress(n, e)]
			epochOwner[idx[e]] = epochRef{base: n, epoch: e}
		}
		out.EpochNodes[n] = idx
	}
	if len(scoring) > 0 {
		out.Accumulators = make([]int, epochs)
		for e := range out.Accumulators {
			out.Accumulators[e] = index[AccumulatorAddress(e)]
		}
	}

	represent := func(n address.NodeAddress, epoch int) int {
		if idx, ok := out.EpochNodes[n]; ok {
			return idx[epoch]
		}
		return out.Base[n]
	}

	// Raw edge transitions per source.
	ev := wg.Evaluator()
	outgoing := make([][]rawTransition, len(nodes))
	for _, e := range edges {
		epoch := 0
		if ts, ok := entities.EdgeTimestamp(e.Address); ok {
			epoch = fib.EpochOf(ts)
		}
		w := ev.EdgeWeight(e.Address)
		src, dst := represent(e.Src, epoch), represent(e.Dst, epoch)
		outgoing[src] = append(outgoing[src], rawTransition{target: dst, kind: KindInEdge, edge: e.Address, weight: w.Forwards})
		outgoing[dst] = append(outgoing[dst], rawTransition{target: src, kind: KindOutEdge, edge: e.Address, weight: w.Backwards})
	}

	b := newChainBuilder(nodes)
	addPositive := func(target int, adj Adjacency) {
		if adj.Weight > 0 {
			b.add(target, adj)
		}
	}
	accumulators := make(map[int]struct{}, len(out.Accumulators))
	for _, i := range out.Accumulators {
		accumulators[i] = struct{}{}
	}

	for u, n := range nodes {
		if u == out.SeedIndex {
			continue
		}
		if _, ok := accumulators[u]; ok {
			b.add(out.SeedIndex, Adjacency{Kind: KindSeedRadiation, Edge: structuralEdge("RADIATION", n), Source: u, Weight: 1})
			continue
		}

		budget := 1 - params.Alpha
		if owner, ok := epochOwner[u]; ok {
			addPositive(out.Accumulators[owner.epoch], Adjacency{Kind: KindPayout, Edge: structuralEdge("PAYOUT", n), Source: u, Weight: params.Beta})
			budget -= params.Beta
			epochIdx := out.EpochNodes[owner.base]
			if owner.epoch+1 < epochs {
				addPositive(epochIdx[owner.epoch+1], Adjacency{Kind: KindWebbingForward, Edge: structuralEdge("WEBBING", n), Source: u, Weight: params.GammaForward})
				budget -= params.GammaForward
			}
			if owner.epoch > 0 {
				addPositive(epochIdx[owner.epoch-1], Adjacency{Kind: KindWebbingBackward, Edge: structuralEdge("WEBBING", n), Source: u, Weight: params.GammaBackward})
				budget -= params.GammaBackward
			}
		}
		budget = math.Max(budget, 0)

		radiation := params.Alpha
		total := 0.0
		for _, t := range outgoing[u] {
			total += t.weight
		}
		if total > 0 {
			for _, t := range outgoing[u] {
				b.add(t.target, Adjacency{Kind: t.kind, Edge: t.edge, Source: u, Weight: budget * t.weight / total})
			}
		} else {
			radiation += budget
		}
		addPositive(out.SeedIndex, Adjacency{Kind: KindSeedRadiation, Edge: structuralEdge("RADIATION", n), Source: u, Weight: radiation})
	}

	mintTargets := make([]int, 0, len(plain))
	mintWeights := make([]float64, 0, len(plain))
	mintTotal := 0.0
	for _, n := range plain {
		w := ev.NodeWeight(n)
		if w > 0 {
			mintTargets = append(mintTargets, out.Base[n])
			mintWeights = append(mintWeights, w)
			mintTotal += w
		}
	}
	if mintTotal == 0 {
		mintTargets = mintTargets[:0]
		mintWeights = mintWeights[:0]
		for _, n := range plain {
			mintTargets = append(mintTargets, out.Base[n])
		}
		if len(mintTargets) == 0 {
			for _, n := range scoring {
				mintTargets = append(mintTargets, out.EpochNodes[n]...)
			}
		}
		for range mintTargets {
			mintWeights = append(mintWeights, 1)
		}
		mintTotal = float64(len(mintTargets))
	}
	if len(mintTargets) == 0 {
		b.add(out.SeedIndex, Adjacency{Kind: KindSyntheticLoop, Source: out.SeedIndex, Weight: 1})
	}
	for i, target := range mintTargets {
		b.add(target, Adjacency{
			Kind:   KindSeedMint,
			Edge:   structuralEdge("MINT", nodes[target]),
			Source: out.SeedIndex,
			Weight: mintWeights[i] / mintTotal,
		})
	}

	out.Chain = b.sorted()
	slog.Debug("CredRank chain built",
		slog.Int("base_nodes", len(baseNodes)),
		slog.Int("scoring_nodes", len(scoring)),
		slog.Int("epochs", epochs),
		slog.Int("chain_nodes", len(nodes)),
	)
	return out, nil
}
