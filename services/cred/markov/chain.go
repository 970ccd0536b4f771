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
	"encoding/json"
	"fmt"
	"math"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
)

// AdjacencyKind classifies the connection behind a transition. The
// declaration order is the canonical tie-break order.
type AdjacencyKind int

const (
	// KindInEdge is a real edge followed forwards, from its src to its dst.
	KindInEdge AdjacencyKind = iota

	// KindOutEdge is a real edge followed backwards, from its dst to its src.
	KindOutEdge

	// KindSyntheticLoop is the per-node self-loop added by the builder.
	KindSyntheticLoop

	// KindSeedMint carries mass from the seed to a minting node.
	KindSeedMint

	// KindSeedRadiation returns mass from a node to the seed.
	KindSeedRadiation

	// KindPayout moves mass from an epoch node to its epoch accumulator.
	KindPayout

	// KindWebbingForward links an epoch node to the same node's next epoch.
	KindWebbingForward

	// KindWebbingBackward links an epoch node to the same node's previous
	// epoch.
	KindWebbingBackward
)

var kindNames = [...]string{
	KindInEdge:          "IN_EDGE",
	KindOutEdge:         "OUT_EDGE",
	KindSyntheticLoop:   "SYNTHETIC_LOOP",
	KindSeedMint:        "SEED_MINT",
	KindSeedRadiation:   "SEED_RADIATION",
	KindPayout:          "PAYOUT",
	KindWebbingForward:  "WEBBING_FORWARD",
	KindWebbingBackward: "WEBBING_BACKWARD",
}

// String returns the string representation of the AdjacencyKind.
func (k AdjacencyKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "UNKNOWN"
	}
	return kindNames[k]
}

// MarshalJSON encodes the kind by name.
func (k AdjacencyKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind name.
func (k *AdjacencyKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for i, name := range kindNames {
		if name == s {
			*k = AdjacencyKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown adjacency kind %q", s)
}

// Adjacency is one inbound transition of a node.
type Adjacency struct {
	Kind AdjacencyKind

	// Edge is the underlying graph edge, or a synthetic address for
	// structural transitions. Zero for PageRank self-loops.
	Edge address.EdgeAddress

	// Source is the index of the node the transition starts from.
	Source int

	// Weight is the transition probability from Source to this node.
	Weight float64
}

// Chain is a sparse, row-stochastic Markov chain in inbound form.
//
// Adjacencies[i] lists the transitions arriving at Nodes[i].
type Chain struct {
	Nodes       []address.NodeAddress
	Adjacencies [][]Adjacency
}

// SparseRow is the solver's view of one node's inbound transitions.
type SparseRow struct {
	Neighbor []int
	Weight   []float64
}

// Len returns the number of nodes.
func (c *Chain) Len() int {
	return len(c.Nodes)
}

// Index returns the position of a node in the chain ordering.
func (c *Chain) Index(a address.NodeAddress) (int, bool) {
	for i, n := range c.Nodes {
		if n == a {
			return i, true
		}
	}
	return 0, false
}

// Sparse returns the chain as parallel neighbor and weight arrays.
func (c *Chain) Sparse() []SparseRow {
	rows := make([]SparseRow, len(c.Adjacencies))
	for i, adjs := range c.Adjacencies {
		row := SparseRow{
			Neighbor: make([]int, len(adjs)),
			Weight:   make([]float64, len(adjs)),
		}
		for j, adj := range adjs {
			row.Neighbor[j] = adj.Source
			row.Weight[j] = adj.Weight
		}
		rows[i] = row
	}
	return rows
}

// OutWeights returns, per node, the sum of its outgoing probabilities.
func (c *Chain) OutWeights() []float64 {
	out := make([]float64, len(c.Nodes))
	for _, adjs := range c.Adjacencies {
		for _, adj := range adjs {
			out[adj.Source] += adj.Weight
		}
	}
	return out
}

// CheckStochastic verifies that every node's outgoing probabilities sum
// to 1 within tol.
//
// Errors:
//
//	ErrNotStochastic - names the first offending node
func CheckStochastic(c *Chain, tol float64) error {
	for i, total := range c.OutWeights() {
		if math.IsNaN(total) || math.Abs(total-1) > tol {
			return fmt.Errorf("%w: %s has out-weight %v", ErrNotStochastic, c.Nodes[i], total)
		}
	}
	return nil
}

// Uniform returns the uniform distribution over n nodes.
func Uniform(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1 / float64(n)
	}
	return out
}

// WeightedDistribution returns the distribution over order proportional
// to weights. Missing entries weigh 0. Falls back to Uniform when the total
// weight is zero.
func WeightedDistribution(order []address.NodeAddress, weights map[address.NodeAddress]float64) []float64 {
	out := make([]float64, len(order))
	total := 0.0
	for i, n := range order {
		out[i] = weights[n]
		total += out[i]
	}
	if total <= 0 {
		return Uniform(len(order))
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

// compareAdjacency orders adjacencies by kind, then edge address, then
// source address.
func compareAdjacency(nodes []address.NodeAddress, a, b Adjacency) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	if c := address.Compare(a.Edge, b.Edge); c != 0 {
		return c
	}
	return address.Compare(nodes[a.Source], nodes[b.Source])
}
