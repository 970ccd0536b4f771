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
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
	"github.com/AleutianAI/AleutianCred/services/cred/markov"
)

// Contribution is the score one inbound transition brought to a node.
type Contribution struct {
	Kind markov.AdjacencyKind

	// Edge is zero for synthetic self-loops.
	Edge address.EdgeAddress

	Source address.NodeAddress

	// Weight is the transition probability.
	Weight float64

	// Score is Weight times the source's stationary score.
	Score float64
}

type contributionJSON struct {
	Kind   markov.AdjacencyKind `json:"kind"`
	Edge   *address.EdgeAddress `json:"edge,omitempty"`
	Source address.NodeAddress  `json:"source"`
	Weight float64              `json:"weight"`
	Score  float64              `json:"score"`
}

// MarshalJSON omits the edge of synthetic transitions.
func (c Contribution) MarshalJSON() ([]byte, error) {
	out := contributionJSON{Kind: c.Kind, Source: c.Source, Weight: c.Weight, Score: c.Score}
	if !c.Edge.IsZero() {
		out.Edge = &c.Edge
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a contribution.
func (c *Contribution) UnmarshalJSON(data []byte) error {
	var in contributionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*c = Contribution{Kind: in.Kind, Source: in.Source, Weight: in.Weight, Score: in.Score}
	if in.Edge != nil {
		c.Edge = *in.Edge
	}
	return nil
}

// NodeDecomposition explains one node's score.
type NodeDecomposition struct {
	Node          address.NodeAddress `json:"node"`
	Score         float64             `json:"score"`
	Contributions []Contribution      `json:"contributions"`
}

// Decompose breaks every node's stationary score into per-transition
// contributions.
//
// Description:
//
//	For each inbound adjacency the contribution is its weight times the
//	stationary score of its source. Contributions are sorted by score,
//	highest first. Equal scores are ordered by adjacency kind, then edge
//	address, then source address, so the order is total and
//	reproducible.
//
// Inputs:
//
//   - chain: The chain pi was computed for.
//   - pi: The stationary distribution, indexed like chain.Nodes.
//
// Outputs:
//
//   - []NodeDecomposition: One entry per chain node, in chain order.
//   - error: markov.ErrDimensionMismatch if pi does not fit the chain.
func Decompose(chain *markov.Chain, pi []float64) ([]NodeDecomposition, error) {
	if len(pi) != chain.Len() {
		return nil, fmt.Errorf("decompose: %w: %d scores for %d nodes", markov.ErrDimensionMismatch, len(pi), chain.Len())
	}
	out := make([]NodeDecomposition, chain.Len())
	for i, n := range chain.Nodes {
		contributions := make([]Contribution, len(chain.Adjacencies[i]))
		for j, adj := range chain.Adjacencies[i] {
			contributions[j] = Contribution{
				Kind:   adj.Kind,
				Edge:   adj.Edge,
				Source: chain.Nodes[adj.Source],
				Weight: adj.Weight,
				Score:  adj.Weight * pi[adj.Source],
			}
		}
		slices.SortStableFunc(contributions, compareContributions)
		out[i] = NodeDecomposition{Node: n, Score: pi[i], Contributions: contributions}
	}
	return out, nil
}

// FoldEpochs explains each CredRank scoring node by merging the
// decompositions of its epoch nodes.
//
// Description:
//
//	The folded score is the sum of the epoch scores, matching the score
//	reported for the node. Contributions with the same kind, edge and
//	source are combined. The result keeps the contribution order of
//	Decompose and is sorted by node address.
//
// Inputs:
//
//   - decomps: Decompose output, indexed like the chain.
//   - epochNodes: Chain indices of each scoring node's epoch nodes.
//
// Outputs:
//
//   - []NodeDecomposition: One entry per scoring node.
func FoldEpochs(decomps []NodeDecomposition, epochNodes map[address.NodeAddress][]int) []NodeDecomposition {
	type key struct {
		kind   markov.AdjacencyKind
		edge   address.EdgeAddress
		source address.NodeAddress
	}
	out := make([]NodeDecomposition, 0, len(epochNodes))
	for n, epochs := range epochNodes {
		folded := NodeDecomposition{Node: n}
		seen := make(map[key]int)
		for _, i := range epochs {
			d := decomps[i]
			folded.Score += d.Score
			for _, c := range d.Contributions {
				k := key{c.Kind, c.Edge, c.Source}
				if j, ok := seen[k]; ok {
					folded.Contributions[j].Weight += c.Weight
					folded.Contributions[j].Score += c.Score
					continue
				}
				seen[k] = len(folded.Contributions)
				folded.Contributions = append(folded.Contributions, c)
			}
		}
		if folded.Contributions == nil {
			folded.Contributions = []Contribution{}
		}
		slices.SortStableFunc(folded.Contributions, compareContributions)
		out = append(out, folded)
	}
	slices.SortFunc(out, func(a, b NodeDecomposition) int {
		return address.Compare(a.Node, b.Node)
	})
	return out
}

func compareContributions(a, b Contribution) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	if c := address.Compare(a.Edge, b.Edge); c != 0 {
		return c
	}
	return address.Compare(a.Source, b.Source)
}
