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
	"math/rand"
	"testing"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
	"github.com/AleutianAI/AleutianCred/services/cred/graph"
	"github.com/AleutianAI/AleutianCred/services/cred/weighted"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test helpers
// =============================================================================

var (
	nodeA  = address.MustNode("A")
	nodeB  = address.MustNode("B")
	edgeAB = address.MustEdge("A->B")
)

// twoNodeGraph returns A -> B with forwards weight 1 and backwards 0.
func twoNodeGraph(t *testing.T) *weighted.Graph {
	t.Helper()
	g := graph.New()
	require.NoError(t, g.AddNode(nodeA))
	require.NoError(t, g.AddNode(nodeB))
	require.NoError(t, g.AddEdge(graph.Edge{Address: edgeAB, Src: nodeA, Dst: nodeB}))
	w := weighted.Empty()
	w.EdgeWeights[edgeAB] = weighted.EdgeWeight{Forwards: 1, Backwards: 0}
	return weighted.New(g, w)
}

func randomWeightedGraph(t *testing.T, seed int64, nodes, edges int) *weighted.Graph {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	g := graph.New()
	addrs := make([]address.NodeAddress, nodes)
	for i := range addrs {
		addrs[i] = address.MustNode("n", fmt.Sprint(i))
		require.NoError(t, g.AddNode(addrs[i]))
	}
	w := weighted.Empty()
	for i := 0; i < edges; i++ {
		e := graph.Edge{
			Address: address.MustEdge("e", fmt.Sprint(i)),
			Src:     addrs[rng.Intn(nodes)],
			Dst:     addrs[rng.Intn(nodes)],
		}
		require.NoError(t, g.AddEdge(e))
		if rng.Intn(3) == 0 {
			w.EdgeWeights[e.Address] = weighted.EdgeWeight{Forwards: rng.Float64() * 4, Backwards: rng.Float64()}
		}
	}
	return weighted.New(g, w)
}

// =============================================================================
// Builder
// =============================================================================

func TestBuildPageRankChain_TwoNodes(t *testing.T) {
	chain, err := BuildPageRankChain(context.Background(), twoNodeGraph(t), &BuildOptions{SyntheticLoopWeight: 0.2})
	require.NoError(t, err)

	assert.Equal(t, []address.NodeAddress{nodeA, nodeB}, chain.Nodes)
	require.Len(t, chain.Adjacencies[0], 2)
	require.Len(t, chain.Adjacencies[1], 2)

	// Inbound to A: B's reverse traversal (weight 0), then A's loop.
	assert.Equal(t, KindOutEdge, chain.Adjacencies[0][0].Kind)
	assert.Equal(t, 1, chain.Adjacencies[0][0].Source)
	assert.InDelta(t, 0, chain.Adjacencies[0][0].Weight, 1e-12)
	assert.Equal(t, KindSyntheticLoop, chain.Adjacencies[0][1].Kind)
	assert.InDelta(t, 1.0/6, chain.Adjacencies[0][1].Weight, 1e-12)

	// Inbound to B: A's forward edge, then B's loop.
	assert.Equal(t, Adjacency{Kind: KindInEdge, Edge: edgeAB, Source: 0, Weight: chain.Adjacencies[1][0].Weight}, chain.Adjacencies[1][0])
	assert.InDelta(t, 5.0/6, chain.Adjacencies[1][0].Weight, 1e-12)
	assert.InDelta(t, 1, chain.Adjacencies[1][1].Weight, 1e-12)

	require.NoError(t, CheckStochastic(chain, 1e-9))
}

func TestBuildPageRankChain_RowsAreStochastic(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprint(seed), func(t *testing.T) {
			chain, err := BuildPageRankChain(context.Background(), randomWeightedGraph(t, seed, 12, 40), nil)
			require.NoError(t, err)
			assert.NoError(t, CheckStochastic(chain, 1e-9))
		})
	}
}

func TestBuildPageRankChain_Deterministic(t *testing.T) {
	wg := randomWeightedGraph(t, 7, 10, 30)
	first, err := BuildPageRankChain(context.Background(), wg, nil)
	require.NoError(t, err)
	second, err := BuildPageRankChain(context.Background(), wg, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	for _, adjs := range first.Adjacencies {
		for i := 1; i < len(adjs); i++ {
			assert.LessOrEqual(t, compareAdjacency(first.Nodes, adjs[i-1], adjs[i]), 0)
		}
	}
}

func TestBuildPageRankChain_LoopEdge(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddNode(nodeA))
	require.NoError(t, g.AddEdge(graph.Edge{Address: address.MustEdge("self"), Src: nodeA, Dst: nodeA}))
	chain, err := BuildPageRankChain(context.Background(), weighted.New(g, nil), nil)
	require.NoError(t, err)
	require.Len(t, chain.Adjacencies[0], 3)
	assert.NoError(t, CheckStochastic(chain, 1e-9))
}

func TestBuildPageRankChain_InvalidOptions(t *testing.T) {
	_, err := BuildPageRankChain(context.Background(), twoNodeGraph(t), &BuildOptions{SyntheticLoopWeight: 0})
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

// =============================================================================
// Chain helpers
// =============================================================================

func TestCheckStochastic_Detects(t *testing.T) {
	chain := &Chain{
		Nodes:       []address.NodeAddress{nodeA, nodeB},
		Adjacencies: [][]Adjacency{{{Kind: KindSyntheticLoop, Source: 0, Weight: 0.5}}, {{Kind: KindSyntheticLoop, Source: 1, Weight: 1}}},
	}
	assert.ErrorIs(t, CheckStochastic(chain, 1e-9), ErrNotStochastic)
}

func TestSparse(t *testing.T) {
	chain, err := BuildPageRankChain(context.Background(), twoNodeGraph(t), &BuildOptions{SyntheticLoopWeight: 0.2})
	require.NoError(t, err)
	rows := chain.Sparse()
	require.Len(t, rows, 2)
	assert.Equal(t, []int{1, 0}, rows[0].Neighbor)
	assert.Equal(t, []int{0, 1}, rows[1].Neighbor)
	assert.InDeltaSlice(t, []float64{5.0 / 6, 1}, rows[1].Weight, 1e-12)

	i, ok := chain.Index(nodeB)
	assert.True(t, ok)
	assert.Equal(t, 1, i)
	_, ok = chain.Index(address.MustNode("C"))
	assert.False(t, ok)
}

func TestDistributions(t *testing.T) {
	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, Uniform(4))

	order := []address.NodeAddress{nodeA, nodeB, address.MustNode("C")}
	got := WeightedDistribution(order, map[address.NodeAddress]float64{nodeA: 1, nodeB: 3})
	assert.InDeltaSlice(t, []float64{0.25, 0.75, 0}, got, 1e-12)

	got = WeightedDistribution(order, nil)
	assert.InDeltaSlice(t, []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}, got, 1e-12)
}

func TestAdjacencyKind_String(t *testing.T) {
	assert.Equal(t, "IN_EDGE", KindInEdge.String())
	assert.Equal(t, "WEBBING_BACKWARD", KindWebbingBackward.String())
	assert.Equal(t, "UNKNOWN", AdjacencyKind(42).String())

	var k AdjacencyKind
	require.NoError(t, k.UnmarshalJSON([]byte(`"PAYOUT"`)))
	assert.Equal(t, KindPayout, k)
	assert.Error(t, k.UnmarshalJSON([]byte(`"NOPE"`)))
}
